package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/pflag"

	"github.com/exzackly/exzos/disk"
	"github.com/exzackly/exzos/fs"
)

var (
	fTracks    = pflag.Int("tracks", 4, "tracks on the disk")
	fSectors   = pflag.Int("sectors", 8, "sectors per track")
	fBlocks    = pflag.Int("blocks", 8, "blocks per sector")
	fBlockSize = pflag.Int("block-size", 64, "bytes per block")
	fRaw       = pflag.Bool("raw", false, "dump every used block")
)

func main() {
	pflag.Parse()

	if pflag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: dskdump [flags] <image>\n")
		pflag.PrintDefaults()
		os.Exit(2)
	}

	g := disk.Geometry{
		Tracks:    *fTracks,
		Sectors:   *fSectors,
		Blocks:    *fBlocks,
		BlockSize: *fBlockSize,
	}

	if err := dump(os.Stdout, pflag.Arg(0), g, *fRaw); err != nil {
		log.Fatal(err)
	}
}

func dump(w io.Writer, path string, g disk.Geometry, raw bool) error {
	store, err := disk.OpenFileStore(path, g)
	if err != nil {
		return err
	}

	defer store.Close()

	dsk, err := disk.New(g, store)
	if err != nil {
		return err
	}

	drv, err := fs.NewDriver(dsk, nil, nil)
	if err != nil {
		return err
	}

	if !drv.Formatted() {
		fmt.Fprintf(w, "%s: not formatted\n", path)
	} else {
		ents, err := drv.List(true)
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "\n[directory]\n")

		tr := tabwriter.NewWriter(w, 4, 8, 1, ' ', 0)
		for _, ent := range ents {
			fmt.Fprintf(tr, "%s\t%s\t%d\t%s\thead=%s\n", ent.Location, ent.Name, ent.Size, ent.Created, ent.Head)
		}
		tr.Flush()
	}

	if !raw {
		return nil
	}

	fmt.Fprintf(w, "\n[blocks]\n")

	for loc := range g.All() {
		b, err := dsk.Read(loc)
		if err != nil {
			return err
		}

		if !b.Used() {
			continue
		}

		fmt.Fprintf(w, "%s next=%s\n", loc, b.Next())
		spew.Fdump(w, []byte(b))
	}

	return nil
}

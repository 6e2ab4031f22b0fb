package fs

import (
	"iter"

	"github.com/pkg/errors"

	"github.com/exzackly/exzos/disk"
)

// scan yields every block on tracks from..to. A read failure stops the
// sequence and is stored in *err.
func (d *Driver) scan(from, to int, err *error) iter.Seq2[disk.Location, disk.Block] {
	return func(yield func(disk.Location, disk.Block) bool) {
		for loc := range d.geo.Locations(from, to) {
			b, rerr := d.disk.Read(loc)
			if rerr != nil {
				*err = rerr
				return
			}

			if !yield(loc, b) {
				return
			}
		}
	}
}

// directory yields the directory blocks, skipping the MBR.
func (d *Driver) directory(err *error) iter.Seq2[disk.Location, disk.Block] {
	return func(yield func(disk.Location, disk.Block) bool) {
		for loc, b := range d.scan(0, 0, err) {
			if loc == mbrLocation {
				continue
			}

			if !yield(loc, b) {
				return
			}
		}
	}
}

// data yields the file data blocks.
func (d *Driver) data(err *error) iter.Seq2[disk.Location, disk.Block] {
	return d.scan(1, d.geo.Tracks-1, err)
}

// entries yields every live directory entry.
func (d *Driver) entries(err *error) iter.Seq2[disk.Location, Entry] {
	return func(yield func(disk.Location, Entry) bool) {
		for loc, b := range d.directory(err) {
			if !b.Used() {
				continue
			}

			ent, ok := decodeEntry(loc, b)
			if !ok {
				d.L.Warn("bad-directory-entry", "location", loc)
				continue
			}

			if !yield(loc, ent) {
				return
			}
		}
	}
}

// chain yields each block of the chain starting at head until the all-zero
// sentinel. Chains are acyclic by construction; a walk longer than the disk
// means the image is damaged and is reported as ErrCorruptChain.
func (d *Driver) chain(head disk.Location, err *error) iter.Seq2[disk.Location, disk.Block] {
	return func(yield func(disk.Location, disk.Block) bool) {
		limit := d.geo.BlockCount()

		for loc := head; !loc.IsZero(); limit-- {
			if limit == 0 {
				*err = errors.Wrapf(ErrCorruptChain, "head=%s", head)
				return
			}

			b, rerr := d.disk.Read(loc)
			if rerr != nil {
				*err = rerr
				return
			}

			if !yield(loc, b) {
				return
			}

			loc = b.Next()
		}
	}
}

// freeData returns up to n free data blocks, first fit, skipping any
// location in skip.
func (d *Driver) freeData(n int, skip map[disk.Location]bool) ([]disk.Location, error) {
	var (
		err error
		out []disk.Location
	)

	if n == 0 {
		return nil, nil
	}

	for loc, b := range d.data(&err) {
		if b.Used() || skip[loc] {
			continue
		}

		out = append(out, loc)
		if len(out) == n {
			break
		}
	}

	return out, err
}

package fs

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/exzackly/exzos/disk"
)

// SwapFiles lists the names of process images stored on disk.
func (d *Driver) SwapFiles() ([]string, error) {
	ents, err := d.List(true)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, ent := range ents {
		if strings.HasPrefix(ent.Name, ProgramPrefix) {
			out = append(out, ent.Name)
		}
	}

	return out, nil
}

// Recover undeletes name. It succeeds only while the freed directory entry
// and every block of its chain are still unclaimed.
func (d *Driver) Recover(name string) error {
	if err := d.checkFormatted(); err != nil {
		return err
	}

	if d.Exists(name) {
		return errors.Wrapf(ErrFileExists, "name=%s", name)
	}

	var err error

	for loc, b := range d.directory(&err) {
		if b.Used() {
			continue
		}

		ent, ok := decodeEntry(loc, b)
		if !ok || ent.Name != name {
			continue
		}

		chain, ok := d.unclaimedChain(ent)
		if !ok {
			continue
		}

		for _, cloc := range chain {
			cb, err := d.disk.Read(cloc)
			if err != nil {
				return err
			}

			cb.SetUsed(true)

			if err := d.disk.Write(cloc, cb); err != nil {
				return err
			}
		}

		b.SetUsed(true)

		if err := d.disk.Write(loc, b); err != nil {
			return err
		}

		d.dirCache.Add(name, loc)

		d.L.Info("file-recovered", "name", name, "blocks", len(chain))

		return nil
	}

	if err != nil {
		return err
	}

	return errors.Wrapf(ErrNotRecoverable, "name=%s", name)
}

// unclaimedChain returns the chain of a deleted entry if it still has the
// expected length and none of its blocks have been reused.
func (d *Driver) unclaimedChain(ent Entry) ([]disk.Location, bool) {
	w := d.geo.Writable()
	need := (ent.Size + w - 1) / w

	var (
		err   error
		chain []disk.Location
	)

	for loc, b := range d.chain(ent.Head, &err) {
		if b.Used() || loc.Track == 0 || len(chain) == need {
			return nil, false
		}

		chain = append(chain, loc)
	}

	if err != nil || len(chain) != need {
		return nil, false
	}

	return chain, true
}

// Check repairs the directory as best it can. Entries whose chain runs into
// a free or directory block are truncated at the last good block, and used
// data blocks no entry reaches are freed. It returns one line per repair.
func (d *Driver) Check() ([]string, error) {
	if err := d.checkFormatted(); err != nil {
		return nil, err
	}

	var (
		err     error
		report  []string
		reached = make(map[disk.Location]string)
		w       = d.geo.Writable()
	)

	var ents []Entry
	for _, ent := range d.entries(&err) {
		ents = append(ents, ent)
	}

	if err != nil {
		return nil, err
	}

	for _, ent := range ents {
		var (
			good  []disk.Location
			bad   string
			extra bool
			cerr  error
		)

		for loc, b := range d.chain(ent.Head, &cerr) {
			if len(good)*w >= ent.Size {
				extra = true
				break
			}

			switch {
			case loc.Track == 0:
				bad = fmt.Sprintf("links into directory block %s", loc)
			case !b.Used():
				bad = fmt.Sprintf("links to free block %s", loc)
			case reached[loc] != "":
				bad = fmt.Sprintf("cross-linked with %s at %s", reached[loc], loc)
			}

			if bad != "" {
				break
			}

			good = append(good, loc)
		}

		if cerr != nil && bad == "" {
			bad = cerr.Error()
		}

		for _, loc := range good {
			reached[loc] = ent.Name
		}

		covered := len(good)*w >= ent.Size

		switch {
		case bad != "":
		case extra:
			bad = "chain runs past the recorded size"
		case !covered:
			bad = fmt.Sprintf("chain holds %d of %d bytes", len(good)*w, ent.Size)
		default:
			continue
		}

		if err := d.truncate(ent, good); err != nil {
			return report, err
		}

		report = append(report, fmt.Sprintf("%s: %s, truncated to %d blocks", ent.Name, bad, len(good)))
	}

	var orphans []disk.Location
	for loc, b := range d.data(&err) {
		if b.Used() && reached[loc] == "" {
			orphans = append(orphans, loc)
		}
	}

	if err != nil {
		return report, err
	}

	for _, loc := range orphans {
		b, err := d.disk.Read(loc)
		if err != nil {
			return report, err
		}

		b.SetUsed(false)

		if err := d.disk.Write(loc, b); err != nil {
			return report, err
		}

		report = append(report, fmt.Sprintf("%s: orphaned block freed", loc))
	}

	d.dirCache.Purge()

	d.L.Info("disk-checked", "repairs", len(report))

	return report, nil
}

// truncate shortens ent to the blocks in good.
func (d *Driver) truncate(ent Entry, good []disk.Location) error {
	if len(good) == 0 {
		ent.Head = disk.Location{}
		ent.Size = 0
	} else {
		last := good[len(good)-1]

		b, err := d.disk.Read(last)
		if err != nil {
			return err
		}

		b.SetNext(disk.Location{})

		if err := d.disk.Write(last, b); err != nil {
			return err
		}

		ent.Size = min(ent.Size, len(good)*d.geo.Writable())
	}

	b, err := d.disk.Read(ent.Location)
	if err != nil {
		return err
	}

	return d.writeEntry(ent, b)
}

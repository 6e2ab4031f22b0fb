package fs

import (
	"github.com/pkg/errors"

	"github.com/exzackly/exzos/disk"
)

// lookup finds the live directory entry for name.
func (d *Driver) lookup(name string) (Entry, disk.Block, error) {
	if val, ok := d.dirCache.Get(name); ok {
		loc := val.(disk.Location)

		b, err := d.disk.Read(loc)
		if err != nil {
			return Entry{}, nil, err
		}

		if b.Used() {
			if ent, ok := decodeEntry(loc, b); ok && ent.Name == name {
				return ent, b, nil
			}
		}

		d.dirCache.Remove(name)
	}

	var err error

	for loc, ent := range d.entries(&err) {
		if ent.Name != name {
			continue
		}

		b, err := d.disk.Read(loc)
		if err != nil {
			return Entry{}, nil, err
		}

		d.dirCache.Add(name, loc)

		return ent, b, nil
	}

	if err != nil {
		return Entry{}, nil, err
	}

	return Entry{}, nil, errors.Wrapf(ErrFileNotFound, "name=%s", name)
}

func (d *Driver) Exists(name string) bool {
	_, _, err := d.lookup(name)
	return err == nil
}

func (d *Driver) writeEntry(ent Entry, b disk.Block) error {
	payload := ent.encode()
	if len(payload) > d.geo.Writable() {
		return errors.Wrapf(ErrFilenameTooLong, "entry for %s needs %d bytes", ent.Name, len(payload))
	}

	b.SetUsed(true)
	b.SetNext(ent.Head)
	b.SetPayload(payload)

	return d.disk.Write(ent.Location, b)
}

// Create adds an empty directory entry for name.
func (d *Driver) Create(name string) error {
	if err := d.checkFormatted(); err != nil {
		return err
	}

	if err := validName(name); err != nil {
		return errors.Wrapf(err, "name=%q", name)
	}

	if d.Exists(name) {
		return errors.Wrapf(ErrFileExists, "name=%s", name)
	}

	var err error

	for loc, b := range d.directory(&err) {
		if b.Used() {
			continue
		}

		ent := Entry{
			Name:     name,
			Created:  d.now().Format(DateLayout),
			Location: loc,
		}

		// A fresh entry owns no chain, whatever was left behind in the block.
		clear(b)

		if err := d.writeEntry(ent, b); err != nil {
			return err
		}

		d.dirCache.Add(name, loc)

		d.L.Debug("file-created", "name", name, "location", loc)

		return nil
	}

	if err != nil {
		return err
	}

	return errors.Wrapf(ErrDirectoryFull, "name=%s", name)
}

// Write replaces the contents of name with data. Every block the new chain
// needs is claimed before anything is written, so a write that does not fit
// leaves the disk untouched.
func (d *Driver) Write(name string, data []byte) error {
	if err := d.checkFormatted(); err != nil {
		return err
	}

	if len(data) == 0 {
		return errors.Wrapf(ErrEmptyPayload, "name=%s", name)
	}

	ent, dirBlock, err := d.lookup(name)
	if err != nil {
		return err
	}

	var old []disk.Location

	for loc := range d.chain(ent.Head, &err) {
		old = append(old, loc)
	}

	if err != nil {
		return err
	}

	w := d.geo.Writable()
	need := (len(data) + w - 1) / w

	blocks := old
	if len(blocks) > need {
		blocks = blocks[:need]
	}

	skip := make(map[disk.Location]bool, len(old))
	for _, loc := range old {
		skip[loc] = true
	}

	more, err := d.freeData(need-len(blocks), skip)
	if err != nil {
		return err
	}

	if len(blocks)+len(more) < need {
		return errors.Wrapf(ErrDiskFull, "name=%s needs %d blocks, %d available", name, need, len(blocks)+len(more))
	}

	blocks = append(blocks[:len(blocks):len(blocks)], more...)

	for i, loc := range blocks {
		b := make(disk.Block, d.geo.BlockSize)
		b.SetUsed(true)

		if i+1 < len(blocks) {
			b.SetNext(blocks[i+1])
		}

		start := i * w
		b.SetPayload(data[start:min(start+w, len(data))])

		if err := d.disk.Write(loc, b); err != nil {
			return err
		}
	}

	var leftover []disk.Location
	if len(old) > need {
		leftover = old[need:]
	}

	for _, loc := range leftover {
		b, err := d.disk.Read(loc)
		if err != nil {
			return err
		}

		b.SetUsed(false)

		if err := d.disk.Write(loc, b); err != nil {
			return err
		}
	}

	ent.Size = len(data)
	ent.Head = blocks[0]

	if err := d.writeEntry(ent, dirBlock); err != nil {
		return err
	}

	d.L.Debug("file-written", "name", name, "size", len(data), "blocks", need)

	return nil
}

// Read returns the contents of name.
func (d *Driver) Read(name string) ([]byte, error) {
	if err := d.checkFormatted(); err != nil {
		return nil, err
	}

	ent, _, err := d.lookup(name)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, ent.Size)

	for _, b := range d.chain(ent.Head, &err) {
		out = append(out, b.Payload()...)
		if len(out) >= ent.Size {
			break
		}
	}

	if err != nil {
		return nil, err
	}

	if len(out) < ent.Size {
		return nil, errors.Wrapf(ErrCorruptChain, "name=%s has %d of %d bytes", name, len(out), ent.Size)
	}

	return out[:ent.Size], nil
}

// Delete marks the entry and its chain free. Payloads and links stay on disk
// until the blocks are reused, which is what Recover relies on.
func (d *Driver) Delete(name string) error {
	if err := d.checkFormatted(); err != nil {
		return err
	}

	ent, dirBlock, err := d.lookup(name)
	if err != nil {
		return err
	}

	var chain []disk.Location

	for loc := range d.chain(ent.Head, &err) {
		chain = append(chain, loc)
	}

	if err != nil {
		return err
	}

	for _, loc := range chain {
		b, err := d.disk.Read(loc)
		if err != nil {
			return err
		}

		b.SetUsed(false)

		if err := d.disk.Write(loc, b); err != nil {
			return err
		}
	}

	dirBlock.SetUsed(false)

	if err := d.disk.Write(ent.Location, dirBlock); err != nil {
		return err
	}

	d.dirCache.Remove(name)

	d.L.Debug("file-deleted", "name", name, "blocks", len(chain))

	return nil
}

// List returns the directory in track order. Unless long is set, swap images
// and hidden files are left out.
func (d *Driver) List(long bool) ([]Entry, error) {
	if err := d.checkFormatted(); err != nil {
		return nil, err
	}

	var (
		err error
		out []Entry
	)

	for _, ent := range d.entries(&err) {
		if !long && Hidden(ent.Name) {
			continue
		}

		out = append(out, ent)
	}

	return out, err
}

func (d *Driver) Rename(from, to string) error {
	if err := d.checkFormatted(); err != nil {
		return err
	}

	if err := validName(to); err != nil {
		return errors.Wrapf(err, "name=%q", to)
	}

	if d.Exists(to) {
		return errors.Wrapf(ErrFileExists, "name=%s", to)
	}

	ent, b, err := d.lookup(from)
	if err != nil {
		return err
	}

	ent.Name = to

	if err := d.writeEntry(ent, b); err != nil {
		return err
	}

	d.dirCache.Remove(from)
	d.dirCache.Add(to, ent.Location)

	return nil
}

package disk

import (
	"github.com/pkg/errors"
)

// Disk validates addresses against a fixed geometry and normalizes every
// block to BlockSize bytes before handing it to the store.
type Disk struct {
	Geometry Geometry
	store    Store
}

func New(g Geometry, s Store) (*Disk, error) {
	if g.Tracks <= 0 || g.Sectors <= 0 || g.Blocks <= 0 {
		return nil, errors.Errorf("bad disk geometry %+v", g)
	}

	if g.BlockSize <= HeaderSize {
		return nil, errors.Errorf("block size %d leaves no payload", g.BlockSize)
	}

	// Locations are stored one byte per coordinate in block headers.
	if g.Tracks > 256 || g.Sectors > 256 || g.Blocks > 256 {
		return nil, errors.Errorf("bad disk geometry %+v", g)
	}

	if s == nil {
		s = NewMemStore(g)
	}

	return &Disk{Geometry: g, store: s}, nil
}

func (d *Disk) Read(l Location) (Block, error) {
	if !d.Geometry.Contains(l) {
		return nil, errors.Wrapf(ErrBadLocation, "location=%s", l)
	}

	data, err := d.store.ReadBlock(l)
	if err != nil {
		return nil, err
	}

	if len(data) != d.Geometry.BlockSize {
		buf := make([]byte, d.Geometry.BlockSize)
		copy(buf, data)
		data = buf
	}

	return Block(data), nil
}

func (d *Disk) Write(l Location, b Block) error {
	if !d.Geometry.Contains(l) {
		return errors.Wrapf(ErrBadLocation, "location=%s", l)
	}

	buf := make([]byte, d.Geometry.BlockSize)
	copy(buf, b)

	return d.store.WriteBlock(l, buf)
}

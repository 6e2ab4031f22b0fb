// Package fs is a directory plus chained-block filesystem on top of a disk.
// Track 0 holds one directory entry per block; the remaining tracks hold
// file data. Each block points at the next one in its file.
package fs

import (
	"bytes"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/exzackly/exzos/disk"
)

var (
	ErrNotFormatted     = errors.New("disk is not formatted")
	ErrFileNotFound     = errors.New("file not found")
	ErrFileExists       = errors.New("file already exists")
	ErrFilenameTooLong  = errors.New("filename too long")
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrDirectoryFull    = errors.New("directory full")
	ErrDiskFull         = errors.New("not enough free blocks")
	ErrEmptyPayload     = errors.New("nothing to write")
	ErrNotRecoverable   = errors.New("file cannot be recovered")
	ErrCorruptChain     = errors.New("block chain does not terminate")
	ErrTooSmallGeometry = errors.New("geometry has no data tracks")
)

const (
	// MaxFilename is the longest name, in bytes, a directory entry accepts.
	MaxFilename = 32

	// ProgramPrefix marks swap images of processes.
	ProgramPrefix = "~"

	// HiddenPrefix marks files left out of short listings.
	HiddenPrefix = "."

	// DateLayout is how creation dates are recorded.
	DateLayout = "01/02/2006"
)

var (
	mbrLocation = disk.Location{}
	mbrPayload  = []byte("EXZOS MBR")
)

type Driver struct {
	L hclog.Logger

	disk *disk.Disk
	geo  disk.Geometry
	now  func() time.Time

	// filename -> directory block location
	dirCache *lru.ARCCache
}

func NewDriver(d *disk.Disk, l hclog.Logger, now func() time.Time) (*Driver, error) {
	if d.Geometry.Tracks < 2 {
		return nil, errors.Wrapf(ErrTooSmallGeometry, "tracks=%d", d.Geometry.Tracks)
	}

	if l == nil {
		l = hclog.NewNullLogger()
	}

	if now == nil {
		now = time.Now
	}

	cache, err := lru.NewARC(64)
	if err != nil {
		return nil, err
	}

	return &Driver{
		L:        l,
		disk:     d,
		geo:      d.Geometry,
		now:      now,
		dirCache: cache,
	}, nil
}

func (d *Driver) Geometry() disk.Geometry {
	return d.geo
}

// Formatted reports whether the MBR carries the sentinel payload.
func (d *Driver) Formatted() bool {
	b, err := d.disk.Read(mbrLocation)
	if err != nil {
		return false
	}

	return b.Used() && bytes.HasPrefix(b.Payload(), mbrPayload)
}

func (d *Driver) checkFormatted() error {
	if !d.Formatted() {
		return ErrNotFormatted
	}

	return nil
}

// Format reinitializes the disk. A quick format only clears block headers,
// leaving payloads behind as latent data; a full format zeroes everything.
func (d *Driver) Format(quick bool) error {
	for loc := range d.geo.All() {
		var b disk.Block

		if quick {
			var err error
			b, err = d.disk.Read(loc)
			if err != nil {
				return err
			}

			b.ClearHeader()
		} else {
			b = make(disk.Block, d.geo.BlockSize)
		}

		if err := d.disk.Write(loc, b); err != nil {
			return err
		}
	}

	mbr := make(disk.Block, d.geo.BlockSize)
	mbr.SetUsed(true)
	mbr.SetPayload(mbrPayload)

	if err := d.disk.Write(mbrLocation, mbr); err != nil {
		return err
	}

	d.dirCache.Purge()

	d.L.Info("disk-formatted", "quick", quick, "blocks", d.geo.BlockCount())

	return nil
}

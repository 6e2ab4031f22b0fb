// Package disk is persistent block storage addressed by track, sector and
// block. It knows nothing about files.
package disk

import (
	"fmt"
	"iter"
)

// HeaderSize is the number of reserved bytes at the front of every block:
// the used flag and the next-block location.
const HeaderSize = 4

type Location struct {
	Track, Sector, Block int
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d:%d", l.Track, l.Sector, l.Block)
}

// IsZero reports whether l is (0,0,0), which doubles as the end-of-chain
// marker inside a block header.
func (l Location) IsZero() bool {
	return l == Location{}
}

type Geometry struct {
	Tracks    int
	Sectors   int
	Blocks    int
	BlockSize int
}

func DefaultGeometry() Geometry {
	return Geometry{
		Tracks:    4,
		Sectors:   8,
		Blocks:    8,
		BlockSize: 64,
	}
}

// Writable is the number of payload bytes one block can hold.
func (g Geometry) Writable() int {
	return g.BlockSize - HeaderSize
}

func (g Geometry) BlockCount() int {
	return g.Tracks * g.Sectors * g.Blocks
}

func (g Geometry) Size() int64 {
	return int64(g.BlockCount()) * int64(g.BlockSize)
}

func (g Geometry) Contains(l Location) bool {
	return l.Track >= 0 && l.Track < g.Tracks &&
		l.Sector >= 0 && l.Sector < g.Sectors &&
		l.Block >= 0 && l.Block < g.Blocks
}

// Index is the position of l in track-major order.
func (g Geometry) Index(l Location) int {
	return (l.Track*g.Sectors+l.Sector)*g.Blocks + l.Block
}

// Locations yields every location on tracks from..to inclusive, track-major.
// The sequence can be ranged over any number of times.
func (g Geometry) Locations(from, to int) iter.Seq[Location] {
	return func(yield func(Location) bool) {
		for t := max(from, 0); t <= to && t < g.Tracks; t++ {
			for s := 0; s < g.Sectors; s++ {
				for b := 0; b < g.Blocks; b++ {
					if !yield(Location{t, s, b}) {
						return
					}
				}
			}
		}
	}
}

// All yields every location on the disk.
func (g Geometry) All() iter.Seq[Location] {
	return g.Locations(0, g.Tracks-1)
}

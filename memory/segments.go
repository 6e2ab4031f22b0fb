package memory

import "github.com/pkg/errors"

var ErrBadSegmentRequest = errors.New("bad segment request")

// Segments tracks which fixed-size regions of memory are claimed by a
// process.
type Segments struct {
	size int
	used []bool
}

func NewSegments(total, size int) (*Segments, error) {
	if size <= 0 || total <= 0 || total%size != 0 {
		return nil, errors.Wrapf(ErrBadSegmentRequest, "total=%d, segment=%d", total, size)
	}

	return &Segments{
		size: size,
		used: make([]bool, total/size),
	}, nil
}

// Size is the number of bytes in one segment.
func (s *Segments) Size() int {
	return s.size
}

func (s *Segments) Len() int {
	return len(s.used)
}

func (s *Segments) Used() int {
	var n int
	for _, u := range s.used {
		if u {
			n++
		}
	}

	return n
}

func (s *Segments) Available() int {
	return len(s.used) - s.Used()
}

func (s *Segments) InUse(id int) bool {
	return id >= 0 && id < len(s.used) && s.used[id]
}

// Allocate claims the first free segment and returns its id, or -1 when
// every segment is in use.
func (s *Segments) Allocate() int {
	for i, u := range s.used {
		if !u {
			s.used[i] = true
			return i
		}
	}

	return -1
}

func (s *Segments) Free(id int) error {
	if id < 0 || id >= len(s.used) {
		return errors.Wrapf(ErrBadSegmentRequest, "free segment=%d", id)
	}

	s.used[id] = false

	return nil
}

func (s *Segments) Base(id int) int {
	return id * s.size
}

// SegmentOf returns the segment holding the physical address base, or -1.
func (s *Segments) SegmentOf(base int) int {
	if base < 0 || base >= s.size*len(s.used) {
		return -1
	}

	return base / s.size
}

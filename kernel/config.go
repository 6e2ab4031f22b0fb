package kernel

import (
	"io"
	"strings"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/exzackly/exzos/disk"
)

var ErrBadConfig = errors.New("bad kernel config")

type Policy int

const (
	RoundRobin Policy = iota
	FCFS
	Priority
)

func (p Policy) String() string {
	switch p {
	case RoundRobin:
		return "rr"
	case FCFS:
		return "fcfs"
	case Priority:
		return "priority"
	default:
		return "unknown"
	}
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "rr", "round-robin", "roundrobin":
		return RoundRobin, nil
	case "fcfs", "fifo":
		return FCFS, nil
	case "priority":
		return Priority, nil
	default:
		return 0, errors.Wrapf(ErrBadConfig, "unknown scheduling policy %q", s)
	}
}

type Config struct {
	MemorySize  int
	SegmentSize int

	Geometry disk.Geometry

	// Store backs the disk. Nil means an in-memory store.
	Store disk.Store

	Quantum int
	Policy  Policy

	ClockInterval time.Duration

	Logger hclog.Logger

	// Console receives program output and termination notices.
	Console io.Writer

	Now func() time.Time
}

func DefaultConfig() Config {
	return Config{
		MemorySize:    768,
		SegmentSize:   256,
		Geometry:      disk.DefaultGeometry(),
		Quantum:       6,
		Policy:        RoundRobin,
		ClockInterval: 100 * time.Millisecond,
	}
}

func (c *Config) Validate() error {
	switch {
	case c.MemorySize <= 0 || c.SegmentSize <= 0:
		return errors.Wrapf(ErrBadConfig, "memory=%d segment=%d", c.MemorySize, c.SegmentSize)
	case c.MemorySize%c.SegmentSize != 0:
		return errors.Wrapf(ErrBadConfig, "memory %d is not a multiple of segment size %d", c.MemorySize, c.SegmentSize)
	case c.SegmentSize > 1<<16:
		return errors.Wrapf(ErrBadConfig, "segment size %d exceeds the 16-bit logical address space", c.SegmentSize)
	case c.Geometry.BlockSize <= disk.HeaderSize:
		return errors.Wrapf(ErrBadConfig, "block size %d leaves no payload", c.Geometry.BlockSize)
	case c.Quantum < 1:
		return errors.Wrapf(ErrBadConfig, "quantum %d", c.Quantum)
	case c.ClockInterval <= 0:
		return errors.Wrapf(ErrBadConfig, "clock interval %s", c.ClockInterval)
	}

	return nil
}

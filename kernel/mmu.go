package kernel

import (
	"strconv"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/exzackly/exzos/abi"
	"github.com/exzackly/exzos/fs"
	"github.com/exzackly/exzos/memory"
)

var ErrInsufficientMemory = errors.New("insufficient memory")

// SwapName is the disk file holding the image of a rolled out process.
func SwapName(pid int) string {
	return fs.ProgramPrefix + strconv.Itoa(pid)
}

// MMU checks and translates every CPU access against the bound process's
// window, and moves images between segments and the swap files.
type MMU struct {
	L hclog.Logger

	k        *Kernel
	mem      *memory.Memory
	segments *memory.Segments
}

func (m *MMU) current() *Process {
	p, _ := m.k.processes.Get(m.k.cpu.Pid())
	return p
}

func (m *MMU) Read(addr, sz int) ([]byte, bool) {
	return m.readFor(m.current(), addr, sz)
}

func (m *MMU) Write(addr int, data []byte) bool {
	return m.writeFor(m.current(), addr, data)
}

func (m *MMU) window(p *Process, addr, sz int) (int, bool) {
	if p == nil || !p.InMemory() || !memory.IsValid(addr, sz, p.Base, p.Limit) {
		return 0, false
	}

	return memory.Translate(addr, p.Base), true
}

func (m *MMU) readFor(p *Process, addr, sz int) ([]byte, bool) {
	phys, ok := m.window(p, addr, sz)
	if ok {
		data, err := m.mem.Read(phys, sz)
		if err == nil {
			return data, true
		}

		m.L.Error("physical-read-failed", "addr", phys, "size", sz, "error", err)
	}

	m.violation(p, addr, sz)

	return make([]byte, sz), false
}

func (m *MMU) writeFor(p *Process, addr int, data []byte) bool {
	phys, ok := m.window(p, addr, len(data))
	if ok {
		err := m.mem.Write(phys, data)
		if err == nil {
			return true
		}

		m.L.Error("physical-write-failed", "addr", phys, "size", len(data), "error", err)
	}

	m.violation(p, addr, len(data))

	return false
}

func (m *MMU) violation(p *Process, addr, sz int) {
	pid := -1
	if p != nil {
		pid = p.Pid
	}

	m.L.Warn("memory-access-violation", "pid", pid, "addr", addr, "size", sz)

	m.k.Raise(abi.Interrupt{IRQ: abi.MemoryAccessViolation, Params: abi.Fault{Pid: pid}})
}

// DetermineBase claims the first free segment and returns its physical
// base, or -1 when memory is full.
func (m *MMU) DetermineBase() int {
	id := m.segments.Allocate()
	if id < 0 {
		return -1
	}

	return m.segments.Base(id)
}

// place claims a free segment for p and copies image into it. Segments are
// cleared when claimed, so a freed segment keeps its bytes until reuse.
func (m *MMU) place(p *Process, image []byte) bool {
	base := m.DetermineBase()
	if base < 0 {
		return false
	}

	sz := m.segments.Size()
	m.mem.Zero(base, sz)
	m.mem.Write(base, image)

	p.Base = base
	p.Limit = base + sz

	return true
}

// CreateProcess builds the PCB for image and places it in a free segment, or
// on disk when memory is full.
func (m *MMU) CreateProcess(image []byte, priority int) (*Process, error) {
	sz := m.segments.Size()

	if len(image) > sz {
		return nil, errors.Wrapf(ErrInsufficientMemory, "image of %d bytes exceeds segment size %d", len(image), sz)
	}

	p := &Process{
		Kernel:   m.k,
		Priority: priority,
		Base:     -1,
		Limit:    -1,
	}

	m.k.processes.AssignPid(p)

	if m.place(p, image) {
		m.L.Debug("process-created", "pid", p.Pid, "base", p.Base, "limit", p.Limit)
		return p, nil
	}

	padded := make([]byte, sz)
	copy(padded, image)

	if err := m.writeSwap(p.Pid, padded); err != nil {
		return nil, errors.Wrapf(ErrInsufficientMemory, "no free segment and swap failed: %s", err)
	}

	m.L.Debug("process-created-on-disk", "pid", p.Pid, "file", SwapName(p.Pid))

	return p, nil
}

func (m *MMU) writeSwap(pid int, image []byte) error {
	d := m.k.fs
	name := SwapName(pid)

	if !d.Exists(name) {
		if err := d.Create(name); err != nil {
			return err
		}
	}

	if err := d.Write(name, image); err != nil {
		d.Delete(name)
		return err
	}

	return nil
}

// RollOut moves the segment of p into its swap file and frees the segment.
// Memory is untouched unless the disk write succeeds.
func (m *MMU) RollOut(p *Process) error {
	if !p.InMemory() {
		return nil
	}

	image, err := m.mem.Read(p.Base, m.segments.Size())
	if err != nil {
		return err
	}

	if err := m.writeSwap(p.Pid, image); err != nil {
		return errors.Wrapf(err, "roll out pid=%d", p.Pid)
	}

	m.freeSegment(p)

	m.L.Debug("process-rolled-out", "pid", p.Pid)

	return nil
}

// RollIn reads the swap file of p into a free segment and deletes the file.
func (m *MMU) RollIn(p *Process) error {
	if p.InMemory() {
		return nil
	}

	name := SwapName(p.Pid)

	image, err := m.k.fs.Read(name)
	if err != nil {
		return errors.Wrapf(err, "roll in pid=%d", p.Pid)
	}

	if len(image) > m.segments.Size() {
		return errors.Wrapf(ErrInsufficientMemory, "swap image of %d bytes", len(image))
	}

	if !m.place(p, image) {
		return errors.Wrapf(ErrInsufficientMemory, "roll in pid=%d", p.Pid)
	}

	if err := m.k.fs.Delete(name); err != nil {
		m.L.Warn("swap-delete-failed", "pid", p.Pid, "error", err)
	}

	m.L.Debug("process-rolled-in", "pid", p.Pid, "base", p.Base)

	return nil
}

func (m *MMU) freeSegment(p *Process) {
	id := m.segments.SegmentOf(p.Base)

	if err := m.segments.Free(id); err != nil {
		m.L.Error("segment-free-failed", "pid", p.Pid, "base", p.Base, "error", err)
	}

	p.Base = -1
	p.Limit = -1
}

// Release gives back whatever p is holding: its segment or its swap file.
func (m *MMU) Release(p *Process) {
	if p.InMemory() {
		m.freeSegment(p)
		return
	}

	name := SwapName(p.Pid)
	if m.k.fs.Exists(name) {
		if err := m.k.fs.Delete(name); err != nil {
			m.L.Warn("swap-delete-failed", "pid", p.Pid, "error", err)
		}
	}
}

package kernel

import (
	"bytes"
	"context"
	"io"
	"slices"

	"github.com/pkg/errors"

	"github.com/exzackly/exzos/abi"
	"github.com/exzackly/exzos/exec"
)

var (
	ErrProcessNotFound = errors.New("no such process")
	ErrAlreadyRunning  = errors.New("process already running")
	ErrNothingToRun    = errors.New("nothing to run")
)

type prockey struct{}

func GetTask(ctx context.Context) (*Task, bool) {
	if v := ctx.Value(prockey{}); v != nil {
		return v.(*Task), true
	}

	return nil, false
}

func SetTask(ctx context.Context, t *Task) context.Context {
	return context.WithValue(ctx, prockey{}, t)
}

// Task is a process as seen from a system call.
type Task struct {
	*Process
}

func (t *Task) Console() io.Writer {
	return t.Kernel.console
}

// ReadCString reads the NUL-terminated string at logical address ptr of the
// task's segment.
func (t *Task) ReadCString(ptr int) ([]byte, error) {
	var buf bytes.Buffer

	for off := ptr; ; off++ {
		b, ok := t.Kernel.mmu.readFor(t.Process, off, 1)
		if !ok {
			return nil, errors.Wrapf(ErrInsufficientMemory, "string at %04X runs out of the segment", ptr)
		}

		if b[0] == 0 {
			break
		}

		buf.WriteByte(b[0])
	}

	return buf.Bytes(), nil
}

type ExitStatus struct {
	Reason     abi.ExitReason
	WaitCycles int
	ExecCycles int
}

// Process is the process control block.
type Process struct {
	Kernel *Kernel

	Pid int

	// Base and Limit bound the physical window. Both are -1 while the image
	// lives on disk.
	Base  int
	Limit int

	// Priority orders the priority policy; lower runs first.
	Priority int

	Regs exec.Registers

	Executing bool

	WaitCycles int
	ExecCycles int
}

func (p *Process) InMemory() bool {
	return p.Base != -1
}

// ProcessManager owns the resident list: every loaded process, in memory or
// on disk.
type ProcessManager struct {
	nextPid  int
	resident []*Process
	exited   map[int]ExitStatus
}

func NewProcessManager() *ProcessManager {
	return &ProcessManager{
		exited: make(map[int]ExitStatus),
	}
}

// AssignPid gives proc the next pid. Pids are never reused.
func (pm *ProcessManager) AssignPid(proc *Process) int {
	proc.Pid = pm.nextPid
	pm.nextPid++

	return proc.Pid
}

func (pm *ProcessManager) Add(proc *Process) {
	pm.resident = append(pm.resident, proc)
}

func (pm *ProcessManager) Get(pid int) (*Process, bool) {
	for _, p := range pm.resident {
		if p.Pid == pid {
			return p, true
		}
	}

	return nil, false
}

func (pm *ProcessManager) RemoveProc(proc *Process) {
	pm.resident = slices.DeleteFunc(pm.resident, func(p *Process) bool {
		return p == proc
	})
}

func (pm *ProcessManager) List() []*Process {
	return slices.Clone(pm.resident)
}

func (pm *ProcessManager) Len() int {
	return len(pm.resident)
}

// Sort orders the resident list for policy: by pid, or by priority for the
// priority policy.
func (pm *ProcessManager) Sort(policy Policy) {
	slices.SortStableFunc(pm.resident, func(a, b *Process) int {
		if policy == Priority && a.Priority != b.Priority {
			return a.Priority - b.Priority
		}

		return a.Pid - b.Pid
	})
}

// InMemory counts resident processes that hold a segment.
func (pm *ProcessManager) InMemory() int {
	var n int
	for _, p := range pm.resident {
		if p.InMemory() {
			n++
		}
	}

	return n
}

func (pm *ProcessManager) exit(pid int, st ExitStatus) {
	pm.exited[pid] = st
}

func (pm *ProcessManager) ExitStatus(pid int) (ExitStatus, bool) {
	st, ok := pm.exited[pid]
	return st, ok
}

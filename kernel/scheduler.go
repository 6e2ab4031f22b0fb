package kernel

import (
	"slices"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/exzackly/exzos/abi"
)

// Scheduler owns the ready queue. The head of the queue is the process bound
// to the CPU.
type Scheduler struct {
	L hclog.Logger

	k *Kernel

	policy  Policy
	quantum int

	// remaining counts cycles left in the current quantum, or -1 when the
	// policy never preempts.
	remaining int

	ready []int
}

func (s *Scheduler) Policy() Policy {
	return s.policy
}

func (s *Scheduler) Quantum() int {
	return s.quantum
}

func (s *Scheduler) Remaining() int {
	return s.remaining
}

func (s *Scheduler) Ready() []int {
	return slices.Clone(s.ready)
}

func (s *Scheduler) SetPolicy(p Policy) {
	s.policy = p
	s.k.processes.Sort(p)
	s.resetQuantum()

	s.L.Info("scheduling-policy", "policy", p.String(), "quantum", s.remaining)
}

// SetQuantum changes the round robin quantum. Other policies keep running
// to completion.
func (s *Scheduler) SetQuantum(q int) error {
	if q < 1 {
		return errors.Wrapf(ErrBadConfig, "quantum %d", q)
	}

	s.quantum = q

	if s.policy == RoundRobin {
		s.resetQuantum()
	}

	return nil
}

func (s *Scheduler) resetQuantum() {
	if s.policy == RoundRobin {
		s.remaining = s.quantum
	} else {
		s.remaining = -1
	}
}

func (s *Scheduler) queued(pid int) bool {
	return slices.Contains(s.ready, pid)
}

// enqueue adds pid to the ready queue. Under the priority policy it goes
// after every process of the same or higher priority, never ahead of the
// running head.
func (s *Scheduler) enqueue(p *Process) {
	if s.policy != Priority {
		s.ready = append(s.ready, p.Pid)
		return
	}

	start := 0
	if s.k.cpu.Executing() && len(s.ready) > 0 {
		start = 1
	}

	at := len(s.ready)
	for i := start; i < len(s.ready); i++ {
		other, ok := s.k.processes.Get(s.ready[i])
		if ok && other.Priority > p.Priority {
			at = i
			break
		}
	}

	s.ready = slices.Insert(s.ready, at, p.Pid)
}

func (s *Scheduler) remove(pid int) {
	s.ready = slices.DeleteFunc(s.ready, func(q int) bool {
		return q == pid
	})
}

func (s *Scheduler) Run(pid int) error {
	p, ok := s.k.processes.Get(pid)
	if !ok {
		return errors.Wrapf(ErrProcessNotFound, "pid=%d", pid)
	}

	if s.queued(pid) {
		return errors.Wrapf(ErrAlreadyRunning, "pid=%d", pid)
	}

	s.enqueue(p)

	if !s.k.cpu.Executing() {
		s.dispatch()
	}

	return nil
}

func (s *Scheduler) RunAll() error {
	if s.k.processes.Len() == 0 {
		return ErrNothingToRun
	}

	if len(s.ready) > 0 {
		return errors.Wrapf(ErrAlreadyRunning, "%d processes in the ready queue", len(s.ready))
	}

	for _, p := range s.k.processes.List() {
		s.ready = append(s.ready, p.Pid)
	}

	s.dispatch()

	return nil
}

// CPUDidCycle charges the cycle to the ready queue and counts down the
// quantum.
func (s *Scheduler) CPUDidCycle() {
	for i, pid := range s.ready {
		p, ok := s.k.processes.Get(pid)
		if !ok {
			continue
		}

		if i == 0 {
			p.ExecCycles++
		} else {
			p.WaitCycles++
		}
	}

	if s.remaining < 0 {
		return
	}

	s.remaining--
	if s.remaining > 0 {
		return
	}

	if len(s.ready) > 1 {
		s.k.Raise(abi.Interrupt{IRQ: abi.ContextSwitch, Params: abi.Switch{Pid: s.ready[0]}})
	}

	s.resetQuantum()
}

// contextSwitch moves the head to the tail and dispatches the next process.
// A switch for a process that is no longer the running head is dropped.
func (s *Scheduler) contextSwitch(pid int) {
	if s.policy != RoundRobin || len(s.ready) < 2 || s.ready[0] != pid || s.k.cpu.Pid() != pid {
		s.L.Trace("stale-context-switch", "pid", pid)
		return
	}

	if p, ok := s.k.processes.Get(pid); ok {
		s.k.cpu.StoreProcess(&p.Regs)
		p.Executing = false
	}

	s.k.cpu.Unload()

	s.ready = append(s.ready[1:], pid)

	s.L.Debug("context-switch", "from", pid, "to", s.ready[0])

	s.dispatch()
}

// dispatch binds the CPU to the head of the ready queue, rolling it in from
// disk first if needed. Heads that cannot be rolled in are terminated.
func (s *Scheduler) dispatch() {
	for len(s.ready) > 0 {
		pid := s.ready[0]

		p, ok := s.k.processes.Get(pid)
		if !ok {
			s.ready = s.ready[1:]
			continue
		}

		if !p.InMemory() {
			if err := s.swapIn(p); err != nil {
				s.L.Error("roll-in-failed", "pid", pid, "error", err)
				s.k.reap(p, abi.CorruptImage)
				continue
			}
		}

		s.k.cpu.LoadProcess(pid, &p.Regs)
		p.Executing = true
		s.resetQuantum()

		return
	}

	s.k.cpu.Unload()
}

func (s *Scheduler) swapIn(p *Process) error {
	if s.k.segments.Available() == 0 {
		v := s.victim(p)
		if v == nil {
			return errors.Wrapf(ErrInsufficientMemory, "no process to roll out for pid=%d", p.Pid)
		}

		if err := s.k.mmu.RollOut(v); err != nil {
			return err
		}
	}

	return s.k.mmu.RollIn(p)
}

// victim picks the process to roll out: the memory resident process nearest
// the tail of the ready queue, else any idle one holding a segment.
func (s *Scheduler) victim(exclude *Process) *Process {
	for i := len(s.ready) - 1; i > 0; i-- {
		p, ok := s.k.processes.Get(s.ready[i])
		if ok && p != exclude && p.InMemory() {
			return p
		}
	}

	list := s.k.processes.List()
	for i := len(list) - 1; i >= 0; i-- {
		p := list[i]
		if p != exclude && p.InMemory() && !p.Executing {
			return p
		}
	}

	return nil
}

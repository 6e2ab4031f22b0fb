package kernel

import (
	"context"
	"fmt"
	"io"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/exzackly/exzos/abi"
	"github.com/exzackly/exzos/disk"
	"github.com/exzackly/exzos/exec"
	"github.com/exzackly/exzos/fs"
	"github.com/exzackly/exzos/loader"
	"github.com/exzackly/exzos/log"
	"github.com/exzackly/exzos/memory"
	"github.com/exzackly/exzos/pkg/waiter"
)

var (
	ErrHalted   = errors.New("kernel halted")
	ErrDiskBusy = errors.New("disk holds process images")
)

const (
	_ waiter.EventType = 1 << iota

	// StateChanged fires after every pulse and every request that changes
	// what a display would show.
	StateChanged

	ProcessExited
)

type SyscallInvoker interface {
	InvokeSyscall(ctx context.Context, call abi.Syscall) int32
}

type Kernel struct {
	L hclog.Logger

	cfg Config

	mem       *memory.Memory
	segments  *memory.Segments
	disk      *disk.Disk
	fs        *fs.Driver
	cpu       *exec.CPU
	mmu       *MMU
	sched     *Scheduler
	processes *ProcessManager
	loader    *loader.Loader

	irqs   interruptQueue
	events waiter.Waiter

	Invoker SyscallInvoker

	// Input receives keystrokes once their interrupt is serviced.
	Input func(r rune)

	console io.Writer

	ticks  uint64
	halted error
}

func NewKernel(cfg Config) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := cfg.Logger
	if l == nil {
		l = log.L.Named("kernel")
	}

	console := cfg.Console
	if console == nil {
		console = io.Discard
	}

	segments, err := memory.NewSegments(cfg.MemorySize, cfg.SegmentSize)
	if err != nil {
		return nil, err
	}

	dsk, err := disk.New(cfg.Geometry, cfg.Store)
	if err != nil {
		return nil, errors.Wrapf(ErrBadConfig, "disk: %s", err)
	}

	drv, err := fs.NewDriver(dsk, l.Named("fs"), cfg.Now)
	if err != nil {
		return nil, err
	}

	k := &Kernel{
		L:         l,
		cfg:       cfg,
		mem:       memory.NewMemory(cfg.MemorySize),
		segments:  segments,
		disk:      dsk,
		fs:        drv,
		processes: NewProcessManager(),
		console:   console,
	}

	k.loader = loader.NewLoader(loader.NewLoaderCache())
	k.loader.L = l.Named("loader")

	k.mmu = &MMU{
		L:        l.Named("mmu"),
		k:        k,
		mem:      k.mem,
		segments: segments,
	}

	k.cpu = exec.NewCPU(k.mmu, k, cfg.SegmentSize, l.Named("cpu"))

	k.sched = &Scheduler{
		L:       l.Named("sched"),
		k:       k,
		policy:  cfg.Policy,
		quantum: cfg.Quantum,
	}
	k.sched.resetQuantum()

	return k, nil
}

// Raise queues an interrupt for a later pulse.
func (k *Kernel) Raise(irq abi.Interrupt) {
	k.irqs.push(irq)
}

func (k *Kernel) Config() Config {
	return k.cfg
}

func (k *Kernel) Memory() *memory.Memory {
	return k.mem
}

func (k *Kernel) Segments() *memory.Segments {
	return k.segments
}

func (k *Kernel) Disk() *disk.Disk {
	return k.disk
}

func (k *Kernel) FS() *fs.Driver {
	return k.fs
}

func (k *Kernel) CPU() *exec.CPU {
	return k.cpu
}

func (k *Kernel) Scheduler() *Scheduler {
	return k.sched
}

func (k *Kernel) Processes() *ProcessManager {
	return k.processes
}

func (k *Kernel) ExitStatus(pid int) (ExitStatus, bool) {
	return k.processes.ExitStatus(pid)
}

func (k *Kernel) Events() *waiter.Waiter {
	return &k.events
}

func (k *Kernel) Ticks() uint64 {
	return k.ticks
}

func (k *Kernel) Pending() int {
	return k.irqs.len()
}

func (k *Kernel) Halted() error {
	return k.halted
}

func (k *Kernel) checkHalted() error {
	if k.halted != nil {
		return errors.Wrap(ErrHalted, k.halted.Error())
	}

	return nil
}

// Pulse advances the machine by one clock tick: it services the oldest
// pending interrupt if there is one, otherwise it runs one CPU cycle.
func (k *Kernel) Pulse() error {
	if err := k.checkHalted(); err != nil {
		return err
	}

	k.ticks++

	if irq, ok := k.irqs.pop(); ok {
		if err := k.service(context.Background(), irq); err != nil {
			k.Shutdown(err)
			return err
		}
	} else if k.cpu.Executing() {
		if k.cpu.Cycle() {
			k.sched.CPUDidCycle()
		}
	}

	k.events.Notify(StateChanged)

	return nil
}

// Run pulses the kernel on every clock interval until ctx is done or the
// kernel halts.
func (k *Kernel) Run(ctx context.Context) error {
	ticker := time.NewTicker(k.cfg.ClockInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := k.Pulse(); err != nil {
				return err
			}
		}
	}
}

// Shutdown halts the kernel. Every later pulse and request fails.
func (k *Kernel) Shutdown(reason error) {
	if k.halted != nil {
		return
	}

	if reason == nil {
		reason = errors.New("shutdown requested")
		k.L.Info("kernel-shutdown")
	} else {
		k.L.Error("kernel-shutdown", "reason", reason)
	}

	k.halted = reason
	k.cpu.Unload()

	for _, p := range k.processes.resident {
		p.Executing = false
	}
	k.irqs.clear()

	k.events.Notify(StateChanged)
}

// terminate ends pid and, if it held the CPU, dispatches the next process.
func (k *Kernel) terminate(pid int, reason abi.ExitReason) {
	p, ok := k.processes.Get(pid)
	if !ok {
		k.L.Debug("terminate-unknown-process", "pid", pid, "reason", reason.String())
		return
	}

	bound := k.cpu.Pid() == pid

	if bound {
		k.cpu.StoreProcess(&p.Regs)
		k.cpu.Unload()
	}

	k.reap(p, reason)

	if bound {
		k.sched.dispatch()
	}
}

// reap releases everything p holds and records its exit.
func (k *Kernel) reap(p *Process, reason abi.ExitReason) {
	p.Executing = false

	k.sched.remove(p.Pid)
	k.processes.RemoveProc(p)
	k.mmu.Release(p)

	st := ExitStatus{
		Reason:     reason,
		WaitCycles: p.WaitCycles,
		ExecCycles: p.ExecCycles,
	}

	k.processes.exit(p.Pid, st)

	k.L.Info("process-terminated", "pid", p.Pid, "reason", reason.String(), "wait", st.WaitCycles, "exec", st.ExecCycles)

	fmt.Fprintf(k.console, "pid %d terminated (%s) wait=%d exec=%d\n", p.Pid, reason, st.WaitCycles, st.ExecCycles)

	k.events.Notify(ProcessExited)
}

package kernel

import (
	"github.com/pkg/errors"

	"github.com/exzackly/exzos/abi"
)

// LoadProgram parses a hex program and creates a process for it. The process
// is resident but not ready until it is run.
func (k *Kernel) LoadProgram(src string, priority int) (int, error) {
	if err := k.checkHalted(); err != nil {
		return -1, err
	}

	image, err := k.loader.Load(src)
	if err != nil {
		return -1, err
	}

	p, err := k.mmu.CreateProcess(image, priority)
	if err != nil {
		return -1, err
	}

	k.processes.Add(p)
	k.processes.Sort(k.sched.policy)

	k.L.Info("program-loaded", "pid", p.Pid, "size", len(image), "priority", priority, "in-memory", p.InMemory())

	k.events.Notify(StateChanged)

	return p.Pid, nil
}

func (k *Kernel) RunProcess(pid int) error {
	if err := k.checkHalted(); err != nil {
		return err
	}

	if err := k.sched.Run(pid); err != nil {
		return err
	}

	k.events.Notify(StateChanged)

	return nil
}

func (k *Kernel) RunAll() error {
	if err := k.checkHalted(); err != nil {
		return err
	}

	if err := k.sched.RunAll(); err != nil {
		return err
	}

	k.events.Notify(StateChanged)

	return nil
}

// KillProcess queues the termination of pid.
func (k *Kernel) KillProcess(pid int) error {
	if err := k.checkHalted(); err != nil {
		return err
	}

	if _, ok := k.processes.Get(pid); !ok {
		return errors.Wrapf(ErrProcessNotFound, "pid=%d", pid)
	}

	k.Raise(abi.Interrupt{IRQ: abi.Terminate, Params: abi.Kill{Pid: pid, Reason: abi.Killed}})

	return nil
}

func (k *Kernel) SetSchedulingPolicy(p Policy) {
	k.sched.SetPolicy(p)
	k.events.Notify(StateChanged)
}

func (k *Kernel) SetQuantum(q int) error {
	return k.sched.SetQuantum(q)
}

func (k *Kernel) Keypress(r rune) {
	k.Raise(abi.Interrupt{IRQ: abi.Keyboard, Params: abi.Key{Rune: r}})
}

// Request queues a filesystem operation. Its reply arrives when the disk
// interrupt is serviced.
func (k *Kernel) Request(req *abi.DiskRequest) error {
	if err := k.checkHalted(); err != nil {
		return err
	}

	k.Raise(abi.Interrupt{IRQ: abi.Disk, Params: req})

	return nil
}

func (k *Kernel) CreateFile(name string, reply func(abi.DiskResult)) error {
	return k.Request(&abi.DiskRequest{Op: abi.DiskCreate, Filename: name, Reply: reply})
}

func (k *Kernel) ReadFile(name string, reply func(abi.DiskResult)) error {
	return k.Request(&abi.DiskRequest{Op: abi.DiskRead, Filename: name, Reply: reply})
}

func (k *Kernel) WriteFile(name string, data []byte, reply func(abi.DiskResult)) error {
	return k.Request(&abi.DiskRequest{Op: abi.DiskWrite, Filename: name, Data: data, Reply: reply})
}

func (k *Kernel) DeleteFile(name string, reply func(abi.DiskResult)) error {
	return k.Request(&abi.DiskRequest{Op: abi.DiskDelete, Filename: name, Reply: reply})
}

func (k *Kernel) ListFiles(long bool, reply func(abi.DiskResult)) error {
	return k.Request(&abi.DiskRequest{Op: abi.DiskList, Long: long, Reply: reply})
}

func (k *Kernel) FormatDisk(quick bool, reply func(abi.DiskResult)) error {
	return k.Request(&abi.DiskRequest{Op: abi.DiskFormat, Quick: quick, Reply: reply})
}

func (k *Kernel) RenameFile(from, to string, reply func(abi.DiskResult)) error {
	return k.Request(&abi.DiskRequest{Op: abi.DiskRename, Filename: from, NewName: to, Reply: reply})
}

func (k *Kernel) RecoverFile(name string, reply func(abi.DiskResult)) error {
	return k.Request(&abi.DiskRequest{Op: abi.DiskRecover, Filename: name, Reply: reply})
}

func (k *Kernel) CheckDisk(reply func(abi.DiskResult)) error {
	return k.Request(&abi.DiskRequest{Op: abi.DiskCheck, Reply: reply})
}

package kernel

import (
	"context"

	"github.com/pkg/errors"

	"github.com/exzackly/exzos/abi"
)

var ErrKernelTrap = errors.New("kernel trap")

// interruptQueue is a FIFO of pending interrupts, serviced one per pulse.
type interruptQueue struct {
	pending []abi.Interrupt
}

func (q *interruptQueue) push(irq abi.Interrupt) {
	q.pending = append(q.pending, irq)
}

func (q *interruptQueue) pop() (abi.Interrupt, bool) {
	if len(q.pending) == 0 {
		return abi.Interrupt{}, false
	}

	irq := q.pending[0]
	q.pending[0] = abi.Interrupt{}
	q.pending = q.pending[1:]

	return irq, true
}

func (q *interruptQueue) len() int {
	return len(q.pending)
}

func (q *interruptQueue) clear() {
	q.pending = nil
}

func mismatch(irq abi.Interrupt) error {
	return errors.Wrapf(ErrKernelTrap, "%s interrupt carries %T", irq.IRQ, irq.Params)
}

// service handles one interrupt. An error is fatal to the kernel.
func (k *Kernel) service(ctx context.Context, irq abi.Interrupt) error {
	k.L.Trace("service-interrupt", "irq", irq.IRQ.String())

	switch irq.IRQ {
	case abi.Keyboard:
		key, ok := irq.Params.(abi.Key)
		if !ok {
			return mismatch(irq)
		}

		if k.Input != nil {
			k.Input(key.Rune)
		}
	case abi.SystemCall:
		call, ok := irq.Params.(abi.Syscall)
		if !ok {
			return mismatch(irq)
		}

		k.syscall(ctx, call)
	case abi.Disk:
		req, ok := irq.Params.(*abi.DiskRequest)
		if !ok || req == nil {
			return mismatch(irq)
		}

		return k.serviceDisk(req)
	case abi.ContextSwitch:
		sw, ok := irq.Params.(abi.Switch)
		if !ok {
			return mismatch(irq)
		}

		k.sched.contextSwitch(sw.Pid)
	case abi.Terminate:
		kill, ok := irq.Params.(abi.Kill)
		if !ok {
			return mismatch(irq)
		}

		k.terminate(kill.Pid, kill.Reason)
	case abi.MemoryAccessViolation:
		f, ok := irq.Params.(abi.Fault)
		if !ok {
			return mismatch(irq)
		}

		k.terminate(f.Pid, abi.MemoryViolation)
	case abi.InvalidOpcode:
		f, ok := irq.Params.(abi.Fault)
		if !ok {
			return mismatch(irq)
		}

		k.terminate(f.Pid, abi.IllegalInstruction)
	default:
		return errors.Wrapf(ErrKernelTrap, "unknown interrupt %s", irq.IRQ)
	}

	return nil
}

func (k *Kernel) syscall(ctx context.Context, call abi.Syscall) {
	p, ok := k.processes.Get(call.Pid)
	if !ok {
		k.L.Warn("syscall-from-dead-process", "pid", call.Pid)
		return
	}

	if k.Invoker == nil {
		k.L.Warn("no-syscall-invoker", "pid", call.Pid, "function", call.Function)
		return
	}

	ret := k.Invoker.InvokeSyscall(SetTask(ctx, &Task{p}), call)

	k.L.Trace("syscall-return", "pid", call.Pid, "function", call.Function, "ret", ret)
}

func (k *Kernel) serviceDisk(req *abi.DiskRequest) error {
	var res abi.DiskResult

	switch req.Op {
	case abi.DiskCreate:
		res.Err = k.fs.Create(req.Filename)
	case abi.DiskRead:
		res.Data, res.Err = k.fs.Read(req.Filename)
	case abi.DiskWrite:
		res.Err = k.fs.Write(req.Filename, req.Data)
	case abi.DiskDelete:
		res.Err = k.fs.Delete(req.Filename)
	case abi.DiskList:
		ents, err := k.fs.List(req.Long)
		res.Err = err
		for _, ent := range ents {
			res.Entries = append(res.Entries, abi.DirEntry{
				Name:    ent.Name,
				Size:    ent.Size,
				Created: ent.Created,
				Track:   ent.Location.Track,
				Sector:  ent.Location.Sector,
				Block:   ent.Location.Block,
			})
		}
	case abi.DiskFormat:
		if n := k.swapped(); n > 0 {
			res.Err = errors.Wrapf(ErrDiskBusy, "%d process images on disk", n)
		} else {
			res.Err = k.fs.Format(req.Quick)
		}
	case abi.DiskRename:
		res.Err = k.fs.Rename(req.Filename, req.NewName)
	case abi.DiskRecover:
		res.Err = k.fs.Recover(req.Filename)
	case abi.DiskCheck:
		res.Report, res.Err = k.fs.Check()
	default:
		return errors.Wrapf(ErrKernelTrap, "unknown disk request %s", req.Op)
	}

	if res.Err != nil {
		k.L.Warn("disk-request-failed", "op", req.Op.String(), "name", req.Filename, "error", res.Err)
	} else {
		k.L.Debug("disk-request", "op", req.Op.String(), "name", req.Filename)
	}

	if req.Reply != nil {
		req.Reply(res)
	}

	return nil
}

func (k *Kernel) swapped() int {
	return k.processes.Len() - k.processes.InMemory()
}

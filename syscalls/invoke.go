package syscalls

import (
	"context"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/exzackly/exzos/abi"
	"github.com/exzackly/exzos/kernel"
	"github.com/exzackly/exzos/log"
)

type Invoker struct {
	L hclog.Logger
}

func (i *Invoker) logger() hclog.Logger {
	if i.L != nil {
		return i.L
	}

	return log.L
}

func (i *Invoker) InvokeSyscall(ctx context.Context, call abi.Syscall) int32 {
	l := i.logger()

	p, ok := kernel.GetTask(ctx)
	if !ok {
		l.Error("syscall-without-task", "function", call.Function)
		return -1
	}

	if f := Syscalls[call.Function]; f != nil {
		return f(ctx, l, p, SysArgs{Index: call.Function, Arg: call.Arg})
	}

	l.Warn("unknown-syscall", "pid", p.Pid, "function", call.Function)

	return -1
}

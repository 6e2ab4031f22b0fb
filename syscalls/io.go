package syscalls

import (
	"context"
	"fmt"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/exzackly/exzos/abi"
	"github.com/exzackly/exzos/kernel"
)

func sysPrintInt(ctx context.Context, l hclog.Logger, task *kernel.Task, args SysArgs) int32 {
	n, err := fmt.Fprintf(task.Console(), "%d", args.Arg)
	if err != nil {
		l.Error("console-write-failed", "pid", task.Pid, "error", err)
		return -1
	}

	return int32(n)
}

func sysPrintString(ctx context.Context, l hclog.Logger, task *kernel.Task, args SysArgs) int32 {
	s, err := task.ReadCString(int(args.Arg))
	if err != nil {
		l.Error("error reading string from userspace", "pid", task.Pid, "ptr", args.Arg, "error", err)
		return -1
	}

	n, err := task.Console().Write(s)
	if err != nil {
		l.Error("console-write-failed", "pid", task.Pid, "error", err)
		return -1
	}

	return int32(n)
}

func init() {
	Syscalls[abi.SysPrintInt] = sysPrintInt
	Syscalls[abi.SysPrintString] = sysPrintString
}

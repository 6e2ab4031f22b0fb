package syscalls

import (
	"context"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/exzackly/exzos/kernel"
)

// SysArgs are the registers at the time of the trap: X selects the function,
// Y is its argument.
type SysArgs struct {
	Index byte
	Arg   byte
}

var Syscalls [256]func(context.Context, hclog.Logger, *kernel.Task, SysArgs) int32

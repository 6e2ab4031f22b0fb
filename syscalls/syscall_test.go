package syscalls

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"

	"github.com/exzackly/exzos/abi"
	"github.com/exzackly/exzos/kernel"
)

func boot(t *testing.T) (*kernel.Kernel, *bytes.Buffer) {
	var console bytes.Buffer

	cfg := kernel.DefaultConfig()
	cfg.Console = &console

	k, err := kernel.NewKernel(cfg)
	require.NoError(t, err)

	require.NoError(t, k.FS().Format(true))

	k.Invoker = &Invoker{}

	return k, &console
}

func runToExit(t *testing.T, k *kernel.Kernel, pid int) {
	require.NoError(t, k.RunProcess(pid))

	for i := 0; i < 1000; i++ {
		if _, ok := k.Processes().ExitStatus(pid); ok {
			return
		}

		require.NoError(t, k.Pulse())
	}

	t.Fatalf("pid %d never exited", pid)
}

func TestSyscalls(t *testing.T) {
	n := neko.Modern(t)

	n.It("prints numbers and strings", func(t *testing.T) {
		k, console := boot(t)

		src := strings.Join([]string{
			"A2 01 A0 2A FF", // print 42
			"A2 02 A0 0B FF", // print the string at 0B
			"00",
			"48 49 00",
		}, " ")

		pid, err := k.LoadProgram(src, 0)
		require.NoError(t, err)

		runToExit(t, k, pid)

		require.True(t, strings.HasPrefix(console.String(), "42HI"), console.String())
	})

	n.It("returns -1 for unknown functions", func(t *testing.T) {
		k, console := boot(t)

		pid, err := k.LoadProgram("00", 0)
		require.NoError(t, err)

		p, ok := k.Processes().Get(pid)
		require.True(t, ok)

		ctx := kernel.SetTask(context.Background(), &kernel.Task{Process: p})

		inv := &Invoker{}
		require.Equal(t, int32(-1), inv.InvokeSyscall(ctx, abi.Syscall{Pid: pid, Function: 9}))
		require.Equal(t, int32(-1), inv.InvokeSyscall(context.Background(), abi.Syscall{Pid: pid, Function: 1}))

		require.Equal(t, int32(3), inv.InvokeSyscall(ctx, abi.Syscall{Pid: pid, Function: abi.SysPrintInt, Arg: 255}))
		require.Equal(t, "255", console.String())
	})

	n.It("faults on a string that runs off the segment", func(t *testing.T) {
		k, _ := boot(t)

		pid, err := k.LoadProgram("00", 0)
		require.NoError(t, err)

		p, _ := k.Processes().Get(pid)
		require.NoError(t, k.Memory().Write(p.Base, bytes.Repeat([]byte{'z'}, 256)))

		ctx := kernel.SetTask(context.Background(), &kernel.Task{Process: p})

		inv := &Invoker{}
		require.Equal(t, int32(-1), inv.InvokeSyscall(ctx, abi.Syscall{Pid: pid, Function: abi.SysPrintString}))
		require.Equal(t, 1, k.Pending())
	})

	n.Meow()
}

package kernel

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"

	"github.com/exzackly/exzos/abi"
)

const (
	storeTwo = "A9 02 8D 07 00 00 00 00"

	// loops forever: LDX #1; CPX $000A; BNE back to the CPX
	spin = "A2 01 EC 0A 00 D0 FB"
)

func fixedClock() time.Time {
	return time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
}

func newTestKernel(t *testing.T, opts ...func(*Config)) (*Kernel, *bytes.Buffer) {
	var console bytes.Buffer

	cfg := DefaultConfig()
	cfg.Console = &console
	cfg.Now = fixedClock
	cfg.ClockInterval = time.Millisecond

	for _, o := range opts {
		o(&cfg)
	}

	k, err := NewKernel(cfg)
	require.NoError(t, err)

	require.NoError(t, k.FS().Format(false))

	return k, &console
}

func pulse(t *testing.T, k *Kernel, n int) {
	for i := 0; i < n; i++ {
		require.NoError(t, k.Pulse())
	}
}

// waitExit pulses until pid has exited and returns its status.
func waitExit(t *testing.T, k *Kernel, pid int) ExitStatus {
	for i := 0; i < 10000; i++ {
		if st, ok := k.Processes().ExitStatus(pid); ok {
			return st
		}

		require.NoError(t, k.Pulse())
	}

	t.Fatalf("pid %d never exited", pid)

	return ExitStatus{}
}

func segmentsAgree(t *testing.T, k *Kernel) {
	require.Equal(t, k.Segments().Used(), k.Processes().InMemory())

	for _, p := range k.Processes().List() {
		if p.InMemory() {
			require.True(t, k.Segments().InUse(k.Segments().SegmentOf(p.Base)), "pid %d", p.Pid)
		}
	}
}

func TestKernel(t *testing.T) {
	n := neko.Modern(t)

	n.It("runs a program to a break", func(t *testing.T) {
		k, console := newTestKernel(t)

		pid, err := k.LoadProgram(storeTwo, 0)
		require.NoError(t, err)

		p, ok := k.Processes().Get(pid)
		require.True(t, ok)
		base := p.Base

		require.NoError(t, k.RunProcess(pid))

		st := waitExit(t, k, pid)
		require.Equal(t, abi.Break, st.Reason)
		require.Equal(t, 3, st.ExecCycles)

		b, err := k.Memory().Read(base+7, 1)
		require.NoError(t, err)
		require.Equal(t, []byte{0x02}, b)

		require.Contains(t, console.String(), "pid 0 terminated (break) wait=0 exec=3")

		require.False(t, k.CPU().Executing())
		require.Equal(t, -1, k.CPU().Pid())
		require.Equal(t, 0, k.Segments().Used())
	})

	n.It("rejects programs that are not hex", func(t *testing.T) {
		k, _ := newTestKernel(t)

		_, err := k.LoadProgram("A9 0", 0)
		require.Error(t, err)

		_, err = k.LoadProgram("ZZ", 0)
		require.Error(t, err)

		require.Equal(t, 0, k.Processes().Len())
	})

	n.It("hands out increasing pids", func(t *testing.T) {
		k, _ := newTestKernel(t)

		a, err := k.LoadProgram(storeTwo, 0)
		require.NoError(t, err)

		require.NoError(t, k.RunProcess(a))
		waitExit(t, k, a)

		b, err := k.LoadProgram(storeTwo, 0)
		require.NoError(t, err)

		require.Greater(t, b, a)
	})

	n.It("services one interrupt per pulse in arrival order", func(t *testing.T) {
		k, _ := newTestKernel(t)

		var keys []rune
		k.Input = func(r rune) {
			keys = append(keys, r)
		}

		k.Keypress('a')
		k.Keypress('b')
		require.Equal(t, 2, k.Pending())

		pulse(t, k, 1)
		require.Equal(t, []rune{'a'}, keys)

		pulse(t, k, 1)
		require.Equal(t, []rune{'a', 'b'}, keys)
		require.Equal(t, 0, k.Pending())
	})

	n.It("lets a killed process run until the kill is serviced", func(t *testing.T) {
		k, console := newTestKernel(t)

		pid, err := k.LoadProgram(spin, 0)
		require.NoError(t, err)
		require.NoError(t, k.RunProcess(pid))

		pulse(t, k, 4)

		require.NoError(t, k.KillProcess(pid))

		p, ok := k.Processes().Get(pid)
		require.True(t, ok)
		require.True(t, p.Executing)

		st := waitExit(t, k, pid)
		require.Equal(t, abi.Killed, st.Reason)
		require.Equal(t, 4, st.ExecCycles)

		require.Contains(t, console.String(), "(killed)")
		require.ErrorIs(t, k.KillProcess(pid), ErrProcessNotFound)
	})

	n.It("terminates on a memory access violation", func(t *testing.T) {
		k, _ := newTestKernel(t)

		// LDA $0100 is one past the end of a 256 byte segment
		pid, err := k.LoadProgram("AD 00 01 00", 0)
		require.NoError(t, err)
		require.NoError(t, k.RunProcess(pid))

		st := waitExit(t, k, pid)
		require.Equal(t, abi.MemoryViolation, st.Reason)
		require.Equal(t, 0, k.Segments().Used())
	})

	n.It("drops writes outside the segment", func(t *testing.T) {
		k, _ := newTestKernel(t)

		// LDA #$77; STA $0100
		pid, err := k.LoadProgram("A9 77 8D 00 01 00", 0)
		require.NoError(t, err)

		p, ok := k.Processes().Get(pid)
		require.True(t, ok)
		require.Equal(t, 0, p.Base)
		require.Equal(t, 256, p.Limit)

		require.NoError(t, k.RunProcess(pid))

		st := waitExit(t, k, pid)
		require.Equal(t, abi.MemoryViolation, st.Reason)

		b, err := k.Memory().Read(256, 1)
		require.NoError(t, err)
		require.Equal(t, []byte{0}, b)
	})

	n.It("terminates on an invalid opcode", func(t *testing.T) {
		k, console := newTestKernel(t)

		pid, err := k.LoadProgram("EA 02", 0)
		require.NoError(t, err)
		require.NoError(t, k.RunProcess(pid))

		st := waitExit(t, k, pid)
		require.Equal(t, abi.IllegalInstruction, st.Reason)
		require.Equal(t, 1, st.ExecCycles)
		require.Contains(t, console.String(), "(invalid-opcode)")
	})

	n.It("hands system calls to the invoker with the calling task", func(t *testing.T) {
		k, _ := newTestKernel(t)

		inv := &recordingInvoker{}
		k.Invoker = inv

		// LDX #1; LDY #42; SYS; BRK
		pid, err := k.LoadProgram("A2 01 A0 2A FF 00", 0)
		require.NoError(t, err)
		require.NoError(t, k.RunProcess(pid))

		waitExit(t, k, pid)

		require.Equal(t, []abi.Syscall{{Pid: pid, Function: 1, Arg: 42}}, inv.calls)
		require.Equal(t, []int{pid}, inv.pids)
	})

	n.It("ignores system calls when no invoker is set", func(t *testing.T) {
		k, _ := newTestKernel(t)

		pid, err := k.LoadProgram("A2 01 A0 2A FF 00", 0)
		require.NoError(t, err)
		require.NoError(t, k.RunProcess(pid))

		require.Equal(t, abi.Break, waitExit(t, k, pid).Reason)
	})

	n.It("shuts down on an unknown interrupt", func(t *testing.T) {
		k, _ := newTestKernel(t)

		pid, err := k.LoadProgram(spin, 0)
		require.NoError(t, err)
		require.NoError(t, k.RunProcess(pid))

		k.Raise(abi.Interrupt{IRQ: abi.IRQ(99)})

		require.ErrorIs(t, k.Pulse(), ErrKernelTrap)
		require.ErrorIs(t, k.Halted(), ErrKernelTrap)
		require.False(t, k.CPU().Executing())

		require.ErrorIs(t, k.Pulse(), ErrHalted)

		_, err = k.LoadProgram(storeTwo, 0)
		require.ErrorIs(t, err, ErrHalted)
	})

	n.It("shuts down on mistyped interrupt params", func(t *testing.T) {
		k, _ := newTestKernel(t)

		k.Raise(abi.Interrupt{IRQ: abi.Terminate, Params: "pid 0"})

		require.ErrorIs(t, k.Pulse(), ErrKernelTrap)
	})

	n.It("shuts down on an unknown disk request", func(t *testing.T) {
		k, _ := newTestKernel(t)

		require.NoError(t, k.Request(&abi.DiskRequest{Op: abi.DiskOp(42)}))

		require.ErrorIs(t, k.Pulse(), ErrKernelTrap)
		require.ErrorIs(t, k.Request(&abi.DiskRequest{Op: abi.DiskList}), ErrHalted)
	})

	n.It("notifies listeners of state changes and exits", func(t *testing.T) {
		k, _ := newTestKernel(t)

		var changed, exited int
		k.Events().RegisterFunc(StateChanged, func() { changed++ })
		k.Events().RegisterFunc(ProcessExited, func() { exited++ })

		pid, err := k.LoadProgram(storeTwo, 0)
		require.NoError(t, err)
		require.NoError(t, k.RunProcess(pid))

		waitExit(t, k, pid)

		require.Equal(t, 1, exited)
		require.Greater(t, changed, 3)
	})

	n.It("runs on its clock until the context ends", func(t *testing.T) {
		k, _ := newTestKernel(t)

		pid, err := k.LoadProgram(storeTwo, 0)
		require.NoError(t, err)
		require.NoError(t, k.RunProcess(pid))

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		require.ErrorIs(t, k.Run(ctx), context.DeadlineExceeded)

		st, ok := k.Processes().ExitStatus(pid)
		require.True(t, ok)
		require.Equal(t, abi.Break, st.Reason)
	})

	n.It("dumps the machine state", func(t *testing.T) {
		k, _ := newTestKernel(t)

		_, err := k.LoadProgram(spin, 3)
		require.NoError(t, err)

		out := k.Dump()
		require.Contains(t, out, "Resident")
		require.Contains(t, out, "Priority: (int) 3")
	})

	n.Meow()
}

type recordingInvoker struct {
	calls []abi.Syscall
	pids  []int
}

func (r *recordingInvoker) InvokeSyscall(ctx context.Context, call abi.Syscall) int32 {
	r.calls = append(r.calls, call)

	if task, ok := GetTask(ctx); ok {
		r.pids = append(r.pids, task.Pid)
	}

	return 0
}

func TestConfig(t *testing.T) {
	n := neko.Modern(t)

	n.It("accepts the defaults", func(t *testing.T) {
		cfg := DefaultConfig()
		require.NoError(t, cfg.Validate())
		require.Equal(t, 6, cfg.Quantum)
		require.Equal(t, 768/256, cfg.MemorySize/cfg.SegmentSize)
	})

	n.It("rejects bad values", func(t *testing.T) {
		for _, mut := range []func(*Config){
			func(c *Config) { c.MemorySize = 700 },
			func(c *Config) { c.SegmentSize = 0 },
			func(c *Config) { c.Quantum = 0 },
			func(c *Config) { c.ClockInterval = 0 },
			func(c *Config) { c.Geometry.BlockSize = 4 },
		} {
			cfg := DefaultConfig()
			mut(&cfg)
			require.ErrorIs(t, cfg.Validate(), ErrBadConfig)

			_, err := NewKernel(cfg)
			require.Error(t, err)
		}
	})

	n.It("parses policy names", func(t *testing.T) {
		for in, want := range map[string]Policy{
			"rr":       RoundRobin,
			"RR":       RoundRobin,
			"fcfs":     FCFS,
			"priority": Priority,
		} {
			got, err := ParsePolicy(in)
			require.NoError(t, err)
			require.Equal(t, want, got)
			require.NotEqual(t, "unknown", got.String())
		}

		_, err := ParsePolicy("lottery")
		require.ErrorIs(t, err, ErrBadConfig)
	})

	n.Meow()
}

package kernel

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"

	"github.com/exzackly/exzos/abi"
)

func TestMMU(t *testing.T) {
	n := neko.Modern(t)

	n.It("puts a process on disk once memory is full", func(t *testing.T) {
		k, _ := newTestKernel(t)

		for i := 0; i < 3; i++ {
			pid := load(t, k, spin, 0)

			p, _ := k.Processes().Get(pid)
			require.Equal(t, i*256, p.Base)
			require.Equal(t, (i+1)*256, p.Limit)
		}

		pid := load(t, k, spin, 0)

		p, ok := k.Processes().Get(pid)
		require.True(t, ok)
		require.Equal(t, -1, p.Base)
		require.Equal(t, -1, p.Limit)
		require.False(t, p.InMemory())

		require.True(t, k.FS().Exists(SwapName(pid)))

		image, err := k.FS().Read(SwapName(pid))
		require.NoError(t, err)
		require.Len(t, image, 256)
		require.Equal(t, []byte{0xA2, 0x01, 0xEC}, image[:3])

		segmentsAgree(t, k)
	})

	n.It("rejects images larger than a segment", func(t *testing.T) {
		k, _ := newTestKernel(t)

		_, err := k.LoadProgram(strings.Repeat("EA", 257), 0)
		require.ErrorIs(t, err, ErrInsufficientMemory)

		_, err = k.LoadProgram(strings.Repeat("EA", 256), 0)
		require.NoError(t, err)
	})

	n.It("rejects a process when memory is full and the disk is unusable", func(t *testing.T) {
		cfg := DefaultConfig()
		k, err := NewKernel(cfg)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			load(t, k, spin, 0)
		}

		_, err = k.LoadProgram(spin, 0)
		require.ErrorIs(t, err, ErrInsufficientMemory)
		require.Equal(t, 3, k.Processes().Len())
	})

	n.It("rolls a segment out and back in", func(t *testing.T) {
		k, _ := newTestKernel(t)

		pid := load(t, k, spin, 0)
		p, _ := k.Processes().Get(pid)

		marker := []byte("rolled")
		require.NoError(t, k.Memory().Write(p.Base+200, marker))

		before, err := k.Memory().Read(p.Base, 256)
		require.NoError(t, err)

		require.NoError(t, k.mmu.RollOut(p))
		require.False(t, p.InMemory())
		require.Equal(t, 0, k.Segments().Used())
		require.True(t, k.FS().Exists(SwapName(pid)))

		// land in a different segment on the way back
		load(t, k, spin, 0)

		require.NoError(t, k.mmu.RollIn(p))
		require.Equal(t, 256, p.Base)
		require.False(t, k.FS().Exists(SwapName(pid)))

		after, err := k.Memory().Read(p.Base, 256)
		require.NoError(t, err)
		require.Equal(t, before, after)

		segmentsAgree(t, k)
	})

	n.It("keeps the segment when the roll out cannot be written", func(t *testing.T) {
		k, err := NewKernel(DefaultConfig())
		require.NoError(t, err)

		pid := load(t, k, spin, 0)
		p, _ := k.Processes().Get(pid)

		require.Error(t, k.mmu.RollOut(p))
		require.True(t, p.InMemory())
		require.Equal(t, 1, k.Segments().Used())
	})

	n.It("swaps processes through a short memory", func(t *testing.T) {
		k, _ := newTestKernel(t)

		for i := 0; i < 5; i++ {
			load(t, k, spin, 0)
		}

		require.NoError(t, k.RunAll())

		for i := 0; i < 400; i++ {
			pulse(t, k, 1)
			segmentsAgree(t, k)
			require.LessOrEqual(t, k.Processes().InMemory(), 3)

			if pid := k.CPU().Pid(); pid >= 0 {
				p, _ := k.Processes().Get(pid)
				require.True(t, p.InMemory())
			}
		}

		for _, p := range k.Processes().List() {
			require.Greater(t, p.ExecCycles, 0, "pid %d", p.Pid)

			if !p.InMemory() {
				require.True(t, k.FS().Exists(SwapName(p.Pid)))
			}
		}
	})

	n.It("resumes a swapped process where it stopped", func(t *testing.T) {
		k, _ := newTestKernel(t)

		// LDX #1, then INC $0020 forever
		counter := "A2 01 EE 20 00 EC 30 00 D0 F8"

		for i := 0; i < 4; i++ {
			load(t, k, counter, 0)
		}

		require.NoError(t, k.RunAll())
		pulse(t, k, 300)

		for _, p := range k.Processes().List() {
			if !p.InMemory() {
				continue
			}

			b, err := k.Memory().Read(p.Base+0x20, 1)
			require.NoError(t, err)

			// one increment per pass through the loop
			require.InDelta(t, p.ExecCycles/3, int(b[0]), 1, "pid %d", p.Pid)
		}
	})

	n.It("terminates a process whose image was lost", func(t *testing.T) {
		k, console := newTestKernel(t)

		for i := 0; i < 3; i++ {
			load(t, k, spin, 0)
		}

		lost := load(t, k, spin, 0)
		require.NoError(t, k.FS().Delete(SwapName(lost)))

		require.NoError(t, k.RunProcess(lost))

		st, ok := k.Processes().ExitStatus(lost)
		require.True(t, ok)
		require.Equal(t, abi.CorruptImage, st.Reason)
		require.Contains(t, console.String(), "(corrupt-image)")

		require.False(t, k.CPU().Executing())
		segmentsAgree(t, k)
	})

	n.It("deletes the swap file of a killed disk process", func(t *testing.T) {
		k, _ := newTestKernel(t)

		for i := 0; i < 3; i++ {
			load(t, k, spin, 0)
		}

		pid := load(t, k, spin, 0)
		require.True(t, k.FS().Exists(SwapName(pid)))

		require.NoError(t, k.KillProcess(pid))
		pulse(t, k, 1)

		require.False(t, k.FS().Exists(SwapName(pid)))

		swaps, err := k.FS().SwapFiles()
		require.NoError(t, err)
		require.Empty(t, swaps)
	})

	n.It("reads strings from a task's segment", func(t *testing.T) {
		k, _ := newTestKernel(t)

		load(t, k, spin, 0)
		pid := load(t, k, "00 48 49 00", 0)

		p, _ := k.Processes().Get(pid)
		task := &Task{p}

		s, err := task.ReadCString(1)
		require.NoError(t, err)
		require.Equal(t, "HI", string(s))

		require.NoError(t, k.Memory().Write(p.Base, bytes.Repeat([]byte{'A'}, 256)))

		_, err = task.ReadCString(0)
		require.Error(t, err)
		require.Equal(t, 1, k.Pending())
	})

	n.Meow()
}

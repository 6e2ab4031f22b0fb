package kernel

import (
	"github.com/davecgh/go-spew/spew"

	"github.com/exzackly/exzos/exec"
)

type pcbState struct {
	Pid        int
	Base       int
	Limit      int
	Priority   int
	Regs       string
	WaitCycles int
	ExecCycles int
}

type machineState struct {
	Ticks    uint64
	Policy   string
	Quantum  int
	CPUPid   int
	CPU      exec.Registers
	Ready    []int
	Pending  int
	Segments []bool
	Resident []pcbState
}

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Dump renders the scheduler and process state for debugging.
func (k *Kernel) Dump() string {
	st := machineState{
		Ticks:   k.ticks,
		Policy:  k.sched.policy.String(),
		Quantum: k.sched.remaining,
		CPUPid:  k.cpu.Pid(),
		CPU:     k.cpu.Registers(),
		Ready:   k.sched.Ready(),
		Pending: k.irqs.len(),
	}

	for i := 0; i < k.segments.Len(); i++ {
		st.Segments = append(st.Segments, k.segments.InUse(i))
	}

	for _, p := range k.processes.List() {
		st.Resident = append(st.Resident, pcbState{
			Pid:        p.Pid,
			Base:       p.Base,
			Limit:      p.Limit,
			Priority:   p.Priority,
			Regs:       p.Regs.String(),
			WaitCycles: p.WaitCycles,
			ExecCycles: p.ExecCycles,
		})
	}

	return dumpConfig.Sdump(st)
}

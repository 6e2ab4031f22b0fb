// Package abi holds the vocabulary shared between the CPU, the kernel and
// its callers: interrupt codes, their parameters and exit reasons.
package abi

import "fmt"

// IRQ identifies the subsystem that must service an interrupt.
type IRQ int

const (
	Keyboard IRQ = iota + 1
	SystemCall
	Disk
	ContextSwitch
	Terminate
	MemoryAccessViolation
	InvalidOpcode
)

func (i IRQ) String() string {
	switch i {
	case Keyboard:
		return "keyboard"
	case SystemCall:
		return "system-call"
	case Disk:
		return "disk"
	case ContextSwitch:
		return "context-switch"
	case Terminate:
		return "terminate"
	case MemoryAccessViolation:
		return "memory-access-violation"
	case InvalidOpcode:
		return "invalid-opcode"
	default:
		return fmt.Sprintf("irq(%d)", int(i))
	}
}

// Interrupt is a single entry in the kernel queue. Params must be the type
// documented for IRQ; anything else is a dispatcher mismatch.
type Interrupt struct {
	IRQ    IRQ
	Params interface{}
}

// Fault is the Params of MemoryAccessViolation and InvalidOpcode.
type Fault struct {
	Pid int
}

// Syscall is the Params of SystemCall. Function is the X register and Arg
// the Y register at the time of the trap.
type Syscall struct {
	Pid      int
	Function byte
	Arg      byte
}

// Switch is the Params of ContextSwitch. Pid is the process whose quantum ran
// out; the switch is dropped if it is no longer at the head of the queue.
type Switch struct {
	Pid int
}

// Kill is the Params of Terminate.
type Kill struct {
	Pid    int
	Reason ExitReason
}

// Key is the Params of Keyboard.
type Key struct {
	Rune rune
}

const (
	SysPrintInt    byte = 1
	SysPrintString byte = 2
)

type ExitReason int

const (
	Break ExitReason = iota
	Killed
	IllegalInstruction
	MemoryViolation
	CorruptImage
)

func (r ExitReason) String() string {
	switch r {
	case Break:
		return "break"
	case Killed:
		return "killed"
	case IllegalInstruction:
		return "invalid-opcode"
	case MemoryViolation:
		return "memory-access-violation"
	case CorruptImage:
		return "corrupt-image"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

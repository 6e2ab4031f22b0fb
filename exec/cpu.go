// Package exec is the CPU: registers, the instruction set and the
// fetch-decode-execute cycle.
package exec

import (
	"encoding/binary"
	"fmt"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/exzackly/exzos/abi"
)

type Registers struct {
	PC  uint16
	Acc byte
	X   byte
	Y   byte
	Z   bool
}

func (r Registers) String() string {
	return fmt.Sprintf("pc=%04X acc=%02X x=%02X y=%02X z=%t", r.PC, r.Acc, r.X, r.Y, r.Z)
}

// Bus is the CPU's view of memory: logical addresses of the bound process.
// A faulting access reports false; reads are then zero filled and writes are
// dropped. Signaling the fault is the bus's job.
type Bus interface {
	Read(addr, sz int) ([]byte, bool)
	Write(addr int, data []byte) bool
}

type Interrupter interface {
	Raise(irq abi.Interrupt)
}

type CPU struct {
	L hclog.Logger

	regs      Registers
	pid       int
	executing bool

	// owner is the PCB snapshot mirrored after every cycle.
	owner *Registers

	bus Bus
	irq Interrupter

	segmentSize int
}

func NewCPU(bus Bus, irq Interrupter, segmentSize int, l hclog.Logger) *CPU {
	if l == nil {
		l = hclog.NewNullLogger()
	}

	return &CPU{
		L:           l,
		pid:         -1,
		bus:         bus,
		irq:         irq,
		segmentSize: segmentSize,
	}
}

func (c *CPU) Pid() int {
	return c.pid
}

func (c *CPU) Executing() bool {
	return c.executing
}

func (c *CPU) Registers() Registers {
	return c.regs
}

// LoadProcess binds the CPU to pid and restores its registers. From then on
// every cycle writes the live registers back through regs.
func (c *CPU) LoadProcess(pid int, regs *Registers) {
	c.pid = pid
	c.regs = *regs
	c.owner = regs
	c.executing = true

	c.L.Trace("cpu-load-process", "pid", pid, "registers", c.regs.String())
}

// StoreProcess copies the live registers into regs.
func (c *CPU) StoreProcess(regs *Registers) {
	*regs = c.regs
}

// Unload leaves the CPU idle.
func (c *CPU) Unload() {
	c.L.Trace("cpu-unload", "pid", c.pid)

	c.pid = -1
	c.regs = Registers{}
	c.owner = nil
	c.executing = false
}

func (c *CPU) raise(irq abi.IRQ, params interface{}) {
	c.irq.Raise(abi.Interrupt{IRQ: irq, Params: params})
}

// Cycle runs one instruction and reports whether it executed.
func (c *CPU) Cycle() bool {
	if !c.executing {
		return false
	}

	pc := int(c.regs.PC)

	raw, ok := c.bus.Read(pc, 1)
	if !ok {
		c.L.Warn("fetch-fault", "pid", c.pid, "pc", pc)
		return false
	}

	op := Op(raw[0])

	in, ok := opcodes[op]
	if !ok {
		c.L.Warn("invalid-opcode", "pid", c.pid, "pc", pc, "opcode", fmt.Sprintf("%02X", raw[0]))
		c.raise(abi.InvalidOpcode, abi.Fault{Pid: c.pid})
		return false
	}

	var operand []byte
	if in.Operand > 0 {
		operand, _ = c.bus.Read(pc+1, in.Operand)
	}

	next := c.execute(op, operand, pc+1+in.Operand)

	c.regs.PC = uint16(next)

	if c.owner != nil {
		*c.owner = c.regs
	}

	c.L.Trace("cpu-cycle", "pid", c.pid, "op", op.String(), "registers", c.regs.String())

	return true
}

func (c *CPU) load(addr []byte) byte {
	b, _ := c.bus.Read(int(binary.LittleEndian.Uint16(addr)), 1)
	return b[0]
}

func (c *CPU) store(addr []byte, v byte) {
	c.bus.Write(int(binary.LittleEndian.Uint16(addr)), []byte{v})
}

// execute runs op and returns the address of the next instruction.
func (c *CPU) execute(op Op, arg []byte, next int) int {
	r := &c.regs

	switch op {
	case LDAImm:
		r.Acc = arg[0]
	case LDAMem:
		r.Acc = c.load(arg)
	case STA:
		c.store(arg, r.Acc)
	case ADC:
		r.Acc += c.load(arg)
	case LDXImm:
		r.X = arg[0]
	case LDXMem:
		r.X = c.load(arg)
	case LDYImm:
		r.Y = arg[0]
	case LDYMem:
		r.Y = c.load(arg)
	case NOP:
	case BRK:
		c.raise(abi.Terminate, abi.Kill{Pid: c.pid, Reason: abi.Break})
	case CPX:
		r.Z = r.X == c.load(arg)
	case BNE:
		if !r.Z {
			next = (next + int(arg[0])) % c.segmentSize
		}
	case INC:
		c.store(arg, c.load(arg)+1)
	case SYS:
		c.raise(abi.SystemCall, abi.Syscall{Pid: c.pid, Function: r.X, Arg: r.Y})
	default:
		panic(fmt.Sprintf("opcode %02X in table but not executed", byte(op)))
	}

	return next
}

package exec

import (
	"encoding/binary"
	"fmt"
)

// Op is the closed set of instructions the CPU understands.
type Op byte

const (
	BRK    Op = 0x00
	ADC    Op = 0x6D
	STA    Op = 0x8D
	LDYImm Op = 0xA0
	LDXImm Op = 0xA2
	LDAImm Op = 0xA9
	LDYMem Op = 0xAC
	LDAMem Op = 0xAD
	LDXMem Op = 0xAE
	BNE    Op = 0xD0
	NOP    Op = 0xEA
	CPX    Op = 0xEC
	INC    Op = 0xEE
	SYS    Op = 0xFF
)

type Instruction struct {
	Mnemonic string

	// Operand is the number of bytes following the opcode.
	Operand int
}

var opcodes = map[Op]Instruction{
	BRK:    {"BRK", 0},
	ADC:    {"ADC", 2},
	STA:    {"STA", 2},
	LDYImm: {"LDY #", 1},
	LDXImm: {"LDX #", 1},
	LDAImm: {"LDA #", 1},
	LDYMem: {"LDY", 2},
	LDAMem: {"LDA", 2},
	LDXMem: {"LDX", 2},
	BNE:    {"BNE", 1},
	NOP:    {"NOP", 0},
	CPX:    {"CPX", 2},
	INC:    {"INC", 2},
	SYS:    {"SYS", 0},
}

func Lookup(b byte) (Instruction, bool) {
	in, ok := opcodes[Op(b)]
	return in, ok
}

func (o Op) String() string {
	if in, ok := opcodes[o]; ok {
		return in.Mnemonic
	}

	return fmt.Sprintf("DB $%02X", byte(o))
}

// Disassemble renders image one instruction per line, with the logical
// address of each.
func Disassemble(image []byte) []string {
	var out []string

	for pc := 0; pc < len(image); {
		op := Op(image[pc])

		in, ok := opcodes[op]
		if !ok || pc+1+in.Operand > len(image) {
			out = append(out, fmt.Sprintf("%04X  DB $%02X", pc, image[pc]))
			pc++
			continue
		}

		arg := image[pc+1 : pc+1+in.Operand]

		var line string
		switch in.Operand {
		case 0:
			line = in.Mnemonic
		case 1:
			line = fmt.Sprintf("%s$%02X", in.Mnemonic, arg[0])
		default:
			line = fmt.Sprintf("%s $%04X", in.Mnemonic, binary.LittleEndian.Uint16(arg))
		}

		out = append(out, fmt.Sprintf("%04X  %s", pc, line))
		pc += 1 + in.Operand
	}

	return out
}

package isa

import (
	"fmt"
	"strings"
)

// iTypeMnemonics maps the I-type ALU/data opcodes back to their mnemonics.
var iTypeMnemonics = map[Opcode]string{
	OpAddi: "addi",
	OpSubi: "subi",
	OpMuli: "muli",
	OpDivi: "divi",
	OpSl:   "sl",
	OpSrl:  "srl",
	OpSra:  "sra",
	OpSti:  "sti",
	OpLdi:  "ldi",
}

var jTypeMnemonics = map[Opcode]string{
	OpSave: "save",
	OpRest: "rest",
	OpJmp:  "jmp",
}

// Disassemble renders one instruction word back to assembly text.
// Branch and jump offsets print as signed byte offsets, not labels.
// Words with no defined decoding render as a .word directive.
func Disassemble(w Word) string {
	op := w.Opcode()
	switch {
	case op == OpBranch:
		if w.Mask() == 0 {
			return "nop"
		}
		return fmt.Sprintf("%s %d", BranchMnemonic(w.Mask()), w.Imm())

	case op == OpALUR || op == OpLogicR || op == OpGP:
		info, ok := RTypeInfo(op, w.Func())
		if !ok {
			return fmt.Sprintf(".word 0x%04X", uint16(w))
		}
		regs := []uint8{w.Rs(), w.Rt(), w.Rd()}[:info.NRegs]
		parts := make([]string, len(regs))
		for i, r := range regs {
			parts[i] = fmt.Sprintf("$r%d", r)
		}
		if len(parts) == 0 {
			return info.Mnemonic
		}
		return info.Mnemonic + " " + strings.Join(parts, ", ")

	default:
		if m, ok := iTypeMnemonics[op]; ok {
			return fmt.Sprintf("%s $r%d, %d", m, w.Rs(), w.Imm())
		}
		if m, ok := jTypeMnemonics[op]; ok {
			return fmt.Sprintf("%s %d", m, w.Jmp())
		}
		return fmt.Sprintf(".word 0x%04X", uint16(w))
	}
}

// Mask returns the branch condition mask of an OpBranch word (the rs field).
func (w Word) Mask() uint8 { return w.Rs() }

package sim

import "github.com/jenkinsjamesb/brisc/pkg/isa"

// execute runs the decoded instruction and performs writeback.
// ALU results (and move) update NZP; loads, clr, lpc and control flow do not.
func (m *Machine) execute() error {
	d := &m.dec

	switch d.op {
	case isa.OpBranch:
		// rs field is the condition mask: any overlap with NZP takes it.
		if d.rsIdx&m.NZP != 0 {
			m.PC += uint16(d.imm)
		}
		return nil

	case isa.OpALUR, isa.OpLogicR:
		// Three-operand form reads rt and rd, writes rs.
		result, err := m.alu(d.op, d.fn, d.rt, d.rd)
		if err != nil {
			return err
		}
		return m.writeback(result)

	case isa.OpAddi, isa.OpSubi, isa.OpMuli, isa.OpDivi,
		isa.OpSl, isa.OpSrl, isa.OpSra:
		result, err := m.aluImm(d.op, d.rs)
		if err != nil {
			return err
		}
		return m.writeback(result)

	case isa.OpGP:
		return m.executeGP()

	case isa.OpSti:
		return m.writeback(uint16(d.imm))

	case isa.OpLdi:
		return m.writeback(uint16(d.imm))

	case isa.OpSave:
		base := int(int32(m.PC) + int32(d.jmp))
		if base < 0 || base+2*NumRegisters > MemSize {
			return AddressOutOfRange
		}
		for i, v := range m.R {
			m.Data[base+2*i] = byte(v >> 8)
			m.Data[base+2*i+1] = byte(v)
		}
		return nil

	case isa.OpRest:
		base := int(int32(m.PC) + int32(d.jmp))
		if base < 0 || base+2*NumRegisters > MemSize {
			return AddressOutOfRange
		}
		for i := range m.R {
			m.R[i] = uint16(m.Data[base+2*i])<<8 | uint16(m.Data[base+2*i+1])
		}
		return nil

	case isa.OpJmp:
		m.PC += uint16(d.jmp)
		return nil
	}
	return nil
}

// executeGP dispatches the opcode-1010 group on its func field.
func (m *Machine) executeGP() error {
	d := &m.dec
	switch d.fn {
	case isa.FnMove:
		// move participates in NZP even though it skips the ALU.
		m.setNZP(int16(d.rt))
		return m.writeback(d.rt)

	case isa.FnLdr:
		v, err := m.loadWord(d.rt)
		if err != nil {
			return err
		}
		return m.writeback(v)

	case isa.FnStr:
		return m.writeback(d.rt)

	case isa.FnClr:
		return m.writeback(0)

	case isa.FnLpc:
		return m.writeback(m.PC)

	case isa.FnSwp:
		m.R[d.rsIdx], m.R[d.rtIdx] = d.rt, d.rs

	case isa.FnRst:
		m.PC = 0

	case isa.FnHlt:
		m.Running = false
	}
	return nil
}

// alu computes an R-type operation on (a, b) = (rt, rd) and sets NZP.
// A func with no defined operation yields zero, as the datapath would.
func (m *Machine) alu(op isa.Opcode, fn isa.Func, a, b uint16) (uint16, error) {
	var r int16
	sa, sb := int16(a), int16(b)

	switch op {
	case isa.OpALUR:
		switch fn {
		case isa.FnAddr:
			r = sa + sb
		case isa.FnSubr:
			r = sa - sb
		case isa.FnMulr:
			r = int16(int32(sa) * int32(sb))
		case isa.FnDivr:
			if sb == 0 {
				return 0, DivideByZero
			}
			r = sa / sb
		case isa.FnTwos:
			r = -sa
		}
	case isa.OpLogicR:
		switch fn {
		case isa.FnNot:
			r = ^sa
		case isa.FnAnd:
			r = sa & sb
		case isa.FnOr:
			r = sa | sb
		case isa.FnXor:
			r = sa ^ sb
		case isa.FnNor:
			r = ^(sa | sb)
		}
	}

	m.setNZP(r)
	return uint16(r), nil
}

// aluImm computes an I-type operation on (a, sext(imm)) and sets NZP.
// Shift amounts use the unsigned immediate modulo 16.
func (m *Machine) aluImm(op isa.Opcode, a uint16) (uint16, error) {
	d := &m.dec
	var r int16
	sa := int16(a)

	switch op {
	case isa.OpAddi:
		r = sa + d.imm
	case isa.OpSubi:
		r = sa - d.imm
	case isa.OpMuli:
		r = int16(int32(sa) * int32(d.imm))
	case isa.OpDivi:
		if d.imm == 0 {
			return 0, DivideByZero
		}
		r = sa / d.imm
	case isa.OpSl:
		r = int16(a << (d.immU % 16))
	case isa.OpSrl:
		r = int16(a >> (d.immU % 16))
	case isa.OpSra:
		r = sa >> (d.immU % 16)
	}

	m.setNZP(r)
	return uint16(r), nil
}

// setNZP latches the sign class of a result: exactly one bit set.
func (m *Machine) setNZP(r int16) {
	switch {
	case r < 0:
		m.NZP = FlagN
	case r == 0:
		m.NZP = FlagZ
	default:
		m.NZP = FlagP
	}
}

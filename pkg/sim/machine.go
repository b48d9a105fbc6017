package sim

import (
	"fmt"

	"github.com/jenkinsjamesb/brisc/pkg/isa"
)

const (
	// MemSize is the size of each memory (text and data) in bytes.
	MemSize = 256
	// NumRegisters is the size of the general-purpose register file.
	NumRegisters = 8
	// WordBytes is the width of one instruction fetch.
	WordBytes = 2
)

// NZP condition code bits. Exactly one is set after any ALU result.
const (
	FlagN uint8 = 0b100
	FlagZ uint8 = 0b010
	FlagP uint8 = 0b001
)

// Fault identifies a runtime condition that halts the machine.
type Fault int

const (
	FaultNone Fault = iota
	DivideByZero
	AddressOutOfRange
)

func (f Fault) String() string {
	switch f {
	case FaultNone:
		return ""
	case DivideByZero:
		return "DivideByZero"
	case AddressOutOfRange:
		return "AddressOutOfRange"
	}
	return fmt.Sprintf("Fault(%d)", int(f))
}

// Error lets a Fault be returned from Step and Run.
func (f Fault) Error() string { return f.String() }

// Machine models the full architectural state of a BRISC processor:
// register file, condition codes, and the two 256-byte memories.
// Text and data are distinct buffers; a store never touches text memory
// and a fetch never reads data memory.
type Machine struct {
	PC  uint16
	IR  uint16
	NZP uint8
	R   [NumRegisters]uint16

	Text [MemSize]byte
	Data [MemSize]byte

	Cycle   int
	Running bool
	Fault   Fault

	// Signals latched by decode, consumed by execute and writeback.
	dec decoded
}

// decoded holds the field values and control signals latched by the decode
// stage for the instruction currently in IR.
type decoded struct {
	op                  isa.Opcode
	rsIdx, rtIdx, rdIdx uint8
	fn                  isa.Func
	rs, rt, rd          uint16 // register values read at decode
	imm                 int16  // sign-extended 9-bit immediate
	immU                uint16 // raw 9-bit immediate (shift amounts)
	jmp                 int16  // sign-extended 12-bit offset
	ctl                 control
}

// control carries the writeback routing decided at decode time.
type control struct {
	writeReg   bool // result is written to R[rs]
	writeMem   bool // result is written to data memory at R[rs]
	memFromImm bool // memory write source is the immediate, not a register
}

// New returns a machine with all registers and both memories zeroed,
// in the running state.
func New() *Machine {
	return &Machine{Running: true}
}

// LoadText replaces text memory with image, zero-padded to MemSize.
// Images longer than MemSize are truncated.
func (m *Machine) LoadText(image []byte) {
	m.Text = [MemSize]byte{}
	copy(m.Text[:], image)
}

// LoadData replaces data memory with image, zero-padded to MemSize.
func (m *Machine) LoadData(image []byte) {
	m.Data = [MemSize]byte{}
	copy(m.Data[:], image)
}

// WriteRegister seeds one register of the file.
func (m *Machine) WriteRegister(i int, v uint16) error {
	if i < 0 || i >= NumRegisters {
		return fmt.Errorf("register index %d out of range", i)
	}
	m.R[i] = v
	return nil
}

// Snapshot is a host-visible copy of the architectural state.
type Snapshot struct {
	PC         uint16               `json:"pc"`
	IR         uint16               `json:"ir"`
	NZP        uint8                `json:"nzp"`
	Registers  [NumRegisters]uint16 `json:"registers"`
	TextMemory [MemSize]byte        `json:"text_memory"`
	DataMemory [MemSize]byte        `json:"data_memory"`
	Cycle      int                  `json:"cycle"`
	Running    bool                 `json:"running"`
	Fault      string               `json:"fault,omitempty"`
}

// Snapshot copies out the architectural state for inspection.
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		PC:         m.PC,
		IR:         m.IR,
		NZP:        m.NZP,
		Registers:  m.R,
		TextMemory: m.Text,
		DataMemory: m.Data,
		Cycle:      m.Cycle,
		Running:    m.Running,
		Fault:      m.Fault.String(),
	}
}

// Step advances the machine by exactly one instruction: fetch, decode,
// execute-and-writeback. A no-op once the machine has halted. Returns the
// fault if the instruction faulted; the machine is then halted with the
// fault recorded.
func (m *Machine) Step() error {
	if !m.Running {
		return nil
	}
	if err := m.fetch(); err != nil {
		return m.halt(err)
	}
	m.decode()
	if err := m.execute(); err != nil {
		return m.halt(err)
	}
	m.Cycle++
	return nil
}

// Run steps until the machine halts, either by hlt or by fault.
// Returns nil on a clean halt, the fault otherwise.
func (m *Machine) Run() error {
	for m.Running {
		if err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}

// halt stops the machine with a fault recorded.
func (m *Machine) halt(err error) error {
	m.Running = false
	if f, ok := err.(Fault); ok {
		m.Fault = f
	}
	return err
}

// fetch reads the 16-bit word at PC from text memory into IR and advances
// PC past it. Execute therefore sees a PC pointing at the next instruction.
func (m *Machine) fetch() error {
	if int(m.PC)+WordBytes > MemSize {
		return AddressOutOfRange
	}
	m.IR = uint16(m.Text[m.PC])<<8 | uint16(m.Text[m.PC+1])
	m.PC += WordBytes
	return nil
}

// decode splits IR into its fields, reads the register file, and latches
// the writeback control signals.
func (m *Machine) decode() {
	w := isa.Word(m.IR)
	m.dec = decoded{
		op:    w.Opcode(),
		rsIdx: w.Rs(),
		rtIdx: w.Rt(),
		rdIdx: w.Rd(),
		fn:    w.Func(),
		rs:    m.R[w.Rs()],
		rt:    m.R[w.Rt()],
		rd:    m.R[w.Rd()],
		imm:   w.Imm(),
		immU:  w.ImmU(),
		jmp:   w.Jmp(),
	}
	m.dec.ctl = m.controls()
}

// controls decides the writeback routing for the decoded instruction.
func (m *Machine) controls() control {
	var c control
	switch m.dec.op {
	case isa.OpALUR, isa.OpLogicR,
		isa.OpAddi, isa.OpSubi, isa.OpMuli, isa.OpDivi,
		isa.OpSl, isa.OpSrl, isa.OpSra:
		c.writeReg = true
	case isa.OpGP:
		switch m.dec.fn {
		case isa.FnMove, isa.FnLdr, isa.FnClr, isa.FnLpc:
			c.writeReg = true
		case isa.FnStr:
			c.writeMem = true
		}
	case isa.OpSti:
		c.writeMem = true
		c.memFromImm = true
	case isa.OpLdi:
		c.writeReg = true
	}
	return c
}

// writeback routes the execute result per the latched control signals.
// Register writes always target R[rs]; memory writes always address R[rs].
func (m *Machine) writeback(result uint16) error {
	if m.dec.ctl.writeReg {
		m.R[m.dec.rsIdx] = result
	}
	if m.dec.ctl.writeMem {
		if err := m.storeWord(m.dec.rs, result); err != nil {
			return err
		}
	}
	return nil
}

// loadWord reads a big-endian 16-bit value from data memory.
func (m *Machine) loadWord(addr uint16) (uint16, error) {
	if int(addr)+2 > MemSize {
		return 0, AddressOutOfRange
	}
	return uint16(m.Data[addr])<<8 | uint16(m.Data[addr+1]), nil
}

// storeWord writes a big-endian 16-bit value to data memory.
func (m *Machine) storeWord(addr uint16, v uint16) error {
	if int(addr)+2 > MemSize {
		return AddressOutOfRange
	}
	m.Data[addr] = byte(v >> 8)
	m.Data[addr+1] = byte(v)
	return nil
}

// Package report serializes simulator snapshots for hosts: JSON for
// programmatic consumers and plain-text tables for terminals.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jenkinsjamesb/brisc/pkg/sim"
)

// WriteJSON writes a snapshot as indented JSON.
func WriteJSON(w io.Writer, snap sim.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// ReadJSON decodes a snapshot previously written with WriteJSON.
func ReadJSON(r io.Reader) (sim.Snapshot, error) {
	var snap sim.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return sim.Snapshot{}, err
	}
	return snap, nil
}

// Word16 formats a 16-bit value as hex plus nibble-grouped binary.
func Word16(v uint16) string {
	b := fmt.Sprintf("%016b", v)
	return fmt.Sprintf("0x%04X: %s %s %s %s", v, b[0:4], b[4:8], b[8:12], b[12:16])
}

// Registers renders the register file, one row per register.
func Registers(snap sim.Snapshot) string {
	var sb strings.Builder
	for i, v := range snap.Registers {
		fmt.Fprintf(&sb, "$r%d  %s\n", i, Word16(v))
	}
	return sb.String()
}

// Status renders the control state: PC, IR, NZP, cycle count, and whether
// the machine is still running or halted (with any fault).
func Status(snap sim.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "pc     %s\n", Word16(snap.PC))
	fmt.Fprintf(&sb, "ir     %s\n", Word16(snap.IR))
	fmt.Fprintf(&sb, "nzp    %03b\n", snap.NZP)
	fmt.Fprintf(&sb, "cycle  %d\n", snap.Cycle)
	switch {
	case snap.Running:
		fmt.Fprintf(&sb, "state  running\n")
	case snap.Fault != "":
		fmt.Fprintf(&sb, "state  halted (%s)\n", snap.Fault)
	default:
		fmt.Fprintf(&sb, "state  halted\n")
	}
	return sb.String()
}

// Memory renders a memory image as rows of 16-bit cells, columns cells per
// row. Nonzero cells are marked with a trailing asterisk.
func Memory(mem []byte, columns int) string {
	if columns <= 0 {
		columns = 8
	}
	var sb strings.Builder
	for base := 0; base < len(mem); base += 2 * columns {
		fmt.Fprintf(&sb, "0x%04X ", base)
		for cell := 0; cell < columns; cell++ {
			addr := base + 2*cell
			if addr+2 > len(mem) {
				break
			}
			v := uint16(mem[addr])<<8 | uint16(mem[addr+1])
			mark := ' '
			if v != 0 {
				mark = '*'
			}
			fmt.Fprintf(&sb, " %04X%c", v, mark)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jenkinsjamesb/brisc/pkg/sim"
)

// TestJSONRoundTrip verifies a snapshot survives encode/decode bit-exactly.
func TestJSONRoundTrip(t *testing.T) {
	m := sim.New()
	m.WriteRegister(0, 0xBEEF)
	m.Data[0x20] = 0xA5
	snap := m.Snapshot()

	var buf bytes.Buffer
	if err := WriteJSON(&buf, snap); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	got, err := ReadJSON(&buf)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got != snap {
		t.Error("snapshot changed through JSON round trip")
	}
}

// TestWord16 pins the hex-plus-binary format.
func TestWord16(t *testing.T) {
	if got := Word16(0x01A5); got != "0x01A5: 0000 0001 1010 0101" {
		t.Errorf("Word16(0x01A5) = %q", got)
	}
	if got := Word16(0); got != "0x0000: 0000 0000 0000 0000" {
		t.Errorf("Word16(0) = %q", got)
	}
}

// TestRegisters verifies one row per register with values rendered.
func TestRegisters(t *testing.T) {
	m := sim.New()
	m.WriteRegister(3, 0x0102)
	out := Registers(m.Snapshot())

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != sim.NumRegisters {
		t.Fatalf("got %d rows, want %d", len(lines), sim.NumRegisters)
	}
	if !strings.HasPrefix(lines[3], "$r3  0x0102:") {
		t.Errorf("row 3: %q", lines[3])
	}
}

// TestStatus covers running, clean halt and faulted halt renderings.
func TestStatus(t *testing.T) {
	snap := sim.Snapshot{Running: true}
	if out := Status(snap); !strings.Contains(out, "state  running") {
		t.Errorf("running status:\n%s", out)
	}

	snap = sim.Snapshot{}
	if out := Status(snap); !strings.Contains(out, "state  halted\n") {
		t.Errorf("halted status:\n%s", out)
	}

	snap = sim.Snapshot{Fault: "DivideByZero"}
	if out := Status(snap); !strings.Contains(out, "halted (DivideByZero)") {
		t.Errorf("faulted status:\n%s", out)
	}
}

// TestMemory verifies row addresses and the nonzero marker.
func TestMemory(t *testing.T) {
	mem := make([]byte, 32)
	mem[16] = 0x01
	mem[17] = 0xA5
	out := Memory(mem, 8)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d rows, want 2:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "0x0000") || !strings.HasPrefix(lines[1], "0x0010") {
		t.Errorf("row addresses:\n%s", out)
	}
	if !strings.Contains(lines[1], "01A5*") {
		t.Errorf("nonzero cell not marked:\n%s", out)
	}
	if strings.Contains(lines[0], "*") {
		t.Errorf("zero row has a marker:\n%s", out)
	}
}

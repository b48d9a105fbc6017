// Package asm implements the two-pass BRISC assembler: a syntactic pass that
// lowers each source line to 16 bits of partial encoding, and a linking pass
// that patches label references with PC-relative byte offsets.
package asm

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/jenkinsjamesb/brisc/pkg/isa"
)

var (
	labelPattern    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	registerPattern = regexp.MustCompile(`^\$r([0-9]+)$`)
)

// line is one normalized source line: comments stripped, label consumed.
type line struct {
	num      int    // 1-based line number in the original text
	label    string // label declared for this instruction, if any
	mnemonic string
	operands []string
	text     string // normalized text, for listings
}

// frag is one bit-field fragment of an encoding slot.
type frag struct {
	bits  uint16
	width int
}

// slot is the partial encoding of one instruction. Fragments concatenate
// MSB-first and must total exactly 16 bits once any pending label resolves.
type slot struct {
	frags      []frag
	label      string // unresolved label token; empty when fully encoded
	labelWidth int    // field width the resolved offset must fit (9 or 12)
	line       int
}

// Program is the output of a successful assembly.
type Program struct {
	Image   []byte         // 2 bytes per instruction, big-endian words
	Symbols map[string]int // label name -> instruction index
	lines   []line
}

// Assembler translates BRISC assembly text. The zero value is ready to use.
type Assembler struct {
	// Trace receives the assembly diagnostic trail. Nil discards it.
	Trace io.Writer
}

// Assemble translates source with a default Assembler.
func Assemble(source string) (*Program, error) {
	return (&Assembler{}).Assemble(source)
}

// Assemble runs both passes over source. On failure it returns an *Error
// carrying the offending line number; no partial image is produced.
func (a *Assembler) Assemble(source string) (*Program, error) {
	lines, symbols, err := a.normalize(source)
	if err != nil {
		return nil, err
	}
	a.tracef("normalized %d instructions, %d labels", len(lines), len(symbols))

	slots, err := a.encode(lines)
	if err != nil {
		return nil, err
	}

	if err := a.link(slots, symbols); err != nil {
		return nil, err
	}

	image, err := merge(slots)
	if err != nil {
		return nil, err
	}
	a.tracef("assembled %d bytes", len(image))

	return &Program{Image: image, Symbols: symbols, lines: lines}, nil
}

// normalize strips comments and whitespace, discards empty lines, and glues
// each label declaration to the instruction on the next non-empty line.
func (a *Assembler) normalize(source string) ([]line, map[string]int, error) {
	var lines []line
	symbols := make(map[string]int)

	pendingLabel := ""
	pendingLine := 0

	declareLabel := func(name string, num int) error {
		if !labelPattern.MatchString(name) {
			return errAt(num, ErrLex, "invalid label %q", name)
		}
		if _, dup := symbols[name]; dup {
			return errAt(num, ErrLex, "duplicate label %q", name)
		}
		if pendingLabel != "" {
			return errAt(num, ErrLex, "label %q follows label %q", name, pendingLabel)
		}
		pendingLabel = name
		pendingLine = num
		return nil
	}

	for num, raw := range strings.Split(source, "\n") {
		text, _, _ := strings.Cut(raw, "#")
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		// A bare "name:" line attaches to the next instruction.
		if strings.HasSuffix(text, ":") {
			if err := declareLabel(strings.TrimSuffix(text, ":"), num+1); err != nil {
				return nil, nil, err
			}
			continue
		}

		// "name: instruction" on one line.
		fields := tokenize(text)
		if strings.HasSuffix(fields[0], ":") {
			if err := declareLabel(strings.TrimSuffix(fields[0], ":"), num+1); err != nil {
				return nil, nil, err
			}
			fields = fields[1:]
			if len(fields) == 0 {
				continue
			}
		}

		ln := line{
			num:      num + 1,
			mnemonic: fields[0],
			operands: fields[1:],
			text:     text,
		}
		if pendingLabel != "" {
			ln.label = pendingLabel
			symbols[pendingLabel] = len(lines)
			a.tracef("label %q -> instruction %d", pendingLabel, len(lines))
			pendingLabel = ""
		}
		lines = append(lines, ln)
	}

	if pendingLabel != "" {
		return nil, nil, errAt(pendingLine, ErrLex, "label %q has no instruction", pendingLabel)
	}
	return lines, symbols, nil
}

// tokenize splits an instruction line on whitespace and commas.
func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ','
	})
}

// encode is pass 1: lower each line to an encoding slot, leaving label
// operands as pending tokens for the link pass.
func (a *Assembler) encode(lines []line) ([]slot, error) {
	slots := make([]slot, 0, len(lines))
	for _, ln := range lines {
		info, ok := isa.Lookup(ln.mnemonic)
		if !ok {
			return nil, errAt(ln.num, ErrUnknownMnemonic, "%q", ln.mnemonic)
		}

		s := slot{line: ln.num}
		s.push(uint16(info.Op), 4)

		var err error
		switch {
		case info.Op == isa.OpBranch:
			err = a.encodeBranch(&s, info, ln)
		case info.Shape == isa.ShapeR:
			err = a.encodeR(&s, info, ln)
		case info.Shape == isa.ShapeI:
			err = a.encodeI(&s, info, ln)
		default:
			err = a.encodeJ(&s, ln)
		}
		if err != nil {
			return nil, err
		}

		slots = append(slots, s)
		a.tracef("line %d: %s -> %s", ln.num, ln.text, s.describe())
	}
	return slots, nil
}

func (s *slot) push(bits uint16, width int) {
	s.frags = append(s.frags, frag{bits: bits, width: width})
}

func (s *slot) describe() string {
	var sb strings.Builder
	for _, f := range s.frags {
		fmt.Fprintf(&sb, "%0*b ", f.width, f.bits)
	}
	if s.label != "" {
		fmt.Fprintf(&sb, "<%s:%d>", s.label, s.labelWidth)
	}
	return strings.TrimSpace(sb.String())
}

// encodeR lowers an R-type line: up to NRegs register operands, missing
// registers encoded as zero, func field last.
func (a *Assembler) encodeR(s *slot, info isa.Info, ln line) error {
	if len(ln.operands) > info.NRegs {
		return errAt(ln.num, ErrLex, "%s takes at most %d operands", info.Mnemonic, info.NRegs)
	}
	for i := 0; i < 3; i++ {
		var reg uint16
		if i < len(ln.operands) {
			r, err := parseRegister(ln.operands[i], ln.num)
			if err != nil {
				return err
			}
			reg = r
		}
		s.push(reg, 3)
	}
	s.push(uint16(info.Fn), 3)
	return nil
}

// encodeI lowers a non-branch I-type line: register then 9-bit immediate.
func (a *Assembler) encodeI(s *slot, info isa.Info, ln line) error {
	if len(ln.operands) != 2 {
		return errAt(ln.num, ErrLex, "%s takes a register and an immediate", info.Mnemonic)
	}
	reg, err := parseRegister(ln.operands[0], ln.num)
	if err != nil {
		return err
	}
	s.push(reg, 3)

	imm, err := parseImmediate(ln.operands[1], 9, ln.num)
	if err != nil {
		return err
	}
	s.push(imm, 9)
	return nil
}

// encodeBranch lowers nop and the br[n][z][p] family: the condition mask
// occupies the rs field and the target is a label or a literal byte offset.
func (a *Assembler) encodeBranch(s *slot, info isa.Info, ln line) error {
	s.push(uint16(info.Mask), 3)

	if info.Mask == 0 { // nop
		if len(ln.operands) != 0 {
			return errAt(ln.num, ErrLex, "nop takes no operands")
		}
		s.push(0, 9)
		return nil
	}
	if len(ln.operands) != 1 {
		return errAt(ln.num, ErrLex, "%s takes one target", info.Mnemonic)
	}
	return a.encodeTarget(s, ln.operands[0], 9, ln.num)
}

// encodeJ lowers a J-type line: a single label or literal byte offset.
func (a *Assembler) encodeJ(s *slot, ln line) error {
	if len(ln.operands) != 1 {
		return errAt(ln.num, ErrLex, "%s takes one target", ln.mnemonic)
	}
	return a.encodeTarget(s, ln.operands[0], 12, ln.num)
}

// encodeTarget stores a branch/jump operand: literal offsets encode
// immediately, labels stay pending for the link pass.
func (a *Assembler) encodeTarget(s *slot, tok string, width, num int) error {
	if labelPattern.MatchString(tok) {
		s.label = tok
		s.labelWidth = width
		return nil
	}
	off, err := parseImmediate(tok, width, num)
	if err != nil {
		return err
	}
	s.push(off, width)
	return nil
}

// parseRegister matches the strict $rN form with N in [0,7].
func parseRegister(tok string, num int) (uint16, error) {
	m := registerPattern.FindStringSubmatch(tok)
	if m == nil {
		return 0, errAt(num, ErrBadRegister, "%q", tok)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n > 7 {
		return 0, errAt(num, ErrBadRegister, "%q", tok)
	}
	return uint16(n), nil
}

// parseImmediate accepts signed decimal or 0x/0o/0b literals and truncates
// to width bits. Values must be representable in width bits, signed or
// unsigned.
func parseImmediate(tok string, width, num int) (uint16, error) {
	v, err := strconv.ParseInt(tok, 0, 64)
	if err != nil {
		return 0, errAt(num, ErrBadImmediate, "%q", tok)
	}
	if v < -(1<<(width-1)) || v >= 1<<width {
		return 0, errAt(num, ErrBadImmediate, "%d does not fit in %d bits", v, width)
	}
	return uint16(v) & (1<<width - 1), nil
}

// link is pass 2: resolve each pending label against the symbol table.
// Offsets are byte deltas relative to the instruction after the branch,
// matching the PC the execute stage sees.
func (a *Assembler) link(slots []slot, symbols map[string]int) error {
	for i := range slots {
		s := &slots[i]
		if s.label == "" {
			continue
		}
		target, ok := symbols[s.label]
		if !ok {
			return errAt(s.line, ErrUnknownLabel, "%q", s.label)
		}
		off := 2 * (target - (i + 1))
		if off < -(1<<(s.labelWidth-1)) || off >= 1<<(s.labelWidth-1) {
			return errAt(s.line, ErrOffsetOutOfRange, "%q is %d bytes away", s.label, off)
		}
		s.push(uint16(off)&(1<<s.labelWidth-1), s.labelWidth)
		a.tracef("linked %q at slot %d: offset %d bytes", s.label, i, off)
		s.label = ""
	}
	return nil
}

// merge concatenates the linked slots into the final image. Every slot must
// hold exactly 16 bits.
func merge(slots []slot) ([]byte, error) {
	image := make([]byte, 0, 2*len(slots))
	for _, s := range slots {
		var word uint16
		width := 0
		for _, f := range s.frags {
			word = word<<f.width | f.bits&(1<<f.width-1)
			width += f.width
		}
		if width != 16 {
			return nil, errAt(s.line, ErrInternalEncoding, "slot is %d bits", width)
		}
		image = append(image, byte(word>>8), byte(word))
	}
	return image, nil
}

func (a *Assembler) tracef(format string, args ...any) {
	if a.Trace == nil {
		return
	}
	fmt.Fprintf(a.Trace, format+"\n", args...)
}

// Words returns the image as decoded instruction words.
func (p *Program) Words() []isa.Word {
	words := make([]isa.Word, len(p.Image)/2)
	for i := range words {
		words[i] = isa.Word(p.Image[2*i])<<8 | isa.Word(p.Image[2*i+1])
	}
	return words
}

// Listing renders a side-by-side translation of source and machine code,
// one instruction per line: address, hex word, binary fields, source text.
func (p *Program) Listing() string {
	var sb strings.Builder
	for i, w := range p.Words() {
		fmt.Fprintf(&sb, "0x%04X  %04X  %s  %s\n",
			2*i, uint16(w), groupBits(uint16(w)), p.lines[i].text)
	}
	return sb.String()
}

// groupBits formats a word as four 4-bit groups.
func groupBits(v uint16) string {
	b := fmt.Sprintf("%016b", v)
	return b[0:4] + " " + b[4:8] + " " + b[8:12] + " " + b[12:16]
}

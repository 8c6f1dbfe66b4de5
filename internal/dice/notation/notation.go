// Package notation parses compact dice notation such as "4d6k3", "5d10x" or
// "1d20r:<=10,use_best,1." into a structured roll specification.
//
// The parser is a pure function of its input and holds no state between
// calls. Operator and effect tags are carried as text; they are validated when
// the specification is turned into dice.
package notation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrSyntax is wrapped by every *SyntaxError.
var ErrSyntax = errors.New("notation: syntax error")

// SyntaxError reports the first fragment of the input that could not be
// parsed.
type SyntaxError struct {
	Input    string // full notation
	Offset   int    // byte offset of Fragment in Input
	Fragment string // unparseable remainder, truncated
	Reason   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("notation: %s at offset %d near %q in %q", e.Reason, e.Offset, e.Fragment, e.Input)
}

// Unwrap makes errors.Is(err, ErrSyntax) hold.
func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// Comparison operator tags produced by the parser.
const (
	OpEq = "=="
	OpGt = ">"
	OpGe = ">="
	OpLt = "<"
	OpLe = "<="
)

// Effect tags produced by the parser.
const (
	EffectAdd      = "add"
	EffectSubtract = "subtract"
	EffectReplace  = "replace"
	EffectUseBest  = "use_best"
	EffectUseWorst = "use_worst"
)

// KeepMode selects the keep-best/worst reduction of a bunch.
type KeepMode string

const (
	KeepNone  KeepMode = ""
	KeepBest  KeepMode = "best"
	KeepWorst KeepMode = "worst"
)

// RerollSpec describes one reroll rule. Limit 0 means the rule default.
type RerollSpec struct {
	Value  int
	Op     string
	Effect string
	Limit  int
}

// MapSpec describes one map rule.
type MapSpec struct {
	Value       int
	Op          string
	MappedValue int
	Label       string
}

// BunchSpec describes NDice identical dice and their modifiers.
type BunchSpec struct {
	NDice      int
	Sides      int
	Multiplier int // +1 or -1
	Rerolls    []RerollSpec
	Maps       []MapSpec
	KeepMode   KeepMode
	KeepNumber int
}

// Spec is the parsed form of a notation string.
type Spec struct {
	Bunches []BunchSpec
	Offset  int
}

// Parse converts text into a Spec.
//
// Precondition: none; any string is accepted as input.
// Postcondition: Returns the complete Spec, or a *SyntaxError naming the first
// unparseable fragment. No partial Spec is ever returned.
func Parse(text string) (Spec, error) {
	p := &parser{input: text}
	spec, err := p.parse()
	if err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// MustParse is Parse that panics on error. Useful for package-level tables.
func MustParse(text string) Spec {
	s, err := Parse(text)
	if err != nil {
		panic("notation: MustParse failed for " + text + ": " + err.Error())
	}
	return s
}

type parser struct {
	input string
	pos   int
}

func (p *parser) fail(reason string) error {
	frag := p.input[p.pos:]
	if len(frag) > 16 {
		frag = frag[:16]
	}
	return &SyntaxError{Input: p.input, Offset: p.pos, Fragment: frag, Reason: reason}
}

func (p *parser) eof() bool { return p.pos >= len(p.input) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) accept(c byte) bool {
	if p.peek() == c && !p.eof() {
		p.pos++
		return true
	}
	return false
}

func (p *parser) skipSpace() {
	for !p.eof() && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

// integer reads an unsigned decimal integer.
func (p *parser) integer() (int, bool, error) {
	start := p.pos
	for !p.eof() && p.input[p.pos] >= '0' && p.input[p.pos] <= '9' {
		p.pos++
	}
	if start == p.pos {
		return 0, false, nil
	}
	n, err := strconv.Atoi(p.input[start:p.pos])
	if err != nil {
		p.pos = start
		return 0, false, p.fail("integer out of range")
	}
	return n, true, nil
}

func (p *parser) requireInteger(what string) (int, error) {
	n, ok, err := p.integer()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, p.fail("expected " + what)
	}
	return n, nil
}

func (p *parser) signedInteger(what string) (int, error) {
	neg := p.accept('-')
	n, err := p.requireInteger(what)
	if neg {
		n = -n
	}
	return n, err
}

func (p *parser) parse() (Spec, error) {
	var spec Spec
	p.skipSpace()
	if p.eof() {
		return Spec{}, p.fail("empty notation")
	}
	first := true
	for {
		p.skipSpace()
		if p.eof() {
			break
		}
		sign := 1
		switch {
		case p.accept('+'):
		case p.accept('-'):
			sign = -1
		default:
			if !first {
				return Spec{}, p.fail("expected '+' or '-'")
			}
		}
		first = false
		p.skipSpace()

		n, hasCount, err := p.integer()
		if err != nil {
			return Spec{}, err
		}
		if !p.accept('d') && !p.accept('D') {
			if !hasCount {
				return Spec{}, p.fail("expected a number or dice term")
			}
			spec.Offset += sign * n
			continue
		}
		if !hasCount {
			n = 1
		}
		sides, err := p.requireInteger("die sides")
		if err != nil {
			return Spec{}, err
		}
		b := BunchSpec{NDice: n, Sides: sides, Multiplier: sign}
		if err := p.modifiers(&b); err != nil {
			return Spec{}, err
		}
		spec.Bunches = append(spec.Bunches, b)
	}
	return spec, nil
}

func (p *parser) modifiers(b *BunchSpec) error {
	for {
		switch p.peek() {
		case 'x':
			p.pos++
			b.Rerolls = append(b.Rerolls, RerollSpec{Value: b.Sides, Op: OpEq, Effect: EffectAdd})
		case 'r':
			p.pos++
			if p.accept(':') {
				r, err := p.verboseReroll()
				if err != nil {
					return err
				}
				b.Rerolls = append(b.Rerolls, r)
				continue
			}
			n, err := p.requireInteger("reroll threshold")
			if err != nil {
				return err
			}
			b.Rerolls = append(b.Rerolls, RerollSpec{Value: n, Op: OpLe, Effect: EffectReplace, Limit: 1})
		case 'k':
			p.pos++
			if p.accept(':') {
				if err := p.verboseKeep(b); err != nil {
					return err
				}
				continue
			}
			n, err := p.requireInteger("keep count")
			if err != nil {
				return err
			}
			b.KeepMode, b.KeepNumber = KeepBest, n
		case 'm':
			p.pos++
			if p.accept(':') {
				m, err := p.verboseMap()
				if err != nil {
					return err
				}
				b.Maps = append(b.Maps, m)
				continue
			}
			z, err := p.requireInteger("success threshold")
			if err != nil {
				return err
			}
			b.Maps = append(b.Maps,
				MapSpec{Value: z, Op: OpGe, MappedValue: 1, Label: "success"},
				MapSpec{Value: z, Op: OpLt, MappedValue: 0, Label: "failure"},
			)
		default:
			return nil
		}
	}
}

func (p *parser) operator() string {
	for _, op := range []string{OpGe, OpLe, OpEq, OpGt, OpLt} {
		if strings.HasPrefix(p.input[p.pos:], op) {
			p.pos += len(op)
			return op
		}
	}
	return OpEq
}

func (p *parser) word() string {
	start := p.pos
	for !p.eof() {
		c := p.input[p.pos]
		if (c < 'a' || c > 'z') && c != '_' {
			break
		}
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *parser) terminator() error {
	if !p.accept('.') {
		return p.fail("expected ',' or '.'")
	}
	return nil
}

// verboseReroll parses "[op]int[,effect[,limit]]." after "r:".
func (p *parser) verboseReroll() (RerollSpec, error) {
	r := RerollSpec{Op: p.operator(), Effect: EffectReplace}
	var err error
	if r.Value, err = p.signedInteger("reroll trigger value"); err != nil {
		return r, err
	}
	if p.accept(',') {
		if r.Effect = p.word(); r.Effect == "" {
			return r, p.fail("expected reroll effect")
		}
		if p.accept(',') {
			if r.Limit, err = p.requireInteger("reroll limit"); err != nil {
				return r, err
			}
		}
	}
	return r, p.terminator()
}

// verboseMap parses "[op]int[,mapped_value[,label]]." after "m:".
func (p *parser) verboseMap() (MapSpec, error) {
	m := MapSpec{Op: p.operator(), MappedValue: 1}
	var err error
	if m.Value, err = p.signedInteger("map trigger value"); err != nil {
		return m, err
	}
	if p.accept(',') {
		if m.MappedValue, err = p.signedInteger("mapped value"); err != nil {
			return m, err
		}
		if p.accept(',') {
			end := strings.IndexByte(p.input[p.pos:], '.')
			if end < 0 {
				return m, p.fail("unterminated map label")
			}
			m.Label = strings.TrimSpace(p.input[p.pos : p.pos+end])
			if strings.ContainsRune(m.Label, ',') {
				return m, p.fail("map label must not contain ','")
			}
			p.pos += end
		}
	}
	return m, p.terminator()
}

// verboseKeep parses "number[,best|worst]." after "k:".
func (p *parser) verboseKeep(b *BunchSpec) error {
	n, err := p.requireInteger("keep count")
	if err != nil {
		return err
	}
	mode := KeepBest
	if p.accept(',') {
		switch w := p.word(); KeepMode(w) {
		case KeepBest, KeepWorst:
			mode = KeepMode(w)
		default:
			p.pos -= len(w)
			return p.fail("expected 'best' or 'worst'")
		}
	}
	b.KeepMode, b.KeepNumber = mode, n
	return p.terminator()
}

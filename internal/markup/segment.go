package markup

import "strings"

// Request variables known to both targets.
const (
	VarLang  = "lang"
	VarRoute = "route"
)

// slotMark delimits a request variable inside substituted strings. It is a
// private-use code point so it never occurs in authored content.
const slotMark = "\uE000"

// Slot returns the in-string placeholder for a request variable. Placeholder
// substitution puts slots where {{lang}} or {{route}} was written, and the
// lowering turns them into Var segments.
func Slot(name string) string {
	return slotMark + name + slotMark
}

// Piece is either literal text or a request variable reference.
type Piece struct {
	Literal string
	Var     string
}

// SplitSlots splits s into literal pieces and variable references.
func SplitSlots(s string) []Piece {
	if !strings.Contains(s, slotMark) {
		if s == "" {
			return nil
		}
		return []Piece{{Literal: s}}
	}
	var pieces []Piece
	for {
		start := strings.Index(s, slotMark)
		if start < 0 {
			break
		}
		end := strings.Index(s[start+len(slotMark):], slotMark)
		if end < 0 {
			break
		}
		name := s[start+len(slotMark) : start+len(slotMark)+end]
		if start > 0 {
			pieces = append(pieces, Piece{Literal: s[:start]})
		}
		pieces = append(pieces, Piece{Var: name})
		s = s[start+2*len(slotMark)+end:]
	}
	if s != "" {
		pieces = append(pieces, Piece{Literal: s})
	}
	return pieces
}

// Segment is one instruction of a lowered program.
type Segment interface {
	segment()
}

// Static is markup that is emitted as is. It is already escaped.
type Static string

// Var emits the escaped value of a request variable.
type Var string

// Translation emits the escaped translation of a key. The key may contain
// request variables.
type Translation struct {
	Key []Piece
}

// Condition selects a Conditional body. Exactly one field is set.
type Condition struct {
	Flag  string // a request flag is truthy
	Lang  string // the request language equals Lang
	Route string // the request route equals Route
}

// Conditional emits Body when Condition holds.
type Conditional struct {
	Condition Condition
	Body      Program
}

// Include emits another unit, "menu" or "footer".
type Include string

func (Static) segment()      {}
func (Var) segment()         {}
func (Translation) segment() {}
func (Conditional) segment() {}
func (Include) segment()     {}

// Program is a sequence of segments.
type Program []Segment

// builder accumulates a program and merges adjacent static markup.
type builder struct {
	prog Program
}

func (b *builder) static(s string) {
	if s == "" {
		return
	}
	if n := len(b.prog); n > 0 {
		if last, ok := b.prog[n-1].(Static); ok {
			b.prog[n-1] = last + Static(s)
			return
		}
	}
	b.prog = append(b.prog, Static(s))
}

// text escapes s, turning slots into Var segments.
func (b *builder) text(s string) {
	for _, p := range SplitSlots(s) {
		if p.Var != "" {
			b.add(Var(p.Var))
			continue
		}
		b.static(Escape(p.Literal))
	}
}

func (b *builder) url(u URL) {
	b.text(u.Head)
	if u.Localized {
		b.add(Var(VarLang))
		b.text(u.Tail)
	}
}

func (b *builder) add(seg Segment) {
	if s, ok := seg.(Static); ok {
		b.static(string(s))
		return
	}
	b.prog = append(b.prog, seg)
}

func (b *builder) program(p Program) {
	for _, seg := range p {
		b.add(seg)
	}
}

func (b *builder) conditional(c Condition, body Program) {
	if len(body) == 0 {
		return
	}
	b.add(Conditional{Condition: c, Body: body})
}

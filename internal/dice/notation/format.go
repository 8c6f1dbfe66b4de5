package notation

import (
	"strconv"
	"strings"
)

// String renders s in canonical verbose form. Parse(s.String()) reproduces s,
// which makes the canonical form usable as a cache key.
func (s Spec) String() string {
	var sb strings.Builder
	for i, b := range s.Bunches {
		switch {
		case b.Multiplier < 0:
			sb.WriteByte('-')
		case i > 0:
			sb.WriteByte('+')
		}
		sb.WriteString(b.String())
	}
	switch {
	case len(s.Bunches) == 0:
		sb.WriteString(strconv.Itoa(s.Offset))
	case s.Offset > 0:
		sb.WriteByte('+')
		sb.WriteString(strconv.Itoa(s.Offset))
	case s.Offset < 0:
		sb.WriteString(strconv.Itoa(s.Offset))
	}
	return sb.String()
}

// String renders the bunch without its sign.
func (b BunchSpec) String() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(b.NDice))
	sb.WriteByte('d')
	sb.WriteString(strconv.Itoa(b.Sides))
	for _, r := range b.Rerolls {
		sb.WriteString("r:")
		sb.WriteString(r.Op)
		sb.WriteString(strconv.Itoa(r.Value))
		sb.WriteByte(',')
		sb.WriteString(r.Effect)
		if r.Limit != 0 {
			sb.WriteByte(',')
			sb.WriteString(strconv.Itoa(r.Limit))
		}
		sb.WriteByte('.')
	}
	for _, m := range b.Maps {
		sb.WriteString("m:")
		sb.WriteString(m.Op)
		sb.WriteString(strconv.Itoa(m.Value))
		sb.WriteByte(',')
		sb.WriteString(strconv.Itoa(m.MappedValue))
		if m.Label != "" {
			sb.WriteByte(',')
			sb.WriteString(m.Label)
		}
		sb.WriteByte('.')
	}
	if b.KeepMode != KeepNone {
		sb.WriteString("k:")
		sb.WriteString(strconv.Itoa(b.KeepNumber))
		sb.WriteByte(',')
		sb.WriteString(string(b.KeepMode))
		sb.WriteByte('.')
	}
	return sb.String()
}

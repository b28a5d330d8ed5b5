package diff

import "strings"

// Render serialises p back to unified-diff text. For a patch returned by Parse
// and left unmodified, the output equals the parsed input byte for byte.
func Render(p *Patch) string {
	var b strings.Builder
	for _, l := range p.Preamble {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteString("--- ")
	b.WriteString(p.sourceHeaderText())
	b.WriteByte('\n')
	b.WriteString("+++ ")
	b.WriteString(p.destHeaderText())
	b.WriteByte('\n')

	for _, h := range p.Hunks {
		b.WriteString(h.Header())
		b.WriteByte('\n')
		for _, l := range h.Lines {
			if !l.bare {
				b.WriteString(l.Op.prefix())
			}
			b.WriteString(l.Text)
			b.WriteByte('\n')
		}
		for _, t := range h.trailer {
			b.WriteString(t)
			b.WriteByte('\n')
		}
	}

	out := b.String()
	if p.noFinalNewline {
		out = strings.TrimSuffix(out, "\n")
	}
	return out
}

// String implements fmt.Stringer.
func (p *Patch) String() string {
	return Render(p)
}

func (p *Patch) sourceHeaderText() string {
	if p.sourceHeader != "" {
		return p.sourceHeader
	}
	return p.SourceLabel
}

func (p *Patch) destHeaderText() string {
	if p.destHeader != "" {
		return p.destHeader
	}
	return p.DestLabel
}

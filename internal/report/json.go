package report

import (
	"io"
	"strings"

	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/shelf/internal/store"
)

// EntityJSON renders one entity as an indented JSON object with keys in
// the kind's column order.
func EntityJSON(e store.Entity) string {
	var b strings.Builder
	writeObject(&b, e, "")
	return b.String()
}

// JSON writes entities as an indented JSON array of objects keyed in
// column order.
func JSON(w io.Writer, es []store.Entity) error {
	var b strings.Builder
	if len(es) == 0 {
		b.WriteString("[]\n")
	} else {
		b.WriteString("[")
		for i, e := range es {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString("\n  ")
			writeObject(&b, e, "  ")
		}
		b.WriteString("\n]\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeObject(b *strings.Builder, e store.Entity, indent string) {
	vals := e.Values()
	b.WriteString("{")
	for i, col := range e.Kind.Columns() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString("\n" + indent + "  ")
		b.WriteString(oj.JSON(col))
		b.WriteString(": ")
		b.WriteString(oj.JSON(vals[col]))
	}
	b.WriteString("\n" + indent + "}")
}

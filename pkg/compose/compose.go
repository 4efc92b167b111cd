// Package compose builds queries from trusted SQL text, quoted identifiers,
// literal values and placeholders. Every node implements query.Composable
// and renders in the client encoding of the transformer it is given.
package compose

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-pgquery/pkg/pgenc"
	"github.com/ekaya-inc/ekaya-pgquery/pkg/query"
	"github.com/ekaya-inc/ekaya-pgquery/pkg/sql"
)

// SQL is trusted query text, included as is.
type SQL string

// AsBytes implements query.Composable.
func (s SQL) AsBytes(tx query.Transformer) ([]byte, error) {
	return pgenc.Encode(string(s), tx.Encoding())
}

// Format replaces the {} and {n} slots of s with args. {} takes the next
// argument and {n} the n-th, counting from 0; the two styles cannot be
// mixed. Any other brace, including the {{name}} of template queries, is
// kept as text.
func (s SQL) Format(args ...query.Composable) (Composed, error) {
	var out Composed
	text := string(s)
	next := 0
	auto, manual := false, false
	last := 0

	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		j := i + 1
		for j < len(text) && text[j] >= '0' && text[j] <= '9' {
			j++
		}
		if j >= len(text) || text[j] != '}' {
			continue
		}

		var idx int
		if j == i+1 {
			if manual {
				return nil, fmt.Errorf("cannot mix {} and {n} in %q", text)
			}
			auto = true
			idx = next
			next++
		} else {
			if auto {
				return nil, fmt.Errorf("cannot mix {} and {n} in %q", text)
			}
			manual = true
			n, err := strconv.Atoi(text[i+1 : j])
			if err != nil {
				return nil, fmt.Errorf("bad slot %q: %w", text[i:j+1], err)
			}
			idx = n
		}
		if idx >= len(args) {
			return nil, fmt.Errorf("slot %d of %q has no argument (%d given)", idx, text, len(args))
		}

		if i > last {
			out = append(out, SQL(text[last:i]))
		}
		out = append(out, args[idx])
		i = j
		last = j + 1
	}

	if last < len(text) {
		out = append(out, SQL(text[last:]))
	}
	return out, nil
}

// Join returns the parts separated by s.
func (s SQL) Join(parts ...query.Composable) Composed {
	out := make(Composed, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			out = append(out, s)
		}
		out = append(out, p)
	}
	return out
}

// Composed is a sequence of nodes rendered one after the other.
type Composed []query.Composable

// AsBytes implements query.Composable.
func (c Composed) AsBytes(tx query.Transformer) ([]byte, error) {
	var buf bytes.Buffer
	for _, part := range c {
		b, err := part.AsBytes(tx)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	return buf.Bytes(), nil
}

// Identifier is a possibly schema-qualified name, e.g. Identifier{"public", "users"}.
type Identifier []string

// AsBytes implements query.Composable.
func (id Identifier) AsBytes(tx query.Transformer) ([]byte, error) {
	if len(id) == 0 {
		return nil, fmt.Errorf("empty identifier")
	}
	return pgenc.Encode(pgx.Identifier(id).Sanitize(), tx.Encoding())
}

// Literal renders a value as a quoted SQL literal using the text form the
// transformer dumps for it. nil renders as NULL.
type Literal struct {
	Value any
}

// AsBytes implements query.Composable.
func (l Literal) AsBytes(tx query.Transformer) ([]byte, error) {
	dumped, _, _, err := tx.DumpSequence([]any{l.Value}, []query.Format{query.FormatText})
	if err != nil {
		return nil, err
	}
	if len(dumped) != 1 {
		return nil, fmt.Errorf("literal dumped to %d values", len(dumped))
	}
	if dumped[0] == nil {
		return []byte("NULL"), nil
	}
	return pgenc.Encode(quoteLiteral(string(dumped[0])), tx.Encoding())
}

func quoteLiteral(s string) string {
	quoted := "'" + strings.ReplaceAll(s, "'", "''") + "'"
	if strings.Contains(s, `\`) {
		// Escape strings keep their meaning whatever standard_conforming_strings says.
		return " E" + strings.ReplaceAll(quoted, `\`, `\\`)
	}
	return quoted
}

var placeholderName = regexp.MustCompile(`^[a-zA-Z_]\w*$`)

// Placeholder stands for a parameter. A named placeholder renders as
// {{name}} for the template dialect, with a :t or :b suffix when Format
// asks for one; an unnamed one renders as $Position.
type Placeholder struct {
	Name     string
	Position int
	Format   query.Format
}

// AsBytes implements query.Composable.
func (p Placeholder) AsBytes(tx query.Transformer) ([]byte, error) {
	if p.Name == "" {
		if p.Position < 1 || p.Position > sql.MaxPlaceholder {
			return nil, fmt.Errorf("placeholder position %d out of range", p.Position)
		}
		return []byte("$" + strconv.Itoa(p.Position)), nil
	}

	if !placeholderName.MatchString(p.Name) {
		return nil, fmt.Errorf("invalid placeholder name %q", p.Name)
	}
	switch p.Format {
	case query.FormatText:
		return []byte("{{" + p.Name + ":t}}"), nil
	case query.FormatBinary:
		return []byte("{{" + p.Name + ":b}}"), nil
	default:
		return []byte("{{" + p.Name + "}}"), nil
	}
}

var (
	_ query.Composable = SQL("")
	_ query.Composable = Composed(nil)
	_ query.Composable = Identifier(nil)
	_ query.Composable = Literal{}
	_ query.Composable = Placeholder{}
)

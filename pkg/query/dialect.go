package query

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-pgquery/pkg/pgenc"
	"github.com/ekaya-inc/ekaya-pgquery/pkg/sql"
)

// Part is one fragment of a parsed query: literal text and the placeholder
// that follows it. The trailing fragment has Item 0.
type Part struct {
	Pre    []byte
	Item   int    // 1-based parameter position
	Name   string // template name, empty for native placeholders
	Format Format
}

// ParseResult is the structural parse of one query text. It is shared
// through the cache and must not be modified.
type ParseResult struct {
	Query        []byte   // bytes to send, placeholders in $n form
	Formats      []Format // per-position format hints, nil when the text has none
	Order        []string // per-position parameter names, nil for native placeholders
	Parts        []Part
	Placeholders int // highest $n used
}

// Dialect is a placeholder syntax. RawDialect uses the server's native $n
// placeholders verbatim; TemplateDialect rewrites {{name}} placeholders into
// $n and binds parameters by name. The zero value is RawDialect.
type Dialect uint8

const (
	RawDialect Dialect = iota
	TemplateDialect
)

// ParseDialect returns the dialect called name ("raw" or "template").
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "", "raw":
		return RawDialect, nil
	case "template":
		return TemplateDialect, nil
	default:
		return RawDialect, fmt.Errorf("unknown query dialect %q", name)
	}
}

func (d Dialect) String() string {
	switch d {
	case RawDialect:
		return "raw"
	case TemplateDialect:
		return "template"
	default:
		return fmt.Sprintf("Dialect(%d)", uint8(d))
	}
}

// Named reports whether the dialect binds parameters by name.
func (d Dialect) Named() bool {
	return d == TemplateDialect
}

// Rewrite turns the dialect's placeholders into native ones. Raw queries
// are never rewritten, so calling Rewrite on RawDialect is a programming
// error and panics.
func (d Dialect) Rewrite(query []byte) (*ParseResult, error) {
	switch d {
	case TemplateDialect:
		return rewriteTemplate(query)
	default:
		panic("query: " + d.String() + " dialect has no placeholder rewriter")
	}
}

func (d Dialect) parse(query []byte) (*ParseResult, error) {
	if d.Named() {
		return d.Rewrite(query)
	}
	return scanNative(query)
}

// parseIn parses query as text in the named client encoding. Encodings whose
// multibyte characters can hold ASCII bytes are parsed as decoded text, and
// the result is encoded back.
func (d Dialect) parseIn(query []byte, encoding string) (*ParseResult, error) {
	if pgenc.ASCIISafe(encoding) {
		return d.parse(query)
	}

	text, err := pgenc.Decode(query, encoding)
	if err != nil {
		return nil, err
	}
	res, err := d.parse([]byte(text))
	if err != nil {
		return nil, err
	}

	out := *res
	out.Query = query
	if d.Named() {
		if out.Query, err = pgenc.Encode(string(res.Query), encoding); err != nil {
			return nil, err
		}
	}
	out.Parts = make([]Part, len(res.Parts))
	for i, p := range res.Parts {
		if p.Pre, err = pgenc.Encode(string(p.Pre), encoding); err != nil {
			return nil, err
		}
		out.Parts[i] = p
	}
	return &out, nil
}

func scanNative(query []byte) (*ParseResult, error) {
	s, err := sql.ScanPlaceholders(query)
	if err != nil {
		return nil, err
	}

	parts := make([]Part, len(s.Parts))
	for i, f := range s.Parts {
		parts[i] = Part{Pre: f.Pre, Item: f.Index, Format: FormatAuto}
	}

	return &ParseResult{
		Query:        query,
		Parts:        parts,
		Placeholders: s.Max,
	}, nil
}

func rewriteTemplate(query []byte) (*ParseResult, error) {
	r, err := sql.RewriteTemplate(query)
	if err != nil {
		return nil, err
	}

	parts := make([]Part, len(r.Parts))
	for i, f := range r.Parts {
		parts[i] = Part{Pre: f.Pre, Item: f.Index, Name: f.Name, Format: formatFromHint(f.Hint)}
	}

	var formats []Format
	if r.Hints != nil {
		formats = make([]Format, len(r.Hints))
		for i, h := range r.Hints {
			formats[i] = formatFromHint(h)
		}
	}

	return &ParseResult{
		Query:        r.Query,
		Formats:      formats,
		Order:        r.Names,
		Parts:        parts,
		Placeholders: len(r.Names),
	}, nil
}

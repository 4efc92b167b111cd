// Package adapt dumps Go values into PostgreSQL parameter bytes using the
// pgx type map of a connection.
package adapt

import (
	"database/sql/driver"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ekaya-inc/ekaya-pgquery/pkg/pgenc"
	"github.com/ekaya-inc/ekaya-pgquery/pkg/query"
)

// UnknownOID leaves the parameter type to the server.
const UnknownOID uint32 = 0

const xmlOID = 142

// textOIDs are types whose binary form is their text in the client encoding.
var textOIDs = map[uint32]bool{
	pgtype.TextOID:    true,
	pgtype.VarcharOID: true,
	pgtype.BPCharOID:  true,
	pgtype.NameOID:    true,
	pgtype.JSONOID:    true,
	xmlOID:            true,
}

// textArrayOIDs are arrays of text types. Their binary form nests element
// payloads, so under a converting client encoding they go out as text.
var textArrayOIDs = map[uint32]bool{
	pgtype.TextArrayOID:    true,
	pgtype.VarcharArrayOID: true,
	pgtype.BPCharArrayOID:  true,
	pgtype.NameArrayOID:    true,
	pgtype.JSONArrayOID:    true,
	pgtype.JSONBArrayOID:   true,
}

// DumpError reports a parameter value that could not be dumped.
type DumpError struct {
	Position int // 1-based
	Type     string
	Err      error
}

func (e *DumpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cannot dump parameter $%d of type %s", e.Position, e.Type)
	}
	return fmt.Sprintf("cannot dump parameter $%d of type %s: %v", e.Position, e.Type, e.Err)
}

func (e *DumpError) Unwrap() error {
	return e.Err
}

// Transformer implements query.Transformer on a pgtype.Map. Like the map,
// it is not safe for concurrent use.
type Transformer struct {
	m        *pgtype.Map
	encoding string
}

// NewTransformer wraps m. encoding is the connection's client_encoding; empty
// means UTF8.
func NewTransformer(m *pgtype.Map, encoding string) *Transformer {
	if m == nil {
		m = pgtype.NewMap()
	}
	if encoding == "" {
		encoding = pgenc.UTF8
	}
	return &Transformer{m: m, encoding: encoding}
}

// Encoding returns the client encoding.
func (t *Transformer) Encoding() string {
	return t.encoding
}

// TypeMap returns the underlying pgtype.Map.
func (t *Transformer) TypeMap() *pgtype.Map {
	return t.m
}

// DumpSequence implements query.Transformer.
func (t *Transformer) DumpSequence(values []any, formats []query.Format) ([][]byte, []uint32, []int16, error) {
	if len(formats) != len(values) {
		return nil, nil, nil, fmt.Errorf("dump %d values with %d formats", len(values), len(formats))
	}

	dumped := make([][]byte, len(values))
	oids := make([]uint32, len(values))
	codes := make([]int16, len(values))

	for i, v := range values {
		buf, oid, code, err := t.dump(v, formats[i])
		if err == nil {
			buf, err = t.transcode(oid, code, buf)
		}
		if err != nil {
			return nil, nil, nil, &DumpError{Position: i + 1, Type: fmt.Sprintf("%T", v), Err: err}
		}
		dumped[i], oids[i], codes[i] = buf, oid, code
	}

	return dumped, oids, codes, nil
}

func (t *Transformer) dump(v any, want query.Format) ([]byte, uint32, int16, error) {
	if isNil(v) {
		return nil, UnknownOID, pgtype.TextFormatCode, nil
	}

	typ, ok := t.m.TypeForValue(v)
	if !ok {
		return t.dumpUnregistered(v, want)
	}

	code, err := t.formatCode(typ.OID, want, v)
	if err != nil {
		return nil, 0, 0, err
	}
	if code == pgtype.BinaryFormatCode && textArrayOIDs[typ.OID] && t.converts() {
		if want == query.FormatBinary {
			return nil, 0, 0, fmt.Errorf("binary %s arrays cannot be sent in client encoding %s", typ.Name, t.encoding)
		}
		code = pgtype.TextFormatCode
	}

	// Encode returns nil for SQL NULL; start from a non-nil buffer so an
	// empty value stays distinguishable from NULL.
	buf, err := t.m.Encode(typ.OID, code, v, []byte{})
	if err != nil {
		return nil, 0, 0, err
	}
	return buf, typ.OID, code, nil
}

// formatCode picks the wire format for v. FormatAuto takes the codec's
// preferred format and falls back to the other one when v cannot be
// encoded in it.
func (t *Transformer) formatCode(oid uint32, want query.Format, v any) (int16, error) {
	switch want {
	case query.FormatText:
		return pgtype.TextFormatCode, nil
	case query.FormatBinary:
		return pgtype.BinaryFormatCode, nil
	case query.FormatAuto:
		code := t.m.FormatCodeForOID(oid)
		if t.m.PlanEncode(oid, code, v) != nil {
			return code, nil
		}
		other := int16(pgtype.TextFormatCode)
		if code == pgtype.TextFormatCode {
			other = pgtype.BinaryFormatCode
		}
		if t.m.PlanEncode(oid, other, v) != nil {
			return other, nil
		}
		return code, nil
	default:
		return 0, fmt.Errorf("unknown format %v", want)
	}
}

// dumpUnregistered handles values the type map does not know: driver
// values are converted once and retried; Stringers go out as text of
// unknown type, for the server to cast.
func (t *Transformer) dumpUnregistered(v any, want query.Format) ([]byte, uint32, int16, error) {
	switch vv := v.(type) {
	case driver.Valuer:
		dv, err := vv.Value()
		if err != nil {
			return nil, 0, 0, err
		}
		if isNil(dv) {
			return nil, UnknownOID, pgtype.TextFormatCode, nil
		}
		if _, ok := t.m.TypeForValue(dv); ok {
			return t.dump(dv, want)
		}
	case fmt.Stringer:
		if want == query.FormatBinary {
			return nil, 0, 0, fmt.Errorf("no binary representation")
		}
		return []byte(vv.String()), UnknownOID, pgtype.TextFormatCode, nil
	}
	return nil, 0, 0, fmt.Errorf("unsupported type")
}

// converts reports whether text must be converted from UTF-8 for the
// client encoding. Unknown encodings report false; transcode reports them.
func (t *Transformer) converts() bool {
	codec, err := pgenc.Lookup(t.encoding)
	return err == nil && codec != nil
}

// transcode converts the UTF-8 text pgx produced into the client encoding:
// every text-format value, and the binary form of text types.
func (t *Transformer) transcode(oid uint32, code int16, buf []byte) ([]byte, error) {
	if len(buf) == 0 {
		return buf, nil
	}
	codec, err := pgenc.Lookup(t.encoding)
	if err != nil || codec == nil {
		return buf, err
	}

	switch {
	case code == pgtype.TextFormatCode, textOIDs[oid]:
		return pgenc.Encode(string(buf), t.encoding)
	case oid == pgtype.JSONBOID:
		// Version byte, then the document text.
		rest, err := pgenc.Encode(string(buf[1:]), t.encoding)
		if err != nil {
			return nil, err
		}
		return append([]byte{buf[0]}, rest...), nil
	}
	return buf, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

var _ query.Transformer = (*Transformer)(nil)

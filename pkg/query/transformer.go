package query

// Transformer turns application values into wire bytes for one connection.
type Transformer interface {
	// Encoding is the connection's client_encoding, e.g. "UTF8".
	Encoding() string

	// DumpSequence dumps values in order, asking for formats[i] for
	// values[i]. A nil entry in dumped is SQL NULL. oids and codes hold the
	// type OID and the format code actually used for each value.
	DumpSequence(values []any, formats []Format) (dumped [][]byte, oids []uint32, codes []int16, err error)
}

// Composable is a query AST node that can render itself as query bytes.
type Composable interface {
	AsBytes(tx Transformer) ([]byte, error)
}

package query

import (
	"github.com/jackc/pgx/v5/pgproto3"
)

// Compiled is the payload for one parameterized statement execution.
//
// When no parameters were supplied, WantFormats, Params, Types and Formats
// are all nil. Otherwise each holds one entry per parameter, in parameter
// order. Compiled values, including Query, must not be modified; Query may
// be shared with the placeholder cache.
type Compiled struct {
	Query       []byte
	WantFormats []Format
	Params      [][]byte // nil entry for SQL NULL
	Types       []uint32
	Formats     []int16
}

// HasParams reports whether parameters were supplied, even an empty set.
func (c *Compiled) HasParams() bool {
	return c.Params != nil
}

// ParseMessage returns the extended-protocol Parse message for the query.
func (c *Compiled) ParseMessage(name string) *pgproto3.Parse {
	return &pgproto3.Parse{
		Name:          name,
		Query:         string(c.Query),
		ParameterOIDs: c.Types,
	}
}

// BindMessage returns the Bind message carrying the dumped parameters.
func (c *Compiled) BindMessage(portal, stmt string, resultFormats []int16) *pgproto3.Bind {
	return &pgproto3.Bind{
		DestinationPortal:    portal,
		PreparedStatement:    stmt,
		ParameterFormatCodes: c.Formats,
		Parameters:           c.Params,
		ResultFormatCodes:    resultFormats,
	}
}

package postgres

import (
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// typeNames maps the common PostgreSQL type OIDs to display names.
var typeNames = map[uint32]string{
	pgtype.BoolOID:        "BOOL",
	pgtype.ByteaOID:       "BYTEA",
	pgtype.QCharOID:       "CHAR",
	pgtype.Int8OID:        "INT8",
	pgtype.Int2OID:        "INT2",
	pgtype.Int4OID:        "INT4",
	pgtype.TextOID:        "TEXT",
	pgtype.OIDOID:         "OID",
	pgtype.JSONOID:        "JSON",
	142:                   "XML",
	pgtype.Float4OID:      "FLOAT4",
	pgtype.Float8OID:      "FLOAT8",
	790:                   "MONEY",
	pgtype.BPCharOID:      "BPCHAR",
	pgtype.VarcharOID:     "VARCHAR",
	pgtype.DateOID:        "DATE",
	pgtype.TimeOID:        "TIME",
	pgtype.TimestampOID:   "TIMESTAMP",
	pgtype.TimestamptzOID: "TIMESTAMPTZ",
	pgtype.IntervalOID:    "INTERVAL",
	1266:                  "TIMETZ",
	pgtype.NumericOID:     "NUMERIC",
	pgtype.UUIDOID:        "UUID",
	pgtype.JSONBOID:       "JSONB",
	pgtype.UnknownOID:     "UNKNOWN",

	pgtype.BoolArrayOID:    "BOOL[]",
	pgtype.Int2ArrayOID:    "INT2[]",
	pgtype.Int4ArrayOID:    "INT4[]",
	pgtype.Int8ArrayOID:    "INT8[]",
	pgtype.TextArrayOID:    "TEXT[]",
	pgtype.VarcharArrayOID: "VARCHAR[]",
	pgtype.Float4ArrayOID:  "FLOAT4[]",
	pgtype.Float8ArrayOID:  "FLOAT8[]",
	pgtype.UUIDArrayOID:    "UUID[]",
	pgtype.JSONBArrayOID:   "JSONB[]",
}

// pgTypeNameFromOID maps a PostgreSQL type OID to a human-readable type name.
// Types missing from typeNames are looked up in m, which also knows the
// enums and composites registered on the connection; anything else is
// "UNKNOWN".
func pgTypeNameFromOID(m *pgtype.Map, oid uint32) string {
	if name, ok := typeNames[oid]; ok {
		return name
	}
	if m != nil {
		if t, ok := m.TypeForOID(oid); ok {
			if strings.HasPrefix(t.Name, "_") {
				return strings.ToUpper(t.Name[1:]) + "[]"
			}
			return strings.ToUpper(t.Name)
		}
	}
	return "UNKNOWN"
}

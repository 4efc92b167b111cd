// Package pgenc converts between Go strings and the byte encodings a
// PostgreSQL connection can use as its client_encoding.
package pgenc

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// UTF8 is the encoding pgx connections negotiate.
const UTF8 = "UTF8"

// ErrUnknownEncoding indicates a client_encoding with no known codec.
var ErrUnknownEncoding = errors.New("unknown client encoding")

// codecs is keyed by canonical name. A nil codec means Go strings are sent
// as they are: UTF8 needs no conversion and SQL_ASCII is not converted by
// the server either.
var codecs = map[string]encoding.Encoding{
	"UTF8":     nil,
	"UNICODE":  nil,
	"SQLASCII": nil,
	"LATIN1":   charmap.ISO8859_1,
	"LATIN2":   charmap.ISO8859_2,
	"LATIN3":   charmap.ISO8859_3,
	"LATIN4":   charmap.ISO8859_4,
	"LATIN5":   charmap.ISO8859_9,
	"LATIN6":   charmap.ISO8859_10,
	"LATIN7":   charmap.ISO8859_13,
	"LATIN8":   charmap.ISO8859_14,
	"LATIN9":   charmap.ISO8859_15,
	"LATIN10":  charmap.ISO8859_16,
	"ISO88595": charmap.ISO8859_5,
	"ISO88596": charmap.ISO8859_6,
	"ISO88597": charmap.ISO8859_7,
	"ISO88598": charmap.ISO8859_8,
	"WIN866":   charmap.CodePage866,
	"WIN874":   charmap.Windows874,
	"WIN1250":  charmap.Windows1250,
	"WIN1251":  charmap.Windows1251,
	"WIN1252":  charmap.Windows1252,
	"WIN1253":  charmap.Windows1253,
	"WIN1254":  charmap.Windows1254,
	"WIN1255":  charmap.Windows1255,
	"WIN1256":  charmap.Windows1256,
	"WIN1257":  charmap.Windows1257,
	"WIN1258":  charmap.Windows1258,
	"KOI8R":    charmap.KOI8R,
	"KOI8U":    charmap.KOI8U,
	"EUCJP":    japanese.EUCJP,
	"SJIS":     japanese.ShiftJIS,
	"EUCKR":    korean.EUCKR,
	"UHC":      korean.EUCKR,
	"EUCCN":    simplifiedchinese.GBK,
	"GBK":      simplifiedchinese.GBK,
	"GB18030":  simplifiedchinese.GB18030,
	"BIG5":     traditionalchinese.Big5,
}

// asciiUnsafe are the encodings whose multibyte characters may contain
// bytes below 0x80, such as the SJIS trail byte 0x5C, a backslash in ASCII.
var asciiUnsafe = map[string]bool{
	"SJIS":    true,
	"BIG5":    true,
	"GBK":     true,
	"GB18030": true,
	"UHC":     true,
}

// ASCIISafe reports whether every byte below 0x80 in text of the named
// encoding is the ASCII character it looks like. Bytes in such encodings
// can be scanned for quotes and placeholders directly.
func ASCIISafe(name string) bool {
	return !asciiUnsafe[Canonical(name)]
}

// Canonical normalizes an encoding name: upper case, without '-' or '_'.
// The empty name is UTF8.
func Canonical(name string) string {
	if name == "" {
		return UTF8
	}
	name = strings.ToUpper(name)
	return strings.NewReplacer("-", "", "_", "").Replace(name)
}

// Lookup returns the codec for a client_encoding name. A nil codec with a
// nil error means no conversion is needed.
func Lookup(name string) (encoding.Encoding, error) {
	enc, ok := codecs[Canonical(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
	return enc, nil
}

// Encode converts s to the named client encoding. Characters the encoding
// cannot represent are an error.
func Encode(s string, name string) ([]byte, error) {
	enc, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return []byte(s), nil
	}

	b, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("encode as %s: %w", name, err)
	}
	return b, nil
}

// Decode converts b from the named client encoding to a Go string.
func Decode(b []byte, name string) (string, error) {
	enc, err := Lookup(name)
	if err != nil {
		return "", err
	}
	if enc == nil {
		return string(b), nil
	}

	s, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode from %s: %w", name, err)
	}
	return string(s), nil
}

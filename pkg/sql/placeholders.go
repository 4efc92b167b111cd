package sql

import (
	"errors"
	"fmt"
)

// MaxPlaceholder is the highest parameter number the wire protocol can bind.
const MaxPlaceholder = 65535

var (
	// ErrBadPlaceholder indicates a $n placeholder outside 1..MaxPlaceholder.
	ErrBadPlaceholder = errors.New("invalid placeholder")
	// ErrMixedPlaceholders indicates a template query that also uses $n placeholders.
	ErrMixedPlaceholders = errors.New("template queries cannot mix {{name}} and $n placeholders")
	// ErrFormatConflict indicates one template name used with different format hints.
	ErrFormatConflict = errors.New("placeholder used with different formats")
)

// Fragment is a piece of a query: literal text followed by the placeholder
// that comes after it. The last fragment of a query has Index 0.
type Fragment struct {
	Pre   []byte
	Index int    // 1-based parameter position, 0 for the trailing text
	Name  string // template name, empty for native placeholders
	Hint  byte   // 't' or 'b' when the template asks for a format, otherwise 0
}

// Scan is the result of scanning a query for native $n placeholders.
type Scan struct {
	Parts []Fragment
	Max   int // highest placeholder number, 0 if there are none
}

// ScanPlaceholders finds the native $n placeholders in query. Text inside
// string literals, quoted identifiers, dollar-quoted bodies and comments is
// skipped, as is a $ that continues an identifier.
//
// Example:
//
//	s, _ := ScanPlaceholders([]byte("SELECT $1, '$2', $3"))
//	// s.Max == 3, len(s.Parts) == 3
func ScanPlaceholders(query []byte) (Scan, error) {
	var s Scan
	last := 0

	for i := 0; i < len(query); {
		if j := skipQuoted(query, i); j > i {
			i = j
			continue
		}

		num, end, ok, err := nativePlaceholder(query, i)
		if err != nil {
			return Scan{}, err
		}
		if !ok {
			i++
			continue
		}

		s.Parts = append(s.Parts, Fragment{Pre: query[last:i], Index: num})
		if num > s.Max {
			s.Max = num
		}
		last = end
		i = end
	}

	s.Parts = append(s.Parts, Fragment{Pre: query[last:]})
	return s, nil
}

// nativePlaceholder reports whether a $n placeholder starts at query[i].
func nativePlaceholder(query []byte, i int) (num, end int, ok bool, err error) {
	if query[i] != '$' || i+1 >= len(query) || !isDigit(query[i+1]) {
		return 0, 0, false, nil
	}
	if i > 0 && isIdentByte(query[i-1]) {
		return 0, 0, false, nil
	}

	end = i + 1
	for end < len(query) && isDigit(query[end]) {
		if num <= MaxPlaceholder {
			num = num*10 + int(query[end]-'0')
		}
		end++
	}
	if num < 1 || num > MaxPlaceholder {
		return 0, 0, false, fmt.Errorf("%w: %s", ErrBadPlaceholder, query[i:end])
	}
	return num, end, true, nil
}

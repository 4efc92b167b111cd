package sql

import (
	"fmt"
	"regexp"
	"strconv"
)

// parameterRegex matches {{parameter_name}} placeholders in SQL templates.
// Parameter names must start with a letter or underscore, followed by any
// number of alphanumeric characters or underscores. An optional :t or :b
// suffix asks for the text or binary wire format.
var parameterRegex = regexp.MustCompile(`\{\{([a-zA-Z_]\w*)(?::([tb]))?\}\}`)

// templateAt matches a placeholder only at the start of its input.
var templateAt = regexp.MustCompile(`^\{\{([a-zA-Z_]\w*)(?::([tb]))?\}\}`)

// Rewritten is a template query with its {{name}} placeholders replaced by
// PostgreSQL positional parameters.
type Rewritten struct {
	Query []byte
	Names []string // Names[n-1] is the parameter bound to $n
	Hints []byte   // Hints[n-1] is the format hint for $n; nil when no placeholder has one
	Parts []Fragment
}

// RewriteTemplate replaces {{param}} placeholders with PostgreSQL positional
// parameters ($1, $2, etc.).
//
// The function:
//  1. Replaces each unique {{param}} with $N (where N is the order of first appearance)
//  2. Reuses the same $N for parameters that appear multiple times
//  3. Leaves placeholders inside string literals and comments untouched
//  4. Rejects native $N placeholders, which would collide with the rewritten ones
//
// Example:
//
//	r, _ := RewriteTemplate([]byte("SELECT * FROM t WHERE a = {{user_id}} OR b = {{user_id}}"))
//	// string(r.Query) == "SELECT * FROM t WHERE a = $1 OR b = $1"
//	// r.Names == []string{"user_id"}
func RewriteTemplate(query []byte) (Rewritten, error) {
	var r Rewritten
	positions := make(map[string]int)
	hints := []byte{}
	hinted := false
	out := make([]byte, 0, len(query))
	last := 0

	for i := 0; i < len(query); {
		if j := skipQuoted(query, i); j > i {
			i = j
			continue
		}

		if _, _, ok, err := nativePlaceholder(query, i); ok || err != nil {
			return Rewritten{}, ErrMixedPlaceholders
		}

		m := templateAt.FindSubmatchIndex(query[i:])
		if m == nil {
			i++
			continue
		}

		name := string(query[i+m[2] : i+m[3]])
		var hint byte
		if m[4] >= 0 {
			hint = query[i+m[4]]
			hinted = true
		}

		pos, seen := positions[name]
		if seen {
			if hints[pos-1] != hint {
				return Rewritten{}, fmt.Errorf("%w: {{%s}}", ErrFormatConflict, name)
			}
		} else {
			r.Names = append(r.Names, name)
			hints = append(hints, hint)
			pos = len(r.Names)
			positions[name] = pos
		}

		out = append(out, query[last:i]...)
		out = append(out, '$')
		out = strconv.AppendInt(out, int64(pos), 10)
		r.Parts = append(r.Parts, Fragment{Pre: query[last:i], Index: pos, Name: name, Hint: hint})

		i += m[1]
		last = i
	}

	out = append(out, query[last:]...)
	r.Parts = append(r.Parts, Fragment{Pre: query[last:]})
	r.Query = out
	if hinted {
		r.Hints = hints
	}
	return r, nil
}

// FindParametersInStringLiterals checks for {{param}} placeholders that appear
// inside SQL string literals: single-quoted, E'' and dollar-quoted strings.
// Parameters inside string literals won't work as expected because
// RewriteTemplate leaves them as literal text. Placeholders in comments and
// quoted identifiers are not reported.
//
// Returns a list of parameter names that are incorrectly placed inside strings.
//
// Example:
//
//	sql := "SELECT 'Hello {{name}}' FROM users"
//	problems := FindParametersInStringLiterals(sql)
//	// problems == []string{"name"}
func FindParametersInStringLiterals(sqlQuery string) []string {
	var problems []string
	seen := make(map[string]bool)
	q := []byte(sqlQuery)

	for i := 0; i < len(q); {
		j := skipQuoted(q, i)
		if j == i {
			i++
			continue
		}

		if q[i] == '\'' || q[i] == '$' {
			for _, match := range parameterRegex.FindAllSubmatch(q[i:j], -1) {
				name := string(match[1])
				if !seen[name] {
					seen[name] = true
					problems = append(problems, name)
				}
			}
		}
		i = j
	}

	return problems
}

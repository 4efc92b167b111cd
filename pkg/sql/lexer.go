package sql

// skipQuoted returns the offset just past the string literal, quoted
// identifier, dollar-quoted body or comment starting at q[i]. If nothing of
// the kind starts at i, it returns i. Unterminated regions run to the end of
// the query; the server reports those.
func skipQuoted(q []byte, i int) int {
	n := len(q)
	switch q[i] {
	case '\'':
		return skipString(q, i, isEscapeString(q, i))
	case '"':
		for k := i + 1; k < n; k++ {
			if q[k] == '"' {
				if k+1 < n && q[k+1] == '"' {
					k++
					continue
				}
				return k + 1
			}
		}
		return n
	case '-':
		if i+1 < n && q[i+1] == '-' {
			for k := i + 2; k < n; k++ {
				if q[k] == '\n' {
					return k + 1
				}
			}
			return n
		}
	case '/':
		if i+1 < n && q[i+1] == '*' {
			// Block comments nest.
			depth := 1
			for k := i + 2; k < n; k++ {
				switch {
				case q[k] == '/' && k+1 < n && q[k+1] == '*':
					depth++
					k++
				case q[k] == '*' && k+1 < n && q[k+1] == '/':
					depth--
					k++
					if depth == 0 {
						return k + 1
					}
				}
			}
			return n
		}
	case '$':
		if i > 0 && isIdentByte(q[i-1]) {
			return i
		}
		tagEnd := dollarTagEnd(q, i)
		if tagEnd < 0 {
			return i
		}
		tag := q[i:tagEnd]
		for k := tagEnd; k+len(tag) <= n; k++ {
			if q[k] == '$' && string(q[k:k+len(tag)]) == string(tag) {
				return k + len(tag)
			}
		}
		return n
	}
	return i
}

// skipString scans a single-quoted literal. Doubled quotes are always an
// escaped quote; backslash escapes only apply to E'' strings.
func skipString(q []byte, i int, backslash bool) int {
	n := len(q)
	for k := i + 1; k < n; k++ {
		switch q[k] {
		case '\\':
			if backslash {
				k++
			}
		case '\'':
			if k+1 < n && q[k+1] == '\'' {
				k++
				continue
			}
			return k + 1
		}
	}
	return n
}

func isEscapeString(q []byte, i int) bool {
	if i == 0 || (q[i-1] != 'E' && q[i-1] != 'e') {
		return false
	}
	return i < 2 || !isIdentByte(q[i-2])
}

// dollarTagEnd returns the offset past a $tag$ opener at q[i], or -1.
func dollarTagEnd(q []byte, i int) int {
	k := i + 1
	if k < len(q) && q[k] == '$' {
		return k + 1
	}
	if k >= len(q) || !isIdentStart(q[k]) {
		return -1
	}
	for k++; k < len(q); k++ {
		if q[k] == '$' {
			return k + 1
		}
		if !isIdentByte(q[k]) {
			return -1
		}
	}
	return -1
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '$'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

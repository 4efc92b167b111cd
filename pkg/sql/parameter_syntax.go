// Package sql finds and rewrites parameter placeholders in SQL text.
package sql

/*
Parameter Placeholder Syntax

# Overview

Two placeholder syntaxes are understood. Both end up as PostgreSQL positional
parameters ($1, $2, ...) on the wire, because the extended query protocol binds
parameters by position only.

# Native Placeholders

Raw queries use the server's own syntax and are never rewritten:

	SELECT * FROM orders WHERE customer_id = $1 AND total > $2

ScanPlaceholders locates them so the caller can check that every $n has a
value. A placeholder is a $ followed by digits, numbered 1..65535, that does not
continue an identifier (a$1 is an identifier) and is not inside:

- a string literal: '...' with '' escapes, or E'...' with backslash escapes
- a quoted identifier: "..."
- a dollar-quoted body: $$...$$ or $tag$...$tag$
- a comment: -- to end of line, or a block comment, which may nest

# Template Placeholders

Template queries name their parameters with double curly braces:

	SELECT * FROM transactions
	WHERE (sender_id = {{user_id}} OR receiver_id = {{user_id}})
	  AND amount > {{min_amount}}

RewriteTemplate turns this into

	SELECT * FROM transactions
	WHERE (sender_id = $1 OR receiver_id = $1)
	  AND amount > $2

and records the names in position order: [user_id min_amount].

Parameter names must:
- Start with a letter or underscore
- Contain only alphanumeric characters and underscores (a-z, A-Z, 0-9, _)

A name may carry a format hint, {{name:t}} for text or {{name:b}} for binary.
Every occurrence of a name must use the same hint.

Templates may not also contain native $n placeholders, since the rewritten
positions would collide with them. Placeholders inside string literals and
comments are left as they are; FindParametersInStringLiterals reports the ones
inside string literals, which are almost always a mistake.

# Limitations

Parameters only stand in for values. They cannot name tables or columns, and
they cannot stand in for SQL keywords.
*/

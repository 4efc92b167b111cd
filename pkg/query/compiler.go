package query

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-pgquery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-pgquery/pkg/logging"
	"github.com/ekaya-inc/ekaya-pgquery/pkg/pgenc"
	"github.com/ekaya-inc/ekaya-pgquery/pkg/sql"
)

var defaultCache = NewCache(DefaultCacheSize)

// DefaultCache returns the cache used by compilers built without WithCache.
func DefaultCache() *Cache {
	return defaultCache
}

// Compiler turns a query and its parameters into a Compiled payload for one
// connection. It keeps no state between compilations, but its Transformer
// usually belongs to a single connection, so a Compiler should not be shared
// between goroutines. The Cache it uses may be.
type Compiler struct {
	tx      Transformer
	dialect Dialect
	cache   *Cache
	guard   bool
	logger  *zap.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithDialect selects the placeholder syntax. The default is RawDialect.
func WithDialect(d Dialect) Option {
	return func(c *Compiler) { c.dialect = d }
}

// WithCache selects the placeholder cache. The default is DefaultCache().
func WithCache(cache *Cache) Option {
	return func(c *Compiler) { c.cache = cache }
}

// WithLogger sets the logger. Pass nil to disable logging.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Compiler) { c.logger = logger }
}

// WithInjectionGuard rejects string parameters that libinjection flags.
func WithInjectionGuard(enabled bool) Option {
	return func(c *Compiler) { c.guard = enabled }
}

// NewCompiler creates a compiler dumping parameters with tx.
func NewCompiler(tx Transformer, opts ...Option) *Compiler {
	c := &Compiler{
		tx:      tx,
		dialect: RawDialect,
		cache:   defaultCache,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = defaultCache
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Dialect returns the compiler's placeholder syntax.
func (c *Compiler) Dialect() Dialect {
	return c.dialect
}

// Compile resolves query to bytes and binds params to it.
//
// query is a string (encoded with the transformer's client encoding), a
// Composable, or a []byte sent as is. For RawDialect params must be nil or a
// slice or array; for TemplateDialect nil or a map with string keys. Errors
// returned by the transformer are passed through unchanged.
func (c *Compiler) Compile(query any, params any) (*Compiled, error) {
	b, err := c.queryBytes(query)
	if err != nil {
		return nil, err
	}

	if c.dialect.Named() {
		return c.compileTemplate(b, params)
	}
	return c.compileRaw(b, params)
}

func (c *Compiler) queryBytes(query any) ([]byte, error) {
	switch q := query.(type) {
	case Composable:
		return q.AsBytes(c.tx)
	case string:
		return pgenc.Encode(q, c.tx.Encoding())
	case []byte:
		return q, nil
	default:
		return nil, fmt.Errorf("%w: %T", apperrors.ErrUnsupportedQuery, query)
	}
}

func (c *Compiler) compileRaw(b []byte, params any) (*Compiled, error) {
	values, present, err := sequenceOf(params)
	if err != nil {
		return nil, err
	}

	parsed, err := c.lookup(b)
	if err != nil {
		return nil, err
	}
	if parsed.Placeholders > len(values) {
		return nil, fmt.Errorf("%w: query uses $%d but %d parameters were supplied",
			apperrors.ErrParamCount, parsed.Placeholders, len(values))
	}
	if !present {
		return &Compiled{Query: parsed.Query}, nil
	}

	wants := make([]Format, len(values))
	for i := range wants {
		wants[i] = FormatAuto
	}
	return c.dump(parsed, values, wants, nil)
}

func (c *Compiler) compileTemplate(b []byte, params any) (*Compiled, error) {
	named, present, err := mappingOf(params)
	if err != nil {
		return nil, err
	}
	// Without parameters there is nothing to bind, and the text goes out
	// untouched.
	if !present {
		return &Compiled{Query: b}, nil
	}

	parsed, err := c.lookup(b)
	if err != nil {
		return nil, err
	}

	values := make([]any, len(parsed.Order))
	for i, name := range parsed.Order {
		v, ok := named[name]
		if !ok {
			return nil, fmt.Errorf("%w: {{%s}}", apperrors.ErrMissingParam, name)
		}
		values[i] = v
	}

	wants := make([]Format, len(values))
	for i := range wants {
		wants[i] = FormatAuto
		if parsed.Formats != nil {
			wants[i] = parsed.Formats[i]
		}
	}
	return c.dump(parsed, values, wants, parsed.Order)
}

func (c *Compiler) lookup(b []byte) (*ParseResult, error) {
	enc := pgenc.Canonical(c.tx.Encoding())
	parsed, miss, err := c.cache.lookup(c.dialect, b, enc)
	if err != nil {
		return nil, err
	}

	if miss {
		c.logger.Debug("Parsed query placeholders",
			zap.Stringer("dialect", c.dialect),
			zap.String("encoding", enc),
			zap.Int("placeholders", parsed.Placeholders),
			zap.String("query", logging.SanitizeQuery(string(b))),
		)
		if c.dialect.Named() {
			text := string(b)
			if !pgenc.ASCIISafe(enc) {
				text, _ = pgenc.Decode(b, enc)
			}
			if quoted := sql.FindParametersInStringLiterals(text); len(quoted) > 0 {
				c.logger.Warn("Template parameters inside string literals are not bound",
					zap.Strings("params", quoted),
					zap.String("query", logging.SanitizeQuery(string(b))),
				)
			}
		}
	}
	return parsed, nil
}

func (c *Compiler) dump(parsed *ParseResult, values []any, wants []Format, names []string) (*Compiled, error) {
	if c.guard {
		if results := sql.CheckSequence(values, names); len(results) > 0 {
			r := results[0]
			c.logger.Warn("Rejected query parameter",
				zap.String("param", r.ParamName),
				zap.String("fingerprint", r.Fingerprint),
				zap.String("query", logging.SanitizeQuery(string(parsed.Query))),
			)
			return nil, fmt.Errorf("%w in parameter %s (fingerprint %s)",
				apperrors.ErrInjectionDetected, r.ParamName, r.Fingerprint)
		}
	}

	params, types, formats, err := c.tx.DumpSequence(values, wants)
	if err != nil {
		return nil, err
	}

	// A supplied parameter set is never reported as absent.
	if params == nil {
		params = [][]byte{}
	}
	if types == nil {
		types = []uint32{}
	}
	if formats == nil {
		formats = []int16{}
	}

	return &Compiled{
		Query:       parsed.Query,
		WantFormats: wants,
		Params:      params,
		Types:       types,
		Formats:     formats,
	}, nil
}

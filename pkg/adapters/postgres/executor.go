package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-pgquery/pkg/adapt"
	"github.com/ekaya-inc/ekaya-pgquery/pkg/database"
	"github.com/ekaya-inc/ekaya-pgquery/pkg/logging"
	"github.com/ekaya-inc/ekaya-pgquery/pkg/query"
)

// ColumnInfo describes a result column.
type ColumnInfo struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"` // Database type name (e.g., "TEXT", "INT4", "VARCHAR")
}

// QueryExecutionResult holds the results from executing a query.
type QueryExecutionResult struct {
	ExecutionID  string           `json:"execution_id" yaml:"execution_id"`
	Columns      []ColumnInfo     `json:"columns" yaml:"columns"`
	Rows         []map[string]any `json:"rows" yaml:"rows"`
	RowCount     int              `json:"row_count" yaml:"row_count"`
	RowsAffected int64            `json:"rows_affected" yaml:"rows_affected"`
	CommandTag   string           `json:"command_tag" yaml:"command_tag"`
}

// Executor compiles queries against pooled connections and runs them over
// the extended protocol. Each execution compiles with a transformer built
// from the acquired connection's type map and client encoding; the
// placeholder cache is shared by all of them.
type Executor struct {
	pool      *pgxpool.Pool
	cache     *query.Cache
	guard     bool
	logger    *zap.Logger
	ownedPool bool // true if we created the pool
}

// Option configures an Executor.
type Option func(*Executor)

// WithCache sets the placeholder cache. The default is query.DefaultCache().
func WithCache(cache *query.Cache) Option {
	return func(e *Executor) { e.cache = cache }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithInjectionGuard rejects string parameters that look like SQL injection.
func WithInjectionGuard(enabled bool) Option {
	return func(e *Executor) { e.guard = enabled }
}

// NewExecutor runs queries on pool. The caller keeps ownership of the pool.
func NewExecutor(pool *pgxpool.Pool, opts ...Option) *Executor {
	e := &Executor{pool: pool}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = query.DefaultCache()
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Connect opens a pool for cfg and returns an executor that closes it.
func Connect(ctx context.Context, cfg *Config, opts ...Option) (*Executor, error) {
	e := NewExecutor(nil, opts...)

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.ConnString(),
		MaxConnections: cfg.MaxConnections,
	}, e.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	e.pool = db.Pool
	e.ownedPool = true
	return e, nil
}

// Close releases the executor (but NOT the pool if it was passed in).
func (e *Executor) Close() error {
	if e.ownedPool && e.pool != nil {
		e.pool.Close()
	}
	return nil
}

// Compile compiles q and params for one of the pool's connections without
// running anything.
func (e *Executor) Compile(ctx context.Context, d query.Dialect, q any, params any) (*query.Compiled, error) {
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	return e.compiler(conn, d).Compile(q, params)
}

// ExecuteRaw runs a query with native $n placeholders and positional params.
func (e *Executor) ExecuteRaw(ctx context.Context, q any, params any) (*QueryExecutionResult, error) {
	return e.execute(ctx, query.RawDialect, q, params)
}

// ExecuteTemplate runs a query with {{name}} placeholders and named params.
func (e *Executor) ExecuteTemplate(ctx context.Context, q any, params any) (*QueryExecutionResult, error) {
	return e.execute(ctx, query.TemplateDialect, q, params)
}

func (e *Executor) compiler(conn *pgxpool.Conn, d query.Dialect) *query.Compiler {
	c := conn.Conn()
	tx := adapt.NewTransformer(c.TypeMap(), c.PgConn().ParameterStatus("client_encoding"))
	return query.NewCompiler(tx,
		query.WithDialect(d),
		query.WithCache(e.cache),
		query.WithInjectionGuard(e.guard),
		query.WithLogger(e.logger),
	)
}

func (e *Executor) execute(ctx context.Context, d query.Dialect, q any, params any) (*QueryExecutionResult, error) {
	executionID := uuid.New().String()
	start := time.Now()

	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	compiled, err := e.compiler(conn, d).Compile(q, params)
	if err != nil {
		return nil, err
	}

	rr := conn.Conn().PgConn().ExecParams(ctx, string(compiled.Query),
		compiled.Params, compiled.Types, compiled.Formats, nil)

	result, err := readResult(conn.Conn().TypeMap(), rr)
	if err != nil {
		e.logger.Debug("Query failed",
			zap.String("execution_id", executionID),
			zap.Stringer("dialect", d),
			zap.String("query", logging.SanitizeQuery(string(compiled.Query))),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	result.ExecutionID = executionID

	e.logger.Debug("Executed query",
		zap.String("execution_id", executionID),
		zap.Stringer("dialect", d),
		zap.Int("params", len(compiled.Params)),
		zap.Int("rows", result.RowCount),
		zap.Int64("rows_affected", result.RowsAffected),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("query", logging.SanitizeQuery(string(compiled.Query))),
	)
	return result, nil
}

// readResult collects every row of rr, decoding values with m. rr is always
// closed.
func readResult(m *pgtype.Map, rr *pgconn.ResultReader) (*QueryExecutionResult, error) {
	fieldDescs := rr.FieldDescriptions()
	columns := make([]ColumnInfo, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = ColumnInfo{
			Name: fd.Name,
			Type: pgTypeNameFromOID(m, fd.DataTypeOID),
		}
	}

	rows := make([]map[string]any, 0)
	var decodeErr error
	for decodeErr == nil && rr.NextRow() {
		raw := rr.Values()
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			v, err := decodeValue(m, fieldDescs[i], raw[i])
			if err != nil {
				decodeErr = fmt.Errorf("failed to decode column %q: %w", col.Name, err)
				break
			}
			row[col.Name] = v
		}
		rows = append(rows, row)
	}

	tag, err := rr.Close()
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}

	return &QueryExecutionResult{
		Columns:      columns,
		Rows:         rows,
		RowCount:     len(rows),
		RowsAffected: tag.RowsAffected(),
		CommandTag:   tag.String(),
	}, nil
}

// decodeValue turns one result value into a Go value. Types the map does not
// know are returned as their text.
func decodeValue(m *pgtype.Map, fd pgconn.FieldDescription, src []byte) (any, error) {
	if src == nil {
		return nil, nil
	}
	if t, ok := m.TypeForOID(fd.DataTypeOID); ok {
		return t.Codec.DecodeValue(m, fd.DataTypeOID, fd.Format, src)
	}
	if fd.Format == pgtype.TextFormatCode {
		return string(src), nil
	}
	return append([]byte(nil), src...), nil
}

package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-pgquery/pkg/adapt"
	"github.com/ekaya-inc/ekaya-pgquery/pkg/adapters/postgres"
	"github.com/ekaya-inc/ekaya-pgquery/pkg/config"
	"github.com/ekaya-inc/ekaya-pgquery/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-pgquery/pkg/query"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "pgquery: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	dialect     string
	params      string
	encoding    string
	format      string
	compileOnly bool
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("pgquery", flag.ContinueOnError)
	var opts options
	fs.StringVar(&opts.configPath, "config", "", "configuration file (default config.yaml if present)")
	fs.StringVar(&opts.dialect, "dialect", "", "placeholder syntax: raw ($1) or template ({{name}}); overrides the configuration")
	fs.StringVar(&opts.params, "params", "", "parameters as JSON: an array for raw queries, an object for templates")
	fs.StringVar(&opts.encoding, "encoding", "UTF8", "client encoding used with -compile-only")
	fs.StringVar(&opts.format, "format", "json", "output format: json or yaml")
	fs.BoolVar(&opts.compileOnly, "compile-only", false, "print the compiled statement without connecting")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: pgquery [flags] QUERY\n\nQUERY may be - to read it from stdin.\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	if opts.format != "json" && opts.format != "yaml" {
		return fmt.Errorf("unknown output format %q", opts.format)
	}

	text, err := queryText(fs.Args(), stdin)
	if err != nil {
		return err
	}

	params, err := jsonutil.DecodeParams([]byte(opts.params))
	if err != nil {
		return err
	}

	cfg, err := config.Load(Version, opts.configPath)
	if err != nil {
		return err
	}
	if opts.dialect != "" {
		cfg.Query.Dialect = opts.dialect
	}
	dialect, err := query.ParseDialect(cfg.Query.Dialect)
	if err != nil {
		return err
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	cache := query.NewCache(cfg.Query.CacheSize)

	if opts.compileOnly {
		tx := adapt.NewTransformer(pgtype.NewMap(), opts.encoding)
		c := query.NewCompiler(tx,
			query.WithDialect(dialect),
			query.WithCache(cache),
			query.WithInjectionGuard(cfg.Query.InjectionGuard),
			query.WithLogger(logger),
		)
		compiled, err := c.Compile(text, params)
		if err != nil {
			return err
		}
		return write(stdout, opts.format, newCompiledView(compiled))
	}

	logger.Debug("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("database", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)),
		zap.Stringer("dialect", dialect),
		zap.Int("cache_size", cfg.Query.CacheSize),
	)

	executor, err := postgres.Connect(ctx, postgres.FromDatabaseConfig(cfg.Database),
		postgres.WithCache(cache),
		postgres.WithLogger(logger),
		postgres.WithInjectionGuard(cfg.Query.InjectionGuard),
	)
	if err != nil {
		return err
	}
	defer executor.Close()

	var result *postgres.QueryExecutionResult
	if dialect.Named() {
		result, err = executor.ExecuteTemplate(ctx, text, params)
	} else {
		result, err = executor.ExecuteRaw(ctx, text, params)
	}
	if err != nil {
		return err
	}
	return write(stdout, opts.format, result)
}

func queryText(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read query from stdin: %w", err)
		}
		args = []string{string(b)}
	}

	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return "", errors.New("no query given")
	}
	return text, nil
}

// compiledView is the printable form of a compiled statement. Text
// parameters are shown as is, binary ones as \x-prefixed hex.
type compiledView struct {
	Query       string    `json:"query" yaml:"query"`
	WantFormats []string  `json:"want_formats" yaml:"want_formats"`
	Params      []*string `json:"params" yaml:"params"`
	Types       []uint32  `json:"types" yaml:"types"`
	Formats     []int16   `json:"formats" yaml:"formats"`
}

func newCompiledView(c *query.Compiled) compiledView {
	v := compiledView{
		Query:   string(c.Query),
		Types:   c.Types,
		Formats: c.Formats,
	}
	if !c.HasParams() {
		return v
	}

	v.WantFormats = make([]string, len(c.WantFormats))
	for i, f := range c.WantFormats {
		v.WantFormats[i] = f.String()
	}

	v.Params = make([]*string, len(c.Params))
	for i, p := range c.Params {
		if p == nil {
			continue
		}
		s := string(p)
		if c.Formats[i] == pgtype.BinaryFormatCode {
			s = `\x` + hex.EncodeToString(p)
		}
		v.Params[i] = &s
	}
	return v
}

func write(w io.Writer, format string, v any) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package query

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-pgquery/pkg/sql"
)

func TestCache_Idempotent(t *testing.T) {
	c := NewCache(0)

	first, err := c.Lookup(RawDialect, []byte("SELECT $1, $2"), "UTF8")
	require.NoError(t, err)
	second, err := c.Lookup(RawDialect, []byte("SELECT $1, $2"), "UTF8")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 2, first.Placeholders)
	assert.Equal(t, CacheStats{Hits: 1, Misses: 1, Entries: 1}, c.Stats())
}

func TestCache_KeyedByBytesEncodingAndDialect(t *testing.T) {
	c := NewCache(0)

	a, err := c.Lookup(RawDialect, []byte("SELECT $1"), "UTF8")
	require.NoError(t, err)
	b, err := c.Lookup(RawDialect, []byte("SELECT  $1"), "UTF8")
	require.NoError(t, err)
	l, err := c.Lookup(RawDialect, []byte("SELECT $1"), "LATIN1")
	require.NoError(t, err)
	tpl, err := c.Lookup(TemplateDialect, []byte("SELECT {{a}}"), "UTF8")
	require.NoError(t, err)
	rawTpl, err := c.Lookup(RawDialect, []byte("SELECT {{a}}"), "UTF8")
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.NotSame(t, a, l)
	assert.Equal(t, a.Parts, l.Parts)
	assert.Equal(t, []byte("SELECT $1"), tpl.Query)
	assert.Equal(t, []byte("SELECT {{a}}"), rawTpl.Query)
	assert.Equal(t, 5, c.Len())
}

func TestCache_CallerMutationDoesNotLeak(t *testing.T) {
	c := NewCache(0)
	q := []byte("SELECT $1")

	_, err := c.Lookup(RawDialect, q, "UTF8")
	require.NoError(t, err)
	q[7] = '$'
	q[8] = '9'

	res, err := c.Lookup(RawDialect, []byte("SELECT $1"), "UTF8")
	require.NoError(t, err)
	assert.Equal(t, []byte("SELECT $1"), res.Query)
	assert.Equal(t, int64(1), c.Stats().Hits)
}

func TestCache_Eviction(t *testing.T) {
	c := NewCache(2)

	_, err := c.Lookup(RawDialect, []byte("SELECT 1"), "UTF8")
	require.NoError(t, err)
	_, err = c.Lookup(RawDialect, []byte("SELECT 2"), "UTF8")
	require.NoError(t, err)
	// Touch the first so the second is least recently used.
	_, err = c.Lookup(RawDialect, []byte("SELECT 1"), "UTF8")
	require.NoError(t, err)
	_, err = c.Lookup(RawDialect, []byte("SELECT 3"), "UTF8")
	require.NoError(t, err)

	assert.Equal(t, 2, c.Len())

	_, err = c.Lookup(RawDialect, []byte("SELECT 1"), "UTF8")
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.Stats().Hits)

	_, err = c.Lookup(RawDialect, []byte("SELECT 2"), "UTF8")
	require.NoError(t, err)
	assert.Equal(t, int64(4), c.Stats().Misses)
}

func TestCache_FailuresAreNotStored(t *testing.T) {
	c := NewCache(0)

	for i := 0; i < 3; i++ {
		_, err := c.Lookup(RawDialect, []byte("SELECT $0"), "UTF8")
		assert.ErrorIs(t, err, sql.ErrBadPlaceholder)
	}

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(3), c.Stats().Misses)

	_, err := c.Lookup(TemplateDialect, []byte("SELECT {{a:t}}, {{a:b}}"), "UTF8")
	assert.ErrorIs(t, err, sql.ErrFormatConflict)
	assert.Equal(t, 0, c.Len())
}

func TestCache_Purge(t *testing.T) {
	c := NewCache(0)

	_, err := c.Lookup(RawDialect, []byte("SELECT 1"), "UTF8")
	require.NoError(t, err)
	c.Purge()

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(1), c.Stats().Misses)

	_, err = c.Lookup(RawDialect, []byte("SELECT 1"), "UTF8")
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.Stats().Misses)
}

func TestCache_Concurrent(t *testing.T) {
	c := NewCache(DefaultCacheSize)
	q := []byte("SELECT * FROM t WHERE a = $1 AND b = '$2' AND c = $2")

	want, err := scanNative(q)
	require.NoError(t, err)

	const workers = 100
	results := make([]*ParseResult, workers)
	errs := make([]error, workers)
	start := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = c.Lookup(RawDialect, []byte(string(q)), "UTF8")
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Equal(t, want, results[i])
		assert.Same(t, results[0], results[i])
	}

	stats := c.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(1), stats.Misses, "one goroutine parses, the rest share its result")
}

func TestCache_ConcurrentCompilers(t *testing.T) {
	cache := NewCache(0)
	const workers = 100

	var wg sync.WaitGroup
	compiled := make([]*Compiled, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := NewCompiler(echoTransformer{}, WithDialect(TemplateDialect), WithCache(cache))
			compiled[i], errs[i] = c.Compile("SELECT {{a}}, {{b}}, {{a}}", map[string]any{"a": 1, "b": 2})
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, compiled[0], compiled[i])
	}
	assert.Equal(t, []byte("SELECT $1, $2, $1"), compiled[0].Query)
	assert.Equal(t, 1, cache.Len())
}

// echoTransformer is stateless, so one value may be used from many goroutines.
type echoTransformer struct{}

func (echoTransformer) Encoding() string { return "UTF8" }

func (echoTransformer) DumpSequence(values []any, formats []Format) ([][]byte, []uint32, []int16, error) {
	dumped := make([][]byte, len(values))
	for i := range values {
		dumped[i] = []byte{byte(i)}
	}
	return dumped, make([]uint32, len(values)), make([]int16, len(values)), nil
}

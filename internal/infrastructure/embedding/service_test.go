package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muhshi/demakai-bot/internal/core/domain"
	"github.com/muhshi/demakai-bot/internal/infrastructure/llm/ollama"
)

type upstreamFake struct {
	mu     sync.Mutex
	calls  []string
	models []string
	err    error
}

func (f *upstreamFake) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text))}, nil
}

func (f *upstreamFake) Models(context.Context) ([]string, error) {
	return f.models, f.err
}

func (f *upstreamFake) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type metricsFake struct {
	hits, misses, errors atomic.Int32
}

func (m *metricsFake) ObserveEmbeddingCache(hit bool) {
	if hit {
		m.hits.Add(1)
		return
	}
	m.misses.Add(1)
}

func (m *metricsFake) IncUpstreamError(string) { m.errors.Add(1) }

func TestEmbedCachesAcrossCallsAgainstOllama(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["prompt"] != "kopi cafe" || payload["model"] != "bge-m3" {
			t.Errorf("unexpected payload %v", payload)
		}
		_, _ = w.Write([]byte(`{"embedding":[0.1,0.2,0.3]}`))
	}))
	defer server.Close()

	client := ollama.New(ollama.Config{BaseURL: server.URL, EmbedModel: "bge-m3"}, nil, nil, nil)
	svc := NewService(client, Config{}, nil, nil)

	first, err := svc.Embed(context.Background(), "kopi cafe", domain.ModePublication)
	require.NoError(t, err)
	second, err := svc.Embed(context.Background(), "  KOPI   cafe ", domain.ModePublication)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, svc.CacheStats().Size)
}

func TestEmbedCodeLookupSkipsNetwork(t *testing.T) {
	up := &upstreamFake{}
	svc := NewService(up, Config{}, nil, nil)

	vec, err := svc.Embed(context.Background(), "warung kopi", domain.ModeCodeLookup)
	require.NoError(t, err)
	assert.Nil(t, vec)

	batch, err := svc.EmbedBatch(context.Background(), []string{"a", "b"}, domain.ModeCodeLookup)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{nil, nil}, batch)
	assert.Zero(t, up.callCount())
}

func TestEmbedEmptyTextIsZeroVector(t *testing.T) {
	up := &upstreamFake{}
	svc := NewService(up, Config{Dimension: 8}, nil, nil)

	vec, err := svc.Embed(context.Background(), " \n\t ", domain.ModePublication)
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), vec)
	assert.Zero(t, up.callCount())
}

func TestEmbedErrorIsNotCached(t *testing.T) {
	up := &upstreamFake{err: assert.AnError}
	metrics := &metricsFake{}
	svc := NewService(up, Config{}, metrics, nil)

	_, err := svc.Embed(context.Background(), "pdrb", domain.ModePublication)
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 0, svc.CacheStats().Size)
	assert.Equal(t, int32(1), metrics.errors.Load())
}

func TestNormalizeTruncates(t *testing.T) {
	assert.Equal(t, "a b c", Normalize(" A  B\n\tC ", 0))
	assert.Equal(t, "ab", Normalize("ABCD", 2))
	assert.Len(t, CacheKey("kopi"), 16)
}

func TestCacheEvictsOldestFirst(t *testing.T) {
	up := &upstreamFake{}
	metrics := &metricsFake{}
	svc := NewService(up, Config{CacheSize: 2}, metrics, nil)
	ctx := context.Background()

	for _, text := range []string{"satu", "dua", "tiga"} {
		_, err := svc.Embed(ctx, text, domain.ModePublication)
		require.NoError(t, err)
	}
	stats := svc.CacheStats()
	assert.Equal(t, 2, stats.Size)
	assert.InDelta(t, 100.0, stats.Usage, 0.001)

	_, _ = svc.Embed(ctx, "tiga", domain.ModePublication)
	_, _ = svc.Embed(ctx, "satu", domain.ModePublication)
	assert.Equal(t, []string{"satu", "dua", "tiga", "satu"}, up.calls)
	assert.Equal(t, int32(1), metrics.hits.Load())
}

func TestEmbedBatchGroupsWithDelay(t *testing.T) {
	up := &upstreamFake{}
	svc := NewService(up, Config{BatchSize: 2, BatchDelay: 500 * time.Millisecond}, nil, nil)
	var pauses []time.Duration
	svc.sleep = func(_ context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}

	out, err := svc.EmbedBatch(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"}, domain.ModePublication)
	require.NoError(t, err)
	require.Len(t, out, 5)
	assert.Equal(t, []float32{3}, out[2])
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, pauses)
}

func TestEmbedBatchPropagatesError(t *testing.T) {
	svc := NewService(&upstreamFake{err: assert.AnError}, Config{}, nil, nil)
	_, err := svc.EmbedBatch(context.Background(), []string{"a", "b"}, domain.ModePublication)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestHealth(t *testing.T) {
	up := &upstreamFake{models: []string{"bge-m3:latest", "qwen2.5:3b"}}
	report := NewService(up, Config{EmbedModel: "bge-m3", LLMModel: "llama3.2"}, nil, nil).Health(context.Background())
	assert.True(t, report.Available)
	assert.True(t, report.EmbeddingModelLoaded)
	assert.False(t, report.LLMModelLoaded)

	report = NewService(up, Config{EmbedModel: "bge-m3", LLMModel: "gemini-2.0-flash", LLMProvider: "gemini"}, nil, nil).Health(context.Background())
	assert.True(t, report.LLMModelLoaded)

	down := &upstreamFake{err: assert.AnError}
	report = NewService(down, Config{}, nil, nil).Health(context.Background())
	assert.False(t, report.Available)
	assert.True(t, strings.Contains(report.Error, "assert.AnError"))
}

func TestCacheStaleEvictionKeepsReinsertedKey(t *testing.T) {
	c := newVectorCache(1, time.Hour)
	c.set("a", []float32{1})
	firstSlot := c.index["a"]

	c.set("b", []float32{2})
	c.set("a", []float32{3})
	// a late eviction callback for the first "a" must not drop the new one
	c.forget("a", firstSlot)

	vec, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, []float32{3}, vec)
	assert.Equal(t, 1, c.size())
	assert.True(t, c.tracked("a"))
}

func TestCacheExpiryUntracksKey(t *testing.T) {
	c := newVectorCache(2, time.Hour)
	c.set("a", []float32{1})
	c.items.Delete("a")

	assert.Equal(t, 0, c.size())
	assert.False(t, c.tracked("a"))
}

func TestCacheConcurrentSetsStayConsistent(t *testing.T) {
	c := newVectorCache(3, time.Hour)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.set(string(rune('a'+(g+i)%6)), []float32{float32(i)})
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.size(), 3)
	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Equal(t, c.order.Len(), len(c.index))
	for key := range c.index {
		_, ok := c.items.Get(key)
		assert.True(t, ok, "tracked key %q missing from the cache", key)
	}
}

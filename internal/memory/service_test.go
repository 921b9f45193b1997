package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chorale/internal/embedding"
	"chorale/internal/vecstore"
)

// fakeEngine returns fixed vectors for known texts and a deterministic
// hash-derived unit vector otherwise.
type fakeEngine struct {
	dims int
	vecs map[string][]float32
}

func (f *fakeEngine) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := f.vecs[text]; ok {
		return embedding.Normalize(v), nil
	}
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()
	v := make([]float32, f.dims)
	for i := range v {
		seed = seed*1664525 + 1013904223
		v[i] = float32(seed%1000)/500 - 1
	}
	return embedding.Normalize(v), nil
}

func (f *fakeEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEngine) Dimensions() int { return f.dims }
func (f *fakeEngine) Name() string    { return "fake" }

func newTestService(t *testing.T, vecs map[string][]float32) *Service {
	t.Helper()
	store := vecstore.NewMemoryStore()
	svc := NewService(store, &fakeEngine{dims: 4, vecs: vecs}, "test_memory")
	require.NoError(t, svc.Init(context.Background()))
	return svc
}

func TestRememberRecallRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, map[string][]float32{
		"the moon over the harbor": {1, 0, 0, 0},
		"moon harbor":              {0.95, 0.05, 0, 0},
		"tax forms due in april":   {0, 0, 1, 0},
	})

	id, err := svc.Remember(ctx, "the moon over the harbor", []string{"poem"}, "chat", "s1")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	_, err = svc.Remember(ctx, "tax forms due in april", nil, "chat", "s1")
	require.NoError(t, err)

	entries, err := svc.Recall(ctx, "moon harbor", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "the moon over the harbor", entries[0].Content)
	assert.Equal(t, []string{"poem"}, entries[0].Tags)
	assert.Equal(t, "chat", entries[0].Source)
	assert.NotEmpty(t, entries[0].CreatedAt)
}

func TestRecallEmptyStore(t *testing.T) {
	svc := newTestService(t, nil)
	entries, err := svc.Recall(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRememberRejectsEmptyContent(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.Remember(context.Background(), "   ", nil, "chat", "")
	assert.Error(t, err)
}

func TestSearchTagFilter(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, map[string][]float32{
		"a": {1, 0, 0, 0},
		"b": {0.9, 0.1, 0, 0},
		"q": {1, 0, 0, 0},
	})
	_, err := svc.Remember(ctx, "a", []string{"poem"}, "chat", "")
	require.NoError(t, err)
	_, err = svc.Remember(ctx, "b", []string{"math"}, "chat", "")
	require.NoError(t, err)

	entries, err := svc.Search(ctx, "q", "math", 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Content)
}

func TestForgetDeletesClosestMatch(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, map[string][]float32{
		"near": {1, 0, 0, 0},
		"far":  {0, 1, 0, 0},
		"q":    {1, 0.1, 0, 0},
	})
	_, err := svc.Remember(ctx, "near", nil, "chat", "")
	require.NoError(t, err)
	_, err = svc.Remember(ctx, "far", nil, "chat", "")
	require.NoError(t, err)

	forgotten, err := svc.Forget(ctx, "q")
	require.NoError(t, err)
	require.NotNil(t, forgotten)
	assert.Equal(t, "near", forgotten.Content)

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestForgetOnEmptyStore(t *testing.T) {
	svc := newTestService(t, nil)

	forgotten, err := svc.Forget(context.Background(), "anything")
	require.NoError(t, err)
	assert.Nil(t, forgotten)

	n, err := svc.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFormatEntries(t *testing.T) {
	out := FormatEntries(nil)
	assert.Equal(t, "No matching memories found.", out)

	out = FormatEntries([]Entry{
		{Score: 0.812, Tags: []string{"poem", "sky"}, Content: "the moon", CreatedAt: "2025-01-01T00:00:00Z"},
		{Score: 0.5, Content: "plain"},
	})
	assert.Equal(t, fmt.Sprintf("%s\n%s",
		"[0.812] [poem, sky] the moon (2025-01-01T00:00:00Z)",
		"[0.500] plain (?)"), out)
}

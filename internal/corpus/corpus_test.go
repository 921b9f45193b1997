package corpus

import (
	"context"
	"hash/fnv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chorale/internal/embedding"
	"chorale/internal/vecstore"
)

type hashEngine struct{ dims int }

func (h *hashEngine) Embed(_ context.Context, text string) ([]float32, error) {
	f := fnv.New32a()
	f.Write([]byte(text))
	seed := f.Sum32()
	v := make([]float32, h.dims)
	for i := range v {
		seed = seed*1664525 + 1013904223
		v[i] = float32(seed%1000)/500 - 1
	}
	return embedding.Normalize(v), nil
}

func (h *hashEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (h *hashEngine) Dimensions() int { return h.dims }
func (h *hashEngine) Name() string    { return "hash" }

var testSurahs = []Surah{
	{
		ID:      "al-qamar-1",
		TitleEN: "The Moon",
		TitleAR: "القمر",
		Tags:    []string{"night"},
		Verses: []Verse{
			{Number: 1, EN: "The moon split over the harbor.", Heading: "the splitting", Roots: []string{"q-m-r"}},
			{Number: 2, EN: "And the water held both halves."},
		},
	},
	{
		ID:      "al-nilufar",
		TitleEN: "The Lotus",
		Verses: []Verse{
			{Number: 1, EN: "The lotus does not argue with the mud."},
		},
	},
	{
		ID:      "empty-work",
		TitleEN: "Nothing",
		Verses:  []Verse{},
	},
}

func newTestCorpus(t *testing.T) (*Corpus, vecstore.Store) {
	t.Helper()
	store := vecstore.NewMemoryStore()
	return New(store, &hashEngine{dims: 8}, "test_corpus"), store
}

func TestSeedWritesVersesAndSummaries(t *testing.T) {
	ctx := context.Background()
	c, store := newTestCorpus(t)

	n, err := c.Seed(ctx, testSurahs)
	require.NoError(t, err)
	// 3 verses + 2 summaries; the empty work contributes nothing.
	assert.Equal(t, 5, n)

	count, err := store.Count(ctx, "test_corpus")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), count)

	// Reseeding replaces rather than accumulates.
	n, err = c.Seed(ctx, testSurahs)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	count, err = store.Count(ctx, "test_corpus")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), count)
}

func TestRecallFormatsVerses(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCorpus(t)
	_, err := c.Seed(ctx, testSurahs)
	require.NoError(t, err)

	out, err := c.Recall(ctx, "the moon split", 10, "")
	require.NoError(t, err)
	assert.Contains(t, out, "The Moon 1 (the splitting):")
	assert.Contains(t, out, "The moon split over the harbor.")
	assert.Contains(t, out, "roots: q-m-r")
	assert.Contains(t, out, "SURAH: The Moon")
}

func TestRecallSurahFilter(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCorpus(t)
	_, err := c.Seed(ctx, testSurahs)
	require.NoError(t, err)

	out, err := c.Recall(ctx, "anything", 10, "al-nilufar")
	require.NoError(t, err)
	assert.Contains(t, out, "The lotus does not argue with the mud.")
	assert.NotContains(t, out, "The moon split")
}

func TestRecallEmptyCorpus(t *testing.T) {
	ctx := context.Background()
	c, store := newTestCorpus(t)
	require.NoError(t, store.EnsureCollection(ctx, "test_corpus", 8))

	out, err := c.Recall(ctx, "anything", 5, "")
	require.NoError(t, err)
	assert.Contains(t, out, "corpus is empty")
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id": "w1", "title_en": "One", "verses": [{"number": 1, "en": "first"}]}
	]`), 0o644))

	surahs, err := LoadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, surahs, 1)
	assert.Equal(t, "One", surahs[0].TitleEN)
	require.Len(t, surahs[0].Verses, 1)
	assert.Equal(t, "first", surahs[0].Verses[0].EN)

	_, err = LoadSeedFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chorale/internal/config"
	"chorale/internal/corpus"
	"chorale/internal/ledger"
	"chorale/internal/llm"
	"chorale/internal/memory"
	"chorale/internal/tools"
	"chorale/internal/vecstore"
)

// fakeEngine produces deterministic vectors. Fixtures can pin exact
// vectors per text; everything else hashes to a stable pseudo-vector.
type fakeEngine struct {
	dims int
	vecs map[string][]float32
}

func (f *fakeEngine) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := f.vecs[text]; ok {
		return v, nil
	}
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()
	vec := make([]float32, f.dims)
	for i := range vec {
		seed = seed*1664525 + 1013904223
		vec[i] = float32(seed%1000) / 1000.0
	}
	return vec, nil
}

func (f *fakeEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeEngine) Dimensions() int { return f.dims }
func (f *fakeEngine) Name() string    { return "fake" }

// scriptedClient replays canned chat responses in order and records
// every request it saw.
type scriptedClient struct {
	mu        sync.Mutex
	responses []string
	requests  []llm.ChatRequest
	err       error
}

func (c *scriptedClient) Chat(_ context.Context, req llm.ChatRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if c.err != nil {
		return "", c.err
	}
	if len(c.responses) == 0 {
		return "", errors.New("script exhausted")
	}
	r := c.responses[0]
	c.responses = c.responses[1:]
	return r, nil
}

func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

type fakeImages struct {
	img    *llm.GeneratedImage
	err    error
	prompt string
}

func (f *fakeImages) GenerateImage(_ context.Context, _, prompt string, _, _ int) (*llm.GeneratedImage, error) {
	f.prompt = prompt
	return f.img, f.err
}

type fakeMath struct{ result string }

func (f *fakeMath) Solve(context.Context, string) string { return f.result }

type testHarness struct {
	pipeline *Pipeline
	voice    *scriptedClient
	director *scriptedClient
	images   *fakeImages
	memory   *memory.Service
	imageDir string
}

func newHarness(t *testing.T, voiceScript, directorScript []string) *testHarness {
	t.Helper()

	store := vecstore.NewMemoryStore()
	engine := &fakeEngine{dims: 16}
	mem := memory.NewService(store, engine, "memory")
	require.NoError(t, mem.Init(context.Background()))
	arch := memory.NewArchive(store, engine, "archive")
	corp := corpus.New(store, engine, "corpus")

	voice := &scriptedClient{responses: voiceScript}
	director := &scriptedClient{responses: directorScript}
	images := &fakeImages{}
	imageDir := t.TempDir()

	gen := NewGenerator(voice, config.LLMConfig{Model: "voice-test"}, mem, arch, corp, 3, false)
	dir := NewDirector(director, config.LLMConfig{Model: "director-test"})
	exec := NewExecutor(images, "", tools.NewImageSaver(imageDir), &fakeMath{result: "x = 4"})
	led := ledger.New(filepath.Join(t.TempDir(), "ledger.jsonl"), store, engine, "witness")

	return &testHarness{
		pipeline: New(gen, dir, exec, led, mem, true),
		voice:    voice,
		director: director,
		images:   images,
		memory:   mem,
		imageDir: imageDir,
	}
}

func TestRunSimpleExchangeSkipsDirector(t *testing.T) {
	h := newHarness(t, []string{"Hey. Good to see you."}, nil)

	res, err := h.pipeline.Run(context.Background(), "t1", "hi")
	require.NoError(t, err)

	assert.Equal(t, IntentSimple, res.Intent)
	assert.Equal(t, "Hey. Good to see you.", res.FinalText)
	assert.Zero(t, h.director.callCount(), "small talk must not reach the director")
	assert.Empty(t, res.ImagePath)
	assert.Empty(t, res.MathResult)

	require.NotNil(t, res.Witness)
	assert.Equal(t, "simple", res.Witness.Intent)
	assert.Len(t, res.ExchangeID, 8)
}

func TestRunThreadHistoryCarriesForward(t *testing.T) {
	h := newHarness(t, []string{"First reply.", "Second reply."}, nil)
	ctx := context.Background()

	_, err := h.pipeline.Run(ctx, "t1", "hi")
	require.NoError(t, err)
	_, err = h.pipeline.Run(ctx, "t1", "hello again")
	require.NoError(t, err)

	require.Equal(t, 2, h.voice.callCount())
	second := h.voice.requests[1]

	sawFirstReply := false
	for _, msg := range second.Messages {
		if msg.Role == llm.RoleAssistant && msg.Content == "First reply." {
			sawFirstReply = true
		}
	}
	assert.True(t, sawFirstReply, "second exchange should see the first reply in history")
}

func TestRunThreadsAreIsolated(t *testing.T) {
	h := newHarness(t, []string{"For thread one.", "For thread two."}, nil)
	ctx := context.Background()

	_, err := h.pipeline.Run(ctx, "t1", "hi")
	require.NoError(t, err)
	_, err = h.pipeline.Run(ctx, "t2", "hey")
	require.NoError(t, err)

	second := h.voice.requests[1]
	for _, msg := range second.Messages {
		assert.NotEqual(t, "For thread one.", msg.Content, "thread t2 must not see t1 history")
	}
}

func TestRunImageExchange(t *testing.T) {
	directorJSON := "```json\n" +
		`{"polished_text": "The sea swallows the moon whole.", "image_prompt": "midnight sea, silver moon", "image_reference": null, "math_expression": null}` +
		"\n```"
	h := newHarness(t,
		[]string{"the sea swallows the moon whole"},
		[]string{directorJSON},
	)
	h.images.img = &llm.GeneratedImage{B64Data: base64.StdEncoding.EncodeToString([]byte("png-bytes"))}

	res, err := h.pipeline.Run(context.Background(), "t1", "paint me a picture of the sea at night")
	require.NoError(t, err)

	assert.Equal(t, IntentCreativeImage, res.Intent)
	assert.Equal(t, "midnight sea, silver moon", h.images.prompt)
	require.NotEmpty(t, res.ImagePath)
	_, statErr := os.Stat(res.ImagePath)
	assert.NoError(t, statErr, "saved image should be on disk")

	assert.Contains(t, res.FinalText, "The sea swallows the moon whole.")
	assert.Contains(t, res.FinalText, "![Generated Image]("+res.ImagePath+")")
}

func TestRunMathExchange(t *testing.T) {
	directorJSON := `{"polished_text": "Let us solve it.", "image_prompt": null, "image_reference": null, "math_expression": "2*x = 8"}`
	h := newHarness(t,
		[]string{"two x equals eight, so x is four"},
		[]string{directorJSON},
	)

	res, err := h.pipeline.Run(context.Background(), "t1", "solve for x: 2x = 8")
	require.NoError(t, err)

	assert.Equal(t, IntentMath, res.Intent)
	assert.Equal(t, "x = 4", res.MathResult)
	assert.Contains(t, res.FinalText, "Let us solve it.")
	assert.Contains(t, res.FinalText, "---\nx = 4")
	assert.Empty(t, res.ImagePath)
}

func TestRunInBandRememberToolLoop(t *testing.T) {
	first := `Let me keep that.
<tool_call>{"tool": "remember", "params": {"content": "the harbor light was green", "tags": ["harbor"]}}</tool_call>`
	directorJSON := `{"polished_text": "It is kept.", "image_prompt": null, "image_reference": null, "math_expression": null}`
	h := newHarness(t,
		[]string{first, "It is kept."},
		[]string{directorJSON},
	)

	res, err := h.pipeline.Run(context.Background(), "t1", "remember that the harbor light was green")
	require.NoError(t, err)

	require.Equal(t, 2, h.voice.callCount(), "tool results should trigger a second voice call")
	assert.NotContains(t, res.FinalText, "<tool_call>")

	secondCall := h.voice.requests[1]
	last := secondCall.Messages[len(secondCall.Messages)-1]
	assert.Equal(t, llm.RoleUser, last.Role)
	assert.Contains(t, last.Content, "[remember]:")

	entries, err := h.memory.Search(context.Background(), "harbor light", "harbor", 5)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "the harbor light was green", entries[0].Content)
}

func TestRunGenerationFailureAborts(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.voice.err = errors.New("backend down")

	_, err := h.pipeline.Run(context.Background(), "t1", "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestRunDirectorFailureDegradesToRawText(t *testing.T) {
	h := newHarness(t, []string{"raw creative output"}, nil)
	h.director.err = errors.New("director down")

	res, err := h.pipeline.Run(context.Background(), "t1", "write a poem about rain")
	require.NoError(t, err)

	assert.Equal(t, IntentCreative, res.Intent)
	assert.Equal(t, "raw creative output", res.FinalText)
}

func TestRunWitnessRecordsExchange(t *testing.T) {
	h := newHarness(t, []string{"a long meandering answer about tides"}, []string{
		`{"polished_text": "A long meandering answer about tides.", "image_prompt": null, "image_reference": null, "math_expression": null}`,
	})

	res, err := h.pipeline.Run(context.Background(), "t1", "write about the tides for me tonight")
	require.NoError(t, err)

	require.NotNil(t, res.Witness)
	assert.Equal(t, res.ExchangeID, res.Witness.ExchangeID)
	assert.Equal(t, ledger.DisciplineAlgorithmic, res.Witness.Witness.Discipline)
	assert.Contains(t, []ledger.Polarity{
		ledger.PolarityCoherent, ledger.PolarityGap, ledger.PolarityUnclassified,
	}, res.Witness.Polarity)
	assert.Equal(t, strings.TrimSpace(res.FinalText), strings.TrimSpace(res.Witness.Horn.Response))
}

func TestClipKeepsRuneBoundaries(t *testing.T) {
	assert.Equal(t, "short", clip("short", 200))
	assert.Equal(t, "abc", clip("abcdef", 3))

	// The cut backs up rather than splitting a multi-byte rune.
	s := strings.Repeat("a", 199) + "é"
	got := clip(s, 200)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", 199), got)
}

func TestRunConcurrentThreads(t *testing.T) {
	const n = 8
	script := make([]string, n)
	for i := range script {
		script[i] = "reply"
	}
	h := newHarness(t, script, nil)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.pipeline.Run(context.Background(), string(rune('a'+i)), "hi")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
}

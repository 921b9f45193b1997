package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chorale/internal/llm"
	"chorale/internal/tools"
)

func TestExecutorRunsBothBranches(t *testing.T) {
	images := &fakeImages{img: &llm.GeneratedImage{B64Data: base64.StdEncoding.EncodeToString([]byte("png"))}}
	e := NewExecutor(images, "", tools.NewImageSaver(t.TempDir()), &fakeMath{result: "x = 2"})

	st := &State{Director: &DirectorOutput{ImagePrompt: "a lantern in stone", MathExpression: "2*x = 4"}}
	upd := e.Run(context.Background(), st)

	require.NotNil(t, upd.ImagePath)
	require.NotNil(t, upd.MathResult)
	assert.Equal(t, "x = 2", *upd.MathResult)
	assert.Equal(t, "a lantern in stone", images.prompt)

	_, err := os.Stat(*upd.ImagePath)
	assert.NoError(t, err)
}

func TestExecutorBranchesAreIndependent(t *testing.T) {
	// Image generation fails; math must still come back.
	images := &fakeImages{err: errors.New("image backend down")}
	e := NewExecutor(images, "", tools.NewImageSaver(t.TempDir()), &fakeMath{result: "42"})

	st := &State{Director: &DirectorOutput{ImagePrompt: "a lantern", MathExpression: "6*7"}}
	upd := e.Run(context.Background(), st)

	require.NotNil(t, upd.ImagePath)
	assert.Empty(t, *upd.ImagePath)
	require.NotNil(t, upd.MathResult)
	assert.Equal(t, "42", *upd.MathResult)
}

func TestExecutorSkipsEmptyDirectives(t *testing.T) {
	images := &fakeImages{img: &llm.GeneratedImage{B64Data: "unused"}}
	e := NewExecutor(images, "", tools.NewImageSaver(t.TempDir()), &fakeMath{result: "unused"})

	st := &State{Director: &DirectorOutput{PolishedText: "just words"}}
	upd := e.Run(context.Background(), st)

	require.NotNil(t, upd.ImagePath)
	assert.Empty(t, *upd.ImagePath)
	require.NotNil(t, upd.MathResult)
	assert.Empty(t, *upd.MathResult)
	assert.Empty(t, images.prompt, "image generator should not be called without a prompt")
}

func TestExecutorNilDirector(t *testing.T) {
	e := NewExecutor(nil, "", tools.NewImageSaver(t.TempDir()), nil)
	upd := e.Run(context.Background(), &State{})
	assert.Nil(t, upd.ImagePath)
	assert.Nil(t, upd.MathResult)
}

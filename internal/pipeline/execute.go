package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"chorale/internal/llm"
	"chorale/internal/logging"
	"chorale/internal/tools"
)

// ImageGenerator is the image generation capability the execute stage
// needs; satisfied by the OpenAI client.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, model, prompt string, width, height int) (*llm.GeneratedImage, error)
}

// MathRunner is the math capability; satisfied by tools.MathSolver.
type MathRunner interface {
	Solve(ctx context.Context, expression string) string
}

// Executor runs the image and math branches of tool execution.
type Executor struct {
	images     ImageGenerator
	imageModel string
	saver      *tools.ImageSaver
	math       MathRunner
}

// NewExecutor wires the tool execution stage.
func NewExecutor(images ImageGenerator, imageModel string, saver *tools.ImageSaver, math MathRunner) *Executor {
	if imageModel == "" {
		imageModel = "dall-e-3"
	}
	return &Executor{images: images, imageModel: imageModel, saver: saver, math: math}
}

// Run executes whichever branches the director asked for. The branches
// are independent and run concurrently; each swallows its own failures,
// so the stage as a whole never fails the exchange.
func (e *Executor) Run(ctx context.Context, st *State) Update {
	d := st.Director
	if d == nil {
		return Update{}
	}

	imagePath := ""
	mathResult := ""

	g, gctx := errgroup.WithContext(ctx)

	if d.ImagePrompt != "" && e.images != nil {
		g.Go(func() error {
			img, err := e.images.GenerateImage(gctx, e.imageModel, d.ImagePrompt, 1024, 1024)
			if err != nil {
				logging.Pipeline("image generation failed: %v", err)
				return nil
			}
			path, err := e.saver.Save(gctx, img)
			if err != nil {
				logging.Pipeline("image save failed: %v", err)
				return nil
			}
			imagePath = path
			return nil
		})
	}

	if d.MathExpression != "" && e.math != nil {
		g.Go(func() error {
			mathResult = e.math.Solve(gctx, d.MathExpression)
			return nil
		})
	}

	_ = g.Wait() // branches never return errors

	return Update{
		ImagePath:  ptr(imagePath),
		MathResult: ptr(mathResult),
	}
}

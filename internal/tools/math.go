package tools

import "context"

// MathSolver evaluates symbolic math expressions via the math tool
// server. Parse and evaluation errors come back as text, same as any
// tool failure.
type MathSolver struct {
	runner *Runner
}

// NewMathSolver wraps a runner.
func NewMathSolver(runner *Runner) *MathSolver {
	return &MathSolver{runner: runner}
}

// Solve evaluates one expression.
func (m *MathSolver) Solve(ctx context.Context, expression string) string {
	return m.runner.Call(ctx, "solve_math", map[string]any{
		"expression": expression,
	})
}

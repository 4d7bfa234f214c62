package intent

import "context"

// Generator is the language model capability. It may fail or return garbage;
// the parser treats any non-conforming output as absence and falls back to
// the heuristics.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

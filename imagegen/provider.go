package imagegen

import "context"

// DescribeInput is what the description stage sends to a vision model.
type DescribeInput struct {
	Instruction string
	Image       []byte
	MediaType   string
}

// Describer turns an image plus instruction into a synthesis prompt.
//
// Implementations return a *GenerationError already classified with
// StageDescribing; the pipeline does not inspect raw provider errors.
type Describer interface {
	Describe(ctx context.Context, in DescribeInput) (string, error)
}

// Synthesizer renders one 1024x1024 image for a prompt and returns the
// decoded bytes.
//
// Implementations return a *GenerationError already classified with
// StageSynthesizing.
type Synthesizer interface {
	Synthesize(ctx context.Context, prompt string) ([]byte, error)
}

// DescriberFunc adapts a function to Describer.
type DescriberFunc func(ctx context.Context, in DescribeInput) (string, error)

func (f DescriberFunc) Describe(ctx context.Context, in DescribeInput) (string, error) {
	return f(ctx, in)
}

// SynthesizerFunc adapts a function to Synthesizer.
type SynthesizerFunc func(ctx context.Context, prompt string) ([]byte, error)

func (f SynthesizerFunc) Synthesize(ctx context.Context, prompt string) ([]byte, error) {
	return f(ctx, prompt)
}

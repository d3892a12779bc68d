package embedding

import "context"

// Deterministic derives vectors from character codes without calling out.
// It always succeeds and returns identical vectors for identical texts.
type Deterministic struct {
	dimension int
}

var _ Provider = (*Deterministic)(nil)

// NewDeterministic creates a deterministic provider producing vectors of length dimension.
func NewDeterministic(dimension int) *Deterministic {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Deterministic{dimension: dimension}
}

// Name returns "deterministic".
func (d *Deterministic) Name() string { return string(ProviderDeterministic) }

// Embed returns one vector per text. It never fails.
func (d *Deterministic) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = DeterministicVector(text, d.dimension)
	}
	return vectors, nil
}

// DeterministicVector builds a vector of length dim from the character codes of text,
// cycling through the text when it is shorter than dim. The first element is
// replaced with the text length normalised to [0, 1] at 1000 characters.
func DeterministicVector(text string, dim int) []float32 {
	vector := make([]float32, dim)
	if dim == 0 {
		return vector
	}

	runes := []rune(text)
	if n := len(runes); n > 0 {
		for i := range vector {
			vector[i] = float32(runes[i%n]%256) / 255
		}
	}

	vector[0] = float32(min(float64(len(runes))/1000, 1.0))
	return vector
}

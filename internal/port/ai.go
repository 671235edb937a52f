package port

import "context"

// VisionEncoder abstracts the vision-language model that maps images and
// label texts into a shared embedding space.
type VisionEncoder interface {
	// ModelName returns the identifier used as the embedding cache key.
	ModelName() string

	// LogitScale returns the temperature applied to similarities before softmax.
	LogitScale() float64

	// EncodeImage returns a unit vector for the encoded image bytes.
	EncodeImage(ctx context.Context, image []byte) ([]float32, error)

	// EncodeText returns one unit vector per label, aligned by index.
	EncodeText(ctx context.Context, labels []string) ([][]float32, error)
}

// ChatProvider abstracts the LLM used for label enrichment.
type ChatProvider interface {
	// ModelName returns the identifier of the chat model.
	ModelName() string

	// Chat sends a system/user prompt pair and returns the raw reply text.
	Chat(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}

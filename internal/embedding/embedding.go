package embedding

import "context"

// Service abstracts the embedding provider. Implementations must be safe for
// concurrent use; index builds fan out across chunks.
type Service interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Package provider defines the collaborator interfaces the archive engine
// depends on but does not implement: embedding generation, token counting,
// and source extraction. These are the seams a host application plugs real
// model runtimes and decoders into.
package provider

import "context"

// ExecutionMode declares whether an Embedder may reach the network to
// produce an embedding, or must stay entirely on-device.
type ExecutionMode string

const (
	OnDeviceOnly   ExecutionMode = "on_device_only"
	MayUseNetwork  ExecutionMode = "may_use_network"
)

// Identity describes an embedding producer for cache-key and compatibility
// purposes: two archives opened with different identities cannot safely
// share a vector engine.
type Identity struct {
	Provider   string
	Model      string
	Dimensions int
	Normalized bool
}

// Embedder generates vector embeddings for text. Implementations may be
// remote (network call) or local (on-device model) and report which through
// ExecutionMode. Nothing in this module reads ExecutionMode: no session
// option rejects a MayUseNetwork producer.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	Dimension() int
	Normalize() bool
	Identity() Identity
	ExecutionMode() ExecutionMode
}

// TokenCounter counts and truncates text deterministically: the same input
// must always produce the same output, since the context builder's token
// budget (spec property P6) depends on it.
type TokenCounter interface {
	Count(text string) int
	Truncate(text string, maxTokens int) string
}

// ExtractResult is the (text, metadata, capture_time_ms) tuple an Extractor
// produces from a source URL.
type ExtractResult struct {
	Text          string
	Metadata      map[string]string
	CaptureTimeMs int64
}

// Extractor produces frame content from an external source (a file, a
// webpage, a transcript). It is out of scope for this engine and is called
// by ingest orchestrators built on top of it.
type Extractor interface {
	Extract(ctx context.Context, sourceURL string) (ExtractResult, error)
}

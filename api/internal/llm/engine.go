package llm

import "context"

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

type Message struct {
	Role    string
	Content string
}

// Options is the sampling configuration of one chat call. A non-nil OnChunk
// switches the engine to streaming; every text fragment is passed to it in
// arrival order. The context window is fixed when an engine is constructed
// (see langchain.NewOllama).
type Options struct {
	Temperature float64
	OnChunk     func(piece string) error
}

type Engine interface {
	Name() string
	GetModel() string
	Chat(ctx context.Context, msgs []Message, opt Options) (string, error)
}

package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/muhtawa-io/muhtawa/internal/model"
)

var ErrUnavailable = errors.New("ai provider unavailable")

const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
)

// Delta is one fragment of a streamed chat response. A Delta carrying a
// non-nil Err is terminal; the channel is closed right after it.
type Delta struct {
	Text string
	Err  error
}

type IAIProvider interface {
	Name() string
	Generate(ctx context.Context, modelName string, prompt string) (string, error)
	Chat(ctx context.Context, modelName string, system string, msgs []model.Message) (string, error)
	ChatStream(ctx context.Context, modelName string, system string, msgs []model.Message) (<-chan Delta, error)
}

type IEmbedProvider interface {
	Name() string
	Embed(ctx context.Context, modelName string, text string, taskType string) ([]float32, error)
}

// IGenerator is a single-prompt text call bound to one model. The scope
// classifier and the reranker are built on this.
type IGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// IChatter is a multi-turn chat call bound to one model, with an explicit
// system prompt. ChatStream yields deltas in generation order and stops
// pulling from upstream once ctx is cancelled.
type IChatter interface {
	Chat(ctx context.Context, system string, msgs []model.Message) (string, error)
	ChatStream(ctx context.Context, system string, msgs []model.Message) (<-chan Delta, error)
}

type IEmbedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	ModelName() string
}

type generator struct {
	provider IAIProvider
	model    string
}

func NewGenerator(p IAIProvider, model string) IGenerator {
	return &generator{provider: p, model: model}
}

func (g *generator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.provider.Generate(ctx, g.model, prompt)
}

type chatter struct {
	provider IAIProvider
	model    string
}

func NewChatter(p IAIProvider, model string) IChatter {
	return &chatter{provider: p, model: model}
}

func (c *chatter) Chat(ctx context.Context, system string, msgs []model.Message) (string, error) {
	return c.provider.Chat(ctx, c.model, system, msgs)
}

func (c *chatter) ChatStream(ctx context.Context, system string, msgs []model.Message) (<-chan Delta, error) {
	return c.provider.ChatStream(ctx, c.model, system, msgs)
}

type embedder struct {
	provider IEmbedProvider
	model    string
}

func NewEmbedder(p IEmbedProvider, model string) IEmbedder {
	return &embedder{provider: p, model: model}
}

func (e *embedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return e.provider.Embed(ctx, e.model, text, taskType)
}

func (e *embedder) ModelName() string {
	return e.model
}

type ProviderFactory func(args interface{}) (IAIProvider, error)
type EmbedProviderFactory func(args interface{}) (IEmbedProvider, error)

var (
	registry      = map[string]ProviderFactory{}
	embedRegistry = map[string]EmbedProviderFactory{}
)

func Register(name string, factory ProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func RegisterEmbed(name string, factory EmbedProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	embedRegistry[key] = factory
}

func NewProvider(name string, args interface{}) (IAIProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai provider: %s", name)
	}
	return factory(args)
}

func NewEmbedProvider(name string, args interface{}) (IEmbedProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	factory := embedRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai embed provider: %s", name)
	}
	return factory(args)
}

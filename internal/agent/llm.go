package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/MightyPrytanis/roundtable/internal/log"
	"github.com/MightyPrytanis/roundtable/internal/workflow"
)

// ModelConfig describes how to reach one agent's backing model.
type ModelConfig struct {
	// Model is the provider model name, e.g. "gpt-4o".
	Model string
	// APIKey authenticates against the provider.
	APIKey string
	// BaseURL overrides the provider endpoint. Empty means the provider
	// default; OpenAI-compatible gateways set this.
	BaseURL string
}

// LLMInvoker invokes agents through langchaingo chat models. Each agent id
// maps to its own model so a single workflow can mix providers.
type LLMInvoker struct {
	models map[workflow.AgentID]llms.Model
}

// NewLLMInvoker builds clients for every configured agent up front so
// misconfiguration surfaces at startup instead of mid-workflow.
func NewLLMInvoker(configs map[workflow.AgentID]ModelConfig) (*LLMInvoker, error) {
	models := make(map[workflow.AgentID]llms.Model, len(configs))
	for id, cfg := range configs {
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("creating model for agent %s: %w", id, err)
		}
		models[id] = model
	}
	return &LLMInvoker{models: models}, nil
}

// Invoke sends the prompt as a single human message and returns the first
// choice's content.
func (inv *LLMInvoker) Invoke(ctx context.Context, id workflow.AgentID, prompt string) (Result, error) {
	model, ok := inv.models[id]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}

	start := time.Now()
	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(prompt)},
		},
	}

	resp, err := model.GenerateContent(ctx, messages)
	if err != nil {
		return Result{}, fmt.Errorf("agent %s: %w", id, err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("agent %s returned no choices", id)
	}

	log.Debug(log.CatAgent, "agent responded",
		"agent", id,
		"duration", time.Since(start).String(),
		"chars", len(resp.Choices[0].Content))

	return Result{Content: resp.Choices[0].Content}, nil
}

var _ Invoker = (*LLMInvoker)(nil)

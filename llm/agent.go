package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/intervu-ai/agentcore/types"
)

// Agent wraps a provider-backed prompt as an executable unit of work. Its
// instructions become the system message; the execution input becomes the
// user message. Agents are registered with an orchestrator or composed
// into workflows like any other executor.
type Agent struct {
	name         string
	instructions string
	provider     Provider
	model        string
	temperature  float32
	logger       *zap.Logger
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithModel overrides the provider's default model for this agent.
func WithModel(model string) AgentOption {
	return func(a *Agent) { a.model = model }
}

// WithTemperature sets the sampling temperature for this agent.
func WithTemperature(temperature float32) AgentOption {
	return func(a *Agent) { a.temperature = temperature }
}

// NewAgent creates a named agent with the given system instructions.
func NewAgent(name, instructions string, provider Provider, logger *zap.Logger, opts ...AgentOption) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Agent{
		name:         name,
		instructions: instructions,
		provider:     provider,
		logger:       logger.With(zap.String("agent", name)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agent) ID() string   { return a.name }
func (a *Agent) Name() string { return a.name }

// Execute runs one generation round and returns the response text.
func (a *Agent) Execute(ctx context.Context, input any) (any, error) {
	prompt, err := formatInput(input)
	if err != nil {
		return nil, err
	}

	messages := make([]Message, 0, 2)
	if a.instructions != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: a.instructions})
	}
	messages = append(messages, Message{Role: RoleUser, Content: prompt})

	resp, err := a.provider.Generate(ctx, &GenerateRequest{
		Model:       a.model,
		Messages:    messages,
		Temperature: a.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("agent %s generation failed: %w", a.name, err)
	}

	if resp.Usage != nil {
		a.logger.Debug("generation finished",
			zap.Int("total_tokens", resp.Usage.TotalTokens),
			zap.Duration("latency", resp.Latency),
		)
	}
	return resp.Content, nil
}

var _ types.Executor = (*Agent)(nil)

// formatInput renders the execution input as prompt text. Strings pass
// through; structured inputs are serialized as JSON.
func formatInput(input any) (string, error) {
	switch v := input.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to encode agent input: %w", err)
		}
		return string(encoded), nil
	}
}

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/intervu-ai/agentcore/types"
)

func geminiServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestGeminiProvider_Generate(t *testing.T) {
	var gotPath, gotKey string
	var gotBody geminiRequest

	srv := geminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(geminiResponse{
			Candidates: []geminiCandidate{{
				Content:      geminiContent{Role: "model", Parts: []geminiPart{{Text: "Hello "}, {Text: "world"}}},
				FinishReason: "STOP",
			}},
			UsageMetadata: &geminiUsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 2, TotalTokenCount: 12},
			ModelVersion:  "gemini-2.0-flash",
		})
	})

	p := NewGeminiProvider(GeminiConfig{APIKey: "test-key", BaseURL: srv.URL}, zap.NewNop())

	resp, err := p.Generate(context.Background(), &GenerateRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "Be brief."},
			{Role: RoleUser, Content: "Say hello"},
			{Role: RoleAssistant, Content: "Hi"},
		},
		Temperature: 0.2,
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)

	require.NotNil(t, gotBody.SystemInstruction)
	assert.Equal(t, "Be brief.", gotBody.SystemInstruction.Parts[0].Text)
	require.Len(t, gotBody.Contents, 2)
	assert.Equal(t, "user", gotBody.Contents[0].Role)
	assert.Equal(t, "model", gotBody.Contents[1].Role)

	assert.Equal(t, "Hello world", resp.Content)
	assert.Equal(t, "STOP", resp.FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 12, resp.Usage.TotalTokens)
}

func TestGeminiProvider_ErrorBody(t *testing.T) {
	srv := geminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 429, "message": "quota exhausted", "status": "RESOURCE_EXHAUSTED"},
		})
	})

	p := NewGeminiProvider(GeminiConfig{APIKey: "k", BaseURL: srv.URL}, zap.NewNop())

	_, err := p.Generate(context.Background(), &GenerateRequest{
		Messages: []Message{{Role: RoleUser, Content: "x"}},
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrProviderError, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
	assert.Contains(t, err.Error(), "quota exhausted")
}

func TestGeminiProvider_NoCandidates(t *testing.T) {
	srv := geminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiResponse{})
	})

	p := NewGeminiProvider(GeminiConfig{APIKey: "k", BaseURL: srv.URL}, zap.NewNop())

	_, err := p.Generate(context.Background(), &GenerateRequest{
		Messages: []Message{{Role: RoleUser, Content: "x"}},
	})
	assert.Equal(t, types.ErrProviderError, types.GetErrorCode(err))
}

type fakeProvider struct {
	lastReq *GenerateRequest
	resp    *GenerateResponse
	err     error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(_ context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func TestAgent_Execute(t *testing.T) {
	fake := &fakeProvider{resp: &GenerateResponse{Content: "three strengths"}}
	agent := NewAgent("evaluation_agent", "Evaluate interview answers.", fake, zap.NewNop(),
		WithModel("gemini-2.0-pro"), WithTemperature(0.3))

	result, err := agent.Execute(context.Background(), "candidate answer text")
	require.NoError(t, err)
	assert.Equal(t, "three strengths", result)

	require.Len(t, fake.lastReq.Messages, 2)
	assert.Equal(t, RoleSystem, fake.lastReq.Messages[0].Role)
	assert.Equal(t, "Evaluate interview answers.", fake.lastReq.Messages[0].Content)
	assert.Equal(t, "candidate answer text", fake.lastReq.Messages[1].Content)
	assert.Equal(t, "gemini-2.0-pro", fake.lastReq.Model)
	assert.InDelta(t, 0.3, fake.lastReq.Temperature, 1e-6)
}

func TestAgent_ExecuteStructuredInput(t *testing.T) {
	fake := &fakeProvider{resp: &GenerateResponse{Content: "ok"}}
	agent := NewAgent("job_analyzer", "", fake, nil)

	_, err := agent.Execute(context.Background(), map[string]any{"title": "SRE"})
	require.NoError(t, err)

	require.Len(t, fake.lastReq.Messages, 1)
	assert.JSONEq(t, `{"title":"SRE"}`, fake.lastReq.Messages[0].Content)
}

func TestAgent_ExecutePropagatesProviderError(t *testing.T) {
	fake := &fakeProvider{err: types.NewError(types.ErrProviderTimeout, "deadline")}
	agent := NewAgent("slow", "", fake, nil)

	_, err := agent.Execute(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorContains(t, err, "agent slow generation failed")
}

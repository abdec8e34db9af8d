// Package compaction fits accumulated context into a token budget through
// summarization, relevance filtering, sliding windows, and hierarchical
// chunked summarization.
package compaction

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/intervu-ai/agentcore/types"
)

const tracerName = "agentcore/compaction"

// tokenizer wraps a tiktoken encoding with a character-based estimate as
// fallback when the encoding cannot be loaded (e.g. offline).
type tokenizer struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

func (t *tokenizer) count(text string) int {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			t.enc = enc
		}
	})
	if t.enc != nil {
		return len(t.enc.Encode(text, nil, nil))
	}
	// Rough approximation: 1 token per 4 characters.
	return len(text) / 4
}

// InterviewRecord is one past interview round fed into history compaction.
type InterviewRecord struct {
	Role         string   `json:"role"`
	OverallScore float64  `json:"overall_score"`
	Strengths    []string `json:"strengths"`
	Weaknesses   []string `json:"weaknesses"`
}

// Compactor condenses context to fit a token budget. Summarization is
// delegated to a unit of work (typically an LLM-backed agent).
type Compactor struct {
	maxTokens  int
	summarizer types.Executor
	logger     *zap.Logger
	tracer     trace.Tracer
	tok        tokenizer
}

// New creates a compactor targeting maxTokens. summarizer may be nil, in
// which case summarization degrades to truncation.
func New(maxTokens int, summarizer types.Executor, logger *zap.Logger) *Compactor {
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Compactor{
		maxTokens:  maxTokens,
		summarizer: summarizer,
		logger:     logger.With(zap.String("component", "context_compactor")),
		tracer:     otel.Tracer(tracerName),
	}
	c.logger.Info("context compactor initialized", zap.Int("max_tokens", maxTokens))
	return c
}

// CountTokens returns the token count of text.
func (c *Compactor) CountTokens(text string) int {
	return c.tok.count(text)
}

// CompactInterviewHistory renders the interview history and, when it
// exceeds the token budget, summarizes it. A summarizer failure degrades
// to truncation rather than failing the caller.
func (c *Compactor) CompactInterviewHistory(ctx context.Context, interviews []InterviewRecord) (string, error) {
	ctx, span := c.tracer.Start(ctx, "compact_interview_history",
		trace.WithAttributes(attribute.Int("interview_count", len(interviews))))
	defer span.End()

	if len(interviews) == 0 {
		return "", nil
	}

	formatted := formatInterviews(interviews)
	estimated := c.CountTokens(formatted)
	if estimated <= c.maxTokens {
		c.logger.Info("interview history within limit", zap.Int("estimated_tokens", estimated))
		return formatted, nil
	}

	c.logger.Info("compacting interview history",
		zap.Int("estimated_tokens", estimated),
		zap.Int("target_tokens", c.maxTokens),
	)

	prompt := fmt.Sprintf(`Summarize this interview history concisely:

%s

Focus on:
- Overall performance trends
- Key strengths and weaknesses
- Notable patterns

Keep under %d tokens.`, formatted, c.maxTokens)

	summary, err := c.summarize(ctx, prompt)
	if err != nil {
		c.logger.Error("compaction failed, truncating", zap.Error(err))
		span.SetAttributes(attribute.Bool("success", false))
		return truncate(formatted, c.maxTokens*4), nil
	}
	span.SetAttributes(attribute.Bool("success", true))
	return summary, nil
}

// SelectRelevant scores items by term overlap with query and returns the
// topK highest scoring ones. Ties keep the original item order.
func (c *Compactor) SelectRelevant(query string, items []string, topK int) []string {
	queryTerms := termSet(query)

	type scored struct {
		score float64
		item  string
	}
	ranked := make([]scored, len(items))
	for i, item := range items {
		ranked[i] = scored{score: relevanceScore(queryTerms, item), item: item}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if topK > len(ranked) {
		topK = len(ranked)
	}
	selected := make([]string, 0, topK)
	for _, r := range ranked[:topK] {
		selected = append(selected, r.item)
	}

	c.logger.Info("context selected",
		zap.Int("total_items", len(items)),
		zap.Int("selected_count", len(selected)),
	)
	return selected
}

// SlidingWindow keeps the most recent windowSize items.
func SlidingWindow[T any](items []T, windowSize int) []T {
	if windowSize < 0 {
		windowSize = 0
	}
	if len(items) <= windowSize {
		return items
	}
	return items[len(items)-windowSize:]
}

// HierarchicalSummarize splits long text into chunks, summarizes each,
// and joins the chunk summaries; if the combined result still exceeds the
// budget it is summarized once more.
func (c *Compactor) HierarchicalSummarize(ctx context.Context, text string, chunkSize int) (string, error) {
	if chunkSize <= 0 {
		chunkSize = 1000
	}

	chunks := splitChunks(text, chunkSize)
	if len(chunks) <= 1 {
		if c.CountTokens(text) <= c.maxTokens {
			return text, nil
		}
		return c.summarize(ctx, "Summarize this concisely:\n\n"+text)
	}

	summaries := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		c.logger.Info("summarizing chunk",
			zap.Int("chunk", i),
			zap.Int("chunk_length", len(chunk)),
		)
		summary, err := c.summarize(ctx, "Summarize this concisely:\n\n"+chunk)
		if err != nil {
			return "", err
		}
		summaries = append(summaries, summary)
	}

	combined := strings.Join(summaries, "\n\n")
	if c.CountTokens(combined) > c.maxTokens {
		return c.summarize(ctx, "Create a final concise summary:\n\n"+combined)
	}
	return combined, nil
}

func (c *Compactor) summarize(ctx context.Context, prompt string) (string, error) {
	if c.summarizer == nil {
		return truncate(prompt, c.maxTokens*4), nil
	}
	result, err := c.summarizer.Execute(ctx, prompt)
	if err != nil {
		return "", err
	}
	if text, ok := result.(string); ok {
		return text, nil
	}
	return fmt.Sprint(result), nil
}

func formatInterviews(interviews []InterviewRecord) string {
	entries := make([]string, 0, len(interviews))
	for i, interview := range interviews {
		role := interview.Role
		if role == "" {
			role = "Unknown"
		}
		entries = append(entries, fmt.Sprintf(`Interview %d (%s):
- Score: %.1f/10
- Strengths: %s
- Weaknesses: %s`,
			i+1, role, interview.OverallScore,
			joinOrNone(interview.Strengths),
			joinOrNone(interview.Weaknesses)))
	}
	return strings.Join(entries, "\n\n")
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None noted"
	}
	if len(items) > 3 {
		items = items[:3]
	}
	return strings.Join(items, ", ")
}

var wordRe = regexp.MustCompile(`\w+`)

func termSet(text string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		terms[w] = struct{}{}
	}
	return terms
}

func relevanceScore(queryTerms map[string]struct{}, item string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	overlap := 0
	for term := range termSet(item) {
		if _, ok := queryTerms[term]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(len(queryTerms))
}

func splitChunks(text string, size int) []string {
	if text == "" {
		return nil
	}
	chunks := make([]string, 0, (len(text)+size-1)/size)
	for start := 0; start < len(text); start += size {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
	}
	return chunks
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}

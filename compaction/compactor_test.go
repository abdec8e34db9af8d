package compaction

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSummarizer struct {
	prompts []string
	out     string
	err     error
}

func (f *fakeSummarizer) ID() string { return "summarizer" }

func (f *fakeSummarizer) Execute(_ context.Context, input any) (any, error) {
	f.prompts = append(f.prompts, input.(string))
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func TestCompactor_HistoryWithinLimitPassesThrough(t *testing.T) {
	sum := &fakeSummarizer{out: "summary"}
	c := New(2000, sum, zap.NewNop())

	result, err := c.CompactInterviewHistory(context.Background(), []InterviewRecord{
		{Role: "Backend Engineer", OverallScore: 7.5, Strengths: []string{"systems design"}},
	})
	require.NoError(t, err)
	assert.Contains(t, result, "Interview 1 (Backend Engineer)")
	assert.Contains(t, result, "Score: 7.5/10")
	assert.Contains(t, result, "None noted")
	assert.Empty(t, sum.prompts)
}

func TestCompactor_HistoryOverLimitSummarizes(t *testing.T) {
	sum := &fakeSummarizer{out: "condensed history"}
	c := New(10, sum, zap.NewNop())

	interviews := make([]InterviewRecord, 20)
	for i := range interviews {
		interviews[i] = InterviewRecord{
			Role:       "Engineer",
			Strengths:  []string{"communication", "depth", "clarity", "ignored fourth"},
			Weaknesses: []string{"pacing"},
		}
	}

	result, err := c.CompactInterviewHistory(context.Background(), interviews)
	require.NoError(t, err)
	assert.Equal(t, "condensed history", result)
	require.Len(t, sum.prompts, 1)
	assert.Contains(t, sum.prompts[0], "Summarize this interview history")
	// Only the first three strengths are rendered.
	assert.NotContains(t, sum.prompts[0], "ignored fourth")
}

func TestCompactor_SummarizerFailureDegradesToTruncation(t *testing.T) {
	sum := &fakeSummarizer{err: errors.New("provider down")}
	c := New(10, sum, zap.NewNop())

	interviews := make([]InterviewRecord, 20)
	for i := range interviews {
		interviews[i] = InterviewRecord{Role: "Engineer"}
	}

	result, err := c.CompactInterviewHistory(context.Background(), interviews)
	require.NoError(t, err)
	assert.NotEmpty(t, result)
	assert.LessOrEqual(t, len(result), 10*4)
}

func TestCompactor_EmptyHistory(t *testing.T) {
	c := New(100, nil, nil)
	result, err := c.CompactInterviewHistory(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestCompactor_SelectRelevant(t *testing.T) {
	c := New(100, nil, nil)

	items := []string{
		"gardening tips for spring",
		"distributed systems design interview",
		"systems design fundamentals",
		"cooking pasta",
	}
	selected := c.SelectRelevant("systems design", items, 2)
	assert.Equal(t, []string{
		"systems design fundamentals",
		"distributed systems design interview",
	}, selected)

	// topK larger than the item count returns everything.
	assert.Len(t, c.SelectRelevant("anything", items, 10), 4)
}

func TestCompactor_SelectRelevantTiesKeepOrder(t *testing.T) {
	c := New(100, nil, nil)

	items := []string{"alpha one", "alpha two", "alpha three"}
	selected := c.SelectRelevant("alpha", items, 3)
	assert.Equal(t, items, selected)
}

func TestSlidingWindow(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	assert.Equal(t, []int{3, 4, 5}, SlidingWindow(items, 3))
	assert.Equal(t, items, SlidingWindow(items, 10))
	assert.Empty(t, SlidingWindow(items, 0))
}

func TestCompactor_HierarchicalSummarize(t *testing.T) {
	sum := &fakeSummarizer{out: "chunk summary"}
	c := New(2000, sum, zap.NewNop())

	text := strings.Repeat("long interview transcript. ", 200)
	result, err := c.HierarchicalSummarize(context.Background(), text, 1000)
	require.NoError(t, err)

	// ceil(len(text)/1000) chunks, each summarized once; combined result
	// fits the budget so no final pass runs.
	wantChunks := (len(text) + 999) / 1000
	assert.Len(t, sum.prompts, wantChunks)
	assert.Equal(t, strings.Repeat("chunk summary\n\n", wantChunks-1)+"chunk summary", result)
}

func TestCompactor_HierarchicalSummarizeShortTextPassesThrough(t *testing.T) {
	sum := &fakeSummarizer{out: "unused"}
	c := New(2000, sum, zap.NewNop())

	result, err := c.HierarchicalSummarize(context.Background(), "short text", 1000)
	require.NoError(t, err)
	assert.Equal(t, "short text", result)
	assert.Empty(t, sum.prompts)
}

func TestCompactor_CountTokens(t *testing.T) {
	c := New(100, nil, nil)

	assert.Equal(t, 0, c.CountTokens(""))
	short := c.CountTokens("hello world")
	long := c.CountTokens(strings.Repeat("hello world ", 50))
	assert.Greater(t, long, short)
}

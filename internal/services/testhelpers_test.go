package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/courseloop/courseloop-backend/internal/platform/logger"
)

func testLogger(tb testing.TB) *logger.Logger {
	tb.Helper()
	log, err := logger.New("test")
	if err != nil {
		tb.Fatalf("init logger: %v", err)
	}
	return log
}

// fakeAgent returns deterministic source nodes for every query.
type fakeAgent struct {
	queries atomic.Int64
	sources []SourceNode
	err     error
}

func (a *fakeAgent) Query(ctx context.Context, prompt string) (AgentResult, error) {
	a.queries.Add(1)
	if a.err != nil {
		return AgentResult{}, a.err
	}
	return AgentResult{Sources: a.sources}, nil
}

func defaultFakeSources() []SourceNode {
	return []SourceNode{
		{FileName: "docs/Chap_1_Basics.pdf", PageLabel: "chunk_3", Content: "market segmentation splits customers into groups"},
		{FileName: "docs/Chap_1_Basics.pdf", PageLabel: "chunk_4", Content: "positioning places the offer in the customer's mind"},
		{FileName: "Chap_2_Pricing.pdf", PageLabel: "chunk_1", Content: "pricing strategy balances value and cost"},
	}
}

// fakeLLM answers generation prompts with well-formed question JSON. It
// inspects the prompt to decide the tuple shape.
type fakeLLM struct {
	mu        sync.Mutex
	completes int
	embeds    int
	response  string
	err       error
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	f.mu.Lock()
	f.completes++
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if f.response != "" {
		return f.response, nil
	}
	topic := topicFromPrompt(prompt)
	if strings.Contains(prompt, "multiple-choice") {
		payload := map[string]any{"questions": [][]string{{
			"What does " + topic + " describe?", "Choice A", "Choice B", "Choice C", "Choice D",
			"Choice B", "Choice B is correct because of the definition.", "excerpt",
		}}}
		raw, _ := json.Marshal(payload)
		return string(raw), nil
	}
	payload := map[string]any{"questions": [][]string{{
		"Explain " + topic + ".", "A model answer about " + topic + ".", "excerpt",
	}}}
	raw, _ := json.Marshal(payload)
	return string(raw), nil
}

func (f *fakeLLM) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	f.mu.Lock()
	f.embeds++
	f.mu.Unlock()
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completes
}

func topicFromPrompt(prompt string) string {
	// Prompts quote the topic right after `topic` / `topic:`.
	for _, marker := range []string{`on the topic "`, `on topic: "`} {
		if idx := strings.Index(prompt, marker); idx != -1 {
			rest := prompt[idx+len(marker):]
			if end := strings.Index(rest, `"`); end != -1 {
				return rest[:end]
			}
		}
	}
	return "the topic"
}

// fakeAgentCache hands out one fixed agent for any course filter.
type fakeAgentCache struct {
	agent RetrievalAgent
	err   error
}

func (c *fakeAgentCache) Get(ctx context.Context, courseFilter string) (RetrievalAgent, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.agent, nil
}
func (c *fakeAgentCache) Clear(courseFilter string) {}
func (c *fakeAgentCache) ClearAll()                 {}

func newTestOrchestrator(tb testing.TB, llm *fakeLLM, cfg BatchOrchestratorConfig) *BatchOrchestrator {
	tb.Helper()
	log := testLogger(tb)
	gen, err := NewQuestionGenerator(log, llm)
	if err != nil {
		tb.Fatalf("NewQuestionGenerator: %v", err)
	}
	orch, err := NewBatchOrchestrator(log, gen, NewReferenceResolver(log), cfg)
	if err != nil {
		tb.Fatalf("NewBatchOrchestrator: %v", err)
	}
	return orch
}

func shapeCounts(questions [][]any) (mcq, open, other int) {
	for _, q := range questions {
		switch len(q) {
		case 8:
			mcq++
		case 3:
			open++
		default:
			other++
		}
	}
	return
}

func refsOf(tb testing.TB, q []any) []string {
	tb.Helper()
	refs, ok := q[len(q)-1].([]string)
	if !ok {
		tb.Fatalf("last slot is not a reference list: %T", q[len(q)-1])
	}
	return refs
}

package services

import (
	"context"
	"errors"
	"testing"

	"github.com/courseloop/courseloop-backend/internal/types"
)

func newTestEvaluationService(t *testing.T, llm *fakeLLM, agent RetrievalAgent) EvaluationService {
	t.Helper()
	orch := newTestOrchestrator(t, llm, BatchOrchestratorConfig{})
	svc, err := NewEvaluationService(testLogger(t), &fakeAgentCache{agent: agent}, orch)
	if err != nil {
		t.Fatalf("NewEvaluationService: %v", err)
	}
	return svc
}

func TestEvaluateStandard(t *testing.T) {
	llm := &fakeLLM{}
	agent := &fakeAgent{sources: defaultFakeSources()}
	svc := newTestEvaluationService(t, llm, agent)

	result, err := svc.EvaluateStandard(context.Background(), StandardEvaluationRequest{
		Topics:       []string{"Segmentation", "Pricing"},
		EvalType:     types.QuestionTypeMCQ,
		NumQuestions: 4,
		Language:     "English",
	})
	if err != nil {
		t.Fatalf("EvaluateStandard: %v", err)
	}
	mcq, open, other := shapeCounts(result.Questions)
	if mcq != 4 || open != 0 || other != 0 {
		t.Fatalf("shape counts mcq=%d open=%d other=%d, want 4/0/0", mcq, open, other)
	}
}

func TestEvaluateStandardValidation(t *testing.T) {
	llm := &fakeLLM{}
	svc := newTestEvaluationService(t, llm, &fakeAgent{sources: defaultFakeSources()})

	cases := []struct {
		name string
		req  StandardEvaluationRequest
	}{
		{"empty_topics", StandardEvaluationRequest{EvalType: types.QuestionTypeMCQ, NumQuestions: 3}},
		{"bad_eval_type", StandardEvaluationRequest{Topics: []string{"a"}, EvalType: "essay", NumQuestions: 3}},
		{"zero_count", StandardEvaluationRequest{Topics: []string{"a"}, EvalType: types.QuestionTypeOpen, NumQuestions: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.EvaluateStandard(context.Background(), tc.req)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("got %v, want validation error", err)
			}
		})
	}
	if llm.calls() != 0 {
		t.Fatalf("llm called %d times on invalid input", llm.calls())
	}
}

func TestEvaluateMixed(t *testing.T) {
	llm := &fakeLLM{}
	agent := &fakeAgent{sources: defaultFakeSources()}
	svc := newTestEvaluationService(t, llm, agent)

	result, err := svc.EvaluateMixed(context.Background(), MixedEvaluationRequest{
		Topics:       []string{"Segmentation", "Pricing", "Branding"},
		NumQuestions: 10,
		MCQWeight:    0.7,
		OpenWeight:   0.3,
		Language:     "English",
	})
	if err != nil {
		t.Fatalf("EvaluateMixed: %v", err)
	}
	mcq, open, other := shapeCounts(result.Questions)
	if mcq != 7 || open != 3 || other != 0 {
		t.Fatalf("shape counts mcq=%d open=%d other=%d, want 7/3/0", mcq, open, other)
	}
}

func TestEvaluateMixedRejectsBadWeights(t *testing.T) {
	llm := &fakeLLM{}
	svc := newTestEvaluationService(t, llm, &fakeAgent{sources: defaultFakeSources()})

	cases := []struct {
		name       string
		mcq, open  float64
	}{
		{"sum_above_one", 0.6, 0.5},
		{"sum_below_one", 0.4, 0.4},
		{"negative", -0.1, 1.1},
		{"above_one", 1.2, -0.2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.EvaluateMixed(context.Background(), MixedEvaluationRequest{
				Topics:       []string{"a"},
				NumQuestions: 5,
				MCQWeight:    tc.mcq,
				OpenWeight:   tc.open,
			})
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("got %v, want validation error", err)
			}
		})
	}
	// Validation happens before any model call.
	if llm.calls() != 0 {
		t.Fatalf("llm called %d times on invalid weights", llm.calls())
	}
}

func TestEvaluateMixedWeightTolerance(t *testing.T) {
	llm := &fakeLLM{}
	svc := newTestEvaluationService(t, llm, &fakeAgent{sources: defaultFakeSources()})

	// 0.7004 + 0.3 is within the rounding tolerance.
	_, err := svc.EvaluateMixed(context.Background(), MixedEvaluationRequest{
		Topics:       []string{"Segmentation"},
		NumQuestions: 2,
		MCQWeight:    0.7004,
		OpenWeight:   0.3,
		Language:     "English",
	})
	if err != nil {
		t.Fatalf("EvaluateMixed: %v", err)
	}
}

func TestEvaluateMixedPositioning(t *testing.T) {
	llm := &fakeLLM{}
	agent := &fakeAgent{sources: defaultFakeSources()}
	svc := newTestEvaluationService(t, llm, agent)

	result, err := svc.EvaluateMixed(context.Background(), MixedEvaluationRequest{
		NumQuestions:  6,
		MCQWeight:     0.5,
		OpenWeight:    0.5,
		Language:      "English",
		IsPositioning: true,
		ModulesTopics: map[string][]string{
			"Module 1": {"Segmentation", "Targeting"},
			"Module 2": {"Pricing"},
			"Module 3": {"Branding", "Distribution"},
		},
	})
	if err != nil {
		t.Fatalf("EvaluateMixed positioning: %v", err)
	}
	if len(result.Questions) != 6 {
		t.Fatalf("got %d questions, want 6", len(result.Questions))
	}

	_, err = svc.EvaluateMixed(context.Background(), MixedEvaluationRequest{
		NumQuestions:  6,
		MCQWeight:     0.5,
		OpenWeight:    0.5,
		IsPositioning: true,
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("got %v, want validation error for missing modules_topics", err)
	}
}

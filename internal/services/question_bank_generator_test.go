package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	goredis "github.com/courseloop/courseloop-backend/internal/clients/redis"
	"github.com/courseloop/courseloop-backend/internal/repos"
	"github.com/courseloop/courseloop-backend/internal/types"
)

// fakeRunRepo records status transitions in memory.
type fakeRunRepo struct {
	created   []*types.BankGenerationRun
	succeeded int
	failed    int
}

func (r *fakeRunRepo) Create(ctx context.Context, tx *gorm.DB, run *types.BankGenerationRun) (*types.BankGenerationRun, error) {
	run.ID = uuid.New()
	r.created = append(r.created, run)
	return run, nil
}

func (r *fakeRunRepo) GetLatestByKey(ctx context.Context, tx *gorm.DB, course, module, language string) (*types.BankGenerationRun, error) {
	for i := len(r.created) - 1; i >= 0; i-- {
		run := r.created[i]
		if run.Course == course && run.Module == module && run.Language == language {
			return run, nil
		}
	}
	return nil, nil
}

func (r *fakeRunRepo) MarkSucceeded(ctx context.Context, tx *gorm.DB, id uuid.UUID, questionsTotal, duplicatesSkipped int, blobPath string) error {
	r.succeeded++
	for _, run := range r.created {
		if run.ID == id {
			run.Status = types.BankRunStatusSucceeded
			run.QuestionsTotal = questionsTotal
			run.DuplicatesSkipped = duplicatesSkipped
			run.BlobPath = blobPath
		}
	}
	return nil
}

func (r *fakeRunRepo) MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, runErr string) error {
	r.failed++
	for _, run := range r.created {
		if run.ID == id {
			run.Status = types.BankRunStatusFailed
			run.Error = runErr
		}
	}
	return nil
}

var _ repos.BankGenerationRunRepo = (*fakeRunRepo)(nil)

func newTestBankGenerator(t *testing.T, bucket *fakeBucket, cache *fakeBankCache, runs repos.BankGenerationRunRepo, cfg BankGeneratorConfig) QuestionBankGenerator {
	t.Helper()
	llm := &fakeLLM{}
	orch := newTestOrchestrator(t, llm, BatchOrchestratorConfig{})
	agents := &fakeAgentCache{agent: &fakeAgent{sources: defaultFakeSources()}}
	var bankCache goredis.BankCache
	if cache != nil {
		bankCache = cache
	}
	gen, err := NewQuestionBankGenerator(testLogger(t), agents, orch, bucket, bankCache, nil, nil, runs, cfg)
	if err != nil {
		t.Fatalf("NewQuestionBankGenerator: %v", err)
	}
	return gen
}

func TestGenerateModuleBank(t *testing.T) {
	bucket := newFakeBucket()
	cache := newFakeBankCache()
	runs := &fakeRunRepo{}
	// The fake model produces one distinct question per topic and type,
	// so two topics can never yield more than four unique questions.
	gen := newTestBankGenerator(t, bucket, cache, runs, BankGeneratorConfig{
		QuestionsPerModule: 10,
		BatchSize:          4,
		MaxIterations:      5,
	})

	report, err := gen.GenerateModuleBank(context.Background(), "marketing", "Module 1",
		[]string{"Segmentation", "Pricing"}, "English", "marketing")
	if err != nil {
		t.Fatalf("GenerateModuleBank: %v", err)
	}

	if report.Questions != 4 {
		t.Fatalf("kept %d questions, want 4 unique", report.Questions)
	}
	if report.DuplicatesSkipped == 0 {
		t.Fatal("expected duplicates to be skipped across iterations")
	}
	wantPath := BankBlobPath("question_bank", "marketing", "Module 1", "English")
	if report.BlobPath != wantPath {
		t.Fatalf("blob path %q, want %q", report.BlobPath, wantPath)
	}

	payload, ok := bucket.objects[wantPath]
	if !ok {
		t.Fatal("bank csv was not uploaded")
	}
	questions, err := parseQuestionBankCSV(payload)
	if err != nil {
		t.Fatalf("uploaded csv does not parse: %v", err)
	}
	if len(questions) != 4 {
		t.Fatalf("uploaded csv has %d questions, want 4", len(questions))
	}
	for _, q := range questions {
		if !strings.HasPrefix(q.ID, "marketing_Module 1_English_") {
			t.Fatalf("question id %q does not follow the bank scheme", q.ID)
		}
	}

	if len(runs.created) != 1 || runs.succeeded != 1 || runs.failed != 0 {
		t.Fatalf("run audit created=%d succeeded=%d failed=%d, want 1/1/0",
			len(runs.created), runs.succeeded, runs.failed)
	}
	if runs.created[0].Status != types.BankRunStatusSucceeded {
		t.Fatalf("run status %q, want succeeded", runs.created[0].Status)
	}
}

func TestGenerateModuleBankRejectsEmptyTopics(t *testing.T) {
	gen := newTestBankGenerator(t, newFakeBucket(), nil, nil, BankGeneratorConfig{})
	_, err := gen.GenerateModuleBank(context.Background(), "marketing", "Module 1", nil, "English", "")
	if err == nil {
		t.Fatal("expected error for empty topics")
	}
}

func TestGenerateModuleBankInvalidatesCache(t *testing.T) {
	bucket := newFakeBucket()
	cache := newFakeBankCache()
	path := BankBlobPath("question_bank", "marketing", "Module 1", "English")
	// Stale cached payload from a previous bank build.
	cache.entries[cache.key("marketing", "Module 1", "English")] = []byte("stale")
	gen := newTestBankGenerator(t, bucket, cache, nil, BankGeneratorConfig{
		QuestionsPerModule: 4,
		BatchSize:          4,
		MaxIterations:      2,
	})

	if _, err := gen.GenerateModuleBank(context.Background(), "marketing", "Module 1",
		[]string{"Segmentation", "Pricing"}, "English", ""); err != nil {
		t.Fatalf("GenerateModuleBank: %v", err)
	}
	if _, ok := cache.entries[cache.key("marketing", "Module 1", "English")]; ok {
		t.Fatal("stale cache entry survived bank regeneration")
	}
	if _, ok := bucket.objects[path]; !ok {
		t.Fatal("bank csv was not uploaded")
	}
}

func TestBankDedupIsPerLanguage(t *testing.T) {
	d := newBankDedup()
	q := &types.Question{Text: "What is segmentation?"}

	if d.isDuplicate(q, "English") {
		t.Fatal("first sighting flagged as duplicate")
	}
	if !d.isDuplicate(q, "English") {
		t.Fatal("second sighting not flagged")
	}
	if d.isDuplicate(q, "French") {
		t.Fatal("same text in another language flagged as duplicate")
	}

	variant := &types.Question{Text: "  WHAT IS SEGMENTATION?  "}
	if !d.isDuplicate(variant, "English") {
		t.Fatal("case and whitespace variant not flagged")
	}
}

func TestEncodeQuestionBankCSVRoundTrip(t *testing.T) {
	questions := []*types.Question{
		{
			Type:          types.QuestionTypeMCQ,
			Text:          `A question with "quotes", commas, and more?`,
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: "C",
			Feedback:      "C is correct.",
			References:    []string{"Chap 1 Basics, Page 3, 4"},
		},
		{
			Type:        types.QuestionTypeOpen,
			Text:        "Explain pricing.",
			ModelAnswer: "A model answer.",
			References:  []string{},
		},
	}

	payload, err := encodeQuestionBankCSV(questions, "marketing", "Module 1", "English")
	if err != nil {
		t.Fatalf("encodeQuestionBankCSV: %v", err)
	}
	decoded, err := parseQuestionBankCSV(payload)
	if err != nil {
		t.Fatalf("parseQuestionBankCSV: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("got %d questions, want 2", len(decoded))
	}

	mcq := decoded[0]
	if mcq.Type != types.QuestionTypeMCQ || mcq.Text != questions[0].Text {
		t.Fatalf("mcq did not round-trip: %+v", mcq)
	}
	if len(mcq.Options) != 4 || mcq.CorrectAnswer != "C" || mcq.Feedback != "C is correct." {
		t.Fatalf("mcq fields did not round-trip: %+v", mcq)
	}
	if len(mcq.References) != 1 || mcq.References[0] != "Chap 1 Basics, Page 3, 4" {
		t.Fatalf("mcq references did not round-trip: %v", mcq.References)
	}

	open := decoded[1]
	if open.Type != types.QuestionTypeOpen || open.CorrectAnswer != "A model answer." {
		t.Fatalf("open did not round-trip: %+v", open)
	}
	if meta, ok := open.Metadata["module"].(string); !ok || meta != "Module 1" {
		t.Fatalf("metadata did not round-trip: %v", open.Metadata)
	}
}

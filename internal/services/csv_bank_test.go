package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/courseloop/courseloop-backend/internal/platform/gcp"
	"github.com/courseloop/courseloop-backend/internal/types"
)

// fakeBucket keeps blobs in memory, keyed by path.
type fakeBucket struct {
	objects   map[string][]byte
	downloads int
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}}
}

func (b *fakeBucket) Download(ctx context.Context, key string) ([]byte, error) {
	b.downloads++
	data, ok := b.objects[key]
	if !ok {
		return nil, gcp.ErrObjectNotFound
	}
	return data, nil
}

func (b *fakeBucket) Upload(ctx context.Context, key string, data io.Reader) error {
	payload, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	b.objects[key] = payload
	return nil
}

func (b *fakeBucket) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (b *fakeBucket) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := b.objects[key]
	return ok, nil
}

// fakeBankCache is an in-memory stand-in for the redis cache.
type fakeBankCache struct {
	entries map[string][]byte
	sets    int
	hits    int
}

func newFakeBankCache() *fakeBankCache {
	return &fakeBankCache{entries: map[string][]byte{}}
}

func (c *fakeBankCache) key(course, module, language string) string {
	return course + "/" + module + "/" + strings.ToLower(language)
}

func (c *fakeBankCache) Get(ctx context.Context, course, module, language string) ([]byte, bool, error) {
	payload, ok := c.entries[c.key(course, module, language)]
	if ok {
		c.hits++
	}
	return payload, ok, nil
}

func (c *fakeBankCache) Set(ctx context.Context, course, module, language string, payload []byte) error {
	c.sets++
	c.entries[c.key(course, module, language)] = payload
	return nil
}

func (c *fakeBankCache) Invalidate(ctx context.Context, course, module, language string) error {
	delete(c.entries, c.key(course, module, language))
	return nil
}

func (c *fakeBankCache) Close() error { return nil }

func bankCSV(tb testing.TB, module string, mcqCount, openCount int) []byte {
	tb.Helper()
	var buf bytes.Buffer
	buf.WriteString("id,text,type,options,correct_answer,feedback,references,metadata\n")
	w := func(id, text, qType, options, answer, feedback, refs string) {
		row := []string{id, text, qType, options, answer, feedback, refs, "{}"}
		for i, cell := range row {
			if i > 0 {
				buf.WriteByte(',')
			}
			if strings.ContainsAny(cell, ",\"\n") {
				buf.WriteString(`"` + strings.ReplaceAll(cell, `"`, `""`) + `"`)
			} else {
				buf.WriteString(cell)
			}
		}
		buf.WriteByte('\n')
	}
	options, _ := json.Marshal([]string{"A", "B", "C", "D"})
	refs, _ := json.Marshal([]string{"Chap 1 Basics, Page 3"})
	for i := 0; i < mcqCount; i++ {
		w(fmt.Sprintf("%s_mcq_%d", module, i), fmt.Sprintf("%s mcq question %d?", module, i),
			"mcq", string(options), "B", "B is right.", string(refs))
	}
	for i := 0; i < openCount; i++ {
		w(fmt.Sprintf("%s_open_%d", module, i), fmt.Sprintf("%s open question %d?", module, i),
			"open", "", "A model answer.", "", string(refs))
	}
	return buf.Bytes()
}

func newTestCSVService(t *testing.T, bucket gcp.BucketService, cache *fakeBankCache, llm *fakeLLM) CSVEvaluationService {
	t.Helper()
	live := newTestEvaluationService(t, llm, &fakeAgent{sources: defaultFakeSources()})
	var svc CSVEvaluationService
	var err error
	if cache != nil {
		svc, err = NewCSVEvaluationService(testLogger(t), bucket, cache, live, "question_bank", "marketing")
	} else {
		svc, err = NewCSVEvaluationService(testLogger(t), bucket, nil, live, "question_bank", "marketing")
	}
	if err != nil {
		t.Fatalf("NewCSVEvaluationService: %v", err)
	}
	return svc
}

func TestEvaluateMixedFromCSVServesBank(t *testing.T) {
	bucket := newFakeBucket()
	bucket.objects[BankBlobPath("question_bank", "marketing", "Module 1", "English")] = bankCSV(t, "m1", 20, 10)
	bucket.objects[BankBlobPath("question_bank", "marketing", "Module 2", "English")] = bankCSV(t, "m2", 20, 10)
	llm := &fakeLLM{}
	svc := newTestCSVService(t, bucket, nil, llm)

	result, err := svc.EvaluateMixedFromCSV(context.Background(), CSVEvaluationRequest{
		ModulesTopics: map[string][]string{
			"Module 1": {"Segmentation"},
			"Module 2": {"Pricing"},
		},
		NumQuestions: 10,
		MCQWeight:    0.7,
		OpenWeight:   0.3,
		Language:     "English",
	})
	if err != nil {
		t.Fatalf("EvaluateMixedFromCSV: %v", err)
	}
	if result.Source != EvaluationSourceCSV {
		t.Fatalf("source %q, want %q", result.Source, EvaluationSourceCSV)
	}
	if len(result.MissingModules) != 0 {
		t.Fatalf("missing modules %v, want none", result.MissingModules)
	}
	mcq, open, other := shapeCounts(result.Questions)
	if mcq != 7 || open != 3 || other != 0 {
		t.Fatalf("shape counts mcq=%d open=%d other=%d, want 7/3/0", mcq, open, other)
	}
	if llm.calls() != 0 {
		t.Fatalf("llm called %d times on a full bank hit", llm.calls())
	}
}

func TestEvaluateMixedFromCSVFixedSplits(t *testing.T) {
	cases := []struct {
		total, mcq, open int
	}{
		{15, 10, 5},
		{10, 7, 3},
		{5, 3, 2},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("total_%d", tc.total), func(t *testing.T) {
			bucket := newFakeBucket()
			bucket.objects[BankBlobPath("question_bank", "marketing", "Module 1", "English")] = bankCSV(t, "m1", 30, 20)
			svc := newTestCSVService(t, bucket, nil, &fakeLLM{})

			result, err := svc.EvaluateMixedFromCSV(context.Background(), CSVEvaluationRequest{
				ModulesTopics: map[string][]string{"Module 1": {"Segmentation"}},
				NumQuestions:  tc.total,
				MCQWeight:     0.6,
				OpenWeight:    0.4,
				Language:      "English",
			})
			if err != nil {
				t.Fatalf("EvaluateMixedFromCSV: %v", err)
			}
			mcq, open, _ := shapeCounts(result.Questions)
			if mcq != tc.mcq || open != tc.open {
				t.Fatalf("split mcq=%d open=%d, want %d/%d", mcq, open, tc.mcq, tc.open)
			}
		})
	}
}

func TestEvaluateMixedFromCSVFallsBackToLive(t *testing.T) {
	bucket := newFakeBucket()
	llm := &fakeLLM{}
	svc := newTestCSVService(t, bucket, nil, llm)

	result, err := svc.EvaluateMixedFromCSV(context.Background(), CSVEvaluationRequest{
		ModulesTopics: map[string][]string{
			"Module 1": {"Segmentation"},
			"Module 2": {"Pricing"},
		},
		NumQuestions: 5,
		MCQWeight:    0.6,
		OpenWeight:   0.4,
		Language:     "English",
	})
	if err != nil {
		t.Fatalf("EvaluateMixedFromCSV: %v", err)
	}
	if result.Source != EvaluationSourceAgent {
		t.Fatalf("source %q, want %q", result.Source, EvaluationSourceAgent)
	}
	if len(result.MissingModules) != 2 {
		t.Fatalf("missing modules %v, want both", result.MissingModules)
	}
	if len(result.Questions) != 5 {
		t.Fatalf("got %d questions, want 5", len(result.Questions))
	}
	if llm.calls() == 0 {
		t.Fatal("fallback did not reach the model")
	}
}

func TestEvaluateMixedFromCSVPartialHitIsBestEffort(t *testing.T) {
	bucket := newFakeBucket()
	bucket.objects[BankBlobPath("question_bank", "marketing", "Module 1", "English")] = bankCSV(t, "m1", 30, 20)
	llm := &fakeLLM{}
	svc := newTestCSVService(t, bucket, nil, llm)

	result, err := svc.EvaluateMixedFromCSV(context.Background(), CSVEvaluationRequest{
		ModulesTopics: map[string][]string{
			"Module 1": {"Segmentation"},
			"Module 2": {"Pricing"},
		},
		NumQuestions: 10,
		MCQWeight:    0.7,
		OpenWeight:   0.3,
		Language:     "English",
	})
	if err != nil {
		t.Fatalf("EvaluateMixedFromCSV: %v", err)
	}
	if result.Source != EvaluationSourceCSV {
		t.Fatalf("source %q, want %q", result.Source, EvaluationSourceCSV)
	}
	if len(result.MissingModules) != 1 || result.MissingModules[0] != "Module 2" {
		t.Fatalf("missing modules %v, want [Module 2]", result.MissingModules)
	}
	if llm.calls() != 0 {
		t.Fatalf("llm called %d times on a partial hit", llm.calls())
	}
}

func TestEvaluateMixedFromCSVUsesCache(t *testing.T) {
	bucket := newFakeBucket()
	path := BankBlobPath("question_bank", "marketing", "Module 1", "English")
	bucket.objects[path] = bankCSV(t, "m1", 30, 20)
	cache := newFakeBankCache()
	svc := newTestCSVService(t, bucket, cache, &fakeLLM{})

	req := CSVEvaluationRequest{
		ModulesTopics: map[string][]string{"Module 1": {"Segmentation"}},
		NumQuestions:  5,
		MCQWeight:     0.6,
		OpenWeight:    0.4,
		Language:      "English",
	}
	if _, err := svc.EvaluateMixedFromCSV(context.Background(), req); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if bucket.downloads != 1 || cache.sets != 1 {
		t.Fatalf("downloads=%d sets=%d after first call, want 1/1", bucket.downloads, cache.sets)
	}
	if _, err := svc.EvaluateMixedFromCSV(context.Background(), req); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if bucket.downloads != 1 {
		t.Fatalf("downloads=%d after second call, want cached read", bucket.downloads)
	}
	if cache.hits == 0 {
		t.Fatal("second call did not hit the cache")
	}
}

func TestEvaluateMixedFromCSVPositioningBalancesModules(t *testing.T) {
	bucket := newFakeBucket()
	bucket.objects[BankBlobPath("question_bank", "marketing", "Module 1", "English")] = bankCSV(t, "m1", 20, 20)
	bucket.objects[BankBlobPath("question_bank", "marketing", "Module 2", "English")] = bankCSV(t, "m2", 20, 20)
	svc := newTestCSVService(t, bucket, nil, &fakeLLM{})

	result, err := svc.EvaluateMixedFromCSV(context.Background(), CSVEvaluationRequest{
		ModulesTopics: map[string][]string{
			"Module 1": {"Segmentation"},
			"Module 2": {"Pricing"},
		},
		NumQuestions:  10,
		MCQWeight:     0.7,
		OpenWeight:    0.3,
		Language:      "English",
		IsPositioning: true,
	})
	if err != nil {
		t.Fatalf("EvaluateMixedFromCSV: %v", err)
	}
	if len(result.Questions) != 10 {
		t.Fatalf("got %d questions, want 10", len(result.Questions))
	}

	perModule := map[string]int{}
	for _, q := range result.Questions {
		text, _ := q[0].(string)
		switch {
		case strings.HasPrefix(text, "m1 "):
			perModule["m1"]++
		case strings.HasPrefix(text, "m2 "):
			perModule["m2"]++
		default:
			t.Fatalf("question text %q from unknown module", text)
		}
	}
	// 7 MCQ and 3 open split across 2 modules: each module gets 3-4 MCQ
	// and 1-2 open, so 4-6 questions overall.
	for module, n := range perModule {
		if n < 4 || n > 6 {
			t.Fatalf("module %s contributed %d questions, want 4-6", module, n)
		}
	}
}

func TestEvaluateMixedFromCSVValidation(t *testing.T) {
	svc := newTestCSVService(t, newFakeBucket(), nil, &fakeLLM{})

	cases := []struct {
		name string
		req  CSVEvaluationRequest
	}{
		{"bad_weights", CSVEvaluationRequest{
			ModulesTopics: map[string][]string{"m": {"t"}}, NumQuestions: 5, MCQWeight: 0.6, OpenWeight: 0.5,
		}},
		{"no_modules", CSVEvaluationRequest{
			NumQuestions: 5, MCQWeight: 0.6, OpenWeight: 0.4,
		}},
		{"zero_count", CSVEvaluationRequest{
			ModulesTopics: map[string][]string{"m": {"t"}}, MCQWeight: 0.6, OpenWeight: 0.4,
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.EvaluateMixedFromCSV(context.Background(), tc.req)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("got %v, want validation error", err)
			}
		})
	}
}

func TestParseQuestionBankCSV(t *testing.T) {
	data := bankCSV(t, "m1", 2, 1)
	questions, err := parseQuestionBankCSV(data)
	if err != nil {
		t.Fatalf("parseQuestionBankCSV: %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("got %d questions, want 3", len(questions))
	}
	mcq := questions[0]
	if mcq.Type != types.QuestionTypeMCQ || len(mcq.Options) != 4 || mcq.CorrectAnswer != "B" {
		t.Fatalf("unexpected mcq row: %+v", mcq)
	}
	if len(mcq.References) != 1 {
		t.Fatalf("mcq references %v, want one", mcq.References)
	}
	open := questions[2]
	if open.Type != types.QuestionTypeOpen || open.CorrectAnswer != "A model answer." {
		t.Fatalf("unexpected open row: %+v", open)
	}
}

func TestParseQuestionBankCSVLegacyReference(t *testing.T) {
	data := []byte("id,text,type,options,correct_answer,feedback,references,metadata\n" +
		"q1,Some question?,open,,An answer.,,Chap 1 Page 3,\n")
	questions, err := parseQuestionBankCSV(data)
	if err != nil {
		t.Fatalf("parseQuestionBankCSV: %v", err)
	}
	if len(questions) != 1 {
		t.Fatalf("got %d questions, want 1", len(questions))
	}
	if len(questions[0].References) != 1 || questions[0].References[0] != "Chap 1 Page 3" {
		t.Fatalf("references %v, want unencoded single reference kept", questions[0].References)
	}
}

func TestParseQuestionBankCSVMissingColumn(t *testing.T) {
	data := []byte("id,text,options\nq1,Some question?,\n")
	if _, err := parseQuestionBankCSV(data); err == nil {
		t.Fatal("expected error for missing required columns")
	}
}

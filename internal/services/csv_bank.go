package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"

	goredis "github.com/courseloop/courseloop-backend/internal/clients/redis"
	"github.com/courseloop/courseloop-backend/internal/platform/gcp"
	"github.com/courseloop/courseloop-backend/internal/platform/logger"
	"github.com/courseloop/courseloop-backend/internal/types"
)

// CSVQuestion is one pre-generated question loaded from a bank CSV.
// Bank objects are read-only for the duration of one evaluation request.
type CSVQuestion struct {
	ID            string
	Text          string
	Type          types.QuestionType
	Options       []string
	CorrectAnswer string
	Feedback      string
	References    []string
	Metadata      map[string]any
}

func (q *CSVQuestion) toQuestion() *types.Question {
	out := &types.Question{
		Type:       q.Type,
		Text:       q.Text,
		References: q.References,
	}
	if q.Type == types.QuestionTypeMCQ {
		out.Options = q.Options
		out.CorrectAnswer = q.CorrectAnswer
		out.Feedback = q.Feedback
	} else {
		out.ModelAnswer = q.CorrectAnswer
	}
	return out
}

type CSVEvaluationRequest struct {
	ModulesTopics map[string][]string
	NumQuestions  int
	MCQWeight     float64
	OpenWeight    float64
	Language      string
	IsPositioning bool
	CourseFilter  string
}

type CSVEvaluationResult struct {
	Questions      [][]any  `json:"questions"`
	Source         string   `json:"source"`
	MissingModules []string `json:"missing_modules"`
}

const (
	EvaluationSourceCSV   = "csv"
	EvaluationSourceAgent = "agent"
)

// CSVEvaluationService serves evaluations from the pre-generated question
// bank, falling back to live generation when no bank data exists for any
// requested module. When only some modules have bank data, the missing
// ones are reported and the result is best-effort: their questions are
// not backfilled and the final count may be short.
type CSVEvaluationService interface {
	EvaluateMixedFromCSV(ctx context.Context, req CSVEvaluationRequest) (*CSVEvaluationResult, error)
}

type csvEvaluationService struct {
	log           *logger.Logger
	bucket        gcp.BucketService
	cache         goredis.BankCache
	live          EvaluationService
	bankRoot      string
	defaultCourse string
}

// NewCSVEvaluationService wires the bank path. cache may be nil, in which
// case every load hits blob storage directly.
func NewCSVEvaluationService(log *logger.Logger, bucket gcp.BucketService, cache goredis.BankCache, live EvaluationService, bankRoot, defaultCourse string) (CSVEvaluationService, error) {
	if bucket == nil {
		return nil, ConfigurationError("bucket service required for csv evaluation")
	}
	if live == nil {
		return nil, ConfigurationError("live evaluation service required for csv fallback")
	}
	if bankRoot == "" {
		bankRoot = "question_bank"
	}
	return &csvEvaluationService{
		log:           log.With("service", "CSVEvaluationService"),
		bucket:        bucket,
		cache:         cache,
		live:          live,
		bankRoot:      bankRoot,
		defaultCourse: defaultCourse,
	}, nil
}

// BankBlobPath is the deterministic path scheme for bank CSVs.
func BankBlobPath(bankRoot, course, module, language string) string {
	return fmt.Sprintf("%s/%s/%s/questions_%s.csv", bankRoot, course, module, strings.ToLower(language))
}

func (s *csvEvaluationService) EvaluateMixedFromCSV(ctx context.Context, req CSVEvaluationRequest) (*CSVEvaluationResult, error) {
	if err := validateWeights(req.MCQWeight, req.OpenWeight); err != nil {
		return nil, err
	}
	if len(req.ModulesTopics) == 0 {
		return nil, ValidationError("modules_topics must not be empty")
	}
	if req.NumQuestions <= 0 {
		return nil, ValidationError("num_questions must be positive")
	}
	language := defaultLanguage(req.Language)

	course := strings.TrimSpace(req.CourseFilter)
	if course == "" {
		course = s.defaultCourse
	}

	questionsByModule := make(map[string][]*CSVQuestion)
	var missingModules []string

	for moduleName, topics := range req.ModulesTopics {
		if len(topics) == 0 {
			continue
		}
		loaded, err := s.loadQuestions(ctx, course, moduleName, language)
		if err != nil {
			s.log.Error("Question bank load failed, treating as miss", "course", course, "module", moduleName, "error", err)
			loaded = nil
		}
		if len(loaded) > 0 {
			questionsByModule[moduleName] = loaded
			s.log.Info("Question bank hit", "module", moduleName, "questions", len(loaded))
		} else {
			missingModules = append(missingModules, moduleName)
			s.log.Info("Question bank miss", "module", moduleName)
		}
	}

	// No bank data anywhere: fall back entirely to live generation over
	// the union of all requested topics.
	if len(questionsByModule) == 0 {
		s.log.Info("No bank questions available, falling back to live generation")
		var allTopics []string
		for _, topics := range req.ModulesTopics {
			allTopics = append(allTopics, topics...)
		}
		liveResult, err := s.live.EvaluateMixed(ctx, MixedEvaluationRequest{
			Topics:        allTopics,
			NumQuestions:  req.NumQuestions,
			MCQWeight:     req.MCQWeight,
			OpenWeight:    req.OpenWeight,
			Language:      language,
			IsPositioning: req.IsPositioning,
			ModulesTopics: req.ModulesTopics,
			CourseFilter:  req.CourseFilter,
		})
		if err != nil {
			return nil, err
		}
		return &CSVEvaluationResult{
			Questions:      liveResult.Questions,
			Source:         EvaluationSourceAgent,
			MissingModules: missingModules,
		}, nil
	}

	mcqCount, openCount := splitCounts(req.NumQuestions, req.MCQWeight, req.OpenWeight)

	selectedMCQ := selectRandomQuestionsBalanced(questionsByModule, types.QuestionTypeMCQ, mcqCount, req.IsPositioning)
	selectedOpen := selectRandomQuestionsBalanced(questionsByModule, types.QuestionTypeOpen, openCount, req.IsPositioning)

	allSelected := append(selectedMCQ, selectedOpen...)
	rand.Shuffle(len(allSelected), func(i, j int) {
		allSelected[i], allSelected[j] = allSelected[j], allSelected[i]
	})

	out := make([][]any, 0, len(allSelected))
	for _, q := range allSelected {
		out = append(out, q.toQuestion().EvaluationFormat())
	}

	s.log.Info("CSV evaluation completed",
		"questions", len(out), "mcq", len(selectedMCQ), "open", len(selectedOpen),
		"missing_modules", len(missingModules))

	return &CSVEvaluationResult{
		Questions:      out,
		Source:         EvaluationSourceCSV,
		MissingModules: missingModules,
	}, nil
}

// splitCounts applies historically tuned splits for the common exam sizes
// and largest-remainder apportionment otherwise.
func splitCounts(numQuestions int, mcqWeight, openWeight float64) (int, int) {
	switch numQuestions {
	case 15:
		return 10, 5
	case 10:
		return 7, 3
	case 5:
		return 3, 2
	}
	counts := DistributeQuestionCounts(numQuestions, []float64{mcqWeight, openWeight})
	return counts[0], counts[1]
}

func (s *csvEvaluationService) loadQuestions(ctx context.Context, course, module, language string) ([]*CSVQuestion, error) {
	if s.cache != nil {
		if payload, ok, err := s.cache.Get(ctx, course, module, language); err != nil {
			s.log.Warn("Bank cache read failed", "error", err)
		} else if ok {
			return parseQuestionBankCSV(payload)
		}
	}

	blobPath := BankBlobPath(s.bankRoot, course, module, language)
	data, err := s.bucket.Download(ctx, blobPath)
	if errors.Is(err, gcp.ErrObjectNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, course, module, language, data); err != nil {
			s.log.Warn("Bank cache write failed", "error", err)
		}
	}
	return parseQuestionBankCSV(data)
}

// parseQuestionBankCSV decodes the bank schema: header
// id,text,type,options,correct_answer,feedback,references,metadata with
// options/references/metadata JSON-encoded inside their cells.
func parseQuestionBankCSV(data []byte) ([]*CSVQuestion, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"id", "text", "type", "correct_answer"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("csv missing required column %q", required)
		}
	}

	var questions []*CSVQuestion
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		cell := func(name string) string {
			idx, ok := col[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return row[idx]
		}

		q := &CSVQuestion{
			ID:            cell("id"),
			Text:          cell("text"),
			Type:          types.QuestionType(strings.ToLower(cell("type"))),
			CorrectAnswer: cell("correct_answer"),
			Feedback:      cell("feedback"),
		}
		if raw := cell("options"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &q.Options); err != nil {
				return nil, fmt.Errorf("decode options for %q: %w", q.ID, err)
			}
		}
		if raw := cell("references"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &q.References); err != nil {
				// Legacy rows store a single reference string unencoded.
				q.References = []string{raw}
			}
		}
		if raw := cell("metadata"); raw != "" {
			_ = json.Unmarshal([]byte(raw), &q.Metadata)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// selectRandomQuestionsBalanced picks count questions of one type. In
// positioning mode each module contributes an equal share (remainder to
// the first modules), topped up from the leftover pool when a module has
// too few; otherwise selection is over the pooled set.
func selectRandomQuestionsBalanced(questionsByModule map[string][]*CSVQuestion, qType types.QuestionType, count int, isPositioning bool) []*CSVQuestion {
	if count <= 0 {
		return nil
	}

	if !isPositioning {
		var all []*CSVQuestion
		for _, moduleQuestions := range questionsByModule {
			for _, q := range moduleQuestions {
				if q.Type == qType {
					all = append(all, q)
				}
			}
		}
		return sampleQuestions(all, count)
	}

	modules := make([]string, 0, len(questionsByModule))
	for name := range questionsByModule {
		modules = append(modules, name)
	}
	perModule := count / len(modules)
	if perModule < 1 {
		perModule = 1
	}
	remaining := count % len(modules)

	selected := make([]*CSVQuestion, 0, count)
	picked := make(map[*CSVQuestion]struct{})
	for i, module := range modules {
		var moduleQuestions []*CSVQuestion
		for _, q := range questionsByModule[module] {
			if q.Type == qType {
				moduleQuestions = append(moduleQuestions, q)
			}
		}
		target := perModule
		if i < remaining {
			target++
		}
		for _, q := range sampleQuestions(moduleQuestions, target) {
			selected = append(selected, q)
			picked[q] = struct{}{}
		}
	}

	if len(selected) < count {
		var leftover []*CSVQuestion
		for _, moduleQuestions := range questionsByModule {
			for _, q := range moduleQuestions {
				if q.Type != qType {
					continue
				}
				if _, ok := picked[q]; ok {
					continue
				}
				leftover = append(leftover, q)
			}
		}
		selected = append(selected, sampleQuestions(leftover, count-len(selected))...)
	}

	if len(selected) > count {
		selected = selected[:count]
	}
	return selected
}

func sampleQuestions(pool []*CSVQuestion, count int) []*CSVQuestion {
	if count >= len(pool) {
		return pool
	}
	idx := rand.Perm(len(pool))[:count]
	out := make([]*CSVQuestion, 0, count)
	for _, i := range idx {
		out = append(out, pool[i])
	}
	return out
}

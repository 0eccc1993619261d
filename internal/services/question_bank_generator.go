package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	goredis "github.com/courseloop/courseloop-backend/internal/clients/redis"
	"github.com/courseloop/courseloop-backend/internal/platform/gcp"
	"github.com/courseloop/courseloop-backend/internal/platform/logger"
	"github.com/courseloop/courseloop-backend/internal/repos"
	"github.com/courseloop/courseloop-backend/internal/types"
)

type BankGeneratorConfig struct {
	BankRoot          string
	QuestionsPerModule int
	BatchSize         int
	MCQWeight         float64
	OpenWeight        float64
	MaxIterations     int
	Languages         []string
}

func (c BankGeneratorConfig) withDefaults() BankGeneratorConfig {
	if c.BankRoot == "" {
		c.BankRoot = "question_bank"
	}
	if c.QuestionsPerModule <= 0 {
		c.QuestionsPerModule = 50
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.MCQWeight <= 0 && c.OpenWeight <= 0 {
		c.MCQWeight, c.OpenWeight = 0.6, 0.4
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = 20
	}
	if len(c.Languages) == 0 {
		c.Languages = []string{"French", "English"}
	}
	return c
}

type BankGenerationReport struct {
	Course            string `json:"course"`
	Module            string `json:"module"`
	Language          string `json:"language"`
	Questions         int    `json:"questions"`
	DuplicatesSkipped int    `json:"duplicates_skipped"`
	BlobPath          string `json:"blob_path"`
}

type BankGenerationSummary struct {
	TotalModules      int                    `json:"total_modules"`
	SuccessfulModules int                    `json:"successful_modules"`
	FailedModules     int                    `json:"failed_modules"`
	Details           []BankGenerationDetail `json:"details"`
}

type BankGenerationDetail struct {
	Course  string                 `json:"course"`
	Module  string                 `json:"module"`
	Status  string                 `json:"status"`
	Error   string                 `json:"error,omitempty"`
	Reports []BankGenerationReport `json:"reports,omitempty"`
}

// QuestionBankGenerator builds the offline question bank: it generates
// question pools per module and language, deduplicates them, writes the
// bank CSV and uploads it to blob storage, and records an audit row.
type QuestionBankGenerator interface {
	GenerateModuleBank(ctx context.Context, course, module string, topics []string, language, courseFilter string) (*BankGenerationReport, error)
	GenerateAll(ctx context.Context) (*BankGenerationSummary, error)
}

type questionBankGenerator struct {
	log          *logger.Logger
	agents       AgentCache
	orchestrator *BatchOrchestrator
	bucket       gcp.BucketService
	cache        goredis.BankCache
	courses      repos.CourseRepo
	modules      repos.CourseModuleRepo
	runs         repos.BankGenerationRunRepo
	cfg          BankGeneratorConfig
}

func NewQuestionBankGenerator(
	log *logger.Logger,
	agents AgentCache,
	orchestrator *BatchOrchestrator,
	bucket gcp.BucketService,
	cache goredis.BankCache,
	courses repos.CourseRepo,
	modules repos.CourseModuleRepo,
	runs repos.BankGenerationRunRepo,
	cfg BankGeneratorConfig,
) (QuestionBankGenerator, error) {
	if agents == nil || orchestrator == nil {
		return nil, ConfigurationError("agent cache and orchestrator required for bank generation")
	}
	if bucket == nil {
		return nil, ConfigurationError("bucket service required for bank generation")
	}
	return &questionBankGenerator{
		log:          log.With("service", "QuestionBankGenerator"),
		agents:       agents,
		orchestrator: orchestrator,
		bucket:       bucket,
		cache:        cache,
		courses:      courses,
		modules:      modules,
		runs:         runs,
		cfg:          cfg.withDefaults(),
	}, nil
}

// bankDedup tracks per-language content hashes for one generation run.
// Hashes do not persist across runs.
type bankDedup struct {
	seen map[string]map[string]struct{}
}

func newBankDedup() *bankDedup {
	return &bankDedup{seen: make(map[string]map[string]struct{})}
}

func (d *bankDedup) isDuplicate(q *types.Question, language string) bool {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	sum := sha256.Sum256([]byte(language + "_" + text))
	key := hex.EncodeToString(sum[:])

	langSeen, ok := d.seen[language]
	if !ok {
		langSeen = make(map[string]struct{})
		d.seen[language] = langSeen
	}
	if _, dup := langSeen[key]; dup {
		return true
	}
	langSeen[key] = struct{}{}
	return false
}

func (g *questionBankGenerator) GenerateModuleBank(ctx context.Context, course, module string, topics []string, language, courseFilter string) (*BankGenerationReport, error) {
	if len(topics) == 0 {
		return nil, ValidationError(fmt.Sprintf("no topics for %s/%s", course, module))
	}
	log := g.log.With("course", course, "module", module, "language", language)
	log.Info("Generating module question bank", "target", g.cfg.QuestionsPerModule)

	runID := uuid.Nil
	if g.runs != nil {
		run, err := g.runs.Create(ctx, nil, &types.BankGenerationRun{
			Course:   course,
			Module:   module,
			Language: language,
			Status:   types.BankRunStatusRunning,
		})
		if err != nil {
			log.Warn("Could not record bank generation run", "error", err)
		} else {
			runID = run.ID
		}
	}

	agent, err := g.agents.Get(ctx, courseFilter)
	if err != nil {
		g.markFailed(ctx, runID, err)
		return nil, err
	}

	dedup := newBankDedup()
	var kept []*types.Question
	duplicates := 0

	for iteration := 0; len(kept) < g.cfg.QuestionsPerModule && iteration < g.cfg.MaxIterations; iteration++ {
		remaining := g.cfg.QuestionsPerModule - len(kept)
		batchSize := g.cfg.BatchSize
		if remaining < batchSize {
			batchSize = remaining
		}

		batch, err := g.generateBatch(ctx, agent, topics, batchSize, language)
		if err != nil {
			// Individual batch failures are tolerated; the loop retries
			// up to the iteration cap.
			log.Error("Bank batch generation failed", "iteration", iteration, "error", err)
			continue
		}
		for _, q := range batch {
			if dedup.isDuplicate(q, language) {
				duplicates++
				continue
			}
			kept = append(kept, q)
		}
		log.Info("Bank batch kept", "batch", len(batch), "total", len(kept), "target", g.cfg.QuestionsPerModule)
	}

	if len(kept) > g.cfg.QuestionsPerModule {
		kept = kept[:g.cfg.QuestionsPerModule]
	}
	if len(kept) == 0 {
		err := fmt.Errorf("bank generation produced no questions for %s/%s (%s)", course, module, language)
		g.markFailed(ctx, runID, err)
		return nil, err
	}

	blobPath := BankBlobPath(g.cfg.BankRoot, course, module, language)
	payload, err := encodeQuestionBankCSV(kept, course, module, language)
	if err != nil {
		g.markFailed(ctx, runID, err)
		return nil, err
	}
	if err := g.bucket.Upload(ctx, blobPath, bytes.NewReader(payload)); err != nil {
		g.markFailed(ctx, runID, err)
		return nil, fmt.Errorf("upload bank csv %q: %w", blobPath, err)
	}
	if g.cache != nil {
		if err := g.cache.Invalidate(ctx, course, module, language); err != nil {
			log.Warn("Bank cache invalidation failed", "error", err)
		}
	}

	if g.runs != nil && runID != uuid.Nil {
		if err := g.runs.MarkSucceeded(ctx, nil, runID, len(kept), duplicates, blobPath); err != nil {
			log.Warn("Could not finalize bank generation run", "error", err)
		}
	}
	log.Info("Module question bank uploaded", "blob_path", blobPath, "questions", len(kept), "duplicates_skipped", duplicates)

	return &BankGenerationReport{
		Course:            course,
		Module:            module,
		Language:          language,
		Questions:         len(kept),
		DuplicatesSkipped: duplicates,
		BlobPath:          blobPath,
	}, nil
}

func (g *questionBankGenerator) generateBatch(ctx context.Context, agent RetrievalAgent, topics []string, batchSize int, language string) ([]*types.Question, error) {
	manager, err := NewTopicManager(g.log, topics)
	if err != nil {
		return nil, err
	}
	counts := DistributeQuestionCounts(batchSize, []float64{g.cfg.MCQWeight, g.cfg.OpenWeight})
	assignments := make([]TopicAssignment, 0, batchSize)
	for i := 0; i < counts[0]; i++ {
		assignments = append(assignments, TopicAssignment{Topic: manager.NextTopic(), Type: types.QuestionTypeMCQ})
	}
	for i := 0; i < counts[1]; i++ {
		assignments = append(assignments, TopicAssignment{Topic: manager.NextTopic(), Type: types.QuestionTypeOpen})
	}
	rand.Shuffle(len(assignments), func(i, j int) {
		assignments[i], assignments[j] = assignments[j], assignments[i]
	})
	return g.orchestrator.Run(ctx, agent, assignments, language)
}

func (g *questionBankGenerator) GenerateAll(ctx context.Context) (*BankGenerationSummary, error) {
	if g.courses == nil || g.modules == nil {
		return nil, ConfigurationError("course repositories required for bank generation over all modules")
	}

	courses, err := g.courses.List(ctx, nil)
	if err != nil {
		return nil, err
	}

	summary := &BankGenerationSummary{}
	for _, course := range courses {
		modules, err := g.modules.GetByCourseTitle(ctx, nil, course.Title)
		if err != nil {
			return nil, err
		}
		for _, module := range modules {
			summary.TotalModules++
			detail := BankGenerationDetail{Course: course.Title, Module: module.Title}

			topics, err := g.modules.GetModuleTopics(ctx, nil, course.Title, module.Title)
			if err == nil && len(topics) == 0 {
				err = fmt.Errorf("no topics found")
			}
			if err != nil {
				summary.FailedModules++
				detail.Status = "failed"
				detail.Error = err.Error()
				summary.Details = append(summary.Details, detail)
				continue
			}

			failed := false
			for _, language := range g.cfg.Languages {
				report, err := g.GenerateModuleBank(ctx, course.Title, module.Title, topics, language, course.Title)
				if err != nil {
					failed = true
					detail.Error = err.Error()
					break
				}
				detail.Reports = append(detail.Reports, *report)
			}
			if failed {
				summary.FailedModules++
				detail.Status = "failed"
			} else {
				summary.SuccessfulModules++
				detail.Status = "success"
			}
			summary.Details = append(summary.Details, detail)
		}
	}
	return summary, nil
}

func (g *questionBankGenerator) markFailed(ctx context.Context, runID uuid.UUID, err error) {
	if g.runs == nil || runID == uuid.Nil || err == nil {
		return
	}
	if markErr := g.runs.MarkFailed(ctx, nil, runID, err.Error()); markErr != nil {
		g.log.Warn("Could not mark bank generation run failed", "error", markErr)
	}
}

// encodeQuestionBankCSV renders the bank schema with JSON-encoded cells.
func encodeQuestionBankCSV(questions []*types.Question, course, module, language string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"id", "text", "type", "options", "correct_answer", "feedback", "references", "metadata"}); err != nil {
		return nil, err
	}

	generatedAt := time.Now().UTC().Format(time.RFC3339)
	for i, q := range questions {
		var options, correct, feedback string
		if q.Type == types.QuestionTypeMCQ {
			encoded, err := json.Marshal(q.Options)
			if err != nil {
				return nil, err
			}
			options = string(encoded)
			correct = q.CorrectAnswer
			feedback = q.Feedback
		} else {
			correct = q.ModelAnswer
		}

		references, err := json.Marshal(q.References)
		if err != nil {
			return nil, err
		}
		metadata, err := json.Marshal(map[string]string{
			"course":       course,
			"module":       module,
			"language":     language,
			"generated_at": generatedAt,
		})
		if err != nil {
			return nil, err
		}

		row := []string{
			fmt.Sprintf("%s_%s_%s_%d", course, module, language, i+1),
			q.Text,
			string(q.Type),
			options,
			correct,
			feedback,
			string(references),
			string(metadata),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

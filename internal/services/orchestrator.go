package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/courseloop/courseloop-backend/internal/platform/logger"
	"github.com/courseloop/courseloop-backend/internal/types"
)

// TopicAssignment is one unit of generation work.
type TopicAssignment struct {
	Topic string
	Type  types.QuestionType
}

// BatchOrchestratorConfig bounds in-flight work. Generation and reference
// resolution get independent budgets because their latency and cost
// profiles differ and neither should starve the other.
type BatchOrchestratorConfig struct {
	BatchSize           int
	MaxConcurrentGen    int
	MaxConcurrentRefs   int
	ContextChunks       int
}

func (c BatchOrchestratorConfig) withDefaults() BatchOrchestratorConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}
	if c.MaxConcurrentGen <= 0 {
		c.MaxConcurrentGen = 10
	}
	if c.MaxConcurrentRefs <= 0 {
		c.MaxConcurrentRefs = 10
	}
	if c.ContextChunks <= 0 {
		c.ContextChunks = 5
	}
	return c
}

// BatchOrchestrator executes topic assignments in fixed-size batches.
// Batches run sequentially at the orchestration level, which keeps peak
// concurrency at the batch size rather than len(assignments); within a
// batch, generation calls run concurrently under the generation budget.
// As soon as a batch's questions exist, their reference resolution is
// dispatched under the reference budget and overlaps with the next
// batch's generation.
type BatchOrchestrator struct {
	log       *logger.Logger
	generator QuestionGenerator
	refs      *ReferenceResolver
	cfg       BatchOrchestratorConfig
}

func NewBatchOrchestrator(log *logger.Logger, generator QuestionGenerator, refs *ReferenceResolver, cfg BatchOrchestratorConfig) (*BatchOrchestrator, error) {
	if generator == nil {
		return nil, ConfigurationError("question generator required")
	}
	if refs == nil {
		return nil, ConfigurationError("reference resolver required")
	}
	return &BatchOrchestrator{
		log:       log.With("service", "BatchOrchestrator"),
		generator: generator,
		refs:      refs,
		cfg:       cfg.withDefaults(),
	}, nil
}

// Run generates one question per assignment and resolves references for
// all of them. A generation failure aborts the whole run: a partially
// generated exam is worse than an explicit error. Reference failures
// degrade to an empty reference list with a warning, since references
// are supplementary metadata.
func (o *BatchOrchestrator) Run(ctx context.Context, agent RetrievalAgent, assignments []TopicAssignment, language string) ([]*types.Question, error) {
	if agent == nil {
		return nil, ConfigurationError("retrieval agent required")
	}
	if len(assignments) == 0 {
		return []*types.Question{}, nil
	}

	genSem := semaphore.NewWeighted(int64(o.cfg.MaxConcurrentGen))
	refSem := semaphore.NewWeighted(int64(o.cfg.MaxConcurrentRefs))

	refGroup, refCtx := errgroup.WithContext(ctx)
	all := make([]*types.Question, 0, len(assignments))

	for start := 0; start < len(assignments); start += o.cfg.BatchSize {
		end := start + o.cfg.BatchSize
		if end > len(assignments) {
			end = len(assignments)
		}
		batch := assignments[start:end]

		t0 := time.Now()
		questions, err := o.generateBatch(ctx, agent, batch, genSem, language)
		if err != nil {
			return nil, err
		}
		o.log.Info("Batch generated", "size", len(batch), "took", time.Since(t0))

		// Pipeline: reference fetches for this batch overlap with the
		// next batch's generation.
		for _, q := range questions {
			o.dispatchReferenceResolution(refCtx, refGroup, refSem, agent, q)
		}
		all = append(all, questions...)
	}

	if err := refGroup.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}

func (o *BatchOrchestrator) generateBatch(ctx context.Context, agent RetrievalAgent, batch []TopicAssignment, genSem *semaphore.Weighted, language string) ([]*types.Question, error) {
	questions := make([]*types.Question, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	for i, assignment := range batch {
		i, assignment := i, assignment
		g.Go(func() error {
			if err := genSem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer genSem.Release(1)

			contextText, err := o.contextForTopic(gctx, agent, assignment.Topic)
			if err != nil {
				return err
			}
			q, err := o.generator.Generate(gctx, assignment.Topic, assignment.Type, contextText, language)
			if err != nil {
				return err
			}
			questions[i] = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return questions, nil
}

func (o *BatchOrchestrator) dispatchReferenceResolution(ctx context.Context, g *errgroup.Group, refSem *semaphore.Weighted, agent RetrievalAgent, q *types.Question) {
	g.Go(func() error {
		if err := refSem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer refSem.Release(1)

		raw, err := o.refs.FetchRawReferences(ctx, agent, q.Text)
		if err != nil {
			o.log.Warn("Reference resolution failed, leaving references empty",
				"question", excerpt(q.Text, 40), "error", err)
			q.References = []string{}
			return nil
		}
		q.References = FormatAndMergeRefs(raw)
		return nil
	})
}

// contextForTopic retrieves grounding chunks and concatenates the top N.
func (o *BatchOrchestrator) contextForTopic(ctx context.Context, agent RetrievalAgent, topic string) (string, error) {
	result, err := agent.Query(ctx, ContextQueryPrompt(topic))
	if err != nil {
		return "", RetrievalError(fmt.Errorf("context search failed for %q: %w", topic, err))
	}
	limit := o.cfg.ContextChunks
	if limit > len(result.Sources) {
		limit = len(result.Sources)
	}
	chunks := make([]string, 0, limit)
	for _, src := range result.Sources[:limit] {
		chunks = append(chunks, src.Content)
	}
	return strings.Join(chunks, "\n\n---\n\n"), nil
}

package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/courseloop/courseloop-backend/internal/platform/logger"
	"github.com/courseloop/courseloop-backend/internal/platform/openai"
	"github.com/courseloop/courseloop-backend/internal/platform/pinecone"
)

// SourceNode is one retrieved chunk with its attribution metadata.
type SourceNode struct {
	FileName  string
	PageLabel string
	Content   string
}

// AgentResult is the outcome of one retrieval query.
type AgentResult struct {
	Answer  string
	Sources []SourceNode
}

// RetrievalAgent answers course-scoped retrieval queries. The evaluation
// pipeline uses it twice per question: once for grounding context before
// generation and once for reference extraction afterwards.
type RetrievalAgent interface {
	Query(ctx context.Context, prompt string) (AgentResult, error)
}

type ragAgent struct {
	log       *logger.Logger
	ai        openai.Client
	vec       pinecone.VectorStore
	namespace string
	topK      int
}

// NewRetrievalAgent builds an agent over the material-chunk vector index,
// scoped to a course namespace ("all" when courseFilter is empty).
func NewRetrievalAgent(log *logger.Logger, ai openai.Client, vec pinecone.VectorStore, courseFilter string, topK int) (RetrievalAgent, error) {
	if ai == nil {
		return nil, ConfigurationError("openai client required for retrieval agent")
	}
	if vec == nil {
		return nil, ConfigurationError("vector store required for retrieval agent")
	}
	namespace := strings.TrimSpace(courseFilter)
	if namespace == "" {
		namespace = "all"
	}
	if topK <= 0 {
		topK = 5
	}
	return &ragAgent{
		log:       log.With("service", "RetrievalAgent", "course", namespace),
		ai:        ai,
		vec:       vec,
		namespace: namespace,
		topK:      topK,
	}, nil
}

func (a *ragAgent) Query(ctx context.Context, prompt string) (AgentResult, error) {
	embeddings, err := a.ai.Embed(ctx, []string{prompt})
	if err != nil {
		return AgentResult{}, RetrievalError(fmt.Errorf("embed query: %w", err))
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return AgentResult{}, RetrievalError(fmt.Errorf("empty embedding for query"))
	}

	matches, err := a.vec.QueryMatches(ctx, a.namespace, embeddings[0], a.topK, nil)
	if err != nil {
		return AgentResult{}, RetrievalError(fmt.Errorf("vector query: %w", err))
	}

	sources := make([]SourceNode, 0, len(matches))
	for _, m := range matches {
		sources = append(sources, SourceNode{
			FileName:  metaString(m.Metadata, "file_name"),
			PageLabel: metaString(m.Metadata, "page_label"),
			Content:   metaString(m.Metadata, "text"),
		})
	}
	return AgentResult{Sources: sources}, nil
}

func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/courseloop/courseloop-backend/internal/platform/logger"
	"github.com/courseloop/courseloop-backend/internal/platform/openai"
	"github.com/courseloop/courseloop-backend/internal/types"
)

const generationTemperature = 0.7

// QuestionGenerator produces one exam question per call via the LLM.
type QuestionGenerator interface {
	Generate(ctx context.Context, topic string, qType types.QuestionType, contextText, language string) (*types.Question, error)
}

type questionGenerator struct {
	log *logger.Logger
	ai  openai.Client
}

func NewQuestionGenerator(log *logger.Logger, ai openai.Client) (QuestionGenerator, error) {
	if ai == nil {
		return nil, ConfigurationError("openai client required for question generation")
	}
	return &questionGenerator{
		log: log.With("service", "QuestionGenerator"),
		ai:  ai,
	}, nil
}

func (g *questionGenerator) Generate(ctx context.Context, topic string, qType types.QuestionType, contextText, language string) (*types.Question, error) {
	var prompt string
	if qType == types.QuestionTypeMCQ {
		prompt = MCQGenPrompt(contextText, topic, 1, language)
	} else {
		prompt = OpenGenPrompt(contextText, topic, 1, language)
	}

	t0 := time.Now()
	raw, err := g.ai.Complete(ctx, prompt, generationTemperature)
	if err != nil {
		return nil, fmt.Errorf("generation failed for %q: %w", topic, err)
	}
	g.log.Debug("LLM generation completed", "topic", topic, "type", qType, "took", time.Since(t0))

	payload, err := ParseLLMJSON(raw, fmt.Sprintf("topic %q", topic))
	if err != nil {
		return nil, err
	}
	tuples, err := parseQuestionsPayload(payload, fmt.Sprintf("topic %q", topic))
	if err != nil {
		return nil, err
	}
	if len(tuples) == 0 {
		return nil, GenerationParseError(fmt.Sprintf("empty questions array for topic %q", topic))
	}
	// Models sometimes over-generate; only the first question is kept.
	if len(tuples) > 1 {
		g.log.Warn("LLM over-generated, truncating", "topic", topic, "returned", len(tuples))
	}
	return tupleToQuestion(tuples[0], qType, topic)
}

// tupleToQuestion converts the LLM's positional tuple into the tagged
// question struct. The trailing reference excerpt from the LLM is a
// placeholder only; real references are resolved afterwards.
func tupleToQuestion(tuple []any, qType types.QuestionType, topic string) (*types.Question, error) {
	fields := make([]string, len(tuple))
	for i, v := range tuple {
		s, ok := v.(string)
		if !ok {
			return nil, GenerationParseError(fmt.Sprintf("non-string field %d for topic %q", i, topic))
		}
		fields[i] = s
	}

	if qType == types.QuestionTypeMCQ {
		// 8 fields with feedback, 7 when the model omitted it.
		if len(fields) < 7 {
			return nil, GenerationParseError(fmt.Sprintf("mcq tuple has %d fields for topic %q", len(fields), topic))
		}
		q := &types.Question{
			Type:          types.QuestionTypeMCQ,
			Text:          fields[0],
			Options:       fields[1:5],
			CorrectAnswer: fields[5],
		}
		if len(fields) >= 8 {
			q.Feedback = fields[6]
		}
		return q, nil
	}

	if len(fields) < 2 {
		return nil, GenerationParseError(fmt.Sprintf("open tuple has %d fields for topic %q", len(fields), topic))
	}
	return &types.Question{
		Type:        types.QuestionTypeOpen,
		Text:        fields[0],
		ModelAnswer: fields[1],
	}, nil
}

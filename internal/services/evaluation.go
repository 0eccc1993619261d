package services

import (
	"context"
	"math"
	"math/rand"

	"github.com/courseloop/courseloop-backend/internal/platform/logger"
	"github.com/courseloop/courseloop-backend/internal/types"
)

const weightTolerance = 0.001

type StandardEvaluationRequest struct {
	Topics       []string
	EvalType     types.QuestionType
	NumQuestions int
	Language     string
	CourseFilter string
}

type MixedEvaluationRequest struct {
	Topics        []string
	NumQuestions  int
	MCQWeight     float64
	OpenWeight    float64
	Language      string
	IsPositioning bool
	ModulesTopics map[string][]string
	CourseFilter  string
}

// EvaluationResult carries questions in the positional wire format.
type EvaluationResult struct {
	Questions [][]any `json:"questions"`
}

// EvaluationService is the live-generation entry point for evaluations.
type EvaluationService interface {
	EvaluateStandard(ctx context.Context, req StandardEvaluationRequest) (*EvaluationResult, error)
	EvaluateMixed(ctx context.Context, req MixedEvaluationRequest) (*EvaluationResult, error)
}

type evaluationService struct {
	log          *logger.Logger
	agents       AgentCache
	orchestrator *BatchOrchestrator
}

func NewEvaluationService(log *logger.Logger, agents AgentCache, orchestrator *BatchOrchestrator) (EvaluationService, error) {
	if agents == nil {
		return nil, ConfigurationError("agent cache required")
	}
	if orchestrator == nil {
		return nil, ConfigurationError("batch orchestrator required")
	}
	return &evaluationService{
		log:          log.With("service", "EvaluationService"),
		agents:       agents,
		orchestrator: orchestrator,
	}, nil
}

func (s *evaluationService) EvaluateStandard(ctx context.Context, req StandardEvaluationRequest) (*EvaluationResult, error) {
	if len(req.Topics) == 0 {
		return nil, ValidationError("topics must not be empty")
	}
	if req.EvalType != types.QuestionTypeMCQ && req.EvalType != types.QuestionTypeOpen {
		return nil, ValidationError("eval_type must be mcq or open")
	}
	if req.NumQuestions <= 0 {
		return nil, ValidationError("num_questions must be positive")
	}
	language := defaultLanguage(req.Language)

	agent, err := s.agents.Get(ctx, req.CourseFilter)
	if err != nil {
		return nil, err
	}

	manager, err := NewTopicManager(s.log, req.Topics)
	if err != nil {
		return nil, err
	}

	assignments := make([]TopicAssignment, 0, req.NumQuestions)
	for i := 0; i < req.NumQuestions; i++ {
		assignments = append(assignments, TopicAssignment{Topic: manager.NextTopic(), Type: req.EvalType})
	}

	s.log.Info("Starting standard evaluation", "type", req.EvalType, "count", req.NumQuestions, "language", language)
	questions, err := s.orchestrator.Run(ctx, agent, assignments, language)
	if err != nil {
		return nil, err
	}
	return toResult(questions), nil
}

func (s *evaluationService) EvaluateMixed(ctx context.Context, req MixedEvaluationRequest) (*EvaluationResult, error) {
	if err := validateWeights(req.MCQWeight, req.OpenWeight); err != nil {
		return nil, err
	}
	if req.IsPositioning && len(req.ModulesTopics) == 0 {
		return nil, ValidationError("modules_topics is required for positioning evaluation")
	}
	if !req.IsPositioning && len(req.Topics) == 0 {
		return nil, ValidationError("topics must not be empty")
	}
	if req.NumQuestions <= 0 {
		return nil, ValidationError("num_questions must be positive")
	}
	language := defaultLanguage(req.Language)

	agent, err := s.agents.Get(ctx, req.CourseFilter)
	if err != nil {
		return nil, err
	}

	var source topicSource
	if req.IsPositioning {
		source, err = NewPositioningTopicManager(s.log, req.ModulesTopics)
	} else {
		source, err = NewTopicManager(s.log, req.Topics)
	}
	if err != nil {
		return nil, err
	}

	counts := DistributeQuestionCounts(req.NumQuestions, []float64{req.MCQWeight, req.OpenWeight})
	mcqCount, openCount := counts[0], counts[1]
	s.log.Info("Starting mixed evaluation",
		"count", req.NumQuestions, "mcq", mcqCount, "open", openCount,
		"positioning", req.IsPositioning, "language", language)

	assignments := make([]TopicAssignment, 0, req.NumQuestions)
	for i := 0; i < mcqCount; i++ {
		assignments = append(assignments, TopicAssignment{Topic: source.NextTopic(), Type: types.QuestionTypeMCQ})
	}
	for i := 0; i < openCount; i++ {
		assignments = append(assignments, TopicAssignment{Topic: source.NextTopic(), Type: types.QuestionTypeOpen})
	}
	// Interleave MCQ and open unpredictably in the final exam.
	rand.Shuffle(len(assignments), func(i, j int) {
		assignments[i], assignments[j] = assignments[j], assignments[i]
	})

	questions, err := s.orchestrator.Run(ctx, agent, assignments, language)
	if err != nil {
		return nil, err
	}
	return toResult(questions), nil
}

func validateWeights(mcqWeight, openWeight float64) error {
	if mcqWeight < 0 || mcqWeight > 1 || openWeight < 0 || openWeight > 1 {
		return ValidationError("weights must be between 0 and 1")
	}
	if math.Abs((mcqWeight+openWeight)-1.0) > weightTolerance {
		return ValidationError("mcq and open weights must sum to 1.0")
	}
	return nil
}

func defaultLanguage(language string) string {
	if language == "" {
		return "French"
	}
	return language
}

func toResult(questions []*types.Question) *EvaluationResult {
	out := make([][]any, 0, len(questions))
	for _, q := range questions {
		out = append(out, q.EvaluationFormat())
	}
	return &EvaluationResult{Questions: out}
}

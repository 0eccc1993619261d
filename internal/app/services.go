package app

import (
	"github.com/courseloop/courseloop-backend/internal/platform/logger"
	"github.com/courseloop/courseloop-backend/internal/services"
)

type Services struct {
	AgentCache    services.AgentCache
	Orchestrator  *services.BatchOrchestrator
	Evaluation    services.EvaluationService
	CSVEvaluation services.CSVEvaluationService
	BankGenerator services.QuestionBankGenerator
}

func wireServices(log *logger.Logger, cfg Config, clients Clients, reposet Repos) (Services, error) {
	log.Info("Wiring services...")

	agentCache := services.NewAgentCache(log, clients.OpenAI, clients.VectorStore, cfg.ContextChunks)

	generator, err := services.NewQuestionGenerator(log, clients.OpenAI)
	if err != nil {
		return Services{}, err
	}

	orchestrator, err := services.NewBatchOrchestrator(log, generator, services.NewReferenceResolver(log), services.BatchOrchestratorConfig{
		BatchSize:         cfg.BatchSize,
		MaxConcurrentGen:  cfg.MaxConcurrentGen,
		MaxConcurrentRefs: cfg.MaxConcurrentRefs,
		ContextChunks:     cfg.ContextChunks,
	})
	if err != nil {
		return Services{}, err
	}

	evaluation, err := services.NewEvaluationService(log, agentCache, orchestrator)
	if err != nil {
		return Services{}, err
	}

	csvEvaluation, err := services.NewCSVEvaluationService(log, clients.Bucket, clients.BankCache, evaluation, cfg.BankRoot, cfg.DefaultCourse)
	if err != nil {
		return Services{}, err
	}

	bankGenerator, err := services.NewQuestionBankGenerator(
		log, agentCache, orchestrator, clients.Bucket, clients.BankCache,
		reposet.Course, reposet.CourseModule, reposet.BankGenerationRun,
		services.BankGeneratorConfig{
			BankRoot:           cfg.BankRoot,
			QuestionsPerModule: cfg.QuestionsPerModule,
			BatchSize:          cfg.BankBatchSize,
			MCQWeight:          cfg.MCQWeight,
			OpenWeight:         cfg.OpenWeight,
			Languages:          cfg.BankLanguages,
		})
	if err != nil {
		return Services{}, err
	}

	return Services{
		AgentCache:    agentCache,
		Orchestrator:  orchestrator,
		Evaluation:    evaluation,
		CSVEvaluation: csvEvaluation,
		BankGenerator: bankGenerator,
	}, nil
}

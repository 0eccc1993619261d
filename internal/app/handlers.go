package app

import (
	"github.com/courseloop/courseloop-backend/internal/handlers"
	"github.com/courseloop/courseloop-backend/internal/platform/logger"
)

type Handlers struct {
	Healthcheck  *handlers.HealthcheckHandler
	Evaluation   *handlers.EvaluationHandler
	QuestionBank *handlers.QuestionBankHandler
}

func wireHandlers(log *logger.Logger, serviceset Services, rebuilds handlers.BankRebuildEnqueuer) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Healthcheck:  handlers.NewHealthcheckHandler(),
		Evaluation:   handlers.NewEvaluationHandler(log, serviceset.Evaluation, serviceset.CSVEvaluation),
		QuestionBank: handlers.NewQuestionBankHandler(log, serviceset.BankGenerator, rebuilds),
	}
}

package app

import (
	"github.com/gin-gonic/gin"

	"github.com/courseloop/courseloop-backend/internal/server"
)

func wireRouter(cfg Config, handlerset Handlers) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		ServiceName:         cfg.ServiceName,
		AllowOrigins:        cfg.AllowOrigins,
		HealthcheckHandler:  handlerset.Healthcheck,
		EvaluationHandler:   handlerset.Evaluation,
		QuestionBankHandler: handlerset.QuestionBank,
	})
}

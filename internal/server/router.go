package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/courseloop/courseloop-backend/internal/handlers"
)

type RouterConfig struct {
	ServiceName         string
	AllowOrigins        []string
	HealthcheckHandler  *handlers.HealthcheckHandler
	EvaluationHandler   *handlers.EvaluationHandler
	QuestionBankHandler *handlers.QuestionBankHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(otelgin.Middleware(cfg.ServiceName))

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", cfg.HealthcheckHandler.Healthcheck)

	api := router.Group("/api")
	{
		evaluation := api.Group("/evaluation")
		evaluation.POST("/standard", cfg.EvaluationHandler.GenerateStandard)
		evaluation.POST("/mixed", cfg.EvaluationHandler.GenerateMixed)
		evaluation.POST("/csv", cfg.EvaluationHandler.GenerateFromCSV)

		bank := api.Group("/question-bank")
		bank.POST("/generate", cfg.QuestionBankHandler.GenerateModuleBank)
	}

	return router
}

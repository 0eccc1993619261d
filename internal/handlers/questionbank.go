package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/courseloop/courseloop-backend/internal/platform/logger"
	"github.com/courseloop/courseloop-backend/internal/services"
	"github.com/courseloop/courseloop-backend/internal/temporalx/bankgen"
)

// BankRebuildEnqueuer starts an asynchronous bank rebuild workflow.
// Nil when no workflow backend is configured.
type BankRebuildEnqueuer interface {
	TriggerRebuild(ctx context.Context, input bankgen.WorkflowInput) (string, error)
}

type QuestionBankHandler struct {
	log       *logger.Logger
	generator services.QuestionBankGenerator
	rebuilds  BankRebuildEnqueuer
}

func NewQuestionBankHandler(log *logger.Logger, generator services.QuestionBankGenerator, rebuilds BankRebuildEnqueuer) *QuestionBankHandler {
	return &QuestionBankHandler{
		log:       log.With("handler", "QuestionBankHandler"),
		generator: generator,
		rebuilds:  rebuilds,
	}
}

type generateBankBody struct {
	Course       string   `json:"course"`
	Module       string   `json:"module"`
	Topics       []string `json:"topics"`
	Language     string   `json:"language"`
	CourseFilter string   `json:"course_filter"`

	// Async enqueues a course-wide rebuild on the workflow backend
	// instead of generating one module inline.
	Async     bool     `json:"async"`
	Languages []string `json:"languages"`
}

// POST /api/question-bank/generate
// Inline generation builds one course module/language pair and can take
// minutes; async requests hand the whole course (or everything, when no
// course is given) to the workflow worker and return immediately.
func (h *QuestionBankHandler) GenerateModuleBank(c *gin.Context) {
	var body generateBankBody
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	if body.Async {
		h.enqueueRebuild(c, body)
		return
	}

	if body.Course == "" || body.Module == "" || len(body.Topics) == 0 || body.Language == "" {
		RespondError(c, http.StatusBadRequest, "invalid_request",
			errors.New("course, module, topics and language are required for inline generation"))
		return
	}

	report, err := h.generator.GenerateModuleBank(c.Request.Context(),
		body.Course, body.Module, body.Topics, body.Language, body.CourseFilter)
	if err != nil {
		h.log.Error("Question bank generation failed", "course", body.Course, "module", body.Module, "error", err)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, report)
}

func (h *QuestionBankHandler) enqueueRebuild(c *gin.Context, body generateBankBody) {
	if h.rebuilds == nil {
		RespondError(c, http.StatusConflict, "workflow_backend_unavailable",
			errors.New("async rebuilds require a configured workflow backend"))
		return
	}
	runID, err := h.rebuilds.TriggerRebuild(c.Request.Context(), bankgen.WorkflowInput{
		Course:    body.Course,
		Languages: body.Languages,
	})
	if err != nil {
		h.log.Error("Bank rebuild enqueue failed", "course", body.Course, "error", err)
		RespondError(c, http.StatusBadGateway, "enqueue_failed", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run_id": runID, "course": body.Course})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/courseloop/courseloop-backend/internal/platform/logger"
	"github.com/courseloop/courseloop-backend/internal/services"
	"github.com/courseloop/courseloop-backend/internal/types"
)

type EvaluationHandler struct {
	log    *logger.Logger
	evals  services.EvaluationService
	csvSvc services.CSVEvaluationService
}

func NewEvaluationHandler(log *logger.Logger, evals services.EvaluationService, csvSvc services.CSVEvaluationService) *EvaluationHandler {
	return &EvaluationHandler{
		log:    log.With("handler", "EvaluationHandler"),
		evals:  evals,
		csvSvc: csvSvc,
	}
}

type standardEvaluationBody struct {
	Topics       []string `json:"topics" binding:"required"`
	EvalType     string   `json:"eval_type" binding:"required"`
	NumQuestions int      `json:"num_questions" binding:"required"`
	Language     string   `json:"language"`
	CourseFilter string   `json:"course_filter"`
}

type mixedEvaluationBody struct {
	Topics        []string            `json:"topics"`
	NumQuestions  int                 `json:"num_questions" binding:"required"`
	MCQWeight     float64             `json:"mcq_weight"`
	OpenWeight    float64             `json:"open_weight"`
	Language      string              `json:"language"`
	IsPositioning bool                `json:"is_positioning"`
	ModulesTopics map[string][]string `json:"modules_topics"`
	CourseFilter  string              `json:"course_filter"`
}

type csvEvaluationBody struct {
	ModulesTopics map[string][]string `json:"modules_topics" binding:"required"`
	NumQuestions  int                 `json:"num_questions" binding:"required"`
	MCQWeight     float64             `json:"mcq_weight"`
	OpenWeight    float64             `json:"open_weight"`
	Language      string              `json:"language"`
	IsPositioning bool                `json:"is_positioning"`
	CourseFilter  string              `json:"course_filter"`
}

// POST /api/evaluation/standard
// Generate a single-type evaluation (all MCQ or all open-ended).
func (h *EvaluationHandler) GenerateStandard(c *gin.Context) {
	var body standardEvaluationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	result, err := h.evals.EvaluateStandard(c.Request.Context(), services.StandardEvaluationRequest{
		Topics:       body.Topics,
		EvalType:     types.QuestionType(body.EvalType),
		NumQuestions: body.NumQuestions,
		Language:     body.Language,
		CourseFilter: body.CourseFilter,
	})
	if err != nil {
		h.log.Error("Standard evaluation failed", "error", err)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

// POST /api/evaluation/mixed
// Generate a mixed MCQ/open evaluation, optionally positioning-mode.
func (h *EvaluationHandler) GenerateMixed(c *gin.Context) {
	var body mixedEvaluationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	result, err := h.evals.EvaluateMixed(c.Request.Context(), services.MixedEvaluationRequest{
		Topics:        body.Topics,
		NumQuestions:  body.NumQuestions,
		MCQWeight:     body.MCQWeight,
		OpenWeight:    body.OpenWeight,
		Language:      body.Language,
		IsPositioning: body.IsPositioning,
		ModulesTopics: body.ModulesTopics,
		CourseFilter:  body.CourseFilter,
	})
	if err != nil {
		h.log.Error("Mixed evaluation failed", "error", err)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

// POST /api/evaluation/csv
// Serve a mixed evaluation from the pre-generated question bank, falling
// back to live generation when no bank data exists.
func (h *EvaluationHandler) GenerateFromCSV(c *gin.Context) {
	var body csvEvaluationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	result, err := h.csvSvc.EvaluateMixedFromCSV(c.Request.Context(), services.CSVEvaluationRequest{
		ModulesTopics: body.ModulesTopics,
		NumQuestions:  body.NumQuestions,
		MCQWeight:     body.MCQWeight,
		OpenWeight:    body.OpenWeight,
		Language:      body.Language,
		IsPositioning: body.IsPositioning,
		CourseFilter:  body.CourseFilter,
	})
	if err != nil {
		h.log.Error("CSV evaluation failed", "error", err)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

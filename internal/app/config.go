package app

import (
	"strings"

	"github.com/courseloop/courseloop-backend/internal/platform/logger"
	"github.com/courseloop/courseloop-backend/internal/utils"
)

type Config struct {
	ServiceName string
	Environment string
	Version     string

	AllowOrigins []string

	BatchSize         int
	MaxConcurrentGen  int
	MaxConcurrentRefs int
	ContextChunks     int

	BankRoot           string
	DefaultCourse      string
	QuestionsPerModule int
	BankBatchSize      int
	MCQWeight          float64
	OpenWeight         float64
	BankLanguages      []string
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		ServiceName: utils.GetEnv("SERVICE_NAME", "courseloop-backend", log),
		Environment: utils.GetEnv("ENVIRONMENT", "development", log),
		Version:     utils.GetEnv("SERVICE_VERSION", "dev", log),

		AllowOrigins: splitCSV(utils.GetEnv("CORS_ALLOW_ORIGINS", "", log)),

		BatchSize:         utils.GetEnvAsInt("EVALUATION_BATCH_SIZE", 5, log),
		MaxConcurrentGen:  utils.GetEnvAsInt("MAX_CONCURRENT_EVALUATIONS", 10, log),
		MaxConcurrentRefs: utils.GetEnvAsInt("MAX_CONCURRENT_REFERENCES", 10, log),
		ContextChunks:     utils.GetEnvAsInt("CONTEXT_CHUNKS", 5, log),

		BankRoot:           utils.GetEnv("QUESTION_BANK_ROOT", "question_bank", log),
		DefaultCourse:      utils.GetEnv("DEFAULT_COURSE", "", log),
		QuestionsPerModule: utils.GetEnvAsInt("QUESTION_BANK_PER_MODULE", 50, log),
		BankBatchSize:      utils.GetEnvAsInt("QUESTION_BANK_BATCH_SIZE", 10, log),
		MCQWeight:          utils.GetEnvAsFloat("QUESTION_BANK_MCQ_WEIGHT", 0.6, log),
		OpenWeight:         utils.GetEnvAsFloat("QUESTION_BANK_OPEN_WEIGHT", 0.4, log),
		BankLanguages:      splitCSV(utils.GetEnv("QUESTION_BANK_LANGUAGES", "French,English", log)),
	}
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

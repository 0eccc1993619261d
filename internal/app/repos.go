package app

import (
	"gorm.io/gorm"

	"github.com/courseloop/courseloop-backend/internal/platform/logger"
	"github.com/courseloop/courseloop-backend/internal/repos"
)

type Repos struct {
	Course            repos.CourseRepo
	CourseModule      repos.CourseModuleRepo
	BankGenerationRun repos.BankGenerationRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Course:            repos.NewCourseRepo(db, log),
		CourseModule:      repos.NewCourseModuleRepo(db, log),
		BankGenerationRun: repos.NewBankGenerationRunRepo(db, log),
	}
}

package bankgen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/courseloop/courseloop-backend/internal/platform/logger"
	"github.com/courseloop/courseloop-backend/internal/repos"
	"github.com/courseloop/courseloop-backend/internal/services"
)

type Activities struct {
	Log       *logger.Logger
	Courses   repos.CourseRepo
	Modules   repos.CourseModuleRepo
	Generator services.QuestionBankGenerator
}

// ListModules resolves the module targets for one workflow run. Course
// discovery happens inside the activity so the workflow stays
// deterministic.
func (a *Activities) ListModules(ctx context.Context, input WorkflowInput) ([]ModuleTarget, error) {
	if a == nil || a.Courses == nil || a.Modules == nil {
		return nil, fmt.Errorf("bankgen: listing activity not configured")
	}

	courses, err := a.Courses.List(ctx, nil)
	if err != nil {
		return nil, err
	}

	courseFilter := strings.TrimSpace(input.Course)
	var targets []ModuleTarget
	for _, course := range courses {
		if courseFilter != "" && course.Title != courseFilter {
			continue
		}
		modules, err := a.Modules.GetByCourseTitle(ctx, nil, course.Title)
		if err != nil {
			return nil, err
		}
		for _, module := range modules {
			topics, err := a.Modules.GetModuleTopics(ctx, nil, course.Title, module.Title)
			if err != nil {
				if a.Log != nil {
					a.Log.Warn("Skipping module without topics", "course", course.Title, "module", module.Title, "error", err)
				}
				continue
			}
			if len(topics) == 0 {
				continue
			}
			targets = append(targets, ModuleTarget{
				Course: course.Title,
				Module: module.Title,
				Topics: topics,
			})
		}
	}
	if courseFilter != "" && len(targets) == 0 {
		return nil, fmt.Errorf("bankgen: no modules with topics for course %q", courseFilter)
	}
	return targets, nil
}

// GenerateModule builds one module/language bank. Generation takes
// minutes, so a background heartbeat keeps the activity alive.
func (a *Activities) GenerateModule(ctx context.Context, input GenerateModuleInput) (GenerateModuleResult, error) {
	var res GenerateModuleResult
	if a == nil || a.Generator == nil {
		return res, fmt.Errorf("bankgen: generation activity not configured")
	}

	stopHB := a.startHeartbeat(ctx, input)
	defer stopHB()

	report, err := a.Generator.GenerateModuleBank(ctx, input.Course, input.Module, input.Topics, input.Language, input.Course)
	if err != nil {
		return res, err
	}
	res.Questions = report.Questions
	res.DuplicatesSkipped = report.DuplicatesSkipped
	res.BlobPath = report.BlobPath
	return res, nil
}

func (a *Activities) startHeartbeat(ctx context.Context, input GenerateModuleInput) func() {
	if !activity.IsActivity(ctx) {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				activity.RecordHeartbeat(ctx, fmt.Sprintf("%s/%s %s", input.Course, input.Module, input.Language))
			}
		}
	}()
	return func() { close(done) }
}

package bankgen

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Workflow rebuilds the question bank for every targeted module and
// language. Modules run sequentially: each module already fans out into
// many concurrent model calls, and stacking modules on top would multiply
// pressure on the model API rate limits.
func Workflow(ctx workflow.Context, input WorkflowInput) (WorkflowResult, error) {
	var result WorkflowResult
	log := workflow.GetLogger(ctx)

	listCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})
	var targets []ModuleTarget
	if err := workflow.ExecuteActivity(listCtx, ActivityListModules, input).Get(ctx, &targets); err != nil {
		return result, err
	}

	languages := input.Languages
	if len(languages) == 0 {
		languages = []string{"French", "English"}
	}

	genCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 30 * time.Second,
			MaximumAttempts: 2,
		},
	})

	for _, target := range targets {
		for _, language := range languages {
			result.Targets++
			var out GenerateModuleResult
			err := workflow.ExecuteActivity(genCtx, ActivityGenerateModule, GenerateModuleInput{
				Course:   target.Course,
				Module:   target.Module,
				Topics:   target.Topics,
				Language: language,
			}).Get(ctx, &out)
			if err != nil {
				// One bad module should not sink the whole rebuild.
				log.Error("bank generation failed for module",
					"course", target.Course, "module", target.Module, "language", language, "error", err)
				result.Failed++
				continue
			}
			result.Succeeded++
			log.Info("bank generated for module",
				"course", target.Course, "module", target.Module, "language", language,
				"questions", out.Questions, "blob_path", out.BlobPath)
		}
	}
	return result, nil
}

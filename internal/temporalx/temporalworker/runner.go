package temporalworker

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/courseloop/courseloop-backend/internal/platform/logger"
	"github.com/courseloop/courseloop-backend/internal/repos"
	"github.com/courseloop/courseloop-backend/internal/services"
	"github.com/courseloop/courseloop-backend/internal/temporalx"
	"github.com/courseloop/courseloop-backend/internal/temporalx/bankgen"
)

// Runner hosts the bank-generation worker on the configured task queue.
type Runner struct {
	log *logger.Logger
	tc  temporalsdkclient.Client

	courses   repos.CourseRepo
	modules   repos.CourseModuleRepo
	generator services.QuestionBankGenerator
}

func NewRunner(
	log *logger.Logger,
	tc temporalsdkclient.Client,
	courses repos.CourseRepo,
	modules repos.CourseModuleRepo,
	generator services.QuestionBankGenerator,
) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if courses == nil || modules == nil || generator == nil {
		return nil, fmt.Errorf("temporal worker missing deps")
	}
	return &Runner{
		log:       log,
		tc:        tc,
		courses:   courses,
		modules:   modules,
		generator: generator,
	}, nil
}

func (r *Runner) Start(ctx context.Context) error {
	if r == nil || r.tc == nil {
		return fmt.Errorf("temporal worker not initialized")
	}

	cfg := temporalx.LoadConfig()
	if r.log != nil {
		r.log.Info("Starting Temporal worker", "address", cfg.Address, "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue)
	}

	w := worker.New(r.tc, cfg.TaskQueue, worker.Options{})

	w.RegisterWorkflowWithOptions(bankgen.Workflow, workflow.RegisterOptions{Name: bankgen.WorkflowName})

	acts := &bankgen.Activities{
		Log:       r.log,
		Courses:   r.courses,
		Modules:   r.modules,
		Generator: r.generator,
	}
	w.RegisterActivityWithOptions(acts.ListModules, activity.RegisterOptions{Name: bankgen.ActivityListModules})
	w.RegisterActivityWithOptions(acts.GenerateModule, activity.RegisterOptions{Name: bankgen.ActivityGenerateModule})

	if err := w.Start(); err != nil {
		return fmt.Errorf("temporal worker start: %w", err)
	}

	go func() {
		<-ctx.Done()
		if r.log != nil {
			r.log.Info("Stopping Temporal worker")
		}
		w.Stop()
	}()
	return nil
}

// TriggerRebuild starts (or signals-with-starts) a bank rebuild workflow.
// The workflow ID is derived from the course so duplicate triggers for
// the same course collapse onto the running build.
func (r *Runner) TriggerRebuild(ctx context.Context, input bankgen.WorkflowInput) (string, error) {
	if r == nil || r.tc == nil {
		return "", fmt.Errorf("temporal worker not initialized")
	}
	cfg := temporalx.LoadConfig()

	workflowID := "bank-generation-all"
	if input.Course != "" {
		workflowID = "bank-generation-" + input.Course
	}
	run, err := r.tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:                       workflowID,
		TaskQueue:                cfg.TaskQueue,
		WorkflowExecutionTimeout: 12 * time.Hour,
	}, bankgen.WorkflowName, input)
	if err != nil {
		return "", fmt.Errorf("start bank generation workflow: %w", err)
	}
	return run.GetRunID(), nil
}

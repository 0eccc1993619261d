package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/courseloop/courseloop-backend/internal/app"
)

// bankgen rebuilds the pre-generated question bank from the command line.
// With no flags it walks every course module in the database; with
// -course/-module it rebuilds a single module.
func main() {
	course := flag.String("course", "", "restrict generation to one course title")
	module := flag.String("module", "", "restrict generation to one module title (requires -course)")
	language := flag.String("language", "", "restrict generation to one language (single-module mode)")
	timeout := flag.Duration("timeout", 6*time.Hour, "overall generation deadline")
	flag.Parse()

	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *module != "" {
		if *course == "" {
			a.Log.Fatal("-module requires -course")
		}
		runSingle(ctx, a, *course, *module, *language)
		return
	}

	summary, err := a.Services.BankGenerator.GenerateAll(ctx)
	if err != nil {
		a.Log.Error("Bank generation failed", "error", err)
		os.Exit(1)
	}
	printJSON(summary)
	if summary.FailedModules > 0 {
		os.Exit(1)
	}
}

func runSingle(ctx context.Context, a *app.App, course, module, language string) {
	topics, err := a.Repos.CourseModule.GetModuleTopics(ctx, nil, course, module)
	if err != nil {
		a.Log.Error("Could not load module topics", "course", course, "module", module, "error", err)
		os.Exit(1)
	}

	languages := a.Cfg.BankLanguages
	if language != "" {
		languages = []string{language}
	}
	for _, lang := range languages {
		report, err := a.Services.BankGenerator.GenerateModuleBank(ctx, course, module, topics, lang, course)
		if err != nil {
			a.Log.Error("Bank generation failed", "course", course, "module", module, "language", lang, "error", err)
			os.Exit(1)
		}
		printJSON(report)
	}
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%+v\n", v)
		return
	}
	fmt.Println(string(out))
}

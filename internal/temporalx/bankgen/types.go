package bankgen

const (
	WorkflowName           = "bank_generation"
	ActivityListModules    = "bank_generation_list_modules"
	ActivityGenerateModule = "bank_generation_generate_module"
)

// WorkflowInput scopes one bank build. Empty Course means every course;
// empty Languages means the configured defaults.
type WorkflowInput struct {
	Course    string   `json:"course,omitempty"`
	Languages []string `json:"languages,omitempty"`
}

// ModuleTarget is one course module with its topic list, as discovered by
// the listing activity.
type ModuleTarget struct {
	Course string   `json:"course"`
	Module string   `json:"module"`
	Topics []string `json:"topics"`
}

type GenerateModuleInput struct {
	Course   string   `json:"course"`
	Module   string   `json:"module"`
	Topics   []string `json:"topics"`
	Language string   `json:"language"`
}

type GenerateModuleResult struct {
	Questions         int    `json:"questions"`
	DuplicatesSkipped int    `json:"duplicates_skipped"`
	BlobPath          string `json:"blob_path"`
}

type WorkflowResult struct {
	Targets   int `json:"targets"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

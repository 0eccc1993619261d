package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/courseloop/courseloop-backend/internal/platform/logger"
)

// ReferenceResolver turns a generated question back into supporting
// citations. Fetching is I/O-bound and runs concurrently across a batch;
// formatting is pure and runs synchronously afterwards.
type ReferenceResolver struct {
	log *logger.Logger
}

func NewReferenceResolver(log *logger.Logger) *ReferenceResolver {
	return &ReferenceResolver{log: log.With("service", "ReferenceResolver")}
}

// FetchRawReferences queries the agent with the question text and returns
// deduplicated "File.pdf:chunk_X" attributions, insertion order preserved.
func (r *ReferenceResolver) FetchRawReferences(ctx context.Context, agent RetrievalAgent, question string) ([]string, error) {
	t0 := time.Now()
	result, err := agent.Query(ctx, question)
	if err != nil {
		return nil, err
	}
	r.log.Debug("Reference query completed", "question", excerpt(question, 30), "took", time.Since(t0))

	seen := make(map[string]struct{})
	var raw []string
	for _, src := range result.Sources {
		fname := src.FileName
		if idx := strings.LastIndex(fname, "/"); idx != -1 {
			fname = fname[idx+1:]
		}
		if fname == "" || src.PageLabel == "" {
			continue
		}
		ref := fname + ":" + src.PageLabel
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		raw = append(raw, ref)
	}
	return raw, nil
}

// FormatAndMergeRefs merges raw references into one string per file:
//
//	["Chap_1_File.pdf:chunk_3", "Chap_1_File.pdf:chunk_4"]
//	  -> ["Chap 1 File, Page 3, 4"]
//
// Labels are deduplicated and sorted numerically per title. Grouping
// preserves first-appearance order of titles.
func FormatAndMergeRefs(rawRefs []string) []string {
	grouped := make(map[string][]string)
	var order []string

	for _, rr := range rawRefs {
		parts := strings.SplitN(rr, ":", 2)
		if len(parts) != 2 {
			continue
		}
		filePart, chunkPart := parts[0], parts[1]
		ext := filepath.Ext(filePart)
		title := strings.ReplaceAll(strings.TrimSuffix(filePart, ext), "_", " ")

		segs := strings.Split(chunkPart, "_")
		page := segs[len(segs)-1]

		if _, ok := grouped[title]; !ok {
			order = append(order, title)
		}
		grouped[title] = append(grouped[title], page)
	}

	merged := make([]string, 0, len(order))
	for _, title := range order {
		pages := uniquePages(grouped[title])
		merged = append(merged, fmt.Sprintf("%s, Page %s", title, strings.Join(pages, ", ")))
	}
	return merged
}

func uniquePages(pages []string) []string {
	seen := make(map[string]struct{}, len(pages))
	unique := make([]string, 0, len(pages))
	for _, p := range pages {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		unique = append(unique, p)
	}
	sort.Slice(unique, func(i, j int) bool {
		ni, errI := strconv.Atoi(unique[i])
		nj, errJ := strconv.Atoi(unique[j])
		if errI == nil && errJ == nil {
			return ni < nj
		}
		return unique[i] < unique[j]
	})
	return unique
}

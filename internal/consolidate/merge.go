package consolidate

import (
	"sort"
	"time"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/report"
)

// MergeExecution inserts or replaces exec in store and recomputes the global
// metadata. Merging the same execution twice only changes LastUpdated.
func MergeExecution(store *report.Store, exec *report.Execution, sf report.SourceFile, now time.Time) *report.Store {
	if store == nil {
		store = report.NewStore(now)
	}
	store.Normalize()
	store.Executions[exec.ID] = exec

	store.Metadata.DistinctURLs = distinctURLs(store)
	store.Metadata.TotalExecutions = len(store.Executions)
	store.Metadata.LastUpdated = report.FormatTimestamp(now)

	replaced := false
	for i := range store.Metadata.SourceFiles {
		if store.Metadata.SourceFiles[i].ExecutionID == sf.ExecutionID {
			store.Metadata.SourceFiles[i] = sf
			replaced = true
			break
		}
	}
	if !replaced {
		store.Metadata.SourceFiles = append(store.Metadata.SourceFiles, sf)
	}
	return store
}

// distinctURLs is the union of URL keys over all executions. URLs already
// listed keep their position; new ones follow in execution-id then URL order.
func distinctURLs(store *report.Store) []string {
	present := make(map[string]bool)
	for _, exec := range store.Executions {
		for url := range exec.URLs {
			present[url] = true
		}
	}

	out := make([]string, 0, len(present))
	seen := make(map[string]bool, len(present))
	for _, url := range store.Metadata.DistinctURLs {
		if present[url] && !seen[url] {
			out = append(out, url)
			seen[url] = true
		}
	}

	ids := make([]string, 0, len(store.Executions))
	for id := range store.Executions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		urls := make([]string, 0, len(store.Executions[id].URLs))
		for url := range store.Executions[id].URLs {
			if !seen[url] {
				urls = append(urls, url)
			}
		}
		sort.Strings(urls)
		for _, url := range urls {
			out = append(out, url)
			seen[url] = true
		}
	}
	return out
}

package report

// Aggregate builds the execution for one CSV. A URL listed twice keeps its
// last row; counts are taken over the resulting URL set.
func Aggregate(info ExecutionInfo, records []MetricsRecord) *Execution {
	exec := &Execution{
		ID:   info.ID,
		URLs: make(map[string]MetricsRecord, len(records)),
	}
	for _, rec := range records {
		exec.URLs[rec.URL] = rec
	}

	meta := ExecutionMetadata{
		Date:       info.Date,
		Time:       info.Time,
		Timestamp:  info.Timestamp,
		SourceFile: info.SourceFile,
		TotalURLs:  len(exec.URLs),
	}
	for _, rec := range exec.URLs {
		if rec.DataFound {
			meta.SuccessfulURLs++
		}
		if rec.Metrics.Views > 0 {
			meta.URLsWithData++
		}
	}
	exec.Metadata = meta
	return exec
}

// SourceFileFor is the store bookkeeping entry of an execution built from rows records.
func SourceFileFor(info ExecutionInfo, rows int) SourceFile {
	return SourceFile{
		File:        info.SourceFile,
		ExecutionID: info.ID,
		Date:        info.Date,
		Time:        info.Time,
		RecordCount: rows,
	}
}

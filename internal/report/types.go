// Package report holds the report domain model and the codecs between a
// run's CSV file and the consolidated JSON store.
//
// JSON field names follow the persisted store format, which predates this
// service and is consumed by existing dashboards.
package report

import "time"

// TimestampLayout is the ISO-8601 UTC layout with milliseconds used for every
// timestamp in the store.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Metrics are the per-URL numbers of one execution.
type Metrics struct {
	Views           int64   `json:"vistas"`
	Sessions        int64   `json:"sesiones"`
	ActiveUsers     int64   `json:"usuariosActivos"`
	NewUsers        int64   `json:"usuariosNuevos"`
	EngagedSessions int64   `json:"sesionesComprometidas"`
	EngagementRate  float64 `json:"tasaCompromiso"`
	AvgDuration     float64 `json:"duracionPromedio"`
	BounceRate      float64 `json:"tasaRebote"`
}

// TrafficSource is the partial metrics of one session source.
type TrafficSource struct {
	Views    int64   `json:"views"`
	Sessions int64   `json:"sessions"`
	Users    int64   `json:"users"`
	Duration Decimal `json:"duration"`
	Bounce   Decimal `json:"bounce"`
}

// MetricsRecord is one URL in one execution. URL and QueryDate travel in the
// CSV but not in the store, where the URL is the map key.
type MetricsRecord struct {
	URL              string                   `json:"-"`
	QueryDate        string                   `json:"-"`
	Metrics          Metrics                  `json:"metrics"`
	DataFound        bool                     `json:"datosEncontrados"`
	TrafficBreakdown map[string]TrafficSource `json:"desgloseTrafico"`
	Warnings         Annotations              `json:"advertencias"`
	Insights         Annotations              `json:"insights"`
	ProcessedAt      string                   `json:"timestamp"`
}

// ExecutionMetadata summarizes one run.
type ExecutionMetadata struct {
	Date           string `json:"fechaEjecucion"`
	Time           string `json:"horaEjecucion"`
	Timestamp      string `json:"timestamp"`
	SourceFile     string `json:"archivoOriginal"`
	TotalURLs      int    `json:"totalUrls"`
	SuccessfulURLs int    `json:"urlsExitosas"`
	URLsWithData   int    `json:"urlsConDatos"`
}

// Execution is one run keyed by URL.
type Execution struct {
	ID       string                   `json:"-"`
	Metadata ExecutionMetadata        `json:"metadata"`
	URLs     map[string]MetricsRecord `json:"urls"`
}

// SourceFile records which CSV produced an execution.
type SourceFile struct {
	File        string `json:"archivo"`
	ExecutionID string `json:"ejecucionId"`
	Date        string `json:"fecha"`
	Time        string `json:"hora"`
	RecordCount int    `json:"registros"`
}

// StoreMetadata is the global section of the consolidated store.
type StoreMetadata struct {
	TotalExecutions int          `json:"totalEjecuciones"`
	DistinctURLs    []string     `json:"totalUrls"`
	LastUpdated     string       `json:"ultimaActualizacion"`
	SourceFiles     []SourceFile `json:"archivosOriginales"`
}

// Store is the consolidated document: every execution ever merged.
type Store struct {
	Executions map[string]*Execution `json:"data"`
	Metadata   StoreMetadata         `json:"metadata"`
}

// NewStore returns an empty store stamped with now.
func NewStore(now time.Time) *Store {
	return &Store{
		Executions: make(map[string]*Execution),
		Metadata: StoreMetadata{
			DistinctURLs: []string{},
			LastUpdated:  FormatTimestamp(now),
			SourceFiles:  []SourceFile{},
		},
	}
}

// Normalize fills nil collections and copies map keys into Execution.ID,
// so a store decoded from JSON is ready for use.
func (s *Store) Normalize() {
	if s.Executions == nil {
		s.Executions = make(map[string]*Execution)
	}
	for id, exec := range s.Executions {
		if exec == nil {
			delete(s.Executions, id)
			continue
		}
		exec.ID = id
		if exec.URLs == nil {
			exec.URLs = make(map[string]MetricsRecord)
		}
	}
	if s.Metadata.DistinctURLs == nil {
		s.Metadata.DistinctURLs = []string{}
	}
	if s.Metadata.SourceFiles == nil {
		s.Metadata.SourceFiles = []SourceFile{}
	}
}

package analytics

// Request and response shapes of the GA4 Data API runReport method.

type DateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type Dimension struct {
	Name string `json:"name"`
}

type Metric struct {
	Name string `json:"name"`
}

type StringFilter struct {
	MatchType     string `json:"matchType"`
	Value         string `json:"value"`
	CaseSensitive bool   `json:"caseSensitive"`
}

type Filter struct {
	FieldName    string        `json:"fieldName"`
	StringFilter *StringFilter `json:"stringFilter,omitempty"`
}

type FilterExpression struct {
	Filter *Filter `json:"filter,omitempty"`
}

type MetricOrderBy struct {
	MetricName string `json:"metricName"`
}

type OrderBy struct {
	Metric *MetricOrderBy `json:"metric,omitempty"`
	Desc   bool           `json:"desc"`
}

// ReportRequest is the body of properties/{id}:runReport.
type ReportRequest struct {
	DateRanges          []DateRange       `json:"dateRanges"`
	Dimensions          []Dimension       `json:"dimensions"`
	Metrics             []Metric          `json:"metrics"`
	DimensionFilter     *FilterExpression `json:"dimensionFilter,omitempty"`
	KeepEmptyRows       bool              `json:"keepEmptyRows,omitempty"`
	ReturnPropertyQuota bool              `json:"returnPropertyQuota,omitempty"`
	OrderBys            []OrderBy         `json:"orderBys,omitempty"`
	Limit               int64             `json:"limit,omitempty,string"`
}

type Value struct {
	Value string `json:"value"`
}

type Row struct {
	DimensionValues []Value `json:"dimensionValues"`
	MetricValues    []Value `json:"metricValues"`
}

type ResponseMetaData struct {
	SamplingMetadatas []map[string]any `json:"samplingMetadatas,omitempty"`
}

// ReportResponse is the subset of the runReport response we read.
type ReportResponse struct {
	Rows     []Row            `json:"rows"`
	RowCount int64            `json:"rowCount"`
	Metadata ResponseMetaData `json:"metadata"`
}

// Sampled reports whether GA4 sampled the data behind the response.
func (r *ReportResponse) Sampled() bool {
	return len(r.Metadata.SamplingMetadatas) > 0
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

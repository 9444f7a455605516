package models

// VisualizationKind is the rendering hint attached to a structured response.
type VisualizationKind string

const (
	VisualizationTable     VisualizationKind = "table"
	VisualizationKPI       VisualizationKind = "kpi"
	VisualizationBarChart  VisualizationKind = "bar_chart"
	VisualizationLineChart VisualizationKind = "line_chart"
	VisualizationPieChart  VisualizationKind = "pie_chart"
	VisualizationText      VisualizationKind = "text"
)

// VisualizationDecision pairs a rendering kind with kind-specific metadata
// (category/value/date column names, KPI values, fallback reasons).
type VisualizationDecision struct {
	Kind     VisualizationKind      `json:"kind"`
	Metadata map[string]interface{} `json:"metadata"`
}

// AskRequest is the request body for asking a question about the database.
type AskRequest struct {
	Question       string `json:"question"`
	IncludeSQL     bool   `json:"include_sql"`
	FormatResponse bool   `json:"format_response"`
}

// StructuredResponse is the assembled answer returned to the caller.
type StructuredResponse struct {
	Answer        string                 `json:"answer"`
	SQLQuery      string                 `json:"sql_query,omitempty"`
	Data          []Row                  `json:"data"`
	Visualization VisualizationKind      `json:"visualization"`
	VizMetadata   map[string]interface{} `json:"viz_metadata,omitempty"`
	RowCount      int                    `json:"row_count"`
	Truncated     bool                   `json:"truncated"`
	Success       bool                   `json:"success"`
	Error         string                 `json:"error,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

package types

type DataResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

type UploadResponse struct {
	OriginalName string `json:"original_name,omitempty"`
	StoredPath   string `json:"stored_path,omitempty"`
	Pages        int    `json:"pages,omitempty"`
}

type StatusResponse struct {
	Status     string `json:"status"`
	Provider   string `json:"provider"`
	DataDir    string `json:"data_dir"`
	ActiveRuns int    `json:"active_runs"`
	TotalRuns  int    `json:"total_runs"`
}

type SearchHit struct {
	Card       QuestionCard `json:"card"`
	Paper      string       `json:"paper"`
	HasDiagram bool         `json:"has_diagram,omitempty"`
	Distance   float32      `json:"distance,omitempty"`
}

package types

type ProcessPipelineRequest struct {
	Paper string `json:"paper"`
}

type ExtractDiagramsRequest struct {
	Paper string `json:"paper"`
}

type MapDiagramsRequest struct {
	Paper string `json:"paper"`
	// Preview overrides the preview image recorded in the diagram metadata.
	Preview string `json:"preview,omitempty"`
}

type ExtractMarksRequest struct {
	Paper string `json:"paper"`
}

type ExtractQuestionsRequest struct {
	Paper string `json:"paper"`
}

type GenerateCardsRequest struct {
	Paper  string      `json:"paper"`
	Filter *CardFilter `json:"filter,omitempty"`
}

type SearchCardsRequest struct {
	Query string   `json:"query"`
	Types []string `json:"types,omitempty"`
	Paper string   `json:"paper,omitempty"`
	Limit int      `json:"limit,omitempty"`
}

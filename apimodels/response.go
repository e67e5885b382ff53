package apimodels

import (
	"github.com/insightctl/retail-insights/internal/pipeline"
	"github.com/insightctl/retail-insights/internal/vectorstore"
)

type AskResponse struct {
	pipeline.Response

	Metadata AskMetadata `json:"metadata"`
}

type AskMetadata struct {
	// Time taken to drive the pipeline to done
	Duration string `json:"duration"`
}

type SummaryResponse struct {
	Summary string `json:"summary"`
}

type SearchResponse struct {
	Results []vectorstore.Result `json:"results"`
}

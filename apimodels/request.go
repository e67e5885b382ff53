package apimodels

type AskRequest struct {
	// Question is the natural language question about the dataset
	Question string `json:"question"`
}

type SearchRequest struct {
	// Query is the text searched against the semantic index
	Query string `json:"query"`

	// K limits the number of results (default 5)
	K int `json:"k,omitempty"`
}

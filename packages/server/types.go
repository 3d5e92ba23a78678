package server

import "github.com/simplesapien/redirect-resolver/packages/domain"

const usage = "GET /redirect?url=<url>"

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Usage   string `json:"usage"`
}

type redirectResponse struct {
	OriginalURL string       `json:"originalUrl"`
	TrimmedURL  string       `json:"trimmedUrl"`
	FinalURL    string       `json:"finalUrl"`
	Redirected  bool         `json:"redirected"`
	Hops        []domain.Hop `json:"hops"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Usage   string `json:"usage,omitempty"`
}

type batchRequest struct {
	URLs []string `json:"urls"`
}

type batchResponse struct {
	Results []domain.BatchItem `json:"results"`
}

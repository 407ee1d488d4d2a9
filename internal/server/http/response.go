package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/helixir/rehab-research-service/internal/domain"
)

// Response types for JSON serialization.

type searchResponse struct {
	Articles []domain.ArticleRecord `json:"articles"`
	Count    int                    `json:"count"`
}

type analyzeResponse struct {
	Analysis string `json:"analysis"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

type compareResponse struct {
	Comparison string `json:"comparison"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client-facing error messages.
const (
	msgInvalidBody       = "Invalid request body."
	msgEmptyQuery        = "Please enter a search query."
	msgNoArticlesFound   = "No articles found. Try a different search term."
	msgUpstreamFailed    = "The literature database could not be reached. Please try again later."
	msgNoArticles        = "No articles provided."
	msgEmptyQuestion     = "Please enter a question."
	msgMissingTreatments = "Please provide both treatments to compare."
	msgAnalysisDisabled  = "The analysis service is not configured."
	msgAnalysisFailed    = "Error communicating with AI service."
	msgRequestTooLarge   = "Request body too large."
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// Best effort; headers are already sent.
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message})
}

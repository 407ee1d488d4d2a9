package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/helixir/rehab-research-service/internal/domain"
	"github.com/helixir/rehab-research-service/internal/observability"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// searchRequest is the request body for POST /search. It may also arrive as
// form fields with the same names.
type searchRequest struct {
	Query      string `json:"query" validate:"required"`
	MaxResults *int   `json:"max_results,omitempty"`
}

type analyzeRequest struct {
	Articles []domain.ArticleRecord `json:"articles" validate:"required,min=1"`
	Question string                 `json:"question" validate:"required"`
}

type summarizeRequest struct {
	Articles []domain.ArticleRecord `json:"articles" validate:"required,min=1"`
}

type compareRequest struct {
	Articles   []domain.ArticleRecord `json:"articles" validate:"required,min=1"`
	TreatmentA string                 `json:"treatment_a" validate:"required"`
	TreatmentB string                 `json:"treatment_b" validate:"required"`
}

// validationMessages maps struct fields to the message shown when they fail validation.
var validationMessages = map[string]string{
	"Query":      msgEmptyQuery,
	"Articles":   msgNoArticles,
	"Question":   msgEmptyQuestion,
	"TreatmentA": msgMissingTreatments,
	"TreatmentB": msgMissingTreatments,
}

// search handles POST /search.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSearch(w, r)
	if !ok {
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	if !s.validateRequest(w, req) {
		return
	}

	bound := s.limits.DefaultResults
	if req.MaxResults != nil {
		bound = min(max(1, *req.MaxResults), s.limits.MaxResults)
	}

	result := s.searcher.Run(r.Context(), req.Query, bound)
	if len(result.Records) == 0 {
		if result.UpstreamFailed() {
			writeError(w, http.StatusBadGateway, msgUpstreamFailed)
			return
		}
		writeError(w, http.StatusNotFound, msgNoArticlesFound)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{Articles: result.Records, Count: len(result.Records)})
}

// decodeSearch reads a search request from a JSON body or from form fields.
// A max_results form value that is not an integer falls back to the default.
func (s *Server) decodeSearch(w http.ResponseWriter, r *http.Request) (*searchRequest, bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(s.limits.MaxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			s.writeDecodeError(w, err)
			return nil, false
		}
		req := &searchRequest{Query: r.FormValue("query")}
		if n, err := strconv.Atoi(strings.TrimSpace(r.FormValue("max_results"))); err == nil {
			req.MaxResults = &n
		}
		return req, true
	default:
		var req searchRequest
		if !s.decodeJSON(w, r, &req) {
			return nil, false
		}
		return &req, true
	}
}

// analyze handles POST /analyze.
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	if !s.analysisEnabled(w) {
		return
	}

	var req analyzeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if !s.validateRequest(w, &req) {
		return
	}

	analysis, err := s.analyst.AnalyzeResearch(r.Context(), normalizeArticles(req.Articles), req.Question)
	if err != nil {
		s.writeAnalysisError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{Analysis: analysis})
}

// summarize handles POST /summarize.
func (s *Server) summarize(w http.ResponseWriter, r *http.Request) {
	if !s.analysisEnabled(w) {
		return
	}

	var req summarizeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if !s.validateRequest(w, &req) {
		return
	}

	summary, err := s.analyst.SummarizeArticles(r.Context(), normalizeArticles(req.Articles))
	if err != nil {
		s.writeAnalysisError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summarizeResponse{Summary: summary})
}

// compare handles POST /compare.
func (s *Server) compare(w http.ResponseWriter, r *http.Request) {
	if !s.analysisEnabled(w) {
		return
	}

	var req compareRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	req.TreatmentA = strings.TrimSpace(req.TreatmentA)
	req.TreatmentB = strings.TrimSpace(req.TreatmentB)
	if !s.validateRequest(w, &req) {
		return
	}

	comparison, err := s.analyst.CompareTreatments(r.Context(), normalizeArticles(req.Articles), req.TreatmentA, req.TreatmentB)
	if err != nil {
		s.writeAnalysisError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, compareResponse{Comparison: comparison})
}

func (s *Server) analysisEnabled(w http.ResponseWriter) bool {
	if s.analyst == nil {
		writeError(w, http.StatusServiceUnavailable, msgAnalysisDisabled)
		return false
	}
	return true
}

// decodeJSON decodes the body into dst. An empty body, a JSON null and
// malformed JSON are all rejected.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeDecodeError(w, err)
		return false
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return false
	}
	return true
}

func (s *Server) writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, msgRequestTooLarge)
		return
	}
	writeError(w, http.StatusBadRequest, msgInvalidBody)
}

// validateRequest runs struct validation and writes a 400 naming the first failing field.
func (s *Server) validateRequest(w http.ResponseWriter, req any) bool {
	err := validate.Struct(req)
	if err == nil {
		return true
	}

	msg := msgInvalidBody
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if m, ok := validationMessages[verrs[0].StructField()]; ok {
			msg = m
		}
	}
	writeError(w, http.StatusBadRequest, msg)
	return false
}

func (s *Server) writeAnalysisError(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.LoggerFromContext(r.Context(), s.logger)
	logger.Error().Err(err).
		Str("path", r.URL.Path).
		Msg("analysis failed")
	writeError(w, http.StatusBadGateway, msgAnalysisFailed)
}

func normalizeArticles(in []domain.ArticleRecord) []domain.ArticleRecord {
	out := make([]domain.ArticleRecord, len(in))
	for i, a := range in {
		out[i] = domain.NormalizeRecord(a, "")
	}
	return out
}

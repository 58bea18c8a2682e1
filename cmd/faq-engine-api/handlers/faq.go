package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/faq"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/feedback"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/matching"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/observability"
)

// Searcher runs FAQ searches.
type Searcher interface {
	Search(ctx context.Context, req matching.SearchRequest) (*faq.MatchResult, error)
}

// Feedback records views and ratings.
type Feedback interface {
	RecordView(ctx context.Context, faqID string) error
	RecordRating(ctx context.Context, faqID string, helpful bool) error
	Stats(ctx context.Context, faqID string) (*feedback.Stats, error)
}

// FAQHandler handles FAQ search and feedback requests.
type FAQHandler struct {
	logger      *observability.Logger
	searcher    Searcher
	feedback    Feedback
	searchLimit int
}

// NewFAQHandler creates a new FAQ handler.
func NewFAQHandler(logger *observability.Logger, searcher Searcher, fb Feedback, searchLimit int) *FAQHandler {
	if searchLimit <= 0 {
		searchLimit = matching.SearchLimit
	}
	return &FAQHandler{
		logger:      logger,
		searcher:    searcher,
		feedback:    fb,
		searchLimit: searchLimit,
	}
}

// SearchRequestDTO represents the API request for FAQ search.
type SearchRequestDTO struct {
	Query     string   `json:"query"`
	Models    []string `json:"models,omitempty"`
	Category  string   `json:"category,omitempty"`
	Limit     int      `json:"limit,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// SearchResponseDTO represents the API response for FAQ search.
type SearchResponseDTO struct {
	Results   []FAQResultDTO `json:"results"`
	Escalate  bool           `json:"escalate"`
	Threshold float64        `json:"threshold"`
	TimedOut  bool           `json:"timedOut,omitempty"`
}

// FAQResultDTO represents one ranked FAQ.
type FAQResultDTO struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Answer        string   `json:"answer"`
	Category      string   `json:"category"`
	Models        []string `json:"models,omitempty"`
	Score         float64  `json:"score"`
	ModelAffinity bool     `json:"modelAffinity"`
}

// RatingRequestDTO represents a helpful/not-helpful vote.
type RatingRequestDTO struct {
	Helpful *bool `json:"helpful"`
}

// StatsDTO represents the usage counters of one FAQ.
type StatsDTO struct {
	ID              string  `json:"id"`
	ViewCount       int64   `json:"viewCount"`
	HelpfulCount    int64   `json:"helpfulCount"`
	NotHelpfulCount int64   `json:"notHelpfulCount"`
	HelpfulRatio    float64 `json:"helpfulRatio"`
}

// Search handles POST /faqs/search.
func (h *FAQHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.WithContext(ctx)

	var reqDTO SearchRequestDTO
	if err := decodeJSON(r, &reqDTO); err != nil {
		writeError(logger, w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if strings.TrimSpace(reqDTO.Query) == "" {
		writeError(logger, w, http.StatusBadRequest, "query is required", "")
		return
	}
	if reqDTO.Threshold != nil && *reqDTO.Threshold < 0 {
		writeError(logger, w, http.StatusBadRequest, "threshold must be non-negative", "")
		return
	}

	query := faq.Query{Text: reqDTO.Query, UserModels: faq.ParseModels(reqDTO.Models)}
	if reqDTO.Category != "" {
		category, err := faq.ParseCategory(reqDTO.Category)
		if err != nil {
			writeError(logger, w, http.StatusBadRequest, "invalid category", err.Error())
			return
		}
		query.Category = &category
	}

	limit := reqDTO.Limit
	if limit <= 0 {
		limit = h.searchLimit
	}

	result, err := h.searcher.Search(ctx, matching.SearchRequest{
		Query:     query,
		Limit:     limit,
		Threshold: reqDTO.Threshold,
	})
	if err != nil {
		writeDomainError(logger, w, err)
		return
	}

	resp := SearchResponseDTO{
		Results:   make([]FAQResultDTO, 0, len(result.Candidates)),
		Escalate:  result.Empty(),
		Threshold: result.Threshold,
		TimedOut:  result.TimedOut,
	}
	for _, c := range result.Candidates {
		resp.Results = append(resp.Results, toFAQResultDTO(c.Entry, c.Score, c.ModelAffinity))
	}

	writeJSON(logger, w, http.StatusOK, resp)
}

// View handles POST /faqs/{faqId}/view.
func (h *FAQHandler) View(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.feedback.RecordView(ctx, chi.URLParam(r, "faqId")); err != nil {
		writeDomainError(h.logger.WithContext(ctx), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Rate handles POST /faqs/{faqId}/rating.
func (h *FAQHandler) Rate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.WithContext(ctx)

	var reqDTO RatingRequestDTO
	if err := decodeJSON(r, &reqDTO); err != nil {
		writeError(logger, w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if reqDTO.Helpful == nil {
		writeError(logger, w, http.StatusBadRequest, "helpful is required", "")
		return
	}

	if err := h.feedback.RecordRating(ctx, chi.URLParam(r, "faqId"), *reqDTO.Helpful); err != nil {
		writeDomainError(logger, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /faqs/{faqId}/stats.
func (h *FAQHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.WithContext(ctx)

	stats, err := h.feedback.Stats(ctx, chi.URLParam(r, "faqId"))
	if err != nil {
		writeDomainError(logger, w, err)
		return
	}

	writeJSON(logger, w, http.StatusOK, StatsDTO{
		ID:              stats.FAQID,
		ViewCount:       stats.ViewCount,
		HelpfulCount:    stats.HelpfulCount,
		NotHelpfulCount: stats.NotHelpfulCount,
		HelpfulRatio:    stats.HelpfulRatio,
	})
}

func toFAQResultDTO(entry faq.Entry, score float64, affinity bool) FAQResultDTO {
	models := make([]string, 0, len(entry.ApplicableModels))
	for _, m := range entry.ApplicableModels {
		models = append(models, string(m))
	}
	return FAQResultDTO{
		ID:            entry.ID,
		Question:      entry.Question,
		Answer:        entry.Answer,
		Category:      string(entry.Category),
		Models:        models,
		Score:         score,
		ModelAffinity: affinity,
	}
}

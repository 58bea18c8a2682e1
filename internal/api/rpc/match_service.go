// Package rpc provides the Connect service implementation of the FAQ engine.
package rpc

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/assist"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/faq"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/matching"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/observability"
)

// Procedure names of the match service.
const (
	MatchServiceName     = "faq.v1.MatchService"
	SearchProcedure      = "/" + MatchServiceName + "/Search"
	AskProcedure         = "/" + MatchServiceName + "/Ask"
	matchServicePrefix   = "/" + MatchServiceName + "/"
	defaultSearchResults = matching.SearchLimit
)

// Searcher runs FAQ searches.
type Searcher interface {
	Search(ctx context.Context, req matching.SearchRequest) (*faq.MatchResult, error)
}

// Asker runs the answer-or-escalate pipeline.
type Asker interface {
	Ask(ctx context.Context, req assist.AskRequest) (*assist.Answer, error)
}

// MatchService implements the Connect match service.
type MatchService struct {
	logger    *observability.Logger
	searcher  Searcher
	assistant Asker
}

// NewMatchService creates a new match service.
func NewMatchService(logger *observability.Logger, searcher Searcher, assistant Asker) *MatchService {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &MatchService{
		logger:    logger.WithOperation("rpc_match"),
		searcher:  searcher,
		assistant: assistant,
	}
}

// SearchRequest represents the Connect search request message.
type SearchRequest struct {
	Query     string   `json:"query"`
	Models    []string `json:"models,omitempty"`
	Category  string   `json:"category,omitempty"`
	Limit     int32    `json:"limit,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// SearchResponse represents the Connect search response message.
type SearchResponse struct {
	Results   []*Result `json:"results"`
	Escalate  bool      `json:"escalate"`
	Threshold float64   `json:"threshold"`
	TimedOut  bool      `json:"timed_out,omitempty"`
}

// Result is one ranked FAQ.
type Result struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Answer        string   `json:"answer"`
	Category      string   `json:"category"`
	Models        []string `json:"models,omitempty"`
	Score         float64  `json:"score"`
	ModelAffinity bool     `json:"model_affinity"`
}

// AskRequest represents the Connect ask request message.
type AskRequest struct {
	Query     string   `json:"query"`
	Models    []string `json:"models,omitempty"`
	UserID    string   `json:"user_id,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
}

// AskResponse represents the Connect ask response message.
type AskResponse struct {
	Status       string  `json:"status"`
	Message      string  `json:"message"`
	FAQ          *Result `json:"faq,omitempty"`
	EscalationID string  `json:"escalation_id,omitempty"`
	Priority     string  `json:"priority,omitempty"`
}

// Handler returns the mount path and HTTP handler serving the service.
func (s *MatchService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(SearchProcedure, connect.NewUnaryHandler(SearchProcedure, s.Search, opts...))
	mux.Handle(AskProcedure, connect.NewUnaryHandler(AskProcedure, s.Ask, opts...))
	return matchServicePrefix, mux
}

// Search handles Connect FAQ searches.
func (s *MatchService) Search(ctx context.Context, req *connect.Request[SearchRequest]) (*connect.Response[SearchResponse], error) {
	msg := req.Msg

	if strings.TrimSpace(msg.Query) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("query is required"))
	}

	query := faq.Query{Text: msg.Query, UserModels: faq.ParseModels(msg.Models)}
	if msg.Category != "" {
		category, err := faq.ParseCategory(msg.Category)
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		query.Category = &category
	}
	if msg.Threshold != nil && *msg.Threshold < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("threshold must be non-negative"))
	}

	limit := int(msg.Limit)
	if limit <= 0 {
		limit = defaultSearchResults
	}

	result, err := s.searcher.Search(ctx, matching.SearchRequest{
		Query:     query,
		Limit:     limit,
		Threshold: msg.Threshold,
	})
	if err != nil {
		return nil, s.toConnectError(err)
	}

	resp := &SearchResponse{
		Results:   make([]*Result, 0, len(result.Candidates)),
		Escalate:  result.Empty(),
		Threshold: result.Threshold,
		TimedOut:  result.TimedOut,
	}
	for _, c := range result.Candidates {
		resp.Results = append(resp.Results, toResult(c.Entry, c.Score, c.ModelAffinity))
	}

	return connect.NewResponse(resp), nil
}

// Ask handles Connect chat queries.
func (s *MatchService) Ask(ctx context.Context, req *connect.Request[AskRequest]) (*connect.Response[AskResponse], error) {
	msg := req.Msg

	if strings.TrimSpace(msg.Query) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("query is required"))
	}

	models := faq.ParseModels(msg.Models)
	answer, err := s.assistant.Ask(ctx, assist.AskRequest{
		Query:     faq.Query{Text: msg.Query, UserModels: models},
		UserID:    msg.UserID,
		SessionID: msg.SessionID,
	})
	if err != nil {
		return nil, s.toConnectError(err)
	}

	resp := &AskResponse{
		Status:       string(answer.Status),
		Message:      answer.Message,
		EscalationID: answer.EscalationID,
		Priority:     string(answer.Priority),
	}
	if answer.FAQ != nil {
		resp.FAQ = toResult(*answer.FAQ, answer.Score, answer.FAQ.MatchesModels(models))
	}
	return connect.NewResponse(resp), nil
}

func (s *MatchService) toConnectError(err error) error {
	switch {
	case errors.Is(err, faq.ErrCorpusUnavailable):
		return connect.NewError(connect.CodeUnavailable, errors.New("service temporarily unavailable"))
	case errors.Is(err, faq.ErrInvalidInput):
		return connect.NewError(connect.CodeInvalidArgument, err)
	default:
		s.logger.Error().Err(err).Msg("Match request failed")
		return connect.NewError(connect.CodeInternal, err)
	}
}

func toResult(entry faq.Entry, score float64, affinity bool) *Result {
	models := make([]string, 0, len(entry.ApplicableModels))
	for _, m := range entry.ApplicableModels {
		models = append(models, string(m))
	}
	return &Result{
		ID:            entry.ID,
		Question:      entry.Question,
		Answer:        entry.Answer,
		Category:      string(entry.Category),
		Models:        models,
		Score:         score,
		ModelAffinity: affinity,
	}
}

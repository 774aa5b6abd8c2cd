package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/microblog/internal/auth"
	"github.com/sakif/microblog/internal/repository"
	"github.com/sakif/microblog/internal/service"
)

// TweetHandler exposes the tweet CRUD surface. Reads are public; writes
// require a bearer token, and the acting user always comes from the
// request context set by the auth middleware.
type TweetHandler struct {
	tweets *service.TweetService
	logger *slog.Logger
}

// NewTweetHandler creates a TweetHandler.
func NewTweetHandler(tweets *service.TweetService, logger *slog.Logger) *TweetHandler {
	return &TweetHandler{tweets: tweets, logger: logger}
}

type createTweetRequest struct {
	Body string `json:"body"`
}

// HandleCreate posts a tweet for the authenticated user.
//
// HTTP: POST /api/tweets (auth required)
func (h *TweetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "valid authentication required"})
		return
	}

	var req createTweetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationErrors(w, map[string]string{"body": "request body must be valid JSON"})
		return
	}

	tweet, err := h.tweets.Create(r.Context(), userID, req.Body)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, tweet)
}

// HandleList returns tweets newest-first.
//
// HTTP: GET /api/tweets?limit=20&offset=0
func (h *TweetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	opts := repository.ListOptions{}
	if v := r.URL.Query().Get("limit"); v != "" {
		opts.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		opts.Offset, _ = strconv.Atoi(v)
	}

	tweets, err := h.tweets.List(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tweets)
}

// HandleGetByID returns a single tweet.
//
// HTTP: GET /api/tweets/{id}
func (h *TweetHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	tweet, err := h.tweets.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tweet)
}

// HandleDelete removes one of the authenticated user's own tweets.
//
// HTTP: DELETE /api/tweets/{id} (auth required)
func (h *TweetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "valid authentication required"})
		return
	}

	if err := h.tweets.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

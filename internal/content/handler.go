package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxJSONBodyBytes = 1 << 20

// NewsStore is implemented by *Repository; declared so handler tests can run
// against an in-memory fake.
type NewsStore interface {
	List(ctx context.Context) ([]News, error)
	Get(ctx context.Context, id string) (News, error)
	Create(ctx context.Context, input NewsInput) (News, error)
	Update(ctx context.Context, id string, input NewsInput) (News, error)
	Delete(ctx context.Context, id string) error
}

type Handler struct {
	store NewsStore
}

func NewHandler(store NewsStore) *Handler {
	return &Handler{store: store}
}

func (h *Handler) ListNews(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.List(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list news")
		return
	}

	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) GetNews(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid news id")
		return
	}

	item, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "news not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to get news")
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) CreateNews(w http.ResponseWriter, r *http.Request) {
	input, ok := parseInput(w, r)
	if !ok {
		return
	}

	item, err := h.store.Create(r.Context(), input)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create news")
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) UpdateNews(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid news id")
		return
	}

	input, ok := parseInput(w, r)
	if !ok {
		return
	}

	item, err := h.store.Update(r.Context(), id, input)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "news not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to update news")
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) DeleteNews(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid news id")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "news not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to delete news")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseInput(w http.ResponseWriter, r *http.Request) (NewsInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input NewsInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return NewsInput{}, false
	}

	input.Title = strings.TrimSpace(input.Title)
	input.Body = strings.TrimSpace(input.Body)
	input.Category = strings.TrimSpace(input.Category)

	if input.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return NewsInput{}, false
	}
	if !utf8.ValidString(input.Title) || len(input.Title) > 200 {
		writeError(w, http.StatusBadRequest, "title is invalid")
		return NewsInput{}, false
	}
	if input.Body == "" {
		writeError(w, http.StatusBadRequest, "body is required")
		return NewsInput{}, false
	}
	if !utf8.ValidString(input.Body) || len(input.Body) > 20000 {
		writeError(w, http.StatusBadRequest, "body is invalid")
		return NewsInput{}, false
	}
	if !utf8.ValidString(input.Category) || len(input.Category) > 50 {
		writeError(w, http.StatusBadRequest, "category is invalid")
		return NewsInput{}, false
	}

	return input, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

package api

import (
	"bytes"
	"context"
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"MovieCurator/internal/domain"
	"MovieCurator/internal/ports"
	"MovieCurator/internal/usecase"
)

const maxBodyBytes = 1 << 16

// Curation is the orchestrator surface the handlers drive.
type Curation interface {
	Curate(ctx context.Context, req usecase.CurateRequest) domain.CurationResult
	Status(ctx context.Context) domain.CurationStatus
	Featured(ctx context.Context, q ports.ReadQuery) ([]domain.FeaturedMovie, error)
}

// CurateBody is the optional JSON body of POST /api/curate.
type CurateBody struct {
	Force    bool `json:"force"`
	MaxPages *int `json:"maxPages" validate:"omitempty,min=1,max=10"`
}

// FeaturedQuery holds the query parameters of GET /api/featured.
type FeaturedQuery struct {
	SortBy string `json:"sortBy" validate:"omitempty,oneof=rank_position curation_score release_date popularity vote_average"`
	Order  string `json:"order" validate:"omitempty,oneof=asc desc"`
	Limit  int    `json:"limit" validate:"omitempty,min=1,max=10"`
}

// FeaturedResponse wraps the featured list.
type FeaturedResponse struct {
	Movies []domain.FeaturedMovie `json:"movies"`
	Count  int                    `json:"count"`
}

// Handler serves the curation endpoints.
type Handler struct {
	curation   Curation
	cronSecret string
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewHandler wires the orchestrator; an empty cronSecret rejects every cron call.
func NewHandler(curation Curation, cronSecret string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &Handler{
		curation:   curation,
		cronSecret: cronSecret,
		validate:   validate,
		logger:     logger.With("component", "api"),
	}
}

// Curate handles POST /api/curate.
func (h *Handler) Curate(w http.ResponseWriter, r *http.Request) {
	var body CurateBody
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, codeBadRequest, "could not read request body")
		return
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			writeError(w, h.logger, http.StatusBadRequest, codeBadRequest, "invalid JSON body: "+err.Error())
			return
		}
	}
	if err := h.validate.Struct(body); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, codeValidation, validationMessage(err))
		return
	}

	req := usecase.CurateRequest{Force: body.Force}
	if body.MaxPages != nil {
		req.MaxPages = *body.MaxPages
	}
	h.runCuration(w, r, req, "api")
}

// CronCurate handles POST /api/cron/curate; the bearer secret is checked before anything else.
func (h *Handler) CronCurate(w http.ResponseWriter, r *http.Request) {
	if !h.authorizedCron(r) {
		writeError(w, h.logger, http.StatusUnauthorized, codeUnauthorized, "invalid or missing cron secret")
		return
	}

	req := usecase.CurateRequest{}
	q := r.URL.Query()
	if raw := q.Get("force"); raw != "" {
		force, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, h.logger, http.StatusBadRequest, codeValidation, "force must be a boolean")
			return
		}
		req.Force = force
	}
	if raw := q.Get("maxPages"); raw != "" {
		pages, err := strconv.Atoi(raw)
		if err != nil || pages < usecase.MinPages || pages > usecase.MaxPages {
			writeError(w, h.logger, http.StatusBadRequest, codeValidation, "maxPages must be between 1 and 10")
			return
		}
		req.MaxPages = pages
	}
	h.runCuration(w, r, req, "cron")
}

// Status handles GET /api/curate/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, h.curation.Status(r.Context()))
}

// Featured handles GET /api/featured.
func (h *Handler) Featured(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := FeaturedQuery{
		SortBy: strings.ToLower(q.Get("sortBy")),
		Order:  strings.ToLower(q.Get("order")),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, h.logger, http.StatusBadRequest, codeValidation, "limit must be an integer")
			return
		}
		query.Limit = limit
		if limit == 0 {
			writeError(w, h.logger, http.StatusBadRequest, codeValidation, "limit must be between 1 and 10")
			return
		}
	}
	if err := h.validate.Struct(query); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, codeValidation, validationMessage(err))
		return
	}

	movies, err := h.curation.Featured(r.Context(), ports.ReadQuery{
		SortBy: query.SortBy,
		Order:  query.Order,
		Limit:  query.Limit,
	})
	if err != nil {
		h.logger.Error("read featured", "request_id", chimiddleware.GetReqID(r.Context()), "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, codeReadFailed, "could not read featured movies")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, FeaturedResponse{Movies: movies, Count: len(movies)})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) runCuration(w http.ResponseWriter, r *http.Request, req usecase.CurateRequest, trigger string) {
	result := h.curation.Curate(r.Context(), req)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	h.logger.Info("curation request served",
		"trigger", trigger,
		"request_id", chimiddleware.GetReqID(r.Context()),
		"run_id", result.RunID,
		"success", result.Success,
		"skipped", result.Skipped,
	)
	writeJSON(w, h.logger, status, result)
}

func (h *Handler) authorizedCron(r *http.Request) bool {
	if h.cronSecret == "" {
		return false
	}
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.cronSecret)) == 1
}

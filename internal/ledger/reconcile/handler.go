package reconcile

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-books/meridian/internal/ledger/shared"
	"github.com/meridian-books/meridian/internal/platform/cache"
	"github.com/meridian-books/meridian/internal/platform/httpx"
)

// Defaults applied when a request leaves tolerance or window unset.
type Defaults struct {
	AmountTolerance decimal.Decimal
	DateWindowDays  int
}

type Handler struct {
	logger   *slog.Logger
	service  *Service
	store    *cache.Store
	defaults Defaults
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, store *cache.Store, defaults Defaults) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		store:    store,
		defaults: defaults,
		validate: validator.New(),
	}
}

type paramsRequest struct {
	AccountID       int64  `json:"account_id" validate:"required"`
	PeriodStart     string `json:"period_start" validate:"required,datetime=2006-01-02"`
	PeriodEnd       string `json:"period_end" validate:"required,datetime=2006-01-02"`
	AmountTolerance string `json:"amount_tolerance"`
	DateWindowDays  *int   `json:"date_window_days"`
}

type applyRequest struct {
	paramsRequest
	MatchIDs []int `json:"match_ids"`
	DryRun   bool  `json:"dry_run"`
}

type unmatchRequest struct {
	paramsRequest
	LineIDs  []int64 `json:"line_ids"`
	SplitIDs []int64 `json:"split_ids"`
	All      bool    `json:"all"`
}

func (h *Handler) Propose(w http.ResponseWriter, r *http.Request) {
	var req paramsRequest
	p, ok := h.decodeParams(w, r, &req, &req)
	if !ok {
		return
	}
	proposals, err := h.service.Propose(r.Context(), p)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"proposals": proposals, "count": len(proposals)})
}

func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	p, ok := h.decodeParams(w, r, &req, &req.paramsRequest)
	if !ok {
		return
	}
	result, err := h.service.Apply(r.Context(), p, req.MatchIDs, req.DryRun)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if !req.DryRun {
		h.invalidateStatus(r, p)
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) Unmatch(w http.ResponseWriter, r *http.Request) {
	var req unmatchRequest
	p, ok := h.decodeParams(w, r, &req, &req.paramsRequest)
	if !ok {
		return
	}
	cleared, err := h.service.Unmatch(r.Context(), p, req.LineIDs, req.SplitIDs, req.All)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.invalidateStatus(r, p)
	httpx.JSON(w, http.StatusOK, map[string]any{"cleared": cleared})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	var req paramsRequest
	p, ok := h.decodeParams(w, r, &req, &req)
	if !ok {
		return
	}
	key := statusKey(p)
	var cached StatusReport
	if err := h.store.Get(r.Context(), key, &cached); err == nil {
		httpx.JSON(w, http.StatusOK, cached)
		return
	} else if !errors.Is(err, cache.ErrMiss) {
		h.logger.Warn("status cache read failed", slog.Any("error", err))
	}
	report, err := h.service.Status(r.Context(), p)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if err := h.store.Set(r.Context(), key, report); err != nil {
		h.logger.Warn("status cache write failed", slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) decodeParams(w http.ResponseWriter, r *http.Request, body any, base *paramsRequest) (Params, bool) {
	if err := httpx.DecodeJSON(r, body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return Params{}, false
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return Params{}, false
	}
	p := Params{
		AccountID:       base.AccountID,
		AmountTolerance: h.defaults.AmountTolerance,
		DateWindowDays:  h.defaults.DateWindowDays,
	}
	p.PeriodStart, _ = time.Parse(time.DateOnly, base.PeriodStart)
	p.PeriodEnd, _ = time.Parse(time.DateOnly, base.PeriodEnd)
	if base.AmountTolerance != "" {
		tol, err := decimal.NewFromString(base.AmountTolerance)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid amount_tolerance")
			return Params{}, false
		}
		p.AmountTolerance = tol
	}
	if base.DateWindowDays != nil {
		p.DateWindowDays = *base.DateWindowDays
	}
	return p, true
}

func (h *Handler) invalidateStatus(r *http.Request, p Params) {
	if err := h.store.Invalidate(r.Context(), statusKey(p)); err != nil {
		h.logger.Warn("status cache invalidate failed", slog.Any("error", err))
	}
}

func statusKey(p Params) string {
	return fmt.Sprintf("reconcile:status:%d:%s:%s", p.AccountID,
		p.PeriodStart.Format(time.DateOnly), p.PeriodEnd.Format(time.DateOnly))
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidArgument):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
	default:
		h.logger.Error("reconcile request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

package statements

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-books/meridian/internal/ledger/shared"
	"github.com/meridian-books/meridian/internal/platform/httpx"
)

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

type importRequest struct {
	AccountID    int64  `json:"account_id" validate:"required"`
	SourcePath   string `json:"source_path" validate:"required"`
	PeriodStart  string `json:"period_start" validate:"omitempty,datetime=2006-01-02"`
	PeriodEnd    string `json:"period_end" validate:"omitempty,datetime=2006-01-02"`
	OpeningBal   string `json:"opening_bal"`
	ClosingBal   string `json:"closing_bal"`
	InferOpening bool   `json:"infer_opening"`

	// CSV shape options; ignored for OFX.
	DateFormat string `json:"date_format"`
	HasHeader  *bool  `json:"has_header"`
	DateCol    string `json:"date_col"`
	AmountCol  string `json:"amount_col"`
	DescCol    string `json:"desc_col"`
	FitidCol   string `json:"fitid_col"`
}

func (h *Handler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	h.runImport(w, r, h.service.ImportCSV)
}

func (h *Handler) ImportOFX(w http.ResponseWriter, r *http.Request) {
	h.runImport(w, r, h.service.ImportOFX)
}

func (h *Handler) runImport(w http.ResponseWriter, r *http.Request, run func(context.Context, ImportInput) (ImportResult, error)) {
	var req importRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input, err := req.toInput()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := run(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"statement_id": result.StatementID,
		"inserted":     result.Inserted,
		"batch_id":     result.BatchID.String(),
	})
}

func (req importRequest) toInput() (ImportInput, error) {
	input := ImportInput{
		AccountID:    req.AccountID,
		SourcePath:   req.SourcePath,
		InferOpening: req.InferOpening,
		CSV: CSVOptions{
			DateFormat: req.DateFormat,
			HasHeader:  req.HasHeader == nil || *req.HasHeader,
			DateCol:    req.DateCol,
			AmountCol:  req.AmountCol,
			DescCol:    req.DescCol,
			FitidCol:   req.FitidCol,
		},
	}
	if req.PeriodStart != "" {
		d, _ := time.Parse(time.DateOnly, req.PeriodStart)
		input.PeriodStart = &d
	}
	if req.PeriodEnd != "" {
		d, _ := time.Parse(time.DateOnly, req.PeriodEnd)
		input.PeriodEnd = &d
	}
	if req.OpeningBal != "" {
		d, err := decimal.NewFromString(req.OpeningBal)
		if err != nil {
			return ImportInput{}, err
		}
		input.OpeningBal = &d
	}
	if req.ClosingBal != "" {
		d, err := decimal.NewFromString(req.ClosingBal)
		if err != nil {
			return ImportInput{}, err
		}
		input.ClosingBal = &d
	}
	return input, nil
}

func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid statement id")
		return
	}
	stmt, err := h.service.GetStatement(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stmt)
}

func (h *Handler) ListStatements(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(r.URL.Query().Get("account_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "account_id query parameter required")
		return
	}
	out, err := h.service.ListStatements(r.Context(), accountID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) ListLines(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid statement id")
		return
	}
	lines, err := h.service.ListLines(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lines)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrPeriodRequired), errors.Is(err, shared.ErrBalanceRequired):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
	case errors.Is(err, shared.ErrStatementNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicateStatement), errors.Is(err, shared.ErrDuplicateFitid):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("statement request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

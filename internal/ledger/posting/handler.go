package posting

import (
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

type postEntryRequest struct {
	AccountID int64  `json:"account_id" validate:"required"`
	Amount    string `json:"amount" validate:"required"`
	Memo      string `json:"memo"`
}

type postRequest struct {
	Date        string             `json:"date" validate:"required,datetime=2006-01-02"`
	Description string             `json:"description"`
	Reference   string             `json:"reference"`
	PartyID     *int64             `json:"party_id"`
	Entries     []postEntryRequest `json:"entries" validate:"required,min=2,dive"`
}

type reverseRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
	Memo string `json:"memo"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, _ := time.Parse(time.DateOnly, req.Date)
	input := PostInput{
		Date:        date,
		Description: req.Description,
		Reference:   req.Reference,
		PartyID:     req.PartyID,
	}
	for _, e := range req.Entries {
		amount, err := decimal.NewFromString(e.Amount)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unparseable amount "+e.Amount)
			return
		}
		input.Entries = append(input.Entries, EntryInput{AccountID: e.AccountID, Amount: amount, Memo: e.Memo})
	}
	txID, err := h.service.Post(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"transaction_id": txID})
}

func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid transaction id")
		return
	}
	var req reverseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, _ := time.Parse(time.DateOnly, req.Date)
	revID, err := h.service.Reverse(r.Context(), ReverseInput{OriginalTxID: id, Date: date, Memo: req.Memo})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"reversing_transaction_id": revID})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid transaction id")
		return
	}
	txn, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, txn)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	txns, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, txns)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrUnbalanced),
		errors.Is(err, shared.ErrTooFewEntries),
		errors.Is(err, shared.ErrNoSplits),
		errors.Is(err, shared.ErrInvalidArgument):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
	case errors.Is(err, shared.ErrTransactionNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicateSplit):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("posting request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

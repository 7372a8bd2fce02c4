package checks

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-books/meridian/internal/ledger/posting"
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

type createCheckRequest struct {
	AccountID int64  `json:"account_id" validate:"required"`
	Number    string `json:"number" validate:"required"`
	IssueDate string `json:"issue_date" validate:"required,datetime=2006-01-02"`
	Payee     string `json:"payee"`
	Amount    string `json:"amount" validate:"required"`
	Memo      string `json:"memo"`
	Entries   []struct {
		AccountID int64  `json:"account_id" validate:"required"`
		Amount    string `json:"amount" validate:"required"`
		Memo      string `json:"memo"`
	} `json:"entries" validate:"omitempty,min=2,dive"`
}

type voidCheckRequest struct {
	Date           string `json:"date" validate:"required,datetime=2006-01-02"`
	Memo           string `json:"memo"`
	CreateReversal *bool  `json:"create_reversal"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCheckRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unparseable amount "+req.Amount)
		return
	}
	issueDate, _ := time.Parse(time.DateOnly, req.IssueDate)
	input := CreateCheckInput{
		AccountID: req.AccountID,
		Number:    req.Number,
		IssueDate: issueDate,
		Payee:     req.Payee,
		Amount:    amount,
		Memo:      req.Memo,
	}
	for _, e := range req.Entries {
		entryAmount, err := decimal.NewFromString(e.Amount)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unparseable amount "+e.Amount)
			return
		}
		input.Entries = append(input.Entries, posting.EntryInput{AccountID: e.AccountID, Amount: entryAmount, Memo: e.Memo})
	}
	chk, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, chk)
}

func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid check id")
		return
	}
	var req voidCheckRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, _ := time.Parse(time.DateOnly, req.Date)
	createReversal := true
	if req.CreateReversal != nil {
		createReversal = *req.CreateReversal
	}
	if err := h.service.Void(r.Context(), VoidCheckInput{
		CheckID:        id,
		Date:           date,
		Memo:           req.Memo,
		CreateReversal: createReversal,
	}); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": CheckStatusVoid})
}

func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid check id")
		return
	}
	if err := h.service.Clear(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": CheckStatusCleared})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid check id")
		return
	}
	chk, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, chk)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(r.URL.Query().Get("account_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "account_id query parameter required")
		return
	}
	out, err := h.service.List(r.Context(), accountID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrCheckNotFound), errors.Is(err, shared.ErrTransactionNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrInvalidStatus),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrUnbalanced),
		errors.Is(err, shared.ErrNoSplits):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
	case errors.Is(err, shared.ErrDuplicateSplit):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("check request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

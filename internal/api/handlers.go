package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/xtrntr/cadran/internal/auction"
	"github.com/xtrntr/cadran/internal/models"
)

// Handler contains dependencies for HTTP handlers
type Handler struct {
	Registry *auction.Registry
	logger   *slog.Logger
}

// NewHandler creates a new handler
func NewHandler(registry *auction.Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Registry: registry, logger: logger.With(slog.String("caller", "Handler"))}
}

// Routes mounts the lot API on r
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/lots", h.ListLots)
		r.Post("/lots", h.CreateLot)
		r.Get("/lots/{id}", h.GetLot)
		r.Post("/lots/{id}/start", h.StartLot)
		r.Post("/lots/{id}/buy", h.BuyLot)
		r.Post("/lots/{id}/payment/confirm", h.ConfirmPayment)
		r.Post("/lots/{id}/abort", h.AbortLot)

		// paths used by the first kiosk clients
		r.Post("/start/{id}", h.StartLot)
		r.Post("/bid/{id}", h.Bid)
	})
}

// ListLots returns every lot, oldest first
func (h *Handler) ListLots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Registry.Snapshots())
}

// CreateLot registers a new INACTIVE lot
func (h *Handler) CreateLot(w http.ResponseWriter, r *http.Request) {
	var req models.LotDescriptor
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Product = strings.TrimSpace(req.Product)
	if req.Product == "" {
		writeError(w, http.StatusBadRequest, "Product required")
		return
	}

	id, err := h.Registry.Create(req)
	if err != nil {
		h.fail(w, err)
		return
	}
	lot, err := h.Registry.Snapshot(id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lot)
}

// GetLot returns one lot
func (h *Handler) GetLot(w http.ResponseWriter, r *http.Request) {
	lot, err := h.Registry.Snapshot(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lot)
}

// StartLot begins or restarts the descending clock of a lot
func (h *Handler) StartLot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Registry.Start(id); err != nil {
		h.fail(w, err)
		return
	}
	h.respondLot(w, id)
}

// BuyLot claims a lot at its current price. The buyer defaults to the client address.
func (h *Handler) BuyLot(w http.ResponseWriter, r *http.Request) {
	h.buy(w, r, "")
}

// Bid is BuyLot for kiosks that post no body; their sales settle in cash unless told otherwise
func (h *Handler) Bid(w http.ResponseWriter, r *http.Request) {
	h.buy(w, r, models.MethodCash)
}

func (h *Handler) buy(w http.ResponseWriter, r *http.Request, defaultMethod models.PaymentMethod) {
	var req struct {
		Buyer  string               `json:"buyer"`
		Method models.PaymentMethod `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	buyer := lo.CoalesceOrEmpty(strings.TrimSpace(req.Buyer), clientAddr(r))
	method := lo.CoalesceOrEmpty(req.Method, defaultMethod)

	id := chi.URLParam(r, "id")
	payment, err := h.Registry.Buy(id, buyer, method)
	if err != nil {
		h.fail(w, err)
		return
	}
	lot, err := h.Registry.Snapshot(id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"lot":     lot,
		"payment": payment,
	})
}

// ConfirmPayment settles the pending payment of a sold lot
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Registry.ConfirmPayment(id); err != nil {
		h.fail(w, err)
		return
	}
	h.respondLot(w, id)
}

// AbortLot withdraws an active lot
func (h *Handler) AbortLot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Registry.Abort(id); err != nil {
		h.fail(w, err)
		return
	}
	h.respondLot(w, id)
}

func (h *Handler) respondLot(w http.ResponseWriter, id string) {
	lot, err := h.Registry.Snapshot(id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lot)
}

// fail maps registry errors onto HTTP statuses
func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auction.ErrInvalidLotConfig),
		errors.Is(err, auction.ErrInvalidPaymentMethod),
		errors.Is(err, auction.ErrMissingBuyer):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auction.ErrLotNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auction.ErrAlreadyActive),
		errors.Is(err, auction.ErrLotNotBuyable),
		errors.Is(err, auction.ErrLotNotActive),
		errors.Is(err, auction.ErrNoPendingPayment),
		errors.Is(err, auction.ErrLotExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auction.ErrRegistryClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error("request failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Internal error")
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

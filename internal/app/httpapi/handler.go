// Package httpapi exposes the option layer over REST plus a websocket event
// feed. It is the host boundary: it authenticates the sender, decodes the
// request surface and maps engine failures to HTTP statuses.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/covenant-network/option-layer/internal/app/auth"
	"github.com/covenant-network/option-layer/internal/app/domain/funds"
	"github.com/covenant-network/option-layer/internal/app/engine"
	"github.com/covenant-network/option-layer/internal/app/metrics"
	optionsvc "github.com/covenant-network/option-layer/internal/app/services/option"
	"github.com/covenant-network/option-layer/internal/app/storage"
	"github.com/covenant-network/option-layer/pkg/logger"
)

// senderHeader carries the authenticated caller identity, set by the auth
// middleware (or by the client directly in unauthenticated dev mode).
const senderHeader = "X-Sender"

// Handler bundles the HTTP endpoints for the option service.
type Handler struct {
	options *optionsvc.Service
	hub     *Hub
	log     *logger.Logger
}

// Config assembles the full HTTP surface.
type Config struct {
	Options *optionsvc.Service
	Hub     *Hub
	Auth    *auth.Manager // nil disables authentication (dev mode)
	Limiter *SenderLimiter
	Logger  *logger.Logger
}

// NewHandler returns the routed, instrumented HTTP handler.
func NewHandler(cfg Config) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &Handler{options: cfg.Options, hub: cfg.Hub, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	if cfg.Auth != nil {
		r.HandleFunc("/login", loginHandler(cfg.Auth)).Methods(http.MethodPost)
	}
	if cfg.Hub != nil {
		r.HandleFunc("/events", cfg.Hub.Serve)
	}

	r.HandleFunc("/options", h.createOption).Methods(http.MethodPost)
	r.HandleFunc("/options", h.listOptions).Methods(http.MethodGet)
	r.HandleFunc("/options/{id}", h.getOption).Methods(http.MethodGet)
	r.HandleFunc("/options/{id}/transfer", h.transferOption).Methods(http.MethodPost)
	r.HandleFunc("/options/{id}/execute", h.executeOption).Methods(http.MethodPost)
	r.HandleFunc("/options/{id}/burn", h.burnOption).Methods(http.MethodPost)

	var handler http.Handler = r
	handler = wrapWithRateLimit(handler, cfg.Limiter)
	handler = wrapWithAuth(handler, cfg.Auth)
	handler = metrics.InstrumentHandler(handler)
	return handler
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "option-layer"})
}

func (h *Handler) createOption(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Collateral   funds.Coins `json:"collateral"`
		CounterOffer funds.Coins `json:"counter_offer"`
		Expires      uint64      `json:"expires"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id, st, err := h.options.Create(r.Context(), sender(r), payload.Collateral, payload.CounterOffer, payload.Expires)
	if err != nil {
		h.writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"id": id, "state": st})
}

func (h *Handler) listOptions(w http.ResponseWriter, r *http.Request) {
	records, err := h.options.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) getOption(w http.ResponseWriter, r *http.Request) {
	st, err := h.options.Config(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) transferOption(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Recipient string `json:"recipient"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	st, err := h.options.Transfer(r.Context(), mux.Vars(r)["id"], sender(r), payload.Recipient)
	if err != nil {
		h.writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) executeOption(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Funds funds.Coins `json:"funds"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := h.options.Execute(r.Context(), mux.Vars(r)["id"], sender(r), payload.Funds)
	if err != nil {
		h.writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) burnOption(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Funds funds.Coins `json:"funds"`
	}
	// burn takes no parameters; an empty body is fine
	if err := decodeJSON(r.Body, &payload); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := h.options.Burn(r.Context(), mux.Vars(r)["id"], sender(r), payload.Funds)
	if err != nil {
		h.writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// writeTransitionError maps engine and storage failures to HTTP statuses.
func (h *Handler) writeTransitionError(w http.ResponseWriter, err error) {
	var mismatch *engine.FundMismatchError
	if errors.As(err, &mismatch) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":    mismatch.Error(),
			"expected": mismatch.Expected,
		})
		return
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, engine.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, engine.ErrExpired), errors.Is(err, engine.ErrNotYetExpired):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, engine.ErrInvalidExpiry), errors.Is(err, engine.ErrUnexpectedFunds),
		errors.Is(err, engine.ErrInvalidRecipient),
		errors.Is(err, storage.ErrExists), errors.Is(err, storage.ErrRetired):
		writeError(w, http.StatusBadRequest, err)
	default:
		h.log.WithError(err).Error("transition failed")
		writeError(w, http.StatusInternalServerError, err)
	}
}

func sender(r *http.Request) string {
	return r.Header.Get(senderHeader)
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

package server

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/arjfabian/hostpulse/internal/metrics"
)

const greeting = "Hello, world!"

// Exposer renders the current metrics.
type Exposer interface {
	Serialize() ([]byte, error)
}

type handlers struct {
	metrics Exposer
	log     *zap.Logger
}

func (h *handlers) root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(greeting))
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *handlers) exposeMetrics(w http.ResponseWriter, _ *http.Request) {
	body, err := h.metrics.Serialize()
	if err != nil {
		h.log.Error("Serializing metrics", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", metrics.ContentType)
	_, _ = w.Write(body)
}

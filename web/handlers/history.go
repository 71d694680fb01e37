package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"sensorboard/drivers"
)

// NewHistoryRouter serves a history source on GET /history.
func NewHistoryRouter(source drivers.HistorySource, log *zap.SugaredLogger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/history", HistoryHandler(source, log))
	return r
}

func HistoryHandler(source drivers.HistorySource, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body, err := source.History()
		if err != nil {
			log.Warnf("couldn't read history: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		_, _ = w.Write(body)
	}
}

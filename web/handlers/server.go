package handlers

import (
	"html/template"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	ds "github.com/starfederation/datastar-go/datastar"
	"go.uber.org/zap"

	"sensorboard/events"
	"sensorboard/metrics"
	"sensorboard/web"
)

type Renderer interface {
	Templates() *template.Template
	Data() map[string]interface{}
	Routes(r chi.Router)
	Sync(sse *ds.ServerSentEventGenerator, seen map[string]bool) error
	Patch(sse *ds.ServerSentEventGenerator, event *events.Event, seen map[string]bool) error
}

type Server struct {
	renderer Renderer
	eventHub *events.EventHub
	handler  *chi.Mux
	log      *zap.SugaredLogger
}

func NewServer(renderer Renderer, eventHub *events.EventHub, m *metrics.Metrics, log *zap.SugaredLogger) *Server {
	s := &Server{
		renderer: renderer,
		eventHub: eventHub,
		log:      log,
	}

	static, err := fs.Sub(web.Static, "static")
	if err != nil {
		// The embed directive guarantees the directory exists.
		panic(err)
	}

	handler := chi.NewRouter()
	handler.Use(middleware.Recoverer)
	handler.Get("/", s.IndexHandler)
	handler.Get("/updates", s.UpdatesHandler)
	handler.Handle("/metrics", m.Handler())
	handler.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	renderer.Routes(handler)

	s.handler = handler

	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start(addr string) error {
	s.log.Infof("listening on %s …", addr)
	return http.ListenAndServe(addr, s.handler)
}

// IndexHandler is the main entrypoint for the UI
func (s *Server) IndexHandler(w http.ResponseWriter, _ *http.Request) {
	err := s.renderer.Templates().ExecuteTemplate(w, "index", s.renderer.Data())
	if err != nil {
		s.log.Errorf("couldn't execute template for index %s", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// UpdatesHandler streams chart changes to one page until it goes away.
func (s *Server) UpdatesHandler(w http.ResponseWriter, r *http.Request) {
	// Subscribe before the initial sync so nothing that happens in between is missed.
	subscription, updates, cancel := s.eventHub.Subscribe()
	defer cancel()

	sse := ds.NewSSE(w, r)
	seen := map[string]bool{}
	if err := s.renderer.Sync(sse, seen); err != nil {
		s.log.Warnf("error syncing charts: %s", err)
		return
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-updates:
			if !ok {
				return
			}
			if err := s.renderer.Patch(sse, event, seen); err != nil {
				s.log.Warnf("error patching chart %s: %s", event.ChannelID, err)
				return
			}
			// Events were dropped while this client lagged, so patches alone can't be trusted to be complete.
			if s.eventHub.Lagged(subscription) {
				if err := s.renderer.Sync(sse, seen); err != nil {
					s.log.Warnf("error resyncing charts: %s", err)
					return
				}
			}
		}
	}
}

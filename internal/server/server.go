package server

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fitstash/reelbot/internal/chat"
	"github.com/fitstash/reelbot/internal/telegram"
)

// Dispatcher consumes one inbound conversation event.
type Dispatcher interface {
	HandleEvent(ev chat.Event) error
}

// Server receives webhook updates over HTTP and hands them to the
// dispatcher. The webhook path embeds a secret (the bot token) so that
// only the messaging platform can reach it.
type Server struct {
	secret     string
	dispatcher Dispatcher
	router     chi.Router
}

func New(secret string, dispatcher Dispatcher) *Server {
	s := &Server{secret: secret, dispatcher: dispatcher}
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Post("/webhook/{secret}", s.handleWebhook)
	s.router = r
	return s
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) ListenAndServe(addr string) error {
	log.Printf("[server] listening on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "secret") != s.secret {
		http.NotFound(w, r)
		return
	}
	update, ok, err := telegram.DecodeUpdate(r.Body)
	if err != nil {
		log.Printf("[server] decode update failed: %v", err)
		// Respond 200 anyway so the platform does not redeliver a
		// payload we will never be able to parse.
		w.WriteHeader(http.StatusOK)
		return
	}
	if ok {
		if err := s.dispatcher.HandleEvent(update.Event); err != nil {
			log.Printf("[server] handle update %d failed: %v", update.UpdateID, err)
		}
	}
	w.WriteHeader(http.StatusOK)
}

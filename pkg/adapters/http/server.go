package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultEventBuffer is the per-client SSE buffer. A full buffer applies
// backpressure to the scheduler until the client catches up or disconnects.
const DefaultEventBuffer = 64

// Engine is the slice of the weft engine the HTTP surface reads from.
type Engine interface {
	Observe(ctx context.Context, ch domain.Name, fn func(v domain.Value) error) error
	Results(ctx context.Context) ([]weft.Result, error)
	Subscribe(buffer int) (<-chan domain.ProcessEvent, func())
}

// Server serves read-only views of a running engine.
type Server struct {
	Engine   Engine
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// HandlerOption configures the handler.
type HandlerOption func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(s *Server) {
		s.Logger = logger
	}
}

// WithGatherer exposes gatherer on /metrics.
func WithGatherer(gatherer prometheus.Gatherer) HandlerOption {
	return func(s *Server) {
		s.Gatherer = gatherer
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...HandlerOption) http.Handler {
	server := &Server{
		Engine: engine,
		Logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Get("/healthz", server.GetHealth)
	r.Get("/info", server.GetInfo)
	if server.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(server.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/channels/{kind}/*", server.PeekChannel)
	r.Get("/processes", server.ListProcesses)
	r.Get("/events", server.SubscribeEvents)

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("Response encode failed", "err", err)
	}
}

// GetHealth handles the GET /healthz request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "weft-http",
		"version": weft.Version,
	})
}

// ChannelView is the body of a channel peek.
type ChannelView struct {
	Channel string         `json:"channel"`
	Value   json.RawMessage `json:"value"`
}

// PeekChannel handles GET /channels/{kind}/{label}. It returns the oldest
// value of the channel without removing it.
func (s *Server) PeekChannel(w http.ResponseWriter, r *http.Request) {
	kind, err := strconv.ParseUint(chi.URLParam(r, "kind"), 10, 8)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid kind: %v", err), http.StatusBadRequest)
		return
	}
	name := domain.NewName(uint8(kind), chi.URLParam(r, "*"))

	// Encode under the region; a process value is only stable there.
	var data []byte
	var encodeErr error
	err = s.Engine.Observe(r.Context(), name, func(v domain.Value) error {
		data, encodeErr = domain.MarshalValue(v)
		return nil
	})
	switch {
	case errors.Is(err, domain.ErrEmpty):
		http.Error(w, fmt.Sprintf("Channel %s is empty", name), http.StatusNotFound)
		return
	case errors.Is(err, domain.ErrMalformedChannel), errors.Is(err, domain.ErrKindMismatch):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, fmt.Sprintf("Peek error: %v", err), http.StatusInternalServerError)
		s.Logger.Error("Peek failed", "channel", name, "err", err)
		return
	case encodeErr != nil:
		http.Error(w, fmt.Sprintf("Encode error: %v", encodeErr), http.StatusInternalServerError)
		s.Logger.Error("Peek encode failed", "channel", name, "err", encodeErr)
		return
	}
	s.writeJSON(w, http.StatusOK, ChannelView{Channel: name.String(), Value: data})
}

// ProcessView is one entry of the process listing.
type ProcessView struct {
	Channel string          `json:"channel"`
	ID      string          `json:"id"`
	State   string          `json:"state"`
	Value   *domain.Encoded `json:"value,omitempty"`
	Failure string          `json:"failure,omitempty"`
}

// ListProcesses handles GET /processes.
func (s *Server) ListProcesses(w http.ResponseWriter, r *http.Request) {
	results, err := s.Engine.Results(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("Results error: %v", err), http.StatusInternalServerError)
		s.Logger.Error("Results failed", "err", err)
		return
	}

	views := make([]ProcessView, 0, len(results))
	for _, res := range results {
		view := ProcessView{
			Channel: res.Channel.String(),
			ID:      res.ID.String(),
			State:   res.State.String(),
			Failure: res.Failure,
		}
		if res.State == domain.StateCompleted {
			view.Value = &domain.Encoded{V: res.Value}
		}
		views = append(views, view)
	}
	s.writeJSON(w, http.StatusOK, views)
}

// EventView is the data payload of one SSE message.
type EventView struct {
	Type      domain.EventType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	ProcessID string           `json:"process_id"`
	Channel   string           `json:"channel"`
	Value     *domain.Encoded  `json:"value,omitempty"`
	Failure   string           `json:"failure,omitempty"`
}

func newEventView(ev domain.ProcessEvent) EventView {
	view := EventView{
		Type:      ev.Type,
		Timestamp: ev.Timestamp,
		ProcessID: ev.ProcessID.String(),
		Channel:   ev.Channel.String(),
		Failure:   ev.Failure,
	}
	if ev.Value != nil {
		view.Value = &domain.Encoded{V: ev.Value}
	}
	return view
}

// SubscribeEvents handles the GET /events request (SSE). Each terminal
// process transition is sent as one message named after its event type.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.Logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, cancel := s.Engine.Subscribe(DefaultEventBuffer)
	defer cancel()
	s.Logger.Info("SSE: Client subscribed", "remote", r.RemoteAddr)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Info("SSE: Client disconnected", "remote", r.RemoteAddr)
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(newEventView(ev))
			if err != nil {
				s.Logger.Warn("SSE: Dropping unencodable event", "process", ev.ProcessID, "err", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}

// Package remoteproxy is the optional component 9 of the engine: a
// websocket relay that bridges internal Bus events to the external wire
// schema (§6). Grounded on the teacher's internal/handlers/websocket.go
// (per-connection mutex-guarded client registry, gorilla/websocket
// upgrader, message-type envelope), narrowed to the four event kinds the
// Bus actually emits instead of the teacher's crawl_progress/app_status/
// log/auth/status surface.
package remoteproxy

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ingestor/internal/interfaces"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wireMessage is the `{type, payload}` envelope every relayed event uses.
type wireMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// jobStatusWire is the `job-status-change` payload shape (§6).
type jobStatusWire struct {
	ID         string     `json:"id"`
	Library    string     `json:"library"`
	Version    *string    `json:"version"`
	Status     string     `json:"status"`
	Error      *wireError `json:"error"`
	CreatedAt  string     `json:"createdAt"`
	StartedAt  *string    `json:"startedAt"`
	FinishedAt *string    `json:"finishedAt"`
	SourceURL  *string    `json:"sourceUrl"`
}

type wireError struct {
	Message string `json:"message"`
}

// jobProgressWire is the `job-progress` payload shape (§6).
type jobProgressWire struct {
	ID       string              `json:"id"`
	Library  string              `json:"library"`
	Version  *string             `json:"version"`
	Progress jobProgressFieldSet `json:"progress"`
}

type jobProgressFieldSet struct {
	PagesScraped    int    `json:"pagesScraped"`
	TotalPages      int    `json:"totalPages"`
	TotalDiscovered int    `json:"totalDiscovered"`
	CurrentURL      string `json:"currentUrl"`
	Depth           int    `json:"depth"`
	MaxDepth        int    `json:"maxDepth"`
}

// Relay fans Bus events out to every connected websocket client.
type Relay struct {
	logger  arbor.ILogger
	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex
}

// New creates a Relay and subscribes it to bus. The subscriptions are
// never removed by the Relay; Close only drops connected clients.
func New(bus interfaces.EventBus, logger arbor.ILogger) (*Relay, error) {
	r := &Relay{
		logger:  logger,
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}

	if _, err := bus.On(interfaces.EventJobStatusChange, r.onJobStatusChange); err != nil {
		return nil, err
	}
	if _, err := bus.On(interfaces.EventJobProgress, r.onJobProgress); err != nil {
		return nil, err
	}
	if _, err := bus.On(interfaces.EventJobListChange, r.onEmptyEvent("job-list-change")); err != nil {
		return nil, err
	}
	if _, err := bus.On(interfaces.EventLibraryChange, r.onEmptyEvent("library-change")); err != nil {
		return nil, err
	}

	return r, nil
}

// HandleWebSocket upgrades an HTTP request to a websocket connection and
// registers it as a relay client until it disconnects.
func (r *Relay) HandleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error().Err(err).Msg("remoteproxy: failed to upgrade websocket connection")
		return
	}

	r.mu.Lock()
	r.clients[conn] = &sync.Mutex{}
	clientCount := len(r.clients)
	r.mu.Unlock()
	r.logger.Info().Int("clients", clientCount).Msg("remoteproxy: client connected")

	defer func() {
		r.mu.Lock()
		delete(r.clients, conn)
		remaining := len(r.clients)
		r.mu.Unlock()
		conn.Close()
		r.logger.Info().Int("clients", remaining).Msg("remoteproxy: client disconnected")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Close drops every connected client. It does not unsubscribe from the
// bus; callers that want to stop relaying should let the Relay (and its
// subscriptions) be garbage collected with the bus itself.
func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for conn := range r.clients {
		conn.Close()
	}
	r.clients = make(map[*websocket.Conn]*sync.Mutex)
}

func (r *Relay) broadcast(msgType string, payload interface{}) {
	data, err := json.Marshal(wireMessage{Type: msgType, Payload: payload})
	if err != nil {
		r.logger.Error().Err(err).Str("type", msgType).Msg("remoteproxy: failed to marshal event")
		return
	}

	r.mu.RLock()
	targets := make([]*websocket.Conn, 0, len(r.clients))
	mutexes := make([]*sync.Mutex, 0, len(r.clients))
	for conn, mu := range r.clients {
		targets = append(targets, conn)
		mutexes = append(mutexes, mu)
	}
	r.mu.RUnlock()

	for i, conn := range targets {
		mutexes[i].Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutexes[i].Unlock()
		if err != nil {
			r.logger.Warn().Err(err).Str("type", msgType).Msg("remoteproxy: failed to write to client")
		}
	}
}

func (r *Relay) onJobStatusChange(ctx context.Context, event interfaces.Event) error {
	payload, ok := event.Payload.(interfaces.JobStatusPayload)
	if !ok || payload.Job == nil {
		return nil
	}
	job := payload.Job

	wire := jobStatusWire{
		ID:        job.ID,
		Library:   job.Library,
		Status:    string(job.Status),
		CreatedAt: job.CreatedAt.UTC().Format(time.RFC3339),
	}
	if job.Version != "" {
		v := job.Version
		wire.Version = &v
	}
	if job.SourceURL != "" {
		u := job.SourceURL
		wire.SourceURL = &u
	}
	if job.StartedAt != nil {
		s := job.StartedAt.UTC().Format(time.RFC3339)
		wire.StartedAt = &s
	}
	if job.FinishedAt != nil {
		f := job.FinishedAt.UTC().Format(time.RFC3339)
		wire.FinishedAt = &f
	}
	if job.Error != nil {
		wire.Error = &wireError{Message: job.Error.Message}
	}

	r.broadcast("job-status-change", wire)
	return nil
}

func (r *Relay) onJobProgress(ctx context.Context, event interfaces.Event) error {
	payload, ok := event.Payload.(interfaces.JobProgressPayload)
	if !ok || payload.Job == nil || payload.Progress == nil {
		return nil
	}
	job := payload.Job
	progress := payload.Progress

	wire := jobProgressWire{
		ID:      job.ID,
		Library: job.Library,
		Progress: jobProgressFieldSet{
			PagesScraped:    progress.PagesScraped,
			TotalPages:      progress.TotalPages,
			TotalDiscovered: progress.TotalDiscovered,
			CurrentURL:      progress.CurrentURL,
			Depth:           progress.Depth,
			MaxDepth:        progress.MaxDepth,
		},
	}
	if job.Version != "" {
		v := job.Version
		wire.Version = &v
	}

	r.broadcast("job-progress", wire)
	return nil
}

func (r *Relay) onEmptyEvent(wireType string) interfaces.Handler {
	return func(ctx context.Context, event interfaces.Event) error {
		r.broadcast(wireType, struct{}{})
		return nil
	}
}

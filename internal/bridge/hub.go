// Package bridge connects the engine to browser clients over a websocket.
// The browser owns the microphone, the speech synthesizer and the router;
// the hub exposes them as capture, output and navigation services.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"voice-command-service/internal/observability/logging"
	"voice-command-service/internal/observability/metrics"
	"voice-command-service/internal/ports"
)

// ErrNoClients is returned when an operation needs a connected browser.
var ErrNoClients = errors.New("no bridge clients connected")

// AudioSink receives raw audio frames sent as binary websocket messages,
// regardless of which service captures.
type AudioSink interface {
	SendAudio(ctx context.Context, audio []byte) error
}

// Handlers are called for browser requests that are not capture events.
type Handlers struct {
	OnSessionStart func()
	OnSessionStop  func()
	OnSpeechEnded  func()
}

// Config holds websocket settings.
type Config struct {
	WriteTimeout time.Duration
	// ReadLimit bounds a single inbound message, including audio frames.
	ReadLimit int64
	// AllowedOrigins restricts the Origin header. Empty allows all.
	AllowedOrigins []string
}

// DefaultConfig returns the default bridge configuration.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 5 * time.Second,
		ReadLimit:    1 << 20,
	}
}

type client struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
	log     zerolog.Logger
}

func (c *client) write(msg Message, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if timeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	return c.conn.WriteJSON(msg)
}

// Hub tracks connected browsers and implements ports.CaptureService,
// ports.OutputService and ports.NavigationService on top of them.
type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	log      zerolog.Logger
	seq      atomic.Uint64

	mu        sync.RWMutex
	clients   map[*client]struct{}
	listener  ports.CaptureListener
	handlers  Handlers
	audio     AudioSink
	voices    []ports.Voice
	capturing bool
}

// New creates a hub.
func New(cfg Config, m *metrics.Metrics) *Hub {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	h := &Hub{
		cfg:     cfg,
		metrics: m,
		log:     logging.WithComponent("bridge"),
		clients: make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range h.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// SetHandlers registers the session request handlers.
func (h *Hub) SetHandlers(handlers Handlers) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = handlers
}

// SetAudioSink registers the receiver of binary audio frames.
func (h *Hub) SetAudioSink(sink AudioSink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.audio = sink
}

// Clients returns the number of connected browsers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and serves the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("remoteAddr", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	id := fmt.Sprintf("client-%d", h.seq.Add(1))
	c := &client{
		id:   id,
		conn: conn,
		log:  logging.WithClient(id, r.RemoteAddr),
	}
	if h.cfg.ReadLimit > 0 {
		conn.SetReadLimit(h.cfg.ReadLimit)
	}
	h.register(c)
	defer h.unregister(c)

	h.readLoop(r.Context(), c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.BridgeClients.Set(float64(n))
	c.log.Info().Int("clients", n).Msg("Bridge client connected")
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.conn.Close()
	h.metrics.BridgeClients.Set(float64(n))
	c.log.Info().Int("clients", n).Msg("Bridge client disconnected")
}

func (h *Hub) readLoop(ctx context.Context, c *client) {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn().Err(err).Msg("Bridge read failed")
			}
			return
		}

		if kind == websocket.BinaryMessage {
			h.handleAudio(ctx, c, data)
			continue
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn().Err(err).Msg("Invalid bridge message")
			continue
		}
		h.handle(c, msg)
	}
}

func (h *Hub) handleAudio(ctx context.Context, c *client, frame []byte) {
	h.mu.RLock()
	sink := h.audio
	h.mu.RUnlock()

	// The sink owns the recognition stream and rejects frames outside one.
	if sink == nil {
		return
	}
	if err := sink.SendAudio(ctx, frame); err != nil {
		c.log.Debug().Err(err).Int("bytes", len(frame)).Msg("Audio frame rejected")
	}
}

// handle dispatches one inbound message. Listener and handler calls are made
// without holding the hub lock.
func (h *Hub) handle(c *client, msg Message) {
	h.mu.Lock()
	l, handlers, capturing := h.listener, h.handlers, h.capturing
	switch msg.Type {
	case TypeVoices:
		h.voices = append([]ports.Voice(nil), msg.Voices...)
	case TypeCaptureEnded, TypeCaptureError:
		h.capturing = false
	}
	h.mu.Unlock()

	c.log.Debug().Str("type", msg.Type).Msg("Bridge message received")

	switch msg.Type {
	case TypeCaptureStarted, TypeCaptureInterim, TypeCaptureFinal, TypeCaptureError, TypeCaptureEnded:
		if l == nil || !capturing {
			c.log.Debug().Str("type", msg.Type).Msg("Capture event ignored while not capturing")
			return
		}
		deliver(l, msg)

	case TypeVoices:
		c.log.Info().Int("voices", len(msg.Voices)).Msg("Voices updated")

	case TypeSpeechEnded:
		call(handlers.OnSpeechEnded)

	case TypeSessionStart:
		call(handlers.OnSessionStart)

	case TypeSessionStop:
		call(handlers.OnSessionStop)

	default:
		c.log.Warn().Str("type", msg.Type).Msg("Unknown bridge message type")
	}
}

func deliver(l ports.CaptureListener, msg Message) {
	switch msg.Type {
	case TypeCaptureStarted:
		l.OnStart()
	case TypeCaptureInterim:
		l.OnInterimResult(msg.Text)
	case TypeCaptureFinal:
		l.OnFinalResult(msg.Text)
	case TypeCaptureError:
		l.OnError(ports.ParseErrorKind(msg.Code))
		// The browser may not follow an error with an end event.
		l.OnEnd()
	case TypeCaptureEnded:
		l.OnEnd()
	}
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}

// broadcast writes msg to every client. It fails only if no client received it.
func (h *Hub) broadcast(msg Message) error {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return ErrNoClients
	}

	delivered := 0
	var lastErr error
	for _, c := range clients {
		if err := c.write(msg, h.cfg.WriteTimeout); err != nil {
			c.log.Warn().Err(err).Str("type", msg.Type).Msg("Bridge write failed")
			lastErr = err
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return fmt.Errorf("failed to deliver %s: %w", msg.Type, lastErr)
	}
	return nil
}

// SetListener implements ports.CaptureService.
func (h *Hub) SetListener(l ports.CaptureListener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listener = l
}

// Start asks the browsers to start listening.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	h.capturing = true
	h.mu.Unlock()

	err := h.broadcast(Message{Type: TypeCaptureStart})
	if err != nil {
		h.mu.Lock()
		h.capturing = false
		h.mu.Unlock()
		return &ports.CaptureError{Kind: ports.ErrorCaptureDeviceDenied, Err: err}
	}
	return nil
}

// Stop asks the browsers to stop listening. Capture events still in flight
// are dropped.
func (h *Hub) Stop() error {
	h.mu.Lock()
	was := h.capturing
	h.capturing = false
	h.mu.Unlock()

	if !was {
		return nil
	}
	if err := h.broadcast(Message{Type: TypeCaptureStop}); err != nil && !errors.Is(err, ErrNoClients) {
		return err
	}
	return nil
}

// ListVoices implements ports.OutputService with the voices last reported
// by a browser.
func (h *Hub) ListVoices() []ports.Voice {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]ports.Voice(nil), h.voices...)
}

// Speak implements ports.OutputService.
func (h *Hub) Speak(u ports.Utterance) error {
	voice := u.Voice
	return h.broadcast(Message{
		Type:   TypeSpeak,
		Text:   u.Text,
		Voice:  &voice,
		Pitch:  u.Pitch,
		Rate:   u.Rate,
		Volume: u.Volume,
	})
}

// Cancel implements ports.OutputService.
func (h *Hub) Cancel() {
	if err := h.broadcast(Message{Type: TypeSpeechCancel}); err != nil && !errors.Is(err, ErrNoClients) {
		h.log.Warn().Err(err).Msg("Failed to cancel speech")
	}
}

// GoTo implements ports.NavigationService.
func (h *Hub) GoTo(route string) error {
	return h.broadcast(Message{Type: TypeNavigate, Route: route})
}

// Publish sends a state update to every browser. Having no clients is not
// an error.
func (h *Hub) Publish(state any) {
	if err := h.broadcast(Message{Type: TypeState, State: state}); err != nil && !errors.Is(err, ErrNoClients) {
		h.log.Debug().Err(err).Msg("Failed to publish state")
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.conn.Close()
	}
}

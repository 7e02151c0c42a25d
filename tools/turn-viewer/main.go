// Turn Viewer - Real-time voice command turn display
// Consumes from Kafka topics and displays via WebSocket to browser
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// TurnEvent covers both recognized and dispatched events.
type TurnEvent struct {
	EventType  string  `json:"eventType"`
	TurnID     string  `json:"turnId"`
	Principal  string  `json:"principal"`
	Timestamp  int64   `json:"timestamp"`
	Transcript string  `json:"transcript,omitempty"`
	MatchType  string  `json:"matchType,omitempty"`
	Score      float64 `json:"score,omitempty"`
	Command    string  `json:"command,omitempty"`
	Pattern    string  `json:"pattern,omitempty"`
	Category   string  `json:"category,omitempty"`
	Route      string  `json:"route,omitempty"`
	LatencyMs  int64   `json:"latencyMs,omitempty"`
}

// Hub manages WebSocket connections
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan TurnEvent
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan TurnEvent, 100),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			n := len(h.clients)
			h.mu.Unlock()
			log.Info().Int("clients", n).Msg("Client connected")

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			log.Info().Int("clients", n).Msg("Client disconnected")

		case event := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteJSON(event); err != nil {
					log.Warn().Err(err).Msg("Write error")
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local dev
	},
}

func wsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("WebSocket upgrade error")
			return
		}
		hub.register <- conn

		// Keep connection alive, handle disconnects
		go func() {
			defer func() {
				hub.unregister <- conn
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
		}()
	}
}

func consumeKafka(ctx context.Context, hub *Hub, brokers, topic string) {
	// Use partition reader without consumer group (works better through port-forward)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   strings.Split(brokers, ","),
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-1*time.Hour)); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("Failed to rewind reader")
	}

	log.Info().Str("topic", topic).Msg("Consuming from Kafka topic partition 0 (last hour)")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("topic", topic).Msg("Kafka read error")
			time.Sleep(time.Second)
			continue
		}

		var event TurnEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Warn().Err(err).Msg("JSON unmarshal error")
			continue
		}

		log.Info().
			Str("eventType", event.EventType).
			Str("turnId", event.TurnID).
			Str("command", event.Command).
			Str("transcript", truncate(event.Transcript, 40)).
			Msg("Received turn event")

		select {
		case hub.broadcast <- event:
		case <-ctx.Done():
			return
		}
	}
}

func main() {
	port := flag.String("port", "8081", "HTTP server port")
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topicRecognized := flag.String("topic-recognized", "voice.command.recognized", "Recognition topic")
	topicDispatched := flag.String("topic-dispatched", "voice.command.dispatched", "Dispatch topic")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	hub := newHub()
	go hub.run(ctx)

	// Start Kafka consumers
	go consumeKafka(ctx, hub, *brokers, *topicRecognized)
	go consumeKafka(ctx, hub, *brokers, *topicDispatched)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(indexHTML))
	})
	mux.HandleFunc("/ws", wsHandler(hub))

	server := &http.Server{Addr: ":" + *port, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		server.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("url", "http://localhost:"+*port).
		Str("brokers", *brokers).
		Strs("topics", []string{*topicRecognized, *topicDispatched}).
		Msg("Turn Viewer starting")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Server error")
	}
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Voice Command Turns</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; background: #fafafa; }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; padding: .4rem .6rem; border-bottom: 1px solid #ddd; }
tr.recognized td:first-child { color: #2563eb; }
tr.dispatched td:first-child { color: #16a34a; }
tr.none td { color: #999; }
</style>
</head>
<body>
<h1>Voice Command Turns</h1>
<p id="status">connecting...</p>
<table>
<thead><tr><th>Event</th><th>Turn</th><th>Transcript</th><th>Match</th><th>Command</th><th>Route</th><th>Time</th></tr></thead>
<tbody id="turns"></tbody>
</table>
<script>
const rows = document.getElementById("turns");
const status = document.getElementById("status");
function cell(text) { const td = document.createElement("td"); td.textContent = text || ""; return td; }
function connect() {
  const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
  ws.onopen = () => { status.textContent = "connected"; };
  ws.onclose = () => { status.textContent = "disconnected, retrying..."; setTimeout(connect, 2000); };
  ws.onmessage = (e) => {
    const ev = JSON.parse(e.data);
    const tr = document.createElement("tr");
    const kind = ev.eventType.split(".").pop();
    tr.className = kind + (ev.matchType === "NONE" ? " none" : "");
    const match = ev.matchType ? ev.matchType + (ev.score ? " " + ev.score.toFixed(2) : "") : "";
    tr.append(cell(kind), cell(ev.turnId), cell(ev.transcript), cell(match),
      cell(ev.command), cell(ev.route), cell(new Date(ev.timestamp).toLocaleTimeString()));
    rows.prepend(tr);
  };
}
connect();
</script>
</body>
</html>
`

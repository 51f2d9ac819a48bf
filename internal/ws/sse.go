package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/leafsii/feed-backend/internal/metrics"
	"github.com/leafsii/feed-backend/internal/store"
)

const defaultHeartbeat = 30 * time.Second

type SSEHandler struct {
	bus       Subscriber
	origins   map[string]struct{}
	logger    *zap.SugaredLogger
	metrics   *metrics.Metrics
	heartbeat time.Duration
}

func NewSSEHandler(bus Subscriber, allowedOrigins []string, logger *zap.SugaredLogger, m *metrics.Metrics) *SSEHandler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}
	return &SSEHandler{
		bus:       bus,
		origins:   origins,
		logger:    logger,
		metrics:   m,
		heartbeat: defaultHeartbeat,
	}
}

// HandleSSE streams bus messages for ?topics=events,leaderboard until the
// client disconnects. Without topics both are streamed.
func (h *SSEHandler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	if origin := r.Header.Get("Origin"); origin != "" {
		if _, ok := h.origins[origin]; ok {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
	}
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control")

	topics := ParseTopics(r.URL.Query().Get("topics"))
	if len(topics) == 0 {
		topics = []string{"events", "leaderboard"}
	}
	channels, patterns := splitChannels(topics)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.metrics.IncrementConnections(ctx)
	defer h.metrics.DecrementConnections(context.WithoutCancel(ctx))

	var inputs []<-chan *store.Message
	if len(channels) > 0 {
		sub := h.bus.Subscribe(ctx, channels...)
		defer sub.Close()
		inputs = append(inputs, sub.Messages())
	}
	if len(patterns) > 0 {
		sub := h.bus.PSubscribe(ctx, patterns...)
		defer sub.Close()
		inputs = append(inputs, sub.Messages())
	}

	h.logger.Debugw("SSE connection established", "channels", channels, "patterns", patterns)
	h.sendEvent(w, flusher, "connected", "", map[string]any{"topics": topics})

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	msgs := merge(ctx, inputs...)
	for {
		select {
		case <-ctx.Done():
			h.logger.Debugw("SSE client disconnected")
			return

		case <-heartbeat.C:
			h.sendEvent(w, flusher, "heartbeat", "ping", map[string]any{
				"timestamp": time.Now().Unix(),
			})

		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if !json.Valid([]byte(msg.Payload)) {
				h.logger.Warnw("Failed to parse message payload", "channel", msg.Channel)
				continue
			}
			h.sendEvent(w, flusher, EventType(msg.Channel), msg.Channel, json.RawMessage(msg.Payload))
		}
	}
}

func (h *SSEHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType, id string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Errorw("Failed to marshal SSE data", "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\n", eventType)
	if id != "" {
		fmt.Fprintf(w, "id: %s\n", id)
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}

// splitChannels resolves topics into exact channels and glob patterns
func splitChannels(topics []string) (channels, patterns []string) {
	seen := make(map[string]struct{})
	for _, t := range topics {
		for _, ch := range TopicChannels(t) {
			if _, ok := seen[ch]; ok {
				continue
			}
			seen[ch] = struct{}{}
			if strings.Contains(ch, "*") {
				patterns = append(patterns, ch)
			} else {
				channels = append(channels, ch)
			}
		}
	}
	return channels, patterns
}

// merge fans several subscriptions into one channel that closes once all
// inputs are closed
func merge(ctx context.Context, inputs ...<-chan *store.Message) <-chan *store.Message {
	out := make(chan *store.Message)
	if len(inputs) == 0 {
		return out
	}

	done := make(chan struct{}, len(inputs))
	for _, in := range inputs {
		go func(in <-chan *store.Message) {
			defer func() { done <- struct{}{} }()
			for msg := range in {
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}(in)
	}
	go func() {
		for range inputs {
			<-done
		}
		close(out)
	}()
	return out
}

package chatrelay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/helenaexplora/explora-platform/internal/i18n"
	"github.com/helenaexplora/explora-platform/internal/observability/metrics"
	"github.com/helenaexplora/explora-platform/pkg/logging"
)

const maxBodyBytes = 256 << 10

var tracer = otel.Tracer("explora.internal.chatrelay")

// Handler is the HTTP entrypoint of the chat relay.
type Handler struct {
	provider Provider
	model    string
	timeout  time.Duration
	loc      *i18n.Localizer
	metrics  *metrics.RelayMetrics
	logger   *logging.Logger
}

// NewHandler creates the chat relay handler. A zero timeout leaves the
// stream bounded only by the client connection.
func NewHandler(provider Provider, model string, timeout time.Duration, loc *i18n.Localizer, m *metrics.RelayMetrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = i18n.NewLocalizer("")
	}
	return &Handler{provider: provider, model: model, timeout: timeout, loc: loc, metrics: m, logger: logger}
}

// ServeHTTP handles POST /functions/v1/chat.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tag := h.loc.FromRequest(r)
	ctx, span := tracer.Start(r.Context(), "chatrelay.stream")
	defer span.End()
	span.SetAttributes(attribute.String("chat.provider", h.provider.Name()))

	var req Request
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.reject(w, http.StatusBadRequest, h.loc.Text(tag, i18n.KeyInvalidRequest), err)
		return
	}
	if err := req.Validate(); err != nil {
		h.reject(w, http.StatusBadRequest, h.loc.Text(tag, i18n.KeyInvalidRequest), err)
		return
	}
	span.SetAttributes(attribute.Int("chat.messages", len(req.Messages)))

	if verdict := Scan(latestUserTurn(req.Messages)); verdict.Blocked {
		span.SetAttributes(attribute.Bool("chat.guarded", true), attribute.Float64("chat.guard_score", verdict.Score))
		h.logger.Warn("chat turn blocked by prompt guard", "score", verdict.Score, "signals", verdict.Signals)
		h.metrics.ObserveChat(h.provider.Name(), http.StatusOK)
		h.cannedReply(w, h.loc.Text(tag, i18n.KeyChatGuarded))
		return
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	body, err := h.provider.Open(ctx, NewCompletionRequest(h.model, req.Messages))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream rejected")
		status, key := upstreamStatus(err)
		h.logger.Error("chat upstream failed", "provider", h.provider.Name(), "status", status, "error", err)
		h.metrics.ObserveChat(h.provider.Name(), status)
		writeError(w, status, h.loc.Text(tag, key))
		return
	}
	defer body.Close()

	h.metrics.ObserveChat(h.provider.Name(), http.StatusOK)
	setStreamHeaders(w)
	w.WriteHeader(http.StatusOK)

	started := time.Now()
	n, err := stream(w, body)
	h.metrics.ObserveChatStream(h.provider.Name(), time.Since(started).Seconds())
	span.SetAttributes(attribute.Int64("chat.bytes", n))
	if err != nil && !errors.Is(err, context.Canceled) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stream interrupted")
		h.logger.Warn("chat stream interrupted", "provider", h.provider.Name(), "bytes", n, "error", err)
	}
}

func (h *Handler) reject(w http.ResponseWriter, status int, message string, err error) {
	h.logger.Warn("chat request rejected", "error", err)
	h.metrics.ObserveChat(h.provider.Name(), status)
	writeError(w, status, message)
}

// cannedReply answers with a single locally produced delta, framed like an
// upstream stream so clients need no special case.
func (h *Handler) cannedReply(w http.ResponseWriter, content string) {
	setStreamHeaders(w)
	w.WriteHeader(http.StatusOK)
	if err := WriteDelta(w, content); err != nil {
		h.logger.Warn("chat canned reply failed", "error", err)
		return
	}
	_, _ = io.WriteString(w, DoneFrame)
}

func setStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// stream copies body to w, flushing after every read.
func stream(w http.ResponseWriter, body io.Reader) (int64, error) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 4096)
	var total int64
	for {
		n, err := body.Read(buf)
		if n > 0 {
			written, werr := w.Write(buf[:n])
			total += int64(written)
			if werr != nil {
				return total, werr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

func upstreamStatus(err error) (int, string) {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		switch upstream.Status {
		case http.StatusTooManyRequests:
			return http.StatusTooManyRequests, i18n.KeyChatRateLimited
		case http.StatusPaymentRequired:
			return http.StatusPaymentRequired, i18n.KeyChatCreditsExhausted
		}
	}
	return http.StatusInternalServerError, i18n.KeyChatFailed
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

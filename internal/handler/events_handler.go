package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/chirp/internal/metrics"
	"github.com/hitoshi/chirp/internal/middleware"
	"github.com/hitoshi/chirp/internal/realtime"
)

// sseHeartbeatInterval は接続維持のためのコメント送出間隔。
const sseHeartbeatInterval = 25 * time.Second

// EventsHandler は認証イベントのServer-Sent Eventsハンドラー。
// 画面は描画時点のトークンを添えて接続し、サーバー側のセッション状態と
// 食い違ったときに再取得やサインアウトの指示を受け取る。
type EventsHandler struct {
	broker    *realtime.Broker
	collector metrics.MetricsCollector
}

// NewEventsHandler はEventsHandlerを生成する。
func NewEventsHandler(broker *realtime.Broker, collector metrics.MetricsCollector) *EventsHandler {
	return &EventsHandler{
		broker:    broker,
		collector: collector,
	}
}

// Stream は認証イベントを購読してSSEで配信する。
// GET /auth/events?token=<描画時点のトークン>
//
// 接続直後に現在のセッション状態のスナップショットイベントが届くが、
// それ自体は状態変化ではないため指示には変換されない。以降のイベントで
// 描画時点のトークンとの食い違いを検知したときだけ指示を流す。
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	renderToken := r.URL.Query().Get("token")

	sub := h.broker.Subscribe(session.ProfileID, session.Token)
	defer sub.Unsubscribe()

	if h.collector != nil {
		h.collector.IncSSESubscribers()
		defer h.collector.DecSSESubscribers()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	slog.Debug("sse subscriber connected",
		slog.String("profile_id", session.ProfileID),
	)

	synchronizer := realtime.NewSynchronizer(renderToken)
	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-heartbeat.C:
			// 接続維持用のコメント行
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()

		case ev, open := <-sub.C():
			if !open {
				return
			}
			directive := synchronizer.Evaluate(ev)
			if directive == realtime.DirectiveNone {
				continue
			}

			fmt.Fprintf(w, "event: %s\ndata: {}\n\n", directive)
			flusher.Flush()

			if directive == realtime.DirectiveSignedOut {
				return
			}
		}
	}
}

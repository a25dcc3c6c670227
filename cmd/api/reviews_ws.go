package main

import (
	"net/http"
	"time"

	"academy/internal/realtime"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the feed only carries public reviews, same as the permissive CORS policy
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamCourseReviewsSocketHandler godoc
//
//	@Summary		Live course reviews (WebSocket)
//	@Description	Same feed as the SSE stream for clients that prefer a socket. Each message is a realtime.Event.
//	@Tags			reviews
//	@Param			courseSlug	path	string	true	"Course slug"
//	@Router			/courses/{courseSlug}/reviews/ws [get]
func (app *application) streamCourseReviewsSocketHandler(w http.ResponseWriter, r *http.Request) {
	slug, err := courseSlugParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	events, unsubscribe, err := app.broker.Subscribe(r.Context(), realtime.ReviewsChannel(slug))
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	defer unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		app.logger.Warnw("websocket upgrade failed", "course", slug, "error", err)
		return
	}
	defer conn.Close()

	// The reader only watches for pongs and the close frame.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

package http

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"quizrelay/internal/app"
	"quizrelay/internal/domain"
)

// FeedHandler serves live leaderboard reads over websockets, for dashboards
// that want rankings without waiting for the daily summary.
type FeedHandler struct {
	pipeline *app.Pipeline
	upgrader websocket.Upgrader
	refresh  time.Duration
}

func NewFeedHandler(pipeline *app.Pipeline) *FeedHandler {
	return &FeedHandler{
		pipeline: pipeline,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		refresh: 30 * time.Second,
	}
}

type inboundMessage struct {
	Type string `json:"type"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS streams a group's leaderboard: a snapshot on connect, periodic
// refreshes, and on-demand "refresh" and "global" reads from the client.
func (h *FeedHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	groupID, err := strconv.ParseInt(r.URL.Query().Get("groupId"), 10, 64)
	if err != nil {
		http.Error(w, "missing or invalid groupId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("feed: ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	done := make(chan struct{})
	writerDone := make(chan struct{})
	tickerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("feed: ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(tickerDone)
		ticker := time.NewTicker(h.refresh)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				select {
				case send <- h.groupSnapshot(r, groupID):
				case <-done:
					return
				}
			}
		}
	}()

	send <- h.groupSnapshot(r, groupID)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "refresh":
			send <- h.groupSnapshot(r, groupID)
		case "global":
			rows, err := h.pipeline.GlobalLeaderboard(r.Context(), app.GlobalLeaderboardSize)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "global", Payload: rowsOrEmpty(rows)}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	// The ticker goroutine must be gone before send closes, or a refresh
	// mid-flight would write to a closed channel.
	close(done)
	<-tickerDone
	close(send)
	<-writerDone
}

func (h *FeedHandler) groupSnapshot(r *http.Request, groupID int64) outboundMessage[any] {
	rows, err := h.pipeline.GroupLeaderboard(r.Context(), groupID)
	if err != nil {
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
	}
	return outboundMessage[any]{Type: "leaderboard", Payload: rowsOrEmpty(rows)}
}

func rowsOrEmpty(rows []domain.LeaderboardRow) []domain.LeaderboardRow {
	if rows == nil {
		return []domain.LeaderboardRow{}
	}
	return rows
}

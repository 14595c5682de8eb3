package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meleshyn/comments-spa/pkg/logger"
)

const writeWait = 5 * time.Second

// streamHandler upgrades the connection and pushes comments created under
// the requested scope as they land: no parentId streams the root feed, a
// parentId streams that comment's replies.
func (api *API) streamHandler(w http.ResponseWriter, r *http.Request) {
	var scope int64
	if v := r.URL.Query().Get("parentId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			api.writeError(w, r, fieldError("parentId", "must be a positive integer"))
			return
		}
		scope = id
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, err := api.svc.Listen(ctx, scope)
	if err != nil {
		api.writeError(w, r, err)
		return
	}

	conn, err := api.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		logger.FromContext(ctx).Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// The read pump only detects the peer going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	keepalive := time.NewTicker(api.cfg.WSKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-events:
			if !ok {
				return
			}
			event := streamEventVO{Type: "comment.created", Comment: toCommentVO(c)}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-keepalive.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

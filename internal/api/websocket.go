package api

import (
	"context"
	"net/http"
	"time"

	"github.com/behzadon/songvote/internal/domain"
	"github.com/behzadon/songvote/internal/metrics"
	"github.com/behzadon/songvote/internal/tally"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the tally overlay is embedded from other origins
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamTally pushes the song's total whenever it changes. Key errors are
// answered over plain HTTP before the upgrade.
func (h *Handler) streamTally(c *gin.Context) {
	song, err := h.tally.Resolve(c.Request.Context(), c.Param("key"))
	if err != nil {
		h.respondError(c, err, "failed to resolve tally key")
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	metrics.TallySubscribers.Inc()
	defer metrics.TallySubscribers.Dec()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// reader: only detects the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	watcher := tally.NewWatcher(h.tally, h.feed, *song, h.watcherCfg, h.logger)
	err = watcher.Run(ctx, func(t domain.Tally) {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			cancel()
			return
		}
		if err := conn.WriteJSON(t); err != nil {
			h.logger.Debug("tally stream write failed", zap.Error(err))
			cancel()
		}
	})
	if err != nil {
		h.logger.Warn("tally stream stopped", zap.Error(err))
	}
}

package daemon

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"fieldsync/internal/logging"
)

const streamWriteTimeout = 5 * time.Second

// handleStream upgrades to a websocket and pushes a snapshot on connect and
// after every status transition. Client messages are ignored. Cross-origin
// upgrades are refused so other pages in a browser cannot read the queue.
func (s *apiServer) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		logging.WarnWithContext(s.logger, "websocket accept failed", "api_stream_accept_failed",
			logging.Error(err),
			logging.String("origin", r.Header.Get("Origin")),
			logging.String(logging.FieldErrorHint, "connect from the daemon's own origin or a non-browser client"),
			logging.String(logging.FieldImpact, "observer receives no live updates"),
		)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	transitions, unsubscribe := s.service.WatchStatus()
	defer unsubscribe()

	ctx := conn.CloseRead(r.Context())
	if err := s.pushSnapshot(ctx, conn); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "daemon stopping")
			return
		case _, ok := <-transitions:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			if err := s.pushSnapshot(ctx, conn); err != nil {
				s.logger.Debug("websocket push failed", logging.Error(err))
				return
			}
		}
	}
}

func (s *apiServer) pushSnapshot(ctx context.Context, conn *websocket.Conn) error {
	snapshot, err := s.service.Snapshot(ctx)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, snapshot)
}

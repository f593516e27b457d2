package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"

	"fieldsync/internal/api"
	"fieldsync/internal/daemon"
	"fieldsync/internal/logging"
)

// serviceName prefixes every RPC method.
const serviceName = "FieldSync"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	svc := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName(serviceName, svc); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.logger.Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.logger.Info("daemon started via IPC",
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = s.daemon.Status(s.ctx)
	return nil
}

func (s *service) QueueList(_ QueueListRequest, resp *QueueListResponse) error {
	items, err := s.daemon.Service().RefreshQueue(s.ctx)
	if err != nil {
		return err
	}
	resp.Items = items
	return nil
}

func (s *service) Enqueue(req EnqueueRequest, resp *EnqueueResponse) error {
	if strings.TrimSpace(req.Type) == "" {
		return errors.New("mutation type is required")
	}
	out, err := s.daemon.Service().Enqueue(s.ctx, api.EnqueueRequest{Type: req.Type, Payload: req.Payload})
	if err != nil {
		return err
	}
	resp.ID = out.ID
	s.logger.Info("mutation queued via IPC",
		logging.String(logging.FieldEventType, "queue_enqueue"),
		logging.String(logging.FieldItemID, out.ID),
		logging.String(logging.FieldMutationType, req.Type))
	return nil
}

func (s *service) QueueClear(_ QueueClearRequest, resp *QueueClearResponse) error {
	s.logger.Debug("queue clear requested")
	removed, err := s.daemon.Service().ClearQueue(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.logger.Info("queue cleared",
		logging.String(logging.FieldEventType, "queue_clear"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) Sync(req SyncRequest, resp *SyncResponse) error {
	svc := s.daemon.Service()
	if !req.Wait {
		resp.Skipped = "requested"
		if !svc.RequestSync(s.ctx) {
			resp.Skipped = "paused"
		}
		return nil
	}
	out, err := svc.Sync(s.ctx)
	*resp = out
	return err
}

func (s *service) DeadLetterList(_ DeadLetterListRequest, resp *DeadLetterListResponse) error {
	letters, err := s.daemon.Service().DeadLetters(s.ctx)
	if err != nil {
		return err
	}
	resp.Items = letters
	return nil
}

func (s *service) DeadLetterRequeue(req DeadLetterRequeueRequest, resp *DeadLetterRequeueResponse) error {
	if strings.TrimSpace(req.ID) == "" {
		return errors.New("dead letter id is required")
	}
	out, err := s.daemon.Service().Requeue(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.ID = out.ID
	s.logger.Info("dead letter requeued",
		logging.String(logging.FieldEventType, "dead_letter_requeue"),
		logging.String("dead_letter_id", req.ID),
		logging.String(logging.FieldItemID, out.ID))
	return nil
}

func (s *service) DeadLetterPurge(_ DeadLetterPurgeRequest, resp *DeadLetterPurgeResponse) error {
	removed, err := s.daemon.Service().PurgeDeadLetters(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.logger.Info("dead letters purged",
		logging.String(logging.FieldEventType, "dead_letter_purge"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) DatabaseHealth(_ DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	health, err := s.daemon.DatabaseHealth(s.ctx)
	*resp = *api.FromDatabaseHealth(health)
	if err != nil && health.Error == "" {
		return err
	}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

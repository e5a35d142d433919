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
	"sync"
	"time"

	"pagepass/internal/api"
	"pagepass/internal/daemon"
	"pagepass/internal/logging"
	"pagepass/internal/reqctx"
)

// Server exposes daemon control and circulation operations via JSON-RPC over
// a Unix domain socket.
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
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, svc: d.Service(), logger: logger, ctx: serverCtx}
	if err := rpcServer.RegisterName("PagePass", srv); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

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
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun pagepass stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	svc    *api.Service
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) userCtx(userID string) context.Context {
	return reqctx.WithUserID(s.ctx, userID)
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
	s.logger.Info("daemon started via IPC", logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC", logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.DBPath = status.DBPath
	resp.LockPath = status.LockPath
	resp.APIAddress = status.APIAddress
	resp.OfferWindow = status.OfferWindow.String()
	resp.Books = status.Books
	resp.SchemaVersion = status.Database.SchemaVersion
	resp.OpenHandoffs = status.Database.OpenHandoffs
	resp.QueuedEntries = status.Database.QueuedEntries
	resp.DatabaseError = status.Database.Error
	if !status.StartedAt.IsZero() {
		resp.StartedAt = status.StartedAt.Format(time.RFC3339)
	}
	if !status.NextSweep.IsZero() {
		resp.NextSweep = status.NextSweep.UTC().Format(time.RFC3339)
	}
	return nil
}

func (s *service) AddBook(req AddBookRequest, resp *BookResponse) error {
	book, err := s.svc.AddBook(s.userCtx(req.UserID), req.UserID, api.AddBookRequest{Title: req.Title, Author: req.Author})
	if err != nil {
		return wireError(err)
	}
	resp.Book = book
	return nil
}

func (s *service) GetBook(req BookRequest, resp *BookResponse) error {
	book, err := s.svc.Book(s.ctx, req.BookID)
	if err != nil {
		return wireError(err)
	}
	resp.Book = book
	return nil
}

func (s *service) ListBooks(req BookListRequest, resp *BookListResponse) error {
	books, err := s.svc.Books(s.ctx, api.BookQuery{OwnerID: req.OwnerID, HolderID: req.HolderID, Statuses: req.Statuses})
	if err != nil {
		return wireError(err)
	}
	resp.Items = books
	return nil
}

func (s *service) RemoveBook(req BookRequest, _ *EmptyResponse) error {
	return wireError(s.svc.RemoveBook(s.userCtx(req.UserID), req.UserID, req.BookID))
}

func (s *service) Borrow(req BookRequest, resp *HandoffResponse) error {
	h, err := s.svc.RequestBorrow(s.userCtx(req.UserID), req.UserID, req.BookID)
	if err != nil {
		return wireError(err)
	}
	resp.Handoff = h
	return nil
}

func (s *service) Ready(req BookRequest, resp *ReadyResponse) error {
	ready, err := s.svc.MarkReady(s.userCtx(req.UserID), req.UserID, req.BookID)
	if err != nil {
		return wireError(err)
	}
	resp.Ready = ready
	return nil
}

func (s *service) Recall(req BookRequest, resp *BookResponse) error {
	book, err := s.svc.Recall(s.userCtx(req.UserID), req.UserID, req.BookID)
	if err != nil {
		return wireError(err)
	}
	resp.Book = book
	return nil
}

func (s *service) ToggleGift(req BookRequest, resp *GiftResponse) error {
	flag, err := s.svc.ToggleGift(s.userCtx(req.UserID), req.UserID, req.BookID)
	if err != nil {
		return wireError(err)
	}
	resp.Flag = flag
	return nil
}

func (s *service) ToggleShelf(req BookRequest, resp *BookResponse) error {
	book, err := s.svc.ToggleShelf(s.userCtx(req.UserID), req.UserID, req.BookID)
	if err != nil {
		return wireError(err)
	}
	resp.Book = book
	return nil
}

func (s *service) JoinQueue(req BookRequest, resp *JoinResponse) error {
	joined, err := s.svc.JoinQueue(s.userCtx(req.UserID), req.UserID, req.BookID)
	if err != nil {
		return wireError(err)
	}
	resp.Joined = joined
	return nil
}

func (s *service) LeaveQueue(req BookRequest, _ *EmptyResponse) error {
	return wireError(s.svc.LeaveQueue(s.userCtx(req.UserID), req.UserID, req.BookID))
}

func (s *service) Pass(req PassRequest, resp *PassResponse) error {
	result, err := s.svc.Pass(s.userCtx(req.UserID), req.UserID, req.BookID, api.PassRequest{Reason: req.Reason})
	if err != nil {
		return wireError(err)
	}
	resp.Result = result
	return nil
}

func (s *service) Queue(req BookRequest, resp *QueueResponse) error {
	entries, err := s.svc.Queue(s.ctx, req.BookID)
	if err != nil {
		return wireError(err)
	}
	resp.Items = entries
	return nil
}

func (s *service) Waitlists(req BookRequest, resp *QueueResponse) error {
	entries, err := s.svc.Waitlists(s.ctx, req.UserID)
	if err != nil {
		return wireError(err)
	}
	resp.Items = entries
	return nil
}

func (s *service) Ownership(req BookRequest, resp *OwnershipResponse) error {
	records, err := s.svc.Ownership(s.ctx, req.BookID)
	if err != nil {
		return wireError(err)
	}
	resp.Items = records
	return nil
}

func (s *service) OpenHandoffs(req HandoffListRequest, resp *HandoffListResponse) error {
	handoffs, err := s.svc.OpenHandoffs(s.ctx, req.UserID)
	if err != nil {
		return wireError(err)
	}
	resp.Items = handoffs
	return nil
}

func (s *service) Confirm(req ConfirmRequest, resp *ConfirmResponse) error {
	result, err := s.svc.Confirm(s.userCtx(req.UserID), req.UserID, req.HandoffID, api.ConfirmRequest{Role: req.Role})
	if err != nil {
		return wireError(err)
	}
	resp.Result = result
	return nil
}

func (s *service) ConfirmBatch(req ConfirmBatchRequest, resp *BatchResponse) error {
	summary, err := s.svc.ConfirmBatch(s.userCtx(req.UserID), req.UserID, api.ConfirmBatchRequest{Items: req.Items})
	if err != nil {
		return wireError(err)
	}
	resp.Summary = summary
	return nil
}

func (s *service) ConfirmWith(req ConfirmWithRequest, resp *BatchResponse) error {
	summary, err := s.svc.ConfirmWith(s.userCtx(req.UserID), req.UserID, api.ConfirmWithRequest{CounterpartyID: req.CounterpartyID})
	if err != nil {
		return wireError(err)
	}
	resp.Summary = summary
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	items, err := s.svc.History(s.ctx, historyQuery(req))
	if err != nil {
		return wireError(err)
	}
	resp.Items = items
	return nil
}

func (s *service) HistoryStats(req HistoryRequest, resp *HistoryStatsResponse) error {
	counts, err := s.svc.HistoryStats(s.ctx, historyQuery(req))
	if err != nil {
		return wireError(err)
	}
	resp.Items = counts
	return nil
}

func (s *service) Sweep(_ SweepRequest, resp *SweepResponse) error {
	report, err := s.svc.Sweep(s.ctx)
	if err != nil {
		return wireError(err)
	}
	resp.Report = report
	s.logger.Info("offer sweep via IPC",
		logging.String(logging.FieldEventType, "manual_sweep"),
		logging.Int("passed", report.Passed))
	return nil
}

func (s *service) TestNotification(req TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx, req.UserID)
	resp.Sent = sent
	resp.Message = message
	if err != nil {
		resp.Message = fmt.Sprintf("%s: %v", message, err)
	}
	return nil
}

func historyQuery(req HistoryRequest) api.HistoryQuery {
	return api.HistoryQuery{BookID: req.BookID, UserID: req.UserID, Types: req.Types, Limit: req.Limit}
}

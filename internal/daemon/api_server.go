package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"pagepass/internal/api"
	"pagepass/internal/config"
	"pagepass/internal/faults"
	"pagepass/internal/identity"
	"pagepass/internal/logging"
)

const maxRequestBody = 1 << 20

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	service *api.Service
	auth    *identity.Authenticator
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

func newAPIServer(cfg *config.Config, d *Daemon, auth *identity.Authenticator, logger *slog.Logger) *apiServer {
	if logger == nil {
		logger = logging.NewNop()
	}
	srv := &apiServer{
		bind:    strings.TrimSpace(cfg.Paths.APIBind),
		logger:  logging.NewComponentLogger(logger, "api-server"),
		daemon:  d,
		service: d.service,
		auth:    auth,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", srv.handleHealth)

	srv.route(mux, "POST /api/books", srv.handleAddBook)
	srv.route(mux, "GET /api/books", srv.handleListBooks)
	srv.route(mux, "GET /api/books/{id}", srv.handleGetBook)
	srv.route(mux, "DELETE /api/books/{id}", srv.handleRemoveBook)
	srv.route(mux, "POST /api/books/{id}/borrow", srv.handleBorrow)
	srv.route(mux, "POST /api/books/{id}/ready", srv.handleReady)
	srv.route(mux, "POST /api/books/{id}/recall", srv.handleRecall)
	srv.route(mux, "POST /api/books/{id}/gift", srv.handleGift)
	srv.route(mux, "POST /api/books/{id}/shelf", srv.handleShelf)
	srv.route(mux, "POST /api/books/{id}/queue", srv.handleJoinQueue)
	srv.route(mux, "DELETE /api/books/{id}/queue", srv.handleLeaveQueue)
	srv.route(mux, "GET /api/books/{id}/queue", srv.handleGetQueue)
	srv.route(mux, "POST /api/books/{id}/pass", srv.handlePass)
	srv.route(mux, "GET /api/books/{id}/ownership", srv.handleOwnership)
	srv.route(mux, "GET /api/books/{id}/history", srv.handleBookHistory)
	srv.route(mux, "GET /api/handoffs", srv.handleOpenHandoffs)
	srv.route(mux, "POST /api/handoffs/{id}/confirm", srv.handleConfirm)
	srv.route(mux, "POST /api/handoffs/confirm-batch", srv.handleConfirmBatch)
	srv.route(mux, "POST /api/handoffs/confirm-with", srv.handleConfirmWith)
	srv.route(mux, "GET /api/me/queues", srv.handleMyQueues)
	srv.route(mux, "GET /api/history/stats", srv.handleHistoryStats)
	srv.route(mux, "POST /api/sweep", srv.handleSweep)

	srv.handler = requestIDMiddleware(srv.logger, mux)
	return srv
}

// route registers an authenticated handler that receives the caller's id.
func (s *apiServer) route(mux *http.ServeMux, pattern string, fn userHandler) {
	mux.Handle(pattern, s.auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := identity.CurrentUser(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		fn(w, r, userID)
	})))
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		s.logger.Info("api server disabled", logging.String("reason", "paths.api_bind is empty"))
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	payload := api.Health{
		Status:      "ok",
		PID:         status.PID,
		OfferWindow: status.OfferWindow.String(),
	}
	if !status.Running {
		payload.Status = "stopped"
	}
	if !status.StartedAt.IsZero() {
		payload.StartedAt = status.StartedAt.Format(time.RFC3339)
	}
	if !status.NextSweep.IsZero() {
		payload.NextSweep = status.NextSweep.UTC().Format(time.RFC3339)
	}
	if status.Database.Error != "" {
		payload.Status = "degraded"
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleAddBook(w http.ResponseWriter, r *http.Request, userID string) {
	var req api.AddBookRequest
	if !s.decode(w, r, &req) {
		return
	}
	book, err := s.service.AddBook(r.Context(), userID, req)
	s.respond(w, r, http.StatusCreated, book, err)
}

func (s *apiServer) handleListBooks(w http.ResponseWriter, r *http.Request, _ string) {
	query := r.URL.Query()
	books, err := s.service.Books(r.Context(), api.BookQuery{
		OwnerID:  query.Get("owner"),
		HolderID: query.Get("holder"),
		Statuses: query["status"],
	})
	s.respond(w, r, http.StatusOK, api.ListResponse[api.Book]{Items: books}, err)
}

func (s *apiServer) handleGetBook(w http.ResponseWriter, r *http.Request, _ string) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}
	book, err := s.service.Book(r.Context(), id)
	s.respond(w, r, http.StatusOK, book, err)
}

func (s *apiServer) handleRemoveBook(w http.ResponseWriter, r *http.Request, userID string) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}
	s.respond(w, r, http.StatusNoContent, nil, s.service.RemoveBook(r.Context(), userID, id))
}

func (s *apiServer) handleBorrow(w http.ResponseWriter, r *http.Request, userID string) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}
	h, err := s.service.RequestBorrow(r.Context(), userID, id)
	s.respond(w, r, http.StatusCreated, h, err)
}

func (s *apiServer) handleReady(w http.ResponseWriter, r *http.Request, userID string) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}
	ready, err := s.service.MarkReady(r.Context(), userID, id)
	s.respond(w, r, http.StatusCreated, ready, err)
}

func (s *apiServer) handleRecall(w http.ResponseWriter, r *http.Request, userID string) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}
	book, err := s.service.Recall(r.Context(), userID, id)
	s.respond(w, r, http.StatusOK, book, err)
}

func (s *apiServer) handleGift(w http.ResponseWriter, r *http.Request, userID string) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}
	flag, err := s.service.ToggleGift(r.Context(), userID, id)
	s.respond(w, r, http.StatusOK, flag, err)
}

func (s *apiServer) handleShelf(w http.ResponseWriter, r *http.Request, userID string) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}
	book, err := s.service.ToggleShelf(r.Context(), userID, id)
	s.respond(w, r, http.StatusOK, book, err)
}

func (s *apiServer) handleJoinQueue(w http.ResponseWriter, r *http.Request, userID string) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}
	joined, err := s.service.JoinQueue(r.Context(), userID, id)
	s.respond(w, r, http.StatusCreated, joined, err)
}

func (s *apiServer) handleLeaveQueue(w http.ResponseWriter, r *http.Request, userID string) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}
	s.respond(w, r, http.StatusNoContent, nil, s.service.LeaveQueue(r.Context(), userID, id))
}

func (s *apiServer) handleGetQueue(w http.ResponseWriter, r *http.Request, _ string) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}
	entries, err := s.service.Queue(r.Context(), id)
	s.respond(w, r, http.StatusOK, api.ListResponse[api.QueueEntry]{Items: entries}, err)
}

func (s *apiServer) handlePass(w http.ResponseWriter, r *http.Request, userID string) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}
	var req api.PassRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.service.Pass(r.Context(), userID, id, req)
	s.respond(w, r, http.StatusOK, result, err)
}

func (s *apiServer) handleOwnership(w http.ResponseWriter, r *http.Request, _ string) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}
	records, err := s.service.Ownership(r.Context(), id)
	s.respond(w, r, http.StatusOK, api.ListResponse[api.OwnershipRecord]{Items: records}, err)
}

func (s *apiServer) handleBookHistory(w http.ResponseWriter, r *http.Request, _ string) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}
	query, ok := s.historyQuery(w, r)
	if !ok {
		return
	}
	query.BookID = id
	items, err := s.service.History(r.Context(), query)
	s.respond(w, r, http.StatusOK, api.ListResponse[api.HistoryEvent]{Items: items}, err)
}

func (s *apiServer) handleOpenHandoffs(w http.ResponseWriter, r *http.Request, userID string) {
	handoffs, err := s.service.OpenHandoffs(r.Context(), userID)
	s.respond(w, r, http.StatusOK, api.ListResponse[api.Handoff]{Items: handoffs}, err)
}

func (s *apiServer) handleConfirm(w http.ResponseWriter, r *http.Request, userID string) {
	var req api.ConfirmRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.service.Confirm(r.Context(), userID, r.PathValue("id"), req)
	s.respond(w, r, http.StatusOK, result, err)
}

func (s *apiServer) handleConfirmBatch(w http.ResponseWriter, r *http.Request, userID string) {
	var req api.ConfirmBatchRequest
	if !s.decode(w, r, &req) {
		return
	}
	summary, err := s.service.ConfirmBatch(r.Context(), userID, req)
	s.respond(w, r, http.StatusOK, summary, err)
}

func (s *apiServer) handleConfirmWith(w http.ResponseWriter, r *http.Request, userID string) {
	var req api.ConfirmWithRequest
	if !s.decode(w, r, &req) {
		return
	}
	summary, err := s.service.ConfirmWith(r.Context(), userID, req)
	s.respond(w, r, http.StatusOK, summary, err)
}

func (s *apiServer) handleMyQueues(w http.ResponseWriter, r *http.Request, userID string) {
	entries, err := s.service.Waitlists(r.Context(), userID)
	s.respond(w, r, http.StatusOK, api.ListResponse[api.QueueEntry]{Items: entries}, err)
}

func (s *apiServer) handleHistoryStats(w http.ResponseWriter, r *http.Request, _ string) {
	query, ok := s.historyQuery(w, r)
	if !ok {
		return
	}
	counts, err := s.service.HistoryStats(r.Context(), query)
	s.respond(w, r, http.StatusOK, api.ListResponse[api.TypeCount]{Items: counts}, err)
}

func (s *apiServer) handleSweep(w http.ResponseWriter, r *http.Request, userID string) {
	report, err := s.service.Sweep(r.Context())
	if err == nil {
		logging.WithContext(r.Context(), s.logger).Info("manual offer sweep",
			logging.String(logging.FieldEventType, "manual_sweep"),
			logging.String("requested_by", userID),
			logging.Int("passed", report.Passed),
		)
	}
	s.respond(w, r, http.StatusOK, report, err)
}

func (s *apiServer) bookID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, r, faults.Wrap(faults.ErrInvalidArgument, "parse book id", fmt.Sprintf("%q is not a book id", raw)))
		return 0, false
	}
	return id, true
}

func (s *apiServer) historyQuery(w http.ResponseWriter, r *http.Request) (api.HistoryQuery, bool) {
	values := r.URL.Query()
	query := api.HistoryQuery{UserID: values.Get("user"), Types: values["type"]}
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, faults.Wrap(faults.ErrInvalidArgument, "parse limit", fmt.Sprintf("%q is not a number", raw)))
			return api.HistoryQuery{}, false
		}
		query.Limit = limit
	}
	return query, true
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, r, faults.Wrap(faults.ErrInvalidArgument, "decode request", "body is not valid JSON"))
		return false
	}
	return true
}

func (s *apiServer) respond(w http.ResponseWriter, r *http.Request, status int, payload any, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, status, payload)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	if payload == nil || status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := faults.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_request_failed",
			logging.Error(err),
			logging.String("path", r.URL.Path),
			logging.String(logging.FieldErrorHint, "check the daemon log and database health"),
		)
	}
	s.writeJSON(w, status, api.ErrorFrom(err))
}

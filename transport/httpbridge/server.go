// Package httpbridge serves an executor over HTTP and provides the matching
// client.Invoker.
//
// Each command is a POST to /invoke/{command} whose body is the command's
// request JSON. The response body is a types.Reply. Executor failures are
// answered with 422 and the message in the reply's error field.
package httpbridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/tomyedwab/sqlbridge/bridge/types"
)

const maxRequestBytes = 8 << 20

type contextKey string

const requestInfoKey contextKey = "requestInfo"

// requestInfo is filled in by inner handlers for the request logger.
type requestInfo struct {
	client string
}

// CommandHandler runs one command. *executor.Executor implements it.
type CommandHandler interface {
	Handle(ctx context.Context, command string, args json.RawMessage) (any, error)
}

// Server exposes a CommandHandler over HTTP.
type Server struct {
	handler CommandHandler
	log     zerolog.Logger
	secret  []byte
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithSecret requires every command request to carry a bearer token signed
// with secret.
func WithSecret(secret []byte) ServerOption {
	return func(s *Server) {
		s.secret = secret
	}
}

// NewServer creates a Server dispatching to h.
func NewServer(h CommandHandler, log zerolog.Logger, options ...ServerOption) *Server {
	s := &Server{
		handler: h,
		log:     log.With().Str("component", "httpbridge").Logger(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		if len(s.secret) > 0 {
			r.Use(s.authenticate)
		}
		r.Post("/invoke/{command}", s.handleInvoke)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("starting bridge server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	command := chi.URLParam(r, "command")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeReply(w, http.StatusRequestEntityTooLarge, types.Reply{Error: "request body too large"})
			return
		}
		writeReply(w, http.StatusBadRequest, types.Reply{Error: "failed to read request body: " + err.Error()})
		return
	}

	result, err := s.handler.Handle(r.Context(), command, body)
	if err != nil {
		writeReply(w, http.StatusUnprocessableEntity, types.Reply{Error: err.Error()})
		return
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		writeReply(w, http.StatusInternalServerError, types.Reply{Error: "failed to marshal result: " + err.Error()})
		return
	}
	writeReply(w, http.StatusOK, types.Reply{Result: resultJSON})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeReply(w, http.StatusUnauthorized, types.Reply{Error: "missing bearer token"})
			return
		}
		claims, err := ParseToken(s.secret, token)
		if err != nil {
			writeReply(w, http.StatusUnauthorized, types.Reply{Error: "invalid bearer token"})
			return
		}
		if info, ok := r.Context().Value(requestInfoKey).(*requestInfo); ok {
			info.client = claims.Client
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		info := &requestInfo{}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), requestInfoKey, info)))

		event := s.log.Debug()
		if ww.Status() >= http.StatusBadRequest {
			event = s.log.Warn()
		}
		if info.client != "" {
			event = event.Str("client", info.client)
		}
		event.
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func writeReply(w http.ResponseWriter, status int, reply types.Reply) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(reply)
}

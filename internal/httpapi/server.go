// Package httpapi serves the account and session endpoints over HTTPS:
// register, login, logout, and user CRUD. Every response is JSON and
// every route answers CORS preflight.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nexuschat/nexusd/internal/auth"
	"github.com/nexuschat/nexusd/internal/protocol"
	"github.com/nexuschat/nexusd/internal/scylladb"
)

// Store is the slice of the persistence adapter the API needs.
type Store interface {
	SelectUserByUUID(ctx context.Context, id uuid.UUID) (protocol.User, error)
	SelectUserByUsername(ctx context.Context, username string) (protocol.User, error)
	ListUsers(ctx context.Context) ([]protocol.User, error)
	CreateUser(ctx context.Context, u *protocol.User, privateKey []byte) error
	UpdateUsername(ctx context.Context, id uuid.UUID, username string) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	SetPublicKey(ctx context.Context, id uuid.UUID, publicKey string) error
	InsertSession(ctx context.Context, token string, user uuid.UUID, meta scylladb.SessionMeta) error
	DeleteSessionByJWT(ctx context.Context, token string) error
}

// TokenGate issues and verifies session tokens.
type TokenGate interface {
	Verify(ctx context.Context, token string) (uuid.UUID, error)
	Issue(user uuid.UUID, role protocol.Role) (string, error)
}

// Server is the HTTPS API front end.
type Server struct {
	addr     string
	certFile string
	keyFile  string
	store    Store
	gate     TokenGate
	logger   *slog.Logger
}

// NewServer wires the API server. When certFile is empty the server
// falls back to plain HTTP, which is only suitable behind a terminating
// proxy or in tests.
func NewServer(addr, certFile, keyFile string, store Store, gate TokenGate, logger *slog.Logger) *Server {
	return &Server{
		addr:     addr,
		certFile: certFile,
		keyFile:  keyFile,
		store:    store,
		gate:     gate,
		logger:   logger,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)

	mux.HandleFunc("GET /api/users", s.withAuth(s.handleListUsers))
	mux.HandleFunc("GET /api/users/{uuid}", s.withAuth(s.handleGetUser))
	mux.HandleFunc("PUT /api/users/{uuid}", s.withAuth(s.handleUpdateUser))
	mux.HandleFunc("DELETE /api/users/{uuid}", s.withAuth(s.handleDeleteUser))
	mux.HandleFunc("POST /api/users/key/{uuid}", s.withAuth(s.handleSetPublicKey))

	return withCORS(mux)
}

// Start serves until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if s.certFile != "" {
			errCh <- srv.ListenAndServeTLS(s.certFile, s.keyFile)
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// withCORS answers preflight and stamps the permissive headers the
// clients expect on every response.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxKey struct{}

// withAuth verifies the bearer token and stores the caller's UUID in the
// request context.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.TokenFromHeader(r.Header)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "missing or malformed authorization header")
			return
		}
		user, err := s.gate.Verify(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, user)))
	}
}

// callerUUID returns the authenticated caller set by withAuth.
func callerUUID(r *http.Request) (uuid.UUID, bool) {
	u, ok := r.Context().Value(ctxKey{}).(uuid.UUID)
	return u, ok
}

func pathUUID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue("uuid"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

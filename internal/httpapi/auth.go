package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nexuschat/nexusd/internal/auth"
	"github.com/nexuschat/nexusd/internal/protocol"
	"github.com/nexuschat/nexusd/internal/scylladb"
)

// DeviceMeta describes the device opening a session. Stored alongside
// the token so a user can review and revoke devices.
type DeviceMeta struct {
	Location   string `json:"location"`
	DeviceName string `json:"device_name"`
	DeviceType string `json:"device_type"`
	DeviceOS   string `json:"device_os"`
}

// AuthRequest is the body of register and login.
type AuthRequest struct {
	Username string     `json:"username"`
	Password string     `json:"password"`
	Meta     DeviceMeta `json:"meta"`
}

// AuthResponse carries the session token back to the client.
type AuthResponse struct {
	UUID  uuid.UUID `json:"uuid"`
	Token string    `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	if _, err := s.store.SelectUserByUsername(r.Context(), req.Username); err == nil {
		writeError(w, http.StatusConflict, "username already taken")
		return
	} else if !errors.Is(err, scylladb.ErrNotFound) {
		s.logger.Error("username lookup failed", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("password hash failed", "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	user := protocol.User{
		UUID:      uuid.New(),
		Username:  req.Username,
		Password:  hash,
		Role:      protocol.RoleUser,
		CreatedAt: time.Now().Unix(),
	}

	// Each account gets a random secret key at creation; clients derive
	// their message encryption from it.
	privateKey := make([]byte, 32)
	if _, err := rand.Read(privateKey); err != nil {
		s.logger.Error("secret key generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	if err := s.store.CreateUser(r.Context(), &user, privateKey); err != nil {
		s.logger.Error("create user failed", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	s.logger.Info("user registered", "user", user.UUID, "username", user.Username)
	s.openSession(w, r, &user, req.Meta, http.StatusCreated)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	user, err := s.store.SelectUserByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, scylladb.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.logger.Error("user lookup failed", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	if !auth.CheckPassword(user.Password, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	s.openSession(w, r, &user, req.Meta, http.StatusOK)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, err := auth.TokenFromHeader(r.Header)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing or malformed authorization header")
		return
	}
	if _, err := s.gate.Verify(r.Context(), token); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	if err := s.store.DeleteSessionByJWT(r.Context(), token); err != nil {
		s.logger.Error("delete session failed", "error", err)
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// openSession issues a token, records it in the sessions table, and
// answers with the credentials.
func (s *Server) openSession(w http.ResponseWriter, r *http.Request, user *protocol.User, meta DeviceMeta, status int) {
	token, err := s.gate.Issue(user.UUID, user.Role)
	if err != nil {
		s.logger.Error("token issue failed", "user", user.UUID, "error", err)
		writeError(w, http.StatusInternalServerError, "session creation failed")
		return
	}

	err = s.store.InsertSession(r.Context(), token, user.UUID, scylladb.SessionMeta{
		Location:   meta.Location,
		DeviceName: meta.DeviceName,
		DeviceType: meta.DeviceType,
		DeviceOS:   meta.DeviceOS,
	})
	if err != nil {
		s.logger.Error("insert session failed", "user", user.UUID, "error", err)
		writeError(w, http.StatusInternalServerError, "session creation failed")
		return
	}

	writeJSON(w, status, AuthResponse{UUID: user.UUID, Token: token})
}

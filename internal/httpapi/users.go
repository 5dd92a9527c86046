package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nexuschat/nexusd/internal/scylladb"
)

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.logger.Error("list users failed", "error", err)
		writeError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed uuid")
		return
	}

	user, err := s.store.SelectUserByUUID(r.Context(), id)
	if err != nil {
		if errors.Is(err, scylladb.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		s.logger.Error("user lookup failed", "user", id, "error", err)
		writeError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type updateUserRequest struct {
	Username string `json:"username"`
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed uuid")
		return
	}
	if caller, ok := callerUUID(r); !ok || caller != id {
		writeError(w, http.StatusForbidden, "cannot modify another user")
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	if err := s.store.UpdateUsername(r.Context(), id, req.Username); err != nil {
		s.logger.Error("update username failed", "user", id, "error", err)
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed uuid")
		return
	}
	if caller, ok := callerUUID(r); !ok || caller != id {
		writeError(w, http.StatusForbidden, "cannot delete another user")
		return
	}

	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		s.logger.Error("delete user failed", "user", id, "error", err)
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	s.logger.Info("user deleted", "user", id)
	w.WriteHeader(http.StatusNoContent)
}

type publicKeyRequest struct {
	PublicKey string `json:"public_key"`
}

func (s *Server) handleSetPublicKey(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed uuid")
		return
	}
	if caller, ok := callerUUID(r); !ok || caller != id {
		writeError(w, http.StatusForbidden, "cannot set another user's key")
		return
	}

	var req publicKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PublicKey == "" {
		writeError(w, http.StatusBadRequest, "public_key is required")
		return
	}

	if err := s.store.SetPublicKey(r.Context(), id, req.PublicKey); err != nil {
		s.logger.Error("set public key failed", "user", id, "error", err)
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

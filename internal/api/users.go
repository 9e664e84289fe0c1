package api

import (
	"net/http"

	"github.com/nerrad567/devicehub/internal/audit"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type unregisterUserRequest struct {
	Password string `json:"password"`
}

// handleRegisterUser creates an account.
func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	account, err := s.accounts.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditAccount(audit.ActionRegister, account.ID,
		map[string]any{"username": account.Username})
	writeJSON(w, http.StatusCreated, account)
}

// handleUnregisterUser deletes the caller's own account after re-checking
// the password. Devices owned by the account are removed with it.
func (s *Server) handleUnregisterUser(w http.ResponseWriter, r *http.Request) {
	var req unregisterUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	id := accountID(r.Context())
	account, err := s.accounts.Unregister(r.Context(), id, req.Password)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditAccount(audit.ActionUnregister, id,
		map[string]any{"username": account.Username})
	writeJSON(w, http.StatusOK, account)
}

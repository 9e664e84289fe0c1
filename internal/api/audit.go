package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/devicehub/internal/audit"
)

const (
	// auditQueueSize bounds pending trail entries; overflow is dropped
	// rather than slowing the request path.
	auditQueueSize = 256

	auditWriteTimeout = 5 * time.Second
)

// auditAccount records a mutation of the account itself.
func (s *Server) auditAccount(action string, accountID int64, details map[string]any) {
	s.enqueueAudit(&audit.Entry{
		Action:     action,
		EntityType: audit.EntityAccount,
		EntityID:   strconv.FormatInt(accountID, 10),
		AccountID:  accountID,
		Details:    details,
	})
}

// auditDevice records a mutation of one of owner's devices.
func (s *Server) auditDevice(action string, owner, deviceID int64, details map[string]any) {
	s.enqueueAudit(&audit.Entry{
		Action:     action,
		EntityType: audit.EntityDevice,
		EntityID:   strconv.FormatInt(deviceID, 10),
		AccountID:  owner,
		Details:    details,
	})
}

func (s *Server) enqueueAudit(e *audit.Entry) {
	if s.auditCh == nil {
		return
	}
	e.Source = "api"
	e.CreatedAt = time.Now().UTC()

	select {
	case s.auditCh <- e:
	default:
		s.logger.Warn("audit queue full, entry dropped",
			"action", e.Action,
			"entity_type", e.EntityType,
			"entity_id", e.EntityID,
		)
	}
}

// drainAuditLog is the single writer for the trail. After ctx ends it
// writes whatever is still queued and returns.
func (s *Server) drainAuditLog(ctx context.Context) {
	for {
		select {
		case e := <-s.auditCh:
			s.persistAudit(e)
		case <-ctx.Done():
			for len(s.auditCh) > 0 {
				s.persistAudit(<-s.auditCh)
			}
			return
		}
	}
}

// persistAudit uses its own deadline so entries flushed during shutdown
// still land.
func (s *Server) persistAudit(e *audit.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
	defer cancel()

	if err := s.audit.Create(ctx, e); err != nil {
		s.logger.Error("audit write failed", "action", e.Action, "entity_id", e.EntityID, "error", err)
	}
}

// queryInt reads a non-negative integer parameter, ignoring bad values.
func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// handleListAudit returns the caller's trail, newest first. It accepts
// action, entity_type and entity_id filters plus limit (default 50, at
// most 200) and offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeInternalError(w, "audit trail not configured")
		return
	}

	q := r.URL.Query()
	result, err := s.audit.List(r.Context(), audit.Filter{
		AccountID:  accountID(r.Context()),
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Limit:      queryInt(r, "limit"),
		Offset:     queryInt(r, "offset"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/devicehub/internal/telemetry"
)

type appendRequest struct {
	Payload telemetry.Payload `json:"payload"`
}

type periodicRequest struct {
	From *time.Time `json:"from"`
	To   *time.Time `json:"to"`
}

// streamTarget resolves {id} and {topic} and confirms the caller owns the
// device and the topic is registered on it.
func (s *Server) streamTarget(w http.ResponseWriter, r *http.Request, owner int64) (int64, string, bool) {
	id, ok := deviceIDParam(w, r)
	if !ok {
		return 0, "", false
	}
	topic := chi.URLParam(r, "topic")

	if _, err := s.registry.CheckTopic(r.Context(), owner, id, topic); err != nil {
		s.writeDomainError(w, r, err)
		return 0, "", false
	}
	return id, topic, true
}

// handleAppendTelemetry stores one point or a batch. The response mirrors
// the request: a record for a single point, an array for an array.
func (s *Server) handleAppendTelemetry(w http.ResponseWriter, r *http.Request) {
	var req appendRequest
	if err := decodeJSON(r, &req); err != nil {
		if errors.Is(err, telemetry.ErrInvalidPayload) {
			s.writeDomainError(w, r, err)
			return
		}
		writeBadRequest(w, "invalid JSON body")
		return
	}

	id, topic, ok := s.streamTarget(w, r, accountID(r.Context()))
	if !ok {
		return
	}

	records, err := s.store.Append(r.Context(), id, topic, req.Payload)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if req.Payload.Batch {
		writeJSON(w, http.StatusCreated, records)
		return
	}
	writeJSON(w, http.StatusCreated, records[0])
}

// handleLatestTelemetry returns the newest record for the stream.
func (s *Server) handleLatestTelemetry(w http.ResponseWriter, r *http.Request) {
	id, topic, ok := s.streamTarget(w, r, accountID(r.Context()))
	if !ok {
		return
	}

	rec, err := s.store.Latest(r.Context(), id, topic)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handlePeriodicTelemetry returns records inside [from, to], newest first.
// The window comes from ?from=&to= (RFC 3339) or a JSON body.
func (s *Server) handlePeriodicTelemetry(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseWindow(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	id, topic, ok := s.streamTarget(w, r, accountID(r.Context()))
	if !ok {
		return
	}

	records, err := s.store.Periodic(r.Context(), id, topic, from, to)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

var errWindowRequired = errors.New("from and to are required RFC 3339 or unix millisecond timestamps")

func parseWindow(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	if q.Has("from") || q.Has("to") {
		from, err := parseInstant(q.Get("from"))
		if err != nil {
			return time.Time{}, time.Time{}, errWindowRequired
		}
		to, err := parseInstant(q.Get("to"))
		if err != nil {
			return time.Time{}, time.Time{}, errWindowRequired
		}
		return from, to, nil
	}

	var req periodicRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		return time.Time{}, time.Time{}, errWindowRequired
	}
	if req.From == nil || req.To == nil {
		return time.Time{}, time.Time{}, errWindowRequired
	}
	return *req.From, *req.To, nil
}

// parseInstant accepts an RFC 3339 timestamp or integer unix milliseconds.
func parseInstant(v string) (time.Time, error) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Parse(time.RFC3339Nano, v)
}

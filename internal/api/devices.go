package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/devicehub/internal/audit"
	"github.com/nerrad567/devicehub/internal/device"
)

// registerDeviceRequest accepts both the short field names and the
// device_-prefixed ones.
type registerDeviceRequest struct {
	Name         string           `json:"name"`
	DeviceName   string           `json:"device_name"`
	Topics       device.TopicList `json:"topics"`
	DeviceTopics device.TopicList `json:"device_topics"`
}

func (req registerDeviceRequest) name() string {
	if req.Name != "" {
		return req.Name
	}
	return req.DeviceName
}

func (req registerDeviceRequest) topics() []string {
	if req.Topics != nil {
		return req.Topics
	}
	return req.DeviceTopics
}

type unregisterDeviceRequest struct {
	ID       flexibleID `json:"id"`
	DeviceID flexibleID `json:"device_id"`
}

type topicsRequest struct {
	Topics device.TopicList `json:"topics"`
}

type topicsAddedResponse struct {
	TopicsAdded int      `json:"topics_added"`
	Topics      []string `json:"topics"`
}

type topicsRemovedResponse struct {
	TopicsRemoved int      `json:"topics_removed"`
	Topics        []string `json:"topics"`
}

// flexibleID decodes a positive integer sent as a JSON number or a numeric
// string.
type flexibleID int64

func (id *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if bytes.Equal(data, []byte("null")) {
		*id = 0
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("device id must be an integer")
	}
	*id = flexibleID(n)
	return nil
}

// handleListDevices returns the caller's devices.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.registry.ListByOwner(r.Context(), accountID(r.Context()))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

// handleRegisterDevice creates a device owned by the caller.
func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	owner := accountID(r.Context())
	d, err := s.registry.Register(r.Context(), owner, req.name(), req.topics())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditDevice(audit.ActionRegister, owner, d.ID,
		map[string]any{"name": d.Name, "topics": d.Topics})
	writeJSON(w, http.StatusCreated, d)
}

// handleUnregisterDevice deletes one of the caller's devices.
func (s *Server) handleUnregisterDevice(w http.ResponseWriter, r *http.Request) {
	var req unregisterDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	id := int64(req.ID)
	if id == 0 {
		id = int64(req.DeviceID)
	}
	if id <= 0 {
		writeBadRequest(w, "device id is required")
		return
	}

	owner := accountID(r.Context())
	d, err := s.registry.Unregister(r.Context(), owner, id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditDevice(audit.ActionUnregister, owner, id,
		map[string]any{"name": d.Name})
	writeJSON(w, http.StatusOK, d)
}

// handleAddTopics registers new topics on a device.
func (s *Server) handleAddTopics(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceIDParam(w, r)
	if !ok {
		return
	}
	topics, ok := decodeTopics(w, r)
	if !ok {
		return
	}

	owner := accountID(r.Context())
	change, err := s.registry.AddTopics(r.Context(), owner, id, topics)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditDevice(audit.ActionAddTopics, owner, id,
		map[string]any{"topics": change.Topics})
	writeJSON(w, http.StatusOK, topicsAddedResponse{TopicsAdded: change.Count, Topics: change.Topics})
}

// handleRemoveTopics unregisters topics from a device.
func (s *Server) handleRemoveTopics(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceIDParam(w, r)
	if !ok {
		return
	}
	topics, ok := decodeTopics(w, r)
	if !ok {
		return
	}

	owner := accountID(r.Context())
	change, err := s.registry.RemoveTopics(r.Context(), owner, id, topics)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditDevice(audit.ActionRemoveTopics, owner, id,
		map[string]any{"topics": change.Topics})
	writeJSON(w, http.StatusOK, topicsRemovedResponse{TopicsRemoved: change.Count, Topics: change.Topics})
}

// deviceIDParam parses the {id} path segment, writing a 400 on failure.
func deviceIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "device id must be a positive integer")
		return 0, false
	}
	return id, true
}

func decodeTopics(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	var req topicsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return nil, false
	}
	if len(req.Topics) == 0 {
		writeBadRequest(w, "topics is required")
		return nil, false
	}
	return req.Topics, true
}

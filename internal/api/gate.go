package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/nerrad567/boomgate-core/internal/audit"
	"github.com/nerrad567/boomgate-core/internal/dispatch"
	"github.com/nerrad567/boomgate-core/internal/gate"
)

// commandRequest is the JSON body of POST /api/v1/gate/command.
type commandRequest struct {
	Command             string   `json:"command"`
	TransactionID       *string  `json:"transaction_id,omitempty"`
	VehiclePlate        *string  `json:"vehicle_plate,omitempty"`
	OpenDurationSeconds *float64 `json:"open_duration_seconds,omitempty"`
}

// handleHealth reports liveness plus the current gate position.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.broadcaster.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  s.version,
		"gate_id":  snap.GateID,
		"position": snap.Position,
	})
}

// handleStatus returns the current gate snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.broadcaster.Current())
}

// handleCommand submits one gate command on the control channel path.
//
// Sequence commands return 202 with the acknowledgement; the terminal
// outcome arrives later over the WebSocket broadcast and the audit
// trail. Instant commands (get_status, toggle_sound, emergency_stop)
// return 200 with the resulting snapshot.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var body commandRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	cmd, err := dispatch.ParseCommand(body.Command)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeUnknownCommand, err.Error())
		return
	}

	ack, err := s.dispatcher.Submit(r.Context(), dispatch.Request{
		Command:             cmd,
		TransactionID:       body.TransactionID,
		VehiclePlate:        body.VehiclePlate,
		OpenDurationSeconds: body.OpenDurationSeconds,
		Source:              dispatch.SourceControlChannel,
	})
	if err != nil {
		writeDispatchError(w, err)
		return
	}

	status := http.StatusOK
	if ack.OperationID != "" {
		status = http.StatusAccepted
	}
	writeJSON(w, status, ack)
}

// handleOperations lists the audit trail with optional filters.
//
// Query parameters: outcome, transaction_id, limit, offset.
func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "operation history not available")
		return
	}

	filter := audit.Filter{
		Outcome:       r.URL.Query().Get("outcome"),
		TransactionID: r.URL.Query().Get("transaction_id"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing operations failed", "error", err)
		writeInternalError(w, "failed to list operations")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// writeDispatchError maps dispatcher errors onto HTTP statuses.
func writeDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dispatch.ErrUnknownCommand):
		writeError(w, http.StatusBadRequest, ErrCodeUnknownCommand, err.Error())
	case errors.Is(err, dispatch.ErrInvalidParameter):
		writeBadRequest(w, err.Error())
	case errors.Is(err, dispatch.ErrGateBusy):
		writeConflict(w, ErrCodeGateBusy, err.Error())
	case errors.Is(err, gate.ErrInvalidTransition):
		writeConflict(w, ErrCodeConflict, err.Error())
	default:
		writeInternalError(w, "command failed")
	}
}

package diagnostics

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/basilfx/knx-devstack/internal/knxdevice"
)

// comObjectView is one communication object in a list response.
type comObjectView struct {
	Index          int      `json:"index"`
	Type           string   `json:"type"`
	Size           int      `json:"size"`
	Priority       int      `json:"priority"`
	Enabled        bool     `json:"enabled"`
	Readable       bool     `json:"readable"`
	Writable       bool     `json:"writable"`
	Value          string   `json:"value"`
	GroupAddresses []string `json:"group_addresses"`
}

// handleListComObjects returns every communication object with its
// current raw value and associated group addresses.
func (s *Server) handleListComObjects(w http.ResponseWriter, _ *http.Request) {
	views := make([]comObjectView, len(s.device.ComObjects))
	for i, obj := range s.device.ComObjects {
		groups := []string{}
		for _, group := range s.device.GroupAddressesFor(i) {
			groups = append(groups, group.FormatGroup())
		}
		views[i] = comObjectView{
			Index:          i,
			Type:           obj.Type.String(),
			Size:           obj.Size(),
			Priority:       int(obj.Priority),
			Enabled:        obj.Access.Enabled,
			Readable:       obj.Access.Read,
			Writable:       obj.Access.Write,
			Value:          hex.EncodeToString(obj.Value()),
			GroupAddresses: groups,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"com_objects": views,
		"count":       len(views),
	})
}

// writeComObjectRequest is the request body for forcing a group-value
// write.
type writeComObjectRequest struct {
	Value string `json:"value"` // raw hex
}

// handleWriteComObject stores a new value on a communication object and
// pushes it out as Group-Value-Write telegrams, the same path a host
// application's update takes.
func (s *Server) handleWriteComObject(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeBadRequest(w, "index must be an integer")
		return
	}

	var req writeComObjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	value, err := hex.DecodeString(req.Value)
	if err != nil || len(value) == 0 {
		writeBadRequest(w, "value must be non-empty hex")
		return
	}

	if err := s.writer.UpdateComObject(r.Context(), index, value); err != nil {
		if errors.Is(err, knxdevice.ErrNotFound) {
			writeNotFound(w, "no such com object")
			return
		}
		if errors.Is(err, knxdevice.ErrBufferTooSmall) {
			writeBadRequest(w, "value too short for com object")
			return
		}
		s.logger.Error("com object write failed", "index", index, "error", err)
		writeInternalError(w, "write failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"index": index, "value": req.Value})
}

// eventView is one persisted device event in a list response.
type eventView struct {
	ID     int64           `json:"id"`
	Ts     string          `json:"ts"`
	Kind   string          `json:"kind"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

// handleListEvents returns the most recent persisted device events,
// newest first.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if q := r.URL.Query().Get("limit"); q != "" {
		parsed, err := strconv.Atoi(q)
		if err != nil || parsed <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := s.events.ListEvents(r.Context(), limit)
	if err != nil {
		s.logger.Error("event list failed", "error", err)
		writeInternalError(w, "failed to list events")
		return
	}

	views := make([]eventView, len(records))
	for i, rec := range records {
		views[i] = eventView{
			ID:   rec.ID,
			Ts:   rec.Ts.UTC().Format(time.RFC3339),
			Kind: rec.Kind,
		}
		if rec.Detail != "" {
			views[i].Detail = json.RawMessage(rec.Detail)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": views, "count": len(views)})
}

// handleStatus returns the device's identity and table sizes.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"address":          s.device.Address.FormatPhysical(),
		"mask_version":     s.device.MaskVersion,
		"programming_mode": s.device.Info.ProgrammingMode,
		"com_objects":      len(s.device.ComObjects),
		"associations":     s.device.Associations.Len(),
		"monitor_clients":  s.hub.clientCount(),
	})
}

package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// handleListWidgets returns every catalog widget in display order with its visibility
func (s *Server) handleListWidgets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"widgets": s.prefs.Layout(),
	})
}

// handleToggleWidget flips a widget's visibility and persists the layout
func (s *Server) handleToggleWidget(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	visible, err := s.prefs.Toggle(id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":      id,
		"visible": visible,
		"widgets": s.prefs.Layout(),
	})
}

// handleMoveWidget moves a widget one position up or down
func (s *Server) handleMoveWidget(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		Direction string `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var (
		moved bool
		err   error
	)
	switch req.Direction {
	case "up":
		moved, err = s.prefs.MoveUp(id)
	case "down":
		moved, err = s.prefs.MoveDown(id)
	default:
		writeError(w, http.StatusBadRequest, `direction must be "up" or "down"`)
		return
	}
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":      id,
		"moved":   moved,
		"widgets": s.prefs.Layout(),
	})
}

// handleResetWidgets restores the catalog defaults
func (s *Server) handleResetWidgets(w http.ResponseWriter, r *http.Request) {
	if err := s.prefs.Reset(); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"widgets": s.prefs.Layout(),
	})
}

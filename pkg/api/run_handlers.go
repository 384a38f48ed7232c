package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tcmartin/crewdeck/pkg/models"
	"github.com/tcmartin/crewdeck/pkg/monitor"
	"github.com/tcmartin/crewdeck/pkg/runtime"
	"github.com/tcmartin/crewdeck/pkg/utils"
)

// runRequest starts a flow. initial_state may be an object or a JSON string.
type runRequest struct {
	Inputs       map[string]interface{} `json:"inputs"`
	InitialState json.RawMessage        `json:"initial_state"`
	Realtime     *bool                  `json:"realtime"`
}

// runResponse describes an observed run
type runResponse struct {
	ExecutionID string        `json:"execution_id"`
	FlowID      string        `json:"flow_id,omitempty"`
	Realtime    bool          `json:"realtime"`
	State       monitor.State `json:"state"`
}

func newRunResponse(run *runtime.Run) runResponse {
	return runResponse{
		ExecutionID: run.ExecutionID,
		FlowID:      run.FlowID,
		Realtime:    run.Realtime,
		State:       run.State(),
	}
}

// decodeOptional decodes a JSON body into v. An empty body leaves v untouched.
func decodeOptional(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// handleRunFlow kicks off a flow and starts monitoring it
func (s *Server) handleRunFlow(w http.ResponseWriter, r *http.Request) {
	flowID := mux.Vars(r)["id"]

	var req runRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Inputs == nil {
		req.Inputs = map[string]interface{}{}
	}
	realtime := req.Realtime == nil || *req.Realtime

	cl, err := s.clientFor(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	run, err := s.runtime.Execute(r.Context(), flowID, req.Inputs, utils.ObjectFromRaw(req.InitialState), runtime.RunOptions{
		Client:   cl,
		Realtime: realtime,
	})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newRunResponse(run))
}

// handleAttachRun starts monitoring an execution that was started elsewhere
func (s *Server) handleAttachRun(w http.ResponseWriter, r *http.Request) {
	executionID := mux.Vars(r)["id"]

	var req struct {
		FlowID   string `json:"flow_id"`
		Realtime *bool  `json:"realtime"`
	}
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cl, err := s.clientFor(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	run, err := s.runtime.Attach(r.Context(), executionID, runtime.RunOptions{
		Client:   cl,
		Realtime: req.Realtime == nil || *req.Realtime,
		FlowID:   req.FlowID,
	})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newRunResponse(run))
}

// handleGetRun returns the current run state
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runtime.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRunResponse(run))
}

// handleCancelRun cancels the execution on the backend and ends monitoring
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	executionID := mux.Vars(r)["id"]

	if err := s.runtime.Cancel(r.Context(), executionID); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	run, err := s.runtime.Get(executionID)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRunResponse(run))
}

// handleRemoveRun stops watching a run without touching the execution
func (s *Server) handleRemoveRun(w http.ResponseWriter, r *http.Request) {
	if err := s.runtime.Remove(mux.Vars(r)["id"]); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRunFeedback answers a human_input_required event
func (s *Server) handleRunFeedback(w http.ResponseWriter, r *http.Request) {
	executionID := mux.Vars(r)["id"]

	var feedback models.HumanFeedback
	if err := json.NewDecoder(r.Body).Decode(&feedback); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cl, err := s.clientFor(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if err := cl.Executions.SubmitHumanFeedback(r.Context(), executionID, feedback); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Feedback submitted"})
}

// handleRunWebSocket pushes the run state after every change
func (s *Server) handleRunWebSocket(w http.ResponseWriter, r *http.Request) {
	run, err := s.runtime.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.sockets.HandleWebSocket(w, r, run)
}

// handleRunEvents relays the raw execution events as server-sent events
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	executionID := mux.Vars(r)["id"]
	if !s.relay.Exists(executionID) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.relay.ServeStream(w, r, executionID)
}

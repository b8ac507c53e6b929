package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/wmstack/blueprintgo/internal/gesture"
	"github.com/wmstack/blueprintgo/internal/models"
)

// createEntityRequest is the POST /entities payload.
type createEntityRequest struct {
	BlockType  models.BlockType       `json:"block_type"`
	ParentID   string                 `json:"parent_id,omitempty"`
	Geometry   models.Geometry        `json:"geometry"`
	Attributes map[string]interface{} `json:"attributes"`
}

// listEntities returns the non-deleted working copy
func (r *Router) listEntities(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, r.session.GetEntities())
}

// getEntity returns one entity by local id
func (r *Router) getEntity(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	e, ok := r.session.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "Entity not found")
		return
	}
	respondJSON(w, http.StatusOK, e)
}

// createEntity runs the create pipeline and returns the new id
func (r *Router) createEntity(w http.ResponseWriter, req *http.Request) {
	var body createEntityRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	if !body.BlockType.Valid() {
		respondError(w, http.StatusBadRequest, "Unknown block type")
		return
	}
	id, err := r.session.AddBlock(req.Context(), body.BlockType, body.ParentID, body.Geometry, body.Attributes)
	if err != nil {
		respondReject(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// updateEntity applies a patch through the commit pipeline
func (r *Router) updateEntity(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	var patch models.EntityPatch
	if err := json.NewDecoder(req.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	if err := r.session.UpdateBlock(req.Context(), id, patch); err != nil {
		respondReject(w, err)
		return
	}
	e, _ := r.session.Get(id)
	respondJSON(w, http.StatusOK, e)
}

// deleteEntity soft-deletes an entity
func (r *Router) deleteEntity(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	if err := r.session.RemoveRack(req.Context(), id); err != nil {
		respondReject(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// getState returns the UI-facing session snapshot
func (r *Router) getState(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, r.session.GetState())
}

// undo steps the working copy back one snapshot
func (r *Router) undo(w http.ResponseWriter, req *http.Request) {
	if !r.session.Undo(req.Context()) {
		respondError(w, http.StatusConflict, "Nothing to undo")
		return
	}
	respondJSON(w, http.StatusOK, r.session.GetState())
}

// redo steps the working copy forward one snapshot
func (r *Router) redo(w http.ResponseWriter, req *http.Request) {
	if !r.session.Redo(req.Context()) {
		respondError(w, http.StatusConflict, "Nothing to redo")
		return
	}
	respondJSON(w, http.StatusOK, r.session.GetState())
}

// validateLayout sweeps the layout for broken invariants
func (r *Router) validateLayout(w http.ResponseWriter, req *http.Request) {
	violations := r.session.ValidateLayout()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"valid":      len(violations) == 0,
		"violations": violations,
	})
}

// setSelection marks an entity as selected; empty id clears it
func (r *Router) setSelection(w http.ResponseWriter, req *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	if err := r.session.Select(body.ID); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, r.session.GetState())
}

// resetCamera returns the viewpoint to the overview pose
func (r *Router) resetCamera(w http.ResponseWriter, req *http.Request) {
	r.session.ResetCamera()
	respondJSON(w, http.StatusOK, r.session.GetState())
}

// zoomToEntity points the camera at an entity
func (r *Router) zoomToEntity(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	if err := r.session.ZoomToEntity(id); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, r.session.GetState())
}

// gestureStart begins a drag on an entity
func (r *Router) gestureStart(w http.ResponseWriter, req *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	if err := r.session.Gesture().DragStart(body.ID); err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"state": string(r.session.Gesture().State())})
}

// gestureFrame records one render-frame pose; no checks run here
func (r *Router) gestureFrame(w http.ResponseWriter, req *http.Request) {
	var t gesture.Transform
	if err := json.NewDecoder(req.Body).Decode(&t); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	r.session.Gesture().SampleFrame(t)
	w.WriteHeader(http.StatusNoContent)
}

// gestureEnd runs the single drag-end check and commit
func (r *Router) gestureEnd(w http.ResponseWriter, req *http.Request) {
	res := r.session.Gesture().DragEnd(req.Context())
	status := http.StatusOK
	if !res.Accepted {
		status = http.StatusConflict
	}
	respondJSON(w, status, res)
}

// gestureCancel leaves the pending phase without committing
func (r *Router) gestureCancel(w http.ResponseWriter, req *http.Request) {
	r.session.Gesture().Deselect()
	w.WriteHeader(http.StatusNoContent)
}

// blueprintPDF streams the top-down layout sheet
func (r *Router) blueprintPDF(w http.ResponseWriter, req *http.Request) {
	pdf, err := r.session.CaptureScreenshot()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="blueprint.pdf"`)
	w.Write(pdf)
}

// rackLabelsPDF streams the QR label sheet for all racks
func (r *Router) rackLabelsPDF(w http.ResponseWriter, req *http.Request) {
	pdf, err := r.session.RackLabels()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="rack-labels.pdf"`)
	w.Write(pdf)
}

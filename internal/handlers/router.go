package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/wmstack/blueprintgo/internal/editor"
	"github.com/wmstack/blueprintgo/internal/pipeline"
	ws "github.com/wmstack/blueprintgo/internal/websocket"
)

// Router wraps the mux router, the editor session and the event hub
type Router struct {
	*mux.Router
	session *editor.Session
	hub     *ws.Hub
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(session *editor.Session, hub *ws.Hub) *Router {
	r := &Router{
		Router:  mux.NewRouter(),
		session: session,
		hub:     hub,
	}

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// API routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", r.getStatus).Methods("GET")

	// Layout entity routes
	layout := r.PathPrefix("/api/layout").Subrouter()
	layout.HandleFunc("/entities", r.listEntities).Methods("GET")
	layout.HandleFunc("/entities", r.createEntity).Methods("POST")
	layout.HandleFunc("/entities/{id}", r.getEntity).Methods("GET")
	layout.HandleFunc("/entities/{id}", r.updateEntity).Methods("PUT")
	layout.HandleFunc("/entities/{id}", r.deleteEntity).Methods("DELETE")

	// Session state, history and validation
	layout.HandleFunc("/state", r.getState).Methods("GET")
	layout.HandleFunc("/undo", r.undo).Methods("POST")
	layout.HandleFunc("/redo", r.redo).Methods("POST")
	layout.HandleFunc("/validate", r.validateLayout).Methods("GET")
	layout.HandleFunc("/selection", r.setSelection).Methods("PUT")

	// Camera
	layout.HandleFunc("/camera/reset", r.resetCamera).Methods("POST")
	layout.HandleFunc("/camera/zoom/{id}", r.zoomToEntity).Methods("POST")

	// Drag gesture, one endpoint per phase
	layout.HandleFunc("/gesture/start", r.gestureStart).Methods("POST")
	layout.HandleFunc("/gesture/frame", r.gestureFrame).Methods("POST")
	layout.HandleFunc("/gesture/end", r.gestureEnd).Methods("POST")
	layout.HandleFunc("/gesture/cancel", r.gestureCancel).Methods("POST")

	// Print sheets
	layout.HandleFunc("/blueprint.pdf", r.blueprintPDF).Methods("GET")
	layout.HandleFunc("/labels.pdf", r.rackLabelsPDF).Methods("GET")

	// Live event feed
	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		ws.ServeWs(hub, w, req)
	})

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"server": "local",
	})
}

// getStatus returns the current status
func (r *Router) getStatus(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "running",
		"clients": r.hub.ClientCount(),
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondReject translates pipeline rejections to HTTP statuses: bad input
// is the client's fault, collisions and bounds are conflicts with current
// state, a failed remote is an upstream error.
func respondReject(w http.ResponseWriter, err error) {
	var rej *pipeline.Rejection
	if !errors.As(err, &rej) {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	switch rej.Kind {
	case pipeline.RejectValidation:
		respondError(w, http.StatusUnprocessableEntity, rej.Message)
	case pipeline.RejectBounds, pipeline.RejectCollision:
		respondError(w, http.StatusConflict, rej.Message)
	case pipeline.RejectRemote:
		respondError(w, http.StatusBadGateway, rej.Message)
	default:
		respondError(w, http.StatusInternalServerError, rej.Message)
	}
}

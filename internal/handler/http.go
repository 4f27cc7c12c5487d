package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/parlor-social/realtime-hub/internal/config"
	"github.com/parlor-social/realtime-hub/internal/service"
	"github.com/parlor-social/realtime-hub/internal/store"
)

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	config  *config.Config
	service *service.Service
	store   store.MessageStore
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(cfg *config.Config, svc *service.Service, st store.MessageStore) *HTTPHandler {
	return &HTTPHandler{
		config:  cfg,
		service: svc,
		store:   st,
	}
}

// SetupRoutes sets up HTTP routes
func (h *HTTPHandler) SetupRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/status", h.handleStatus).Methods("GET")
	r.HandleFunc("/v1/conversations/{userA}/{userB}", h.handleConversation).Methods("GET")
}

// handleHealth handles health check requests
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UnixNano() / int64(time.Millisecond),
	})
}

// handleStatus handles status check requests
func (h *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	connections, activeCalls := h.service.Status()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":       "ok",
		"connections":  connections,
		"active_calls": activeCalls,
		"timestamp":    time.Now().UnixNano() / int64(time.Millisecond),
	})
}

// handleConversation serves the message history between two users, oldest
// first. This is the pull path for messages that were stored while the
// recipient was offline.
func (h *HTTPHandler) handleConversation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userA := vars["userA"]
	userB := vars["userB"]

	limit := h.config.Store.HistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	messages, err := h.store.Conversation(r.Context(), userA, userB, limit)
	if err != nil {
		http.Error(w, "failed to fetch conversation", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"messages": messages,
		"count":    len(messages),
	})
}

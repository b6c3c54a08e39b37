package http

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ledgerline/offline-core/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// TokenRequest is the credential exchange payload
// @Description Token request
type TokenRequest struct {
	ClientID     string `json:"client_id" example:"dashboard-eu-1"`
	ClientSecret string `json:"client_secret"`
}

// TokenResponse carries a minted bearer token
// @Description Token response
type TokenResponse struct {
	Token string `json:"token"`
}

// EnqueueRequest is the payload for queueing an offline mutation
// @Description Enqueue request
type EnqueueRequest struct {
	Type       domain.OperationType `json:"type" example:"create"`
	Collection domain.Collection    `json:"collection" example:"providers"`
	EntityID   string               `json:"entity_id,omitempty"`
	Payload    json.RawMessage      `json:"payload,omitempty"`
}

// PreloadRequest optionally narrows a preload to one collection
// @Description Preload request
type PreloadRequest struct {
	Collection domain.Collection `json:"collection,omitempty" example:"products"`
}

// CountResponse reports an affected-row count
// @Description Count response
type CountResponse struct {
	Count int `json:"count"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Returns readiness, checking the local store and lock backend
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse  "A dependency is unreachable"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store unreachable")
			return
		}
	}
	if s.lockStore != nil {
		if err := s.lockStore.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "lock backend unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Auth endpoints

// handleToken godoc
// @Summary      Mint a bearer token
// @Description  Exchange the shared client secret for a JWT
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      TokenRequest  true  "Client credentials"
// @Success      200      {object}  TokenResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      401      {object}  ErrorResponse  "Bad credentials"
// @Router       /auth/token [post]
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ClientID == "" {
		writeError(w, http.StatusBadRequest, "client_id is required")
		return
	}
	if s.clientSecret == "" ||
		subtle.ConstantTimeCompare([]byte(req.ClientSecret), []byte(s.clientSecret)) != 1 {
		writeError(w, http.StatusUnauthorized, "bad credentials")
		return
	}

	token, err := s.issuer.GenerateToken(req.ClientID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token generation failed")
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

// Cache endpoints

// handleCacheStats godoc
// @Summary      Cache statistics
// @Description  Returns per-collection counts, last sync times and queue depth
// @Tags         Cache
// @Produce      json
// @Success      200  {object}  domain.CacheStats
// @Security     BearerAuth
// @Router       /cache/stats [get]
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cacheService.Stats(r.Context()))
}

// handleCacheHealth godoc
// @Summary      Cache health report
// @Description  Reports failed operations, stale temp ids and errored sync streams
// @Tags         Cache
// @Produce      json
// @Success      200  {object}  domain.HealthReport
// @Security     BearerAuth
// @Router       /cache/health [get]
func (s *Server) handleCacheHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cacheService.CheckHealth(r.Context()))
}

// handlePreload godoc
// @Summary      Preload reference data
// @Description  Fetches remote collections into the cache; empty body preloads everything
// @Tags         Cache
// @Accept       json
// @Produce      json
// @Param        request  body      PreloadRequest  false  "Optional single collection"
// @Success      200      {object}  StatusResponse
// @Failure      400      {object}  ErrorResponse  "Unknown collection"
// @Failure      502      {object}  ErrorResponse  "Backend fetch failed"
// @Security     BearerAuth
// @Router       /cache/preload [post]
func (s *Server) handlePreload(w http.ResponseWriter, r *http.Request) {
	var req PreloadRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	var err error
	if req.Collection == "" {
		err = s.cacheService.PreloadAll(r.Context())
	} else {
		err = s.cacheService.Preload(r.Context(), req.Collection)
	}
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "unknown collection")
		default:
			writeError(w, http.StatusBadGateway, "preload failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleClean godoc
// @Summary      Clean old data
// @Description  Sweeps aged tombstones and aged replayable operations
// @Tags         Cache
// @Produce      json
// @Success      200  {object}  domain.CleanupReport
// @Failure      500  {object}  ErrorResponse  "Sweep failed"
// @Security     BearerAuth
// @Router       /cache/clean [post]
func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	report, err := s.cacheService.CleanOldData(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cleanup failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleClearAll godoc
// @Summary      Clear the cache
// @Description  Wipes every collection, the operation queue and sync metadata
// @Tags         Cache
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      500  {object}  ErrorResponse  "Clear failed"
// @Security     BearerAuth
// @Router       /cache [delete]
func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if err := s.cacheService.ClearAll(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "clear failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Sync endpoints

// handleSync godoc
// @Summary      Replay pending operations
// @Description  Drains the operation queue against the backend in FIFO order
// @Tags         Sync
// @Produce      json
// @Success      200  {object}  domain.SyncReport
// @Failure      409  {object}  ErrorResponse  "A replay is already running"
// @Failure      500  {object}  ErrorResponse  "Replay failed"
// @Security     BearerAuth
// @Router       /sync [post]
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	report, err := s.syncService.ProcessPending(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSyncInProgress):
			writeError(w, http.StatusConflict, "sync already in progress")
		default:
			writeError(w, http.StatusInternalServerError, "sync failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Operation queue endpoints

// handleEnqueue godoc
// @Summary      Queue an offline mutation
// @Description  Stores a mutation for later replay and applies it to the cache optimistically. Creates without an entity id get a temporary one.
// @Tags         Operations
// @Accept       json
// @Produce      json
// @Param        request  body      EnqueueRequest  true  "Mutation to queue"
// @Success      201      {object}  domain.PendingOperation
// @Failure      400      {object}  ErrorResponse  "Invalid operation"
// @Security     BearerAuth
// @Router       /operations [post]
func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entityID := req.EntityID
	if entityID == "" && req.Type == domain.OperationCreate {
		entityID = domain.NewTempID()
	}

	op := &domain.PendingOperation{
		Type:       req.Type,
		Collection: req.Collection,
		EntityID:   entityID,
		Payload:    req.Payload,
	}

	stored, err := s.syncService.Enqueue(r.Context(), op)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid operation")
		default:
			writeError(w, http.StatusInternalServerError, "enqueue failed")
		}
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// handlePendingCount godoc
// @Summary      Pending operation count
// @Tags         Operations
// @Produce      json
// @Success      200  {object}  CountResponse
// @Failure      500  {object}  ErrorResponse  "Store unreadable"
// @Security     BearerAuth
// @Router       /operations/pending [get]
func (s *Server) handlePendingCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.syncService.PendingCount(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "count failed")
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: count})
}

// handleListFailed godoc
// @Summary      List failed operations
// @Description  Operations that exhausted automatic retries and need an operator decision
// @Tags         Operations
// @Produce      json
// @Success      200  {array}   domain.PendingOperation
// @Failure      500  {object}  ErrorResponse  "Store unreadable"
// @Security     BearerAuth
// @Router       /operations/failed [get]
func (s *Server) handleListFailed(w http.ResponseWriter, r *http.Request) {
	ops, err := s.syncService.ListFailed(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	if ops == nil {
		ops = []*domain.PendingOperation{}
	}
	writeJSON(w, http.StatusOK, ops)
}

// handleRetryOperation godoc
// @Summary      Retry a failed operation
// @Description  Resets retries so the next replay picks the operation up again
// @Tags         Operations
// @Produce      json
// @Param        id   path      int  true  "Operation id"
// @Success      200  {object}  StatusResponse
// @Failure      404  {object}  ErrorResponse  "Unknown operation"
// @Security     BearerAuth
// @Router       /operations/{id}/retry [post]
func (s *Server) handleRetryOperation(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid operation id")
		return
	}

	if err := s.syncService.RetryOperation(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "operation not found")
		default:
			writeError(w, http.StatusInternalServerError, "retry failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDiscardOperation godoc
// @Summary      Discard an operation
// @Description  Deletes a queued operation unconditionally
// @Tags         Operations
// @Produce      json
// @Param        id   path      int  true  "Operation id"
// @Success      200  {object}  StatusResponse
// @Failure      400  {object}  ErrorResponse  "Invalid id"
// @Security     BearerAuth
// @Router       /operations/{id} [delete]
func (s *Server) handleDiscardOperation(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid operation id")
		return
	}

	if err := s.syncService.DiscardOperation(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "discard failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRetryAll godoc
// @Summary      Retry every failed operation
// @Tags         Operations
// @Produce      json
// @Success      200  {object}  CountResponse
// @Failure      500  {object}  ErrorResponse  "Store unreadable"
// @Security     BearerAuth
// @Router       /operations/retry-all [post]
func (s *Server) handleRetryAll(w http.ResponseWriter, r *http.Request) {
	count, err := s.syncService.RetryAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "retry all failed")
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: count})
}

// handleDiscardFailed godoc
// @Summary      Discard every failed operation
// @Tags         Operations
// @Produce      json
// @Success      200  {object}  CountResponse
// @Failure      500  {object}  ErrorResponse  "Store unreadable"
// @Security     BearerAuth
// @Router       /operations/failed [delete]
func (s *Server) handleDiscardFailed(w http.ResponseWriter, r *http.Request) {
	count, err := s.syncService.DiscardAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "discard all failed")
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: count})
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"

	"dev/bravebird/page-verifier/pkg/config"
	"dev/bravebird/page-verifier/pkg/models"
	"dev/bravebird/page-verifier/pkg/temporal/workflows"
)

// RunStore is the run history the handlers read and write
type RunStore interface {
	CreateRun(ctx context.Context, run *models.VerificationRun) error
	GetRun(ctx context.Context, id string) (*models.VerificationRun, error)
	ListRuns(ctx context.Context, limit int) ([]models.VerificationRun, error)
	GetSteps(ctx context.Context, runID string) ([]models.StepResult, error)
	UpdateRunStatus(ctx context.Context, id string, status models.RunStatus, errorMsg string) error
	MarkStarted(ctx context.Context, id, temporalRunID string) error
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Handlers contains API handlers
type Handlers struct {
	store          RunStore
	temporalClient client.Client
	defaults       config.VerifyConfig
	screenshotDir  string
	pollInterval   time.Duration
	upgrader       websocket.Upgrader
}

// NewHandlers creates new API handlers. store may be nil.
func NewHandlers(store RunStore, temporalClient client.Client, defaults config.VerifyConfig, screenshotDir string) *Handlers {
	return &Handlers{
		store:          store,
		temporalClient: temporalClient,
		defaults:       defaults,
		screenshotDir:  screenshotDir,
		pollInterval:   500 * time.Millisecond,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// NewRouter wires the handlers to their routes
func NewRouter(h *Handlers) *mux.Router {
	router := mux.NewRouter()

	// Health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	apiRouter := router.PathPrefix("/api").Subrouter()

	apiRouter.HandleFunc("/verifications", h.StartVerification).Methods("POST")
	apiRouter.HandleFunc("/runs", h.ListRuns).Methods("GET")
	apiRouter.HandleFunc("/runs/{id}", h.GetRun).Methods("GET")
	apiRouter.HandleFunc("/runs/{id}/cancel", h.CancelRun).Methods("POST")

	// WebSocket for real-time updates
	apiRouter.HandleFunc("/runs/{id}/stream", h.StreamRunUpdates).Methods("GET")

	apiRouter.HandleFunc("/screenshots/{id}/{filename}", h.ServeScreenshot).Methods("GET")

	return router
}

// ==================== Verification Handlers ====================

// StartVerification starts a verification workflow
func (h *Handlers) StartVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.temporalClient == nil {
		http.Error(w, "Temporal not available", http.StatusServiceUnavailable)
		return
	}

	var req models.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	input := models.VerificationInput{
		RunID:         uuid.New().String(),
		BaseURL:       req.BaseURL,
		Headless:      h.defaults.Headless,
		CheckResult:   req.CheckResult || h.defaults.CheckResult,
		RetryAttempts: 3,
	}
	if input.BaseURL == "" {
		input.BaseURL = h.defaults.BaseURL
	}
	if req.Headless != nil {
		input.Headless = *req.Headless
	}

	options := client.StartWorkflowOptions{
		ID:        workflows.WorkflowID(input.RunID),
		TaskQueue: config.TaskQueue,
	}

	// Record the run before the workflow exists so its result always has a row
	if h.store != nil {
		run := &models.VerificationRun{
			ID:                 input.RunID,
			BaseURL:            input.BaseURL,
			TemporalWorkflowID: options.ID,
			Status:             models.StatusPending,
		}
		if err := h.store.CreateRun(ctx, run); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	we, err := h.temporalClient.ExecuteWorkflow(ctx, options, workflows.PageVerificationWorkflow, input)
	if err != nil {
		if h.store != nil {
			h.store.UpdateRunStatus(ctx, input.RunID, models.StatusFailed, "Failed to start workflow: "+err.Error())
		}
		http.Error(w, "Failed to start workflow: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if h.store != nil {
		if err := h.store.MarkStarted(ctx, input.RunID, we.GetRunID()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"run_id":      input.RunID,
		"workflow_id": we.GetID(),
		"status":      string(models.StatusRunning),
	})
}

// ListRuns lists recent verification runs
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.store == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxListLimit)
	}

	runs, err := h.store.ListRuns(ctx, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []models.VerificationRun{}
	}

	respondJSON(w, http.StatusOK, runs)
}

// GetRun retrieves a run with its steps
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	if h.store == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	run, err := h.store.GetRun(ctx, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	steps, err := h.store.GetSteps(ctx, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	run.Steps = steps

	respondJSON(w, http.StatusOK, run)
}

// CancelRun cancels a running verification
func (h *Handlers) CancelRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	if h.store == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	run, err := h.store.GetRun(ctx, id)
	if err != nil || run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if run.Status.Terminal() {
		http.Error(w, "Run already finished", http.StatusConflict)
		return
	}

	// A workflow Temporal no longer knows about can only be marked canceled
	if run.TemporalWorkflowID != "" && h.temporalClient != nil {
		err := h.temporalClient.CancelWorkflow(ctx, run.TemporalWorkflowID, run.TemporalRunID)
		var notFound *serviceerror.NotFound
		if err != nil && !errors.As(err, &notFound) {
			http.Error(w, "Failed to cancel workflow: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	if err := h.store.UpdateRunStatus(ctx, id, models.StatusCanceled, "Canceled by user"); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": string(models.StatusCanceled)})
}

// StreamRunUpdates streams run progress via WebSocket until the run finishes
func (h *Handlers) StreamRunUpdates(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx := r.Context()

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	lastStatus := models.RunStatus("")
	lastSteps := -1

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, steps, ok := h.progress(ctx, runID)
			if !ok {
				continue
			}

			// Send update if status or steps changed
			if status == lastStatus && len(steps) == lastSteps {
				continue
			}
			msg := models.WSMessage{
				Type: "run_update",
				Payload: map[string]interface{}{
					"run_id": runID,
					"status": status,
					"steps":  steps,
				},
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
			lastStatus = status
			lastSteps = len(steps)

			if status.Terminal() {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(status)))
				return
			}
		}
	}
}

// progress asks Temporal first and falls back to the store. While the
// verification activity runs, its heartbeats carry the steps finished so far.
func (h *Handlers) progress(ctx context.Context, runID string) (models.RunStatus, []models.StepResult, bool) {
	if h.temporalClient != nil {
		resp, err := h.temporalClient.QueryWorkflow(ctx, workflows.WorkflowID(runID), "", workflows.ProgressQuery)
		if err == nil {
			var result models.VerificationResult
			if resp.Get(&result) == nil && result.Status != "" {
				steps := result.Steps
				if !result.Status.Terminal() {
					if live := h.liveSteps(ctx, runID); len(live) > len(steps) {
						steps = live
					}
				}
				return result.Status, steps, true
			}
		}
	}

	if h.store == nil {
		return "", nil, false
	}
	run, err := h.store.GetRun(ctx, runID)
	if err != nil || run == nil {
		return "", nil, false
	}
	steps, _ := h.store.GetSteps(ctx, runID)
	return run.Status, steps, true
}

// liveSteps decodes the latest heartbeat of the pending verification activity
func (h *Handlers) liveSteps(ctx context.Context, runID string) []models.StepResult {
	resp, err := h.temporalClient.DescribeWorkflowExecution(ctx, workflows.WorkflowID(runID), "")
	if err != nil {
		return nil
	}

	for _, act := range resp.GetPendingActivities() {
		if act.GetActivityType().GetName() != workflows.VerifyPageActivityName || act.GetHeartbeatDetails() == nil {
			continue
		}
		var steps []models.StepResult
		if err := converter.GetDefaultDataConverter().FromPayloads(act.GetHeartbeatDetails(), &steps); err != nil {
			return nil
		}
		return steps
	}
	return nil
}

// ==================== Screenshot Handlers ====================

// ServeScreenshot serves a screenshot file of a run
func (h *Handlers) ServeScreenshot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	// Security: Only allow files from the screenshots directory
	filePath := filepath.Join(h.screenshotDir, filepath.Base(vars["id"]), filepath.Base(vars["filename"]))

	// Check file exists
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.Error(w, "Screenshot not found", http.StatusNotFound)
		return
	}

	// Serve the file
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, filePath)
}

// ==================== Helpers ====================

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

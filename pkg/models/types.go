package models

import (
	"time"
)

// ==================== Check Plan Types ====================

// CheckKind represents the type of a verification step
type CheckKind string

const (
	CheckNavigate    CheckKind = "navigate"     // Load a path relative to the base URL
	CheckVisibleText CheckKind = "visible_text" // Wait for an element owning the text to be visible
	CheckScreenshot  CheckKind = "screenshot"   // Capture a full-page PNG
)

// Check is a single step of a verification plan
type Check struct {
	Kind   CheckKind `json:"kind"`
	Target string    `json:"target"`          // Path, text or output file depending on Kind
	First  bool      `json:"first,omitempty"` // Accept the first of several matches
}

// Navigate returns a navigation check for path
func Navigate(path string) Check {
	return Check{Kind: CheckNavigate, Target: path}
}

// VisibleText returns a visibility check for text
func VisibleText(text string) Check {
	return Check{Kind: CheckVisibleText, Target: text}
}

// Screenshot returns a full-page screenshot check writing to path
func Screenshot(path string) Check {
	return Check{Kind: CheckScreenshot, Target: path}
}

// ==================== Run Types ====================

// RunStatus represents the status of a verification run
type RunStatus string

const (
	StatusPending  RunStatus = "pending"
	StatusRunning  RunStatus = "running"
	StatusSuccess  RunStatus = "success"
	StatusFailed   RunStatus = "failed"
	StatusCanceled RunStatus = "canceled"
)

// Terminal reports whether no further transitions can happen
func (s RunStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCanceled
}

// StepResult represents the outcome of executing a single check
type StepResult struct {
	Index        int       `json:"index"`
	Kind         CheckKind `json:"kind"`
	Target       string    `json:"target"`
	Status       RunStatus `json:"status"`
	Duration     int64     `json:"duration_ms"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// VerificationResult is the outcome of one driver invocation
type VerificationResult struct {
	RunID          string       `json:"run_id"`
	Status         RunStatus    `json:"status"`
	Steps          []StepResult `json:"steps"`
	FailedStep     int          `json:"failed_step"` // -1 when nothing failed or the browser never started
	ScreenshotPath string       `json:"screenshot_path,omitempty"`
	ErrorMessage   string       `json:"error_message,omitempty"`
	StartedAt      time.Time    `json:"started_at"`
	Duration       int64        `json:"duration_ms"`
}

// OK reports whether every check passed
func (r VerificationResult) OK() bool {
	return r.Status == StatusSuccess
}

// VerificationRun is a stored verification run
type VerificationRun struct {
	ID                 string     `json:"id" db:"id"`
	BaseURL            string     `json:"base_url" db:"base_url"`
	TemporalWorkflowID string     `json:"temporal_workflow_id,omitempty" db:"temporal_workflow_id"`
	TemporalRunID      string     `json:"temporal_run_id,omitempty" db:"temporal_run_id"`
	Status             RunStatus  `json:"status" db:"status"`
	ScreenshotPath     string     `json:"screenshot_path,omitempty" db:"screenshot_path"`
	ErrorMessage       string     `json:"error_message,omitempty" db:"error_message"`
	StartedAt          *time.Time `json:"started_at" db:"started_at"`
	CompletedAt        *time.Time `json:"completed_at" db:"completed_at"`

	// Computed fields
	Steps []StepResult `json:"steps,omitempty"`
}

// ==================== API Request/Response Types ====================

// VerificationInput represents input for a verification workflow
type VerificationInput struct {
	RunID         string `json:"run_id"`
	BaseURL       string `json:"base_url"`
	Headless      bool   `json:"headless"`
	CheckResult   bool   `json:"check_result"`
	Timeout       int    `json:"timeout_seconds"`
	RetryAttempts int    `json:"retry_attempts"`
}

// VerifyRequest represents a request to start a verification
type VerifyRequest struct {
	BaseURL     string `json:"base_url"`
	CheckResult bool   `json:"check_result"`
	Headless    *bool  `json:"headless,omitempty"`
}

// ==================== WebSocket Message Types ====================

// WSMessage represents a WebSocket message for real-time updates
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

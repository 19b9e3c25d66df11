// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package models defines data structures for the ACR Transfer task API.
package models

import (
	"sync"
	"time"
)

// TaskStatus represents the current state of a transfer task.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"   // Task created, not yet started
	StatusRunning   TaskStatus = "running"   // Task is currently executing
	StatusCompleted TaskStatus = "completed" // Task completed successfully
	StatusFailed    TaskStatus = "failed"    // Task finished with failed imports
)

// TransferTask represents one asynchronous registry transfer run.
// It tracks task metadata, status, logs, and provides real-time log streaming to clients.
type TransferTask struct {
	ID             string        `json:"id"`                // Unique task identifier (UUID)
	SourceRegistry string        `json:"sourceRegistry"`    // Source registry name
	TargetRegistry string        `json:"targetRegistry"`    // Target registry name
	Status         TaskStatus    `json:"status"`            // Current task status
	Message        string        `json:"message"`           // Human-readable status message
	Output         string        `json:"output"`            // Complete log output (set when task completes)
	ErrorOutput    string        `json:"errorOutput"`       // Error message (if task failed)
	Succeeded      int           `json:"succeeded"`         // Successful imports
	Failed         int           `json:"failed"`            // Failed imports
	StartTime      time.Time     `json:"startTime"`         // Task start timestamp
	EndTime        *time.Time    `json:"endTime,omitempty"` // Task end timestamp (nil if not completed)
	LogLines       []string      `json:"-"`                 // In-memory log lines (not serialized)
	LogListeners   []chan string `json:"-"`                 // Active log stream subscribers (SSE)
	logMu          sync.Mutex    // Mutex for thread-safe log operations
}

// NewTransferTask creates a new transfer task with initial pending status.
func NewTransferTask(id, sourceRegistry, targetRegistry string) *TransferTask {
	return &TransferTask{
		ID:             id,
		SourceRegistry: sourceRegistry,
		TargetRegistry: targetRegistry,
		Status:         StatusPending,
		Message:        "Task created",
		StartTime:      time.Now(),
		LogLines:       []string{},
		LogListeners:   []chan string{},
	}
}

// AddLog appends a log line to the task and broadcasts it to all active listeners.
// Thread-safe for concurrent access.
func (t *TransferTask) AddLog(line string) {
	t.logMu.Lock()
	defer t.logMu.Unlock()

	t.LogLines = append(t.LogLines, line)
	// Broadcast to all SSE listeners
	for _, ch := range t.LogListeners {
		select {
		case ch <- line:
			// Successfully sent
		default:
			// Channel is full or closed, skip this listener
		}
	}
}

// AddLogListener creates a new log listener channel for SSE streaming.
// Returns a buffered channel that will receive new log lines.
func (t *TransferTask) AddLogListener() chan string {
	t.logMu.Lock()
	defer t.logMu.Unlock()

	ch := make(chan string, 100)
	t.LogListeners = append(t.LogListeners, ch)
	return ch
}

// RemoveLogListener removes and closes a log listener channel.
// Should be called when an SSE client disconnects.
func (t *TransferTask) RemoveLogListener(ch chan string) {
	t.logMu.Lock()
	defer t.logMu.Unlock()

	for i, listener := range t.LogListeners {
		if listener == ch {
			t.LogListeners = append(t.LogListeners[:i], t.LogListeners[i+1:]...)
			close(ch)
			break
		}
	}
}

// CloseAllLogListeners closes all active log listener channels.
// Called when task completes to notify all SSE clients.
func (t *TransferTask) CloseAllLogListeners() {
	t.logMu.Lock()
	defer t.logMu.Unlock()

	for _, ch := range t.LogListeners {
		close(ch)
	}
	t.LogListeners = []chan string{}
}

// GetLogLines returns a copy of all log lines.
// Thread-safe for concurrent access.
func (t *TransferTask) GetLogLines() []string {
	t.logMu.Lock()
	defer t.logMu.Unlock()

	logs := make([]string, len(t.LogLines))
	copy(logs, t.LogLines)
	return logs
}

// TransferRequest represents the request body for creating a transfer task.
type TransferRequest struct {
	SourceRegistry     string   `json:"sourceRegistry" binding:"required"` // Source registry name (required)
	TargetRegistry     string   `json:"targetRegistry" binding:"required"` // Target registry name (required)
	TargetSubscription string   `json:"targetSubscription"`                // Target subscription ID (optional)
	Letters            string   `json:"letters"`                           // Repository letter filter (optional)
	IgnorePatterns     []string `json:"ignorePatterns"`                    // Repository ignore patterns (optional)
	MaxRepositories    int      `json:"maxRepositories"`                   // Repository processing cap (optional, 0 = unlimited)
	ParallelImports    int      `json:"parallelImports"`                   // Per-repository import workers (optional, default: 1)
	DelaySeconds       int      `json:"delaySeconds"`                      // Delay between imports in seconds (optional)
	DryRun             bool     `json:"dryRun"`                            // Plan without importing
	Force              bool     `json:"force"`                             // Overwrite every target tag
	ForceOnRetry       bool     `json:"forceOnRetry"`                      // Retry conflicts once with overwrite
}

// InspectRequest represents the request body for inspecting a repository.
type InspectRequest struct {
	Registry   string `json:"registry" binding:"required"`   // Registry name (required)
	Repository string `json:"repository" binding:"required"` // Repository name (required)
}

// InspectResponse represents the response for repository inspection.
type InspectResponse struct {
	Repository string            `json:"repository"` // Inspected repository
	Tags       map[string]string `json:"tags"`       // Tag to manifest digest map
}

// EnvDefaults represents default registry configuration from environment variables.
type EnvDefaults struct {
	SourceRegistry string `json:"sourceRegistry"` // Default source registry
	TargetRegistry string `json:"targetRegistry"` // Default target registry
}

// TaskListRequest represents query parameters for listing tasks.
type TaskListRequest struct {
	Page      int        `form:"page,default=1"`           // Page number (default: 1)
	PageSize  int        `form:"pageSize,default=20"`      // Items per page (default: 20, max: 100)
	Status    TaskStatus `form:"status"`                   // Filter by status (optional)
	SortBy    string     `form:"sortBy,default=startTime"` // Sort field (default: startTime)
	SortOrder string     `form:"sortOrder,default=desc"`   // Sort order: asc/desc (default: desc)
}

// TaskSummary represents a summarized view of a task (without full logs).
type TaskSummary struct {
	ID             string     `json:"id"`
	SourceRegistry string     `json:"sourceRegistry"`
	TargetRegistry string     `json:"targetRegistry"`
	Status         TaskStatus `json:"status"`
	Message        string     `json:"message"`
	Succeeded      int        `json:"succeeded"`
	Failed         int        `json:"failed"`
	StartTime      time.Time  `json:"startTime"`
	EndTime        *time.Time `json:"endTime,omitempty"`
}

// TaskListResponse represents the response for task list queries.
type TaskListResponse struct {
	Total    int            `json:"total"`    // Total number of tasks matching filter
	Page     int            `json:"page"`     // Current page number
	PageSize int            `json:"pageSize"` // Items per page
	Tasks    []*TaskSummary `json:"tasks"`    // Task summaries for current page
}

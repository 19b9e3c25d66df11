// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package handler provides HTTP request handlers for the ACR Transfer API.
package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hmcts/acr-transfer/internal/models"
	apperrors "github.com/hmcts/acr-transfer/internal/pkg/errors"
	"github.com/hmcts/acr-transfer/internal/pkg/logger"
	"github.com/hmcts/acr-transfer/internal/pkg/validator"
	"github.com/hmcts/acr-transfer/internal/repository"
	"github.com/hmcts/acr-transfer/internal/service"
	"github.com/hmcts/acr-transfer/internal/types"
)

// TransferHandler handles HTTP requests related to transfer tasks.
type TransferHandler struct {
	taskService service.TaskService
	config      *types.Config
	logger      logger.Logger
}

// NewTransferHandler creates a new TransferHandler instance.
func NewTransferHandler(taskService service.TaskService, cfg *types.Config, logger logger.Logger) *TransferHandler {
	return &TransferHandler{
		taskService: taskService,
		config:      cfg,
		logger:      logger,
	}
}

// handleError processes errors and sends appropriate HTTP responses.
// It checks if the error is an AppError with status code, otherwise returns 500.
func (h *TransferHandler) handleError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.StatusCode, gin.H{"error": appErr.Message})
	} else {
		h.logger.Error("Unexpected error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// CreateTransfer creates a new transfer task and starts it asynchronously.
//
// Request body (JSON):
//   - sourceRegistry (required): Source registry name
//   - targetRegistry (required): Target registry name
//   - letters, ignorePatterns (optional): Repository filters
//   - maxRepositories, parallelImports, delaySeconds (optional): Scheduling
//   - dryRun, force, forceOnRetry (optional): Import behavior
//
// Response (200 OK):
//
//	{"message": "Transfer started", "id": "task-uuid"}
//
// Error responses: 400 (invalid input), 500 (server error)
func (h *TransferHandler) CreateTransfer(c *gin.Context) {
	var req models.TransferRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Failed to bind JSON request: %v", err)
		h.handleError(c, apperrors.WrapInvalidInput(err, "Invalid request body"))
		return
	}

	if err := validator.ValidateRegistryName(req.SourceRegistry); err != nil {
		h.handleError(c, apperrors.WrapInvalidInput(err, "Invalid source registry"))
		return
	}

	if err := validator.ValidateRegistryName(req.TargetRegistry); err != nil {
		h.handleError(c, apperrors.WrapInvalidInput(err, "Invalid target registry"))
		return
	}

	if req.SourceRegistry == req.TargetRegistry {
		h.handleError(c, apperrors.WrapInvalidInput(
			fmt.Errorf("source and target registry are both %q", req.SourceRegistry),
			"Source and target registry must differ"))
		return
	}

	taskID, err := h.taskService.CreateTask(&req)
	if err != nil {
		h.logger.Error("Failed to create transfer task: %v", err)
		h.handleError(c, apperrors.WrapInternal(err, "Failed to create transfer task"))
		return
	}

	// Execute the transfer asynchronously
	go func() {
		if err := h.taskService.ExecuteTransfer(taskID, &req); err != nil {
			h.logger.Error("[%s] Transfer execution failed: %v", taskID, err)
		}
	}()

	h.logger.Info("Transfer task created: %s (source: %s, target: %s)", taskID, req.SourceRegistry, req.TargetRegistry)

	c.JSON(http.StatusOK, gin.H{
		"message": "Transfer started",
		"id":      taskID,
	})
}

// GetTransferStatus retrieves the status and details of a transfer task by ID.
//
// Path parameter:
//   - id: Task UUID
//
// Response (200 OK): Task object with all details (status, counts, timestamps, etc.)
// Error responses: 404 (task not found), 500 (server error)
func (h *TransferHandler) GetTransferStatus(c *gin.Context) {
	id := c.Param("id")

	task, err := h.taskService.GetTask(id)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			h.handleError(c, apperrors.WrapTaskNotFound(err))
			return
		}
		h.logger.Error("Failed to get task %s: %v", id, err)
		h.handleError(c, apperrors.WrapInternal(err, "Failed to get task"))
		return
	}

	c.JSON(http.StatusOK, task)
}

// StreamLogs streams task logs to the client using Server-Sent Events (SSE).
// It sends historical logs first, then streams new logs in real-time until task completes.
//
// Path parameter:
//   - id: Task UUID
//
// Response format: SSE (data: <log line>\n\n)
// Error responses: 404 (task not found), 500 (server error)
func (h *TransferHandler) StreamLogs(c *gin.Context) {
	id := c.Param("id")

	task, err := h.taskService.GetTask(id)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			h.handleError(c, apperrors.WrapTaskNotFound(err))
			return
		}
		h.logger.Error("Failed to get task %s for log streaming: %v", id, err)
		h.handleError(c, apperrors.WrapInternal(err, "Failed to get task"))
		return
	}

	// Set SSE headers
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	// Send existing logs first
	existingLogs := task.GetLogLines()
	taskStatus := task.Status

	for _, line := range existingLogs {
		fmt.Fprintf(c.Writer, "data: %s\n\n", line)
		c.Writer.Flush()
	}

	// If task is already completed, no need to stream further
	if taskStatus == models.StatusCompleted || taskStatus == models.StatusFailed {
		return
	}

	// Subscribe to new logs
	logChan := task.AddLogListener()
	defer task.RemoveLogListener(logChan)

	// Stream new logs until task completes or client disconnects
	clientGone := c.Request.Context().Done()
	for {
		select {
		case line, ok := <-logChan:
			if !ok {
				// Channel closed, task completed
				return
			}
			fmt.Fprintf(c.Writer, "data: %s\n\n", line)
			c.Writer.Flush()
		case <-clientGone:
			// Client disconnected
			return
		}
	}
}

// GetEnvDefaults returns default registry configuration from environment variables.
//
// Response (200 OK):
//
//	{"sourceRegistry": "hmctssandbox", "targetRegistry": "hmctspublic"}
func (h *TransferHandler) GetEnvDefaults(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sourceRegistry": h.config.Registry.DefaultSourceRegistry,
		"targetRegistry": h.config.Registry.DefaultTargetRegistry,
	})
}

// ListTransfers lists transfer tasks with pagination, filtering, and sorting.
//
// Query parameters:
//   - page (optional): Page number, default 1
//   - pageSize (optional): Items per page, default 20, max 100
//   - status (optional): Filter by status (pending/running/completed/failed)
//   - sortBy (optional): Sort field (startTime/endTime), default startTime
//   - sortOrder (optional): Sort direction (asc/desc), default desc
//
// Response (200 OK):
//
//	{"total": 100, "page": 1, "pageSize": 20, "tasks": [...]}
//
// Error responses: 400 (invalid parameters), 500 (server error)
func (h *TransferHandler) ListTransfers(c *gin.Context) {
	var req models.TaskListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.handleError(c, apperrors.WrapInvalidInput(err, "Invalid query parameters"))
		return
	}

	resp, err := h.taskService.ListTasks(&req)
	if err != nil {
		h.logger.Error("Failed to list tasks: %v", err)
		h.handleError(c, apperrors.WrapInternal(err, "Failed to list tasks"))
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Health performs a health check and returns service status.
//
// Response (200 OK):
//
//	{"status": "ok"}
func (h *TransferHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

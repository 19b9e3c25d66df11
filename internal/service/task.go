// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hmcts/acr-transfer/internal/filter"
	"github.com/hmcts/acr-transfer/internal/models"
	"github.com/hmcts/acr-transfer/internal/pkg/logger"
	"github.com/hmcts/acr-transfer/internal/registry"
	"github.com/hmcts/acr-transfer/internal/repository"
)

// TaskService defines the interface for asynchronous transfer task operations.
type TaskService interface {
	CreateTask(req *models.TransferRequest) (string, error)
	GetTask(id string) (*models.TransferTask, error)
	ExecuteTransfer(taskID string, req *models.TransferRequest) error
	ListTasks(req *models.TaskListRequest) (*models.TaskListResponse, error)
}

// taskService implements the TaskService interface. It runs the same transfer
// pipeline as the CLI, with output mirrored into the task's log buffer.
type taskService struct {
	repo    repository.TaskRepository
	client  registry.Client
	logger  logger.Logger
	timeout int // Transfer run timeout in seconds
}

// NewTaskService creates a new TaskService instance.
func NewTaskService(repo repository.TaskRepository, client registry.Client, log logger.Logger, timeout int) TaskService {
	return &taskService{
		repo:    repo,
		client:  client,
		logger:  log,
		timeout: timeout,
	}
}

// CreateTask creates a new transfer task record in the repository.
// It generates a unique task ID and initializes the task with pending status.
func (s *taskService) CreateTask(req *models.TransferRequest) (string, error) {
	taskID := uuid.New().String()

	task := models.NewTransferTask(taskID, req.SourceRegistry, req.TargetRegistry)

	if err := s.repo.Create(task); err != nil {
		return "", fmt.Errorf("failed to create task: %w", err)
	}

	return taskID, nil
}

// GetTask retrieves a task by ID from the repository.
func (s *taskService) GetTask(id string) (*models.TransferTask, error) {
	return s.repo.Get(id)
}

// ExecuteTransfer runs the transfer pipeline for one task: filter compilation,
// source endpoint resolution, repository selection, and the scheduled imports.
// This method runs asynchronously and should be called in a goroutine.
func (s *taskService) ExecuteTransfer(taskID string, req *models.TransferRequest) error {
	task, err := s.repo.Get(taskID)
	if err != nil {
		return fmt.Errorf("failed to get task: %w", err)
	}

	task.Status = models.StatusRunning
	task.Message = "Transfer in progress..."
	if err := s.repo.Update(task); err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	task.AddLog(fmt.Sprintf("Task started at %s", time.Now().Format(time.RFC3339)))
	s.logger.Info("[%s] Starting transfer: %s -> %s", taskID, req.SourceRegistry, req.TargetRegistry)

	// Mirror the pipeline's output into the task log so SSE clients see the
	// same lines the CLI would print.
	taskLog := newTaskLogger(task, s.logger)

	letterFilter, err := filter.ParseLetterFilter(req.Letters)
	if err != nil {
		return s.handleTaskError(task, "Invalid letter filter", err)
	}
	ignoreFilter := filter.CompileIgnoreFilter(req.IgnorePatterns)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.timeout)*time.Second)
	defer cancel()

	endpoint, err := s.client.ResolveEndpoint(ctx, req.SourceRegistry)
	if err != nil {
		return s.handleTaskError(task, "Failed to resolve source registry", err)
	}

	transfers := NewTransferService(s.client, taskLog)

	selection, err := transfers.SelectRepositories(ctx, req.SourceRegistry, letterFilter, ignoreFilter)
	if err != nil {
		return s.handleTaskError(task, "Failed to list source repositories", err)
	}
	taskLog.Info("Selected %d of %d repositories (%d ignored)",
		len(selection.Eligible), selection.Total, len(selection.Ignored))

	parallel := req.ParallelImports
	if parallel < 1 {
		parallel = 1
	}
	tctx := &TransferContext{
		SourceRegistry:     req.SourceRegistry,
		TargetRegistry:     req.TargetRegistry,
		SourceEndpoint:     endpoint,
		TargetSubscription: req.TargetSubscription,
		Ignored:            selection.Ignored,
		DryRun:             req.DryRun,
		Force:              req.Force,
		ForceOnRetry:       req.ForceOnRetry,
		Delay:              time.Duration(req.DelaySeconds) * time.Second,
	}

	summary, err := transfers.PerformTransfer(ctx, tctx, selection.Eligible, req.MaxRepositories, parallel)
	if err != nil {
		return s.handleTaskError(task, "Transfer run aborted", err)
	}

	endTime := time.Now()
	task.AddLog(fmt.Sprintf("Transfer finished at %s", endTime.Format(time.RFC3339)))

	task.CloseAllLogListeners()

	task.EndTime = &endTime
	task.Output = strings.Join(task.GetLogLines(), "\n")
	task.Succeeded = summary.Succeeded
	task.Failed = len(summary.Failures)

	if summary.Failed() {
		task.Status = models.StatusFailed
		task.Message = fmt.Sprintf("Transfer finished with %d failed import(s)", len(summary.Failures))
		task.ErrorOutput = summary.Failures[0].String()
		s.logger.Error("[%s] Transfer finished with failures", taskID)
	} else {
		task.Status = models.StatusCompleted
		task.Message = "Transfer completed successfully"
		s.logger.Info("[%s] Transfer completed successfully", taskID)
	}

	if updateErr := s.repo.Update(task); updateErr != nil {
		s.logger.Error("[%s] Failed to update task status: %v", taskID, updateErr)
	}

	return nil
}

// handleTaskError updates the task with error information and marks it as failed.
func (s *taskService) handleTaskError(task *models.TransferTask, message string, err error) error {
	task.AddLog(fmt.Sprintf("Error: %v", err))
	task.CloseAllLogListeners()
	task.Status = models.StatusFailed
	task.Message = message
	task.ErrorOutput = err.Error()
	endTime := time.Now()
	task.EndTime = &endTime
	task.Output = strings.Join(task.GetLogLines(), "\n")

	if updateErr := s.repo.Update(task); updateErr != nil {
		s.logger.Error("[%s] Failed to update task: %v", task.ID, updateErr)
	}

	s.logger.Error("[%s] %s: %v", task.ID, message, err)
	return fmt.Errorf("%s: %w", message, err)
}

// ListTasks retrieves a paginated and filtered list of transfer tasks.
// It supports filtering by status, sorting, and pagination.
func (s *taskService) ListTasks(req *models.TaskListRequest) (*models.TaskListResponse, error) {
	tasks, err := s.repo.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	// Filter by status if specified
	filtered := tasks
	if req.Status != "" {
		filtered = []*models.TransferTask{}
		for _, task := range tasks {
			if task.Status == req.Status {
				filtered = append(filtered, task)
			}
		}
	}

	sortTasks(filtered, req.SortBy, req.SortOrder)

	// Pagination
	total := len(filtered)
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	pagedTasks := filtered[start:end]

	// Convert to summary format (excludes full logs)
	summaries := make([]*models.TaskSummary, len(pagedTasks))
	for i, task := range pagedTasks {
		summaries[i] = &models.TaskSummary{
			ID:             task.ID,
			SourceRegistry: task.SourceRegistry,
			TargetRegistry: task.TargetRegistry,
			Status:         task.Status,
			Message:        task.Message,
			Succeeded:      task.Succeeded,
			Failed:         task.Failed,
			StartTime:      task.StartTime,
			EndTime:        task.EndTime,
		}
	}

	return &models.TaskListResponse{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Tasks:    summaries,
	}, nil
}

// sortTasks sorts a slice of tasks in-place by startTime (the default) or
// endTime, in ascending or descending order. Tasks without an end time sort
// after finished ones when ascending, before them when descending.
func sortTasks(tasks []*models.TransferTask, sortBy, sortOrder string) {
	asc := sortOrder == "asc"
	sort.SliceStable(tasks, func(i, j int) bool {
		if sortBy == "endTime" {
			t1, t2 := tasks[i].EndTime, tasks[j].EndTime
			switch {
			case t1 == nil && t2 == nil:
				return false
			case t1 == nil:
				return !asc
			case t2 == nil:
				return asc
			}
			if asc {
				return t1.Before(*t2)
			}
			return t1.After(*t2)
		}
		if asc {
			return tasks[i].StartTime.Before(tasks[j].StartTime)
		}
		return tasks[i].StartTime.After(tasks[j].StartTime)
	})
}

// taskLogger tees pipeline log lines into the task's log buffer while also
// forwarding them to the server logger, prefixed with the task ID.
type taskLogger struct {
	task *models.TransferTask
	base logger.Logger
}

func newTaskLogger(task *models.TransferTask, base logger.Logger) logger.Logger {
	return &taskLogger{task: task, base: base}
}

func (l *taskLogger) Debug(format string, args ...interface{}) {
	l.base.Debug("[%s] %s", l.task.ID, fmt.Sprintf(format, args...))
}

func (l *taskLogger) Info(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	l.task.AddLog(line)
	l.base.Info("[%s] %s", l.task.ID, line)
}

func (l *taskLogger) Warn(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	l.task.AddLog("WARNING: " + line)
	l.base.Warn("[%s] %s", l.task.ID, line)
}

func (l *taskLogger) Error(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	l.task.AddLog("ERROR: " + line)
	l.base.Error("[%s] %s", l.task.ID, line)
}

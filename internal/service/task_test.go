// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

package service

import (
	"errors"
	"testing"
	"time"

	"github.com/hmcts/acr-transfer/internal/models"
	"github.com/hmcts/acr-transfer/internal/registry"
	"github.com/hmcts/acr-transfer/internal/repository"
)

func newTestTaskService(client *fakeClient) (TaskService, repository.TaskRepository) {
	repo := repository.NewInMemoryTaskRepository()
	return NewTaskService(repo, client, quietLogger(), 600), repo
}

func TestCreateTask(t *testing.T) {
	svc, repo := newTestTaskService(newFakeClient())

	req := &models.TransferRequest{
		SourceRegistry: "src",
		TargetRegistry: "dst",
	}

	taskID, err := svc.CreateTask(req)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	if taskID == "" {
		t.Fatal("Expected non-empty task ID")
	}

	task, err := repo.Get(taskID)
	if err != nil {
		t.Fatalf("Failed to get task: %v", err)
	}

	if task.SourceRegistry != "src" || task.TargetRegistry != "dst" {
		t.Errorf("Unexpected registries: %s -> %s", task.SourceRegistry, task.TargetRegistry)
	}

	if task.Status != models.StatusPending {
		t.Errorf("Expected status pending, got %s", task.Status)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	svc, _ := newTestTaskService(newFakeClient())

	_, err := svc.GetTask("non-existent-id")
	if err != repository.ErrTaskNotFound {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
}

func TestExecuteTransferCompletes(t *testing.T) {
	client := newFakeClient()
	client.source["app"] = registry.TagDigestMap{"v1": "d1", "v2": "d2"}
	client.target["app"] = registry.TagDigestMap{"v1": "d1"}

	svc, repo := newTestTaskService(client)

	req := &models.TransferRequest{
		SourceRegistry: "src",
		TargetRegistry: "dst",
	}
	taskID, err := svc.CreateTask(req)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	if err := svc.ExecuteTransfer(taskID, req); err != nil {
		t.Fatalf("ExecuteTransfer failed: %v", err)
	}

	task, _ := repo.Get(taskID)
	if task.Status != models.StatusCompleted {
		t.Errorf("Expected status completed, got %s (%s)", task.Status, task.Message)
	}
	if task.Succeeded != 1 {
		t.Errorf("Expected 1 successful import, got %d", task.Succeeded)
	}
	if task.EndTime == nil {
		t.Error("Expected end time to be set")
	}
	if len(task.GetLogLines()) == 0 {
		t.Error("Expected task log lines to be recorded")
	}
}

func TestExecuteTransferRecordsFailures(t *testing.T) {
	client := newFakeClient()
	client.source["app"] = registry.TagDigestMap{"v1": "d1"}
	client.importErr["app:v1"] = &registry.ImportError{
		Ref:        "app:v1",
		Diagnostic: "network timeout",
		Err:        errors.New("timeout"),
	}

	svc, repo := newTestTaskService(client)

	req := &models.TransferRequest{
		SourceRegistry: "src",
		TargetRegistry: "dst",
	}
	taskID, _ := svc.CreateTask(req)

	if err := svc.ExecuteTransfer(taskID, req); err != nil {
		t.Fatalf("ExecuteTransfer failed: %v", err)
	}

	task, _ := repo.Get(taskID)
	if task.Status != models.StatusFailed {
		t.Errorf("Expected status failed, got %s", task.Status)
	}
	if task.Failed != 1 {
		t.Errorf("Expected 1 failed import, got %d", task.Failed)
	}
	if task.ErrorOutput == "" {
		t.Error("Expected error output to be set")
	}
}

func TestExecuteTransferInvalidLetters(t *testing.T) {
	svc, repo := newTestTaskService(newFakeClient())

	req := &models.TransferRequest{
		SourceRegistry: "src",
		TargetRegistry: "dst",
		Letters:        "a-",
	}
	taskID, _ := svc.CreateTask(req)

	if err := svc.ExecuteTransfer(taskID, req); err == nil {
		t.Fatal("Expected error for malformed letter filter")
	}

	task, _ := repo.Get(taskID)
	if task.Status != models.StatusFailed {
		t.Errorf("Expected status failed, got %s", task.Status)
	}
}

func TestListTasksPagination(t *testing.T) {
	svc, _ := newTestTaskService(newFakeClient())

	for i := 0; i < 25; i++ {
		req := &models.TransferRequest{SourceRegistry: "src", TargetRegistry: "dst"}
		if _, err := svc.CreateTask(req); err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
	}

	resp, err := svc.ListTasks(&models.TaskListRequest{Page: 2, PageSize: 10})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}

	if resp.Total != 25 {
		t.Errorf("Expected total 25, got %d", resp.Total)
	}
	if len(resp.Tasks) != 10 {
		t.Errorf("Expected 10 tasks on page 2, got %d", len(resp.Tasks))
	}
}

func TestSortTasks(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	newTask := func(id string, start time.Time, end *time.Time) *models.TransferTask {
		task := models.NewTransferTask(id, "src", "dst")
		task.StartTime = start
		task.EndTime = end
		return task
	}
	endA := base.Add(time.Hour)
	endB := base.Add(2 * time.Hour)

	tasks := []*models.TransferTask{
		newTask("b", base.Add(time.Minute), &endB),
		newTask("running", base.Add(2*time.Minute), nil),
		newTask("a", base, &endA),
	}

	sortTasks(tasks, "startTime", "desc")
	if tasks[0].ID != "running" || tasks[2].ID != "a" {
		t.Errorf("Unexpected startTime desc order: %s, %s, %s", tasks[0].ID, tasks[1].ID, tasks[2].ID)
	}

	sortTasks(tasks, "startTime", "asc")
	if tasks[0].ID != "a" || tasks[2].ID != "running" {
		t.Errorf("Unexpected startTime asc order: %s, %s, %s", tasks[0].ID, tasks[1].ID, tasks[2].ID)
	}

	// Tasks still running (no end time) sort last ascending, first descending.
	sortTasks(tasks, "endTime", "asc")
	if tasks[0].ID != "a" || tasks[1].ID != "b" || tasks[2].ID != "running" {
		t.Errorf("Unexpected endTime asc order: %s, %s, %s", tasks[0].ID, tasks[1].ID, tasks[2].ID)
	}

	sortTasks(tasks, "endTime", "desc")
	if tasks[0].ID != "running" || tasks[1].ID != "b" || tasks[2].ID != "a" {
		t.Errorf("Unexpected endTime desc order: %s, %s, %s", tasks[0].ID, tasks[1].ID, tasks[2].ID)
	}
}

func TestListTasksFilterByStatus(t *testing.T) {
	svc, repo := newTestTaskService(newFakeClient())

	var ids []string
	for i := 0; i < 3; i++ {
		req := &models.TransferRequest{SourceRegistry: "src", TargetRegistry: "dst"}
		id, _ := svc.CreateTask(req)
		ids = append(ids, id)
	}
	task, _ := repo.Get(ids[0])
	task.Status = models.StatusCompleted
	repo.Update(task)

	resp, err := svc.ListTasks(&models.TaskListRequest{Status: models.StatusPending})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}

	if resp.Total != 2 {
		t.Errorf("Expected 2 pending tasks, got %d", resp.Total)
	}
}

// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hmcts/acr-transfer/internal/models"
	apperrors "github.com/hmcts/acr-transfer/internal/pkg/errors"
	"github.com/hmcts/acr-transfer/internal/pkg/logger"
	"github.com/hmcts/acr-transfer/internal/pkg/validator"
	"github.com/hmcts/acr-transfer/internal/registry"
)

const inspectTimeout = 60 * time.Second

// InspectHandler handles HTTP requests for repository inspection.
type InspectHandler struct {
	client registry.Client
	logger logger.Logger
}

// NewInspectHandler creates a new InspectHandler instance.
func NewInspectHandler(client registry.Client, logger logger.Logger) *InspectHandler {
	return &InspectHandler{
		client: client,
		logger: logger,
	}
}

// handleError processes errors and sends appropriate HTTP responses.
func (h *InspectHandler) handleError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.StatusCode, gin.H{"error": appErr.Message})
	} else {
		h.logger.Error("Unexpected error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// InspectRepository returns the tag-to-digest inventory of one repository.
//
// Request body (JSON):
//   - registry (required): Registry name
//   - repository (required): Repository name
//
// Response (200 OK):
//
//	{"repository": "team/app", "tags": {"v1.2.3": "sha256:..."}}
//
// An unknown repository yields an empty tag map, mirroring transfer planning.
// Error responses: 400 (invalid input), 500 (query failed)
func (h *InspectHandler) InspectRepository(c *gin.Context) {
	var req models.InspectRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, apperrors.WrapInvalidInput(err, "Invalid request body"))
		return
	}

	if err := validator.ValidateRegistryName(req.Registry); err != nil {
		h.handleError(c, apperrors.WrapInvalidInput(err, "Invalid registry name"))
		return
	}

	if err := validator.ValidateRepositoryName(req.Repository); err != nil {
		h.handleError(c, apperrors.WrapInvalidInput(err, "Invalid repository name"))
		return
	}

	h.logger.Info("Inspecting %s/%s", req.Registry, req.Repository)

	ctx, cancel := context.WithTimeout(c.Request.Context(), inspectTimeout)
	defer cancel()

	tags, err := h.client.ListTagDigests(ctx, req.Registry, req.Repository)
	if err != nil {
		h.logger.Error("Failed to inspect %s/%s: %v", req.Registry, req.Repository, err)
		h.handleError(c, apperrors.WrapInternal(err, "Failed to inspect repository"))
		return
	}

	resp := &models.InspectResponse{
		Repository: req.Repository,
		Tags:       make(map[string]string, len(tags)),
	}
	for tag, dgst := range tags {
		resp.Tags[tag] = dgst.String()
	}

	h.logger.Info("Inspection completed: %s/%s (%d tags)", req.Registry, req.Repository, len(resp.Tags))

	c.JSON(http.StatusOK, resp)
}

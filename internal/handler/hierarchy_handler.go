package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lab-asset-api/internal/models"
	"github.com/noah-isme/lab-asset-api/pkg/response"
)

type hierarchyService interface {
	ListFaculties(ctx context.Context) ([]models.Faculty, error)
	ListDepartments(ctx context.Context, facultyID int64) ([]models.Department, error)
	ListLaboratories(ctx context.Context, departmentID int64) ([]models.Laboratory, error)
}

// HierarchyHandler serves the faculty, department and laboratory tree.
type HierarchyHandler struct {
	service hierarchyService
}

// NewHierarchyHandler builds a new handler.
func NewHierarchyHandler(service hierarchyService) *HierarchyHandler {
	return &HierarchyHandler{service: service}
}

// Faculties godoc
// @Summary List faculties
// @Tags Hierarchy
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /hierarchy/faculties [get]
func (h *HierarchyHandler) Faculties(c *gin.Context) {
	faculties, err := h.service.ListFaculties(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, faculties, nil)
}

// Departments godoc
// @Summary List departments of a faculty
// @Tags Hierarchy
// @Produce json
// @Param id path int true "Faculty ID"
// @Success 200 {object} response.Envelope
// @Router /hierarchy/faculties/{id}/departments [get]
func (h *HierarchyHandler) Departments(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	departments, err := h.service.ListDepartments(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, departments, nil)
}

// Laboratories godoc
// @Summary List laboratories of a department
// @Tags Hierarchy
// @Produce json
// @Param id path int true "Department ID"
// @Success 200 {object} response.Envelope
// @Router /hierarchy/departments/{id}/laboratories [get]
func (h *HierarchyHandler) Laboratories(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	labs, err := h.service.ListLaboratories(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, labs, nil)
}

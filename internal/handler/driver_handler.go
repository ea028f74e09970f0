package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/haulwatch/service-tracking/internal/application"
	"github.com/haulwatch/service-tracking/internal/platform/response"
)

// DriverHandler handles HTTP requests for driver profile operations.
type DriverHandler struct {
	service *application.DriverService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(service *application.DriverService) *DriverHandler {
	return &DriverHandler{service: service}
}

// RegisterRoutes registers driver CRUD and group assignment routes.
func (h *DriverHandler) RegisterRoutes(r *gin.RouterGroup) {
	drivers := r.Group("/api/v1/drivers")
	{
		drivers.POST("", h.CreateDriver)
		drivers.GET("", h.ListDrivers)
		drivers.GET("/:id", h.GetDriver)
		drivers.PUT("/:id", h.UpdateDriver)
		drivers.DELETE("/:id", h.DeleteDriver)
	}

	groups := r.Group("/api/v1/groups")
	{
		groups.POST("/:id/driver", h.AssignDriver)
		groups.DELETE("/:id/driver", h.UnassignDriver)
	}
}

// CreateDriver registers a new driver profile.
func (h *DriverHandler) CreateDriver(c *gin.Context) {
	var req application.CreateDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateDriver(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Created(c, result)
}

// ListDrivers returns all driver profiles.
func (h *DriverHandler) ListDrivers(c *gin.Context) {
	page, limit := parsePagination(c)

	result, total, err := h.service.ListDrivers(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Paginated(c, result, total, page, limit)
}

// GetDriver returns a single driver profile by ID.
func (h *DriverHandler) GetDriver(c *gin.Context) {
	driverID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid driver ID")
		return
	}

	result, err := h.service.GetDriver(c.Request.Context(), driverID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, result)
}

// UpdateDriver applies partial updates to a driver profile.
func (h *DriverHandler) UpdateDriver(c *gin.Context) {
	driverID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid driver ID")
		return
	}

	var req application.UpdateDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.UpdateDriver(c.Request.Context(), driverID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, result)
}

// DeleteDriver removes a driver profile.
func (h *DriverHandler) DeleteDriver(c *gin.Context) {
	driverID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid driver ID")
		return
	}

	if err := h.service.DeleteDriver(c.Request.Context(), driverID); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "driver deleted"})
}

// AssignDriver makes the named driver the tracked driver of a group.
func (h *DriverHandler) AssignDriver(c *gin.Context) {
	var req application.AssignDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.AssignDriver(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, result)
}

// UnassignDriver detaches the group's tracked driver.
func (h *DriverHandler) UnassignDriver(c *gin.Context) {
	if err := h.service.UnassignDriver(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "driver unassigned"})
}

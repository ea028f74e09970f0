package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/haulwatch/service-tracking/internal/application"
	"github.com/haulwatch/service-tracking/internal/domain/tracking"
	"github.com/haulwatch/service-tracking/internal/platform/response"
)

// TrackingHandler handles HTTP requests for group tracking operations.
type TrackingHandler struct {
	service *application.TrackingService
}

// NewTrackingHandler creates a new TrackingHandler.
func NewTrackingHandler(service *application.TrackingService) *TrackingHandler {
	return &TrackingHandler{service: service}
}

// RegisterRoutes registers all group tracking routes.
func (h *TrackingHandler) RegisterRoutes(r *gin.RouterGroup) {
	groups := r.Group("/api/v1/groups")
	{
		groups.POST("", h.RegisterGroup)
		groups.GET("", h.ListGroups)
		groups.GET("/:id", h.GetGroupInfo)
		groups.GET("/:id/location", h.LocationUpdate)
		groups.POST("/:id/distance", h.DistanceUpdate)
		groups.PUT("/:id/destination", h.SetDestination)
		groups.DELETE("/:id/destination", h.ClearDestination)
	}
}

// RegisterGroup registers a dispatch group, or renames an existing one.
func (h *TrackingHandler) RegisterGroup(c *gin.Context) {
	var req application.RegisterGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.RegisterGroup(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, result)
}

// ListGroups returns all registered groups.
func (h *TrackingHandler) ListGroups(c *gin.Context) {
	page, limit := parsePagination(c)

	result, total, err := h.service.ListGroups(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Paginated(c, result, total, page, limit)
}

// GetGroupInfo returns the tracking configuration of a group.
func (h *TrackingHandler) GetGroupInfo(c *gin.Context) {
	result, err := h.service.GroupInfo(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, result)
}

// LocationUpdate fetches the group's driver telemetry on demand.
func (h *TrackingHandler) LocationUpdate(c *gin.Context) {
	result, err := h.service.LocationUpdate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, result)
}

// DistanceUpdate computes distance to a destination and starts the
// periodic update loop. The body is optional; without one the group's
// active destination is used.
func (h *TrackingHandler) DistanceUpdate(c *gin.Context) {
	var req application.DistanceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}

	result, err := h.service.DistanceUpdate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, result)
}

// SetDestination stores the group's destination and starts the loop.
func (h *TrackingHandler) SetDestination(c *gin.Context) {
	var req application.SetDestinationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.SetDestination(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, result)
}

// ClearDestination removes the group's destination and stops the loop.
func (h *TrackingHandler) ClearDestination(c *gin.Context) {
	result, err := h.service.ClearDestination(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, result)
}

// respondError maps tracking failures onto HTTP statuses: an
// unreachable tracker is a 503, a failed geocode or distance
// calculation a 422, everything else follows the shared domain error
// mapping.
func respondError(c *gin.Context, err error) {
	var fetchErr *tracking.FetchError
	if errors.As(err, &fetchErr) {
		response.Fail(c, http.StatusServiceUnavailable, "driver tracker unreachable")
		return
	}

	var geoErr *tracking.GeocodeError
	if errors.As(err, &geoErr) {
		response.Fail(c, http.StatusUnprocessableEntity, geoErr.Error())
		return
	}

	var distErr *tracking.DistanceError
	if errors.As(err, &distErr) {
		response.Fail(c, http.StatusUnprocessableEntity, distErr.Error())
		return
	}

	response.Error(c, err)
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}

package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/haulwatch/service-tracking/internal/domain"
	driverDomain "github.com/haulwatch/service-tracking/internal/domain/driver"
	groupDomain "github.com/haulwatch/service-tracking/internal/domain/group"
	"github.com/haulwatch/service-tracking/internal/domain/tracking"
)

// RegisterGroupRequest is the request DTO for registering a dispatch group.
type RegisterGroupRequest struct {
	ID   string `json:"id" binding:"required"`
	Name string `json:"name"`
}

// SetDestinationRequest is the request DTO for pointing a group at a
// destination.
type SetDestinationRequest struct {
	Destination string `json:"destination" binding:"required"`
}

// DistanceRequest is the request DTO for an on-demand distance check.
// An empty destination falls back to the group's active one.
type DistanceRequest struct {
	Destination string `json:"destination"`
}

// GroupDTO is the API response representation of a dispatch group.
type GroupDTO struct {
	ID          string     `json:"id"`
	Name        string     `json:"name,omitempty"`
	Destination string     `json:"destination,omitempty"`
	DriverID    *uuid.UUID `json:"driver_id,omitempty"`
	Tracking    bool       `json:"tracking"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// LocationStatusDTO describes where a driver is right now.
type LocationStatusDTO struct {
	GroupID        string    `json:"group_id"`
	DriverName     string    `json:"driver_name"`
	TruckNumber    string    `json:"truck_number,omitempty"`
	Status         string    `json:"status"`
	SpeedText      string    `json:"speed"`
	Location       string    `json:"location"`
	Offline        bool      `json:"offline"`
	StoppedMinutes int64     `json:"stopped_minutes,omitempty"`
	ObservedAt     time.Time `json:"observed_at"`
}

// DistanceReportDTO is one progress reading toward a destination.
type DistanceReportDTO struct {
	GroupID         string    `json:"group_id"`
	Destination     string    `json:"destination"`
	DriverName      string    `json:"driver_name"`
	Status          string    `json:"status"`
	DistanceMiles   float64   `json:"distance_miles"`
	DistanceText    string    `json:"distance_text"`
	DurationText    string    `json:"duration_text"`
	DurationMinutes float64   `json:"duration_minutes"`
	Method          string    `json:"method"`
	Estimated       bool      `json:"estimated"`
	StoppedMinutes  int64     `json:"stopped_minutes,omitempty"`
	ObservedAt      time.Time `json:"observed_at"`
}

// ExtendedStopAlertDTO reports a driver stopped past the alert threshold.
type ExtendedStopAlertDTO struct {
	GroupID        string `json:"group_id"`
	DriverName     string `json:"driver_name"`
	StoppedMinutes int64  `json:"stopped_minutes"`
	Location       string `json:"location"`
}

// GroupInfoDTO is the full tracking configuration of a group.
type GroupInfoDTO struct {
	GroupID     string     `json:"group_id"`
	Name        string     `json:"name,omitempty"`
	Driver      *DriverDTO `json:"driver,omitempty"`
	Destination string     `json:"destination,omitempty"`
	Tracking    bool       `json:"tracking"`
	Configured  bool       `json:"configured"`
}

// TrackingService coordinates live tracking for dispatch groups: it
// owns the snapshot gate, the stop tracker, the distance resolver, and
// the per-group update loops. All tracking state lives here, keyed by
// group or tracker URL, never in package globals.
type TrackingService struct {
	groups    groupDomain.GroupRepository
	drivers   driverDomain.DriverRepository
	gate      *TelemetryGate
	stops     *StopTracker
	distance  *DistanceResolver
	scheduler *GroupScheduler
	notifier  Notifier
	logger    *zap.Logger
}

// NewTrackingService creates a new TrackingService.
func NewTrackingService(
	groups groupDomain.GroupRepository,
	drivers driverDomain.DriverRepository,
	gate *TelemetryGate,
	stops *StopTracker,
	distance *DistanceResolver,
	scheduler *GroupScheduler,
	notifier Notifier,
	logger *zap.Logger,
) *TrackingService {
	return &TrackingService{
		groups:    groups,
		drivers:   drivers,
		gate:      gate,
		stops:     stops,
		distance:  distance,
		scheduler: scheduler,
		notifier:  notifier,
		logger:    logger,
	}
}

// RegisterGroup registers a dispatch group, or renames one that is
// already registered. Groups are also registered on the fly the first
// time a tracking command references them.
func (s *TrackingService) RegisterGroup(ctx context.Context, req RegisterGroupRequest) (*GroupDTO, error) {
	grp, err := s.groups.FindByID(ctx, req.ID)
	if err == nil {
		grp.Rename(req.Name)
		if err := s.groups.Update(ctx, grp); err != nil {
			s.logger.Error("failed to rename group", zap.Error(err))
			return nil, fmt.Errorf("failed to rename group: %w", err)
		}
		result := s.toGroupDTO(grp)
		return &result, nil
	}
	if !domain.IsNotFound(err) {
		return nil, err
	}

	grp, err = groupDomain.NewGroup(req.ID, req.Name)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	if err := s.groups.Save(ctx, grp); err != nil {
		s.logger.Error("failed to register group", zap.Error(err))
		return nil, fmt.Errorf("failed to register group: %w", err)
	}

	s.logger.Info("group registered", zap.String("group_id", grp.ID()))
	result := s.toGroupDTO(grp)
	return &result, nil
}

// ListGroups returns all groups with pagination.
func (s *TrackingService) ListGroups(ctx context.Context, page, limit int) ([]GroupDTO, int64, error) {
	groups, total, err := s.groups.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list groups: %w", err)
	}
	dtos := make([]GroupDTO, len(groups))
	for i, g := range groups {
		dtos[i] = s.toGroupDTO(g)
	}
	return dtos, total, nil
}

// LocationUpdate fetches the group's driver telemetry and returns the
// current status. The result is also published to the group's channel.
func (s *TrackingService) LocationUpdate(ctx context.Context, groupID string) (*LocationStatusDTO, error) {
	_, drv, err := s.trackedDriver(ctx, groupID)
	if err != nil {
		return nil, err
	}

	snap, err := s.gate.Snapshot(ctx, groupID, drv.TrackerURL())
	if err != nil {
		return nil, err
	}
	s.stops.Observe(snap)

	status := s.buildLocationStatus(groupID, drv, snap)
	s.publishLocation(ctx, groupID, status)
	return &status, nil
}

// DistanceUpdate computes the distance from the driver's current
// location to a destination, makes that destination the group's active
// one, and starts the periodic update loop.
func (s *TrackingService) DistanceUpdate(ctx context.Context, groupID string, req DistanceRequest) (*DistanceReportDTO, error) {
	grp, drv, err := s.trackedDriver(ctx, groupID)
	if err != nil {
		return nil, err
	}

	destination := req.Destination
	if strings.TrimSpace(destination) == "" {
		destination = grp.Destination()
	}
	if destination == "" {
		return nil, domain.NewValidationError("destination is required")
	}

	snap, err := s.gate.Snapshot(ctx, groupID, drv.TrackerURL())
	if err != nil {
		return nil, err
	}
	s.stops.Observe(snap)

	if snap.Offline() {
		return nil, &tracking.DistanceError{Reason: "driver location unavailable"}
	}

	dist, err := s.distance.Resolve(ctx, groupID, snap.Location, destination)
	if err != nil {
		return nil, err
	}

	// The destination becomes active only after a successful first
	// calculation.
	if err := grp.SetDestination(destination); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	if err := s.groups.Update(ctx, grp); err != nil {
		s.logger.Error("failed to store destination", zap.Error(err))
		return nil, fmt.Errorf("failed to store destination: %w", err)
	}
	s.startLoop(grp.ID())

	report := s.buildDistanceReport(groupID, grp.Destination(), snap, dist)
	s.publishProgress(ctx, groupID, report)

	s.logger.Info("distance update",
		zap.String("group_id", groupID),
		zap.Float64("miles", dist.Miles),
		zap.String("method", dist.Method),
	)
	return &report, nil
}

// SetDestination stores a destination and starts the update loop
// without computing a first distance.
func (s *TrackingService) SetDestination(ctx context.Context, groupID string, req SetDestinationRequest) (*GroupDTO, error) {
	grp, err := s.getOrCreateGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	if err := grp.SetDestination(req.Destination); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	if err := s.groups.Update(ctx, grp); err != nil {
		s.logger.Error("failed to store destination", zap.Error(err))
		return nil, fmt.Errorf("failed to store destination: %w", err)
	}
	s.startLoop(grp.ID())

	s.logger.Info("destination set",
		zap.String("group_id", groupID),
		zap.String("destination", grp.Destination()),
	)
	result := s.toGroupDTO(grp)
	return &result, nil
}

// ClearDestination removes the group's destination and stops its
// update loop. Clearing a group that has no destination is a no-op.
func (s *TrackingService) ClearDestination(ctx context.Context, groupID string) (*GroupDTO, error) {
	grp, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	if grp.HasDestination() {
		grp.ClearDestination()
		if err := s.groups.Update(ctx, grp); err != nil {
			s.logger.Error("failed to clear destination", zap.Error(err))
			return nil, fmt.Errorf("failed to clear destination: %w", err)
		}
	}
	s.scheduler.Stop(groupID)

	s.logger.Info("destination cleared", zap.String("group_id", groupID))
	result := s.toGroupDTO(grp)
	return &result, nil
}

// GroupInfo returns the tracking configuration of a group. Unknown
// groups report as unconfigured rather than erroring, since any group
// may call in before registering.
func (s *TrackingService) GroupInfo(ctx context.Context, groupID string) (*GroupInfoDTO, error) {
	grp, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		if domain.IsNotFound(err) {
			return &GroupInfoDTO{GroupID: groupID}, nil
		}
		return nil, err
	}

	info := GroupInfoDTO{
		GroupID:     grp.ID(),
		Name:        grp.Name(),
		Destination: grp.Destination(),
		Tracking:    s.scheduler.Running(grp.ID()),
	}
	if driverID := grp.DriverID(); driverID != nil {
		drv, err := s.drivers.FindByID(ctx, *driverID)
		if err == nil {
			dto := toDriverDTO(drv, grp.ID())
			info.Driver = &dto
			info.Configured = true
		} else if !domain.IsNotFound(err) {
			return nil, err
		}
	}
	return &info, nil
}

// ResumeLoops restarts update loops for every group that had an active
// destination when the service last shut down.
func (s *TrackingService) ResumeLoops(ctx context.Context) error {
	groups, err := s.groups.ListWithDestination(ctx)
	if err != nil {
		return fmt.Errorf("failed to list groups with destinations: %w", err)
	}
	for _, grp := range groups {
		s.startLoop(grp.ID())
	}
	s.logger.Info("update loops resumed", zap.Int("count", len(groups)))
	return nil
}

// Shutdown stops every update loop and waits for them to exit.
func (s *TrackingService) Shutdown() {
	s.scheduler.StopAll()
}

func (s *TrackingService) startLoop(groupID string) {
	s.scheduler.Start(groupID, s.tickFor(groupID))
}

// tickFor builds the periodic update for one group. A tick that cannot
// proceed skips and keeps the loop alive; only a cleared destination or
// a deleted group ends it.
func (s *TrackingService) tickFor(groupID string) TickFunc {
	return func(ctx context.Context) (bool, error) {
		grp, err := s.groups.FindByID(ctx, groupID)
		if err != nil {
			if domain.IsNotFound(err) {
				return true, nil
			}
			return false, err
		}
		if !grp.HasDestination() {
			return true, nil
		}

		driverID := grp.DriverID()
		if driverID == nil {
			s.logger.Warn("no driver assigned, skipping update",
				zap.String("group_id", groupID))
			return false, nil
		}
		drv, err := s.drivers.FindByID(ctx, *driverID)
		if err != nil {
			if domain.IsNotFound(err) {
				s.logger.Warn("assigned driver missing, skipping update",
					zap.String("group_id", groupID))
				return false, nil
			}
			return false, err
		}

		snap, err := s.gate.Snapshot(ctx, groupID, drv.TrackerURL())
		if err != nil {
			return false, err
		}
		if snap.Offline() {
			s.logger.Warn("driver offline, skipping update",
				zap.String("group_id", groupID))
			return false, nil
		}
		s.stops.Observe(snap)

		if fired, minutes := s.stops.CheckExtendedStop(drv.TrackerURL()); fired {
			s.publishStopAlert(ctx, groupID, ExtendedStopAlertDTO{
				GroupID:        groupID,
				DriverName:     snap.DriverName,
				StoppedMinutes: minutes,
				Location:       snap.Location,
			})
		}

		dist, err := s.distance.Resolve(ctx, groupID, snap.Location, grp.Destination())
		if err != nil {
			return false, err
		}

		report := s.buildDistanceReport(groupID, grp.Destination(), snap, dist)
		s.publishProgress(ctx, groupID, report)
		return false, nil
	}
}

func (s *TrackingService) trackedDriver(ctx context.Context, groupID string) (*groupDomain.Group, *driverDomain.Driver, error) {
	grp, err := s.getOrCreateGroup(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}
	driverID := grp.DriverID()
	if driverID == nil {
		return nil, nil, domain.NewValidationError("no driver assigned to this group")
	}
	drv, err := s.drivers.FindByID(ctx, *driverID)
	if err != nil {
		return nil, nil, err
	}
	return grp, drv, nil
}

func (s *TrackingService) getOrCreateGroup(ctx context.Context, groupID string) (*groupDomain.Group, error) {
	grp, err := s.groups.FindByID(ctx, groupID)
	if err == nil {
		return grp, nil
	}
	if !domain.IsNotFound(err) {
		return nil, err
	}

	grp, err = groupDomain.NewGroup(groupID, "")
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	if err := s.groups.Save(ctx, grp); err != nil {
		return nil, fmt.Errorf("failed to register group: %w", err)
	}
	s.logger.Info("group registered on first use", zap.String("group_id", groupID))
	return grp, nil
}

func (s *TrackingService) buildLocationStatus(groupID string, drv *driverDomain.Driver, snap tracking.Snapshot) LocationStatusDTO {
	offline := snap.Offline()

	statusText := string(snap.Status())
	if offline {
		statusText = "offline"
	}

	location := snap.Location
	if !offline {
		location = tracking.ShortenLocation(snap.Location)
	}

	dto := LocationStatusDTO{
		GroupID:     groupID,
		DriverName:  drv.Name(),
		TruckNumber: snap.TruckNumber,
		Status:      statusText,
		SpeedText:   snap.SpeedText,
		Location:    location,
		Offline:     offline,
		ObservedAt:  snap.ObservedAt,
	}
	dto.StoppedMinutes = s.stoppedMinutes(snap)
	return dto
}

func (s *TrackingService) buildDistanceReport(groupID, destination string, snap tracking.Snapshot, dist tracking.Distance) DistanceReportDTO {
	return DistanceReportDTO{
		GroupID:         groupID,
		Destination:     destination,
		DriverName:      snap.DriverName,
		Status:          string(snap.Status()),
		DistanceMiles:   dist.Miles,
		DistanceText:    dist.DistanceText,
		DurationText:    dist.DurationText,
		DurationMinutes: dist.DurationMinutes,
		Method:          dist.Method,
		Estimated:       dist.Estimated(),
		StoppedMinutes:  s.stoppedMinutes(snap),
		ObservedAt:      snap.ObservedAt,
	}
}

// stoppedMinutes returns the whole minutes of the driver's open stop
// episode, but only when the snapshot itself shows a stopped driver.
func (s *TrackingService) stoppedMinutes(snap tracking.Snapshot) int64 {
	if snap.Status() != tracking.StatusStopped {
		return 0
	}
	stopped, ok := s.stops.StoppedFor(snap.SourceURL)
	if !ok {
		return 0
	}
	return int64(stopped / time.Minute)
}

func (s *TrackingService) toGroupDTO(grp *groupDomain.Group) GroupDTO {
	return GroupDTO{
		ID:          grp.ID(),
		Name:        grp.Name(),
		Destination: grp.Destination(),
		DriverID:    grp.DriverID(),
		Tracking:    s.scheduler.Running(grp.ID()),
		CreatedAt:   grp.CreatedAt(),
		UpdatedAt:   grp.UpdatedAt(),
	}
}

func (s *TrackingService) publishLocation(ctx context.Context, groupID string, status LocationStatusDTO) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.LocationUpdated(ctx, groupID, status); err != nil {
		s.logger.Error("failed to publish location update",
			zap.String("group_id", groupID), zap.Error(err))
	}
}

func (s *TrackingService) publishProgress(ctx context.Context, groupID string, report DistanceReportDTO) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.ProgressUpdated(ctx, groupID, report); err != nil {
		s.logger.Error("failed to publish progress update",
			zap.String("group_id", groupID), zap.Error(err))
	}
}

func (s *TrackingService) publishStopAlert(ctx context.Context, groupID string, alert ExtendedStopAlertDTO) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.ExtendedStop(ctx, groupID, alert); err != nil {
		s.logger.Error("failed to publish extended stop alert",
			zap.String("group_id", groupID), zap.Error(err))
	}
}

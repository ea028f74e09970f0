package application

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/haulwatch/service-tracking/internal/domain"
	driverDomain "github.com/haulwatch/service-tracking/internal/domain/driver"
	groupDomain "github.com/haulwatch/service-tracking/internal/domain/group"
	"github.com/haulwatch/service-tracking/internal/domain/tracking"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

// --- Provider fakes ---

type fakeMaps struct {
	mu            sync.Mutex
	enabled       bool
	matrixEnabled bool
	geocodeFn     func(query string) (tracking.Coordinates, bool, error)
	roadFn        func(origin, destination string) (tracking.Distance, bool, error)
	geocodeCalls  []string
	roadCalls     int
}

func (f *fakeMaps) Enabled() bool       { return f.enabled }
func (f *fakeMaps) MatrixEnabled() bool { return f.matrixEnabled }

func (f *fakeMaps) Geocode(_ context.Context, query string) (tracking.Coordinates, bool, error) {
	f.mu.Lock()
	f.geocodeCalls = append(f.geocodeCalls, query)
	f.mu.Unlock()
	if f.geocodeFn == nil {
		return tracking.Coordinates{}, false, nil
	}
	return f.geocodeFn(query)
}

func (f *fakeMaps) RoadDistance(_ context.Context, origin, destination string) (tracking.Distance, bool, error) {
	f.mu.Lock()
	f.roadCalls++
	f.mu.Unlock()
	if f.roadFn == nil {
		return tracking.Distance{}, false, nil
	}
	return f.roadFn(origin, destination)
}

type fakePublic struct {
	mu              sync.Mutex
	searchFn        func(query string) (tracking.Coordinates, bool, error)
	structuredFn    func(addr tracking.StreetAddress) (tracking.Coordinates, bool, error)
	searchQueries   []string
	structuredCalls []tracking.StreetAddress
}

func (f *fakePublic) Search(_ context.Context, query string) (tracking.Coordinates, bool, error) {
	f.mu.Lock()
	f.searchQueries = append(f.searchQueries, query)
	f.mu.Unlock()
	if f.searchFn == nil {
		return tracking.Coordinates{}, false, nil
	}
	return f.searchFn(query)
}

func (f *fakePublic) SearchStructured(_ context.Context, addr tracking.StreetAddress) (tracking.Coordinates, bool, error) {
	f.mu.Lock()
	f.structuredCalls = append(f.structuredCalls, addr)
	f.mu.Unlock()
	if f.structuredFn == nil {
		return tracking.Coordinates{}, false, nil
	}
	return f.structuredFn(addr)
}

type fakeRouter struct {
	mu      sync.Mutex
	routeFn func(from, to tracking.Coordinates) (tracking.Distance, bool, error)
	calls   int
}

func (f *fakeRouter) Route(_ context.Context, from, to tracking.Coordinates) (tracking.Distance, bool, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.routeFn == nil {
		return tracking.Distance{}, false, nil
	}
	return f.routeFn(from, to)
}

type fakeFetcher struct {
	mu          sync.Mutex
	fetchFn     func(sourceURL string) (string, error)
	calls       int
	inFlight    int
	maxInFlight int
	block       chan struct{}
}

func (f *fakeFetcher) Fetch(_ context.Context, sourceURL string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if f.fetchFn == nil {
		return "", nil
	}
	return f.fetchFn(sourceURL)
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFetcher) maxInFlightCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

type recordingNotifier struct {
	mu         sync.Mutex
	locations  []LocationStatusDTO
	progresses []DistanceReportDTO
	alerts     []ExtendedStopAlertDTO
}

func (n *recordingNotifier) LocationUpdated(_ context.Context, _ string, status LocationStatusDTO) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.locations = append(n.locations, status)
	return nil
}

func (n *recordingNotifier) ProgressUpdated(_ context.Context, _ string, report DistanceReportDTO) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.progresses = append(n.progresses, report)
	return nil
}

func (n *recordingNotifier) ExtendedStop(_ context.Context, _ string, alert ExtendedStopAlertDTO) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return nil
}

func (n *recordingNotifier) progressCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.progresses)
}

func (n *recordingNotifier) alertCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

// --- In-memory repositories ---

type memGroupRepo struct {
	mu     sync.Mutex
	groups map[string]*groupDomain.Group
}

func newMemGroupRepo() *memGroupRepo {
	return &memGroupRepo{groups: make(map[string]*groupDomain.Group)}
}

func (r *memGroupRepo) FindByID(_ context.Context, id string) (*groupDomain.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	grp, ok := r.groups[id]
	if !ok {
		return nil, domain.NewNotFoundError("Group", id)
	}
	return grp, nil
}

func (r *memGroupRepo) FindByDriverID(_ context.Context, driverID uuid.UUID) (*groupDomain.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, grp := range r.groups {
		if id := grp.DriverID(); id != nil && *id == driverID {
			return grp, nil
		}
	}
	return nil, domain.NewNotFoundError("Group", driverID.String())
}

func (r *memGroupRepo) ListAll(_ context.Context, page, limit int) ([]*groupDomain.Group, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*groupDomain.Group, 0, len(r.groups))
	for _, grp := range r.groups {
		all = append(all, grp)
	}
	return all, int64(len(all)), nil
}

func (r *memGroupRepo) ListWithDestination(_ context.Context) ([]*groupDomain.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*groupDomain.Group
	for _, grp := range r.groups {
		if grp.HasDestination() {
			out = append(out, grp)
		}
	}
	return out, nil
}

func (r *memGroupRepo) Save(_ context.Context, grp *groupDomain.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[grp.ID()]; ok {
		return domain.NewConflictError("group already exists")
	}
	r.groups[grp.ID()] = grp
	return nil
}

func (r *memGroupRepo) Update(_ context.Context, grp *groupDomain.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[grp.ID()]; !ok {
		return domain.NewNotFoundError("Group", grp.ID())
	}
	r.groups[grp.ID()] = grp
	return nil
}

func (r *memGroupRepo) AssignDriver(_ context.Context, groupID string, driverID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	target, ok := r.groups[groupID]
	if !ok {
		return domain.NewNotFoundError("Group", groupID)
	}
	for _, grp := range r.groups {
		if id := grp.DriverID(); id != nil && *id == driverID {
			grp.UnassignDriver()
		}
	}
	target.AssignDriver(driverID)
	return nil
}

func (r *memGroupRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.groups, id)
	return nil
}

type memDriverRepo struct {
	mu      sync.Mutex
	drivers map[uuid.UUID]*driverDomain.Driver
}

func newMemDriverRepo() *memDriverRepo {
	return &memDriverRepo{drivers: make(map[uuid.UUID]*driverDomain.Driver)}
}

func (r *memDriverRepo) FindByID(_ context.Context, id uuid.UUID) (*driverDomain.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	drv, ok := r.drivers[id]
	if !ok {
		return nil, domain.NewNotFoundError("Driver", id.String())
	}
	return drv, nil
}

func (r *memDriverRepo) FindByName(_ context.Context, name string) (*driverDomain.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, drv := range r.drivers {
		if strings.EqualFold(drv.Name(), name) {
			return drv, nil
		}
	}
	return nil, domain.NewNotFoundError("Driver", name)
}

func (r *memDriverRepo) ListAll(_ context.Context, page, limit int) ([]*driverDomain.Driver, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*driverDomain.Driver, 0, len(r.drivers))
	for _, drv := range r.drivers {
		all = append(all, drv)
	}
	return all, int64(len(all)), nil
}

func (r *memDriverRepo) Save(_ context.Context, drv *driverDomain.Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[drv.ID()] = drv
	return nil
}

func (r *memDriverRepo) Update(_ context.Context, drv *driverDomain.Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.drivers[drv.ID()]; !ok {
		return domain.NewNotFoundError("Driver", drv.ID().String())
	}
	r.drivers[drv.ID()] = drv
	return nil
}

func (r *memDriverRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drivers, id)
	return nil
}

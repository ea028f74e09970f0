//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/haulwatch/service-tracking/internal/application"
	"github.com/haulwatch/service-tracking/internal/domain/tracking"
	"github.com/haulwatch/service-tracking/internal/events"
	"github.com/haulwatch/service-tracking/internal/platform/kafka"
	"github.com/haulwatch/service-tracking/internal/repository"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// trackingStack holds wired-up tracking service components. Telemetry
// and geocoding are scripted, so tests exercise everything except the
// browser and the live map providers.
type trackingStack struct {
	Tracking *application.TrackingService
	Drivers  *application.DriverService
	Fetcher  *scriptedFetcher
	Cleanup  func()
}

// setupContainers starts PostgreSQL and Kafka testcontainers and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	// Start PostgreSQL container with log-based wait strategy.
	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_tracking",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_tracking sslmode=disable", pgHost, pgPort.Port())

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, db.AutoMigrate(&repository.DriverModel{}, &repository.GroupModel{}))

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	// Pre-create required topics.
	createTopics(t, kafkaBrokers, events.TopicTrackingEvents)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupTrackingStack wires up the full tracking service stack. The
// update interval controls how often per-group loops tick; tests that
// only need the synchronous path pass something long.
func setupTrackingStack(t *testing.T, db *gorm.DB, brokers []string, updateInterval time.Duration) *trackingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	groupRepo := repository.NewGormGroupRepository(db)
	driverRepo := repository.NewGormDriverRepository(db)

	fetcher := &scriptedFetcher{
		page: telemetryPage("Cole Hutson", "TRK-402", "52.0 mph", "I-80 W, Elm Creek, NE 68836"),
	}
	// Short snapshot TTL so every loop tick reads fresh telemetry.
	gate := application.NewTelemetryGate(fetcher, 4, 5*time.Second, 200*time.Millisecond, logger)
	stops := application.NewStopTracker(45*time.Minute, logger)

	geocoder := &stubGeocoder{coords: map[string]tracking.Coordinates{
		"elm creek": {Lat: 40.7152, Lon: -99.8651},
		"lincoln":   {Lat: 40.8137, Lon: -96.7026},
	}}
	geo := application.NewGeoResolver(nil, geocoder, time.Hour, logger)
	router := &stubRouter{dist: tracking.Distance{
		Miles:           171.3,
		DistanceText:    "171.3 mi",
		DurationText:    "2.6 hr",
		DurationMinutes: 158,
		Method:          tracking.MethodOSRM,
	}}
	distance := application.NewDistanceResolver(nil, router, geo, time.Minute, logger)
	scheduler := application.NewGroupScheduler(updateInterval, logger)

	producer := kafka.NewProducer(brokers, logger)
	notifier := events.NewKafkaNotifier(producer, logger)

	trackingSvc := application.NewTrackingService(groupRepo, driverRepo, gate, stops, distance, scheduler, notifier, logger)
	driverSvc := application.NewDriverService(driverRepo, groupRepo, logger)

	return &trackingStack{
		Tracking: trackingSvc,
		Drivers:  driverSvc,
		Fetcher:  fetcher,
		Cleanup: func() {
			trackingSvc.Shutdown()
			_ = producer.Close()
		},
	}
}

// scriptedFetcher serves canned telemetry page text instead of driving
// a browser.
type scriptedFetcher struct {
	mu   sync.Mutex
	page string
}

func (f *scriptedFetcher) Fetch(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.page, nil
}

func (f *scriptedFetcher) setPage(page string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.page = page
}

// stubGeocoder resolves addresses by substring match against a fixed
// table. Keys are lowercase.
type stubGeocoder struct {
	coords map[string]tracking.Coordinates
}

func (g *stubGeocoder) Search(_ context.Context, query string) (tracking.Coordinates, bool, error) {
	lower := strings.ToLower(query)
	for needle, c := range g.coords {
		if strings.Contains(lower, needle) {
			return c, true, nil
		}
	}
	return tracking.Coordinates{}, false, nil
}

func (g *stubGeocoder) SearchStructured(_ context.Context, _ tracking.StreetAddress) (tracking.Coordinates, bool, error) {
	return tracking.Coordinates{}, false, nil
}

// stubRouter returns a fixed road distance for any coordinate pair.
type stubRouter struct {
	dist tracking.Distance
}

func (r *stubRouter) Route(_ context.Context, _, _ tracking.Coordinates) (tracking.Distance, bool, error) {
	return r.dist, true, nil
}

// telemetryPage renders page text the way ELD portals lay it out,
// labels and values on separate lines.
func telemetryPage(name, truck, speed, location string) string {
	return fmt.Sprintf("Name\n\n%s\n\nTruck Number\n\n%s\n\nSpeed\n\n%s\n\nCurrent Location\n\n%s\n",
		name, truck, speed, location)
}

// offlineTelemetryPage renders a page for a tracker that has lost
// signal.
func offlineTelemetryPage(name, truck string) string {
	return telemetryPage(name, truck, "N/A", "Open in Google Maps")
}

// seedTrackedGroup inserts a driver and a dispatch group already
// following it, and returns the driver ID.
func seedTrackedGroup(t *testing.T, db *gorm.DB, groupID, driverName string) uuid.UUID {
	t.Helper()
	now := time.Now().UTC()
	driverID := uuid.New()

	driver := repository.DriverModel{
		ID:         driverID,
		Name:       driverName,
		UnitNumber: "TRK-402",
		TrackerURL: fmt.Sprintf("https://eld.example.com/track/%s", driverID),
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, db.Create(&driver).Error, "failed to seed driver")

	group := repository.GroupModel{
		ID:        groupID,
		Name:      "Integration dispatch",
		DriverID:  &driverID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, db.Create(&group).Error, "failed to seed group")
	return driverID
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}

// Climate Sync Core - TRVZB external temperature coordinator
//
// This is the main entry point for the climate sync service. It keeps
// thermostatic radiator valves regulating against their zone's ambient
// temperature sensor instead of their own internal probe:
//   - Discovers TRVZB actuators from the inventory catalog
//   - Pins each valve's mode selector to the external temperature option
//   - Streams zone sensor readings into each valve's external input
//   - Re-converges periodically when state change events are missed
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/climate-sync-core/migrations"

	"github.com/nerrad567/climate-sync-core/internal/actions"
	"github.com/nerrad567/climate-sync-core/internal/api"
	"github.com/nerrad567/climate-sync-core/internal/climatesync"
	"github.com/nerrad567/climate-sync-core/internal/infrastructure/config"
	"github.com/nerrad567/climate-sync-core/internal/infrastructure/database"
	"github.com/nerrad567/climate-sync-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/climate-sync-core/internal/infrastructure/logging"
	"github.com/nerrad567/climate-sync-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/climate-sync-core/internal/inventory"
	"github.com/nerrad567/climate-sync-core/internal/statestore"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Climate Sync Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise inventory registry
	inventoryRepo := inventory.NewSQLiteRepository(db.DB)
	inventoryRegistry := inventory.NewRegistry(inventoryRepo)
	inventoryRegistry.SetLogger(log)

	if refreshErr := inventoryRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading inventory registry: %w", refreshErr)
	}
	log.Info("inventory registry initialised",
		"zones", inventoryRegistry.ZoneCount(),
		"devices", inventoryRegistry.DeviceCount(),
	)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	qos := byte(cfg.MQTT.QoS)

	// Start the entity state store
	stateStore := statestore.New(mqttClient, qos)
	stateStore.SetLogger(log)
	if startErr := stateStore.Start(); startErr != nil {
		return fmt.Errorf("starting state store: %w", startErr)
	}
	defer func() {
		log.Info("closing state store")
		if closeErr := stateStore.Close(); closeErr != nil {
			log.Error("error closing state store", "error", closeErr)
		}
	}()
	log.Info("state store started")

	// Action invoker for acknowledged entity writes
	invoker := actions.New(mqttClient, qos, cfg.Sync.ActionTimeout)
	invoker.SetLogger(log)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Build the sync coordinator
	coordinator := buildCoordinator(cfg, log, inventoryRegistry, stateStore, invoker, influxClient)
	defer func() {
		log.Info("unloading sync coordinator")
		coordinator.Unload()
	}()

	if setupErr := coordinator.Setup(ctx); setupErr != nil {
		return fmt.Errorf("setting up sync coordinator: %w", setupErr)
	}
	log.Info("sync coordinator active", "actuators", coordinator.ActuatorCount())

	// Start the HTTP API (optional)
	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:      cfg.API,
			Logger:      log,
			Coordinator: coordinator,
			MQTT:        mqttClient,
			Version:     version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (stop accepting requests)
	// 2. Coordinator (stop timer, tear down listeners)
	// 3. InfluxDB (if enabled)
	// 4. State store
	// 5. MQTT
	// 6. Database

	log.Info("Climate Sync Core stopped")
	return nil
}

// buildCoordinator assembles the sync coordinator and its collaborators.
func buildCoordinator(
	cfg *config.Config,
	log *logging.Logger,
	inventoryRegistry *inventory.Registry,
	stateStore *statestore.Store,
	invoker *actions.Invoker,
	influxClient *influxdb.Client,
) *climatesync.Coordinator {
	inv := &inventoryAdapter{registry: inventoryRegistry}
	states := &stateReaderAdapter{store: stateStore}

	// The nil check matters: assigning a nil *influxdb.Client to the
	// interface directly would make it non-nil and panic on first use.
	var history climatesync.History
	if influxClient != nil {
		history = influxClient
	}

	registry := climatesync.NewRegistry()
	discoverer := climatesync.NewDiscoverer(inv, cfg.Sync, log)
	enforcer := climatesync.NewModeEnforcer(states, invoker, cfg.Sync.ExternalOption, log)
	engine := climatesync.NewSyncEngine(states, invoker, history, cfg.Sync.Tolerance, log)
	listeners := climatesync.NewListenerManager(registry, stateStore, enforcer, engine, log)
	reconciler := climatesync.NewPeriodicReconciler(registry, engine, cfg.Sync.Interval, log)

	return climatesync.NewCoordinator(climatesync.Deps{
		Discoverer: discoverer,
		Enforcer:   enforcer,
		Engine:     engine,
		Listeners:  listeners,
		Reconciler: reconciler,
		Registry:   registry,
		Scheduler:  &climatesync.TickerScheduler{},
		Interval:   cfg.Sync.Interval,
		Logger:     log,
	})
}

// getConfigPath returns the configuration file path.
// Uses CLIMATESYNC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CLIMATESYNC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// inventoryAdapter adapts the inventory registry to the coordinator's
// catalog interface. The registry returns full inventory records; the
// coordinator only needs the identity and wiring fields.
type inventoryAdapter struct {
	registry *inventory.Registry
}

// ZonesWithSensor implements climatesync.Inventory.
func (a *inventoryAdapter) ZonesWithSensor(ctx context.Context) ([]climatesync.Zone, error) {
	zones, err := a.registry.ListZonesWithSensor(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]climatesync.Zone, 0, len(zones))
	for _, z := range zones {
		sensor := ""
		if z.SensorEntityID != nil {
			sensor = *z.SensorEntityID
		}
		out = append(out, climatesync.Zone{
			ID:             z.ID,
			Name:           z.Name,
			SensorEntityID: sensor,
		})
	}
	return out, nil
}

// DevicesByZoneAndModel implements climatesync.Inventory.
func (a *inventoryAdapter) DevicesByZoneAndModel(ctx context.Context, zoneID, model string) ([]climatesync.Device, error) {
	devices, err := a.registry.ListDevicesByZoneAndModel(ctx, zoneID, model)
	if err != nil {
		return nil, err
	}

	out := make([]climatesync.Device, 0, len(devices))
	for _, d := range devices {
		out = append(out, climatesync.Device{
			ID:     d.ID,
			ZoneID: d.ZoneID,
			Name:   d.Name,
		})
	}
	return out, nil
}

// EntitiesByDevice implements climatesync.Inventory.
func (a *inventoryAdapter) EntitiesByDevice(ctx context.Context, deviceID string) ([]climatesync.Entity, error) {
	entities, err := a.registry.ListEntitiesByDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	out := make([]climatesync.Entity, 0, len(entities))
	for _, e := range entities {
		out = append(out, climatesync.Entity{
			ID:     e.ID,
			Domain: string(e.Domain),
		})
	}
	return out, nil
}

// stateReaderAdapter adapts the state store to the coordinator's state
// read interface, flattening the State struct to its value.
type stateReaderAdapter struct {
	store *statestore.Store
}

// Get implements climatesync.StateReader.
func (a *stateReaderAdapter) Get(entityID string) (string, bool) {
	state, ok := a.store.Get(entityID)
	if !ok {
		return "", false
	}
	return state.Value, true
}

package climatesync

import (
	"context"
	"sync"
	"time"
)

// LifecycleState is the coordinator's position in its lifecycle.
type LifecycleState string

// Coordinator lifecycle states. Transitions only move forward:
// Unconfigured -> SettingUp -> Active -> Unloaded.
const (
	StateUnconfigured LifecycleState = "unconfigured"
	StateSettingUp    LifecycleState = "setting_up"
	StateActive       LifecycleState = "active"
	StateUnloaded     LifecycleState = "unloaded"
)

// ActuatorStatus is a read-only snapshot of one tracked actuator.
type ActuatorStatus struct {
	DeviceID        string    `json:"device_id"`
	Name            string    `json:"name"`
	ZoneID          string    `json:"zone_id"`
	SensorEntityID  string    `json:"sensor_entity_id"`
	SelectEntityID  string    `json:"select_entity_id"`
	NumberEntityID  string    `json:"number_entity_id"`
	ClimateEntityID string    `json:"climate_entity_id,omitempty"`
	LastSync        time.Time `json:"last_sync"`
}

// Deps holds the collaborators the coordinator orchestrates.
type Deps struct {
	Discoverer *Discoverer
	Enforcer   *ModeEnforcer
	Engine     *SyncEngine
	Listeners  *ListenerManager
	Reconciler *PeriodicReconciler
	Registry   *Registry
	Scheduler  Scheduler
	Interval   time.Duration
	Logger     Logger
}

// Coordinator drives the sync lifecycle: discovery, initial enforcement
// and sync, event listeners, and the periodic sweep timer.
//
// Thread Safety: all methods are safe for concurrent use. Lifecycle
// operations serialize on an internal mutex.
type Coordinator struct {
	discoverer *Discoverer
	enforcer   *ModeEnforcer
	engine     *SyncEngine
	listeners  *ListenerManager
	reconciler *PeriodicReconciler
	registry   *Registry
	scheduler  Scheduler
	interval   time.Duration
	logger     Logger

	state     LifecycleState
	stopTimer func()
	mu        sync.Mutex
}

// NewCoordinator creates a coordinator in the Unconfigured state.
func NewCoordinator(deps Deps) *Coordinator {
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Coordinator{
		discoverer: deps.Discoverer,
		enforcer:   deps.Enforcer,
		engine:     deps.Engine,
		listeners:  deps.Listeners,
		reconciler: deps.Reconciler,
		registry:   deps.Registry,
		scheduler:  deps.Scheduler,
		interval:   deps.Interval,
		logger:     logger,
		state:      StateUnconfigured,
	}
}

// Setup brings the coordinator to the Active state.
//
// It runs discovery, pins every actuator's mode selector, performs an
// initial forced sync pass, registers event listeners, and starts the
// periodic sweep timer.
//
// Duplicate calls while setting up or active are a no-op. Calling Setup
// after Unload returns ErrUnloaded.
//
// Returns:
//   - error: If discovery fails; the coordinator stays Unconfigured
func (c *Coordinator) Setup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateSettingUp, StateActive:
		c.logger.Debug("setup already done, ignoring duplicate call")
		return nil
	case StateUnloaded:
		return ErrUnloaded
	case StateUnconfigured:
		// proceed
	}

	c.state = StateSettingUp

	if err := c.rebuild(ctx); err != nil {
		c.state = StateUnconfigured
		return err
	}

	c.stopTimer = c.scheduler.Every(c.interval, func() {
		c.reconciler.Sweep(context.Background(), time.Now(), false)
	})

	c.state = StateActive
	c.logger.Info("coordinator active",
		"actuators", c.registry.Count(),
		"interval", c.interval,
	)
	return nil
}

// Refresh re-runs discovery and rebuilds the sync surface.
//
// Use after catalog edits: new zones, reassigned devices, replaced
// sensors. Only valid while Active.
//
// Returns:
//   - ErrNotActive: The coordinator is not active
//   - error: If discovery fails; the previous actuator set stays live
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateActive {
		return ErrNotActive
	}

	c.logger.Info("refreshing actuator set")
	return c.rebuild(ctx)
}

// rebuild runs discovery and, on success, swaps the registry, re-pins
// selectors, rebuilds listeners, and forces a full sync sweep.
// Caller holds the mutex.
func (c *Coordinator) rebuild(ctx context.Context) error {
	actuators, err := c.discoverer.Discover(ctx)
	if err != nil {
		return err
	}

	c.registry.Replace(actuators)

	for _, actuator := range c.registry.All() {
		// Enforcement failures are logged by the enforcer; the sweep
		// below still pushes temperatures to reachable actuators.
		_ = c.enforcer.EnsureExternal(ctx, actuator)
	}

	c.listeners.SetupAll()
	c.reconciler.Sweep(ctx, time.Now(), true)
	return nil
}

// Unload stops the periodic timer and tears down all listeners.
//
// Idempotent. The actuator registry remains readable afterwards so
// status endpoints keep working during shutdown.
func (c *Coordinator) Unload() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateUnloaded {
		return
	}

	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
	c.listeners.TeardownAll()

	c.state = StateUnloaded
	c.logger.Info("coordinator unloaded")
}

// State returns the coordinator's lifecycle state.
func (c *Coordinator) State() LifecycleState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ActuatorCount returns the number of tracked actuators.
func (c *Coordinator) ActuatorCount() int {
	return c.registry.Count()
}

// Actuators returns a snapshot of every tracked actuator.
func (c *Coordinator) Actuators() []ActuatorStatus {
	actuators := c.registry.All()
	out := make([]ActuatorStatus, 0, len(actuators))
	for _, a := range actuators {
		out = append(out, ActuatorStatus{
			DeviceID:        a.DeviceID,
			Name:            a.Name,
			ZoneID:          a.ZoneID,
			SensorEntityID:  a.SensorEntityID,
			SelectEntityID:  a.SelectEntityID,
			NumberEntityID:  a.NumberEntityID,
			ClimateEntityID: a.ClimateEntityID,
			LastSync:        a.LastSync(),
		})
	}
	return out
}

// Package climatesync keeps thermostatic actuators in lockstep with
// their zone's ambient temperature sensor.
//
// TRVZB-class radiator valves regulate against their own internal
// probe, which sits next to the radiator and reads hot. Each valve can
// instead accept an external temperature over a writable number entity,
// but something has to keep feeding it. That something is this package.
//
// # Architecture
//
//	┌────────────┐   discover   ┌──────────┐
//	│ Discoverer  │─────────────▶│ Registry │
//	└────────────┘              └────┬─────┘
//	                                  │
//	          ┌───────────────┬──────┴───────┐
//	          ▼               ▼              ▼
//	   ┌────────────┐  ┌────────────┐  ┌────────────┐
//	   │ Listeners  │  │ Reconciler │  │ Enforcer   │
//	   │ (events)   │  │ (periodic) │  │ (mode pin) │
//	   └─────┬──────┘  └─────┬──────┘  └────────────┘
//	         └───────┬───────┘
//	                 ▼
//	          ┌────────────┐
//	          │ SyncEngine │──▶ acknowledged set_value writes
//	          └────────────┘
//
// Syncing is dual-trigger: state change events give responsiveness,
// the periodic sweep gives eventual consistency when events are lost.
// Both paths converge on SyncEngine.SyncActuator, which serializes
// per-actuator, applies the tolerance gate, and contains failures.
//
// The Coordinator owns the lifecycle (Unconfigured -> SettingUp ->
// Active -> Unloaded) and exposes Refresh for catalog changes.
//
// External collaborators (inventory, state store, action invoker,
// history) are consumed through narrow interfaces defined here, in
// types.go, and wired together in package main.
package climatesync

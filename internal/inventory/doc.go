// Package inventory is the persistent catalog of zones, devices, and entities.
//
// The catalog answers the questions discovery asks: which zones have an
// ambient temperature sensor, which devices in those zones carry the
// supported model tag, and which entities each device exposes.
//
// # Architecture
//
//	┌──────────────┐     ┌──────────────┐     ┌──────────┐
//	│   Registry    │────▶│  Repository  │────▶│  SQLite  │
//	│ (cached read) │     │ (interface)  │     │          │
//	└──────────────┘     └──────────────┘     └──────────┘
//
// The Registry fronts the Repository with an in-memory cache so discovery
// sweeps never touch the database. Reads return deep copies; the cache is
// rebuilt wholesale by RefreshCache.
//
// Schema lives in migrations/ and is applied by the database package's
// embedded-FS migration runner.
package inventory

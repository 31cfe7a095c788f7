// Package store provides SQLite-backed storage for sensor readings and
// implements expr.SensorCapability on top of it.
//
// Readings are keyed by sensor address (location@entity:valuePath) and
// appended by ingest paths (MQTT, CLI). Expression leaves bind to an address
// under their leaf id; every append signals the ids bound to that address
// through the data-changed hook, which the scheduler uses to promote parked
// expressions.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Window queries return readings newest first, ties broken by insertion
// order (seq DESC), so results are deterministic for equal timestamps.
package store

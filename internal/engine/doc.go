// Package engine implements the scheduler that keeps registered sensor
// expressions evaluated.
//
// ARCHITECTURE:
//
// Deadline queues:
// Every registered expression sits in a deadline queue keyed by its id and
// ordered by the time its last result could next change (the tree's
// defer-until). Workers take due entries, evaluate them outside the queue
// lock, and hand them back. A slow sensor therefore never stalls
// registration of unrelated expressions.
//
// Parking:
// An expression that evaluates to UNDEFINED cannot become defined by time
// alone, so it leaves the timer order and waits in the parked set until
// NotifyDataChanged names one of its leaves. A data-changed signal that
// arrives while the expression is being evaluated marks it dirty; it is
// queued again at once instead of parked.
//
// Value subscriptions:
// A second queue of identical shape refreshes value-typed expressions and
// reports their readings to ReadingListeners.
//
// Errors:
// Registration errors are synchronous (*RegistrationError). Evaluation
// errors are asynchronous: the expression is dropped and OnError is called
// once. An evaluation that fails because its expression was unregistered
// concurrently is absorbed silently.
//
// Time:
// All times are milliseconds since the Unix epoch from a Clock. Tests use a
// manually advanced clock and Step for deterministic traces.
package engine

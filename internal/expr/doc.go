// Package expr implements the expression tree evaluated by the scheduler.
//
// The variant set is closed: Constant, SensorLeaf, Arithmetic (value
// producing) and Comparison, Logic (TriState producing). Every node carries a
// hierarchical id (root id, then ".L"/".R" per level) and a defer-until time,
// the earliest moment at which re-evaluation could change its result.
//
// Trees are built from their text form by Parse, bound to a SensorCapability
// with Initialize, evaluated repeatedly, and released with Destroy.
//
// Text form:
//
//	binary     (L OP R)        OP in AND OR == != < <= > >= + - * / %
//	unary      NOT L
//	leaf       location@entity:valuePath?key=value&...{REDUCTION,HISTORY_MS}
//	constant   3.5, "text", true, geo(lat,lon), 0xff
//
// Parse(n.String()) reproduces n for every constructible tree.
//
// Evaluation of a single tree is not safe for concurrent use; the scheduler
// guarantees one evaluation per tree at a time. Destroy may race with an
// evaluation and causes it to fail with ErrUnbound.
package expr

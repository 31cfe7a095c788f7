// Package harness replays sensor timelines against expressions and checks
// the resulting transition trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	rules:
//	  - path/to/rules.cue
//	expressions:
//	  - id: warm
//	    expression: "(home@living:temp{MEAN,60000} > 20)"
//	watches:
//	  - id: temp
//	    sensor: "home@living:temp"
//	steps:
//	  - at: 0
//	    readings:
//	      - sensor: home@living:temp
//	        value: "19.5"
//	  - at: 60000
//	    unregister: [warm]
//	until: 120000
//	assertions:
//	  - type: trace_contains
//	    event: "warm TRUE"
//	  - type: trace_order
//	    events: ["warm UNDEFINED", "warm TRUE"]
//	  - type: trace_count
//	    event: "warm TRUE"
//	    count: 1
//	  - type: final_state
//	    id: warm
//	    state: TRUE
//
// Reading values are literals in expression syntax: 21.5, "open", true,
// geo(52.37,4.89), 0x00ff.
//
// # Assertion Types
//
//   - trace_contains: an event appears in the trace
//   - trace_order: events appear in the given order, not necessarily adjacent
//   - trace_count: an event appears exactly N times
//   - final_state: an expression's last state when the scenario ends
//
// Events are written "<id> <STATE>" for expressions, "<id> <readings>" for
// watches and "<id> ERROR" for dropped entries.
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory store with a manually
// advanced clock. Between steps the clock jumps to each pending deadline in
// turn, so traces carry the exact millisecond a transition happened and are
// identical across runs.
package harness

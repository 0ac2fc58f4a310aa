// Package engine implements the governed tool execution path and the
// sequential DAG pipeline executor.
//
// Architecture:
//
// runner.go   - ToolRunner, the single choke point through which every tool
//               invocation passes (validation, circuit gate, deadline-bounded
//               invoke, error classification, exactly-once metrics finalization)
// executor.go - Executor, which walks a validated topological order and
//               threads node outputs into dependent node inputs
// runtime/    - ToolInvoker contract shared with the catalog and tools
//
// The engine never calls a tool directly: it resolves invokers through the
// catalog and reports every outcome through the telemetry registry.
package engine

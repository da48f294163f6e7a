// Package api defines the core domain types for the OneDay.run platform.
//
// This package provides the data model shared by every layer of the
// orchestrator: delivery phases, the per-project context, chat stream
// events, pricing tiers, structured errors, and ID generation.
//
// The package has zero external dependencies beyond google/uuid and
// performs no I/O. All types serialize to the JSON shapes spoken by the
// WebSocket chat protocol and the project HTTP API.
//
// Core types:
//   - [Phase]: Ordered delivery phase of a project (discovery through handover)
//   - [ProjectContext]: Accumulated state of one client engagement
//   - [ChatEvent]: Unit of the streamed response to one chat turn
//   - [AppError]: Structured error with type, code, param, and message
package api

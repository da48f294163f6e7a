// Package transport exposes the platform over HTTP and WebSocket.
//
// The HTTP surface covers project lifecycle (create, progress, GitHub
// scaffold, deploy), the component catalog, pricing, and health. The
// WebSocket endpoint at /ws/{project_id} speaks the platform chat
// protocol: inbound "message" and "command" frames, outbound system,
// typing, response_start, response_chunk, response_end, tool, progress,
// status, components, deployment, and error frames.
//
// Cross-cutting behavior (panic recovery, request IDs, access logging)
// is provided as composable net/http middleware.
package transport

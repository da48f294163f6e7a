// Package provider defines the protocol-agnostic interface for LLM inference
// backends. Each adapter implementation (e.g., litellm) handles its own
// backend protocol translation internally. The interface operates on the
// platform's own types (Request, Response, Event), keeping backend protocol
// details invisible to the session engine.
package provider

// Package notify carries story progress events from the generation pipeline
// to whoever is watching: in-process subscribers (the SSE stream) and,
// when configured, a Redis channel for external consumers. Delivery is best
// effort everywhere; losing an event never affects generation.
package notify

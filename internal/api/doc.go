// Package api handles incoming HTTP requests, routing, request validation,
// and response formatting. It adapts external clients to the story lifecycle:
// drafting via the scripting stage, scheduling generation runs on the task
// runner, and streaming progress events back out.
package api

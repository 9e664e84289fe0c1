// Package api provides the HTTP REST API and WebSocket stream for devicehub.
//
// Every route is served at the root and mirrored under /api/v1. Protected
// routes take an "Authorization: Bearer <token>" header; the token subject
// is the caller's account id, and all device and telemetry operations are
// scoped to it.
//
// The server follows the same lifecycle as the infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Errors are returned as {"status", "code", "message"}; errors.go holds
// the single table mapping domain errors to statuses.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

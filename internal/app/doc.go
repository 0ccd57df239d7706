// Package app wires the SitePulse platform together: configuration,
// logging, OpenTelemetry, the SQLite store, the session manager, the
// processing job queue, the WebSocket hub and the HTTP router. The cmd
// binaries construct an Application and call Run.
package app

// Package handler implements the HTTP layer of the device registry API.
//
// Routes are registered on a chi router under /api. DeviceHandler
// covers the device registry (list, get, user-field updates, delete,
// per-device history); ScanHandler covers scan sessions, the recent
// event feed, on-demand scan triggers and dashboard statistics. The
// real-time stream endpoints (/api/ws and /api/stream) are served by
// the hub package and mounted here.
//
// Success responses return JSON with appropriate status codes.
// Error responses return JSON with an {error, details} structure.
package handler

// Package httpserver serves the administrative listener.
//
// One HTTP server carries the ringchat.admin.v1.AdminService Connect
// handlers together with the operational endpoints:
//
//   - GET /health: process liveness
//   - GET /ready: the node event loop answers within a short deadline
//   - GET /metrics: Prometheus exposition
//
// Admin calls may be restricted by bearer token and by client address.
package httpserver

// Package gateway assembles the HTTP surface of the rental gateway: health
// and metrics endpoints, the auth self-service and admin routes, and the
// guarded reverse proxy to the backend services.
package gateway

// Package api contains the HTTP handlers, request/response types, and
// middleware for the generation gateway's REST surface.
package api

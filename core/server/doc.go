// Package server holds the HTTP server configuration.
//
// The start command reads Config to choose the listen port, the API key enforced by the
// auth middleware and the request body limit.
package server

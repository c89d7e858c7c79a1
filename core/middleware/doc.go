// Package middleware contains HTTP middleware for the Fiber application.
//
// # Components
//
//   - auth: API key validation for every protected route.
//   - rayid: a unique request id (RayID) per request, stored in the context locals and
//     echoed in the X-Ray-ID response header so logs can be correlated.
//
// RayID is registered first so every later log line carries it.
package middleware

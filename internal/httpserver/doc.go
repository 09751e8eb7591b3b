// Package httpserver wraps net/http with listen address validation, graceful
// shutdown and the middleware shared by every route: request IDs, panic
// recovery, access logging and CORS.
package httpserver

// Package handler implements the HTTP API in front of the nutrition provider.
// It decodes and validates request bodies, calls the upstream client and maps
// its typed failures onto JSON error responses.
package handler

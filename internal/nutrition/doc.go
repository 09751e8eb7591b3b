// Package nutrition defines the request and result types exchanged with the
// nutrition provider, along with validation of incoming queries and lenient
// decoding of the provider's JSON output.
package nutrition

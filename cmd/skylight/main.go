// Skylight Comet is an outbound access layer for catalog and metadata
// providers.
//
// It fronts every upstream provider with a shared pipeline:
//   - Token-bucket rate limiting with a bounded FIFO waiter queue
//   - Circuit breaking on sustained upstream failures
//   - Monthly call budget enforcement with durable counters
//   - Response caching with per-class lifetimes
//
// Usage:
//
//	# Start the server with default configuration
//	skylight run
//
//	# Start with a custom configuration file
//	skylight run --config /etc/skylight/comet.yaml
//
//	# Validate a configuration file
//	skylight check --config comet.yaml
//
//	# Show version information
//	skylight version
package main

func main() {
	Execute()
}

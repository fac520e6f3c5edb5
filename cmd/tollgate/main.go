// Tollgate enforces per-tenant rate limits and subscription plans in front
// of an external collaboration API, retries that API's transient failures,
// and keeps an audit trail of every governed operation.
//
// Usage:
//
//	# Start the server
//	tollgate run --config tollgate.yaml
//
//	# Print the plan catalog
//	tollgate plans --catalog plans.yaml
//
//	# Validate configuration and catalog
//	tollgate check --config tollgate.yaml
//
//	# Export a tenant's audit trail
//	tollgate audit export --tenant acme --format csv --output acme.csv
//
//	# Show version information
//	tollgate version
package main

func main() {
	Execute()
}

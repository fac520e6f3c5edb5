// Package collab is an HTTP client for the external collaboration
// (directory and site provisioning) API.
//
// The client pulls a bearer token from an injected TokenSource on every
// request and paces outbound calls with a token bucket so bursts stay under
// the provider's published throughput. Non-2xx responses become *APIError,
// which carries the status, the structured error code from the
// {"error": {"code", "message"}} body, and the Retry-After hint. The retry
// package classifies these errors without depending on this package.
//
// The client never retries on its own:
//
//	client, _ := collab.NewClient(cfg, tokens)
//	site, err := retry.Execute(ctx, executor, "collab.CreateSite",
//	    func(ctx context.Context) (*collab.Site, error) {
//	        return client.CreateSite(ctx, req)
//	    })
package collab

package collab

import "time"

// Config contains the collaboration API client configuration.
type Config struct {
	// BaseURL is the API root, e.g. "https://collab.example.com/v1"
	BaseURL string `yaml:"base_url"`

	// Timeout is the per-request timeout
	Timeout time.Duration `yaml:"timeout"`

	// RequestsPerSecond paces outbound calls below the provider's published
	// throughput. Zero disables pacing.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the number of requests allowed at once when pacing is enabled
	Burst int `yaml:"burst"`

	// MaxIdleConns is the maximum number of idle connections kept open
	MaxIdleConns int `yaml:"max_idle_conns"`

	// UserAgent is sent with every request
	UserAgent string `yaml:"user_agent"`
}

// Site is a provisioned collaboration site (a client space).
type Site struct {
	// ID is the provider-assigned site identifier
	ID string `json:"id"`

	// TenantID is the tenant that owns the site
	TenantID string `json:"tenant_id"`

	// Name is the display name
	Name string `json:"name"`

	// URL is the site's web address
	URL string `json:"url,omitempty"`

	// CreatedAt is when the provider created the site
	CreatedAt time.Time `json:"created_at"`
}

// CreateSiteRequest provisions a new site.
type CreateSiteRequest struct {
	// TenantID is the owning tenant
	TenantID string `json:"tenant_id"`

	// Name is the display name
	Name string `json:"name"`

	// Description is optional free text
	Description string `json:"description,omitempty"`
}

// Member is a user with access to a site.
type Member struct {
	// SiteID is the site the member belongs to
	SiteID string `json:"site_id"`

	// Email identifies the user
	Email string `json:"email"`

	// Role is "owner", "member" or "guest"
	Role string `json:"role"`

	// External marks users outside the tenant's directory
	External bool `json:"external"`
}

// AddMemberRequest grants a user access to a site.
type AddMemberRequest struct {
	// Email identifies the user
	Email string `json:"email"`

	// Role is "owner", "member" or "guest"
	Role string `json:"role"`

	// External marks users outside the tenant's directory
	External bool `json:"external,omitempty"`
}

// Health is a snapshot of the client's recent success rate against the API.
type Health struct {
	// Healthy is false after several consecutive failed requests
	Healthy bool `json:"healthy"`

	// ConsecutiveFailures counts failed requests since the last success
	ConsecutiveFailures int `json:"consecutive_failures"`

	// TotalRequests counts every request sent
	TotalRequests int64 `json:"total_requests"`

	// FailedRequests counts requests that returned an error
	FailedRequests int64 `json:"failed_requests"`

	// LastError is the message of the most recent failure
	LastError string `json:"last_error,omitempty"`

	// LastSuccess is the time of the most recent successful request
	LastSuccess time.Time `json:"last_success,omitzero"`
}

package models

import "fmt"

// APIType tells the rate limiter how an endpoint is named: REST overrides are keyed
// by route path ("/v1/booking/:id/message"), JSON overrides by admin method name
// ("postAdminMessage").
type APIType string

const (
	APITypeREST APIType = "REST"
	APITypeJSON APIType = "JSON"
)

// RateLimitConfig is one token bucket.
type RateLimitConfig struct {
	BucketSize      int `bson:"bucket_size" json:"bucket_size"`
	TokenRefillRate int `bson:"token_refill_rate" json:"token_refill_rate"` // per second
}

// APIEndpointConfig overrides the default buckets for one endpoint, stored in the
// `api_endpoints_config` collection. Customer endpoints use AuthRequired=false;
// admin methods may carry a separate entry for signed-in operators.
type APIEndpointConfig struct {
	Type          APIType          `bson:"type" json:"type"`
	Endpoint      string           `bson:"endpoint" json:"endpoint"`
	AuthRequired  bool             `bson:"auth_required" json:"auth_required"`
	RateLimitSoft *RateLimitConfig `bson:"rate_limit_soft,omitempty" json:"rate_limit_soft,omitempty"`
	RateLimitHard *RateLimitConfig `bson:"rate_limit_hard,omitempty" json:"rate_limit_hard,omitempty"`
}

// EndpointKey identifies an override in memory.
func EndpointKey(apiType APIType, endpoint string, authRequired bool) string {
	return fmt.Sprintf("%s#%s#%t", apiType, endpoint, authRequired)
}

func (c *APIEndpointConfig) Key() string {
	return EndpointKey(c.Type, c.Endpoint, c.AuthRequired)
}

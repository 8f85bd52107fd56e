package config

import "time"

const (
	endpointVar       = "BRIDGE_ENDPOINT"
	requestTimeoutVar = "BRIDGE_REQUEST_TIMEOUT"
	expiryMarginVar   = "BRIDGE_EXPIRY_MARGIN"
	rateLimitVar      = "BRIDGE_RATE_LIMIT"
)

type BridgeConfig interface {
	GetEndpointURL() string
	GetRequestTimeout() time.Duration
	GetExpiryMargin() time.Duration
	GetRateLimit() float64
}

type Bridge struct{}

var _ BridgeConfig = Bridge{}

func (Bridge) GetEndpointURL() string {
	return GetEnv(endpointVar, "")
}

// GetRequestTimeout bounds each identity provider call and each JSON-RPC POST.
func (Bridge) GetRequestTimeout() time.Duration {
	return GetDuration(requestTimeoutVar, 30*time.Second)
}

// GetExpiryMargin is subtracted from a token's expiry before it is considered valid.
func (Bridge) GetExpiryMargin() time.Duration {
	return GetDuration(expiryMarginVar, 30*time.Second)
}

// GetRateLimit is the maximum JSON-RPC requests per second; 0 disables pacing.
func (Bridge) GetRateLimit() float64 {
	return GetFloat(rateLimitVar, 0)
}

package provider

// Config holds configuration for the billing provider.
type Config struct {
	// Backend selects the provider implementation (memory, playstore).
	Backend string `mapstructure:"backend" default:"memory"`
	// PackageName is the application package registered with the store.
	PackageName string `mapstructure:"package_name" default:"com.example.entitlements"`
	// CredentialsFile is the service account key used by the playstore backend.
	CredentialsFile string `mapstructure:"credentials_file" default:""`
	// Endpoint overrides the Developer API endpoint.
	Endpoint string `mapstructure:"endpoint" default:""`
	// RatePerSecond limits finalization calls. Zero disables the limiter.
	RatePerSecond float64 `mapstructure:"rate_per_second" default:"10"`
	// Burst is the limiter bucket size.
	Burst int `mapstructure:"burst" default:"5"`
	// BreakerFailures is the number of consecutive transient failures that opens the breaker.
	BreakerFailures uint32 `mapstructure:"breaker_failures" default:"5"`
	// BreakerTimeoutSeconds is how long the breaker stays open.
	BreakerTimeoutSeconds int `mapstructure:"breaker_timeout_seconds" default:"30"`
	// TimeoutSeconds bounds each Developer API call.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
}

const (
	BackendMemory    = "memory"
	BackendPlayStore = "playstore"
)

// IsValidBackend checks if the configured backend is supported.
func (c Config) IsValidBackend() bool {
	switch c.Backend {
	case BackendMemory, BackendPlayStore:
		return true
	default:
		return false
	}
}

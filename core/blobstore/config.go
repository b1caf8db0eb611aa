package blobstore

// Backends accepted by Config.Backend.
const (
	BackendMemory   = "memory"
	BackendMinio    = "minio"
	BackendDatabase = "database"
	BackendRedis    = "redis"
)

// Config selects and namespaces the backing used for entitlement records.
type Config struct {
	// Backend is one of memory, minio, database or redis.
	Backend string `mapstructure:"backend" default:"memory"`
	// Prefix is prepended to every record key.
	Prefix string `mapstructure:"prefix" default:"entitlements"`
}

// IsValidBackend reports whether Backend names a known backing.
func (c Config) IsValidBackend() bool {
	switch c.Backend {
	case BackendMemory, BackendMinio, BackendDatabase, BackendRedis:
		return true
	default:
		return false
	}
}

package config

import (
	"reflect"
	"strings"

	"entitlement-manager/core/blobstore"
	"entitlement-manager/core/database"
	"entitlement-manager/core/events"
	"entitlement-manager/core/kv"
	"entitlement-manager/core/logger"
	"entitlement-manager/core/provider"
	"entitlement-manager/core/reconcile"
	"entitlement-manager/core/server"
	"entitlement-manager/core/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Server holds configuration for the HTTP server.
	Server server.Config `mapstructure:"server"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds the SQL connection used by the database backing and the attempt ledger.
	Database database.Config `mapstructure:"database"`
	// Storage holds configuration for the object storage (e.g., S3, Minio).
	Storage storage.Config `mapstructure:"storage"`
	// Redis holds the connection used by the redis backing and publisher.
	Redis kv.Config `mapstructure:"redis"`
	// Store selects the entitlement record backing.
	Store blobstore.Config `mapstructure:"store"`
	// Provider configures the billing provider connector.
	Provider provider.Config `mapstructure:"provider"`
	// Finalize tunes retries and parallelism of finalization.
	Finalize reconcile.FinalizeConfig `mapstructure:"finalize"`
	// Events selects where snapshots are published.
	Events events.Config `mapstructure:"events"`
	// Snapshot tunes the published entitlement view.
	Snapshot reconcile.SnapshotConfig `mapstructure:"snapshot"`
	// Catalog locates the product catalog file.
	Catalog reconcile.CatalogConfig `mapstructure:"catalog"`
}

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig(path string) (*Config, error) {
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(envPath)

	v := viper.New()

	// Recursively parse struct tags to set default values
	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. SERVER_PORT -> server.port)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, field.Tag.Get("default"))
	}
}

package filestore

import "time"

// Provider identifies the object storage backend.
type Provider string

const (
	ProviderMinIO Provider = "minio"
)

// DefaultPresignTTL is how long a published export link stays valid.
const DefaultPresignTTL = 24 * time.Hour

// Config holds the settings needed to publish exports to an object store.
type Config struct {
	// Provider is the storage backend (e.g. ProviderMinIO).
	Provider Provider

	// Endpoint is the host:port of the storage server.
	// Example: "localhost:9000" for local MinIO.
	Endpoint string

	AccessKey string
	SecretKey string
	UseSSL    bool

	// Region is used by region-aware backends. Leave empty for MinIO.
	Region string

	// Bucket receives every export. It is created on first use.
	Bucket string

	// PresignTTL bounds the lifetime of download links.
	PresignTTL time.Duration
}

// DefaultConfig returns a local-dev MinIO config writing to the "scout-exports" bucket.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Provider:   ProviderMinIO,
		Endpoint:   endpoint,
		AccessKey:  accessKey,
		SecretKey:  secretKey,
		Bucket:     "scout-exports",
		PresignTTL: DefaultPresignTTL,
	}
}

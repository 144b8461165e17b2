package params

import (
	"os"
	"time"
)

type GeocoderConfig struct {
	// Enabled loads the offline rgeo datasets. This takes a while and a good deal of memory.
	Enabled bool
	// CacheTTL is how long reverse geocode results are reused.
	CacheTTL time.Duration
	// CachePrecision is the number of coordinate decimal places used for cache keys.
	// 4 places is about 11m, an individual street.
	CachePrecision int32
}

func DefaultGeocoderConfig() *GeocoderConfig {
	return &GeocoderConfig{
		Enabled:        true,
		CacheTTL:       24 * time.Hour,
		CachePrecision: 4,
	}
}

type SinkConfig struct {
	// BackendURL is the base URL of the journaling backend. Empty disables the HTTP sink.
	BackendURL string
	// Token is sent as a bearer token.
	Token string
	// JWTSecret, if set and Token is empty, signs a short-lived HS256 token
	// carrying UserID, the way the backend issues its own tokens.
	JWTSecret string
	UserID    string
	TokenTTL  time.Duration
	// MaxPending bounds the persisted retry queue.
	MaxPending int
	// MaxRetries before a pending request is dropped.
	MaxRetries int
	// RetryInterval is how often the daemon retries pending requests.
	RetryInterval time.Duration
	// Source and Version are reported in payload metadata.
	Source  string
	Version string
}

// Enabled reports whether a backend is configured.
func (c *SinkConfig) Enabled() bool {
	return c != nil && c.BackendURL != ""
}

func DefaultSinkConfig() *SinkConfig {
	return &SinkConfig{
		BackendURL:    os.Getenv("CATMOTION_BACKEND_URL"),
		Token:         os.Getenv("CATMOTION_BACKEND_TOKEN"),
		JWTSecret:     os.Getenv("CATMOTION_BACKEND_JWT_SECRET"),
		UserID:        os.Getenv("CATMOTION_BACKEND_USER_ID"),
		TokenTTL:      time.Hour,
		MaxPending:    50,
		MaxRetries:    3,
		RetryInterval: 5 * time.Minute,
		Source:        "catmotion",
		Version:       "1.0.0",
	}
}

type InfluxDBConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

func DefaultInfluxDBConfig() *InfluxDBConfig {
	return &InfluxDBConfig{
		URL:    os.Getenv("INFLUXDB_URL"),
		Token:  os.Getenv("INFLUXDB_TOKEN"),
		Org:    os.Getenv("INFLUXDB_ORG"),
		Bucket: os.Getenv("INFLUXDB_BUCKET"),
	}
}

// Enabled reports whether an InfluxDB export is configured.
func (c *InfluxDBConfig) Enabled() bool {
	return c != nil && c.URL != "" && c.Bucket != ""
}

// S3Config configures the S3 archive of location updates and visits.
// Credentials and region come from the usual AWS environment and shared config.
type S3Config struct {
	Bucket string
	// Prefix is prepended to every object key.
	Prefix  string
	Timeout time.Duration
}

func DefaultS3Config() *S3Config {
	return &S3Config{
		Bucket:  os.Getenv("AWS_BUCKETNAME"),
		Prefix:  os.Getenv("CATMOTION_S3_PREFIX"),
		Timeout: 10 * time.Second,
	}
}

// Enabled reports whether a bucket is configured.
func (c *S3Config) Enabled() bool {
	return c != nil && c.Bucket != ""
}

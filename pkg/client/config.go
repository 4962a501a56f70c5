package client

import (
	"time"

	"github.com/flagcore/go-server-sdk/pkg/logger"
)

const (
	defaultMetricsInterval = 60 * time.Second
	defaultRefreshInterval = 60 * time.Second
	defaultCluster         = "1"
)

type config struct {
	log             *logger.Logger
	debug           bool
	eventsURL       string
	authToken       string
	environment     string
	cluster         string
	metricsEnabled  bool
	metricsInterval time.Duration
	filePath        string
	refreshInterval time.Duration
}

func defaultConfig() *config {
	return &config{
		cluster:         defaultCluster,
		metricsEnabled:  true,
		metricsInterval: defaultMetricsInterval,
		refreshInterval: defaultRefreshInterval,
	}
}

// Option configures the client.
type Option func(*config)

// WithLogger replaces the default zap logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithDebug enables debug logging on the default logger.
func WithDebug() Option {
	return func(c *config) { c.debug = true }
}

// WithEventsURL sets the base URL metrics are posted to. Metrics are only
// submitted when this is set.
func WithEventsURL(url string) Option {
	return func(c *config) { c.eventsURL = url }
}

// WithAuthToken sets the bearer token sent on metrics submissions.
func WithAuthToken(token string) Option {
	return func(c *config) { c.authToken = token }
}

// WithEnvironment sets the environment identifier metrics are attributed to.
func WithEnvironment(environment string) Option {
	return func(c *config) { c.environment = environment }
}

// WithCluster overrides the cluster identifier (defaults to "1").
func WithCluster(cluster string) Option {
	return func(c *config) { c.cluster = cluster }
}

// WithMetricsInterval overrides the flush interval (defaults to one minute).
func WithMetricsInterval(interval time.Duration) Option {
	return func(c *config) { c.metricsInterval = interval }
}

// WithMetricsDisabled turns off usage telemetry entirely.
func WithMetricsDisabled() Option {
	return func(c *config) { c.metricsEnabled = false }
}

// WithFileSource loads flags and segments from a local JSON document, watched
// for changes and re-read every interval.
func WithFileSource(path string, refreshInterval time.Duration) Option {
	return func(c *config) {
		c.filePath = path
		if refreshInterval > 0 {
			c.refreshInterval = refreshInterval
		}
	}
}

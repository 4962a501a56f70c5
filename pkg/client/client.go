// Package client is the SDK entrypoint. It wires the store, the evaluator,
// the metrics processor and an optional file configuration source behind the
// four typed accessors exposed to the host application.
package client

import (
	"fmt"
	"sync"

	"github.com/flagcore/go-server-sdk/pkg/evaluation"
	"github.com/flagcore/go-server-sdk/pkg/logger"
	"github.com/flagcore/go-server-sdk/pkg/metrics"
	"github.com/flagcore/go-server-sdk/pkg/model"
	"github.com/flagcore/go-server-sdk/pkg/rest"
	"github.com/flagcore/go-server-sdk/pkg/source"
	"github.com/flagcore/go-server-sdk/pkg/storage"
)

// Client evaluates flags and records usage. All methods are safe for
// concurrent use. The typed accessors never return errors; on any failure
// they serve the caller-supplied default.
type Client struct {
	log       *logger.Logger
	store     *storage.Store
	evaluator *evaluation.Evaluator
	metrics   *metrics.Processor
	source    *source.FileSource

	closeOnce sync.Once
}

// New builds and starts a client.
func New(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	log := cfg.log
	if log == nil {
		var err error
		log, err = logger.New(cfg.debug)
		if err != nil {
			return nil, fmt.Errorf("create logger: %w", err)
		}
	}

	store, err := storage.New(log)
	if err != nil {
		return nil, err
	}

	c := &Client{log: log, store: store}

	if cfg.metricsEnabled && cfg.eventsURL != "" {
		metricsClient := rest.NewMetricsClient(cfg.eventsURL, cfg.authToken)
		c.metrics = metrics.NewProcessor(metricsClient, cfg.environment, cfg.cluster, cfg.metricsInterval, log)
		c.metrics.Start()
	}

	var usage evaluation.UsageRecorder
	if c.metrics != nil {
		usage = c.metrics
	}
	c.evaluator, err = evaluation.New(store, usage, log)
	if err != nil {
		return nil, err
	}

	if cfg.filePath != "" {
		c.source, err = source.New(cfg.filePath, store, cfg.refreshInterval, log)
		if err != nil {
			return nil, err
		}
		if err := c.source.Start(); err != nil {
			return nil, fmt.Errorf("start file source: %w", err)
		}
	}

	logger.InfoSDKInitOK(log)
	return c, nil
}

// BoolVariation evaluates a boolean flag for the target, returning
// defaultValue on any failure.
func (c *Client) BoolVariation(flagIdentifier string, target *model.Target, defaultValue bool) bool {
	return c.evaluator.BoolVariation(flagIdentifier, target, defaultValue)
}

// StringVariation evaluates a string flag.
func (c *Client) StringVariation(flagIdentifier string, target *model.Target, defaultValue string) string {
	return c.evaluator.StringVariation(flagIdentifier, target, defaultValue)
}

// NumberVariation evaluates a numeric flag.
func (c *Client) NumberVariation(flagIdentifier string, target *model.Target, defaultValue float64) float64 {
	return c.evaluator.NumberVariation(flagIdentifier, target, defaultValue)
}

// JSONVariation evaluates a structured flag.
func (c *Client) JSONVariation(flagIdentifier string, target *model.Target, defaultValue map[string]interface{}) map[string]interface{} {
	return c.evaluator.JSONVariation(flagIdentifier, target, defaultValue)
}

// Store exposes the underlying flag store for hosts that push configuration
// programmatically instead of through a file source.
func (c *Client) Store() *storage.Store {
	return c.store
}

// Close stops the configuration source and drains the metrics processor.
// Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		logger.InfoSDKStartClose(c.log)
		if c.source != nil {
			c.source.Stop()
		}
		if c.metrics != nil {
			c.metrics.Close()
		}
		logger.InfoSDKCloseSuccess(c.log)
		_ = c.log.Sync()
	})
}

// Package metrics aggregates evaluation outcomes into counters and submits
// them periodically to the events endpoint. Metrics are best effort: a failed
// submission drops the batch rather than queueing it, bounding memory under a
// sustained outage.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/flagcore/go-server-sdk/pkg/logger"
	"github.com/flagcore/go-server-sdk/pkg/model"
	"github.com/flagcore/go-server-sdk/pkg/rest"
)

// SDK identity tags carried on every metrics record.
const (
	sdkType     = "server"
	sdkLanguage = "go"
	sdkVersion  = "0.5.0"
)

// Attribute keys of the metrics wire format.
const (
	featureIdentifierAttribute   = "featureIdentifier"
	featureNameAttribute         = "featureName"
	variationIdentifierAttribute = "variationIdentifier"
	targetAttribute              = "target"
	sdkTypeAttribute             = "SDK_TYPE"
	sdkLanguageAttribute         = "SDK_LANGUAGE"
	sdkVersionAttribute          = "SDK_VERSION"
)

// globalTarget is the aggregation bucket shared by all targets: usage counts
// are keyed on (flag, variation, value) only, never on target identity.
const globalTarget = "__global__cf_target"

// API is the network collaborator metrics are submitted through.
type API interface {
	PostMetrics(ctx context.Context, environment string, cluster string, payload rest.Metrics) error
}

type analyticsEvent struct {
	target    *model.Target
	feature   string
	variation model.Variation
	count     int64
}

type processorState int

const (
	stateIdle processorState = iota
	stateRunning
	stateClosed
)

// Processor deduplicates evaluation events into counters and flushes them on
// a timer. Enqueue is non-blocking and never fails; Close drains what is left.
type Processor struct {
	api         API
	environment string
	cluster     string
	interval    time.Duration
	log         *logger.Logger

	mu      sync.Mutex
	state   processorState
	closing bool
	data    map[string]*analyticsEvent

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewProcessor builds an idle processor; call Start to arm the flush timer.
func NewProcessor(metricsAPI API, environment string, cluster string, interval time.Duration, log *logger.Logger) *Processor {
	if cluster == "" {
		cluster = "1"
	}
	return &Processor{
		api:         metricsAPI,
		environment: environment,
		cluster:     cluster,
		interval:    interval,
		log:         log.Named("metrics"),
		data:        map[string]*analyticsEvent{},
	}
}

// Enqueue folds one evaluation outcome into the current interval's
// accumulator. Safe to call concurrently with flushes and after Close (events
// enqueued after Close are accepted but never submitted).
func (p *Processor) Enqueue(target *model.Target, featureConfig model.FeatureConfig, variation model.Variation) {
	key := formatKey(featureConfig.Feature, variation)

	p.mu.Lock()
	defer p.mu.Unlock()
	if event, ok := p.data[key]; ok {
		event.count++
		return
	}
	p.data[key] = &analyticsEvent{
		target:    target,
		feature:   featureConfig.Feature,
		variation: variation,
		count:     1,
	}
}

// formatKey builds the aggregation key. Target identity is deliberately
// excluded: all targets sharing a (flag, variation, value) triple share one
// counter.
func formatKey(feature string, variation model.Variation) string {
	return feature + "/" + variation.Identifier + "/" + variation.Value + "/" + globalTarget
}

// Start arms the recurring flush timer. Starting a running or closed
// processor is a no-op.
func (p *Processor) Start() {
	p.mu.Lock()
	if p.state != stateIdle {
		p.mu.Unlock()
		return
	}
	p.state = stateRunning
	p.ticker = time.NewTicker(p.interval)
	p.stop = make(chan struct{})
	p.mu.Unlock()

	logger.InfoMetricsThreadStarted(p.interval, p.log)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-p.ticker.C:
				p.flush(context.Background())
			case <-p.stop:
				return
			}
		}
	}()
}

// Close cancels the timer, performs one final synchronous drain so in-flight
// counts are not lost, and transitions the processor to its terminal state.
// The final submission's failure is logged, not returned.
func (p *Processor) Close() {
	p.mu.Lock()
	if p.state == stateClosed || p.closing {
		p.mu.Unlock()
		return
	}
	p.closing = true
	running := p.state == stateRunning
	p.mu.Unlock()

	if running {
		p.ticker.Stop()
		close(p.stop)
		p.wg.Wait()
	}

	p.flush(context.Background())

	p.mu.Lock()
	p.state = stateClosed
	p.mu.Unlock()

	logger.InfoMetricsThreadExited(p.log)
}

// flush atomically swaps the accumulator for an empty one and submits the
// drained snapshot. Concurrent enqueues land in the new accumulator.
func (p *Processor) flush(ctx context.Context) {
	p.mu.Lock()
	if p.state == stateClosed {
		p.mu.Unlock()
		p.log.Debug("metrics processor closed, skipping flush")
		return
	}
	if len(p.data) == 0 {
		p.mu.Unlock()
		p.log.Debug("no metrics to send in this interval")
		return
	}
	drained := p.data
	p.data = map[string]*analyticsEvent{}
	p.mu.Unlock()

	payload := summarize(drained)

	if err := p.api.PostMetrics(ctx, p.environment, p.cluster, payload); err != nil {
		logger.WarnPostMetricsFailed(err.Error(), p.log)
		return
	}
	logger.InfoMetricsSuccess(p.log)
}

// summarize serializes a drained accumulator into the wire payload. Target
// descriptions are emitted for non-anonymous targets only.
func summarize(drained map[string]*analyticsEvent) rest.Metrics {
	now := time.Now().UnixMilli()
	var payload rest.Metrics

	for _, event := range drained {
		if event.target != nil && !event.target.Anonymous {
			payload.TargetData = append(payload.TargetData, targetData(event.target))
		}

		attributes := []rest.KeyValue{
			{Key: featureIdentifierAttribute, Value: event.feature},
			{Key: featureNameAttribute, Value: event.feature},
			{Key: variationIdentifierAttribute, Value: event.variation.Identifier},
			{Key: sdkTypeAttribute, Value: sdkType},
			{Key: sdkLanguageAttribute, Value: sdkLanguage},
			{Key: sdkVersionAttribute, Value: sdkVersion},
		}
		if event.target != nil {
			attributes = append(attributes, rest.KeyValue{Key: targetAttribute, Value: event.target.Identifier})
		}

		payload.MetricsData = append(payload.MetricsData, rest.MetricsData{
			Timestamp:   now,
			Count:       event.count,
			MetricsType: rest.MetricsTypeFFMetrics,
			Attributes:  attributes,
		})
	}
	return payload
}

func targetData(target *model.Target) rest.TargetData {
	attributes := make([]rest.KeyValue, 0, len(target.Attributes))
	for key, value := range target.Attributes {
		attributes = append(attributes, rest.KeyValue{Key: key, Value: model.AttributeToString(value)})
	}

	name := target.Name
	if name == "" {
		name = target.Identifier
	}
	return rest.TargetData{
		Identifier: target.Identifier,
		Name:       name,
		Attributes: attributes,
	}
}

package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagcore/go-server-sdk/pkg/logger"
	"github.com/flagcore/go-server-sdk/pkg/model"
	"github.com/flagcore/go-server-sdk/pkg/rest"
)

type fakeAPI struct {
	mu       sync.Mutex
	payloads []rest.Metrics
	err      error
}

func (f *fakeAPI) PostMetrics(_ context.Context, _ string, _ string, payload rest.Metrics) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeAPI) submissions() []rest.Metrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]rest.Metrics(nil), f.payloads...)
}

func testFlag() model.FeatureConfig {
	return model.FeatureConfig{Feature: "bool-flag", Kind: model.KindBoolean}
}

func testVariation() model.Variation {
	return model.Variation{Identifier: "true", Value: "true"}
}

func newTestProcessor(api API) *Processor {
	return NewProcessor(api, "test-env", "1", time.Hour, logger.NewNop())
}

func totalCount(payload rest.Metrics) int64 {
	var total int64
	for _, md := range payload.MetricsData {
		total += md.Count
	}
	return total
}

func TestEnqueueAggregatesByFlagVariationValue(t *testing.T) {
	api := &fakeAPI{}
	p := newTestProcessor(api)

	fc := testFlag()
	variation := testVariation()
	for i := 0; i < 5; i++ {
		// distinct targets share one counter
		target := &model.Target{Identifier: string(rune('a' + i))}
		p.Enqueue(target, fc, variation)
	}
	p.Close()

	subs := api.submissions()
	require.Len(t, subs, 1)
	require.Len(t, subs[0].MetricsData, 1)
	assert.Equal(t, int64(5), subs[0].MetricsData[0].Count)
	assert.Equal(t, rest.MetricsTypeFFMetrics, subs[0].MetricsData[0].MetricsType)
}

func TestDistinctVariationsGetDistinctRecords(t *testing.T) {
	api := &fakeAPI{}
	p := newTestProcessor(api)

	fc := testFlag()
	p.Enqueue(&model.Target{Identifier: "t"}, fc, model.Variation{Identifier: "true", Value: "true"})
	p.Enqueue(&model.Target{Identifier: "t"}, fc, model.Variation{Identifier: "false", Value: "false"})
	p.Close()

	subs := api.submissions()
	require.Len(t, subs, 1)
	assert.Len(t, subs[0].MetricsData, 2)
}

func TestMetricsAttributes(t *testing.T) {
	api := &fakeAPI{}
	p := newTestProcessor(api)

	target := &model.Target{
		Identifier: "user-1",
		Name:       "User One",
		Attributes: map[string]interface{}{"email": "user@harness.io"},
	}
	p.Enqueue(target, testFlag(), testVariation())
	p.Close()

	subs := api.submissions()
	require.Len(t, subs, 1)
	require.Len(t, subs[0].MetricsData, 1)

	attrs := map[string]string{}
	for _, kv := range subs[0].MetricsData[0].Attributes {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "bool-flag", attrs[featureIdentifierAttribute])
	assert.Equal(t, "true", attrs[variationIdentifierAttribute])
	assert.Equal(t, sdkLanguage, attrs[sdkLanguageAttribute])
	assert.Equal(t, sdkType, attrs[sdkTypeAttribute])
	assert.Equal(t, "user-1", attrs[targetAttribute])

	require.Len(t, subs[0].TargetData, 1)
	assert.Equal(t, "user-1", subs[0].TargetData[0].Identifier)
	assert.Equal(t, "User One", subs[0].TargetData[0].Name)
}

func TestAnonymousTargetsExcludedFromTargetData(t *testing.T) {
	api := &fakeAPI{}
	p := newTestProcessor(api)

	p.Enqueue(&model.Target{Identifier: "ghost", Anonymous: true}, testFlag(), testVariation())
	p.Close()

	subs := api.submissions()
	require.Len(t, subs, 1)
	assert.Empty(t, subs[0].TargetData)
	// the usage count itself is still reported
	require.Len(t, subs[0].MetricsData, 1)
	assert.Equal(t, int64(1), subs[0].MetricsData[0].Count)
}

func TestCloseDrainsPendingCounts(t *testing.T) {
	api := &fakeAPI{}
	p := newTestProcessor(api)
	p.Start()

	p.Enqueue(&model.Target{Identifier: "t"}, testFlag(), testVariation())
	p.Close()

	subs := api.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, int64(1), totalCount(subs[0]))
}

func TestEnqueueAfterCloseIsAcceptedButNeverSubmitted(t *testing.T) {
	api := &fakeAPI{}
	p := newTestProcessor(api)
	p.Start()
	p.Close()

	assert.NotPanics(t, func() {
		p.Enqueue(&model.Target{Identifier: "late"}, testFlag(), testVariation())
	})
	p.Close() // second close is a no-op

	for _, payload := range api.submissions() {
		assert.Zero(t, totalCount(payload))
	}
}

func TestFailedSubmissionDropsBatch(t *testing.T) {
	api := &fakeAPI{err: context.DeadlineExceeded}
	p := newTestProcessor(api)

	p.Enqueue(&model.Target{Identifier: "t"}, testFlag(), testVariation())
	p.flush(context.Background())

	// the batch is gone: a subsequent flush has nothing to send
	api.err = nil
	p.flush(context.Background())
	assert.Empty(t, api.submissions())
}

func TestEmptyFlushSubmitsNothing(t *testing.T) {
	api := &fakeAPI{}
	p := newTestProcessor(api)
	p.flush(context.Background())
	assert.Empty(t, api.submissions())
}

func TestConcurrentEnqueueAndFlushLosesNothing(t *testing.T) {
	api := &fakeAPI{}
	p := newTestProcessor(api)

	const workers = 8
	const perWorker = 500

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fc := testFlag()
			variation := testVariation()
			for i := 0; i < perWorker; i++ {
				p.Enqueue(&model.Target{Identifier: "t"}, fc, variation)
			}
		}()
	}

	flushDone := make(chan struct{})
	go func() {
		defer close(flushDone)
		for i := 0; i < 20; i++ {
			p.flush(context.Background())
		}
	}()

	wg.Wait()
	<-flushDone
	p.Close()

	var total int64
	for _, payload := range api.submissions() {
		total += totalCount(payload)
	}
	assert.Equal(t, int64(workers*perWorker), total)
}

func TestStartIsIdempotent(t *testing.T) {
	api := &fakeAPI{}
	p := newTestProcessor(api)
	p.Start()
	p.Start()
	p.Close()
}

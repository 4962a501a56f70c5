package evaluation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagcore/go-server-sdk/pkg/logger"
	"github.com/flagcore/go-server-sdk/pkg/model"
)

type fakeQuery struct {
	flags    map[string]model.FeatureConfig
	segments map[string]model.Segment
}

func (q *fakeQuery) GetFlag(identifier string) (model.FeatureConfig, error) {
	fc, ok := q.flags[identifier]
	if !ok {
		return model.FeatureConfig{}, fmt.Errorf("flag %q: %w", identifier, model.ErrFlagNotFound)
	}
	return fc, nil
}

func (q *fakeQuery) GetSegment(identifier string) (model.Segment, error) {
	seg, ok := q.segments[identifier]
	if !ok {
		return model.Segment{}, fmt.Errorf("segment %q: %w", identifier, model.ErrSegmentNotFound)
	}
	return seg, nil
}

func (q *fakeQuery) FindFlagsBySegment(string) ([]string, error) {
	return nil, nil
}

type recordedUsage struct {
	events int
}

func (r *recordedUsage) Enqueue(*model.Target, model.FeatureConfig, model.Variation) {
	r.events++
}

func newTestEvaluator(t *testing.T, q *fakeQuery, usage UsageRecorder) *Evaluator {
	t.Helper()
	e, err := New(q, usage, logger.NewNop())
	require.NoError(t, err)
	return e
}

func boolFlag(feature string, state string) model.FeatureConfig {
	return model.FeatureConfig{
		Feature: feature,
		Kind:    model.KindBoolean,
		State:   state,
		Variations: []model.Variation{
			{Identifier: "true", Name: "True", Value: "true"},
			{Identifier: "false", Name: "False", Value: "false"},
		},
		DefaultServe: model.Serve{Variation: "false"},
		OffVariation: "false",
	}
}

func TestOffFlagServesOffVariation(t *testing.T) {
	fc := boolFlag("bool-flag", model.FlagStateOff)
	fc.DefaultServe = model.Serve{Variation: "true"}
	// rules and overrides must not be consulted when the flag is off
	fc.VariationToTargetMap = []model.VariationMap{
		{Variation: "true", Targets: []string{"joe"}},
	}
	fc.Rules = []model.ServingRule{{
		RuleID:  "rule1",
		Clauses: []model.Clause{{Attribute: "identifier", Op: model.OpEqual, Values: []string{"joe"}}},
		Serve:   model.Serve{Variation: "true"},
	}}

	q := &fakeQuery{flags: map[string]model.FeatureConfig{"bool-flag": fc}}
	e := newTestEvaluator(t, q, nil)

	target := &model.Target{Identifier: "joe"}
	assert.False(t, e.BoolVariation("bool-flag", target, true))
}

func TestVariationMapTakesPrecedenceOverRules(t *testing.T) {
	fc := boolFlag("bool-flag", model.FlagStateOn)
	fc.VariationToTargetMap = []model.VariationMap{
		{Variation: "false", Targets: []string{"joe"}},
	}
	fc.Rules = []model.ServingRule{{
		RuleID:  "rule1",
		Clauses: []model.Clause{{Attribute: "identifier", Op: model.OpEqual, Values: []string{"joe"}}},
		Serve:   model.Serve{Variation: "true"},
	}}

	q := &fakeQuery{flags: map[string]model.FeatureConfig{"bool-flag": fc}}
	e := newTestEvaluator(t, q, nil)

	// joe matches the rule too, but the override wins
	assert.False(t, e.BoolVariation("bool-flag", &model.Target{Identifier: "joe"}, true))
	// everyone else falls through the rule's non-match to the default
	assert.False(t, e.BoolVariation("bool-flag", &model.Target{Identifier: "ann"}, true))
}

func TestFirstMatchingRuleWins(t *testing.T) {
	fc := model.FeatureConfig{
		Feature: "string-flag",
		Kind:    model.KindString,
		State:   model.FlagStateOn,
		Variations: []model.Variation{
			{Identifier: "red", Value: "#CC0000"},
			{Identifier: "blue", Value: "#0000CC"},
			{Identifier: "green", Value: "#00CC00"},
		},
		DefaultServe: model.Serve{Variation: "green"},
		OffVariation: "green",
		Rules: []model.ServingRule{
			{
				RuleID:  "rule1",
				Clauses: []model.Clause{{Attribute: "role", Op: model.OpEqual, Values: []string{"developer"}}},
				Serve:   model.Serve{Variation: "red"},
			},
			{
				RuleID:  "rule2",
				Clauses: []model.Clause{{Attribute: "role", Op: model.OpEqual, Values: []string{"developer", "manager"}}},
				Serve:   model.Serve{Variation: "blue"},
			},
		},
	}

	q := &fakeQuery{flags: map[string]model.FeatureConfig{"string-flag": fc}}
	e := newTestEvaluator(t, q, nil)

	dev := &model.Target{Identifier: "dev", Attributes: map[string]interface{}{"role": "developer"}}
	mgr := &model.Target{Identifier: "mgr", Attributes: map[string]interface{}{"role": "manager"}}
	other := &model.Target{Identifier: "other", Attributes: map[string]interface{}{"role": "intern"}}

	assert.Equal(t, "#CC0000", e.StringVariation("string-flag", dev, "fallback"))
	assert.Equal(t, "#0000CC", e.StringVariation("string-flag", mgr, "fallback"))
	assert.Equal(t, "#00CC00", e.StringVariation("string-flag", other, "fallback"))
}

func TestBucketByFallsBackToIdentifier(t *testing.T) {
	fc := model.FeatureConfig{
		Feature: "flag",
		Kind:    model.KindString,
		State:   model.FlagStateOn,
		Variations: []model.Variation{
			{Identifier: "variation1", Value: "default_on"},
			{Identifier: "variation2", Value: "wanted_value"},
			{Identifier: "variation3", Value: "default_off"},
		},
		DefaultServe: model.Serve{Variation: "default_on"},
		OffVariation: "variation3",
		Rules: []model.ServingRule{{
			RuleID:  "rule1",
			Clauses: []model.Clause{{Attribute: "identifier", Op: model.OpEqual, Values: []string{"test"}}},
			Serve: model.Serve{Distribution: &model.Distribution{
				BucketBy: "i_do_not_exist",
				Variations: []model.WeightedVariation{
					{Variation: "variation1", Weight: 56},
					{Variation: "variation2", Weight: 1}, // bucket 57
					{Variation: "variation3", Weight: 43},
				},
			}},
		}},
	}

	q := &fakeQuery{flags: map[string]model.FeatureConfig{"flag": fc}}
	e := newTestEvaluator(t, q, nil)

	// identifier "test" buckets to 57, the single bucket of variation2
	target := &model.Target{
		Identifier: "test",
		Name:       "test name",
		Attributes: map[string]interface{}{"location": "emea"},
	}
	assert.Equal(t, "wanted_value", e.StringVariation("flag", target, "fallback_value"))
}

func segmentFixtures() map[string]model.Segment {
	return map[string]model.Segment{
		"or-segment": {
			Identifier: "or-segment",
			Name:       "is_harness_or_somethingelse_email_OR",
			ServingRules: []model.SegmentRule{
				{
					RuleID:   "this_or_rule_with_lower_priority_should_be_ignored",
					Priority: 7,
					Clauses:  []model.Clause{{Attribute: "email", Op: model.OpEndsWith, Values: []string{"@harness.io"}}},
				},
				{
					RuleID:   "rule1",
					Priority: 1,
					Clauses:  []model.Clause{{Attribute: "email", Op: model.OpEndsWith, Values: []string{"@harness.io"}}},
				},
				{
					RuleID:   "rule2",
					Priority: 2,
					Clauses:  []model.Clause{{Attribute: "email", Op: model.OpEndsWith, Values: []string{"@somethingelse.com"}}},
				},
			},
		},
		"and-segment": {
			Identifier: "and-segment",
			Name:       "is_a_harness_developer_AND",
			ServingRules: []model.SegmentRule{
				{
					RuleID:   "rule1",
					Priority: 1,
					Clauses: []model.Clause{
						{Attribute: "email", Op: model.OpEndsWith, Values: []string{"@harness.io"}},
						{Attribute: "role", Op: model.OpEqual, Values: []string{"developer"}},
					},
				},
			},
		},
	}
}

func segmentGatedFlag(feature string, segment string) model.FeatureConfig {
	fc := boolFlag(feature, model.FlagStateOn)
	fc.VariationToTargetMap = []model.VariationMap{
		{Variation: "true", TargetSegments: []string{segment}},
	}
	return fc
}

func TestSegmentRules(t *testing.T) {
	q := &fakeQuery{
		flags: map[string]model.FeatureConfig{
			"boolflag_or":  segmentGatedFlag("boolflag_or", "or-segment"),
			"boolflag_and": segmentGatedFlag("boolflag_and", "and-segment"),
		},
		segments: segmentFixtures(),
	}
	e := newTestEvaluator(t, q, nil)

	tests := []struct {
		name     string
		flag     string
		email    string
		role     string
		expected bool
	}{
		{"email_is_dev", "boolflag_and", "user@harness.io", "developer", true},
		{"email_is_mgr", "boolflag_and", "user@harness.io", "manager", false},
		{"ext_email_is_dev", "boolflag_and", "user@gmail.com", "developer", false},
		{"ext_email_is_mgr", "boolflag_and", "user@gmail.com", "manager", false},
		{"email_is_harness", "boolflag_or", "user@harness.io", "n/a", true},
		{"email_is_other", "boolflag_or", "user@somethingelse.com", "n/a", true},
		{"email_is_gmail", "boolflag_or", "user@gmail.com", "n/a", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := &model.Target{
				Identifier: tt.name,
				Name:       tt.name,
				Attributes: map[string]interface{}{"email": tt.email, "role": tt.role},
			}
			assert.Equal(t, tt.expected, e.BoolVariation(tt.flag, target, !tt.expected))
		})
	}
}

func TestSegmentIncludeExclude(t *testing.T) {
	q := &fakeQuery{
		flags: map[string]model.FeatureConfig{
			"gated": segmentGatedFlag("gated", "vip"),
		},
		segments: map[string]model.Segment{
			"vip": {
				Identifier: "vip",
				Included:   []string{"alice", "bob"},
				Excluded:   []string{"bob"},
			},
		},
	}
	e := newTestEvaluator(t, q, nil)

	assert.True(t, e.BoolVariation("gated", &model.Target{Identifier: "alice"}, false))
	// exclusion wins over inclusion
	assert.False(t, e.BoolVariation("gated", &model.Target{Identifier: "bob"}, true))
	assert.False(t, e.BoolVariation("gated", &model.Target{Identifier: "carol"}, true))
}

func TestFlagNotFoundServesDefault(t *testing.T) {
	usage := &recordedUsage{}
	e := newTestEvaluator(t, &fakeQuery{}, usage)

	assert.True(t, e.BoolVariation("missing", &model.Target{Identifier: "t"}, true))
	assert.Equal(t, "fallback", e.StringVariation("missing", &model.Target{Identifier: "t"}, "fallback"))
	assert.Equal(t, 0, usage.events, "fallback paths must not emit telemetry")
}

func TestKindMismatchServesDefault(t *testing.T) {
	q := &fakeQuery{flags: map[string]model.FeatureConfig{
		"bool-flag": boolFlag("bool-flag", model.FlagStateOn),
	}}
	usage := &recordedUsage{}
	e := newTestEvaluator(t, q, usage)

	assert.Equal(t, "fallback", e.StringVariation("bool-flag", &model.Target{Identifier: "t"}, "fallback"))
	assert.Equal(t, 42.0, e.NumberVariation("bool-flag", &model.Target{Identifier: "t"}, 42.0))
	assert.Equal(t, 0, usage.events)
}

func TestMalformedValueServesDefault(t *testing.T) {
	fc := model.FeatureConfig{
		Feature: "number-flag",
		Kind:    model.KindNumber,
		State:   model.FlagStateOn,
		Variations: []model.Variation{
			{Identifier: "one", Value: "not-a-number"},
		},
		DefaultServe: model.Serve{Variation: "one"},
		OffVariation: "one",
	}
	usage := &recordedUsage{}
	e := newTestEvaluator(t, &fakeQuery{flags: map[string]model.FeatureConfig{"number-flag": fc}}, usage)

	assert.Equal(t, 7.5, e.NumberVariation("number-flag", &model.Target{Identifier: "t"}, 7.5))
	assert.Equal(t, 0, usage.events)
}

func TestDanglingVariationReferenceServesDefault(t *testing.T) {
	fc := boolFlag("bool-flag", model.FlagStateOn)
	fc.DefaultServe = model.Serve{Variation: "does-not-exist"}
	usage := &recordedUsage{}
	e := newTestEvaluator(t, &fakeQuery{flags: map[string]model.FeatureConfig{"bool-flag": fc}}, usage)

	assert.True(t, e.BoolVariation("bool-flag", &model.Target{Identifier: "t"}, true))
	assert.Equal(t, 0, usage.events)
}

func TestEmptyDistributionFallsBackToOffVariation(t *testing.T) {
	fc := boolFlag("bool-flag", model.FlagStateOn)
	fc.Rules = []model.ServingRule{{
		RuleID:  "rule1",
		Clauses: []model.Clause{{Attribute: "identifier", Op: model.OpEqual, Values: []string{"t"}}},
		Serve:   model.Serve{Distribution: &model.Distribution{BucketBy: "identifier"}},
	}}
	e := newTestEvaluator(t, &fakeQuery{flags: map[string]model.FeatureConfig{"bool-flag": fc}}, nil)

	// off variation is "false": the zero-length distribution must not crash
	assert.False(t, e.BoolVariation("bool-flag", &model.Target{Identifier: "t"}, true))
}

func TestJSONVariation(t *testing.T) {
	fc := model.FeatureConfig{
		Feature: "json-flag",
		Kind:    model.KindJSON,
		State:   model.FlagStateOn,
		Variations: []model.Variation{
			{Identifier: "obj", Value: `{"abc": 123}`},
		},
		DefaultServe: model.Serve{Variation: "obj"},
		OffVariation: "obj",
	}
	usage := &recordedUsage{}
	e := newTestEvaluator(t, &fakeQuery{flags: map[string]model.FeatureConfig{"json-flag": fc}}, usage)

	value := e.JSONVariation("json-flag", &model.Target{Identifier: "t"}, nil)
	assert.Equal(t, map[string]interface{}{"abc": 123.0}, value)
	assert.Equal(t, 1, usage.events)
}

func TestEvaluationIsIdempotent(t *testing.T) {
	fc := segmentGatedFlag("gated", "or-segment")
	q := &fakeQuery{
		flags:    map[string]model.FeatureConfig{"gated": fc},
		segments: segmentFixtures(),
	}
	e := newTestEvaluator(t, q, nil)

	target := &model.Target{
		Identifier: "stable",
		Attributes: map[string]interface{}{"email": "user@harness.io"},
	}
	first := e.BoolVariation("gated", target, false)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, e.BoolVariation("gated", target, false))
	}
}

func TestSuccessfulEvaluationEmitsOneUsageEvent(t *testing.T) {
	q := &fakeQuery{flags: map[string]model.FeatureConfig{
		"bool-flag": boolFlag("bool-flag", model.FlagStateOn),
	}}
	usage := &recordedUsage{}
	e := newTestEvaluator(t, q, usage)

	e.BoolVariation("bool-flag", &model.Target{Identifier: "t"}, true)
	assert.Equal(t, 1, usage.events)

	// off state is still a successful resolution and counts
	off := boolFlag("off-flag", model.FlagStateOff)
	q.flags["off-flag"] = off
	e.BoolVariation("off-flag", &model.Target{Identifier: "t"}, true)
	assert.Equal(t, 2, usage.events)
}

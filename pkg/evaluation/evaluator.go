// Package evaluation implements the flag decision engine: clause matching,
// consistent bucketing, segment resolution and the typed accessors exposed to
// the host application.
//
// Evaluation is synchronous and side-effect free apart from usage recording.
// It reads flag and segment definitions through the Query interface and never
// mutates them, so it is safe to call concurrently against a shared store.
package evaluation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/flagcore/go-server-sdk/pkg/logger"
	"github.com/flagcore/go-server-sdk/pkg/model"
)

// Query is the storage collaborator the evaluator reads from.
type Query interface {
	GetFlag(identifier string) (model.FeatureConfig, error)
	GetSegment(identifier string) (model.Segment, error)
	FindFlagsBySegment(segmentIdentifier string) ([]string, error)
}

// UsageRecorder receives one event per successfully resolved evaluation.
// Implementations must be non-blocking.
type UsageRecorder interface {
	Enqueue(target *model.Target, featureConfig model.FeatureConfig, variation model.Variation)
}

// Evaluator decides which variation of a flag a target receives.
type Evaluator struct {
	query Query
	usage UsageRecorder
	log   *logger.Logger
}

// New builds an evaluator. usage may be nil when analytics are disabled.
func New(query Query, usage UsageRecorder, log *logger.Logger) (*Evaluator, error) {
	if query == nil {
		return nil, errors.New("query parameter is required")
	}
	return &Evaluator{
		query: query,
		usage: usage,
		log:   log.Named("evaluator"),
	}, nil
}

// evaluate runs the full decision pipeline for one flag and one target and
// checks the flag's declared kind against the accessor's expectation.
func (e *Evaluator) evaluate(flagIdentifier string, target *model.Target, kind string) (model.FeatureConfig, model.Variation, error) {
	fc, err := e.query.GetFlag(flagIdentifier)
	if err != nil {
		return model.FeatureConfig{}, model.Variation{}, err
	}
	if fc.Kind != kind {
		return fc, model.Variation{}, fmt.Errorf("flag %q is of kind %q, requested %q: %w",
			flagIdentifier, fc.Kind, kind, model.ErrKindMismatch)
	}
	variation, err := e.evaluateFlag(&fc, target)
	if err != nil {
		return fc, model.Variation{}, err
	}
	return fc, variation, nil
}

// evaluateFlag applies the decision order: off state, then overrides, then
// rules, then the default serve.
func (e *Evaluator) evaluateFlag(fc *model.FeatureConfig, target *model.Target) (model.Variation, error) {
	if fc.State == model.FlagStateOff {
		return e.findVariation(fc, fc.OffVariation)
	}

	if identifier := e.evaluateVariationMap(fc, target); identifier != "" {
		return e.findVariation(fc, identifier)
	}

	if matched, identifier := e.evaluateRules(fc, target); matched {
		if identifier == "" {
			// serve resolved to nothing (e.g. empty distribution);
			// fall through to the off variation as the safe default
			e.log.Warnf("flag %s rule serve resolved no variation, serving off variation", fc.Feature)
			return e.findVariation(fc, fc.OffVariation)
		}
		return e.findVariation(fc, identifier)
	}

	identifier := e.resolveServe(&fc.DefaultServe, target)
	if identifier == "" {
		e.log.Warnf("flag %s default serve resolved no variation, serving off variation", fc.Feature)
		return e.findVariation(fc, fc.OffVariation)
	}
	return e.findVariation(fc, identifier)
}

// evaluateVariationMap checks the flag's overrides in list order. The first
// override naming the target directly or through a segment wins.
func (e *Evaluator) evaluateVariationMap(fc *model.FeatureConfig, target *model.Target) string {
	if target == nil {
		return ""
	}
	for _, vm := range fc.VariationToTargetMap {
		for _, t := range vm.Targets {
			if t == target.Identifier {
				return vm.Variation
			}
		}
		for _, segmentIdentifier := range vm.TargetSegments {
			if e.isSegmentMember(segmentIdentifier, target) {
				return vm.Variation
			}
		}
	}
	return ""
}

// evaluateRules walks the flag's rules in list order and resolves the serve
// of the first rule whose clauses all hold.
func (e *Evaluator) evaluateRules(fc *model.FeatureConfig, target *model.Target) (bool, string) {
	for i := range fc.Rules {
		rule := &fc.Rules[i]
		if !e.evaluateClauses(rule.Clauses, target) {
			continue
		}
		return true, e.resolveServe(&rule.Serve, target)
	}
	return false, ""
}

// resolveServe turns a serve directive into a variation identifier, either
// directly or by bucketing over its distribution. An empty result signals a
// misconfigured serve.
func (e *Evaluator) resolveServe(serve *model.Serve, target *model.Target) string {
	if serve.Variation != "" {
		return serve.Variation
	}
	return evaluateDistribution(serve.Distribution, target)
}

func (e *Evaluator) findVariation(fc *model.FeatureConfig, identifier string) (model.Variation, error) {
	variation, ok := fc.FindVariation(identifier)
	if !ok {
		return model.Variation{}, fmt.Errorf("flag %q references unknown variation %q: %w",
			fc.Feature, identifier, model.ErrMisconfigured)
	}
	return variation, nil
}

func (e *Evaluator) recordUsage(target *model.Target, fc model.FeatureConfig, variation model.Variation) {
	if e.usage != nil {
		e.usage.Enqueue(target, fc, variation)
	}
}

func targetIdentifier(target *model.Target) string {
	if target == nil {
		return "_no_target"
	}
	return target.Identifier
}

// BoolVariation evaluates a boolean flag. On any failure it logs a warning
// and returns defaultValue; it never returns an error to the host.
func (e *Evaluator) BoolVariation(flagIdentifier string, target *model.Target, defaultValue bool) bool {
	fc, variation, err := e.evaluate(flagIdentifier, target, model.KindBoolean)
	if err != nil {
		e.warnDefaultServed(flagIdentifier, target, strconv.FormatBool(defaultValue), err)
		return defaultValue
	}
	parsed, err := strconv.ParseBool(variation.Value)
	if err != nil {
		e.warnDefaultServed(flagIdentifier, target, strconv.FormatBool(defaultValue),
			fmt.Errorf("variation %q value %q: %w", variation.Identifier, variation.Value, model.ErrMalformedValue))
		return defaultValue
	}
	e.recordUsage(target, fc, variation)
	logger.DebugEvalSuccess(variation.Value, flagIdentifier, targetIdentifier(target), e.log)
	return parsed
}

// StringVariation evaluates a string flag.
func (e *Evaluator) StringVariation(flagIdentifier string, target *model.Target, defaultValue string) string {
	fc, variation, err := e.evaluate(flagIdentifier, target, model.KindString)
	if err != nil {
		e.warnDefaultServed(flagIdentifier, target, defaultValue, err)
		return defaultValue
	}
	e.recordUsage(target, fc, variation)
	logger.DebugEvalSuccess(variation.Value, flagIdentifier, targetIdentifier(target), e.log)
	return variation.Value
}

// NumberVariation evaluates a numeric flag.
func (e *Evaluator) NumberVariation(flagIdentifier string, target *model.Target, defaultValue float64) float64 {
	fc, variation, err := e.evaluate(flagIdentifier, target, model.KindNumber)
	if err != nil {
		e.warnDefaultServed(flagIdentifier, target, strconv.FormatFloat(defaultValue, 'f', -1, 64), err)
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(variation.Value, 64)
	if err != nil {
		e.warnDefaultServed(flagIdentifier, target, strconv.FormatFloat(defaultValue, 'f', -1, 64),
			fmt.Errorf("variation %q value %q: %w", variation.Identifier, variation.Value, model.ErrMalformedValue))
		return defaultValue
	}
	e.recordUsage(target, fc, variation)
	logger.DebugEvalSuccess(variation.Value, flagIdentifier, targetIdentifier(target), e.log)
	return parsed
}

// JSONVariation evaluates a structured flag.
func (e *Evaluator) JSONVariation(flagIdentifier string, target *model.Target, defaultValue map[string]interface{}) map[string]interface{} {
	fc, variation, err := e.evaluate(flagIdentifier, target, model.KindJSON)
	if err != nil {
		e.warnDefaultServed(flagIdentifier, target, "json default", err)
		return defaultValue
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(variation.Value), &parsed); err != nil {
		e.warnDefaultServed(flagIdentifier, target, "json default",
			fmt.Errorf("variation %q value: %w", variation.Identifier, model.ErrMalformedValue))
		return defaultValue
	}
	e.recordUsage(target, fc, variation)
	logger.DebugEvalSuccess(variation.Identifier, flagIdentifier, targetIdentifier(target), e.log)
	return parsed
}

func (e *Evaluator) warnDefaultServed(flagIdentifier string, target *model.Target, defaultValue string, err error) {
	e.log.Debugf("evaluation of flag %s failed: %v", flagIdentifier, err)
	logger.WarnDefaultVariationServed(flagIdentifier, targetIdentifier(target), defaultValue, e.log)
}

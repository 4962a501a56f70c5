package evaluation

import (
	"errors"
	"sort"

	"github.com/flagcore/go-server-sdk/pkg/model"
)

// isSegmentMember resolves a segment by identifier and tests membership. An
// unknown segment is a non-match, never an evaluation failure.
func (e *Evaluator) isSegmentMember(segmentIdentifier string, target *model.Target) bool {
	segment, err := e.query.GetSegment(segmentIdentifier)
	if err != nil {
		if !errors.Is(err, model.ErrSegmentNotFound) {
			e.log.Warnf("segment %s lookup failed: %v", segmentIdentifier, err)
		}
		return false
	}
	return e.isTargetInSegment(&segment, target)
}

// isTargetInSegment decides membership. Exclusion wins over inclusion,
// inclusion wins over the serving rules. Rules OR across each other in
// ascending priority order with short-circuit on the first full match;
// within a rule, clauses AND. A segment with no rules and no includes has
// no members.
func (e *Evaluator) isTargetInSegment(segment *model.Segment, target *model.Target) bool {
	if target != nil {
		for _, excluded := range segment.Excluded {
			if excluded == target.Identifier {
				return false
			}
		}
		for _, included := range segment.Included {
			if included == target.Identifier {
				return true
			}
		}
	}

	rules := segment.ServingRules
	if !sort.SliceIsSorted(rules, func(i, j int) bool { return rules[i].Priority < rules[j].Priority }) {
		rules = append([]model.SegmentRule(nil), rules...)
		sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority < rules[j].Priority })
	}

	for i := range rules {
		if e.evaluateClauses(rules[i].Clauses, target) {
			return true
		}
	}
	return false
}

package evaluation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/flagcore/go-server-sdk/pkg/model"
)

// evaluateClauses ANDs a clause list. An empty list never matches.
func (e *Evaluator) evaluateClauses(clauses []model.Clause, target *model.Target) bool {
	for i := range clauses {
		if !e.evaluateClause(&clauses[i], target) {
			return false
		}
	}
	return len(clauses) != 0
}

// evaluateClause applies one predicate against the target. A missing
// attribute fails the clause outright, before negation: missing data never
// causes a clause to pass.
func (e *Evaluator) evaluateClause(clause *model.Clause, target *model.Target) bool {
	if clause.Op == model.OpSegmentMatch {
		matched := false
		for _, segmentIdentifier := range clause.Values {
			if e.isSegmentMember(segmentIdentifier, target) {
				matched = true
				break
			}
		}
		return matched != clause.Negate
	}

	value, ok := target.Attribute(clause.Attribute)
	if !ok {
		return false
	}

	var matched bool
	switch clause.Op {
	case model.OpNotEqual:
		matched = !anyValueMatches(model.OpEqual, value, clause.Values)
	case model.OpNotIn:
		matched = !anyValueMatches(model.OpIn, value, clause.Values)
	default:
		matched = anyValueMatches(clause.Op, value, clause.Values)
	}
	return matched != clause.Negate
}

// anyValueMatches ORs the operator across the clause's listed values.
func anyValueMatches(op string, attrValue string, values []string) bool {
	for _, v := range values {
		if operatorHolds(op, attrValue, v) {
			return true
		}
	}
	return false
}

// operatorHolds applies one operator to one (attribute, clause value) pair.
// Unknown operators fail closed.
func operatorHolds(op string, attrValue string, clauseValue string) bool {
	switch op {
	case model.OpEqual:
		return strings.EqualFold(attrValue, clauseValue)
	case model.OpEqualSensitive:
		return attrValue == clauseValue
	case model.OpIn:
		return attrValue == clauseValue
	case model.OpStartsWith:
		return strings.HasPrefix(attrValue, clauseValue)
	case model.OpEndsWith:
		return strings.HasSuffix(attrValue, clauseValue)
	case model.OpContains:
		return strings.Contains(attrValue, clauseValue)
	case model.OpMatch:
		matched, err := regexp.MatchString(clauseValue, attrValue)
		return err == nil && matched
	case model.OpGreaterThan:
		return compareOrdered(attrValue, clauseValue) > 0
	case model.OpGreaterOrEqual:
		return compareOrdered(attrValue, clauseValue) >= 0
	case model.OpLessThan:
		return compareOrdered(attrValue, clauseValue) < 0
	case model.OpLessOrEqual:
		return compareOrdered(attrValue, clauseValue) <= 0
	default:
		return false
	}
}

// compareOrdered compares numerically when both sides parse as numbers,
// lexically otherwise.
func compareOrdered(a string, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

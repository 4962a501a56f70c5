package model

// SegmentRule is one membership rule of a segment. Clauses are ANDed;
// across rules the segment ORs, evaluated in ascending Priority order with
// short-circuit on the first full match.
type SegmentRule struct {
	RuleID   string   `json:"ruleId"`
	Priority int      `json:"priority"`
	Clauses  []Clause `json:"clauses"`
}

// Segment is a named, reusable audience definition. Excluded wins over
// Included, which wins over the serving rules.
type Segment struct {
	Identifier   string        `json:"identifier"`
	Name         string        `json:"name,omitempty"`
	Included     []string      `json:"included,omitempty"`
	Excluded     []string      `json:"excluded,omitempty"`
	ServingRules []SegmentRule `json:"servingRules,omitempty"`
	Version      int64         `json:"version,omitempty"`
}

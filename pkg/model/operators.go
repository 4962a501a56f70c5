package model

// Recognized clause operators. Anything else fails the clause closed.
const (
	OpEqual          = "equal"
	OpEqualSensitive = "equal_sensitive"
	OpNotEqual       = "not_equal"
	OpStartsWith     = "starts_with"
	OpEndsWith       = "ends_with"
	OpContains       = "contains"
	OpMatch          = "match"
	OpIn             = "in"
	OpNotIn          = "not_in"
	OpGreaterThan    = "gt"
	OpGreaterOrEqual = "gte"
	OpLessThan       = "lt"
	OpLessOrEqual    = "lte"
	OpSegmentMatch   = "segmentMatch"
)

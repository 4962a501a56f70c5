package model

// Flag kinds. The stored variation values are opaque strings regardless of
// kind; the typed accessors parse them.
const (
	KindBoolean = "boolean"
	KindString  = "string"
	KindNumber  = "int"
	KindJSON    = "json"
)

// Flag lifecycle states.
const (
	FlagStateOn  = "on"
	FlagStateOff = "off"
)

// Variation is one value a flag can serve.
type Variation struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name,omitempty"`
	Value      string `json:"value"`
}

// WeightedVariation is one entry of a percentage rollout.
type WeightedVariation struct {
	Variation string `json:"variation"`
	Weight    int    `json:"weight"`
}

// Distribution buckets targets over weighted variations. BucketBy names the
// target attribute used as the hashing key.
type Distribution struct {
	BucketBy   string              `json:"bucketBy"`
	Variations []WeightedVariation `json:"variations"`
}

// Serve is the directive executed when a rule (or the default) matches:
// either a fixed variation or a distribution, never both.
type Serve struct {
	Variation    string        `json:"variation,omitempty"`
	Distribution *Distribution `json:"distribution,omitempty"`
}

// Clause is a single attribute predicate. It holds if the attribute value
// satisfies Op against any entry of Values, then the result is XORed with
// Negate.
type Clause struct {
	Attribute string   `json:"attribute"`
	Op        string   `json:"op"`
	Values    []string `json:"values"`
	Negate    bool     `json:"negate,omitempty"`
}

// ServingRule is one targeting rule of a flag. All clauses must hold (AND);
// rules are evaluated in list order with the first match winning.
type ServingRule struct {
	RuleID  string   `json:"ruleId"`
	Clauses []Clause `json:"clauses"`
	Serve   Serve    `json:"serve"`
}

// VariationMap pins a variation to explicit targets and/or segments,
// bypassing rule evaluation entirely.
type VariationMap struct {
	Variation      string   `json:"variation"`
	Targets        []string `json:"targets,omitempty"`
	TargetSegments []string `json:"targetSegments,omitempty"`
}

// FeatureConfig is the full definition of one flag as held by storage. It is
// treated as an immutable snapshot by the evaluator.
type FeatureConfig struct {
	Feature              string         `json:"feature"`
	Kind                 string         `json:"kind"`
	State                string         `json:"state"`
	Variations           []Variation    `json:"variations"`
	OffVariation         string         `json:"offVariation"`
	DefaultServe         Serve          `json:"defaultServe"`
	Rules                []ServingRule  `json:"rules,omitempty"`
	VariationToTargetMap []VariationMap `json:"variationToTargetMap,omitempty"`
	Version              int64          `json:"version,omitempty"`
}

// FindVariation returns the variation with the given identifier, or false if
// the reference dangles.
func (fc *FeatureConfig) FindVariation(identifier string) (Variation, bool) {
	for _, v := range fc.Variations {
		if v.Identifier == identifier {
			return v, true
		}
	}
	return Variation{}, false
}

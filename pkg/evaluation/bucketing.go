package evaluation

import (
	"github.com/twmb/murmur3"

	"github.com/flagcore/go-server-sdk/pkg/model"
)

// Bucketing range size. Fixed across the SDK family.
const oneHundred = 100

// bucket maps a (bucketBy, value) pair to [1, 100]. The hash is murmur3-32
// over "bucketBy:value" with the default seed; every SDK in the family must
// produce the same bucket for the same input, so neither the hash nor the key
// format may change.
func bucket(bucketBy string, value string) int {
	hash := murmur3.Sum32([]byte(bucketBy + ":" + value))
	return int(hash%oneHundred) + 1
}

// evaluateDistribution selects a variation from a weighted distribution by
// walking the cumulative weights. When the bucketBy attribute is absent the
// target is bucketed on its identifier instead; this fallback exists only
// here, never in clause matching. Weights that sum below 100 fall through to
// the last listed variation. An empty distribution resolves to nothing.
func evaluateDistribution(distribution *model.Distribution, target *model.Target) string {
	if distribution == nil || len(distribution.Variations) == 0 {
		return ""
	}

	bucketBy := distribution.BucketBy
	value, ok := target.Attribute(bucketBy)
	if !ok || value == "" {
		bucketBy = model.AttrIdentifier
		value, _ = target.Attribute(bucketBy)
	}

	n := bucket(bucketBy, value)
	total := 0
	variation := ""
	for _, wv := range distribution.Variations {
		variation = wv.Variation
		total += wv.Weight
		if n <= total {
			return wv.Variation
		}
	}
	return variation
}

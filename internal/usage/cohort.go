package usage

import "hash/fnv"

// CohortBucket maps a tenant id onto [0,100). Pure: the same tenant id
// always lands in the same bucket, independent of process, seed, or time.
func CohortBucket(tenantID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(tenantID))
	return int(h.Sum32() % 100)
}

// AssignCohort walks the variants' percentage allocations in order,
// accumulating a running total; the first variant whose cumulative
// threshold exceeds the bucket is selected. Allocations that do not sum
// to 100 leave a tail assigned to the last variant.
func AssignCohort(tenantID string, variants []Variant) Variant {
	bucket := CohortBucket(tenantID)
	cum := 0
	for _, v := range variants {
		cum += v.Percent
		if bucket < cum {
			return v
		}
	}
	return variants[len(variants)-1]
}

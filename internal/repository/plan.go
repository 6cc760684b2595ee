package repository

import "slices"

// Plan is the diff between the stored sequence numbers of one child
// collection and its desired, already re-sequenced, length.
type Plan struct {
	Update []int
	Insert []int
	Delete []int
}

// PlanSequences diffs existing sequence numbers against a desired
// collection of n rows numbered 1..n. Rows whose sequence survives are
// updated in place, missing ones inserted, and the rest deleted.
func PlanSequences(existing []int, n int) Plan {
	var p Plan
	have := make(map[int]bool, len(existing))
	for _, seq := range existing {
		have[seq] = true
		if seq < 1 || seq > n {
			p.Delete = append(p.Delete, seq)
		}
	}
	for seq := 1; seq <= n; seq++ {
		if have[seq] {
			p.Update = append(p.Update, seq)
		} else {
			p.Insert = append(p.Insert, seq)
		}
	}
	slices.Sort(p.Delete)
	return p
}

// TagKey identifies a classification tag row within one profile.
type TagKey struct {
	Group string
	Key   string
}

// TagPlan is the diff for the tag collection, keyed by (group, key).
type TagPlan struct {
	Upsert []TagKey
	Delete []TagKey
}

// PlanTags diffs stored tag keys against the desired ones.
func PlanTags(existing, desired []TagKey) TagPlan {
	var p TagPlan
	want := make(map[TagKey]bool, len(desired))
	for _, k := range desired {
		want[k] = true
	}
	for _, k := range existing {
		if !want[k] {
			p.Delete = append(p.Delete, k)
		}
	}
	p.Upsert = append(p.Upsert, desired...)
	return p
}

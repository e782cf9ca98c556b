package segments

import (
	"sort"
)

type occurrence struct {
	episode int64
	rng     EpisodeRange
}

// Aggregate clusters all pairwise matches of a show into consensus segments.
// durations maps episode id to its duration in milliseconds; totalEpisodes is
// the show's episode count in the catalog. The result is sorted by kind and
// ordinal.
func Aggregate(showID int64, matches []PairMatch, durations map[int64]int64, totalEpisodes int, p Params) []Segment {
	if len(matches) == 0 {
		return nil
	}

	occurrences := make([]occurrence, 0, len(matches)*2)
	for _, m := range matches {
		occurrences = append(occurrences,
			occurrence{episode: m.EpisodeA, rng: m.RangeA},
			occurrence{episode: m.EpisodeB, rng: m.RangeB},
		)
	}

	uf := newUnionFind(len(occurrences))
	// The two sides of a pairwise range always belong together.
	for i := 0; i < len(occurrences); i += 2 {
		uf.union(i, i+1)
	}

	// Ranges on the same episode merge when they overlap enough, so a
	// segment spanning many episode pairs collapses into one cluster.
	byEpisode := make(map[int64][]int)
	for i, occ := range occurrences {
		byEpisode[occ.episode] = append(byEpisode[occ.episode], i)
	}
	for _, indices := range byEpisode {
		for i := 0; i < len(indices); i++ {
			for j := i + 1; j < len(indices); j++ {
				a := occurrences[indices[i]].rng
				b := occurrences[indices[j]].rng
				shorter := min64(a.Duration(), b.Duration())
				if shorter <= 0 {
					continue
				}
				if float64(a.overlap(b)) >= p.MinOverlap*float64(shorter) {
					uf.union(indices[i], indices[j])
				}
			}
		}
	}

	clusters := make(map[int][]int)
	for i := range occurrences {
		root := uf.find(i)
		clusters[root] = append(clusters[root], i)
	}

	var candidates []Segment
	for _, members := range clusters {
		seg := buildSegment(showID, occurrences, members, durations, totalEpisodes, p)
		if seg == nil {
			continue
		}
		candidates = append(candidates, *seg)
	}

	assignOrdinals(candidates)
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Kind != candidates[j].Kind {
			return candidates[i].Kind < candidates[j].Kind
		}
		return candidates[i].Ordinal < candidates[j].Ordinal
	})
	return candidates
}

func buildSegment(showID int64, occurrences []occurrence, members []int, durations map[int64]int64, totalEpisodes int, p Params) *Segment {
	ranges := make(map[int64]EpisodeRange)
	for _, idx := range members {
		occ := occurrences[idx]
		current, ok := ranges[occ.episode]
		if !ok {
			ranges[occ.episode] = occ.rng
			continue
		}
		ranges[occ.episode] = EpisodeRange{
			StartMS: min64(current.StartMS, occ.rng.StartMS),
			EndMS:   max64(current.EndMS, occ.rng.EndMS),
		}
	}

	supporting := len(ranges)
	if supporting < p.MinSupportEpisodes {
		return nil
	}
	confidence := 1.0
	if totalEpisodes > 0 {
		confidence = float64(supporting) / float64(totalEpisodes)
		if confidence > 1 {
			confidence = 1
		}
	}
	if confidence < p.MinConfidence {
		return nil
	}

	return &Segment{
		ShowID:             showID,
		Kind:               classify(ranges, durations, p.EdgeFraction),
		Confidence:         confidence,
		SupportingEpisodes: supporting,
		Ranges:             ranges,
	}
}

// classify picks a segment kind from where the cluster sits inside its
// episodes, using median relative positions so one odd episode cannot flip
// the outcome.
func classify(ranges map[int64]EpisodeRange, durations map[int64]int64, edge float64) Kind {
	var relStarts, relEnds []float64
	for episode, rng := range ranges {
		duration := durations[episode]
		if duration <= 0 {
			continue
		}
		relStarts = append(relStarts, float64(rng.StartMS)/float64(duration))
		relEnds = append(relEnds, float64(rng.EndMS)/float64(duration))
	}
	if len(relStarts) == 0 {
		return KindUnknown
	}

	start := median(relStarts)
	end := median(relEnds)
	switch {
	case start <= edge && end >= 1-edge:
		// Covers essentially the whole episode; not a skippable region.
		return KindUnknown
	case start <= edge:
		return KindIntro
	case end >= 1-edge:
		return KindCredits
	default:
		return KindRecap
	}
}

// assignOrdinals numbers segments of the same kind by earliest start.
func assignOrdinals(segs []Segment) {
	byKind := make(map[Kind][]int)
	for i := range segs {
		byKind[segs[i].Kind] = append(byKind[segs[i].Kind], i)
	}
	for _, indices := range byKind {
		sort.Slice(indices, func(a, b int) bool {
			return earliestStart(segs[indices[a]]) < earliestStart(segs[indices[b]])
		})
		for ordinal, idx := range indices {
			segs[idx].Ordinal = ordinal
		}
	}
}

func earliestStart(seg Segment) int64 {
	var best int64 = 1<<63 - 1
	for _, rng := range seg.Ranges {
		if rng.StartMS < best {
			best = rng.StartMS
		}
	}
	return best
}

func median(values []float64) float64 {
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return (values[mid-1] + values[mid]) / 2
}

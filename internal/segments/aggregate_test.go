package segments_test

import (
	"testing"

	"cliparr/internal/segments"
)

func testParams() segments.Params {
	return segments.Params{
		MinOverlap:         0.5,
		EdgeFraction:       0.10,
		MinSupportEpisodes: 2,
		MinConfidence:      0.3,
	}
}

// pairwise builds a full mesh of matches for the same range on every episode.
func pairwise(episodes []int64, rng segments.EpisodeRange, score float64) []segments.PairMatch {
	var matches []segments.PairMatch
	for i := 0; i < len(episodes); i++ {
		for j := i + 1; j < len(episodes); j++ {
			matches = append(matches, segments.PairMatch{
				EpisodeA: episodes[i],
				EpisodeB: episodes[j],
				RangeA:   rng,
				RangeB:   rng,
				Score:    score,
			})
		}
	}
	return matches
}

func durations(episodes []int64, ms int64) map[int64]int64 {
	out := make(map[int64]int64, len(episodes))
	for _, ep := range episodes {
		out[ep] = ms
	}
	return out
}

func TestAggregateSharedOpeningBecomesOneIntro(t *testing.T) {
	episodes := []int64{1, 2, 3, 4}
	opening := segments.EpisodeRange{StartMS: 0, EndMS: 60000}
	matches := pairwise(episodes, opening, 0.9)

	segs := segments.Aggregate(10, matches, durations(episodes, 1320000), len(episodes), testParams())
	if len(segs) != 1 {
		t.Fatalf("expected one consensus segment, got %d: %#v", len(segs), segs)
	}
	seg := segs[0]
	if seg.Kind != segments.KindIntro {
		t.Fatalf("segment at episode start should be an intro, got %s", seg.Kind)
	}
	if seg.SupportingEpisodes != 4 {
		t.Fatalf("expected 4 supporting episodes, got %d", seg.SupportingEpisodes)
	}
	if seg.Confidence != 1.0 {
		t.Fatalf("full support should give confidence 1.0, got %f", seg.Confidence)
	}
	if seg.Ordinal != 0 {
		t.Fatalf("single intro should have ordinal 0, got %d", seg.Ordinal)
	}
	for _, ep := range episodes {
		rng, ok := seg.Ranges[ep]
		if !ok {
			t.Fatalf("missing range for episode %d", ep)
		}
		if rng != opening {
			t.Fatalf("episode %d range mangled: %#v", ep, rng)
		}
	}
}

func TestAggregateClassifiesByPosition(t *testing.T) {
	episodes := []int64{1, 2, 3}
	duration := int64(1200000)

	cases := []struct {
		name string
		rng  segments.EpisodeRange
		want segments.Kind
	}{
		{"opening", segments.EpisodeRange{StartMS: 0, EndMS: 90000}, segments.KindIntro},
		{"closing", segments.EpisodeRange{StartMS: 1110000, EndMS: 1200000}, segments.KindCredits},
		{"middle", segments.EpisodeRange{StartMS: 300000, EndMS: 400000}, segments.KindRecap},
		{"whole episode", segments.EpisodeRange{StartMS: 0, EndMS: 1190000}, segments.KindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			matches := pairwise(episodes, tc.rng, 0.8)
			segs := segments.Aggregate(7, matches, durations(episodes, duration), len(episodes), testParams())
			if len(segs) != 1 {
				t.Fatalf("expected one segment, got %d", len(segs))
			}
			if segs[0].Kind != tc.want {
				t.Fatalf("expected kind %s, got %s", tc.want, segs[0].Kind)
			}
		})
	}
}

func TestAggregateMergesOverlappingRanges(t *testing.T) {
	// The same opening seen through two pairs with slightly different bounds
	// must collapse into a single segment covering the union per episode.
	matches := []segments.PairMatch{
		{
			EpisodeA: 1, EpisodeB: 2,
			RangeA: segments.EpisodeRange{StartMS: 0, EndMS: 58000},
			RangeB: segments.EpisodeRange{StartMS: 0, EndMS: 58000},
			Score:  0.9,
		},
		{
			EpisodeA: 2, EpisodeB: 3,
			RangeA: segments.EpisodeRange{StartMS: 2000, EndMS: 60000},
			RangeB: segments.EpisodeRange{StartMS: 1000, EndMS: 60000},
			Score:  0.9,
		},
	}
	episodes := []int64{1, 2, 3}

	segs := segments.Aggregate(3, matches, durations(episodes, 1300000), len(episodes), testParams())
	if len(segs) != 1 {
		t.Fatalf("overlapping ranges should merge into one segment, got %d: %#v", len(segs), segs)
	}
	seg := segs[0]
	if seg.SupportingEpisodes != 3 {
		t.Fatalf("expected merged segment across 3 episodes, got %d", seg.SupportingEpisodes)
	}
	if got := seg.Ranges[2]; got.StartMS != 0 || got.EndMS != 60000 {
		t.Fatalf("episode 2 range should be the union, got %#v", got)
	}
}

func TestAggregateKeepsDisjointSegmentsSeparate(t *testing.T) {
	episodes := []int64{1, 2}
	intro := segments.EpisodeRange{StartMS: 0, EndMS: 55000}
	credits := segments.EpisodeRange{StartMS: 1250000, EndMS: 1300000}

	matches := append(
		pairwise(episodes, intro, 0.9),
		pairwise(episodes, credits, 0.9)...,
	)
	segs := segments.Aggregate(5, matches, durations(episodes, 1300000), len(episodes), testParams())
	if len(segs) != 2 {
		t.Fatalf("expected intro and credits, got %d: %#v", len(segs), segs)
	}
	if segs[0].Kind != segments.KindCredits || segs[1].Kind != segments.KindIntro {
		t.Fatalf("unexpected kinds: %s, %s", segs[0].Kind, segs[1].Kind)
	}
}

func TestAggregateDropsUnderSupportedClusters(t *testing.T) {
	episodes := []int64{1, 2}
	matches := pairwise(episodes, segments.EpisodeRange{StartMS: 0, EndMS: 50000}, 0.9)

	p := testParams()
	p.MinSupportEpisodes = 3
	if segs := segments.Aggregate(9, matches, durations(episodes, 1200000), 10, p); len(segs) != 0 {
		t.Fatalf("two-episode cluster should be dropped at min support 3, got %#v", segs)
	}
}

func TestAggregateDropsLowConfidenceClusters(t *testing.T) {
	episodes := []int64{1, 2}
	matches := pairwise(episodes, segments.EpisodeRange{StartMS: 0, EndMS: 50000}, 0.9)

	// 2 of 20 episodes is 10% confidence, below the 30% floor.
	if segs := segments.Aggregate(9, matches, durations(episodes, 1200000), 20, testParams()); len(segs) != 0 {
		t.Fatalf("low-confidence cluster should be dropped, got %#v", segs)
	}
}

func TestAggregateCorroborationNeverLowersConfidence(t *testing.T) {
	// A new corroborating pair can only grow a cluster, so re-aggregating with
	// it must not shrink the segment's confidence or episode support.
	opening := segments.EpisodeRange{StartMS: 0, EndMS: 60000}
	all := []int64{1, 2, 3, 4}
	matches := pairwise([]int64{1, 2, 3}, opening, 0.9)

	before := segments.Aggregate(10, matches, durations(all, 1320000), len(all), testParams())
	if len(before) != 1 {
		t.Fatalf("expected one segment before corroboration, got %d: %#v", len(before), before)
	}

	corroborated := append(matches, segments.PairMatch{
		EpisodeA: 3, EpisodeB: 4,
		RangeA: opening, RangeB: opening,
		Score: 0.9,
	})
	after := segments.Aggregate(10, corroborated, durations(all, 1320000), len(all), testParams())
	if len(after) != 1 {
		t.Fatalf("expected one segment after corroboration, got %d: %#v", len(after), after)
	}

	if after[0].Confidence < before[0].Confidence {
		t.Fatalf("corroboration lowered confidence: %f -> %f", before[0].Confidence, after[0].Confidence)
	}
	if after[0].SupportingEpisodes < before[0].SupportingEpisodes {
		t.Fatalf("corroboration lowered support: %d -> %d", before[0].SupportingEpisodes, after[0].SupportingEpisodes)
	}
	if after[0].Kind != before[0].Kind {
		t.Fatalf("corroboration changed kind: %s -> %s", before[0].Kind, after[0].Kind)
	}
	if after[0].SupportingEpisodes != 4 || after[0].Confidence != 1.0 {
		t.Fatalf("new episode should join the cluster, got support %d confidence %f",
			after[0].SupportingEpisodes, after[0].Confidence)
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	if segs := segments.Aggregate(1, nil, nil, 0, testParams()); segs != nil {
		t.Fatalf("expected nil for no matches, got %#v", segs)
	}
}

func TestAggregateOrdinalsFollowStartOrder(t *testing.T) {
	episodes := []int64{1, 2, 3}
	first := segments.EpisodeRange{StartMS: 200000, EndMS: 260000}
	second := segments.EpisodeRange{StartMS: 600000, EndMS: 660000}

	matches := append(
		pairwise(episodes, second, 0.9),
		pairwise(episodes, first, 0.9)...,
	)
	segs := segments.Aggregate(2, matches, durations(episodes, 1200000), len(episodes), testParams())
	if len(segs) != 2 {
		t.Fatalf("expected two recap segments, got %d", len(segs))
	}
	for _, seg := range segs {
		if seg.Kind != segments.KindRecap {
			t.Fatalf("mid-episode segments should classify as recap, got %s", seg.Kind)
		}
	}
	if segs[0].Ordinal != 0 || segs[1].Ordinal != 1 {
		t.Fatalf("ordinals out of order: %d, %d", segs[0].Ordinal, segs[1].Ordinal)
	}
	if segs[0].Ranges[1].StartMS != 200000 {
		t.Fatalf("ordinal 0 should be the earlier segment, got start %d", segs[0].Ranges[1].StartMS)
	}
}

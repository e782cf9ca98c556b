package match

import (
	"sort"

	"cliparr/internal/config"
	"cliparr/internal/fingerprint"
)

// Params controls offset voting and range extraction.
type Params struct {
	// BinWidthMS is the offset vote bin width; one hop interval.
	BinWidthMS int64
	// DriftToleranceMS is how far a landmark pair's offset may deviate from
	// the bin consensus and still support a range.
	DriftToleranceMS int64
	// MinVotes is the minimum vote count for an offset bin to be considered.
	MinVotes int
	// MinDurationMS discards ranges shorter than this as noise.
	MinDurationMS int64
	// MaxGapMS is the largest silence between supported landmarks that still
	// extends a contiguous range.
	MaxGapMS int64
}

// DefaultParams returns matching parameters tuned for the default extraction
// hop of 128ms.
func DefaultParams() Params {
	return Params{
		BinWidthMS:       128,
		DriftToleranceMS: 50,
		MinVotes:         8,
		MinDurationMS:    3000,
		MaxGapMS:         1500,
	}
}

// ParamsFromConfig maps the analysis config section onto matching params.
func ParamsFromConfig(cfg *config.Config) Params {
	p := DefaultParams()
	if cfg == nil {
		return p
	}
	if hop := fingerprint.ParamsFromConfig(cfg).HopInterval(); hop > 0 {
		p.BinWidthMS = hop.Milliseconds()
	}
	p.DriftToleranceMS = int64(cfg.Analysis.DriftToleranceMS)
	p.MinVotes = cfg.Analysis.MinVotes
	p.MinDurationMS = int64(cfg.Analysis.MinSegmentSeconds) * 1000
	return p
}

// Range is one repeated time span found between two sequences.
type Range struct {
	// OffsetA and OffsetB are the span's start in each sequence, milliseconds.
	OffsetA int64 `json:"offset_a"`
	OffsetB int64 `json:"offset_b"`
	// LengthMS is the span duration.
	LengthMS int64 `json:"length_ms"`
	// Score is the fraction of landmarks inside the span that support the
	// consensus offset, in [0, 1].
	Score float64 `json:"score"`
	// Support is the number of distinct supporting landmarks.
	Support int `json:"support"`
}

type pair struct {
	tShort, tLong, delta int64
}

// Match finds repeated subsequences between a and b. Both inputs must be
// sorted by timestamp. Multiple disjoint ranges are legal; an empty result
// means no repeat cleared the thresholds.
func Match(a, b []fingerprint.Landmark, p Params) []Range {
	short, long := a, b
	swapped := false
	if len(b) < len(a) {
		short, long = b, a
		swapped = true
	}
	if len(short) == 0 {
		return nil
	}

	index := make(map[uint32][]int64, len(short))
	for _, lm := range short {
		index[lm.Hash] = append(index[lm.Hash], lm.T)
	}

	// First pass: vote offsets into bins.
	votes := make(map[int64]int)
	for _, lm := range long {
		for _, tShort := range index[lm.Hash] {
			votes[floorDiv(lm.T-tShort, p.BinWidthMS)]++
		}
	}

	winners := make([]int64, 0, len(votes))
	for bin, count := range votes {
		if count >= p.MinVotes {
			winners = append(winners, bin)
		}
	}
	// Strongest bins claim their landmark pairs first; ties resolve by bin
	// order so the result is independent of map iteration.
	sort.Slice(winners, func(i, j int) bool {
		if votes[winners[i]] != votes[winners[j]] {
			return votes[winners[i]] > votes[winners[j]]
		}
		return winners[i] < winners[j]
	})

	consumed := make(map[pair]struct{})
	var ranges []Range
	for _, bin := range winners {
		ranges = append(ranges, extractRanges(short, long, index, bin, p, consumed)...)
	}

	if swapped {
		for i := range ranges {
			ranges[i].OffsetA, ranges[i].OffsetB = ranges[i].OffsetB, ranges[i].OffsetA
		}
	}
	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].OffsetA != ranges[j].OffsetA {
			return ranges[i].OffsetA < ranges[j].OffsetA
		}
		return ranges[i].OffsetB < ranges[j].OffsetB
	})
	return ranges
}

// extractRanges expands one winning offset bin into contiguous supported
// spans on the shorter sequence's timeline.
func extractRanges(short, long []fingerprint.Landmark, index map[uint32][]int64, bin int64, p Params, consumed map[pair]struct{}) []Range {
	binLo := bin*p.BinWidthMS - p.DriftToleranceMS
	binHi := (bin+1)*p.BinWidthMS + p.DriftToleranceMS

	var candidates []pair
	for _, lm := range long {
		for _, tShort := range index[lm.Hash] {
			delta := lm.T - tShort
			if delta < binLo || delta >= binHi {
				continue
			}
			key := pair{tShort: tShort, tLong: lm.T, delta: delta}
			if _, used := consumed[key]; used {
				continue
			}
			candidates = append(candidates, key)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	offset := medianDelta(candidates)
	supported := candidates[:0]
	for _, c := range candidates {
		if abs64(c.delta-offset) <= p.DriftToleranceMS {
			supported = append(supported, c)
		}
	}
	if len(supported) == 0 {
		return nil
	}
	sort.Slice(supported, func(i, j int) bool {
		if supported[i].tShort != supported[j].tShort {
			return supported[i].tShort < supported[j].tShort
		}
		return supported[i].tLong < supported[j].tLong
	})

	var ranges []Range
	start := 0
	for i := 1; i <= len(supported); i++ {
		if i < len(supported) && supported[i].tShort-supported[i-1].tShort <= p.MaxGapMS {
			continue
		}
		interval := supported[start:i]
		start = i
		if r, ok := buildRange(short, interval, offset, p); ok {
			for _, c := range interval {
				consumed[c] = struct{}{}
			}
			ranges = append(ranges, r)
		}
	}
	return ranges
}

func buildRange(short []fingerprint.Landmark, interval []pair, offset int64, p Params) (Range, bool) {
	first := interval[0].tShort
	last := interval[len(interval)-1].tShort
	length := last - first
	if length < p.MinDurationMS {
		return Range{}, false
	}

	matched := make(map[int64]struct{}, len(interval))
	for _, c := range interval {
		matched[c.tShort] = struct{}{}
	}
	inSpan := 0
	for _, lm := range short {
		if lm.T >= first && lm.T <= last {
			inSpan++
		}
	}
	score := 1.0
	if inSpan > 0 {
		score = float64(len(matched)) / float64(inSpan)
		if score > 1 {
			score = 1
		}
	}
	return Range{
		OffsetA:  first,
		OffsetB:  first + offset,
		LengthMS: length,
		Score:    score,
		Support:  len(matched),
	}, true
}

func medianDelta(pairs []pair) int64 {
	deltas := make([]int64, len(pairs))
	for i, p := range pairs {
		deltas[i] = p.delta
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i] < deltas[j] })
	return deltas[(len(deltas)-1)/2]
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

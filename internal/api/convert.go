package api

import (
	"sort"
	"time"

	"cliparr/internal/jobs"
	"cliparr/internal/segments"
)

// FromJob converts a stored job into its transport form.
func FromJob(job *jobs.Job) Job {
	converted := Job{
		ID:        job.ID,
		Kind:      string(job.Kind),
		Scope:     job.Scope,
		ShowID:    job.ShowID,
		EpisodeA:  job.EpisodeA,
		EpisodeB:  job.EpisodeB,
		State:     string(job.State),
		Attempts:  job.Attempts,
		LastError: job.LastError,
	}
	if job.NextAttemptAt != nil {
		converted.NextAttemptAt = job.NextAttemptAt.UTC().Format(timeFormat)
	}
	if !job.CreatedAt.IsZero() {
		converted.CreatedAt = job.CreatedAt.UTC().Format(timeFormat)
	}
	if !job.UpdatedAt.IsZero() {
		converted.UpdatedAt = job.UpdatedAt.UTC().Format(timeFormat)
	}
	return converted
}

// FromJobs converts a job slice, preserving order.
func FromJobs(list []*jobs.Job) []Job {
	converted := make([]Job, 0, len(list))
	for _, job := range list {
		converted = append(converted, FromJob(job))
	}
	return converted
}

// FromSegment converts a consensus segment into its transport form. Per-episode
// ranges are flattened into a slice sorted by episode for stable output.
func FromSegment(seg segments.Segment) Segment {
	converted := Segment{
		ShowID:             seg.ShowID,
		Kind:               string(seg.Kind),
		Ordinal:            seg.Ordinal,
		Confidence:         seg.Confidence,
		SupportingEpisodes: seg.SupportingEpisodes,
	}
	converted.Ranges = make([]SegmentRange, 0, len(seg.Ranges))
	for episodeID, r := range seg.Ranges {
		converted.Ranges = append(converted.Ranges, SegmentRange{
			EpisodeID: episodeID,
			StartMS:   r.StartMS,
			EndMS:     r.EndMS,
		})
	}
	sort.Slice(converted.Ranges, func(i, j int) bool {
		return converted.Ranges[i].EpisodeID < converted.Ranges[j].EpisodeID
	})
	return converted
}

// FromSegments converts a segment slice, preserving order.
func FromSegments(list []segments.Segment) []Segment {
	converted := make([]Segment, 0, len(list))
	for _, seg := range list {
		converted = append(converted, FromSegment(seg))
	}
	return converted
}

// FormatTime renders a timestamp the way API payloads do.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

package api

// timeFormat is used for RFC3339 timestamps in API payloads.
const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes an analysis job in a transport-friendly format.
type Job struct {
	ID            int64  `json:"id"`
	Kind          string `json:"kind"`
	Scope         string `json:"scope"`
	ShowID        int64  `json:"showId"`
	EpisodeA      int64  `json:"episodeA,omitempty"`
	EpisodeB      int64  `json:"episodeB,omitempty"`
	State         string `json:"state"`
	Attempts      int    `json:"attempts"`
	LastError     string `json:"lastError,omitempty"`
	NextAttemptAt string `json:"nextAttemptAt,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
}

// SegmentRange locates a segment occurrence within one episode.
type SegmentRange struct {
	EpisodeID int64 `json:"episodeId"`
	StartMS   int64 `json:"startMs"`
	EndMS     int64 `json:"endMs"`
}

// Segment describes one consensus segment of a show.
type Segment struct {
	ShowID             int64          `json:"showId"`
	Kind               string         `json:"kind"`
	Ordinal            int            `json:"ordinal"`
	Confidence         float64        `json:"confidence"`
	SupportingEpisodes int            `json:"supportingEpisodes"`
	Ranges             []SegmentRange `json:"ranges"`
}

// ShowStatus summarizes analysis progress for one show.
type ShowStatus struct {
	ShowID                int64  `json:"showId"`
	Title                 string `json:"title,omitempty"`
	Episodes              int    `json:"episodes"`
	Fingerprinted         int    `json:"fingerprinted"`
	Matches               int    `json:"matches"`
	MatchesSinceAggregate int    `json:"matchesSinceAggregate"`
	Segments              int    `json:"segments"`
	LastAggregateAt       string `json:"lastAggregateAt,omitempty"`
	// InsufficientData is set while too few episodes are fingerprinted for
	// consensus segments to exist.
	InsufficientData bool `json:"insufficientData"`
}

// SchedulerStatus reports worker occupancy.
type SchedulerStatus struct {
	Workers  int `json:"workers"`
	InFlight int `json:"inFlight"`
}

// DependencyStatus captures availability of an external binary.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus is the /api/status payload.
type DaemonStatus struct {
	Running       bool                      `json:"running"`
	PID           int                       `json:"pid"`
	DatabasePath  string                    `json:"databasePath"`
	LockFilePath  string                    `json:"lockFilePath"`
	CatalogLoaded bool                      `json:"catalogLoaded"`
	Scheduler     SchedulerStatus           `json:"scheduler"`
	JobCounts     map[string]map[string]int `json:"jobCounts"`
	Shows         []ShowStatus              `json:"shows"`
	Dependencies  []DependencyStatus        `json:"dependencies"`
}

// JobListResponse is the /api/jobs payload.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// SegmentListResponse is the /api/shows/{id}/segments payload.
type SegmentListResponse struct {
	ShowID   int64     `json:"showId"`
	Segments []Segment `json:"segments"`
}

// ScanResponse is the /api/scan payload.
type ScanResponse struct {
	Requested bool `json:"requested"`
}

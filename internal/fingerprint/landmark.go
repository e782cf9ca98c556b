package fingerprint

// Landmark is a single acoustic fingerprint sample.
type Landmark struct {
	// T is the landmark position in milliseconds from the start of the stream.
	T int64
	// Hash encodes the dominant frequency bands of the anchor window and two
	// trailing windows.
	Hash uint32
	// Strength is the fraction of the anchor window's energy concentrated in
	// its dominant band, in [0, 1].
	Strength float64
}

// Sequence is the ordered landmark list for one episode's audio track.
// Landmarks are sorted by strictly increasing timestamp.
type Sequence struct {
	DurationMS int64
	Landmarks  []Landmark
}

// Empty reports whether the sequence carries no landmarks.
func (s *Sequence) Empty() bool {
	return s == nil || len(s.Landmarks) == 0
}

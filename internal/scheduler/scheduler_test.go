package scheduler_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"cliparr/internal/catalog"
	"cliparr/internal/config"
	"cliparr/internal/fingerprint"
	"cliparr/internal/fpstore"
	"cliparr/internal/jobs"
	"cliparr/internal/scheduler"
	"cliparr/internal/segments"
	"cliparr/internal/testsupport"
)

// fakeLibrary is an in-memory catalog.Provider the tests mutate directly.
type fakeLibrary struct {
	mu       sync.Mutex
	episodes map[int64]catalog.Episode
}

func newFakeLibrary(eps ...catalog.Episode) *fakeLibrary {
	l := &fakeLibrary{episodes: make(map[int64]catalog.Episode)}
	for _, ep := range eps {
		l.episodes[ep.ID] = ep
	}
	return l
}

func (l *fakeLibrary) set(ep catalog.Episode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.episodes[ep.ID] = ep
}

func (l *fakeLibrary) remove(id int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.episodes, id)
}

func (l *fakeLibrary) Episode(_ context.Context, id int64) (catalog.Episode, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ep, ok := l.episodes[id]
	if !ok {
		return catalog.Episode{}, fmt.Errorf("episode %d: %w", id, catalog.ErrNotFound)
	}
	return ep, nil
}

func (l *fakeLibrary) Episodes(_ context.Context) ([]catalog.Episode, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]catalog.Episode, 0, len(l.episodes))
	for _, ep := range l.episodes {
		result = append(result, ep)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (l *fakeLibrary) EpisodesForShow(_ context.Context, showID int64) ([]catalog.Episode, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var result []catalog.Episode
	for _, ep := range l.episodes {
		if ep.ShowID == showID {
			result = append(result, ep)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// fakeDecoder plays canned PCM per audio path.
type fakeDecoder struct {
	mu  sync.Mutex
	pcm map[string][]byte
}

func (d *fakeDecoder) set(path string, pcm []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pcm == nil {
		d.pcm = make(map[string][]byte)
	}
	d.pcm[path] = pcm
}

func (d *fakeDecoder) Decode(_ context.Context, path string) (io.ReadCloser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pcm, ok := d.pcm[path]
	if !ok {
		return nil, fmt.Errorf("no audio fixture for %s", path)
	}
	return io.NopCloser(bytes.NewReader(pcm)), nil
}

type fixture struct {
	cfg     *config.Config
	store   *jobs.Store
	prints  *fpstore.Store
	library *fakeLibrary
	decoder *fakeDecoder
	sched   *scheduler.Scheduler
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)

	f := &fixture{
		cfg:     cfg,
		store:   testsupport.MustOpenJobStore(t, cfg),
		prints:  testsupport.MustOpenFingerprintStore(t, cfg),
		library: newFakeLibrary(),
		decoder: &fakeDecoder{},
	}
	extractor := fingerprint.NewExtractorWithDecoder(f.decoder, fingerprint.Params{
		SampleRate:  8000,
		WindowSize:  256,
		HopSize:     128,
		MinStrength: 0,
		MinDuration: time.Second,
		MinCoverage: 0.8,
	}, nil)
	f.sched = scheduler.New(cfg, f.store, f.prints, extractor, f.library, nil)
	return f
}

// addEpisode registers an episode whose audio is a shared tone run followed by
// per-episode filler, so sibling episodes repeat their first four seconds.
func (f *fixture) addEpisode(id, showID int64, fillerHz float64) catalog.Episode {
	shared := testsupport.TonePCM(8000, 2.0, 440, 990)
	pcm := append(append([]byte{}, shared...), testsupport.TonePCM(8000, 2.0, fillerHz)...)

	ep := catalog.Episode{
		ID:             id,
		ShowID:         showID,
		SeasonNumber:   1,
		EpisodeNumber:  int(id),
		DurationMS:     6000,
		AudioFile:      fmt.Sprintf("ep%d.wav", id),
		ContentVersion: "v1",
	}
	f.library.set(ep)
	f.decoder.set(ep.AudioFile, pcm)
	return ep
}

func (f *fixture) run(t *testing.T) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.sched.Run(ctx)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Fatal("scheduler did not stop")
		}
	}
}

func waitFor(t *testing.T, what string, cond func() (bool, error)) {
	t.Helper()
	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		ok, err := cond()
		if err != nil {
			t.Fatalf("waiting for %s: %v", what, err)
		}
		if ok {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestCascadeProducesSegments(t *testing.T) {
	f := newFixture(t, testsupport.WithWorkers(2))
	ctx := context.Background()

	ep1 := f.addEpisode(1, 10, 1500)
	ep2 := f.addEpisode(2, 10, 2600)
	f.sched.OnEpisodeUpdated(ctx, ep1)
	f.sched.OnEpisodeUpdated(ctx, ep2)

	stop := f.run(t)
	defer stop()

	waitFor(t, "segments", func() (bool, error) {
		segs, err := f.store.SegmentsForShow(ctx, 10)
		return len(segs) > 0, err
	})

	segs, err := f.store.SegmentsForShow(ctx, 10)
	if err != nil {
		t.Fatalf("SegmentsForShow failed: %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("expected one consensus segment, got %#v", segs)
	}
	seg := segs[0]
	if seg.Kind != segments.KindIntro {
		t.Fatalf("shared opening should classify as intro, got %s", seg.Kind)
	}
	if seg.SupportingEpisodes != 2 {
		t.Fatalf("expected both episodes supporting, got %d", seg.SupportingEpisodes)
	}
	for _, id := range []int64{1, 2} {
		rng, ok := seg.Ranges[id]
		if !ok {
			t.Fatalf("missing range for episode %d", id)
		}
		if rng.StartMS > 500 {
			t.Fatalf("episode %d opening should start near zero, got %d", id, rng.StartMS)
		}
		if rng.EndMS < 3000 {
			t.Fatalf("episode %d opening should cover the shared run, got end %d", id, rng.EndMS)
		}
	}

	// Both fingerprints landed and the pair was recorded once.
	if ok, _ := f.prints.Has(ctx, 1, "v1"); !ok {
		t.Fatal("episode 1 fingerprint missing")
	}
	if ok, _ := f.store.HasMatch(ctx, 1, 2, "v1", "v1"); !ok {
		t.Fatal("pair match row missing")
	}
	if pending, _ := f.store.MatchesSinceAggregate(ctx, 10); pending != 0 {
		t.Fatalf("match counter should settle to zero, got %d", pending)
	}
}

func TestPermanentFailureDoesNotRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	broken := catalog.Episode{
		ID: 1, ShowID: 10, DurationMS: 6000,
		AudioFile: "broken.wav", ContentVersion: "v1",
	}
	f.library.set(broken)
	f.decoder.set("broken.wav", nil)
	f.sched.OnEpisodeUpdated(ctx, broken)

	healthy := f.addEpisode(2, 10, 1500)
	f.sched.OnEpisodeUpdated(ctx, healthy)

	stop := f.run(t)
	defer stop()

	waitFor(t, "terminal extract jobs", func() (bool, error) {
		listed, err := f.store.List(ctx, jobs.ListFilter{Kind: jobs.KindExtract})
		if err != nil {
			return false, err
		}
		for _, job := range listed {
			if !job.State.Terminal() {
				return false, nil
			}
		}
		return len(listed) == 2, nil
	})

	failed, err := f.store.ActiveJob(ctx, jobs.ExtractScope(1), jobs.KindExtract)
	if err != nil || failed != nil {
		t.Fatalf("broken episode should have no active job, got %#v, %v", failed, err)
	}
	listed, _ := f.store.List(ctx, jobs.ListFilter{Kind: jobs.KindExtract})
	for _, job := range listed {
		switch job.EpisodeA {
		case 1:
			if job.State != jobs.StateFailed {
				t.Fatalf("empty audio should fail, got %s", job.State)
			}
			if job.Attempts != 1 {
				t.Fatalf("permanent failure must not retry, got %d attempts", job.Attempts)
			}
		case 2:
			if job.State != jobs.StateSucceeded {
				t.Fatalf("healthy episode should succeed, got %s (%s)", job.State, job.LastError)
			}
		}
	}
}

func TestTransientFailureRetriesUntilBudget(t *testing.T) {
	f := newFixture(t, testsupport.WithMaxAttempts(2))
	ctx := context.Background()

	// Ten seconds claimed, four delivered: 40% coverage stays transient.
	short := catalog.Episode{
		ID: 1, ShowID: 10, DurationMS: 10000,
		AudioFile: "short.wav", ContentVersion: "v1",
	}
	f.library.set(short)
	f.decoder.set("short.wav", testsupport.TonePCM(8000, 2.0, 440, 880))
	f.sched.OnEpisodeUpdated(ctx, short)

	stop := f.run(t)
	defer stop()

	waitFor(t, "failed extract", func() (bool, error) {
		listed, err := f.store.List(ctx, jobs.ListFilter{Kind: jobs.KindExtract, State: jobs.StateFailed})
		return len(listed) == 1, err
	})

	listed, _ := f.store.List(ctx, jobs.ListFilter{Kind: jobs.KindExtract, State: jobs.StateFailed})
	job := listed[0]
	if job.Attempts != 2 {
		t.Fatalf("expected the full retry budget spent, got %d attempts", job.Attempts)
	}
}

func TestVersionChangeReextractsAndStalesMatches(t *testing.T) {
	f := newFixture(t, testsupport.WithWorkers(2))
	ctx := context.Background()

	ep1 := f.addEpisode(1, 10, 1500)
	ep2 := f.addEpisode(2, 10, 2600)
	f.sched.OnEpisodeUpdated(ctx, ep1)
	f.sched.OnEpisodeUpdated(ctx, ep2)

	stop := f.run(t)
	defer stop()

	waitFor(t, "initial segments", func() (bool, error) {
		segs, err := f.store.SegmentsForShow(ctx, 10)
		return len(segs) > 0, err
	})

	// Episode 1 is replaced with new content sharing the same opening.
	shared := testsupport.TonePCM(8000, 2.0, 440, 990)
	ep1.ContentVersion = "v2"
	f.library.set(ep1)
	f.decoder.set(ep1.AudioFile, append(append([]byte{}, shared...), testsupport.TonePCM(8000, 2.0, 3300)...))
	f.sched.OnEpisodeUpdated(ctx, ep1)

	waitFor(t, "re-matched pair", func() (bool, error) {
		return f.store.HasMatch(ctx, 1, 2, "v2", "v1")
	})

	// The old pairing is stale, the fresh one is the only live row.
	fresh, err := f.store.MatchesForShow(ctx, 10, false)
	if err != nil {
		t.Fatalf("MatchesForShow failed: %v", err)
	}
	if len(fresh) != 1 || fresh[0].VersionA != "v2" {
		t.Fatalf("expected only the v2 pairing live, got %#v", fresh)
	}
	all, _ := f.store.MatchesForShow(ctx, 10, true)
	if len(all) != 2 {
		t.Fatalf("stale row should remain on disk, got %d rows", len(all))
	}
	if versions, _ := f.prints.Versions(ctx, 1); len(versions) != 2 {
		t.Fatalf("expected fingerprints at both versions, got %v", versions)
	}

	waitFor(t, "re-aggregated segments", func() (bool, error) {
		segs, err := f.store.SegmentsForShow(ctx, 10)
		if err != nil || len(segs) == 0 {
			return false, err
		}
		pending, err := f.store.MatchesSinceAggregate(ctx, 10)
		return pending == 0, err
	})
}

func TestRemovedEpisodeSkipsItsJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ep := f.addEpisode(1, 10, 1500)
	f.sched.OnEpisodeUpdated(ctx, ep)
	f.library.remove(1)

	stop := f.run(t)
	defer stop()

	waitFor(t, "skipped extract", func() (bool, error) {
		listed, err := f.store.List(ctx, jobs.ListFilter{Kind: jobs.KindExtract, State: jobs.StateSkipped})
		return len(listed) == 1, err
	})

	listed, _ := f.store.List(ctx, jobs.ListFilter{Kind: jobs.KindExtract, State: jobs.StateSkipped})
	if listed[0].LastError != "episode no longer in catalog" {
		t.Fatalf("unexpected skip reason %q", listed[0].LastError)
	}
}

func TestStatusReportsWorkerConfiguration(t *testing.T) {
	f := newFixture(t, testsupport.WithWorkers(3))

	status := f.sched.Status()
	if status.Workers != 3 {
		t.Fatalf("expected 3 workers, got %d", status.Workers)
	}
	if status.InFlight != 0 {
		t.Fatalf("idle scheduler should report zero in flight, got %d", status.InFlight)
	}
}

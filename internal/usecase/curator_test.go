package usecase

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"MovieCurator/internal/curation"
	"MovieCurator/internal/domain"
	"MovieCurator/internal/infrastructure/storage"
	"MovieCurator/internal/logging"
	"MovieCurator/internal/ports"
)

var baseNow = time.Date(2030, time.March, 10, 8, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeSource struct {
	movies  []domain.Movie
	err     error
	block   chan struct{}
	entered chan struct{}

	mu    sync.Mutex
	calls []int
}

func (s *fakeSource) FetchCandidates(ctx context.Context, maxPages int) ([]domain.Movie, error) {
	s.mu.Lock()
	s.calls = append(s.calls, maxPages)
	s.mu.Unlock()
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
	return s.movies, s.err
}

func (s *fakeSource) Calls() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.calls...)
}

type memoryRepository struct {
	mu         sync.Mutex
	entries    []domain.FeaturedMovie
	updated    *time.Time
	replaceErr error
	recentErr  error
	replaces   int
	clock      func() time.Time
}

func (r *memoryRepository) ReplaceAll(_ context.Context, entries []domain.FeaturedMovie) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replaces++
	if r.replaceErr != nil {
		return r.replaceErr
	}
	r.entries = append([]domain.FeaturedMovie(nil), entries...)
	if len(entries) > 0 {
		at := r.clock()
		r.updated = &at
	}
	return nil
}

func (r *memoryRepository) ReadAll(context.Context, ports.ReadQuery) ([]domain.FeaturedMovie, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.FeaturedMovie(nil), r.entries...), nil
}

func (r *memoryRepository) MostRecentUpdate(context.Context) (*time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recentErr != nil {
		return nil, r.recentErr
	}
	return r.updated, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *recordingNotifier) PublishDigest(_ context.Context, digest string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, digest)
	return n.err
}

type stubLock struct {
	held     bool
	err      error
	unlocked int
}

func (l *stubLock) TryLock() (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	return !l.held, nil
}

func (l *stubLock) Unlock() error {
	l.unlocked++
	return nil
}

func upcomingMovies(n int) []domain.Movie {
	genres := []int{
		domain.GenreAction, domain.GenreDrama, domain.GenreComedy, domain.GenreHorror,
		domain.GenreFamily, domain.GenreThriller, domain.GenreRomance, domain.GenreWar,
		domain.GenreMusic, domain.GenreWestern, domain.GenreHistory, domain.GenreCrime,
	}
	movies := make([]domain.Movie, 0, n)
	for i := 0; i < n; i++ {
		movies = append(movies, domain.Movie{
			ID:          int64(i + 1),
			Title:       "Movie",
			ReleaseDate: baseNow.AddDate(0, 1, i),
			VoteAverage: 8,
			VoteCount:   int64(100 * (i + 1)),
			Popularity:  float64(20 + i),
			GenreIDs:    []int{genres[i%len(genres)]},
		})
	}
	return movies
}

func newTestCurator(src ports.CandidateSource, repo ports.FeaturedRepository, clock *fakeClock) *Curator {
	return NewCurator(CuratorDeps{
		Source:     src,
		Repository: repo,
		Logger:     logging.Discard(),
		Clock:      clock.Now,
		Interval:   2 * time.Hour,
	})
}

func TestCurateSuccess(t *testing.T) {
	clock := &fakeClock{now: baseNow}
	src := &fakeSource{movies: upcomingMovies(12)}
	repo := &memoryRepository{clock: clock.Now}
	notifier := &recordingNotifier{}
	curator := NewCurator(CuratorDeps{
		Source:     src,
		Repository: repo,
		Notifier:   notifier,
		Logger:     logging.Discard(),
		Clock:      clock.Now,
	})

	result := curator.Curate(context.Background(), CurateRequest{})
	if !result.Success || result.Skipped {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.MoviesProcessed != 12 || result.FeaturedEntriesSelected != domain.MaxFeatured {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if result.RunID == "" || !result.Timestamp.Equal(baseNow) {
		t.Fatalf("missing run metadata: %+v", result)
	}
	if calls := src.Calls(); len(calls) != 1 || calls[0] != DefaultPages {
		t.Fatalf("expected one fetch with default pages, got %v", calls)
	}
	if len(repo.entries) != domain.MaxFeatured {
		t.Fatalf("expected %d persisted entries, got %d", domain.MaxFeatured, len(repo.entries))
	}
	for i, e := range repo.entries {
		if e.RankPosition != i+1 || e.Category != domain.CategoryUpcoming {
			t.Fatalf("entry %d has rank %d category %q", i, e.RankPosition, e.Category)
		}
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("expected one digest, got %d", len(notifier.messages))
	}

	status := curator.Status(context.Background())
	if status.IsRunning || status.LastCuration == nil || !status.LastCuration.Equal(baseNow) {
		t.Fatalf("unexpected status: %+v", status)
	}
	if want := baseNow.Add(curation.DefaultInterval); !status.NextCurationDue.Equal(want) {
		t.Fatalf("expected next due %v, got %v", want, status.NextCurationDue)
	}
}

func TestCurateSkipsWhenFresh(t *testing.T) {
	clock := &fakeClock{now: baseNow}
	src := &fakeSource{movies: upcomingMovies(3)}
	repo := &memoryRepository{clock: clock.Now}
	curator := newTestCurator(src, repo, clock)

	if first := curator.Curate(context.Background(), CurateRequest{}); !first.Success {
		t.Fatalf("first run failed: %+v", first)
	}

	clock.Advance(time.Hour)
	second := curator.Curate(context.Background(), CurateRequest{})
	if !second.Success || !second.Skipped {
		t.Fatalf("expected skipped success, got %+v", second)
	}
	if second.MoviesProcessed != 0 || second.FeaturedEntriesSelected != 0 {
		t.Fatalf("skipped run must report zero counts: %+v", second)
	}
	if len(src.Calls()) != 1 {
		t.Fatalf("skipped run must not fetch, got %d calls", len(src.Calls()))
	}
	if second.LastCuration == nil || !second.LastCuration.Equal(baseNow) {
		t.Fatalf("skipped run should report last curation %v, got %v", baseNow, second.LastCuration)
	}
	wantNext := baseNow.Add(2 * time.Hour)
	if second.NextCurationDue == nil || !second.NextCurationDue.Equal(wantNext) {
		t.Fatalf("skipped run should report next due %v, got %v", wantNext, second.NextCurationDue)
	}
	if !strings.Contains(second.Message, wantNext.Format(time.RFC3339)) {
		t.Fatalf("skipped run should explain itself, got %q", second.Message)
	}

	forced := curator.Curate(context.Background(), CurateRequest{Force: true, MaxPages: 3})
	if !forced.Success || forced.Skipped {
		t.Fatalf("forced run should execute, got %+v", forced)
	}

	clock.Advance(2 * time.Hour)
	due := curator.Curate(context.Background(), CurateRequest{})
	if due.Skipped {
		t.Fatalf("run should be due after the interval, got %+v", due)
	}
	if calls := src.Calls(); len(calls) != 3 || calls[1] != 3 {
		t.Fatalf("unexpected fetch calls %v", calls)
	}
}

func TestCurateRejectsConcurrentRun(t *testing.T) {
	clock := &fakeClock{now: baseNow}
	src := &fakeSource{
		movies:  upcomingMovies(4),
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	repo := &memoryRepository{clock: clock.Now}
	curator := newTestCurator(src, repo, clock)

	done := make(chan domain.CurationResult, 1)
	go func() {
		done <- curator.Curate(context.Background(), CurateRequest{Force: true})
	}()
	<-src.entered

	if !curator.Status(context.Background()).IsRunning {
		t.Fatal("status should report a running curation")
	}

	second := curator.Curate(context.Background(), CurateRequest{Force: true})
	if second.Success || !errors.Is(second.Err, ErrCurationInProgress) || second.ErrorCode != CodeInProgress {
		t.Fatalf("expected in-progress failure, got %+v", second)
	}

	close(src.block)
	first := <-done
	if !first.Success {
		t.Fatalf("first run should succeed, got %+v", first)
	}
	if curator.Status(context.Background()).IsRunning {
		t.Fatal("running flag must be cleared after completion")
	}
	if len(src.Calls()) != 1 {
		t.Fatalf("rejected run must not fetch, got %d calls", len(src.Calls()))
	}
}

func TestCurateEmptyFetchFails(t *testing.T) {
	clock := &fakeClock{now: baseNow}
	repo := &memoryRepository{clock: clock.Now}
	curator := newTestCurator(&fakeSource{}, repo, clock)

	result := curator.Curate(context.Background(), CurateRequest{})
	if result.Success || !errors.Is(result.Err, ErrNoUpcomingMovies) {
		t.Fatalf("expected no-movies failure, got %+v", result)
	}
	if result.Error != "no upcoming movies found to curate" || result.ErrorCode != CodeNoMovies {
		t.Fatalf("unexpected error payload: %+v", result)
	}
	if repo.replaces != 0 {
		t.Fatal("empty fetch must not touch the store")
	}
	if curator.Status(context.Background()).LastCuration != nil {
		t.Fatal("failed run must not record last curation")
	}
}

func TestCurateFetchError(t *testing.T) {
	clock := &fakeClock{now: baseNow}
	curator := newTestCurator(&fakeSource{err: context.Canceled}, &memoryRepository{clock: clock.Now}, clock)

	result := curator.Curate(context.Background(), CurateRequest{})
	if result.Success || result.ErrorCode != CodeFetch || !errors.Is(result.Err, context.Canceled) {
		t.Fatalf("expected fetch failure, got %+v", result)
	}
}

func TestCuratePersistenceFailure(t *testing.T) {
	clock := &fakeClock{now: baseNow}
	repo := &memoryRepository{clock: clock.Now, replaceErr: errors.New("connection reset")}
	curator := newTestCurator(&fakeSource{movies: upcomingMovies(5)}, repo, clock)

	result := curator.Curate(context.Background(), CurateRequest{})
	if result.Success || !errors.Is(result.Err, ErrPersistence) || result.ErrorCode != CodePersistence {
		t.Fatalf("expected persistence failure, got %+v", result)
	}
	if result.Error != "persist featured list: connection reset" {
		t.Fatalf("error should carry the gateway message, got %q", result.Error)
	}
	if result.MoviesProcessed != 5 {
		t.Fatalf("counts should reflect the attempted run, got %+v", result)
	}
	if repo.replaces != 1 {
		t.Fatalf("persistence must not be retried, got %d attempts", repo.replaces)
	}
	if curator.Status(context.Background()).IsRunning {
		t.Fatal("running flag must be cleared after failure")
	}
}

type panickingSource struct{}

func (panickingSource) FetchCandidates(context.Context, int) ([]domain.Movie, error) {
	panic("provider exploded")
}

func TestCurateRecoversPanics(t *testing.T) {
	clock := &fakeClock{now: baseNow}
	curator := newTestCurator(panickingSource{}, &memoryRepository{clock: clock.Now}, clock)

	result := curator.Curate(context.Background(), CurateRequest{})
	if result.Success || result.ErrorCode != CodeInternal {
		t.Fatalf("expected internal failure, got %+v", result)
	}
	if curator.Status(context.Background()).IsRunning {
		t.Fatal("running flag must be cleared after a panic")
	}
	if again := curator.Curate(context.Background(), CurateRequest{}); again.ErrorCode == CodeInProgress {
		t.Fatal("curator should accept new runs after a panic")
	}
}

func TestCurateClampsMaxPages(t *testing.T) {
	clock := &fakeClock{now: baseNow}
	src := &fakeSource{movies: upcomingMovies(2)}
	curator := newTestCurator(src, &memoryRepository{clock: clock.Now}, clock)

	curator.Curate(context.Background(), CurateRequest{Force: true, MaxPages: 50})
	curator.Curate(context.Background(), CurateRequest{Force: true, MaxPages: -3})
	calls := src.Calls()
	if len(calls) != 2 || calls[0] != MaxPages || calls[1] != MinPages {
		t.Fatalf("expected clamped pages [10 1], got %v", calls)
	}
}

func TestCurateRespectsRunLock(t *testing.T) {
	clock := &fakeClock{now: baseNow}
	src := &fakeSource{movies: upcomingMovies(2)}
	held := &stubLock{held: true}
	curator := NewCurator(CuratorDeps{
		Source:     src,
		Repository: &memoryRepository{clock: clock.Now},
		Locker:     held,
		Logger:     logging.Discard(),
		Clock:      clock.Now,
	})

	result := curator.Curate(context.Background(), CurateRequest{Force: true})
	if !errors.Is(result.Err, ErrCurationInProgress) {
		t.Fatalf("held lock should report in-progress, got %+v", result)
	}
	if len(src.Calls()) != 0 {
		t.Fatal("held lock must prevent fetching")
	}

	free := &stubLock{}
	curator = NewCurator(CuratorDeps{
		Source:     src,
		Repository: &memoryRepository{clock: clock.Now},
		Locker:     free,
		Logger:     logging.Discard(),
		Clock:      clock.Now,
	})
	if result := curator.Curate(context.Background(), CurateRequest{Force: true}); !result.Success {
		t.Fatalf("free lock should allow the run, got %+v", result)
	}
	if free.unlocked != 1 {
		t.Fatalf("lock should be released once, got %d", free.unlocked)
	}

	broken := &stubLock{err: errors.New("permission denied")}
	curator = NewCurator(CuratorDeps{
		Source:     src,
		Repository: &memoryRepository{clock: clock.Now},
		Locker:     broken,
		Logger:     logging.Discard(),
		Clock:      clock.Now,
	})
	if result := curator.Curate(context.Background(), CurateRequest{Force: true}); result.ErrorCode != CodeLock {
		t.Fatalf("lock error should surface as lock failure, got %+v", result)
	}
}

func TestCurateNotifierFailureDoesNotFailRun(t *testing.T) {
	clock := &fakeClock{now: baseNow}
	notifier := &recordingNotifier{err: errors.New("telegram down")}
	curator := NewCurator(CuratorDeps{
		Source:     &fakeSource{movies: upcomingMovies(3)},
		Repository: &memoryRepository{clock: clock.Now},
		Notifier:   notifier,
		Logger:     logging.Discard(),
		Clock:      clock.Now,
	})

	if result := curator.Curate(context.Background(), CurateRequest{}); !result.Success {
		t.Fatalf("notification failure must not fail the run, got %+v", result)
	}
	if len(notifier.messages) != 1 {
		t.Fatal("digest should have been attempted")
	}
}

type guardObservingNotifier struct {
	curator  *Curator
	lock     *stubLock
	running  bool
	unlocked int
	calls    int
}

func (n *guardObservingNotifier) PublishDigest(ctx context.Context, _ string) error {
	n.calls++
	n.running = n.curator.Status(ctx).IsRunning
	n.unlocked = n.lock.unlocked
	return nil
}

func TestCurateReleasesGuardsBeforeDigest(t *testing.T) {
	clock := &fakeClock{now: baseNow}
	lock := &stubLock{}
	notifier := &guardObservingNotifier{lock: lock}
	curator := NewCurator(CuratorDeps{
		Source:     &fakeSource{movies: upcomingMovies(3)},
		Repository: &memoryRepository{clock: clock.Now},
		Locker:     lock,
		Notifier:   notifier,
		Logger:     logging.Discard(),
		Clock:      clock.Now,
	})
	notifier.curator = curator

	if result := curator.Curate(context.Background(), CurateRequest{}); !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if notifier.calls != 1 {
		t.Fatalf("expected one digest, got %d", notifier.calls)
	}
	if notifier.running {
		t.Fatal("digest must be delivered after the running flag is cleared")
	}
	if notifier.unlocked != 1 {
		t.Fatalf("digest must be delivered after the run lock is released, unlocks seen %d", notifier.unlocked)
	}
}

func TestCurateSkippedRunSendsNoDigest(t *testing.T) {
	clock := &fakeClock{now: baseNow}
	notifier := &recordingNotifier{}
	curator := NewCurator(CuratorDeps{
		Source:     &fakeSource{movies: upcomingMovies(3)},
		Repository: &memoryRepository{clock: clock.Now},
		Notifier:   notifier,
		Logger:     logging.Discard(),
		Clock:      clock.Now,
	})

	curator.Curate(context.Background(), CurateRequest{})
	if skipped := curator.Curate(context.Background(), CurateRequest{}); !skipped.Skipped {
		t.Fatalf("expected skip, got %+v", skipped)
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("only the executed run should notify, got %d digests", len(notifier.messages))
	}
}

func TestStatusFallsBackToMemoryOnStoreError(t *testing.T) {
	clock := &fakeClock{now: baseNow}
	repo := &memoryRepository{clock: clock.Now}
	curator := newTestCurator(&fakeSource{movies: upcomingMovies(2)}, repo, clock)

	if result := curator.Curate(context.Background(), CurateRequest{}); !result.Success {
		t.Fatalf("run failed: %+v", result)
	}
	repo.mu.Lock()
	repo.recentErr = errors.New("store offline")
	repo.mu.Unlock()

	clock.Advance(30 * time.Minute)
	status := curator.Status(context.Background())
	if status.LastCuration == nil || !status.LastCuration.Equal(baseNow) {
		t.Fatalf("expected in-memory fallback, got %+v", status)
	}
	if result := curator.Curate(context.Background(), CurateRequest{}); !result.Skipped {
		t.Fatalf("fallback timestamp should still gate runs, got %+v", result)
	}
}

func TestStatusUsesStoreTimestamp(t *testing.T) {
	clock := &fakeClock{now: baseNow}
	earlier := baseNow.Add(-30 * time.Minute)
	repo := &memoryRepository{clock: clock.Now, updated: &earlier}
	curator := newTestCurator(&fakeSource{movies: upcomingMovies(2)}, repo, clock)

	status := curator.Status(context.Background())
	if status.LastCuration == nil || !status.LastCuration.Equal(earlier) {
		t.Fatalf("expected store timestamp, got %+v", status)
	}
	if result := curator.Curate(context.Background(), CurateRequest{}); !result.Skipped {
		t.Fatalf("another instance's fresh batch should gate this run, got %+v", result)
	}

	empty := newTestCurator(&fakeSource{}, &memoryRepository{clock: clock.Now}, clock)
	st := empty.Status(context.Background())
	if st.LastCuration != nil || st.NextCurationDue == nil || !st.NextCurationDue.Equal(baseNow) {
		t.Fatalf("never-curated status should be due now, got %+v", st)
	}
}

func TestCurateEndToEndWithSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(ctx, "sqlite", "file:curator_e2e?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo, err := storage.NewFeaturedRepository(db, "sqlite")
	if err != nil {
		t.Fatalf("NewFeaturedRepository: %v", err)
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	now := time.Now().UTC()
	movies := upcomingMovies(12)
	for i := range movies {
		movies[i].ReleaseDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 1, i)
	}
	curator := NewCurator(CuratorDeps{
		Source:     &fakeSource{movies: movies},
		Repository: repo,
		Logger:     logging.Discard(),
	})

	for i := 0; i < 2; i++ {
		if result := curator.Curate(ctx, CurateRequest{Force: true}); !result.Success {
			t.Fatalf("run %d failed: %+v", i, result)
		}
	}

	featured, err := curator.Featured(ctx, ports.ReadQuery{})
	if err != nil {
		t.Fatalf("Featured: %v", err)
	}
	if len(featured) != domain.MaxFeatured {
		t.Fatalf("repeated forced runs must not accumulate, got %d entries", len(featured))
	}
	if featured[0].RankPosition != 1 || featured[0].CurationReasoning == "" {
		t.Fatalf("unexpected top entry: %+v", featured[0])
	}

	if result := curator.Curate(ctx, CurateRequest{}); !result.Skipped {
		t.Fatalf("store-backed staleness should skip an immediate rerun, got %+v", result)
	}
}

func TestBuildDigestMessage(t *testing.T) {
	t.Parallel()

	entries := make([]domain.FeaturedMovie, 0, 7)
	for i := 1; i <= 7; i++ {
		entries = append(entries, domain.FeaturedMovie{
			Movie:             domain.Movie{ID: int64(i), Title: "Title", ReleaseDate: baseNow},
			CurationScore:     50,
			CurationReasoning: "why",
			RankPosition:      i,
		})
	}
	msg := buildDigestMessage(entries)
	if want := "5. Title (2030-03-10)"; !containsLine(msg, want) {
		t.Fatalf("digest missing %q:\n%s", want, msg)
	}
	if containsLine(msg, "6. Title (2030-03-10)") {
		t.Fatalf("digest should stop after %d entries:\n%s", digestSize, msg)
	}
}

func containsLine(s, line string) bool {
	return slices.Contains(strings.Split(s, "\n"), line)
}

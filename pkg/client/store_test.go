package client

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fakeAPI is an in-memory watchlist server for one user.
type fakeAPI struct {
	mu     sync.Mutex
	items  map[uint]Item
	nextID uint

	listFn     func(ctx context.Context, p ListParams) (*Page, error)
	updateFn   func(ctx context.Context, id uint, u ItemUpdate) (*Item, error)
	deleteFn   func(ctx context.Context, id uint) error
	createGate chan struct{}
	failUpdate error
	failDelete error

	gets atomic.Int32

	lookups  atomic.Int32
	inflight atomic.Int32
	peak     atomic.Int32
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{items: map[uint]Item{}}
}

func (f *fakeAPI) List(ctx context.Context, p ListParams) (*Page, error) {
	if f.listFn != nil {
		return f.listFn(ctx, p)
	}
	return f.page(p), nil
}

func (f *fakeAPI) page(p ListParams) *Page {
	f.mu.Lock()
	defer f.mu.Unlock()
	page := &Page{StatusCounts: map[WatchStatus]int{}}
	for _, st := range Statuses {
		page.StatusCounts[st] = 0
	}
	for _, it := range f.items {
		page.StatusCounts[it.Status]++
		if p.Status == "" || it.Status == p.Status {
			page.Items = append(page.Items, it)
		}
	}
	sort.Slice(page.Items, func(i, j int) bool { return page.Items[i].ID > page.Items[j].ID })
	page.TotalCount = len(page.Items)
	return page
}

func (f *fakeAPI) Create(ctx context.Context, n NewItem) (*Item, error) {
	if f.createGate != nil {
		select {
		case <-f.createGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.AnimeID == n.AnimeID {
			return nil, conflictError(n.AnimeID)
		}
	}
	f.nextID++
	now := time.Now()
	it := Item{
		ID: f.nextID, AnimeID: n.AnimeID, AnimeTitle: n.AnimeTitle, Status: n.Status,
		Notes: n.Notes, AnimeScore: n.AnimeScore, CreatedAt: now, UpdatedAt: now,
	}
	if it.Status == "" {
		it.Status = PlanToWatch
	}
	f.items[it.ID] = it
	return &it, nil
}

func (f *fakeAPI) Get(_ context.Context, id uint) (*Item, error) {
	f.gets.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return nil, &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND"}
	}
	return &it, nil
}

func (f *fakeAPI) Update(ctx context.Context, id uint, u ItemUpdate) (*Item, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, u)
	}
	return f.update(id, u)
}

func (f *fakeAPI) update(id uint, u ItemUpdate) (*Item, error) {
	if f.failUpdate != nil {
		return nil, f.failUpdate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return nil, &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND"}
	}
	it = applyUpdate(it, u, time.Now())
	f.items[id] = it
	return &it, nil
}

func (f *fakeAPI) Delete(ctx context.Context, id uint) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return f.delete(id)
}

func (f *fakeAPI) delete(id uint) error {
	if f.failDelete != nil {
		return f.failDelete
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND"}
	}
	delete(f.items, id)
	return nil
}

func (f *fakeAPI) GetByAnimeID(ctx context.Context, animeID int64) (*Item, error) {
	f.lookups.Add(1)
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-time.After(5 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.AnimeID == animeID {
			return &it, nil
		}
	}
	return nil, nil
}

func (f *fakeAPI) BulkUpdateStatus(_ context.Context, ids []uint, status WatchStatus) (*BulkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := &BulkResult{Requested: len(ids)}
	for _, id := range ids {
		if it, ok := f.items[id]; ok {
			it.Status = status
			f.items[id] = it
			res.Updated++
		}
	}
	return res, nil
}

type recorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *recorder) Notify(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

func requireConsistent(t *testing.T, s *Store) Snapshot {
	t.Helper()
	snap := s.Snapshot()
	sum := 0
	for st, n := range snap.StatusCounts {
		require.GreaterOrEqual(t, n, 0, "%s count went negative: %v", st, snap.StatusCounts)
		sum += n
	}
	require.Equal(t, snap.TotalCount, sum, "status counts %v", snap.StatusCounts)
	for _, it := range snap.Items {
		if snap.Filter != "" {
			require.Equal(t, snap.Filter, it.Status, "row %d outside the filter", it.ID)
		}
	}
	require.LessOrEqual(t, len(snap.Items), snap.FilteredCount)
	return snap
}

// held blocks one call until release is closed, then returns err.
type held struct {
	started chan struct{}
	release chan struct{}
}

func newHeld() *held {
	return &held{started: make(chan struct{}), release: make(chan struct{})}
}

func (h *held) wait(ctx context.Context) error {
	close(h.started)
	select {
	case <-h.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func counts(pairs ...any) map[WatchStatus]int {
	m := zeroCounts()
	for i := 0; i < len(pairs); i += 2 {
		m[pairs[i].(WatchStatus)] = pairs[i+1].(int)
	}
	return m
}

func ptr[T any](v T) *T { return &v }

func TestStoreAddUpdateRemove(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newFakeAPI())

	item, err := s.Add(ctx, NewItem{AnimeID: 5114, AnimeTitle: "Fullmetal Alchemist: Brotherhood", Status: PlanToWatch})
	require.NoError(t, err)
	snap := requireConsistent(t, s)
	assert.Empty(t, cmp.Diff(counts(PlanToWatch, 1), snap.StatusCounts))
	assert.Equal(t, 1, snap.TotalCount)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, item.ID, snap.Items[0].ID)

	_, err = s.Update(ctx, item.ID, ItemUpdate{Status: ptr(Watching)})
	require.NoError(t, err)
	snap = requireConsistent(t, s)
	assert.Empty(t, cmp.Diff(counts(Watching, 1), snap.StatusCounts))
	assert.Equal(t, 1, snap.TotalCount)

	require.NoError(t, s.Remove(ctx, item.ID))
	snap = requireConsistent(t, s)
	assert.Equal(t, 0, snap.StatusCounts[Watching])
	assert.Equal(t, 0, snap.TotalCount)
	assert.Empty(t, snap.Items)
}

func TestStoreDuplicateAdd(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	s := NewStore(newFakeAPI(), WithNotifier(rec))

	_, err := s.Add(ctx, NewItem{AnimeID: 16498, AnimeTitle: "Attack on Titan"})
	require.NoError(t, err)
	before := s.Snapshot()

	_, err = s.Add(ctx, NewItem{AnimeID: 16498, AnimeTitle: "Attack on Titan"})
	require.Error(t, err)
	assert.Equal(t, Conflict, KindOf(err))
	assert.Equal(t, 1, rec.count())

	after := requireConsistent(t, s)
	assert.Equal(t, 1, after.TotalCount)
	assert.Empty(t, cmp.Diff(before, after))
}

func TestStoreServerConflictRollsBack(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	_, err := api.Create(ctx, NewItem{AnimeID: 16498, AnimeTitle: "Attack on Titan", Status: Completed})
	require.NoError(t, err)

	rec := &recorder{}
	s := NewStore(api, WithNotifier(rec))
	require.NoError(t, s.Fetch(ctx, ListParams{Status: Watching}))
	before := requireConsistent(t, s)
	assert.Equal(t, 1, before.TotalCount)
	assert.Equal(t, 0, before.FilteredCount)

	_, err = s.Add(ctx, NewItem{AnimeID: 16498, AnimeTitle: "Attack on Titan", Status: Watching})
	assert.Equal(t, Conflict, KindOf(err))
	assert.Equal(t, 1, rec.count())
	assert.Empty(t, cmp.Diff(before, requireConsistent(t, s)))
}

func TestStoreRollbackOnFailure(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	rec := &recorder{}
	s := NewStore(api, WithNotifier(rec))

	item, err := s.Add(ctx, NewItem{AnimeID: 1, AnimeTitle: "Mushishi", Notes: ptr("rainy day")})
	require.NoError(t, err)
	before := s.Snapshot()

	api.failUpdate = &APIError{Code: "NETWORK_ERROR", Message: "connection reset"}
	_, err = s.Update(ctx, item.ID, ItemUpdate{Status: ptr(Dropped), Notes: ptr("")})
	assert.Equal(t, NetworkError, KindOf(err))
	assert.Empty(t, cmp.Diff(before, requireConsistent(t, s)))

	api.failDelete = &APIError{Status: http.StatusInternalServerError, Code: "INTERNAL_ERROR"}
	err = s.Remove(ctx, item.ID)
	assert.Equal(t, Unknown, KindOf(err))
	assert.Empty(t, cmp.Diff(before, requireConsistent(t, s)))
	assert.Equal(t, 2, rec.count())
}

func TestStoreRemoveTwice(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newFakeAPI())

	a, err := s.Add(ctx, NewItem{AnimeID: 1, AnimeTitle: "Planetes"})
	require.NoError(t, err)
	_, err = s.Add(ctx, NewItem{AnimeID: 2, AnimeTitle: "Monster", Status: Watching})
	require.NoError(t, err)

	require.NoError(t, s.Remove(ctx, a.ID))
	before := requireConsistent(t, s)

	err = s.Remove(ctx, a.ID)
	assert.Equal(t, NotFound, KindOf(err))
	assert.Empty(t, cmp.Diff(before, requireConsistent(t, s)))
}

func TestStoreUpdateThenFetch(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newFakeAPI())

	item, err := s.Add(ctx, NewItem{AnimeID: 7, AnimeTitle: "Ping Pong"})
	require.NoError(t, err)
	_, err = s.Update(ctx, item.ID, ItemUpdate{Status: ptr(OnHold)})
	require.NoError(t, err)

	require.NoError(t, s.Fetch(ctx, ListParams{}))
	snap := requireConsistent(t, s)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, OnHold, snap.Items[0].Status)
}

func TestStoreInvariantAcrossSequence(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newFakeAPI())
	require.NoError(t, s.Fetch(ctx, ListParams{Status: Watching}))

	var ids []uint
	for i, st := range []WatchStatus{Watching, Completed, Watching, Dropped, PlanToWatch} {
		it, err := s.Add(ctx, NewItem{AnimeID: int64(100 + i), AnimeTitle: "show", Status: st})
		require.NoError(t, err)
		ids = append(ids, it.ID)
		requireConsistent(t, s)
	}
	snap := s.Snapshot()
	assert.Equal(t, 5, snap.TotalCount)
	assert.Equal(t, 2, snap.FilteredCount)
	assert.Len(t, snap.Items, 2)

	_, err := s.Update(ctx, ids[0], ItemUpdate{Status: ptr(Completed)})
	require.NoError(t, err)
	snap = requireConsistent(t, s)
	assert.Len(t, snap.Items, 1, "item left the filtered view")

	_, err = s.Update(ctx, ids[1], ItemUpdate{AnimeScore: ptr(9.5)})
	require.NoError(t, err)
	requireConsistent(t, s)

	require.NoError(t, s.Remove(ctx, ids[2]))
	snap = requireConsistent(t, s)
	assert.Equal(t, 4, snap.TotalCount)
	assert.Equal(t, 0, snap.FilteredCount)

	require.NoError(t, s.Fetch(ctx, ListParams{}))
	snap = requireConsistent(t, s)
	assert.Empty(t, cmp.Diff(counts(Completed, 2, Dropped, 1, PlanToWatch, 1), snap.StatusCounts))
}

func TestStoreCheckMembership(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	s := NewStore(api)

	got, err := s.CheckMembership(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, int32(1), api.lookups.Load())

	added, err := s.Add(ctx, NewItem{AnimeID: 5114, AnimeTitle: "Fullmetal Alchemist: Brotherhood"})
	require.NoError(t, err)

	got, err = s.CheckMembership(ctx, 5114)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, added.ID, got.ID)
	assert.Equal(t, int32(1), api.lookups.Load(), "served locally")
}

func TestStoreCheckMembershipMany(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	api := newFakeAPI()
	for _, id := range []int64{3, 6, 9} {
		_, err := api.Create(ctx, NewItem{AnimeID: id, AnimeTitle: "x"})
		require.NoError(t, err)
	}
	s := NewStore(api)

	ids := make([]int64, 12)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	got, err := s.CheckMembershipMany(ctx, ids)
	require.NoError(t, err)
	require.Len(t, got, 12)
	for _, id := range ids {
		if id%3 == 0 {
			require.NotNil(t, got[id], "anime %d", id)
			assert.Equal(t, id, got[id].AnimeID)
		} else {
			assert.Nil(t, got[id], "anime %d", id)
		}
	}
	assert.LessOrEqual(t, api.peak.Load(), int32(membershipConcurrency))
}

func TestStoreFetchCancelsSuperseded(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	api := newFakeAPI()
	_, err := api.Create(ctx, NewItem{AnimeID: 1, AnimeTitle: "Haikyuu!!", Status: Completed})
	require.NoError(t, err)

	started := make(chan struct{})
	var calls atomic.Int32
	api.listFn = func(ctx context.Context, p ListParams) (*Page, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return api.page(p), nil
	}

	rec := &recorder{}
	s := NewStore(api, WithNotifier(rec))
	first := make(chan error, 1)
	go func() { first <- s.Fetch(ctx, ListParams{Status: Watching}) }()
	<-started

	require.NoError(t, s.Fetch(ctx, ListParams{}))
	assert.ErrorIs(t, <-first, ErrSuperseded)
	assert.Equal(t, 0, rec.count(), "superseded fetch is not reported")

	snap := requireConsistent(t, s)
	assert.Equal(t, WatchStatus(""), snap.Filter)
	assert.Len(t, snap.Items, 1)
	assert.False(t, snap.Loading)
}

func TestStoreDiscardsStaleResponse(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	api := newFakeAPI()

	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32
	api.listFn = func(_ context.Context, p ListParams) (*Page, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return &Page{Items: []Item{{ID: 42, AnimeID: 42, Status: Dropped}}, TotalCount: 1,
				StatusCounts: map[WatchStatus]int{Dropped: 1}}, nil
		}
		return api.page(p), nil
	}

	s := NewStore(api)
	first := make(chan error, 1)
	go func() { first <- s.Fetch(ctx, ListParams{Status: Dropped}) }()
	<-started

	require.NoError(t, s.Fetch(ctx, ListParams{}))
	close(release)
	assert.ErrorIs(t, <-first, ErrSuperseded)

	snap := requireConsistent(t, s)
	assert.Empty(t, snap.Items)
	assert.Equal(t, 0, snap.TotalCount)
}

func TestStoreConfirmSkippedAfterFetch(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	api := newFakeAPI()
	api.createGate = make(chan struct{})
	s := NewStore(api)

	done := make(chan error, 1)
	go func() {
		_, err := s.Add(ctx, NewItem{AnimeID: 11, AnimeTitle: "Mob Psycho 100"})
		done <- err
	}()

	require.Eventually(t, func() bool { return s.Snapshot().TotalCount == 1 }, time.Second, time.Millisecond)
	require.NoError(t, s.Fetch(ctx, ListParams{}))
	assert.Equal(t, 0, requireConsistent(t, s).TotalCount)

	close(api.createGate)
	require.NoError(t, <-done)

	snap := requireConsistent(t, s)
	assert.Equal(t, 0, snap.TotalCount, "state from the newer fetch is kept")
}

func TestStoreSnapshotIsDeepCopy(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newFakeAPI())
	_, err := s.Add(ctx, NewItem{AnimeID: 1, AnimeTitle: "Cowboy Bebop", Notes: ptr("see you space cowboy")})
	require.NoError(t, err)

	snap := s.Snapshot()
	*snap.Items[0].Notes = "changed"
	snap.Items[0].AnimeTitle = "changed"
	snap.StatusCounts[PlanToWatch] = 99

	again := s.Snapshot()
	assert.Equal(t, "see you space cowboy", *again.Items[0].Notes)
	assert.Equal(t, "Cowboy Bebop", again.Items[0].AnimeTitle)
	assert.Equal(t, 1, again.StatusCounts[PlanToWatch])
}

func TestStoreFetchFailureNotifies(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	boom := &APIError{Code: "NETWORK_ERROR", Message: "dial tcp: refused", err: errors.New("refused")}
	api.listFn = func(context.Context, ListParams) (*Page, error) { return nil, boom }

	rec := &recorder{}
	s := NewStore(api, WithNotifier(rec))
	err := s.Fetch(ctx, ListParams{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, rec.count())
	assert.False(t, s.Snapshot().Loading)
}

func TestStoreClear(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newFakeAPI())
	_, err := s.Add(ctx, NewItem{AnimeID: 1, AnimeTitle: "Dororo"})
	require.NoError(t, err)

	s.Clear()
	snap := s.Snapshot()
	assert.Empty(t, snap.Items)
	assert.Empty(t, cmp.Diff(zeroCounts(), snap.StatusCounts, cmpopts.EquateEmpty()))
}

func TestStoreOverlappingUpdates(t *testing.T) {
	reset := &APIError{Code: "NETWORK_ERROR", Message: "connection reset"}
	tests := []struct {
		name      string
		firstErr  error
		secondErr error
		want      WatchStatus
	}{
		{"first fails after second lands", reset, nil, Completed},
		{"second fails while first is held", nil, reset, Watching},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t)
			ctx := context.Background()
			api := newFakeAPI()
			s := NewStore(api)
			require.NoError(t, s.Fetch(ctx, ListParams{}))
			item, err := s.Add(ctx, NewItem{AnimeID: 52991, AnimeTitle: "Sousou no Frieren"})
			require.NoError(t, err)

			h := newHeld()
			var calls atomic.Int32
			api.updateFn = func(ctx context.Context, id uint, u ItemUpdate) (*Item, error) {
				if calls.Add(1) == 1 {
					if err := h.wait(ctx); err != nil {
						return nil, err
					}
					if tt.firstErr != nil {
						return nil, tt.firstErr
					}
				} else if tt.secondErr != nil {
					return nil, tt.secondErr
				}
				return api.update(id, u)
			}

			first := make(chan error, 1)
			go func() {
				_, err := s.Update(ctx, item.ID, ItemUpdate{Status: ptr(Watching)})
				first <- err
			}()
			<-h.started

			_, err = s.Update(ctx, item.ID, ItemUpdate{Status: ptr(Completed)})
			assert.Equal(t, tt.secondErr, err)
			close(h.release)
			assert.Equal(t, tt.firstErr, <-first)

			snap := requireConsistent(t, s)
			assert.Empty(t, cmp.Diff(counts(tt.want, 1), snap.StatusCounts))
			assert.Equal(t, 1, snap.TotalCount)
			assert.Equal(t, 1, snap.FilteredCount)
			require.Len(t, snap.Items, 1)
			assert.Equal(t, tt.want, snap.Items[0].Status)

			server, err := api.Get(ctx, item.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, server.Status, "local row matches the server")
		})
	}
}

func TestStoreUpdateOverlapsRemove(t *testing.T) {
	tests := []struct {
		name      string
		updateErr error
		wantKind  ErrorKind
	}{
		{"update fails", &APIError{Code: "NETWORK_ERROR", Message: "connection reset"}, NetworkError},
		{"update reaches a deleted row", nil, NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t)
			ctx := context.Background()
			api := newFakeAPI()
			s := NewStore(api)
			require.NoError(t, s.Fetch(ctx, ListParams{}))
			item, err := s.Add(ctx, NewItem{AnimeID: 21, AnimeTitle: "One Piece"})
			require.NoError(t, err)

			h := newHeld()
			api.updateFn = func(ctx context.Context, id uint, u ItemUpdate) (*Item, error) {
				if err := h.wait(ctx); err != nil {
					return nil, err
				}
				if tt.updateErr != nil {
					return nil, tt.updateErr
				}
				return api.update(id, u)
			}

			updated := make(chan error, 1)
			go func() {
				_, err := s.Update(ctx, item.ID, ItemUpdate{Status: ptr(Watching)})
				updated <- err
			}()
			<-h.started

			require.NoError(t, s.Remove(ctx, item.ID))
			close(h.release)
			assert.Equal(t, tt.wantKind, KindOf(<-updated))

			snap := requireConsistent(t, s)
			assert.Empty(t, snap.Items, "removed row stays removed")
			assert.Empty(t, cmp.Diff(zeroCounts(), snap.StatusCounts))
			assert.Equal(t, 0, snap.TotalCount)
			assert.Equal(t, 0, snap.FilteredCount)
		})
	}
}

func TestStoreAddOverlapsRemove(t *testing.T) {
	tests := []struct {
		name      string
		deleteErr error
		want      map[WatchStatus]int
		wantRows  int
	}{
		{"remove fails and the row returns", &APIError{Status: http.StatusInternalServerError, Code: "INTERNAL_ERROR"}, counts(PlanToWatch, 1), 1},
		{"remove lands", nil, zeroCounts(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t)
			ctx := context.Background()
			api := newFakeAPI()
			orig, err := api.Create(ctx, NewItem{AnimeID: 9, AnimeTitle: "Steins;Gate", Status: PlanToWatch})
			require.NoError(t, err)

			rec := &recorder{}
			s := NewStore(api, WithNotifier(rec))
			require.NoError(t, s.Fetch(ctx, ListParams{}))

			h := newHeld()
			api.deleteFn = func(ctx context.Context, id uint) error {
				if err := h.wait(ctx); err != nil {
					return err
				}
				if tt.deleteErr != nil {
					return tt.deleteErr
				}
				return api.delete(id)
			}

			removed := make(chan error, 1)
			go func() { removed <- s.Remove(ctx, orig.ID) }()
			<-h.started

			_, err = s.Add(ctx, NewItem{AnimeID: 9, AnimeTitle: "Steins;Gate", Status: Watching})
			assert.Equal(t, Conflict, KindOf(err))
			mid := requireConsistent(t, s)
			assert.Empty(t, mid.Items)
			assert.Equal(t, 0, mid.TotalCount)

			close(h.release)
			assert.Equal(t, tt.deleteErr, <-removed)

			snap := requireConsistent(t, s)
			assert.Empty(t, cmp.Diff(tt.want, snap.StatusCounts))
			assert.Equal(t, tt.wantRows, snap.TotalCount)
			require.Len(t, snap.Items, tt.wantRows)
			if tt.wantRows == 1 {
				assert.Equal(t, orig.ID, snap.Items[0].ID)
				assert.Equal(t, PlanToWatch, snap.Items[0].Status)
			}
		})
	}
}

func TestStoreOffPageRowsMoveCounts(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	saga, err := api.Create(ctx, NewItem{AnimeID: 37521, AnimeTitle: "Vinland Saga", Status: Completed})
	require.NoError(t, err)
	_, err = api.Create(ctx, NewItem{AnimeID: 34599, AnimeTitle: "Made in Abyss", Status: Watching})
	require.NoError(t, err)

	s := NewStore(api)
	require.NoError(t, s.Fetch(ctx, ListParams{Status: Watching}))

	_, err = s.Update(ctx, saga.ID, ItemUpdate{Status: ptr(OnHold)})
	require.NoError(t, err)
	snap := requireConsistent(t, s)
	assert.Empty(t, cmp.Diff(counts(Watching, 1, OnHold, 1), snap.StatusCounts))
	assert.Equal(t, 2, snap.TotalCount)
	assert.Equal(t, 1, snap.FilteredCount)
	assert.Len(t, snap.Items, 1)
	assert.Equal(t, int32(1), api.gets.Load())

	_, err = s.Update(ctx, saga.ID, ItemUpdate{Status: ptr(Watching)})
	require.NoError(t, err)
	snap = requireConsistent(t, s)
	assert.Empty(t, cmp.Diff(counts(Watching, 2), snap.StatusCounts))
	assert.Equal(t, 2, snap.FilteredCount)
	assert.Len(t, snap.Items, 1, "off-page row stays off the page")
	assert.Equal(t, int32(1), api.gets.Load(), "held rows are not looked up again")

	require.NoError(t, s.Remove(ctx, saga.ID))
	snap = requireConsistent(t, s)
	assert.Empty(t, cmp.Diff(counts(Watching, 1), snap.StatusCounts))
	assert.Equal(t, 1, snap.TotalCount)
	assert.Equal(t, 1, snap.FilteredCount)

	// Added elsewhere after the fetch, so never counted here.
	other, err := api.Create(ctx, NewItem{AnimeID: 1, AnimeTitle: "Cowboy Bebop", Status: Dropped})
	require.NoError(t, err)
	_, err = s.Update(ctx, other.ID, ItemUpdate{Status: ptr(Completed)})
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(counts(Watching, 1), requireConsistent(t, s).StatusCounts))

	err = s.Remove(ctx, 999)
	assert.Equal(t, NotFound, KindOf(err))

	gets := api.gets.Load()
	fresh := NewStore(api)
	_, err = fresh.Update(ctx, other.ID, ItemUpdate{Status: ptr(OnHold)})
	require.NoError(t, err)
	assert.Equal(t, gets, api.gets.Load(), "an unfetched store has no counts to keep")
}

package client

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrSuperseded is returned by a Fetch whose response arrived after a newer
// Fetch was issued. Its result is discarded.
var ErrSuperseded = errors.New("fetch superseded by a newer fetch")

const membershipConcurrency = 4

// Notifier receives every failure the store surfaces to the user.
type Notifier interface {
	Notify(err error)
}

type NotifierFunc func(err error)

func (f NotifierFunc) Notify(err error) { f(err) }

// Snapshot is a point-in-time copy of the store. TotalCount always equals
// the sum of StatusCounts; FilteredCount is the server total for Filter.
type Snapshot struct {
	Items         []Item
	TotalCount    int
	FilteredCount int
	StatusCounts  map[WatchStatus]int
	Filter        WatchStatus
	Loading       bool
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Items = make([]Item, len(s.Items))
	for i, it := range s.Items {
		out.Items[i] = it.Clone()
	}
	out.StatusCounts = make(map[WatchStatus]int, len(s.StatusCounts))
	for k, v := range s.StatusCounts {
		out.StatusCounts[k] = v
	}
	return out
}

func zeroCounts() map[WatchStatus]int {
	m := make(map[WatchStatus]int, len(Statuses))
	for _, st := range Statuses {
		m[st] = 0
	}
	return m
}

// Store is the local mirror of one user's watchlist. Mutations are applied
// locally first and rolled back if the server rejects them. Every local
// write to a row stamps it with a revision; a confirmation or rollback only
// lands while the row still carries the revision its mutation wrote.
type Store struct {
	api    WatchlistAPI
	notify Notifier
	now    func() time.Time

	mu     sync.Mutex
	state  Snapshot
	seq    uint64 // last fetch issued
	cancel context.CancelFunc
	loaded bool // a fetch has filled the counts

	clock uint64
	// rows written locally since the last fetch, including off-page rows
	// and tombstones (nil item) for removed ones.
	rows map[rowKey]localRow
}

type rowKey struct {
	id      uint
	animeID int64 // placeholders only
}

type localRow struct {
	rev  uint64
	item *Item
}

func keyOf(it *Item) rowKey {
	if it.ID != 0 {
		return rowKey{id: it.ID}
	}
	return rowKey{animeID: it.AnimeID}
}

type StoreOption func(*Store)

func WithNotifier(n Notifier) StoreOption {
	return func(s *Store) { s.notify = n }
}

func NewStore(api WatchlistAPI, opts ...StoreOption) *Store {
	s := &Store{
		api:    api,
		notify: NotifierFunc(func(error) {}),
		now:    time.Now,
		state:  Snapshot{StatusCounts: zeroCounts()},
		rows:   map[rowKey]localRow{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Clear drops all local state and cancels an in-flight fetch.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.seq++
	s.loaded = false
	s.rows = map[rowKey]localRow{}
	s.state = Snapshot{StatusCounts: zeroCounts()}
}

// Fetch replaces the local list with one page from the server. Issuing a new
// Fetch cancels the previous one; only the latest response is applied.
func (s *Store) Fetch(ctx context.Context, p ListParams) error {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	if s.cancel != nil {
		s.cancel()
	}
	fctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state.Loading = true
	s.mu.Unlock()
	defer cancel()

	page, err := s.api.List(fctx, p)

	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		return ErrSuperseded
	}
	s.cancel = nil
	s.state.Loading = false
	if err != nil {
		s.mu.Unlock()
		s.notify.Notify(err)
		return err
	}

	counts := zeroCounts()
	total := 0
	for st, n := range page.StatusCounts {
		counts[st] = n
		total += n
	}
	items := make([]Item, len(page.Items))
	for i, it := range page.Items {
		items[i] = it.Clone()
	}
	s.loaded = true
	s.rows = map[rowKey]localRow{}
	s.state = Snapshot{
		Items:         items,
		TotalCount:    total,
		FilteredCount: page.TotalCount,
		StatusCounts:  counts,
		Filter:        p.Status,
	}
	s.mu.Unlock()
	return nil
}

// Add puts a placeholder on the list, then swaps in the server row. An
// anime already held locally fails with a Conflict without a server call.
func (s *Store) Add(ctx context.Context, n NewItem) (*Item, error) {
	if n.Status == "" {
		n.Status = PlanToWatch
	}
	now := s.now()

	s.mu.Lock()
	if _, ok := s.heldLocked(n.AnimeID); ok {
		s.mu.Unlock()
		err := conflictError(n.AnimeID)
		s.notify.Notify(err)
		return nil, err
	}
	placeholder := Item{
		AnimeID:           n.AnimeID,
		AnimeTitle:        n.AnimeTitle,
		AnimePictureURL:   n.AnimePictureURL,
		AnimeScore:        n.AnimeScore,
		Status:            n.Status,
		Notes:             n.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
		IsRecentlyUpdated: true,
	}
	rev := s.setLocked(nil, &placeholder, 0)
	s.mu.Unlock()

	item, err := s.api.Create(ctx, n)

	s.mu.Lock()
	if s.currentLocked(&placeholder, rev) {
		if err != nil {
			s.setLocked(&placeholder, nil, -1)
		} else {
			confirmed := item.Clone()
			s.setLocked(&placeholder, &confirmed, -1)
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.notify.Notify(err)
		return nil, err
	}
	return item, nil
}

// Update applies u locally, then to the server. A row off the current page
// is looked up first so the status counts follow it; items the store never
// counted are updated on the server only.
func (s *Store) Update(ctx context.Context, id uint, u ItemUpdate) (*Item, error) {
	local, err := s.track(ctx, id)
	if err != nil {
		s.notify.Notify(err)
		return nil, err
	}

	var prev, next Item
	var pos int
	var rev uint64
	if local {
		s.mu.Lock()
		if cur, p, ok := s.rowLocked(id); ok {
			prev, pos = cur, p
			next = applyUpdate(prev, u, s.now())
			rev = s.setLocked(&prev, &next, pos)
		} else {
			local = false
		}
		s.mu.Unlock()
	}

	item, err := s.api.Update(ctx, id, u)

	s.mu.Lock()
	if local && s.currentLocked(&next, rev) {
		if err != nil {
			s.setLocked(&next, &prev, pos)
		} else {
			confirmed := item.Clone()
			s.setLocked(&next, &confirmed, pos)
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.notify.Notify(err)
		return nil, err
	}
	return item, nil
}

// Remove drops the item locally, then on the server.
func (s *Store) Remove(ctx context.Context, id uint) error {
	local, err := s.track(ctx, id)
	if err != nil {
		s.notify.Notify(err)
		return err
	}

	var removed Item
	var pos int
	var rev uint64
	if local {
		s.mu.Lock()
		if cur, p, ok := s.rowLocked(id); ok {
			removed, pos = cur, p
			rev = s.setLocked(&removed, nil, pos)
		} else {
			local = false
		}
		s.mu.Unlock()
	}

	err = s.api.Delete(ctx, id)
	if err == nil {
		return nil
	}

	s.mu.Lock()
	if local && s.tombstoneLocked(id, rev) {
		if _, held := s.heldLocked(removed.AnimeID); !held {
			s.setLocked(nil, &removed, pos)
		}
	}
	s.mu.Unlock()
	s.notify.Notify(err)
	return err
}

// track reports whether the store holds id. A row it has not seen is
// fetched and held off the page when the counts came from the server and
// its status is counted there; otherwise the caller goes to the server
// alone.
func (s *Store) track(ctx context.Context, id uint) (bool, error) {
	s.mu.Lock()
	if _, _, ok := s.rowLocked(id); ok {
		s.mu.Unlock()
		return true, nil
	}
	_, touched := s.rows[rowKey{id: id}]
	if id == 0 || touched || !s.loaded {
		s.mu.Unlock()
		return false, nil
	}
	s.mu.Unlock()

	cur, err := s.api.Get(ctx, id)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, _, ok := s.rowLocked(id); ok {
		return true, nil
	}
	if _, touched := s.rows[rowKey{id: id}]; touched || !s.loaded || s.state.StatusCounts[cur.Status] == 0 {
		return false, nil
	}
	it := cur.Clone()
	s.clock++
	s.rows[rowKey{id: id}] = localRow{rev: s.clock, item: &it}
	return true, nil
}

// CheckMembership returns the item for animeID, or nil when it is not on
// the list. Local rows answer without a server call.
func (s *Store) CheckMembership(ctx context.Context, animeID int64) (*Item, error) {
	item, err := s.membership(ctx, animeID)
	if err != nil {
		s.notify.Notify(err)
		return nil, err
	}
	return item, nil
}

// CheckMembershipMany looks up a page of anime ids with bounded parallelism.
// Absent ids map to nil.
func (s *Store) CheckMembershipMany(ctx context.Context, animeIDs []int64) (map[int64]*Item, error) {
	out := make(map[int64]*Item, len(animeIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(membershipConcurrency)
	for _, id := range animeIDs {
		g.Go(func() error {
			item, err := s.membership(gctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			out[id] = item
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.notify.Notify(err)
		return nil, err
	}
	return out, nil
}

func (s *Store) membership(ctx context.Context, animeID int64) (*Item, error) {
	s.mu.Lock()
	if it, ok := s.heldLocked(animeID); ok && it.ID != 0 {
		s.mu.Unlock()
		return &it, nil
	}
	s.mu.Unlock()
	return s.api.GetByAnimeID(ctx, animeID)
}

// setLocked replaces the row old names with next, keeping counts and the
// filtered view consistent, and returns the revision it stamped. A nil old
// inserts; a nil next deletes. Counts follow the row as it is held, which
// is old itself when the row is off the page. pos is where a newly visible
// row goes; a negative pos keeps it off the page.
func (s *Store) setLocked(old, next *Item, pos int) uint64 {
	s.clock++
	rev := s.clock
	if old != nil {
		cur := *old
		if i := s.indexOf(old); i >= 0 {
			cur = s.state.Items[i]
			pos = i
			s.state.Items = slices.Delete(s.state.Items, i, i+1)
		}
		s.state.StatusCounts[cur.Status]--
		s.state.TotalCount--
		if s.inFilter(cur.Status) {
			s.state.FilteredCount--
		}
		switch {
		case next == nil && old.ID != 0:
			s.rows[keyOf(old)] = localRow{rev: rev}
		case next == nil || keyOf(old) != keyOf(next):
			delete(s.rows, keyOf(old))
		}
	}
	if next == nil {
		return rev
	}
	it := next.Clone()
	s.rows[keyOf(next)] = localRow{rev: rev, item: &it}
	s.state.StatusCounts[next.Status]++
	s.state.TotalCount++
	if s.inFilter(next.Status) {
		s.state.FilteredCount++
		if pos >= 0 {
			pos = min(pos, len(s.state.Items))
			s.state.Items = slices.Insert(s.state.Items, pos, next.Clone())
		}
	}
	return rev
}

func (s *Store) inFilter(st WatchStatus) bool {
	return s.state.Filter == "" || s.state.Filter == st
}

// currentLocked reports whether the row it names still carries rev.
func (s *Store) currentLocked(it *Item, rev uint64) bool {
	row, ok := s.rows[keyOf(it)]
	return ok && row.rev == rev && row.item != nil
}

func (s *Store) tombstoneLocked(id uint, rev uint64) bool {
	row, ok := s.rows[rowKey{id: id}]
	return ok && row.rev == rev && row.item == nil
}

// rowLocked returns the held copy of id and its position on the page, -1
// when it is held off the page.
func (s *Store) rowLocked(id uint) (Item, int, bool) {
	if id == 0 {
		return Item{}, -1, false
	}
	if i := s.indexByID(id); i >= 0 {
		return s.state.Items[i].Clone(), i, true
	}
	if row, ok := s.rows[rowKey{id: id}]; ok && row.item != nil {
		return row.item.Clone(), -1, true
	}
	return Item{}, -1, false
}

// heldLocked finds animeID on the page or among rows moved off it.
func (s *Store) heldLocked(animeID int64) (Item, bool) {
	if i := s.indexByAnime(animeID); i >= 0 {
		return s.state.Items[i].Clone(), true
	}
	for _, row := range s.rows {
		if row.item != nil && row.item.AnimeID == animeID {
			return row.item.Clone(), true
		}
	}
	return Item{}, false
}

// indexOf finds it by id, or a placeholder by anime id.
func (s *Store) indexOf(it *Item) int {
	if it.ID != 0 {
		return s.indexByID(it.ID)
	}
	return slices.IndexFunc(s.state.Items, func(x Item) bool {
		return x.ID == 0 && x.AnimeID == it.AnimeID
	})
}

func (s *Store) indexByID(id uint) int {
	return slices.IndexFunc(s.state.Items, func(x Item) bool { return x.ID == id })
}

func (s *Store) indexByAnime(animeID int64) int {
	return slices.IndexFunc(s.state.Items, func(x Item) bool { return x.AnimeID == animeID })
}

func applyUpdate(it Item, u ItemUpdate, now time.Time) Item {
	if u.Status != nil {
		it.Status = *u.Status
	}
	if u.Notes != nil {
		if *u.Notes == "" {
			it.Notes = nil
		} else {
			v := *u.Notes
			it.Notes = &v
		}
	}
	if u.AnimeScore != nil {
		v := *u.AnimeScore
		it.AnimeScore = &v
	}
	it.UpdatedAt = now
	it.IsRecentlyUpdated = true
	return it
}

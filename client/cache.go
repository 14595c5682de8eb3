package client

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// RootScope is the Key.Parent value of root-feed pages.
const RootScope int64 = 0

// Key identifies one cached page: the scope it reads, how it is sorted,
// and where in the walk it sits.
type Key struct {
	Parent int64
	SortBy string
	Order  string
	Limit  int
	Cursor string
}

func (k Key) String() string {
	return fmt.Sprintf("parent=%d&sortBy=%s&order=%s&limit=%d&cursor=%s",
		k.Parent, k.SortBy, k.Order, k.Limit, k.Cursor)
}

// firstPage reports whether the key reads the head of its walk, the only
// place a fresh comment can appear.
func (k Key) firstPage() bool {
	return k.Cursor == ""
}

// Loader fetches one page from the server.
type Loader func(ctx context.Context, k Key) (Page, error)

type pendingFetch struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Optimistic is one submission's pending effect on the cache. It records
// the pages it mutated, each snapshotted as of just before the mutation,
// so the effect can be undone exactly.
type Optimistic struct {
	seq     int64
	comment Comment
	scope   int64
	active  bool

	// full pre-mutation copy per touched key
	snapshot map[Key]Page
}

// TempID is the provisional comment's client-assigned negative id.
func (op *Optimistic) TempID() int64 { return op.comment.ID }

// touches reports whether applying op changes the page at k.
func (op *Optimistic) touches(k Key, p Page) bool {
	if k.Parent == op.scope && k.firstPage() {
		return true
	}
	if pid := op.comment.ParentID; pid != nil && pageContains(p, *pid) {
		return true
	}
	return false
}

// applyTo returns p with op's effect: the provisional comment at the head
// of its scope's first pages, and the parent's reply count bumped wherever
// the parent row shows.
func (op *Optimistic) applyTo(k Key, p Page) Page {
	if k.Parent == op.scope && k.firstPage() {
		p.Data = append([]Comment{op.comment}, p.Data...)
	}
	if pid := op.comment.ParentID; pid != nil {
		for i := range p.Data {
			if p.Data[i].ID == *pid {
				p.Data[i].RepliesCount++
			}
		}
	}
	return p
}

// Store is the client-side page cache. Reads are deduplicated per key and
// cancellable; writes go through the optimistic apply/rollback/settle
// lifecycle so concurrent submissions stay independently revertible.
type Store struct {
	loader Loader

	mu       sync.Mutex
	pages    map[Key]Page
	overlays []*Optimistic
	seq      int64

	group   singleflight.Group
	pending map[Key]*pendingFetch
}

func NewStore(loader Loader) *Store {
	return &Store{
		loader:  loader,
		pages:   make(map[Key]Page),
		pending: make(map[Key]*pendingFetch),
	}
}

// Get returns a copy of the cached page for k, if any.
func (s *Store) Get(k Key) (Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pages[k]
	if !ok {
		return Page{}, false
	}
	return copyPage(p), true
}

// Set stores server truth for k. The fresh page supersedes any optimistic
// snapshot held for that key, so later rollbacks leave it alone.
func (s *Store) Set(k Key, p Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(k, p)
}

func (s *Store) setLocked(k Key, p Page) {
	s.pages[k] = copyPage(p)
	for _, op := range s.overlays {
		delete(op.snapshot, k)
	}
}

// Invalidate drops every cached page whose key matches.
func (s *Store) Invalidate(match func(Key) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range s.pages {
		if match(k) {
			s.dropLocked(k)
		}
	}
}

func (s *Store) dropLocked(k Key) {
	delete(s.pages, k)
	for _, op := range s.overlays {
		delete(op.snapshot, k)
	}
}

// Fetch returns the page at k, reading through to the loader on a miss.
// Concurrent misses on the same key share one server call. A fetch
// cancelled via CancelPending never writes the cache.
func (s *Store) Fetch(ctx context.Context, k Key) (Page, error) {
	s.mu.Lock()
	if p, ok := s.pages[k]; ok {
		out := copyPage(p)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	ch := s.group.DoChan(k.String(), func() (any, error) {
		// The fetch owns its own lifetime: one caller going away must not
		// cancel the shared call.
		fctx, cancel := context.WithCancel(context.Background())
		pf := &pendingFetch{cancel: cancel, done: make(chan struct{})}

		s.mu.Lock()
		s.pending[k] = pf
		s.mu.Unlock()

		defer func() {
			close(pf.done)
			cancel()
			s.mu.Lock()
			if s.pending[k] == pf {
				delete(s.pending, k)
			}
			s.mu.Unlock()
		}()

		p, err := s.loader(fctx, k)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if fctx.Err() != nil {
			return nil, fctx.Err()
		}
		s.setLocked(k, p)
		return p, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Page{}, res.Err
		}
		return copyPage(res.Val.(Page)), nil
	case <-ctx.Done():
		return Page{}, ctx.Err()
	}
}

// CancelPending cancels every in-flight fetch whose key matches and waits
// for each to wind down. On return, no matching fetch will write the cache.
func (s *Store) CancelPending(match func(Key) bool) {
	s.mu.Lock()
	var cancelled []*pendingFetch
	var keys []Key
	for k, pf := range s.pending {
		if match(k) {
			pf.cancel()
			cancelled = append(cancelled, pf)
			keys = append(keys, k)
		}
	}
	s.mu.Unlock()

	for _, pf := range cancelled {
		<-pf.done
	}
	for _, k := range keys {
		s.group.Forget(k.String())
	}
}

// ApplyOptimistic inserts c into every affected cached page and returns the
// handle for settling or rolling the insertion back. c must carry its
// client-assigned temporary id already.
func (s *Store) ApplyOptimistic(c Comment) *Optimistic {
	s.mu.Lock()
	defer s.mu.Unlock()

	scope := RootScope
	if c.ParentID != nil {
		scope = *c.ParentID
	}

	s.seq++
	op := &Optimistic{
		seq:      s.seq,
		comment:  c,
		scope:    scope,
		active:   true,
		snapshot: make(map[Key]Page),
	}

	for k, p := range s.pages {
		if !op.touches(k, p) {
			continue
		}
		op.snapshot[k] = copyPage(p)
		s.pages[k] = op.applyTo(k, copyPage(p))
	}

	s.overlays = append(s.overlays, op)
	return op
}

// Rollback undoes op. Each touched page returns to its pre-op value, then
// the still-pending later submissions are reapplied on top, so their
// entries survive and their own snapshots stay accurate.
func (s *Store) Rollback(op *Optimistic) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !op.active {
		return
	}
	op.active = false
	s.removeOverlayLocked(op)

	// Every key still in the snapshot is still cached: Set, Invalidate and
	// Settle all scrub the keys they drop from live snapshots.
	for k, snap := range op.snapshot {
		base := copyPage(snap)
		for _, o := range s.overlays {
			if o.seq < op.seq {
				continue
			}
			if _, touched := o.snapshot[k]; !touched {
				continue
			}
			o.snapshot[k] = copyPage(base)
			base = o.applyTo(k, base)
		}
		s.pages[k] = base
	}
}

// Settle finishes op after the server confirmed the write. The provisional
// entry is not spliced out in place; the affected scopes are dropped so the
// next read refetches canonical ordering, ids, and counts.
func (s *Store) Settle(op *Optimistic) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !op.active {
		return
	}
	op.active = false
	s.removeOverlayLocked(op)

	for k, p := range s.pages {
		if k.Parent == op.scope {
			s.dropLocked(k)
			continue
		}
		if pid := op.comment.ParentID; pid != nil && pageContains(p, *pid) {
			s.dropLocked(k)
		}
	}
}

func (s *Store) removeOverlayLocked(op *Optimistic) {
	for i, o := range s.overlays {
		if o == op {
			s.overlays = append(s.overlays[:i], s.overlays[i+1:]...)
			return
		}
	}
}

func pageContains(p Page, id int64) bool {
	for i := range p.Data {
		if p.Data[i].ID == id {
			return true
		}
	}
	return false
}

func copyPage(p Page) Page {
	out := Page{}
	if p.NextCursor != nil {
		cur := *p.NextCursor
		out.NextCursor = &cur
	}
	out.Data = make([]Comment, len(p.Data))
	copy(out.Data, p.Data)
	for i := range out.Data {
		if out.Data[i].ParentID != nil {
			pid := *out.Data[i].ParentID
			out.Data[i].ParentID = &pid
		}
		if len(out.Data[i].Attachments) > 0 {
			atts := make([]Attachment, len(out.Data[i].Attachments))
			copy(atts, out.Data[i].Attachments)
			out.Data[i].Attachments = atts
		}
	}
	return out
}

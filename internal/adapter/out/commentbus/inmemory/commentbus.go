package inmemory

import (
	"context"
	"sync"

	"github.com/meleshyn/comments-spa/internal/model"
)

// RootScope keys subscriptions to the top-level feed. Reply feeds are keyed
// by the parent comment id, which is always positive.
const RootScope int64 = 0

// CommentBus fans created comments out to in-process subscribers. Slow
// subscribers lose messages rather than block publishers.
type CommentBus struct {
	mu   sync.RWMutex
	subs map[int64]map[chan model.Comment]struct{}
	buf  int
}

func New(buf int) *CommentBus {
	if buf <= 0 {
		buf = 64
	}
	return &CommentBus{
		subs: make(map[int64]map[chan model.Comment]struct{}),
		buf:  buf,
	}
}

// Subscribe registers for comments created under scope. The channel closes
// when ctx is done.
func (b *CommentBus) Subscribe(ctx context.Context, scope int64) (<-chan model.Comment, error) {
	ch := make(chan model.Comment, b.buf)

	b.mu.Lock()
	if b.subs[scope] == nil {
		b.subs[scope] = make(map[chan model.Comment]struct{})
	}
	b.subs[scope][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if set := b.subs[scope]; set != nil {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(b.subs, scope)
				}
			}
		}
		b.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

func (b *CommentBus) Publish(_ context.Context, c model.Comment) error {
	scope := RootScope
	if c.ParentID != nil {
		scope = *c.ParentID
	}

	b.mu.RLock()
	for ch := range b.subs[scope] {
		select {
		case ch <- c:
		default:
		}
	}
	b.mu.RUnlock()
	return nil
}

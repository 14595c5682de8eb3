package client

import (
	"context"
	"strings"
	"sync/atomic"
	"time"
)

// CreateFunc performs the server write for a draft.
type CreateFunc func(ctx context.Context, d Draft) (Comment, error)

// Submitter runs the optimistic submission lifecycle: synthesize a
// provisional comment, show it immediately, then settle on server truth or
// roll back. Submissions are independent; several may be pending at once.
type Submitter struct {
	store  *Store
	create CreateFunc
	now    func() time.Time
	nextID atomic.Int64
}

func NewSubmitter(store *Store, create CreateFunc) *Submitter {
	return &Submitter{store: store, create: create, now: time.Now}
}

func (s *Submitter) Submit(ctx context.Context, d Draft) (Comment, error) {
	prov := s.provisional(d)

	scope := RootScope
	if d.ParentID != nil {
		scope = *d.ParentID
	}

	// Wait out in-flight reads that could land over the optimistic entry.
	// A reply also bumps its parent's count wherever the parent shows, and
	// any page may carry the parent, so for replies everything pending goes.
	isReply := d.ParentID != nil
	s.store.CancelPending(func(k Key) bool {
		return isReply || k.Parent == scope
	})

	op := s.store.ApplyOptimistic(prov)

	created, err := s.create(ctx, d)
	if err != nil {
		s.store.Rollback(op)
		return Comment{}, err
	}

	s.store.Settle(op)
	return created, nil
}

// provisional builds the placeholder entry: negative id, client clock,
// attachments pointing at the local files.
func (s *Submitter) provisional(d Draft) Comment {
	c := Comment{
		ID:           -s.nextID.Add(1),
		UserName:     d.UserName,
		Email:        d.Email,
		HomePage:     d.HomePage,
		Text:         d.Text,
		CreatedAt:    s.now(),
		Attachments:  make([]Attachment, 0, len(d.Files)),
		Provisional:  true,
		RepliesCount: 0,
	}
	if d.ParentID != nil {
		pid := *d.ParentID
		c.ParentID = &pid
	}
	for _, f := range d.Files {
		fileType := "text"
		if strings.HasPrefix(f.ContentType, "image/") {
			fileType = "image"
		}
		c.Attachments = append(c.Attachments, Attachment{
			CommentID: c.ID,
			FileURL:   "local://" + f.Name,
			FileType:  fileType,
		})
	}
	return c
}

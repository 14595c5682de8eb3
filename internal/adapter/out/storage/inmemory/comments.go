package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/meleshyn/comments-spa/internal/adapter/out/storage"
	"github.com/meleshyn/comments-spa/internal/model"
	"github.com/meleshyn/comments-spa/internal/service"
	"github.com/meleshyn/comments-spa/pkg/pagination"
)

type CommentStorage struct {
	mu sync.RWMutex

	comments    []model.Comment
	attachments map[int64][]model.Attachment
	children    map[int64][]int64
	roots       []int64
	nextAttID   int64
}

func NewCommentStorage() *CommentStorage {
	return &CommentStorage{
		comments:    []model.Comment{{}},
		attachments: make(map[int64][]model.Attachment),
		children:    make(map[int64][]int64),
	}
}

func (s *CommentStorage) CreateComment(_ context.Context, req storage.CreateCommentParams) (model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ParentID != nil && !s.exists(*req.ParentID) {
		return model.Comment{}, service.ErrParentNotFound
	}

	c := model.Comment{
		ID:        int64(len(s.comments)),
		UserName:  req.UserName,
		Email:     req.Email,
		HomePage:  req.HomePage,
		Body:      req.Body,
		CreatedAt: time.Now(),
	}
	if req.ParentID != nil {
		pid := *req.ParentID
		c.ParentID = &pid
	}

	s.comments = append(s.comments, c)
	if c.ParentID != nil {
		s.children[*c.ParentID] = append(s.children[*c.ParentID], c.ID)
	} else {
		s.roots = append(s.roots, c.ID)
	}

	c.Attachments = []model.Attachment{}
	return c, nil
}

func (s *CommentStorage) CreateAttachments(_ context.Context, commentID int64, files []storage.CreateAttachmentParams) ([]model.Attachment, error) {
	if len(files) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.exists(commentID) {
		return nil, service.ErrNotFound
	}

	out := make([]model.Attachment, 0, len(files))
	for _, f := range files {
		s.nextAttID++
		a := model.Attachment{
			ID:        s.nextAttID,
			CommentID: commentID,
			FileURL:   f.FileURL,
			FileType:  f.FileType,
		}
		s.attachments[commentID] = append(s.attachments[commentID], a)
		out = append(out, a)
	}
	return out, nil
}

func (s *CommentStorage) GetCommentByID(_ context.Context, commentID int64) (model.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.exists(commentID) {
		return model.Comment{}, service.ErrNotFound
	}
	return s.hydrate(s.comments[commentID]), nil
}

func (s *CommentStorage) ListComments(_ context.Context, p storage.ListCommentsParams) ([]model.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.roots
	if p.ParentID != nil {
		ids = s.children[*p.ParentID]
	}

	cands := make([]model.Comment, 0, len(ids))
	for _, id := range ids {
		cands = append(cands, s.comments[id])
	}
	sort.Slice(cands, func(i, j int) bool {
		if p.Order == pagination.SortAsc {
			return sortKeyLess(cands[i], cands[j], p.SortBy)
		}
		return sortKeyLess(cands[j], cands[i], p.SortBy)
	})

	if p.CursorID != nil {
		if !s.exists(*p.CursorID) {
			return nil, service.ErrCursorNotFound
		}
		cur := s.comments[*p.CursorID]
		after := make([]model.Comment, 0, len(cands))
		for _, c := range cands {
			if afterCursor(c, cur, p.SortBy, p.Order) {
				after = append(after, c)
			}
		}
		cands = after
	}

	if len(cands) > p.Limit {
		cands = cands[:p.Limit]
	}

	out := make([]model.Comment, 0, len(cands))
	for _, c := range cands {
		out = append(out, s.hydrate(c))
	}
	return out, nil
}

func (s *CommentStorage) exists(id int64) bool {
	return id > 0 && int(id) < len(s.comments) && s.comments[id].ID != 0
}

// hydrate fills the read-side fields a page row carries: the direct reply
// count and a copy of the attachment list.
func (s *CommentStorage) hydrate(c model.Comment) model.Comment {
	c.RepliesCount = int64(len(s.children[c.ID]))
	atts := s.attachments[c.ID]
	c.Attachments = make([]model.Attachment, len(atts))
	copy(c.Attachments, atts)
	return c
}

// sortKeyLess is the total order pages are read in: the sort field first,
// id as the tie-breaker.
func sortKeyLess(a, b model.Comment, field pagination.SortField) bool {
	switch field {
	case pagination.SortByUserName:
		if a.UserName != b.UserName {
			return a.UserName < b.UserName
		}
	case pagination.SortByEmail:
		if a.Email != b.Email {
			return a.Email < b.Email
		}
	default:
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	return a.ID < b.ID
}

// afterCursor reports whether c comes strictly after the cursor row in the
// requested direction, which keeps repeated reads from re-serving the row
// the cursor points at.
func afterCursor(c, cur model.Comment, field pagination.SortField, order pagination.SortOrder) bool {
	if order == pagination.SortAsc {
		return sortKeyLess(cur, c, field)
	}
	return sortKeyLess(c, cur, field)
}

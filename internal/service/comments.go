package service

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/meleshyn/comments-spa/internal/adapter/out/storage"
	"github.com/meleshyn/comments-spa/internal/model"
	"github.com/meleshyn/comments-spa/pkg/logger"
	"github.com/meleshyn/comments-spa/pkg/pagination"
)

const (
	DefaultPageLimit = 25
	MaxPageLimit     = 100

	maxTextFileSize = 100 << 10
)

var validate = validator.New()

type CommentStorage interface {
	CreateComment(ctx context.Context, req storage.CreateCommentParams) (model.Comment, error)
	CreateAttachments(ctx context.Context, commentID int64, files []storage.CreateAttachmentParams) ([]model.Attachment, error)
	GetCommentByID(ctx context.Context, commentID int64) (model.Comment, error)
	ListComments(ctx context.Context, params storage.ListCommentsParams) ([]model.Comment, error)
}

type SpamChecker interface {
	Check(ctx context.Context, token, remoteIP string) error
}

type Sanitizer interface {
	Sanitize(in string) string
}

type BlobStore interface {
	Store(ctx context.Context, ext string, data []byte) (string, error)
	Remove(ctx context.Context, fileURL string) error
}

type ImageResizer interface {
	Fit(data []byte) ([]byte, string, error)
}

type CommentBus interface {
	Subscribe(ctx context.Context, scope int64) (<-chan model.Comment, error)
	Publish(ctx context.Context, c model.Comment) error
}

type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// NopTxManager runs fn directly, for storages that manage their own
// consistency.
type NopTxManager struct{}

func (NopTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type CommentService struct {
	storage   CommentStorage
	tx        TxManager
	spam      SpamChecker
	sanitizer Sanitizer
	blobs     BlobStore
	resizer   ImageResizer
	bus       CommentBus
	guard     *PostingGuard
}

type Deps struct {
	Storage   CommentStorage
	Tx        TxManager
	Spam      SpamChecker
	Sanitizer Sanitizer
	Blobs     BlobStore
	Resizer   ImageResizer
	Bus       CommentBus
	Guard     *PostingGuard
}

func NewCommentService(deps Deps) *CommentService {
	return &CommentService{
		storage:   deps.Storage,
		tx:        deps.Tx,
		spam:      deps.Spam,
		sanitizer: deps.Sanitizer,
		blobs:     deps.Blobs,
		resizer:   deps.Resizer,
		bus:       deps.Bus,
		guard:     deps.Guard,
	}
}

// CreateComment runs the write pipeline: validation, posting cooldown, the
// spam-check gate, sanitization, attachment processing, then one transaction
// covering the comment row and its attachment rows. A rejected submission
// persists nothing.
func (s *CommentService) CreateComment(ctx context.Context, req CreateCommentRequest) (model.Comment, error) {
	if err := validate.Struct(req); err != nil {
		return model.Comment{}, validationError(err)
	}

	if s.guard != nil && !s.guard.Reserve(guardKey(req)) {
		return model.Comment{}, fmt.Errorf("%w: posting cooldown active", ErrSpamRejected)
	}

	// An unreachable verification endpoint rejects the submission the same
	// way a failed check does.
	if err := s.spam.Check(ctx, req.CaptchaToken, req.RemoteIP); err != nil {
		if errors.Is(err, ErrSpamRejected) {
			return model.Comment{}, err
		}
		return model.Comment{}, fmt.Errorf("%w: %v", ErrSpamRejected, err)
	}

	text := s.sanitizer.Sanitize(req.Text)
	if strings.TrimSpace(text) == "" {
		return model.Comment{}, newValidationError("text", "is empty after sanitization")
	}

	files, stored, err := s.processAttachments(ctx, req.Files)
	if err != nil {
		s.removeBlobs(ctx, stored)
		return model.Comment{}, err
	}

	params := storage.CreateCommentParams{
		UserName: req.UserName,
		Email:    req.Email,
		HomePage: req.HomePage,
		Body:     text,
		ParentID: req.ParentID,
	}

	var out model.Comment
	err = s.tx.Do(ctx, func(ctx context.Context) error {
		c, err := s.storage.CreateComment(ctx, params)
		if err != nil {
			return err
		}
		atts, err := s.storage.CreateAttachments(ctx, c.ID, files)
		if err != nil {
			return err
		}
		if len(atts) > 0 {
			c.Attachments = atts
		}
		out = c
		return nil
	})
	if err != nil {
		s.removeBlobs(ctx, stored)
		return model.Comment{}, err
	}

	s.bus.Publish(ctx, out)
	return out, nil
}

func (s *CommentService) GetCommentByID(ctx context.Context, commentID int64) (model.Comment, error) {
	if commentID <= 0 {
		return model.Comment{}, ErrInvalidRequest
	}
	return s.storage.GetCommentByID(ctx, commentID)
}

// ListComments serves one page for the given scope: parentID nil reads the
// root feed, non-nil the replies of that comment.
func (s *CommentService) ListComments(ctx context.Context, in pagination.PageRequest, parentID *int64) (pagination.Page[model.Comment], error) {
	var page pagination.Page[model.Comment]

	params, err := toListParams(in, parentID)
	if err != nil {
		return page, err
	}

	items, err := s.storage.ListComments(ctx, params)
	if err != nil {
		return page, err
	}

	limit := params.Limit - 1
	if len(items) > limit {
		page.HasNextPage = true
		items = items[:limit]
		cur := pagination.EncodeCursor(items[len(items)-1].ID)
		page.NextCursor = &cur
	}

	page.Items = items
	return page, nil
}

// Listen subscribes to comments created under scope: 0 for the root feed,
// a comment id for its replies.
func (s *CommentService) Listen(ctx context.Context, scope int64) (<-chan model.Comment, error) {
	if s.bus == nil {
		return nil, fmt.Errorf("no bus configured")
	}
	if scope < 0 {
		return nil, ErrInvalidRequest
	}
	return s.bus.Subscribe(ctx, scope)
}

func (s *CommentService) processAttachments(ctx context.Context, files []FileUpload) ([]storage.CreateAttachmentParams, []string, error) {
	if len(files) == 0 {
		return nil, nil, nil
	}

	params := make([]storage.CreateAttachmentParams, 0, len(files))
	stored := make([]string, 0, len(files))
	for _, f := range files {
		switch {
		case isImageType(f.ContentType):
			data, ext, err := s.resizer.Fit(f.Data)
			if err != nil {
				return nil, stored, fmt.Errorf("%w: %s: %v", ErrAttachmentProcessing, f.Name, err)
			}
			url, err := s.blobs.Store(ctx, ext, data)
			if err != nil {
				return nil, stored, fmt.Errorf("%w: %s: %v", ErrAttachmentProcessing, f.Name, err)
			}
			stored = append(stored, url)
			params = append(params, storage.CreateAttachmentParams{FileURL: url, FileType: model.FileTypeImage})

		case isTextType(f.ContentType, f.Name):
			if len(f.Data) > maxTextFileSize {
				return nil, stored, newValidationError(
					"attachments", fmt.Sprintf("%s: text file exceeds %d bytes", f.Name, maxTextFileSize))
			}
			url, err := s.blobs.Store(ctx, ".txt", f.Data)
			if err != nil {
				return nil, stored, fmt.Errorf("%w: %s: %v", ErrAttachmentProcessing, f.Name, err)
			}
			stored = append(stored, url)
			params = append(params, storage.CreateAttachmentParams{FileURL: url, FileType: model.FileTypeText})

		default:
			return nil, stored, newValidationError(
				"attachments", fmt.Sprintf("%s: unsupported file type %q", f.Name, f.ContentType))
		}
	}

	return params, stored, nil
}

// removeBlobs deletes files stored for a creation that did not go through.
// The write already failed, so failures here are only logged.
func (s *CommentService) removeBlobs(ctx context.Context, urls []string) {
	for _, u := range urls {
		if err := s.blobs.Remove(ctx, u); err != nil {
			logger.FromContext(ctx).Warn("removing orphaned attachment file", "url", u, "error", err)
		}
	}
}

func guardKey(req CreateCommentRequest) string {
	if req.RemoteIP != "" {
		return req.RemoteIP
	}
	return req.Email
}

func isImageType(contentType string) bool {
	switch mediaType(contentType) {
	case "image/jpeg", "image/png", "image/gif":
		return true
	}
	return false
}

func isTextType(contentType, name string) bool {
	return mediaType(contentType) == "text/plain" || strings.HasSuffix(strings.ToLower(name), ".txt")
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType
	}
	return mt
}

package service

import (
	"fmt"

	"github.com/meleshyn/comments-spa/internal/adapter/out/storage"
	"github.com/meleshyn/comments-spa/pkg/pagination"
)

// FileUpload is one attachment exactly as the transport received it,
// not yet validated.
type FileUpload struct {
	Name        string
	ContentType string
	Data        []byte
}

type CreateCommentRequest struct {
	UserName     string `validate:"required,alphanum"`
	Email        string `validate:"required,email"`
	HomePage     string `validate:"omitempty,url"`
	Text         string `validate:"required"`
	ParentID     *int64 `validate:"omitempty,gt=0"`
	CaptchaToken string `validate:"required"`
	RemoteIP     string
	Files        []FileUpload
}

func toListParams(in pagination.PageRequest, parentID *int64) (storage.ListCommentsParams, error) {
	limit := DefaultPageLimit
	if in.Limit != nil {
		limit = *in.Limit
		if limit < 1 || limit > MaxPageLimit {
			return storage.ListCommentsParams{}, newValidationError(
				"limit", fmt.Sprintf("must be between 1 and %d", MaxPageLimit))
		}
	}

	params := storage.ListCommentsParams{
		ParentID: parentID,
		SortBy:   in.SortBy,
		Order:    in.Order,
		// one row past the page tells us whether a next page exists
		Limit: limit + 1,
	}

	if in.Cursor != nil && *in.Cursor != "" {
		id, err := pagination.DecodeCursor(*in.Cursor)
		if err != nil {
			return storage.ListCommentsParams{}, newValidationError("cursor", "is not a valid cursor")
		}
		params.CursorID = &id
	}

	return params, nil
}

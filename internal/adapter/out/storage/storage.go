package storage

import (
	"github.com/meleshyn/comments-spa/internal/model"
	"github.com/meleshyn/comments-spa/pkg/pagination"
)

type CreateCommentParams struct {
	UserName string
	Email    string
	HomePage string
	Body     string
	ParentID *int64
}

type CreateAttachmentParams struct {
	FileURL  string
	FileType model.FileType
}

// ListCommentsParams describes one page read. A nil ParentID selects root
// comments, otherwise the replies of that parent. CursorID, when set, is the
// id of the row the previous page ended on; the storage resolves its sort
// value and returns rows strictly past it.
type ListCommentsParams struct {
	ParentID *int64
	SortBy   pagination.SortField
	Order    pagination.SortOrder
	CursorID *int64
	Limit    int
}

package tableinfo

import "github.com/meleshyn/comments-spa/pkg/pagination"

const (
	CommentsTableName = "comments"

	CommentIDColumn        = "id"
	CommentUserNameColumn  = "user_name"
	CommentEmailColumn     = "email"
	CommentHomePageColumn  = "home_page"
	CommentBodyColumn      = "body"
	CommentParentIDColumn  = "parent_id"
	CommentCreatedAtColumn = "created_at"
)

const (
	AttachmentsTableName = "attachments"

	AttachmentIDColumn        = "id"
	AttachmentCommentIDColumn = "comment_id"
	AttachmentFileURLColumn   = "file_url"
	AttachmentFileTypeColumn  = "file_type"
)

// CommentSortColumn maps a sort field onto its column. The mapping is total:
// unrecognized values fall back to created_at, so no caller-supplied name
// ever reaches SQL.
func CommentSortColumn(f pagination.SortField) string {
	switch f {
	case pagination.SortByUserName:
		return CommentUserNameColumn
	case pagination.SortByEmail:
		return CommentEmailColumn
	default:
		return CommentCreatedAtColumn
	}
}

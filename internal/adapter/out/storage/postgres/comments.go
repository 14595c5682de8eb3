package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/meleshyn/comments-spa/internal/adapter/out/storage"
	"github.com/meleshyn/comments-spa/internal/model"
	"github.com/meleshyn/comments-spa/internal/service"
	"github.com/meleshyn/comments-spa/pkg/pagination"
	"github.com/meleshyn/comments-spa/pkg/tableinfo"
)

var ErrBuildingQuery = errors.New("error building sql-query")

const foreignKeyViolation = "23503"

type CommentStorage struct {
	db     DB
	getter *trmpgx.CtxGetter
}

func NewCommentStorage(db DB, getter *trmpgx.CtxGetter) *CommentStorage {
	return &CommentStorage{db: db, getter: getter}
}

// conn returns the transaction bound to ctx, if any, falling back to the
// plain connection the storage was built with.
func (s *CommentStorage) conn(ctx context.Context) DB {
	if tr := s.getter.DefaultTrOrDB(ctx, nil); tr != nil {
		return tr
	}
	return s.db
}

func commentColumns() []string {
	return []string{
		"c." + tableinfo.CommentIDColumn,
		"c." + tableinfo.CommentUserNameColumn,
		"c." + tableinfo.CommentEmailColumn,
		"c." + tableinfo.CommentHomePageColumn,
		"c." + tableinfo.CommentBodyColumn,
		"c." + tableinfo.CommentParentIDColumn,
		"c." + tableinfo.CommentCreatedAtColumn,
	}
}

// repliesCountColumn counts direct replies inline, so a page read stays a
// single round trip instead of one count per row.
func repliesCountColumn() string {
	return fmt.Sprintf(
		"(SELECT COUNT(*) FROM %s r WHERE r.%s = c.%s) AS replies_count",
		tableinfo.CommentsTableName,
		tableinfo.CommentParentIDColumn,
		tableinfo.CommentIDColumn,
	)
}

func scanCommentRow(sc interface{ Scan(dest ...any) error }, c *model.Comment) error {
	return sc.Scan(
		&c.ID,
		&c.UserName,
		&c.Email,
		&c.HomePage,
		&c.Body,
		&c.ParentID,
		&c.CreatedAt,
		&c.RepliesCount,
	)
}

func (s *CommentStorage) CreateComment(ctx context.Context, req storage.CreateCommentParams) (model.Comment, error) {
	var out model.Comment

	query, args, err := sq.
		Insert(tableinfo.CommentsTableName).
		Columns(
			tableinfo.CommentUserNameColumn,
			tableinfo.CommentEmailColumn,
			tableinfo.CommentHomePageColumn,
			tableinfo.CommentBodyColumn,
			tableinfo.CommentParentIDColumn,
		).
		Values(req.UserName, req.Email, req.HomePage, req.Body, req.ParentID).
		Suffix(fmt.Sprintf(
			"RETURNING %s, %s, %s, %s, %s, %s, %s",
			tableinfo.CommentIDColumn,
			tableinfo.CommentUserNameColumn,
			tableinfo.CommentEmailColumn,
			tableinfo.CommentHomePageColumn,
			tableinfo.CommentBodyColumn,
			tableinfo.CommentParentIDColumn,
			tableinfo.CommentCreatedAtColumn,
		)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrBuildingQuery, err)
	}

	if err := s.conn(ctx).QueryRow(ctx, query, args...).Scan(
		&out.ID,
		&out.UserName,
		&out.Email,
		&out.HomePage,
		&out.Body,
		&out.ParentID,
		&out.CreatedAt,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return model.Comment{}, service.ErrParentNotFound
		}
		return model.Comment{}, fmt.Errorf("exec insert comment: %w", err)
	}

	out.Attachments = []model.Attachment{}
	return out, nil
}

func (s *CommentStorage) CreateAttachments(ctx context.Context, commentID int64, files []storage.CreateAttachmentParams) ([]model.Attachment, error) {
	if len(files) == 0 {
		return nil, nil
	}

	qb := sq.
		Insert(tableinfo.AttachmentsTableName).
		Columns(
			tableinfo.AttachmentCommentIDColumn,
			tableinfo.AttachmentFileURLColumn,
			tableinfo.AttachmentFileTypeColumn,
		)
	for _, f := range files {
		qb = qb.Values(commentID, f.FileURL, string(f.FileType))
	}

	query, args, err := qb.
		Suffix(fmt.Sprintf(
			"RETURNING %s, %s, %s, %s",
			tableinfo.AttachmentIDColumn,
			tableinfo.AttachmentCommentIDColumn,
			tableinfo.AttachmentFileURLColumn,
			tableinfo.AttachmentFileTypeColumn,
		)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBuildingQuery, err)
	}

	rows, err := s.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("exec insert attachments: %w", err)
	}
	defer rows.Close()

	out := make([]model.Attachment, 0, len(files))
	for rows.Next() {
		var (
			a        model.Attachment
			fileType string
		)
		if err := rows.Scan(&a.ID, &a.CommentID, &a.FileURL, &fileType); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		a.FileType = model.FileType(fileType)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return out, nil
}

func (s *CommentStorage) GetCommentByID(ctx context.Context, commentID int64) (model.Comment, error) {
	var out model.Comment

	query, args, err := sq.
		Select(append(commentColumns(), repliesCountColumn())...).
		From(tableinfo.CommentsTableName + " c").
		Where(sq.Eq{"c." + tableinfo.CommentIDColumn: commentID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrBuildingQuery, err)
	}

	if err := scanCommentRow(s.conn(ctx).QueryRow(ctx, query, args...), &out); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return out, service.ErrNotFound
		}
		return out, fmt.Errorf("exec select comment by id: %w", err)
	}

	atts, err := s.loadAttachments(ctx, []int64{out.ID})
	if err != nil {
		return out, err
	}
	out.Attachments = attachmentsOrEmpty(atts[out.ID])

	return out, nil
}

// keyset is the resolved pagination position: the cursor row's sort value
// paired with its id.
type keyset struct {
	sortValue any
	id        int64
}

func (s *CommentStorage) resolveKeyset(ctx context.Context, cursorID int64, field pagination.SortField) (keyset, error) {
	query, args, err := sq.
		Select(tableinfo.CommentSortColumn(field), tableinfo.CommentIDColumn).
		From(tableinfo.CommentsTableName).
		Where(sq.Eq{tableinfo.CommentIDColumn: cursorID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return keyset{}, fmt.Errorf("%w: %v", ErrBuildingQuery, err)
	}

	var (
		ks       keyset
		textVal  string
		timeVal  time.Time
		sortDest any
	)
	switch field {
	case pagination.SortByUserName, pagination.SortByEmail:
		sortDest = &textVal
	default:
		sortDest = &timeVal
	}

	if err := s.conn(ctx).QueryRow(ctx, query, args...).Scan(sortDest, &ks.id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return keyset{}, service.ErrCursorNotFound
		}
		return keyset{}, fmt.Errorf("exec select cursor row: %w", err)
	}

	switch field {
	case pagination.SortByUserName, pagination.SortByEmail:
		ks.sortValue = textVal
	default:
		ks.sortValue = timeVal
	}
	return ks, nil
}

func listCommentsQueryBuilder(p storage.ListCommentsParams, cur *keyset) sq.SelectBuilder {
	sortCol := tableinfo.CommentSortColumn(p.SortBy)
	dir, op := "DESC", "<"
	if p.Order == pagination.SortAsc {
		dir, op = "ASC", ">"
	}

	qb := sq.
		Select(append(commentColumns(), repliesCountColumn())...).
		From(tableinfo.CommentsTableName + " c")

	if p.ParentID != nil {
		qb = qb.Where(sq.Eq{"c." + tableinfo.CommentParentIDColumn: *p.ParentID})
	} else {
		qb = qb.Where(sq.Eq{"c." + tableinfo.CommentParentIDColumn: nil})
	}

	if cur != nil {
		qb = qb.Where(sq.Expr(
			fmt.Sprintf("(c.%s, c.%s) %s (?, ?)", sortCol, tableinfo.CommentIDColumn, op),
			cur.sortValue, cur.id,
		))
	}

	return qb.
		OrderBy(
			fmt.Sprintf("c.%s %s", sortCol, dir),
			fmt.Sprintf("c.%s %s", tableinfo.CommentIDColumn, dir),
		).
		Limit(uint64(p.Limit)).
		PlaceholderFormat(sq.Dollar)
}

func (s *CommentStorage) ListComments(ctx context.Context, p storage.ListCommentsParams) ([]model.Comment, error) {
	var cur *keyset
	if p.CursorID != nil {
		ks, err := s.resolveKeyset(ctx, *p.CursorID, p.SortBy)
		if err != nil {
			return nil, err
		}
		cur = &ks
	}

	query, args, err := listCommentsQueryBuilder(p, cur).ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBuildingQuery, err)
	}

	rows, err := s.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("exec select comments: %w", err)
	}
	defer rows.Close()

	out := make([]model.Comment, 0, p.Limit)
	for rows.Next() {
		var c model.Comment
		if err := scanCommentRow(rows, &c); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(out) == 0 {
		return out, nil
	}

	ids := make([]int64, 0, len(out))
	for _, c := range out {
		ids = append(ids, c.ID)
	}
	atts, err := s.loadAttachments(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Attachments = attachmentsOrEmpty(atts[out[i].ID])
	}

	return out, nil
}

// loadAttachments hydrates a whole page of comments with one query.
func (s *CommentStorage) loadAttachments(ctx context.Context, commentIDs []int64) (map[int64][]model.Attachment, error) {
	query, args, err := sq.
		Select(
			tableinfo.AttachmentIDColumn,
			tableinfo.AttachmentCommentIDColumn,
			tableinfo.AttachmentFileURLColumn,
			tableinfo.AttachmentFileTypeColumn,
		).
		From(tableinfo.AttachmentsTableName).
		Where(sq.Eq{tableinfo.AttachmentCommentIDColumn: commentIDs}).
		OrderBy(tableinfo.AttachmentIDColumn + " ASC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBuildingQuery, err)
	}

	rows, err := s.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("exec select attachments: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]model.Attachment, len(commentIDs))
	for rows.Next() {
		var (
			a        model.Attachment
			fileType string
		)
		if err := rows.Scan(&a.ID, &a.CommentID, &a.FileURL, &fileType); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		a.FileType = model.FileType(fileType)
		out[a.CommentID] = append(out[a.CommentID], a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return out, nil
}

func attachmentsOrEmpty(atts []model.Attachment) []model.Attachment {
	if atts == nil {
		return []model.Attachment{}
	}
	return atts
}

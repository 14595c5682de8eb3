package httpapi

import (
	"time"

	"github.com/meleshyn/comments-spa/internal/model"
	"github.com/meleshyn/comments-spa/pkg/pagination"
)

type attachmentVO struct {
	ID        int64  `json:"id"`
	CommentID int64  `json:"commentId"`
	FileURL   string `json:"fileUrl"`
	FileType  string `json:"fileType"`
}

type commentVO struct {
	ID           int64          `json:"id"`
	UserName     string         `json:"userName"`
	Email        string         `json:"email"`
	HomePage     string         `json:"homePage,omitempty"`
	Text         string         `json:"text"`
	ParentID     *int64         `json:"parentId"`
	CreatedAt    time.Time      `json:"createdAt"`
	RepliesCount int64          `json:"repliesCount"`
	Attachments  []attachmentVO `json:"attachments"`
}

type pageVO struct {
	Data       []commentVO `json:"data"`
	NextCursor *string     `json:"nextCursor"`
}

type errorVO struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type streamEventVO struct {
	Type    string    `json:"type"`
	Comment commentVO `json:"comment"`
}

func toCommentVO(c model.Comment) commentVO {
	atts := make([]attachmentVO, 0, len(c.Attachments))
	for _, a := range c.Attachments {
		atts = append(atts, attachmentVO{
			ID:        a.ID,
			CommentID: a.CommentID,
			FileURL:   a.FileURL,
			FileType:  string(a.FileType),
		})
	}
	return commentVO{
		ID:           c.ID,
		UserName:     c.UserName,
		Email:        c.Email,
		HomePage:     c.HomePage,
		Text:         c.Body,
		ParentID:     c.ParentID,
		CreatedAt:    c.CreatedAt,
		RepliesCount: c.RepliesCount,
		Attachments:  atts,
	}
}

func toPageVO(p pagination.Page[model.Comment]) pageVO {
	data := make([]commentVO, 0, len(p.Items))
	for _, c := range p.Items {
		data = append(data, toCommentVO(c))
	}
	return pageVO{Data: data, NextCursor: p.NextCursor}
}

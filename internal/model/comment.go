package model

import "time"

type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypeText  FileType = "text"
)

type Attachment struct {
	ID        int64
	CommentID int64
	FileURL   string
	FileType  FileType
}

type Comment struct {
	ID           int64
	UserName     string
	Email        string
	HomePage     string
	Body         string
	ParentID     *int64
	CreatedAt    time.Time
	RepliesCount int64
	Attachments  []Attachment
}

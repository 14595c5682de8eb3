package client

import (
	"context"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "http://comments.local"

func TestClient_FetchPage_Root(t *testing.T) {
	defer gock.Off()

	gock.New(testBaseURL).
		Get("/api/comments").
		MatchParam("limit", "2").
		MatchParam("sortBy", "createdAt").
		MatchParam("sortOrder", "desc").
		Reply(200).
		JSON(map[string]any{
			"data": []map[string]any{
				{
					"id":           5,
					"userName":     "alice",
					"email":        "alice@example.com",
					"text":         "newest",
					"parentId":     nil,
					"createdAt":    "2024-05-01T12:00:05Z",
					"repliesCount": 2,
					"attachments":  []any{},
				},
				{
					"id":           4,
					"userName":     "bob",
					"email":        "bob@example.com",
					"text":         "older",
					"parentId":     nil,
					"createdAt":    "2024-05-01T12:00:04Z",
					"repliesCount": 0,
					"attachments":  []any{},
				},
			},
			"nextCursor": "NA==",
		})

	c := New(testBaseURL)
	page, err := c.FetchPage(context.Background(), Query{
		Limit:  2,
		SortBy: "createdAt",
		Order:  "desc",
	})
	require.NoError(t, err)
	require.True(t, gock.IsDone())

	require.Len(t, page.Data, 2)
	require.Equal(t, int64(5), page.Data[0].ID)
	require.Equal(t, "alice", page.Data[0].UserName)
	require.Equal(t, int64(2), page.Data[0].RepliesCount)
	require.Equal(t, time.Date(2024, 5, 1, 12, 0, 5, 0, time.UTC), page.Data[0].CreatedAt)
	require.NotNil(t, page.NextCursor)
	require.Equal(t, "NA==", *page.NextCursor)
}

func TestClient_FetchPage_Replies(t *testing.T) {
	defer gock.Off()

	gock.New(testBaseURL).
		Get("/api/comments/7/replies").
		MatchParam("cursor", "OQ==").
		Reply(200).
		JSON(map[string]any{
			"data": []map[string]any{
				{
					"id":       8,
					"userName": "carol",
					"email":    "carol@example.com",
					"text":     "a reply",
					"parentId": 7,
				},
			},
			"nextCursor": nil,
		})

	c := New(testBaseURL)
	page, err := c.FetchPage(context.Background(), Query{ParentID: ptrInt64(7), Cursor: "OQ=="})
	require.NoError(t, err)
	require.True(t, gock.IsDone())

	require.Len(t, page.Data, 1)
	require.NotNil(t, page.Data[0].ParentID)
	require.Equal(t, int64(7), *page.Data[0].ParentID)
	require.Nil(t, page.NextCursor)
}

func TestClient_FetchPage_APIError(t *testing.T) {
	defer gock.Off()

	gock.New(testBaseURL).
		Get("/api/comments").
		Reply(400).
		JSON(map[string]any{
			"error":  "validation failed",
			"fields": map[string]string{"cursor": "does not match any comment"},
		})

	c := New(testBaseURL)
	_, err := c.FetchPage(context.Background(), Query{Cursor: "stale"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 400, apiErr.StatusCode)
	require.Equal(t, "validation failed", apiErr.Message)
	require.Equal(t, "does not match any comment", apiErr.Fields["cursor"])
}

func TestClient_GetComment(t *testing.T) {
	defer gock.Off()

	gock.New(testBaseURL).
		Get("/api/comments/5").
		Reply(200).
		JSON(map[string]any{
			"id":           5,
			"userName":     "alice",
			"email":        "alice@example.com",
			"text":         "hello",
			"repliesCount": 1,
			"attachments": []map[string]any{
				{"id": 2, "commentId": 5, "fileUrl": "/uploads/a.png", "fileType": "image"},
			},
		})

	c := New(testBaseURL)
	got, err := c.GetComment(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, int64(5), got.ID)
	require.Len(t, got.Attachments, 1)
	require.Equal(t, "/uploads/a.png", got.Attachments[0].FileURL)

	gock.New(testBaseURL).
		Get("/api/comments/6").
		Reply(404).
		JSON(map[string]any{"error": "comment not found"})

	_, err = c.GetComment(context.Background(), 6)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 404, apiErr.StatusCode)
}

func TestClient_CreateComment_JSON(t *testing.T) {
	defer gock.Off()

	gock.New(testBaseURL).
		Post("/api/comments").
		MatchHeader("Content-Type", "application/json").
		JSON(map[string]any{
			"userName":     "bob",
			"email":        "bob@example.com",
			"text":         "hi",
			"parentId":     3,
			"captchaToken": "tok",
		}).
		Reply(201).
		JSON(map[string]any{
			"id":        10,
			"userName":  "bob",
			"email":     "bob@example.com",
			"text":      "hi",
			"parentId":  3,
			"createdAt": "2024-05-01T12:00:10Z",
		})

	c := New(testBaseURL)
	got, err := c.CreateComment(context.Background(), Draft{
		UserName:     "bob",
		Email:        "bob@example.com",
		Text:         "hi",
		ParentID:     ptrInt64(3),
		CaptchaToken: "tok",
	})
	require.NoError(t, err)
	require.True(t, gock.IsDone())
	require.Equal(t, int64(10), got.ID)
	require.False(t, got.Provisional)
}

func TestClient_CreateComment_Multipart(t *testing.T) {
	defer gock.Off()

	gock.New(testBaseURL).
		Post("/api/comments").
		MatchHeader("Content-Type", "multipart/form-data").
		Reply(201).
		JSON(map[string]any{
			"id":       11,
			"userName": "bob",
			"text":     "with a file",
			"attachments": []map[string]any{
				{"id": 1, "commentId": 11, "fileUrl": "/uploads/x.png", "fileType": "image"},
			},
		})

	c := New(testBaseURL)
	got, err := c.CreateComment(context.Background(), Draft{
		UserName:     "bob",
		Email:        "bob@example.com",
		Text:         "with a file",
		CaptchaToken: "tok",
		Files: []DraftFile{
			{Name: "x.png", ContentType: "image/png", Data: []byte{1, 2, 3}},
		},
	})
	require.NoError(t, err)
	require.True(t, gock.IsDone())
	require.Equal(t, int64(11), got.ID)
	require.Len(t, got.Attachments, 1)
}

func TestClient_CreateComment_SpamRejected(t *testing.T) {
	defer gock.Off()

	gock.New(testBaseURL).
		Post("/api/comments").
		Reply(403).
		JSON(map[string]any{"error": "submission rejected"})

	c := New(testBaseURL)
	_, err := c.CreateComment(context.Background(), Draft{UserName: "bob", Text: "hi"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 403, apiErr.StatusCode)
	require.Equal(t, "submission rejected", apiErr.Message)
}

func TestClient_PageLoader(t *testing.T) {
	defer gock.Off()

	gock.New(testBaseURL).
		Get("/api/comments/7/replies").
		MatchParam("limit", "5").
		Reply(200).
		JSON(map[string]any{"data": []any{}, "nextCursor": nil})

	c := New(testBaseURL)
	store := NewStore(c.PageLoader())

	page, err := store.Fetch(context.Background(), repliesKey(7, 5))
	require.NoError(t, err)
	require.True(t, gock.IsDone())
	require.Empty(t, page.Data)
}

package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/feeds"

	"github.com/meleshyn/comments-spa/pkg/logger"
	"github.com/meleshyn/comments-spa/pkg/pagination"
)

const feedItemLimit = 50

// feedHandler serves the newest top-level comments as RSS.
func (api *API) feedHandler(w http.ResponseWriter, r *http.Request) {
	limit := feedItemLimit
	in := pagination.PageRequest{
		Limit:  &limit,
		SortBy: pagination.SortByCreatedAt,
		Order:  pagination.SortDesc,
	}
	page, err := api.svc.ListComments(r.Context(), in, nil)
	if err != nil {
		api.writeError(w, r, err)
		return
	}

	base := api.cfg.PublicBaseURL
	if base == "" {
		base = "http://" + r.Host
	}

	feed := &feeds.Feed{
		Title:       "Latest comments",
		Link:        &feeds.Link{Href: base},
		Description: "Most recent top-level comments",
		Created:     time.Now(),
	}
	for _, c := range page.Items {
		feed.Items = append(feed.Items, &feeds.Item{
			Title:       fmt.Sprintf("Comment by %s", c.UserName),
			Link:        &feeds.Link{Href: fmt.Sprintf("%s/#comment-%d", base, c.ID)},
			Description: c.Body,
			Author:      &feeds.Author{Name: c.UserName, Email: c.Email},
			Created:     c.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/rss+xml")
	if err := feed.WriteRss(w); err != nil {
		logger.FromContext(r.Context()).Error("write feed", "error", err)
	}
}

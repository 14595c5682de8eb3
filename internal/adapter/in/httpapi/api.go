package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/meleshyn/comments-spa/internal/model"
	"github.com/meleshyn/comments-spa/internal/service"
	"github.com/meleshyn/comments-spa/pkg/logger"
	"github.com/meleshyn/comments-spa/pkg/pagination"
)

// maxUploadBytes caps a whole multipart submission, all files included.
const maxUploadBytes = 32 << 20

type CommentService interface {
	CreateComment(ctx context.Context, req service.CreateCommentRequest) (model.Comment, error)
	GetCommentByID(ctx context.Context, commentID int64) (model.Comment, error)
	ListComments(ctx context.Context, in pagination.PageRequest, parentID *int64) (pagination.Page[model.Comment], error)
	Listen(ctx context.Context, scope int64) (<-chan model.Comment, error)
}

type Config struct {
	// UploadDir is served under /uploads/; empty disables the route.
	UploadDir string
	// PublicBaseURL is the absolute base used in feed links. Empty falls
	// back to the request host.
	PublicBaseURL string
	// WSKeepalive is the ping interval on stream connections.
	WSKeepalive time.Duration
}

type API struct {
	r        *mux.Router
	svc      CommentService
	cfg      Config
	upgrader websocket.Upgrader
}

func New(svc CommentService, cfg Config) *API {
	if cfg.WSKeepalive <= 0 {
		cfg.WSKeepalive = 30 * time.Second
	}
	api := API{
		r:   mux.NewRouter(),
		svc: svc,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	api.endpoints()

	return &api
}

func (api *API) Router() *mux.Router {
	return api.r
}

func (api *API) endpoints() {
	api.r.Use(api.requestIDMiddleware)
	api.r.Use(api.loggingMiddleware)

	api.r.HandleFunc("/healthz", api.healthzHandler).Methods(http.MethodGet)
	api.r.HandleFunc("/api/comments", api.listCommentsHandler).Methods(http.MethodGet)
	api.r.HandleFunc("/api/comments", api.createCommentHandler).Methods(http.MethodPost)
	api.r.HandleFunc("/api/comments/stream", api.streamHandler).Methods(http.MethodGet)
	api.r.HandleFunc("/api/comments/{id:[0-9]+}", api.commentByIDHandler).Methods(http.MethodGet)
	api.r.HandleFunc("/api/comments/{id:[0-9]+}/replies", api.listRepliesHandler).Methods(http.MethodGet)
	api.r.HandleFunc("/feed.xml", api.feedHandler).Methods(http.MethodGet)
	if api.cfg.UploadDir != "" {
		api.r.PathPrefix("/uploads/").Handler(
			http.StripPrefix("/uploads/", http.FileServer(http.Dir(api.cfg.UploadDir))))
	}
}

func (api *API) healthzHandler(w http.ResponseWriter, r *http.Request) {
	api.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (api *API) createCommentHandler(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCreateRequest(r)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	req.RemoteIP = getClientIP(r)

	c, err := api.svc.CreateComment(r.Context(), req)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	api.writeJSON(w, r, http.StatusCreated, toCommentVO(c))
}

func (api *API) commentByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		api.writeError(w, r, fieldError("id", "must be an integer"))
		return
	}

	c, err := api.svc.GetCommentByID(r.Context(), id)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	api.writeJSON(w, r, http.StatusOK, toCommentVO(c))
}

func (api *API) listCommentsHandler(w http.ResponseWriter, r *http.Request) {
	in, err := parsePageRequest(r)
	if err != nil {
		api.writeError(w, r, err)
		return
	}

	page, err := api.svc.ListComments(r.Context(), in, nil)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	api.writeJSON(w, r, http.StatusOK, toPageVO(page))
}

func (api *API) listRepliesHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		api.writeError(w, r, fieldError("id", "must be an integer"))
		return
	}
	in, err := parsePageRequest(r)
	if err != nil {
		api.writeError(w, r, err)
		return
	}

	page, err := api.svc.ListComments(r.Context(), in, &id)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	api.writeJSON(w, r, http.StatusOK, toPageVO(page))
}

// createCommentVO is the JSON body of POST /api/comments. Multipart
// submissions carry the same fields as form values.
type createCommentVO struct {
	UserName     string `json:"userName"`
	Email        string `json:"email"`
	HomePage     string `json:"homePage"`
	Text         string `json:"text"`
	ParentID     *int64 `json:"parentId"`
	CaptchaToken string `json:"captchaToken"`
}

func decodeCreateRequest(r *http.Request) (service.CreateCommentRequest, error) {
	var req service.CreateCommentRequest

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "multipart/form-data" {
		return decodeCreateForm(r)
	}

	var body createCommentVO
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxUploadBytes)).Decode(&body); err != nil {
		return req, fieldError("body", "is not valid JSON")
	}

	req.UserName = body.UserName
	req.Email = body.Email
	req.HomePage = body.HomePage
	req.Text = body.Text
	req.ParentID = body.ParentID
	req.CaptchaToken = body.CaptchaToken
	return req, nil
}

func decodeCreateForm(r *http.Request) (service.CreateCommentRequest, error) {
	var req service.CreateCommentRequest

	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return req, fieldError("body", "is not a valid multipart form")
	}

	req.UserName = r.FormValue("userName")
	req.Email = r.FormValue("email")
	req.HomePage = r.FormValue("homePage")
	req.Text = r.FormValue("text")
	req.CaptchaToken = r.FormValue("captchaToken")

	if v := r.FormValue("parentId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return req, fieldError("parentId", "must be an integer")
		}
		req.ParentID = &id
	}

	for _, fh := range r.MultipartForm.File["attachments"] {
		f, err := fh.Open()
		if err != nil {
			return req, fieldError("attachments", "cannot be read")
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return req, fieldError("attachments", "cannot be read")
		}
		// Browsers may leave the part type generic; sniff it then.
		ct := fh.Header.Get("Content-Type")
		if ct == "" || ct == "application/octet-stream" {
			ct = http.DetectContentType(data)
		}
		req.Files = append(req.Files, service.FileUpload{
			Name:        fh.Filename,
			ContentType: ct,
			Data:        data,
		})
	}

	return req, nil
}

func parsePageRequest(r *http.Request) (pagination.PageRequest, error) {
	var in pagination.PageRequest
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return in, fieldError("limit", "must be an integer")
		}
		in.Limit = &n
	}
	if v := q.Get("cursor"); v != "" {
		in.Cursor = &v
	}

	sortBy, err := pagination.ParseSortField(q.Get("sortBy"))
	if err != nil {
		return in, fieldError("sortBy", "must be one of userName, email, createdAt")
	}
	in.SortBy = sortBy

	order, err := pagination.ParseSortOrder(q.Get("sortOrder"))
	if err != nil {
		return in, fieldError("sortOrder", "must be asc or desc")
	}
	in.Order = order

	return in, nil
}

func fieldError(field, message string) error {
	return &service.ValidationError{Fields: []service.FieldError{{Field: field, Message: message}}}
}

func (api *API) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.FromContext(r.Context()).Error("encode response", "error", err)
	}
}

func (api *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		fields := make(map[string]string, len(verr.Fields))
		for _, f := range verr.Fields {
			fields[f.Field] = f.Message
		}
		api.writeJSON(w, r, http.StatusBadRequest, errorVO{Error: "validation failed", Fields: fields})
	case errors.Is(err, service.ErrCursorNotFound):
		api.writeJSON(w, r, http.StatusBadRequest, errorVO{
			Error:  "validation failed",
			Fields: map[string]string{"cursor": "does not match any comment"},
		})
	case errors.Is(err, service.ErrSpamRejected):
		api.writeJSON(w, r, http.StatusForbidden, errorVO{Error: "submission rejected"})
	case errors.Is(err, service.ErrParentNotFound):
		api.writeJSON(w, r, http.StatusUnprocessableEntity, errorVO{Error: "parent comment not found"})
	case errors.Is(err, service.ErrAttachmentProcessing):
		api.writeJSON(w, r, http.StatusUnprocessableEntity, errorVO{Error: "attachment processing failed"})
	case errors.Is(err, service.ErrNotFound):
		api.writeJSON(w, r, http.StatusNotFound, errorVO{Error: "comment not found"})
	case errors.Is(err, service.ErrInvalidRequest):
		api.writeJSON(w, r, http.StatusBadRequest, errorVO{Error: "invalid request"})
	default:
		logger.FromContext(r.Context()).Error("request failed", "error", err)
		api.writeJSON(w, r, http.StatusInternalServerError, errorVO{Error: "internal error"})
	}
}

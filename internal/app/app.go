package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/meleshyn/comments-spa/config"
	"github.com/meleshyn/comments-spa/internal/adapter/in/httpapi"
	"github.com/meleshyn/comments-spa/internal/adapter/out/blobstore"
	inmemorybus "github.com/meleshyn/comments-spa/internal/adapter/out/commentbus/inmemory"
	"github.com/meleshyn/comments-spa/internal/adapter/out/imgproc"
	"github.com/meleshyn/comments-spa/internal/adapter/out/sanitizer"
	"github.com/meleshyn/comments-spa/internal/adapter/out/spamcheck"
	memstore "github.com/meleshyn/comments-spa/internal/adapter/out/storage/inmemory"
	pgstore "github.com/meleshyn/comments-spa/internal/adapter/out/storage/postgres"
	"github.com/meleshyn/comments-spa/internal/service"
	"github.com/meleshyn/comments-spa/pkg/logger"

	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
)

const (
	imageMaxWidth  = 320
	imageMaxHeight = 240

	busBuffer = 64
)

type App struct {
	cfg  config.Config
	srv  *http.Server
	pool *pgxpool.Pool
}

func NewApp(ctx context.Context, cfg config.Config) (*App, error) {
	log := logger.FromContext(ctx)

	var (
		commentStorage service.CommentStorage
		txManager      service.TxManager
		pool           *pgxpool.Pool
	)

	switch cfg.StorageType {
	case "postgres":
		var err error
		pool, err = pgxpool.New(ctx, cfg.Postgres.GetDSN())
		if err != nil {
			return nil, fmt.Errorf("pgxpool: %w", err)
		}
		commentStorage = pgstore.NewCommentStorage(pool, trmpgx.DefaultCtxGetter)
		txManager = manager.Must(trmpgx.NewDefaultFactory(pool))

	default:
		commentStorage = memstore.NewCommentStorage()
		txManager = service.NopTxManager{}
	}

	var spamChecker service.SpamChecker
	if cfg.SpamCheck.URL != "" {
		spamChecker = spamcheck.NewClient(cfg.SpamCheck.URL, cfg.SpamCheck.Secret)
	} else {
		log.Warn("spam check disabled, every submission passes the gate")
		spamChecker = spamcheck.AllowAll{}
	}

	blobs, err := blobstore.NewDiskStore(cfg.Uploads.Dir, "/uploads")
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}

	commentSvc := service.NewCommentService(service.Deps{
		Storage:   commentStorage,
		Tx:        txManager,
		Spam:      spamChecker,
		Sanitizer: sanitizer.NewHTMLSanitizer(),
		Blobs:     blobs,
		Resizer:   imgproc.NewResizer(imageMaxWidth, imageMaxHeight),
		Bus:       inmemorybus.New(busBuffer),
		Guard:     service.NewPostingGuard(time.Duration(cfg.Posting.CooldownSeconds) * time.Second),
	})

	api := httpapi.New(commentSvc, httpapi.Config{
		UploadDir:     blobs.Dir(),
		PublicBaseURL: cfg.HTTP.PublicBaseURL,
		WSKeepalive:   time.Duration(cfg.WS.KeepAliveSeconds) * time.Second,
	})

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
	})

	addr := ":" + cfg.HTTP.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           c.Handler(api.Router()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info("app initialized", "addr", addr, "storage", cfg.StorageType)
	return &App{cfg: cfg, srv: srv, pool: pool}, nil
}

func (a *App) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", a.srv.Addr)
		errCh <- a.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = a.srv.Shutdown(shCtx)
		if a.pool != nil {
			a.pool.Close()
		}
		return nil

	case err := <-errCh:
		if a.pool != nil {
			a.pool.Close()
		}
		return err
	}
}

package http

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"threadboard/internal/cache"
	"threadboard/internal/config"
	"threadboard/internal/database"
	"threadboard/internal/handler"
	"threadboard/internal/logger"
	"threadboard/internal/redis"
	"threadboard/internal/repository"
	"threadboard/internal/service"
	authmw "threadboard/internal/transport/http/middleware"
)

const shutdownTimeout = 30 * time.Second

func Run() error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	// 2. Logger
	zl, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Connect to Database
	db, err := database.Connect(cfg, zl)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// 4. Optional Redis page cache
	var pageCache cache.CommentPageCache
	if cfg.RedisURL != "" {
		rc, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to create redis client: %w", err)
		}
		defer rc.Close()
		if err := rc.Ping(ctx); err != nil {
			return err
		}
		pageCache = cache.NewCommentPageCache(rc.Client, cfg.CommentCacheTTL, zl)
	} else {
		zl.Info("REDIS_URL not set, comment page cache disabled")
	}

	// 5. Optional image storage
	var images service.ImageStore
	if cfg.MediaEnabled() {
		media, err := service.NewMediaService(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to init media service: %w", err)
		}
		images = media
	} else {
		zl.Info("S3 not configured, image uploads disabled")
	}

	router := NewRouter(buildRouterConfig(cfg, db, pageCache, images, zl))

	// 6. Serve until signalled
	srv := &stdhttp.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	return serve(ctx, srv, zl)
}

// serve runs srv until it fails or ctx is cancelled, then shuts it down.
func serve(ctx context.Context, srv *stdhttp.Server, zl *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		zl.Info("starting server", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, stdhttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	zl.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildRouterConfig(cfg *config.Config, db *sqlx.DB, pageCache cache.CommentPageCache, images service.ImageStore, zl *zap.Logger) RouterConfig {
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	userService := service.NewUserService(userRepo, zl)
	authService := service.NewAuthService(cfg)
	postService := service.NewPostService(postRepo, categoryRepo, db, images, zl)
	commentService := service.NewCommentService(commentRepo, postRepo, db, pageCache, zl)

	return RouterConfig{
		AuthHandler:    handler.NewAuthHandler(userService, authService, zl),
		PostHandler:    handler.NewPostHandler(postService, zl),
		CommentHandler: handler.NewCommentHandler(commentService, zl),
		Tokens:         authService,
		WriteLimiter:   authmw.NewRateLimiter(cfg.RateLimitPerMinute),
	}
}

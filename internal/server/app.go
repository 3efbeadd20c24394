// Package server wires the Leafline backend together: it opens the database,
// runs migrations, builds the services and starts the HTTP and gRPC servers,
// stopping them on SIGINT, SIGTERM or SIGQUIT.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/leafline/internal/logging"
	"github.com/dmitrijs2005/leafline/internal/server/auth"
	"github.com/dmitrijs2005/leafline/internal/server/config"
	"github.com/dmitrijs2005/leafline/internal/server/media"
	"github.com/dmitrijs2005/leafline/internal/server/metrics"
	"github.com/dmitrijs2005/leafline/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/leafline/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	gs "github.com/dmitrijs2005/leafline/internal/server/grpc"
	hs "github.com/dmitrijs2005/leafline/internal/server/http"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	registry *prometheus.Registry

	userService    *services.UserService
	postService    *services.PostService
	commentService *services.CommentService
	likeService    *services.LikeService
	scanService    *services.ScanService
}

// openDB is replaced in tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	app, err := build(ctx, c, logger, db, rm)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

// build creates the collaborators that do not touch the database at
// construction time.
func build(ctx context.Context, c *config.Config, logger logging.Logger, db *sql.DB, rm repomanager.RepositoryManager) (*App, error) {
	tokens, err := auth.NewTokenIssuer(TokenConfig(c))
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}
	hasher, err := auth.NewPasswordHasher(c.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}
	images, err := media.NewS3ImageStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("image store: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mt, err := metrics.NewAuth(reg)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	return &App{
		config:         c,
		logger:         logger,
		db:             db,
		registry:       reg,
		userService:    services.NewUserService(db, rm, tokens, hasher, images, mt),
		postService:    services.NewPostService(db, rm, images),
		commentService: services.NewCommentService(db, rm),
		likeService:    services.NewLikeService(db, rm),
		scanService:    services.NewScanService(db, rm, images),
	}, nil
}

// TokenConfig derives the token issuer settings from c.
func TokenConfig(c *config.Config) auth.TokenConfig {
	return auth.TokenConfig{
		Secret:     []byte(c.SecretKey),
		Issuer:     c.TokenIssuer,
		AccessTTL:  c.AccessTokenValidityDuration,
		RefreshTTL: c.RefreshTokenValidityDuration,
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s, err := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.userService)

	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	} else {

		if err := s.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}
}

func (app *App) httpServer() *hs.HTTPServer {
	c := app.config
	return hs.NewHTTPServer(c.EndpointAddrHTTP, app.logger, hs.Deps{
		Users:      app.userService,
		Posts:      app.postService,
		Comments:   app.commentService,
		Likes:      app.likeService,
		Scans:      app.scanService,
		Metrics:    metrics.Handler(app.registry),
		AccessTTL:  c.AccessTokenValidityDuration,
		RefreshTTL: c.RefreshTokenValidityDuration,
	}, hs.CookieConfig{
		Secure:   c.CookieSecure,
		SameSite: c.CookieSameSite,
		Domain:   c.CookieDomain,
		Path:     c.CookiePath,
	})
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.httpServer().Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close", "error", err.Error())
	}
	app.logger.Info(context.Background(), "App stopped")
}

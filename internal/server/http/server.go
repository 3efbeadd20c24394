// Package http is the REST transport: gin routes under /api/v1, cookie
// handling for the session tokens and the /metrics endpoint.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/leafline/internal/logging"
	"github.com/dmitrijs2005/leafline/internal/server/models"
	"github.com/dmitrijs2005/leafline/internal/server/services"
	"github.com/gin-gonic/gin"
)

type Users interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.PublicUser, error)
	Login(ctx context.Context, identifier, password string) (*services.LoginResult, error)
	Logout(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, userID, current, next string) error
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Authenticate(ctx context.Context, accessToken string) (*models.PublicUser, error)
	CurrentUser(ctx context.Context, userID string) (*models.PublicUser, error)
	UpdateAccount(ctx context.Context, userID string, p *models.ProfileUpdate) (*models.PublicUser, error)
	UpdateAvatar(ctx context.Context, userID string, img *services.Image) (*models.PublicUser, error)
}

type Posts interface {
	Create(ctx context.Context, userID, title, description string, img *services.Image) (*models.Post, error)
	ListOwn(ctx context.Context, userID string) ([]*models.Post, error)
	EditDetails(ctx context.Context, userID, postID, title, description string) (*models.Post, error)
	EditImage(ctx context.Context, userID, postID string, img *services.Image) (*models.Post, error)
	Delete(ctx context.Context, userID, postID string) error
}

type Comments interface {
	Add(ctx context.Context, userID, postID, content string) (*models.Comment, error)
	ListByPost(ctx context.Context, postID string) ([]*models.Comment, error)
	Delete(ctx context.Context, userID, commentID string) error
}

type Likes interface {
	Toggle(ctx context.Context, userID, postID string) (*services.LikeState, error)
	LikedPostIDs(ctx context.Context, userID string) ([]string, error)
}

type Scans interface {
	Add(ctx context.Context, userID, question, response string, img *services.Image) (*models.Scan, error)
	ListOwn(ctx context.Context, userID string) ([]*models.Scan, error)
	Delete(ctx context.Context, userID, scanID string) error
}

// Deps groups what the handlers call into.
type Deps struct {
	Users    Users
	Posts    Posts
	Comments Comments
	Likes    Likes
	Scans    Scans

	// Metrics serves /metrics when set.
	Metrics http.Handler

	// Cookie lifetimes, normally the token TTLs.
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type HTTPServer struct {
	address  string
	logger   logging.Logger
	users    Users
	posts    Posts
	comments Comments
	likes    Likes
	scans    Scans
	cookies  *CookieManager
	deps     Deps
	engine   *gin.Engine
}

func NewHTTPServer(a string, l logging.Logger, d Deps, cookies CookieConfig) *HTTPServer {
	s := &HTTPServer{
		address:  a,
		logger:   l.With("module", "http_server"),
		users:    d.Users,
		posts:    d.Posts,
		comments: d.Comments,
		likes:    d.Likes,
		scans:    d.Scans,
		cookies:  NewCookieManager(cookies),
		deps:     d,
	}
	s.engine = s.routes()
	return s
}

// Handler exposes the router, mostly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

func (s *HTTPServer) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.MaxMultipartMemory = maxImageSize

	if s.deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.deps.Metrics))
	}
	r.GET("/healthz", func(c *gin.Context) { ok(c, http.StatusOK, nil, "ok") })

	v1 := r.Group("/api/v1")

	u := v1.Group("/users")
	u.POST("/register", s.register)
	u.POST("/login", s.login)
	u.POST("/refresh-token", s.refresh)
	u.POST("/logout", s.guard(), s.logout)
	u.POST("/change-password", s.guard(), s.changePassword)
	u.GET("/current-user", s.guard(), s.currentUser)
	u.PATCH("/update-account", s.guard(), s.updateAccount)
	u.PATCH("/avatar", s.guard(), s.updateAvatar)
	u.GET("/all-post", s.guard(), s.listOwnPosts)

	p := v1.Group("/post", s.guard())
	p.GET("/get-all-post", s.listOwnPosts)
	p.POST("/add-post", s.addPost)
	p.PATCH("/image/:id", s.editPostImage)
	p.PATCH("/post-details/:id", s.editPostDetails)
	p.DELETE("/delete/:id", s.deletePost)

	cm := v1.Group("/comment", s.guard())
	cm.POST("/add-comment/:postId", s.addComment)
	cm.GET("/post/:postId", s.listComments)
	cm.DELETE("/delete-comment/:id", s.deleteComment)

	lk := v1.Group("/like", s.guard())
	lk.POST("/toggle-like/:postId", s.toggleLike)
	lk.GET("/all-like-post", s.likedPosts)

	sc := v1.Group("/scan", s.guard())
	sc.POST("/add", s.addScan)
	sc.GET("/all-disease", s.listScans)
	sc.DELETE("/delete/:id", s.deleteScan)

	return r
}

func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "http shutdown", "error", err.Error())
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// CookieConfig controls the flags of the session cookies.
type CookieConfig struct {
	Secure   bool
	SameSite string
	Domain   string
	Path     string
}

// CookieManager writes and clears the access and refresh token cookies.
type CookieManager struct {
	cfg CookieConfig
}

func NewCookieManager(cfg CookieConfig) *CookieManager {
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	return &CookieManager{cfg: cfg}
}

// Set writes an HttpOnly cookie that lives for ttl.
func (m *CookieManager) Set(c *gin.Context, name, value string, ttl time.Duration) {
	c.SetSameSite(m.sameSite())
	c.SetCookie(name, value, int(ttl.Seconds()), m.cfg.Path, m.cfg.Domain, m.cfg.Secure, true)
}

// Get returns the cookie value, or "" when it is absent.
func (m *CookieManager) Get(c *gin.Context, name string) string {
	v, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return v
}

func (m *CookieManager) Clear(c *gin.Context, name string) {
	c.SetSameSite(m.sameSite())
	c.SetCookie(name, "", -1, m.cfg.Path, m.cfg.Domain, m.cfg.Secure, true)
}

func (m *CookieManager) sameSite() http.SameSite {
	switch strings.ToLower(m.cfg.SameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

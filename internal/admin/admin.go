// Package admin provides privacy-conscious visitor tracking and a small
// authenticated API over the site's statistics.
package admin

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/Zachkp/portfolio/internal/config"
)

const (
	sessionCookie = "admin_token"
	sessionTTL    = 24 * time.Hour

	// Visitor rows older than this are removed.
	Retention = 365 * 24 * time.Hour
)

var untrackedPrefixes = []string{"/static/", "/images/", "/admin/", "/api/", "/metrics", "/healthz", "/favicon"}

type Admin struct {
	store    *Store
	username string
	password string
	secret   []byte
	salt     string
	logger   *zap.Logger

	// visits tracks in-flight RecordVisit writes.
	visits sync.WaitGroup
}

// New prepares the admin API. A missing secret is replaced by a random one,
// which invalidates sessions on restart.
func New(store *Store, cfg config.AdminConfig, logger *zap.Logger) *Admin {
	if logger == nil {
		logger = zap.NewNop()
	}
	secret := cfg.Secret
	if secret == "" {
		secret = randomToken()
	}
	a := &Admin{
		store:    store,
		username: cfg.Username,
		password: cfg.Password,
		secret:   []byte(secret),
		salt:     randomToken(),
		logger:   logger.Named("admin"),
	}
	if a.username == "" || a.password == "" {
		a.logger.Warn("Admin login disabled: set ADMIN_USERNAME and ADMIN_PASSWORD")
	}
	return a
}

func randomToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// HashIP is stable for the life of the process and never reversible.
func (a *Admin) HashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip + a.salt))
	return hex.EncodeToString(sum[:])[:16]
}

// TrackVisitors records page views in the background. Requests with
// DNT: 1 and non-page paths are skipped.
func (a *Admin) TrackVisitors() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range untrackedPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}
		if c.GetHeader("DNT") == "1" {
			c.Next()
			return
		}

		hashed, ua := a.HashIP(c.ClientIP()), c.GetHeader("User-Agent")
		a.visits.Add(1)
		go func() {
			defer a.visits.Done()
			if err := a.store.RecordVisit(context.Background(), hashed, ua, path); err != nil {
				a.logger.Error("Error recording visitor", zap.Error(err))
			}
		}()
		c.Next()
	}
}

// Wait blocks until every visit write started by TrackVisitors has finished.
// Call it after the HTTP server has stopped and before closing the store.
func (a *Admin) Wait() {
	a.visits.Wait()
}

func (a *Admin) issueSession() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   a.username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Admin) verifySession(token string) error {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return jwt.ErrTokenInvalidClaims
	}
	return nil
}

// RequireSession rejects requests without a valid session cookie.
func (a *Admin) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(sessionCookie)
		if err == nil {
			err = a.verifySession(token)
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

type credentials struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

func (a *Admin) checkCredentials(creds credentials) bool {
	if a.username == "" || a.password == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(creds.Username), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(creds.Password), []byte(a.password)) == 1
	return userOK && passOK
}

func (a *Admin) login(c *gin.Context) {
	var creds credentials
	if err := c.ShouldBind(&creds); err != nil || !a.checkCredentials(creds) {
		a.logger.Warn("Failed admin login attempt", zap.String("client", a.HashIP(c.ClientIP())))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := a.issueSession()
	if err != nil {
		a.logger.Error("Error issuing admin session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(sessionCookie, token, int(sessionTTL.Seconds()), "/admin", "", c.Request.TLS != nil, true)
	a.logger.Info("Admin login successful", zap.String("client", a.HashIP(c.ClientIP())))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *Admin) logout(c *gin.Context) {
	c.SetCookie(sessionCookie, "", -1, "/admin", "", c.Request.TLS != nil, true)
	a.logger.Info("Admin logout", zap.String("client", a.HashIP(c.ClientIP())))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *Admin) stats(c *gin.Context) {
	stats, err := a.store.Stats(c.Request.Context())
	if err != nil {
		a.logger.Error("Error loading admin stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load statistics"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (a *Admin) visitors(c *gin.Context) {
	visitors, err := a.store.RecentVisitors(c.Request.Context(), 200)
	if err != nil {
		a.logger.Error("Error loading visitors", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load visitors"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"visitors": visitors})
}

func (a *Admin) exportStats(c *gin.Context) {
	stats, err := a.store.Stats(c.Request.Context())
	if err != nil {
		a.logger.Error("Error exporting admin stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load statistics"})
		return
	}
	c.Header("Content-Disposition", "attachment; filename=admin-stats.json")
	a.logger.Info("Admin stats exported", zap.String("client", a.HashIP(c.ClientIP())))
	c.JSON(http.StatusOK, stats)
}

func (a *Admin) cleanup(c *gin.Context) {
	removed, err := a.Cleanup(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Privacy cleanup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// Cleanup applies the retention window to visitor data.
func (a *Admin) Cleanup(ctx context.Context) (int64, error) {
	removed, err := a.store.CleanupOldVisitors(ctx, Retention)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			a.logger.Error("Error cleaning up old visitor data", zap.Error(err))
		}
		return 0, err
	}
	if removed > 0 {
		a.logger.Info("Privacy cleanup removed old visitor records", zap.Int64("removed", removed))
	}
	return removed, nil
}

func (a *Admin) Register(r gin.IRouter) {
	r.POST("/admin/login", a.login)
	r.GET("/admin/logout", a.logout)

	api := r.Group("/admin/api")
	api.Use(a.RequireSession())
	{
		api.GET("/stats", a.stats)
		api.GET("/visitors", a.visitors)
		api.GET("/export/stats", a.exportStats)
		api.POST("/privacy/cleanup", a.cleanup)
	}
}

package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Zachkp/portfolio/internal/admin"
	"github.com/Zachkp/portfolio/internal/contact"
	"github.com/Zachkp/portfolio/internal/metrics"
)

func newRouter(logger *zap.Logger, contactHandler *contact.Handler, adm *admin.Admin) *gin.Engine {
	r := gin.New()
	r.Use(contact.Recovery(logger), metrics.Middleware(), adm.TrackVisitors())

	// The page itself is built separately and dropped into ./static.
	r.StaticFile("/", "./static/index.html")
	r.Static("/static", "./static")
	r.Static("/images", "./images")

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())

	contactHandler.Register(r)
	adm.Register(r)

	return r
}

// Package router assembles the gin engine.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"rh-portal-be/internal/auth"
	"rh-portal-be/internal/falerh"
	"rh-portal-be/internal/http/handlers"
	"rh-portal-be/internal/http/middleware"
	"rh-portal-be/internal/models"
	"rh-portal-be/internal/store"
	"rh-portal-be/internal/ws"
)

type Deps struct {
	DB       *gorm.DB
	Store    *store.Store
	Service  *falerh.Service
	Hub      *ws.Hub
	Verifier *auth.Verifier
	Issuer   *auth.Issuer
	Log      zerolog.Logger

	WSInsecureSkipVerify bool
	WSOriginPatterns     []string
}

func New(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logging(d.Log))

	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := d.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authH := &handlers.AuthHandler{Store: d.Store, Issuer: d.Issuer}
	r.POST("/auth/login", authH.Login)

	wsH := &handlers.WSHandler{
		Hub:                d.Hub,
		Verifier:           d.Verifier,
		Rooms:              d.Service,
		InsecureSkipVerify: d.WSInsecureSkipVerify,
		OriginPatterns:     d.WSOriginPatterns,
	}
	r.GET("/ws", wsH.Handle)

	rh := &handlers.FaleRHHandler{Service: d.Service}

	colab := r.Group("/colaborador/fale-rh", middleware.Auth(d.Verifier), middleware.RequireRole(models.RoleColab))
	colab.POST("/conversas", rh.Create)
	colab.GET("/conversas", rh.List)
	colab.GET("/conversas/:id", rh.Get)
	colab.POST("/conversas/:id/mensagens", rh.SendMessage)
	colab.POST("/conversas/:id/fechar", rh.Close)
	colab.POST("/conversas/:id/lida", rh.MarkRead)

	admin := r.Group("/admin", middleware.Auth(d.Verifier), middleware.RequireRole(models.RoleAdmin))
	admin.POST("/usuarios", authH.Register)
	admin.GET("/fale-rh/conversas", rh.List)
	admin.GET("/fale-rh/conversas/:id", rh.Get)
	admin.POST("/fale-rh/conversas/:id/aceitar", rh.Accept)
	admin.POST("/fale-rh/conversas/:id/mensagens", rh.SendMessage)
	admin.POST("/fale-rh/conversas/:id/fechar", rh.Close)
	admin.POST("/fale-rh/conversas/:id/lida", rh.MarkRead)

	return r
}

package bootstrap

import (
	"database/sql"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	httpapi "github.com/GoSim-25-26J-441/template-registry/internal/api/http"
	reqmiddleware "github.com/GoSim-25-26J-441/template-registry/internal/api/http/middleware"
	"github.com/GoSim-25-26J-441/template-registry/internal/auth/middleware"
	projecthttp "github.com/GoSim-25-26J-441/template-registry/internal/projects/http"
	templatehttp "github.com/GoSim-25-26J-441/template-registry/internal/templates/http"
)

type RouterDeps struct {
	ServiceName string
	Version     string
	CORSOrigins []string
	DB          *sql.DB
	Redis       *redis.Client
	Keys        middleware.KeyResolver
	Templates   *templatehttp.Handler
	Projects    *projecthttp.Handler
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqmiddleware.RequestIDMiddleware())
	r.Use(cors.New(corsConfig(dep.CORSOrigins)))

	var db httpapi.Pinger
	if dep.DB != nil {
		db = dep.DB
	}
	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, db, dep.Redis)
	healthHandler.RegisterRoutes(r)

	api := r.Group("/api/v1")

	// Build backend callbacks carry their own shared secret.
	dep.Templates.RegisterCallbackRoutes(api)

	authed := api.Group("")
	authed.Use(middleware.APIKeyMiddleware(dep.Keys))
	dep.Templates.Register(authed)
	dep.Projects.Register(authed)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key", "X-Request-Id"},
		ExposeHeaders: []string{"X-Request-Id"},
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

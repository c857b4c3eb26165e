package bootstrap

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/GoSim-25-26J-441/template-registry/config"
	projectservice "github.com/GoSim-25-26J-441/template-registry/internal/projects/service"
	"github.com/GoSim-25-26J-441/template-registry/internal/templates/builder"
	"github.com/GoSim-25-26J-441/template-registry/internal/templates/domain"
	"github.com/GoSim-25-26J-441/template-registry/internal/templates/events"
	templateservice "github.com/GoSim-25-26J-441/template-registry/internal/templates/service"
)

// App is the wired service graph shared by the api server and the worker.
type App struct {
	Config    *config.Config
	Stores    *Stores
	Redis     *redis.Client
	Events    *events.RedisPublisher // nil without redis
	Templates *templateservice.TemplateService
	Projects  *projectservice.ProjectService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	stores, err := OpenStores(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	rdb, err := OpenRedis(ctx, cfg.Redis)
	if err != nil {
		stores.Close()
		return nil, err
	}

	backend, err := builder.New(cfg.Build, rdb)
	if err != nil {
		stores.Close()
		if rdb != nil {
			rdb.Close()
		}
		return nil, err
	}

	app := &App{
		Config:   cfg,
		Stores:   stores,
		Redis:    rdb,
		Projects: projectservice.NewProjectService(stores.Projects, cfg.Auth.KeyCacheTTL),
	}

	var publisher domain.EventPublisher = events.Nop{}
	if rdb != nil {
		app.Events = events.NewRedisPublisher(rdb)
		publisher = app.Events
	}
	app.Templates = templateservice.NewTemplateService(stores.Templates, backend, publisher)

	return app, nil
}

func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	a.Stores.Close()
}

package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/GoSim-25-26J-441/template-registry/config"
	projectdomain "github.com/GoSim-25-26J-441/template-registry/internal/projects/domain"
	projectrepo "github.com/GoSim-25-26J-441/template-registry/internal/projects/repository"
	"github.com/GoSim-25-26J-441/template-registry/internal/storage/postgres"
	"github.com/GoSim-25-26J-441/template-registry/internal/templates/domain"
	templaterepo "github.com/GoSim-25-26J-441/template-registry/internal/templates/repository"
)

// Stores holds the repositories selected by DB_DRIVER. DB is nil for the
// memory driver.
type Stores struct {
	DB        *sql.DB
	Templates domain.TemplateRepository
	Projects  projectdomain.ProjectRepository
}

// OpenStores connects to the configured store and applies the schema.
func OpenStores(ctx context.Context, cfg *config.DatabaseConfig) (*Stores, error) {
	if cfg.Driver == config.DriverMemory {
		return &Stores{
			Templates: templaterepo.NewMemoryRepository(),
			Projects:  projectrepo.NewMemoryRepository(),
		}, nil
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := postgres.NewConnection(cctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := postgres.EnsureSchema(cctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("db schema: %w", err)
	}

	return &Stores{
		DB:        db,
		Templates: templaterepo.NewTemplateRepository(db),
		Projects:  projectrepo.NewProjectRepository(db),
	}, nil
}

func (s *Stores) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

package storage

import (
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/roster/core"
	"github.com/trezcool/roster/core/importer"
	"github.com/trezcool/roster/core/school"
	"github.com/trezcool/roster/storage/database"
	inmemdb "github.com/trezcool/roster/storage/database/inmem"
	sqlxrepos "github.com/trezcool/roster/storage/database/sqlx"
)

type Storage struct {
	Repos   school.Repositories
	Reports importer.ReportStore
	DB      *sqlx.DB // nil for the in-memory engine
}

// Open connects to the configured engine. With postgres, the database and app user are created
// when missing and migrations are applied when migrate is true.
func Open(conf *core.Config, migrate bool) (*Storage, error) {
	switch conf.Database.Engine {
	case "inmem":
		db := inmemdb.Open()
		return &Storage{Repos: db.Repositories(), Reports: inmemdb.NewReportStore(db)}, nil
	case "postgres":
	default:
		return nil, errors.Errorf("unknown database engine %q", conf.Database.Engine)
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = database.Ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if migrate {
		if err = database.Migrate(db.DB, "up"); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &Storage{Repos: sqlxrepos.NewRepositories(db), Reports: sqlxrepos.NewReportStore(db), DB: db}, nil
}

func (s *Storage) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

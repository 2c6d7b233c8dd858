package dataset

import (
	"context"
	"database/sql"
	"embed"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
	_ "modernc.org/sqlite"

	"github.com/matzehuels/gqnviz/pkg/errors"
	"github.com/matzehuels/gqnviz/pkg/scene"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Run kinds.
const (
	RunGenerate = "generate"
	RunPack     = "pack"
	RunObserve  = "observe"
)

// Run is one recorded generator invocation.
type Run struct {
	ID        string
	Kind      string
	Seed      uint64
	Config    string
	CreatedAt time.Time
}

// ShardRecord is a catalogued shard.
type ShardRecord struct {
	ID    int64
	RunID string
	Dir   string
	ShardInfo
	CreatedAt time.Time
}

// Catalog records runs, the shards they wrote and the scenes and views in
// each shard, in a SQLite database.
type Catalog struct {
	db     *sql.DB
	logger *log.Logger
}

// OpenCatalog opens (creating if needed) the catalog at path and migrates it
// to the latest schema.
func OpenCatalog(path string, logger *log.Logger) (*Catalog, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "open catalog %s", path)
	}
	// One connection keeps foreign_keys on for every statement.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "enable foreign keys")
	}
	c := &Catalog{db: db, logger: logger}
	if err := c.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

func (c *Catalog) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(c.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	m.Log = migrateLogger{c.logger}
	return m, nil
}

// migrateUp applies pending migrations. The migrate instance is not closed
// because that would close the shared database handle.
func (c *Catalog) migrateUp() error {
	m, err := c.newMigrate()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "migrate catalog")
	}
	if err := m.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(errors.ErrCodeInternal, err, "migrate catalog")
	}
	return nil
}

// Version returns the applied schema version and whether the last migration
// failed halfway.
func (c *Catalog) Version() (uint, bool, error) {
	m, err := c.newMigrate()
	if err != nil {
		return 0, false, errors.Wrap(errors.ErrCodeInternal, err, "catalog version")
	}
	v, dirty, err := m.Version()
	if stderrors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

type migrateLogger struct{ l *log.Logger }

func (m migrateLogger) Printf(format string, v ...any) {
	m.l.Debug("migrate: " + strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (m migrateLogger) Verbose() bool { return false }

// CreateRun records a new run with a fresh id.
func (c *Catalog) CreateRun(ctx context.Context, kind string, seed uint64, config string) (Run, error) {
	r := Run{ID: uuid.New().String(), Kind: kind, Seed: seed, Config: config, CreatedAt: time.Now().UTC()}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, seed, config, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Kind, int64(r.Seed), r.Config, r.CreatedAt.UnixNano())
	if err != nil {
		return Run{}, errors.Wrap(errors.ErrCodeInternal, err, "record run")
	}
	return r, nil
}

// Runs lists every run, newest first.
func (c *Catalog) Runs(ctx context.Context) ([]Run, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, kind, seed, config, created_at FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "list runs")
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var seed, created int64
		if err := rows.Scan(&r.ID, &r.Kind, &seed, &r.Config, &created); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "scan run")
		}
		r.Seed = uint64(seed)
		r.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// AddShard records a shard written by run. Recording the same directory and
// name twice is a Conflict.
func (c *Catalog) AddShard(ctx context.Context, runID, dir string, info ShardInfo) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO shards (run_id, dir, name, scenes, views, originals, width, height, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, dir, info.Name, info.Scenes, info.Views, info.Originals, info.Width, info.Height, time.Now().UTC().UnixNano())
	if err != nil {
		return 0, constraintError(err, "record shard %s/%s", dir, info.Name)
	}
	return res.LastInsertId()
}

// Shards lists the shards of run, or of every run when runID is empty.
func (c *Catalog) Shards(ctx context.Context, runID string) ([]ShardRecord, error) {
	q := `SELECT id, run_id, dir, name, scenes, views, originals, width, height, created_at FROM shards`
	var args []any
	if runID != "" {
		q += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	q += ` ORDER BY dir, name`
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "list shards")
	}
	defer rows.Close()

	var out []ShardRecord
	for rows.Next() {
		var s ShardRecord
		var created int64
		if err := rows.Scan(&s.ID, &s.RunID, &s.Dir, &s.Name, &s.Scenes, &s.Views, &s.Originals,
			&s.Width, &s.Height, &created); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "scan shard")
		}
		s.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

// AddScene records scene index of a shard with its views, in one
// transaction.
func (c *Catalog) AddScene(ctx context.Context, shardID int64, index int, sceneID string, numCubes int, views []scene.Viewpoint) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "begin scene %s", sceneID)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO scenes (id, shard_id, idx, num_cubes) VALUES (?, ?, ?, ?)`,
		sceneID, shardID, index, numCubes); err != nil {
		return constraintError(err, "record scene %s", sceneID)
	}
	for i, v := range views {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO views (scene_id, idx, x, y, z, yaw, pitch) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sceneID, i, v.Eye.X, v.Eye.Y, v.Eye.Z, v.Yaw, v.Pitch); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "record view %d of scene %s", i, sceneID)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "commit scene %s", sceneID)
	}
	return nil
}

// SceneViews returns the recorded views of a scene in order.
func (c *Catalog) SceneViews(ctx context.Context, sceneID string) ([]scene.Viewpoint, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT x, y, z, yaw, pitch FROM views WHERE scene_id = ? ORDER BY idx`, sceneID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "list views")
	}
	defer rows.Close()

	var out []scene.Viewpoint
	for rows.Next() {
		var v scene.Viewpoint
		var x, y, z float64
		if err := rows.Scan(&x, &y, &z, &v.Yaw, &v.Pitch); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "scan view")
		}
		v.Eye = r3.Vec{X: x, Y: y, Z: z}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New(errors.ErrCodeNotFound, "scene %q has no recorded views", sceneID)
	}
	return out, nil
}

// constraintError maps SQLite constraint violations to Conflict.
func constraintError(err error, format string, args ...any) error {
	if strings.Contains(err.Error(), "constraint failed") {
		return errors.Wrap(errors.ErrCodeConflict, err, format, args...)
	}
	return errors.Wrap(errors.ErrCodeInternal, err, format, args...)
}

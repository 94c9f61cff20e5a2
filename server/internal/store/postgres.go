package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/fuzzymachine/efficiency/pkg/fault"
	"github.com/fuzzymachine/efficiency/pkg/types"
)

//go:embed migrations/001_machines.sql
var schemaSQL string

// Postgres is a Repository backed by a PostgreSQL machines table.
type Postgres struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ Repository = (*Postgres)(nil)

// Connect opens a pgx-backed connection pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, fault.Wrap(err, fault.KindConfiguration, "store: connect postgres")
	}
	return db, nil
}

// NewPostgres wraps an open connection.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

// Migrate creates the machines table if it does not exist.
func (r *Postgres) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return fault.Wrap(err, fault.KindInternal, "store: migrate")
	}
	return nil
}

// withTx runs fn in a transaction and rolls back on error or panic.
func (r *Postgres) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fault.Wrap(err, fault.KindInternal, "failed to begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fault.Wrap(fmt.Errorf("%w; rollback: %v", err, rbErr), fault.KindInternal, "transaction failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fault.Wrap(err, fault.KindInternal, "failed to commit")
	}
	return nil
}

func (r *Postgres) Create(ctx context.Context, m types.Machine) (types.Machine, error) {
	if err := ValidateMachine(m); err != nil {
		return types.Machine{}, err
	}
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		return r.insert(ctx, tx, &m)
	})
	if err != nil {
		return types.Machine{}, err
	}
	return m, nil
}

// FindOrCreate serializes callers on a transaction-scoped advisory lock keyed
// by the name, so two reporters for the same new machine cannot both insert.
func (r *Postgres) FindOrCreate(ctx context.Context, m types.Machine) (types.Machine, bool, error) {
	if err := ValidateMachine(m); err != nil {
		return types.Machine{}, false, err
	}

	var created bool
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, m.Name); err != nil {
			return fault.Wrap(err, fault.KindInternal, "failed to lock machine name")
		}

		var row machineSchema
		err := tx.GetContext(ctx, &row,
			`SELECT `+machineColumns+` FROM machines WHERE name = $1 ORDER BY id LIMIT 1`, m.Name)
		switch {
		case err == nil:
			m = row.toDomain()
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fault.Wrap(err, fault.KindInternal, "failed to find machine")
		}

		created = true
		return r.insert(ctx, tx, &m)
	})
	if err != nil {
		return types.Machine{}, false, err
	}
	return m, created, nil
}

// insert stamps m and writes it inside tx, filling m.ID.
func (r *Postgres) insert(ctx context.Context, tx *sqlx.Tx, m *types.Machine) error {
	now := r.now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now

	query := `
		INSERT INTO machines (name, daily_production, error_margin, maintenance_interval,
			standby_time, energy_consumption, created_at, updated_at)
		VALUES (:name, :daily_production, :error_margin, :maintenance_interval,
			:standby_time, :energy_consumption, :created_at, :updated_at)
		RETURNING id`

	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return fault.Wrap(err, fault.KindInternal, "failed to prepare insert")
	}
	defer stmt.Close()
	if err := stmt.GetContext(ctx, &m.ID, toSchema(*m)); err != nil {
		return fault.Wrap(err, fault.KindInternal, "failed to insert machine")
	}
	return nil
}

func (r *Postgres) Get(ctx context.Context, id int64) (types.Machine, error) {
	query := `SELECT ` + machineColumns + ` FROM machines WHERE id = $1`

	var row machineSchema
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Machine{}, notFound(id)
		}
		return types.Machine{}, fault.Wrap(err, fault.KindInternal, "failed to get machine")
	}
	return row.toDomain(), nil
}

func (r *Postgres) GetMany(ctx context.Context, ids []int64) ([]types.Machine, error) {
	if len(ids) == 0 {
		return []types.Machine{}, nil
	}

	query, args, err := sqlx.In(`SELECT `+machineColumns+` FROM machines WHERE id IN (?)`, lo.Uniq(ids))
	if err != nil {
		return nil, fault.Wrap(err, fault.KindInternal, "failed to build query")
	}

	var rows []machineSchema
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fault.Wrap(err, fault.KindInternal, "failed to get machines")
	}

	byID := lo.KeyBy(toDomainAll(rows), func(m types.Machine) int64 { return m.ID })
	out := make([]types.Machine, 0, len(ids))
	for _, id := range ids {
		m, ok := byID[id]
		if !ok {
			return nil, notFound(id)
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *Postgres) FindByName(ctx context.Context, name string) (types.Machine, error) {
	query := `SELECT ` + machineColumns + ` FROM machines WHERE name = $1 ORDER BY id LIMIT 1`

	var row machineSchema
	if err := r.db.GetContext(ctx, &row, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Machine{}, fault.NotFound("machine %q not found", name)
		}
		return types.Machine{}, fault.Wrap(err, fault.KindInternal, "failed to find machine")
	}
	return row.toDomain(), nil
}

func (r *Postgres) Update(ctx context.Context, m types.Machine) (types.Machine, error) {
	if err := ValidateMachine(m); err != nil {
		return types.Machine{}, err
	}
	m.UpdatedAt = r.now().UTC()

	query := `
		UPDATE machines
		SET name = $1, daily_production = $2, error_margin = $3, maintenance_interval = $4,
			standby_time = $5, energy_consumption = $6, updated_at = $7
		WHERE id = $8
		RETURNING created_at`

	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &m.CreatedAt, query,
			m.Name, m.DailyProduction, m.ErrorMargin, m.MaintenanceInterval,
			m.StandbyTime, m.EnergyConsumption, m.UpdatedAt, m.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(m.ID)
		}
		if err != nil {
			return fault.Wrap(err, fault.KindInternal, "failed to update machine")
		}
		return nil
	})
	if err != nil {
		return types.Machine{}, err
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}

func (r *Postgres) Delete(ctx context.Context, id int64) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM machines WHERE id = $1`, id)
		if err != nil {
			return fault.Wrap(err, fault.KindInternal, "failed to delete machine")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fault.Wrap(err, fault.KindInternal, "failed to check affected rows")
		}
		if n == 0 {
			return notFound(id)
		}
		return nil
	})
}

func (r *Postgres) List(ctx context.Context) ([]types.Machine, error) {
	var rows []machineSchema
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+machineColumns+` FROM machines ORDER BY id`); err != nil {
		return nil, fault.Wrap(err, fault.KindInternal, "failed to list machines")
	}
	return toDomainAll(rows), nil
}

func (r *Postgres) Search(ctx context.Context, query string) ([]types.Machine, error) {
	q := `SELECT ` + machineColumns + ` FROM machines WHERE name ILIKE $1 ESCAPE '\' ORDER BY id`

	var rows []machineSchema
	if err := r.db.SelectContext(ctx, &rows, q, "%"+escapeLike(query)+"%"); err != nil {
		return nil, fault.Wrap(err, fault.KindInternal, "failed to search machines")
	}
	return toDomainAll(rows), nil
}

func (r *Postgres) Page(ctx context.Context, req PageRequest) (Page, error) {
	col, err := req.normalize()
	if err != nil {
		return Page{}, err
	}

	total, err := r.Count(ctx)
	if err != nil {
		return Page{}, err
	}

	// col comes from the sortColumns whitelist.
	query := fmt.Sprintf(`SELECT %s FROM machines ORDER BY %s %s, id LIMIT $1 OFFSET $2`,
		machineColumns, col, direction(req.Desc))

	var rows []machineSchema
	if err := r.db.SelectContext(ctx, &rows, query, req.Size, req.Page*req.Size); err != nil {
		return Page{}, fault.Wrap(err, fault.KindInternal, "failed to page machines")
	}
	return newPage(toDomainAll(rows), req, total), nil
}

func (r *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM machines`); err != nil {
		return 0, fault.Wrap(err, fault.KindInternal, "failed to count machines")
	}
	return n, nil
}

func direction(desc bool) string {
	if desc {
		return "DESC"
	}
	return "ASC"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

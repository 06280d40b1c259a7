// Package postgres implements the option store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/covenant-network/option-layer/internal/app/domain/funds"
	"github.com/covenant-network/option-layer/internal/app/domain/option"
	"github.com/covenant-network/option-layer/internal/app/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements storage.OptionStore backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.OptionStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn and applies pending migrations.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return New(db), nil
}

// Migrate applies the embedded schema migrations.
func Migrate(db *sqlx.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

type optionRow struct {
	ID           string    `db:"id"`
	Creator      string    `db:"creator"`
	Owner        string    `db:"owner"`
	Collateral   []byte    `db:"collateral"`
	CounterOffer []byte    `db:"counter_offer"`
	Expires      int64     `db:"expires"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r optionRow) state() (option.State, error) {
	var collateral, counterOffer funds.Coins
	if err := json.Unmarshal(r.Collateral, &collateral); err != nil {
		return option.State{}, fmt.Errorf("decode collateral: %w", err)
	}
	if err := json.Unmarshal(r.CounterOffer, &counterOffer); err != nil {
		return option.State{}, fmt.Errorf("decode counter offer: %w", err)
	}
	return option.State{
		Creator:      r.Creator,
		Owner:        r.Owner,
		Collateral:   collateral,
		CounterOffer: counterOffer,
		Expires:      uint64(r.Expires),
	}, nil
}

func encodeCoins(c funds.Coins) ([]byte, error) {
	if c == nil {
		c = funds.Coins{}
	}
	return json.Marshal(c)
}

func (s *Store) CreateOption(ctx context.Context, id string, st option.State) error {
	var retired bool
	err := s.db.GetContext(ctx, &retired,
		`SELECT EXISTS (SELECT 1 FROM options_retired WHERE id = $1)`, id)
	if err != nil {
		return fmt.Errorf("check retired: %w", err)
	}
	if retired {
		return storage.ErrRetired
	}

	collateral, err := encodeCoins(st.Collateral)
	if err != nil {
		return err
	}
	counterOffer, err := encodeCoins(st.CounterOffer)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO options (id, creator, owner, collateral, counter_offer, expires)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, st.Creator, st.Owner, collateral, counterOffer, int64(st.Expires))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return storage.ErrExists
		}
		return fmt.Errorf("insert option: %w", err)
	}
	return nil
}

func (s *Store) GetOption(ctx context.Context, id string) (option.State, error) {
	var row optionRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM options WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return option.State{}, storage.ErrNotFound
	}
	if err != nil {
		return option.State{}, fmt.Errorf("select option: %w", err)
	}
	return row.state()
}

func (s *Store) UpdateOption(ctx context.Context, id string, st option.State) error {
	collateral, err := encodeCoins(st.Collateral)
	if err != nil {
		return err
	}
	counterOffer, err := encodeCoins(st.CounterOffer)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE options
		SET creator = $2, owner = $3, collateral = $4, counter_offer = $5,
		    expires = $6, updated_at = now()
		WHERE id = $1
	`, id, st.Creator, st.Owner, collateral, counterOffer, int64(st.Expires))
	if err != nil {
		return fmt.Errorf("update option: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteOption(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM options WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete option: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO options_retired (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id); err != nil {
		return fmt.Errorf("retire option: %w", err)
	}
	return tx.Commit()
}

func (s *Store) ListOptions(ctx context.Context) ([]storage.Record, error) {
	var rows []optionRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM options ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	records := make([]storage.Record, 0, len(rows))
	for _, row := range rows {
		st, err := row.state()
		if err != nil {
			return nil, err
		}
		records = append(records, storage.Record{ID: row.ID, State: st})
	}
	return records, nil
}

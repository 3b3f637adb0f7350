package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"basketsync/internal/application/port"
	"basketsync/internal/domain/model"
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS baskets (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  kind TEXT NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS basket_positions (
  basket_id TEXT NOT NULL REFERENCES baskets(id) ON DELETE CASCADE,
  ticker TEXT NOT NULL,
  weight DOUBLE PRECISION NOT NULL,
  ord INTEGER NOT NULL,
  PRIMARY KEY(basket_id, ticker)
);
CREATE INDEX IF NOT EXISTS idx_basket_positions_ord ON basket_positions(basket_id, ord);

CREATE TABLE IF NOT EXISTS reference_records (
  ticker TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  asset_class TEXT NOT NULL,
  sector TEXT NOT NULL,
  industry TEXT NOT NULL,
  baseline_price DOUBLE PRECISION NOT NULL,
  score DOUBLE PRECISION NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
);
`)
	return err
}

func (r *Repo) SaveBasket(ctx context.Context, b model.Basket) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO baskets(id, name, kind, updated_at) VALUES($1, $2, $3, $4)
		ON CONFLICT(id) DO UPDATE SET name=EXCLUDED.name, kind=EXCLUDED.kind, updated_at=EXCLUDED.updated_at
	`, b.ID, b.Name, b.Kind, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert basket: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM basket_positions WHERE basket_id=$1`, b.ID); err != nil {
		return fmt.Errorf("clear positions: %w", err)
	}
	for i, p := range b.Positions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO basket_positions(basket_id, ticker, weight, ord) VALUES($1, $2, $3, $4)
			ON CONFLICT(basket_id, ticker) DO UPDATE SET weight=EXCLUDED.weight
		`, b.ID, model.NormalizeTicker(p.Ticker), p.Weight, i); err != nil {
			return fmt.Errorf("insert position %s: %w", p.Ticker, err)
		}
	}
	return tx.Commit()
}

func (r *Repo) ListBaskets(ctx context.Context) ([]model.Basket, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT b.id, b.name, b.kind, p.ticker, p.weight
		FROM baskets b
		LEFT JOIN basket_positions p ON p.basket_id = b.id
		ORDER BY b.id, p.ord
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var baskets []model.Basket
	for rows.Next() {
		var (
			id, name, kind string
			ticker         sql.NullString
			weight         sql.NullFloat64
		)
		if err := rows.Scan(&id, &name, &kind, &ticker, &weight); err != nil {
			return nil, err
		}
		if n := len(baskets); n == 0 || baskets[n-1].ID != id {
			baskets = append(baskets, model.Basket{ID: id, Name: name, Kind: kind})
		}
		if ticker.Valid {
			last := &baskets[len(baskets)-1]
			last.Positions = append(last.Positions, model.Position{Ticker: ticker.String, Weight: weight.Float64})
		}
	}
	return baskets, rows.Err()
}

func (r *Repo) GetBasket(ctx context.Context, id string) (*model.Basket, error) {
	var b model.Basket
	err := r.db.QueryRowContext(ctx, `SELECT id, name, kind FROM baskets WHERE id=$1`, id).
		Scan(&b.ID, &b.Name, &b.Kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT ticker, weight FROM basket_positions WHERE basket_id=$1 ORDER BY ord`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p model.Position
		if err := rows.Scan(&p.Ticker, &p.Weight); err != nil {
			return nil, err
		}
		b.Positions = append(b.Positions, p)
	}
	return &b, rows.Err()
}

func (r *Repo) SaveReference(ctx context.Context, rec model.ReferenceRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reference_records(ticker, name, asset_class, sector, industry, baseline_price, score, updated_at)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT(ticker) DO UPDATE SET
		name=EXCLUDED.name, asset_class=EXCLUDED.asset_class, sector=EXCLUDED.sector, industry=EXCLUDED.industry,
		baseline_price=EXCLUDED.baseline_price, score=EXCLUDED.score, updated_at=EXCLUDED.updated_at
	`, model.NormalizeTicker(rec.Ticker), rec.Name, rec.Classification.AssetClass, rec.Classification.Sector,
		rec.Classification.Industry, rec.BaselinePrice, rec.Score, time.Now().UTC())
	return err
}

func (r *Repo) ListReferences(ctx context.Context) ([]model.ReferenceRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ticker, name, asset_class, sector, industry, baseline_price, score
		FROM reference_records ORDER BY ticker
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ReferenceRecord
	for rows.Next() {
		var rec model.ReferenceRecord
		if err := rows.Scan(&rec.Ticker, &rec.Name, &rec.Classification.AssetClass, &rec.Classification.Sector,
			&rec.Classification.Industry, &rec.BaselinePrice, &rec.Score); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Repo) GetReference(ctx context.Context, ticker string) (*model.ReferenceRecord, error) {
	var rec model.ReferenceRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT ticker, name, asset_class, sector, industry, baseline_price, score
		FROM reference_records WHERE ticker=$1
	`, model.NormalizeTicker(ticker)).Scan(&rec.Ticker, &rec.Name, &rec.Classification.AssetClass,
		&rec.Classification.Sector, &rec.Classification.Industry, &rec.BaselinePrice, &rec.Score)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

var _ port.Repository = (*Repo)(nil)

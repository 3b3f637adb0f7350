package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"basketsync/internal/application/port"
	"basketsync/internal/domain/model"
)

type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) GetDB() *sql.DB {
	return r.db
}

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS baskets (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  kind TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS basket_positions (
  basket_id TEXT NOT NULL REFERENCES baskets(id) ON DELETE CASCADE,
  ticker TEXT NOT NULL,
  weight REAL NOT NULL,
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
  baseline_price REAL NOT NULL,
  score REAL NOT NULL,
  updated_at INTEGER NOT NULL
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

	now := time.Now().UnixMilli()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO baskets(id, name, kind, updated_at)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		name=excluded.name, kind=excluded.kind, updated_at=excluded.updated_at
	`, b.ID, b.Name, b.Kind, now); err != nil {
		return fmt.Errorf("upsert basket: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM basket_positions WHERE basket_id=?`, b.ID); err != nil {
		return fmt.Errorf("clear positions: %w", err)
	}
	for i, p := range b.Positions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO basket_positions(basket_id, ticker, weight, ord) VALUES(?, ?, ?, ?)
			ON CONFLICT(basket_id, ticker) DO UPDATE SET weight=excluded.weight
		`, b.ID, model.NormalizeTicker(p.Ticker), p.Weight, i); err != nil {
			return fmt.Errorf("insert position %s: %w", p.Ticker, err)
		}
	}
	return tx.Commit()
}

func (r *Repo) ListBaskets(ctx context.Context) ([]model.Basket, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, kind FROM baskets ORDER BY id`)
	if err != nil {
		return nil, err
	}
	var baskets []model.Basket
	index := map[string]int{}
	for rows.Next() {
		var b model.Basket
		if err := rows.Scan(&b.ID, &b.Name, &b.Kind); err != nil {
			rows.Close()
			return nil, err
		}
		index[b.ID] = len(baskets)
		baskets = append(baskets, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prows, err := r.db.QueryContext(ctx, `SELECT basket_id, ticker, weight FROM basket_positions ORDER BY basket_id, ord`)
	if err != nil {
		return nil, err
	}
	defer prows.Close()
	for prows.Next() {
		var id string
		var p model.Position
		if err := prows.Scan(&id, &p.Ticker, &p.Weight); err != nil {
			return nil, err
		}
		if i, ok := index[id]; ok {
			baskets[i].Positions = append(baskets[i].Positions, p)
		}
	}
	return baskets, prows.Err()
}

func (r *Repo) GetBasket(ctx context.Context, id string) (*model.Basket, error) {
	var b model.Basket
	err := r.db.QueryRowContext(ctx, `SELECT id, name, kind FROM baskets WHERE id=?`, id).
		Scan(&b.ID, &b.Name, &b.Kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT ticker, weight FROM basket_positions WHERE basket_id=? ORDER BY ord`, id)
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
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
		name=excluded.name, asset_class=excluded.asset_class, sector=excluded.sector, industry=excluded.industry,
		baseline_price=excluded.baseline_price, score=excluded.score, updated_at=excluded.updated_at
	`, model.NormalizeTicker(rec.Ticker), rec.Name, rec.Classification.AssetClass, rec.Classification.Sector,
		rec.Classification.Industry, rec.BaselinePrice, rec.Score, time.Now().UnixMilli())
	return err
}

const referenceColumns = `ticker, name, asset_class, sector, industry, baseline_price, score`

func (r *Repo) ListReferences(ctx context.Context) ([]model.ReferenceRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+referenceColumns+` FROM reference_records ORDER BY ticker`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ReferenceRecord
	for rows.Next() {
		rec, err := scanReference(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Repo) GetReference(ctx context.Context, ticker string) (*model.ReferenceRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+referenceColumns+` FROM reference_records WHERE ticker=?`, model.NormalizeTicker(ticker))
	rec, err := scanReference(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReference(s scanner) (model.ReferenceRecord, error) {
	var rec model.ReferenceRecord
	err := s.Scan(&rec.Ticker, &rec.Name, &rec.Classification.AssetClass, &rec.Classification.Sector,
		&rec.Classification.Industry, &rec.BaselinePrice, &rec.Score)
	return rec, err
}

var _ port.Repository = (*Repo)(nil)

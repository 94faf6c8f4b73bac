package repository

import (
	"context"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
)

// PaipuRepository caches downloaded Majsoul game records by uuid.
type PaipuRepository interface {
	Get(ctx context.Context, paipuUUID string) ([]byte, bool, error)
	// Put stores content unless a record with the same uuid exists already.
	Put(ctx context.Context, paipuUUID string, content []byte) error
}

type paipuRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewPaipuRepository(db *DB, logger *slog.Logger) PaipuRepository {
	return &paipuRepository{db: db, logger: logger}
}

func (r *paipuRepository) Get(ctx context.Context, paipuUUID string) ([]byte, bool, error) {
	b := entsql.Dialect(r.db.Dialect())
	q, args := b.
		Select("content").
		From(b.Table(paipuTable)).
		Where(entsql.EQ("paipu_uuid", paipuUUID)).
		Query()
	var content []byte
	found := false
	err := query(ctx, r.db.drv, q, args, func(rows *entsql.Rows) error {
		var s string
		if err := rows.Scan(&s); err != nil {
			return err
		}
		content, found = []byte(s), true
		return nil
	})
	if err != nil {
		r.logger.Error("failed to load paipu", "paipu_uuid", paipuUUID, "error", err)
		return nil, false, err
	}
	return content, found, nil
}

func (r *paipuRepository) Put(ctx context.Context, paipuUUID string, content []byte) error {
	q, args := entsql.Dialect(r.db.Dialect()).
		Insert(paipuTable).
		Columns("paipu_uuid", "content").
		Values(paipuUUID, string(content)).
		OnConflict(entsql.ConflictColumns("paipu_uuid"), entsql.DoNothing()).
		Query()
	n, err := exec(ctx, r.db.drv, q, args)
	if err != nil {
		r.logger.Error("failed to store paipu", "paipu_uuid", paipuUUID, "error", err)
		return err
	}
	if n > 0 {
		r.logger.Debug("paipu stored", "paipu_uuid", paipuUUID, "bytes", len(content))
	}
	return nil
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/nagabus/internal/common"
)

// SettingsRepository is a small key/value store for runtime settings such as credentials.
type SettingsRepository interface {
	Get(ctx context.Context, name string) (string, bool, error)
	Put(ctx context.Context, name, value string) error
	GetJSON(ctx context.Context, name string, v any) (bool, error)
	PutJSON(ctx context.Context, name string, v any) error
}

type settingsRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewSettingsRepository(db *DB, logger *slog.Logger) SettingsRepository {
	return &settingsRepository{db: db, logger: logger}
}

func (r *settingsRepository) Get(ctx context.Context, name string) (string, bool, error) {
	b := entsql.Dialect(r.db.Dialect())
	q, args := b.
		Select("value").
		From(b.Table(settingsTable)).
		Where(entsql.EQ("name", name)).
		Query()
	var (
		value string
		found bool
	)
	err := query(ctx, r.db.drv, q, args, func(rows *entsql.Rows) error {
		found = true
		return rows.Scan(&value)
	})
	if err != nil {
		r.logger.Error("failed to read setting", "name", name, "error", err)
		return "", false, err
	}
	return value, found, nil
}

func (r *settingsRepository) Put(ctx context.Context, name, value string) error {
	q, args := entsql.Dialect(r.db.Dialect()).
		Insert(settingsTable).
		Columns("name", "value", "updated_at").
		Values(name, value, toMillis(time.Now())).
		OnConflict(entsql.ConflictColumns("name"), entsql.ResolveWithNewValues()).
		Query()
	if _, err := exec(ctx, r.db.drv, q, args); err != nil {
		r.logger.Error("failed to write setting", "name", name, "error", err)
		return err
	}
	r.logger.Info("setting updated", "name", name)
	return nil
}

func (r *settingsRepository) GetJSON(ctx context.Context, name string, v any) (bool, error) {
	raw, ok, err := r.Get(ctx, name)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, common.NewAppError("SETTINGS_DECODE", fmt.Sprintf("setting %q is not valid JSON", name), err)
	}
	return true, nil
}

func (r *settingsRepository) PutJSON(ctx context.Context, name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return common.WrapError(err, "encode setting "+name)
	}
	return r.Put(ctx, name, string(b))
}

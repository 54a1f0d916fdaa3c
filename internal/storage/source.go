package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/kovalyov-valentin/crypto-intel/internal/model"
)

// Хранилище источников, работает и с postgres, и с sqlite
type SourceStorage struct {
	db *sqlx.DB
}

func NewSourceStorage(db *sqlx.DB) *SourceStorage {
	return &SourceStorage{db: db}
}

const sourceColumns = `id, name, feed_url, enabled, health_status, last_error, last_check_at, created_at`

// Метод для получения списка источников
func (s *SourceStorage) Sources(ctx context.Context) ([]model.Source, error) {
	var sources []dbSource
	if err := s.db.SelectContext(ctx, &sources, `SELECT `+sourceColumns+` FROM sources ORDER BY created_at, name`); err != nil {
		return nil, fmt.Errorf("select sources: %w", err)
	}

	return lo.Map(sources, func(source dbSource, _ int) model.Source {
		return source.toModel()
	}), nil
}

// Только включенные источники, их опрашивает сборщик
func (s *SourceStorage) EnabledSources(ctx context.Context) ([]model.Source, error) {
	var sources []dbSource
	query := s.db.Rebind(`SELECT ` + sourceColumns + ` FROM sources WHERE enabled = ? ORDER BY created_at, name`)
	if err := s.db.SelectContext(ctx, &sources, query, true); err != nil {
		return nil, fmt.Errorf("select enabled sources: %w", err)
	}

	return lo.Map(sources, func(source dbSource, _ int) model.Source {
		return source.toModel()
	}), nil
}

// Метод для получения источника по его id
func (s *SourceStorage) SourceByID(ctx context.Context, id string) (*model.Source, error) {
	var source dbSource
	query := s.db.Rebind(`SELECT ` + sourceColumns + ` FROM sources WHERE id = ?`)
	if err := s.db.GetContext(ctx, &source, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("source %s: %w", id, ErrNotFound)
		}
		return nil, err
	}

	m := source.toModel()
	return &m, nil
}

// Метод для добавления источника. Повтор feed_url дает ErrAlreadyExists
func (s *SourceStorage) Add(ctx context.Context, source model.Source) (string, error) {
	if source.ID == "" {
		source.ID = uuid.NewString()
	}
	if source.CreatedAt.IsZero() {
		source.CreatedAt = time.Now().UTC()
	}
	if source.Health.Status == "" {
		source.Health.Status = model.HealthUnknown
	}

	row := newDBSource(source)

	var id string
	query := s.db.Rebind(`INSERT INTO sources (` + sourceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (feed_url) DO NOTHING
		RETURNING id`)

	err := s.db.QueryRowxContext(
		ctx,
		query,
		row.ID,
		row.Name,
		row.FeedURL,
		row.Enabled,
		row.HealthStatus,
		row.LastError,
		row.LastCheckAt,
		row.CreatedAt,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("source %s: %w", source.FeedURL, ErrAlreadyExists)
		}
		return "", err
	}

	return id, nil
}

// AddIfMissing добавляет источники, адреса которых еще не сохранены. Возвращает число добавленных
func (s *SourceStorage) AddIfMissing(ctx context.Context, sources []model.Source) (int, error) {
	var added int
	for _, source := range sources {
		if _, err := s.Add(ctx, source); err != nil {
			if errors.Is(err, ErrAlreadyExists) {
				continue
			}
			return added, err
		}
		added++
	}

	return added, nil
}

// Метод для удаления источника
func (s *SourceStorage) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM sources WHERE id = ?`), id)
	if err != nil {
		return err
	}

	return expectAffected(res, "source "+id)
}

// Включение и выключение источника
func (s *SourceStorage) SetEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE sources SET enabled = ? WHERE id = ?`), enabled, id)
	if err != nil {
		return err
	}

	return expectAffected(res, "source "+id)
}

func (s *SourceStorage) UpdateHealth(ctx context.Context, id string, health model.Health) error {
	res, err := s.db.ExecContext(
		ctx,
		s.db.Rebind(`UPDATE sources SET health_status = ?, last_error = ?, last_check_at = ? WHERE id = ?`),
		string(health.Status),
		health.LastError,
		toMillis(health.LastCheckAt),
		id,
	)
	if err != nil {
		return err
	}

	return expectAffected(res, "source "+id)
}

func expectAffected(res sql.Result, what string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

// Внутренняя модель для работы с БД, чтобы правильно мапить его на колонки в таблице
type dbSource struct {
	ID           string `db:"id"`
	Name         string `db:"name"`
	FeedURL      string `db:"feed_url"`
	Enabled      bool   `db:"enabled"`
	HealthStatus string `db:"health_status"`
	LastError    string `db:"last_error"`
	LastCheckAt  int64  `db:"last_check_at"`
	CreatedAt    int64  `db:"created_at"`
}

func newDBSource(m model.Source) dbSource {
	return dbSource{
		ID:           m.ID,
		Name:         m.Name,
		FeedURL:      m.FeedURL,
		Enabled:      m.Enabled,
		HealthStatus: string(m.Health.Status),
		LastError:    m.Health.LastError,
		LastCheckAt:  toMillis(m.Health.LastCheckAt),
		CreatedAt:    toMillis(m.CreatedAt),
	}
}

func (s dbSource) toModel() model.Source {
	return model.Source{
		ID:      s.ID,
		Name:    s.Name,
		FeedURL: s.FeedURL,
		Enabled: s.Enabled,
		Health: model.Health{
			Status:      model.HealthStatus(s.HealthStatus),
			LastError:   s.LastError,
			LastCheckAt: fromMillis(s.LastCheckAt),
		},
		CreatedAt: fromMillis(s.CreatedAt),
	}
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/kovalyov-valentin/crypto-intel/internal/model"
)

const itemsTable = "news"

var itemColumns = []string{
	"id",
	"fingerprint",
	"title",
	"original_title",
	"url",
	"source_name",
	"published_at",
	"fetched_at",
	"content",
	"summary",
	"tags",
	"coin_tickers",
	"topic_category",
	"status",
	"analysis",
	"rewrite",
}

// Фильтр для выдачи статей. Пустые поля не ограничивают выборку
type ItemFilter struct {
	Status     model.Status
	SourceName string
	Ticker     string
	Topic      string
	Limit      uint64
	Offset     uint64
}

// Что вернуть в очередь на повторный анализ: конкретные статьи или все статьи в статусе
type RequeueFilter struct {
	IDs    []int64
	Status model.Status
}

type ItemStorage struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

func NewItemStorage(db *sqlx.DB) *ItemStorage {
	return &ItemStorage{db: db, sb: builder(db)}
}

// Upsert сохраняет статью если отпечатка еще нет.
// Конфликт не ошибка: существующая статья и ее анализ не меняются, inserted = false.
func (s *ItemStorage) Upsert(ctx context.Context, item model.NewsItem) (bool, error) {
	row, err := newDBItem(item)
	if err != nil {
		return false, err
	}

	query, args, err := s.sb.
		Insert(itemsTable).
		Columns(itemColumns[1:]...).
		Values(
			row.Fingerprint,
			row.Title,
			row.OriginalTitle,
			row.URL,
			row.SourceName,
			row.PublishedAt,
			row.FetchedAt,
			row.Content,
			row.Summary,
			row.Tags,
			row.CoinTickers,
			row.TopicCategory,
			model.StatusPending.String(),
			nil,
			nil,
		).
		Suffix("ON CONFLICT (fingerprint) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return false, err
	}

	var id int64
	if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("upsert item %s: %w", item.Fingerprint, err)
	}

	return true, nil
}

// Pending отдает статьи в очереди на анализ, сначала самые свежие
func (s *ItemStorage) Pending(ctx context.Context, limit uint64) ([]model.NewsItem, error) {
	return s.List(ctx, ItemFilter{Status: model.StatusPending, Limit: limit})
}

func (s *ItemStorage) List(ctx context.Context, filter ItemFilter) ([]model.NewsItem, error) {
	q := s.sb.
		Select(itemColumns...).
		From(itemsTable).
		OrderBy("published_at DESC", "id DESC")

	if filter.Status != 0 {
		q = q.Where(sq.Eq{"status": filter.Status.String()})
	}
	if filter.SourceName != "" {
		q = q.Where(sq.Eq{"source_name": filter.SourceName})
	}
	if filter.Topic != "" {
		q = q.Where(sq.Eq{"topic_category": filter.Topic})
	}
	if filter.Ticker != "" {
		// тикеры лежат json массивом, ищем элемент вместе с кавычками
		q = q.Where(sq.Like{"coin_tickers": fmt.Sprintf("%%%q%%", filter.Ticker)})
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	var rows []dbItem
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}

	return toModels(rows)
}

func (s *ItemStorage) ItemByID(ctx context.Context, id int64) (*model.NewsItem, error) {
	query, args, err := s.sb.Select(itemColumns...).From(itemsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}

	var row dbItem
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("item %d: %w", id, ErrNotFound)
		}
		return nil, err
	}

	item, err := row.toModel()
	if err != nil {
		return nil, err
	}

	return &item, nil
}

// ApplyTransition единственный способ сменить статус или записать анализ.
// Обновление идет с условием на исходный статус, поэтому гонки дают ошибку, а не порчу данных.
func (s *ItemStorage) ApplyTransition(ctx context.Context, t model.Transition) error {
	if err := t.Validate(); err != nil {
		return err
	}

	q := s.sb.
		Update(itemsTable).
		Set("status", t.To.String()).
		Where(sq.Eq{"id": t.ItemID, "status": t.From.String()})

	if t.Analysis != nil {
		payload, err := json.Marshal(t.Analysis)
		if err != nil {
			return fmt.Errorf("marshal analysis: %w", err)
		}
		q = q.Set("analysis", string(payload))
	}
	if t.Title != "" {
		q = q.Set("title", t.Title)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("apply transition for item %d: %w", t.ItemID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: item %d is not %s", model.ErrIllegalTransition, t.ItemID, t.From)
	}

	return nil
}

// CountByStatus считает статьи по всем статусам, отсутствующие статусы дают ноль
func (s *ItemStorage) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	query, args, err := s.sb.
		Select("status", "COUNT(*) AS n").
		From(itemsTable).
		GroupBy("status").
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}

	counts := map[model.Status]int{
		model.StatusPending:    0,
		model.StatusProcessing: 0,
		model.StatusCompleted:  0,
		model.StatusSkipped:    0,
		model.StatusFailed:     0,
	}
	for _, row := range rows {
		status, err := model.ParseStatus(row.Status)
		if err != nil {
			return nil, err
		}
		counts[status] = row.N
	}

	return counts, nil
}

func (s *ItemStorage) Count(ctx context.Context, status model.Status) (int, error) {
	query, args, err := s.sb.
		Select("COUNT(*)").
		From(itemsTable).
		Where(sq.Eq{"status": status.String()}).
		ToSql()
	if err != nil {
		return 0, err
	}

	var n int
	if err := s.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("count %s items: %w", status, err)
	}

	return n, nil
}

// DeleteOlderThan удаляет статьи опубликованные раньше before
func (s *ItemStorage) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	query, args, err := s.sb.
		Delete(itemsTable).
		Where(sq.Lt{"published_at": toMillis(before)}).
		ToSql()
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete old items: %w", err)
	}

	return res.RowsAffected()
}

func (s *ItemStorage) DeleteAll(ctx context.Context) (int64, error) {
	query, args, err := s.sb.Delete(itemsTable).ToSql()
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete all items: %w", err)
	}

	return res.RowsAffected()
}

// Requeue возвращает завершенные статьи в очередь: анализ стирается, заголовок снова исходный.
// Статьи в обработке не трогаем.
func (s *ItemStorage) Requeue(ctx context.Context, filter RequeueFilter) (int64, error) {
	terminal := lo.Map(
		[]model.Status{model.StatusCompleted, model.StatusSkipped, model.StatusFailed},
		func(st model.Status, _ int) string { return st.String() },
	)

	q := s.sb.
		Update(itemsTable).
		Set("status", model.StatusPending.String()).
		Set("analysis", nil).
		Set("title", sq.Expr("original_title")).
		Where(sq.Eq{"status": terminal})

	switch {
	case len(filter.IDs) > 0:
		q = q.Where(sq.Eq{"id": filter.IDs})
	case filter.Status.Terminal():
		q = q.Where(sq.Eq{"status": filter.Status.String()})
	default:
		return 0, fmt.Errorf("%w: requeue needs item ids or a terminal status", model.ErrIllegalTransition)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("requeue items: %w", err)
	}

	return res.RowsAffected()
}

// AllNotPosted отдает проанализированные статьи, которые еще не ушли в канал, сначала самые свежие
func (s *ItemStorage) AllNotPosted(ctx context.Context, since time.Time, limit uint64) ([]model.NewsItem, error) {
	q := s.sb.
		Select(itemColumns...).
		From(itemsTable).
		Where(sq.Eq{"status": model.StatusCompleted.String(), "posted_at": 0}).
		Where(sq.GtOrEq{"published_at": toMillis(since)}).
		OrderBy("published_at DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	var rows []dbItem
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select not posted items: %w", err)
	}

	return toModels(rows)
}

func (s *ItemStorage) MarkPosted(ctx context.Context, id int64) error {
	query, args, err := s.sb.
		Update(itemsTable).
		Set("posted_at", time.Now().UTC().UnixMilli()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark item %d posted: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("item %d: %w", id, ErrNotFound)
	}

	return nil
}

// SaveRewrite записывает рерайт поверх предыдущего. Статус статьи не меняется
func (s *ItemStorage) SaveRewrite(ctx context.Context, id int64, rewrite model.Rewrite) error {
	payload, err := json.Marshal(rewrite)
	if err != nil {
		return fmt.Errorf("marshal rewrite: %w", err)
	}

	query, args, err := s.sb.
		Update(itemsTable).
		Set("rewrite", string(payload)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("save rewrite for item %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("item %d: %w", id, ErrNotFound)
	}

	return nil
}

// ReleaseProcessing возвращает в очередь статьи, брошенные упавшим процессом
func (s *ItemStorage) ReleaseProcessing(ctx context.Context) (int64, error) {
	query, args, err := s.sb.
		Update(itemsTable).
		Set("status", model.StatusPending.String()).
		Where(sq.Eq{"status": model.StatusProcessing.String()}).
		ToSql()
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("release processing items: %w", err)
	}

	return res.RowsAffected()
}

type dbItem struct {
	ID            int64          `db:"id"`
	Fingerprint   string         `db:"fingerprint"`
	Title         string         `db:"title"`
	OriginalTitle string         `db:"original_title"`
	URL           string         `db:"url"`
	SourceName    string         `db:"source_name"`
	PublishedAt   int64          `db:"published_at"`
	FetchedAt     int64          `db:"fetched_at"`
	Content       string         `db:"content"`
	Summary       string         `db:"summary"`
	Tags          string         `db:"tags"`
	CoinTickers   string         `db:"coin_tickers"`
	TopicCategory string         `db:"topic_category"`
	Status        string         `db:"status"`
	Analysis      sql.NullString `db:"analysis"`
	Rewrite       sql.NullString `db:"rewrite"`
}

func newDBItem(m model.NewsItem) (dbItem, error) {
	tags, err := json.Marshal(lo.Ternary(m.Tags == nil, []string{}, m.Tags))
	if err != nil {
		return dbItem{}, err
	}
	tickers, err := json.Marshal(lo.Ternary(m.CoinTickers == nil, []string{}, m.CoinTickers))
	if err != nil {
		return dbItem{}, err
	}

	return dbItem{
		Fingerprint:   m.Fingerprint,
		Title:         m.Title,
		OriginalTitle: lo.Ternary(m.OriginalTitle == "", m.Title, m.OriginalTitle),
		URL:           m.URL,
		SourceName:    m.SourceName,
		PublishedAt:   toMillis(m.PublishedAt),
		FetchedAt:     toMillis(m.FetchedAt),
		Content:       m.Content,
		Summary:       m.Summary,
		Tags:          string(tags),
		CoinTickers:   string(tickers),
		TopicCategory: lo.Ternary(m.TopicCategory == "", "Other", m.TopicCategory),
	}, nil
}

func toModels(rows []dbItem) ([]model.NewsItem, error) {
	items := make([]model.NewsItem, 0, len(rows))
	for _, row := range rows {
		item, err := row.toModel()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, nil
}

func (r dbItem) toModel() (model.NewsItem, error) {
	status, err := model.ParseStatus(r.Status)
	if err != nil {
		return model.NewsItem{}, fmt.Errorf("item %d: %w", r.ID, err)
	}

	item := model.NewsItem{
		ID:            r.ID,
		Fingerprint:   r.Fingerprint,
		Title:         r.Title,
		OriginalTitle: r.OriginalTitle,
		URL:           r.URL,
		SourceName:    r.SourceName,
		PublishedAt:   fromMillis(r.PublishedAt),
		FetchedAt:     fromMillis(r.FetchedAt),
		Content:       r.Content,
		Summary:       r.Summary,
		TopicCategory: r.TopicCategory,
		Status:        status,
	}

	if err := json.Unmarshal([]byte(r.Tags), &item.Tags); err != nil {
		return model.NewsItem{}, fmt.Errorf("item %d tags: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.CoinTickers), &item.CoinTickers); err != nil {
		return model.NewsItem{}, fmt.Errorf("item %d tickers: %w", r.ID, err)
	}

	if r.Analysis.Valid && r.Analysis.String != "" {
		var a model.Analysis
		if err := json.Unmarshal([]byte(r.Analysis.String), &a); err != nil {
			return model.NewsItem{}, fmt.Errorf("item %d analysis: %w", r.ID, err)
		}
		item.Analysis = &a
	}

	if r.Rewrite.Valid && r.Rewrite.String != "" {
		var rw model.Rewrite
		if err := json.Unmarshal([]byte(r.Rewrite.String), &rw); err != nil {
			return model.NewsItem{}, fmt.Errorf("item %d rewrite: %w", r.ID, err)
		}
		item.Rewrite = &rw
	}

	return item, nil
}

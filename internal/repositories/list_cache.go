package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/basket/internal/models"
	"github.com/desertthunder/basket/internal/shared"
)

// CachedList is a list as last fetched from the API.
type CachedList struct {
	List      models.ShoppingList
	FetchedAt time.Time
}

// ListCacheRepository stores lists as JSON payloads keyed by list id.
type ListCacheRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewListCacheRepository creates a new [ListCacheRepository] with the given database connection
func NewListCacheRepository(db *sql.DB) *ListCacheRepository {
	return &ListCacheRepository{db: db, now: time.Now}
}

const upsertList = `
	INSERT INTO list_cache (list_id, payload, fetched_at) VALUES (?, ?, ?)
	ON CONFLICT(list_id) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at
`

// Save inserts or replaces the cached copy of list
func (r *ListCacheRepository) Save(list models.ShoppingList) error {
	if list.ID <= 0 {
		return fmt.Errorf("%w: list id %d", shared.ErrInvalidArgument, list.ID)
	}

	payload, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to encode list %d: %w", list.ID, err)
	}

	if _, err := r.db.Exec(upsertList, list.ID, string(payload), r.now().UTC()); err != nil {
		return fmt.Errorf("failed to cache list %d: %w", list.ID, err)
	}
	return nil
}

// Replace swaps the whole cache for lists in one transaction, dropping lists the user no longer sees.
func (r *ListCacheRepository) Replace(lists []models.ShoppingList) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM list_cache`); err != nil {
		return fmt.Errorf("failed to clear list cache: %w", err)
	}

	at := r.now().UTC()
	for _, list := range lists {
		payload, err := json.Marshal(list)
		if err != nil {
			return fmt.Errorf("failed to encode list %d: %w", list.ID, err)
		}
		if _, err := tx.Exec(upsertList, list.ID, string(payload), at); err != nil {
			return fmt.Errorf("failed to cache list %d: %w", list.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit list cache: %w", err)
	}
	return nil
}

// Get returns the cached copy of a list, or [shared.ErrListNotFound]
func (r *ListCacheRepository) Get(id int64) (*CachedList, error) {
	var (
		payload   string
		fetchedAt time.Time
	)

	err := r.db.QueryRow(`SELECT payload, fetched_at FROM list_cache WHERE list_id = ?`, id).Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", shared.ErrListNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cached list: %w", err)
	}

	return decodeCached(payload, fetchedAt)
}

// List returns every cached list ordered by id
func (r *ListCacheRepository) List() ([]CachedList, error) {
	rows, err := r.db.Query(`SELECT payload, fetched_at FROM list_cache ORDER BY list_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached lists: %w", err)
	}
	defer rows.Close()

	var lists []CachedList
	for rows.Next() {
		var (
			payload   string
			fetchedAt time.Time
		)
		if err := rows.Scan(&payload, &fetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cached list: %w", err)
		}

		cached, err := decodeCached(payload, fetchedAt)
		if err != nil {
			return nil, err
		}
		lists = append(lists, *cached)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return lists, nil
}

func (r *ListCacheRepository) Delete(id int64) error {
	return execOne(r.db, fmt.Errorf("%w: %d", shared.ErrListNotFound, id), `DELETE FROM list_cache WHERE list_id = ?`, id)
}

func decodeCached(payload string, fetchedAt time.Time) (*CachedList, error) {
	var list models.ShoppingList
	if err := json.Unmarshal([]byte(payload), &list); err != nil {
		return nil, fmt.Errorf("failed to decode cached list: %w", err)
	}
	return &CachedList{List: list, FetchedAt: fetchedAt}, nil
}

package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/basket/internal/shared"
)

const (
	PrefLastActiveList = "last_active_list"
	PrefAccessToken    = "access_token"
)

// ErrPreferenceNotFound is returned when deleting a key that was never set.
var ErrPreferenceNotFound = errors.New("preference not found")

// PreferenceRepository stores client preferences as key/value rows.
type PreferenceRepository struct {
	db *sql.DB
}

// NewPreferenceRepository creates a new [PreferenceRepository] with the given database connection
func NewPreferenceRepository(db *sql.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// Get returns the value for key. A missing key is not an error.
func (r *PreferenceRepository) Get(key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query preference %s: %w", key, err)
	}
	return value, true, nil
}

// Set inserts or overwrites key
func (r *PreferenceRepository) Set(key, value string) error {
	query := `
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	if _, err := r.db.Exec(query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save preference %s: %w", key, err)
	}
	return nil
}

func (r *PreferenceRepository) Delete(key string) error {
	return execOne(r.db, fmt.Errorf("%w: %s", ErrPreferenceNotFound, key), `DELETE FROM preferences WHERE key = ?`, key)
}

// LastActiveList returns the list the user last had open.
func (r *PreferenceRepository) LastActiveList() (int64, bool, error) {
	value, ok, err := r.Get(PrefLastActiveList)
	if err != nil || !ok {
		return 0, false, err
	}

	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, false, fmt.Errorf("%w: stored last active list %q", shared.ErrInvalidInput, value)
	}
	return id, true, nil
}

func (r *PreferenceRepository) SetLastActiveList(id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: list id %d", shared.ErrInvalidArgument, id)
	}
	return r.Set(PrefLastActiveList, strconv.FormatInt(id, 10))
}

// ClearLastActiveList forgets the selection. Clearing an unset selection is not an error.
func (r *PreferenceRepository) ClearLastActiveList() error {
	if err := r.Delete(PrefLastActiveList); err != nil && !errors.Is(err, ErrPreferenceNotFound) {
		return err
	}
	return nil
}

// AccessToken returns the stored token, or "" when signed out.
func (r *PreferenceRepository) AccessToken() (string, error) {
	token, _, err := r.Get(PrefAccessToken)
	return token, err
}

func (r *PreferenceRepository) SetAccessToken(token string) error {
	if token == "" {
		return fmt.Errorf("%w: token", shared.ErrMissingArgument)
	}
	return r.Set(PrefAccessToken, token)
}

// ClearAccessToken signs the client out. Clearing when already signed out is not an error.
func (r *PreferenceRepository) ClearAccessToken() error {
	if err := r.Delete(PrefAccessToken); err != nil && !errors.Is(err, ErrPreferenceNotFound) {
		return err
	}
	return nil
}

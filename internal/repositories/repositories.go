package repositories

import (
	"database/sql"
	"fmt"
)

// execOne runs a statement that must touch exactly one row, returning notFound when it touched none.
func execOne(db *sql.DB, notFound error, query string, args ...any) error {
	result, err := db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to execute statement: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return notFound
	}

	return nil
}

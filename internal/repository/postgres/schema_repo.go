package postgres

import (
	"context"
	"fmt"
)

// SchemaRepository reads column metadata from information_schema so writers can
// adapt to the deployed table layout.
type SchemaRepository struct {
	db Querier
}

func NewSchemaRepository(db Querier) *SchemaRepository {
	return &SchemaRepository{db: db}
}

// PresentColumns returns the subset of candidates that exist on table in the
// current schema.
func (r *SchemaRepository) PresentColumns(ctx context.Context, table string, candidates []string) ([]string, error) {
	query := `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = current_schema()
		  AND table_name = $1
		  AND column_name = ANY($2)
	`

	rows, err := r.db.Query(ctx, query, table, candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect %s columns: %w", table, err)
	}
	defer rows.Close()

	var present []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, fmt.Errorf("failed to scan column name: %w", err)
		}
		present = append(present, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate columns: %w", err)
	}

	return present, nil
}

// HasColumn reports whether table has the named column.
func (r *SchemaRepository) HasColumn(ctx context.Context, table, column string) (bool, error) {
	present, err := r.PresentColumns(ctx, table, []string{column})
	if err != nil {
		return false, err
	}
	return len(present) > 0, nil
}

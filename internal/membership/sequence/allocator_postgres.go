package sequence

import (
	"context"
	"database/sql"
	"fmt"

	"quorum/pkg/platform/tx"
)

// Postgres allocates sequences from the membership_sequences table with an
// atomic upsert-increment. It honours a context-carried transaction, so a
// number allocated during an approval commits or rolls back with the
// aggregate save.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (a *Postgres) Next(ctx context.Context, tenantCode string, year int, typeCode string) (int64, error) {
	query := `
		INSERT INTO membership_sequences (tenant_code, year, type_code, value)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (tenant_code, year, type_code)
		DO UPDATE SET value = membership_sequences.value + 1
		RETURNING value
	`
	var next int64
	err := tx.DB(ctx, a.db).QueryRowContext(ctx, query, tenantCode, year, typeCode).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("allocate sequence %s/%d/%s: %w", tenantCode, year, typeCode, err)
	}
	return next, nil
}

package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TFMV/sage/pkg/errors"
	"github.com/TFMV/sage/pkg/models"
	"github.com/TFMV/sage/pkg/repositories"
)

const (
	tablesQuery = `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	columnsQuery = `
		SELECT column_name, data_type, is_nullable, COALESCE(column_default, '')
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`

	primaryKeysQuery = `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
		AND tc.table_schema = $1
		AND tc.table_name = $2
		ORDER BY kcu.ordinal_position`

	foreignKeysQuery = `
		SELECT kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		AND tc.table_schema = $1
		AND tc.table_name = $2`
)

// metadataRepository implements repositories.MetadataRepository using pgx.
type metadataRepository struct {
	pool *pgxpool.Pool
}

// NewMetadataRepository creates a PostgreSQL metadata repository.
func NewMetadataRepository(pool *pgxpool.Pool) repositories.MetadataRepository {
	return &metadataRepository{pool: pool}
}

// GetTables extracts all base tables in the public schema with their
// columns, primary keys, and foreign keys.
func (r *metadataRepository) GetTables(ctx context.Context) ([]models.Table, error) {
	rows, err := r.pool.Query(ctx, tablesQuery)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSchemaFailed, "failed to list tables")
	}
	defer rows.Close()

	var tables []models.Table
	for rows.Next() {
		var t models.Table
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, errors.Wrap(err, errors.CodeSchemaFailed, "failed to scan table row")
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeSchemaFailed, "table iteration failed")
	}
	rows.Close()

	for i := range tables {
		if err := r.loadTableDetails(ctx, &tables[i]); err != nil {
			return nil, err
		}
	}

	return tables, nil
}

func (r *metadataRepository) loadTableDetails(ctx context.Context, table *models.Table) error {
	cols, err := r.pool.Query(ctx, columnsQuery, table.Schema, table.Name)
	if err != nil {
		return errors.Wrapf(err, errors.CodeSchemaFailed, "failed to load columns for %s", table.Name)
	}
	defer cols.Close()
	for cols.Next() {
		var c models.Column
		var nullable string
		if err := cols.Scan(&c.Name, &c.Type, &nullable, &c.Default); err != nil {
			return errors.Wrapf(err, errors.CodeSchemaFailed, "failed to scan column for %s", table.Name)
		}
		c.Nullable = nullable == "YES"
		table.Columns = append(table.Columns, c)
	}
	if err := cols.Err(); err != nil {
		return errors.Wrapf(err, errors.CodeSchemaFailed, "column iteration failed for %s", table.Name)
	}

	pks, err := r.pool.Query(ctx, primaryKeysQuery, table.Schema, table.Name)
	if err != nil {
		return errors.Wrapf(err, errors.CodeSchemaFailed, "failed to load primary keys for %s", table.Name)
	}
	defer pks.Close()
	for pks.Next() {
		var col string
		if err := pks.Scan(&col); err != nil {
			return errors.Wrapf(err, errors.CodeSchemaFailed, "failed to scan primary key for %s", table.Name)
		}
		table.PrimaryKeys = append(table.PrimaryKeys, col)
	}
	if err := pks.Err(); err != nil {
		return errors.Wrapf(err, errors.CodeSchemaFailed, "primary key iteration failed for %s", table.Name)
	}

	fks, err := r.pool.Query(ctx, foreignKeysQuery, table.Schema, table.Name)
	if err != nil {
		return errors.Wrapf(err, errors.CodeSchemaFailed, "failed to load foreign keys for %s", table.Name)
	}
	defer fks.Close()
	for fks.Next() {
		var fk models.ForeignKey
		if err := fks.Scan(&fk.Column, &fk.ReferencesTable, &fk.ReferencesColumn); err != nil {
			return errors.Wrapf(err, errors.CodeSchemaFailed, "failed to scan foreign key for %s", table.Name)
		}
		table.ForeignKeys = append(table.ForeignKeys, fk)
	}
	if err := fks.Err(); err != nil {
		return errors.Wrapf(err, errors.CodeSchemaFailed, "foreign key iteration failed for %s", table.Name)
	}

	return nil
}

// Package repositories defines data access interfaces.
package repositories

import (
	"context"

	"github.com/TFMV/sage/pkg/models"
)

// QueryRepository executes read queries against the target database.
type QueryRepository interface {
	// ExecuteQuery runs a query and returns all rows with column order
	// preserved as reported by the driver.
	ExecuteQuery(ctx context.Context, query string) ([]models.Row, error)
}

// MetadataRepository extracts schema metadata from the target database.
type MetadataRepository interface {
	GetTables(ctx context.Context) ([]models.Table, error)
}

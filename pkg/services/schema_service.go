package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/TFMV/sage/pkg/errors"
	"github.com/TFMV/sage/pkg/models"
	"github.com/TFMV/sage/pkg/repositories"
)

// DefaultSchemaCacheTTL bounds how long a cached schema snapshot is served
// before it is reloaded from the database.
const DefaultSchemaCacheTTL = 5 * time.Minute

// schemaService implements SchemaService with an in-memory TTL cache.
type schemaService struct {
	repo    repositories.MetadataRepository
	ttl     time.Duration
	logger  Logger
	metrics MetricsCollector

	mu       sync.RWMutex
	cached   []models.Table
	loadedAt time.Time
}

// NewSchemaService creates a schema service.
func NewSchemaService(repo repositories.MetadataRepository, ttl time.Duration, logger Logger, metrics MetricsCollector) SchemaService {
	if ttl <= 0 {
		ttl = DefaultSchemaCacheTTL
	}
	return &schemaService{repo: repo, ttl: ttl, logger: logger, metrics: metrics}
}

// Load returns the target database schema, served from cache unless stale or
// a refresh is forced.
func (s *schemaService) Load(ctx context.Context, refresh bool) ([]models.Table, error) {
	s.mu.RLock()
	if !refresh && s.cached != nil && time.Since(s.loadedAt) < s.ttl {
		tables := s.cached
		s.mu.RUnlock()
		s.metrics.IncrementCounter("schema_cache_hits")
		return tables, nil
	}
	s.mu.RUnlock()

	s.metrics.IncrementCounter("schema_cache_misses")
	s.logger.Info("Loading schema from database", "refresh", refresh)

	tables, err := s.repo.GetTables(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSchemaFailed, "failed to load schema")
	}

	s.mu.Lock()
	s.cached = tables
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("Schema loaded", "tables", len(tables))
	return tables, nil
}

// FormatForPrompt renders the schema in the compact text form consumed by
// the system prompt and the schema optimizer.
func (s *schemaService) FormatForPrompt(tables []models.Table) string {
	var b strings.Builder
	for i, table := range tables {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Table: %s", table.Name)
		if table.Description != "" {
			fmt.Fprintf(&b, " (%s)", table.Description)
		}
		b.WriteString("\n")
		for _, col := range table.Columns {
			fmt.Fprintf(&b, "- %s %s", col.Name, col.Type)
			if !col.Nullable {
				b.WriteString(" NOT NULL")
			}
			b.WriteString("\n")
		}
		if len(table.PrimaryKeys) > 0 {
			fmt.Fprintf(&b, "- primary key: %s\n", strings.Join(table.PrimaryKeys, ", "))
		}
		for _, fk := range table.ForeignKeys {
			fmt.Fprintf(&b, "- %s references %s(%s)\n", fk.Column, fk.ReferencesTable, fk.ReferencesColumn)
		}
	}
	return b.String()
}

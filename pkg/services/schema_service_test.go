package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sageerrors "github.com/TFMV/sage/pkg/errors"
	"github.com/TFMV/sage/pkg/models"
)

// mockMetadataRepo implements repositories.MetadataRepository
type mockMetadataRepo struct {
	getTablesFunc func(ctx context.Context) ([]models.Table, error)
	calls         int
}

func (m *mockMetadataRepo) GetTables(ctx context.Context) ([]models.Table, error) {
	m.calls++
	return m.getTablesFunc(ctx)
}

func testTables() []models.Table {
	return []models.Table{
		{
			Schema:      "public",
			Name:        "clientes",
			Description: "registered clients",
			Columns: []models.Column{
				{Name: "id", Type: "integer", Nullable: false},
				{Name: "nombre", Type: "text", Nullable: true},
			},
			PrimaryKeys: []string{"id"},
		},
		{
			Schema: "public",
			Name:   "ordenes",
			Columns: []models.Column{
				{Name: "id", Type: "integer", Nullable: false},
				{Name: "cliente_id", Type: "integer", Nullable: false},
			},
			PrimaryKeys: []string{"id"},
			ForeignKeys: []models.ForeignKey{
				{Column: "cliente_id", ReferencesTable: "clientes", ReferencesColumn: "id"},
			},
		},
	}
}

func TestSchemaServiceCachesTables(t *testing.T) {
	repo := &mockMetadataRepo{
		getTablesFunc: func(ctx context.Context) ([]models.Table, error) {
			return testTables(), nil
		},
	}
	svc := NewSchemaService(repo, time.Minute, &mockLogger{}, &mockMetricsCollector{})

	first, err := svc.Load(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, first, 2)

	_, err = svc.Load(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls, "second load should be served from cache")
}

func TestSchemaServiceForcedRefresh(t *testing.T) {
	repo := &mockMetadataRepo{
		getTablesFunc: func(ctx context.Context) ([]models.Table, error) {
			return testTables(), nil
		},
	}
	svc := NewSchemaService(repo, time.Minute, &mockLogger{}, &mockMetricsCollector{})

	_, err := svc.Load(context.Background(), false)
	require.NoError(t, err)

	_, err = svc.Load(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)
}

func TestSchemaServiceLoadError(t *testing.T) {
	repo := &mockMetadataRepo{
		getTablesFunc: func(ctx context.Context) ([]models.Table, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := NewSchemaService(repo, time.Minute, &mockLogger{}, &mockMetricsCollector{})

	_, err := svc.Load(context.Background(), false)
	require.Error(t, err)
	assert.Equal(t, sageerrors.CodeSchemaFailed, sageerrors.GetCode(err))
}

func TestSchemaServiceFormatForPrompt(t *testing.T) {
	svc := NewSchemaService(&mockMetadataRepo{}, time.Minute, &mockLogger{}, &mockMetricsCollector{})

	out := svc.FormatForPrompt(testTables())

	assert.Contains(t, out, "Table: clientes (registered clients)")
	assert.Contains(t, out, "- id integer NOT NULL")
	assert.Contains(t, out, "- nombre text\n")
	assert.NotContains(t, out, "nombre text NOT NULL")
	assert.Contains(t, out, "- primary key: id")
	assert.Contains(t, out, "- cliente_id references clientes(id)")
}

package services

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/sage/pkg/models"
)

func TestExecutionContextEmpty(t *testing.T) {
	ec := NewExecutionContext("req-1")

	assert.Equal(t, "req-1", ec.RequestID())
	assert.Equal(t, 0, ec.Executions())
	assert.Empty(t, ec.Log())

	_, ok := ec.Last()
	assert.False(t, ok)
}

func TestExecutionContextLastWins(t *testing.T) {
	ec := NewExecutionContext("req-1")

	ec.Record(models.QueryRecord{Query: "SELECT 1", Succeeded: true})
	ec.Record(models.QueryRecord{Query: "SELECT 2", Succeeded: false, Error: "boom"})

	last, ok := ec.Last()
	require.True(t, ok)
	assert.Equal(t, "SELECT 2", last.Query)
	assert.False(t, last.Succeeded)
	assert.Equal(t, "boom", last.Error)
}

func TestExecutionContextOrderedLog(t *testing.T) {
	ec := NewExecutionContext("req-1")

	for i := 1; i <= 3; i++ {
		ec.Record(models.QueryRecord{Query: fmt.Sprintf("SELECT %d", i)})
	}

	log := ec.Log()
	require.Len(t, log, 3)
	assert.Equal(t, "SELECT 1", log[0].Query)
	assert.Equal(t, "SELECT 2", log[1].Query)
	assert.Equal(t, "SELECT 3", log[2].Query)
	assert.Equal(t, 3, ec.Executions())
}

func TestExecutionContextLogReturnsCopy(t *testing.T) {
	ec := NewExecutionContext("req-1")
	ec.Record(models.QueryRecord{Query: "SELECT 1"})

	log := ec.Log()
	log[0].Query = "mutated"

	fresh := ec.Log()
	assert.Equal(t, "SELECT 1", fresh[0].Query)
}

func TestExecutionContextReset(t *testing.T) {
	ec := NewExecutionContext("req-1")
	ec.Record(models.QueryRecord{Query: "SELECT 1", Succeeded: true})

	ec.Reset()

	assert.Equal(t, 0, ec.Executions())
	_, ok := ec.Last()
	assert.False(t, ok)
	// Identity survives a reset.
	assert.Equal(t, "req-1", ec.RequestID())
}

func TestExecutionContextConcurrentRecords(t *testing.T) {
	ec := NewExecutionContext("req-1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ec.Record(models.QueryRecord{Query: fmt.Sprintf("SELECT %d", n)})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, ec.Executions())
	_, ok := ec.Last()
	assert.True(t, ok)
}

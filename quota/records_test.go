package quota

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penlight/vitalsum/models"
)

func TestRecordLogBounded(t *testing.T) {
	log := NewRecordLog(3)

	for i := 0; i < 5; i++ {
		log.Append(models.RequestRecord{
			ID:        fmt.Sprintf("req-%d", i),
			Category:  models.CategoryQuick,
			Timestamp: time.Now(),
			Outcome:   models.OutcomeSuccess,
		})
	}

	assert.Equal(t, 3, log.Len(), "oldest records dropped once capacity exceeded")

	recent := log.Recent(10)
	require.Len(t, recent, 3)
	assert.Equal(t, "req-4", recent[0].ID, "newest first")
	assert.Equal(t, "req-3", recent[1].ID)
	assert.Equal(t, "req-2", recent[2].ID)
}

func TestRecordLogRecentSubset(t *testing.T) {
	log := NewRecordLog(8)
	for i := 0; i < 4; i++ {
		log.Append(models.RequestRecord{ID: fmt.Sprintf("req-%d", i)})
	}

	recent := log.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "req-3", recent[0].ID)
}

func TestRecordLogClear(t *testing.T) {
	log := NewRecordLog(4)
	log.Append(models.RequestRecord{ID: "a"})
	log.Clear()

	assert.Equal(t, 0, log.Len())
	assert.Empty(t, log.Recent(4))
}

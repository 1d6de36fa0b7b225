package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest("GET", "/api/v1/schedules", 200, 10*time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.ObserveGeneration(5*time.Millisecond, 3)
	m.RecordConflict("edit_cell", ReasonTeacherBooked)
	m.RecordCommit("edit_cell")

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.RequestsTotal)
	assert.InDelta(t, 0.5, snap.CacheHitRatio, 0.0001)
	assert.Equal(t, uint64(1), snap.Generations)
	assert.Equal(t, uint64(3), snap.UnresolvedCells)
	assert.Equal(t, uint64(1), snap.ConflictsRejected)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `timetable_conflicts_total{operation="edit_cell",reason="teacher double-booked"} 1`)
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveGeneration(time.Second, 1)
	m.RecordConflict("save_grid", ReasonBreakPeriod)
	m.RecordCommit("generate")
	assert.Equal(t, uint64(0), m.Snapshot().Generations)
}

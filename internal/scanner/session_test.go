package scanner

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parami-backend/internal/models"
)

func TestHistoryEvictsOldestAt501(t *testing.T) {
	sess := NewSession(branch, "op", DefaultHistoryLimit, DefaultLogLimit)
	for i := 1; i <= 501; i++ {
		sess.history.push(models.ScannedItem{ID: fmt.Sprintf("s%d", i)})
	}

	h := sess.History()
	require.Len(t, h, 500)
	assert.Equal(t, "s501", h[0].ID)
	assert.Equal(t, "s2", h[499].ID)
}

func TestLogsEvictOldestAt201(t *testing.T) {
	sess := NewSession(branch, "op", DefaultHistoryLimit, DefaultLogLimit)
	for i := 1; i <= 201; i++ {
		sess.logs.push(models.SyncLog{ID: fmt.Sprintf("l%d", i)})
	}

	logs := sess.Logs()
	require.Len(t, logs, 200)
	assert.Equal(t, "l201", logs[0].ID)
	assert.Equal(t, "l2", logs[199].ID)
}

func TestNewSessionFallsBackToDefaultLimits(t *testing.T) {
	sess := NewSession(branch, "op", 0, -1)
	assert.Equal(t, DefaultHistoryLimit, sess.history.limit)
	assert.Equal(t, DefaultLogLimit, sess.logs.limit)
	assert.Equal(t, StateIdle, sess.State())
}

func TestSessionStoreKeysByUserAndBranch(t *testing.T) {
	st := NewSessionStore(10, 10)

	a := st.Get("u1", "b1", "Kaung")
	assert.Same(t, a, st.Get("u1", "b1", "Kaung"))
	assert.NotSame(t, a, st.Get("u1", "b2", "Kaung"))
	assert.NotSame(t, a, st.Get("u2", "b1", "Kyaw"))
	assert.Equal(t, "b2", st.Get("u1", "b2", "Kaung").BranchID)
}

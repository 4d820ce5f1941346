package history_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autom8ter/nanomongo/document"
	"github.com/autom8ter/nanomongo/history"
)

func TestGetLastErrorOnEmptyChannelIsNull(t *testing.T) {
	s := history.NewStore()
	v, _ := s.GetLastError("c1").Get("err")
	assert.Nil(t, v)
}

func TestGetLastErrorOnlyPendingIsNull(t *testing.T) {
	s := history.NewStore()
	s.Begin("c1")
	v, _ := s.GetLastError("c1").Get("err")
	assert.Nil(t, v)
}

func TestCompleteReplacesPendingSentinel(t *testing.T) {
	s := history.NewStore()
	s.Begin("c1")
	require.NoError(t, s.Complete("c1", document.New("n", 1, "ok", 1)))

	n, _ := s.GetLastError("c1").Get("n")
	assert.EqualValues(t, 1, n)
}

func TestCompleteWithoutPendingIsInternalError(t *testing.T) {
	s := history.NewStore()
	s.Begin("c1")
	require.NoError(t, s.Complete("c1", document.New("n", 1)))
	err := s.Complete("c1", document.New("n", 2))
	assert.Error(t, err)
}

func TestGetLastErrorDoesNotMutate(t *testing.T) {
	s := history.NewStore()
	s.Begin("c1")
	require.NoError(t, s.Complete("c1", document.New("n", 1, "ok", 1)))

	first := s.GetLastError("c1")
	second := s.GetLastError("c1")
	assert.Equal(t, first, second)
}

func TestResetErrorThenGetLastErrorIsNull(t *testing.T) {
	s := history.NewStore()
	s.Begin("c1")
	require.NoError(t, s.Complete("c1", document.New("err", "boom", "ok", 0)))
	s.ResetError("c1")

	v, _ := s.GetLastError("c1").Get("err")
	assert.Nil(t, v)
}

func TestGetPrevErrorChecksNewestEntryFirst(t *testing.T) {
	s := history.NewStore()
	s.Begin("c1")
	require.NoError(t, s.Complete("c1", document.New("n", 0, "ok", 1)))
	s.Begin("c1")
	require.NoError(t, s.Complete("c1", document.New("err", "most recent failure", "ok", 0)))

	resp := s.GetPrevError("c1")
	nPrev, _ := resp.Get("nPrev")
	assert.EqualValues(t, 1, nPrev)
	err, _ := resp.Get("err")
	assert.Equal(t, "most recent failure", err)
}

func TestGetPrevErrorExcludesOnlyOldestEntry(t *testing.T) {
	s := history.NewStore()
	s.Begin("c1")
	require.NoError(t, s.Complete("c1", document.New("err", "oldest failure", "ok", 0)))
	s.Begin("c1")
	require.NoError(t, s.Complete("c1", document.New("n", 0, "ok", 1)))
	s.Begin("c1")
	require.NoError(t, s.Complete("c1", document.New("n", 0, "ok", 1)))

	resp := s.GetPrevError("c1")
	nPrev, _ := resp.Get("nPrev")
	assert.EqualValues(t, -1, nPrev)
}

func TestGetPrevErrorNoneFound(t *testing.T) {
	s := history.NewStore()
	s.Begin("c1")
	require.NoError(t, s.Complete("c1", document.New("n", 0, "ok", 1)))
	s.Begin("c1")
	require.NoError(t, s.Complete("c1", document.New("n", 0, "ok", 1)))

	resp := s.GetPrevError("c1")
	nPrev, _ := resp.Get("nPrev")
	assert.EqualValues(t, -1, nPrev)
}

func TestHistoryBoundedAtCapacity(t *testing.T) {
	s := history.NewStore()
	for i := 0; i < history.Capacity+5; i++ {
		s.Begin("c1")
		require.NoError(t, s.Complete("c1", document.New("n", i, "ok", 1)))
	}
	n, _ := s.GetLastError("c1").Get("n")
	assert.EqualValues(t, history.Capacity+4, n)
}

func TestCloseRemovesHistory(t *testing.T) {
	s := history.NewStore()
	s.Begin("c1")
	require.NoError(t, s.Complete("c1", document.New("err", "boom", "ok", 0)))
	s.Close("c1")

	v, _ := s.GetLastError("c1").Get("err")
	assert.Nil(t, v)
}

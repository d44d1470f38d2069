package ledger

import (
	"errors"
	"testing"

	"github.com/garyjia/store-ops/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_FoundThenDelete(t *testing.T) {
	item := &entity.LineItem{ProductCode: "473440", ExpectedQty: 5}

	require.NoError(t, RecordFound(item, 3))
	require.NoError(t, RecordFound(item, 2))
	assert.Equal(t, 5, item.Total)
	assert.Equal(t, []int{3, 2}, item.FoundEvents)
	assert.True(t, item.Collected)
	assert.Equal(t, StateComplete, StateOf(item))

	require.NoError(t, DeleteEvent(item, 0))
	assert.Equal(t, 2, item.Total)
	assert.Equal(t, []int{2}, item.FoundEvents)
	assert.True(t, item.Collected, "deleting history does not uncollect")
	assert.Equal(t, StatePartial, StateOf(item))

	require.NoError(t, DeleteEvent(item, 0))
	assert.Equal(t, 0, item.Total)
	assert.Empty(t, item.FoundEvents)
	assert.True(t, item.Collected)
	assert.True(t, Consistent(item))
}

func TestRecordFound_SumsAnySequence(t *testing.T) {
	sequences := [][]int{{1}, {7, 7, 7}, {1, 2, 3, 4, 5, 6}, {999, 1}}
	for _, seq := range sequences {
		item := &entity.LineItem{}
		want := 0
		for _, q := range seq {
			require.NoError(t, RecordFound(item, q))
			want += q
		}
		assert.Equal(t, want, item.Total)
		assert.True(t, item.Collected)
		assert.True(t, Consistent(item))
	}
}

func TestRecordFound_RejectsNonPositive(t *testing.T) {
	item := &entity.LineItem{}
	for _, q := range []int{0, -3} {
		err := RecordFound(item, q)
		assert.True(t, errors.Is(err, ErrInvalidQuantity))
	}
	assert.Equal(t, 0, item.Total)
	assert.Empty(t, item.FoundEvents)
	assert.False(t, item.Collected)
	assert.Equal(t, StateEmpty, StateOf(item))
}

func TestSetTotal(t *testing.T) {
	item := &entity.LineItem{ExpectedQty: 4}
	require.NoError(t, RecordFound(item, 1))

	require.NoError(t, SetTotal(item, 4))
	assert.Equal(t, 4, item.Total)
	assert.Empty(t, item.FoundEvents)
	assert.True(t, item.Collected)
	assert.True(t, item.Overridden)
	assert.True(t, Consistent(item))

	require.NoError(t, RecordFound(item, 2))
	assert.Equal(t, 6, item.Total)
	assert.Equal(t, []int{4, 2}, item.FoundEvents)
	assert.False(t, item.Overridden)

	require.NoError(t, SetTotal(item, 0))
	assert.False(t, item.Collected)

	assert.True(t, errors.Is(SetTotal(item, -1), ErrNegativeTotal))
	assert.Equal(t, 0, item.Total)
}

func TestRecordFound_AfterSetTotalKeepsManualTotalAsEvent(t *testing.T) {
	item := &entity.LineItem{ExpectedQty: 10}
	require.NoError(t, SetTotal(item, 5))

	require.NoError(t, RecordFound(item, 3))
	assert.Equal(t, []int{5, 3}, item.FoundEvents)
	assert.Equal(t, 8, item.Total)
	assert.False(t, item.Overridden)
	assert.True(t, Consistent(item))

	// the folded manual total can be deleted like any other event
	require.NoError(t, DeleteEvent(item, 0))
	assert.Equal(t, []int{3}, item.FoundEvents)
	assert.Equal(t, 3, item.Total)
}

func TestDeleteEvent_OutOfRange(t *testing.T) {
	item := &entity.LineItem{}
	require.NoError(t, RecordFound(item, 2))

	for _, idx := range []int{-1, 1, 5} {
		assert.True(t, errors.Is(DeleteEvent(item, idx), ErrEventIndexOutOfRange))
	}
	assert.Equal(t, []int{2}, item.FoundEvents)
}

func TestDeleteEvent_KeepsTotalEqualToRemaining(t *testing.T) {
	item := &entity.LineItem{}
	for _, q := range []int{5, 1, 4, 2} {
		require.NoError(t, RecordFound(item, q))
	}
	for _, idx := range []int{2, 0, 1, 0} {
		require.NoError(t, DeleteEvent(item, idx))
		assert.True(t, Consistent(item))
	}
	assert.Equal(t, 0, item.Total)
}

func TestToggleCollected(t *testing.T) {
	item := &entity.LineItem{}

	ToggleCollected(item)
	assert.True(t, item.Collected)
	assert.Equal(t, 0, item.Total)

	require.NoError(t, RecordFound(item, 3))
	ToggleCollected(item)
	assert.False(t, item.Collected)
	assert.Equal(t, 0, item.Total)
	assert.Empty(t, item.FoundEvents)
	assert.Equal(t, StateEmpty, StateOf(item))
}

func TestLedger_DoneTracking(t *testing.T) {
	m := &entity.DocumentManifest{
		ManifestNumber: "43531",
		Items: []*entity.LineItem{
			{ProductCode: "473440", ExpectedQty: 1},
			{ProductCode: "473465", ExpectedQty: 2},
		},
	}
	l := New(m)
	assert.Equal(t, 2, m.ItemCount)
	assert.False(t, m.Done)

	_, err := l.RecordFound("473440", 1)
	require.NoError(t, err)
	assert.False(t, m.Done)

	it, err := l.SetTotal("473465", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, it.Total)
	assert.True(t, m.Done)

	_, err = l.ToggleCollected("473440")
	require.NoError(t, err)
	assert.False(t, m.Done)

	_, err = l.DeleteEvent("473465", 0)
	assert.True(t, errors.Is(err, ErrEventIndexOutOfRange))

	_, err = l.RecordFound("999999", 1)
	assert.True(t, errors.Is(err, ErrItemNotFound))
}

func TestLedger_EmptyManifestIsNotDone(t *testing.T) {
	m := &entity.DocumentManifest{ManifestNumber: "43531", Done: true}
	New(m)
	assert.False(t, m.Done)
}

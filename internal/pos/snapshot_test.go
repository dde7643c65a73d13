package pos

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultpos/internal/domain"
)

func TestRefreshFailureKeepsPreviousItems(t *testing.T) {
	snapshot, loader := newLoadedSnapshot(testItems())
	require.Len(t, snapshot.Items(), 3)
	loadedAt := snapshot.LoadedAt()

	loader.set(nil, errors.New("connection refused"))
	_, err := snapshot.Refresh(context.Background())
	require.ErrorIs(t, err, ErrLoad)

	assert.Len(t, snapshot.Items(), 3)
	assert.Equal(t, loadedAt, snapshot.LoadedAt())
	_, ok := snapshot.FindByID("item-tote")
	assert.True(t, ok)
}

func TestRefreshReplacesWholeSetAndNotifies(t *testing.T) {
	snapshot, loader := newLoadedSnapshot(testItems())

	var seen [][]domain.InventoryItem
	unsubscribe := snapshot.OnRefresh(func(items []domain.InventoryItem) {
		seen = append(seen, items)
	})

	loader.set(testItems()[:1], nil)
	items, err := snapshot.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Len(t, seen, 1)
	assert.Equal(t, "item-tee", seen[0][0].ID)

	_, ok := snapshot.FindByID("item-tote")
	assert.False(t, ok)

	unsubscribe()
	_, err = snapshot.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, seen, 1)
}

func TestFindByNameIsCaseInsensitiveSubstring(t *testing.T) {
	snapshot, _ := newLoadedSnapshot(testItems())

	matches := snapshot.FindByName("  TO ")
	require.Len(t, matches, 1)
	assert.Equal(t, "item-tote", matches[0].ID)

	assert.Len(t, snapshot.FindByName("S"), 3)
	assert.Empty(t, snapshot.FindByName("   "))
	assert.Empty(t, snapshot.FindByName("jacket"))
}

func TestSnapshotOnlyLoadsItsStore(t *testing.T) {
	items := append(testItems(), domain.InventoryItem{ID: "elsewhere", StoreID: "store-2", Name: "Other", PriceCents: 1, Quantity: 1})
	snapshot, _ := newLoadedSnapshot(items)

	_, ok := snapshot.FindByID("elsewhere")
	assert.False(t, ok)
	assert.Equal(t, testStore, snapshot.StoreID())
}

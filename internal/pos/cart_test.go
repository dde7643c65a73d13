package pos

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultpos/internal/domain"
	"vaultpos/internal/qrid"
)

func TestTotalIsAFoldOverCurrentLines(t *testing.T) {
	snapshot, _ := newLoadedSnapshot(testItems())
	cart := NewCart()
	rng := rand.New(rand.NewSource(42))

	scans := []string{
		qrid.Encode(testStore, "item-tee", domain.SizeS),
		qrid.Encode(testStore, "item-tee", domain.SizeL),
		qrid.Encode(testStore, "item-tote", ""),
		qrid.Encode("store-2", "item-tote", ""),
		qrid.Encode(testStore, "missing", ""),
	}
	names := []struct{ name, size string }{
		{"classic tee", "M"},
		{"CANVAS TOTE", ""},
		{"Wool Socks", ""},
		{"Wool", ""},
		{"Classic Tee", ""},
	}

	for step := 0; step < 500; step++ {
		switch rng.Intn(3) {
		case 0:
			pick := names[rng.Intn(len(names))]
			_, _ = cart.AddManual(snapshot, pick.name, pick.size)
		case 1:
			payload, err := qrid.Decode(scans[rng.Intn(len(scans))])
			require.NoError(t, err)
			_, _ = cart.AddScanned(snapshot, payload)
		case 2:
			cart.RemoveAt(rng.Intn(cart.Len()+2) - 1)
		}

		var want int64
		for _, line := range cart.Lines() {
			want += line.PriceCents
		}
		require.Equal(t, want, cart.Total(), "step %d", step)
	}
}

func TestAddManualMatchesExactNameIgnoringCase(t *testing.T) {
	snapshot, _ := newLoadedSnapshot(testItems())
	cart := NewCart()

	line, err := cart.AddManual(snapshot, "  canvas TOTE ", "")
	require.NoError(t, err)
	assert.Equal(t, "item-tote", line.ItemID)
	assert.Equal(t, int64(10000), line.PriceCents)
	assert.Equal(t, domain.Size(""), line.Size)

	_, err = cart.AddManual(snapshot, "Canvas", "")
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.Equal(t, 1, cart.Len())
}

func TestAddManualValidatesSizeAgainstItem(t *testing.T) {
	snapshot, _ := newLoadedSnapshot(testItems())
	cart := NewCart()

	_, err := cart.AddManual(snapshot, "Classic Tee", "")
	assert.ErrorIs(t, err, ErrSizeRequired)

	_, err = cart.AddManual(snapshot, "Classic Tee", "XXXL")
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = cart.AddManual(snapshot, "Canvas Tote", "M")
	assert.ErrorIs(t, err, ErrInvalidSize)

	line, err := cart.AddManual(snapshot, "Classic Tee", "m")
	require.NoError(t, err)
	assert.Equal(t, domain.SizeM, line.Size)
	assert.Equal(t, 1, cart.Len())
}

func TestAddScannedTreatsNAAsUnsized(t *testing.T) {
	snapshot, _ := newLoadedSnapshot(testItems())
	cart := NewCart()

	payload, err := qrid.Decode(`{"store_id":"store-1","item_id":"item-tote","size":"NA"}`)
	require.NoError(t, err)
	line, err := cart.AddScanned(snapshot, payload)
	require.NoError(t, err)
	assert.Equal(t, domain.Size(""), line.Size)
}

func TestResolveRejectsForeignStoreBeforeLookup(t *testing.T) {
	snapshot, _ := newLoadedSnapshot(testItems())

	for _, itemID := range []string{"item-tee", "does-not-exist"} {
		_, err := Resolve(qrid.Payload{StoreID: "store-2", ItemID: itemID}, snapshot, testStore)
		assert.ErrorIs(t, err, ErrForeignStore, itemID)
	}

	_, err := Resolve(qrid.Payload{StoreID: testStore, ItemID: "does-not-exist"}, snapshot, testStore)
	assert.ErrorIs(t, err, ErrUnknownItem)

	item, err := Resolve(qrid.Payload{StoreID: testStore, ItemID: "item-tee", Size: domain.SizeS}, snapshot, testStore)
	require.NoError(t, err)
	assert.Equal(t, "Classic Tee", item.Name)
}

func TestRoundTripResolvesToSameItemAndSize(t *testing.T) {
	items := []domain.InventoryItem{
		{ID: "sized", StoreID: testStore, Name: "Sized", PriceCents: 100, Quantity: 5, Sizes: domain.SizeBuckets{S: 1, M: 1, L: 1, XL: 1, XXL: 1}},
		{ID: "plain", StoreID: testStore, Name: "Plain", PriceCents: 100, Quantity: 1},
	}
	snapshot, _ := newLoadedSnapshot(items)

	for _, size := range domain.Sizes {
		payload, err := qrid.Decode(qrid.Encode(testStore, "sized", size))
		require.NoError(t, err)
		line, err := NewCart().AddScanned(snapshot, payload)
		require.NoError(t, err)
		assert.Equal(t, "sized", line.ItemID)
		assert.Equal(t, size, line.Size)
	}

	payload, err := qrid.Decode(qrid.Encode(testStore, "plain", domain.SizeNA))
	require.NoError(t, err)
	line, err := NewCart().AddScanned(snapshot, payload)
	require.NoError(t, err)
	assert.Equal(t, "plain", line.ItemID)
	assert.Equal(t, domain.Size(""), line.Size)
}

func TestRemoveAtOutOfRangeIsNoop(t *testing.T) {
	snapshot, _ := newLoadedSnapshot(testItems())
	cart := NewCart()
	_, _ = cart.AddManual(snapshot, "Canvas Tote", "")
	_, _ = cart.AddManual(snapshot, "Wool Socks", "")

	assert.False(t, cart.RemoveAt(-1))
	assert.False(t, cart.RemoveAt(2))
	assert.Equal(t, 2, cart.Len())

	assert.True(t, cart.RemoveAt(0))
	lines := cart.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "item-socks", lines[0].ItemID)
}

func TestLinesKeepPriceCapturedAtAddTime(t *testing.T) {
	snapshot, loader := newLoadedSnapshot(testItems())
	cart := NewCart()
	_, err := cart.AddManual(snapshot, "Canvas Tote", "")
	require.NoError(t, err)

	repriced := testItems()
	repriced[1].PriceCents = 99900
	loader.set(repriced, nil)
	_, err = snapshot.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(10000), cart.Total())
	_, err = cart.AddManual(snapshot, "Canvas Tote", "")
	require.NoError(t, err)
	assert.Equal(t, int64(10000+99900), cart.Total())
}

func TestDuplicateLinesAreDistinctUnits(t *testing.T) {
	snapshot, _ := newLoadedSnapshot(testItems())
	cart := NewCart()
	for i := 0; i < 3; i++ {
		_, err := cart.AddManual(snapshot, "Canvas Tote", "")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, cart.Len())
	assert.Equal(t, int64(30000), cart.Total())
}

package labels

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultpos/internal/domain"
	"vaultpos/internal/qrid"
)

func sizedItem() domain.InventoryItem {
	return domain.InventoryItem{
		ID: "item-tee", StoreID: "store-1", Name: "Classic Tee", Brand: "Vault",
		PriceCents: 49900, Quantity: 3, Sizes: domain.SizeBuckets{S: 2, L: 1},
	}
}

func unsizedItem() domain.InventoryItem {
	return domain.InventoryItem{ID: "item-tote", StoreID: "store-1", Name: "Canvas Tote", PriceCents: 29900, Quantity: 2}
}

func sizesOf(units []Unit) []domain.Size {
	out := make([]domain.Size, 0, len(units))
	for _, unit := range units {
		out = append(out, unit.Size)
	}
	return out
}

func TestExpandSizedItemInBucketOrder(t *testing.T) {
	units := Expand(sizedItem())
	assert.Equal(t, []domain.Size{domain.SizeS, domain.SizeS, domain.SizeL}, sizesOf(units))

	all := domain.InventoryItem{ID: "x", Sizes: domain.SizeBuckets{XXL: 1, XL: 1, L: 1, M: 1, S: 1}}
	assert.Equal(t, domain.Sizes, sizesOf(Expand(all)))
}

func TestExpandUnsizedItemUsesQuantity(t *testing.T) {
	assert.Equal(t, []domain.Size{domain.SizeNA, domain.SizeNA}, sizesOf(Expand(unsizedItem())))

	empty := unsizedItem()
	empty.Quantity = 0
	assert.Empty(t, Expand(empty))
}

func TestExpandAllKeepsItemOrder(t *testing.T) {
	units := ExpandAll([]domain.InventoryItem{unsizedItem(), sizedItem()})
	require.Len(t, units, 5)
	assert.Equal(t, "item-tote", units[0].Item.ID)
	assert.Equal(t, "item-tote", units[1].Item.ID)
	assert.Equal(t, "item-tee", units[2].Item.ID)
	assert.Equal(t, domain.SizeL, units[4].Size)
}

func TestPayloadsDecodeToSameIdentity(t *testing.T) {
	for _, label := range Build([]domain.InventoryItem{sizedItem(), unsizedItem()}) {
		decoded, err := qrid.Decode(label.Payload)
		require.NoError(t, err)
		assert.Equal(t, "store-1", decoded.StoreID)
		assert.Equal(t, label.ItemID, decoded.ItemID)
		if label.Size == domain.SizeNA {
			assert.Equal(t, domain.Size(""), decoded.Size)
		} else {
			assert.Equal(t, label.Size, decoded.Size)
		}
	}
}

type countingRenderer struct {
	calls map[string]int
	err   error
}

func (r *countingRenderer) Render(text string, pixels int) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.calls == nil {
		r.calls = map[string]int{}
	}
	r.calls[text]++
	return qrid.PNG(text, pixels)
}

func TestSheetWritesPDFAndRendersEachPayloadOnce(t *testing.T) {
	renderer := &countingRenderer{}
	sheet := NewSheet(renderer, "Rs.")

	var buf bytes.Buffer
	units := ExpandAll([]domain.InventoryItem{sizedItem(), unsizedItem()})
	pages, err := sheet.Write(&buf, units)
	require.NoError(t, err)
	assert.Equal(t, 1, pages)

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
	assert.Len(t, renderer.calls, 3)
	for text, n := range renderer.calls {
		assert.Equal(t, 1, n, text)
	}
}

func TestSheetSpillsOntoSecondPage(t *testing.T) {
	item := unsizedItem()
	item.Quantity = 16

	var buf bytes.Buffer
	pages, err := NewSheet(nil, "Rs.").Write(&buf, Expand(item))
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
}

func TestSheetErrors(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewSheet(nil, "").Write(&buf, nil)
	assert.Error(t, err)

	failing := &countingRenderer{err: errors.New("boom")}
	_, err = NewSheet(failing, "").Write(&buf, Expand(unsizedItem()))
	assert.Error(t, err)
}

func TestCaptions(t *testing.T) {
	sheet := NewSheet(nil, "Rs.")

	sized := sheet.captions(Unit{Item: sizedItem(), Size: domain.SizeL})
	assert.Equal(t, []string{"Classic Tee", "Vault", "Size: L", "Rs. 499.00"}, sized)

	unsized := sheet.captions(Unit{Item: unsizedItem(), Size: domain.SizeNA})
	assert.Equal(t, []string{"Canvas Tote", "-", "Rs. 299.00"}, unsized)
}

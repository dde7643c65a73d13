// Package labels expands inventory into one printable QR label per unit of
// stock and lays the labels out on PDF sheets.
package labels

import (
	"vaultpos/internal/domain"
	"vaultpos/internal/qrid"
)

// Unit is one physical item to label. Size is SizeNA for unsized stock.
type Unit struct {
	Item domain.InventoryItem
	Size domain.Size
}

// Expand yields one unit per piece of stock. Sized items produce their
// buckets in S, M, L, XL, XXL order; unsized items produce Quantity units
// labeled NA.
func Expand(item domain.InventoryItem) []Unit {
	if !item.Sized() {
		if item.Quantity <= 0 {
			return nil
		}
		units := make([]Unit, 0, item.Quantity)
		for i := 0; i < item.Quantity; i++ {
			units = append(units, Unit{Item: item, Size: domain.SizeNA})
		}
		return units
	}

	units := make([]Unit, 0, item.Sizes.Total())
	for _, size := range domain.Sizes {
		for i := 0; i < item.Sizes.Get(size); i++ {
			units = append(units, Unit{Item: item, Size: size})
		}
	}
	return units
}

// ExpandAll concatenates Expand over items, keeping item order.
func ExpandAll(items []domain.InventoryItem) []Unit {
	var units []Unit
	for _, item := range items {
		units = append(units, Expand(item)...)
	}
	return units
}

// Payload is the text printed into the unit's QR code.
func (u Unit) Payload() string {
	return qrid.Encode(u.Item.StoreID, u.Item.ID, u.Size)
}

// Build expands items and encodes every unit.
func Build(items []domain.InventoryItem) []domain.LabelPayload {
	units := ExpandAll(items)
	out := make([]domain.LabelPayload, 0, len(units))
	for _, unit := range units {
		out = append(out, domain.LabelPayload{
			ItemID:  unit.Item.ID,
			Size:    unit.Size,
			Payload: unit.Payload(),
		})
	}
	return out
}

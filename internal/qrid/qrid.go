// Package qrid encodes and decodes the store/item/size identity printed on
// item labels and read back by the billing scanner.
package qrid

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"vaultpos/internal/domain"
)

var ErrMalformedPayload = errors.New("malformed qr payload")

// Payload is a decoded label. Size is empty for unsized stock.
type Payload struct {
	StoreID string
	ItemID  string
	Size    domain.Size
}

type wirePayload struct {
	StoreID string `json:"store_id"`
	ItemID  string `json:"item_id"`
	Size    string `json:"size,omitempty"`
}

// Encode serializes the triple as JSON with a fixed key order. An empty size
// is written as "NA".
func Encode(storeID string, itemID string, size domain.Size) string {
	if size == "" {
		size = domain.SizeNA
	}
	raw, _ := json.Marshal(wirePayload{StoreID: storeID, ItemID: itemID, Size: string(size)})
	return string(raw)
}

func Decode(text string) (Payload, error) {
	cleaned := strings.TrimSpace(stripNonPrintable(text))
	if cleaned == "" {
		return Payload{}, ErrMalformedPayload
	}

	var wire wirePayload
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	storeID := strings.TrimSpace(wire.StoreID)
	itemID := strings.TrimSpace(wire.ItemID)
	if storeID == "" || itemID == "" {
		return Payload{}, fmt.Errorf("%w: store_id and item_id required", ErrMalformedPayload)
	}
	size, ok := domain.ParseSize(wire.Size)
	if !ok {
		return Payload{}, fmt.Errorf("%w: unknown size %q", ErrMalformedPayload, wire.Size)
	}

	return Payload{StoreID: storeID, ItemID: itemID, Size: size}, nil
}

// stripNonPrintable drops control characters, byte order marks and invalid
// UTF-8 that camera decoders tend to leave around the text.
func stripNonPrintable(text string) string {
	return strings.Map(func(r rune) rune {
		if r == utf8.RuneError || r == '\uFEFF' || unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
}

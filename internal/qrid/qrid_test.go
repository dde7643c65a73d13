package qrid

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultpos/internal/domain"
)

func TestEncodeIsDeterministicJSON(t *testing.T) {
	assert.Equal(t, `{"store_id":"store-1","item_id":"item-9","size":"M"}`, Encode("store-1", "item-9", domain.SizeM))
	assert.Equal(t, `{"store_id":"store-1","item_id":"item-9","size":"NA"}`, Encode("store-1", "item-9", ""))
	assert.Equal(t, Encode("s", "i", domain.SizeXL), Encode("s", "i", domain.SizeXL))
}

func TestRoundTripEverySizeLabel(t *testing.T) {
	labels := append([]domain.Size{}, domain.Sizes...)
	labels = append(labels, domain.SizeNA)

	for _, label := range labels {
		t.Run(string(label), func(t *testing.T) {
			payload, err := Decode(Encode("store-1", "item-9", label))
			require.NoError(t, err)
			assert.Equal(t, "store-1", payload.StoreID)
			assert.Equal(t, "item-9", payload.ItemID)
			if label == domain.SizeNA {
				assert.Equal(t, domain.Size(""), payload.Size)
			} else {
				assert.Equal(t, label, payload.Size)
			}
		})
	}
}

func TestDecodeStripsControlCharacters(t *testing.T) {
	text := "\x00\x1b\uFEFF" + `{"store_id":"store-1","item_id":"item-9","size":"L"}` + "\r\n\x04"

	payload, err := Decode(text)
	require.NoError(t, err)
	assert.Equal(t, domain.SizeL, payload.Size)
}

func TestDecodeTreatsMissingSizeAsUnsized(t *testing.T) {
	payload, err := Decode(`{"store_id":"store-1","item_id":"item-9"}`)
	require.NoError(t, err)
	assert.Equal(t, domain.Size(""), payload.Size)
}

func TestDecodeRejectsMalformedPayloads(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"only controls":  "\x00\x01",
		"plain text":     "hello",
		"array":          `["store-1","item-9"]`,
		"missing item":   `{"store_id":"store-1","size":"M"}`,
		"missing store":  `{"item_id":"item-9"}`,
		"unknown size":   `{"store_id":"store-1","item_id":"item-9","size":"XXXL"}`,
		"wrong type":     `{"store_id":1,"item_id":"item-9"}`,
		"truncated json": `{"store_id":"store-1","item_id":`,
	}

	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(text)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedPayload), "got %v", err)
		})
	}
}

package iap

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/code-payments/cashier/codec"
)

func testPurchase(t *testing.T) *Purchase {
	return &Purchase{
		Vendor:           "test",
		Product:          MustItem("test.item", "$0.99", "USD", "Test item", "An item", 990_000),
		OrderID:          "GPA.1234-5678",
		Token:            "token",
		Receipt:          []byte(`{"productId":"test.item"}`),
		Signature:        "sig",
		DeveloperPayload: "payload",
		PurchaseTime:     1_700_000_000_123,
		State:            StatePurchased,
	}
}

func TestPurchaseJSONRoundTrip(t *testing.T) {
	expected := testPurchase(t)

	text, err := expected.JSON()
	require.NoError(t, err)

	actual, err := ParsePurchase(text)
	require.NoError(t, err)
	require.True(t, expected.Equal(actual))
	require.Equal(t, "test.item", actual.SKU())
	require.Equal(t, expected.PurchaseTime, actual.Time().UnixMilli())
}

func TestPurchaseJSONEmptyReceipt(t *testing.T) {
	expected := testPurchase(t)
	expected.Receipt = nil

	text, err := expected.JSON()
	require.NoError(t, err)

	actual, err := ParsePurchase(text)
	require.NoError(t, err)
	require.Nil(t, actual.Receipt)
	require.True(t, expected.Equal(actual))
}

func TestPurchaseJSONRequiresVendor(t *testing.T) {
	p := testPurchase(t)
	p.Vendor = ""

	_, err := p.JSON()
	require.ErrorIs(t, err, ErrMalformedPurchase)
}

func TestPurchaseJSONRejectsInvalidUTF8(t *testing.T) {
	for _, mutate := range []func(p *Purchase){
		func(p *Purchase) { p.DeveloperPayload = "user-\xff\xfe" },
		func(p *Purchase) { p.OrderID = "GPA.\xc3" },
		func(p *Purchase) { p.Token = "\x80" },
		func(p *Purchase) { p.Signature = "sig\xff" },
		func(p *Purchase) { p.Product.Name = "Gas\xfe" },
	} {
		p := testPurchase(t)
		mutate(p)

		_, err := p.JSON()
		require.ErrorIs(t, err, ErrMalformedPurchase)
	}

	// Multi-byte text survives unchanged.
	p := testPurchase(t)
	p.DeveloperPayload = "usuario-ñ-用户"
	text, err := p.JSON()
	require.NoError(t, err)
	actual, err := ParsePurchase(text)
	require.NoError(t, err)
	require.True(t, p.Equal(actual))
}

func TestParsePurchaseReceiptEncodings(t *testing.T) {
	expected := testPurchase(t)

	for _, tt := range []struct {
		encoding codec.Encoding
		accepted bool
	}{
		{codec.Base64, true},
		{codec.Base64URL, true},
		{codec.Base58, true},
		{codec.Hex, false},
	} {
		t.Run(string(tt.encoding), func(t *testing.T) {
			doc := map[string]any{
				"vendor":            expected.Vendor,
				"product":           expected.Product,
				"order_id":          expected.OrderID,
				"token":             expected.Token,
				"receipt":           codec.Encode(expected.Receipt, tt.encoding),
				"signature":         expected.Signature,
				"developer_payload": expected.DeveloperPayload,
				"purchase_time":     expected.PurchaseTime,
				"state":             expected.State,
			}
			data, err := json.Marshal(doc)
			require.NoError(t, err)

			actual, err := ParsePurchase(string(data))
			if !tt.accepted {
				require.ErrorIs(t, err, ErrMalformedPurchase)
				return
			}
			require.NoError(t, err)
			require.True(t, expected.Equal(actual))
		})
	}
}

func TestParsePurchaseMalformed(t *testing.T) {
	for _, text := range []string{
		"",
		"not json",
		`{"product":{"sku":"a"}}`,
		`{"vendor":"test","product":{}}`,
		`{"vendor":"test","product":{"sku":"a"},"receipt":"nope"}`,
	} {
		_, err := ParsePurchase(text)
		require.ErrorIs(t, err, ErrMalformedPurchase, text)
	}
}

func TestPurchaseClone(t *testing.T) {
	original := testPurchase(t)
	cloned := original.Clone()
	require.True(t, original.Equal(cloned))

	cloned.Receipt[0] = 'X'
	require.False(t, original.Equal(cloned))
}

func TestPurchaseMarshalsInsideDocuments(t *testing.T) {
	doc := map[string]*Purchase{"owned": testPurchase(t)}
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	var decoded map[string]*Purchase
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.True(t, doc["owned"].Equal(decoded["owned"]))
}

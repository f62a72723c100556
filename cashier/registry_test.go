package cashier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/code-payments/cashier/iap"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.Empty(t, r.Vendors())

	_, ok := r.Lookup("b")
	require.False(t, ok)

	factory := func(context.Context, *zap.Logger) (iap.Vendor, error) { return nil, nil }
	r.Register("b", factory)
	r.Register("a", factory)
	require.Equal(t, []iap.VendorID{"a", "b"}, r.Vendors())

	_, ok = r.Lookup("b")
	require.True(t, ok)

	_, err := ForStore(r, "c").WithLogger(zap.NewNop()).Build(context.Background())
	require.ErrorIs(t, err, iap.ErrVendorMissing)
	require.Contains(t, err.Error(), "registered: [a b]")
}

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/kulapay/kulapay-backend/internal/repositories/memory"
	"github.com/kulapay/kulapay-backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestImportVendors(t *testing.T) {
	store := memory.New()
	vendors := services.NewVendorService(store.Vendors(), bcrypt.MinCost)
	ctx := context.Background()

	_, err := vendors.Create(ctx, "+254700000009", "Existing", "Old Shop", "")
	require.NoError(t, err)

	csv := strings.Join([]string{
		"phoneNumber,ownerName,businessName,pin",
		"+254700000001,Jane,Jane's Kitchen,1234",
		"+254700000002,Otieno,Otieno Eats",
		"+254700000003,Bad,Bad Pin,12",
		"+254700000004,Short",
		"+254700000009,Existing,Old Shop,",
	}, "\n")

	var warn bytes.Buffer
	res, err := importVendors(ctx, strings.NewReader(csv), vendors, &warn)
	require.NoError(t, err)
	assert.Equal(t, importResult{Created: 2, Existing: 1, Skipped: 2}, res)
	assert.Contains(t, warn.String(), "line 4")
	assert.Contains(t, warn.String(), "line 5")

	v, err := vendors.FindByPhone(ctx, "+254700000001")
	require.NoError(t, err)
	assert.True(t, vendors.VerifyPIN(v, "1234"))

	v, err = vendors.FindByPhone(ctx, "+254700000002")
	require.NoError(t, err)
	assert.False(t, v.HasPIN())
}

func TestImportVendorsEmpty(t *testing.T) {
	store := memory.New()
	vendors := services.NewVendorService(store.Vendors(), bcrypt.MinCost)

	_, err := importVendors(context.Background(), strings.NewReader("phoneNumber,ownerName,businessName\n"), vendors, &bytes.Buffer{})
	assert.ErrorContains(t, err, "empty")
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("STORAGE_DRIVER", "memory")

	cmd := tokenCmd()
	cmd.Flags().String("config", "", "")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"ops@kulapay"})
	require.NoError(t, cmd.Execute())

	token := strings.TrimSpace(out.String())
	assert.Equal(t, 2, strings.Count(token, "."))
}

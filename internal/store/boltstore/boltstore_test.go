package boltstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger/internal/domain"
	"github.com/stockledger/stockledger/internal/store"
	"github.com/stockledger/stockledger/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "inventory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return openTemp(t) })
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "inventory.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.InsertProduct(ctx, &domain.Product{
		ID: "P009", Name: "Notebook A5", Price: decimal.RequireFromString("6.5"), Stock: 200, Category: "Office", MinStock: 20,
	}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	p, err := s.GetProduct(ctx, "P009")
	require.NoError(t, err)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("6.5")))
	assert.Equal(t, 200, p.Stock)
}

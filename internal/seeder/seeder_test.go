package seeder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCatalogIsConsistent(t *testing.T) {
	seen := map[int64]bool{}
	for _, seed := range catalog(time.Now()) {
		assert.False(t, seen[seed.product.ID], "duplicate product %d", seed.product.ID)
		seen[seed.product.ID] = true
		assert.True(t, seed.product.UnitPrice.IsPositive(), seed.product.Name)
		assert.Greater(t, seed.onHand, seed.reorder, seed.product.Name)
	}
}

func TestMethodsIncludeCash(t *testing.T) {
	var cash int
	for _, method := range methods() {
		if method.IsCash {
			cash++
		}
	}
	assert.Equal(t, 1, cash)
}

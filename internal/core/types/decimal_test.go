package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundWhole(t *testing.T) {
	assert.True(t, RoundWhole(MustQuantity("2.5")).Equal(Qty(3)))
	assert.True(t, RoundWhole(MustQuantity("-2.5")).Equal(Qty(-3)))
	assert.True(t, RoundWhole(MustQuantity("2.4")).Equal(Qty(2)))
}

func TestMinQuantity(t *testing.T) {
	assert.True(t, MinQuantity(Qty(2), Qty(5)).Equal(Qty(2)))
	assert.True(t, MinQuantity(Qty(5), Qty(-1)).Equal(Qty(-1)))
}

func TestMustMoney(t *testing.T) {
	assert.Equal(t, "124.5", MustMoney("124.50").String())
	assert.Panics(t, func() { MustMoney("abc") })
}

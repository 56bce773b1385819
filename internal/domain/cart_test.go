package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCartItem_IsExpired(t *testing.T) {
	now := time.Now()

	fresh := CartItem{ExpiresAt: now.Add(CartItemTTL)}
	assert.False(t, fresh.IsExpired(now))

	stale := CartItem{ExpiresAt: now.Add(-time.Minute)}
	assert.True(t, stale.IsExpired(now))
}

func TestCartItem_HasValidAmount(t *testing.T) {
	assert.True(t, (&CartItem{Amount: decimal.NewFromInt(100)}).HasValidAmount())
	assert.False(t, (&CartItem{Amount: decimal.Zero}).HasValidAmount())
	assert.False(t, (&CartItem{Amount: decimal.NewFromInt(-5)}).HasValidAmount())
}

func TestCartItem_SameCampaign(t *testing.T) {
	c1 := int64(1)
	c2 := int64(2)

	general := CartItem{}
	assert.True(t, general.SameCampaign(nil))
	assert.False(t, general.SameCampaign(&c1))

	targeted := CartItem{CampaignID: &c1}
	assert.True(t, targeted.SameCampaign(&c1))
	assert.False(t, targeted.SameCampaign(&c2))
	assert.False(t, targeted.SameCampaign(nil))
}

package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "BTCUSD", Normalize(" btc/usd "))
	assert.Equal(t, "ETHUSDT", Normalize("eth-usdt"))
	assert.Equal(t, "", Normalize("  "))
}

func TestDisplayFromAssets(t *testing.T) {
	assert.Equal(t, "BTCUSD", DisplayFromAssets("BTC", "USDT"))
	assert.Equal(t, "SOLUSD", DisplayFromAssets("sol", "usdc"))
	assert.Equal(t, "ETHBTC", DisplayFromAssets("ETH", "BTC"))
	assert.Equal(t, "", DisplayFromAssets("", "USDT"))
}

func TestSplitDisplay(t *testing.T) {
	base, quote, ok := SplitDisplay("BTCUSD")
	assert.True(t, ok)
	assert.Equal(t, "BTC", base)
	assert.Equal(t, "USD", quote)

	_, _, ok = SplitDisplay("ETHBTC")
	assert.False(t, ok)

	_, _, ok = SplitDisplay("USD")
	assert.False(t, ok)
}

func TestVenueCandidates(t *testing.T) {
	assert.Equal(t, []string{"BTCUSDT", "BTCUSDC", "BTCUSD"}, VenueCandidates("BTCUSD"))
	assert.Nil(t, VenueCandidates("ETHBTC"))
}

func TestResolverStaticFallback(t *testing.T) {
	r := NewResolver()

	venue, ok := r.Venue("BTCUSD")
	assert.True(t, ok)
	assert.Equal(t, "BTCUSDT", venue)

	display, ok := r.Display("ETHUSDT")
	assert.True(t, ok)
	assert.Equal(t, "ETHUSD", display)

	assert.False(t, r.Known("FAKEUSD"))
}

func TestResolverCatalogOverride(t *testing.T) {
	r := NewResolver()
	r.Load([]Pair{
		{Display: "PEPEUSD", Venue: "PEPEUSDT"},
		{Display: "BTCUSD", Venue: "BTCUSDC"},
	})

	venue, ok := r.Venue("PEPEUSD")
	assert.True(t, ok)
	assert.Equal(t, "PEPEUSDT", venue)

	venue, _ = r.Venue("btcusd")
	assert.Equal(t, "BTCUSDC", venue)
}

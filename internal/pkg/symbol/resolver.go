package symbol

import "sync"

// staticPairs keeps price resolution working before the venue catalog has
// been fetched, and when the venue is unreachable at startup.
var staticPairs = []Pair{
	{Display: "BTCUSD", Venue: "BTCUSDT", Base: "BTC", Quote: "USDT"},
	{Display: "ETHUSD", Venue: "ETHUSDT", Base: "ETH", Quote: "USDT"},
	{Display: "ADAUSD", Venue: "ADAUSDT", Base: "ADA", Quote: "USDT"},
	{Display: "SOLUSD", Venue: "SOLUSDT", Base: "SOL", Quote: "USDT"},
	{Display: "DOTUSD", Venue: "DOTUSDT", Base: "DOT", Quote: "USDT"},
	{Display: "LINKUSD", Venue: "LINKUSDT", Base: "LINK", Quote: "USDT"},
	{Display: "XRPUSD", Venue: "XRPUSDT", Base: "XRP", Quote: "USDT"},
	{Display: "DOGEUSD", Venue: "DOGEUSDT", Base: "DOGE", Quote: "USDT"},
	{Display: "AVAXUSD", Venue: "AVAXUSDT", Base: "AVAX", Quote: "USDT"},
	{Display: "MATICUSD", Venue: "MATICUSDT", Base: "MATIC", Quote: "USDT"},
	{Display: "LTCUSD", Venue: "LTCUSDT", Base: "LTC", Quote: "USDT"},
	{Display: "BNBUSD", Venue: "BNBUSDT", Base: "BNB", Quote: "USDT"},
}

// Resolver maps display symbols to venue symbols. It is seeded with a static
// table and refreshed from the venue's exchange catalog when available.
type Resolver struct {
	mu             sync.RWMutex
	venueByDisplay map[string]string
	displayByVenue map[string]string
}

func NewResolver() *Resolver {
	r := &Resolver{
		venueByDisplay: make(map[string]string),
		displayByVenue: make(map[string]string),
	}
	r.Load(staticPairs)
	return r
}

// Load merges catalog pairs into the resolver. Catalog entries win over the
// static table; entries already present for a display symbol are replaced
// only by the first candidate encountered per refresh.
func (r *Resolver) Load(pairs []Pair) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		display := Normalize(p.Display)
		venue := Normalize(p.Venue)
		if display == "" || venue == "" {
			continue
		}
		if seen[display] {
			continue
		}
		seen[display] = true
		r.venueByDisplay[display] = venue
		r.displayByVenue[venue] = display
	}
}

// Venue returns the venue symbol for a display symbol.
func (r *Resolver) Venue(display string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.venueByDisplay[Normalize(display)]
	return v, ok
}

// Display returns the display symbol for a venue symbol.
func (r *Resolver) Display(venue string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.displayByVenue[Normalize(venue)]
	return d, ok
}

// Known reports whether the display symbol resolves at all.
func (r *Resolver) Known(display string) bool {
	_, ok := r.Venue(display)
	return ok
}

// Package signal produces and manages advisory trade signals. The analyzer
// condenses recent candles into an indicator snapshot, asks an LLM for a
// buy/sell/hold call, and validates the reply before anything is stored.
package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tradedesk/internal/gateway/provider"
	"tradedesk/internal/market"
	"tradedesk/internal/store/ledger"
	storemodel "tradedesk/internal/store/model"

	"github.com/markcheno/go-talib"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const (
	candleInterval = "1h"
	candleLimit    = 100
	minCandles     = 50
	signalTTL      = 24 * time.Hour
)

// replySchema constrains what the model may answer with. Anything outside
// it is discarded rather than stored.
const replySchema = `{
  "type": "object",
  "required": ["signal", "confidence", "reasoning"],
  "properties": {
    "signal": {"type": "string", "enum": ["buy", "sell", "hold"]},
    "confidence": {"type": "number", "minimum": 0, "maximum": 100},
    "entryPrice": {"type": ["number", "string"]},
    "targetPrice": {"type": ["number", "string"]},
    "stopLoss": {"type": ["number", "string"]},
    "riskReward": {"type": ["number", "string"]},
    "reasoning": {"type": "string", "minLength": 1}
  }
}`

type indicatorSnapshot struct {
	Price       float64 `json:"price"`
	RSI14       float64 `json:"rsi14"`
	SMA20       float64 `json:"sma20"`
	EMA12       float64 `json:"ema12"`
	EMA26       float64 `json:"ema26"`
	MACD        float64 `json:"macd"`
	MACDSignal  float64 `json:"macdSignal"`
	MACDHist    float64 `json:"macdHist"`
	VolumeTrend string  `json:"volumeTrend"`
	Support     float64 `json:"support"`
	Resistance  float64 `json:"resistance"`
}

// Analyzer turns market data plus an LLM opinion into AISignal records.
type Analyzer struct {
	gateway market.Gateway
	chat    provider.ChatClient
	schema  *jsonschema.Schema
}

func NewAnalyzer(gateway market.Gateway, chat provider.ChatClient) (*Analyzer, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("reply.json", strings.NewReader(replySchema)); err != nil {
		return nil, err
	}
	schema, err := compiler.Compile("reply.json")
	if err != nil {
		return nil, err
	}
	return &Analyzer{gateway: gateway, chat: chat, schema: schema}, nil
}

// Analyze builds a fresh signal for the symbol. The returned record is not
// yet persisted.
func (a *Analyzer) Analyze(ctx context.Context, symbol string) (ledger.AISignal, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	candles, err := a.gateway.Candles(ctx, symbol, candleInterval, candleLimit)
	if err != nil {
		return ledger.AISignal{}, fmt.Errorf("candles for %s: %w", symbol, err)
	}
	if len(candles) < minCandles {
		return ledger.AISignal{}, fmt.Errorf("not enough candles for %s: have %d, need %d", symbol, len(candles), minCandles)
	}
	snapshot := computeIndicators(candles)

	reply, err := a.chat.CallWithMessages(ctx, systemPrompt, userPrompt(symbol, snapshot))
	if err != nil {
		return ledger.AISignal{}, fmt.Errorf("model call: %w", err)
	}
	parsed, err := a.parseReply(reply)
	if err != nil {
		return ledger.AISignal{}, fmt.Errorf("model reply for %s: %w", symbol, err)
	}

	now := time.Now()
	indicators := map[string]any{}
	if raw, err := json.Marshal(snapshot); err == nil {
		_ = json.Unmarshal(raw, &indicators)
	}
	return ledger.AISignal{
		Symbol:      symbol,
		Signal:      parsed.Get("signal").String(),
		Confidence:  parsed.Get("confidence").Float(),
		EntryPrice:  decimalField(parsed, "entryPrice"),
		TargetPrice: decimalField(parsed, "targetPrice"),
		StopLoss:    decimalField(parsed, "stopLoss"),
		RiskReward:  decimalField(parsed, "riskReward"),
		Reasoning:   parsed.Get("reasoning").String(),
		Indicators:  indicators,
		Status:      storemodel.SignalStatusActive,
		CreatedAt:   now,
		ExpiresAt:   now.Add(signalTTL),
	}, nil
}

// parseReply extracts the JSON object from the model output (tolerating
// code fences and surrounding prose) and validates it against the schema.
func (a *Analyzer) parseReply(reply string) (gjson.Result, error) {
	raw := extractJSON(reply)
	if raw == "" {
		return gjson.Result{}, fmt.Errorf("no JSON object in reply")
	}
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return gjson.Result{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := a.schema.Validate(doc); err != nil {
		return gjson.Result{}, fmt.Errorf("schema: %w", err)
	}
	return gjson.Parse(raw), nil
}

func extractJSON(reply string) string {
	reply = strings.TrimSpace(reply)
	if strings.HasPrefix(reply, "```") {
		reply = strings.TrimPrefix(reply, "```json")
		reply = strings.TrimPrefix(reply, "```")
		if idx := strings.Index(reply, "```"); idx >= 0 {
			reply = reply[:idx]
		}
		reply = strings.TrimSpace(reply)
	}
	if gjson.Valid(reply) && gjson.Parse(reply).IsObject() {
		return reply
	}
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return ""
	}
	candidate := reply[start : end+1]
	if gjson.Valid(candidate) {
		return candidate
	}
	return ""
}

func decimalField(parsed gjson.Result, key string) decimal.Decimal {
	v := parsed.Get(key)
	if !v.Exists() {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v.String()))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func computeIndicators(candles []market.Candle) indicatorSnapshot {
	closes := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close.InexactFloat64()
		volumes[i] = c.Volume.InexactFloat64()
		lows[i] = c.Low.InexactFloat64()
		highs[i] = c.High.InexactFloat64()
	}

	rsi := talib.Rsi(closes, 14)
	sma := talib.Sma(closes, 20)
	ema12 := talib.Ema(closes, 12)
	ema26 := talib.Ema(closes, 26)
	macd, macdSignal, macdHist := talib.Macd(closes, 12, 26, 9)

	return indicatorSnapshot{
		Price:       last(closes),
		RSI14:       last(rsi),
		SMA20:       last(sma),
		EMA12:       last(ema12),
		EMA26:       last(ema26),
		MACD:        last(macd),
		MACDSignal:  last(macdSignal),
		MACDHist:    last(macdHist),
		VolumeTrend: volumeTrend(volumes),
		Support:     minTail(lows, 20),
		Resistance:  maxTail(highs, 20),
	}
}

func last(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// volumeTrend compares the last 10 candles against the 10 before them.
func volumeTrend(volumes []float64) string {
	if len(volumes) < 20 {
		return "flat"
	}
	recent := avg(volumes[len(volumes)-10:])
	prior := avg(volumes[len(volumes)-20 : len(volumes)-10])
	switch {
	case prior > 0 && recent > prior*1.1:
		return "rising"
	case prior > 0 && recent < prior*0.9:
		return "falling"
	default:
		return "flat"
	}
}

func avg(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}

func minTail(series []float64, n int) float64 {
	tail := tailOf(series, n)
	if len(tail) == 0 {
		return 0
	}
	out := tail[0]
	for _, v := range tail[1:] {
		if v < out {
			out = v
		}
	}
	return out
}

func maxTail(series []float64, n int) float64 {
	tail := tailOf(series, n)
	if len(tail) == 0 {
		return 0
	}
	out := tail[0]
	for _, v := range tail[1:] {
		if v > out {
			out = v
		}
	}
	return out
}

func tailOf(series []float64, n int) []float64 {
	if len(series) <= n {
		return series
	}
	return series[len(series)-n:]
}

const systemPrompt = `You are a cryptocurrency market analyst. Given an indicator snapshot you answer with a single JSON object and nothing else:
{"signal":"buy|sell|hold","confidence":0-100,"entryPrice":number,"targetPrice":number,"stopLoss":number,"riskReward":number,"reasoning":"one or two sentences"}`

func userPrompt(symbol string, s indicatorSnapshot) string {
	raw, _ := json.MarshalIndent(s, "", "  ")
	return fmt.Sprintf("Symbol: %s\nInterval: %s\nIndicators:\n%s\n\nRespond with the JSON object only.", symbol, candleInterval, raw)
}

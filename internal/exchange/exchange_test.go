package exchange

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyclescan/internal/config"
	"cyclescan/internal/model"
)

var testLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

var (
	btcUSDT = model.MustParseSymbol("BTC/USDT")
	ethBTC  = model.MustParseSymbol("ETH/BTC")
)

// wsServer upgrades every request and hands the connection to serve.
func wsServer(t *testing.T, serve func(r *http.Request, c *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		serve(r, c)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestBinanceClient_Decode(t *testing.T) {
	client := NewBinanceClient(testLogger, "")
	index := map[string]model.Symbol{"BTCUSDT": btcUSDT}

	ticks, err := client.decode([]byte(`{"stream":"btcusdt@bookTicker","data":{"u":1,"s":"BTCUSDT","b":"68000.10","B":"1","a":"68000.20","A":"2"}}`), index)
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.Equal(t, btcUSDT, ticks[0].Symbol)
	assert.Equal(t, 68000.10, ticks[0].Bid, "bid quantity must not replace the bid price")
	assert.Equal(t, 68000.20, ticks[0].Ask, "ask quantity must not replace the ask price")
	assert.Equal(t, "binance", ticks[0].Exchange)

	for _, bad := range []string{
		`not json`,
		`{"stream":"x","data":{"s":"ETHUSDT","b":"1","a":"2"}}`,
		`{"stream":"x","data":{"s":"BTCUSDT","b":"abc","a":"2"}}`,
		`{"stream":"x","data":{"s":"BTCUSDT","b":"1","a":""}}`,
	} {
		_, err := client.decode([]byte(bad), index)
		assert.Error(t, err, bad)
	}
}

func TestBinanceClient_StartStream(t *testing.T) {
	var mu sync.Mutex
	var gotQuery string
	srv := wsServer(t, func(r *http.Request, c *websocket.Conn) {
		mu.Lock()
		gotQuery = r.URL.Query().Get("streams")
		mu.Unlock()
		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"stream":"btcusdt@bookTicker","data":{"s":"BTCUSDT","b":"68000","a":"68001"}}`))
		_ = c.WriteMessage(websocket.TextMessage, []byte(`garbage`))
		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"stream":"ethbtc@bookTicker","data":{"s":"ETHBTC","b":"0.051","a":"0.0511"}}`))
		// hold the connection open until the client goes away
		_, _, _ = c.ReadMessage()
	})

	client := NewBinanceClient(testLogger, wsURL(srv))
	ctx, cancel := context.WithCancel(context.Background())
	ticks := make(chan model.PriceTick, 4)
	done := make(chan error, 1)
	go func() { done <- client.StartStream(ctx, ticks, []model.Symbol{btcUSDT, ethBTC}) }()

	first := <-ticks
	second := <-ticks
	assert.Equal(t, btcUSDT, first.Symbol)
	assert.Equal(t, ethBTC, second.Symbol)
	assert.Equal(t, 0.0511, second.Ask)

	mu.Lock()
	assert.Equal(t, "btcusdt@bookTicker/ethbtc@bookTicker", gotQuery)
	mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("StartStream did not stop after cancel")
	}

	assert.Error(t, client.StartStream(context.Background(), ticks, nil))
}

func TestKrakenClient_StartStream(t *testing.T) {
	srv := wsServer(t, func(r *http.Request, c *websocket.Conn) {
		var sub krakenSubscription
		if err := c.ReadJSON(&sub); err != nil {
			return
		}
		if sub.Method != "subscribe" || sub.Params.Channel != "ticker" {
			return
		}
		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"channel":"heartbeat"}`))
		_ = c.WriteJSON(krakenMessage{
			Channel: "ticker",
			Type:    "snapshot",
			Data:    []krakenTicker{{Symbol: sub.Params.Symbol[0], Bid: 68000, Ask: 68001}, {Symbol: "DOGE/EUR", Bid: 1, Ask: 2}},
		})
		_, _, _ = c.ReadMessage()
	})

	client := NewKrakenClient(testLogger, wsURL(srv))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ticks := make(chan model.PriceTick, 4)
	go func() { _ = client.StartStream(ctx, ticks, []model.Symbol{btcUSDT}) }()

	select {
	case tick := <-ticks:
		assert.Equal(t, "kraken", tick.Exchange)
		assert.Equal(t, btcUSDT, tick.Symbol)
		assert.Equal(t, 68000.0, tick.Bid)
		assert.Equal(t, 68001.0, tick.Ask)
	case <-time.After(5 * time.Second):
		t.Fatal("no tick received")
	}
}

func TestStream_ReconnectsAfterFailure(t *testing.T) {
	var mu sync.Mutex
	connections := 0
	srv := wsServer(t, func(r *http.Request, c *websocket.Conn) {
		mu.Lock()
		connections++
		n := connections
		mu.Unlock()
		if n == 1 {
			return // drop the first connection immediately
		}
		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"stream":"btcusdt@bookTicker","data":{"s":"BTCUSDT","b":"1","a":"2"}}`))
		_, _, _ = c.ReadMessage()
	})

	client := NewBinanceClient(testLogger, wsURL(srv))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ticks := make(chan model.PriceTick, 1)
	go func() { _ = client.StartStream(ctx, ticks, []model.Symbol{btcUSDT}) }()

	select {
	case tick := <-ticks:
		assert.Equal(t, 2.0, tick.Ask)
	case <-time.After(5 * time.Second):
		t.Fatal("client did not reconnect")
	}
	mu.Lock()
	assert.GreaterOrEqual(t, connections, 2)
	mu.Unlock()
}

func TestStream_BacksOffWhenDroppedBeforeData(t *testing.T) {
	var mu sync.Mutex
	connections := 0
	srv := wsServer(t, func(r *http.Request, c *websocket.Conn) {
		mu.Lock()
		connections++
		mu.Unlock()
	})

	client := NewBinanceClient(testLogger, wsURL(srv))
	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = client.StartStream(ctx, make(chan model.PriceTick, 1), []model.Symbol{btcUSDT})
		close(done)
	}()
	<-done

	// dials at 0s, 1s and 3s: the window only fits the first two
	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, connections, 2)
	assert.LessOrEqual(t, connections, 3)
}

func TestNextBackoff(t *testing.T) {
	d := minBackoff
	var seen []time.Duration
	for i := 0; i < 6; i++ {
		d = nextBackoff(d)
		seen = append(seen, d)
	}
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 16 * time.Second, 16 * time.Second}, seen)
}

func TestNewClient(t *testing.T) {
	cfg := &config.Config{
		Feed:      config.FeedConfig{Simulator: config.SimulatorConfig{Seed: 1}},
		Exchanges: map[string]config.ExchangeConfig{"binance": {URL: "ws://example"}},
	}
	for _, name := range []string{"binance", "kraken", "simulator"} {
		c, err := NewClient(name, testLogger, cfg)
		require.NoError(t, err)
		assert.Equal(t, name, c.GetName())
	}
	_, err := NewClient("mtgox", testLogger, cfg)
	assert.Error(t, err)
}

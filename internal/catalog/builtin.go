package catalog

import "cyclescan/internal/model"

type entry struct {
	id    string
	path  []model.Asset
	pairs []string
}

// Stablecoin triangles and major-asset loops quoted against USDT.
var builtin = []entry{
	{"1", []model.Asset{"USDT", "BTC", "USDC", "USDT"}, []string{"BTC/USDT", "BTC/USDC", "USDC/USDT"}},
	{"2", []model.Asset{"USDT", "ETH", "USDC", "USDT"}, []string{"ETH/USDT", "ETH/USDC", "USDC/USDT"}},
	{"3", []model.Asset{"USDT", "USDC", "FDUSD", "USDT"}, []string{"USDC/USDT", "FDUSD/USDC", "FDUSD/USDT"}},
	{"4", []model.Asset{"USDT", "BNB", "FDUSD", "USDT"}, []string{"BNB/USDT", "BNB/FDUSD", "FDUSD/USDT"}},
	{"5", []model.Asset{"USDT", "USDC", "TUSD", "USDT"}, []string{"USDC/USDT", "TUSD/USDC", "TUSD/USDT"}},
	{"6", []model.Asset{"USDT", "FDUSD", "TUSD", "USDT"}, []string{"FDUSD/USDT", "TUSD/FDUSD", "TUSD/USDT"}},
	{"7", []model.Asset{"USDT", "BTC", "FDUSD", "USDT"}, []string{"BTC/USDT", "BTC/FDUSD", "FDUSD/USDT"}},
	{"8", []model.Asset{"USDT", "BTC", "TUSD", "USDT"}, []string{"BTC/USDT", "BTC/TUSD", "TUSD/USDT"}},
	{"9", []model.Asset{"USDT", "BTC", "ETH", "USDT"}, []string{"BTC/USDT", "ETH/BTC", "ETH/USDT"}},
	{"10", []model.Asset{"USDT", "ETH", "FDUSD", "USDT"}, []string{"ETH/USDT", "ETH/FDUSD", "FDUSD/USDT"}},
	{"11", []model.Asset{"USDT", "ETH", "BNB", "USDT"}, []string{"ETH/USDT", "BNB/ETH", "BNB/USDT"}},
	{"12", []model.Asset{"USDT", "BNB", "USDC", "USDT"}, []string{"BNB/USDT", "BNB/USDC", "USDC/USDT"}},
	{"13", []model.Asset{"USDT", "BNB", "BTC", "USDT"}, []string{"BNB/USDT", "BNB/BTC", "BTC/USDT"}},
	{"14", []model.Asset{"USDT", "SOL", "USDC", "USDT"}, []string{"SOL/USDT", "SOL/USDC", "USDC/USDT"}},
	{"15", []model.Asset{"USDT", "XRP", "USDC", "USDT"}, []string{"XRP/USDT", "XRP/USDC", "USDC/USDT"}},
	{"16", []model.Asset{"USDT", "DOGE", "USDC", "USDT"}, []string{"DOGE/USDT", "DOGE/USDC", "USDC/USDT"}},
}

// Builtin returns the default forward cycles. Reverse directions are added
// by New when requested.
func Builtin() []model.Cycle {
	out := make([]model.Cycle, len(builtin))
	for i, e := range builtin {
		syms := make([]model.Symbol, len(e.pairs))
		for j, p := range e.pairs {
			syms[j] = model.MustParseSymbol(p)
		}
		out[i] = model.Cycle{
			ID:      e.id,
			Assets:  append([]model.Asset(nil), e.path...),
			Symbols: syms,
		}
	}
	return out
}

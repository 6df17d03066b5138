package vnd

import (
	"time"

	"github.com/Hoangnph/vnstock-sub000/internal/domain"
)

// transformHistory converts the dchart parallel arrays into bars with
// times normalized to midnight UTC of the trading date. Rows with
// mismatched array lengths are truncated to the shortest array.
func transformHistory(symbol string, resp *historyResponse) []domain.Bar {
	if resp == nil || resp.Status == "no_data" {
		return nil
	}

	n := len(resp.Times)
	for _, l := range []int{len(resp.Opens), len(resp.Highs), len(resp.Lows), len(resp.Closes), len(resp.Volumes)} {
		if l < n {
			n = l
		}
	}

	bars := make([]domain.Bar, 0, n)
	for i := 0; i < n; i++ {
		bars = append(bars, domain.Bar{
			Symbol: domain.NormalizeSymbol(symbol),
			Time:   domain.Date(time.Unix(resp.Times[i], 0).UTC()),
			Open:   resp.Opens[i],
			High:   resp.Highs[i],
			Low:    resp.Lows[i],
			Close:  resp.Closes[i],
			Volume: int64(resp.Volumes[i]),
			Source: domain.SourceVND,
		})
	}
	return bars
}

// transformForeign converts foreign-flow rows, resolving the field
// aliases the endpoint has shipped over time. Primary fields win;
// legacy aliases fill in when primaries are absent; anything still
// missing is zero-filled. Rows with unparseable dates are skipped.
func transformForeign(symbol string, resp *foreignResponse) []domain.ForeignFlow {
	if resp == nil {
		return nil
	}

	flows := make([]domain.ForeignFlow, 0, len(resp.Data))
	for _, row := range resp.Data {
		date, err := time.Parse("2006-01-02", row.TradingDate)
		if err != nil {
			continue
		}

		flows = append(flows, domain.ForeignFlow{
			Symbol:     domain.NormalizeSymbol(symbol),
			Time:       domain.Date(date),
			BuyVolume:  int64(firstOf(row.BuyVolume, row.BuyForeignQtty)),
			SellVolume: int64(firstOf(row.SellVolume, row.SellForeignQtty)),
			BuyValue:   firstOf(row.BuyValue, row.BuyForeignValue),
			SellValue:  firstOf(row.SellValue, row.SellForeignVal),
			Source:     domain.SourceVND,
		})
	}
	return flows
}

// firstOf returns the first non-nil value, or zero.
func firstOf(candidates ...*float64) float64 {
	for _, c := range candidates {
		if c != nil {
			return *c
		}
	}
	return 0
}

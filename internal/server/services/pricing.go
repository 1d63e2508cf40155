package services

import (
	"sort"

	"github.com/dmitrijs2005/cryptodesk/internal/common"
	"github.com/shopspring/decimal"
)

// cryptoPlaces is the precision of quoted crypto amounts.
const cryptoPlaces = 8

// PriceTable quotes fiat amounts in asset units. Its keys are the supported
// assets. Quotes happen when a transaction is created, never under a ledger
// lock.
type PriceTable struct {
	prices map[string]decimal.Decimal
}

func NewPriceTable(prices map[string]decimal.Decimal) *PriceTable {
	p := &PriceTable{prices: make(map[string]decimal.Decimal, len(prices))}
	for asset, price := range prices {
		p.prices[common.NormalizeAsset(asset)] = price
	}
	return p
}

// Assets returns the supported asset symbols in sorted order.
func (p *PriceTable) Assets() []string {
	out := make([]string, 0, len(p.prices))
	for asset := range p.prices {
		out = append(out, asset)
	}
	sort.Strings(out)
	return out
}

func (p *PriceTable) Supports(asset string) bool {
	_, ok := p.prices[common.NormalizeAsset(asset)]
	return ok
}

// Quote converts fiat into units of asset at the configured price.
func (p *PriceTable) Quote(asset string, fiat decimal.Decimal) (decimal.Decimal, error) {
	price, ok := p.prices[common.NormalizeAsset(asset)]
	if !ok || !price.IsPositive() {
		return decimal.Zero, common.ErrUnsupportedAsset
	}
	return fiat.Div(price).Round(cryptoPlaces), nil
}

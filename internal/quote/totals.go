package quote

import "github.com/shopspring/decimal"

// Totals is the derived price breakdown of an option.
type Totals struct {
	Seafreights float64 `json:"seafreights"`
	Haulages    float64 `json:"haulages"`
	Services    float64 `json:"services"`
	GrandTotal  float64 `json:"grandTotal"`
}

// ComputeTotals sums the base price of every seafreight rate, every haulage
// price and every service price. Any component that shows totals must use it.
func ComputeTotals(seafreights []Seafreight, haulages []Haulage, services []Service) Totals {
	sea := decimal.Zero
	for _, sf := range seafreights {
		for _, rate := range sf.Rates {
			sea = sea.Add(decimal.NewFromFloat(rate.BasePrice))
		}
	}
	haul := decimal.Zero
	for _, h := range haulages {
		haul = haul.Add(decimal.NewFromFloat(h.Price))
	}
	svc := decimal.Zero
	for _, s := range services {
		svc = svc.Add(decimal.NewFromFloat(s.Price))
	}
	grand := sea.Add(haul).Add(svc)
	return Totals{
		Seafreights: sea.Round(2).InexactFloat64(),
		Haulages:    haul.Round(2).InexactFloat64(),
		Services:    svc.Round(2).InexactFloat64(),
		GrandTotal:  grand.Round(2).InexactFloat64(),
	}
}

// DraftTotals previews the totals of the option being composed.
func DraftTotals(o OptionDraft) Totals {
	return ComputeTotals(o.Seafreights, o.Haulages, o.Services)
}

// Package dashboard derives collection metrics from cases and payments.
package dashboard

import (
	"cmp"
	"slices"
	"strconv"
	"time"

	"github.com/mesh-intelligence/casebook/internal/catalog"
	"github.com/mesh-intelligence/casebook/pkg/types"
)

// Summary is the headline view over a set of cases and payments.
type Summary struct {
	TotalPlaced    float64            `json:"total_placed"`
	TotalCollected float64            `json:"total_collected"`
	Outstanding    float64            `json:"outstanding"`
	CollectionRate float64            `json:"collection_rate"`
	CasesByStatus  map[string]int     `json:"cases_by_status"`
	Portfolios     []PortfolioSummary `json:"portfolios"`
	Monthly        []MonthTotal       `json:"monthly"`
	Projection     []MonthTotal       `json:"projection"`
}

// PortfolioSummary aggregates the cases of one portfolio. Cases without a
// portfolio are grouped under the empty id.
type PortfolioSummary struct {
	PortfolioID    string  `json:"portfolio_id"`
	Cases          int     `json:"cases"`
	Placed         float64 `json:"placed"`
	Collected      float64 `json:"collected"`
	CollectionRate float64 `json:"collection_rate"`
}

// MonthTotal is the amount collected in a calendar month ("2006-01").
type MonthTotal struct {
	Month  string  `json:"month"`
	Amount float64 `json:"amount"`
}

// Options tunes Summarize.
type Options struct {
	// ProjectMonths is the number of months to project. Zero disables the
	// projection.
	ProjectMonths int
	// Now anchors the projection when there is no collection history.
	Now time.Time
}

const monthLayout = "2006-01"

// Summarize computes the summary. Only completed payments count as
// collected; a payment is dated by payment_date, else created_at.
func Summarize(cases, payments []types.Record, opts Options) Summary {
	s := Summary{CasesByStatus: map[string]int{}}

	byPortfolio := map[string]*PortfolioSummary{}
	caseToPortfolio := make(map[string]string, len(cases))
	for _, c := range cases {
		amount := Number(c.Fields["amount"])
		s.TotalPlaced += amount

		status := c.Text("status")
		if status == "" {
			status = catalog.CaseStatusNew
		}
		s.CasesByStatus[status]++

		pid := c.Text("portfolio_id")
		caseToPortfolio[c.ID] = pid
		p := portfolio(byPortfolio, pid)
		p.Cases++
		p.Placed += amount
	}

	monthly := map[string]float64{}
	for _, pay := range payments {
		if pay.Text("status") != catalog.PaymentStatusCompleted {
			continue
		}
		amount := Number(pay.Fields["amount"])
		s.TotalCollected += amount
		if pid, ok := caseToPortfolio[pay.Text("case_id")]; ok {
			byPortfolio[pid].Collected += amount
		}
		if month, ok := paymentMonth(pay); ok {
			monthly[month] += amount
		}
	}

	s.Outstanding = s.TotalPlaced - s.TotalCollected
	s.CollectionRate = rate(s.TotalCollected, s.TotalPlaced)

	for _, p := range byPortfolio {
		p.CollectionRate = rate(p.Collected, p.Placed)
		s.Portfolios = append(s.Portfolios, *p)
	}
	slices.SortFunc(s.Portfolios, func(a, b PortfolioSummary) int {
		return cmp.Compare(a.PortfolioID, b.PortfolioID)
	})

	for month, amount := range monthly {
		s.Monthly = append(s.Monthly, MonthTotal{Month: month, Amount: amount})
	}
	slices.SortFunc(s.Monthly, func(a, b MonthTotal) int { return cmp.Compare(a.Month, b.Month) })

	s.Projection = project(s.Monthly, opts)
	return s
}

func portfolio(m map[string]*PortfolioSummary, id string) *PortfolioSummary {
	p, ok := m[id]
	if !ok {
		p = &PortfolioSummary{PortfolioID: id}
		m[id] = p
	}
	return p
}

// project repeats the mean monthly collection for each month after the
// last recorded one.
func project(monthly []MonthTotal, opts Options) []MonthTotal {
	if opts.ProjectMonths <= 0 {
		return nil
	}
	var (
		mean  float64
		start time.Time
	)
	if len(monthly) > 0 {
		for _, m := range monthly {
			mean += m.Amount
		}
		mean /= float64(len(monthly))
		start, _ = time.Parse(monthLayout, monthly[len(monthly)-1].Month)
	} else {
		now := opts.Now
		if now.IsZero() {
			now = time.Now()
		}
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}

	out := make([]MonthTotal, opts.ProjectMonths)
	for i := range out {
		out[i] = MonthTotal{
			Month:  start.AddDate(0, i+1, 0).Format(monthLayout),
			Amount: mean,
		}
	}
	return out
}

func paymentMonth(pay types.Record) (string, bool) {
	if raw := pay.Text("payment_date"); raw != "" {
		for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC().Format(monthLayout), true
			}
		}
	}
	if pay.CreatedAt.IsZero() {
		return "", false
	}
	return pay.CreatedAt.UTC().Format(monthLayout), true
}

func rate(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole
}

// Number reads a numeric field. Strings holding numbers are accepted;
// anything else counts as zero.
func Number(v any) float64 {
	f, err := strconv.ParseFloat(types.TextOf(v), 64)
	if err != nil {
		return 0
	}
	return f
}

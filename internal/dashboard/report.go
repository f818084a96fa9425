package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rayaadinda/kp-inventory/internal/gateway"
	"github.com/rayaadinda/kp-inventory/internal/models"
)

type Period string

const (
	PeriodAll     Period = "all"
	PeriodWeek    Period = "week"
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
)

const (
	dateLayout = "2006-01-02"
	opHistory  = "history"
)

func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case PeriodAll, PeriodWeek, PeriodMonth, PeriodQuarter:
		return p, nil
	}
	return "", fmt.Errorf("unknown period %q (want all, week, month or quarter)", s)
}

// RangeFor converts a period or a single day into history query bounds.
// A non-zero day wins over the period. Periods only bound the start.
func RangeFor(period Period, day time.Time, now time.Time) gateway.HistoryQuery {
	if !day.IsZero() {
		d := day.Format(dateLayout)
		return gateway.HistoryQuery{StartDate: d, EndDate: d}
	}
	var start time.Time
	switch period {
	case PeriodWeek:
		start = now.AddDate(0, 0, -7)
	case PeriodMonth:
		start = now.AddDate(0, 0, -30)
	case PeriodQuarter:
		start = now.AddDate(0, -3, 0)
	default:
		return gateway.HistoryQuery{}
	}
	return gateway.HistoryQuery{StartDate: start.Format(dateLayout)}
}

// ReportPage shows checkout history for a period or a single day.
type ReportPage struct {
	mu      sync.Mutex
	gw      gateway.Gateway
	gens    *gateway.Generations
	log     *zap.Logger
	now     func() time.Time
	period  Period
	day     time.Time
	reports []models.CheckoutReport
	loadErr error
}

func NewReportPage(gw gateway.Gateway, log *zap.Logger) *ReportPage {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReportPage{
		gw:     gw,
		gens:   gateway.NewGenerations(),
		log:    log,
		now:    time.Now,
		period: PeriodAll,
	}
}

// SetPeriod selects a period and clears any single-day selection.
func (p *ReportPage) SetPeriod(period Period) {
	p.mu.Lock()
	p.period = period
	p.day = time.Time{}
	p.mu.Unlock()
}

// SetDay selects one day; the zero time clears it.
func (p *ReportPage) SetDay(day time.Time) {
	p.mu.Lock()
	p.day = day
	p.mu.Unlock()
}

func (p *ReportPage) Range() gateway.HistoryQuery {
	p.mu.Lock()
	defer p.mu.Unlock()
	return RangeFor(p.period, p.day, p.now())
}

// Load fetches history for the current selection, dropping responses that
// were overtaken by a newer selection.
func (p *ReportPage) Load(ctx context.Context) error {
	gen := p.gens.Next(opHistory)
	q := p.Range()

	reports, err := p.gw.CheckoutHistory(ctx, q)

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.gens.IsCurrent(opHistory, gen) {
		p.log.Debug("discarding stale history response", zap.Uint64("generation", gen))
		return nil
	}
	p.loadErr = err
	if err != nil {
		return err
	}
	p.reports = reports
	return nil
}

func (p *ReportPage) Reports() []models.CheckoutReport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.CheckoutReport(nil), p.reports...)
}

func (p *ReportPage) LoadError() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadErr == nil {
		return ""
	}
	return "failed to load data: " + Message(p.loadErr)
}

// Totals returns the number of checkouts and the units withdrawn.
func (p *ReportPage) Totals() (checkouts, units int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.reports {
		checkouts++
		units += r.TotalItems
	}
	return checkouts, units
}

// Export downloads the current selection as csv or xlsx.
func (p *ReportPage) Export(ctx context.Context, format string) ([]byte, error) {
	if format != "csv" && format != "xlsx" {
		return nil, gateway.NewLocalValidation("export format must be csv or xlsx")
	}
	return p.gw.ExportHistory(ctx, p.Range(), format)
}

package domain

import (
	"fmt"
	"math"
	"time"
)

// GroupBy selects the bucket size for wallet statistics.
type GroupBy string

const (
	GroupByDay   GroupBy = "day"
	GroupByWeek  GroupBy = "week"
	GroupByMonth GroupBy = "month"
)

// Valid reports whether g is a supported bucket size.
func (g GroupBy) Valid() bool {
	return g == GroupByDay || g == GroupByWeek || g == GroupByMonth
}

// Label formats t as the bucket key for g: 2006-01-02, 2006-W01 (ISO week) or 2006-01.
func (g GroupBy) Label(t time.Time) string {
	t = t.UTC()
	switch g {
	case GroupByWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case GroupByMonth:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

// StatisticsQuery selects the ledger rows that feed WalletStatistics.
type StatisticsQuery struct {
	WalletID WalletID
	GroupBy  GroupBy
	From     time.Time
	To       time.Time
	Type     *TransactionType
	Status   *TransactionStatus
}

// StatsBucket aggregates one period. Outflow is reported as a positive number.
type StatsBucket struct {
	Period       string `json:"period"`
	Inflow       int64  `json:"inflow"`
	Outflow      int64  `json:"outflow"`
	Transactions int64  `json:"transactions"`
}

// StatsSummary totals every bucket in the range.
type StatsSummary struct {
	TotalInflow       int64   `json:"total_inflow"`
	TotalOutflow      int64   `json:"total_outflow"`
	TotalTransactions int64   `json:"total_transactions"`
	AvgDailyVolume    float64 `json:"avg_daily_volume"`
}

// StatsTrends are percentage changes between the first and last bucket.
type StatsTrends struct {
	InflowTrend  float64 `json:"inflow_trend"`
	OutflowTrend float64 `json:"outflow_trend"`
	NetFlowTrend float64 `json:"net_flow_trend"`
}

// WalletStatistics is the statistics view of one wallet.
type WalletStatistics struct {
	CurrentBalance int64         `json:"current_balance"`
	GroupBy        GroupBy       `json:"group_by"`
	From           time.Time     `json:"from"`
	To             time.Time     `json:"to"`
	TimeSeries     []StatsBucket `json:"time_series"`
	Summary        StatsSummary  `json:"summary"`
	Trends         StatsTrends   `json:"trends"`
}

// Summarize computes the summary for ordered buckets.
func Summarize(buckets []StatsBucket) StatsSummary {
	var s StatsSummary
	for _, b := range buckets {
		s.TotalInflow += b.Inflow
		s.TotalOutflow += b.Outflow
		s.TotalTransactions += b.Transactions
	}
	if len(buckets) > 0 {
		s.AvgDailyVolume = float64(s.TotalInflow+s.TotalOutflow) / float64(len(buckets))
	}
	return s
}

// ComputeTrends compares the first and last of the ordered buckets.
func ComputeTrends(buckets []StatsBucket) StatsTrends {
	if len(buckets) < 2 {
		return StatsTrends{}
	}
	first, last := buckets[0], buckets[len(buckets)-1]
	return StatsTrends{
		InflowTrend:  trend(first.Inflow, last.Inflow),
		OutflowTrend: trend(first.Outflow, last.Outflow),
		NetFlowTrend: trend(first.Inflow-first.Outflow, last.Inflow-last.Outflow),
	}
}

func trend(first, last int64) float64 {
	switch {
	case first == 0 && last == 0:
		return 0
	case first == 0:
		return 100
	}
	change := float64(last-first) / math.Abs(float64(first)) * 100
	return math.Round(change*100) / 100
}

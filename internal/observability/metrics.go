package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the auction engine.
type Metrics struct {
	// --- Bidding ---
	BidsPlaced    prometheus.Counter
	BidsRejected  *prometheus.CounterVec // label: reason
	BidsWithdrawn prometheus.Counter
	LiveBids      prometheus.Gauge
	BookLiquidity prometheus.Gauge

	// --- Clearing estimate ---
	EstimateRecomputes prometheus.Counter
	EstimateMoves      prometheus.Counter
	EstimateTick       prometheus.Gauge
	LevelsActive       prometheus.Gauge
	LevelsInRange      prometheus.Gauge

	// --- Settlement & claims ---
	SettlementDuration prometheus.Histogram
	ClaimsPaid         prometheus.Counter
	ClaimPayoutTotal   prometheus.Counter
	ReserveRemaining   prometheus.Gauge

	// --- Event pipeline ---
	EventsEmitted   *prometheus.CounterVec // label: type
	PublishDrops    prometheus.Counter
	PersistBatchDur prometheus.Histogram
	PersistRows     prometheus.Counter
	PersistErrors   *prometheus.CounterVec // label: stage
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		BidsPlaced: factory.NewCounter(prometheus.CounterOpts{
			Name: "auction_bids_placed_total",
			Help: "Bids accepted by the ledger",
		}),
		BidsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "auction_bids_rejected_total",
			Help: "Bids rejected, by reason code",
		}, []string{"reason"}),
		BidsWithdrawn: factory.NewCounter(prometheus.CounterOpts{
			Name: "auction_bids_withdrawn_total",
			Help: "Bids withdrawn in full",
		}),
		LiveBids: factory.NewGauge(prometheus.GaugeOpts{
			Name: "auction_live_bids",
			Help: "Currently live bids",
		}),
		BookLiquidity: factory.NewGauge(prometheus.GaugeOpts{
			Name: "auction_book_liquidity",
			Help: "Total live bid liquidity in numeraire units",
		}),
		EstimateRecomputes: factory.NewCounter(prometheus.CounterOpts{
			Name: "auction_estimate_recomputes_total",
			Help: "Clearing estimate recomputations",
		}),
		EstimateMoves: factory.NewCounter(prometheus.CounterOpts{
			Name: "auction_estimate_moves_total",
			Help: "Recomputations that moved the estimate",
		}),
		EstimateTick: factory.NewGauge(prometheus.GaugeOpts{
			Name: "auction_estimate_tick",
			Help: "Current estimated clearing tick",
		}),
		LevelsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "auction_levels_active",
			Help: "Active price levels in the index",
		}),
		LevelsInRange: factory.NewGauge(prometheus.GaugeOpts{
			Name: "auction_levels_in_range",
			Help: "Active price levels the current estimate would fill",
		}),
		SettlementDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "auction_settlement_duration_seconds",
			Help:    "Wall time of the settle step, trade included",
			Buckets: prometheus.DefBuckets,
		}),
		ClaimsPaid: factory.NewCounter(prometheus.CounterOpts{
			Name: "auction_claims_paid_total",
			Help: "Incentive claims paid out",
		}),
		ClaimPayoutTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "auction_claim_payout_asset_total",
			Help: "Total asset paid to claimants",
		}),
		ReserveRemaining: factory.NewGauge(prometheus.GaugeOpts{
			Name: "auction_incentive_reserve_remaining",
			Help: "Unclaimed incentive reserve in asset units",
		}),
		EventsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "auction_events_emitted_total",
			Help: "Engine events emitted, by type",
		}, []string{"type"}),
		PublishDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "auction_publish_drops_total",
			Help: "Events dropped by the non-blocking publish channel",
		}),
		PersistBatchDur: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "auction_persist_batch_duration_seconds",
			Help:    "Event-log batch write duration",
			Buckets: prometheus.DefBuckets,
		}),
		PersistRows: factory.NewCounter(prometheus.CounterOpts{
			Name: "auction_persist_rows_total",
			Help: "Event rows written to the log",
		}),
		PersistErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "auction_persist_errors_total",
			Help: "Event-log write failures, by stage",
		}, []string{"stage"}),
	}
}

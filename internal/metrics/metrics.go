package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Votes
	MetricVotesRecorded      = "votes_recorded_total"
	MetricVoteRejections     = "vote_rejections_total"
	MetricVoteRecordDuration = "vote_record_duration_seconds"
	// Rewards
	MetricRewardsEarned  = "rewards_earned_total"
	MetricRewardsClaimed = "rewards_claimed_total"
	// Notifications
	MetricWebhookDeliveries   = "webhook_deliveries_total"
	MetricRealtimeSubscribers = "realtime_subscribers"
	// Jobs
	MetricServersMarkedOffline = "servers_marked_offline_total"
)

type MetricService struct {
	MetricsMap map[string]prometheus.Collector
	registry   *prometheus.Registry
}

func NewMetricService() *MetricService {
	ms := make(map[string]prometheus.Collector)
	registry := prometheus.NewRegistry()

	// Votes
	votesRecordedMetric := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricVotesRecorded,
		Help: "Votes stored after passing eligibility",
	})
	ms[MetricVotesRecorded] = votesRecordedMetric
	registry.MustRegister(votesRecordedMetric)

	voteRejectionsMetric := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MetricVoteRejections,
		Help: "Vote attempts refused, by reason",
	}, []string{"reason"})
	ms[MetricVoteRejections] = voteRejectionsMetric
	registry.MustRegister(voteRejectionsMetric)

	voteRecordDurationMetric := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    MetricVoteRecordDuration,
		Help:    "Time spent resolving rewards, streak and storing one vote",
		Buckets: prometheus.DefBuckets,
	})
	ms[MetricVoteRecordDuration] = voteRecordDurationMetric
	registry.MustRegister(voteRecordDurationMetric)

	// Rewards
	rewardsEarnedMetric := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricRewardsEarned,
		Help: "Rewards attached to recorded votes",
	})
	ms[MetricRewardsEarned] = rewardsEarnedMetric
	registry.MustRegister(rewardsEarnedMetric)

	rewardsClaimedMetric := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricRewardsClaimed,
		Help: "Rewards delivered in game through claims",
	})
	ms[MetricRewardsClaimed] = rewardsClaimedMetric
	registry.MustRegister(rewardsClaimedMetric)

	// Notifications
	webhookDeliveriesMetric := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MetricWebhookDeliveries,
		Help: "Webhook deliveries, by result",
	}, []string{"result"})
	ms[MetricWebhookDeliveries] = webhookDeliveriesMetric
	registry.MustRegister(webhookDeliveriesMetric)

	realtimeSubscribersMetric := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: MetricRealtimeSubscribers,
		Help: "Connected realtime subscribers",
	})
	ms[MetricRealtimeSubscribers] = realtimeSubscribersMetric
	registry.MustRegister(realtimeSubscribersMetric)

	// Jobs
	serversMarkedOfflineMetric := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricServersMarkedOffline,
		Help: "Servers flagged offline after missing heartbeats",
	})
	ms[MetricServersMarkedOffline] = serversMarkedOfflineMetric
	registry.MustRegister(serversMarkedOfflineMetric)

	return &MetricService{
		MetricsMap: ms,
		registry:   registry,
	}
}

// Handler exposes the registry in the prometheus text format.
func (m *MetricService) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Votes
func (m *MetricService) IncVotesRecorded() {
	m.MetricsMap[MetricVotesRecorded].(prometheus.Counter).Inc()
}

func (m *MetricService) IncVoteRejected(reason string) {
	m.MetricsMap[MetricVoteRejections].(*prometheus.CounterVec).WithLabelValues(reason).Inc()
}

func (m *MetricService) ObserveVoteRecordDuration(seconds float64) {
	m.MetricsMap[MetricVoteRecordDuration].(prometheus.Histogram).Observe(seconds)
}

// Rewards
func (m *MetricService) AddRewardsEarned(n int) {
	m.MetricsMap[MetricRewardsEarned].(prometheus.Counter).Add(float64(n))
}

func (m *MetricService) AddRewardsClaimed(n int) {
	m.MetricsMap[MetricRewardsClaimed].(prometheus.Counter).Add(float64(n))
}

// Notifications
func (m *MetricService) IncWebhookDelivery(result string) {
	m.MetricsMap[MetricWebhookDeliveries].(*prometheus.CounterVec).WithLabelValues(result).Inc()
}

func (m *MetricService) SetRealtimeSubscribers(n int) {
	m.MetricsMap[MetricRealtimeSubscribers].(prometheus.Gauge).Set(float64(n))
}

// Jobs
func (m *MetricService) AddServersMarkedOffline(n int64) {
	m.MetricsMap[MetricServersMarkedOffline].(prometheus.Counter).Add(float64(n))
}

package prometheus

// AppMetrics holds every instrument the platform records.
type AppMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Membership registry
	GroupsCreatedTotal   CounterVec
	InvitesIssuedTotal   CounterVec
	InvitesRejectedTotal CounterVec

	// Presence service
	PresenceReportsTotal  CounterVec
	PresenceReportLatency HistogramVec
	CadenceChangesTotal   CounterVec

	// Incident lifecycle
	IncidentsTriggeredTotal    CounterVec
	IncidentTransitionsTotal   CounterVec
	IncidentOpenCount          GaugeVec
	IncidentTimeToAcknowledged HistogramVec

	// Escalation protocol
	AcknowledgementsTotal CounterVec
	EscalationsFiredTotal CounterVec
	SweepDuration         HistogramVec

	// Realtime hub
	HubSubscribers     GaugeVec
	HubDroppedTotal    CounterVec
	HubDeliveredTotal  CounterVec

	// Infrastructure
	DBQueryDuration HistogramVec
	CacheHitsTotal  CounterVec
	CacheMissTotal  CounterVec
	KafkaPublished  CounterVec
}

var (
	httpDurationBuckets  = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	dbDurationBuckets    = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1}
	ackDelayBuckets      = []float64{5, 15, 30, 60, 120, 180, 300, 600, 1800}
	sweepDurationBuckets = []float64{.01, .05, .1, .5, 1, 5, 15, 60}
)

// NewAppMetrics registers the full instrument set.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", httpDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "In-flight HTTP requests", "method")

	m.GroupsCreatedTotal = collector.RegisterCounter("groups_created_total", "Family groups created")
	m.InvitesIssuedTotal = collector.RegisterCounter("invites_issued_total", "Invites issued", "payer")
	m.InvitesRejectedTotal = collector.RegisterCounter("invites_rejected_total", "Invites rejected", "reason")

	m.PresenceReportsTotal = collector.RegisterCounter("presence_reports_total", "Presence reports ingested", "result")
	m.PresenceReportLatency = collector.RegisterHistogram("presence_report_duration_seconds", "Presence report processing time", httpDurationBuckets)
	m.CadenceChangesTotal = collector.RegisterCounter("cadence_changes_total", "Reporting cadence switches", "mode")

	m.IncidentsTriggeredTotal = collector.RegisterCounter("incidents_triggered_total", "Incidents triggered", "result")
	m.IncidentTransitionsTotal = collector.RegisterCounter("incident_transitions_total", "Incident status transitions", "from", "to")
	m.IncidentOpenCount = collector.RegisterGauge("incidents_open", "Currently open incidents", "status")
	m.IncidentTimeToAcknowledged = collector.RegisterHistogram("incident_time_to_ack_seconds", "Delay from trigger to first acknowledgement", ackDelayBuckets)

	m.AcknowledgementsTotal = collector.RegisterCounter("acknowledgements_total", "Incident acknowledgements recorded")
	m.EscalationsFiredTotal = collector.RegisterCounter("escalations_fired_total", "Escalation rungs executed", "action")
	m.SweepDuration = collector.RegisterHistogram("escalation_sweep_duration_seconds", "Escalation sweep duration", sweepDurationBuckets)

	m.HubSubscribers = collector.RegisterGauge("hub_subscribers", "Connected realtime subscribers", "channel_kind")
	m.HubDroppedTotal = collector.RegisterCounter("hub_dropped_total", "Events dropped for slow subscribers")
	m.HubDeliveredTotal = collector.RegisterCounter("hub_delivered_total", "Events delivered to subscribers")

	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", dbDurationBuckets, "operation")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.KafkaPublished = collector.RegisterCounter("kafka_published_total", "Events published to the broker", "topic", "result")

	return m
}

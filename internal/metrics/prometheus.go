// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the RowQuest API.
var (
	// Activity metrics.
	ActivitiesLoggedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activities_logged_total",
			Help: "Total number of activities logged",
		},
		[]string{"kind", "status"},
	)

	ActivitiesDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activities_deleted_total",
			Help: "Total number of activities deleted",
		},
		[]string{"kind"},
	)

	DistanceRowedMetersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "distance_rowed_meters_total",
			Help: "Total meters rowed, by team",
		},
		[]string{"team"},
	)

	SessionDistanceMeters = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "session_distance_meters",
			Help:    "Distance of individual rowing sessions in meters",
			Buckets: prometheus.ExponentialBuckets(500, 2, 8), // 500m to 64km
		},
		[]string{"team"},
	)

	// Journey metrics.
	TeamCompletionPercent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "team_completion_percent",
			Help: "Last computed journey completion percentage per team",
		},
		[]string{"team"},
	)

	TeamDistanceDriftMeters = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "team_distance_drift_meters",
			Help: "Difference between the stored team counter and the recomputed total at last reconcile",
		},
		[]string{"team"},
	)

	// Badge gamification metrics.
	BadgesAwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "badges_awarded_total",
			Help: "Total number of badges awarded",
		},
		[]string{"badge_name", "team"},
	)

	BadgeAwardConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "badge_award_conflicts_total",
			Help: "Award attempts that found the badge already earned",
		},
		[]string{"badge_name"},
	)

	ActiveBadgeHolders = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "active_badge_holders",
			Help: "Current number of users holding each badge",
		},
		[]string{"badge_name"},
	)

	// Scheduler metrics.
	SchedulerJobsRunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_run_total",
			Help: "Total scheduler job executions",
		},
		[]string{"job", "status"},
	)

	SchedulerLastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduler_last_run_timestamp",
			Help: "Unix timestamp of last scheduler run",
		},
		[]string{"job"},
	)

	SchedulerJobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_job_duration_seconds",
			Help:    "Time taken to execute a scheduler job",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		[]string{"job"},
	)

	// Collaborator metrics.
	NotificationsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Webhook notifications by outcome",
		},
		[]string{"status"},
	)

	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Leaderboard cache lookups by result",
		},
		[]string{"result"},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uploads_total",
			Help: "Object storage uploads by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	// HTTP metrics.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"method", "route", "code"},
	)

	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	RateLimitedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Requests rejected by the per-user rate limiter",
		},
		[]string{"route"},
	)
)

// RecordActivityLogged records an activity logging attempt.
func RecordActivityLogged(kind, status string) {
	ActivitiesLoggedTotal.WithLabelValues(kind, status).Inc()
}

// RecordActivityDeleted records a deleted activity.
func RecordActivityDeleted(kind string) {
	ActivitiesDeletedTotal.WithLabelValues(kind).Inc()
}

// RecordDistanceRowed adds a rowing session to the team's distance counter and histogram.
func RecordDistanceRowed(team string, meters float64) {
	if meters <= 0 {
		return
	}
	DistanceRowedMetersTotal.WithLabelValues(team).Add(meters)
	SessionDistanceMeters.WithLabelValues(team).Observe(meters)
}

// SetTeamCompletion sets the team's completion gauge.
func SetTeamCompletion(team string, percent int) {
	TeamCompletionPercent.WithLabelValues(team).Set(float64(percent))
}

// SetTeamDistanceDrift records the drift corrected by the reconcile job.
func SetTeamDistanceDrift(team string, meters float64) {
	TeamDistanceDriftMeters.WithLabelValues(team).Set(meters)
}

// RecordBadgeAwarded records a badge award.
func RecordBadgeAwarded(badgeName, team string) {
	BadgesAwardedTotal.WithLabelValues(badgeName, team).Inc()
}

// RecordBadgeAwardConflict records an award that was already present.
func RecordBadgeAwardConflict(badgeName string) {
	BadgeAwardConflictsTotal.WithLabelValues(badgeName).Inc()
}

// SetActiveBadgeHolders sets the number of users holding a badge.
func SetActiveBadgeHolders(badgeName string, count int) {
	ActiveBadgeHolders.WithLabelValues(badgeName).Set(float64(count))
}

// RecordSchedulerJobRun records a job execution with its duration.
func RecordSchedulerJobRun(job, status string, duration time.Duration) {
	SchedulerJobsRunTotal.WithLabelValues(job, status).Inc()
	SchedulerLastRunTimestamp.WithLabelValues(job).SetToCurrentTime()
	SchedulerJobDurationSeconds.WithLabelValues(job).Observe(duration.Seconds())
}

// RecordNotification records a webhook delivery outcome.
func RecordNotification(status string) {
	NotificationsSentTotal.WithLabelValues(status).Inc()
}

// RecordCacheResult records a cache hit or miss.
func RecordCacheResult(hit bool) {
	if hit {
		CacheRequestsTotal.WithLabelValues("hit").Inc()
		return
	}
	CacheRequestsTotal.WithLabelValues("miss").Inc()
}

// RecordUpload records an object storage upload.
func RecordUpload(kind, status string) {
	UploadsTotal.WithLabelValues(kind, status).Inc()
}

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(method, route, code string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, code).Inc()
	HTTPRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordRateLimited records a rejected request.
func RecordRateLimited(route string) {
	RateLimitedRequestsTotal.WithLabelValues(route).Inc()
}

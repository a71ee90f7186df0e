package metrics

import "time"

// JobCompleted records a successful job and how long it ran.
func JobCompleted(jobType string, duration time.Duration) {
	JobsTotal.WithLabelValues(jobType, "completed").Inc()
	JobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// JobFailed records a job attempt that returned an error.
func JobFailed(jobType string) {
	JobsTotal.WithLabelValues(jobType, "failed").Inc()
}

// DownloadServed records a fulfilled pack request. branch is
// "prior_purchase" or "grant".
func DownloadServed(branch string) {
	DownloadsTotal.WithLabelValues(branch).Inc()
}

// DownloadDenied records a refused pack request.
func DownloadDenied(reason string) {
	DownloadsDenied.WithLabelValues(reason).Inc()
}

// RateLimited records a request refused by the rate limiter.
func RateLimited(path string) {
	HTTPRateLimited.WithLabelValues(normalizePath(path)).Inc()
}

package jobs

import (
	jobmetrics "github.com/keystone-erp/keystone-erp/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

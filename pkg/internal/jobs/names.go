package jobs

// 任务名称常量.
const (
	JobReconcileUploads = "uploads.reconcile"
	JobRefreshSummaries = "market.summaries.refresh"
)

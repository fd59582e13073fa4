package queue

import "time"

// EventHeader 定义所有事件的通用头部元数据.
// 建议在发布消息时填充 TraceID、OccurredAt、Producer 等，便于追踪链路与审计.
type EventHeader struct {
	// Topic 冗余记录消息主题，便于离线处理或转储后定位来源主题.
	Topic string `json:"topic"`
	// MessageID 为空时随机生成；对象事件使用确定性 ID 以便 JetStream 去重.
	MessageID string `json:"message_id,omitempty"`
	// TraceID 分布式追踪/关联 ID，可来自中间件或业务生成.
	TraceID string `json:"trace_id,omitempty"`
	// Producer 生产者服务名或节点标识.
	Producer string `json:"producer,omitempty"`
	// OccurredAt 事件发生时间（UTC，RFC3339）.
	OccurredAt time.Time `json:"occurred_at"`
	// Version 事件负载版本，便于向后兼容演进.
	Version string `json:"version,omitempty"`
}

// Message 是统一的消息封装，Header + Payload.
// T 即不同主题对应的负载结构体.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// -------------------------- 上传区对象 --------------------------

// 对象事件来源.
const (
	SourceNotification = "notification" // 对象存储桶通知
	SourceReprocess    = "reprocess"    // 手动重新处理
	SourceReconcile    = "reconcile"    // 定时补偿扫描
	SourceCLI          = "cli"
)

// ObjectRef 标识对象在对象存储中的位置与属性.
type ObjectRef struct {
	Bucket      string `json:"bucket"`
	ObjectKey   string `json:"object_key"`
	ETag        string `json:"etag,omitempty"`
	Size        int64  `json:"size,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	// UserMetadata 上传时附带的用户元数据（title/description/tags/userid）
	UserMetadata map[string]string `json:"user_metadata,omitempty"`
}

// ObjectStoredPayload 上传区对象已写入.
type ObjectStoredPayload struct {
	Object ObjectRef `json:"object"`
	Source string    `json:"source,omitempty"`
}

// -------------------------- 评分结果 --------------------------

// SubmissionScoredPayload 评分完成.
type SubmissionScoredPayload struct {
	OwnerID         string  `json:"owner_id"`
	SubmissionID    string  `json:"submission_id"`
	ContentKind     string  `json:"content_kind"`
	Status          string  `json:"status"`
	QualityScore    int     `json:"quality_score"`
	MetadataBonus   int     `json:"metadata_bonus"`
	EstimatedPayout float64 `json:"estimated_payout"`
	MarketCategory  string  `json:"market_category"`
}

// SubmissionBlockedPayload 安全检查未通过.
type SubmissionBlockedPayload struct {
	OwnerID      string `json:"owner_id"`
	SubmissionID string `json:"submission_id"`
	Reason       string `json:"reason"`
}

// -------------------------- 市场结算 --------------------------

// SettledItem 结算中成交的单个条目.
type SettledItem struct {
	OwnerID      string  `json:"owner_id"`
	SubmissionID string  `json:"submission_id"`
	QualityScore int     `json:"quality_score"`
	SoldPrice    float64 `json:"sold_price"`
}

// MarketSettledPayload 一次购买的结算结果.
type MarketSettledPayload struct {
	SettlementID string        `json:"settlement_id"`
	AgencyID     string        `json:"agency_id"`
	Category     string        `json:"category"`
	Count        int           `json:"count"`
	TotalCost    float64       `json:"total_cost"`
	Partial      bool          `json:"partial,omitempty"`
	Items        []SettledItem `json:"items"`
}

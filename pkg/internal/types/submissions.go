package types

// ErrorResponse 错误响应，message 可直接展示.
type ErrorResponse struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// MessageResponse 操作结果.
type MessageResponse struct {
	Message string `json:"message"`
}

// DeleteSubmissionRequest 贡献者删除未售出的提交.
type DeleteSubmissionRequest struct {
	ID     string `json:"id"     rule:"required,max=512"`
	UserID string `json:"userId" rule:"required,max=256"`
}

// UploadURLRequest 申请上传链接.
type UploadURLRequest struct {
	UserID   string `json:"userId"   rule:"required,max=256,excludes=/"`
	FileName string `json:"fileName" rule:"required,max=512"`
}

// UploadURLResponse 上传链接，30 分钟内有效.
type UploadURLResponse struct {
	SasURL    string `json:"sasUrl"`
	Bucket    string `json:"bucket"`
	ObjectKey string `json:"object_key"`
	ExpiresAt string `json:"expires_at"`
}

// ReprocessRequest 重新评分一个已上传对象.
type ReprocessRequest struct {
	Bucket    string `json:"bucket"`
	ObjectKey string `json:"object_key" rule:"required,max=1024"`
}

// ReprocessResponse 已发布的入库事件.
type ReprocessResponse struct {
	MessageID string `json:"message_id"`
}

// Submission 提交记录视图.
type Submission struct {
	ID              string         `json:"id"`
	OwnerID         string         `json:"owner_id"`
	ObjectKey       string         `json:"object_key"`
	ContentType     string         `json:"content_type"`
	SizeBytes       int64          `json:"size_bytes"`
	UploadedAt      string         `json:"uploaded_at"`
	ContentKind     string         `json:"content_kind"`
	Tags            []string       `json:"tags"`
	Caption         string         `json:"caption,omitempty"`
	UserTitle       string         `json:"user_title,omitempty"`
	UserDescription string         `json:"user_description,omitempty"`
	UserTags        []string       `json:"user_tags,omitempty"`
	IsSafe          bool           `json:"is_safe"`
	SafetyReason    string         `json:"safety_reason"`
	ScoreStatus     string         `json:"score_status"`
	QualityScore    int            `json:"quality_score"`
	MetadataBonus   int            `json:"metadata_bonus"`
	EstimatedPayout float64        `json:"estimated_payout"`
	SoldPrice       *float64       `json:"sold_price"`
	Payout          float64        `json:"payout"`
	MarketCategory  string         `json:"market_category"`
	AIAnalysis      map[string]any `json:"ai_analysis,omitempty"`
	Sold            bool           `json:"sold"`
	TransactionDate string         `json:"transaction_date,omitempty"`
}

// StatsResponse 贡献者看板.
type StatsResponse struct {
	Earnings     string       `json:"earnings"`
	AvgQuality   string       `json:"avg_quality"`
	TotalUploads int          `json:"total_uploads"`
	History      []HistoryRow `json:"history"`
}

// HistoryRow 看板中的一行.
type HistoryRow struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Date     string `json:"date"`
	Quality  int    `json:"quality"`
	Earnings string `json:"earnings"`
	Status   string `json:"status"`
	Category string `json:"category"`
}

package model

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// ContentKind 内容类型，决定评分路径.
type ContentKind string

const (
	ContentKindImage      ContentKind = "image"
	ContentKindCodeOrText ContentKind = "code_or_text"
	ContentKindOther      ContentKind = "other"
)

// ScoreStatus 评分状态.
type ScoreStatus string

const (
	// ScoreStatusScored 预言机正常评分
	ScoreStatusScored ScoreStatus = "scored"
	// ScoreStatusBlocked 未通过安全检查
	ScoreStatusBlocked ScoreStatus = "blocked"
	// ScoreStatusFailed 评分预言机失败且策略为 fail_closed
	ScoreStatusFailed ScoreStatus = "failed"
	// ScoreStatusFixed 不支持深度分析的类型，使用固定分
	ScoreStatusFixed ScoreStatus = "fixed"
)

// 市场分类，封闭集合.
const (
	CategoryAutonomousDriving = "Autonomous Driving"
	CategoryMedicalImaging    = "Medical Imaging"
	CategoryRoboticsTraining  = "Robotics Training"
	CategoryDeveloperTools    = "Developer Tools"
	CategoryFinancialData     = "Financial Data"
	CategoryGeneral           = "General"
	// CategoryUncategorized 默认值，分类器不会产出
	CategoryUncategorized = "Uncategorized"
)

// ClassifierCategories 分类器可选的类别，按提示词中的顺序.
var ClassifierCategories = []string{
	CategoryAutonomousDriving,
	CategoryMedicalImaging,
	CategoryRoboticsTraining,
	CategoryDeveloperTools,
	CategoryFinancialData,
	CategoryGeneral,
}

// IsMarketCategory 判断是否为合法的市场分类（含 Uncategorized）.
func IsMarketCategory(s string) bool {
	if s == CategoryUncategorized {
		return true
	}

	for _, c := range ClassifierCategories {
		if c == s {
			return true
		}
	}

	return false
}

// NormalizeCategory 忽略大小写与首尾空白、引号匹配分类器类别，不在集合内返回 false.
func NormalizeCategory(s string) (string, bool) {
	s = strings.Trim(strings.TrimSpace(s), "'\".")
	for _, c := range ClassifierCategories {
		if strings.EqualFold(c, s) {
			return c, true
		}
	}

	return "", false
}

// Submission 一次贡献提交及其评分、成交记录.
// 主键为 (owner_id, id)，id 来自对象的文件名.
type Submission struct {
	ID      string `gorm:"primaryKey;size:512"                json:"id"`
	OwnerID string `gorm:"primaryKey;size:255;index"          json:"owner_id"`
	// 对象存储中的来源
	Bucket      string    `gorm:"size:255"                   json:"bucket"`
	ObjectKey   string    `gorm:"size:1024"                  json:"object_key"`
	ETag        string    `gorm:"column:etag;size:128"       json:"etag"`
	ContentType string    `gorm:"size:255"                   json:"content_type"`
	SizeBytes   int64     `                                  json:"size_bytes"`
	UploadedAt  time.Time `gorm:"index"                      json:"uploaded_at"`

	ContentKind ContentKind `gorm:"size:32;index" json:"content_kind"`
	// Tags 视觉预言机返回的有序标签
	Tags    datatypes.JSONSlice[string] `gorm:"type:text" json:"tags"`
	Caption string                      `gorm:"type:text" json:"caption"`

	// 贡献者元数据，仅用于奖励校验
	UserTags        datatypes.JSONSlice[string] `gorm:"type:text"     json:"user_tags"`
	UserTitle       string                      `gorm:"size:512"      json:"user_title"`
	UserDescription string                      `gorm:"type:text"     json:"user_description"`

	IsSafe       bool   `json:"is_safe"`
	SafetyReason string `gorm:"size:512" json:"safety_reason"`

	ScoreStatus     ScoreStatus    `gorm:"size:32;index"  json:"score_status"`
	QualityScore    int            `gorm:"index"          json:"quality_score"`
	MetadataBonus   int            `                      json:"metadata_bonus"`
	EstimatedPayout float64        `                      json:"estimated_payout"`
	MarketCategory  string         `gorm:"size:64;index"  json:"market_category"`
	AIAnalysis      datatypes.JSON `gorm:"type:text"      json:"ai_analysis"`

	// 成交信息，SoldTo 非空即已售出
	SoldTo          *string    `gorm:"size:255;index" json:"sold_to,omitempty"`
	SettlementID    *string    `gorm:"size:64;index"  json:"settlement_id,omitempty"`
	SoldPrice       *float64   `                      json:"sold_price,omitempty"`
	TransactionDate *time.Time `gorm:"index"          json:"transaction_date,omitempty"`

	// Version 乐观并发版本号，每次条件写入递增
	Version int64 `gorm:"not null;default:0" json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 表名.
func (Submission) TableName() string { return "submissions" }

// IsSold 是否已售出.
func (s *Submission) IsSold() bool {
	return s.SoldTo != nil && *s.SoldTo != ""
}

// Payout 已售出返回成交价，否则返回预估收益.
func (s *Submission) Payout() float64 {
	if s.IsSold() && s.SoldPrice != nil {
		return *s.SoldPrice
	}

	return s.EstimatedPayout
}

// Models 需要迁移的模型.
func Models() []any {
	return []any{&Submission{}}
}

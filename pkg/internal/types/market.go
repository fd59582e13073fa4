package types

// PurchaseRequest 机构按分类购买一批数据，agencyId 为空时使用默认机构.
type PurchaseRequest struct {
	Category string `json:"category" rule:"required,market_category"`
	AgencyID string `json:"agencyId" rule:"omitempty,max=128"`
}

// PurchaseResponse 购买结果.
type PurchaseResponse struct {
	Message      string          `json:"message"`
	Count        int             `json:"count"`
	TotalCost    float64         `json:"total_cost"`
	Note         string          `json:"note"`
	SettlementID string          `json:"settlement_id"`
	Partial      bool            `json:"partial,omitempty"`
	Items        []PurchasedItem `json:"items"`
}

// PurchasedItem 成交条目与授权证书.
type PurchasedItem struct {
	ID           string      `json:"id"`
	OwnerID      string      `json:"owner_id"`
	QualityScore int         `json:"quality_score"`
	SoldPrice    float64     `json:"sold_price"`
	Certificate  Certificate `json:"certificate"`
}

// Certificate 授权证书.
type Certificate struct {
	CertificateID      string `json:"certificate_id"`
	TransactionID      string `json:"transaction_id"`
	AssetName          string `json:"asset_name"`
	QualityScore       int    `json:"quality_score"`
	ResponsibleAICheck string `json:"responsible_ai_check"`
	IssuedAt           string `json:"issued_at"`
}

// CategorySummary 可售分类汇总行.
type CategorySummary struct {
	MarketCategory string  `json:"market_category"`
	TotalFiles     int64   `json:"total_files"`
	AvgQuality     float64 `json:"avg_quality"`
}

// SummariesResponse 分类汇总，没有可售数据时 has_data 为 false.
type SummariesResponse struct {
	HasData    bool              `json:"has_data"`
	Categories []CategorySummary `json:"categories"`
}

// AgencyPurchase 机构购买记录.
type AgencyPurchase struct {
	ID              string   `json:"id"`
	OwnerID         string   `json:"owner_id"`
	OriginalName    string   `json:"original_name"`
	MarketCategory  string   `json:"market_category"`
	SoldPrice       *float64 `json:"sold_price"`
	TransactionDate string   `json:"transaction_date,omitempty"`
	QualityScore    int      `json:"quality_score"`
}

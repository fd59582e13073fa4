// Package scoring 实现贡献内容的质量评分：安全检查、内容评分、元数据奖励与收益计算.
package scoring

import "math"

const (
	// MinScore 与 MaxScore 质量分的范围
	MinScore = 0
	MaxScore = 100

	// MaxBonus 元数据奖励上限
	MaxBonus = 20
	// MaxTagBonus 标签匹配奖励上限
	MaxTagBonus = 10
	// TagMatchPoints 每个匹配标签的分数
	TagMatchPoints = 3
	// DescriptionBonus 描述被判定相关时的奖励
	DescriptionBonus = 10

	// OtherKindScore 与 OtherKindPayout 不支持深度分析的类型使用固定值
	OtherKindScore  = 10
	OtherKindPayout = 0.50
)

// ClampScore 把分数限制在 [0,100].
func ClampScore(score int) int {
	return min(max(score, MinScore), MaxScore)
}

// Payout 根据质量分计算预估收益（美元，保留两位小数）.
//
//	score < 50        max(0.1, score*0.1)
//	50 <= score < 80  5 + (score-50)*0.5
//	score >= 80       20 + (score-80)*4
func Payout(score int) float64 {
	s := float64(ClampScore(score))

	var v float64

	switch {
	case s < 50:
		v = math.Max(0.1, s*0.1)
	case s < 80:
		v = 5 + (s-50)*0.5
	default:
		v = 20 + (s-80)*4.0
	}

	return math.Round(v*100) / 100
}

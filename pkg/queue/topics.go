// Package queue 定义消息主题常量，供发布/订阅使用.
package queue

// 主题命名规范：dn.<域>.<动作>，尽量稳定且向后兼容.
// 域：object(上传区对象)、submission(评分结果)、market(市场结算).

const (
	// TopicObjectStored 上传区出现新对象（或被要求重新处理），驱动评分流水线.
	TopicObjectStored = "dn.object.stored"

	// TopicSubmissionScored 提交已完成评分并入库（含 failed/fixed 状态）.
	TopicSubmissionScored = "dn.submission.scored"
	// TopicSubmissionBlocked 提交未通过安全检查.
	TopicSubmissionBlocked = "dn.submission.blocked"

	// TopicMarketSettled 一次购买结算完成.
	TopicMarketSettled = "dn.market.settled"
)

// 主题分组，用于批量操作或权限控制.
var (
	SubmissionTopics = []string{TopicSubmissionScored, TopicSubmissionBlocked}

	AllTopics = []string{
		TopicObjectStored,
		TopicSubmissionScored,
		TopicSubmissionBlocked,
		TopicMarketSettled,
	}
)

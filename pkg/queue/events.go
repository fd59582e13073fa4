package queue

import (
	"strconv"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cespare/xxhash/v2"
)

// -------------------------- 基于业务封装 events --------------------------

// ObjectMessageID 以 bucket|key|etag 计算确定性消息 ID，同一对象版本的重复通知得到相同 ID.
func ObjectMessageID(ref ObjectRef) string {
	h := xxhash.New()
	_, _ = h.WriteString(ref.Bucket)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(ref.ObjectKey)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(ref.ETag)

	return "obj-" + strconv.FormatUint(h.Sum64(), 16)
}

// PublishObjectStored 发布 dn.object.stored 事件。
// 未显式指定消息 ID 时使用 ObjectMessageID。
func PublishObjectStored(pub message.Publisher, payload ObjectStoredPayload, opts ...func(*EventHeader)) error {
	opts = append([]func(*EventHeader){WithMessageID(ObjectMessageID(payload.Object))}, opts...)

	return publish(pub, TopicObjectStored, payload, opts...)
}

// ParseObjectStored 将 Watermill 消息解析为强类型 Envelope（ObjectStoredPayload）。
func ParseObjectStored(msg *message.Message) (Message[ObjectStoredPayload], error) {
	return ParseWatermillMessage[ObjectStoredPayload](msg)
}

// PublishSubmissionScored 发布 dn.submission.scored 事件。
func PublishSubmissionScored(pub message.Publisher, payload SubmissionScoredPayload, opts ...func(*EventHeader)) error {
	return publish(pub, TopicSubmissionScored, payload, opts...)
}

// PublishSubmissionBlocked 发布 dn.submission.blocked 事件。
func PublishSubmissionBlocked(pub message.Publisher, payload SubmissionBlockedPayload, opts ...func(*EventHeader)) error {
	return publish(pub, TopicSubmissionBlocked, payload, opts...)
}

// PublishMarketSettled 发布 dn.market.settled 事件，消息 ID 即结算批次 ID。
func PublishMarketSettled(pub message.Publisher, payload MarketSettledPayload, opts ...func(*EventHeader)) error {
	opts = append([]func(*EventHeader){WithMessageID(payload.SettlementID)}, opts...)

	return publish(pub, TopicMarketSettled, payload, opts...)
}

// ParseMarketSettled 解析结算事件。
func ParseMarketSettled(msg *message.Message) (Message[MarketSettledPayload], error) {
	return ParseWatermillMessage[MarketSettledPayload](msg)
}

func publish[T any](pub message.Publisher, topic string, payload T, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(topic, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(topic, msg)
}

package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/datanexus/pkg/scheduler"
)

type schedulerKey struct{}

// SchedulerMiddleware 将调度器注入到 request.Context，供 /scheduler 路由查看和触发任务.
func SchedulerMiddleware(sched *scheduler.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithValue(c.Request.Context(), schedulerKey{}, sched)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetScheduler 从 request.Context 取出调度器，未注入时为 nil.
func GetScheduler(c *gin.Context) *scheduler.Scheduler {
	if sched, ok := c.Request.Context().Value(schedulerKey{}).(*scheduler.Scheduler); ok {
		return sched
	}

	return nil
}

package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yeisme/datanexus/pkg/cache"
	"github.com/yeisme/datanexus/pkg/internal/model"
	"github.com/yeisme/datanexus/pkg/internal/repo"
	nlog "github.com/yeisme/datanexus/pkg/log"
)

const (
	msgMissingDeleteArgs = "Missing id or userId"
	msgItemNotFound      = "Item not found or access denied"
	msgCannotDeleteSold  = "Cannot delete sold items."
	// MsgDeleted 删除成功的提示
	MsgDeleted = "Submission deleted successfully."
)

// SubmissionService 贡献者的提交记录管理.
type SubmissionService struct {
	repo    *repo.Submissions
	summary *cache.Cache
	logger  zerolog.Logger
}

// NewSubmissionService 创建提交管理服务.
func NewSubmissionService(r *repo.Submissions, summary *cache.Cache) *SubmissionService {
	return &SubmissionService{repo: r, summary: summary, logger: nlog.Component("submissions")}
}

// NewSubmissionServiceFromContext 使用上下文中的存储依赖.
func NewSubmissionServiceFromContext(c context.Context) *SubmissionService {
	d := depsFromContext(c)

	return NewSubmissionService(d.repo, d.summary)
}

// Get 读取单条记录，只能读取自己的.
func (s *SubmissionService) Get(ctx context.Context, ownerID, id string) (*model.Submission, error) {
	ownerID, id = strings.TrimSpace(ownerID), strings.TrimSpace(id)
	if ownerID == "" || id == "" {
		return nil, newError(ErrValidation, msgMissingDeleteArgs)
	}

	if s.repo == nil {
		return nil, newError(ErrUnavailable, "database not configured")
	}

	sub, err := s.repo.Get(ctx, ownerID, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, wrapError(ErrNotFound, msgItemNotFound, err)
	}

	if err != nil {
		return nil, wrapError(ErrPersistence, "load submission failed", err)
	}

	return sub, nil
}

// List 贡献者的全部记录，按上传时间倒序.
func (s *SubmissionService) List(ctx context.Context, ownerID string) ([]model.Submission, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, newError(ErrValidation, msgMissingUserID)
	}

	if s.repo == nil {
		return nil, newError(ErrUnavailable, "database not configured")
	}

	subs, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, wrapError(ErrPersistence, "list submissions failed", err)
	}

	return subs, nil
}

// Delete 删除未售出的记录；已售出的记录不可删除.
func (s *SubmissionService) Delete(ctx context.Context, ownerID, id string) error {
	ownerID, id = strings.TrimSpace(ownerID), strings.TrimSpace(id)
	if ownerID == "" || id == "" {
		return newError(ErrValidation, msgMissingDeleteArgs)
	}

	if s.repo == nil {
		return newError(ErrUnavailable, "database not configured")
	}

	err := s.repo.Delete(ctx, ownerID, id)

	switch {
	case errors.Is(err, repo.ErrNotFound):
		return wrapError(ErrNotFound, msgItemNotFound, err)
	case errors.Is(err, repo.ErrSold):
		return wrapError(ErrForbidden, msgCannotDeleteSold, err)
	case err != nil:
		return wrapError(ErrPersistence, "delete submission failed", err)
	}

	if err := invalidateSummaries(ctx, s.summary); err != nil {
		s.logger.Debug().Err(err).Msg("invalidate summaries failed")
	}

	s.logger.Info().Str("owner", ownerID).Str("id", id).Msg("submission deleted")

	return nil
}

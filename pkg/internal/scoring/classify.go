package scoring

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yeisme/datanexus/pkg/internal/model"
	"github.com/yeisme/datanexus/pkg/internal/oracle"
)

// classify 调用分类器并归一化到封闭集合，任何失败都返回 General.
func classify(ctx context.Context, c oracle.Classifier, description string, logger *zerolog.Logger) string {
	if c == nil {
		return model.CategoryGeneral
	}

	answer, err := c.Classify(ctx, description)
	if err != nil {
		logger.Warn().Err(err).Msg("classification failed")

		return model.CategoryGeneral
	}

	if cat, ok := model.NormalizeCategory(answer); ok {
		return cat
	}

	logger.Debug().Str("answer", answer).Msg("classifier answer outside category set")

	return model.CategoryGeneral
}

func imageDescription(tags []string) string {
	return "Image with tags: " + strings.Join(tags, ", ")
}

func textDescription(fileName, summary string) string {
	return "Code/Text file named " + fileName + ". Summary: " + summary
}

func otherDescription(fileName string) string {
	return "Unsupported file named " + fileName
}

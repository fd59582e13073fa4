package model

import (
	"github.com/go-playground/validator/v10"

	"github.com/yeisme/datanexus/pkg/rule"
)

// RuleMarketCategory 校验市场分类的 rule 标签.
const RuleMarketCategory = "market_category"

func init() {
	if err := rule.RegisterValidation(RuleMarketCategory, func(fl validator.FieldLevel) bool {
		return IsMarketCategory(fl.Field().String())
	}); err != nil {
		panic("register " + RuleMarketCategory + " rule: " + err.Error())
	}
}

package rule_test

import (
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/yeisme/datanexus/pkg/internal/model"
	"github.com/yeisme/datanexus/pkg/rule"
)

type purchase struct {
	Category string  `rule:"required,market_category"`
	AgencyID string  `rule:"omitempty,max=64"`
	Budget   float64 `rule:"gte=0"`
}

func TestEngine(t *testing.T) {
	if rule.Engine() == nil {
		t.Fatal("Engine() returned nil")
	}

	if rule.Engine() != rule.Engine() {
		t.Fatal("Engine() should return the shared instance")
	}
}

func TestMarketCategoryRule(t *testing.T) {
	cases := []struct {
		category string
		ok       bool
	}{
		{model.CategoryMedicalImaging, true},
		{model.CategoryGeneral, true},
		// fixed 类型的提交保持 Uncategorized，也可以被购买
		{model.CategoryUncategorized, true},
		{"Space Mining", false},
		{"medical imaging", false},
		{"", false},
	}

	for _, tc := range cases {
		err := rule.ValidateVar(tc.category, model.RuleMarketCategory)
		if (err == nil) != tc.ok {
			t.Errorf("ValidateVar(%q) err = %v, want ok=%v", tc.category, err, tc.ok)
		}
	}
}

func TestValidateStruct(t *testing.T) {
	if err := rule.ValidateStruct(purchase{Category: model.CategoryRoboticsTraining}); err != nil {
		t.Fatalf("valid purchase: %v", err)
	}

	cases := []struct {
		name  string
		in    purchase
		field string
		tag   string
	}{
		{"missing category", purchase{}, "Category", "required"},
		{"unknown category", purchase{Category: "Space Mining"}, "Category", model.RuleMarketCategory},
		{"negative budget", purchase{Category: model.CategoryGeneral, Budget: -1}, "Budget", "gte"},
	}

	for _, tc := range cases {
		err := rule.ValidateStruct(tc.in)

		verrs, ok := err.(validator.ValidationErrors)
		if !ok || len(verrs) != 1 {
			t.Fatalf("%s: err = %v", tc.name, err)
		}

		if verrs[0].Field() != tc.field || verrs[0].Tag() != tc.tag {
			t.Errorf("%s: got %s/%s, want %s/%s", tc.name, verrs[0].Field(), verrs[0].Tag(), tc.field, tc.tag)
		}
	}
}

func TestRegisterValidationAndAlias(t *testing.T) {
	err := rule.RegisterValidation("owner_key", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) > 0 && fl.Field().String()[0] != '/'
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := rule.ValidateVar("alice/a.png", "owner_key"); err != nil {
		t.Errorf("owner key rejected: %v", err)
	}

	if err := rule.ValidateVar("/a.png", "owner_key"); err == nil {
		t.Error("leading slash accepted")
	}

	rule.RegisterAlias("purchasable_category", "required,"+model.RuleMarketCategory)

	if err := rule.ValidateVar(model.CategoryFinancialData, "purchasable_category"); err != nil {
		t.Errorf("alias rejected valid category: %v", err)
	}

	if err := rule.ValidateVar("", "purchasable_category"); err == nil {
		t.Error("alias accepted empty category")
	}
}

package validate

import (
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func validateAmount(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return d.IsPositive()
}

package controller

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"pricing-api/internal/models"
)

// RegisterValidators installs the domain validations used by the binding
// tags on request DTOs.
func RegisterValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	v.RegisterValidation("feekind", func(fl validator.FieldLevel) bool {
		switch models.FeeKind(fl.Field().String()) {
		case models.FeeKindBase, models.FeeKindDiscount, models.FeeKindCustom:
			return true
		}
		return false
	})

	v.RegisterValidation("txdirection", func(fl validator.FieldLevel) bool {
		switch models.Direction(fl.Field().String()) {
		case models.DirectionBuy, models.DirectionSell, models.DirectionConvert, "":
			return true
		}
		return false
	})
}

package util

import (
	"coursecraft_backend/internal/model"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators installs the custom binding rules used by request
// structs. It is called once at startup.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("questiontype", func(fl validator.FieldLevel) bool {
		return model.QuestionType(fl.Field().String()).Valid()
	})
}

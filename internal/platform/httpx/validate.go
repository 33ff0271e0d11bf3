package httpx

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// FieldErrors flattens validator errors to field -> failed tag. It returns nil for a nil error.
func FieldErrors(err error) map[string]string {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"general": err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}

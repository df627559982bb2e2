package validator

import (
	"errors"
	"fmt"

	bookingvalidator "clinic/internal/appointments/validator"
	"clinic/internal/slots"
	"clinic/pkg/logger"
	"clinic/pkg/model"

	"github.com/go-playground/validator/v10"
)

type DiscoveryValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewDiscoveryValidator(log *logger.Logger) *DiscoveryValidator {
	v := validator.New()

	if err := v.RegisterValidation("clinic_date", func(fl validator.FieldLevel) bool {
		return slots.ValidDate(fl.Field().String())
	}); err != nil {
		log.Fatal("Failed to register 'clinic_date' validator",
			"error", err,
		)
	}

	return &DiscoveryValidator{
		validate: v,
		logger:   log,
	}
}

// Validate returns bookingvalidator.ValidationErrors so both flows surface
// field errors the same way.
func (v *DiscoveryValidator) Validate(input *model.DiscoveryInput) error {
	err := v.validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	var out bookingvalidator.ValidationErrors
	for _, fe := range fieldErrs {
		message := fe.Error()
		switch fe.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", fe.Field())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", fe.Field())
		case "clinic_date":
			message = fmt.Sprintf("%s must be a date in YYYY-MM-DD format", fe.Field())
		}
		out = append(out, bookingvalidator.ValidationError{Field: fe.Field(), Message: message})
	}
	return out
}

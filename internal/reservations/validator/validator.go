package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	reservationerrors "calendra/internal/reservations/errors"
	"calendra/pkg/logger"
	"calendra/pkg/model"

	"github.com/go-playground/validator/v10"
)

var identifierRegex = regexp.MustCompile(`^[A-Za-z0-9._:@-]{1,128}$`)

type ReservationValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewReservationValidator(log *logger.Logger) *ReservationValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})

	if err := v.RegisterValidation("identifier", validateIdentifier); err != nil {
		log.Fatal("Failed to register 'identifier' validator",
			"error", err,
		)
	}

	log.Info("Reservation validator initialized successfully")

	return &ReservationValidator{
		validate: v,
		logger:   log,
	}
}

func validateIdentifier(fl validator.FieldLevel) bool {
	return identifierRegex.MatchString(fl.Field().String())
}

func (v *ReservationValidator) ValidateRequest(req *model.ReservationRequest) error {
	if req == nil {
		return reservationerrors.Validation("", "request body is required")
	}
	if err := v.validate.Struct(req); err != nil {
		return v.translate(err)
	}
	return nil
}

func (v *ReservationValidator) ValidateReschedule(req *model.RescheduleRequest) error {
	if req == nil {
		return reservationerrors.Validation("", "request body is required")
	}
	if err := v.validate.Struct(req); err != nil {
		return v.translate(err)
	}
	return nil
}

func (v *ReservationValidator) ValidateResource(resource *model.Resource) error {
	if resource == nil {
		return reservationerrors.Validation("", "request body is required")
	}
	if err := v.validate.Struct(resource); err != nil {
		return v.translate(err)
	}
	return nil
}

// ValidateID checks a path or query identifier such as a reservation or requester id.
func (v *ReservationValidator) ValidateID(field, id string) error {
	if err := v.validate.Var(id, "required,identifier"); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return reservationerrors.Validation(field, message(validationErrs[0]))
		}
		return reservationerrors.Validation(field, err.Error())
	}
	return nil
}

// translate reports the first failing field; the rest are logged at debug level.
func (v *ReservationValidator) translate(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return reservationerrors.Validation("", err.Error())
	}

	for _, fe := range validationErrs[1:] {
		v.logger.Debug("Additional validation failure", "field", fe.Field(), "tag", fe.Tag())
	}

	first := validationErrs[0]
	return reservationerrors.Validation(first.Field(), message(first))
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gtfield":
		return fmt.Sprintf("must be after %s", strings.ToLower(fe.Param()))
	case "identifier":
		return "must be 1-128 characters of letters, digits, '.', '_', ':', '@' or '-'"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

package validator

import (
	"fmt"
	"record-sync/models"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator wraps the go-playground validator
type Validator struct {
	validate *validator.Validate
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Tag     string `json:"tag"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (v ValidationErrors) Error() string {
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Message)
	}
	return strings.Join(messages, "; ")
}

// New creates a new validator instance
func New() *Validator {
	v := validator.New()

	// Register custom tag name function to use JSON tags
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterValidation("phonenumber", validatePhoneNumber)
	v.RegisterStructValidation(validateRecord, models.Record{})

	return &Validator{validate: v}
}

// Validate validates a struct and returns validation errors
func (v *Validator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var validationErrs ValidationErrors
	for _, err := range err.(validator.ValidationErrors) {
		validationErrs = append(validationErrs, ValidationError{
			Field:   err.Field(),
			Message: msgForTag(err),
			Tag:     err.Tag(),
		})
	}

	return validationErrs
}

// msgForTag returns a human-readable error message for a validation tag
func msgForTag(fe validator.FieldError) string {
	field := fe.Field()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "phonenumber":
		return fmt.Sprintf("%s must be a valid phone number", field)
	case "callstatus":
		return fmt.Sprintf("%s must be either answered, declined, or missed", field)
	case "messagestatus":
		return fmt.Sprintf("%s must be one of: sent, delivered, read, failed", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9\s\-().]{2,19}$`)

func validatePhoneNumber(fl validator.FieldLevel) bool {
	return phonePattern.MatchString(fl.Field().String())
}

var callStatuses = map[string]bool{
	models.CallAnswered: true,
	models.CallDeclined: true,
	models.CallMissed:   true,
}

var messageStatuses = map[string]bool{
	models.MessageSent:      true,
	models.MessageDelivered: true,
	models.MessageRead:      true,
	models.MessageFailed:    true,
}

// validateRecord enforces the per-kind constraints a single tag cannot
// express: calls need a call status, messages need content and a message
// status.
func validateRecord(sl validator.StructLevel) {
	rec := sl.Current().Interface().(models.Record)

	switch rec.Kind {
	case models.KindCall:
		if !callStatuses[rec.Status] {
			sl.ReportError(rec.Status, "status", "Status", "callstatus", "")
		}
	case models.KindMessage:
		if !messageStatuses[rec.Status] {
			sl.ReportError(rec.Status, "status", "Status", "messagestatus", "")
		}
		if strings.TrimSpace(rec.Content) == "" {
			sl.ReportError(rec.Content, "content", "Content", "required", "")
		}
	}
}

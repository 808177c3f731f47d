package transport

import (
	"fmt"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolbus/core"
	"github.com/trezcool/schoolbus/core/collection"
)

var (
	busStatusTag  = "busstatus"
	busStatusText = fmt.Sprintf("must be one of: %s", strings.Join(BusStatuses, ", "))

	driverStatusTag  = "driverstatus"
	driverStatusText = fmt.Sprintf("must be one of: %s", strings.Join(DriverStatuses, ", "))

	tripStatusTag  = "tripstatus"
	tripStatusText = fmt.Sprintf("must be one of: %s", strings.Join(TripStatuses, ", "))

	recordStatusTag  = "recordstatus"
	recordStatusText = fmt.Sprintf("must be one of: %s", strings.Join(RecordStatuses, ", "))

	resourceTag  = "resource"
	resourceText = fmt.Sprintf("must be one of: %s", strings.Join(AllResources, ", "))

	errInvalidPayload = errors.New("invalid payload")

	validate   = validator.New()
	translator ut.Translator
)

func init() {
	translator = core.NewTranslator()
	core.InitValidators(validate, translator)

	_ = validate.RegisterValidation(busStatusTag, oneOfValidation(BusStatuses))
	core.RegisterCustomTranslation(validate, translator, busStatusTag, busStatusText)
	_ = validate.RegisterValidation(driverStatusTag, oneOfValidation(DriverStatuses))
	core.RegisterCustomTranslation(validate, translator, driverStatusTag, driverStatusText)
	_ = validate.RegisterValidation(tripStatusTag, oneOfValidation(TripStatuses))
	core.RegisterCustomTranslation(validate, translator, tripStatusTag, tripStatusText)
	_ = validate.RegisterValidation(recordStatusTag, oneOfValidation(RecordStatuses))
	core.RegisterCustomTranslation(validate, translator, recordStatusTag, recordStatusText)
	_ = validate.RegisterValidation(resourceTag, oneOfValidation(AllResources))
	core.RegisterCustomTranslation(validate, translator, resourceTag, resourceText)
}

// Custom Validators

func oneOfValidation(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		val := fl.Field().String()
		for _, a := range allowed {
			if val == a {
				return true
			}
		}
		return false
	}
}

func statusTag(resource string) string {
	switch resource {
	case Buses:
		return busStatusTag
	case Drivers:
		return driverStatusTag
	case Trips:
		return tripStatusTag
	default:
		return recordStatusTag
	}
}

// validateStatus checks that status is valid for resource.
func validateStatus(resource, status string) error {
	err := validate.Var(status, "required,"+statusTag(resource))
	if err == nil {
		return nil
	}
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) && len(vErrs) > 0 {
		return core.NewValidationError(err, core.FieldError{Field: StatusField, Error: vErrs[0].Translate(translator)})
	}
	return err
}

func validateResource(resource string) error {
	if err := validate.Var(resource, resourceTag); err != nil {
		return errors.Wrap(ErrUnknownResource, resource)
	}
	return nil
}

// validatePayload checks a create payload (view shape) of resource.
func validatePayload(resource string, payload collection.Item) error {
	var fields []core.FieldError
	for _, f := range requiredFields[resource] {
		v, ok := payload[f]
		if s, isStr := v.(string); !ok || v == nil || (isStr && core.CleanString(s) == "") {
			fields = append(fields, core.FieldError{Field: f, Error: "this field is required"})
		}
	}
	if status, ok := payload[StatusField]; ok {
		s, _ := status.(string)
		if err := validateStatus(resource, s); err != nil {
			var vErr *core.ValidationError
			if errors.As(err, &vErr) {
				fields = append(fields, vErr.Fields...)
			}
		}
	}
	if len(fields) > 0 {
		return core.NewValidationError(errInvalidPayload, fields...)
	}
	return nil
}

func validateAssignment(resource, field string) error {
	for _, f := range assignableFields[resource] {
		if f == field {
			return nil
		}
	}
	return core.NewFieldValidationError(field, fmt.Sprintf("%s cannot be assigned on %s", field, resource))
}

package notification

import (
	"fmt"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/schoolbus/core"
)

var (
	kindTag  = "notifkind"
	kindText = fmt.Sprintf("kind must be one of: %s", strings.Join(AllKinds, ", "))

	tripIDTag  = "tripid"
	tripIDText = "trip_id is required for trip notifications"
)

// InitValidators registers the notification validators on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(kindTag, kindValidation)
	core.RegisterCustomTranslation(validate, translator, kindTag, kindText)

	validate.RegisterStructValidation(newNotificationStructValidation, NewNotification{})
	core.RegisterCustomTranslation(validate, translator, tripIDTag, tripIDText)
}

// Custom Validators

// kindValidation checks that the kind is one of AllKinds.
func kindValidation(fl validator.FieldLevel) bool {
	kind := fl.Field().String()
	for _, k := range AllKinds {
		if kind == k {
			return true
		}
	}
	return false
}

// newNotificationStructValidation requires a trip id on trip notifications.
func newNotificationStructValidation(sl validator.StructLevel) {
	nn := sl.Current().Interface().(NewNotification)
	if IsTripKind(nn.Kind) && nn.TripID == "" {
		sl.ReportError(nn.TripID, "trip_id", "TripID", tripIDTag, "")
	}
}

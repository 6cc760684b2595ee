package validation

import (
	"reflect"
	"regexp"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Regex patterns
var (
	// Allow letters, numbers, spaces, and common professional punctuation: . ' - / & ( ) ,
	nameRegex = regexp.MustCompile(`^[\p{L}0-9 .'/&(),-]+$`)

	// E164-like phone: optional +, digits 7-15 length, separators allowed
	phoneRegex = regexp.MustCompile(`^\+?[0-9][0-9 -]{5,18}[0-9]$`)

	// Business registration numbers: digits with optional dashes, e.g. 123-45-67890
	businessRegNoRegex = regexp.MustCompile(`^[0-9][0-9-]{4,30}[0-9]$`)
)

var timeType = reflect.TypeOf(time.Time{})

// New returns a validator with the custom rules registered.
func New() *validator.Validate {
	v := validator.New()
	UseJSONNames(v)
	RegisterValidators(v)
	return v
}

// RegisterValidators registers custom validators to the validator instance
func RegisterValidators(v *validator.Validate) {
	_ = v.RegisterValidation("valid_name", ValidName)
	_ = v.RegisterValidation("valid_phone", ValidPhone)
	_ = v.RegisterValidation("no_emoji", NoEmoji)
	_ = v.RegisterValidation("business_reg_no", BusinessRegNo)
	_ = v.RegisterValidation("not_future", NotFuture)
	_ = v.RegisterValidation("date_after", DateAfter)
	_ = v.RegisterValidation("file_name", AllowedFileName)
}

// ValidName validates that a string contains only valid name characters
func ValidName(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if val == "" {
		return true // Optional, use required if needed
	}
	return nameRegex.MatchString(val)
}

// ValidPhone validates a phone number structure
func ValidPhone(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if val == "" {
		return true
	}
	return phoneRegex.MatchString(val)
}

// NoEmoji validates that a string does not contain emoji characters
func NoEmoji(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	for _, r := range val {
		// Supplementary planes are mostly emoji/symbols
		if r > 0x1F000 {
			return false
		}
		if unicode.In(r, unicode.So, unicode.Sk) {
			return false
		}
	}
	return true
}

// BusinessRegNo validates the shape of a business registration number.
func BusinessRegNo(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if val == "" {
		return true
	}
	return businessRegNoRegex.MatchString(val)
}

// NotFuture rejects dates after today.
func NotFuture(fl validator.FieldLevel) bool {
	t, ok := timeValue(fl.Field())
	if !ok {
		return true
	}
	return !t.After(time.Now())
}

// DateAfter validates that the field is not before the sibling date named by
// the tag parameter. Either side being unset passes.
func DateAfter(fl validator.FieldLevel) bool {
	end, ok := timeValue(fl.Field())
	if !ok {
		return true
	}
	parent := fl.Parent()
	if parent.Kind() == reflect.Ptr {
		parent = parent.Elem()
	}
	start, ok := timeValue(parent.FieldByName(fl.Param()))
	if !ok {
		return true
	}
	return !end.Before(start)
}

func timeValue(v reflect.Value) (time.Time, bool) {
	if !v.IsValid() {
		return time.Time{}, false
	}
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return time.Time{}, false
		}
		v = v.Elem()
	}
	if v.Type() != timeType {
		return time.Time{}, false
	}
	t := v.Interface().(time.Time)
	if t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}

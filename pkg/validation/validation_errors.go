package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"profile-registry/pkg/apperror"

	"github.com/go-playground/validator/v10"
)

// FieldLabels maps json field names to user-friendly labels
var FieldLabels = map[string]string{
	// Envelope
	"display_name":  "Display name",
	"contact_email": "Contact email",
	"contact_phone": "Contact phone",
	"bio":           "Bio",
	"location_code": "Location",
	"attachments":   "Attachments",

	// Personal / company details
	"years_of_experience":          "Years of experience",
	"min":                          "Minimum hourly rate",
	"max":                          "Maximum hourly rate",
	"currency":                     "Currency",
	"text":                         "Rate note",
	"business_registration_number": "Business registration number",
	"representative_name":          "Representative name",
	"founded_on":                   "Founding date",
	"employee_count":               "Employee count",

	// Children
	"title":              "Title",
	"organization":       "Organization",
	"period_text":        "Period",
	"start_date":         "Start date",
	"end_date":           "End date",
	"description":        "Description",
	"name":               "Name",
	"status":             "Status",
	"issued_on":          "Issue date",
	"expires_on":         "Expiry date",
	"position":           "Position",
	"email":              "Email",
	"phone":              "Phone",
	"certification_type": "Certification type",
	"level":              "Level",
	"audit_type":         "Audit type",
	"scope":              "Scope",
	"group":              "Classification group",
	"key":                "Classification key",
	"sequence":           "Sequence",
	"storage_ref":        "Storage reference",
	"size":               "File size",

	// Review
	"decision": "Decision",
	"note":     "Note",
}

// UseJSONNames makes validator report json field names, so error fields
// line up with the payload the caller sent.
func UseJSONNames(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

// FormatValidationErrors converts validator.ValidationErrors to user-friendly messages
func FormatValidationErrors(err error) []string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{err.Error()}
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, formatSingleError(e))
	}
	return messages
}

// ToAppError wraps a validator failure as a validation AppError naming the
// first offending field path.
func ToAppError(err error) *apperror.AppError {
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return apperror.Validation("", err.Error())
	}
	messages := FormatValidationErrors(err)
	appErr := apperror.Validation(FieldPath(validationErrors[0]), messages[0])
	return appErr.WithDetails(messages...)
}

// FieldPath strips the root struct name from the error namespace,
// e.g. "DraftPayload.children.experiences[0].title" -> "children.experiences[0].title".
func FieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return ns
}

// formatSingleError formats a single validation error to a user-friendly message
func formatSingleError(e validator.FieldError) string {
	label := getFieldLabel(e.Field())
	path := FieldPath(e)
	param := e.Param()

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s (%s): is required", label, path)

	case "min", "gte":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("%s (%s): must be at least %s characters", label, path, param)
		}
		return fmt.Sprintf("%s (%s): must be at least %s", label, path, param)

	case "max", "lte":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("%s (%s): must be at most %s characters", label, path, param)
		}
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("%s (%s): must have at most %s entries", label, path, param)
		}
		return fmt.Sprintf("%s (%s): must be at most %s", label, path, param)

	case "len":
		return fmt.Sprintf("%s (%s): must be exactly %s characters", label, path, param)

	case "alpha":
		return fmt.Sprintf("%s (%s): must contain letters only", label, path)

	case "oneof":
		return fmt.Sprintf("%s (%s): must be one of: %s", label, path, strings.ReplaceAll(param, " ", ", "))

	case "email":
		return fmt.Sprintf("%s (%s): invalid email format", label, path)

	case "valid_name":
		return fmt.Sprintf("%s (%s): may only contain letters, digits, spaces and . ' - / & ( ) ,", label, path)

	case "valid_phone":
		return fmt.Sprintf("%s (%s): invalid phone number", label, path)

	case "no_emoji":
		return fmt.Sprintf("%s (%s): must not contain emoji or special symbols", label, path)

	case "business_reg_no":
		return fmt.Sprintf("%s (%s): must contain digits and dashes only", label, path)

	case "not_future":
		return fmt.Sprintf("%s (%s): must not be in the future", label, path)

	case "file_name":
		return fmt.Sprintf("%s (%s): must be a plain file name with an allowed extension (jpg, png, gif, webp, pdf, doc, docx, txt)", label, path)

	case "date_after":
		return fmt.Sprintf("%s (%s): must not be before %s", label, path, getFieldLabel(toSnake(param)))

	default:
		return fmt.Sprintf("%s (%s): failed validation (%s)", label, path, e.Tag())
	}
}

// getFieldLabel returns the user-friendly label for a field
func getFieldLabel(fieldName string) string {
	if label, ok := FieldLabels[fieldName]; ok {
		return label
	}
	return strings.ReplaceAll(fieldName, "_", " ")
}

// toSnake converts a Go field name (IssuedOn) to its json form (issued_on).
func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

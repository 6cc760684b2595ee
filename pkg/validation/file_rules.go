package validation

import (
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxFileSize caps the declared size of a referenced file (25 MiB).
const MaxFileSize = 25 << 20

// Allowed file extensions for attachments and certificate documents (strict whitelist)
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".txt":  true,
}

// AllowedFileName validates the extension of a referenced file name. The
// bytes live in external storage, so only the declared name is checked.
func AllowedFileName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if name == "" {
		return true
	}
	// Path components are rejected outright
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	safeIDRe   = regexp.MustCompile(`^[a-zA-Z0-9_\-\.@]+$`)
	safeRefRe  = regexp.MustCompile(`^[A-Za-z0-9_.:\-]{1,128}$`)
	currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)
	codeRe     = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("safe_id", validateSafeID)
		_ = v.RegisterValidation("safe_ref", validateSafeRef)
		_ = v.RegisterValidation("currency_code", validateCurrencyCode)
		_ = v.RegisterValidation("qr_code", validateQRCode)
	}
}

// validateSafeID allows alphanumeric, underscore, dash, dot and @.
func validateSafeID(fl validator.FieldLevel) bool {
	return safeIDRe.MatchString(fl.Field().String())
}

// validateSafeRef matches the payment reference alphabet. The reserved
// genesis reference is refused by the domain, not here.
func validateSafeRef(fl validator.FieldLevel) bool {
	return safeRefRe.MatchString(fl.Field().String())
}

// validateCurrencyCode accepts three upper-case letters (ISO-4217 shape).
func validateCurrencyCode(fl validator.FieldLevel) bool {
	return currencyRe.MatchString(fl.Field().String())
}

// validateQRCode accepts the unpadded base64url alphabet codes are written in.
func validateQRCode(fl validator.FieldLevel) bool {
	return codeRe.MatchString(fl.Field().String())
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer.
func SanitizeStruct(v any) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}

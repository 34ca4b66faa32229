// Package validation contains the logic for validating
// request data.
//
// It uses the `validator` library to enforce rules (like
// required fields or trusted image hosts) defined in struct tags
// and extracts validation errors into a format the client can
// understand.
package validation

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Trusted image hosts. Case and item images must start with one of these.
const (
	SteamImagePrefix   = "https://community.cloudflare.steamstatic.com/economy/image/"
	TrackerImagePrefix = "https://raw.githubusercontent.com/ByMykel/counter-strike-image-tracker/"
)

// TrustedImagePrefixes lists the accepted image URL prefixes.
var TrustedImagePrefixes = []string{SteamImagePrefix, TrackerImagePrefix}

// validate is shared by every payload. validator.Validate caches struct
// metadata and is safe for concurrent use.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report json field names ("image") instead of Go names ("Image").
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

	alternatives := make([]string, 0, len(TrustedImagePrefixes))
	for _, prefix := range TrustedImagePrefixes {
		alternatives = append(alternatives, "startswith="+prefix)
	}
	v.RegisterAlias("trustedimage", strings.Join(alternatives, "|"))

	return v
}

// Struct validates s against its `validate` tags.
func Struct(s any) error {
	return validate.Struct(s)
}

// Var validates a single value against a tag expression.
func Var(field any, tag string) error {
	return validate.Var(field, tag)
}

// IsTrustedImage reports whether url starts with a trusted prefix.
func IsTrustedImage(url string) bool {
	for _, prefix := range TrustedImagePrefixes {
		if strings.HasPrefix(url, prefix) {
			return true
		}
	}
	return false
}

package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// custom validation tags & texts
	alphaNumUnderTag   = "alphanum_"
	alphaNumUnderText  = "only alphanumeric characters and underscores are allowed"
	alphaNumUnderRegex = regexp.MustCompile(`^[\w\s]+$`)

	entityIDTag   = "entityid"
	entityIDText  = "must be a valid identifier"
	entityIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

	objectPathTag  = "objectpath"
	objectPathText = "must be a relative object path"

	imageTypeTag  = "imagetype"
	imageTypeText = "only png, jpeg and webp images are allowed"
	imageTypes    = map[string]bool{"image/png": true, "image/jpeg": true, "image/webp": true}

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"
)

// StructValidator validates structs according to their `validate` tags; *validator.Validate is one.
type StructValidator interface {
	Struct(s interface{}) error
}

// NewValidator returns a validator & its english translator, ready for use.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	InitValidators(validate, translator)
	return validate, translator
}

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(alphaNumUnderTag, alphaNumUnderValidation)
	RegisterCustomTranslation(validate, translator, alphaNumUnderTag, alphaNumUnderText)

	_ = validate.RegisterValidation(entityIDTag, entityIDValidation)
	RegisterCustomTranslation(validate, translator, entityIDTag, entityIDText)

	_ = validate.RegisterValidation(objectPathTag, objectPathValidation)
	RegisterCustomTranslation(validate, translator, objectPathTag, objectPathText)

	_ = validate.RegisterValidation(imageTypeTag, imageTypeValidation)
	RegisterCustomTranslation(validate, translator, imageTypeTag, imageTypeText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Custom Global Validators

// alphaNumUnderValidation only allows alphanumeric characters and underscores.
func alphaNumUnderValidation(fl validator.FieldLevel) bool {
	return alphaNumUnderRegex.MatchString(fl.Field().String())
}

// entityIDValidation allows the identifiers the backend hands out: numbers, uuids & slugs.
func entityIDValidation(fl validator.FieldLevel) bool {
	return entityIDRegex.MatchString(fl.Field().String())
}

// objectPathValidation rejects absolute paths & parent references.
func objectPathValidation(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

func imageTypeValidation(fl validator.FieldLevel) bool {
	return imageTypes[strings.ToLower(fl.Field().String())]
}

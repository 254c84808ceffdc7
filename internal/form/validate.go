// Package form binds and validates the console's HTML forms and turns them
// into backend submissions.
package form

import (
	"errors"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/datalytics/console/internal/auth"
	"github.com/datalytics/console/internal/batch"
)

var (
	Validate   *validator.Validate
	Translator ut.Translator

	// custom validation tags
	notBlankTag = "notblank"
	phoneTag    = "phone10"
	batchTag    = "batch"
	passwordTag = "password"
)

func init() {
	Validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	Translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(Validate, Translator)

	// Report errors under the HTML field name.
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("form")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = Validate.RegisterValidation(notBlankTag, notBlankValidation)
	_ = Validate.RegisterValidation(phoneTag, phoneValidation)
	_ = Validate.RegisterValidation(batchTag, batchValidation)
	_ = Validate.RegisterValidation(passwordTag, passwordValidation)

	registerCustomTranslations(notBlankTag, phoneTag, batchTag, passwordTag)
}

// a RegisterTranslationsFunc is required but the default translations are
// already registered, so a noop is passed.
func registerCustomTranslations(tags ...string) {
	registerFn := func(ut.Translator) error { return nil }
	for _, tag := range tags {
		_ = Validate.RegisterTranslation(tag, Translator, registerFn, translateCustomErrs)
	}
}

func translateCustomErrs(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return "this field cannot be blank"
	case phoneTag:
		return "Enter a valid 10-digit phone number"
	case batchTag:
		return "invalid batch"
	case passwordTag:
		if s, ok := fe.Value().(string); ok {
			if err := auth.ValidatePassword(s); err != nil {
				return err.Error()
			}
		}
		return "invalid password"
	default:
		return ""
	}
}

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

func phoneValidation(fl validator.FieldLevel) bool {
	str, ok := fl.Field().Interface().(string)
	return ok && len(digitsOnly(str)) == 10
}

func batchValidation(fl validator.FieldLevel) bool {
	str, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := batch.Parse(str)
	return err == nil
}

func passwordValidation(fl validator.FieldLevel) bool {
	str, ok := fl.Field().Interface().(string)
	return ok && auth.ValidatePassword(str) == nil
}

// Errors maps HTML field names to messages.
type Errors map[string]string

func (e Errors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return strings.Join(parts, "; ")
}

// First returns one message, preferring the field that comes first in
// order, so a page can show a single summary line.
func (e Errors) First(order ...string) string {
	for _, k := range order {
		if msg, ok := e[k]; ok {
			return msg
		}
	}
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return e[keys[0]]
}

// Check validates v and returns nil or Errors.
func Check(v any) Errors {
	err := Validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Errors{"": err.Error()}
	}
	out := make(Errors, len(verrs))
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; !seen {
			out[fe.Field()] = fe.Translate(Translator)
		}
	}
	return out
}

// Bind copies posted values into the string fields of dst (a pointer to a
// struct) by their form tag. Values are trimmed, except fields tagged
// `trim:"no"`.
func Bind(r *http.Request, dst any) {
	v := reflect.ValueOf(dst).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("form")
		if name == "" || name == "-" || f.Type.Kind() != reflect.String {
			continue
		}
		val := r.PostFormValue(name)
		if f.Tag.Get("trim") != "no" {
			val = strings.TrimSpace(val)
		}
		v.Field(i).SetString(val)
	}
}

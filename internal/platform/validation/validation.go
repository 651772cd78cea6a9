package validation

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/ayush/terminology-portal/internal/platform/fhir"
)

var validate *validator.Validate

// CodingSystems lists the catalog identifiers accepted by the coding_system tag.
// Both spellings of the ICD-11 Biomedicine and WHO Ayurveda systems exist in
// catalogs loaded from older exports.
var CodingSystems = []string{
	fhir.SystemNAMASTE,
	fhir.SystemICD11TM2,
	"ICD-11 Biomedicine",
	"WHO Ayurveda",
	fhir.SystemICD11Biomedicine,
	fhir.SystemWHOAyurveda,
}

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(jsonFieldName)
	validate.RegisterValidation("coding_system", validateCodingSystem)
	validate.RegisterValidation("json_present", validateJSONPresent)
	validate.RegisterValidation("notblank", validators.NotBlank)
}

// Struct validates s against its `validate` tags.
func Struct(s interface{}) error {
	return validate.Struct(s)
}

// IsCodingSystem reports whether system is one of CodingSystems.
func IsCodingSystem(system string) bool {
	for _, s := range CodingSystems {
		if s == system {
			return true
		}
	}
	return false
}

// Describe flattens validator errors into a single client-facing message.
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed on '%s=%s'", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

func validateCodingSystem(fl validator.FieldLevel) bool {
	return IsCodingSystem(fl.Field().String())
}

// validateJSONPresent rejects raw JSON fields that carry no value: empty,
// null, the empty string, false or zero.
func validateJSONPresent(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.Slice {
		return false
	}
	return !isJSONMissing(fl.Field().Bytes())
}

// isJSONMissing reports whether raw is absent or a JSON scalar that a
// submitting client uses to mean "no value".
func isJSONMissing(raw []byte) bool {
	if fhir.IsJSONNull(raw) {
		return true
	}
	t := bytes.TrimSpace(raw)
	switch string(t) {
	case `""`, "false":
		return true
	}
	if n, err := strconv.ParseFloat(string(t), 64); err == nil && n == 0 {
		return true
	}
	return false
}

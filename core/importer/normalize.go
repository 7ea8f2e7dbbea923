package importer

import (
	"math"
	"strconv"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/roster/core"
)

// Columns
const (
	ColEmail          = "email"
	ColPhoneNumber    = "phone_number"
	ColGivenName      = "given_name"
	ColFamilyName     = "family_name"
	ColStudentNumber  = "student_number"
	ColStudentNumbers = "student_numbers"
)

// columnRules are the validator tags applied to each normalized column.
var columnRules = map[string]string{
	ColEmail:          "required,simple_email",
	ColPhoneNumber:    "required,digits",
	ColGivenName:      "required",
	ColFamilyName:     "required",
	ColStudentNumber:  "required,student_number",
	ColStudentNumbers: "omitempty,dive,student_number",
}

// phoneNaN is what the numeric round trip yields for anything that is not a number.
const phoneNaN = "NaN"

type normalizer struct {
	validate   *validator.Validate
	translator ut.Translator
}

// normalize canonicalizes the columns of kind and validates them all, so that every failing field is reported at once.
func (n normalizer) normalize(kind *Kind, raw RawRow) *BatchRow {
	row := &BatchRow{Raw: raw}
	norm := new(NormalizedRow)
	errs := make(FieldErrorSet)

	for _, col := range kind.Columns {
		val := raw.Get(col)
		var value interface{}
		switch col {
		case ColEmail:
			norm.Email = core.CleanString(val, true /* lower */)
			value = norm.Email
		case ColPhoneNumber:
			norm.PhoneNumber = normalizePhone(val)
			value = norm.PhoneNumber
		case ColGivenName:
			norm.GivenName = core.CleanString(val)
			value = norm.GivenName
		case ColFamilyName:
			norm.FamilyName = core.CleanString(val)
			value = norm.FamilyName
		case ColStudentNumber:
			norm.StudentNumber = core.CleanString(val)
			value = norm.StudentNumber
		case ColStudentNumbers:
			norm.StudentNumbers = splitList(val)
			value = norm.StudentNumbers
		default:
			continue
		}
		if err := n.validate.Var(value, columnRules[col]); err != nil {
			errs[col] = n.message(err)
		}
	}

	if len(errs) > 0 {
		row.reject(ReasonInvalid, errs)
		return row
	}
	row.Normalized = norm
	return row
}

func (n normalizer) message(err error) string {
	if vErrs, ok := err.(validator.ValidationErrors); ok && len(vErrs) > 0 {
		return vErrs[0].Translate(n.translator)
	}
	return err.Error()
}

// normalizePhone round-trips the value through a float: "+8190123" becomes "8190123" and "1e3" becomes "1000".
// Leading zeros are lost and anything non numeric becomes "NaN", which the digits rule then rejects.
func normalizePhone(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return phoneNaN
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// splitList splits a comma separated cell. A blank cell is an empty list; blank items are kept so they fail validation.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = core.CleanString(p)
	}
	return parts
}

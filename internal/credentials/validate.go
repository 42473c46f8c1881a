package credentials

import (
	"errors"
	"reflect"
	"strings"

	"github.com/geocoder89/dinehub/internal/apperr"
	"github.com/geocoder89/dinehub/internal/domain/principal"
	"github.com/go-playground/validator/v10"
)

// ValidationError lists every field rule a principal failed.
type ValidationError struct {
	Fields []apperr.FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field+" "+f.Message)
	}
	return "invalid principal: " + strings.Join(names, "; ")
}

type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{v: v}
}

// Principal checks the shared fields, the profile that matches the kind and
// any staged password.
func (val *Validator) Principal(p *principal.Principal) error {
	var fields []apperr.FieldError

	if !p.Kind.Valid() {
		fields = append(fields, apperr.FieldError{Field: "kind", Rule: "oneof", Param: "user merchant", Message: apperr.ValidationMessage("oneof", "user merchant")})
	}

	fields = append(fields, val.check(p)...)

	switch p.Kind {
	case principal.KindUser:
		if p.User == nil {
			fields = append(fields, requiredField("user"))
		} else {
			fields = append(fields, val.check(p.User)...)
		}
	case principal.KindMerchant:
		if p.Merchant == nil {
			fields = append(fields, requiredField("restaurant"))
		} else {
			fields = append(fields, val.check(p.Merchant)...)
		}
	}

	if change, ok := p.PendingPassword(); ok {
		fields = append(fields, val.check(change)...)
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Password checks only the staged password.
func (val *Validator) Password(p *principal.Principal) error {
	change, ok := p.PendingPassword()
	if !ok {
		return nil
	}
	if fields := val.check(change); len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (val *Validator) check(s any) []apperr.FieldError {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []apperr.FieldError{{Field: "", Rule: "invalid", Message: err.Error()}}
	}

	out := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		param := fe.Param()
		if fe.Tag() == "eqfield" {
			param = "password"
		}
		out = append(out, apperr.FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Param:   param,
			Message: apperr.ValidationMessage(fe.Tag(), param),
		})
	}
	return out
}

func requiredField(name string) apperr.FieldError {
	return apperr.FieldError{Field: name, Rule: "required", Message: apperr.ValidationMessage("required", "")}
}

func tooLongField() []apperr.FieldError {
	return []apperr.FieldError{{Field: "password", Rule: "max", Param: "72 bytes", Message: apperr.ValidationMessage("max", "72 bytes")}}
}

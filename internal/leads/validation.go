package leads

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json field names so messages match the request payload.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs struct tag validation and returns the first failure as
// a ValidationError.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return newValidationError("", err.Error())
	}
	fe := fieldErrs[0]
	return newValidationError(fe.Field(), tagMessage(fe.Tag(), fe.Param()))
}

// validateVar checks a single value against a validator tag.
func validateVar(field string, value any, tag string) error {
	err := validate.Var(value, tag)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return newValidationError(field, tagMessage(fieldErrs[0].Tag(), fieldErrs[0].Param()))
	}
	return newValidationError(field, err.Error())
}

func tagMessage(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	case "max":
		return "must be at most " + param + " characters"
	default:
		return "is invalid"
	}
}

// normalizeNewLead trims input, validates required fields and applies the
// default source.
func normalizeNewLead(req CreateLeadRequest) (NewLead, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Source = strings.TrimSpace(req.Source)
	req.Note = strings.TrimSpace(req.Note)

	if err := validateStruct(req); err != nil {
		return NewLead{}, err
	}
	if req.Source == "" {
		req.Source = DefaultSource
	}
	return NewLead{
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Source: req.Source,
		Note:   req.Note,
	}, nil
}

// normalizePatch trims every supplied field and rejects blanks where a value
// is mandatory. An empty source resets to the default.
func normalizePatch(req UpdateLeadRequest) (LeadPatch, error) {
	var patch LeadPatch
	if req.Name != nil {
		v := strings.TrimSpace(*req.Name)
		if err := validateVar("name", v, "required"); err != nil {
			return LeadPatch{}, err
		}
		patch.Name = &v
	}
	if req.Email != nil {
		v := strings.TrimSpace(*req.Email)
		if err := validateVar("email", v, "required"); err != nil {
			return LeadPatch{}, err
		}
		patch.Email = &v
	}
	if req.Phone != nil {
		v := strings.TrimSpace(*req.Phone)
		patch.Phone = &v
	}
	if req.Source != nil {
		v := strings.TrimSpace(*req.Source)
		if v == "" {
			v = DefaultSource
		}
		patch.Source = &v
	}
	if req.Status != nil {
		status, err := ParseStatus(*req.Status)
		if err != nil {
			return LeadPatch{}, err
		}
		patch.Status = &status
	}
	if req.Note != nil {
		v := strings.TrimSpace(*req.Note)
		if err := validateVar("note", v, "required"); err != nil {
			return LeadPatch{}, err
		}
		patch.Note = &v
	}
	if patch.Empty() {
		return LeadPatch{}, newValidationError("", "no fields to update")
	}
	return patch, nil
}

// normalizeNoteText trims note text and rejects empty or whitespace input.
func normalizeNoteText(text string) (string, error) {
	v := strings.TrimSpace(text)
	if err := validateVar("text", v, "required"); err != nil {
		return "", err
	}
	return v, nil
}

// checkNewLead is the store-boundary guard for Create.
func checkNewLead(in NewLead) error {
	if strings.TrimSpace(in.Name) == "" {
		return newValidationError("name", "is required")
	}
	if strings.TrimSpace(in.Email) == "" {
		return newValidationError("email", "is required")
	}
	return nil
}

// checkPatch is the store-boundary guard for Update.
func checkPatch(p LeadPatch) error {
	if p.Status != nil && !p.Status.Valid() {
		return newValidationError("status", "must be one of new, contacted, converted")
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return newValidationError("name", "is required")
	}
	if p.Email != nil && strings.TrimSpace(*p.Email) == "" {
		return newValidationError("email", "is required")
	}
	if p.Note != nil && strings.TrimSpace(*p.Note) == "" {
		return newValidationError("note", "is required")
	}
	return nil
}

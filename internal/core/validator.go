package core

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

// Validator wraps go-playground/validator with the broadcast-specific tags.
type Validator struct {
	validate *validator.Validate
}

// NewValidator registers the custom tags:
//
//	broadcast_status  value is a known BroadcastStatus
//	actor_type        value is a known ActorType
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("broadcast_status", func(fl validator.FieldLevel) bool {
		_, ok := types.AllowedStatusTransitions[types.BroadcastStatus(fl.Field().String())]
		return ok
	})
	_ = v.RegisterValidation("actor_type", func(fl validator.FieldLevel) bool {
		switch types.ActorType(fl.Field().String()) {
		case types.ActorTypeUser, types.ActorTypeAPIKey, types.ActorTypeSystem:
			return true
		}
		return false
	})
	return &Validator{validate: v}
}

// ValidateStruct returns nil or a validation AppError. Missing required
// fields map to validation_missing_required_field; a bad status or actor
// type maps to validation_invalid_status. Offending fields are listed in
// the error details.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation failed", err)
	}

	code := types.ErrCodeValidationMissingField
	fields := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = fe.Tag()
		switch fe.Tag() {
		case "broadcast_status", "actor_type", "oneof":
			code = types.ErrCodeValidationInvalidStatus
		}
	}

	first := fieldErrs[0]
	return types.NewAppErrorWithDetails(code,
		fmt.Sprintf("field %s failed %s validation", first.Field(), first.Tag()),
		err, map[string]any{"fields": fields})
}

package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"pagepass/internal/circulation"
	"pagepass/internal/faults"
	"pagepass/internal/store"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// AddBookRequest creates a book owned by the caller.
type AddBookRequest struct {
	Title  string `json:"title" validate:"required,max=300"`
	Author string `json:"author,omitempty" validate:"max=200"`
}

// ConfirmRequest confirms one side of a handoff.
type ConfirmRequest struct {
	Role string `json:"role" validate:"required,oneof=giver receiver"`
}

// BatchConfirmItem names one handoff in a batch confirmation.
type BatchConfirmItem struct {
	HandoffID string `json:"handoffId" validate:"required,uuid"`
	Role      string `json:"role" validate:"required,oneof=giver receiver"`
}

// ConfirmBatchRequest confirms several handoffs independently.
type ConfirmBatchRequest struct {
	Items []BatchConfirmItem `json:"items" validate:"required,min=1,max=100,dive"`
}

// ConfirmWithRequest confirms every open handoff with one counterparty.
type ConfirmWithRequest struct {
	CounterpartyID string `json:"counterpartyId" validate:"required,max=200"`
}

// PassRequest declines the current offer on a book.
type PassRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// Validate checks request against its validate tags. Failures wrap
// faults.ErrInvalidArgument and name the offending JSON fields.
func Validate(request any) error {
	err := validate.Struct(request)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return faults.Wrap(faults.ErrInvalidArgument, "validate request", err.Error())
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, describeFieldError(fe))
	}
	return faults.Wrap(faults.ErrInvalidArgument, "validate request", strings.Join(parts, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "max":
		return fmt.Sprintf("%s exceeds %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s needs at least %s", field, fe.Param())
	case "uuid":
		return fmt.Sprintf("%s must be a handoff id", field)
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// ParseRole validates a handoff role name.
func ParseRole(value string) (store.HandoffRole, error) {
	role, ok := store.ParseRole(value)
	if !ok {
		return "", faults.Wrap(faults.ErrInvalidArgument, "parse role", fmt.Sprintf("unknown role %q; use giver or receiver", value))
	}
	return role, nil
}

// BatchItems converts a validated batch request for the coordinator.
func (r ConfirmBatchRequest) BatchItems() ([]circulation.BatchItem, error) {
	items := make([]circulation.BatchItem, 0, len(r.Items))
	for _, item := range r.Items {
		role, err := ParseRole(item.Role)
		if err != nil {
			return nil, err
		}
		items = append(items, circulation.BatchItem{HandoffID: strings.TrimSpace(item.HandoffID), Role: role})
	}
	return items, nil
}

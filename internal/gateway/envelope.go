package gateway

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"

	"github.com/felixgeelhaar/schoolctl/internal/errors"
)

// Meta carries pagination details on list endpoints.
type Meta struct {
	Total      int `json:"total" validate:"gte=0"`
	Page       int `json:"page" validate:"gte=0"`
	Limit      int `json:"limit" validate:"gte=0"`
	TotalPages int `json:"totalPages" validate:"gte=0"`
}

// Envelope is the wrapper every JSON endpoint responds with.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Meta    *Meta  `json:"meta,omitempty"`
	Message string `json:"message,omitempty"`
}

// rawEnvelope defers decoding of data until success is known.
type rawEnvelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    *Meta           `json:"meta"`
	Message string          `json:"message"`
}

// NewValidator returns the validator used at the gateway boundary.
func NewValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// DecodeEnvelope parses raw into an envelope of T. Data is only decoded when
// success is true; otherwise an *EnvelopeError carrying the message is
// returned. Decoded data is validated with v when v is not nil.
func DecodeEnvelope[T any](raw []byte, v *validator.Validate) (*Envelope[T], error) {
	var env rawEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrap(errors.ErrCodeGatewayDecode, "response is not a JSON envelope", err)
	}
	if env.Success == nil {
		return nil, &ValidationError{Type: "envelope", Fields: []FieldError{{Field: "success", Rule: "required"}}}
	}
	if !*env.Success {
		return nil, &EnvelopeError{Message: env.Message}
	}

	out := &Envelope[T]{
		Success: true,
		Meta:    env.Meta,
		Message: env.Message,
	}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &out.Data); err != nil {
			return nil, errors.Wrap(errors.ErrCodeGatewayDecode, fmt.Sprintf("failed to decode %s", typeName[T]()), err)
		}
	}

	if v != nil {
		if err := validatePayload(v, typeName[T](), out.Data); err != nil {
			return nil, err
		}
		if out.Meta != nil {
			if err := validatePayload(v, "meta", out.Meta); err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}

// validatePayload validates structs, pointers to structs and slices of structs.
func validatePayload(v *validator.Validate, name string, payload any) error {
	rv := reflect.ValueOf(payload)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		return collectFieldErrors(name, "", v.Struct(rv.Interface()))
	case reflect.Slice, reflect.Array:
		out := &ValidationError{Type: name}
		for i := 0; i < rv.Len(); i++ {
			item := rv.Index(i)
			for item.Kind() == reflect.Pointer {
				if item.IsNil() {
					break
				}
				item = item.Elem()
			}
			if item.Kind() != reflect.Struct {
				continue
			}
			err := collectFieldErrors(name, fmt.Sprintf("[%d].", i), v.Struct(item.Interface()))
			if err == nil {
				continue
			}
			var ve *ValidationError
			if !stderrors.As(err, &ve) {
				return err
			}
			out.Fields = append(out.Fields, ve.Fields...)
		}
		if len(out.Fields) > 0 {
			return out
		}
	}
	return nil
}

func collectFieldErrors(name, prefix string, err error) error {
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return errors.Wrap(errors.ErrCodeGatewayValidation, "failed to validate "+name, err)
	}

	out := &ValidationError{Type: name}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, FieldError{Field: prefix + fe.Namespace(), Rule: fe.Tag()})
	}
	return out
}

func typeName[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

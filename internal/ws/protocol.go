package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"travelmate/internal/domain"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type authPayload struct {
	Token string `json:"token" validate:"required"`
}

type sendMessagePayload struct {
	ReceiverID string             `json:"receiver_id" validate:"required,max=128"`
	Body       string             `json:"body"`
	Attachment *domain.Attachment `json:"attachment,omitempty"`
	ClientID   string             `json:"client_id,omitempty" validate:"omitempty,max=128"`
}

type typingPayload struct {
	ToUserID string `json:"to_user_id" validate:"required,max=128"`
	IsTyping bool   `json:"is_typing"`
}

type markReadPayload struct {
	OtherUserID string `json:"other_user_id" validate:"required,max=128"`
}

type locationPayload struct {
	Lat *float64 `json:"lat" validate:"required,min=-90,max=90"`
	Lng *float64 `json:"lng" validate:"required,min=-180,max=180"`
}

// decodePayload unmarshals raw into dst and runs the struct validators.
// Every failure is an ErrValidation.
func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing payload", domain.ErrValidation)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: malformed payload", domain.ErrValidation)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: invalid field %s", domain.ErrValidation, verrs[0].Field())
		}
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

// errorMessage is the client-facing text for err. Internal failures are not
// described beyond their code.
func errorMessage(err error) string {
	switch domain.ErrorCode(err) {
	case domain.CodeInternal:
		return "internal error"
	case domain.CodeUnavailable:
		return "temporarily unavailable, try again"
	default:
		return err.Error()
	}
}

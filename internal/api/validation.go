package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"surfpass/internal/constants"
)

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// requestError is a malformed or invalid request body.
type requestError struct {
	Field   string
	Message string
}

func (e *requestError) Error() string {
	return e.Message
}

func decodeAndValidate(body io.Reader, dst any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return &requestError{Message: "invalid JSON body"}
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return &requestError{Message: "invalid JSON body"}
	}

	if err := requestValidator.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			first := validationErrors[0]
			field := first.Field()
			switch first.Tag() {
			case "required":
				return &requestError{Field: field, Message: fmt.Sprintf("%s is required", field)}
			case "email":
				return &requestError{Field: field, Message: "invalid email format"}
			case "len":
				return &requestError{Field: field, Message: fmt.Sprintf("invalid %s length", field)}
			case "numeric":
				return &requestError{Field: field, Message: fmt.Sprintf("%s must contain only digits", field)}
			case "gt", "min":
				return &requestError{Field: field, Message: fmt.Sprintf("%s is too small", field)}
			case "max":
				return &requestError{Field: field, Message: fmt.Sprintf("%s is too long", field)}
			case "oneof":
				return &requestError{Field: field, Message: fmt.Sprintf("%s must be one of: %s", field, first.Param())}
			default:
				return &requestError{Field: field, Message: fmt.Sprintf("invalid %s", field)}
			}
		}

		return &requestError{Message: "invalid request payload"}
	}

	return nil
}

func invalidRequest(w http.ResponseWriter, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		writeFieldError(w, http.StatusBadRequest, constants.ErrCodeInvalidRequest, reqErr.Field, reqErr.Message)
		return
	}
	badRequest(w, err.Error())
}

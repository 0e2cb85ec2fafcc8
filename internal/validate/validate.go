// Package validate decodes and checks request bodies before they reach
// domain logic. Field constraints live in `binding` struct tags.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/linkup/linkup/backend/go-services/internal/apperr"
)

// Normalizer is implemented by request types that clean their own input
// (trim, lowercase) before validation.
type Normalizer interface {
	Normalize()
}

// JSON decodes the body into dst, normalizes and validates it. The returned
// error is always an *apperr.Error of kind Validation.
func JSON(c *gin.Context, dst interface{}) error {
	dec := json.NewDecoder(c.Request.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("Request body missing")
		}
		return apperr.Validation("Invalid request body")
	}
	return Struct(dst)
}

// Struct normalizes and validates an already populated value.
func Struct(dst interface{}) error {
	if n, ok := dst.(Normalizer); ok {
		n.Normalize()
	}
	if err := binding.Validator.ValidateStruct(dst); err != nil {
		return apperr.Validation(describe(err))
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid input"
	}
	fe := verrs[0]
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "Invalid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a valid id", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	}
	return fmt.Sprintf("%s is invalid", field)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// Param returns a path parameter after checking it is a UUID.
func Param(c *gin.Context, name string) (string, error) {
	v := c.Param(name)
	if err := binding.Validator.Engine().(*validator.Validate).Var(v, "required,uuid"); err != nil {
		return "", apperr.Validation(fmt.Sprintf("%s must be a valid id", name))
	}
	return v, nil
}

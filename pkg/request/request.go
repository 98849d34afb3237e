package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
)

// ErrInvalidBody is returned when the body is empty or not JSON.
var ErrInvalidBody = errors.New("The request's body is not a valid JSON string.")

// BindJSON decodes the request body into dst. Syntax errors and empty bodies
// become ErrInvalidBody; type mismatches are returned as they are.
func BindJSON(c *gin.Context, dst interface{}) error {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}
	var syntax *json.SyntaxError
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.As(err, &syntax) {
		return ErrInvalidBody
	}
	return err
}

// MissingField formats the message for an absent required field.
func MissingField(name string) string {
	return fmt.Sprintf("Required field `%s` is missing!", name)
}

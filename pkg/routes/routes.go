// Package routes holds shared HTTP request helpers.
package routes

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

// BindAndValidate binds the request body and enforces its validate tags
func BindAndValidate(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := validate.Struct(v); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

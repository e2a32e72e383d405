package controllers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/beego/beego/v2/server/web"
	apperrors "github.com/csipbllm/backend-go/internal/errors"
	"github.com/csipbllm/backend-go/internal/logger"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var (
	validate   = validator.New()
	translator = apperrors.NewErrorTranslator()
)

// BaseController provides helpers for consistent JSON responses.
type BaseController struct {
	web.Controller
}

// JSON writes a JSON response with the supplied HTTP status code.
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	if err := c.ServeJSON(); err != nil {
		logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

// JSONError writes an error envelope with message.
func (c *BaseController) JSONError(status int, message string) {
	c.JSON(status, map[string]interface{}{
		"error": message,
	})
}

// JSONAppError renders an AppError, translating plain errors first.
func (c *BaseController) JSONAppError(err error) {
	appErr := translator.Translate(err)
	if appErr.HTTPCode >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", c.Ctx.Request.URL.Path),
			zap.String("code", string(appErr.Code)),
			zap.Error(err))
	}

	body := map[string]interface{}{
		"error": appErr.Message,
		"code":  appErr.Code,
	}
	if appErr.Details != nil {
		body["details"] = appErr.Details
	}
	c.JSON(appErr.HTTPCode, body)
}

// requestBody returns the raw body whether or not beego copied it.
func (c *BaseController) requestBody() ([]byte, error) {
	if len(c.Ctx.Input.RequestBody) > 0 {
		return c.Ctx.Input.RequestBody, nil
	}
	if c.Ctx.Request.Body == nil {
		return nil, nil
	}
	return io.ReadAll(c.Ctx.Request.Body)
}

// ParseJSON decodes the request body into dst.
func (c *BaseController) ParseJSON(dst interface{}) error {
	body, err := c.requestBody()
	if err != nil {
		return apperrors.NewValidationError("Failed to read request body").WithCause(err)
	}
	if len(body) == 0 {
		return apperrors.NewValidationError("Request body is empty")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperrors.NewValidationError("Invalid JSON body").WithCause(err)
	}
	return nil
}

// Validate runs struct validation tags on v.
func (c *BaseController) Validate(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return translator.Translate(err)
	}
	return nil
}

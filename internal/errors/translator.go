package errors

import (
	"errors"
	"net"
	"strings"

	"github.com/csipbllm/backend-go/internal/llm"
	"github.com/go-playground/validator/v10"
	"github.com/golang-migrate/migrate/v4"
	"gorm.io/gorm"
)

// ErrorTranslator 错误转换器
type ErrorTranslator struct{}

// NewErrorTranslator 创建错误转换器
func NewErrorTranslator() *ErrorTranslator {
	return &ErrorTranslator{}
}

// Translate 将各种类型的错误转换为AppError
func (t *ErrorTranslator) Translate(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return t.translateValidationErrors(validationErrors)
	}

	var apiErr *llm.APIError
	switch {
	case errors.Is(err, llm.ErrTimeout):
		return NewExternalError(ErrCodeTimeout, "Model request timed out").WithCause(err)
	case errors.Is(err, llm.ErrUnavailable):
		return NewExternalError(ErrCodeExternalService, "Model service unavailable").WithCause(err)
	case errors.As(err, &apiErr):
		return NewExternalError(ErrCodeExternalService, "Model service error").WithCause(err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NewNotFoundError("Record").WithCause(err)
	}

	var migrateDirty migrate.ErrDirty
	if errors.As(err, &migrateDirty) {
		return NewSystemError(ErrCodeDatabaseError, "Database migration in dirty state").WithCause(err)
	}

	var netErr *net.OpError
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewExternalError(ErrCodeTimeout, "Operation timed out").WithCause(err)
		}
		return NewExternalError(ErrCodeExternalService, "Network error").WithCause(err)
	}

	if strings.Contains(err.Error(), "connection refused") {
		return NewExternalError(ErrCodeExternalService, "External service unavailable").WithCause(err)
	}
	return NewSystemError(ErrCodeInternalServer, "Internal server error").WithCause(err)
}

func (t *ErrorTranslator) translateValidationErrors(validationErrors validator.ValidationErrors) *AppError {
	details := make([]map[string]interface{}, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		details = append(details, map[string]interface{}{
			"field":   fieldError.Field(),
			"tag":     fieldError.Tag(),
			"message": t.getValidationErrorMessage(fieldError),
		})
	}
	return NewValidationError(t.getValidationErrorMessage(validationErrors[0])).
		WithDetails(map[string]interface{}{"errors": details})
}

func (t *ErrorTranslator) getValidationErrorMessage(fieldError validator.FieldError) string {
	field := fieldError.Field()
	switch fieldError.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + fieldError.Param()
	case "max":
		return field + " must be at most " + fieldError.Param()
	case "gte":
		return field + " must be greater than or equal to " + fieldError.Param()
	case "oneof":
		return field + " must be one of: " + fieldError.Param()
	default:
		return field + " is invalid"
	}
}

// Wrap 包装错误为AppError
func (t *ErrorTranslator) Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return NewSystemError(code, message).WithCause(err)
}

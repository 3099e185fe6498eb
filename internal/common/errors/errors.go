package errors

import (
	"fmt"
	"time"
)

// ErrorCode представляет код ошибки
type ErrorCode string

const (
	// Пользовательский ввод, шаг остаётся или поток прерывается
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

	// Предусловия: нет пользователя, нет кошелька, дисклеймер не принят
	ErrCodePrecondition ErrorCode = "PRECONDITION_FAILED"
	ErrCodeUserNotFound ErrorCode = "USER_NOT_FOUND"

	// Нарушение инварианта конечного автомата, фатально для запроса
	ErrCodeInvariant ErrorCode = "INVARIANT_VIOLATION"

	// Внешние сервисы
	ErrCodeStore       ErrorCode = "STORE_ERROR"
	ErrCodeTelegramAPI ErrorCode = "TELEGRAM_API_ERROR"
	ErrCodeLedger      ErrorCode = "LEDGER_ERROR"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// AppError представляет типизированную ошибку приложения
type AppError struct {
	Code      ErrorCode         `json:"code"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	UserID    int64             `json:"user_id,omitempty"`
	Cause     error             `json:"-"`
}

// Error возвращает строковое представление ошибки
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap возвращает причину ошибки
func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsValidation проверяет, является ли ошибка ошибкой валидации ввода
func (e *AppError) IsValidation() bool {
	return e.Code == ErrCodeValidation
}

// IsPrecondition проверяет, является ли ошибка ошибкой предусловия
func (e *AppError) IsPrecondition() bool {
	return e.Code == ErrCodePrecondition || e.Code == ErrCodeUserNotFound
}

// IsInvariant проверяет, является ли ошибка нарушением инварианта
func (e *AppError) IsInvariant() bool {
	return e.Code == ErrCodeInvariant
}

// IsExternal проверяет, вызвана ли ошибка внешним сервисом
func (e *AppError) IsExternal() bool {
	return e.Code == ErrCodeStore ||
		e.Code == ErrCodeTelegramAPI ||
		e.Code == ErrCodeLedger
}

// WithContext добавляет контекст к ошибке
func (e *AppError) WithContext(key, value string) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithUserID добавляет ID пользователя к ошибке
func (e *AppError) WithUserID(userID int64) *AppError {
	e.UserID = userID
	return e
}

// New создает новую ошибку приложения
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap оборачивает существующую ошибку
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

// Wrapf оборачивает существующую ошибку с форматированием
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// NewUserNotFoundError создает ошибку "пользователь не найден"
func NewUserNotFoundError(userID int64) *AppError {
	return New(ErrCodeUserNotFound, fmt.Sprintf("User not found: %d", userID)).
		WithUserID(userID)
}

// NewInvariantError создает ошибку нарушения инварианта конечного автомата
func NewInvariantError(message string) *AppError {
	return New(ErrCodeInvariant, message)
}

// NewStoreError создает ошибку хранилища состояния
func NewStoreError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeStore, fmt.Sprintf("Store operation failed: %s", operation)).
		WithContext("operation", operation)
}

// NewTelegramAPIError создает ошибку Telegram API
func NewTelegramAPIError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeTelegramAPI, fmt.Sprintf("Telegram API operation failed: %s", operation)).
		WithContext("operation", operation)
}

// NewLedgerError создает ошибку обращения к леджеру
func NewLedgerError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeLedger, fmt.Sprintf("Ledger operation failed: %s", operation)).
		WithContext("operation", operation)
}

// AsAppError приводит ошибку к AppError
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if err != nil {
		appErr, _ = err.(*AppError)
	}
	return appErr, appErr != nil
}

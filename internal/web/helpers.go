package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/a3tai/order-intake/internal/auth"
	"github.com/a3tai/order-intake/internal/intake"
	"github.com/a3tai/order-intake/internal/pdf"
	"github.com/a3tai/order-intake/internal/rules"
)

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var parseErr *rules.ParseError
	switch {
	case errors.As(err, &parseErr),
		errors.Is(err, rules.ErrInvalidCustomer),
		errors.Is(err, pdf.ErrEmptyDocument),
		errors.Is(err, pdf.ErrNotPDF):
		return http.StatusBadRequest
	case errors.Is(err, rules.ErrCustomerNotFound):
		return http.StatusNotFound
	case errors.Is(err, rules.ErrCustomerConflict):
		return http.StatusConflict
	case errors.Is(err, pdf.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, intake.ErrNoText):
		return http.StatusUnprocessableEntity
	case errors.Is(err, auth.ErrAuthenticationFailed):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// userMessage turns an error into text for the page.
func userMessage(err error) string {
	var parseErr *rules.ParseError
	switch {
	case errors.As(err, &parseErr):
		if parseErr.Key != "" {
			return "JSON 解析失敗：" + parseErr.Key + "：" + parseErr.Reason
		}
		return "JSON 解析失敗：" + parseErr.Reason
	case errors.Is(err, rules.ErrCustomerConflict):
		return "客戶已存在"
	case errors.Is(err, rules.ErrCustomerNotFound):
		return "找不到此客戶"
	case errors.Is(err, rules.ErrInvalidCustomer):
		return "請輸入有效的客戶名稱"
	case errors.Is(err, auth.ErrAuthenticationFailed):
		return "密碼錯誤"
	case errors.Is(err, intake.ErrNoText):
		return "⚠ 無法擷取到內容，請換高畫質 PDF"
	case errors.Is(err, pdf.ErrNotPDF), errors.Is(err, pdf.ErrEmptyDocument):
		return "請上傳 PDF 檔"
	case errors.Is(err, pdf.ErrTooLarge):
		return "檔案太大"
	default:
		return err.Error()
	}
}

package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"gigflow/marketplace"
)

// 回應中的錯誤代碼
const (
	codeValidation   = "validation"
	codeGigNotOpen   = "gig_not_open"
	codeSelfBid      = "self_bid"
	codeDuplicateBid = "duplicate_bid"
	codeConflict     = "conflict"
	codeForbidden    = "forbidden"
	codeNotFound     = "not_found"
	codeTransient    = "transient"
	codeUnauthorized = "unauthorized"
	codeInternal     = "internal"
)

// 呼叫端在完成前中斷連線，沿用 nginx 的慣例
const statusClientClosedRequest = 499

type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Message: message, Code: code})
}

// errorStatus 將 marketplace 的錯誤對應到 HTTP 狀態與錯誤代碼
func errorStatus(err error) (int, string, string) {
	switch {
	case errors.Is(err, marketplace.ErrValidation):
		return http.StatusBadRequest, codeValidation, validationMessage(err)
	case errors.Is(err, marketplace.ErrSelfBid):
		return http.StatusBadRequest, codeSelfBid, marketplace.ErrSelfBid.Error()
	case errors.Is(err, marketplace.ErrGigNotOpen):
		return http.StatusConflict, codeGigNotOpen, marketplace.ErrGigNotOpen.Error()
	case errors.Is(err, marketplace.ErrDuplicateBid):
		return http.StatusConflict, codeDuplicateBid, marketplace.ErrDuplicateBid.Error()
	case errors.Is(err, marketplace.ErrConflict):
		return http.StatusConflict, codeConflict, marketplace.ErrConflict.Error()
	case errors.Is(err, marketplace.ErrForbidden):
		return http.StatusForbidden, codeForbidden, "Not authorized"
	case errors.Is(err, marketplace.ErrNotFound):
		return http.StatusNotFound, codeNotFound, "Not found"
	case marketplace.KindOf(err) == marketplace.KindCanceled:
		return statusClientClosedRequest, codeTransient, "Request canceled"
	case marketplace.Retryable(err):
		return http.StatusServiceUnavailable, codeTransient, marketplace.ErrTransient.Error()
	default:
		return http.StatusInternalServerError, codeInternal, "Internal server error"
	}
}

// validationMessage 取出驗證錯誤的細節，不包含內部的操作名稱
func validationMessage(err error) string {
	var verr *marketplace.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	return marketplace.ErrValidation.Error()
}

// respondError 記錄錯誤並回應
func (impl *ServerImpl) respondError(c *gin.Context, op string, err error) {
	status, code, message := errorStatus(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		impl.logger.Error("Request failed", slog.String("op", op), slog.Any("error", err))
	} else {
		impl.logger.Debug("Request rejected", slog.String("op", op), slog.String("code", code), slog.Any("error", err))
	}
	if status == http.StatusServiceUnavailable {
		impl.logger.Warn("Request failed with transient error", slog.String("op", op), slog.Any("error", err))
		c.Header("Retry-After", "1")
	}
	abortWithError(c, status, code, message)
}

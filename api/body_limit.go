package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// 請求內容的預設上限，足以容納描述與留言的最大長度
const defaultMaxBodyBytes int64 = 64 << 10

type BodyTooLargeError struct {
	MaxBytes int64
}

func (e *BodyTooLargeError) Error() string {
	return fmt.Sprintf("request body exceeds %d bytes", e.MaxBytes)
}

// newLimitedBody 限制讀取的最大長度，超過時回傳 BodyTooLargeError
func newLimitedBody(body io.ReadCloser, maxBytes int64) io.ReadCloser {
	return &limitedBody{ReadCloser: body, max: maxBytes, remain: maxBytes}
}

type limitedBody struct {
	io.ReadCloser
	max    int64 // 限制的總長度
	remain int64 // 還可以讀取的長度
}

func (r *limitedBody) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	// 只需多讀 1 byte 就能判斷是否超過上限
	if int64(len(p)) > r.remain+1 {
		p = p[:r.remain+1]
	}
	n, err := r.ReadCloser.Read(p)
	if int64(n) <= r.remain {
		r.remain -= int64(n)
		return n, err
	}
	n = int(r.remain)
	r.remain = 0
	return n, &BodyTooLargeError{MaxBytes: r.max}
}

// BodyLimit 限制請求內容的大小
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = newLimitedBody(c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// bindJSON 解析 JSON 內容，失敗時直接回應錯誤
func bindJSON(c *gin.Context, v any) bool {
	err := c.ShouldBindJSON(v)
	if err == nil {
		return true
	}
	var tooLarge *BodyTooLargeError
	if errors.As(err, &tooLarge) {
		abortWithError(c, http.StatusRequestEntityTooLarge, codeValidation, tooLarge.Error())
		return false
	}
	abortWithError(c, http.StatusBadRequest, codeValidation, "Invalid request body")
	return false
}

package marketplace

import (
	"context"
	"errors"
)

var (
	// 輸入資料不合法，沒有任何副作用
	ErrValidation = errors.New("validation failed")
	// 參照的案件或投標不存在
	ErrNotFound = errors.New("gig or bid not found")
	// 操作者不是案件的發案者
	ErrForbidden = errors.New("acting user is not the gig owner")

	// 投標前置條件不成立
	ErrGigNotOpen   = errors.New("gig is not open for bidding")
	ErrSelfBid      = errors.New("cannot bid on your own gig")
	ErrDuplicateBid = errors.New("you have already placed a bid on this gig")

	// 雇用時案件已經被其他請求指派，屬於正常的競爭結果，不會重試
	ErrConflict = errors.New("gig is no longer available")
	// 儲存層暫時性衝突重試次數耗盡，呼叫端可以稍後重送請求
	ErrTransient = errors.New("hire could not be completed, please retry")
	// 交易內發現資料與不變條件不符，整個交易已回滾
	ErrInconsistentState = errors.New("gig and bid state are inconsistent")

	// ErrStorageConflict 是 Store 回報的可重試衝突，只會在 Hirer 內部被處理
	ErrStorageConflict = errors.New("storage write conflict")
)

// ValidationError 描述哪些輸入欄位不合法
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error() + ": " + e.Detail
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Kind 是呼叫端用來決定如何呈現錯誤的穩定分類
type Kind string

const (
	KindNone       Kind = ""
	KindValidation Kind = "validation"
	KindAdmission  Kind = "admission"
	KindConflict   Kind = "conflict"
	KindTransient  Kind = "transient"
	KindForbidden  Kind = "forbidden"
	KindNotFound   Kind = "not_found"
	KindCanceled   Kind = "canceled"
	KindInternal   Kind = "internal"
)

// KindOf 將錯誤對應到分類
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrGigNotOpen), errors.Is(err, ErrSelfBid), errors.Is(err, ErrDuplicateBid):
		return KindAdmission
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrTransient), errors.Is(err, ErrStorageConflict):
		return KindTransient
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}

// Retryable 表示呼叫端是否可以直接重送同一個請求
func Retryable(err error) bool {
	return KindOf(err) == KindTransient
}

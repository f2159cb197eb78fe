package marketplace

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"gigflow/models"
)

// HiredEvent 是推送給得標者的事件名稱
const HiredEvent = "hired"

// HireNotification 是通知得標者的內容
type HireNotification struct {
	Text  string    `json:"text" msgpack:"text"`
	GigID uuid.UUID `json:"gigId" msgpack:"gigId"`
	BidID uuid.UUID `json:"bidId" msgpack:"bidId"`

	// 接收通知的頻道，不包含在訊息內容中
	Channel string `json:"-" msgpack:"-"`
}

// Notifier 負責在雇用提交之後通知得標者
// 通知是盡力而為的，失敗不會影響雇用結果
type Notifier interface {
	NotifyHired(ctx context.Context, notification HireNotification) error
}

// UserChannel 回傳使用者的通知頻道
func UserChannel(userID uuid.UUID) string {
	return "user_" + userID.String()
}

// NewHireNotification 依照已提交的雇用結果建立通知
func NewHireNotification(bid models.Bid) HireNotification {
	title := ""
	if bid.Gig != nil {
		title = bid.Gig.Title
	}
	return HireNotification{
		Text:    fmt.Sprintf("You have been hired for %s!", title),
		GigID:   bid.GigID,
		BidID:   bid.ID,
		Channel: UserChannel(bid.BidderID),
	}
}

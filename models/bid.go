package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Bid 代表對案件的投標紀錄
// 記錄投標者、報價、留言以及投標狀態，同一個投標者對同一個案件只能有一筆投標
type Bid struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;<-:create"`
	GigID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_bids_gig_bidder;<-:create"`
	BidderID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_bids_gig_bidder;index;<-:create"`
	Message  string    `gorm:"type:text;not null;<-:create"`
	Price    uint64    `gorm:"type:bigint;not null;<-:create"`
	Status   BidStatus `gorm:"type:varchar(16);not null;default:pending;index"`

	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`

	// 外鍵關聯
	Gig *Gig `gorm:"foreignKey:GigID"`
}

// BeforeCreate 產生 UUIDv7 並確保新投標一定是 pending
func (b *Bid) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		b.ID = id
	}
	b.Status = BidPending
	return nil
}

// All 回傳所有需要建立資料表的模型，順序即為建立順序
func All() []any {
	return []any{&Gig{}, &Bid{}}
}

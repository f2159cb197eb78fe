package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Gig 代表平台上的案件
// 包含案件資訊、預算、發案者以及目前的狀態
// 狀態只會由雇用流程從 open 轉成 assigned，且轉換後狀態與發案者都不會再變動
type Gig struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey;<-:create"`
	OwnerID     uuid.UUID  `gorm:"type:uuid;not null;index;<-:create"`
	Title       string     `gorm:"type:varchar(255);not null;<-:create"`
	Description string     `gorm:"type:text;not null;<-:create"`
	Budget      uint64     `gorm:"type:bigint;not null;<-:create"`
	Status      GigStatus  `gorm:"type:varchar(16);not null;default:open;index"`
	HiredBidID  *uuid.UUID `gorm:"type:uuid"`
	CreatedAt   time.Time  `gorm:"not null;index"`
	UpdatedAt   time.Time  `gorm:"not null"`

	// 外鍵關聯
	Bids []Bid `gorm:"foreignKey:GigID"`
}

// BeforeCreate 產生 UUIDv7 並確保新案件一定是 open
func (g *Gig) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		g.ID = id
	}
	g.Status = GigOpen
	g.HiredBidID = nil
	return nil
}

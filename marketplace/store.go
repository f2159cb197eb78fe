package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gigflow/adapters/database"
	"gigflow/models"
)

// Store 是案件與投標的唯一資料來源
// 只有 CommitHire 能改變案件與投標的狀態，CreateBid 只會新增紀錄
type Store interface {
	CreateGig(ctx context.Context, gig *models.Gig) error
	FindGig(ctx context.Context, id uuid.UUID) (models.Gig, error)
	ListGigs(ctx context.Context, filter GigFilter) ([]models.Gig, error)

	CreateBid(ctx context.Context, bid *models.Bid) error
	FindBid(ctx context.Context, id uuid.UUID) (models.Bid, error)
	BidExists(ctx context.Context, gigID, bidderID uuid.UUID) (bool, error)
	ListBidsByGig(ctx context.Context, gigID uuid.UUID) ([]models.Bid, error)
	ListBidsByBidder(ctx context.Context, bidderID uuid.UUID) ([]models.Bid, error)

	// CommitHire 在同一個交易內
	//  1. 以條件式更新將案件從 open 改成 assigned
	//  2. 將選中的投標改成 hired
	//  3. 將同案件其他 pending 投標改成 rejected
	// 條件式更新沒有影響任何資料時回傳 (false, nil)，代表競爭失敗
	CommitHire(ctx context.Context, gigID, bidID uuid.UUID) (bool, error)
}

// GigFilter 是案件列表的查詢條件
type GigFilter struct {
	Search string
	Status *models.GigStatus
	Limit  int
}

type gormStore struct {
	db *gorm.DB
}

// NewStore 建立以 gorm 實作的 Store
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// wrapStoreError 將儲存層錯誤轉成 marketplace 的錯誤分類
func wrapStoreError(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("[%s] %w", op, ErrNotFound)
	case database.IsTransient(err):
		return fmt.Errorf("[%s] %w, err=%w", op, ErrStorageConflict, err)
	default:
		return fmt.Errorf("[%s] Fail to access store, err=%w", op, err)
	}
}

func (s *gormStore) CreateGig(ctx context.Context, gig *models.Gig) error {
	const op = "Store.CreateGig"
	if result := s.db.WithContext(ctx).Create(gig); result.Error != nil {
		return wrapStoreError(op, result.Error)
	}
	return nil
}

func (s *gormStore) FindGig(ctx context.Context, id uuid.UUID) (models.Gig, error) {
	const op = "Store.FindGig"
	gig := models.Gig{}
	if result := s.db.WithContext(ctx).Where("id = ?", id).First(&gig); result.Error != nil {
		return models.Gig{}, wrapStoreError(op, result.Error)
	}
	return gig, nil
}

func (s *gormStore) ListGigs(ctx context.Context, filter GigFilter) ([]models.Gig, error) {
	const op = "Store.ListGigs"
	query := s.db.WithContext(ctx).Model(&models.Gig{})
	//  - status
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	//  - search (標題，不分大小寫)
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	//  - limit
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	query = query.Order(clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: "created_at"}, Desc: true},
		{Column: clause.Column{Name: "id"}, Desc: true},
	}})
	var gigs []models.Gig
	if result := query.Find(&gigs); result.Error != nil {
		return nil, wrapStoreError(op, result.Error)
	}
	return gigs, nil
}

func (s *gormStore) CreateBid(ctx context.Context, bid *models.Bid) error {
	const op = "Store.CreateBid"
	if result := s.db.WithContext(ctx).Create(bid); result.Error != nil {
		if database.IsUniqueViolation(result.Error) {
			return fmt.Errorf("[%s] %w", op, ErrDuplicateBid)
		}
		return wrapStoreError(op, result.Error)
	}
	return nil
}

func (s *gormStore) FindBid(ctx context.Context, id uuid.UUID) (models.Bid, error) {
	const op = "Store.FindBid"
	bid := models.Bid{}
	if result := s.db.WithContext(ctx).Preload("Gig").Where("id = ?", id).First(&bid); result.Error != nil {
		return models.Bid{}, wrapStoreError(op, result.Error)
	}
	return bid, nil
}

func (s *gormStore) BidExists(ctx context.Context, gigID, bidderID uuid.UUID) (bool, error) {
	const op = "Store.BidExists"
	var count int64
	if result := s.db.WithContext(ctx).Model(&models.Bid{}).Where("gig_id = ? AND bidder_id = ?", gigID, bidderID).Count(&count); result.Error != nil {
		return false, wrapStoreError(op, result.Error)
	}
	return count > 0, nil
}

func (s *gormStore) ListBidsByGig(ctx context.Context, gigID uuid.UUID) ([]models.Bid, error) {
	const op = "Store.ListBidsByGig"
	var bids []models.Bid
	if result := s.db.WithContext(ctx).
		Where("gig_id = ?", gigID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: true}).
		Find(&bids); result.Error != nil {
		return nil, wrapStoreError(op, result.Error)
	}
	return bids, nil
}

func (s *gormStore) ListBidsByBidder(ctx context.Context, bidderID uuid.UUID) ([]models.Bid, error) {
	const op = "Store.ListBidsByBidder"
	var bids []models.Bid
	if result := s.db.WithContext(ctx).
		Preload("Gig").
		Where("bidder_id = ?", bidderID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: true}).
		Find(&bids); result.Error != nil {
		return nil, wrapStoreError(op, result.Error)
	}
	return bids, nil
}

func (s *gormStore) CommitHire(ctx context.Context, gigID, bidID uuid.UUID) (bool, error) {
	const op = "Store.CommitHire"
	// 所有轉換都要先通過轉換表
	assign, err := models.NewGigTransition(models.GigOpen, models.GigAssigned)
	if err != nil {
		return false, fmt.Errorf("[%s] %w", op, err)
	}
	hire, err := models.NewBidTransition(models.BidPending, models.BidHired)
	if err != nil {
		return false, fmt.Errorf("[%s] %w", op, err)
	}
	reject, err := models.NewBidTransition(models.BidPending, models.BidRejected)
	if err != nil {
		return false, fmt.Errorf("[%s] %w", op, err)
	}

	won := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 條件式寫入: 只有在案件仍然是 open 時才會更新，由資料庫保證只有一個請求能成功
		result := tx.Model(&models.Gig{}).
			Where("id = ? AND status = ?", gigID, assign.From()).
			Updates(map[string]any{
				"status":       assign.To(),
				"hired_bid_id": bidID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		// 被選中的投標必須仍是 pending 且屬於這個案件，否則整個交易回滾
		result = tx.Model(&models.Bid{}).
			Where("id = ? AND gig_id = ? AND status = ?", bidID, gigID, hire.From()).
			Update("status", hire.To())
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != 1 {
			return fmt.Errorf("%w: bid %s is not pending on gig %s", ErrInconsistentState, bidID, gigID)
		}

		// 同案件的其他投標一律拒絕
		result = tx.Model(&models.Bid{}).
			Where("gig_id = ? AND id <> ? AND status = ?", gigID, bidID, reject.From()).
			Update("status", reject.To())
		if result.Error != nil {
			return result.Error
		}
		won = true
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInconsistentState) {
			return false, fmt.Errorf("[%s] %w", op, err)
		}
		return false, wrapStoreError(op, err)
	}
	return won, nil
}

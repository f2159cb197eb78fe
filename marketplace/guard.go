package marketplace

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"gigflow/models"
)

// PlaceBidInput 是投標的輸入資料
type PlaceBidInput struct {
	GigID    uuid.UUID `validate:"required"`
	BidderID uuid.UUID `validate:"required"`
	Message  string    `validate:"required,max=4000"`
	Price    uint64    `validate:"gt=0,lte=9223372036854775807"`
}

// PostGigInput 是發案的輸入資料
type PostGigInput struct {
	OwnerID     uuid.UUID `validate:"required"`
	Title       string    `validate:"required,max=255"`
	Description string    `validate:"required,max=10000"`
	Budget      uint64    `validate:"lte=9223372036854775807"`
}

// AdmissionGuard 負責建立案件與投標，投標前會檢查所有前置條件
// 它只會新增資料，不會修改任何既有案件或投標的狀態
type AdmissionGuard struct {
	store     Store
	validate  *validator.Validate
	sanitizer *bluemonday.Policy
}

func NewAdmissionGuard(store Store) *AdmissionGuard {
	return &AdmissionGuard{
		store:     store,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// 解碼後的實體可能再組成標籤，最多重複處理的次數
const maxCleanPasses = 4

// clean 移除 HTML 標籤並修剪前後空白，反覆處理直到結果不再改變
func (g *AdmissionGuard) clean(s string) string {
	s = strings.TrimSpace(s)
	for i := 0; i < maxCleanPasses; i++ {
		next := html.UnescapeString(g.sanitizer.Sanitize(s))
		if next == s {
			return strings.TrimSpace(s)
		}
		s = next
	}
	// 仍未穩定時保留跳脫後的內容
	return strings.TrimSpace(g.sanitizer.Sanitize(s))
}

func (g *AdmissionGuard) check(input any) error {
	err := g.validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
		}
		return &ValidationError{Detail: strings.Join(fields, ", ")}
	}
	return &ValidationError{Detail: err.Error()}
}

// PostGig 建立新的 open 案件
func (g *AdmissionGuard) PostGig(ctx context.Context, input PostGigInput) (models.Gig, error) {
	const op = "AdmissionGuard.PostGig"
	input.Title = g.clean(input.Title)
	input.Description = g.clean(input.Description)
	if err := g.check(input); err != nil {
		return models.Gig{}, fmt.Errorf("[%s] %w", op, err)
	}

	gig := models.Gig{
		OwnerID:     input.OwnerID,
		Title:       input.Title,
		Description: input.Description,
		Budget:      input.Budget,
	}
	if err := g.store.CreateGig(ctx, &gig); err != nil {
		return models.Gig{}, fmt.Errorf("[%s] %w", op, err)
	}
	return gig, nil
}

// PlaceBid 檢查前置條件後建立 pending 投標
//  1. 輸入資料驗證
//  2. 案件存在且仍然是 open
//  3. 投標者不是發案者
//  4. 投標者尚未對此案件投標
//
// 檢查與寫入之間不會鎖定案件，同時送出的重複投標由唯一索引擋下
func (g *AdmissionGuard) PlaceBid(ctx context.Context, input PlaceBidInput) (models.Bid, error) {
	const op = "AdmissionGuard.PlaceBid"
	input.Message = g.clean(input.Message)
	if err := g.check(input); err != nil {
		return models.Bid{}, fmt.Errorf("[%s] %w", op, err)
	}

	gig, err := g.store.FindGig(ctx, input.GigID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("[%s] %w", op, err)
	}
	if gig.Status != models.GigOpen {
		return models.Bid{}, fmt.Errorf("[%s] %w", op, ErrGigNotOpen)
	}
	if gig.OwnerID == input.BidderID {
		return models.Bid{}, fmt.Errorf("[%s] %w", op, ErrSelfBid)
	}

	exists, err := g.store.BidExists(ctx, input.GigID, input.BidderID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("[%s] %w", op, err)
	}
	if exists {
		return models.Bid{}, fmt.Errorf("[%s] %w", op, ErrDuplicateBid)
	}

	bid := models.Bid{
		GigID:    input.GigID,
		BidderID: input.BidderID,
		Message:  input.Message,
		Price:    input.Price,
	}
	if err := g.store.CreateBid(ctx, &bid); err != nil {
		return models.Bid{}, fmt.Errorf("[%s] %w", op, err)
	}
	return bid, nil
}

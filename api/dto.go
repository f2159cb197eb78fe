package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"gigflow/models"
)

type GigView struct {
	ID          uuid.UUID        `json:"id"`
	OwnerID     uuid.UUID        `json:"ownerId"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Budget      uint64           `json:"budget"`
	Status      models.GigStatus `json:"status"`
	HiredBidID  *uuid.UUID       `json:"hiredBidId,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

type BidView struct {
	ID        uuid.UUID        `json:"id"`
	GigID     uuid.UUID        `json:"gigId"`
	BidderID  uuid.UUID        `json:"bidderId"`
	Message   string           `json:"message"`
	Price     uint64           `json:"price"`
	Status    models.BidStatus `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`

	// 有預先載入案件時才會出現
	Gig *GigView `json:"gig,omitempty"`
}

type HireResponse struct {
	Message string  `json:"message"`
	Bid     BidView `json:"bid"`
}

type PostGigRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Budget      uint64 `json:"budget"`
}

type PostBidRequest struct {
	GigID   uuid.UUID `json:"gigId"`
	Message string    `json:"message"`
	Price   uint64    `json:"price"`
}

func newGigView(gig models.Gig) GigView {
	return GigView{
		ID:          gig.ID,
		OwnerID:     gig.OwnerID,
		Title:       gig.Title,
		Description: gig.Description,
		Budget:      gig.Budget,
		Status:      gig.Status,
		HiredBidID:  gig.HiredBidID,
		CreatedAt:   gig.CreatedAt,
		UpdatedAt:   gig.UpdatedAt,
	}
}

func newBidView(bid models.Bid) BidView {
	view := BidView{
		ID:        bid.ID,
		GigID:     bid.GigID,
		BidderID:  bid.BidderID,
		Message:   bid.Message,
		Price:     bid.Price,
		Status:    bid.Status,
		CreatedAt: bid.CreatedAt,
		UpdatedAt: bid.UpdatedAt,
	}
	if bid.Gig != nil {
		view.Gig = lo.ToPtr(newGigView(*bid.Gig))
	}
	return view
}

func newGigViews(gigs []models.Gig) []GigView {
	return lo.Map(gigs, func(gig models.Gig, _ int) GigView { return newGigView(gig) })
}

func newBidViews(bids []models.Bid) []BidView {
	return lo.Map(bids, func(bid models.Bid, _ int) BidView { return newBidView(bid) })
}

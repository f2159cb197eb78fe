package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gigflow/marketplace"
)

// Place a bid on a gig
// (POST /api/bids)
func (impl *ServerImpl) PostBid(c *gin.Context) {
	const op = "PostBid"
	var body PostBidRequest
	if !bindJSON(c, &body) {
		return
	}
	bid, err := impl.guard.PlaceBid(c.Request.Context(), marketplace.PlaceBidInput{
		GigID:    body.GigID,
		BidderID: currentUser(c),
		Message:  body.Message,
		Price:    body.Price,
	})
	if err != nil {
		impl.respondError(c, op, err)
		return
	}
	c.JSON(http.StatusCreated, newBidView(bid))
}

// List bids placed by the caller
// (GET /api/bids/mine)
func (impl *ServerImpl) ListMyBids(c *gin.Context) {
	const op = "ListMyBids"
	bids, err := impl.store.ListBidsByBidder(c.Request.Context(), currentUser(c))
	if err != nil {
		impl.respondError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, newBidViews(bids))
}

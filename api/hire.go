package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"gigflow/marketplace"
)

// Hire a bid, closing the gig
// (PATCH /api/bids/{bidID}/hire)
func (impl *ServerImpl) HireBid(c *gin.Context) {
	const op = "HireBid"
	bidID, ok := pathUUID(c, "bidID")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	result, err := impl.hirer.Hire(ctx, marketplace.HireRequest{
		BidID:   bidID,
		ActorID: currentUser(c),
	})
	if err != nil {
		impl.respondError(c, op, err)
		return
	}

	// 雇用已經提交，通知失敗只記錄不影響回應
	notification := marketplace.NewHireNotification(result.Bid)
	if err := impl.notifier.NotifyHired(context.WithoutCancel(ctx), notification); err != nil {
		impl.logger.Warn("Fail to notify hired freelancer",
			slog.String("bidID", result.Bid.ID.String()),
			slog.String("channel", notification.Channel),
			slog.Any("error", err))
	}

	c.JSON(http.StatusOK, HireResponse{
		Message: "Freelancer hired successfully",
		Bid:     newBidView(result.Bid),
	})
}

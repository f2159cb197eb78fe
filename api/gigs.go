package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gigflow/marketplace"
	"gigflow/models"
)

// pathUUID 解析路徑中的 UUID，失敗時直接回應 400
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, codeValidation, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// List gigs
// (GET /api/gigs)
func (impl *ServerImpl) ListGigs(c *gin.Context) {
	const op = "ListGigs"
	filter := marketplace.GigFilter{Search: c.Query("search")}
	if raw := c.Query("status"); raw != "" {
		status := models.GigStatus(raw)
		if !status.Valid() {
			abortWithError(c, http.StatusBadRequest, codeValidation, "Invalid status")
			return
		}
		filter.Status = &status
	}
	gigs, err := impl.store.ListGigs(c.Request.Context(), filter)
	if err != nil {
		impl.respondError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, newGigViews(gigs))
}

// Post a new gig
// (POST /api/gigs)
func (impl *ServerImpl) PostGig(c *gin.Context) {
	const op = "PostGig"
	var body PostGigRequest
	if !bindJSON(c, &body) {
		return
	}
	gig, err := impl.guard.PostGig(c.Request.Context(), marketplace.PostGigInput{
		OwnerID:     currentUser(c),
		Title:       body.Title,
		Description: body.Description,
		Budget:      body.Budget,
	})
	if err != nil {
		impl.respondError(c, op, err)
		return
	}
	c.Header("Location", "/api/gigs/"+gig.ID.String())
	c.JSON(http.StatusCreated, newGigView(gig))
}

// Get gig details
// (GET /api/gigs/{gigID})
func (impl *ServerImpl) GetGig(c *gin.Context) {
	const op = "GetGig"
	gigID, ok := pathUUID(c, "gigID")
	if !ok {
		return
	}
	gig, err := impl.store.FindGig(c.Request.Context(), gigID)
	if err != nil {
		impl.respondError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, newGigView(gig))
}

// List bids of a gig, only the owner can see them
// (GET /api/gigs/{gigID}/bids)
func (impl *ServerImpl) ListGigBids(c *gin.Context) {
	const op = "ListGigBids"
	gigID, ok := pathUUID(c, "gigID")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	gig, err := impl.store.FindGig(ctx, gigID)
	if err != nil {
		impl.respondError(c, op, err)
		return
	}
	if gig.OwnerID != currentUser(c) {
		impl.respondError(c, op, marketplace.ErrForbidden)
		return
	}
	bids, err := impl.store.ListBidsByGig(ctx, gigID)
	if err != nil {
		impl.respondError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, newBidViews(bids))
}


package api

import (
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigflow/models"
)

func TestGigs(t *testing.T) {
	env := newTestEnv(t)
	owner := uuid.New()

	gig := env.postGig(t, owner, "Build a Go API")
	assert.Equal(t, models.GigOpen, gig.Status)
	assert.Equal(t, owner, gig.OwnerID)
	env.postGig(t, owner, "Paint a fence")

	// 公開的列表與搜尋
	w := env.do(t, http.MethodGet, "/api/gigs", uuid.Nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]GigView](t, w), 2)

	w = env.do(t, http.MethodGet, "/api/gigs?search=go%20api", uuid.Nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	found := decode[[]GigView](t, w)
	require.Len(t, found, 1)
	assert.Equal(t, gig.ID, found[0].ID)

	w = env.do(t, http.MethodGet, "/api/gigs?status=assigned", uuid.Nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]GigView](t, w))

	w = env.do(t, http.MethodGet, "/api/gigs?status=closed", uuid.Nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 詳細資料
	w = env.do(t, http.MethodGet, "/api/gigs/"+gig.ID.String(), uuid.Nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, gig.Title, decode[GigView](t, w).Title)

	w = env.do(t, http.MethodGet, "/api/gigs/"+uuid.NewString(), uuid.Nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodGet, "/api/gigs/not-a-uuid", uuid.Nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 發案需要登入且資料必須合法
	w = env.do(t, http.MethodPost, "/api/gigs", uuid.Nil, PostGigRequest{Title: "t", Description: "d"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = env.do(t, http.MethodPost, "/api/gigs", owner, PostGigRequest{Title: "   ", Description: "d"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, codeValidation, decode[ErrorResponse](t, w).Code)
	w = env.do(t, http.MethodPost, "/api/gigs", owner, map[string]any{"title": "t", "description": "d", "budget": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBids(t *testing.T) {
	env := newTestEnv(t)
	owner := uuid.New()
	bidder := uuid.New()
	gig := env.postGig(t, owner, "Logo design")

	bid := env.postBid(t, bidder, gig.ID)
	assert.Equal(t, models.BidPending, bid.Status)
	assert.Equal(t, bidder, bid.BidderID)

	tests := []struct {
		name     string
		user     uuid.UUID
		body     any
		wantCode int
		wantErr  string
	}{
		{"duplicate", bidder, PostBidRequest{GigID: gig.ID, Message: "again", Price: 1}, http.StatusConflict, codeDuplicateBid},
		{"self bid", owner, PostBidRequest{GigID: gig.ID, Message: "me", Price: 1}, http.StatusBadRequest, codeSelfBid},
		{"zero price", uuid.New(), PostBidRequest{GigID: gig.ID, Message: "m"}, http.StatusBadRequest, codeValidation},
		{"unknown gig", uuid.New(), PostBidRequest{GigID: uuid.New(), Message: "m", Price: 1}, http.StatusNotFound, codeNotFound},
		{"bad body", uuid.New(), map[string]any{"gigId": "x"}, http.StatusBadRequest, codeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/bids", tt.user, tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			assert.Equal(t, tt.wantErr, decode[ErrorResponse](t, w).Code)
		})
	}

	// 只有發案者可以看到案件的投標
	w := env.do(t, http.MethodGet, fmt.Sprintf("/api/gigs/%s/bids", gig.ID), bidder, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, codeForbidden, decode[ErrorResponse](t, w).Code)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/gigs/%s/bids", gig.ID), owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	bids := decode[[]BidView](t, w)
	require.Len(t, bids, 1)
	assert.Equal(t, bid.ID, bids[0].ID)

	// 自己的投標會帶上案件資訊
	w = env.do(t, http.MethodGet, "/api/bids/mine", bidder, nil)
	require.Equal(t, http.StatusOK, w.Code)
	mine := decode[[]BidView](t, w)
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].Gig)
	assert.Equal(t, "Logo design", mine[0].Gig.Title)
}

func TestHireBid(t *testing.T) {
	env := newTestEnv(t)
	owner := uuid.New()
	gig := env.postGig(t, owner, "Website redesign")
	winner := env.postBid(t, uuid.New(), gig.ID)
	loser := env.postBid(t, uuid.New(), gig.ID)

	// 非發案者
	w := env.do(t, http.MethodPatch, "/api/bids/"+winner.ID.String()+"/hire", winner.BidderID, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	// 不存在的投標
	w = env.do(t, http.MethodPatch, "/api/bids/"+uuid.NewString()+"/hire", owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPatch, "/api/bids/"+winner.ID.String()+"/hire", owner, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[HireResponse](t, w)
	assert.Equal(t, "Freelancer hired successfully", resp.Message)
	assert.Equal(t, models.BidHired, resp.Bid.Status)
	require.NotNil(t, resp.Bid.Gig)
	assert.Equal(t, "Website redesign", resp.Bid.Gig.Title)
	assert.Equal(t, models.GigAssigned, resp.Bid.Gig.Status)

	// 之後的雇用一律是 conflict
	for _, id := range []uuid.UUID{loser.ID, winner.ID} {
		w = env.do(t, http.MethodPatch, "/api/bids/"+id.String()+"/hire", owner, nil)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, codeConflict, decode[ErrorResponse](t, w).Code)
	}

	// 已指派的案件不能再投標
	w = env.do(t, http.MethodPost, "/api/bids", uuid.New(), PostBidRequest{GigID: gig.ID, Message: "late", Price: 1})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, codeGigNotOpen, decode[ErrorResponse](t, w).Code)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/gigs/%s/bids", gig.ID), owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	for _, b := range decode[[]BidView](t, w) {
		if b.ID == winner.ID {
			assert.Equal(t, models.BidHired, b.Status)
		} else {
			assert.Equal(t, models.BidRejected, b.Status)
		}
	}
}

func TestHireBid_Concurrent(t *testing.T) {
	env := newTestEnv(t)
	owner := uuid.New()
	gig := env.postGig(t, owner, "Race")

	const n = 6
	bids := make([]BidView, n)
	for i := range bids {
		bids[i] = env.postBid(t, uuid.New(), gig.ID)
	}

	codes := make([]int, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range bids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			codes[i] = env.do(t, http.MethodPatch, "/api/bids/"+bids[i].ID.String()+"/hire", owner, nil).Code
		}(i)
	}
	close(start)
	wg.Wait()

	ok := 0
	for _, code := range codes {
		if code == http.StatusOK {
			ok++
			continue
		}
		assert.Equal(t, http.StatusConflict, code)
	}
	assert.Equal(t, 1, ok)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/healthz", uuid.Nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	env.mr.SetError("LOADING")
	w = env.do(t, http.MethodGet, "/healthz", uuid.Nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	env.mr.SetError("")
}

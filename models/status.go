package models

import (
	"errors"
	"fmt"
)

// ErrIllegalTransition 表示狀態轉換不在轉換表中
var ErrIllegalTransition = errors.New("illegal status transition")

// GigStatus 代表案件的狀態
type GigStatus string

const (
	GigOpen     GigStatus = "open"
	GigAssigned GigStatus = "assigned"
)

// BidStatus 代表投標的狀態
type BidStatus string

const (
	BidPending  BidStatus = "pending"
	BidHired    BidStatus = "hired"
	BidRejected BidStatus = "rejected"
)

// 合法的狀態轉換表，沒有列出的轉換一律視為非法
//   - 案件: open -> assigned
//   - 投標: pending -> hired, pending -> rejected
var (
	gigTransitions = map[GigStatus][]GigStatus{
		GigOpen: {GigAssigned},
	}
	bidTransitions = map[BidStatus][]BidStatus{
		BidPending: {BidHired, BidRejected},
	}
)

func (s GigStatus) Valid() bool {
	switch s {
	case GigOpen, GigAssigned:
		return true
	default:
		return false
	}
}

// CanTransitionTo 檢查是否允許從目前狀態轉換到 next
func (s GigStatus) CanTransitionTo(next GigStatus) bool {
	for _, to := range gigTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// IsTerminal 判斷狀態是否已經無法再轉換
func (s GigStatus) IsTerminal() bool {
	return len(gigTransitions[s]) == 0
}

func (s BidStatus) Valid() bool {
	switch s {
	case BidPending, BidHired, BidRejected:
		return true
	default:
		return false
	}
}

// CanTransitionTo 檢查是否允許從目前狀態轉換到 next
func (s BidStatus) CanTransitionTo(next BidStatus) bool {
	for _, to := range bidTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// IsTerminal 判斷狀態是否已經無法再轉換
func (s BidStatus) IsTerminal() bool {
	return len(bidTransitions[s]) == 0
}

// GigTransition 描述一次經過轉換表檢查的案件狀態轉換，只能透過 NewGigTransition 建立
type GigTransition struct {
	from GigStatus
	to   GigStatus
}

func NewGigTransition(from, to GigStatus) (GigTransition, error) {
	if !from.CanTransitionTo(to) {
		return GigTransition{}, fmt.Errorf("%w: gig %s -> %s", ErrIllegalTransition, from, to)
	}
	return GigTransition{from: from, to: to}, nil
}

func (t GigTransition) From() GigStatus { return t.from }
func (t GigTransition) To() GigStatus   { return t.to }

// BidTransition 描述一次經過轉換表檢查的投標狀態轉換，只能透過 NewBidTransition 建立
type BidTransition struct {
	from BidStatus
	to   BidStatus
}

func NewBidTransition(from, to BidStatus) (BidTransition, error) {
	if !from.CanTransitionTo(to) {
		return BidTransition{}, fmt.Errorf("%w: bid %s -> %s", ErrIllegalTransition, from, to)
	}
	return BidTransition{from: from, to: to}, nil
}

func (t BidTransition) From() BidStatus { return t.from }
func (t BidTransition) To() BidStatus   { return t.to }

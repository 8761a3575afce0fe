package entity

import (
	"fmt"
	"strings"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusDraft        OrderStatus = "DRAFT"
	OrderStatusQuoted       OrderStatus = "QUOTED"
	OrderStatusApproved     OrderStatus = "APPROVED"
	OrderStatusInProduction OrderStatus = "IN_PRODUCTION"
	OrderStatusCompleted    OrderStatus = "COMPLETED"
	OrderStatusDelivered    OrderStatus = "DELIVERED"
	OrderStatusCancelled    OrderStatus = "CANCELLED"
	OrderStatusRejected     OrderStatus = "REJECTED"
)

var orderStatuses = []OrderStatus{
	OrderStatusDraft,
	OrderStatusQuoted,
	OrderStatusApproved,
	OrderStatusInProduction,
	OrderStatusCompleted,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusRejected,
}

// ParseOrderStatus resolves a status ignoring case and surrounding spaces.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	normalized := OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	for _, status := range orderStatuses {
		if status == normalized {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown order status %q", raw)
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusRejected:
		return true
	case OrderStatusDraft, OrderStatusQuoted, OrderStatusApproved, OrderStatusInProduction, OrderStatusCompleted:
		return false
	default:
		return false
	}
}

// Editable reports whether header and lines may still change.
func (s OrderStatus) Editable() bool {
	switch s {
	case OrderStatusDraft, OrderStatusQuoted:
		return true
	case OrderStatusApproved, OrderStatusInProduction, OrderStatusCompleted,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusRejected:
		return false
	default:
		return false
	}
}

// HoldsReservation reports whether stock is reserved for the order in this state.
func (s OrderStatus) HoldsReservation() bool {
	switch s {
	case OrderStatusApproved, OrderStatusInProduction:
		return true
	case OrderStatusDraft, OrderStatusQuoted, OrderStatusCompleted,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusRejected:
		return false
	default:
		return false
	}
}

// DepositState tracks the prepayment of an order.
type DepositState string

const (
	// DepositStateUnset is the blank state of orders created before the deposit was evaluated.
	DepositStateUnset         DepositState = ""
	DepositStateNotApplicable DepositState = "NOT_APPLICABLE"
	DepositStatePending       DepositState = "PENDING"
	DepositStatePaid          DepositState = "PAID"
)

// ParseDepositState resolves a deposit state ignoring case; blank maps to DepositStateUnset.
func ParseDepositState(raw string) (DepositState, error) {
	switch DepositState(strings.ToUpper(strings.TrimSpace(raw))) {
	case DepositStateUnset:
		return DepositStateUnset, nil
	case DepositStateNotApplicable:
		return DepositStateNotApplicable, nil
	case DepositStatePending:
		return DepositStatePending, nil
	case DepositStatePaid:
		return DepositStatePaid, nil
	default:
		return "", fmt.Errorf("unknown deposit state %q", raw)
	}
}

// Movement is the kind of a kardex entry.
type Movement string

const (
	MovementReserve Movement = "RESERVE"
	MovementConsume Movement = "CONSUME"
	MovementIn      Movement = "IN"
	MovementAdjust  Movement = "ADJUST"
)

// ParseMovement resolves a movement kind ignoring case. OUT is accepted as CONSUME.
func ParseMovement(raw string) (Movement, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(MovementReserve):
		return MovementReserve, nil
	case string(MovementConsume), "OUT":
		return MovementConsume, nil
	case string(MovementIn):
		return MovementIn, nil
	case string(MovementAdjust):
		return MovementAdjust, nil
	default:
		return "", fmt.Errorf("unknown movement %q", raw)
	}
}

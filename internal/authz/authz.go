// Package authz holds the capability checks consulted before order and catalog
// mutations. Legality of a status change lives in the order transition table;
// this package only answers whether an actor may attempt it.
package authz

import (
	"github.com/google/uuid"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
	pkgerrors "github.com/Thangvh29/WEB-tmdt-sub001/pkg/errors"
)

// Actor is the authenticated caller resolved at the HTTP boundary.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

// System is the actor used by background jobs.
func System() Actor {
	return Actor{Role: enums.RoleSystem}
}

// IsSystem reports whether the actor is a background job.
func (a Actor) IsSystem() bool {
	return a.Role == enums.RoleSystem
}

// UserRef returns the user id for audit columns; system actors have none.
func (a Actor) UserRef() *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}

type edge struct {
	from enums.OrderStatus
	to   enums.OrderStatus
}

var shipperEdges = map[edge]struct{}{
	{enums.OrderStatusPreparing, enums.OrderStatusShipped}: {},
	{enums.OrderStatusShipped, enums.OrderStatusDelivered}: {},
	{enums.OrderStatusShipped, enums.OrderStatusFailed}:    {},
}

// Authorizer answers capability questions for an actor.
type Authorizer interface {
	CanTransition(actor Actor, from, to enums.OrderStatus) bool
	CanViewOrder(actor Actor, ownerID uuid.UUID) bool
	CanEditCustomerInfo(actor Actor, ownerID uuid.UUID) bool
	CanListAllOrders(actor Actor) bool
	CanManageCatalog(actor Actor) bool
	CanOverrideStock(actor Actor) bool
	CanRecordPayment(actor Actor) bool
}

// RoleAuthorizer is the role table used in production.
type RoleAuthorizer struct{}

// New returns the default role based authorizer.
func New() RoleAuthorizer {
	return RoleAuthorizer{}
}

func (RoleAuthorizer) CanTransition(actor Actor, from, to enums.OrderStatus) bool {
	switch actor.Role {
	case enums.RoleAdmin, enums.RoleStaff, enums.RoleSystem:
		return true
	case enums.RoleShipper:
		if from == to {
			return true
		}
		_, ok := shipperEdges[edge{from: from, to: to}]
		return ok
	default:
		return false
	}
}

func (RoleAuthorizer) CanViewOrder(actor Actor, ownerID uuid.UUID) bool {
	if actor.Role.IsBackOffice() || actor.Role == enums.RoleShipper || actor.IsSystem() {
		return true
	}
	return actor.UserID != uuid.Nil && actor.UserID == ownerID
}

func (RoleAuthorizer) CanEditCustomerInfo(actor Actor, ownerID uuid.UUID) bool {
	if actor.Role.IsBackOffice() {
		return true
	}
	return actor.Role == enums.RoleUser && actor.UserID != uuid.Nil && actor.UserID == ownerID
}

func (RoleAuthorizer) CanListAllOrders(actor Actor) bool {
	return actor.Role.IsBackOffice() || actor.Role == enums.RoleShipper
}

func (RoleAuthorizer) CanManageCatalog(actor Actor) bool {
	return actor.Role.IsBackOffice()
}

func (RoleAuthorizer) CanOverrideStock(actor Actor) bool {
	return actor.Role.IsBackOffice()
}

func (RoleAuthorizer) CanRecordPayment(actor Actor) bool {
	return actor.Role.IsBackOffice()
}

// Require converts a failed check into a forbidden error.
func Require(allowed bool, message string) error {
	if allowed {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, message)
}

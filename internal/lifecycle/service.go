package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gmsf/gmsf-contracts-backend/internal/database"
	"github.com/gmsf/gmsf-contracts-backend/internal/models"
)

// RenewalReason is recorded on a predecessor contract superseded by renewal.
const RenewalReason = "Reemplazado por renovación"

// Service owns contract state transitions and keeps the Client and
// Membership aggregates consistent with contract changes. All state lives in
// the database; every read-validate-write runs inside a single transaction
// with the affected aggregate rows locked.
type Service struct {
	db  *database.DB
	now func() time.Time
}

// NewService creates the lifecycle service over the given database.
func NewService(db *database.DB) *Service {
	return &Service{db: db, now: time.Now}
}

func (s *Service) today() models.Date {
	return models.DateOf(s.now())
}

// CreateContract registers a new contract for a client on an active
// membership. The end date is derived from the plan's validity and the
// plan's price is frozen into the contract. The client's denormalized
// membership cache is refreshed in the same transaction.
func (s *Service) CreateContract(ctx context.Context, req models.CreateContractRequest) (*models.ContractView, error) {
	if req.ClientID <= 0 {
		return nil, invalid("id_persona", "must be a positive id")
	}
	if req.MembershipID <= 0 {
		return nil, invalid("id_membresia", "must be a positive id")
	}
	if req.StartDate.IsZero() {
		return nil, invalid("fecha_inicio", "is required")
	}

	today := s.today()
	if req.StartDate.Before(today) {
		return nil, invalid("fecha_inicio", "must not be before today")
	}

	tx, err := s.db.BeginTx()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	client, err := s.db.GetClientForUpdateTx(ctx, tx, req.ClientID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFound("client", req.ClientID)
	}
	if err != nil {
		return nil, err
	}

	membership, err := s.db.GetMembershipForUpdateTx(ctx, tx, req.MembershipID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFound("membership", req.MembershipID)
	}
	if err != nil {
		return nil, err
	}
	if !membership.Active {
		return nil, conflict("membership is not active")
	}

	live, err := s.db.CountLiveContractsTx(ctx, tx, client.ID, today, 0)
	if err != nil {
		return nil, err
	}
	if live > 0 {
		return nil, conflict("client already has a live contract")
	}

	contract, err := s.db.CreateContractTx(ctx, tx, &models.Contract{
		ClientID:     client.ID,
		MembershipID: membership.ID,
		StartDate:    req.StartDate,
		EndDate:      req.StartDate.AddDays(membership.ValidityDays),
		PricePaid:    membership.Price,
		RegisteredBy: req.RegisteredBy,
	})
	if err != nil {
		return nil, err
	}

	if err := s.db.AddHistoryTx(ctx, tx, models.ContractHistory{
		ContractID: contract.ID,
		NewStatus:  models.ContractActive,
		ChangedBy:  req.RegisteredBy,
	}); err != nil {
		return nil, err
	}

	if err := s.db.SetClientMembershipTx(ctx, tx, client.ID,
		models.ClientActive, &membership.Name, &contract.EndDate); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	contract.ClientName = client.FirstName + " " + client.LastName
	contract.MembershipName = membership.Name
	view := View(*contract, today)
	return &view, nil
}

// RenewContract creates a replacement contract for the same client. The
// predecessor's row is never deleted; if it still derives live it is
// superseded (transitioned to Cancelado with the renewal reason) inside the
// same transaction so the client never carries two live contracts.
func (s *Service) RenewContract(ctx context.Context, req models.RenewContractRequest) (*models.ContractView, error) {
	if req.ContractID <= 0 {
		return nil, invalid("id_contrato", "must be a positive id")
	}
	if req.MembershipID <= 0 {
		return nil, invalid("id_membresia", "must be a positive id")
	}
	if req.StartDate.IsZero() {
		return nil, invalid("fecha_inicio", "is required")
	}

	today := s.today()
	if req.StartDate.Before(today) {
		return nil, invalid("fecha_inicio", "must not be before today")
	}

	tx, err := s.db.BeginTx()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	prev, err := s.db.GetContractForUpdateTx(ctx, tx, req.ContractID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFound("contract", req.ContractID)
	}
	if err != nil {
		return nil, err
	}

	client, err := s.db.GetClientForUpdateTx(ctx, tx, prev.ClientID)
	if err != nil {
		return nil, err
	}

	membership, err := s.db.GetMembershipForUpdateTx(ctx, tx, req.MembershipID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFound("membership", req.MembershipID)
	}
	if err != nil {
		return nil, err
	}
	if !membership.Active {
		return nil, conflict("membership is not active")
	}

	// A live contract other than the one being renewed still blocks.
	live, err := s.db.CountLiveContractsTx(ctx, tx, client.ID, today, prev.ID)
	if err != nil {
		return nil, err
	}
	if live > 0 {
		return nil, conflict("client already has a live contract")
	}

	if IsLive(prev.Status, prev.EndDate, today) {
		reason := RenewalReason
		prevStatus := prev.Status
		if _, err := s.db.SetContractStatusTx(ctx, tx, prev.ID,
			models.ContractCancelled, &reason, req.RegisteredBy); err != nil {
			return nil, err
		}
		if err := s.db.AddHistoryTx(ctx, tx, models.ContractHistory{
			ContractID:     prev.ID,
			PreviousStatus: &prevStatus,
			NewStatus:      models.ContractCancelled,
			Reason:         &reason,
			ChangedBy:      req.RegisteredBy,
		}); err != nil {
			return nil, err
		}
	}

	contract, err := s.db.CreateContractTx(ctx, tx, &models.Contract{
		ClientID:     client.ID,
		MembershipID: membership.ID,
		StartDate:    req.StartDate,
		EndDate:      req.StartDate.AddDays(membership.ValidityDays),
		PricePaid:    membership.Price,
		RegisteredBy: req.RegisteredBy,
	})
	if err != nil {
		return nil, err
	}

	renewNote := "Renovación de " + prev.Code
	prevStatus := prev.Status
	if err := s.db.AddHistoryTx(ctx, tx, models.ContractHistory{
		ContractID:     contract.ID,
		PreviousStatus: &prevStatus,
		NewStatus:      models.ContractActive,
		Reason:         &renewNote,
		ChangedBy:      req.RegisteredBy,
	}); err != nil {
		return nil, err
	}

	if err := s.db.SetClientMembershipTx(ctx, tx, client.ID,
		models.ClientActive, &membership.Name, &contract.EndDate); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	contract.ClientName = client.FirstName + " " + client.LastName
	contract.MembershipName = membership.Name
	view := View(*contract, today)
	return &view, nil
}

// FreezeContract suspends a contract. The precondition is checked against
// the persisted status, so a date-expired but persisted-active contract can
// still be frozen. fecha_fin is left untouched.
func (s *Service) FreezeContract(ctx context.Context, req models.FreezeContractRequest) (*models.ContractView, error) {
	if req.ContractID <= 0 {
		return nil, invalid("id_contrato", "must be a positive id")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, invalid("motivo", "is required to freeze a contract")
	}

	tx, err := s.db.BeginTx()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	contract, err := s.db.GetContractForUpdateTx(ctx, tx, req.ContractID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFound("contract", req.ContractID)
	}
	if err != nil {
		return nil, err
	}

	switch contract.Status {
	case models.ContractFrozen:
		return nil, conflict("contract is already frozen")
	case models.ContractCancelled:
		return nil, conflict("contract is cancelled")
	}

	prevStatus := contract.Status
	updated, err := s.db.SetContractStatusTx(ctx, tx, contract.ID,
		models.ContractFrozen, &req.Reason, req.UpdatedBy)
	if err != nil {
		return nil, err
	}

	if err := s.db.AddHistoryTx(ctx, tx, models.ContractHistory{
		ContractID:     contract.ID,
		PreviousStatus: &prevStatus,
		NewStatus:      models.ContractFrozen,
		Reason:         &req.Reason,
		ChangedBy:      req.UpdatedBy,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	view := View(*updated, s.today())
	return &view, nil
}

// CancelContract transitions a contract to Cancelado (soft; the row is kept)
// and re-evaluates the owning client: with no live contracts left the client
// reverts to Inactivo and the membership cache is cleared.
func (s *Service) CancelContract(ctx context.Context, contractID int, req models.CancelContractRequest) (*models.ContractView, error) {
	if contractID <= 0 {
		return nil, invalid("id_contrato", "must be a positive id")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, invalid("motivo", "is required to cancel a contract")
	}

	today := s.today()

	tx, err := s.db.BeginTx()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	contract, err := s.db.GetContractForUpdateTx(ctx, tx, contractID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFound("contract", contractID)
	}
	if err != nil {
		return nil, err
	}

	if contract.Status == models.ContractCancelled {
		return nil, conflict("contract is already cancelled")
	}

	if _, err := s.db.GetClientForUpdateTx(ctx, tx, contract.ClientID); err != nil {
		return nil, err
	}

	prevStatus := contract.Status
	updated, err := s.db.SetContractStatusTx(ctx, tx, contract.ID,
		models.ContractCancelled, &req.Reason, req.UpdatedBy)
	if err != nil {
		return nil, err
	}

	if err := s.db.AddHistoryTx(ctx, tx, models.ContractHistory{
		ContractID:     contract.ID,
		PreviousStatus: &prevStatus,
		NewStatus:      models.ContractCancelled,
		Reason:         &req.Reason,
		ChangedBy:      req.UpdatedBy,
	}); err != nil {
		return nil, err
	}

	if err := s.reevaluateClientTx(ctx, tx, contract.ClientID, today); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	view := View(*updated, today)
	return &view, nil
}

// UpdateContract applies an administrative partial edit. Plan or start-date
// changes recompute fecha_fin (and, on a plan swap, precio_pagado); estado
// changes go through the same transition rules as the dedicated endpoints.
func (s *Service) UpdateContract(ctx context.Context, contractID int, req models.UpdateContractRequest) (*models.ContractView, error) {
	if contractID <= 0 {
		return nil, invalid("id_contrato", "must be a positive id")
	}

	today := s.today()

	tx, err := s.db.BeginTx()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	contract, err := s.db.GetContractForUpdateTx(ctx, tx, contractID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFound("contract", contractID)
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.db.GetClientForUpdateTx(ctx, tx, contract.ClientID); err != nil {
		return nil, err
	}

	prevStatus := contract.Status
	statusChanged := false

	if req.Status != nil && *req.Status != contract.Status {
		target := *req.Status
		switch target {
		case models.ContractCancelled:
			if req.Reason == nil || strings.TrimSpace(*req.Reason) == "" {
				return nil, invalid("motivo", "is required to cancel a contract")
			}
		case models.ContractFrozen:
			if contract.Status != models.ContractActive {
				return nil, conflict("only an active contract can be frozen")
			}
			if req.Reason == nil || strings.TrimSpace(*req.Reason) == "" {
				return nil, invalid("motivo", "is required to freeze a contract")
			}
		case models.ContractActive:
			if contract.Status != models.ContractFrozen {
				return nil, conflict("only a frozen contract can be reactivated")
			}
			// A running contract carries no reason.
			contract.Reason = nil
		default:
			return nil, invalid("estado", "must be one of Activo, Congelado, Cancelado")
		}
		contract.Status = target
		statusChanged = true
	}

	if req.Reason != nil && contract.Status != models.ContractActive {
		contract.Reason = req.Reason
	}
	if req.UpdatedBy != nil {
		contract.UpdatedBy = req.UpdatedBy
	}

	if req.MembershipID != nil || req.StartDate != nil {
		membershipID := contract.MembershipID
		planChanged := false
		if req.MembershipID != nil && *req.MembershipID != contract.MembershipID {
			membershipID = *req.MembershipID
			planChanged = true
		}

		membership, err := s.db.GetMembershipForUpdateTx(ctx, tx, membershipID)
		if errors.Is(err, database.ErrNotFound) {
			return nil, notFound("membership", membershipID)
		}
		if err != nil {
			return nil, err
		}
		if planChanged && !membership.Active {
			return nil, conflict("membership is not active")
		}

		if req.StartDate != nil {
			contract.StartDate = *req.StartDate
		}
		contract.MembershipID = membership.ID
		contract.EndDate = contract.StartDate.AddDays(membership.ValidityDays)
		if planChanged {
			contract.PricePaid = membership.Price
		}
	}

	updated, err := s.db.UpdateContractRowTx(ctx, tx, contract)
	if err != nil {
		return nil, err
	}

	if statusChanged {
		if err := s.db.AddHistoryTx(ctx, tx, models.ContractHistory{
			ContractID:     contract.ID,
			PreviousStatus: &prevStatus,
			NewStatus:      contract.Status,
			Reason:         contract.Reason,
			ChangedBy:      contract.UpdatedBy,
		}); err != nil {
			return nil, err
		}
	}

	if err := s.reevaluateClientTx(ctx, tx, contract.ClientID, today); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	view := View(*updated, today)
	return &view, nil
}

// ToggleMembershipActive flips a plan's activo flag. Deactivation is
// rejected while any contract on the plan derives to Activo or Por vencer;
// reactivation has no precondition. On rejection the plan is left unchanged.
func (s *Service) ToggleMembershipActive(ctx context.Context, membershipID int, active bool) (*models.Membership, error) {
	if membershipID <= 0 {
		return nil, invalid("id", "must be a positive id")
	}

	tx, err := s.db.BeginTx()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.db.GetMembershipForUpdateTx(ctx, tx, membershipID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, notFound("membership", membershipID)
		}
		return nil, err
	}

	if !active {
		blocking, err := s.db.CountBlockingContractsTx(ctx, tx, membershipID, s.today())
		if err != nil {
			return nil, err
		}
		if blocking > 0 {
			return nil, conflict("membership has active contracts")
		}
	}

	membership, err := s.db.SetMembershipActiveTx(ctx, tx, membershipID, active)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return membership, nil
}

// CreateMembership validates and registers a new plan.
func (s *Service) CreateMembership(ctx context.Context, req models.CreateMembershipRequest) (*models.Membership, error) {
	if err := validateMembershipFields(req.Name, req.Price, req.AccessDays, req.ValidityDays); err != nil {
		return nil, err
	}

	membership, err := s.db.CreateMembership(ctx, req)
	if errors.Is(err, database.ErrDuplicate) {
		return nil, conflict("membership name already exists")
	}
	if err != nil {
		return nil, err
	}
	return membership, nil
}

// UpdateMembership merges a partial edit into a plan and revalidates it.
func (s *Service) UpdateMembership(ctx context.Context, membershipID int, req models.UpdateMembershipRequest) (*models.Membership, error) {
	membership, err := s.db.GetMembership(ctx, membershipID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFound("membership", membershipID)
	}
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		membership.Name = *req.Name
	}
	if req.Description != nil {
		membership.Description = req.Description
	}
	if req.Price != nil {
		membership.Price = *req.Price
	}
	if req.AccessDays != nil {
		membership.AccessDays = *req.AccessDays
	}
	if req.ValidityDays != nil {
		membership.ValidityDays = *req.ValidityDays
	}

	if err := validateMembershipFields(membership.Name, membership.Price, membership.AccessDays, membership.ValidityDays); err != nil {
		return nil, err
	}

	updated, err := s.db.UpdateMembership(ctx, membership)
	if errors.Is(err, database.ErrDuplicate) {
		return nil, conflict("membership name already exists")
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SweepClientStatuses re-applies the client-status invariant as contracts
// lapse over time. Returns the number of clients deactivated.
func (s *Service) SweepClientStatuses(ctx context.Context) (int64, error) {
	return s.db.DeactivateLapsedClients(ctx, s.today())
}

// reevaluateClientTx enforces: client Activo iff at least one live contract.
func (s *Service) reevaluateClientTx(ctx context.Context, tx *sqlx.Tx, clientID int, today models.Date) error {
	live, err := s.db.CountLiveContractsTx(ctx, tx, clientID, today, 0)
	if err != nil {
		return err
	}
	if live == 0 {
		return s.db.SetClientMembershipTx(ctx, tx, clientID, models.ClientInactive, nil, nil)
	}

	name, endDate, found, err := s.db.LatestLiveContractTx(ctx, tx, clientID, today)
	if err != nil {
		return err
	}
	if !found {
		return s.db.SetClientMembershipTx(ctx, tx, clientID, models.ClientInactive, nil, nil)
	}
	return s.db.SetClientMembershipTx(ctx, tx, clientID, models.ClientActive, &name, &endDate)
}

func validateMembershipFields(name string, price float64, accessDays, validityDays int) error {
	if strings.TrimSpace(name) == "" {
		return invalid("nombre", "is required")
	}
	if price <= 0 {
		return invalid("precio", "must be greater than zero")
	}
	if accessDays <= 0 {
		return invalid("dias_acceso", "must be greater than zero")
	}
	if validityDays <= 0 {
		return invalid("vigencia_dias", "must be greater than zero")
	}
	if validityDays < accessDays {
		return invalid("vigencia_dias", "must be at least dias_acceso")
	}
	return nil
}

package lifecycle

import "github.com/gmsf/gmsf-contracts-backend/internal/models"

// ExpiringWindowDays is the lead window in which a running contract is
// displayed as "Por vencer".
const ExpiringWindowDays = 7

// DeriveDisplayStatus computes the display status of a contract from its
// persisted status and end date. Pure function, no side effects. Cancelado
// and Congelado win over any date-derived state; Vencido and Por vencer are
// projections of a persisted Activo row and are never written back.
func DeriveDisplayStatus(persisted models.ContractStatus, endDate, today models.Date) models.ContractStatus {
	switch persisted {
	case models.ContractCancelled:
		return models.ContractCancelled
	case models.ContractFrozen:
		return models.ContractFrozen
	}
	if endDate.Before(today) {
		return models.ContractExpired
	}
	if today.DaysUntil(endDate) <= ExpiringWindowDays {
		return models.ContractExpiring
	}
	return models.ContractActive
}

// IsLive reports whether a contract counts toward the client's live set:
// derived Activo, Congelado or Por vencer.
func IsLive(persisted models.ContractStatus, endDate, today models.Date) bool {
	switch DeriveDisplayStatus(persisted, endDate, today) {
	case models.ContractActive, models.ContractFrozen, models.ContractExpiring:
		return true
	}
	return false
}

// BlocksDeactivation reports whether a contract blocks deactivation of its
// membership: derived Activo or Por vencer. Frozen contracts do not block.
func BlocksDeactivation(persisted models.ContractStatus, endDate, today models.Date) bool {
	switch DeriveDisplayStatus(persisted, endDate, today) {
	case models.ContractActive, models.ContractExpiring:
		return true
	}
	return false
}

// View attaches the derived display status to a contract.
func View(c models.Contract, today models.Date) models.ContractView {
	return models.ContractView{
		Contract:      c,
		DisplayStatus: DeriveDisplayStatus(c.Status, c.EndDate, today),
	}
}

// Views maps a contract slice to views sharing one evaluation date.
func Views(cs []models.Contract, today models.Date) []models.ContractView {
	out := make([]models.ContractView, 0, len(cs))
	for _, c := range cs {
		out = append(out, View(c, today))
	}
	return out
}

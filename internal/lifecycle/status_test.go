package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gmsf/gmsf-contracts-backend/internal/models"
)

var today = models.NewDate(2026, time.March, 10)

func TestDeriveDisplayStatus(t *testing.T) {
	tests := []struct {
		name      string
		persisted models.ContractStatus
		endDate   models.Date
		want      models.ContractStatus
	}{
		{
			name:      "active with a far end date stays Activo",
			persisted: models.ContractActive,
			endDate:   today.AddDays(30),
			want:      models.ContractActive,
		},
		{
			name:      "eight days out is still Activo",
			persisted: models.ContractActive,
			endDate:   today.AddDays(8),
			want:      models.ContractActive,
		},
		{
			name:      "seven days out becomes Por vencer",
			persisted: models.ContractActive,
			endDate:   today.AddDays(7),
			want:      models.ContractExpiring,
		},
		{
			name:      "ending today is Por vencer, not Vencido",
			persisted: models.ContractActive,
			endDate:   today,
			want:      models.ContractExpiring,
		},
		{
			name:      "ended yesterday is Vencido",
			persisted: models.ContractActive,
			endDate:   today.AddDays(-1),
			want:      models.ContractExpired,
		},
		{
			name:      "frozen wins over a past end date",
			persisted: models.ContractFrozen,
			endDate:   today.AddDays(-30),
			want:      models.ContractFrozen,
		},
		{
			name:      "frozen wins over the expiring window",
			persisted: models.ContractFrozen,
			endDate:   today.AddDays(3),
			want:      models.ContractFrozen,
		},
		{
			name:      "cancelled wins over everything",
			persisted: models.ContractCancelled,
			endDate:   today.AddDays(30),
			want:      models.ContractCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveDisplayStatus(tt.persisted, tt.endDate, today)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsLive(t *testing.T) {
	tests := []struct {
		name      string
		persisted models.ContractStatus
		endDate   models.Date
		want      bool
	}{
		{"running contract is live", models.ContractActive, today.AddDays(30), true},
		{"expiring contract is live", models.ContractActive, today.AddDays(5), true},
		{"frozen contract is live", models.ContractFrozen, today.AddDays(30), true},
		{"frozen past its end date is still live", models.ContractFrozen, today.AddDays(-10), true},
		{"expired contract is not live", models.ContractActive, today.AddDays(-1), false},
		{"cancelled contract is not live", models.ContractCancelled, today.AddDays(30), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLive(tt.persisted, tt.endDate, today))
		})
	}
}

// Frozen contracts count toward the client's live set but do not block
// membership deactivation; the two predicates diverge exactly there.
func TestBlocksDeactivation(t *testing.T) {
	tests := []struct {
		name      string
		persisted models.ContractStatus
		endDate   models.Date
		want      bool
	}{
		{"running contract blocks", models.ContractActive, today.AddDays(30), true},
		{"expiring contract blocks", models.ContractActive, today.AddDays(7), true},
		{"frozen contract does not block", models.ContractFrozen, today.AddDays(30), false},
		{"expired contract does not block", models.ContractActive, today.AddDays(-1), false},
		{"cancelled contract does not block", models.ContractCancelled, today.AddDays(30), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BlocksDeactivation(tt.persisted, tt.endDate, today))
		})
	}
}

func TestViewsAttachDerivedStatus(t *testing.T) {
	contracts := []models.Contract{
		{ID: 1, Status: models.ContractActive, EndDate: today.AddDays(60)},
		{ID: 2, Status: models.ContractActive, EndDate: today.AddDays(2)},
		{ID: 3, Status: models.ContractFrozen, EndDate: today.AddDays(60)},
		{ID: 4, Status: models.ContractActive, EndDate: today.AddDays(-5)},
	}

	views := Views(contracts, today)

	assert.Len(t, views, 4)
	assert.Equal(t, models.ContractActive, views[0].DisplayStatus)
	assert.Equal(t, models.ContractExpiring, views[1].DisplayStatus)
	assert.Equal(t, models.ContractFrozen, views[2].DisplayStatus)
	assert.Equal(t, models.ContractExpired, views[3].DisplayStatus)

	// The persisted status on the embedded row is untouched.
	assert.Equal(t, models.ContractActive, views[3].Contract.Status)
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityOrder(t *testing.T) {
	assert.True(t, SeverityCritical.AtLeast(SeverityWarning))
	assert.True(t, SeverityWarning.AtLeast(SeverityWarning))
	assert.False(t, SeverityInfo.AtLeast(SeverityWarning))
	assert.False(t, Severity("fatal").Valid())

	assert.Equal(t, SeverityCritical, MaxSeverity(SeverityInfo, SeverityCritical, SeverityWarning))
	assert.Equal(t, SeverityWarning, MaxSeverity(SeverityWarning, SeverityInfo))
}

func TestAlertTypeValid(t *testing.T) {
	for _, alertType := range AlertTypes() {
		assert.True(t, alertType.Valid(), alertType)
	}
	assert.False(t, AlertType("disk_full").Valid())
	assert.Len(t, AlertTypes(), 11)
}

func TestPaginationNormalize(t *testing.T) {
	assert.Equal(t, Pagination{Limit: DefaultPageLimit}, Pagination{}.Normalize())
	assert.Equal(t, Pagination{Limit: MaxPageLimit, Offset: 0}, Pagination{Limit: 1000, Offset: -3}.Normalize())
	assert.Equal(t, Pagination{Limit: 10, Offset: 20}, Pagination{Limit: 10, Offset: 20}.Normalize())
}

func TestAlertSummaryAdd(t *testing.T) {
	summary := NewAlertSummary()
	summary.Add(AlertStatusOpen, SeverityCritical, 2)
	summary.Add(AlertStatusAcknowledged, SeverityWarning, 1)
	summary.Add(AlertStatusResolved, SeverityCritical, 5)

	assert.Equal(t, 8, summary.Total)
	assert.Equal(t, 2, summary.ByStatus[AlertStatusOpen])
	assert.Equal(t, 5, summary.ByStatus[AlertStatusResolved])
	assert.Equal(t, 2, summary.BySeverity[SeverityCritical])
	assert.Equal(t, 1, summary.BySeverity[SeverityWarning])
}

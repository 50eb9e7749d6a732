package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnalysisStatus(t *testing.T) {
	tests := []struct {
		status   AnalysisStatus
		active   bool
		terminal bool
	}{
		{status: AnalysisStatusPending, active: true},
		{status: AnalysisStatusInProgress, active: true},
		{status: AnalysisStatusCompleted, terminal: true},
		{status: AnalysisStatusFailed, terminal: true},
		{status: AnalysisStatusCancelled, terminal: true},
		{status: AnalysisStatus("archived")},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			require.Equal(t, tt.active, tt.status.IsActive())
			require.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
}

func TestClaims_Name(t *testing.T) {
	name := "Jane Doe"
	empty := ""

	require.Equal(t, "Jane Doe", (&Claims{Email: "jane@example.com", DisplayName: &name}).Name())
	require.Equal(t, "jane@example.com", (&Claims{Email: "jane@example.com", DisplayName: &empty}).Name())
	require.Equal(t, "jane@example.com", (&Claims{Email: "jane@example.com"}).Name())
}

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fedlearn/internal/crypto"
	id "fedlearn/pkg/domain"
	dErrors "fedlearn/pkg/domain-errors"
)

func TestNewDataset(t *testing.T) {
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	dsID := id.NewDatasetID()

	t.Run("valid", func(t *testing.T) {
		d, err := NewDataset(dsID, 3, 7, "sales.csv", crypto.FormatAESGCMv1, BlobKey(3, 7, dsID), now)
		require.NoError(t, err)
		assert.True(t, d.Encrypted())
		assert.Equal(t, "projects/3/users/7/"+dsID.String()+".bin", d.BlobKey)
	})

	cases := []struct {
		name   string
		id     id.DatasetID
		user   id.UserID
		format crypto.Format
		key    string
	}{
		{"nil id", id.DatasetID{}, 7, crypto.FormatPlain, "k"},
		{"no owner", dsID, 0, crypto.FormatPlain, "k"},
		{"unknown format", dsID, 7, "rot13", "k"},
		{"empty blob key", dsID, 7, crypto.FormatPlain, " "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewDataset(tc.id, 3, tc.user, "a.csv", tc.format, tc.key, now)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		})
	}
}

func TestRate(t *testing.T) {
	assert.Equal(t, 0.0, Rate(0, 0))
	assert.InDelta(t, 66.67, Rate(2, 3), 0.01)
	assert.Equal(t, 100.0, Rate(4, 4))
}

func TestCloneIsIndependent(t *testing.T) {
	d := &Dataset{Columns: []string{"a", "b"}}
	c := d.Clone()
	c.Columns[0] = "z"
	assert.Equal(t, "a", d.Columns[0])
}

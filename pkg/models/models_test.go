package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOccurrenceID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.gbif.org/occurrence/1270744105", "1270744105"},
		{"https://www.gbif.org/occurrence/1270744105/", "1270744105"},
		{"https://www.gbif.org/occurrence/1270744105?lang=es", "1270744105"},
		{"1270744105", "1270744105"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, OccurrenceID(tt.url))
		})
	}
}

func TestNewOccurrence(t *testing.T) {
	occ := NewOccurrence("https://www.gbif.org/occurrence/42")
	assert.Equal(t, "42", occ.ID)
	assert.Equal(t, "https://www.gbif.org/occurrence/42", occ.URL)
}

func TestDownloadResultSuccess(t *testing.T) {
	assert.True(t, DownloadResult{Path: "/tmp/42_1.jpg"}.Success())
	assert.False(t, DownloadResult{}.Success())
	assert.False(t, DownloadResult{Path: "/tmp/42_1.jpg", Err: errors.New("boom")}.Success())
}

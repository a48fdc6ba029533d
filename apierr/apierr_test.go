package apierr

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NotFound("Poll not found"), http.StatusNotFound},
		{"forbidden", Forbidden("nope"), http.StatusForbidden},
		{"invalid state", InvalidState("Poll is not active"), http.StatusBadRequest},
		{"already voted", AlreadyVoted(), http.StatusBadRequest},
		{"validation", Validation("title is required"), http.StatusBadRequest},
		{"wrapped", fmt.Errorf("vote: %w", NotFound("Poll not found")), http.StatusNotFound},
		{"database", fmt.Errorf("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.err))
		})
	}
}

func TestIs(t *testing.T) {
	assert.True(t, Is(AlreadyVoted(), KindAlreadyVoted))
	assert.False(t, Is(nil, KindInternal))
	assert.True(t, Is(fmt.Errorf("boom"), KindInternal))
	assert.Equal(t, "You have already voted in this poll", AlreadyVoted().Error())
}

type sample struct {
	Title  string   `json:"title" validate:"required"`
	Status string   `json:"status" validate:"omitempty,oneof=open closed"`
	Tags   []string `json:"tags" validate:"max=2"`
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(sample{Title: "ok", Status: "open"}))

	err := Validate(sample{})
	assert.True(t, Is(err, KindValidation))
	assert.EqualError(t, err, "title is required")

	err = Validate(sample{Title: "x", Status: "pending"})
	assert.EqualError(t, err, "status must be one of: open closed")

	err = Validate(sample{Title: "x", Tags: []string{"a", "b", "c"}})
	assert.EqualError(t, err, "tags must have at most 2")
}

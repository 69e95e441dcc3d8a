package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goimovel/internal/domain"
	apperror "goimovel/internal/errors"
)

func approved(t *testing.T) domain.Lifecycle {
	t.Helper()
	l, err := domain.Pending().Approve(domain.RatingBPlus)
	require.NoError(t, err)
	return l
}

func rejected(t *testing.T) domain.Lifecycle {
	t.Helper()
	l, err := domain.Pending().Reject("Fotos fora do padrão")
	require.NoError(t, err)
	return l
}

func TestLifecycle_ZeroValueIsPending(t *testing.T) {
	var l domain.Lifecycle
	assert.Equal(t, domain.StatusPending, l.Status())
	_, hasRating := l.Rating()
	_, hasReason := l.RejectionReason()
	assert.False(t, hasRating)
	assert.False(t, hasReason)
}

func TestLifecycle_Approve(t *testing.T) {
	l := approved(t)
	assert.Equal(t, domain.StatusApproved, l.Status())
	rating, ok := l.Rating()
	assert.True(t, ok)
	assert.Equal(t, domain.RatingBPlus, rating)
	_, hasReason := l.RejectionReason()
	assert.False(t, hasReason)
}

func TestLifecycle_Approve_InvalidRating(t *testing.T) {
	_, err := domain.Pending().Approve("E")
	assert.IsType(t, &apperror.ValidationError{}, err)
}

func TestLifecycle_Reject(t *testing.T) {
	l := rejected(t)
	assert.Equal(t, domain.StatusRejected, l.Status())
	reason, ok := l.RejectionReason()
	assert.True(t, ok)
	assert.Equal(t, "Fotos fora do padrão", reason)
}

func TestLifecycle_Reject_BlankReason(t *testing.T) {
	_, err := domain.Pending().Reject("   ")
	assert.IsType(t, &apperror.ValidationError{}, err)
}

func TestLifecycle_TransitionsOutsidePendingFail(t *testing.T) {
	for name, l := range map[string]domain.Lifecycle{"approved": approved(t), "rejected": rejected(t)} {
		t.Run(name, func(t *testing.T) {
			_, err := l.Approve(domain.RatingA)
			assert.IsType(t, &apperror.InvalidTransitionError{}, err)
			_, err = l.Reject("motivo")
			assert.IsType(t, &apperror.InvalidTransitionError{}, err)
		})
	}
}

func TestLifecycle_Resubmit(t *testing.T) {
	l, err := rejected(t).Resubmit()
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, l.Status())
	_, hasReason := l.RejectionReason()
	assert.False(t, hasReason)
	assert.Equal(t, domain.LifecycleRecord{}, l.Record())

	_, err = domain.Pending().Resubmit()
	assert.IsType(t, &apperror.InvalidTransitionError{}, err)
	_, err = approved(t).Resubmit()
	assert.IsType(t, &apperror.InvalidTransitionError{}, err)
}

func TestLifecycleRecord_RoundTrip(t *testing.T) {
	for _, l := range []domain.Lifecycle{domain.Pending(), approved(t), rejected(t)} {
		back, err := domain.LifecycleFromRecord(l.Record())
		require.NoError(t, err)
		assert.Equal(t, l, back)
	}
}

func TestLifecycleFromRecord_RejectsIllegalCombinations(t *testing.T) {
	reason := "x"
	rating := "A"
	bad := []domain.LifecycleRecord{
		{Moderated: true, Rejected: true, RejectionReason: &reason},
		{Moderated: true},
		{Moderated: true, PropertyRating: &rating, RejectionReason: &reason},
		{Rejected: true},
		{Rejected: true, RejectionReason: &reason, PropertyRating: &rating},
		{PropertyRating: &rating},
	}
	for _, rec := range bad {
		_, err := domain.LifecycleFromRecord(rec)
		assert.IsType(t, &apperror.InternalError{}, err)
	}
}

func TestLifecycle_JSON(t *testing.T) {
	data, err := json.Marshal(rejected(t))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"rejected","moderated":false,"rejected":true,"rejection_reason":"Fotos fora do padrão","property_rating":null}`, string(data))

	var back domain.Lifecycle
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, domain.StatusRejected, back.Status())

	err = json.Unmarshal([]byte(`{"moderated":true,"rejected":true}`), &back)
	assert.Error(t, err)
}

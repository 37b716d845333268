package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/staydesk/internal/domain"
)

func TestPublicServiceGuestFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx, p := env.newProperty(t, "Hill View")
	st := env.newStay(t, ctx)
	_, err := env.stays.IssueCode(ctx, st.ID, CodeInput{})
	require.NoError(t, err)

	r, err := env.public.View(context.Background(), "7xK3mPq")
	require.NoError(t, err)
	assert.Equal(t, CodeActiveUnfilled, r.State)
	assert.Equal(t, int64(1), r.Code.AccessedCount)
	assert.Equal(t, p.ID, r.Property.ID)
	assert.Equal(t, DefaultHouseRulesTitle, r.Rules.Title)

	r, err = env.public.Submit(context.Background(), "7xK3mPq", GuestFormInput{
		GuestNames:  []string{"A. Sharma", " "},
		PhoneNumber: "+919876543210",
		Email:       "a.sharma@example.com",
		ComingFrom:  "Pune",
		TermsAgreed: true,
	})
	require.NoError(t, err)
	assert.Equal(t, CodeActiveFilled, r.State)
	assert.True(t, r.Stay.FormFilled)
	assert.True(t, r.Stay.TermsAgreed)
	assert.NotNil(t, r.Stay.FormFilledAt)
	assert.NotNil(t, r.Stay.TermsAgreedAt)
	assert.Equal(t, 1, r.Stay.GuestCount)
	assert.Equal(t, "+919876543210", r.Stay.PhoneNumber)
	assert.Equal(t, "Pune", r.Stay.ComingFrom)
	require.Len(t, r.Guests, 1)
	assert.Equal(t, "A. Sharma", r.Guests[0].Name)

	r, err = env.public.View(context.Background(), "7xK3mPq")
	require.NoError(t, err)
	assert.Equal(t, CodeActiveFilled, r.State)
	assert.Equal(t, int64(2), r.Code.AccessedCount)
}

func TestPublicServiceUnknownCode(t *testing.T) {
	env := newTestEnv(t)

	r, err := env.public.View(context.Background(), "zzzzzzz")
	require.NoError(t, err)
	assert.Equal(t, CodeUnknown, r.State)

	_, err = env.public.Submit(context.Background(), "zzzzzzz", GuestFormInput{GuestNames: []string{"A"}, TermsAgreed: true})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPublicServiceExpiredCode(t *testing.T) {
	env := newTestEnv(t)
	ctx, _ := env.newProperty(t, "Hill View")
	st := env.newStay(t, ctx)

	expired := time.Now().Add(-time.Minute).UTC()
	c, err := env.codeStore.Replace(ctx, st.ID, "ExP1red", &expired)
	require.NoError(t, err)

	r, err := env.public.View(context.Background(), "ExP1red")
	require.NoError(t, err)
	assert.Equal(t, CodeExpired, r.State)

	_, err = env.public.Submit(context.Background(), "ExP1red", GuestFormInput{GuestNames: []string{"A"}, TermsAgreed: true})
	assert.ErrorIs(t, err, domain.ErrCodeExpired)

	stored, err := env.codeStore.GetByCode(ctx, c.Code)
	require.NoError(t, err)
	assert.Zero(t, stored.AccessedCount)
	assert.Nil(t, stored.LastAccessed)

	got, err := env.stays.Get(ctx, st.ID)
	require.NoError(t, err)
	assert.False(t, got.FormFilled)
}

func TestPublicServiceExpiryBoundary(t *testing.T) {
	env := newTestEnv(t)
	ctx, _ := env.newProperty(t, "Hill View")
	st := env.newStay(t, ctx)

	expires := time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC)
	_, err := env.codeStore.Replace(ctx, st.ID, "7xK3mPq", &expires)
	require.NoError(t, err)

	env.public.now = func() time.Time { return expires.Add(-time.Second) }
	r, err := env.public.View(context.Background(), "7xK3mPq")
	require.NoError(t, err)
	assert.Equal(t, CodeActiveUnfilled, r.State)

	env.public.now = func() time.Time { return expires }
	r, err = env.public.View(context.Background(), "7xK3mPq")
	require.NoError(t, err)
	assert.Equal(t, CodeExpired, r.State)
}

func TestPublicServiceSecondSubmitRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx, _ := env.newProperty(t, "Hill View")
	st := env.newStay(t, ctx)
	_, err := env.stays.IssueCode(ctx, st.ID, CodeInput{})
	require.NoError(t, err)

	_, err = env.public.Submit(context.Background(), "7xK3mPq", GuestFormInput{GuestNames: []string{"A. Sharma"}, ComingFrom: "Pune", TermsAgreed: true})
	require.NoError(t, err)

	r, err := env.public.Submit(context.Background(), "7xK3mPq", GuestFormInput{GuestNames: []string{"Intruder"}, ComingFrom: "Elsewhere", TermsAgreed: true})
	assert.ErrorIs(t, err, domain.ErrAlreadySubmitted)
	require.NotNil(t, r)
	assert.Equal(t, CodeActiveFilled, r.State)

	got, err := env.stays.Get(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pune", got.ComingFrom)
	require.Len(t, got.Guests, 1)
	assert.Equal(t, "A. Sharma", got.Guests[0].Name)

	c, err := env.codeStore.GetByStay(ctx, st.ID)
	require.NoError(t, err)
	assert.Zero(t, c.AccessedCount)
}

func TestPublicServiceSubmitValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx, _ := env.newProperty(t, "Hill View")
	st := env.newStay(t, ctx)
	_, err := env.stays.IssueCode(ctx, st.ID, CodeInput{})
	require.NoError(t, err)

	tests := []struct {
		name  string
		in    GuestFormInput
		field string
	}{
		{"no names", GuestFormInput{GuestNames: []string{" "}, TermsAgreed: true}, "guest_names"},
		{"terms not agreed", GuestFormInput{GuestNames: []string{"A"}}, "terms_agreed"},
		{"bad email", GuestFormInput{GuestNames: []string{"A"}, Email: "x@", TermsAgreed: true}, "email"},
		{"long phone", GuestFormInput{GuestNames: []string{"A"}, PhoneNumber: "1234567890123456", TermsAgreed: true}, "phone_number"},
		{"guest count", GuestFormInput{GuestNames: []string{"A"}, GuestCount: 25, TermsAgreed: true}, "guest_count"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, err := env.public.Submit(context.Background(), "7xK3mPq", tc.in)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tc.field)
			require.NotNil(t, r)
			assert.Equal(t, CodeActiveUnfilled, r.State)
		})
	}

	got, err := env.stays.Get(ctx, st.ID)
	require.NoError(t, err)
	assert.False(t, got.FormFilled)
}

func TestPublicServiceConcurrentViewsCounted(t *testing.T) {
	env := newTestEnv(t)
	ctx, _ := env.newProperty(t, "Hill View")
	st := env.newStay(t, ctx)
	_, err := env.stays.IssueCode(ctx, st.ID, CodeInput{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.public.View(context.Background(), "7xK3mPq")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	c, err := env.codeStore.GetByStay(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), c.AccessedCount)
	assert.NotNil(t, c.LastAccessed)
}

func TestCodeStateString(t *testing.T) {
	assert.Equal(t, "unknown", CodeUnknown.String())
	assert.Equal(t, "expired", CodeExpired.String())
	assert.Equal(t, "active-unfilled", CodeActiveUnfilled.String())
	assert.Equal(t, "active-filled", CodeActiveFilled.String())
}

func TestPublicServiceResolveDoesNotCount(t *testing.T) {
	env := newTestEnv(t)
	ctx, _ := env.newProperty(t, "Hill View")
	st := env.newStay(t, ctx, "A. Sharma")
	_, err := env.stays.IssueCode(ctx, st.ID, CodeInput{})
	require.NoError(t, err)

	r, err := env.public.Resolve(context.Background(), "7xK3mPq")
	require.NoError(t, err)
	assert.Equal(t, CodeActiveUnfilled, r.State)
	require.Len(t, r.Guests, 1)

	c, err := env.codeStore.GetByStay(ctx, st.ID)
	require.NoError(t, err)
	assert.Zero(t, c.AccessedCount)
}

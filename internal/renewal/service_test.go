package renewal

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/homepact/homepact/internal/shared"
)

type memRenewalRepo struct {
	renewals map[uuid.UUID]Renewal
}

func newMemRenewalRepo() *memRenewalRepo {
	return &memRenewalRepo{renewals: make(map[uuid.UUID]Renewal)}
}

func (r *memRenewalRepo) Create(ctx context.Context, ren Renewal) error {
	r.renewals[ren.ID] = ren
	return nil
}

func (r *memRenewalRepo) Get(ctx context.Context, id uuid.UUID) (Renewal, error) {
	ren, ok := r.renewals[id]
	if !ok {
		return Renewal{}, ErrNotFound
	}
	return ren, nil
}

func (r *memRenewalRepo) Update(ctx context.Context, ren Renewal) error {
	if _, ok := r.renewals[ren.ID]; !ok {
		return ErrNotFound
	}
	r.renewals[ren.ID] = ren
	return nil
}

type fakeExtender struct {
	calls  int
	expiry *time.Time
}

func (e *fakeExtender) ExtendExpiry(ctx context.Context, familyID, agreementID uuid.UUID, newExpiry *time.Time, reviewedAt time.Time) error {
	e.calls++
	e.expiry = newExpiry
	return nil
}

type captureNotifier struct {
	sent []shared.Notification
}

func (n *captureNotifier) Notify(ctx context.Context, note shared.Notification) error {
	n.sent = append(n.sent, note)
	return nil
}

type renewalFixture struct {
	repo     *memRenewalRepo
	extender *fakeExtender
	notifier *captureNotifier
	service  *Service
	now      time.Time
}

func newRenewalFixture(t *testing.T) *renewalFixture {
	t.Helper()
	f := &renewalFixture{
		repo:     newMemRenewalRepo(),
		extender: &fakeExtender{},
		notifier: &captureNotifier{},
		now:      time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	f.service = NewService(f.repo, f.extender, f.notifier, nil, nil).
		WithClock(func() time.Time { return f.now })
	return f
}

func (f *renewalFixture) initiate(t *testing.T, duration Duration, currentExpiry *time.Time) Renewal {
	t.Helper()
	r, err := f.service.Initiate(context.Background(), InitiateInput{
		AgreementID:   uuid.New(),
		FamilyID:      uuid.New(),
		ChildUID:      "child-1",
		Mode:          ModeAsIs,
		Duration:      duration,
		CurrentExpiry: currentExpiry,
	}, "parent-1")
	require.NoError(t, err)
	return r
}

func TestInitiateFixesExpiryFromCurrent(t *testing.T) {
	f := newRenewalFixture(t)
	current := f.now.AddDate(0, 1, 0)
	r := f.initiate(t, DurationSixMonths, &current)

	require.Equal(t, StatusParentInitiated, r.Status)
	require.NotNil(t, r.NewExpiryDate)
	require.Equal(t, current.AddDate(0, 6, 0), *r.NewExpiryDate)
	require.Equal(t, "parent-1", r.InitiatedByUID)
}

func TestInitiateWithoutCurrentExpiryUsesNow(t *testing.T) {
	f := newRenewalFixture(t)
	r := f.initiate(t, DurationOneYear, nil)

	require.NotNil(t, r.NewExpiryDate)
	require.Equal(t, f.now.AddDate(1, 0, 0), *r.NewExpiryDate)
}

func TestInitiateNoExpiryYieldsNilDate(t *testing.T) {
	f := newRenewalFixture(t)
	current := f.now.AddDate(0, 1, 0)
	r := f.initiate(t, DurationNoExpiry, &current)

	require.Nil(t, r.NewExpiryDate)
}

func TestParentConsentAdvancesToChild(t *testing.T) {
	f := newRenewalFixture(t)
	r := f.initiate(t, DurationThreeMonths, nil)

	signed, err := f.service.ParentConsent(context.Background(), r.ID, "parent-sig")
	require.NoError(t, err)
	require.Equal(t, StatusChildConsenting, signed.Status)
	require.NotNil(t, signed.ParentConsent)
	require.Equal(t, "parent-sig", signed.ParentConsent.Signature)

	require.Len(t, f.notifier.sent, 1)
	require.Equal(t, "child-1", f.notifier.sent[0].RecipientUID)
	require.Equal(t, "renewal_child_consent_needed", f.notifier.sent[0].Type)
}

func TestParentConsentWriteOnce(t *testing.T) {
	f := newRenewalFixture(t)
	r := f.initiate(t, DurationThreeMonths, nil)

	first, err := f.service.ParentConsent(context.Background(), r.ID, "original")
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour)
	second, err := f.service.ParentConsent(context.Background(), r.ID, "overwrite attempt")
	require.NoError(t, err)
	require.Equal(t, first.ParentConsent.Signature, second.ParentConsent.Signature)
	require.Equal(t, first.ParentConsent.SignedAt, second.ParentConsent.SignedAt)
	require.Len(t, f.notifier.sent, 1)
}

func TestChildCannotConsentBeforeParent(t *testing.T) {
	f := newRenewalFixture(t)
	r := f.initiate(t, DurationThreeMonths, nil)

	unchanged, err := f.service.ChildConsent(context.Background(), r.ID, "child-sig")
	require.NoError(t, err)
	require.Nil(t, unchanged.ChildConsent)
	require.Equal(t, StatusParentInitiated, unchanged.Status)
}

func TestChildConsentAfterParent(t *testing.T) {
	f := newRenewalFixture(t)
	r := f.initiate(t, DurationThreeMonths, nil)

	_, err := f.service.ParentConsent(context.Background(), r.ID, "parent-sig")
	require.NoError(t, err)
	signed, err := f.service.ChildConsent(context.Background(), r.ID, "child-sig")
	require.NoError(t, err)
	require.NotNil(t, signed.ChildConsent)
	require.True(t, CanComplete(signed))
}

func TestCompleteAppliesExpiryToAgreement(t *testing.T) {
	f := newRenewalFixture(t)
	r := f.initiate(t, DurationSixMonths, nil)

	_, err := f.service.ParentConsent(context.Background(), r.ID, "parent-sig")
	require.NoError(t, err)
	_, err = f.service.ChildConsent(context.Background(), r.ID, "child-sig")
	require.NoError(t, err)

	done, err := f.service.Complete(context.Background(), r.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	require.Equal(t, 1, f.extender.calls)
	require.Equal(t, r.NewExpiryDate, f.extender.expiry)
}

func TestCompleteWithoutBothConsentsIsNoOp(t *testing.T) {
	f := newRenewalFixture(t)
	r := f.initiate(t, DurationSixMonths, nil)

	_, err := f.service.ParentConsent(context.Background(), r.ID, "parent-sig")
	require.NoError(t, err)

	unchanged, err := f.service.Complete(context.Background(), r.ID)
	require.NoError(t, err)
	require.Equal(t, StatusChildConsenting, unchanged.Status)
	require.Zero(t, f.extender.calls)
}

func TestCancelBeforeCompletion(t *testing.T) {
	f := newRenewalFixture(t)
	r := f.initiate(t, DurationSixMonths, nil)

	cancelled, err := f.service.Cancel(context.Background(), r.ID, "parent-1")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
}

func TestCancelAfterCompletionIsNoOp(t *testing.T) {
	f := newRenewalFixture(t)
	r := f.initiate(t, DurationSixMonths, nil)

	_, err := f.service.ParentConsent(context.Background(), r.ID, "parent-sig")
	require.NoError(t, err)
	_, err = f.service.ChildConsent(context.Background(), r.ID, "child-sig")
	require.NoError(t, err)
	_, err = f.service.Complete(context.Background(), r.ID)
	require.NoError(t, err)

	still, err := f.service.Cancel(context.Background(), r.ID, "parent-1")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, still.Status)
}

func TestNextStepGuidance(t *testing.T) {
	f := newRenewalFixture(t)
	r := f.initiate(t, DurationSixMonths, nil)

	step, err := f.service.NextStep(context.Background(), r.ID)
	require.NoError(t, err)
	require.Equal(t, StepParentSign, step)

	_, err = f.service.ParentConsent(context.Background(), r.ID, "parent-sig")
	require.NoError(t, err)
	step, err = f.service.NextStep(context.Background(), r.ID)
	require.NoError(t, err)
	require.Equal(t, StepChildConsent, step)

	_, err = f.service.ChildConsent(context.Background(), r.ID, "child-sig")
	require.NoError(t, err)
	step, err = f.service.NextStep(context.Background(), r.ID)
	require.NoError(t, err)
	require.Equal(t, StepComplete, step)

	_, err = f.service.Complete(context.Background(), r.ID)
	require.NoError(t, err)
	step, err = f.service.NextStep(context.Background(), r.ID)
	require.NoError(t, err)
	require.Equal(t, StepDone, step)
}

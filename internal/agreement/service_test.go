package agreement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memAgreementRepo struct {
	agreements map[uuid.UUID]Agreement
}

func newMemAgreementRepo() *memAgreementRepo {
	return &memAgreementRepo{agreements: make(map[uuid.UUID]Agreement)}
}

func (r *memAgreementRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	// Mutations inside the callback land on a staging copy and only merge
	// back on success, mirroring commit/rollback.
	tx := &memAgreementTx{staged: make(map[uuid.UUID]Agreement)}
	for id, a := range r.agreements {
		tx.staged[id] = a
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.agreements = tx.staged
	return nil
}

func (r *memAgreementRepo) CreateDraft(ctx context.Context, a Agreement) error {
	r.agreements[a.ID] = a
	return nil
}

func (r *memAgreementRepo) Get(ctx context.Context, familyID, id uuid.UUID) (Agreement, error) {
	a, ok := r.agreements[id]
	if !ok || a.FamilyID != familyID {
		return Agreement{}, ErrNotFound
	}
	return a, nil
}

func (r *memAgreementRepo) FindActive(ctx context.Context, familyID uuid.UUID) (Agreement, error) {
	for _, a := range r.agreements {
		if a.FamilyID == familyID && a.Status == StatusActive {
			return a, nil
		}
	}
	return Agreement{}, ErrNotFound
}

func (r *memAgreementRepo) History(ctx context.Context, familyID uuid.UUID) ([]Agreement, error) {
	var out []Agreement
	for _, a := range r.agreements {
		if a.FamilyID == familyID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memAgreementRepo) UpdateSigning(ctx context.Context, familyID, id uuid.UUID, signing SigningStatus) error {
	a, err := r.Get(ctx, familyID, id)
	if err != nil {
		return err
	}
	a.Signing = signing
	r.agreements[id] = a
	return nil
}

func (r *memAgreementRepo) UpdateExpiry(ctx context.Context, familyID, id uuid.UUID, expiry *time.Time, reviewedAt time.Time) error {
	a, err := r.Get(ctx, familyID, id)
	if err != nil {
		return err
	}
	a.ExpiryDate = expiry
	a.LastReviewDate = &reviewedAt
	r.agreements[id] = a
	return nil
}

func (r *memAgreementRepo) MarkArchived(ctx context.Context, id uuid.UUID, status Status, reason ArchiveReason, supersededBy *uuid.UUID, at time.Time) error {
	a, ok := r.agreements[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	a.ArchiveReason = reason
	a.SupersededBy = supersededBy
	a.ArchivedAt = &at
	r.agreements[id] = a
	return nil
}

type memAgreementTx struct {
	staged map[uuid.UUID]Agreement
}

func (t *memAgreementTx) Get(ctx context.Context, familyID, id uuid.UUID) (Agreement, error) {
	a, ok := t.staged[id]
	if !ok || a.FamilyID != familyID {
		return Agreement{}, ErrNotFound
	}
	return a, nil
}

func (t *memAgreementTx) FindActive(ctx context.Context, familyID uuid.UUID) (Agreement, bool, error) {
	for _, a := range t.staged {
		if a.FamilyID == familyID && a.Status == StatusActive {
			return a, true, nil
		}
	}
	return Agreement{}, false, nil
}

func (t *memAgreementTx) ListVersions(ctx context.Context, familyID uuid.UUID) ([]string, error) {
	var out []string
	for _, a := range t.staged {
		if a.FamilyID == familyID && a.Version != "" {
			out = append(out, a.Version)
		}
	}
	return out, nil
}

func (t *memAgreementTx) MarkSuperseded(ctx context.Context, id, supersededBy uuid.UUID, at time.Time) error {
	a := t.staged[id]
	a.Status = StatusSuperseded
	a.ArchiveReason = ReasonNewVersion
	a.SupersededBy = &supersededBy
	a.ArchivedAt = &at
	t.staged[id] = a
	return nil
}

func (t *memAgreementTx) MarkActive(ctx context.Context, id uuid.UUID, version string, at time.Time) error {
	a := t.staged[id]
	a.Status = StatusActive
	a.Version = version
	a.ActivatedAt = &at
	t.staged[id] = a
	return nil
}

func (t *memAgreementTx) CountActive(ctx context.Context, familyID uuid.UUID) (int, error) {
	n := 0
	for _, a := range t.staged {
		if a.FamilyID == familyID && a.Status == StatusActive {
			n++
		}
	}
	return n, nil
}

func signedDraft(familyID uuid.UUID, now time.Time) Agreement {
	terms := "homework before screens"
	sig := Signature{SignedAt: now, TermsDigest: TermsDigest(terms)}
	return Agreement{
		ID:       uuid.New(),
		FamilyID: familyID,
		Status:   StatusDraft,
		Terms:    terms,
		Signing: SigningStatus{
			Required:   []string{"parent", "child"},
			Signatures: map[string]Signature{"parent": sig, "child": sig},
		},
		CreatedAt: now,
	}
}

func newTestService(repo *memAgreementRepo, now time.Time) *Service {
	return NewService(repo, nil, nil, nil).WithClock(func() time.Time { return now })
}

func TestActivateFirstAgreementGetsVersionOne(t *testing.T) {
	repo := newMemAgreementRepo()
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	familyID := uuid.New()
	draft := signedDraft(familyID, now)
	require.NoError(t, repo.CreateDraft(context.Background(), draft))

	activated, err := svc.Activate(context.Background(), familyID, draft.ID, "parent-1")
	require.NoError(t, err)
	require.Equal(t, StatusActive, activated.Status)
	require.Equal(t, "1", activated.Version)
	require.NotNil(t, activated.ActivatedAt)
}

func TestActivateSupersedesCurrentActive(t *testing.T) {
	repo := newMemAgreementRepo()
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	familyID := uuid.New()
	first := signedDraft(familyID, now)
	require.NoError(t, repo.CreateDraft(context.Background(), first))
	_, err := svc.Activate(context.Background(), familyID, first.ID, "parent-1")
	require.NoError(t, err)

	second := signedDraft(familyID, now)
	require.NoError(t, repo.CreateDraft(context.Background(), second))
	activated, err := svc.Activate(context.Background(), familyID, second.ID, "parent-1")
	require.NoError(t, err)
	require.Equal(t, "2", activated.Version)

	old, err := repo.Get(context.Background(), familyID, first.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSuperseded, old.Status)
	require.Equal(t, ReasonNewVersion, old.ArchiveReason)
	require.Equal(t, &second.ID, old.SupersededBy)

	// Exactly one active agreement remains.
	active, err := repo.FindActive(context.Background(), familyID)
	require.NoError(t, err)
	require.Equal(t, second.ID, active.ID)
}

func TestActivateVersionsNeverReused(t *testing.T) {
	repo := newMemAgreementRepo()
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	familyID := uuid.New()
	first := signedDraft(familyID, now)
	require.NoError(t, repo.CreateDraft(context.Background(), first))
	_, err := svc.Activate(context.Background(), familyID, first.ID, "parent-1")
	require.NoError(t, err)

	// Manually archive the only version, then activate a fresh draft: the
	// retired "1" must not come back.
	_, err = svc.Archive(context.Background(), familyID, first.ID, ReasonManual, nil, "parent-1")
	require.NoError(t, err)

	second := signedDraft(familyID, now)
	require.NoError(t, repo.CreateDraft(context.Background(), second))
	activated, err := svc.Activate(context.Background(), familyID, second.ID, "parent-1")
	require.NoError(t, err)
	require.Equal(t, "2", activated.Version)
}

func TestActivateRequiresCompleteSignatures(t *testing.T) {
	repo := newMemAgreementRepo()
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	familyID := uuid.New()
	draft := signedDraft(familyID, now)
	delete(draft.Signing.Signatures, "child")
	require.NoError(t, repo.CreateDraft(context.Background(), draft))

	_, err := svc.Activate(context.Background(), familyID, draft.ID, "parent-1")
	require.ErrorIs(t, err, ErrSignaturesIncomplete)

	stored, err := repo.Get(context.Background(), familyID, draft.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, stored.Status)
}

func TestActivateAlreadyActive(t *testing.T) {
	repo := newMemAgreementRepo()
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	familyID := uuid.New()
	draft := signedDraft(familyID, now)
	require.NoError(t, repo.CreateDraft(context.Background(), draft))
	_, err := svc.Activate(context.Background(), familyID, draft.ID, "parent-1")
	require.NoError(t, err)

	_, err = svc.Activate(context.Background(), familyID, draft.ID, "parent-1")
	require.ErrorIs(t, err, ErrAlreadyActive)
}

func TestActivateSupersededAgreementStaysRetired(t *testing.T) {
	repo := newMemAgreementRepo()
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	familyID := uuid.New()
	first := signedDraft(familyID, now)
	require.NoError(t, repo.CreateDraft(context.Background(), first))
	_, err := svc.Activate(context.Background(), familyID, first.ID, "parent-1")
	require.NoError(t, err)

	second := signedDraft(familyID, now)
	require.NoError(t, repo.CreateDraft(context.Background(), second))
	_, err = svc.Activate(context.Background(), familyID, second.ID, "parent-1")
	require.NoError(t, err)

	// The superseded document still carries complete signatures, but its
	// retirement is final.
	_, err = svc.Activate(context.Background(), familyID, first.ID, "parent-1")
	require.ErrorIs(t, err, ErrAlreadyArchived)

	old, err := repo.Get(context.Background(), familyID, first.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSuperseded, old.Status)
	require.Equal(t, "1", old.Version)

	active, err := repo.FindActive(context.Background(), familyID)
	require.NoError(t, err)
	require.Equal(t, second.ID, active.ID)
	require.Equal(t, "2", active.Version)
}

func TestActivateArchivedAgreement(t *testing.T) {
	repo := newMemAgreementRepo()
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	familyID := uuid.New()
	draft := signedDraft(familyID, now)
	require.NoError(t, repo.CreateDraft(context.Background(), draft))
	_, err := svc.Activate(context.Background(), familyID, draft.ID, "parent-1")
	require.NoError(t, err)
	_, err = svc.Archive(context.Background(), familyID, draft.ID, ReasonManual, nil, "parent-1")
	require.NoError(t, err)

	_, err = svc.Activate(context.Background(), familyID, draft.ID, "parent-1")
	require.ErrorIs(t, err, ErrAlreadyArchived)

	stored, err := repo.Get(context.Background(), familyID, draft.ID)
	require.NoError(t, err)
	require.Equal(t, StatusArchived, stored.Status)
}

func TestActivateUnknownAgreement(t *testing.T) {
	repo := newMemAgreementRepo()
	svc := newTestService(repo, time.Now())

	_, err := svc.Activate(context.Background(), uuid.New(), uuid.New(), "parent-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSignRecordsTermsDigest(t *testing.T) {
	repo := newMemAgreementRepo()
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	familyID := uuid.New()
	created, err := svc.CreateDraft(context.Background(), CreateDraftInput{
		FamilyID: familyID,
		Terms:    "chores on saturday mornings",
		Required: []string{"parent", "child"},
	}, "parent-1")
	require.NoError(t, err)

	signed, err := svc.Sign(context.Background(), familyID, created.ID, "parent", "parent-1")
	require.NoError(t, err)
	sig, ok := signed.Signing.Signatures["parent"]
	require.True(t, ok)
	require.Equal(t, TermsDigest("chores on saturday mornings"), sig.TermsDigest)
	require.False(t, signed.Signing.Complete())
}

func TestSignOutsideDraft(t *testing.T) {
	repo := newMemAgreementRepo()
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	familyID := uuid.New()
	draft := signedDraft(familyID, now)
	require.NoError(t, repo.CreateDraft(context.Background(), draft))
	_, err := svc.Activate(context.Background(), familyID, draft.ID, "parent-1")
	require.NoError(t, err)

	_, err = svc.Sign(context.Background(), familyID, draft.ID, "parent", "parent-1")
	require.ErrorIs(t, err, ErrAlreadyActive)

	// Once retired the document reports its archival, not a stale
	// already-active state.
	_, err = svc.Archive(context.Background(), familyID, draft.ID, ReasonManual, nil, "parent-1")
	require.NoError(t, err)
	_, err = svc.Sign(context.Background(), familyID, draft.ID, "parent", "parent-1")
	require.ErrorIs(t, err, ErrAlreadyArchived)
}

func TestArchiveManual(t *testing.T) {
	repo := newMemAgreementRepo()
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	familyID := uuid.New()
	draft := signedDraft(familyID, now)
	require.NoError(t, repo.CreateDraft(context.Background(), draft))
	_, err := svc.Activate(context.Background(), familyID, draft.ID, "parent-1")
	require.NoError(t, err)

	archived, err := svc.Archive(context.Background(), familyID, draft.ID, ReasonManual, nil, "parent-1")
	require.NoError(t, err)
	require.Equal(t, StatusArchived, archived.Status)
	require.Equal(t, ReasonManual, archived.ArchiveReason)
	require.True(t, archived.Terminal())

	_, err = svc.Archive(context.Background(), familyID, draft.ID, ReasonManual, nil, "parent-1")
	require.ErrorIs(t, err, ErrAlreadyArchived)
}

func TestOutlookProjection(t *testing.T) {
	repo := newMemAgreementRepo()
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	familyID := uuid.New()
	expiry := now.Add(5 * 24 * time.Hour)
	draft := signedDraft(familyID, now)
	draft.ExpiryDate = &expiry
	require.NoError(t, repo.CreateDraft(context.Background(), draft))

	out, err := svc.Outlook(context.Background(), familyID, draft.ID)
	require.NoError(t, err)
	require.Equal(t, WarningCritical, out.WarningLevel)
	require.Equal(t, GraceNotStarted, out.GraceStatus)
	require.NotNil(t, out.DaysUntilExpiry)
	require.Equal(t, 5, *out.DaysUntilExpiry)
	require.False(t, out.AnnualReviewDue)
}

func TestExtendExpiryResetsReviewClock(t *testing.T) {
	repo := newMemAgreementRepo()
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	familyID := uuid.New()
	draft := signedDraft(familyID, now)
	require.NoError(t, repo.CreateDraft(context.Background(), draft))

	newExpiry := now.AddDate(0, 6, 0)
	require.NoError(t, svc.ExtendExpiry(context.Background(), familyID, draft.ID, &newExpiry, now))

	stored, err := repo.Get(context.Background(), familyID, draft.ID)
	require.NoError(t, err)
	require.Equal(t, &newExpiry, stored.ExpiryDate)
	require.Equal(t, &now, stored.LastReviewDate)
}

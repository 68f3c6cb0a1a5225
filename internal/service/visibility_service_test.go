package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/bidworks/internal/model"
)

func visibleIDs(t *testing.T, env *testEnv, contractorID uuid.UUID, limit int) []uuid.UUID {
	t.Helper()
	jobs, _, err := env.visibility.VisibleJobs(context.Background(), contractorID, time.Now(), model.JobCursor{}, limit)
	if err != nil {
		t.Fatalf("VisibleJobs: %v", err)
	}
	ids := make([]uuid.UUID, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.ID)
	}
	return ids
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func TestVisibleJobs_BasicTierRadiusAndDelay(t *testing.T) {
	env := newTestEnv()
	contractorID := env.contractor(model.TierBasic)
	customerID := uuid.New()

	// 1h old at 30km: blocked by both the 24h delay and the 25km radius.
	young30km := env.openJob(customerID, time.Hour, offsetKm(homeLat, 30), homeLon)
	// 25h old at 30km: past the delay but outside the radius.
	old30km := env.openJob(customerID, 25*time.Hour, offsetKm(homeLat, 30), homeLon)
	// 25h old at 10km: visible.
	old10km := env.openJob(customerID, 25*time.Hour, offsetKm(homeLat, 10), homeLon)
	// 1h old at 10km: inside the radius but still delayed.
	young10km := env.openJob(customerID, time.Hour, offsetKm(homeLat, 10), homeLon)

	ids := visibleIDs(t, env, contractorID, 10)
	if contains(ids, young30km.ID) || contains(ids, old30km.ID) || contains(ids, young10km.ID) {
		t.Fatalf("visible set %v leaked a delayed or out-of-radius job", ids)
	}
	if !contains(ids, old10km.ID) {
		t.Fatalf("expected %s visible, got %v", old10km.ID, ids)
	}
}

func TestVisibleJobs_PremiumSeesEverythingImmediately(t *testing.T) {
	env := newTestEnv()
	contractorID := env.contractor(model.TierPremium)
	customerID := uuid.New()

	near := env.openJob(customerID, time.Minute, homeLat, homeLon)
	far := env.openJob(customerID, time.Minute, offsetKm(homeLat, 900), homeLon)

	ids := visibleIDs(t, env, contractorID, 10)
	if !contains(ids, near.ID) || !contains(ids, far.ID) {
		t.Fatalf("premium should see near and far fresh jobs, got %v", ids)
	}
}

func TestVisibleJobs_FutureCreatedJobHidden(t *testing.T) {
	env := newTestEnv()
	contractorID := env.contractor(model.TierPremium)

	// clock skew: a job stamped in the future stays hidden until the
	// clock catches up.
	future := env.openJob(uuid.New(), -time.Hour, homeLat, homeLon)

	ids := visibleIDs(t, env, contractorID, 10)
	if contains(ids, future.ID) {
		t.Fatalf("future-created job %s should not be visible", future.ID)
	}
}

func TestVisibleJobs_ExcludesNonOpen(t *testing.T) {
	env := newTestEnv()
	contractorID := env.contractor(model.TierPremium)
	customerID := uuid.New()

	cancelled := env.openJob(customerID, time.Hour, homeLat, homeLon)
	cancelled.Status = model.JobStatusCancelled
	env.store.putJob(cancelled)

	inProgress := env.openJob(customerID, time.Hour, homeLat, homeLon)
	bid := env.store.putBid(model.Bid{JobID: inProgress.ID, ContractorID: uuid.New(), Status: model.BidStatusAccepted})
	inProgress.Status = model.JobStatusInProgress
	inProgress.AcceptedBidID = &bid.ID
	env.store.putJob(inProgress)

	open := env.openJob(customerID, time.Hour, homeLat, homeLon)

	ids := visibleIDs(t, env, contractorID, 10)
	if contains(ids, cancelled.ID) || contains(ids, inProgress.ID) {
		t.Fatalf("non-open jobs leaked into %v", ids)
	}
	if !contains(ids, open.ID) {
		t.Fatalf("open job missing from %v", ids)
	}
}

func TestVisibleJobs_OrderedNewestFirstAndRestartable(t *testing.T) {
	env := newTestEnv()
	contractorID := env.contractor(model.TierPremium)
	customerID := uuid.New()

	var created []model.Job
	for i := 0; i < 5; i++ {
		created = append(created, env.openJob(customerID, time.Duration(i+1)*time.Hour, homeLat, homeLon))
	}

	first, cursor, err := env.visibility.VisibleJobs(context.Background(), contractorID, time.Now(), model.JobCursor{}, 2)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 jobs on first page, got %d", len(first))
	}
	if first[0].ID != created[0].ID || first[1].ID != created[1].ID {
		t.Fatalf("expected newest-first ordering, got %s then %s", first[0].ID, first[1].ID)
	}
	if cursor.IsZero() {
		t.Fatal("expected a continuation cursor")
	}

	second, _, err := env.visibility.VisibleJobs(context.Background(), contractorID, time.Now(), cursor, 10)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second) != 3 {
		t.Fatalf("expected 3 jobs on second page, got %d", len(second))
	}
	for _, job := range second {
		if job.ID == first[0].ID || job.ID == first[1].ID {
			t.Fatalf("second page repeated job %s", job.ID)
		}
	}

	// restart from the same cursor yields the same page
	again, _, err := env.visibility.VisibleJobs(context.Background(), contractorID, time.Now(), cursor, 10)
	if err != nil {
		t.Fatalf("restarted page: %v", err)
	}
	if len(again) != len(second) {
		t.Fatalf("restart returned %d jobs, want %d", len(again), len(second))
	}
	for i := range again {
		if again[i].ID != second[i].ID {
			t.Fatalf("restart diverged at index %d", i)
		}
	}
}

func TestVisibleJobs_NoMembership(t *testing.T) {
	env := newTestEnv()
	_, _, err := env.visibility.VisibleJobs(context.Background(), uuid.New(), time.Now(), model.JobCursor{}, 10)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestVisibleJobs_InvalidLimit(t *testing.T) {
	env := newTestEnv()
	contractorID := env.contractor(model.TierBasic)
	_, _, err := env.visibility.VisibleJobs(context.Background(), contractorID, time.Now(), model.JobCursor{}, 0)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

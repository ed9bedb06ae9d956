package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/noahpengding/peng-finance/internal/jobs"
)

func TestQueue_PublishAndProcess(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 2, 3, store)
	defer q.Close()

	var processed atomic.Int32
	done := make(chan string, 1)

	err := q.Start(context.Background(), func(ctx context.Context, job jobs.Job) error {
		processed.Add(1)
		done <- job.GetID()
		return nil
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job := &jobs.SyncJob{Reason: "import", Username: "denis"}
	if err := q.PublishSync(context.Background(), job); err != nil {
		t.Fatalf("PublishSync failed: %v", err)
	}

	select {
	case id := <-done:
		if id != job.JobID {
			t.Errorf("processed job %q, want %q", id, job.JobID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
	}

	// Status reaches completed; processing finishes after the handler
	// returns, so poll briefly.
	deadline := time.Now().Add(time.Second)
	for {
		saved, err := store.GetJob(context.Background(), job.JobID)
		if err != nil {
			t.Fatalf("GetJob failed: %v", err)
		}
		if saved.Status == jobs.JobStatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job status = %q, want completed", saved.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestQueue_RetriesFailedJobs(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, 2, store)
	defer q.Close()

	var attempts atomic.Int32
	succeeded := make(chan struct{}, 1)

	err := q.Start(context.Background(), func(ctx context.Context, job jobs.Job) error {
		if attempts.Add(1) < 3 {
			return errors.New("push failed")
		}
		succeeded <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := q.PublishSync(context.Background(), &jobs.SyncJob{Reason: "deduplicate"}); err != nil {
		t.Fatalf("PublishSync failed: %v", err)
	}

	select {
	case <-succeeded:
	case <-time.After(10 * time.Second):
		t.Fatal("job never succeeded after retries")
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("handler ran %d times, want 3", got)
	}
}

func TestQueue_RetryAfterCloseMarksJobFailed(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, 2, store)

	attempted := make(chan struct{}, 1)
	err := q.Start(context.Background(), func(ctx context.Context, job jobs.Job) error {
		attempted <- struct{}{}
		return errors.New("push failed")
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job := &jobs.SyncJob{Reason: "import"}
	if err := q.PublishSync(context.Background(), job); err != nil {
		t.Fatalf("PublishSync failed: %v", err)
	}

	select {
	case <-attempted:
	case <-time.After(2 * time.Second):
		t.Fatal("job was never attempted")
	}

	// Close while the retry backoff is pending; the republish must not
	// leave the job stuck in retrying.
	if err := q.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		saved, err := store.GetJob(context.Background(), job.JobID)
		if err != nil {
			t.Fatalf("GetJob failed: %v", err)
		}
		if saved.Status == jobs.JobStatusFailed {
			if saved.Error == "" {
				t.Error("failed job has no recorded error")
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job status = %q, want failed after closed retry", saved.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestQueue_PublishAfterClose(t *testing.T) {
	q := NewQueue(1, 1, 1, nil)
	if err := q.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	err := q.PublishSync(context.Background(), &jobs.SyncJob{Reason: "import"})
	if err == nil {
		t.Error("expected error publishing to closed queue")
	}
}

func TestStore_ListJobsFilter(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	for _, j := range []*jobs.SyncJob{
		{JobID: "a", Reason: "import", Status: jobs.JobStatusCompleted},
		{JobID: "b", Reason: "import", Status: jobs.JobStatusFailed},
		{JobID: "c", Reason: "deduplicate", Status: jobs.JobStatusCompleted},
	} {
		if err := store.SaveJob(ctx, j); err != nil {
			t.Fatalf("SaveJob failed: %v", err)
		}
	}

	got, err := store.ListJobs(ctx, jobs.JobFilter{Reason: "import"})
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("ListJobs(reason=import) returned %d jobs, want 2", len(got))
	}

	got, err = store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusFailed})
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(got) != 1 || got[0].JobID != "b" {
		t.Errorf("ListJobs(status=failed) = %+v, want just job b", got)
	}
}

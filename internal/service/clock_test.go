package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"ourpainthub/internal/service"
	"ourpainthub/internal/store/memory"
)

// Services are shared across requests; with Now unset they must fall back to
// the wall clock without mutating themselves. Run with -race.
func TestServicesWithoutClockAreSafeForConcurrentUse(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	owner := mustUser(t, st, "owner@example.com", false)
	audit := &service.AuditLog{Store: st}
	projects := &service.ProjectsService{Projects: st, Shares: st, Users: st, Friends: st, Audit: audit}
	profiles := &service.ProfileService{Profiles: st, Friends: st, Audit: audit}
	content := &service.ContentService{Articles: st, Releases: st, Questions: st, Audit: audit}

	var wg sync.WaitGroup
	errs := make(chan error, 24)
	for i := 0; i < 8; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			_, err := projects.Create(ctx, owner.ID, service.NewProject{
				Name:     fmt.Sprintf("Sketch %d", i),
				FileName: "sketch.txt",
				Payload:  []byte("lines"),
			})
			errs <- err
		}(i)
		go func() {
			defer wg.Done()
			_, err := profiles.UpdateProfile(ctx, owner.ID, service.ProfileUpdate{Bio: strPtr("hello")})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := content.AskQuestion(ctx, owner, "Any brushes?")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent call failed: %v", err)
		}
	}

	if projects.Now != nil || profiles.Now != nil || content.Now != nil || audit.Now != nil {
		t.Fatalf("services must not install a clock on themselves")
	}
	owned, err := st.ListOwned(ctx, owner.ID)
	if err != nil || len(owned) != 8 {
		t.Fatalf("expected 8 projects, got %d (%v)", len(owned), err)
	}
	entries, _ := st.ListAudit(ctx, 100)
	if len(entries) != 24 || entries[0].CreatedAt.IsZero() {
		t.Fatalf("unexpected audit entries: %d", len(entries))
	}
}

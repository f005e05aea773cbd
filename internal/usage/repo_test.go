package usage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/codeservir/chatserve-backend/pkg/db/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.ChatUsage{}); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

func TestIncrementCreatesAndBumps(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	chatbotID := uuid.New()

	count, err := repo.Increment(ctx, chatbotID)
	if err != nil {
		t.Fatalf("first increment: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}

	count, err = repo.Increment(ctx, chatbotID)
	if err != nil {
		t.Fatalf("second increment: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestIncrementBelowStopsAtLimit(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	chatbotID := uuid.New()

	for i := int64(1); i <= 3; i++ {
		count, allowed, err := repo.IncrementBelow(ctx, chatbotID, 3)
		if err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
		if !allowed {
			t.Fatalf("consume %d denied below limit", i)
		}
		if count != i {
			t.Fatalf("count = %d, want %d", count, i)
		}
	}

	count, allowed, err := repo.IncrementBelow(ctx, chatbotID, 3)
	if err != nil {
		t.Fatalf("consume over limit: %v", err)
	}
	if allowed {
		t.Fatal("consume allowed at limit")
	}
	if count != 3 {
		t.Fatalf("count after denial = %d, want 3 (no overshoot)", count)
	}
}

func TestIncrementBelowConcurrentNoOvershoot(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	chatbotID := uuid.New()
	const limit = 10

	var wg sync.WaitGroup
	granted := make(chan bool, 25)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, allowed, err := repo.IncrementBelow(ctx, chatbotID, limit)
			if err != nil {
				// sqlite can return busy under contention; a miss here
				// only shrinks the granted set, never overshoots.
				return
			}
			granted <- allowed
		}()
	}
	wg.Wait()
	close(granted)

	grants := 0
	for allowed := range granted {
		if allowed {
			grants++
		}
	}
	if grants > limit {
		t.Fatalf("granted %d units over limit %d", grants, limit)
	}

	final, err := repo.Read(ctx, chatbotID)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if final > limit {
		t.Fatalf("final count %d exceeds limit %d", final, limit)
	}
}

func TestResetZeroesCounter(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	chatbotID := uuid.New()

	// Reset on a missing row creates it at zero.
	if err := repo.Reset(ctx, chatbotID); err != nil {
		t.Fatalf("reset missing row: %v", err)
	}

	if _, err := repo.Increment(ctx, chatbotID); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := repo.Reset(ctx, chatbotID); err != nil {
		t.Fatalf("reset: %v", err)
	}

	count, err := repo.Read(ctx, chatbotID)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if count != 0 {
		t.Fatalf("count after reset = %d, want 0", count)
	}
}

func TestReadMissingRowIsZero(t *testing.T) {
	repo := NewRepository(newTestDB(t))

	count, err := repo.Read(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}
}

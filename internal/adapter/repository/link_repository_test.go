package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/paylink/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/paylink/internal/domain/errors"
	"github.com/wekeepgrowing/paylink/internal/domain/model"
	domainRepo "github.com/wekeepgrowing/paylink/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var baseTime = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "links.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.PaymentLink{}, &model.StripeWebhookEvent{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func linkRepositories(t *testing.T) map[string]domainRepo.LinkRepository {
	return map[string]domainRepo.LinkRepository{
		"memory": NewMemoryLinkRepository(),
		"gorm":   NewLinkRepository(newSQLiteDB(t), zap.NewNop()),
	}
}

func newLink(n int, orderID, email string) *entity.PaymentLink {
	createdAt := baseTime.Add(time.Duration(n) * time.Minute)
	return &entity.PaymentLink{
		ID:                 fmt.Sprintf("00000000-0000-4000-8000-%012d", n),
		Token:              fmt.Sprintf("tok_%d", n),
		OrderID:            orderID,
		Email:              email,
		Amount:             int64(1000 * n),
		Currency:           "usd",
		Status:             entity.LinkStatusPending,
		ExternalSessionRef: fmt.Sprintf("cs_test_%d", n),
		CheckoutURL:        "https://checkout.stripe.com/c/pay/cs_test",
		CreatedAt:          createdAt,
		ExpiresAt:          createdAt.Add(5 * time.Minute),
	}
}

func TestLinkRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	for name, repo := range linkRepositories(t) {
		t.Run(name, func(t *testing.T) {
			link := newLink(1, "ORD-1", "a@example.com")
			require.NoError(t, repo.Create(ctx, link))

			got, err := repo.GetByID(ctx, link.ID)
			require.NoError(t, err)
			assert.Equal(t, link.Token, got.Token)
			assert.Equal(t, int64(1000), got.Amount)
			assert.Equal(t, entity.LinkStatusPending, got.Status)
			assert.True(t, link.ExpiresAt.Equal(got.ExpiresAt))

			byToken, err := repo.GetByToken(ctx, link.Token)
			require.NoError(t, err)
			assert.Equal(t, link.ID, byToken.ID)

			_, err = repo.GetByID(ctx, "missing")
			assert.ErrorIs(t, err, domainErrors.ErrLinkNotFound)
			_, err = repo.GetByToken(ctx, "missing")
			assert.ErrorIs(t, err, domainErrors.ErrLinkNotFound)
		})
	}
}

func TestLinkRepository_CompareAndSetStatus(t *testing.T) {
	ctx := context.Background()
	for name, repo := range linkRepositories(t) {
		t.Run(name, func(t *testing.T) {
			link := newLink(1, "", "")
			require.NoError(t, repo.Create(ctx, link))

			paidAt := link.CreatedAt.Add(time.Minute)
			ok, err := repo.CompareAndSetStatus(ctx, link.ID, entity.LinkStatusPending, entity.LinkStatusPaid,
				entity.StatusUpdate{At: paidAt, SessionRef: "cs_test_paid"})
			require.NoError(t, err)
			assert.True(t, ok)

			// stored status is no longer pending, so the second CAS loses
			ok, err = repo.CompareAndSetStatus(ctx, link.ID, entity.LinkStatusPending, entity.LinkStatusExpired,
				entity.StatusUpdate{At: paidAt.Add(time.Hour)})
			require.NoError(t, err)
			assert.False(t, ok)

			got, err := repo.GetByID(ctx, link.ID)
			require.NoError(t, err)
			assert.Equal(t, entity.LinkStatusPaid, got.Status)
			assert.Equal(t, "cs_test_paid", got.ExternalSessionRef)
			require.NotNil(t, got.PaidAt)
			assert.True(t, paidAt.Equal(*got.PaidAt))
			assert.Nil(t, got.ExpiredAt)

			_, err = repo.CompareAndSetStatus(ctx, "missing", entity.LinkStatusPending, entity.LinkStatusPaid, entity.StatusUpdate{At: paidAt})
			assert.ErrorIs(t, err, domainErrors.ErrLinkNotFound)

			_, err = repo.CompareAndSetStatus(ctx, link.ID, entity.LinkStatusPaid, entity.LinkStatusExpired, entity.StatusUpdate{At: paidAt})
			assert.Error(t, err)
		})
	}
}

func TestLinkRepository_CompareAndSetStatus_SingleWinner(t *testing.T) {
	ctx := context.Background()
	for name, repo := range linkRepositories(t) {
		t.Run(name, func(t *testing.T) {
			link := newLink(1, "", "")
			require.NoError(t, repo.Create(ctx, link))

			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				wins []entity.LinkStatus
			)
			for i := 0; i < 20; i++ {
				to := entity.LinkStatusPaid
				if i%2 == 0 {
					to = entity.LinkStatusExpired
				}
				wg.Add(1)
				go func(to entity.LinkStatus) {
					defer wg.Done()
					ok, err := repo.CompareAndSetStatus(ctx, link.ID, entity.LinkStatusPending, to,
						entity.StatusUpdate{At: link.ExpiresAt})
					assert.NoError(t, err)
					if ok {
						mu.Lock()
						wins = append(wins, to)
						mu.Unlock()
					}
				}(to)
			}
			wg.Wait()

			require.Len(t, wins, 1)
			got, err := repo.GetByID(ctx, link.ID)
			require.NoError(t, err)
			assert.Equal(t, wins[0], got.Status)
		})
	}
}

func TestLinkRepository_FlagReconciliation(t *testing.T) {
	ctx := context.Background()
	for name, repo := range linkRepositories(t) {
		t.Run(name, func(t *testing.T) {
			link := newLink(1, "", "")
			require.NoError(t, repo.Create(ctx, link))

			require.NoError(t, repo.FlagReconciliation(ctx, link.ID, "cs_late", baseTime.Add(time.Hour)))
			got, err := repo.GetByID(ctx, link.ID)
			require.NoError(t, err)
			assert.True(t, got.NeedsReconciliation)
			assert.Equal(t, "cs_late", got.ReconciliationRef)
			assert.Equal(t, entity.LinkStatusPending, got.Status)

			assert.ErrorIs(t, repo.FlagReconciliation(ctx, "missing", "x", baseTime), domainErrors.ErrLinkNotFound)
		})
	}
}

func TestLinkRepository_ListExpirable(t *testing.T) {
	ctx := context.Background()
	for name, repo := range linkRepositories(t) {
		t.Run(name, func(t *testing.T) {
			for n := 1; n <= 3; n++ {
				require.NoError(t, repo.Create(ctx, newLink(n, "", "")))
			}
			paid := newLink(0, "", "")
			require.NoError(t, repo.Create(ctx, paid))
			_, err := repo.CompareAndSetStatus(ctx, paid.ID, entity.LinkStatusPending, entity.LinkStatusPaid, entity.StatusUpdate{At: baseTime})
			require.NoError(t, err)

			// links 1 and 2 expire at 09:06 and 09:07; link 3 at 09:08
			now := baseTime.Add(7*time.Minute + 30*time.Second)
			links, err := repo.ListExpirable(ctx, now, 0)
			require.NoError(t, err)
			require.Len(t, links, 2)
			assert.Equal(t, newLink(1, "", "").ID, links[0].ID)
			assert.Equal(t, newLink(2, "", "").ID, links[1].ID)

			links, err = repo.ListExpirable(ctx, now, 1)
			require.NoError(t, err)
			assert.Len(t, links, 1)

			// exactly at expires_at is not yet expirable
			links, err = repo.ListExpirable(ctx, newLink(1, "", "").ExpiresAt, 0)
			require.NoError(t, err)
			assert.Empty(t, links)
		})
	}
}

func TestLinkRepository_ListAndExport(t *testing.T) {
	ctx := context.Background()
	for name, repo := range linkRepositories(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, repo.Create(ctx, newLink(1, "ORD-100", "Alice@Example.com")))
			require.NoError(t, repo.Create(ctx, newLink(2, "ORD-200", "bob@example.com")))
			require.NoError(t, repo.Create(ctx, newLink(3, "ORD-101", "carol@example.com")))
			_, err := repo.CompareAndSetStatus(ctx, newLink(2, "", "").ID, entity.LinkStatusPending, entity.LinkStatusPaid, entity.StatusUpdate{At: baseTime})
			require.NoError(t, err)

			links, total, err := repo.List(ctx, entity.LinkFilter{}, 2, 0)
			require.NoError(t, err)
			assert.Equal(t, int64(3), total)
			require.Len(t, links, 2)
			assert.Equal(t, "ORD-101", links[0].OrderID)
			assert.Equal(t, "ORD-200", links[1].OrderID)

			links, total, err = repo.List(ctx, entity.LinkFilter{}, 2, 2)
			require.NoError(t, err)
			assert.Equal(t, int64(3), total)
			require.Len(t, links, 1)
			assert.Equal(t, "ORD-100", links[0].OrderID)

			links, total, err = repo.List(ctx, entity.LinkFilter{OrderID: "ORD-10"}, 10, 0)
			require.NoError(t, err)
			assert.Equal(t, int64(2), total)
			assert.Len(t, links, 2)

			links, _, err = repo.List(ctx, entity.LinkFilter{Email: "alice@"}, 10, 0)
			require.NoError(t, err)
			require.Len(t, links, 1)
			assert.Equal(t, "ORD-100", links[0].OrderID)

			links, _, err = repo.List(ctx, entity.LinkFilter{Status: entity.LinkStatusPaid}, 10, 0)
			require.NoError(t, err)
			require.Len(t, links, 1)
			assert.Equal(t, "ORD-200", links[0].OrderID)

			exported, err := repo.ListForExport(ctx, entity.LinkFilter{})
			require.NoError(t, err)
			require.Len(t, exported, 3)
			assert.Equal(t, []string{"ORD-100", "ORD-200", "ORD-101"},
				[]string{exported[0].OrderID, exported[1].OrderID, exported[2].OrderID})
		})
	}
}

func TestLinkRepository_CreationOrderWithEqualTimestamps(t *testing.T) {
	ctx := context.Background()
	for name, repo := range linkRepositories(t) {
		t.Run(name, func(t *testing.T) {
			// ids deliberately out of lexical order
			var created []string
			for _, n := range []int{7, 2, 9, 1, 5} {
				link := newLink(n, "", "")
				link.CreatedAt = baseTime
				require.NoError(t, repo.Create(ctx, link))
				created = append(created, link.ID)
			}

			exported, err := repo.ListForExport(ctx, entity.LinkFilter{})
			require.NoError(t, err)
			assert.Equal(t, created, linkIDs(exported))

			listed, _, err := repo.List(ctx, entity.LinkFilter{}, 0, 0)
			require.NoError(t, err)
			newestFirst := make([]string, 0, len(created))
			for i := len(created) - 1; i >= 0; i-- {
				newestFirst = append(newestFirst, created[i])
			}
			assert.Equal(t, newestFirst, linkIDs(listed))
		})
	}
}

func TestLinkRepository_FilterByEffectiveStatus(t *testing.T) {
	ctx := context.Background()
	for name, repo := range linkRepositories(t) {
		t.Run(name, func(t *testing.T) {
			// link 1 expires at 09:06, link 2 at 09:07, link 3 is paid, link 4 stored expired
			for n := 1; n <= 4; n++ {
				require.NoError(t, repo.Create(ctx, newLink(n, "", "")))
			}
			_, err := repo.CompareAndSetStatus(ctx, newLink(3, "", "").ID, entity.LinkStatusPending, entity.LinkStatusPaid, entity.StatusUpdate{At: baseTime})
			require.NoError(t, err)
			_, err = repo.CompareAndSetStatus(ctx, newLink(4, "", "").ID, entity.LinkStatusPending, entity.LinkStatusExpired, entity.StatusUpdate{At: baseTime})
			require.NoError(t, err)

			now := baseTime.Add(6*time.Minute + 30*time.Second)
			tests := []struct {
				status entity.LinkStatus
				want   []string
			}{
				{entity.LinkStatusPending, []string{newLink(2, "", "").ID}},
				{entity.LinkStatusExpired, []string{newLink(1, "", "").ID, newLink(4, "", "").ID}},
				{entity.LinkStatusPaid, []string{newLink(3, "", "").ID}},
			}
			for _, tt := range tests {
				filter := entity.LinkFilter{Status: tt.status, Now: now}

				exported, err := repo.ListForExport(ctx, filter)
				require.NoError(t, err)
				assert.Equal(t, tt.want, linkIDs(exported), "export %s", tt.status)

				_, total, err := repo.List(ctx, filter, 10, 0)
				require.NoError(t, err)
				assert.Equal(t, int64(len(tt.want)), total, "count %s", tt.status)
			}

			// exactly at expires_at the link is still pending
			pending, err := repo.ListForExport(ctx, entity.LinkFilter{
				Status: entity.LinkStatusPending,
				Now:    newLink(1, "", "").ExpiresAt,
			})
			require.NoError(t, err)
			assert.Equal(t, []string{newLink(1, "", "").ID, newLink(2, "", "").ID}, linkIDs(pending))
		})
	}
}

func linkIDs(links []*entity.PaymentLink) []string {
	ids := make([]string, 0, len(links))
	for _, link := range links {
		ids = append(ids, link.ID)
	}
	return ids
}

func TestMemoryLinkRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryLinkRepository()
	link := newLink(1, "", "")
	require.NoError(t, repo.Create(ctx, link))

	link.Status = entity.LinkStatusPaid
	got, err := repo.GetByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.LinkStatusPending, got.Status)

	got.Status = entity.LinkStatusExpired
	again, err := repo.GetByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.LinkStatusPending, again.Status)

	assert.Error(t, repo.Create(ctx, newLink(1, "", "")), "duplicate id")
}

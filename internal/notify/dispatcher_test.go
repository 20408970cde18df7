package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdash/internal/db"
	"taskdash/internal/domain"
	"taskdash/internal/migrate"
	"taskdash/internal/repo"
)

func TestCreate(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, migrate.Migrate(ctx, conn))
	r := repo.Repo{DB: conn}

	now := time.Date(2024, 5, 5, 10, 0, 0, 0, time.UTC)
	uid, err := r.InsertUser(ctx, nil, domain.User{Email: "a@example.com", DisplayName: "A", Role: domain.RoleEmployee, CreatedAt: now})
	require.NoError(t, err)

	d := Dispatcher{Repo: r, Now: func() time.Time { return now }}
	n, err := d.Create(ctx, domain.Notification{
		UserID: uid, Title: "Hello", Message: "World", Type: domain.NotificationTaskAssignment,
		Priority: domain.NotificationUrgent, IsRead: true,
	})
	require.NoError(t, err)
	assert.NotZero(t, n.ID)
	assert.False(t, n.IsRead)
	assert.True(t, now.Equal(n.CreatedAt))

	stored, err := r.GetNotification(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationUrgent, stored.Priority)
	assert.False(t, stored.IsRead)

	t.Run("validation", func(t *testing.T) {
		_, err := d.Create(ctx, domain.Notification{Title: "x", Message: "y"})
		assert.Error(t, err)
		_, err = d.Create(ctx, domain.Notification{UserID: uid, Title: " ", Message: "y"})
		assert.Error(t, err)
	})

	t.Run("unknown user propagates", func(t *testing.T) {
		_, err := d.Create(ctx, domain.Notification{UserID: 4242, Title: "x", Message: "y"})
		assert.Error(t, err)
	})
}

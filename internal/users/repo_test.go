package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agrimarket/agrimarket-backend/pkg/db/dbtest"
	"github.com/agrimarket/agrimarket-backend/pkg/enums"
)

func TestFindAndLockByID(t *testing.T) {
	conn := dbtest.New(t)
	seeded := dbtest.SeedUser(t, conn, "buyer@example.com", enums.UserRoleBuyer)
	repo := NewRepository(conn)
	ctx := context.Background()

	user, err := repo.FindByID(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", user.Email)
	assert.Equal(t, enums.UserRoleBuyer, user.Role)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		locked, err := repo.WithTx(tx).LockByID(ctx, seeded.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, seeded.ID, locked.ID)
		return nil
	}))

	_, err = repo.FindByID(ctx, seeded.ID+100)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

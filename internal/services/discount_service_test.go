package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/testutil"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name  string
		d     *models.Discount
		price int64
		want  int64
	}{
		{"nil discount", nil, 1000, 0},
		{"percent", &models.Discount{Amount: 25, Unit: models.DiscountUnitPercent}, 1000, 250},
		{"percent rounds down", &models.Discount{Amount: 33, Unit: models.DiscountUnitPercent}, 999, 329},
		{"flat", &models.Discount{Amount: 300, Unit: models.DiscountUnitFlat}, 1000, 300},
		{"flat capped at price", &models.Discount{Amount: 3000, Unit: models.DiscountUnitFlat}, 1000, 1000},
		{"free price", &models.Discount{Amount: 50, Unit: models.DiscountUnitPercent}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Apply(tt.d, tt.price))
		})
	}
}

func TestDiscountCreate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	d, err := env.discounts.Create(ctx, &dto.DiscountRequest{Name: "Spring", Code: " spring26 ", Amount: 10, Unit: models.DiscountUnitPercent})
	require.NoError(t, err)
	assert.Equal(t, "SPRING26", d.Code)
	assert.Equal(t, models.DiscountStatusActive, d.Status)

	_, err = env.discounts.Create(ctx, &dto.DiscountRequest{Name: "Dup", Code: "Spring26", Amount: 5, Unit: models.DiscountUnitFlat})
	assert.ErrorIs(t, err, ErrDiscountCodeTaken)

	_, err = env.discounts.Create(ctx, &dto.DiscountRequest{Name: "Too much", Code: "all", Amount: 150, Unit: models.DiscountUnitPercent})
	assert.ErrorIs(t, err, ErrInvalidInput)

	found, err := env.discounts.GetByCode(ctx, "spring26")
	require.NoError(t, err)
	assert.Equal(t, d.ID, found.ID)

	updated, err := env.discounts.Update(ctx, d.ID, &dto.DiscountRequest{Name: "Spring", Code: "spring26", Amount: 20, Unit: models.DiscountUnitPercent})
	require.NoError(t, err)
	assert.EqualValues(t, 20, updated.Amount)

	require.NoError(t, env.discounts.Delete(ctx, d.ID))
	assert.ErrorIs(t, env.discounts.Delete(ctx, d.ID), ErrDiscountNotFound)
}

func TestDiscountValidate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	level := testutil.TestLevel(t, env.db)
	otherLevel := testutil.TestLevel(t, env.db)
	past := testNow.Add(-time.Hour)

	create := func(req dto.DiscountRequest) {
		t.Helper()
		req.Name = req.Code
		if req.Unit == "" {
			req.Unit = models.DiscountUnitFlat
		}
		if req.Amount == 0 {
			req.Amount = 100
		}
		_, err := env.discounts.Create(ctx, &req)
		require.NoError(t, err)
	}
	create(dto.DiscountRequest{Code: "OK"})
	create(dto.DiscountRequest{Code: "OFF", Status: models.DiscountStatusDisabled})
	create(dto.DiscountRequest{Code: "OLD", Expiration: &past})
	create(dto.DiscountRequest{Code: "LEVEL", LevelIDs: []uuid.UUID{otherLevel.ID}})
	create(dto.DiscountRequest{Code: "FULL", MaxUses: 1})
	require.NoError(t, env.db.Model(&models.Discount{}).Where("code = ?", "FULL").Update("use_count", 1).Error)

	tests := []struct {
		code    string
		wantErr error
	}{
		{"ok", nil},
		{"missing", ErrDiscountNotFound},
		{"off", ErrDiscountInactive},
		{"old", ErrDiscountExpired},
		{"level", ErrDiscountNotForLevel},
		{"full", ErrDiscountMaxedOut},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			_, err := env.discounts.Validate(ctx, tt.code, level.ID, uuid.Nil)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := env.discounts.Validate(ctx, "level", otherLevel.ID, uuid.Nil)
	assert.NoError(t, err)
}

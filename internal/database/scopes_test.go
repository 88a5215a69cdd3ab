package database

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestClampPage(t *testing.T) {
	tests := []struct {
		name                  string
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{"defaults", 0, 0, DefaultPageSize, 0},
		{"negative", -5, -10, DefaultPageSize, 0},
		{"capped", 1000, 40, MaxPageSize, 40},
		{"kept", 25, 50, 25, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset := ClampPage(tt.limit, tt.offset)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}

type scopedRow struct {
	ID      uint
	OwnerID uuid.UUID `gorm:"type:uuid"`
	Status  string
}

func TestWhereIfAndPaginate(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&scopedRow{}))

	owner := uuid.New()
	rows := []scopedRow{
		{OwnerID: owner, Status: "active"},
		{OwnerID: owner, Status: "expired"},
		{OwnerID: uuid.New(), Status: "active"},
	}
	require.NoError(t, db.Create(&rows).Error)

	count := func(scopes ...func(*gorm.DB) *gorm.DB) int64 {
		var n int64
		require.NoError(t, db.Model(&scopedRow{}).Scopes(scopes...).Count(&n).Error)
		return n
	}

	assert.Equal(t, int64(3), count(WhereIf("owner_id", uuid.Nil), WhereIf("status", "")))
	assert.Equal(t, int64(2), count(WhereIf("owner_id", owner)))
	assert.Equal(t, int64(1), count(WhereIf("owner_id", owner), WhereIf("status", "expired")))

	var page []scopedRow
	require.NoError(t, db.Order("id").Scopes(Paginate(2, 1)).Find(&page).Error)
	require.Len(t, page, 2)
	assert.Equal(t, rows[1].ID, page[0].ID)
}

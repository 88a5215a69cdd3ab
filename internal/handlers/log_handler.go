package handlers

import (
	"strings"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type LogHandler struct {
	db *gorm.DB
}

func NewLogHandler(db *gorm.DB) *LogHandler {
	return &LogHandler{db: db}
}

// List returns stored ERROR+ log records, newest first.
func (h *LogHandler) List(c *fiber.Ctx) error {
	var logs []models.SystemLog
	var total int64

	query := h.db.WithContext(c.UserContext()).Model(&models.SystemLog{}).
		Scopes(
			database.WhereIf("level", strings.ToUpper(c.Query("level"))),
			database.WhereIf("customer_id", c.Query("customer_id")),
			database.WhereIf("membership_id", c.Query("membership_id")),
		)
	if err := query.Count(&total).Error; err != nil {
		return serviceError(c, err, "list logs")
	}
	if err := query.Order("timestamp DESC").
		Scopes(database.Paginate(c.QueryInt("limit"), c.QueryInt("offset"))).
		Find(&logs).Error; err != nil {
		return serviceError(c, err, "list logs")
	}
	return paginated(c, logs, total)
}

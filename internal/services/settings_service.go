package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
	"gorm.io/gorm"
)

const (
	SettingAutoRenew           = "auto_renew"
	SettingMultipleMemberships = "multiple_memberships"
	SettingBatchStepSize       = "batch_step_size"
)

// Values for SettingAutoRenew.
const (
	AutoRenewAlways = "always"
	AutoRenewNever  = "never"
	AutoRenewChoice = "customer_choice"
)

type settingDefault struct {
	value string
	typ   string
}

var settingDefaults = map[string]settingDefault{
	SettingAutoRenew:           {AutoRenewChoice, models.SettingTypeString},
	SettingMultipleMemberships: {"false", models.SettingTypeBool},
	SettingBatchStepSize:       {"100", models.SettingTypeInt},
}

type SettingsService struct {
	db *gorm.DB
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{db: db}
}

// SeedDefaults creates any missing default settings.
func (s *SettingsService) SeedDefaults(ctx context.Context) error {
	for key, def := range settingDefaults {
		setting := models.Setting{Key: key, Value: def.value, Type: def.typ}
		if err := s.db.WithContext(ctx).Where("key = ?", key).FirstOrCreate(&setting).Error; err != nil {
			return fmt.Errorf("failed to seed setting %s: %w", key, err)
		}
	}
	return nil
}

func (s *SettingsService) All(ctx context.Context) (map[string]interface{}, error) {
	var settings []models.Setting
	if err := s.db.WithContext(ctx).Order("key").Find(&settings).Error; err != nil {
		return nil, err
	}

	result := make(map[string]interface{}, len(settings))
	for key, def := range settingDefaults {
		result[key], _ = decodeSetting(def.value, def.typ)
	}
	for _, st := range settings {
		value, err := decodeSetting(st.Value, st.Type)
		if err != nil {
			value = st.Value
		}
		result[st.Key] = value
	}
	return result, nil
}

// Set validates value against typ and upserts the setting.
func (s *SettingsService) Set(ctx context.Context, key, value, typ string) (*models.Setting, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: key is required", ErrInvalidSetting)
	}
	if typ == "" {
		typ = models.SettingTypeString
		if def, ok := settingDefaults[key]; ok {
			typ = def.typ
		}
	}
	if _, err := decodeSetting(value, typ); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSetting, err)
	}
	if key == SettingAutoRenew {
		switch value {
		case AutoRenewAlways, AutoRenewNever, AutoRenewChoice:
		default:
			return nil, fmt.Errorf("%w: auto_renew must be always, never or customer_choice", ErrInvalidSetting)
		}
	}

	var setting models.Setting
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		setting = models.Setting{Key: key, Value: value, Type: typ}
		if err := s.db.WithContext(ctx).Create(&setting).Error; err != nil {
			return nil, fmt.Errorf("failed to create setting: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to query setting: %w", err)
	default:
		setting.Value = value
		setting.Type = typ
		if err := s.db.WithContext(ctx).Save(&setting).Error; err != nil {
			return nil, fmt.Errorf("failed to update setting: %w", err)
		}
	}
	return &setting, nil
}

func (s *SettingsService) Delete(ctx context.Context, key string) error {
	result := s.db.WithContext(ctx).Where("key = ?", key).Delete(&models.Setting{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSettingNotFound
	}
	return nil
}

func (s *SettingsService) raw(ctx context.Context, key string) string {
	var setting models.Setting
	if err := s.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error; err == nil {
		return setting.Value
	}
	return settingDefaults[key].value
}

func (s *SettingsService) String(ctx context.Context, key string) string {
	return s.raw(ctx, key)
}

func (s *SettingsService) Bool(ctx context.Context, key string) bool {
	b, _ := strconv.ParseBool(s.raw(ctx, key))
	return b
}

func (s *SettingsService) Int(ctx context.Context, key string) int {
	n, err := strconv.Atoi(s.raw(ctx, key))
	if err != nil {
		n, _ = strconv.Atoi(settingDefaults[key].value)
	}
	return n
}

// DefaultAutoRenew resolves the auto_renew policy against a customer's request.
func (s *SettingsService) DefaultAutoRenew(ctx context.Context, requested *bool) bool {
	switch s.String(ctx, SettingAutoRenew) {
	case AutoRenewAlways:
		return true
	case AutoRenewNever:
		return false
	default:
		return requested == nil || *requested
	}
}

func decodeSetting(value, typ string) (interface{}, error) {
	switch typ {
	case models.SettingTypeBool:
		return strconv.ParseBool(value)
	case models.SettingTypeInt:
		return strconv.Atoi(value)
	case models.SettingTypeJSON:
		var v interface{}
		err := json.Unmarshal([]byte(value), &v)
		return v, err
	case models.SettingTypeString:
		return value, nil
	default:
		return nil, fmt.Errorf("unknown setting type %q", typ)
	}
}

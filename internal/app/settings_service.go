package app

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"ragdesk/internal/model"
	"ragdesk/internal/pkg/logger"
	"ragdesk/internal/repository"
)

type SettingsCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// SettingsService owns runtime switches such as maintenance mode. Values live
// in the settings table; the cache, when present, is read through.
type SettingsService struct {
	repo  *repository.SettingRepository
	cache SettingsCache
}

func NewSettingsService(repo *repository.SettingRepository, cache SettingsCache) *SettingsService {
	return &SettingsService{repo: repo, cache: cache}
}

func (s *SettingsService) get(ctx context.Context, key string) (string, error) {
	if s.cache != nil {
		if value, hit, err := s.cache.Get(ctx, key); err == nil && hit {
			return value, nil
		} else if err != nil {
			logger.WithContext(ctx).Warn("settings cache read failed", zap.String("key", key), zap.Error(err))
		}
	}
	setting, err := s.repo.Get(key)
	if err != nil {
		return "", err
	}
	value := ""
	if setting != nil {
		value = setting.Value
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, value)
	}
	return value, nil
}

func (s *SettingsService) set(ctx context.Context, key, value string) error {
	if err := s.repo.Set(key, value); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, key); err != nil {
			logger.WithContext(ctx).Warn("settings cache invalidate failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

func (s *SettingsService) MaintenanceMode(ctx context.Context) (bool, error) {
	value, err := s.get(ctx, model.SettingMaintenanceMode)
	if err != nil {
		return false, err
	}
	on, _ := strconv.ParseBool(value)
	return on, nil
}

func (s *SettingsService) SetMaintenanceMode(ctx context.Context, on bool) error {
	return s.set(ctx, model.SettingMaintenanceMode, strconv.FormatBool(on))
}

// ToggleMaintenance flips maintenance mode and returns the new state.
func (s *SettingsService) ToggleMaintenance(ctx context.Context) (bool, error) {
	on, err := s.MaintenanceMode(ctx)
	if err != nil {
		return false, err
	}
	if err := s.SetMaintenanceMode(ctx, !on); err != nil {
		return false, err
	}
	logger.WithContext(ctx).Info("maintenance mode toggled", zap.Bool("enabled", !on))
	return !on, nil
}

package database

import (
	"PURLS-Backend/internal/domain"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AutoMigrate выполняет автоматические миграции для всех доменных моделей
func AutoMigrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("starting database auto-migration")

	// Порядок миграций важен из-за внешних ключей
	models := []interface{}{
		&domain.User{},  // Сначала пользователи
		&domain.Link{},  // Ссылки (зависят от пользователей)
		&domain.Click{}, // Клики (зависят от ссылок)
	}

	for i, model := range models {
		modelName := fmt.Sprintf("%T", model)
		log.Info("migrating model",
			zap.String("model", modelName),
			zap.Int("step", i+1),
			zap.Int("total", len(models)))

		if err := db.AutoMigrate(model); err != nil {
			log.Error("failed to migrate model",
				zap.String("model", modelName),
				zap.Error(err))
			return fmt.Errorf("failed to migrate model %s: %w", modelName, err)
		}
	}

	log.Info("database auto-migration completed successfully", zap.Int("migrated_models", len(models)))
	return nil
}

package database

import (
	"fmt"
	"log"

	"examhub_backend/internal/config"
	"examhub_backend/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	// TranslateError maps driver duplicate-key errors to
	// gorm.ErrDuplicatedKey; finalization relies on that mapping to detect
	// the losing side of a submission race.
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Println("Database migration completed")
	return db, nil
}

// Migrate creates or updates the schema, including the unique indexes the
// engine depends on.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Exam{},
		&model.ExamAccess{},
		&model.Question{},
		&model.QuestionOption{},
		&model.Attempt{},
		&model.AttemptAnswer{},
		&model.Submission{},
		&model.SubmissionAnswer{},
		&model.Result{},
	)
}

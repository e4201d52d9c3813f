package database

import (
	"errors"
	"fmt"
	"time"

	"coursecraft_backend/internal/config"
	"coursecraft_backend/internal/model"

	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.Config) (*gorm.DB, error) {
	dbc := cfg.Database
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		dbc.User,
		dbc.Password,
		dbc.Host,
		dbc.Port,
		dbc.DBName,
		dbc.Charset,
		dbc.ParseTime,
	)

	logLevel := logger.Warn
	if cfg.Server.Mode == "debug" {
		logLevel = logger.Info
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		// Unique violations surface as gorm.ErrDuplicatedKey, which the
		// ordering retry loop relies on.
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Models lists every table the service owns, parents before children.
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Course{},
		&model.Enrollment{},
		&model.Module{},
		&model.Lesson{},
		&model.LessonCompletion{},
		&model.Quiz{},
		&model.Question{},
		&model.Option{},
		&model.Attempt{},
		&model.Response{},
		&model.CertificateTemplate{},
		&model.Certificate{},
	}
}

// Migrate creates or updates the schema and seeds a default certificate
// template when none exists.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return SeedDefaultTemplate(db)
}

func DefaultLayout() model.CertificateLayout {
	return model.CertificateLayout{
		Width:  1754,
		Height: 1240,
		Fields: []model.CertificateLayoutBox{
			{Name: "learner_name", X: 877, Y: 520, Font: "Helvetica-Bold", FontSize: 48, Align: "center"},
			{Name: "course_title", X: 877, Y: 660, Font: "Helvetica", FontSize: 32, Align: "center"},
			{Name: "issued_at", X: 400, Y: 1020, Font: "Helvetica", FontSize: 20, Align: "left"},
			{Name: "serial", X: 1354, Y: 1020, Font: "Courier", FontSize: 18, Align: "right"},
		},
	}
}

func SeedDefaultTemplate(db *gorm.DB) error {
	var tmpl model.CertificateTemplate
	err := db.Order("id asc").First(&tmpl).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return db.Create(&model.CertificateTemplate{
		Name:     "Default",
		IsActive: true,
		Layout:   datatypes.NewJSONType(DefaultLayout()),
	}).Error
}

package store

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/yanun0323/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPostgresHost    = "localhost"
	defaultPostgresPort    = 5432
	defaultPostgresSSLMode = "disable"
)

// DBOption defines PostgreSQL connection options.
type DBOption struct {
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
	SSLMode    string
	ConnString string
}

type settingRow struct {
	Name      string `gorm:"primaryKey;size:191"`
	Data      string
	UpdatedAt time.Time
}

func (settingRow) TableName() string { return "strategy_settings" }

// DB persists blobs in a PostgreSQL table, one row per name.
type DB struct {
	db *gorm.DB
}

// NewDB connects and migrates the settings table.
func NewDB(opt DBOption) (*DB, error) {
	db, err := gorm.Open(postgres.Open(opt.dsn()), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	if err := db.AutoMigrate(&settingRow{}); err != nil {
		return nil, errors.Wrap(err, "migrate settings table")
	}
	return &DB{db: db}, nil
}

func (s *DB) LoadJSON(name string) (map[string]any, error) {
	var row settingRow
	err := s.db.First(&row, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", name)
	}
	out := make(map[string]any)
	if err := json.Unmarshal([]byte(row.Data), &out); err != nil {
		return nil, errors.Wrapf(err, "decode %s", name)
	}
	return out, nil
}

func (s *DB) SaveJSON(name string, data map[string]any) error {
	blob, err := json.Marshal(data)
	if err != nil {
		return errors.Wrapf(err, "encode %s", name)
	}
	row := settingRow{Name: name, Data: string(blob), UpdatedAt: time.Now().UTC()}
	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return errors.Wrapf(err, "save %s", name)
	}
	return nil
}

func (s *DB) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (opt DBOption) dsn() string {
	if opt.ConnString != "" {
		return opt.ConnString
	}

	host := opt.Host
	if host == "" {
		host = defaultPostgresHost
	}
	port := opt.Port
	if port == 0 {
		port = defaultPostgresPort
	}
	sslMode := opt.SSLMode
	if sslMode == "" {
		sslMode = defaultPostgresSSLMode
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}
	if opt.User != "" {
		if opt.Password != "" {
			u.User = url.UserPassword(opt.User, opt.Password)
		} else {
			u.User = url.User(opt.User)
		}
	}
	if opt.Database != "" {
		u.Path = "/" + opt.Database
	}
	query := url.Values{}
	query.Set("sslmode", sslMode)
	u.RawQuery = query.Encode()
	return u.String()
}

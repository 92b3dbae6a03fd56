package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"wa-gateway/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type instanceRow struct {
	InstanceID    string    `gorm:"column:instance_id;primaryKey"`
	Name          string    `gorm:"column:name;not null"`
	InstanceType  string    `gorm:"column:instance_type;not null"`
	IsActive      bool      `gorm:"column:is_active;not null;default:true"`
	WebhookURL    *string   `gorm:"column:webhook_url"`
	WabaID        *string   `gorm:"column:waba_id"`
	AccessToken   *string   `gorm:"column:access_token"`
	PhoneNumberID *string   `gorm:"column:phone_number_id"`
	CreatedAt     time.Time `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
}

func (instanceRow) TableName() string { return "instances" }

func (r instanceRow) toDomain() domain.Instance {
	return domain.Instance{
		ID:            r.InstanceID,
		Name:          r.Name,
		Kind:          domain.ProviderKind(strings.ToUpper(r.InstanceType)),
		IsActive:      r.IsActive,
		WebhookURL:    r.WebhookURL,
		WabaID:        r.WabaID,
		AccessToken:   r.AccessToken,
		PhoneNumberID: r.PhoneNumberID,
		CreatedAt:     r.CreatedAt,
	}
}

type logRow struct {
	ID        uint      `gorm:"primaryKey"`
	LogLevel  string    `gorm:"column:log_level;not null"`
	LogText   string    `gorm:"column:log_text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
}

func (logRow) TableName() string { return "logs" }

// Open connects to PostgreSQL through gorm and applies the pool limits.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the instances and logs tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&instanceRow{}, &logRow{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Close releases the pool behind db.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Repository implements ports.InstanceRepository and ports.InstanceWriter.
type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FetchInstance returns the instance with the given id.
func (r *Repository) FetchInstance(ctx context.Context, id string) (domain.Instance, error) {
	var rows []instanceRow
	err := r.db.WithContext(ctx).
		Where("instance_id = ?", id).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return domain.Instance{}, fmt.Errorf("fetch instance: %w", err)
	}
	if len(rows) == 0 {
		return domain.Instance{}, domain.ErrInstanceNotFound
	}
	return rows[0].toDomain(), nil
}

// RetrieveInstances lists every instance ordered by creation.
func (r *Repository) RetrieveInstances(ctx context.Context) ([]domain.Instance, error) {
	var rows []instanceRow
	if err := r.db.WithContext(ctx).Order("created_at, instance_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("retrieve instances: %w", err)
	}

	out := make([]domain.Instance, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// InsertInstance writes the four fixed columns plus whichever optional
// columns are set.
func (r *Repository) InsertInstance(
	ctx context.Context,
	id, name string,
	kind domain.ProviderKind,
	fields domain.InstanceFields,
) domain.Outcome {
	values := map[string]any{
		"instance_id":   id,
		"name":          name,
		"instance_type": string(kind),
		"is_active":     true,
	}
	optional := map[string]*string{
		"webhook_url":     fields.WebhookURL,
		"waba_id":         fields.WabaID,
		"access_token":    fields.AccessToken,
		"phone_number_id": fields.PhoneNumberID,
	}
	for col, v := range optional {
		if v != nil {
			values[col] = *v
		}
	}

	if err := r.db.WithContext(ctx).Table(instanceRow{}.TableName()).Create(values).Error; err != nil {
		return dbErr(fmt.Errorf("insert instance: %w", err))
	}
	return dbOK("instance inserted")
}

// DeleteInstance removes the row; deleting a missing id is an error.
func (r *Repository) DeleteInstance(ctx context.Context, id string) domain.Outcome {
	res := r.db.WithContext(ctx).Where("instance_id = ?", id).Delete(&instanceRow{})
	if res.Error != nil {
		return dbErr(fmt.Errorf("delete instance: %w", res.Error))
	}
	if res.RowsAffected == 0 {
		return dbErr(fmt.Errorf("delete instance %s: %w", id, domain.ErrInstanceNotFound))
	}
	return dbOK("instance deleted")
}

// InsertLog appends an audit row.
func (r *Repository) InsertLog(ctx context.Context, level, text string) domain.Outcome {
	if err := r.db.WithContext(ctx).Create(&logRow{LogLevel: level, LogText: text}).Error; err != nil {
		return dbErr(fmt.Errorf("insert log: %w", err))
	}
	return dbOK("log inserted")
}

func dbOK(msg string) domain.Outcome {
	return domain.OK(map[string]any{"code": "200", "message": msg})
}

func dbErr(err error) domain.Outcome {
	return domain.Outcome{Kind: domain.OutcomeErr, Body: map[string]any{"code": "500", "error": err.Error()}}
}

// QRStore implements ports.QRStore over Wuzapi's users table, which lives in
// a separate database.
type QRStore struct {
	db *gorm.DB
}

func NewQRStore(db *gorm.DB) *QRStore {
	return &QRStore{db: db}
}

// QRCode returns the stored QR for the user whose id or token matches.
func (s *QRStore) QRCode(ctx context.Context, token string) (string, error) {
	var code sql.NullString
	row := s.db.WithContext(ctx).
		Raw("SELECT qrcode FROM users WHERE id = ? OR token = ? LIMIT 1", token, token).
		Row()
	if err := row.Scan(&code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("select qrcode: %w", err)
	}
	return code.String, nil
}

// Package journal keeps a history of the messages sent and received through
// the modem in a SQLite database.
package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"i4.energy/across/idpgw/twin"
)

// ErrNotFound is returned when no record matches.
var ErrNotFound = errors.New("record not found")

const (
	DirectionMO = "mo"
	DirectionMT = "mt"
)

// Record is one message in either direction.
type Record struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	Direction string        `gorm:"size:2;index" json:"direction"`
	QueueName string        `gorm:"index" json:"queueName"`
	Name      string        `json:"name,omitempty"`
	SIN       int           `gorm:"index" json:"sin"`
	MIN       int           `json:"min"`
	Size      int           `json:"size"`
	State     string        `json:"state"`
	Payload   []byte        `json:"payload"`
	Latency   time.Duration `json:"latency,omitempty"`
	CreatedAt time.Time     `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Direction string
	SIN       *int
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

// Journal stores Records.
type Journal struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open creates the database file and its directory if needed.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}
	logger.Info("journal opened", "path", path)
	return &Journal{db: db, logger: logger, now: time.Now}, nil
}

func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Submitted records an MO message handed to the modem under queueName.
func (j *Journal) Submitted(ctx context.Context, queueName string, msg twin.Message) (*Record, error) {
	r := &Record{
		Direction: DirectionMO,
		QueueName: queueName,
		Name:      msg.Name,
		SIN:       int(msg.SIN),
		MIN:       int(msg.MIN),
		Size:      msg.Size(),
		State:     twin.MOReady.String(),
		Payload:   msg.Payload,
		CreatedAt: j.now(),
	}
	if err := j.db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, fmt.Errorf("failed to save MO message: %w", err)
	}
	return r, nil
}

// Completed stores the terminal state of an MO message. Messages submitted
// by someone else get a record of their own.
func (j *Journal) Completed(ctx context.Context, res twin.MOResult) error {
	db := j.db.WithContext(ctx)
	var r Record
	err := db.Where("direction = ? AND queue_name = ?", DirectionMO, res.QueueName).
		Order("id DESC").First(&r).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		r = Record{
			Direction: DirectionMO,
			QueueName: res.QueueName,
			Name:      res.Name,
			SIN:       int(res.SIN),
			MIN:       int(res.MIN),
			CreatedAt: j.now(),
		}
	case err != nil:
		return fmt.Errorf("failed to query MO message: %w", err)
	}
	r.State = res.State.String()
	r.Size = res.Size
	r.Latency = res.Latency
	if err := db.Save(&r).Error; err != nil {
		return fmt.Errorf("failed to update MO message: %w", err)
	}
	return nil
}

// Received records a retrieved MT message.
func (j *Journal) Received(ctx context.Context, msg twin.MTMessage) (*Record, error) {
	created := msg.Received
	if created.IsZero() {
		created = j.now()
	}
	r := &Record{
		Direction: DirectionMT,
		QueueName: msg.QueueName,
		SIN:       int(msg.SIN),
		MIN:       int(msg.MIN),
		Size:      msg.Size(),
		State:     twin.MTRetrieved.String(),
		Payload:   msg.Payload,
		CreatedAt: created,
	}
	if err := j.db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, fmt.Errorf("failed to save MT message: %w", err)
	}
	return r, nil
}

// Get returns the record with the given id.
func (j *Journal) Get(ctx context.Context, id uint) (*Record, error) {
	var r Record
	err := j.db.WithContext(ctx).First(&r, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query record: %w", err)
	}
	return &r, nil
}

// List returns the matching records newest first and the total number of
// matches ignoring Limit and Offset.
func (j *Journal) List(ctx context.Context, f Filter) ([]Record, int, error) {
	query := j.db.WithContext(ctx).Model(&Record{})

	if f.Direction != "" {
		query = query.Where("direction = ?", f.Direction)
	}
	if f.SIN != nil {
		query = query.Where("sin = ?", *f.SIN)
	}
	if !f.Since.IsZero() {
		query = query.Where("created_at >= ?", f.Since)
	}
	if !f.Until.IsZero() {
		query = query.Where("created_at <= ?", f.Until)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count records: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	var records []Record
	err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(f.Offset).Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query records: %w", err)
	}
	return records, int(total), nil
}

// Delete removes one record.
func (j *Journal) Delete(ctx context.Context, id uint) error {
	ret := j.db.WithContext(ctx).Delete(&Record{}, id)
	if ret.Error != nil {
		return fmt.Errorf("failed to delete record: %w", ret.Error)
	}
	if ret.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

// Prune deletes records created before t and returns how many were removed.
func (j *Journal) Prune(ctx context.Context, before time.Time) (int64, error) {
	ret := j.db.WithContext(ctx).Where("created_at < ?", before).Delete(&Record{})
	if ret.Error != nil {
		return 0, fmt.Errorf("failed to prune journal: %w", ret.Error)
	}
	if ret.RowsAffected > 0 {
		j.logger.Info("journal pruned", "records", ret.RowsAffected, "before", before)
	}
	return ret.RowsAffected, nil
}

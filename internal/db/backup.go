package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// BackupSettings configures periodic database snapshots.
type BackupSettings struct {
	StoragePath   string
	Interval      time.Duration
	RetentionDays int
}

// BackupService writes consistent snapshots of the database with
// VACUUM INTO, which is safe while the WAL is in use.
type BackupService struct {
	db       *DB
	settings BackupSettings
	logger   zerolog.Logger
	now      func() time.Time
}

func NewBackupService(db *DB, settings BackupSettings, logger *zerolog.Logger) *BackupService {
	if settings.Interval <= 0 {
		settings.Interval = 24 * time.Hour
	}
	return &BackupService{
		db:       db,
		settings: settings,
		logger:   logger.With().Str("component", "backup").Logger(),
		now:      time.Now,
	}
}

// Run takes a snapshot immediately and then once per interval until ctx
// is cancelled.
func (s *BackupService) Run(ctx context.Context) {
	s.logger.Info().Dur("interval", s.settings.Interval).Str("path", s.settings.StoragePath).Msg("backup service started")

	ticker := time.NewTicker(s.settings.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.PerformBackup(ctx); err != nil {
			s.logger.Error().Err(err).Msg("backup failed")
		}
		s.CleanupOldBackups()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PerformBackup writes one snapshot and returns its path.
func (s *BackupService) PerformBackup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.settings.StoragePath, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	name := fmt.Sprintf("backup_%s.db", s.now().Format("20060102_150405"))
	path := filepath.Join(s.settings.StoragePath, name)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("backup %s already exists", path)
	}

	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return "", fmt.Errorf("vacuum into %s: %w", path, err)
	}
	s.logger.Info().Str("path", path).Msg("database backup written")
	return path, nil
}

// CleanupOldBackups removes snapshots older than the retention period.
func (s *BackupService) CleanupOldBackups() {
	if s.settings.RetentionDays <= 0 {
		return
	}

	files, err := os.ReadDir(s.settings.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("read backup directory")
		return
	}

	cutoff := s.now().AddDate(0, 0, -s.settings.RetentionDays)
	for _, file := range files {
		if file.IsDir() || !strings.HasPrefix(file.Name(), "backup_") {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.settings.StoragePath, file.Name())); err != nil {
				s.logger.Warn().Err(err).Str("file", file.Name()).Msg("delete old backup")
				continue
			}
			s.logger.Info().Str("file", file.Name()).Msg("old backup deleted")
		}
	}
}

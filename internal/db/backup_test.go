package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tischbuch/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService_PerformBackup(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, d.CreateReservation(ctx, &model.Reservation{
		ID: "r1", Date: "2026-03-14", Time: "19:00", DurationMinutes: 115, EndTime: "20:55",
		Status: model.StatusNew, PartySize: 2,
	}, testNow))

	logger := zerolog.Nop()
	dir := filepath.Join(t.TempDir(), "backups")
	svc := NewBackupService(d, BackupSettings{StoragePath: dir}, &logger)
	svc.now = func() time.Time { return testNow }

	path, err := svc.PerformBackup(ctx)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "backup_20260303_100000.db"), path)

	snapshot, err := NewDB(path, &logger)
	require.NoError(t, err)
	defer snapshot.Close()
	r, err := snapshot.GetReservation(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 2, r.PartySize)

	_, err = svc.PerformBackup(ctx)
	assert.Error(t, err, "same timestamp must not overwrite")
}

func TestBackupService_CleanupOldBackups(t *testing.T) {
	d := newTestDB(t)
	logger := zerolog.Nop()
	dir := t.TempDir()

	old := filepath.Join(dir, "backup_old.db")
	fresh := filepath.Join(dir, "backup_fresh.db")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, fresh, other} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	}
	past := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.Chtimes(other, past, past))

	svc := NewBackupService(d, BackupSettings{StoragePath: dir, RetentionDays: 7}, &logger)
	svc.CleanupOldBackups()

	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)
}

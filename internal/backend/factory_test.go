package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackify/internal/config"
	"trackify/internal/core"
	"trackify/internal/storage"
	"trackify/internal/storage/memory"
)

// both stores must satisfy the full backend surface
var (
	_ Backend = (*storage.SQLiteRepository)(nil)
	_ Backend = (*memory.Store)(nil)
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"sqlite with path", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"memory", Config{Type: MemoryBackend}, false},
		{"unknown", Config{Type: "sheets"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			assert.Equal(t, tt.wantErr, err != nil, "Validate() error = %v", err)
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "a.db"})
	require.NoError(t, err)
	assert.Equal(t, Config{Type: SQLiteBackend, SQLiteDBPath: "a.db"}, cfg)

	_, err = FromAppConfig(&config.Config{DataBackend: "postgres"})
	assert.Error(t, err)
}

func TestFactory_CreateBackend(t *testing.T) {
	ctx := context.Background()
	factory := NewFactory(nil)

	tests := []struct {
		name   string
		config Config
	}{
		{"memory", Config{Type: MemoryBackend}},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "trackify.db")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := factory.CreateBackend(ctx, tt.config)
			require.NoError(t, err)
			t.Cleanup(func() { _ = result.Close() })

			id, err := result.Backend.CreateSubscription(ctx, core.Subscription{
				Name: "Music", Price: core.Money{Cents: 999}, Frequency: core.Monthly,
				StartDate: core.NewDate(2024, 1, 15), Active: true,
			})
			require.NoError(t, err)

			subs, err := result.Backend.ListActiveSubscriptions(ctx)
			require.NoError(t, err)
			require.Len(t, subs, 1)
			assert.Equal(t, id, subs[0].ID)
		})
	}

	_, err := factory.CreateBackend(ctx, Config{Type: "sheets"})
	assert.Error(t, err)
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackify/internal/services"
)

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATA_BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", filepath.Join(t.TempDir(), "trackify.db"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("AMQP_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("NOTIFICATION_CADENCE", "daily")
	t.Setenv("REMINDER_OFFSETS", "0,1,7")
	t.Setenv("NOTIFICATIONS_ENABLED", "true")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, out)
	return out
}

func TestCLI_EndToEnd(t *testing.T) {
	setupEnv(t)

	out := mustRun(t, "category", "add", "Streaming", "--color", "#E50914")
	assert.Contains(t, out, "created category 1")

	out = mustRun(t, "subscription", "add", "Netflix", "--price", "15,99", "--start", "2024-01-15", "--category", "1")
	assert.Contains(t, out, "created subscription 1")

	out = mustRun(t, "generate", "--date", "2024-03-20")
	assert.Contains(t, out, "created 1")
	assert.Contains(t, out, "15.99 on 2024-03-15")

	out = mustRun(t, "generate", "--date", "2024-03-20")
	assert.Contains(t, out, "created 0")

	out = mustRun(t, "payment", "list")
	assert.Contains(t, out, "2024-03-15")
	assert.Contains(t, out, "pending")

	out = mustRun(t, "payment", "confirm", "1")
	assert.Contains(t, out, "confirmed payment 1")

	_, err := run(t, "payment", "confirm", "99")
	assert.Error(t, err)

	out = mustRun(t, "stats", "--date", "2024-03-20", "--json")
	var report services.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.ActiveSubscriptions)
	assert.InDelta(t, 15.99, report.TotalMonthly, 1e-9)
	assert.InDelta(t, 15.99*12, report.TotalYearly, 1e-9)
	assert.Len(t, report.History, 6)
	require.Len(t, report.Categories, 1)
	assert.Equal(t, "Streaming", report.Categories[0].Name)
	assert.InDelta(t, 15.99, report.Payments.Confirmed, 1e-9)

	out = mustRun(t, "remind", "--date", "2024-04-08", "--dry-run")
	assert.Contains(t, out, "Netflix is due on 2024-04-15 (in 7 days)")

	out = mustRun(t, "remind", "--date", "2024-04-08")
	assert.Contains(t, out, "delivered 1")

	out = mustRun(t, "remind", "--date", "2024-04-08")
	assert.Contains(t, out, "delivered 0, already sent 1")

	out = mustRun(t, "remind", "--date", "2024-04-08", "--dry-run")
	assert.Contains(t, out, "No reminders due.")
}

func TestCLI_Subscriptions(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "subscription", "add", "Broken", "--price", "-3")
	assert.Error(t, err)

	_, err = run(t, "subscription", "add", "Weekly", "--price", "3", "--frequency", "weekly")
	assert.Error(t, err)

	mustRun(t, "subscription", "add", "Domain", "--price", "12", "--frequency", "yearly", "--start", "2023-06-01")
	out := mustRun(t, "subscription", "list")
	assert.Contains(t, out, "Domain")
	assert.Contains(t, out, "yearly")

	mustRun(t, "subscription", "deactivate", "1")
	out = mustRun(t, "subscription", "list")
	assert.Contains(t, out, "No subscriptions found")

	out = mustRun(t, "subscription", "list", "--all")
	assert.Contains(t, out, "Domain")

	_, err = run(t, "subscription", "deactivate", "42")
	assert.Error(t, err)
}

func TestCLI_ManualPaymentSuppressesGeneration(t *testing.T) {
	setupEnv(t)

	mustRun(t, "subscription", "add", "Gym", "--price", "30", "--start", "2024-01-10")
	mustRun(t, "payment", "add", "1", "--amount", "30", "--date", "2024-03-10", "--notes", "paid at the desk")

	out := mustRun(t, "generate", "--date", "2024-03-12")
	assert.Contains(t, out, "created 0")

	out = mustRun(t, "payment", "list")
	assert.Contains(t, out, "manual")
	assert.Contains(t, out, "paid at the desk")
}

func TestRootCmd_Commands(t *testing.T) {
	root := newRootCmd()
	names := make(map[string]*cobra.Command)
	for _, c := range root.Commands() {
		names[c.Name()] = c
	}
	for _, want := range []string{"stats", "generate", "remind", "listen", "subscription", "category", "payment"} {
		assert.Contains(t, names, want)
	}

	stats := names["stats"]
	flag := stats.Flag("months")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
}

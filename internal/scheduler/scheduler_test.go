package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jmylchreest/hwcodec/internal/codec"
	"github.com/jmylchreest/hwcodec/internal/database/migrations"
	"github.com/jmylchreest/hwcodec/internal/hostinfo"
	"github.com/jmylchreest/hwcodec/internal/models"
	"github.com/jmylchreest/hwcodec/internal/probe"
	"github.com/jmylchreest/hwcodec/internal/repository"
	"github.com/jmylchreest/hwcodec/internal/session"
	"github.com/jmylchreest/hwcodec/internal/sim"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	m := migrations.NewMigrator(db, nil)
	m.RegisterAll(migrations.AllMigrations())
	require.NoError(t, m.Up(context.Background()))
	return db
}

func testConfig() Config {
	return Config{
		Schedule: "0 */15 * * * *",
		TTL:      time.Hour,
		Options: probe.AvailableOptions{
			Codecs:     []codec.Kind{codec.H264},
			Format:     codec.BGRA,
			Geometry:   codec.Geometry{Width: 1280, Height: 720},
			Rate:       codec.RateControl{BitrateKbps: 4000, Framerate: 30, GOP: 60},
			MaxResults: 8,
		},
		Simulated: true,
	}
}

type fixture struct {
	machine    *sim.Machine
	runs       repository.ProbeRunRepository
	exclusions repository.ExclusionRepository
	scheduler  *Scheduler
}

func newFixture(t *testing.T, db *gorm.DB, m *sim.Machine, cfg Config) *fixture {
	t.Helper()
	prober := probe.New(m.Provider(), session.NewRegistry(m.Runtimes()), probe.Options{Clock: m.Clock()})
	f := &fixture{
		machine:    m,
		runs:       repository.NewProbeRunRepository(db),
		exclusions: repository.NewExclusionRepository(db),
	}
	s, err := New(m.Provider(), prober, f.runs, f.exclusions, cfg)
	require.NoError(t, err)
	f.scheduler = s.WithClock(m.Clock()).WithHostInfo(func(context.Context) hostinfo.Info {
		return hostinfo.Info{Hostname: "test-host", OS: "linux", Arch: "amd64"}
	})
	return f
}

func TestScheduler_Check(t *testing.T) {
	ctx := context.Background()

	t.Run("first_check_probes_and_stores", func(t *testing.T) {
		f := newFixture(t, setupTestDB(t), sim.DefaultMachine(), testConfig())

		out, err := f.scheduler.Check(ctx)
		require.NoError(t, err)
		assert.True(t, out.Probed)
		require.NotNil(t, out.Run)
		assert.Len(t, out.Run.Features, 3)
		assert.Equal(t, "test-host", out.Run.Hostname)
		assert.True(t, out.Run.Simulated)

		stored, err := f.runs.Latest(ctx, out.Signature)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, out.Run.ID, stored.ID)

		av := repository.Availability(stored)
		assert.True(t, av.Contains(true, codec.DriverNV, codec.H264))
		assert.True(t, av.Contains(true, codec.DriverMFX, codec.H264))
	})

	t.Run("fresh_run_is_reused", func(t *testing.T) {
		f := newFixture(t, setupTestDB(t), sim.DefaultMachine(), testConfig())

		first, err := f.scheduler.Check(ctx)
		require.NoError(t, err)
		devices := f.machine.Ledger().Acquired("device")

		f.machine.Clock().Advance(30 * time.Minute)
		second, err := f.scheduler.Check(ctx)
		require.NoError(t, err)
		assert.False(t, second.Probed)
		assert.Equal(t, first.Run.ID, second.Run.ID)
		assert.Equal(t, devices, f.machine.Ledger().Acquired("device"))
	})

	t.Run("expired_run_is_replaced", func(t *testing.T) {
		f := newFixture(t, setupTestDB(t), sim.DefaultMachine(), testConfig())

		first, err := f.scheduler.Check(ctx)
		require.NoError(t, err)

		f.machine.Clock().Advance(2 * time.Hour)
		second, err := f.scheduler.Check(ctx)
		require.NoError(t, err)
		assert.True(t, second.Probed)
		assert.NotEqual(t, first.Run.ID, second.Run.ID)
	})

	t.Run("zero_ttl_reuses_until_signature_changes", func(t *testing.T) {
		db := setupTestDB(t)
		cfg := testConfig()
		cfg.TTL = 0
		f := newFixture(t, db, sim.DefaultMachine(), cfg)

		first, err := f.scheduler.Check(ctx)
		require.NoError(t, err)
		f.machine.Clock().Advance(365 * 24 * time.Hour)
		again, err := f.scheduler.Check(ctx)
		require.NoError(t, err)
		assert.False(t, again.Probed)

		changed := newFixture(t, db, sim.NewMachine(
			sim.AdapterSpec{LUID: 1, Vendor: codec.VendorNVIDIA, DeviceID: 0x2684},
		), cfg)
		out, err := changed.scheduler.Check(ctx)
		require.NoError(t, err)
		assert.True(t, out.Probed)
		assert.NotEqual(t, first.Signature, out.Signature)
	})

	t.Run("stored_exclusions_are_applied", func(t *testing.T) {
		f := newFixture(t, setupTestDB(t), sim.DefaultMachine(), testConfig())
		require.NoError(t, f.exclusions.Add(ctx, &models.Exclusion{LUID: 1, Codec: "h264", Reason: "flaky"}))

		out, err := f.scheduler.Check(ctx)
		require.NoError(t, err)
		av := repository.Availability(out.Run)
		assert.False(t, av.Contains(true, codec.DriverNV, codec.H264))
		assert.True(t, av.Contains(true, codec.DriverAMF, codec.H264))
		assert.Len(t, out.Run.Features, 2)
	})

	t.Run("old_runs_are_pruned", func(t *testing.T) {
		cfg := testConfig()
		cfg.TTL = time.Minute
		cfg.Retention = 24 * time.Hour
		f := newFixture(t, setupTestDB(t), sim.DefaultMachine(), cfg)

		_, err := f.scheduler.Check(ctx)
		require.NoError(t, err)
		f.machine.Clock().Advance(48 * time.Hour)

		out, err := f.scheduler.Check(ctx)
		require.NoError(t, err)
		assert.True(t, out.Probed)
		assert.Equal(t, int64(1), out.Pruned)

		runs, err := f.runs.List(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, runs, 1)
	})

	t.Run("canceled_context", func(t *testing.T) {
		f := newFixture(t, setupTestDB(t), sim.DefaultMachine(), testConfig())
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := f.scheduler.Check(cctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestScheduler_StartStop(t *testing.T) {
	f := newFixture(t, setupTestDB(t), sim.DefaultMachine(), testConfig())
	ctx := context.Background()

	require.NoError(t, f.scheduler.Start(ctx))
	assert.Error(t, f.scheduler.Start(ctx))

	require.Eventually(t, func() bool {
		runs, err := f.runs.List(ctx, 1)
		return err == nil && len(runs) == 1
	}, 5*time.Second, 10*time.Millisecond)

	f.scheduler.Stop()
	assert.Empty(t, f.machine.Ledger().Live())

	require.NoError(t, f.scheduler.Start(ctx))
	f.scheduler.Stop()
}

func TestValidateCron(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{"with_seconds", "0 */15 * * * *", false},
		{"descriptor", "@hourly", false},
		{"five_fields", "*/15 * * * *", true},
		{"garbage", "every quarter hour", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCron(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScheduler_Next(t *testing.T) {
	f := newFixture(t, setupTestDB(t), sim.DefaultMachine(), testConfig())
	from := time.Date(2024, 1, 1, 10, 7, 30, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 15, 0, 0, time.UTC), f.scheduler.Next(from))

	_, err := New(nil, nil, nil, nil, Config{Schedule: "nope"})
	assert.Error(t, err)
}

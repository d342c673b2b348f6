package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/example/opsboard/internal/application"
	"github.com/example/opsboard/internal/config"
	httptransport "github.com/example/opsboard/internal/http"
	"github.com/example/opsboard/internal/persistence"
	"github.com/example/opsboard/internal/persistence/postgres"
	"github.com/example/opsboard/internal/persistence/sqlite"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	availabilityStore, scheduleStore, closeStore, err := openStorage(ctx, cfg)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := closeStore(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	idGenerator := uuid.NewString
	seriesIDs := newSeriesIDGenerator()
	now := time.Now

	identity := httptransport.ContextIdentityProvider{}
	availabilityRepo := newAvailabilityRepositoryAdapter(availabilityStore)
	scheduleRepo := newScheduleRepositoryAdapter(scheduleStore)

	availabilityService := application.NewAvailabilityServiceWithLogger(availabilityRepo, identity, idGenerator, now, logger)
	scheduleService := application.NewScheduleServiceWithLogger(scheduleRepo, identity, idGenerator, seriesIDs, now, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Availability: httptransport.NewAvailabilityHandler(availabilityService, logger),
		Schedules:    httptransport.NewScheduleHandler(scheduleService, logger),
		Calendar:     httptransport.NewCalendarHandler(scheduleService, logger),
		Logger:       logger,
	})

	janitor := startRetentionJanitor(cfg, availabilityStore, logger)
	defer janitor.Stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := router.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	logger.Info("opsboard API listening", "addr", addr, "driver", cfg.DBDriver)
	if err := router.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

func openStorage(ctx context.Context, cfg config.Config) (persistence.AvailabilityRepository, persistence.ScheduleRepository, func() error, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		store, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, nil, err
		}
		return postgres.NewAvailabilityRepository(store), postgres.NewScheduleRepository(store), store.Close, nil
	default:
		store, err := sqlite.Open(cfg.SQLiteDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, nil, err
		}
		return sqlite.NewAvailabilityRepository(store), sqlite.NewScheduleRepository(store), store.Close, nil
	}
}

// startRetentionJanitor schedules the periodic purge of availability records
// past the retention window.
func startRetentionJanitor(cfg config.Config, repo persistence.AvailabilityRepository, logger *slog.Logger) *cron.Cron {
	c := cron.New()
	_, err := c.AddFunc(cfg.RetentionCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		cutoff := time.Now().Add(-cfg.RetentionWindow)
		removed, err := repo.DeleteAvailabilityBefore(ctx, cutoff)
		if err != nil {
			logger.Error("availability retention purge failed", "error", err)
			return
		}
		logger.Info("availability retention purge completed", "removed", removed, "cutoff", cutoff)
	})
	if err != nil {
		logger.Error("failed to schedule retention purge", "error", err, "spec", cfg.RetentionCron)
	}
	c.Start()
	return c
}

// newSeriesIDGenerator yields process-unique series ids. Seeding from the
// clock keeps ids unique across restarts without a persistent counter.
func newSeriesIDGenerator() func() int64 {
	var counter atomic.Int64
	counter.Store(time.Now().UnixNano())
	return func() int64 { return counter.Add(1) }
}

type availabilityRepositoryAdapter struct {
	repo persistence.AvailabilityRepository
}

func newAvailabilityRepositoryAdapter(repo persistence.AvailabilityRepository) *availabilityRepositoryAdapter {
	return &availabilityRepositoryAdapter{repo: repo}
}

func (a *availabilityRepositoryAdapter) CreateAvailability(ctx context.Context, record application.AvailabilityRecord) (application.AvailabilityRecord, error) {
	created, err := a.repo.CreateAvailability(ctx, persistence.AvailabilityRecord{
		ID:        record.ID,
		UserID:    record.UserID,
		Username:  record.Username,
		Nickname:  record.Nickname,
		Timestamp: record.Timestamp,
	})
	if err != nil {
		return application.AvailabilityRecord{}, err
	}
	return toApplicationRecord(created), nil
}

func (a *availabilityRepositoryAdapter) ListAvailabilityWithinWeek(ctx context.Context, weekStart, weekEnd time.Time) ([]application.AvailabilityRecord, error) {
	stored, err := a.repo.ListAvailabilityWithinWeek(ctx, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}
	records := make([]application.AvailabilityRecord, 0, len(stored))
	for _, record := range stored {
		records = append(records, toApplicationRecord(record))
	}
	return records, nil
}

func (a *availabilityRepositoryAdapter) DeleteAvailability(ctx context.Context, id string) error {
	return a.repo.DeleteAvailability(ctx, id)
}

func toApplicationRecord(record persistence.AvailabilityRecord) application.AvailabilityRecord {
	return application.AvailabilityRecord{
		ID:        record.ID,
		UserID:    record.UserID,
		Username:  record.Username,
		Nickname:  record.Nickname,
		Timestamp: record.Timestamp,
	}
}

type scheduleRepositoryAdapter struct {
	repo persistence.ScheduleRepository
}

func newScheduleRepositoryAdapter(repo persistence.ScheduleRepository) *scheduleRepositoryAdapter {
	return &scheduleRepositoryAdapter{repo: repo}
}

func (a *scheduleRepositoryAdapter) CreateEntries(ctx context.Context, entries []application.ScheduleEntry) ([]application.ScheduleEntry, error) {
	stored := make([]persistence.ScheduleEntry, 0, len(entries))
	for _, entry := range entries {
		stored = append(stored, toPersistenceEntry(entry))
	}
	created, err := a.repo.CreateEntries(ctx, stored)
	if err != nil {
		return nil, err
	}
	out := make([]application.ScheduleEntry, 0, len(created))
	for _, entry := range created {
		out = append(out, toApplicationEntry(entry))
	}
	return out, nil
}

func (a *scheduleRepositoryAdapter) GetEntry(ctx context.Context, id string) (application.ScheduleEntry, error) {
	entry, err := a.repo.GetEntry(ctx, id)
	if err != nil {
		return application.ScheduleEntry{}, err
	}
	return toApplicationEntry(entry), nil
}

func (a *scheduleRepositoryAdapter) UpdateEntry(ctx context.Context, entry application.ScheduleEntry, opts application.UpdateOptions) (application.ScheduleEntry, error) {
	updated, err := a.repo.UpdateEntry(ctx, toPersistenceEntry(entry), persistence.UpdateOptions{ExpectedPatch: opts.ExpectedPatch})
	if err != nil {
		return application.ScheduleEntry{}, err
	}
	return toApplicationEntry(updated), nil
}

func (a *scheduleRepositoryAdapter) DeleteEntry(ctx context.Context, id string) error {
	return a.repo.DeleteEntry(ctx, id)
}

func (a *scheduleRepositoryAdapter) ListEntriesBySeries(ctx context.Context, series int64) ([]application.ScheduleEntry, error) {
	stored, err := a.repo.ListEntriesBySeries(ctx, series)
	if err != nil {
		return nil, err
	}
	entries := make([]application.ScheduleEntry, 0, len(stored))
	for _, entry := range stored {
		entries = append(entries, toApplicationEntry(entry))
	}
	return entries, nil
}

func (a *scheduleRepositoryAdapter) DeleteEntriesBySeries(ctx context.Context, series int64) error {
	return a.repo.DeleteEntriesBySeries(ctx, series)
}

func (a *scheduleRepositoryAdapter) ListEntriesWithinWeek(ctx context.Context, weekStart, weekEnd time.Time) ([]application.ScheduleEntry, error) {
	stored, err := a.repo.ListEntriesWithinWeek(ctx, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}
	entries := make([]application.ScheduleEntry, 0, len(stored))
	for _, entry := range stored {
		entries = append(entries, toApplicationEntry(entry))
	}
	return entries, nil
}

func toPersistenceEntry(entry application.ScheduleEntry) persistence.ScheduleEntry {
	stored := persistence.ScheduleEntry{
		ID:              entry.ID,
		AuthorID:        entry.AuthorID,
		Type:            string(entry.Type),
		Title:           entry.Title,
		Description:     entry.Description,
		Start:           entry.Start,
		End:             entry.End,
		Repeat:          entry.Repeat,
		RepeatFrequency: entry.RepeatFrequency,
		RepeatEndDate:   entry.RepeatEndDate,
		RepeatSeries:    entry.RepeatSeries,
		Attendees:       append([]string(nil), entry.Attendees...),
		FleetIDs:        append([]string(nil), entry.FleetIDs...),
		Channel:         entry.Channel,
		Active:          entry.Active,
		Patch:           entry.Patch,
		CreatedAt:       entry.CreatedAt,
		UpdatedAt:       entry.UpdatedAt,
	}
	for _, option := range entry.RSVPOptions {
		stored.RSVPOptions = append(stored.RSVPOptions, persistence.RSVPOption{Emoji: option.Emoji, Name: option.Name})
	}
	for _, member := range entry.Members {
		stored.Members = append(stored.Members, persistence.EventMember{UserID: member.UserID, Option: member.Option})
	}
	return stored
}

func toApplicationEntry(entry persistence.ScheduleEntry) application.ScheduleEntry {
	out := application.ScheduleEntry{
		ID:              entry.ID,
		AuthorID:        entry.AuthorID,
		Type:            application.EntryType(entry.Type),
		Title:           entry.Title,
		Description:     entry.Description,
		Start:           entry.Start,
		End:             entry.End,
		Repeat:          entry.Repeat,
		RepeatFrequency: entry.RepeatFrequency,
		RepeatEndDate:   entry.RepeatEndDate,
		RepeatSeries:    entry.RepeatSeries,
		Attendees:       append([]string(nil), entry.Attendees...),
		FleetIDs:        append([]string(nil), entry.FleetIDs...),
		Channel:         entry.Channel,
		Active:          entry.Active,
		Patch:           entry.Patch,
		CreatedAt:       entry.CreatedAt,
		UpdatedAt:       entry.UpdatedAt,
	}
	for _, option := range entry.RSVPOptions {
		out.RSVPOptions = append(out.RSVPOptions, application.RSVPOption{Emoji: option.Emoji, Name: option.Name})
	}
	for _, member := range entry.Members {
		out.Members = append(out.Members, application.EventMember{UserID: member.UserID, Option: member.Option})
	}
	return out
}

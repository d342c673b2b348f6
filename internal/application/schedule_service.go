package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/opsboard/internal/recurrence"
	"github.com/example/opsboard/internal/rsvp"
	"github.com/example/opsboard/internal/timegrid"
)

// ScheduleRepository captures the store interactions of the schedule engine.
type ScheduleRepository interface {
	CreateEntries(ctx context.Context, entries []ScheduleEntry) ([]ScheduleEntry, error)
	GetEntry(ctx context.Context, id string) (ScheduleEntry, error)
	UpdateEntry(ctx context.Context, entry ScheduleEntry, opts UpdateOptions) (ScheduleEntry, error)
	DeleteEntry(ctx context.Context, id string) error
	ListEntriesBySeries(ctx context.Context, series int64) ([]ScheduleEntry, error)
	DeleteEntriesBySeries(ctx context.Context, series int64) error
	ListEntriesWithinWeek(ctx context.Context, weekStart, weekEnd time.Time) ([]ScheduleEntry, error)
}

// ScheduleService orchestrates entry creation, recurring series maintenance
// and RSVP transitions.
type ScheduleService struct {
	entries     ScheduleRepository
	identity    IdentityProvider
	idGenerator func() string
	seriesIDs   func() int64
	now         func() time.Time
	logger      *slog.Logger
}

// NewScheduleService wires dependencies for schedule operations.
func NewScheduleService(entries ScheduleRepository, identity IdentityProvider, idGenerator func() string, seriesIDs func() int64, now func() time.Time) *ScheduleService {
	return NewScheduleServiceWithLogger(entries, identity, idGenerator, seriesIDs, now, nil)
}

// NewScheduleServiceWithLogger wires dependencies including a base logger.
func NewScheduleServiceWithLogger(entries ScheduleRepository, identity IdentityProvider, idGenerator func() string, seriesIDs func() int64, now func() time.Time, logger *slog.Logger) *ScheduleService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ScheduleService{
		entries:     entries,
		identity:    identity,
		idGenerator: idGenerator,
		seriesIDs:   seriesIDs,
		now:         now,
		logger:      logger,
	}
}

// CreateEntry validates the input and stores the entry. A repeating input is
// expanded into dated instances sharing one fresh series id and created as a
// single batch.
func (s *ScheduleService) CreateEntry(ctx context.Context, input EntryInput) ([]ScheduleEntry, error) {
	if s == nil || s.entries == nil {
		return nil, fmt.Errorf("schedule repository not configured")
	}

	author, err := s.currentIdentity(ctx)
	if err != nil {
		return nil, err
	}

	vErr := &ValidationError{}
	validateEntryCore(input, vErr)
	if vErr.HasErrors() {
		return nil, vErr
	}

	logger := serviceLogger(ctx, s.logger, "schedule", "create_entry", "user_id", author.UserID)

	createdAt := s.now()
	if !input.Repeat {
		entry := s.buildEntry(author.UserID, input, input.Start, input.End, 0, createdAt)
		stored, err := s.entries.CreateEntries(ctx, []ScheduleEntry{entry})
		if err != nil {
			return nil, mapRepoError(err)
		}
		logger.InfoContext(ctx, "entry created", "entry_id", entry.ID)
		return stored, nil
	}

	instances, err := s.expand(author, input)
	if err != nil {
		return nil, err
	}

	batch := make([]ScheduleEntry, 0, len(instances))
	for _, instance := range instances {
		batch = append(batch, s.buildEntry(author.UserID, input, instance.Start, instance.End, instance.Series, createdAt))
	}

	stored, err := s.entries.CreateEntries(ctx, batch)
	if err != nil {
		return nil, mapRepoError(err)
	}
	logger.InfoContext(ctx, "series created", "series", batch[0].RepeatSeries, "instances", len(batch))
	return stored, nil
}

// UpdateEntry applies a single in-place update to one entry. Recurring series
// edits go through ReplaceSeries instead. The write discipline follows opts:
// last-write-wins by default, optimistic locking when an expected patch is
// supplied.
func (s *ScheduleService) UpdateEntry(ctx context.Context, entryID string, input EntryInput, opts UpdateOptions) (ScheduleEntry, error) {
	if s == nil || s.entries == nil {
		return ScheduleEntry{}, fmt.Errorf("schedule repository not configured")
	}

	actor, err := s.currentIdentity(ctx)
	if err != nil {
		return ScheduleEntry{}, err
	}

	existing, err := s.entries.GetEntry(ctx, entryID)
	if err != nil {
		return ScheduleEntry{}, mapRepoError(err)
	}
	if existing.AuthorID != actor.UserID {
		return ScheduleEntry{}, ErrUnauthorized
	}

	vErr := &ValidationError{}
	validateEntryCore(input, vErr)
	if input.Repeat {
		vErr.add("repeat", "recurring edits must replace the series")
	}
	if vErr.HasErrors() {
		return ScheduleEntry{}, vErr
	}

	updated := existing
	updated.Type = input.Type
	updated.Title = strings.TrimSpace(input.Title)
	updated.Description = input.Description
	updated.Start = input.Start
	updated.End = input.End
	updated.RSVPOptions = cloneOptions(input.RSVPOptions)
	updated.FleetIDs = cloneStrings(input.FleetIDs)
	updated.Channel = input.Channel
	updated.UpdatedAt = s.now()

	persisted, err := s.entries.UpdateEntry(ctx, updated, opts)
	if err != nil {
		return ScheduleEntry{}, mapRepoError(err)
	}

	serviceLogger(ctx, s.logger, "schedule", "update_entry", "user_id", actor.UserID).
		InfoContext(ctx, "entry updated", "entry_id", entryID, "patch", persisted.Patch)
	return persisted, nil
}

// ReplaceSeries swaps out an edited recurring series: the new instances are
// created as one batch first, and only on success is the old series deleted.
// A failed creation leaves the old series intact. A failed deletion leaves
// both series coexisting and is reported as a SeriesDeleteError so the caller
// can retry the deletion without re-creating.
func (s *ScheduleService) ReplaceSeries(ctx context.Context, oldSeries int64, input EntryInput) ([]ScheduleEntry, error) {
	if s == nil || s.entries == nil {
		return nil, fmt.Errorf("schedule repository not configured")
	}

	author, err := s.currentIdentity(ctx)
	if err != nil {
		return nil, err
	}

	vErr := &ValidationError{}
	validateEntryCore(input, vErr)
	if !input.Repeat {
		vErr.add("repeat", "series replacement requires a repeating input")
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	if err := s.authorizeSeries(ctx, author, oldSeries); err != nil {
		return nil, err
	}

	instances, err := s.expand(author, input)
	if err != nil {
		return nil, err
	}

	createdAt := s.now()
	batch := make([]ScheduleEntry, 0, len(instances))
	for _, instance := range instances {
		batch = append(batch, s.buildEntry(author.UserID, input, instance.Start, instance.End, instance.Series, createdAt))
	}

	stored, err := s.entries.CreateEntries(ctx, batch)
	if err != nil {
		return nil, mapRepoError(err)
	}

	logger := serviceLogger(ctx, s.logger, "schedule", "replace_series",
		"user_id", author.UserID, "old_series", oldSeries, "new_series", batch[0].RepeatSeries)

	if err := s.entries.DeleteEntriesBySeries(ctx, oldSeries); err != nil {
		logger.WarnContext(ctx, "old series deletion failed; both series coexist", "error", err)
		return stored, &SeriesDeleteError{Series: oldSeries, Cause: err}
	}

	logger.InfoContext(ctx, "series replaced", "instances", len(stored))
	return stored, nil
}

// DeleteEntry removes one entry after an authorship check.
func (s *ScheduleService) DeleteEntry(ctx context.Context, entryID string) error {
	if s == nil || s.entries == nil {
		return fmt.Errorf("schedule repository not configured")
	}

	actor, err := s.currentIdentity(ctx)
	if err != nil {
		return err
	}

	existing, err := s.entries.GetEntry(ctx, entryID)
	if err != nil {
		return mapRepoError(err)
	}
	if existing.AuthorID != actor.UserID {
		return ErrUnauthorized
	}

	if err := s.entries.DeleteEntry(ctx, entryID); err != nil {
		return mapRepoError(err)
	}
	serviceLogger(ctx, s.logger, "schedule", "delete_entry", "user_id", actor.UserID).
		InfoContext(ctx, "entry deleted", "entry_id", entryID)
	return nil
}

// DeleteSeries removes every entry of a recurring series after an authorship
// check, leaving none behind.
func (s *ScheduleService) DeleteSeries(ctx context.Context, series int64) error {
	if s == nil || s.entries == nil {
		return fmt.Errorf("schedule repository not configured")
	}

	actor, err := s.currentIdentity(ctx)
	if err != nil {
		return err
	}

	if err := s.authorizeSeries(ctx, actor, series); err != nil {
		return err
	}

	if err := s.entries.DeleteEntriesBySeries(ctx, series); err != nil {
		return mapRepoError(err)
	}
	serviceLogger(ctx, s.logger, "schedule", "delete_series", "user_id", actor.UserID).
		InfoContext(ctx, "series deleted", "series", series)
	return nil
}

// ListWeek returns the window's entries in chronological order.
func (s *ScheduleService) ListWeek(ctx context.Context, window timegrid.WeekWindow) ([]ScheduleEntry, error) {
	if s == nil || s.entries == nil {
		return nil, fmt.Errorf("schedule repository not configured")
	}

	entries, err := s.entries.ListEntriesWithinWeek(ctx, window.Start, window.End)
	if err != nil {
		return nil, mapRepoError(err)
	}

	ordered := make([]ScheduleEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Start.Equal(ordered[j].Start) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].Start.Before(ordered[j].Start)
	})
	return ordered, nil
}

// RSVP applies one select transition for the acting user on an entry and
// persists the updated membership. Selecting the held option again removes
// the RSVP; selecting another option moves it in place.
func (s *ScheduleService) RSVP(ctx context.Context, entryID, option string) (ScheduleEntry, rsvp.State, error) {
	if s == nil || s.entries == nil {
		return ScheduleEntry{}, rsvp.StateUnset, fmt.Errorf("schedule repository not configured")
	}

	actor, err := s.currentIdentity(ctx)
	if err != nil {
		return ScheduleEntry{}, rsvp.StateUnset, err
	}

	entry, err := s.entries.GetEntry(ctx, entryID)
	if err != nil {
		return ScheduleEntry{}, rsvp.StateUnset, mapRepoError(err)
	}

	members, attendees, state, err := rsvp.Apply(
		toRSVPOptions(entry.RSVPOptions),
		toRSVPMembers(entry.Members),
		cloneStrings(entry.Attendees),
		actor.UserID,
		option,
	)
	if err != nil {
		return ScheduleEntry{}, rsvp.StateUnset, err
	}

	entry.Members = fromRSVPMembers(members)
	entry.Attendees = attendees
	entry.UpdatedAt = s.now()

	persisted, err := s.entries.UpdateEntry(ctx, entry, UpdateOptions{})
	if err != nil {
		return ScheduleEntry{}, rsvp.StateUnset, mapRepoError(err)
	}

	serviceLogger(ctx, s.logger, "schedule", "rsvp", "user_id", actor.UserID).
		InfoContext(ctx, "rsvp applied", "entry_id", entryID, "option", option, "state", int(state))
	return persisted, state, nil
}

func (s *ScheduleService) currentIdentity(ctx context.Context) (Identity, error) {
	if s.identity == nil {
		return Identity{}, ErrUnauthorized
	}
	actor, err := s.identity.Current(ctx)
	if err != nil {
		return Identity{}, err
	}
	if actor.UserID == "" {
		return Identity{}, ErrUnauthorized
	}
	return actor, nil
}

// authorizeSeries verifies the acting user authored the series. Every
// instance of a series shares one author, so checking any entry suffices.
func (s *ScheduleService) authorizeSeries(ctx context.Context, actor Identity, series int64) error {
	entries, err := s.entries.ListEntriesBySeries(ctx, series)
	if err != nil {
		return mapRepoError(err)
	}
	if len(entries) == 0 {
		return ErrNotFound
	}
	if entries[0].AuthorID != actor.UserID {
		return ErrUnauthorized
	}
	return nil
}

func (s *ScheduleService) expand(author Identity, input EntryInput) ([]recurrence.Instance, error) {
	frequency, err := recurrence.ParseFrequency(input.RepeatFrequency)
	if err != nil {
		return nil, err
	}
	engine := recurrence.NewEngine(author.Location(), s.seriesIDs)
	return engine.Expand(input.Start, input.End, frequency, *input.RepeatEndDate)
}

func (s *ScheduleService) buildEntry(authorID string, input EntryInput, start, end time.Time, series int64, createdAt time.Time) ScheduleEntry {
	entry := ScheduleEntry{
		ID:          s.idGenerator(),
		AuthorID:    authorID,
		Type:        input.Type,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Start:       start,
		End:         end,
		RSVPOptions: cloneOptions(input.RSVPOptions),
		FleetIDs:    cloneStrings(input.FleetIDs),
		Channel:     input.Channel,
		Active:      true,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	if series != 0 {
		entry.Repeat = true
		entry.RepeatFrequency = input.RepeatFrequency
		entry.RepeatSeries = series
		if input.RepeatEndDate != nil {
			endDate := *input.RepeatEndDate
			entry.RepeatEndDate = &endDate
		}
	}
	return entry
}

func validateEntryCore(input EntryInput, vErr *ValidationError) {
	if strings.TrimSpace(input.Title) == "" {
		vErr.add("title", "title is required")
	}
	if !input.Type.Valid() {
		vErr.add("type", "unknown entry type")
	}
	if input.Start.IsZero() {
		vErr.add("start", "start is required")
	}
	if input.End.IsZero() {
		vErr.add("end", "end is required")
	}
	if !input.Start.IsZero() && !input.End.IsZero() && !input.Start.Before(input.End) {
		vErr.add("time", "start must be before end")
	}
	if len(input.RSVPOptions) == 0 {
		vErr.add("rsvp_options", "at least one RSVP option is required")
	}
	seen := make(map[string]struct{}, len(input.RSVPOptions))
	for _, option := range input.RSVPOptions {
		name := strings.TrimSpace(option.Name)
		if name == "" {
			vErr.add("rsvp_options", "RSVP option names must not be empty")
			break
		}
		if _, dup := seen[name]; dup {
			vErr.add("rsvp_options", "RSVP option names must be unique")
			break
		}
		seen[name] = struct{}{}
	}
	if input.Repeat {
		if _, err := recurrence.ParseFrequency(input.RepeatFrequency); err != nil {
			vErr.add("repeat_frequency", "repeat frequency must be daily, weekly or monthly")
		}
		if input.RepeatEndDate == nil {
			vErr.add("repeat_end_date", "repeat end date is required")
		}
	}
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func cloneOptions(options []RSVPOption) []RSVPOption {
	if options == nil {
		return nil
	}
	out := make([]RSVPOption, len(options))
	copy(out, options)
	return out
}

func toRSVPOptions(options []RSVPOption) []rsvp.Option {
	out := make([]rsvp.Option, 0, len(options))
	for _, option := range options {
		out = append(out, rsvp.Option{Emoji: option.Emoji, Name: option.Name})
	}
	return out
}

func toRSVPMembers(members []EventMember) []rsvp.Member {
	out := make([]rsvp.Member, 0, len(members))
	for _, member := range members {
		out = append(out, rsvp.Member{UserID: member.UserID, Option: member.Option})
	}
	return out
}

func fromRSVPMembers(members []rsvp.Member) []EventMember {
	out := make([]EventMember, 0, len(members))
	for _, member := range members {
		out = append(out, EventMember{UserID: member.UserID, Option: member.Option})
	}
	return out
}

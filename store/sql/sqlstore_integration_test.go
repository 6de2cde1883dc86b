package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-onboarding/core"
	onboardingmigrations "github.com/goliatone/go-onboarding/migrations"
	sqlstore "github.com/goliatone/go-onboarding/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-onboarding-tests"
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	var tableName string
	if err := client.DB().NewRaw(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		"onboarding_requests",
	).Scan(context.Background(), &tableName); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if tableName != "onboarding_requests" {
		t.Fatalf("expected onboarding_requests table, got %q", tableName)
	}
}

func TestRequestStore_EnforcesSingleActiveRequest(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	cfg := seedConfiguration(t, factory, "cfg-single")
	requests := factory.RequestStore()

	first, err := requests.Create(ctx, core.CreateRequestInput{
		UserEmail:      "Alice@Example.com",
		RequestedGroup: "data-platform",
		ConfigID:       cfg.ID,
		StageApprovals: core.StageApprovals{
			1: {Required: []string{"manager@example.com"}},
		},
	})
	if err != nil {
		t.Fatalf("create first request: %v", err)
	}
	if first.Status != core.StatusNewUnprocessed {
		t.Fatalf("expected new_unprocessed, got %q", first.Status)
	}
	if first.UserEmail != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", first.UserEmail)
	}

	existing, err := requests.Create(ctx, core.CreateRequestInput{
		UserEmail:      "alice@example.com",
		RequestedGroup: "data-platform",
		ConfigID:       cfg.ID,
		StageApprovals: core.StageApprovals{
			1: {Required: []string{"manager@example.com"}},
		},
	})
	if !errors.Is(err, core.ErrRequestConflict) {
		t.Fatalf("expected request conflict, got %v", err)
	}
	if existing.ID != first.ID {
		t.Fatalf("expected conflict to surface existing request %d, got %d", first.ID, existing.ID)
	}
	if existing.RequestCount != 2 {
		t.Fatalf("expected request count bumped to 2, got %d", existing.RequestCount)
	}

	active, err := requests.FindActive(ctx, "alice@example.com", "data-platform", cfg.ID)
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if active.ID != first.ID {
		t.Fatalf("expected active request %d, got %d", first.ID, active.ID)
	}

	if err := requests.UpdateStatus(ctx, "alice@example.com", "data-platform", cfg.ID, core.StatusCompleted, "granted"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if _, err := requests.FindActive(ctx, "alice@example.com", "data-platform", cfg.ID); !errors.Is(err, core.ErrRequestNotFound) {
		t.Fatalf("expected no active request after completion, got %v", err)
	}

	reopened, err := requests.Create(ctx, core.CreateRequestInput{
		UserEmail:      "alice@example.com",
		RequestedGroup: "data-platform",
		ConfigID:       cfg.ID,
		StageApprovals: core.StageApprovals{
			1: {Required: []string{"manager@example.com"}},
		},
	})
	if err != nil {
		t.Fatalf("create after terminal: %v", err)
	}
	if reopened.ID == first.ID {
		t.Fatalf("expected a fresh request row after terminal status")
	}
}

func TestRequestStore_FindActiveMatchesAcrossGroupsWhenUnscoped(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	cfg := seedConfiguration(t, factory, "cfg-unscoped")
	requests := factory.RequestStore()

	created, err := requests.Create(ctx, core.CreateRequestInput{
		UserEmail:      "hank@example.com",
		RequestedGroup: "data-platform",
		ConfigID:       cfg.ID,
		StageApprovals: core.StageApprovals{
			1: {Required: []string{"manager@example.com"}},
		},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	// An empty group or config id widens the lookup to the user's active
	// request anywhere, which is what duplicate detection relies on.
	active, err := requests.FindActive(ctx, "hank@example.com", "", "")
	if err != nil {
		t.Fatalf("find active without scope: %v", err)
	}
	if active.ID != created.ID {
		t.Fatalf("expected request %d, got %d", created.ID, active.ID)
	}

	active, err = requests.FindActive(ctx, "hank@example.com", "data-platform", "")
	if err != nil {
		t.Fatalf("find active without config scope: %v", err)
	}
	if active.ID != created.ID {
		t.Fatalf("expected request %d, got %d", created.ID, active.ID)
	}

	if _, err := requests.FindActive(ctx, "nobody@example.com", "", ""); !errors.Is(err, core.ErrRequestNotFound) {
		t.Fatalf("expected not found for unknown user, got %v", err)
	}
}

func TestRequestStore_RecordApproval_PropagatesToFutureStages(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	cfg := seedConfiguration(t, factory, "cfg-propagation")
	requests := factory.RequestStore()

	created, err := requests.Create(ctx, core.CreateRequestInput{
		UserEmail:      "bob@example.com",
		RequestedGroup: "observability",
		ConfigID:       cfg.ID,
		Status:         core.PendingStatus(1),
		CurrentStage:   1,
		StageApprovals: core.StageApprovals{
			1: {Required: []string{"lead@example.com"}},
			2: {Required: []string{"security@example.com"}},
			3: {Required: []string{"lead@example.com", "vp@example.com"}},
		},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	recorded, err := requests.RecordApproval(ctx, created.ID, "Lead@Example.com")
	if err != nil {
		t.Fatalf("record approval: %v", err)
	}
	if !recorded {
		t.Fatalf("expected first approval to be recorded")
	}

	again, err := requests.RecordApproval(ctx, created.ID, "lead@example.com")
	if err != nil {
		t.Fatalf("repeat approval: %v", err)
	}
	if again {
		t.Fatalf("expected repeat approval to be a no-op")
	}

	loaded, err := requests.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if !loaded.StageApprovals[1].HasApproved("lead@example.com") {
		t.Fatalf("expected stage 1 approval recorded")
	}
	if loaded.StageApprovals[2].HasApproved("lead@example.com") {
		t.Fatalf("stage 2 does not require lead, no approval expected")
	}
	if !loaded.StageApprovals[3].HasApproved("lead@example.com") {
		t.Fatalf("expected approval propagated into stage 3 where lead is required")
	}
}

func TestRequestStore_AdvanceStageAndTerminality(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	cfg := seedConfiguration(t, factory, "cfg-advance")
	requests := factory.RequestStore()

	created, err := requests.Create(ctx, core.CreateRequestInput{
		UserEmail:      "carol@example.com",
		RequestedGroup: "billing",
		ConfigID:       cfg.ID,
		StageApprovals: core.StageApprovals{
			1: {Required: []string{"lead@example.com"}},
			2: {Required: []string{"vp@example.com"}},
		},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	// New rows start at stage 1; attaching to stage 1 is a status flip,
	// not an advance.
	if created.CurrentStage != 1 {
		t.Fatalf("expected fresh request at stage 1, got %d", created.CurrentStage)
	}
	if err := requests.UpdateStatus(ctx, "carol@example.com", "billing", cfg.ID, core.PendingStatus(1), "attached"); err != nil {
		t.Fatalf("attach to stage 1: %v", err)
	}
	attached, err := requests.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get attached request: %v", err)
	}
	if attached.Status != core.PendingStatus(1) || attached.CurrentStage != 1 {
		t.Fatalf("expected pending_stage_1 at stage 1, got %q stage %d", attached.Status, attached.CurrentStage)
	}

	advanced, err := requests.AdvanceStage(ctx, "carol@example.com", "billing", cfg.ID)
	if err != nil {
		t.Fatalf("advance to stage 2: %v", err)
	}
	if advanced.Status != core.PendingStatus(2) || advanced.CurrentStage != 2 {
		t.Fatalf("expected pending_stage_2, got %q stage %d", advanced.Status, advanced.CurrentStage)
	}
	if _, err := requests.AdvanceStage(ctx, "carol@example.com", "billing", cfg.ID); !errors.Is(err, core.ErrStageOutOfRange) {
		t.Fatalf("expected stage out of range past final stage, got %v", err)
	}

	if err := requests.MarkDuplicate(ctx, created.ID, created.ID, "superseded"); err != nil {
		t.Fatalf("mark duplicate: %v", err)
	}
	if err := requests.UpdateStatus(ctx, "carol@example.com", "billing", cfg.ID, core.StatusError, "should not apply"); !errors.Is(err, core.ErrRequestNotFound) {
		t.Fatalf("expected duplicate rows to be untouchable, got %v", err)
	}
	if _, err := requests.RecordApproval(ctx, created.ID, "vp@example.com"); !errors.Is(err, core.ErrRequestTerminal) {
		t.Fatalf("expected terminal guard on approval, got %v", err)
	}

	loaded, err := requests.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if loaded.Status != core.StatusDuplicate || loaded.DuplicateOf == nil {
		t.Fatalf("expected duplicate status with pointer, got %q %v", loaded.Status, loaded.DuplicateOf)
	}
}

func TestMessageClaimStore_ExactlyOneWinner(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	claims := factory.MessageClaimStore()

	const workers = 8
	var wg sync.WaitGroup
	wins := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, claimErr := claims.Claim(ctx, "imap-uid-42")
			if claimErr != nil {
				t.Errorf("claim: %v", claimErr)
				return
			}
			wins <- won
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for won := range wins {
		if won {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one claim winner, got %d", winners)
	}

	won, err := claims.Claim(ctx, "imap-uid-43")
	if err != nil {
		t.Fatalf("claim fresh uid: %v", err)
	}
	if !won {
		t.Fatalf("expected fresh uid claim to win")
	}
}

func TestCheckpointStore_OverlapAndDefaultLookback(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	overlap := 30 * time.Second
	factory := sqlstore.NewRepositoryFactory().WithCheckpointOverlap(overlap)
	if err := factory.BuildStores(client); err != nil {
		t.Fatalf("build stores: %v", err)
	}
	checkpoints := factory.CheckpointStore()

	lookback := 24 * time.Hour
	before := time.Now().UTC().Add(-lookback)
	got, err := checkpoints.GetCheckpoint(ctx, "cfg-ckp", lookback)
	if err != nil {
		t.Fatalf("get checkpoint without prior value: %v", err)
	}
	after := time.Now().UTC().Add(-lookback)
	if got.Before(before.Add(-time.Second)) || got.After(after.Add(time.Second)) {
		t.Fatalf("expected default lookback near %v, got %v", before, got)
	}

	mark := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	if err := checkpoints.SetCheckpoint(ctx, "cfg-ckp", mark); err != nil {
		t.Fatalf("set checkpoint: %v", err)
	}
	got, err = checkpoints.GetCheckpoint(ctx, "cfg-ckp", lookback)
	if err != nil {
		t.Fatalf("get checkpoint with prior value: %v", err)
	}
	if !got.Equal(mark.Add(-overlap)) {
		t.Fatalf("expected checkpoint %v minus overlap, got %v", mark, got)
	}

	later := mark.Add(time.Hour)
	if err := checkpoints.SetCheckpoint(ctx, "cfg-ckp", later); err != nil {
		t.Fatalf("overwrite checkpoint: %v", err)
	}
	got, err = checkpoints.GetCheckpoint(ctx, "cfg-ckp", lookback)
	if err != nil {
		t.Fatalf("get overwritten checkpoint: %v", err)
	}
	if !got.Equal(later.Add(-overlap)) {
		t.Fatalf("expected overwritten checkpoint %v minus overlap, got %v", later, got)
	}
}

func TestRequestStore_ReminderAndMaturityQueriesScopedToConfig(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	cfgA := seedConfiguration(t, factory, "cfg-reminder-a")
	cfgB := seedConfiguration(t, factory, "cfg-reminder-b")
	requests := factory.RequestStore()

	approvals := core.StageApprovals{1: {Required: []string{"lead@example.com"}}}
	stale, err := requests.Create(ctx, core.CreateRequestInput{
		UserEmail:      "dan@example.com",
		RequestedGroup: "infra",
		ConfigID:       cfgA.ID,
		Status:         core.PendingStatus(1),
		CurrentStage:   1,
		StageApprovals: approvals,
	})
	if err != nil {
		t.Fatalf("create stale request: %v", err)
	}
	if _, err := requests.Create(ctx, core.CreateRequestInput{
		UserEmail:      "dan@example.com",
		RequestedGroup: "infra",
		ConfigID:       cfgB.ID,
		Status:         core.PendingStatus(1),
		CurrentStage:   1,
		StageApprovals: approvals,
	}); err != nil {
		t.Fatalf("create other-config request: %v", err)
	}
	if _, err := requests.Create(ctx, core.CreateRequestInput{
		UserEmail:      "erin@example.com",
		RequestedGroup: "infra",
		ConfigID:       cfgA.ID,
		Status:         core.PendingStatus(1),
		CurrentStage:   1,
		StageApprovals: approvals,
	}); err != nil {
		t.Fatalf("create fresh request: %v", err)
	}

	backdate(t, client, stale.ID, time.Now().UTC().Add(-48*time.Hour))

	due, err := requests.FindPendingForReminder(ctx, cfgA.ID, 24*time.Hour)
	if err != nil {
		t.Fatalf("find pending for reminder: %v", err)
	}
	if len(due) != 1 || due[0].ID != stale.ID {
		t.Fatalf("expected only the stale cfg-a request, got %d rows", len(due))
	}

	pending, err := requests.FindPending(ctx, cfgA.ID)
	if err != nil {
		t.Fatalf("find pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending requests in cfg-a, got %d", len(pending))
	}

	mature, err := requests.Create(ctx, core.CreateRequestInput{
		UserEmail:      "frank@example.com",
		RequestedGroup: "infra",
		ConfigID:       cfgA.ID,
		StageApprovals: approvals,
	})
	if err != nil {
		t.Fatalf("create unprocessed request: %v", err)
	}
	backdate(t, client, mature.ID, time.Now().UTC().Add(-10*time.Minute))

	ready, err := requests.FindMatureUnprocessed(ctx, cfgA.ID, 5*time.Minute)
	if err != nil {
		t.Fatalf("find mature unprocessed: %v", err)
	}
	if len(ready) != 1 || ready[0].ID != mature.ID {
		t.Fatalf("expected the backdated unprocessed request, got %d rows", len(ready))
	}

	ready, err = requests.FindMatureUnprocessed(ctx, cfgA.ID, time.Hour)
	if err != nil {
		t.Fatalf("find mature unprocessed with long delay: %v", err)
	}
	if len(ready) != 0 {
		t.Fatalf("expected no rows inside the maturity window, got %d", len(ready))
	}
}

func TestRequestStore_RecordDelegationAndAccessLedger(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	cfg := seedConfiguration(t, factory, "cfg-delegation")
	requests := factory.RequestStore()

	created, err := requests.Create(ctx, core.CreateRequestInput{
		UserEmail:      "gail@example.com",
		RequestedGroup: "payments",
		ConfigID:       cfg.ID,
		StageApprovals: core.StageApprovals{1: {Required: []string{"lead@example.com"}}},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	if err := requests.RecordDelegation(ctx, created.ID, "Lead@Example.com", "deputy@example.com"); err != nil {
		t.Fatalf("record delegation: %v", err)
	}
	// Re-recording the same pair is idempotent.
	if err := requests.RecordDelegation(ctx, created.ID, "lead@example.com", "deputy@example.com"); err != nil {
		t.Fatalf("repeat delegation: %v", err)
	}

	loaded, err := requests.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if len(loaded.Delegations) != 1 {
		t.Fatalf("expected 1 delegation, got %d", len(loaded.Delegations))
	}
	if loaded.Delegations[0].Original != "lead@example.com" || loaded.Delegations[0].Delegate != "deputy@example.com" {
		t.Fatalf("unexpected delegation pair %+v", loaded.Delegations[0])
	}

	if err := requests.RecordAccess(ctx, "gail@example.com", cfg.ID); err != nil {
		t.Fatalf("record access: %v", err)
	}
	if err := requests.RecordAccess(ctx, "gail@example.com", cfg.ID); err != nil {
		t.Fatalf("record repeat access: %v", err)
	}

	var grantedCount int
	if err := client.DB().NewRaw(
		"SELECT granted_count FROM onboarding_access_log WHERE user_email = ? AND config_id = ?",
		"gail@example.com", cfg.ID,
	).Scan(ctx, &grantedCount); err != nil {
		t.Fatalf("query access ledger: %v", err)
	}
	if grantedCount != 2 {
		t.Fatalf("expected granted count 2, got %d", grantedCount)
	}
}

func TestConfigurationStore_ListActiveAndMailboxLookup(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	configurations := factory.ConfigurationStore()

	mailbox, err := configurations.CreateMailbox(ctx, core.Mailbox{
		Description: "onboarding inbox",
		IMAPServer:  "imap.example.com",
		IMAPUser:    "svc-onboarding",
		IMAPPass:    "secret",
		SMTPServer:  "smtp.example.com",
		SMTPPort:    587,
	})
	if err != nil {
		t.Fatalf("create mailbox: %v", err)
	}

	active, err := configurations.CreateConfiguration(ctx, core.WorkflowConfiguration{
		Active:        true,
		Description:   "data platform read access",
		TeamAlias:     "data-platform",
		WorkflowType:  "group_access",
		RequiredGroup: "data-readers",
		MailboxID:     mailbox.ID,
		Target: core.TargetDescriptor{
			Driver:       "sqlite",
			DSN:          "file:members?mode=memory",
			Table:        "members",
			EmailColumn:  "email",
			ActiveColumn: "active",
		},
		MaturityDelay: 5 * time.Minute,
	})
	if err != nil {
		t.Fatalf("create active configuration: %v", err)
	}
	if _, err := configurations.CreateConfiguration(ctx, core.WorkflowConfiguration{
		Active:        false,
		TeamAlias:     "legacy-team",
		WorkflowType:  "group_access",
		RequiredGroup: "legacy",
		MailboxID:     mailbox.ID,
	}); err != nil {
		t.Fatalf("create inactive configuration: %v", err)
	}

	listed, err := configurations.ListActiveConfigurations(ctx)
	if err != nil {
		t.Fatalf("list active configurations: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != active.ID {
		t.Fatalf("expected only the active configuration, got %d rows", len(listed))
	}
	if listed[0].Target.Driver != "sqlite" || listed[0].Target.Table != "members" {
		t.Fatalf("expected target descriptor to round-trip, got %+v", listed[0].Target)
	}
	if listed[0].MaturityDelay != 5*time.Minute {
		t.Fatalf("expected maturity delay to round-trip, got %v", listed[0].MaturityDelay)
	}
	if listed[0].Description != "data platform read access" {
		t.Fatalf("expected description to round-trip, got %q", listed[0].Description)
	}

	got, err := configurations.GetMailbox(ctx, mailbox.ID)
	if err != nil {
		t.Fatalf("get mailbox: %v", err)
	}
	if got.IMAPServer != "imap.example.com" || got.IMAPUser != "svc-onboarding" {
		t.Fatalf("unexpected mailbox %+v", got)
	}

	if _, err := configurations.GetMailbox(ctx, "missing"); !errors.Is(err, core.ErrMailboxNotFound) {
		t.Fatalf("expected mailbox not found, got %v", err)
	}
}

func seedConfiguration(t *testing.T, factory *sqlstore.RepositoryFactory, alias string) core.WorkflowConfiguration {
	t.Helper()
	ctx := context.Background()
	configurations := factory.ConfigurationStore()

	mailbox, err := configurations.CreateMailbox(ctx, core.Mailbox{
		Description: alias + " inbox",
		IMAPServer:  "imap.example.com",
		IMAPUser:    "svc-" + alias,
		IMAPPass:    "secret",
	})
	if err != nil {
		t.Fatalf("seed mailbox: %v", err)
	}
	cfg, err := configurations.CreateConfiguration(ctx, core.WorkflowConfiguration{
		Active:        true,
		TeamAlias:     alias,
		WorkflowType:  "group_access",
		RequiredGroup: alias + "-group",
		MailboxID:     mailbox.ID,
	})
	if err != nil {
		t.Fatalf("seed configuration: %v", err)
	}
	return cfg
}

func backdate(t *testing.T, client *persistence.Client, requestID int64, to time.Time) {
	t.Helper()
	if _, err := client.DB().NewUpdate().
		Table("onboarding_requests").
		Set("created_at = ?", to).
		Set("updated_at = ?", to).
		Where("id = ?", requestID).
		Exec(context.Background()); err != nil {
		t.Fatalf("backdate request %d: %v", requestID, err)
	}
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:onboarding-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = onboardingmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != onboardingmigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, onboardingmigrations.WithValidationTargets(onboardingmigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}

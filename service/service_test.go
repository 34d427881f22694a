package service

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"
	"time"

	"RosterBot/model"
	"RosterBot/repo"
)

const chatID int64 = -100500

var testNow = time.Date(2026, 10, 19, 18, 0, 0, 0, time.UTC)

var (
	alice = User{ID: 1, Name: "Alice", Username: "alice"}
	bob   = User{ID: 2, Name: "Bob"}
	carol = User{ID: 3, Name: "Carol"}
)

type fixture struct {
	t     *testing.T
	svc   *Service
	store *repo.MemoryStore
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	store := repo.NewMemoryStore()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return &fixture{t: t, svc: New(repo.NewStateRepository(store), opts...), store: store}
}

// load starts a new update the way the dispatcher does.
func (f *fixture) load(u User) *Request {
	f.t.Helper()
	req, err := f.svc.Load(context.Background(), chatID, u)
	if err != nil {
		f.t.Fatalf("load: %v", err)
	}
	return req
}

// withMainMessage gives the chat a status message so per chat keys persist.
func (f *fixture) withMainMessage() {
	f.t.Helper()
	req := f.load(alice)
	if err := f.svc.RecordMainMessage(context.Background(), req, model.MessageRef{MessageID: 10, ChatID: chatID}); err != nil {
		f.t.Fatalf("record main message: %v", err)
	}
}

func (f *fixture) must(err error) {
	f.t.Helper()
	if err != nil {
		f.t.Fatalf("unexpected error: %v", err)
	}
}

func TestTwoPlayersShuffledIntoTwoTeams(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withMainMessage()

	f.must(f.svc.SetStatus(ctx, f.load(alice), model.StatusGoing))
	f.must(f.svc.SetStatus(ctx, f.load(bob), model.StatusGoing))
	f.must(f.svc.AdminClose(ctx, f.load(carol)))

	options, err := f.svc.BeginShuffle(ctx, f.load(carol))
	if err != nil {
		t.Fatalf("begin shuffle: %v", err)
	}
	if !reflect.DeepEqual(options, []int{2}) {
		t.Fatalf("expected options [2], got %v", options)
	}
	if f.svc.Flow(chatID).State != model.StateAwaitingTeamCount {
		t.Fatal("expected chat awaiting team count")
	}

	f.must(f.svc.ChooseTeamCount(ctx, f.load(carol), 2))

	session := f.load(carol).Session
	if len(session.ShuffleResult) != 2 {
		t.Fatalf("expected two teams, got %v", session.ShuffleResult)
	}
	var everyone []string
	for _, team := range session.ShuffleResult {
		if len(team) != 1 {
			t.Fatalf("expected teams of one, got %v", session.ShuffleResult)
		}
		everyone = append(everyone, team...)
	}
	sort.Strings(everyone)
	if !reflect.DeepEqual(everyone, []string{"Alice", "Bob"}) {
		t.Fatalf("expected Alice and Bob placed, got %v", everyone)
	}
	if session.ShuffleError != "" {
		t.Fatalf("expected no shuffle error, got %q", session.ShuffleError)
	}
	if f.svc.Flow(chatID).State != model.StateIdle {
		t.Fatal("expected chat back to idle")
	}
}

func TestShuffleWithNobodyGoing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withMainMessage()
	f.must(f.svc.AdminClose(ctx, f.load(alice)))

	_, err := f.svc.BeginShuffle(ctx, f.load(alice))
	if !errors.Is(err, model.ErrNoPlayers) {
		t.Fatalf("expected ErrNoPlayers, got %v", err)
	}
	session := f.load(alice).Session
	if session.ShuffleError != "No players marked as 'Going' to shuffle." {
		t.Fatalf("unexpected shuffle error %q", session.ShuffleError)
	}
	if len(session.ShuffleResult) != 0 {
		t.Fatalf("expected empty result, got %v", session.ShuffleResult)
	}
	if f.svc.Flow(chatID).State != model.StateIdle {
		t.Fatal("expected chat idle")
	}
}

func TestShuffleWithOnePlayer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withMainMessage()
	f.must(f.svc.SetStatus(ctx, f.load(alice), model.StatusGoing))
	f.must(f.svc.AdminClose(ctx, f.load(alice)))

	_, err := f.svc.BeginShuffle(ctx, f.load(alice))
	if !errors.Is(err, model.ErrNotEnoughPlayers) {
		t.Fatalf("expected ErrNotEnoughPlayers, got %v", err)
	}
	if got := f.load(alice).Session.ShuffleError; got != "Cannot form teams with only one player." {
		t.Fatalf("unexpected shuffle error %q", got)
	}
}

func TestShuffleWhileOpenIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.must(f.svc.SetStatus(ctx, f.load(alice), model.StatusGoing))
	f.must(f.svc.SetStatus(ctx, f.load(bob), model.StatusGoing))

	before, _, _ := f.store.Get(ctx, repo.EventDataKey)
	if _, err := f.svc.BeginShuffle(ctx, f.load(alice)); !errors.Is(err, model.ErrVoteOpen) {
		t.Fatalf("expected ErrVoteOpen, got %v", err)
	}
	after, _, _ := f.store.Get(ctx, repo.EventDataKey)
	if before != after {
		t.Fatal("expected event untouched")
	}
	if f.svc.Flow(chatID).State != model.StateIdle {
		t.Fatal("expected chat idle")
	}
}

func TestInvalidTeamCountSetsError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withMainMessage()
	f.must(f.svc.SetStatus(ctx, f.load(alice), model.StatusGoing))
	f.must(f.svc.AddPlusOne(ctx, f.load(alice)))
	f.must(f.svc.AdminClose(ctx, f.load(alice)))
	if _, err := f.svc.BeginShuffle(ctx, f.load(alice)); err != nil {
		t.Fatalf("begin shuffle: %v", err)
	}
	req := f.load(alice)
	req.Session.SetShuffleResult([][]string{{"stale"}, {"teams"}})

	if err := f.svc.ChooseTeamCount(ctx, req, 3); !errors.Is(err, model.ErrInvalidTeamCount) {
		t.Fatalf("expected ErrInvalidTeamCount, got %v", err)
	}
	session := f.load(alice).Session
	if session.ShuffleResult != nil {
		t.Fatalf("expected result cleared, got %v", session.ShuffleResult)
	}
	if session.ShuffleError != "Invalid number of teams selected. Please try again." {
		t.Fatalf("unexpected error %q", session.ShuffleError)
	}
}

func TestChooseTeamCountWithoutFlowIsInvalid(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.ChooseTeamCount(context.Background(), f.load(alice), 2); !errors.Is(err, model.ErrInvalidTeamCount) {
		t.Fatalf("expected ErrInvalidTeamCount, got %v", err)
	}
}

func TestChooseTeamCountUsesSnapshot(t *testing.T) {
	var gotPlayers []string
	f := newFixture(t, WithShuffler(func(players []string, n int) [][]string {
		gotPlayers = players
		return [][]string{players[:1], players[1:]}
	}))
	ctx := context.Background()
	f.withMainMessage()
	f.must(f.svc.SetStatus(ctx, f.load(alice), model.StatusGoing))
	f.must(f.svc.SetStatus(ctx, f.load(bob), model.StatusGoing))
	f.must(f.svc.AddPlusOne(ctx, f.load(bob)))
	f.must(f.svc.AdminClose(ctx, f.load(alice)))
	if _, err := f.svc.BeginShuffle(ctx, f.load(alice)); err != nil {
		t.Fatalf("begin shuffle: %v", err)
	}
	f.must(f.svc.ChooseTeamCount(ctx, f.load(alice), 2))

	want := []string{"Alice", "Bob", "+1 from Bob"}
	if !reflect.DeepEqual(gotPlayers, want) {
		t.Fatalf("expected pool %v, got %v", want, gotPlayers)
	}
}

func TestOtherActionAbandonsShuffleFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withMainMessage()
	f.must(f.svc.SetStatus(ctx, f.load(alice), model.StatusGoing))
	f.must(f.svc.SetStatus(ctx, f.load(bob), model.StatusGoing))
	f.must(f.svc.AdminClose(ctx, f.load(alice)))
	if _, err := f.svc.BeginShuffle(ctx, f.load(alice)); err != nil {
		t.Fatalf("begin shuffle: %v", err)
	}
	prompt := model.MessageRef{MessageID: 77, ChatID: chatID}
	f.svc.SetPrompt(chatID, prompt)

	req := f.load(bob)
	f.must(f.svc.AdminOpen(ctx, req))

	if f.svc.Flow(chatID).State != model.StateIdle {
		t.Fatal("expected shuffle flow abandoned")
	}
	if !reflect.DeepEqual(req.Stale, []model.MessageRef{prompt}) {
		t.Fatalf("expected stale prompt %v, got %v", prompt, req.Stale)
	}
}

func TestParticipationClearsTeams(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withMainMessage()
	f.must(f.svc.SetStatus(ctx, f.load(alice), model.StatusGoing))
	f.must(f.svc.SetStatus(ctx, f.load(bob), model.StatusGoing))
	f.must(f.svc.AdminClose(ctx, f.load(alice)))
	_, _ = f.svc.BeginShuffle(ctx, f.load(alice))
	f.must(f.svc.ChooseTeamCount(ctx, f.load(alice), 2))
	if len(f.load(alice).Session.ShuffleResult) != 2 {
		t.Fatal("expected teams before reopening")
	}

	f.must(f.svc.AdminOpen(ctx, f.load(alice)))
	if got := f.load(alice).Session.ShuffleResult; got != nil {
		t.Fatalf("expected teams cleared, got %v", got)
	}
	if _, found, _ := f.store.Get(ctx, "shuffled_teams:-100500"); found {
		t.Fatal("expected shuffled teams key deleted")
	}
}

func TestClosedVoteRejectsParticipation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withMainMessage()
	f.must(f.svc.SetStatus(ctx, f.load(alice), model.StatusGoing))
	f.must(f.svc.AddPlusOne(ctx, f.load(alice)))
	f.must(f.svc.AdminClose(ctx, f.load(bob)))
	before, _, _ := f.store.Get(ctx, repo.EventDataKey)

	checks := map[string]func(*Request) error{
		"status": func(r *Request) error { return f.svc.SetStatus(ctx, r, model.StatusNotGoing) },
		"add":    func(r *Request) error { return f.svc.AddPlusOne(ctx, r) },
		"remove": func(r *Request) error { return f.svc.RemovePlusOne(ctx, r) },
		"reset":  func(r *Request) error { return f.svc.ResetParticipant(ctx, r) },
	}
	for name, action := range checks {
		if err := action(f.load(alice)); !errors.Is(err, model.ErrVoteClosed) {
			t.Fatalf("%s: expected ErrVoteClosed, got %v", name, err)
		}
	}
	after, _, _ := f.store.Get(ctx, repo.EventDataKey)
	if before != after {
		t.Fatal("expected stored event unchanged")
	}
}

func TestRemovePlusOneNothingToRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	err := f.svc.RemovePlusOne(ctx, f.load(alice))
	if !errors.Is(err, model.ErrNothingToRemove) {
		t.Fatalf("expected ErrNothingToRemove, got %v", err)
	}
	if got := model.Describe(err); got != "Cannot decrease, as you have no additional participants." {
		t.Fatalf("unexpected notice %q", got)
	}
}

func TestResetParticipantDropsGuests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.must(f.svc.SetStatus(ctx, f.load(alice), model.StatusGoing))
	f.must(f.svc.AddPlusOne(ctx, f.load(alice)))
	f.must(f.svc.AddPlusOne(ctx, f.load(bob)))
	f.must(f.svc.AddPlusOne(ctx, f.load(alice)))

	f.must(f.svc.ResetParticipant(ctx, f.load(alice)))

	event := f.load(bob).Event
	if _, ok := event.Participants[alice.ID]; ok {
		t.Fatal("expected Alice removed")
	}
	if len(event.PlusOnes) != 1 || event.PlusOnes[0].AddedByID != bob.ID {
		t.Fatalf("expected only Bob's guest, got %+v", event.PlusOnes)
	}
}

func TestParticipantProfileRefreshed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.must(f.svc.SetStatus(ctx, f.load(alice), model.StatusMaybe))
	renamed := User{ID: alice.ID, Name: "Alice Smith", Username: "asmith"}
	f.must(f.svc.AddPlusOne(ctx, f.load(renamed)))

	p := f.load(alice).Event.Participants[alice.ID]
	if p.Name != "Alice Smith" || p.Username != "asmith" || p.Status != model.StatusMaybe {
		t.Fatalf("unexpected participant %+v", p)
	}
}

func TestStartNewEventResetsEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withMainMessage()
	f.must(f.svc.SetStatus(ctx, f.load(alice), model.StatusGoing))
	f.must(f.svc.SetStatus(ctx, f.load(bob), model.StatusGoing))
	f.must(f.svc.AdminClose(ctx, f.load(alice)))
	_, _ = f.svc.BeginShuffle(ctx, f.load(alice))
	f.must(f.svc.ChooseTeamCount(ctx, f.load(alice), 2))

	f.must(f.svc.StartNewEvent(ctx, f.load(carol)))

	req := f.load(carol)
	if req.Event.Status != model.EventOpen || req.Event.Title != nil || len(req.Event.Participants) != 0 || len(req.Event.PlusOnes) != 0 {
		t.Fatalf("expected fresh event, got %+v", req.Event)
	}
	if req.Session.MainMessage != nil || req.Session.ShuffleResult != nil || req.Session.ShuffleError != "" {
		t.Fatalf("expected empty session, got %+v", req.Session)
	}
	if !f.svc.AwaitingTitle(chatID, carol.ID) {
		t.Fatal("expected chat awaiting Carol's title")
	}
	if f.svc.AwaitingTitle(chatID, alice.ID) {
		t.Fatal("expected title prompt bound to Carol")
	}
}

func TestTitleFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.must(f.svc.PromptTitle(ctx, f.load(alice)))

	if err := f.svc.SetTitle(ctx, f.load(alice), "   "); !errors.Is(err, model.ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
	if !f.svc.AwaitingTitle(chatID, alice.ID) {
		t.Fatal("expected still awaiting title")
	}
	f.must(f.svc.SetTitle(ctx, f.load(alice), " Thursday 5-a-side "))
	if got := f.load(alice).Event.TitleText(); got != "Thursday 5-a-side" {
		t.Fatalf("unexpected title %q", got)
	}
	if f.svc.AwaitingTitle(chatID, alice.ID) {
		t.Fatal("expected title flow finished")
	}
}

func TestCancelTitlePrompt(t *testing.T) {
	f := newFixture(t)
	f.must(f.svc.PromptTitle(context.Background(), f.load(alice)))
	if f.svc.Cancel(f.load(bob)) {
		t.Fatal("expected Bob unable to cancel Alice's prompt")
	}
	if !f.svc.Cancel(f.load(alice)) {
		t.Fatal("expected cancel to succeed")
	}
	if f.svc.Cancel(f.load(alice)) {
		t.Fatal("expected nothing left to cancel")
	}
}

func TestAdminAllowList(t *testing.T) {
	f := newFixture(t, WithAdmins([]int64{int64(alice.ID)}))
	ctx := context.Background()

	if err := f.svc.AdminClose(ctx, f.load(bob)); !errors.Is(err, model.ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
	if err := f.svc.StartNewEvent(ctx, f.load(bob)); !errors.Is(err, model.ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
	if _, err := f.svc.BeginShuffle(ctx, f.load(bob)); !errors.Is(err, model.ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
	if !f.load(bob).Event.IsOpen() {
		t.Fatal("expected event still open")
	}
	f.must(f.svc.AdminClose(ctx, f.load(alice)))
	if f.load(bob).Event.IsOpen() {
		t.Fatal("expected admin to close the vote")
	}
}

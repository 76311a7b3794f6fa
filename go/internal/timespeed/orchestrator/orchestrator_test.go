package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/timespeed/go/internal/models"
	"github.com/mcdev12/timespeed/go/internal/timespeed/channel"
	"github.com/mcdev12/timespeed/go/internal/timespeed/config"
	"github.com/mcdev12/timespeed/go/internal/timespeed/messages"
	"github.com/mcdev12/timespeed/go/internal/timespeed/notify"
	"github.com/mcdev12/timespeed/go/internal/timespeed/tickclock"
)

const (
	hostID models.PlayerID = 1
	peerID models.PlayerID = 2
)

var (
	farm      = &models.Location{Name: "Farm", IsOutdoors: true}
	farmHouse = &models.Location{Name: "FarmHouse"}
	saloon    = &models.Location{Name: "Saloon"}
)

func players() []models.Farmer {
	return []models.Farmer{
		{ID: hostID, Name: "Host", IsMainPlayer: true, Location: farm},
		{ID: peerID, Name: "Abigail", Location: farm},
		{ID: 3, Name: "Sam", Location: farm},
		{ID: 4, Name: "Leah", Location: farmHouse},
	}
}

type instance struct {
	o       *Orchestrator
	game    *fakeGame
	display *fakeDisplay
	store   *memStore
}

type options struct {
	cfg       *config.ModConfig
	transport channel.Transport
	clock     *clockwork.FakeClock
	recorder  Recorder
}

func newInstance(t *testing.T, local models.PlayerID, opts options) *instance {
	t.Helper()
	if opts.cfg == nil {
		opts.cfg = config.Default()
	}
	if opts.transport == nil {
		opts.transport = &recordingTransport{}
	}
	deps := Deps{
		ModID:     testModID,
		Game:      newFakeGame(local, players()...),
		Display:   &fakeDisplay{},
		Transport: opts.transport,
		Store:     &memStore{cfg: opts.cfg},
		Recorder:  opts.recorder,
	}
	if opts.clock != nil {
		deps.Clock = opts.clock
	}
	o, err := New(deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &instance{
		o:       o,
		game:    deps.Game.(*fakeGame),
		display: deps.Display.(*fakeDisplay),
		store:   deps.Store.(*memStore),
	}
}

func connectPeers(ctx context.Context, host *instance, ids ...models.PlayerID) {
	for _, id := range ids {
		f, _ := host.game.Farmer(id)
		host.o.OnPeerConnected(ctx, f)
	}
}

func TestPeerToggleEndToEnd(t *testing.T) {
	ctx := context.Background()
	net := channel.NewMemoryNetwork()

	host := newInstance(t, hostID, options{transport: net.Transport(hostID)})
	net.Attach(host.o.Channel())
	peer := newInstance(t, peerID, options{transport: net.Transport(peerID)})
	net.Attach(peer.o.Channel())

	connectPeers(ctx, host, peerID)
	net.Flush(ctx)
	if !peer.o.policyConfirmed {
		t.Fatal("peer did not receive the host policy")
	}
	if len(peer.display.shown) != 0 {
		t.Errorf("default policy should not announce changes, got %v", peer.display.shown)
	}

	peer.o.OnButtonsChanged(ctx, config.NewPressed("N"), Modifiers{})
	if peer.o.IsTimeFrozen() {
		t.Fatal("peer applied the toggle locally")
	}
	if net.Pending() != 1 {
		t.Fatalf("expected one forwarded request, got %d", net.Pending())
	}

	net.Flush(ctx)
	if !host.o.IsTimeFrozen() {
		t.Fatal("host did not freeze time")
	}
	want := shown{message: "Time stopped.", d: 2000 * time.Millisecond}
	if got := peer.display.last(); got != want {
		t.Errorf("peer displayed %+v, want %+v", got, want)
	}
	if got := host.display.last(); got != want {
		t.Errorf("host displayed %+v, want %+v", got, want)
	}

	peer.o.OnButtonsChanged(ctx, config.NewPressed("N"), Modifiers{})
	net.Flush(ctx)
	if host.o.IsTimeFrozen() {
		t.Fatal("second toggle did not resume time")
	}
	if got := peer.display.last().message; got != "Time resumed." {
		t.Errorf("peer displayed %q after resume", got)
	}
}

func TestPeerForwardsToHost(t *testing.T) {
	ctx := context.Background()
	transport := &recordingTransport{}
	peer := newInstance(t, peerID, options{transport: transport})

	peer.o.OnButtonsChanged(ctx, config.NewPressed("OemPeriod"), Modifiers{Shift: true})
	sent := transport.ofKind(messages.KindManipulate)
	if len(sent) != 1 {
		t.Fatalf("expected one Manipulate, got %d", len(sent))
	}
	if len(sent[0].to) != 1 || sent[0].to[0] != hostID {
		t.Errorf("request addressed to %v, want host", sent[0].to)
	}
	p := decodeAs[messages.ManipulatePayload](t, sent[0].env)
	if p.Increase == nil || !*p.Increase || p.FreezeMethod != models.FreezeMethodNone {
		t.Errorf("unexpected payload %+v", p)
	}
	if peer.o.TickInterval() != 7000 {
		t.Errorf("peer changed its own interval to %d", peer.o.TickInterval())
	}

	peer.o.hostPolicy.VoteEnabled = true
	peer.o.OnButtonsChanged(ctx, config.NewPressed("N"), Modifiers{})
	votes := transport.ofKind(messages.KindVotePause)
	if len(votes) != 1 {
		t.Fatalf("expected a vote request when voting is on, got %d", len(votes))
	}
	vp := decodeAs[messages.VotePausePayload](t, votes[0].env)
	if vp.VoteCast == nil || !*vp.VoteCast {
		t.Errorf("unexpected vote payload %+v", vp)
	}
}

func TestConfigStateDedup(t *testing.T) {
	ctx := context.Background()
	peer := newInstance(t, peerID, options{})
	msg := raw(t, hostID, messages.ConfigStatePayload{VoteEnabled: messages.Bool(true)})

	peer.o.OnModMessageReceived(ctx, msg)
	peer.o.OnModMessageReceived(ctx, msg)

	text := notify.VoteEnabledChanged(true)
	if got := peer.display.count(text); got != 1 {
		t.Errorf("%q shown %d times, want 1", text, got)
	}
	if !peer.o.hostPolicy.VoteEnabled {
		t.Error("cached policy not updated")
	}

	peer.o.OnModMessageReceived(ctx, raw(t, 3, messages.ConfigStatePayload{HostOnly: messages.Bool(false)}))
	if !peer.o.hostPolicy.HostOnly {
		t.Error("config state from a non-host player was applied")
	}
}

func TestLocationNotificationDedup(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.LocationNotify = true
	host := newInstance(t, hostID, options{cfg: cfg})

	host.o.OnWarped(ctx, hostID, *farmHouse)
	host.o.OnWarped(ctx, hostID, *farmHouse)
	host.o.OnWarped(ctx, hostID, *saloon)

	indoors := notify.LocationSummary(models.AutoFreezeNone, false, 14000)
	if got := host.display.count(indoors); got != 1 {
		t.Errorf("%q shown %d times, want 1", indoors, got)
	}

	host.o.OnWarped(ctx, hostID, *farm)
	if got := len(host.display.shown); got != 2 {
		t.Errorf("shown %d summaries, want 2", got)
	}

	host.o.OnWarped(ctx, peerID, *farmHouse)
	if host.o.TickInterval() != 7000 {
		t.Error("host-only session reacted to a peer's warp")
	}
}

func TestHostVotePasses(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.FreezeTime.ClientVote = true
	cfg.FreezeTime.VoteThreshold = 0.5
	transport := &recordingTransport{}
	rec := &fakeRecorder{}
	host := newInstance(t, hostID, options{cfg: cfg, transport: transport, recorder: rec})
	connectPeers(ctx, host, 2, 3, 4)

	host.o.OnModMessageReceived(ctx, raw(t, 2, messages.VotePausePayload{VoteCast: messages.Bool(true)}))
	host.o.OnModMessageReceived(ctx, raw(t, 3, messages.VotePausePayload{VoteCast: messages.Bool(true)}))
	host.o.OnModMessageReceived(ctx, raw(t, 4, messages.VotePausePayload{VoteCast: messages.Bool(false)}))
	if host.o.IsTimeFrozen() {
		t.Fatal("froze before the vote closed")
	}
	host.o.OnModMessageReceived(ctx, raw(t, 2, messages.VotePausePayload{Finish: messages.Bool(true)}))

	if !host.o.IsTimeFrozen() {
		t.Fatal("passed vote did not freeze time")
	}
	if len(rec.votes) != 1 || !rec.votes[0].Passed || rec.votes[0].Yes != 2 {
		t.Errorf("unexpected recorded votes %+v", rec.votes)
	}
	replies := transport.ofKind(messages.KindStateReply)
	if len(replies) != 1 {
		t.Fatalf("expected the toggle echo, got %d replies", len(replies))
	}
	if p := decodeAs[messages.StateReplyPayload](t, replies[0].env); p.Message != "Time stopped." || p.TimeoutMs != 2000 {
		t.Errorf("unexpected echo %+v", p)
	}
}

func TestHostVoteExpiresAndFails(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.FreezeTime.ClientVote = true
	clock := clockwork.NewFakeClock()
	transport := &recordingTransport{}
	host := newInstance(t, hostID, options{cfg: cfg, transport: transport, clock: clock})
	connectPeers(ctx, host, 2, 3)

	host.o.OnModMessageReceived(ctx, raw(t, 2, messages.VotePausePayload{VoteCast: messages.Bool(false)}))
	host.o.OnUpdateTicked(ctx, tickclock.Frame{})
	if len(transport.ofKind(messages.KindInfo)) != 0 {
		t.Fatal("vote closed early")
	}

	clock.Advance(10 * time.Minute)
	host.o.OnUpdateTicked(ctx, tickclock.Frame{})

	infos := transport.ofKind(messages.KindInfo)
	if len(infos) != 1 {
		t.Fatalf("expected one Info for the requester, got %d", len(infos))
	}
	if infos[0].to[0] != 2 {
		t.Errorf("Info sent to %v, want the requester", infos[0].to)
	}
	p := decodeAs[messages.InfoPayload](t, infos[0].env)
	if p.Message == nil || *p.Message != notify.VoteOutcome(false, 0, 1) {
		t.Errorf("unexpected Info %+v", p)
	}
	if host.o.IsTimeFrozen() {
		t.Error("failed vote froze time")
	}
}

func TestForbiddenReplies(t *testing.T) {
	ctx := context.Background()

	t.Run("voting disabled", func(t *testing.T) {
		transport := &recordingTransport{}
		host := newInstance(t, hostID, options{transport: transport})
		host.o.OnModMessageReceived(ctx, raw(t, 2, messages.VotePausePayload{VoteCast: messages.Bool(true)}))
		assertForbidden(t, transport, models.ForbiddenHostDisabled)
	})

	t.Run("unknown location", func(t *testing.T) {
		transport := &recordingTransport{}
		host := newInstance(t, hostID, options{transport: transport})
		host.o.OnModMessageReceived(ctx, raw(t, 2, messages.ManipulateForLocationPayload{
			FreezeMethod: models.FreezeMethodManual,
			Location:     "Nowhere",
		}))
		assertForbidden(t, transport, models.ForbiddenHostError)
		if host.o.IsTimeFrozen() {
			t.Error("rejected request changed the state")
		}
	})

	t.Run("world not ready", func(t *testing.T) {
		transport := &recordingTransport{}
		host := newInstance(t, hostID, options{transport: transport})
		host.game.ready = false
		host.o.OnModMessageReceived(ctx, raw(t, 2, messages.ManipulateForLocationPayload{
			FreezeMethod: models.FreezeMethodManual,
			Location:     "Farm",
		}))
		assertForbidden(t, transport, models.ForbiddenHostDisabled)
	})

	t.Run("peer shows reason", func(t *testing.T) {
		peer := newInstance(t, peerID, options{})
		peer.o.OnModMessageReceived(ctx, raw(t, hostID, messages.ForbiddenPayload{Reason: models.ForbiddenHostError}))
		if got := peer.display.last().message; got != notify.TextForbiddenHostError {
			t.Errorf("peer displayed %q", got)
		}
		if peer.o.IsTimeFrozen() {
			t.Error("forbidden changed the state")
		}
	})
}

func assertForbidden(t *testing.T, transport *recordingTransport, want models.ForbiddenReason) {
	t.Helper()
	sent := transport.ofKind(messages.KindForbidden)
	if len(sent) != 1 {
		t.Fatalf("expected one Forbidden, got %d", len(sent))
	}
	if p := decodeAs[messages.ForbiddenPayload](t, sent[0].env); p.Reason != want {
		t.Errorf("reason = %s, want %s", p.Reason, want)
	}
	if len(sent[0].to) != 1 || sent[0].to[0] != peerID {
		t.Errorf("Forbidden sent to %v", sent[0].to)
	}
}

func TestChangeInterval(t *testing.T) {
	ctx := context.Background()
	host := newInstance(t, hostID, options{})

	host.o.OnButtonsChanged(ctx, config.NewPressed("OemPeriod"), Modifiers{Shift: true})
	if got := host.o.TickInterval(); got != 17000 {
		t.Fatalf("interval = %d, want 17000", got)
	}
	if got := host.display.last().message; got != notify.SpeedChanged(17000) {
		t.Errorf("displayed %q", got)
	}

	host.o.OnButtonsChanged(ctx, config.NewPressed("OemComma"), Modifiers{Ctrl: true})
	if got := host.o.TickInterval(); got != 17000 {
		t.Errorf("a decrease larger than the interval should keep it, got %d", got)
	}

	host.o.OnButtonsChanged(ctx, config.NewPressed("OemComma"), Modifiers{Alt: true})
	if got := host.o.TickInterval(); got != 16900 {
		t.Errorf("interval = %d, want 16900", got)
	}
}

func TestHostInputBlockedByMenu(t *testing.T) {
	ctx := context.Background()
	host := newInstance(t, hostID, options{})

	host.game.busy = true
	host.o.OnButtonsChanged(ctx, config.NewPressed("N"), Modifiers{})
	if host.o.IsTimeFrozen() {
		t.Fatal("toggle applied while a menu was open")
	}

	host.game.event = true
	host.o.OnButtonsChanged(ctx, config.NewPressed("N"), Modifiers{})
	if !host.o.IsTimeFrozen() {
		t.Fatal("toggle should apply during an event")
	}
}

func TestUpdateTickedScalesAndPins(t *testing.T) {
	ctx := context.Background()
	host := newInstance(t, hostID, options{})
	host.o.OnDayStarted(ctx)
	host.o.OnWarped(ctx, hostID, *farmHouse)

	host.o.OnUpdateTicked(ctx, tickclock.Frame{Progress: 0.2})
	if got := host.game.progress; got != 0.1 {
		t.Fatalf("progress = %v, want 0.1 at half speed", got)
	}

	host.o.OnButtonsChanged(ctx, config.NewPressed("N"), Modifiers{})
	host.o.OnUpdateTicked(ctx, tickclock.Frame{Progress: 0.3})
	if got := host.game.progress; got != 0.1 {
		t.Errorf("frozen progress moved to %v", got)
	}
	host.o.OnUpdateTicked(ctx, tickclock.Frame{Progress: 0.05, Advanced: true})
	if got := host.game.progress; got != 0 {
		t.Errorf("frozen advance should reset to 0, got %v", got)
	}
}

func TestPeerUnderHostOnlyLeavesClockAlone(t *testing.T) {
	ctx := context.Background()
	peer := newInstance(t, peerID, options{})
	peer.o.OnSaveLoaded(ctx)
	peer.o.OnDayStarted(ctx)
	peer.o.OnUpdateTicked(ctx, tickclock.Frame{Progress: 0.4})
	if peer.game.writes != 0 {
		t.Error("peer rewrote tick progress under host-only")
	}
	if !peer.o.policyWarned {
		t.Error("unconfirmed host policy was not warned about")
	}
}

func TestDayStartClearsManualFreeze(t *testing.T) {
	ctx := context.Background()
	host := newInstance(t, hostID, options{})
	host.o.OnButtonsChanged(ctx, config.NewPressed("N"), Modifiers{})
	if !host.o.IsTimeFrozen() {
		t.Fatal("toggle did not freeze")
	}
	host.o.OnDayStarted(ctx)
	if host.o.IsTimeFrozen() {
		t.Error("manual freeze survived the new day")
	}
}

func TestTimeChangeFreezesOnce(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	at := 2200
	cfg.FreezeTime.AnywhereAtTime = &at
	host := newInstance(t, hostID, options{cfg: cfg})

	host.game.timeOfDay = 2150
	host.o.OnTimeChanged(ctx)
	host.game.timeOfDay = 2200
	host.o.OnTimeChanged(ctx)
	host.game.timeOfDay = 2210
	host.o.OnTimeChanged(ctx)

	if !host.o.IsTimeFrozen() {
		t.Fatal("time did not freeze at the cutoff")
	}
	if got := host.display.count(notify.TextTimeStoppedAtTime); got != 1 {
		t.Errorf("cutoff notice shown %d times, want 1", got)
	}
}

func TestEventNoticeSentOnTransition(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.FreezeTime.DuringEvents = true
	transport := &recordingTransport{}
	host := newInstance(t, hostID, options{cfg: cfg, transport: transport})

	host.game.event = true
	host.o.OnTimeChanged(ctx)
	host.o.OnTimeChanged(ctx)

	notices := transport.ofKind(messages.KindManipulate)
	if len(notices) != 1 {
		t.Fatalf("expected one event notice, got %d", len(notices))
	}
	if p := decodeAs[messages.ManipulatePayload](t, notices[0].env); p.FreezeMethod != models.FreezeMethodEvent {
		t.Errorf("unexpected notice %+v", p)
	}
}

func TestReloadBroadcastsPolicy(t *testing.T) {
	ctx := context.Background()
	transport := &recordingTransport{}
	rec := &fakeRecorder{}
	host := newInstance(t, hostID, options{transport: transport, recorder: rec})

	updated := config.Default()
	updated.FreezeTime.ClientVote = true
	host.store.cfg = updated

	host.o.OnButtonsChanged(ctx, config.NewPressed("B"), Modifiers{})

	if got := host.display.last().message; got != notify.TextConfigReloaded {
		t.Errorf("displayed %q", got)
	}
	states := transport.ofKind(messages.KindConfigState)
	if len(states) != 1 || len(states[0].to) != 0 {
		t.Fatalf("expected one broadcast ConfigState, got %+v", states)
	}
	if p := decodeAs[messages.ConfigStatePayload](t, states[0].env); p.VoteEnabled == nil || !*p.VoteEnabled {
		t.Errorf("unexpected policy %+v", p)
	}
	if len(rec.policies) != 1 {
		t.Errorf("policy broadcasts recorded: %d", len(rec.policies))
	}
}

func TestConfigSavedPersistsAndBroadcastsOnChange(t *testing.T) {
	ctx := context.Background()
	transport := &recordingTransport{}
	host := newInstance(t, hostID, options{transport: transport})

	same := config.Default()
	same.LocationNotify = true
	host.o.OnConfigSaved(ctx, same)
	if host.store.writes != 1 {
		t.Fatalf("config not written")
	}
	if n := len(transport.ofKind(messages.KindConfigState)); n != 0 {
		t.Errorf("unchanged policy broadcast %d times", n)
	}

	changed := config.Default()
	changed.FreezeTime.HostOnly = false
	host.o.OnConfigSaved(ctx, changed)
	if n := len(transport.ofKind(messages.KindConfigState)); n != 1 {
		t.Errorf("changed policy broadcast %d times, want 1", n)
	}
}

func TestPeerVotesNoAndFinishes(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.FreezeTime.ClientVote = true
	cfg.FreezeTime.VoteThreshold = 0.75
	net := channel.NewMemoryNetwork()

	host := newInstance(t, hostID, options{cfg: cfg, transport: net.Transport(hostID)})
	net.Attach(host.o.Channel())
	abigail := newInstance(t, peerID, options{transport: net.Transport(peerID)})
	net.Attach(abigail.o.Channel())
	sam := newInstance(t, 3, options{transport: net.Transport(3)})
	net.Attach(sam.o.Channel())

	connectPeers(ctx, host, peerID, 3)
	net.Flush(ctx)
	if !sam.o.hostPolicy.VoteEnabled {
		t.Fatal("peer did not learn that voting is on")
	}

	abigail.o.CastVote(ctx, true)
	net.Flush(ctx)
	sam.o.CastVote(ctx, false)
	net.Flush(ctx)
	if yes := host.o.votes.Vote(3); yes == nil || *yes {
		t.Fatalf("sam's no vote not recorded, got %v", yes)
	}

	sam.o.FinishVote(ctx)
	net.Flush(ctx)
	if got := sam.display.last().message; got != notify.Forbidden(models.ForbiddenHostDisabled) {
		t.Errorf("non-requester finish displayed %q", got)
	}

	abigail.o.FinishVote(ctx)
	net.Flush(ctx)
	if host.o.IsTimeFrozen() {
		t.Fatal("one yes out of two should not pass at 0.75")
	}
	if got := abigail.display.last().message; got != notify.VoteOutcome(false, 1, 2) {
		t.Errorf("requester displayed %q", got)
	}
}

func TestPeerVoteNotSentWhenVotingOff(t *testing.T) {
	ctx := context.Background()
	transport := &recordingTransport{}
	peer := newInstance(t, peerID, options{transport: transport})

	peer.o.CastVote(ctx, false)
	peer.o.FinishVote(ctx)
	if n := len(transport.ofKind(messages.KindVotePause)); n != 0 {
		t.Errorf("sent %d vote messages while voting is off", n)
	}
}

func TestHostFinishesVote(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.FreezeTime.ClientVote = true
	cfg.FreezeTime.VoteThreshold = 0.5
	host := newInstance(t, hostID, options{cfg: cfg})
	connectPeers(ctx, host, peerID, 3)

	host.o.FinishVote(ctx)
	if host.o.IsTimeFrozen() {
		t.Fatal("finish without an open vote changed the freeze")
	}

	host.o.OnModMessageReceived(ctx, raw(t, peerID, messages.VotePausePayload{VoteCast: messages.Bool(true)}))
	host.o.FinishVote(ctx)
	if !host.o.IsTimeFrozen() {
		t.Fatal("host finish did not apply the passed vote")
	}
}

func TestEventNoticeRaisedDuringDispatch(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.FreezeTime.DuringEvents = true
	transport := &recordingTransport{}
	host := newInstance(t, hostID, options{cfg: cfg, transport: transport})

	host.game.event = true
	host.o.OnModMessageReceived(ctx, raw(t, peerID, messages.ManipulateForLocationPayload{
		FreezeMethod: models.FreezeMethodManual,
		Location:     farm.ID(),
	}))

	notices := transport.ofKind(messages.KindManipulate)
	if len(notices) != 1 {
		t.Fatalf("expected the event notice after dispatch, got %d", len(notices))
	}
	if p := decodeAs[messages.ManipulatePayload](t, notices[0].env); p.FreezeMethod != models.FreezeMethodEvent {
		t.Errorf("unexpected notice %+v", p)
	}

	host.o.OnModMessageReceived(ctx, raw(t, peerID, messages.InfoPayload{}))
	if n := len(transport.ofKind(messages.KindManipulate)); n != 1 {
		t.Errorf("notice sent %d times", n)
	}
}

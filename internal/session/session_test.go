package session

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pathwars/duel-backend/internal/engine"
	"github.com/pathwars/duel-backend/internal/protocol"
)

// helper: receive one message with a timeout so tests never hang
func recvMsg(t *testing.T, ch <-chan protocol.Message, within time.Duration) protocol.Message {
	t.Helper()
	select {
	case m, ok := <-ch:
		if !ok {
			t.Fatalf("player outbox closed unexpectedly")
		}
		return m
	case <-time.After(within):
		t.Fatalf("timed out waiting for message")
		return protocol.Message{} // unreachable
	}
}

func recvNoMsg(t *testing.T, ch <-chan protocol.Message, within time.Duration) {
	t.Helper()
	select {
	case m, ok := <-ch:
		if !ok {
			return
		}
		t.Fatalf("expected no message within %v, got %s", within, m.Type)
	case <-time.After(within):
	}
}

func recvType(t *testing.T, ch <-chan protocol.Message, want protocol.Type, within time.Duration) protocol.Message {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case m, ok := <-ch:
			if !ok {
				t.Fatalf("outbox closed while waiting for %s", want)
			}
			if m.Type == want {
				return m
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func decode[T any](t *testing.T, m protocol.Message) T {
	t.Helper()
	v, err := protocol.DecodePayload[T](m)
	if err != nil {
		t.Fatalf("decode %s: %v", m.Type, err)
	}
	return v
}

func startPair(t *testing.T, opts Options) (*Session, chan protocol.Message, chan protocol.Message, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	sess := New(ctx, engine.DefaultConfig(), 42, opts, zap.NewNop())

	hostOut := make(chan protocol.Message, 32)
	clientOut := make(chan protocol.Message, 32)

	for i, j := range []Join{
		{PlayerID: "alice", Outbox: hostOut},
		{PlayerID: "bob", Outbox: clientOut},
	} {
		reply := make(chan JoinResult, 1)
		j.Reply = reply
		sess.Inbox() <- j
		res := <-reply
		if res.Err != nil {
			t.Fatalf("join %d: %v", i, res.Err)
		}
	}
	return sess, hostOut, clientOut, cancel
}

func TestSession_StartSendsWelcomeToBoth(t *testing.T) {
	sess, hostOut, clientOut, cancel := startPair(t, Options{})
	defer cancel()

	wh := decode[protocol.Welcome](t, recvType(t, hostOut, protocol.TypeWelcome, time.Second))
	wc := decode[protocol.Welcome](t, recvType(t, clientOut, protocol.TypeWelcome, time.Second))

	if wh.Role != "host" || wc.Role != "client" {
		t.Fatalf("want roles host/client, got %q/%q", wh.Role, wc.Role)
	}
	if wh.State.Phase != engine.PhasePreparation {
		t.Fatalf("fresh match starts in preparation, got %s", wh.State.Phase)
	}
	if wh.State.Seed != wc.State.Seed {
		t.Fatalf("peers got different seeds")
	}

	sess.Inbox() <- Shutdown{}
}

func TestSession_ThirdJoinRefused(t *testing.T) {
	sess, _, _, cancel := startPair(t, Options{})
	defer cancel()

	reply := make(chan JoinResult, 1)
	sess.Inbox() <- Join{PlayerID: "carol", Outbox: make(chan protocol.Message, 1), Reply: reply}
	if res := <-reply; res.Err == nil {
		t.Fatalf("third join must be refused")
	}
}

func TestSession_AcceptedCommandBroadcastsToBoth(t *testing.T) {
	sess, hostOut, clientOut, cancel := startPair(t, Options{})
	defer cancel()
	recvType(t, hostOut, protocol.TypeWelcome, time.Second)
	recvType(t, clientOut, protocol.TypeWelcome, time.Second)

	sess.Inbox() <- FromPlayer{PlayerID: "alice", Seq: 3, Cmd: engine.Command{
		Type:        engine.CmdModifyControlPoint,
		ModifyPoint: &engine.ModifyPointData{Action: engine.PointAdd, X: 0, Y: 5},
	}}

	accHost := decode[protocol.CommandAccepted](t, recvType(t, hostOut, protocol.TypeCommandAccepted, time.Second))
	accClient := decode[protocol.CommandAccepted](t, recvType(t, clientOut, protocol.TypeCommandAccepted, time.Second))

	if accHost.Seq != 3 || accHost.Version != 1 {
		t.Fatalf("issuer echo wrong: %+v", accHost)
	}
	if accClient.Version != 1 || accClient.Command.Type != engine.CmdModifyControlPoint {
		t.Fatalf("opponent copy wrong: %+v", accClient)
	}
	if accClient.Command.PlayerID != "alice" {
		t.Fatalf("command must carry the issuer id, got %q", accClient.Command.PlayerID)
	}
}

func TestSession_RejectionGoesToIssuerOnly(t *testing.T) {
	sess, hostOut, clientOut, cancel := startPair(t, Options{})
	defer cancel()
	recvType(t, hostOut, protocol.TypeWelcome, time.Second)
	recvType(t, clientOut, protocol.TypeWelcome, time.Second)

	// Towers are illegal during preparation.
	sess.Inbox() <- FromPlayer{PlayerID: "bob", Seq: 9, Cmd: engine.Command{
		Type:       engine.CmdPlaceTower,
		PlaceTower: &engine.PlaceTowerData{TowerType: engine.TowerDean, X: 1, Y: 1},
	}}

	rej := decode[protocol.CommandRejected](t, recvType(t, clientOut, protocol.TypeCommandRejected, time.Second))
	if rej.Seq != 9 || rej.Kind != engine.KindPhaseViolation {
		t.Fatalf("want seq 9 phase_violation, got %+v", rej)
	}
	recvNoMsg(t, hostOut, 100*time.Millisecond)
}

func completePreparation(t *testing.T, sess *Session, hostOut, clientOut chan protocol.Message) {
	t.Helper()
	cmds := []FromPlayer{
		{PlayerID: "alice", Cmd: engine.Command{Type: engine.CmdModifyControlPoint, ModifyPoint: &engine.ModifyPointData{Action: engine.PointAdd, X: 0, Y: 5}}},
		{PlayerID: "alice", Cmd: engine.Command{Type: engine.CmdModifyControlPoint, ModifyPoint: &engine.ModifyPointData{Action: engine.PointAdd, X: 19, Y: 5}}},
		{PlayerID: "bob", Cmd: engine.Command{Type: engine.CmdModifyControlPoint, ModifyPoint: &engine.ModifyPointData{Action: engine.PointAdd, X: 0, Y: 15}}},
		{PlayerID: "bob", Cmd: engine.Command{Type: engine.CmdModifyControlPoint, ModifyPoint: &engine.ModifyPointData{Action: engine.PointAdd, X: 19, Y: 15}}},
		{PlayerID: "alice", Cmd: engine.Command{Type: engine.CmdReady, Ready: &engine.ReadyData{Ready: true}}},
		{PlayerID: "bob", Cmd: engine.Command{Type: engine.CmdReady, Ready: &engine.ReadyData{Ready: true}}},
	}
	for _, c := range cmds {
		sess.Inbox() <- c
		recvType(t, hostOut, protocol.TypeCommandAccepted, time.Second)
		recvType(t, clientOut, protocol.TypeCommandAccepted, time.Second)
	}
}

func TestSession_PhaseChangeBroadcast(t *testing.T) {
	sess, hostOut, clientOut, cancel := startPair(t, Options{})
	defer cancel()
	recvType(t, hostOut, protocol.TypeWelcome, time.Second)
	recvType(t, clientOut, protocol.TypeWelcome, time.Second)

	completePreparation(t, sess, hostOut, clientOut)

	pc := decode[protocol.PhaseChanged](t, recvType(t, hostOut, protocol.TypePhaseChanged, time.Second))
	if pc.Phase != engine.PhaseBuilding {
		t.Fatalf("want building, got %s", pc.Phase)
	}
	recvType(t, clientOut, protocol.TypePhaseChanged, time.Second)
}

func TestSession_PhaseTimerForcesReady(t *testing.T) {
	_, hostOut, clientOut, cancel := startPair(t, Options{PhaseTimeout: 80 * time.Millisecond})
	defer cancel()
	recvType(t, hostOut, protocol.TypeWelcome, time.Second)
	recvType(t, clientOut, protocol.TypeWelcome, time.Second)

	// Neither player readies up. The expiring timer issues implicit Ready
	// commands through the normal broadcast path.
	acc := decode[protocol.CommandAccepted](t, recvType(t, hostOut, protocol.TypeCommandAccepted, time.Second))
	if acc.Command.Type != engine.CmdReady || !acc.Command.Ready.Ready {
		t.Fatalf("want implicit ready, got %+v", acc.Command)
	}
	if acc.Seq != 0 {
		t.Fatalf("server-issued commands carry no client seq, got %d", acc.Seq)
	}
	// Second implicit ready for the other player.
	recvType(t, hostOut, protocol.TypeCommandAccepted, time.Second)
}

func TestSession_PrimeTimerWithoutTimeoutIsNoop(t *testing.T) {
	sess, hostOut, clientOut, cancel := startPair(t, Options{})
	defer cancel()
	recvType(t, hostOut, protocol.TypeWelcome, time.Second)
	recvType(t, clientOut, protocol.TypeWelcome, time.Second)

	completePreparation(t, sess, hostOut, clientOut)
	recvType(t, hostOut, protocol.TypePhaseChanged, time.Second)

	// PrimeTimer with no timeout configured arms nothing; no implicit ready
	// may show up.
	sess.Inbox() <- PrimeTimer{}
	recvNoMsg(t, hostOut, 150*time.Millisecond)
}

func TestSession_GetStateReflectsCommands(t *testing.T) {
	sess, hostOut, clientOut, cancel := startPair(t, Options{})
	defer cancel()
	recvType(t, hostOut, protocol.TypeWelcome, time.Second)
	recvType(t, clientOut, protocol.TypeWelcome, time.Second)

	sess.Inbox() <- FromPlayer{PlayerID: "alice", Seq: 1, Cmd: engine.Command{
		Type:        engine.CmdModifyControlPoint,
		ModifyPoint: &engine.ModifyPointData{Action: engine.PointAdd, X: 0, Y: 5},
	}}
	recvType(t, hostOut, protocol.TypeCommandAccepted, time.Second)

	reply := make(chan View, 1)
	sess.Inbox() <- GetState{Reply: reply}
	view := <-reply
	if view.Version != 1 || view.NumPlayers != 2 {
		t.Fatalf("unexpected view: %+v", view)
	}
	if got := len(view.State.Players["bob"].Route.Points); got != 1 {
		t.Fatalf("alice's edit should land on bob's route, got %d points", got)
	}
}

func TestSession_DisconnectForfeitsMatch(t *testing.T) {
	sess, hostOut, clientOut, cancel := startPair(t, Options{})
	defer cancel()
	recvType(t, hostOut, protocol.TypeWelcome, time.Second)
	recvType(t, clientOut, protocol.TypeWelcome, time.Second)

	sess.Inbox() <- Leave{PlayerID: "bob"}

	mo := decode[protocol.MatchOver](t, recvType(t, hostOut, protocol.TypeMatchOver, time.Second))
	if mo.WinnerID != "alice" || mo.Reason != "forfeit" {
		t.Fatalf("want alice forfeit win, got %+v", mo)
	}

	// The finished session rejects further commands.
	sess.Inbox() <- FromPlayer{PlayerID: "alice", Seq: 5, Cmd: engine.Command{
		Type:  engine.CmdReady,
		Ready: &engine.ReadyData{Ready: true},
	}}
	rej := decode[protocol.CommandRejected](t, recvType(t, hostOut, protocol.TypeCommandRejected, time.Second))
	if rej.Kind != engine.KindPhaseViolation {
		t.Fatalf("want phase_violation in finished match, got %+v", rej)
	}
}

func TestSession_WatcherGetsSnapshots(t *testing.T) {
	sess, hostOut, clientOut, cancel := startPair(t, Options{})
	defer cancel()
	recvType(t, hostOut, protocol.TypeWelcome, time.Second)
	recvType(t, clientOut, protocol.TypeWelcome, time.Second)

	out := make(chan Snapshot, 4)
	sess.Inbox() <- Watch{ID: "w1", Outbox: out}

	first := <-out
	if first.Version != 0 {
		t.Fatalf("join snapshot should carry version 0, got %d", first.Version)
	}

	sess.Inbox() <- FromPlayer{PlayerID: "alice", Seq: 1, Cmd: engine.Command{
		Type:        engine.CmdModifyControlPoint,
		ModifyPoint: &engine.ModifyPointData{Action: engine.PointAdd, X: 0, Y: 5},
	}}

	select {
	case snap := <-out:
		if snap.Version != 1 {
			t.Fatalf("want version 1 snapshot, got %d", snap.Version)
		}
	case <-time.After(time.Second):
		t.Fatalf("no snapshot after accepted command")
	}
}

func TestSession_SlowWatcherIsDropped(t *testing.T) {
	sess, hostOut, clientOut, cancel := startPair(t, Options{})
	defer cancel()
	recvType(t, hostOut, protocol.TypeWelcome, time.Second)
	recvType(t, clientOut, protocol.TypeWelcome, time.Second)

	// Unbuffered and never drained: the first broadcast it cannot take
	// closes it.
	out := make(chan Snapshot)
	sess.Inbox() <- Watch{ID: "slow", Outbox: out}

	sess.Inbox() <- FromPlayer{PlayerID: "alice", Seq: 1, Cmd: engine.Command{
		Type:        engine.CmdModifyControlPoint,
		ModifyPoint: &engine.ModifyPointData{Action: engine.PointAdd, X: 0, Y: 5},
	}}
	recvType(t, hostOut, protocol.TypeCommandAccepted, time.Second)

	reply := make(chan View, 1)
	sess.Inbox() <- GetState{Reply: reply}
	if view := <-reply; view.NumWatchers != 0 {
		t.Fatalf("slow watcher should be dropped, %d still attached", view.NumWatchers)
	}
}

func readyFrom(playerID string) FromPlayer {
	return FromPlayer{PlayerID: playerID, Cmd: engine.Command{Type: engine.CmdReady, Ready: &engine.ReadyData{Ready: true}}}
}

// driveToCombat walks a fresh pair through preparation and building into the
// first combat phase, draining the broadcasts along the way.
func driveToCombat(t *testing.T, sess *Session, hostOut, clientOut chan protocol.Message) {
	t.Helper()
	completePreparation(t, sess, hostOut, clientOut)
	recvType(t, hostOut, protocol.TypePhaseChanged, time.Second)
	recvType(t, clientOut, protocol.TypePhaseChanged, time.Second)

	for _, id := range []string{"alice", "bob"} {
		sess.Inbox() <- readyFrom(id)
		recvType(t, hostOut, protocol.TypeCommandAccepted, time.Second)
		recvType(t, clientOut, protocol.TypeCommandAccepted, time.Second)
	}
	pc := decode[protocol.PhaseChanged](t, recvType(t, hostOut, protocol.TypePhaseChanged, time.Second))
	if pc.Phase != engine.PhaseCombat {
		t.Fatalf("want combat, got %s", pc.Phase)
	}
	recvType(t, clientOut, protocol.TypePhaseChanged, time.Second)
}

func TestSession_EarlyCombatExitDropsPacing(t *testing.T) {
	// The tiny time scale stretches the pacing timers far beyond the test,
	// so any checkpoint that shows up must come from a stale timer.
	sess, hostOut, clientOut, cancel := startPair(t, Options{CombatTimeScale: 1e-9})
	defer cancel()
	recvType(t, hostOut, protocol.TypeWelcome, time.Second)
	recvType(t, clientOut, protocol.TypeWelcome, time.Second)
	driveToCombat(t, sess, hostOut, clientOut)

	// Both players skip the rest of the battle: combat ends early.
	for _, id := range []string{"alice", "bob"} {
		sess.Inbox() <- readyFrom(id)
		recvType(t, hostOut, protocol.TypeCommandAccepted, time.Second)
		recvType(t, clientOut, protocol.TypeCommandAccepted, time.Second)
	}
	pc := decode[protocol.PhaseChanged](t, recvType(t, hostOut, protocol.TypePhaseChanged, time.Second))
	if pc.Phase != engine.PhaseRoundEnd {
		t.Fatalf("want round_end, got %s", pc.Phase)
	}
	recvType(t, clientOut, protocol.TypePhaseChanged, time.Second)

	// The timers armed for the abandoned battle must be dead: no checkpoint
	// leaks out and no implicit ready pushes the round forward.
	for gen := 0; gen < 8; gen++ {
		sess.Inbox() <- combatTick{gen: gen, idx: 0}
		sess.Inbox() <- combatDone{gen: gen}
	}
	recvNoMsg(t, hostOut, 150*time.Millisecond)

	reply := make(chan View, 1)
	sess.Inbox() <- GetState{Reply: reply}
	if view := <-reply; view.State.Phase != engine.PhaseRoundEnd {
		t.Fatalf("stale combat timer advanced the phase to %s", view.State.Phase)
	}
}

func TestSession_ForfeitDuringCombatDropsPacing(t *testing.T) {
	sess, hostOut, clientOut, cancel := startPair(t, Options{CombatTimeScale: 1e-9})
	defer cancel()
	recvType(t, hostOut, protocol.TypeWelcome, time.Second)
	recvType(t, clientOut, protocol.TypeWelcome, time.Second)
	driveToCombat(t, sess, hostOut, clientOut)

	sess.Inbox() <- Leave{PlayerID: "bob"}
	mo := decode[protocol.MatchOver](t, recvType(t, hostOut, protocol.TypeMatchOver, time.Second))
	if mo.WinnerID != "alice" || mo.Reason != "forfeit" {
		t.Fatalf("want alice forfeit win, got %+v", mo)
	}

	// Checkpoints from the interrupted battle may not reach the survivor.
	for gen := 0; gen < 8; gen++ {
		sess.Inbox() <- combatTick{gen: gen, idx: 0}
		sess.Inbox() <- combatDone{gen: gen}
	}
	recvNoMsg(t, hostOut, 150*time.Millisecond)
}

func TestSession_ShutdownClosesOutboxes(t *testing.T) {
	sess, hostOut, clientOut, cancel := startPair(t, Options{})
	defer cancel()
	recvType(t, hostOut, protocol.TypeWelcome, time.Second)
	recvType(t, clientOut, protocol.TypeWelcome, time.Second)

	sess.Inbox() <- Shutdown{}

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-hostOut:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("host outbox not closed after shutdown")
		}
	}
}

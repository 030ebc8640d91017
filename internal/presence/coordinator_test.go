package presence

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"social-app/internal/database"
	"social-app/internal/models"
	"social-app/internal/monitoring"
	"social-app/internal/notify"
	"social-app/internal/proximity"
	"social-app/internal/registry"
	"social-app/internal/registry/registrytest"
	"social-app/pkg/testutil"

	"go.uber.org/zap"
)

type mirror struct {
	mu     sync.Mutex
	online map[string]int
}

func (m *mirror) Online(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.online[userID]++
	return nil
}

func (m *mirror) Offline(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.online, userID)
	return nil
}

type fixture struct {
	db     *database.MemoryDB
	reg    *registry.Registry
	coord  *Coordinator
	mirror *mirror
}

func newFixture(broadcastOnDisconnect bool) *fixture {
	db := database.NewMemoryDB()
	reg := registry.New()
	log := zap.NewNop()
	n := notify.New(reg, db, log, true)
	guard := monitoring.NewGuard(log, monitoring.NewLogReporter(log), database.ErrNotFound)
	m := &mirror{online: map[string]int{}}
	coord := NewCoordinator(reg, db, proximity.NewService(db), n, guard, log, Options{
		Concurrency:           4,
		BroadcastOnDisconnect: broadcastOnDisconnect,
		Mirror:                m,
	})
	return &fixture{db: db, reg: reg, coord: coord, mirror: m}
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func (f *fixture) user(id string, age int, loc *models.Location) {
	f.db.PutUser(&models.User{ID: id, Username: id, Location: loc, CreatedAt: epoch.Add(time.Duration(age) * time.Minute)})
}

// online registers a connection directly, bypassing the connect policies.
func (f *fixture) online(id string) *registrytest.Conn {
	c := registrytest.NewConn(id + "-conn")
	f.reg.Register(id, c)
	return c
}

func at(lon, lat float64) *models.Location {
	return &models.Location{Longitude: lon, Latitude: lat}
}

func nearestIDs(t *testing.T, env registrytest.Envelope) []string {
	var p models.NearestUsersPayload
	testutil.IsNil(t, json.Unmarshal(env.Data, &p), "decode nearest")
	ids := make([]string, len(p.Users))
	for i, u := range p.Users {
		ids[i] = u.UserID
	}
	return ids
}

func contains(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func TestPoliciesExcludeTrigger(t *testing.T) {
	f := newFixture(true)
	f.user("trigger", 0, nil)
	f.user("other", 1, nil)
	trig := f.online("trigger")
	other := f.online("other")
	ctx := context.Background()

	f.coord.ProcessOnlineUsers(ctx, "trigger")
	f.coord.ProcessAllOnlineUsers(ctx, "trigger")
	f.coord.ProcessUsersWithEmptyLocation(ctx, "trigger")
	f.coord.ProcessUsersWithLocation(ctx, "trigger")

	testutil.Assert(t, 0, len(trig.Raw()), "trigger never targeted")
	testutil.IsTrue(t, len(other.Raw()) > 0, "other targeted")
}

func TestProcessUsersWithEmptyLocationFiltersTargets(t *testing.T) {
	f := newFixture(true)
	f.user("trigger", 0, nil)
	f.user("empty", 1, nil)
	f.user("located", 2, at(121.5, 31.2))
	f.online("trigger")
	empty := f.online("empty")
	located := f.online("located")

	f.coord.ProcessUsersWithEmptyLocation(context.Background(), "trigger")

	testutil.Assert(t, 1, len(empty.OfType(models.EventNearestUsers)), "empty gets nearest")
	testutil.Assert(t, 1, len(empty.OfType(models.EventOnlineCount)), "empty gets online count")
	testutil.Assert(t, 0, len(located.Raw()), "located skipped")
}

func TestProcessUsersWithLocationPushesNearestOnly(t *testing.T) {
	f := newFixture(true)
	f.user("trigger", 0, at(121.5, 31.2))
	f.user("empty", 1, nil)
	f.user("located", 2, at(121.6, 31.2))
	f.online("trigger")
	empty := f.online("empty")
	located := f.online("located")

	f.coord.ProcessUsersWithLocation(context.Background(), "trigger")

	testutil.Assert(t, 0, len(empty.Raw()), "empty skipped")
	testutil.Assert(t, 1, len(located.OfType(models.EventNearestUsers)), "nearest pushed")
	testutil.Assert(t, 0, len(located.OfType(models.EventOnlineCount)), "no online count")
}

func TestProcessAllOnlineUsersReachesEveryone(t *testing.T) {
	f := newFixture(true)
	f.user("trigger", 0, at(121.5, 31.2))
	f.user("empty", 1, nil)
	f.user("located", 2, at(121.6, 31.2))
	f.online("trigger")
	empty := f.online("empty")
	located := f.online("located")

	f.coord.ProcessAllOnlineUsers(context.Background(), "trigger")

	for _, c := range []*registrytest.Conn{empty, located} {
		testutil.Assert(t, 1, len(c.OfType(models.EventNearestUsers)), c.ID()+" nearest")
		testutil.Assert(t, 1, len(c.OfType(models.EventOnlineCount)), c.ID()+" online count")
	}
}

func TestFailingTargetDoesNotAbortFanOut(t *testing.T) {
	f := newFixture(true)
	f.user("trigger", 0, at(1, 1))
	for _, id := range []string{"a", "b", "c"} {
		f.user(id, 1, nil)
	}
	f.online("trigger")
	a := f.online("a")
	f.online("ghost") // online but unknown to the user store
	broken := f.online("b")
	broken.Fail()
	c := f.online("c")

	f.coord.ProcessAllOnlineUsers(context.Background(), "trigger")

	testutil.Assert(t, 1, len(a.OfType(models.EventNearestUsers)), "a served")
	testutil.Assert(t, 1, len(c.OfType(models.EventNearestUsers)), "c served")
}

func TestConnectedSyncsSelf(t *testing.T) {
	f := newFixture(true)
	f.user("alice", 0, nil)
	f.user("bob", 1, nil)
	conn := registrytest.NewConn("alice-1")

	f.coord.Connected(context.Background(), "alice", conn)

	testutil.IsTrue(t, f.reg.IsOnline("alice"), "registered")
	testutil.Assert(t, 1, len(conn.OfType(models.EventNearestUsers)), "own nearest")
	testutil.Assert(t, `{"online":1}`, string(conn.OfType(models.EventOnlineCount)[0].Data), "own online count")
	testutil.Assert(t, `{"count":0}`, string(conn.OfType(models.EventUnreadCount)[0].Data), "own unread count")
	testutil.Assert(t, 1, f.mirror.online["alice"], "mirrored online")
}

func TestEndToEndConnectScenario(t *testing.T) {
	f := newFixture(true)
	f.user("a", 0, nil)
	f.user("b", 1, at(121.5, 31.2))
	f.user("c", 2, nil)
	ctx := context.Background()

	aConn := registrytest.NewConn("a-1")
	f.coord.Connected(ctx, "a", aConn)
	testutil.IsTrue(t, f.reg.IsOnline("a"), "a online")
	aConn.Reset()

	bConn := registrytest.NewConn("b-1")
	f.coord.Connected(ctx, "b", bConn)

	envs := aConn.OfType(models.EventNearestUsers)
	testutil.Assert(t, 1, len(envs), "a told about new nearest list")
	ids := nearestIDs(t, envs[0])
	testutil.IsTrue(t, contains(ids, "b"), "b among a's candidates")
	testutil.IsTrue(t, !contains(ids, "a"), "a not listed to itself")
	testutil.Assert(t, `{"online":2}`, string(aConn.OfType(models.EventOnlineCount)[0].Data), "online count includes b")
}

func TestConnectWithoutLocationSkipsLocatedUsers(t *testing.T) {
	f := newFixture(true)
	f.user("located", 0, at(121.5, 31.2))
	f.user("newcomer", 1, nil)
	located := f.online("located")

	f.coord.Connected(context.Background(), "newcomer", registrytest.NewConn("n-1"))

	testutil.Assert(t, 0, len(located.Raw()), "empty-location policy skips located users")
}

func TestDisconnectBroadcast(t *testing.T) {
	f := newFixture(true)
	f.user("alice", 0, nil)
	f.user("bob", 1, nil)
	bob := f.online("bob")
	first := registrytest.NewConn("alice-1")
	second := registrytest.NewConn("alice-2")
	ctx := context.Background()
	f.coord.Connected(ctx, "alice", first)
	f.coord.Connected(ctx, "alice", second)
	bob.Reset()

	f.coord.Disconnected(ctx, "alice", first)
	testutil.Assert(t, 0, len(bob.Raw()), "alice still online, nothing pushed")
	testutil.Assert(t, 2, f.mirror.online["alice"], "mirror untouched")

	f.coord.Disconnected(ctx, "alice", second)
	testutil.Assert(t, false, f.reg.IsOnline("alice"), "alice offline")
	testutil.Assert(t, `{"online":1}`, string(bob.OfType(models.EventOnlineCount)[0].Data), "bob sees new count")
	_, mirrored := f.mirror.online["alice"]
	testutil.Assert(t, false, mirrored, "mirror cleared")
}

func TestDisconnectBroadcastDisabled(t *testing.T) {
	f := newFixture(false)
	f.user("alice", 0, nil)
	bob := f.online("bob")
	conn := registrytest.NewConn("alice-1")
	f.reg.Register("alice", conn)

	f.coord.Disconnected(context.Background(), "alice", conn)

	testutil.Assert(t, 0, len(bob.Raw()), "no broadcast")
}

func TestLocationUpdated(t *testing.T) {
	f := newFixture(true)
	f.user("mover", 0, at(121.5, 31.2))
	f.user("located", 1, at(121.6, 31.2))
	f.user("empty", 2, nil)
	mover := f.online("mover")
	located := f.online("located")
	empty := f.online("empty")

	f.coord.LocationUpdated(context.Background(), "mover")

	testutil.Assert(t, 1, len(mover.OfType(models.EventNearestUsers)), "mover refreshed")
	testutil.Assert(t, 1, len(located.OfType(models.EventNearestUsers)), "located refreshed")
	testutil.Assert(t, 0, len(empty.Raw()), "empty untouched")
}

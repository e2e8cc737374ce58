package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/catalog"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/draft/orchestrator"
	"github.com/mcdev12/draftroom/go/internal/identity"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/mcdev12/draftroom/go/internal/room"
	"github.com/mcdev12/draftroom/go/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discardBroadcaster struct{}

func (discardBroadcaster) Broadcast(string, []string, ...events.Event) {}

type idleTimer struct{}

func (idleTimer) Arm(string, int, time.Duration) {}
func (idleTimer) Cancel(string)                  {}

type testAPI struct {
	srv    *httptest.Server
	tokens map[string]string
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	var pools []catalog.Pool
	var items []catalog.Item
	for _, key := range []string{"A", "B"} {
		p := catalog.Pool{Key: key, Quota: 2}
		for i := 1; i <= 4; i++ {
			ik := fmt.Sprintf("%s%d", key, i)
			p.Items = append(p.Items, ik)
			items = append(items, catalog.Item{Key: ik, Pool: key})
		}
		pools = append(pools, p)
	}
	cat, err := catalog.New(pools, items, []catalog.Gambit{{Key: "g1"}})
	require.NoError(t, err)
	return cat
}

func newTestAPI(t *testing.T, opts ...Option) *testAPI {
	t.Helper()
	clock := clockwork.NewFakeClock()
	jwtm := identity.NewJWTManager("test-secret", time.Hour, clock)
	cat := testCatalog(t)
	store := storage.NewMemoryStore()
	coord := room.NewCoordinator(store, cat, discardBroadcaster{}, idleTimer{},
		room.WithClock(clock),
		room.WithStrategy(orchestrator.FirstEligibleStrategy{}),
		room.WithSeeds(room.FixedSeeds{OverworldSeed: "1", NetherSeed: "2", EndSeed: "3"}),
		room.WithUsernames(jwtm.Usernames()),
		room.WithRandSeed(7),
	)

	opts = append([]Option{WithHealth(NewHealthChecker().WithStore(store))}, opts...)
	s := NewServer(coord, cat, jwtm, opts...)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)

	a := &testAPI{srv: srv, tokens: map[string]string{}}
	for _, u := range []string{"alice", "bob", "carol"} {
		tok, err := jwtm.Generate(u, strings.ToUpper(u))
		require.NoError(t, err)
		a.tokens[u] = tok
	}
	return a
}

// do sends a request as user ("" for anonymous) and decodes a JSON body into out.
func (a *testAPI) do(t *testing.T, method, path, user string, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, a.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+a.tokens[user])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (a *testAPI) createRoom(t *testing.T, admin string, others ...string) string {
	t.Helper()
	var snap events.SnapshotPayload
	require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/rooms", admin, "", &snap))
	require.Len(t, snap.Code, 7)
	for _, u := range others {
		require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/rooms/"+snap.Code+"/join", u, "", nil))
	}
	return snap.Code
}

func TestRoomLifecycle(t *testing.T) {
	a := newTestAPI(t)
	code := a.createRoom(t, "alice", "bob")
	base := "/rooms/" + code

	var snap events.SnapshotPayload
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, base, "bob", "", &snap))
	assert.Equal(t, []string{"alice", "bob"}, snap.Members)
	assert.Equal(t, "BOB", snap.Usernames["bob"])
	assert.Nil(t, snap.Draft)

	assert.Equal(t, http.StatusConflict, a.do(t, http.MethodPost, base+"/pick?key=A1", "alice", "", nil))
	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodPost, base+"/start", "bob", "", nil))

	var changed configureResponse
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, base+"/configure", "alice", `{"pick_time":"45"}`, &changed))
	assert.Equal(t, []string{"pick_time"}, changed.Changed)

	require.Equal(t, http.StatusNoContent, a.do(t, http.MethodPost, base+"/start", "alice", "", nil))
	assert.Equal(t, http.StatusConflict, a.do(t, http.MethodPost, base+"/start", "alice", "", nil))
	assert.Equal(t, http.StatusConflict, a.do(t, http.MethodPost, base+"/configure", "alice", `{"pick_time":"50"}`, nil))

	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, base, "alice", "", &snap))
	require.NotNil(t, snap.Draft)
	holder := snap.Draft.Position[0]
	other := "alice"
	if holder == "alice" {
		other = "bob"
	}

	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodPost, base+"/pick?key=A1", other, "", nil))
	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodPost, base+"/pick?key=Z9", holder, "", nil))
	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodPost, base+"/pick", holder, "", nil))
	require.Equal(t, http.StatusNoContent, a.do(t, http.MethodPost, base+"/pick?key=A1", holder, "", nil))
	assert.Equal(t, http.StatusConflict, a.do(t, http.MethodPost, base+"/pick?key=A1", other, "", nil))

	require.Equal(t, http.StatusNoContent, a.do(t, http.MethodPost, base+"/gambit?key=g1&enabled=true", other, "", nil))
	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodPost, base+"/gambit?key=g1&enabled=maybe", other, "", nil))
	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodPost, base+"/gambit?key=nope&enabled=true", other, "", nil))

	assert.Equal(t, http.StatusConflict, a.do(t, http.MethodPost, base+"/ready?value=true", holder, "", nil))
}

func TestMembershipRoutes(t *testing.T) {
	a := newTestAPI(t)
	code := a.createRoom(t, "alice", "bob", "carol")
	base := "/rooms/" + code

	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodPost, base+"/kick", "alice", "", nil))
	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodPost, base+"/kick?member=carol", "bob", "", nil))
	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodPost, base+"/kick?member=alice", "alice", "", nil))
	require.Equal(t, http.StatusNoContent, a.do(t, http.MethodPost, base+"/kick?member=carol", "alice", "", nil))

	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodPost, base+"/status?member=bob&status=referee", "alice", "", nil))
	require.Equal(t, http.StatusNoContent, a.do(t, http.MethodPost, base+"/status?member=bob&status=spectate", "alice", "", nil))

	var snap events.SnapshotPayload
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, base, "alice", "", &snap))
	assert.Equal(t, []string{"alice", "bob"}, snap.Members)
	assert.Equal(t, []string{"bob"}, snap.Spectators)

	require.Equal(t, http.StatusNoContent, a.do(t, http.MethodPost, base+"/leave", "bob", "", nil))
	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodDelete, base, "bob", "", nil))
	require.Equal(t, http.StatusNoContent, a.do(t, http.MethodDelete, base, "alice", "", nil))
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, base, "alice", "", nil))
}

func TestAuthAndErrors(t *testing.T) {
	a := newTestAPI(t)

	var apiErr APIError
	req, err := http.NewRequest(http.MethodPost, a.srv.URL+"/rooms", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiErr))
	assert.NotEmpty(t, apiErr.ErrorMessage)

	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodPost, "/rooms/NOROOM/join", "bob", "", nil))
	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodPost, "/rooms/NOROOM/configure", "bob", "not json", nil))
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodPost, "/dev/token?user_id=x", "", "", nil))
}

func TestDraftablesAndHealth(t *testing.T) {
	a := newTestAPI(t)

	var d draftablesResponse
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/draftables", "", "", &d))
	assert.Len(t, d.Pools, 2)
	assert.Len(t, d.Items, 8)
	assert.Len(t, d.Gambits, 1)

	var h HealthStatus
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/health", "", "", &h))
	assert.True(t, h.Healthy)
	assert.Nil(t, h.NATSConnected)
}

type downNATS struct{}

func (downNATS) Connected() bool { return false }

func TestHealthReportsNATS(t *testing.T) {
	a := newTestAPI(t, WithHealth(NewHealthChecker().WithNATS(downNATS{})))
	assert.Equal(t, http.StatusServiceUnavailable, a.do(t, http.MethodGet, "/health", "", "", nil))
}

func TestDevToken(t *testing.T) {
	issuer := identity.NewJWTManager("test-secret", time.Hour, nil)
	a := newTestAPI(t, WithDevTokens(issuer))

	var tok tokenResponse
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/dev/token?user_id=dave&username=Dave", "", "", &tok))
	assert.Equal(t, "dave", tok.UserID)
	who, err := issuer.Verify(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "Dave", who.Username)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{room.ErrRoomNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", room.ErrNotAdmin), http.StatusForbidden},
		{room.ErrAlreadyStarted, http.StatusConflict},
		{room.ErrInvalidAdvancement, http.StatusBadRequest},
		{identity.ErrInvalidToken, http.StatusUnauthorized},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestLeaderboardRoute(t *testing.T) {
	var board storage.MemoryCompletions
	require.NoError(t, board.RecordCompletion(context.Background(), models.Completion{
		PlayerID: "alice", Username: "Alice", Duration: 42 * time.Minute, Tag: "oq1",
	}))
	a := newTestAPI(t, WithLeaderboard(&board))

	var got []models.Completion
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/lb/oq1", "", "", &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Alice", got[0].Username)

	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodGet, "/lb/oq1?limit=0", "", "", nil))
}

func TestDestroyRoom(t *testing.T) {
	a := newTestAPI(t)
	code := a.createRoom(t, "alice", "bob")
	base := "/rooms/" + code

	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodDelete, base, "bob", "", nil))
	require.Equal(t, http.StatusNoContent, a.do(t, http.MethodDelete, base, "alice", "", nil))
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, base, "alice", "", nil))
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodDelete, base, "alice", "", nil))
}

package profile

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/wellbuilt/hubauth/cache"
	"github.com/wellbuilt/hubauth/directory"
	"github.com/wellbuilt/hubauth/directory/directorytest"
	"github.com/wellbuilt/hubauth/passcode"
)

const hash = "88d4266fd4e6338d13b845fcf289579d209c897823b9217da3e161936f031589"

func newTestService(t *testing.T) (*Service, *directorytest.Server, *cache.MemoryStore) {
	t.Helper()
	srv := directorytest.New("secret")
	t.Cleanup(srv.Close)

	client := directory.New(directory.Config{
		BaseURL: srv.DatabaseURL(),
		APIKey:  "secret",
		Suffix:  ".json",
		Timeout: time.Second,
	})
	store := cache.NewMemoryStore()
	svc := NewService(client, store, zerolog.Nop())
	t.Cleanup(svc.Close)
	return svc, srv, store
}

func TestLoadReadsProfileSubpath(t *testing.T) {
	svc, srv, store := newTestService(t)
	srv.Put("drivers/approved/"+hash, map[string]any{
		"displayName": "J Smith",
		"profile": map[string]any{
			"displayName": "Johnny Smith",
			"phone":       "555-0100",
			"cdl":         "ND-123",
			"language":    "es",
		},
	})

	p := svc.Load(context.Background(), hash)
	require.NotNil(t, p)
	require.Equal(t, "Johnny Smith", p.DisplayName)
	require.Equal(t, "555-0100", p.Phone)
	require.Equal(t, "es", p.Language)

	_, ok, err := store.Get(context.Background(), ProfileCacheKey)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLoadFallsBackToApprovedRecord(t *testing.T) {
	svc, srv, _ := newTestService(t)
	srv.Put("drivers/approved/"+hash, map[string]any{
		"name":        "Old Layout",
		"companyId":   "acme",
		"companyName": "Acme Hauling",
		"active":      true,
	})

	p := svc.Load(context.Background(), hash)
	require.NotNil(t, p)
	require.Equal(t, Profile{
		DisplayName: "Old Layout",
		Language:    "en",
		CompanyID:   "acme",
		CompanyName: "Acme Hauling",
	}, *p)
}

func TestLoadUnknownDriver(t *testing.T) {
	svc, _, _ := newTestService(t)
	require.Nil(t, svc.Load(context.Background(), hash))
	require.Nil(t, svc.Load(context.Background(), ""))
}

func TestLoadServesCacheThenRefreshes(t *testing.T) {
	svc, srv, store := newTestService(t)
	ctx := context.Background()

	cached, _ := json.Marshal(profileEntry{Owner: hash, Profile: Profile{DisplayName: "Cached", Language: "en"}})
	require.NoError(t, store.Set(ctx, ProfileCacheKey, cached))
	srv.Put("drivers/approved/"+hash+"/profile", map[string]any{"displayName": "Fresh"})

	p := svc.Load(ctx, hash)
	require.Equal(t, "Cached", p.DisplayName)

	require.Eventually(t, func() bool {
		var got Profile
		data, _, _ := store.Get(ctx, ProfileCacheKey)
		return json.Unmarshal(data, &got) == nil && got.DisplayName == "Fresh"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLoadIgnoresAnotherDriversCache(t *testing.T) {
	svc, srv, store := newTestService(t)
	ctx := context.Background()
	other := passcode.Hash("bbbb")

	cached, _ := json.Marshal(profileEntry{Owner: other, Profile: Profile{DisplayName: "Alice", Phone: "111"}})
	require.NoError(t, store.Set(ctx, ProfileCacheKey, cached))
	srv.Put("drivers/approved/"+hash+"/profile", map[string]any{"displayName": "Bob"})

	p := svc.Load(ctx, hash)
	require.NotNil(t, p)
	require.Equal(t, "Bob", p.DisplayName)
	require.Empty(t, p.Phone)
}

func TestClearCacheDropsInFlightRefresh(t *testing.T) {
	svc, srv, store := newTestService(t)
	ctx := context.Background()
	alice := passcode.Hash("aaaa")
	bob := passcode.Hash("bbbb")
	srv.Put("drivers/approved/"+alice+"/profile", map[string]any{"displayName": "Alice", "phone": "111"})
	srv.Put("drivers/approved/"+bob+"/profile", map[string]any{"displayName": "Bob"})

	require.NotNil(t, svc.Load(ctx, alice))

	// The second load is a cache hit and refreshes in the background.
	srv.Delay(150 * time.Millisecond)
	require.Equal(t, "Alice", svc.Load(ctx, alice).DisplayName)
	require.NoError(t, svc.ClearCache(ctx))

	svc.wg.Wait()
	_, ok, err := store.Get(ctx, ProfileCacheKey)
	require.NoError(t, err)
	require.False(t, ok, "refresh started before the clear must not repopulate the cache")

	srv.Delay(0)
	p := svc.Load(ctx, bob)
	require.NotNil(t, p)
	require.Equal(t, "Bob", p.DisplayName)
	require.Empty(t, p.Phone)
}

func TestLoadWhileOfflineWithoutCache(t *testing.T) {
	svc, srv, _ := newTestService(t)
	srv.Delay(2 * time.Second)
	require.Nil(t, svc.Load(context.Background(), hash))
}

func TestSaveMergesIntoCache(t *testing.T) {
	svc, srv, store := newTestService(t)
	ctx := context.Background()
	srv.Put("drivers/approved/"+hash+"/profile", map[string]any{"displayName": "J Smith", "phone": "1"})
	require.NotNil(t, svc.Load(ctx, hash))

	phone := "555-0199"
	require.NoError(t, svc.Save(ctx, hash, Update{Phone: &phone}))

	require.Equal(t, map[string]any{"displayName": "J Smith", "phone": "555-0199"},
		srv.Value("drivers/approved/"+hash+"/profile"))

	var got Profile
	data, _, _ := store.Get(ctx, ProfileCacheKey)
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, "J Smith", got.DisplayName)
	require.Equal(t, "555-0199", got.Phone)
}

func TestSaveFailureLeavesCache(t *testing.T) {
	svc, srv, store := newTestService(t)
	ctx := context.Background()
	srv.FailWith(http.StatusInternalServerError)

	lang := "es"
	require.Error(t, svc.Save(ctx, hash, Update{Language: &lang}))
	_, ok, _ := store.Get(ctx, ProfileCacheKey)
	require.False(t, ok)

	require.Error(t, svc.Save(ctx, "", Update{Language: &lang}))
	require.NoError(t, svc.Save(ctx, hash, Update{}))
}

func TestVehicleInfo(t *testing.T) {
	svc, srv, _ := newTestService(t)
	ctx := context.Background()

	require.Equal(t, VehicleInfo{}, svc.LoadVehicle(ctx, hash))

	srv.Put("drivers/approved/"+hash+"/profile", map[string]any{"truckNumber": "T-9"})
	require.Equal(t, VehicleInfo{TruckNumber: "T-9"}, svc.LoadVehicle(ctx, hash))

	info := VehicleInfo{TruckNumber: "T-12", TrailerNumber: "TR-4"}
	require.NoError(t, svc.SaveVehicle(ctx, hash, info))
	require.Equal(t, info, svc.LoadVehicle(ctx, hash))

	remote := srv.Value("drivers/approved/" + hash + "/profile").(map[string]any)
	require.Equal(t, "T-12", remote["truckNumber"])
	require.Equal(t, "TR-4", remote["trailerNumber"])
}

func TestSaveVehicleOfflineKeepsLocalCopy(t *testing.T) {
	svc, srv, _ := newTestService(t)
	ctx := context.Background()
	srv.FailWith(http.StatusServiceUnavailable)

	info := VehicleInfo{TruckNumber: "T-1"}
	require.NoError(t, svc.SaveVehicle(ctx, hash, info))
	require.Equal(t, info, svc.LoadVehicle(ctx, hash))
}

func TestClearCacheKeepsVehicle(t *testing.T) {
	svc, srv, store := newTestService(t)
	ctx := context.Background()
	srv.Put("drivers/approved/"+hash+"/profile", map[string]any{"displayName": "J Smith"})
	require.NotNil(t, svc.Load(ctx, hash))
	require.NoError(t, svc.SaveVehicle(ctx, "", VehicleInfo{TruckNumber: "T-1"}))

	require.NoError(t, svc.ClearCache(ctx))

	keys, err := store.Keys(ctx, "wellbuilt-")
	require.NoError(t, err)
	require.Equal(t, []string{VehicleCacheKey}, keys)
}

func TestUpdateApply(t *testing.T) {
	name := "New"
	empty := ""
	p := Update{DisplayName: &name, Phone: &empty}.Apply(Profile{DisplayName: "Old", Phone: "1", CDL: "x"})
	require.Equal(t, Profile{DisplayName: "New", CDL: "x"}, p)
}

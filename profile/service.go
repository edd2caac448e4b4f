package profile

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wellbuilt/hubauth/cache"
	"github.com/wellbuilt/hubauth/directory"
	"github.com/wellbuilt/hubauth/passcode"
)

// Service loads and saves the profile mirror.
type Service struct {
	remote directory.Store
	cache  cache.Store
	log    zerolog.Logger

	// mu orders profile cache writes against ClearCache; gen is bumped on
	// every clear so refreshes started before it never write.
	mu  sync.Mutex
	gen uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService returns a Service. Background refreshes run until Close.
func NewService(remote directory.Store, store cache.Store, log zerolog.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		remote: remote,
		cache:  store,
		log:    log.With().Str("component", "profile").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Close stops background refreshes and waits for them to exit.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

// Load returns the cached profile at once and refreshes it in the
// background. Without a cached copy it fetches synchronously. It returns
// nil when hash is empty or no profile can be found.
func (s *Service) Load(ctx context.Context, hash string) *Profile {
	if hash == "" {
		return nil
	}

	if cached, ok := s.cachedProfile(ctx, hash); ok {
		s.refreshInBackground(hash)
		return &cached
	}

	p, err := s.Refresh(ctx, hash)
	if err != nil {
		s.log.Warn().Err(err).Str("driver", passcode.Short(hash)).Msg("profile load failed")
		return nil
	}
	return p
}

// Refresh fetches the profile from the directory and caches it. The
// profile subpath is tried first, then the approved record itself.
func (s *Service) Refresh(ctx context.Context, hash string) (*Profile, error) {
	return s.refresh(ctx, hash, s.generation())
}

func (s *Service) refresh(ctx context.Context, hash string, gen uint64) (*Profile, error) {
	raw, err := s.get(ctx, directory.ProfilePath(hash))
	if err != nil {
		return nil, err
	}

	var p Profile
	if f, ok := decodeFields(raw); ok {
		p = profileFromSubpath(f)
	} else {
		raw, err = s.get(ctx, directory.ApprovedPath+"/"+hash)
		if err != nil {
			return nil, err
		}
		f, ok := decodeFields(raw)
		if !ok {
			return nil, nil
		}
		p = profileFromRecord(f)
	}

	s.storeProfile(ctx, gen, hash, p)
	return &p, nil
}

// Save patches the remote profile and merges u into the cached copy once
// the directory accepts it.
func (s *Service) Save(ctx context.Context, hash string, u Update) error {
	if hash == "" {
		return errors.New("profile save requires a driver hash")
	}
	if u.Empty() {
		return nil
	}
	gen := s.generation()
	if err := s.remote.Patch(ctx, directory.ProfilePath(hash), u); err != nil {
		return err
	}

	current, _ := s.cachedProfile(ctx, hash)
	s.storeProfile(ctx, gen, hash, u.Apply(current))
	return nil
}

// LoadVehicle returns the device's vehicle info, falling back to the
// remote profile. Missing info yields an empty VehicleInfo.
func (s *Service) LoadVehicle(ctx context.Context, hash string) VehicleInfo {
	var info VehicleInfo
	if s.readCache(ctx, VehicleCacheKey, &info) {
		return info
	}
	if hash == "" {
		return VehicleInfo{}
	}

	raw, err := s.get(ctx, directory.ProfilePath(hash))
	if err != nil {
		s.log.Debug().Err(err).Msg("remote vehicle info unavailable")
		return VehicleInfo{}
	}
	f, ok := decodeFields(raw)
	if !ok {
		return VehicleInfo{}
	}
	info = VehicleInfo{TruckNumber: f.str("truckNumber"), TrailerNumber: f.str("trailerNumber")}
	if info == (VehicleInfo{}) {
		return info
	}
	s.writeCache(ctx, VehicleCacheKey, info)
	return info
}

// SaveVehicle stores info locally, then pushes it to the remote profile.
// Only the local write can fail the call.
func (s *Service) SaveVehicle(ctx context.Context, hash string, info VehicleInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, VehicleCacheKey, data); err != nil {
		return err
	}
	if hash == "" {
		return nil
	}
	if err := s.remote.Patch(ctx, directory.ProfilePath(hash), info); err != nil {
		s.log.Debug().Err(err).Msg("vehicle info kept on device only")
	}
	return nil
}

// ClearCache removes the profile mirror. Vehicle info stays on the device.
// Refreshes already in flight finish without writing.
func (s *Service) ClearCache(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return s.cache.Delete(ctx, ProfileCacheKey)
}

// profileEntry is the cache entry: the profile plus the driver it
// belongs to.
type profileEntry struct {
	Owner string `json:"owner"`
	Profile
}

// cachedProfile returns the mirrored profile only if it belongs to hash.
func (s *Service) cachedProfile(ctx context.Context, hash string) (Profile, bool) {
	var entry profileEntry
	if !s.readCache(ctx, ProfileCacheKey, &entry) || entry.Owner != hash {
		return Profile{}, false
	}
	return entry.Profile, true
}

func (s *Service) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// storeProfile writes p for hash unless the cache was cleared after gen
// was taken.
func (s *Service) storeProfile(ctx context.Context, gen uint64, hash string, p Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		s.log.Debug().Str("driver", passcode.Short(hash)).Msg("profile cleared during fetch; dropping result")
		return
	}
	s.writeCache(ctx, ProfileCacheKey, profileEntry{Owner: hash, Profile: p})
}

func (s *Service) refreshInBackground(hash string) {
	gen := s.generation()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.refresh(s.ctx, hash, gen); err != nil {
			s.log.Debug().Err(err).Str("driver", passcode.Short(hash)).Msg("background profile refresh failed")
		}
	}()
}

// get treats a server rejection as "no data" and surfaces transport
// failures.
func (s *Service) get(ctx context.Context, path string) (json.RawMessage, error) {
	raw, err := s.remote.Get(ctx, path)
	if errors.Is(err, directory.ErrServer) {
		return nil, nil
	}
	return raw, err
}

func (s *Service) readCache(ctx context.Context, key string, v any) bool {
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

func (s *Service) writeCache(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data); err != nil {
		s.log.Debug().Err(err).Str("key", key).Msg("profile cache write failed")
	}
}

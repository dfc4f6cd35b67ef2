package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/jated111-leb/body-scribe-15-sub000/internal"
)

// derivedState is the on-disk shape of every engine-written record. Events get
// their own file since they dominate write volume.
type derivedState struct {
	Achievements []*internal.Achievement          `json:"achievements"`
	Progress     []*internal.AchievementProgress  `json:"progress"`
	Focuses      []*internal.LifestyleFocus       `json:"focuses"`
	Lifestyle    []*internal.LifestyleAchievement `json:"lifestyle_achievements"`
	Patterns     []*internal.InferredPattern      `json:"inferred_patterns"`
	Settings     []*internal.UserSettings         `json:"settings"`
}

type FileStorage struct {
	events          map[string]*internal.TimelineEvent
	userEventIndex  map[string][]*internal.TimelineEvent // userID -> events sorted by EventDate desc
	lastActivity    map[string]time.Time                 // userID -> most recent CreatedAt
	achievements    map[internal.AchievementKey]*internal.Achievement
	progress        map[internal.AchievementKey]*internal.AchievementProgress
	focuses         map[string]*internal.LifestyleFocus
	lifestyle       map[string][]*internal.LifestyleAchievement // userID -> append-only log
	patterns        map[string]map[string]*internal.InferredPattern
	settings        map[string]*internal.UserSettings
	users           map[string]*internal.User // token -> user
	mu              sync.RWMutex
	eventsFile      string
	derivedFile     string
	usersFile       string
	saveEventsChan  chan struct{}
	saveDerivedChan chan struct{}
	shutdownChan    chan struct{}
	saveDelay       time.Duration
	logger          internal.Logger
}

func NewFileStorage(eventsFile, derivedFile, usersFile string, logger internal.Logger) (*FileStorage, error) {
	s := &FileStorage{
		events:          make(map[string]*internal.TimelineEvent),
		userEventIndex:  make(map[string][]*internal.TimelineEvent),
		lastActivity:    make(map[string]time.Time),
		achievements:    make(map[internal.AchievementKey]*internal.Achievement),
		progress:        make(map[internal.AchievementKey]*internal.AchievementProgress),
		focuses:         make(map[string]*internal.LifestyleFocus),
		lifestyle:       make(map[string][]*internal.LifestyleAchievement),
		patterns:        make(map[string]map[string]*internal.InferredPattern),
		settings:        make(map[string]*internal.UserSettings),
		users:           make(map[string]*internal.User),
		eventsFile:      eventsFile,
		derivedFile:     derivedFile,
		usersFile:       usersFile,
		saveEventsChan:  make(chan struct{}, 1),
		saveDerivedChan: make(chan struct{}, 1),
		shutdownChan:    make(chan struct{}),
		saveDelay:       500 * time.Millisecond,
		logger:          logger,
	}

	if err := s.loadEvents(); err != nil {
		logger.Errorf("storage: failed to load events: %v", err)
		return nil, err
	}
	if err := s.loadDerived(); err != nil {
		logger.Errorf("storage: failed to load derived state: %v", err)
		return nil, err
	}
	if err := s.loadUsers(); err != nil {
		logger.Errorf("storage: failed to load users: %v", err)
		return nil, err
	}

	go s.saveEventsWorker()
	go s.saveDerivedWorker()

	return s, nil
}

func (s *FileStorage) loadEvents() error {
	file, err := os.Open(s.eventsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	var events []*internal.TimelineEvent
	if err := json.NewDecoder(file).Decode(&events); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		s.events[e.ID] = e
		s.userEventIndex[e.UserID] = append(s.userEventIndex[e.UserID], e)
		if e.CreatedAt.After(s.lastActivity[e.UserID]) {
			s.lastActivity[e.UserID] = e.CreatedAt
		}
	}
	for userID := range s.userEventIndex {
		sort.Slice(s.userEventIndex[userID], func(i, j int) bool {
			return s.userEventIndex[userID][i].EventDate.After(s.userEventIndex[userID][j].EventDate)
		})
	}
	return nil
}

func (s *FileStorage) loadDerived() error {
	file, err := os.Open(s.derivedFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	var st derivedState
	if err := json.NewDecoder(file).Decode(&st); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range st.Achievements {
		s.achievements[a.Key()] = a
	}
	for _, p := range st.Progress {
		s.progress[p.Key()] = p
	}
	for _, f := range st.Focuses {
		s.focuses[f.ID] = f
	}
	for _, l := range st.Lifestyle {
		s.lifestyle[l.UserID] = append(s.lifestyle[l.UserID], l)
	}
	for _, p := range st.Patterns {
		if s.patterns[p.UserID] == nil {
			s.patterns[p.UserID] = make(map[string]*internal.InferredPattern)
		}
		s.patterns[p.UserID][p.PatternType] = p
	}
	for _, u := range st.Settings {
		s.settings[u.UserID] = u
	}
	return nil
}

func (s *FileStorage) loadUsers() error {
	file, err := os.Open(s.usersFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	var users []*internal.User
	if err := json.NewDecoder(file).Decode(&users); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range users {
		s.users[u.Token] = u
	}
	return nil
}

func atomicWriteFileJSON(filePath string, data interface{}) error {
	tempFile := filePath + ".tmp"
	f, err := os.Create(tempFile)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}

	return os.Rename(tempFile, filePath)
}

func (s *FileStorage) saveEvents() error {
	s.mu.RLock()
	events := make([]*internal.TimelineEvent, 0, len(s.events))
	for _, e := range s.events {
		events = append(events, e)
	}
	s.mu.RUnlock()

	return atomicWriteFileJSON(s.eventsFile, events)
}

func (s *FileStorage) saveDerived() error {
	s.mu.RLock()
	st := derivedState{
		Achievements: make([]*internal.Achievement, 0, len(s.achievements)),
		Progress:     make([]*internal.AchievementProgress, 0, len(s.progress)),
		Focuses:      make([]*internal.LifestyleFocus, 0, len(s.focuses)),
		Lifestyle:    make([]*internal.LifestyleAchievement, 0),
		Patterns:     make([]*internal.InferredPattern, 0),
		Settings:     make([]*internal.UserSettings, 0, len(s.settings)),
	}
	for _, a := range s.achievements {
		st.Achievements = append(st.Achievements, a)
	}
	for _, p := range s.progress {
		st.Progress = append(st.Progress, p)
	}
	for _, f := range s.focuses {
		st.Focuses = append(st.Focuses, f)
	}
	for _, log := range s.lifestyle {
		st.Lifestyle = append(st.Lifestyle, log...)
	}
	for _, byType := range s.patterns {
		for _, p := range byType {
			st.Patterns = append(st.Patterns, p)
		}
	}
	for _, u := range s.settings {
		st.Settings = append(st.Settings, u)
	}
	s.mu.RUnlock()

	return atomicWriteFileJSON(s.derivedFile, st)
}

func (s *FileStorage) saveEventsWorker() {
	timer := time.NewTimer(s.saveDelay)
	defer timer.Stop()

	for {
		select {
		case <-s.saveEventsChan:
			timer.Reset(s.saveDelay)
		case <-timer.C:
			if err := s.saveEvents(); err != nil {
				s.logger.Errorf("storage: error saving events: %v", err)
			}
		case <-s.shutdownChan:
			return
		}
	}
}

func (s *FileStorage) saveDerivedWorker() {
	timer := time.NewTimer(s.saveDelay)
	defer timer.Stop()

	for {
		select {
		case <-s.saveDerivedChan:
			timer.Reset(s.saveDelay)
		case <-timer.C:
			if err := s.saveDerived(); err != nil {
				s.logger.Errorf("storage: error saving derived state: %v", err)
			}
		case <-s.shutdownChan:
			return
		}
	}
}

func (s *FileStorage) signalEvents() {
	select {
	case s.saveEventsChan <- struct{}{}:
	default:
	}
}

func (s *FileStorage) signalDerived() {
	select {
	case s.saveDerivedChan <- struct{}{}:
	default:
	}
}

func (s *FileStorage) Close() error {
	close(s.shutdownChan)

	// Save pending data synchronously on shutdown
	if err := s.saveEvents(); err != nil {
		return err
	}
	return s.saveDerived()
}

// --- EventRepository ---

func (s *FileStorage) SaveEvent(ctx context.Context, event *internal.TimelineEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[event.ID] = event

	// Insert maintaining descending EventDate order
	evts := s.userEventIndex[event.UserID]
	inserted := false
	for i, existing := range evts {
		if existing.EventDate.Before(event.EventDate) {
			evts = append(evts[:i], append([]*internal.TimelineEvent{event}, evts[i:]...)...)
			inserted = true
			break
		}
	}
	if !inserted {
		evts = append(evts, event)
	}
	s.userEventIndex[event.UserID] = evts
	if event.CreatedAt.After(s.lastActivity[event.UserID]) {
		s.lastActivity[event.UserID] = event.CreatedAt
	}

	s.signalEvents()
	return nil
}

func (s *FileStorage) ListEvents(ctx context.Context, userID string, from, to time.Time) ([]internal.TimelineEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evts, ok := s.userEventIndex[userID]
	if !ok {
		return []internal.TimelineEvent{}, nil
	}
	out := make([]internal.TimelineEvent, 0, len(evts))
	for _, e := range evts {
		if e.EventDate.After(to) {
			continue
		}
		if e.EventDate.Before(from) {
			break
		}
		out = append(out, *e)
	}
	return out, nil
}

func (s *FileStorage) ActiveUsers(ctx context.Context, since time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var users []string
	for userID, last := range s.lastActivity {
		if !last.Before(since) {
			users = append(users, userID)
		}
	}
	sort.Strings(users)
	return users, nil
}

// --- AchievementRepository ---

func (s *FileStorage) UpsertAchievement(ctx context.Context, a *internal.Achievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	if existing, ok := s.achievements[a.Key()]; ok {
		// The key owns its identity; keep it stable across upserts.
		cp.ID = existing.ID
		cp.CreatedAt = existing.CreatedAt
	}
	s.achievements[a.Key()] = &cp
	s.signalDerived()
	return nil
}

func (s *FileStorage) GetAchievement(ctx context.Context, key internal.AchievementKey) (*internal.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.achievements[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *FileStorage) ListAchievements(ctx context.Context, userID string) ([]internal.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []internal.Achievement
	for key, a := range s.achievements {
		if key.UserID == userID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastEventDate.After(out[j].LastEventDate)
	})
	return out, nil
}

// --- ProgressRepository ---

func (s *FileStorage) UpsertProgress(ctx context.Context, p *internal.AchievementProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.progress[p.Key()] = &cp
	s.signalDerived()
	return nil
}

func (s *FileStorage) DeleteProgress(ctx context.Context, key internal.AchievementKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.progress, key)
	s.signalDerived()
	return nil
}

func (s *FileStorage) ListProgress(ctx context.Context, userID string) ([]internal.AchievementProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []internal.AchievementProgress
	for key, p := range s.progress {
		if key.UserID == userID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Category < out[j].Category
	})
	return out, nil
}

// --- FocusRepository ---

func (s *FileStorage) SaveFocus(ctx context.Context, focus *internal.LifestyleFocus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *focus
	s.focuses[focus.ID] = &cp
	s.signalDerived()
	return nil
}

func (s *FileStorage) GetFocus(ctx context.Context, id string) (*internal.LifestyleFocus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.focuses[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *FileStorage) UpdateFocusStatus(ctx context.Context, id string, status internal.FocusStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.focuses[id]
	if !ok {
		return ErrNotFound
	}
	f.Status = status
	s.signalDerived()
	return nil
}

func (s *FileStorage) ListFocuses(ctx context.Context, userID string, statuses ...internal.FocusStatus) ([]internal.LifestyleFocus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []internal.LifestyleFocus
	for _, f := range s.focuses {
		if f.UserID != userID {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, f.Status) {
			continue
		}
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartDate.After(out[j].StartDate)
	})
	return out, nil
}

func containsStatus(statuses []internal.FocusStatus, s internal.FocusStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

// --- LifestyleAchievementRepository ---

func (s *FileStorage) AppendLifestyleAchievement(ctx context.Context, a *internal.LifestyleAchievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.lifestyle[a.UserID] = append(s.lifestyle[a.UserID], &cp)
	s.signalDerived()
	return nil
}

func (s *FileStorage) ListLifestyleAchievements(ctx context.Context, userID string, since time.Time) ([]internal.LifestyleAchievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []internal.LifestyleAchievement
	for _, a := range s.lifestyle[userID] {
		if a.DateTriggered.Before(since) {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DateTriggered.After(out[j].DateTriggered)
	})
	return out, nil
}

// --- PatternRepository ---

func (s *FileStorage) UpsertPattern(ctx context.Context, p *internal.InferredPattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.patterns[p.UserID] == nil {
		s.patterns[p.UserID] = make(map[string]*internal.InferredPattern)
	}
	cp := *p
	s.patterns[p.UserID][p.PatternType] = &cp
	s.signalDerived()
	return nil
}

func (s *FileStorage) GetPattern(ctx context.Context, userID, patternType string) (*internal.InferredPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patterns[userID][patternType]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *FileStorage) ListPatterns(ctx context.Context, userID string) ([]internal.InferredPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []internal.InferredPattern
	for _, p := range s.patterns[userID] {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PatternType < out[j].PatternType
	})
	return out, nil
}

// --- SettingsRepository ---

func (s *FileStorage) GetSettings(ctx context.Context, userID string) (*internal.UserSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.settings[userID]
	if !ok {
		return &internal.UserSettings{UserID: userID, ComplexityLevel: internal.DefaultComplexityLevel}, nil
	}
	cp := *u
	return &cp, nil
}

func (s *FileStorage) PutSettings(ctx context.Context, u *internal.UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.settings[u.UserID] = &cp
	s.signalDerived()
	return nil
}

// --- UserRepository ---

func (s *FileStorage) GetUserByToken(ctx context.Context, token string) (*internal.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[token]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// --- Compile-time assertions ---
var _ EventRepository = (*FileStorage)(nil)
var _ AchievementRepository = (*FileStorage)(nil)
var _ ProgressRepository = (*FileStorage)(nil)
var _ FocusRepository = (*FileStorage)(nil)
var _ LifestyleAchievementRepository = (*FileStorage)(nil)
var _ PatternRepository = (*FileStorage)(nil)
var _ SettingsRepository = (*FileStorage)(nil)
var _ UserRepository = (*FileStorage)(nil)

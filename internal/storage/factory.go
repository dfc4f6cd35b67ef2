package storage

import "github.com/jated111-leb/body-scribe-15-sub000/internal"

// Repositories bundles every repository the engine and HTTP layer need. Both
// backends implement all of them on one storage value.
type Repositories struct {
	Events       EventRepository
	Achievements AchievementRepository
	Progress     ProgressRepository
	Focuses      FocusRepository
	Lifestyle    LifestyleAchievementRepository
	Patterns     PatternRepository
	Settings     SettingsRepository
	Users        UserRepository
	Closer       interface{ Close() error }
}

func NewFileRepositories(eventsFile, derivedFile, usersFile string, logger internal.Logger) (*Repositories, error) {
	s, err := NewFileStorage(eventsFile, derivedFile, usersFile, logger)
	if err != nil {
		return nil, err
	}
	return bundle(s), nil
}

func NewPostgresRepositories(dsn string, logger internal.Logger) (*Repositories, error) {
	s, err := NewPostgresStorage(dsn, logger)
	if err != nil {
		return nil, err
	}
	return bundle(s), nil
}

func (r *Repositories) Close() error {
	if r.Closer == nil {
		return nil
	}
	return r.Closer.Close()
}

type backend interface {
	EventRepository
	AchievementRepository
	ProgressRepository
	FocusRepository
	LifestyleAchievementRepository
	PatternRepository
	SettingsRepository
	UserRepository
	Close() error
}

func bundle(s backend) *Repositories {
	return &Repositories{
		Events:       s,
		Achievements: s,
		Progress:     s,
		Focuses:      s,
		Lifestyle:    s,
		Patterns:     s,
		Settings:     s,
		Users:        s,
		Closer:       s,
	}
}

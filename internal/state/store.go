// Package state persists the small set of flags that must outlive a
// single view: the authenticated session, the owed roster refresh, and
// the conversation to auto-select next. A local SQLite file backs it so
// a full view reload, or a process restart, cannot lose them.
package state

import (
	"errors"
	"fmt"
	"strconv"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	keyAuthenticated = "authenticated"
	keyUsername      = "username"
	keySessionCookie = "session_cookie"
	keyRefreshOwed   = "refresh_owed"
	keyAutoSelect    = "auto_select_chat"
)

// entry is one persisted key/value pair.
type entry struct {
	Key   string `gorm:"primaryKey;size:64"`
	Value string `gorm:"size:1024"`
}

func (entry) TableName() string { return "client_state" }

// Store is the persisted cross-view client state.
type Store struct {
	db *gorm.DB
}

// Open opens or creates the state database at path. ":memory:" works
// for tests.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, fmt.Errorf("migrate state db: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) set(key, value string) error {
	e := entry{Key: key, Value: value}
	return s.db.Save(&e).Error
}

func (s *Store) get(key string) (string, bool, error) {
	var e entry
	err := s.db.First(&e, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return e.Value, true, nil
}

// consume reads and clears in one transaction, so the value is observed
// by exactly one caller.
func (s *Store) consume(key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var e entry
		err := tx.First(&e, "key = ?", key).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		value, found = e.Value, true
		return tx.Delete(&entry{}, "key = ?", key).Error
	})
	return value, found, err
}

// SetRefreshOwed flags that the next active roster view owes a refresh.
func (s *Store) SetRefreshOwed() error { return s.set(keyRefreshOwed, "true") }

// ConsumeRefreshOwed reads and clears the owed-refresh flag.
func (s *Store) ConsumeRefreshOwed() (bool, error) {
	_, found, err := s.consume(keyRefreshOwed)
	return found, err
}

// SetAutoSelect records the conversation the next roster view should
// select on load.
func (s *Store) SetAutoSelect(chatID int64) error {
	return s.set(keyAutoSelect, strconv.FormatInt(chatID, 10))
}

// ConsumeAutoSelect reads and clears the auto-select target.
func (s *Store) ConsumeAutoSelect() (int64, bool, error) {
	raw, found, err := s.consume(keyAutoSelect)
	if err != nil || !found {
		return 0, false, err
	}
	id, perr := strconv.ParseInt(raw, 10, 64)
	if perr != nil {
		return 0, false, nil
	}
	return id, true, nil
}

// SaveSession persists the authenticated session across restarts.
func (s *Store) SaveSession(username, cookie string) error {
	if err := s.set(keyAuthenticated, "true"); err != nil {
		return err
	}
	if err := s.set(keyUsername, username); err != nil {
		return err
	}
	return s.set(keySessionCookie, cookie)
}

// Session returns the persisted session, if one is held.
func (s *Store) Session() (username, cookie string, ok bool, err error) {
	auth, found, err := s.get(keyAuthenticated)
	if err != nil || !found || auth != "true" {
		return "", "", false, err
	}
	if username, _, err = s.get(keyUsername); err != nil {
		return "", "", false, err
	}
	if cookie, _, err = s.get(keySessionCookie); err != nil {
		return "", "", false, err
	}
	return username, cookie, true, nil
}

// ClearSession forgets the persisted session, e.g. on logout.
func (s *Store) ClearSession() error {
	keys := []string{keyAuthenticated, keyUsername, keySessionCookie}
	return s.db.Delete(&entry{}, "key IN ?", keys).Error
}

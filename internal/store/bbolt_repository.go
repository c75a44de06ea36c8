package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketActiveJobs = []byte("active_jobs")
	bucketAppState   = []byte("app_state")
	keyAppState      = []byte("state")
)

type bboltRepository struct {
	db       *bolt.DB
	jobs     JobHandleStore
	appState AppStateStore
}

func NewBboltRepository(path string) (Repository, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("repository db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &bboltRepository{
		db:       db,
		jobs:     &bboltJobHandleStore{db: db},
		appState: &bboltAppStateStore{db: db},
	}, nil
}

func initSchema(db *bolt.DB) error {
	return db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketActiveJobs); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketAppState); err != nil {
			return err
		}
		return nil
	})
}

func (r *bboltRepository) Jobs() JobHandleStore {
	return r.jobs
}

func (r *bboltRepository) AppState() AppStateStore {
	return r.appState
}

func (r *bboltRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

type bboltJobHandleStore struct {
	db *bolt.DB
	mu sync.Mutex
}

func (s *bboltJobHandleStore) Get(ctx context.Context, conversationID string) (*JobHandle, bool, error) {
	var (
		out *JobHandle
		ok  bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketActiveJobs)
		if b == nil {
			return nil
		}
		raw := b.Get([]byte(conversationID))
		if len(raw) == 0 {
			return nil
		}
		var handle JobHandle
		if err := json.Unmarshal(raw, &handle); err != nil {
			return err
		}
		out = &handle
		ok = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, ok, nil
}

func (s *bboltJobHandleStore) Put(ctx context.Context, handle *JobHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if handle == nil || handle.ConversationID == "" || handle.JobID == "" {
		return errors.New("job handle requires conversation_id and job_id")
	}
	normalized := *handle
	if normalized.SavedAt.IsZero() {
		normalized.SavedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(&normalized)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketActiveJobs)
		if b == nil {
			return errors.New("active jobs bucket missing")
		}
		return b.Put([]byte(normalized.ConversationID), raw)
	})
}

func (s *bboltJobHandleStore) Delete(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketActiveJobs)
		if b == nil {
			return errors.New("active jobs bucket missing")
		}
		key := []byte(conversationID)
		if b.Get(key) == nil {
			return ErrJobHandleNotFound
		}
		return b.Delete(key)
	})
}

func (s *bboltJobHandleStore) List(ctx context.Context) ([]*JobHandle, error) {
	out := make([]*JobHandle, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketActiveJobs)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var handle JobHandle
			if err := json.Unmarshal(v, &handle); err != nil {
				return err
			}
			out = append(out, &handle)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SavedAt.Before(out[j].SavedAt)
	})
	return out, nil
}

type bboltAppStateStore struct {
	db *bolt.DB
}

func (s *bboltAppStateStore) Load(ctx context.Context) (*AppState, error) {
	state := &AppState{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAppState)
		if b == nil {
			return nil
		}
		raw := b.Get(keyAppState)
		if len(raw) == 0 {
			return nil
		}
		return json.Unmarshal(raw, state)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (s *bboltAppStateStore) Save(ctx context.Context, state *AppState) error {
	if state == nil {
		return errors.New("state is required")
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAppState)
		if b == nil {
			return errors.New("app state bucket missing")
		}
		return b.Put(keyAppState, raw)
	})
}

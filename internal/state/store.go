package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketSessions = []byte("sessions")
	bucketRuns     = []byte("runs")
)

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db   *bolt.DB
	path string
}

// NewBoltStore opens or creates the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketSessions, bucketRuns} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BoltStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *BoltStore) Path() string {
	return s.path
}

func (s *BoltStore) put(bucket []byte, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", bucket, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}
		return b.Put([]byte(key), data)
	})
}

// get returns false when the key is absent.
func (s *BoltStore) get(bucket []byte, key string, v any) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, v)
	})
	return found, err
}

// SaveSession stores s, replacing any session for the same key.
func (s *BoltStore) SaveSession(sess *Session) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	return s.put(bucketSessions, sess.Key(), sess)
}

// LoadSession loads the session for server and authEndpoint.
func (s *BoltStore) LoadSession(server, authEndpoint string) (*Session, error) {
	var sess Session
	found, err := s.get(bucketSessions, SessionKey(server, authEndpoint), &sess)
	if err != nil || !found {
		return nil, err
	}
	return &sess, nil
}

// DeleteSession removes a stored session.
func (s *BoltStore) DeleteSession(server, authEndpoint string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).Delete([]byte(SessionKey(server, authEndpoint)))
	})
}

// SaveRun stores r.
func (s *BoltStore) SaveRun(r *Run) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return s.put(bucketRuns, r.ID, r)
}

// LoadRun loads a run by ID.
func (s *BoltStore) LoadRun(id string) (*Run, error) {
	var r Run
	found, err := s.get(bucketRuns, id, &r)
	if err != nil || !found {
		return nil, err
	}
	return &r, nil
}

// Runs returns every stored run, oldest first.
func (s *BoltStore) Runs() ([]*Run, error) {
	var runs []*Run
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).ForEach(func(_, data []byte) error {
			var r Run
			if err := json.Unmarshal(data, &r); err != nil {
				return err
			}
			runs = append(runs, &r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortRuns(runs)
	return runs, nil
}

// Latest returns the most recently finished run.
func (s *BoltStore) Latest() (*Run, error) {
	runs, err := s.Runs()
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return runs[len(runs)-1], nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func sortRuns(runs []*Run) {
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].FinishedAt.Before(runs[j].FinishedAt)
	})
}

// MemoryStore implements Store using in-memory storage.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	runs     map[string]Run
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		runs:     make(map[string]Run),
	}
}

func (s *MemoryStore) SaveSession(sess *Session) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Key()] = *sess
	return nil
}

func (s *MemoryStore) LoadSession(server, authEndpoint string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[SessionKey(server, authEndpoint)]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (s *MemoryStore) DeleteSession(server, authEndpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, SessionKey(server, authEndpoint))
	return nil
}

func (s *MemoryStore) SaveRun(r *Run) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.ID] = *r
	return nil
}

func (s *MemoryStore) LoadRun(id string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *MemoryStore) Runs() ([]*Run, error) {
	s.mu.Lock()
	runs := make([]*Run, 0, len(s.runs))
	for _, r := range s.runs {
		r := r
		runs = append(runs, &r)
	}
	s.mu.Unlock()
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) Latest() (*Run, error) {
	runs, _ := s.Runs()
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[len(runs)-1], nil
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}

package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/ugorji/go/codec"
	"github.com/wisangg/storysync/internal/sserror"
	bolt "go.etcd.io/bbolt"
)

// Version tags the cache partitions of the current deployment. Bumping it
// makes Activate sweep every previous generation away.
const Version = 1

// Partition names for the current version.
var (
	StaticPartition  = fmt.Sprintf("story-app-v%d", Version)
	RuntimePartition = fmt.Sprintf("story-app-runtime-v%d", Version)
	ImagePartition   = fmt.Sprintf("story-app-images-v%d", Version)
)

var mh codec.MsgpackHandle

type (
	// An Entry is a cached response: status, headers and the full body.
	Entry struct {
		Status   int                 `codec:"status"`
		Header   map[string][]string `codec:"header"`
		Body     []byte              `codec:"body"`
		StoredAt time.Time           `codec:"stored_at"`
	}

	// A Store keeps response entries in named partitions, keyed by the full
	// request (method + URL).
	Store struct {
		db *bolt.DB
	}
)

// Open returns a Store over the given file, creating the current version's
// partitions when missing.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, sserror.StorageUnavailable("could not open cache: " + err.Error())
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, partition := range []string{StaticPartition, RuntimePartition, ImagePartition} {
			if _, err := tx.CreateBucketIfNotExists([]byte(partition)); err != nil {
				return errors.Wrapf(err, "could not create partition %s", partition)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close the cache.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores the entry under the given partition and request key.
func (s *Store) Put(partition, key string, entry *Entry) error {
	var buf bytes.Buffer
	if err := codec.NewEncoder(&buf, &mh).Encode(entry); err != nil {
		return errors.Wrap(err, "could not encode cache entry")
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(partition))
		if bucket == nil {
			return errors.Errorf("unknown partition: %s", partition)
		}
		return bucket.Put([]byte(key), buf.Bytes())
	})
	return errors.Wrap(err, "could not store cache entry")
}

// Get returns the entry for the given partition and request key,
// or nil when absent.
func (s *Store) Get(partition, key string) (*Entry, error) {
	var payload []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(partition))
		if bucket == nil {
			return nil
		}
		if value := bucket.Get([]byte(key)); value != nil {
			payload = append(payload, value...)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not read cache entry")
	}
	if payload == nil {
		return nil, nil
	}

	var entry Entry
	if err := codec.NewDecoderBytes(payload, &mh).Decode(&entry); err != nil {
		return nil, errors.Wrap(err, "could not decode cache entry")
	}
	return &entry, nil
}

// Activate deletes every partition that does not belong to the current
// version. This is a full generational sweep, not selective pruning.
func (s *Store) Activate() error {
	current := map[string]bool{
		StaticPartition:  true,
		RuntimePartition: true,
		ImagePartition:   true,
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		stale := make([][]byte, 0)
		err := tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			if !current[string(name)] {
				stale = append(stale, append([]byte(nil), name...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, name := range stale {
			if err := tx.DeleteBucket(name); err != nil {
				return errors.Wrapf(err, "could not delete partition %s", name)
			}
		}
		return nil
	})
	return errors.Wrap(err, "could not sweep stale partitions")
}

// Partitions lists the partition names currently present.
func (s *Store) Partitions() ([]string, error) {
	names := make([]string, 0, 3)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	return names, errors.Wrap(err, "could not list partitions")
}

// Key builds the cache key of a request.
func Key(req *http.Request) string {
	return req.Method + " " + req.URL.String()
}

// Response rebuilds an http.Response from the cached entry.
func (e *Entry) Response(req *http.Request) *http.Response {
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status)),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header(e.Header).Clone(),
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// snapshotVersion guards the on-disk format so a future incompatible
// change can refuse to load an old snapshot instead of misreading it.
const snapshotVersion = 1

// snapshotFile is the on-disk shape of a persistence snapshot, grounded
// on calod's own save_to_file/load_from_file pair (original_source's
// Rust store serialized itself wholesale via serde_json; this keeps
// that "one JSON document, one file" shape).
type snapshotFile struct {
	Version int             `json:"version"`
	SavedAt time.Time       `json:"saved_at"`
	Entries []snapshotEntry `json:"entries"`
}

type snapshotEntry struct {
	Key       string            `json:"key"`
	Tag       string            `json:"tag"`
	String    string            `json:"string,omitempty"`
	List      []string          `json:"list,omitempty"`
	Set       []string          `json:"set,omitempty"`
	Hash      map[string]string `json:"hash,omitempty"`
	HasTTL    bool              `json:"has_ttl,omitempty"`
	ExpiresAt time.Time         `json:"expires_at,omitempty"`
}

func (s *Server) snapshotPath() string {
	return filepath.Join(s.config.DataDir, "calod_store.json")
}

// saveSnapshot writes every live key in the store to a single JSON file
// via a temp-file-then-rename, so a crash mid-write never leaves a
// half-written snapshot in the path loadSnapshot reads from.
func (s *Server) saveSnapshot() error {
	if err := os.MkdirAll(s.config.DataDir, 0o755); err != nil {
		return errors.Wrap(err, "create data dir")
	}

	snap := snapshotFile{Version: snapshotVersion, SavedAt: time.Now()}
	now := time.Now()

	for _, shard := range s.store.shards {
		shard.entries.Range(func(k, v any) bool {
			entry := v.(CacheEntry)
			if isExpired(entry, now) {
				return true
			}
			snap.Entries = append(snap.Entries, entryToSnapshot(k.(string), entry))
			return true
		})
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}

	tmp, err := os.CreateTemp(s.config.DataDir, "calod_store.*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp snapshot file")
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "write temp snapshot file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "close temp snapshot file")
	}

	if err := os.Rename(tmpPath, s.snapshotPath()); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "rename temp snapshot file")
	}

	return nil
}

// loadSnapshot restores the store from disk at startup. Any failure
// (missing file, corrupt JSON, version mismatch) is non-fatal: the
// server starts with an empty store rather than refusing to boot.
func (s *Server) loadSnapshot() error {
	data, err := os.ReadFile(s.snapshotPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "read snapshot file")
	}

	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return errors.Wrap(err, "unmarshal snapshot file")
	}
	if snap.Version != snapshotVersion {
		return errors.Errorf("unsupported snapshot version %d", snap.Version)
	}

	now := time.Now()
	for _, e := range snap.Entries {
		entry := snapshotToEntry(e)
		if isExpired(entry, now) {
			continue
		}
		shard := shardFor(s.store.shards, e.Key)
		shard.entries.Store(e.Key, entry)
		s.store.count.Inc()
		s.store.touchLRU(e.Key)
	}

	return nil
}

func entryToSnapshot(key string, entry CacheEntry) snapshotEntry {
	e := snapshotEntry{Key: key, Tag: entry.Value.Tag.String(), HasTTL: entry.HasTTL, ExpiresAt: entry.ExpiresAt}
	switch entry.Value.Tag {
	case TypeString:
		e.String = entry.Value.String
	case TypeList:
		e.List = entry.Value.List.Values()
	case TypeSet:
		e.Set = entry.Value.Set.Members()
	case TypeHash:
		e.Hash = entry.Value.Hash.GetAll()
	}
	return e
}

func snapshotToEntry(e snapshotEntry) CacheEntry {
	var value StoredValue
	switch e.Tag {
	case TypeList.String():
		list := NewList()
		for _, v := range e.List {
			list.RightPush(v)
		}
		value = StoredValue{Tag: TypeList, List: list}
	case TypeSet.String():
		set := NewSet()
		for _, v := range e.Set {
			set.Add(v)
		}
		value = StoredValue{Tag: TypeSet, Set: set}
	case TypeHash.String():
		hash := NewHash()
		for k, v := range e.Hash {
			hash.Set(k, v)
		}
		value = StoredValue{Tag: TypeHash, Hash: hash}
	default:
		value = StoredValue{Tag: TypeString, String: e.String}
	}

	return CacheEntry{
		Value:        value,
		Frequency:    1,
		LastAccessed: time.Now(),
		HasTTL:       e.HasTTL,
		ExpiresAt:    e.ExpiresAt,
	}
}

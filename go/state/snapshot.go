// Package state persists the last observed availability of every monitored
// listing between runs.
package state

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/KevinXing/housing-alert/go/listing"
)

// Snapshot maps a listing URL to its last observed availability. A present key
// with a nil value records an Unknown classification.
type Snapshot map[string]*bool

// Lookup returns the recorded status for url and whether url has an entry.
func (s Snapshot) Lookup(url string) (listing.Status, bool) {
	b, ok := s[url]
	return listing.StatusOf(b), ok
}

// Set records status for url.
func (s Snapshot) Set(url string, status listing.Status) {
	s[url] = status.Bool()
}

// URLs returns the snapshot keys in sorted order.
func (s Snapshot) URLs() []string {
	urls := make([]string, 0, len(s))
	for url := range s {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}

// Store loads and saves whole snapshots. Save replaces the stored snapshot.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snapshot Snapshot) error
}

// encode is the canonical serialized form shared by the blob backends.
// encoding/json sorts map keys, so equal snapshots encode to equal bytes.
func encode(snapshot Snapshot) ([]byte, error) {
	if snapshot == nil {
		snapshot = Snapshot{}
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func decode(data []byte) (Snapshot, error) {
	snapshot := Snapshot{}
	if len(data) == 0 {
		return snapshot, nil
	}
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, err
	}
	if snapshot == nil {
		snapshot = Snapshot{}
	}
	return snapshot, nil
}

// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/plmigrate/internal/services"
)

// SearchCall records one [MockService.SearchTracks] invocation.
type SearchCall struct {
	Query  string
	Limit  int
	Offset int
	Market string
}

// AddCall records one [MockService.AddTracks] invocation.
type AddCall struct {
	UserID     string
	PlaylistID string
	TrackIDs   []string
	Position   *int
}

// MockService is a test double for [services.Service].
//
// Searches return Results[query], or nothing when the query is unknown. AddTracks fails the
// n-th call (zero-based) when FailAdds[n] is set.
type MockService struct {
	Results    map[string][]services.Track
	SearchErrs map[string]error
	Delays     map[string]time.Duration
	FailAdds   map[int]error
	VerifyErr  error

	mu       sync.Mutex
	searches []SearchCall
	adds     []AddCall
}

// NewMockService creates a [MockService] with empty lookup tables.
func NewMockService() *MockService {
	return &MockService{
		Results:    make(map[string][]services.Track),
		SearchErrs: make(map[string]error),
		Delays:     make(map[string]time.Duration),
		FailAdds:   make(map[int]error),
	}
}

// Hit registers a single search result with the given id for query.
func (m *MockService) Hit(query, id, title string) *MockService {
	m.Results[query] = []services.Track{{ID: id, URI: "spotify:track:" + id, Title: title}}
	return m
}

func (m *MockService) Name() string { return "mock" }

func (m *MockService) SearchTracks(ctx context.Context, query string, limit, offset int, market string) ([]services.Track, error) {
	m.mu.Lock()
	m.searches = append(m.searches, SearchCall{Query: query, Limit: limit, Offset: offset, Market: market})
	delay := m.Delays[query]
	err := m.SearchErrs[query]
	results := m.Results[query]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *MockService) AddTracks(ctx context.Context, userID, playlistID string, trackIDs []string, position *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.adds)
	m.adds = append(m.adds, AddCall{
		UserID:     userID,
		PlaylistID: playlistID,
		TrackIDs:   append([]string(nil), trackIDs...),
		Position:   position,
	})
	return m.FailAdds[n]
}

func (m *MockService) VerifyPlaylist(ctx context.Context, userID, playlistID string) error {
	return m.VerifyErr
}

// Searches returns a copy of the recorded searches.
func (m *MockService) Searches() []SearchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SearchCall(nil), m.searches...)
}

// Adds returns a copy of the recorded mutation calls.
func (m *MockService) Adds() []AddCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AddCall(nil), m.adds...)
}

// ErrMock is returned by tests that need an arbitrary failure.
var ErrMock = errors.New("mock failure")

// BatchError builds a rejection error for the n-th mutation call.
func BatchError(n int) error {
	return fmt.Errorf("%w: batch %d rejected", ErrMock, n)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}

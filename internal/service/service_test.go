package service

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vbonduro/staydesk/internal/auth"
	"github.com/vbonduro/staydesk/internal/db"
	"github.com/vbonduro/staydesk/internal/docstore"
	"github.com/vbonduro/staydesk/internal/domain"
	"github.com/vbonduro/staydesk/internal/store"
	"github.com/vbonduro/staydesk/internal/tenant"
)

// stubDocStore is a minimal in-memory docstore.DocStore for tests.
type stubDocStore struct {
	mu    sync.Mutex
	saved map[string][]byte
	next  int
}

func newStubDocStore() *stubDocStore {
	return &stubDocStore{saved: make(map[string][]byte)}
}

func (s *stubDocStore) Save(_ context.Context, ext string, r io.Reader) (string, int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	key := "guest_docs/test/" + strconv.Itoa(s.next) + ext
	s.saved[key] = data
	return key, int64(len(data)), nil
}

func (s *stubDocStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.saved[key]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *stubDocStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.saved[key]; !ok {
		return docstore.ErrNotFound
	}
	delete(s.saved, key)
	return nil
}

func (s *stubDocStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

// stubGenerator hands out codes in order, repeating the last one.
type stubGenerator struct {
	mu    sync.Mutex
	codes []string
	calls int
}

func (g *stubGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := min(g.calls, len(g.codes)-1)
	g.calls++
	return g.codes[i], nil
}

type testEnv struct {
	db         *sql.DB
	files      *stubDocStore
	generator  *stubGenerator
	properties *PropertyService
	guests     *GuestService
	stays      *StayService
	rules      *HouseRulesService
	documents  *DocumentService
	public     *PublicService
	auth       *AuthService
	users      *store.UserStore
	codeStore  *store.CodeStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	propertyStore := store.NewPropertyStore(d)
	guestStore := store.NewGuestStore(d)
	stayStore := store.NewStayStore(d)
	documentStore := store.NewDocumentStore(d)
	codeStore := store.NewCodeStore(d)
	userStore := store.NewUserStore(d)

	env := &testEnv{
		db:        d,
		files:     newStubDocStore(),
		generator: &stubGenerator{codes: []string{"7xK3mPq"}},
		users:     userStore,
		codeStore: codeStore,
	}
	env.properties = NewPropertyService(propertyStore, documentStore, env.files, logger)
	env.guests = NewGuestService(guestStore, logger)
	env.stays = NewStayService(stayStore, codeStore, guestStore, documentStore, env.generator, "https://stay.example.com/", nil, logger)
	env.rules = NewHouseRulesService(store.NewHouseRulesStore(d), logger)
	env.documents = NewDocumentService(documentStore, env.files, logger)
	env.public = NewPublicService(codeStore, stayStore, guestStore, propertyStore, env.rules, logger)
	env.auth = NewAuthService(userStore, auth.NewTokenIssuer("test-secret", time.Hour), logger)
	return env
}

// newProperty creates a property owned by nobody and returns a context
// scoped to it.
func (e *testEnv) newProperty(t *testing.T, name string) (context.Context, *domain.Property) {
	t.Helper()
	p, err := e.properties.Create(context.Background(), 0, PropertyInput{Name: name})
	require.NoError(t, err)
	return tenant.WithProperty(context.Background(), p.ID), p
}

func (e *testEnv) newStay(t *testing.T, ctx context.Context, guestNames ...string) *domain.StayDetails {
	t.Helper()
	var ids []int64
	for _, name := range guestNames {
		g, err := e.guests.Create(ctx, GuestInput{Name: name})
		require.NoError(t, err)
		ids = append(ids, g.ID)
	}
	st, err := e.stays.Create(ctx, 0, StayInput{GuestIDs: ids, CheckInDate: "2026-10-18"})
	require.NoError(t, err)
	return st
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

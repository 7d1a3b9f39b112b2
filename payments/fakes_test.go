package payments

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"zapstack-backend/database"
	"zapstack-backend/models"
)

type fakeFetcher struct {
	calls atomic.Int32
	token string
	err   error
}

func (f *fakeFetcher) FetchToken(_ context.Context, _ Credentials) (string, error) {
	n := f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	if f.token != "" {
		return f.token, nil
	}
	return fmt.Sprintf("token-%d", n), nil
}

type fakeNonceStore struct {
	mu     sync.Mutex
	seen   map[string]bool
	err    error
	cutoff time.Time
}

func (s *fakeNonceStore) Insert(_ context.Context, projectID, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	key := projectID + "/" + nonce
	if s.seen[key] {
		return fmt.Errorf("nonce %q: %w", nonce, database.ErrDuplicate)
	}
	s.seen[key] = true
	return nil
}

func (s *fakeNonceStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cutoff = cutoff
	return 3, nil
}

func (s *fakeNonceStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

type fakeProjects struct {
	byKey map[string]*models.Project
	err   error
}

func (f *fakeProjects) FindPaymentsProject(_ context.Context, zapKey, provider string) (*models.Project, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.byKey[zapKey]
	if !ok || p.Provider != provider || p.Type != models.ProjectTypePayments {
		return nil, database.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

type fakePusher struct {
	calls    atomic.Int32
	last     *StkPushRequest
	lastTok  string
	lastEnv  string
	resp     *StkPushResponse
	raw      []byte
	err      error
	panicMsg string
}

func (f *fakePusher) StkPush(_ context.Context, token, environment string, payload *StkPushRequest) (*StkPushResponse, []byte, error) {
	n := f.calls.Add(1)
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.last, f.lastTok, f.lastEnv = payload, token, environment
	if f.err != nil {
		return nil, f.raw, f.err
	}
	if f.resp != nil {
		return f.resp, f.raw, nil
	}
	return &StkPushResponse{
		MerchantRequestID:   fmt.Sprintf("m-%d", n),
		CheckoutRequestID:   fmt.Sprintf("ws_CO_%d", n),
		ResponseCode:        "0",
		ResponseDescription: "Success. Request accepted for processing",
	}, nil, nil
}

type fakeLogs struct {
	mu      sync.Mutex
	entries []*models.PaymentLog
	err     error
}

func (f *fakeLogs) Append(_ context.Context, entry *models.PaymentLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeLogs) all() []*models.PaymentLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.PaymentLog, len(f.entries))
	copy(out, f.entries)
	return out
}

type fakeInitiations struct {
	byMerchantID map[string]*models.PaymentLog
	err          error
}

func (f *fakeInitiations) FindInitiation(_ context.Context, merchantRequestID string) (*models.PaymentLog, error) {
	if f.err != nil {
		return nil, f.err
	}
	e, ok := f.byMerchantID[merchantRequestID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return e, nil
}

type delivery struct {
	url       string
	projectID string
	payload   []byte
}

type fakeDeliverer struct {
	mu         sync.Mutex
	deliveries []delivery
	// failUntil makes the first n calls fail; -1 fails forever
	failUntil int
	block     chan struct{}
	entered   chan struct{}
}

func (f *fakeDeliverer) Deliver(_ context.Context, url, projectID string, payload []byte) error {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, delivery{url: url, projectID: projectID, payload: payload})
	n := len(f.deliveries)
	if f.failUntil < 0 || n <= f.failUntil {
		return fmt.Errorf("delivery %d failed", n)
	}
	return nil
}

func (f *fakeDeliverer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deliveries)
}

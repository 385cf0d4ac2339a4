// Package adaptertest provides adapter doubles for tests in other packages.
package adaptertest

import (
	"context"
	"sync"

	"visaflow/models"

	"github.com/stretchr/testify/mock"
)

// MockAdapter is a testify mock of adapters.Adapter.
type MockAdapter struct {
	mock.Mock
	AdapterID string
}

func NewMockAdapter(id string) *MockAdapter {
	return &MockAdapter{AdapterID: id}
}

func (m *MockAdapter) ID() string { return m.AdapterID }

func (m *MockAdapter) DiscoverSlots(ctx context.Context, q models.SlotQuery) ([]models.SlotCandidate, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SlotCandidate), args.Error(1)
}

func (m *MockAdapter) AttemptBooking(ctx context.Context, req models.BookingRequest) (*models.Appointment, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Appointment), args.Error(1)
}

// FuncAdapter delegates to plain functions and counts calls. Nil functions
// return empty results.
type FuncAdapter struct {
	AdapterID string
	Discover  func(ctx context.Context, q models.SlotQuery) ([]models.SlotCandidate, error)
	Book      func(ctx context.Context, req models.BookingRequest) (*models.Appointment, error)

	mu            sync.Mutex
	discoverCalls int
	bookCalls     int
}

func (f *FuncAdapter) ID() string { return f.AdapterID }

func (f *FuncAdapter) DiscoverSlots(ctx context.Context, q models.SlotQuery) ([]models.SlotCandidate, error) {
	f.mu.Lock()
	f.discoverCalls++
	f.mu.Unlock()
	if f.Discover == nil {
		return nil, nil
	}
	return f.Discover(ctx, q)
}

func (f *FuncAdapter) AttemptBooking(ctx context.Context, req models.BookingRequest) (*models.Appointment, error) {
	f.mu.Lock()
	f.bookCalls++
	f.mu.Unlock()
	if f.Book == nil {
		return nil, nil
	}
	return f.Book(ctx, req)
}

func (f *FuncAdapter) DiscoverCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.discoverCalls
}

func (f *FuncAdapter) BookCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bookCalls
}

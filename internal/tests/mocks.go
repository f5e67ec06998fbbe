package tests

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"schooltrack/internal/domain"
	redisstore "schooltrack/internal/redis"
	"schooltrack/internal/repository"
	"schooltrack/internal/service"
	"schooltrack/internal/stream"
)

// ──────────────────────────────────────────────
// MOCK TRIP REPOSITORY
// ──────────────────────────────────────────────

// MockTripRepository is an in-memory TripRepository with the same conditional
// write semantics as the real store.
type MockTripRepository struct {
	mu       sync.RWMutex
	trips    map[string]*domain.Trip
	boarding map[string]map[string]domain.BoardingState

	// Counters for verification
	CreateCallCount         int32
	CompleteCallCount       int32
	UpdateLocationCallCount int32
	UpdateWeatherCallCount  int32

	// Error injection
	CreateError         error
	GetError            error
	UpdateLocationError error
}

// NewMockTripRepository creates a new mock trip repository.
func NewMockTripRepository() *MockTripRepository {
	return &MockTripRepository{
		trips:    make(map[string]*domain.Trip),
		boarding: make(map[string]map[string]domain.BoardingState),
	}
}

// AddTrip seeds a trip with WAITING rows for the given students.
func (m *MockTripRepository) AddTrip(trip *domain.Trip, studentIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[trip.ID] = trip
	rows := make(map[string]domain.BoardingState, len(studentIDs))
	for _, id := range studentIDs {
		rows[id] = domain.BoardingWaiting
	}
	m.boarding[trip.ID] = rows
}

// SetGetError makes reads fail from now on. Safe to call while the service
// under test is running.
func (m *MockTripRepository) SetGetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetError = err
}

func (m *MockTripRepository) Create(ctx context.Context, trip *domain.Trip, studentIDs []string) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return m.CreateError
	}
	// Conditional insert: at most one IN_PROGRESS trip per driver.
	for _, existing := range m.trips {
		if existing.DriverID == trip.DriverID && existing.Status == domain.TripStatusInProgress {
			return repository.ErrConflict
		}
	}
	copy := *trip
	m.trips[copy.ID] = &copy
	rows := make(map[string]domain.BoardingState, len(studentIDs))
	for _, id := range studentIDs {
		rows[id] = domain.BoardingWaiting
	}
	m.boarding[copy.ID] = rows
	return nil
}

func (m *MockTripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetError != nil {
		return nil, m.GetError
	}
	trip, ok := m.trips[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return m.snapshotLocked(trip), nil
}

func (m *MockTripRepository) GetActiveByDriverID(ctx context.Context, driverID string) (*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetError != nil {
		return nil, m.GetError
	}
	for _, trip := range m.trips {
		if trip.DriverID == driverID && trip.Status == domain.TripStatusInProgress {
			return m.snapshotLocked(trip), nil
		}
	}
	return nil, nil
}

func (m *MockTripRepository) ListActiveByAdminID(ctx context.Context, adminID string) ([]*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Trip
	for _, trip := range m.trips {
		if trip.AdminID == adminID && trip.Status == domain.TripStatusInProgress {
			result = append(result, m.snapshotLocked(trip))
		}
	}
	return result, nil
}

func (m *MockTripRepository) Complete(ctx context.Context, id string, status domain.TripStatus, endedAt time.Time, reason string) (*domain.Trip, error) {
	atomic.AddInt32(&m.CompleteCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	trip, ok := m.trips[id]
	if !ok || trip.Status != domain.TripStatusInProgress {
		return nil, repository.ErrNotFound
	}
	trip.Status = status
	trip.EndTime = endedAt
	trip.CancelReason = reason
	return m.snapshotLocked(trip), nil
}

func (m *MockTripRepository) UpdateLocation(ctx context.Context, id string, pt domain.GeoPoint, at time.Time) (bool, error) {
	atomic.AddInt32(&m.UpdateLocationCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateLocationError != nil {
		return false, m.UpdateLocationError
	}
	trip, ok := m.trips[id]
	if !ok || trip.Status != domain.TripStatusInProgress {
		return false, nil
	}
	trip.CurrentLocation = &pt
	trip.LocationUpdatedAt = at
	return true, nil
}

func (m *MockTripRepository) UpdateWeather(ctx context.Context, id string, w domain.WeatherSnapshot) (bool, error) {
	atomic.AddInt32(&m.UpdateWeatherCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	trip, ok := m.trips[id]
	if !ok || trip.Status != domain.TripStatusInProgress {
		return false, nil
	}
	trip.Weather = &w
	return true, nil
}

func (m *MockTripRepository) SetBoardingState(ctx context.Context, tripID, studentID string, from, to domain.BoardingState) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.boarding[tripID]
	if !ok {
		return false, nil
	}
	current, ok := rows[studentID]
	if !ok || current != from {
		return false, nil
	}
	rows[studentID] = to
	return true, nil
}

func (m *MockTripRepository) GetBoardingState(ctx context.Context, tripID, studentID string) (domain.BoardingState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows, ok := m.boarding[tripID]
	if !ok {
		return "", repository.ErrNotFound
	}
	state, ok := rows[studentID]
	if !ok {
		return "", repository.ErrNotFound
	}
	return state, nil
}

func (m *MockTripRepository) ListBoardingStates(ctx context.Context, tripID string) (map[string]domain.BoardingState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]domain.BoardingState)
	for id, state := range m.boarding[tripID] {
		result[id] = state
	}
	return result, nil
}

// snapshotLocked copies a trip and derives its boarding sets. Callers hold
// at least the read lock.
func (m *MockTripRepository) snapshotLocked(trip *domain.Trip) *domain.Trip {
	copy := *trip
	copy.StudentsOnboard = []string{}
	copy.StudentsExited = []string{}
	for studentID, state := range m.boarding[trip.ID] {
		switch state {
		case domain.BoardingOnboard:
			copy.StudentsOnboard = append(copy.StudentsOnboard, studentID)
		case domain.BoardingExited:
			copy.StudentsExited = append(copy.StudentsExited, studentID)
		}
	}
	return &copy
}

// CountTrips returns the number of stored trips.
func (m *MockTripRepository) CountTrips() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.trips)
}

// GetTrip returns a trip for test assertions.
func (m *MockTripRepository) GetTrip(id string) *domain.Trip {
	trip, _ := m.GetByID(context.Background(), id)
	return trip
}

// ──────────────────────────────────────────────
// MOCK NOTIFICATION REPOSITORY
// ──────────────────────────────────────────────

// MockNotificationRepository is a mock implementation of NotificationRepository.
type MockNotificationRepository struct {
	mu            sync.RWMutex
	notifications []*domain.Notification

	CreateCallCount int32
	CreateError     error
}

// NewMockNotificationRepository creates a new mock notification repository.
func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{}
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *n
	m.notifications = append(m.notifications, &copy)
	return nil
}

func (m *MockNotificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, n := range m.notifications {
		if n.ID == id {
			copy := *n
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockNotificationRepository) ListByRecipient(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Notification
	for i := len(m.notifications) - 1; i >= 0; i-- {
		if m.notifications[i].RecipientUserID != userID {
			continue
		}
		copy := *m.notifications[i]
		result = append(result, &copy)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (m *MockNotificationRepository) MarkRead(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.ID == id {
			if n.Read {
				return false, nil
			}
			n.Read = true
			return true, nil
		}
	}
	return false, repository.ErrNotFound
}

// ForRecipient returns the recipient's notifications for assertions.
func (m *MockNotificationRepository) ForRecipient(userID string) []*domain.Notification {
	result, _ := m.ListByRecipient(context.Background(), userID, 0)
	return result
}

// ──────────────────────────────────────────────
// MOCK BEHAVIOR REPOSITORY
// ──────────────────────────────────────────────

// MockBehaviorRepository is a mock implementation of BehaviorRepository.
type MockBehaviorRepository struct {
	mu      sync.RWMutex
	reports []*domain.BehaviorReport

	CreateCallCount int32
	CreateError     error
}

// NewMockBehaviorRepository creates a new mock behavior repository.
func NewMockBehaviorRepository() *MockBehaviorRepository {
	return &MockBehaviorRepository{}
}

func (m *MockBehaviorRepository) Create(ctx context.Context, r *domain.BehaviorReport) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *r
	m.reports = append(m.reports, &copy)
	return nil
}

func (m *MockBehaviorRepository) ListByStudent(ctx context.Context, studentID string) ([]*domain.BehaviorReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.BehaviorReport
	for i := len(m.reports) - 1; i >= 0; i-- {
		if m.reports[i].StudentID == studentID {
			copy := *m.reports[i]
			result = append(result, &copy)
		}
	}
	return result, nil
}

// ──────────────────────────────────────────────
// MOCK DIRECTORY REPOSITORIES
// ──────────────────────────────────────────────

// MockStudentRepository is a mock implementation of StudentRepository.
type MockStudentRepository struct {
	mu       sync.RWMutex
	students map[string]*domain.Student

	GetError error
}

// NewMockStudentRepository creates a new mock student repository.
func NewMockStudentRepository() *MockStudentRepository {
	return &MockStudentRepository{students: make(map[string]*domain.Student)}
}

// AddStudent adds a student to the mock repository.
func (m *MockStudentRepository) AddStudent(s *domain.Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[s.ID] = s
}

func (m *MockStudentRepository) GetByID(ctx context.Context, id string) (*domain.Student, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *s
	return &copy, nil
}

func (m *MockStudentRepository) ListByDriverID(ctx context.Context, driverID string) ([]*domain.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Student
	for _, s := range m.students {
		if s.DriverID == driverID {
			copy := *s
			result = append(result, &copy)
		}
	}
	return result, nil
}

func (m *MockStudentRepository) ListByParentID(ctx context.Context, parentID string) ([]*domain.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Student
	for _, s := range m.students {
		if s.ParentID == parentID {
			copy := *s
			result = append(result, &copy)
		}
	}
	return result, nil
}

// MockRouteRepository is a mock implementation of RouteRepository.
type MockRouteRepository struct {
	mu     sync.RWMutex
	routes map[string]*domain.Route
}

// NewMockRouteRepository creates a new mock route repository.
func NewMockRouteRepository() *MockRouteRepository {
	return &MockRouteRepository{routes: make(map[string]*domain.Route)}
}

// AddRoute adds a route to the mock repository.
func (m *MockRouteRepository) AddRoute(r *domain.Route) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[r.ID] = r
}

func (m *MockRouteRepository) GetByID(ctx context.Context, id string) (*domain.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.routes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *r
	return &copy, nil
}

func (m *MockRouteRepository) GetByDriverID(ctx context.Context, driverID string) (*domain.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.routes {
		if r.DriverID == driverID {
			copy := *r
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

// NewMockUserRepository creates a new mock user repository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]*domain.User)}
}

// AddUser adds a user to the mock repository.
func (m *MockUserRepository) AddUser(u *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *u
	return &copy, nil
}

// ──────────────────────────────────────────────
// MOCK POSITION SOURCE
// ──────────────────────────────────────────────

// MockPositionSource is a mock device position source. Until a fix is seeded
// with SetFix, Latest fails the way the real store does for a device that has
// not reported.
type MockPositionSource struct {
	mu  sync.RWMutex
	fix domain.GeoPoint
	at  time.Time
	err error

	LatestCallCount int32
}

// NewMockPositionSource creates a new mock position source.
func NewMockPositionSource() *MockPositionSource {
	return &MockPositionSource{err: redisstore.ErrNoFix}
}

// SetFix sets the fix returned by Latest.
func (m *MockPositionSource) SetFix(pt domain.GeoPoint, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fix, m.at, m.err = pt, at, nil
}

// SetError makes Latest fail.
func (m *MockPositionSource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockPositionSource) Latest(ctx context.Context, driverID string) (domain.GeoPoint, time.Time, error) {
	atomic.AddInt32(&m.LatestCallCount, 1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return domain.GeoPoint{}, time.Time{}, m.err
	}
	return m.fix, m.at, nil
}

// ──────────────────────────────────────────────
// MOCK PUBLISHER / EVENT SINK / STREAMS
// ──────────────────────────────────────────────

// MockPublisher records pushed changes.
type MockPublisher struct {
	mu                  sync.RWMutex
	tripChanges         []stream.Op
	notificationChanges []stream.Op
}

// NewMockPublisher creates a new mock change publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) TripChanged(ctx context.Context, t *domain.Trip, op stream.Op) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tripChanges = append(m.tripChanges, op)
}

func (m *MockPublisher) NotificationChanged(ctx context.Context, n *domain.Notification, op stream.Op) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notificationChanges = append(m.notificationChanges, op)
}

// TripChangeCount returns the number of trip changes pushed.
func (m *MockPublisher) TripChangeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tripChanges)
}

// NotificationChangeCount returns the number of notification changes pushed.
func (m *MockPublisher) NotificationChangeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.notificationChanges)
}

// MockSink records emitted domain events for assertions.
type MockSink struct {
	mu     sync.RWMutex
	events []service.Event
}

// NewMockSink creates a new mock event sink.
func NewMockSink() *MockSink {
	return &MockSink{}
}

func (m *MockSink) Emit(ctx context.Context, ev service.Event) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// CountOfType returns how many events of the given type were emitted.
func (m *MockSink) CountOfType(eventType service.EventType) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, ev := range m.events {
		if ev.Type == eventType {
			count++
		}
	}
	return count
}

// EventsOfType returns the emitted events of the given type.
func (m *MockSink) EventsOfType(eventType service.EventType) []service.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []service.Event
	for _, ev := range m.events {
		if ev.Type == eventType {
			result = append(result, ev)
		}
	}
	return result
}

// MockStreamSource hands out subscriptions whose channels tests can feed.
type MockStreamSource struct {
	mu   sync.Mutex
	subs []chan stream.Event
}

// NewMockStreamSource creates a new mock stream source.
func NewMockStreamSource() *MockStreamSource {
	return &MockStreamSource{}
}

func (m *MockStreamSource) Subscribe(ctx context.Context, f stream.Filter) (*stream.Subscription, error) {
	ch := make(chan stream.Event, 16)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()

	var once sync.Once
	return stream.NewSubscription(ch, func() {
		once.Do(func() { close(ch) })
	}), nil
}

// Push delivers an event to every open subscription.
func (m *MockStreamSource) Push(ev stream.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// MockWeatherRefresher counts refresh requests.
type MockWeatherRefresher struct {
	RefreshCallCount int32
}

// NewMockWeatherRefresher creates a new mock weather refresher.
func NewMockWeatherRefresher() *MockWeatherRefresher {
	return &MockWeatherRefresher{}
}

func (m *MockWeatherRefresher) MaybeRefresh(ctx context.Context, tripID string, loc domain.GeoPoint) {
	atomic.AddInt32(&m.RefreshCallCount, 1)
}

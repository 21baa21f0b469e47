package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/joshua-takyi/tourbook/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memStore is an in-memory implementation of every repository interface.
// WithTransaction restores the previous state when fn fails.
type memStore struct {
	mu           sync.Mutex
	packages     map[primitive.ObjectID]models.Package
	bookings     map[string]models.Booking
	counters     map[string]int64
	reviews      []models.Review
	transactions map[string]models.Transaction
	users        map[string]models.User

	// failures injects an error into the named method, consumed per call.
	failures map[string][]error
	calls    map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		packages:     map[primitive.ObjectID]models.Package{},
		bookings:     map[string]models.Booking{},
		counters:     map[string]int64{},
		transactions: map[string]models.Transaction{},
		users:        map[string]models.User{},
		failures:     map[string][]error{},
		calls:        map[string]int{},
	}
}

func (m *memStore) failOn(method string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[method] = append(m.failures[method], errs...)
}

// hit records a call and returns any injected error. Callers hold mu.
func (m *memStore) hit(method string) error {
	m.calls[method]++
	queue := m.failures[method]
	if len(queue) == 0 {
		return nil
	}
	m.failures[method] = queue[1:]
	return queue[0]
}

type memSnapshot struct {
	packages     map[primitive.ObjectID]models.Package
	bookings     map[string]models.Booking
	counters     map[string]int64
	reviews      []models.Review
	transactions map[string]models.Transaction
	users        map[string]models.User
}

func (m *memStore) snapshot() memSnapshot {
	s := memSnapshot{
		packages:     make(map[primitive.ObjectID]models.Package, len(m.packages)),
		bookings:     make(map[string]models.Booking, len(m.bookings)),
		counters:     make(map[string]int64, len(m.counters)),
		reviews:      append([]models.Review(nil), m.reviews...),
		transactions: make(map[string]models.Transaction, len(m.transactions)),
		users:        make(map[string]models.User, len(m.users)),
	}
	for k, v := range m.packages {
		s.packages[k] = v
	}
	for k, v := range m.bookings {
		s.bookings[k] = v
	}
	for k, v := range m.counters {
		s.counters[k] = v
	}
	for k, v := range m.transactions {
		s.transactions[k] = v
	}
	for k, v := range m.users {
		s.users[k] = v
	}
	return s
}

func (m *memStore) restore(s memSnapshot) {
	m.packages = s.packages
	m.bookings = s.bookings
	m.counters = s.counters
	m.reviews = s.reviews
	m.transactions = s.transactions
	m.users = s.users
}

func (m *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	snap := m.snapshot()
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.restore(snap)
		m.mu.Unlock()
		return err
	}
	return nil
}

// packages

func (m *memStore) CreatePackage(ctx context.Context, pkg *models.Package) (*models.Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("CreatePackage"); err != nil {
		return nil, err
	}
	if pkg.ID.IsZero() {
		pkg.ID = primitive.NewObjectID()
	}
	m.packages[pkg.ID] = *pkg
	out := *pkg
	return &out, nil
}

func (m *memStore) GetPackageByID(ctx context.Context, id primitive.ObjectID) (*models.Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("GetPackageByID"); err != nil {
		return nil, err
	}
	p, ok := m.packages[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &p, nil
}

func (m *memStore) GetPackagesByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("GetPackagesByIDs"); err != nil {
		return nil, err
	}
	out := map[primitive.ObjectID]*models.Package{}
	for _, id := range ids {
		if p, ok := m.packages[id]; ok {
			cp := p
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *memStore) ListPackages(ctx context.Context, filter models.PackageFilter) ([]*models.Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("ListPackages"); err != nil {
		return nil, err
	}
	out := []*models.Package{}
	for _, p := range m.packages {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.Search != "" {
			q := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(p.Title), q) && !strings.Contains(strings.ToLower(p.Location), q) {
				continue
			}
		}
		cp := p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && int64(len(out)) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memStore) UpdatePackage(ctx context.Context, id primitive.ObjectID, fields map[string]interface{}) (*models.Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("UpdatePackage"); err != nil {
		return nil, err
	}
	p, ok := m.packages[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "title":
			p.Title = v.(string)
		case "description":
			p.Description = v.(string)
		case "price":
			p.Price = v.(float64)
		case "location":
			p.Location = v.(string)
		case "duration":
			p.Duration = v.(string)
		case "category":
			p.Category = v.(string)
		case "images":
			p.Images = v.([]string)
		case "guideEmail":
			p.GuideEmail = v.(string)
		}
	}
	m.packages[id] = p
	return &p, nil
}

func (m *memStore) DeletePackage(ctx context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("DeletePackage"); err != nil {
		return err
	}
	if _, ok := m.packages[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.packages, id)
	return nil
}

func (m *memStore) IncrementBookingCount(ctx context.Context, id primitive.ObjectID, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("IncrementBookingCount"); err != nil {
		return err
	}
	p, ok := m.packages[id]
	if !ok {
		if delta > 0 {
			return models.ErrNotFound
		}
		return nil
	}
	if delta < 0 && p.BookingCount < -delta {
		return nil
	}
	p.BookingCount += delta
	m.packages[id] = p
	return nil
}

func (m *memStore) SetPackageRating(ctx context.Context, id primitive.ObjectID, rating float64, reviewCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("SetPackageRating"); err != nil {
		return err
	}
	p, ok := m.packages[id]
	if !ok {
		return models.ErrNotFound
	}
	p.Rating = rating
	p.ReviewCount = reviewCount
	m.packages[id] = p
	return nil
}

func (m *memStore) CountPackages(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("CountPackages"); err != nil {
		return 0, err
	}
	return int64(len(m.packages)), nil
}

// bookings

func (m *memStore) InsertBooking(ctx context.Context, booking *models.Booking) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("InsertBooking"); err != nil {
		return nil, err
	}
	if _, ok := m.bookings[booking.BookingID]; ok {
		return nil, models.ErrDuplicate
	}
	if booking.ID.IsZero() {
		booking.ID = primitive.NewObjectID()
	}
	m.bookings[booking.BookingID] = *booking
	return booking, nil
}

func (m *memStore) GetBookingByBookingID(ctx context.Context, bookingID string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("GetBookingByBookingID"); err != nil {
		return nil, err
	}
	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, models.ErrNotFound
	}
	b.Status = models.NormalizeBookingStatus(string(b.Status))
	return &b, nil
}

func (m *memStore) FindLatestBooking(ctx context.Context, email string, packageID primitive.ObjectID) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.Booking
	for _, b := range m.bookings {
		if b.Email != email || b.PackageID != packageID {
			continue
		}
		if latest == nil || b.CreatedAt.After(latest.CreatedAt) || (b.CreatedAt.Equal(latest.CreatedAt) && b.BookingID > latest.BookingID) {
			cp := b
			latest = &cp
		}
	}
	if latest == nil {
		return nil, models.ErrNotFound
	}
	return latest, nil
}

func (m *memStore) sortedBookings(keep func(models.Booking) bool) []*models.Booking {
	out := []*models.Booking{}
	for _, b := range m.bookings {
		if keep(b) {
			cp := b
			cp.Status = models.NormalizeBookingStatus(string(cp.Status))
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingID > out[j].BookingID })
	return out
}

func (m *memStore) ListBookingsByEmail(ctx context.Context, email string) ([]*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedBookings(func(b models.Booking) bool { return b.Email == email }), nil
}

func (m *memStore) ListBookings(ctx context.Context, status models.BookingStatus) ([]*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedBookings(func(b models.Booking) bool {
		return status == "" || models.NormalizeBookingStatus(string(b.Status)) == status
	}), nil
}

func (m *memStore) SetBookingStatus(ctx context.Context, bookingID string, status models.BookingStatus, except []models.BookingStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("SetBookingStatus"); err != nil {
		return false, err
	}
	b, ok := m.bookings[bookingID]
	if !ok {
		return false, models.ErrNotFound
	}
	current := models.NormalizeBookingStatus(string(b.Status))
	for _, e := range except {
		if current == e {
			return false, nil
		}
	}
	b.Status = status
	m.bookings[bookingID] = b
	return true, nil
}

func (m *memStore) MarkBookingPaid(ctx context.Context, bookingID string, paidAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("MarkBookingPaid"); err != nil {
		return err
	}
	b, ok := m.bookings[bookingID]
	if !ok {
		return models.ErrNotFound
	}
	b.PaymentStatus = models.PaymentSucceeded
	b.PaymentDate = &paidAt
	if models.NormalizeBookingStatus(string(b.Status)) == models.BookingPending {
		b.Status = models.BookingConfirmed
	}
	m.bookings[bookingID] = b
	return nil
}

func (m *memStore) SetBookingPaymentStatus(ctx context.Context, bookingID string, status models.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return models.ErrNotFound
	}
	b.PaymentStatus = status
	m.bookings[bookingID] = b
	return nil
}

func (m *memStore) DeleteBookingByBookingID(ctx context.Context, bookingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[bookingID]; !ok {
		return models.ErrNotFound
	}
	delete(m.bookings, bookingID)
	return nil
}

func (m *memStore) CountBookings(ctx context.Context, email string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("CountBookings"); err != nil {
		return 0, err
	}
	var n int64
	for _, b := range m.bookings {
		if email == "" || b.Email == email {
			n++
		}
	}
	return n, nil
}

func (m *memStore) NextPaidBooking(ctx context.Context, email string, fromDate string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var next *models.Booking
	for _, b := range m.bookings {
		if b.Email != email || b.Status != models.BookingConfirmed || b.PaymentStatus != models.PaymentSucceeded || b.Date < fromDate {
			continue
		}
		if next == nil || b.Date < next.Date {
			cp := b
			next = &cp
		}
	}
	if next == nil {
		return nil, models.ErrNotFound
	}
	return next, nil
}

func (m *memStore) MonthlyBookingCounts(ctx context.Context, year int) (map[int]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int]int64{}
	for _, b := range m.bookings {
		d, err := time.Parse("2006-01-02", b.Date)
		if err != nil || d.Year() != year {
			continue
		}
		out[int(d.Month())]++
	}
	return out, nil
}

// counters

func (m *memStore) NextSequence(ctx context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("NextSequence"); err != nil {
		return 0, err
	}
	m.counters[name]++
	return m.counters[name], nil
}

// reviews

func (m *memStore) InsertReview(ctx context.Context, review *models.Review) (*models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("InsertReview"); err != nil {
		return nil, err
	}
	m.reviews = append(m.reviews, *review)
	return review, nil
}

func (m *memStore) ListReviewsByPackage(ctx context.Context, packageID primitive.ObjectID) ([]*models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Review{}
	for i := len(m.reviews) - 1; i >= 0; i-- {
		if m.reviews[i].PackageID == packageID {
			cp := m.reviews[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) ReviewAggregate(ctx context.Context, packageID primitive.ObjectID) (models.ReviewStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("ReviewAggregate"); err != nil {
		return models.ReviewStats{}, err
	}
	var sum, n int
	for _, r := range m.reviews {
		if r.PackageID == packageID {
			sum += r.Rating
			n++
		}
	}
	if n == 0 {
		return models.ReviewStats{}, nil
	}
	return models.ReviewStats{Average: float64(sum) / float64(n), Count: n}, nil
}

// transactions

func (m *memStore) InsertTransaction(ctx context.Context, txn *models.Transaction) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("InsertTransaction"); err != nil {
		return nil, err
	}
	if _, ok := m.transactions[txn.PaymentIntentID]; ok {
		return nil, models.ErrDuplicate
	}
	m.transactions[txn.PaymentIntentID] = *txn
	return txn, nil
}

func (m *memStore) GetTransactionByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[paymentIntentID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &t, nil
}

func (m *memStore) sortedTransactions(keep func(models.Transaction) bool) []*models.Transaction {
	out := []*models.Transaction{}
	for _, t := range m.transactions {
		if keep(t) {
			cp := t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memStore) ListTransactions(ctx context.Context) ([]*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedTransactions(func(models.Transaction) bool { return true }), nil
}

func (m *memStore) ListTransactionsByEmail(ctx context.Context, email string) ([]*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedTransactions(func(t models.Transaction) bool { return t.Email == email }), nil
}

func (m *memStore) ListTransactionsByBookingID(ctx context.Context, bookingID string) ([]*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedTransactions(func(t models.Transaction) bool { return t.BookingID == bookingID }), nil
}

func (m *memStore) MarkTransactionGatewayRefunded(ctx context.Context, paymentIntentID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("MarkTransactionGatewayRefunded"); err != nil {
		return err
	}
	t, ok := m.transactions[paymentIntentID]
	if !ok {
		return models.ErrNotFound
	}
	t.GatewayRefundedAt = &at
	m.transactions[paymentIntentID] = t
	return nil
}

func (m *memStore) MarkTransactionRefunded(ctx context.Context, paymentIntentID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[paymentIntentID]
	if !ok {
		return models.ErrNotFound
	}
	t.Refunded = true
	t.RefundedAt = &at
	m.transactions[paymentIntentID] = t
	return nil
}

func (m *memStore) MarkTransactionsRefundedByBookingID(ctx context.Context, bookingID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("MarkTransactionsRefundedByBookingID"); err != nil {
		return 0, err
	}
	var n int64
	for k, t := range m.transactions {
		if t.BookingID == bookingID && !t.Refunded {
			t.Refunded = true
			t.RefundedAt = &at
			m.transactions[k] = t
			n++
		}
	}
	return n, nil
}

func (m *memStore) SumSucceededAmount(ctx context.Context, email string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("SumSucceededAmount"); err != nil {
		return 0, err
	}
	var total float64
	for _, t := range m.transactions {
		if t.Status != "succeeded" || t.Refunded {
			continue
		}
		if email != "" && t.Email != email {
			continue
		}
		total += t.Amount
	}
	return total, nil
}

// users

func (m *memStore) UpsertUser(ctx context.Context, user *models.User) (*models.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("UpsertUser"); err != nil {
		return nil, false, err
	}
	now := time.Now()
	if existing, ok := m.users[user.Email]; ok {
		existing.LastLoginAt = now
		m.users[user.Email] = existing
		return &existing, false, nil
	}
	stored := *user
	stored.ID = primitive.NewObjectID()
	stored.CreatedAt, stored.UpdatedAt, stored.LastLoginAt = now, now, now
	m.users[user.Email] = stored
	return &stored, true, nil
}

func (m *memStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &u, nil
}

func (m *memStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.User{}
	for _, u := range m.users {
		cp := u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *memStore) UpdateUserRole(ctx context.Context, email string, role models.Role) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	u.Role = role
	m.users[email] = u
	return &u, nil
}

func (m *memStore) UpdateUserStatus(ctx context.Context, email string, status models.UserStatus) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	u.Status = status
	m.users[email] = u
	return &u, nil
}

func (m *memStore) CountUsers(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("CountUsers"); err != nil {
		return 0, err
	}
	return int64(len(m.users)), nil
}

// test helpers

func (m *memStore) addPackage(title string, price float64) primitive.ObjectID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := primitive.NewObjectID()
	m.packages[id] = models.Package{ID: id, Title: title, Price: price, Location: "Accra", Images: []string{"cover.jpg"}, CreatedAt: time.Now()}
	return id
}

func (m *memStore) pkg(id primitive.ObjectID) models.Package {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.packages[id]
}

func (m *memStore) booking(id string) models.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[id]
}

func (m *memStore) txn(id string) (models.Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[id]
	return t, ok
}

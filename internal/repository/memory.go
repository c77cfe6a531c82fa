package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"account-service/internal/apperrors"
	"account-service/internal/models"
)

// MemoryUserRepository keeps users in process. The uniqueness check and the
// insert happen under one lock, mirroring a unique index.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	nextID  int64
	users   map[int64]*models.User
	byEmail map[string]int64
	byPhone map[string]int64
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users:   make(map[int64]*models.User),
		byEmail: make(map[string]int64),
		byPhone: make(map[string]int64),
	}
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *models.User, profile *models.Profile) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	email := models.NormalizeEmail(user.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[email]; exists {
		return nil, apperrors.ErrDuplicateEmail
	}
	if user.PhoneNumber != nil {
		if _, exists := r.byPhone[*user.PhoneNumber]; exists {
			return nil, apperrors.ErrDuplicatePhone
		}
	}

	r.nextID++
	now := time.Now().UTC()
	stored := cloneUser(user)
	stored.ID = r.nextID
	stored.Email = email
	stored.CreatedAt = now
	stored.UpdatedAt = now
	p := *profile
	p.UserID = stored.ID
	stored.Profile = &p

	r.users[stored.ID] = stored
	r.byEmail[email] = stored.ID
	if stored.PhoneNumber != nil {
		r.byPhone[*stored.PhoneNumber] = stored.ID
	}
	return cloneUser(stored), nil
}

func (r *MemoryUserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *MemoryUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[models.NormalizeEmail(email)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return cloneUser(r.users[id]), nil
}

func (r *MemoryUserRepository) SetPassword(ctx context.Context, id int64, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryUserRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	t := at.UTC()
	u.LastLogin = &t
	return nil
}

func (r *MemoryUserRepository) Update(ctx context.Context, id int64, upd models.AdminUserUpdate, profile *models.ProfileUpdate) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}

	next := cloneUser(current)
	next.Apply(upd)
	if next.PhoneNumber != nil {
		if owner, taken := r.byPhone[*next.PhoneNumber]; taken && owner != id {
			return nil, apperrors.ErrDuplicatePhone
		}
	}
	if profile != nil {
		next.Profile.Apply(*profile)
	}
	next.UpdatedAt = time.Now().UTC()

	if current.PhoneNumber != nil {
		delete(r.byPhone, *current.PhoneNumber)
	}
	if next.PhoneNumber != nil {
		r.byPhone[*next.PhoneNumber] = id
	}
	r.users[id] = next
	return cloneUser(next), nil
}

// Delete removes the user and, with it, the profile.
func (r *MemoryUserRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	delete(r.users, id)
	delete(r.byEmail, u.Email)
	if u.PhoneNumber != nil {
		delete(r.byPhone, *u.PhoneNumber)
	}
	return nil
}

func (r *MemoryUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	r.mu.RLock()
	all := make([]*models.User, 0, len(r.users))
	for _, u := range r.users {
		all = append(all, cloneUser(u))
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	total := len(all)
	if offset >= total {
		return []*models.User{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *MemoryUserRepository) Ping(ctx context.Context) error {
	return nil
}

func cloneUser(u *models.User) *models.User {
	c := *u
	if u.PhoneNumber != nil {
		phone := *u.PhoneNumber
		c.PhoneNumber = &phone
	}
	if u.WardNo != nil {
		ward := *u.WardNo
		c.WardNo = &ward
	}
	if u.LastLogin != nil {
		ll := *u.LastLogin
		c.LastLogin = &ll
	}
	if u.Profile != nil {
		p := *u.Profile
		if u.Profile.DateOfBirth != nil {
			dob := *u.Profile.DateOfBirth
			p.DateOfBirth = &dob
		}
		c.Profile = &p
	}
	return &c
}

// MemoryAuditRepository collects audit entries in process.
type MemoryAuditRepository struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func NewMemoryAuditRepository() *MemoryAuditRepository {
	return &MemoryAuditRepository{}
}

func (r *MemoryAuditRepository) Record(ctx context.Context, entry models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.ID = int64(len(r.entries) + 1)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *MemoryAuditRepository) Entries() []models.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.AuditLog, len(r.entries))
	copy(out, r.entries)
	return out
}

// Package testutil holds in-memory stores for tests. The stores honour the
// same rules as the Postgres schema: unique identity email, unique
// (user_id, role) and a role may only reference an existing identity, which
// in turn cannot be deleted while it holds a role.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"academy/internal/domain/accesscontrol"
	"academy/internal/domain/identities"

	"github.com/google/uuid"
)

// Identities is an in-memory identities.Store. Set the *Err fields to make
// the next calls of that method fail.
type Identities struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]identities.Identity
	roles *Roles

	CreateErr error
	GetErr    error
	DeleteErr error

	Creates int
	Deletes int
}

func NewIdentities() *Identities {
	return &Identities{byID: map[uuid.UUID]identities.Identity{}}
}

func (s *Identities) Create(_ context.Context, identity *identities.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CreateErr != nil {
		return s.CreateErr
	}
	identity.Email = identities.NormalizeEmail(identity.Email)
	for _, existing := range s.byID {
		if existing.Email == identity.Email {
			return identities.ErrDuplicateEmail
		}
	}
	if identity.ID == uuid.Nil {
		identity.ID = uuid.New()
	}
	now := time.Now()
	identity.CreatedAt, identity.UpdatedAt = now, now
	s.byID[identity.ID] = *identity
	s.Creates++
	return nil
}

func (s *Identities) GetByID(_ context.Context, id uuid.UUID) (*identities.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.GetErr != nil {
		return nil, s.GetErr
	}
	identity, ok := s.byID[id]
	if !ok {
		return nil, identities.ErrNotFound
	}
	return &identity, nil
}

func (s *Identities) GetByEmail(_ context.Context, email string) (*identities.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.GetErr != nil {
		return nil, s.GetErr
	}
	email = identities.NormalizeEmail(email)
	for _, identity := range s.byID {
		if identity.Email == email {
			return &identity, nil
		}
	}
	return nil, identities.ErrNotFound
}

func (s *Identities) Delete(_ context.Context, id uuid.UUID) error {
	// checked before taking s.mu; Roles locks in the opposite order
	holdsRole := s.roles != nil && s.roles.holdsAny(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	if holdsRole {
		return identities.ErrHasRoles
	}
	if _, ok := s.byID[id]; !ok {
		return identities.ErrNotFound
	}
	delete(s.byID, id)
	s.Deletes++
	return nil
}

// Seed stores an identity with the given password and returns it.
func (s *Identities) Seed(email, password string) *identities.Identity {
	identity := &identities.Identity{Email: email, EmailConfirmed: true}
	if err := identity.Password.Set(password); err != nil {
		panic(err)
	}
	if err := s.Create(context.Background(), identity); err != nil {
		panic(err)
	}
	return identity
}

func (s *Identities) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// Roles is an in-memory accesscontrol.Store that can resolve emails through
// an Identities store for ListAdmins.
type Roles struct {
	mu          sync.Mutex
	assignments []accesscontrol.RoleAssignment
	identities  *Identities

	InsertErr error
	UpsertErr error
	DeleteErr error
	QueryErr  error

	// BeforeUpsert runs at the start of every Upsert, outside the lock.
	BeforeUpsert func(userID uuid.UUID)

	Writes int
}

// NewRoles returns a role store bound to ids. A nil ids disables the
// identity reference check.
func NewRoles(ids *Identities) *Roles {
	s := &Roles{identities: ids}
	if ids != nil {
		ids.roles = s
	}
	return s
}

func (s *Roles) identityExists(userID uuid.UUID) bool {
	if s.identities == nil {
		return true
	}
	s.identities.mu.Lock()
	defer s.identities.mu.Unlock()
	_, ok := s.identities.byID[userID]
	return ok
}

func (s *Roles) holdsAny(userID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if a.UserID == userID {
			return true
		}
	}
	return false
}

func (s *Roles) Insert(_ context.Context, userID uuid.UUID, role accesscontrol.Role) error {
	exists := s.identityExists(userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.InsertErr != nil {
		return s.InsertErr
	}
	if !exists {
		return accesscontrol.ErrUnknownUser
	}
	if s.indexOf(userID, role) >= 0 {
		return accesscontrol.ErrConflict
	}
	s.assignments = append(s.assignments, accesscontrol.RoleAssignment{UserID: userID, Role: role, AssignedAt: time.Now()})
	s.Writes++
	return nil
}

func (s *Roles) Upsert(_ context.Context, userID uuid.UUID, role accesscontrol.Role) error {
	if s.BeforeUpsert != nil {
		s.BeforeUpsert(userID)
	}
	exists := s.identityExists(userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.UpsertErr != nil {
		return s.UpsertErr
	}
	if !exists {
		return accesscontrol.ErrUnknownUser
	}
	if s.indexOf(userID, role) < 0 {
		s.assignments = append(s.assignments, accesscontrol.RoleAssignment{UserID: userID, Role: role, AssignedAt: time.Now()})
	}
	s.Writes++
	return nil
}

func (s *Roles) DeleteByUser(_ context.Context, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.DeleteErr != nil {
		return 0, s.DeleteErr
	}
	kept := s.assignments[:0]
	var removed int64
	for _, a := range s.assignments {
		if a.UserID == userID {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	s.assignments = kept
	s.Writes++
	return removed, nil
}

func (s *Roles) ListByUser(_ context.Context, userID uuid.UUID) ([]accesscontrol.RoleAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.QueryErr != nil {
		return nil, s.QueryErr
	}
	var out []accesscontrol.RoleAssignment
	for _, a := range s.assignments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Roles) HasRole(_ context.Context, userID uuid.UUID, role accesscontrol.Role) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.QueryErr != nil {
		return false, s.QueryErr
	}
	return s.indexOf(userID, role) >= 0, nil
}

func (s *Roles) HasAnyRole(_ context.Context, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.QueryErr != nil {
		return false, s.QueryErr
	}
	for _, a := range s.assignments {
		if a.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Roles) AnyAssignment(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.QueryErr != nil {
		return false, s.QueryErr
	}
	return len(s.assignments) > 0, nil
}

func (s *Roles) ListAdmins(ctx context.Context) ([]accesscontrol.AdminUser, error) {
	s.mu.Lock()
	if s.QueryErr != nil {
		s.mu.Unlock()
		return nil, s.QueryErr
	}
	assignments := append([]accesscontrol.RoleAssignment(nil), s.assignments...)
	s.mu.Unlock()

	admins := []accesscontrol.AdminUser{}
	for _, a := range assignments {
		var email string
		if s.identities != nil {
			identity, err := s.identities.GetByID(ctx, a.UserID)
			if err != nil {
				continue
			}
			email = identity.Email
		}
		admins = append(admins, accesscontrol.AdminUser{UserID: a.UserID, Email: email, Role: a.Role, RoleAssignedAt: a.AssignedAt})
	}
	sort.SliceStable(admins, func(i, j int) bool { return admins[i].RoleAssignedAt.After(admins[j].RoleAssignedAt) })
	return admins, nil
}

// Grant assigns a role directly, bypassing failure injection.
func (s *Roles) Grant(userID uuid.UUID, role accesscontrol.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(userID, role) < 0 {
		s.assignments = append(s.assignments, accesscontrol.RoleAssignment{UserID: userID, Role: role, AssignedAt: time.Now()})
	}
}

func (s *Roles) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.assignments)
}

func (s *Roles) indexOf(userID uuid.UUID, role accesscontrol.Role) int {
	for i, a := range s.assignments {
		if a.UserID == userID && a.Role == role {
			return i
		}
	}
	return -1
}

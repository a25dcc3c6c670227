// Package provisioning creates and removes admin accounts.
//
// Each operation is a short saga over two stores that share no transaction:
// the identity store (accounts) and the role store (user_roles). Ordering and
// compensation keep the two consistent:
//
//   - CreateAdmin creates the identity first, then the role. If the role
//     insert fails the identity is deleted again before returning.
//   - DeleteAdmin removes roles first, then the identity. If the identity
//     delete fails the account is left without a role and the failure is
//     reported as IdentityDeletionFailed so an operator can reconcile it.
//   - BootstrapInitialAdmin converges: it only acts when no role exists, reuses
//     a bootstrap identity left behind by an earlier partial run and upserts
//     the role. The role store refuses a role for a missing identity, so if
//     the bootstrap identity disappears between lookup and upsert the lookup
//     runs once more.
package provisioning

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"academy/internal/auth"
	"academy/internal/authz"
	"academy/internal/domain/accesscontrol"
	"academy/internal/domain/identities"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultBootstrapEmail    = "admin@admin.xyz"
	DefaultBootstrapPassword = "admin1"

	compensationTimeout = 10 * time.Second
	bootstrapAttempts   = 2
)

type Config struct {
	Identities    identities.Store
	Roles         accesscontrol.Store
	Authenticator auth.Authenticator
	Checker       authz.Checker
	Logger        *zap.SugaredLogger

	BootstrapEmail    string
	BootstrapPassword string
}

type Service struct {
	identities identities.Store
	roles      accesscontrol.Store
	authn      auth.Authenticator
	authz      authz.Checker
	logger     *zap.SugaredLogger

	bootstrapEmail    string
	bootstrapPassword string
	bootstrapMu       sync.Mutex
}

func NewService(cfg Config) *Service {
	s := &Service{
		identities:        cfg.Identities,
		roles:             cfg.Roles,
		authn:             cfg.Authenticator,
		authz:             cfg.Checker,
		logger:            cfg.Logger,
		bootstrapEmail:    identities.NormalizeEmail(cfg.BootstrapEmail),
		bootstrapPassword: cfg.BootstrapPassword,
	}
	if s.logger == nil {
		s.logger = zap.NewNop().Sugar()
	}
	if s.bootstrapEmail == "" {
		s.bootstrapEmail = DefaultBootstrapEmail
	}
	if s.bootstrapPassword == "" {
		s.bootstrapPassword = DefaultBootstrapPassword
	}
	return s
}

type CreateAdminInput struct {
	Email    string
	Password string
	Role     string
}

type BootstrapResult struct {
	AlreadySetup bool
	Email        string
	UserID       uuid.UUID
}

// Caller resolves a bearer token to a live identity.
func (s *Service) Caller(ctx context.Context, token string) (*identities.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, newError(KindUnauthenticated, "No authorization header", nil)
	}
	claims, err := s.authn.ValidateToken(token)
	if err != nil {
		return nil, newError(KindUnauthenticated, "Unauthorized", err)
	}
	identity, err := s.identities.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, identities.ErrNotFound) {
			return nil, newError(KindUnauthenticated, "Unauthorized", err)
		}
		// the token may be fine; do not sign the caller out over a store outage
		s.logger.Errorw("error resolving caller", "user_id", claims.UserID, "error", err)
		return nil, newError(KindIdentityLookupFailed, "Failed to resolve caller", err)
	}
	return identity, nil
}

// requireSuperAdmin authenticates the token and checks the super_admin role.
// A role store failure is still Forbidden (nothing may be mutated) but wraps
// authz.ErrUnavailable so it can be told apart from a missing role.
func (s *Service) requireSuperAdmin(ctx context.Context, token, action string) (*identities.Identity, error) {
	caller, err := s.Caller(ctx, token)
	if err != nil {
		return nil, err
	}

	ok, err := s.authz.HasRole(ctx, caller.ID, accesscontrol.RoleSuperAdmin)
	if err != nil {
		s.logger.Errorw("role check failed", "user_id", caller.ID, "error", err)
		return nil, newError(KindForbidden, "Authorization check unavailable", err)
	}
	if !ok {
		return nil, newError(KindForbidden, "Only super admins can "+action, nil)
	}
	return caller, nil
}

// CreateAdmin provisions a new account holding role and returns its id.
func (s *Service) CreateAdmin(ctx context.Context, token string, in CreateAdminInput) (uuid.UUID, error) {
	caller, err := s.requireSuperAdmin(ctx, token, "create new admins")
	if err != nil {
		return uuid.Nil, err
	}

	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" || strings.TrimSpace(in.Role) == "" {
		return uuid.Nil, newError(KindInvalidArgument, "Missing required fields: email, password, role", nil)
	}
	role := accesscontrol.Role(in.Role)
	if !role.Valid() {
		return uuid.Nil, newError(KindInvalidArgument, "Invalid role. Must be admin or super_admin", nil)
	}

	identity := &identities.Identity{Email: email, EmailConfirmed: true}
	if err := identity.Password.Set(in.Password); err != nil {
		return uuid.Nil, newError(KindIdentityCreationFailed, "Failed to hash password", err)
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		s.logger.Errorw("error creating user", "email", email, "error", err)
		return uuid.Nil, newError(KindIdentityCreationFailed, identityErrorMessage(err), err)
	}

	if err := s.roles.Insert(ctx, identity.ID, role); err != nil {
		s.logger.Errorw("error assigning role", "user_id", identity.ID, "role", role, "error", err)
		s.compensateCreate(ctx, identity.ID, err)
		return uuid.Nil, newError(KindRoleAssignmentFailed, "Failed to assign admin role", err)
	}

	s.logger.Infow("admin created", "email", identity.Email, "role", role, "user_id", identity.ID, "created_by", caller.ID)
	return identity.ID, nil
}

// compensateCreate removes an identity whose role insert failed. It runs on a
// context detached from the request so a cancelled client does not leave a
// credential-bearing account without a role. Its own failure is logged only;
// the caller still sees the role assignment error.
func (s *Service) compensateCreate(ctx context.Context, id uuid.UUID, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := s.identities.Delete(ctx, id); err != nil {
		s.logger.Errorw("compensation failed: orphaned identity left without role",
			"user_id", id, "cause", cause, "error", err)
		return
	}
	s.logger.Warnw("rolled back identity after failed role assignment", "user_id", id)
}

// DeleteAdmin removes every role of target and then its identity. Callers may
// not delete themselves.
//
// The self-deletion guard compares identifiers and assumes the identity store
// never reuses an id after deletion.
func (s *Service) DeleteAdmin(ctx context.Context, token, target string) error {
	caller, err := s.requireSuperAdmin(ctx, token, "delete admins")
	if err != nil {
		return err
	}

	target = strings.TrimSpace(target)
	if target == "" {
		return newError(KindInvalidArgument, "Missing required field: userId", nil)
	}
	targetID, err := uuid.Parse(target)
	if err != nil {
		return newError(KindInvalidArgument, "Invalid userId", err)
	}
	if targetID == caller.ID {
		return newError(KindSelfDeletionForbidden, "You cannot delete your own admin account", nil)
	}

	removed, err := s.roles.DeleteByUser(ctx, targetID)
	if err != nil {
		s.logger.Errorw("error removing role", "user_id", targetID, "error", err)
		return newError(KindRoleRemovalFailed, "Failed to remove admin role", err)
	}

	// From here on the target holds no role. If the identity delete fails the
	// account stays roleless until someone retries; that window is accepted.
	if err := s.identities.Delete(ctx, targetID); err != nil {
		s.logger.Errorw("error deleting user after roles were removed, needs reconciliation",
			"user_id", targetID, "roles_removed", removed, "error", err)
		return newError(KindIdentityDeletionFailed, identityErrorMessage(err), err)
	}

	s.logger.Infow("admin deleted", "user_id", targetID, "roles_removed", removed, "deleted_by", caller.ID)
	return nil
}

// BootstrapInitialAdmin guarantees that a super admin exists. It is safe to
// call repeatedly and concurrently.
//
// The in-process mutex only serialises callers sharing this Service. Across
// processes convergence comes from the unique (user_id, role) constraint and
// the upsert, plus the unique email on identities.
func (s *Service) BootstrapInitialAdmin(ctx context.Context) (BootstrapResult, error) {
	s.bootstrapMu.Lock()
	defer s.bootstrapMu.Unlock()

	exists, err := s.roles.AnyAssignment(ctx)
	if err != nil {
		s.logger.Errorw("error checking existing admins", "error", err)
		return BootstrapResult{}, newError(KindBootstrapFailed, "Failed to check existing admins", err)
	}
	if exists {
		return BootstrapResult{AlreadySetup: true}, nil
	}

	var identity *identities.Identity
	for attempt := 1; ; attempt++ {
		identity, err = s.bootstrapIdentity(ctx)
		if err != nil {
			return BootstrapResult{}, err
		}

		err = s.roles.Upsert(ctx, identity.ID, accesscontrol.RoleSuperAdmin)
		if err == nil {
			break
		}
		if errors.Is(err, accesscontrol.ErrUnknownUser) && attempt < bootstrapAttempts {
			s.logger.Warnw("bootstrap user vanished before role assignment, retrying", "user_id", identity.ID)
			continue
		}
		s.logger.Errorw("error assigning super_admin role", "user_id", identity.ID, "error", err)
		return BootstrapResult{}, newError(KindBootstrapFailed, "Failed to assign super_admin role", err)
	}

	s.logger.Infow("initial super admin created", "email", identity.Email, "user_id", identity.ID)
	return BootstrapResult{Email: identity.Email, UserID: identity.ID}, nil
}

func (s *Service) bootstrapIdentity(ctx context.Context) (*identities.Identity, error) {
	existing, err := s.identities.GetByEmail(ctx, s.bootstrapEmail)
	switch {
	case err == nil:
		s.logger.Infow("bootstrap user already exists, adding role", "user_id", existing.ID)
		return existing, nil
	case !errors.Is(err, identities.ErrNotFound):
		s.logger.Errorw("error looking up bootstrap user", "error", err)
		return nil, newError(KindBootstrapFailed, "Failed to look up initial admin", err)
	}

	identity := &identities.Identity{Email: s.bootstrapEmail, EmailConfirmed: true}
	if err := identity.Password.Set(s.bootstrapPassword); err != nil {
		return nil, newError(KindBootstrapFailed, "Failed to hash password", err)
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, identities.ErrDuplicateEmail) {
			// another process won the race
			if existing, getErr := s.identities.GetByEmail(ctx, s.bootstrapEmail); getErr == nil {
				return existing, nil
			}
		}
		s.logger.Errorw("error creating initial admin", "error", err)
		return nil, newError(KindBootstrapFailed, identityErrorMessage(err), err)
	}
	s.logger.Infow("initial admin user created", "user_id", identity.ID)
	return identity, nil
}

// identityErrorMessage passes through the store's own message for the
// failures a caller can act on.
func identityErrorMessage(err error) string {
	switch {
	case errors.Is(err, identities.ErrDuplicateEmail):
		return identities.ErrDuplicateEmail.Error()
	case errors.Is(err, identities.ErrNotFound):
		return "User not found"
	}
	return err.Error()
}

package provisioning_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"academy/internal/auth"
	"academy/internal/authz"
	"academy/internal/domain/accesscontrol"
	"academy/internal/domain/identities"
	"academy/internal/provisioning"
	"academy/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc   *provisioning.Service
	ids   *testutil.Identities
	roles *testutil.Roles
	authn *auth.JWTAuthenticator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ids := testutil.NewIdentities()
	roles := testutil.NewRoles(ids)
	authn := auth.NewJWTAuthenticator("test-secret", "academy", "academy", time.Hour)
	svc := provisioning.NewService(provisioning.Config{
		Identities:    ids,
		Roles:         roles,
		Authenticator: authn,
		Checker:       authz.NewRoleChecker(roles),
	})
	return &fixture{svc: svc, ids: ids, roles: roles, authn: authn}
}

// caller seeds an identity holding role (none when role is empty) and
// returns it with a valid token.
func (f *fixture) caller(t *testing.T, email string, role accesscontrol.Role) (*identities.Identity, string) {
	t.Helper()
	identity := f.ids.Seed(email, "password")
	if role != "" {
		f.roles.Grant(identity.ID, role)
	}
	token, err := f.authn.GenerateToken(identity.ID, identity.Email)
	require.NoError(t, err)
	return identity, token
}

func kindOf(t *testing.T, err error) provisioning.Kind {
	t.Helper()
	var perr *provisioning.Error
	require.True(t, errors.As(err, &perr), "expected *provisioning.Error, got %T: %v", err, err)
	return perr.Kind
}

func TestCreateAdminRequiresAuthentication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := provisioning.CreateAdminInput{Email: "a@x.com", Password: "secret1", Role: "admin"}

	for name, token := range map[string]string{"missing": "", "invalid": "nope"} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreateAdmin(ctx, token, in)
			assert.ErrorIs(t, err, provisioning.ErrUnauthenticated)
		})
	}

	t.Run("identity deleted after token issued", func(t *testing.T) {
		identity, token := f.caller(t, "gone@x.com", accesscontrol.RoleSuperAdmin)
		_, err := f.roles.DeleteByUser(ctx, identity.ID)
		require.NoError(t, err)
		require.NoError(t, f.ids.Delete(ctx, identity.ID))

		_, err = f.svc.CreateAdmin(ctx, token, in)
		assert.ErrorIs(t, err, provisioning.ErrUnauthenticated)
	})

	t.Run("identity store outage is not a sign-out", func(t *testing.T) {
		_, token := f.caller(t, "root@x.com", accesscontrol.RoleSuperAdmin)
		f.ids.GetErr = errors.New("db down")
		defer func() { f.ids.GetErr = nil }()

		_, err := f.svc.CreateAdmin(ctx, token, in)
		assert.ErrorIs(t, err, provisioning.ErrIdentityLookupFailed)
		assert.NotErrorIs(t, err, provisioning.ErrUnauthenticated)
	})
}

func TestNonSuperAdminIsForbiddenWithoutMutation(t *testing.T) {
	for _, role := range []accesscontrol.Role{"", accesscontrol.RoleAdmin} {
		t.Run("role="+string(role), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			_, token := f.caller(t, "caller@x.com", role)
			victim, _ := f.caller(t, "victim@x.com", accesscontrol.RoleAdmin)
			idsBefore, rolesBefore := f.ids.Len(), f.roles.Len()

			_, err := f.svc.CreateAdmin(ctx, token, provisioning.CreateAdminInput{Email: "a@x.com", Password: "secret1", Role: "admin"})
			assert.ErrorIs(t, err, provisioning.ErrForbidden)

			err = f.svc.DeleteAdmin(ctx, token, victim.ID.String())
			assert.ErrorIs(t, err, provisioning.ErrForbidden)

			assert.Equal(t, idsBefore, f.ids.Len())
			assert.Equal(t, rolesBefore, f.roles.Len())
		})
	}
}

func TestRoleStoreOutageIsForbiddenButDistinguishable(t *testing.T) {
	f := newFixture(t)
	_, token := f.caller(t, "root@x.com", accesscontrol.RoleSuperAdmin)
	f.roles.QueryErr = errors.New("connection reset")

	_, err := f.svc.CreateAdmin(context.Background(), token, provisioning.CreateAdminInput{Email: "a@x.com", Password: "secret1", Role: "admin"})
	assert.ErrorIs(t, err, provisioning.ErrForbidden)
	assert.ErrorIs(t, err, authz.ErrUnavailable)
	assert.Equal(t, 1, f.ids.Len())
}

func TestCreateAdminValidatesInput(t *testing.T) {
	f := newFixture(t)
	_, token := f.caller(t, "root@x.com", accesscontrol.RoleSuperAdmin)

	tests := []struct {
		name string
		in   provisioning.CreateAdminInput
	}{
		{"missing email", provisioning.CreateAdminInput{Password: "secret1", Role: "admin"}},
		{"missing password", provisioning.CreateAdminInput{Email: "a@x.com", Role: "admin"}},
		{"missing role", provisioning.CreateAdminInput{Email: "a@x.com", Password: "secret1"}},
		{"unknown role", provisioning.CreateAdminInput{Email: "a@x.com", Password: "secret1", Role: "owner"}},
		{"role wrong case", provisioning.CreateAdminInput{Email: "a@x.com", Password: "secret1", Role: "Admin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateAdmin(context.Background(), token, tt.in)
			assert.ErrorIs(t, err, provisioning.ErrInvalidArgument)
			assert.Equal(t, 1, f.ids.Len(), "no identity may be created")
		})
	}
}

func TestCreateAdminAcceptsWhitespacePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, token := f.caller(t, "root@x.com", accesscontrol.RoleSuperAdmin)

	id, err := f.svc.CreateAdmin(ctx, token, provisioning.CreateAdminInput{Email: "a@x.com", Password: "   ", Role: "admin"})
	require.NoError(t, err)

	identity, err := f.ids.GetByID(ctx, id)
	require.NoError(t, err)
	assert.NoError(t, identity.Password.Compare("   "))
}

func TestCreateAdminSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, token := f.caller(t, "root@x.com", accesscontrol.RoleSuperAdmin)

	id, err := f.svc.CreateAdmin(ctx, token, provisioning.CreateAdminInput{Email: "a@x.com", Password: "secret1", Role: "admin"})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	identity, err := f.ids.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, identity.EmailConfirmed)
	assert.NoError(t, identity.Password.Compare("secret1"))

	admins, err := f.roles.ListAdmins(ctx)
	require.NoError(t, err)
	var found bool
	for _, a := range admins {
		if a.UserID == id {
			found = true
			assert.Equal(t, accesscontrol.RoleAdmin, a.Role)
			assert.Equal(t, "a@x.com", a.Email)
		}
	}
	assert.True(t, found, "listing should include the new admin")
}

func TestCreateAdminDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	_, token := f.caller(t, "root@x.com", accesscontrol.RoleSuperAdmin)

	_, err := f.svc.CreateAdmin(context.Background(), token, provisioning.CreateAdminInput{Email: "ROOT@x.com", Password: "secret1", Role: "admin"})
	require.ErrorIs(t, err, provisioning.ErrIdentityCreationFailed)

	var perr *provisioning.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, identities.ErrDuplicateEmail.Error(), perr.Message)
}

func TestCreateAdminCompensatesFailedRoleInsert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, token := f.caller(t, "root@x.com", accesscontrol.RoleSuperAdmin)
	f.roles.InsertErr = errors.New("insert failed")

	_, err := f.svc.CreateAdmin(ctx, token, provisioning.CreateAdminInput{Email: "a@x.com", Password: "secret1", Role: "admin"})
	require.ErrorIs(t, err, provisioning.ErrRoleAssignmentFailed)

	_, err = f.ids.GetByEmail(ctx, "a@x.com")
	assert.ErrorIs(t, err, identities.ErrNotFound, "compensation should delete the created identity")
	assert.Equal(t, 1, f.ids.Deletes)
}

func TestCreateAdminCompensationFailureKeepsOriginalError(t *testing.T) {
	f := newFixture(t)
	_, token := f.caller(t, "root@x.com", accesscontrol.RoleSuperAdmin)
	f.roles.InsertErr = errors.New("insert failed")
	f.ids.DeleteErr = errors.New("delete failed")

	_, err := f.svc.CreateAdmin(context.Background(), token, provisioning.CreateAdminInput{Email: "a@x.com", Password: "secret1", Role: "admin"})
	assert.ErrorIs(t, err, provisioning.ErrRoleAssignmentFailed)
	assert.Equal(t, provisioning.KindRoleAssignmentFailed, kindOf(t, err))
}

func TestCreateAdminCompensatesEvenWhenRequestIsCancelled(t *testing.T) {
	f := newFixture(t)
	_, token := f.caller(t, "root@x.com", accesscontrol.RoleSuperAdmin)
	f.roles.InsertErr = context.Canceled

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.CreateAdmin(ctx, token, provisioning.CreateAdminInput{Email: "a@x.com", Password: "secret1", Role: "admin"})
	require.ErrorIs(t, err, provisioning.ErrRoleAssignmentFailed)
	assert.Equal(t, 1, f.ids.Len())
}

func TestDeleteAdminRejectsSelfDeletion(t *testing.T) {
	f := newFixture(t)
	root, token := f.caller(t, "root@x.com", accesscontrol.RoleSuperAdmin)

	err := f.svc.DeleteAdmin(context.Background(), token, root.ID.String())
	assert.ErrorIs(t, err, provisioning.ErrSelfDeletionForbidden)
	assert.ErrorIs(t, err, provisioning.ErrInvalidArgument)
	assert.Equal(t, 1, f.ids.Len())
	assert.Equal(t, 1, f.roles.Len())
	assert.Zero(t, f.roles.Writes)
}

func TestDeleteAdminValidatesTarget(t *testing.T) {
	f := newFixture(t)
	_, token := f.caller(t, "root@x.com", accesscontrol.RoleSuperAdmin)

	for _, target := range []string{"", "  ", "not-a-uuid"} {
		err := f.svc.DeleteAdmin(context.Background(), token, target)
		assert.ErrorIs(t, err, provisioning.ErrInvalidArgument, "target %q", target)
	}
}

func TestDeleteAdminSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, token := f.caller(t, "root@x.com", accesscontrol.RoleSuperAdmin)
	target, _ := f.caller(t, "a@x.com", accesscontrol.RoleAdmin)
	f.roles.Grant(target.ID, accesscontrol.RoleSuperAdmin)

	require.NoError(t, f.svc.DeleteAdmin(ctx, token, target.ID.String()))

	_, err := f.ids.GetByID(ctx, target.ID)
	assert.ErrorIs(t, err, identities.ErrNotFound)
	admins, err := f.roles.ListAdmins(ctx)
	require.NoError(t, err)
	for _, a := range admins {
		assert.NotEqual(t, target.ID, a.UserID)
	}
}

func TestDeleteAdminRoleRemovalFailureStopsBeforeIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, token := f.caller(t, "root@x.com", accesscontrol.RoleSuperAdmin)
	target, _ := f.caller(t, "a@x.com", accesscontrol.RoleAdmin)
	f.roles.DeleteErr = errors.New("boom")

	err := f.svc.DeleteAdmin(ctx, token, target.ID.String())
	assert.ErrorIs(t, err, provisioning.ErrRoleRemovalFailed)

	_, err = f.ids.GetByID(ctx, target.ID)
	assert.NoError(t, err, "identity must survive when role removal fails")
}

func TestDeleteAdminIdentityFailureLeavesRolelessIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, token := f.caller(t, "root@x.com", accesscontrol.RoleSuperAdmin)
	target, _ := f.caller(t, "a@x.com", accesscontrol.RoleAdmin)
	f.ids.DeleteErr = errors.New("auth provider down")

	err := f.svc.DeleteAdmin(ctx, token, target.ID.String())
	require.ErrorIs(t, err, provisioning.ErrIdentityDeletionFailed)

	roles, err := f.roles.ListByUser(ctx, target.ID)
	require.NoError(t, err)
	assert.Empty(t, roles, "roles are removed before the identity")
	_, err = f.ids.GetByID(ctx, target.ID)
	assert.NoError(t, err)
}

func TestBootstrapFreshSystem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.BootstrapInitialAdmin(ctx)
	require.NoError(t, err)
	assert.False(t, res.AlreadySetup)
	assert.Equal(t, provisioning.DefaultBootstrapEmail, res.Email)

	identity, err := f.ids.GetByEmail(ctx, provisioning.DefaultBootstrapEmail)
	require.NoError(t, err)
	assert.NoError(t, identity.Password.Compare(provisioning.DefaultBootstrapPassword))
	ok, err := f.roles.HasRole(ctx, identity.ID, accesscontrol.RoleSuperAdmin)
	require.NoError(t, err)
	assert.True(t, ok)

	creates, writes := f.ids.Creates, f.roles.Writes
	res, err = f.svc.BootstrapInitialAdmin(ctx)
	require.NoError(t, err)
	assert.True(t, res.AlreadySetup)
	assert.Equal(t, creates, f.ids.Creates)
	assert.Equal(t, writes, f.roles.Writes)
}

func TestBootstrapReusesIdentityFromPartialRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	leftover := f.ids.Seed(provisioning.DefaultBootstrapEmail, "whatever")

	res, err := f.svc.BootstrapInitialAdmin(ctx)
	require.NoError(t, err)
	assert.Equal(t, leftover.ID, res.UserID)
	assert.Equal(t, 1, f.ids.Len())
	ok, err := f.roles.HasRole(ctx, leftover.ID, accesscontrol.RoleSuperAdmin)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBootstrapFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
	}{
		{"existence check", func(f *fixture) { f.roles.QueryErr = errors.New("down") }},
		{"identity lookup", func(f *fixture) { f.ids.GetErr = errors.New("down") }},
		{"identity create", func(f *fixture) { f.ids.CreateErr = errors.New("down") }},
		{"role upsert", func(f *fixture) { f.roles.UpsertErr = errors.New("down") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)
			_, err := f.svc.BootstrapInitialAdmin(context.Background())
			assert.ErrorIs(t, err, provisioning.ErrBootstrapFailed)
		})
	}
}

func TestBootstrapRetryAfterFailedUpsertConverges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.roles.UpsertErr = errors.New("down")
	_, err := f.svc.BootstrapInitialAdmin(ctx)
	require.Error(t, err)

	f.roles.UpsertErr = nil
	res, err := f.svc.BootstrapInitialAdmin(ctx)
	require.NoError(t, err)
	assert.False(t, res.AlreadySetup)
	assert.Equal(t, 1, f.ids.Len())
	assert.Equal(t, 1, f.roles.Len())
}

func TestBootstrapIdentityDeletedBeforeRoleAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	leftover := f.ids.Seed(provisioning.DefaultBootstrapEmail, "whatever")

	// a concurrent delete removes the identity the first lookup returned
	var once sync.Once
	f.roles.BeforeUpsert = func(userID uuid.UUID) {
		once.Do(func() { require.NoError(t, f.ids.Delete(ctx, userID)) })
	}

	res, err := f.svc.BootstrapInitialAdmin(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, leftover.ID, res.UserID)

	_, err = f.ids.GetByID(ctx, res.UserID)
	require.NoError(t, err, "the role must reference a live identity")
	admins, err := f.roles.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, res.UserID, admins[0].UserID)
}

func TestRolesRequireLiveIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	identity, _ := f.caller(t, "a@x.com", accesscontrol.RoleAdmin)

	assert.ErrorIs(t, f.roles.Insert(ctx, uuid.New(), accesscontrol.RoleAdmin), accesscontrol.ErrUnknownUser)
	assert.ErrorIs(t, f.roles.Upsert(ctx, uuid.New(), accesscontrol.RoleAdmin), accesscontrol.ErrUnknownUser)
	assert.ErrorIs(t, f.ids.Delete(ctx, identity.ID), identities.ErrHasRoles)
}

func TestBootstrapConcurrentCallsCreateOneAdmin(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.BootstrapInitialAdmin(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.ids.Len())
	assert.Equal(t, 1, f.roles.Len())
}

func TestBootstrapCustomCredentials(t *testing.T) {
	ids := testutil.NewIdentities()
	roles := testutil.NewRoles(ids)
	svc := provisioning.NewService(provisioning.Config{
		Identities:        ids,
		Roles:             roles,
		Authenticator:     auth.NewJWTAuthenticator("s", "a", "a", time.Hour),
		Checker:           authz.NewRoleChecker(roles),
		BootstrapEmail:    " Ops@Academy.test ",
		BootstrapPassword: "changeme",
	})

	res, err := svc.BootstrapInitialAdmin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ops@academy.test", res.Email)
}

func TestEndToEndCreateListDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.BootstrapInitialAdmin(ctx)
	require.NoError(t, err)
	root, err := f.ids.GetByEmail(ctx, provisioning.DefaultBootstrapEmail)
	require.NoError(t, err)
	rootToken, err := f.authn.GenerateToken(root.ID, root.Email)
	require.NoError(t, err)

	id, err := f.svc.CreateAdmin(ctx, rootToken, provisioning.CreateAdminInput{Email: "a@x.com", Password: "secret1", Role: "admin"})
	require.NoError(t, err)

	// the new plain admin cannot provision further admins
	adminToken, err := f.authn.GenerateToken(id, "a@x.com")
	require.NoError(t, err)
	_, err = f.svc.CreateAdmin(ctx, adminToken, provisioning.CreateAdminInput{Email: "b@x.com", Password: "secret1", Role: "admin"})
	require.ErrorIs(t, err, provisioning.ErrForbidden)

	require.NoError(t, f.svc.DeleteAdmin(ctx, rootToken, id.String()))
	admins, err := f.roles.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, root.ID, admins[0].UserID)
}

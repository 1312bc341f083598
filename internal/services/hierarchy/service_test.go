package hierarchy

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/apierr"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/db/models"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/repository"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/services/access"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/services/audit"
)

type fakeTenants struct {
	seq  int64
	rows map[int64]*models.Tenant
}

func (f *fakeTenants) Create(ctx context.Context, tenant *models.Tenant) error {
	f.seq++
	tenant.ID = f.seq
	f.rows[tenant.ID] = tenant
	return nil
}

func (f *fakeTenants) GetByID(ctx context.Context, id int64) (*models.Tenant, error) {
	if tenant, ok := f.rows[id]; ok {
		return tenant, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeTenants) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	for _, tenant := range f.rows {
		if tenant.Slug == slug {
			return tenant, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeTenants) Update(ctx context.Context, tenant *models.Tenant) error {
	if _, ok := f.rows[tenant.ID]; !ok {
		return repository.ErrNotFound
	}
	f.rows[tenant.ID] = tenant
	return nil
}

func (f *fakeTenants) Delete(ctx context.Context, id int64) error {
	delete(f.rows, id)
	return nil
}

func (f *fakeTenants) List(ctx context.Context) ([]models.Tenant, error) { return nil, nil }

func (f *fakeTenants) ListWhere(ctx context.Context, cond string, args ...any) ([]models.Tenant, error) {
	return nil, nil
}

func (f *fakeTenants) ListSubtree(ctx context.Context, pathPrefix string) ([]models.Tenant, error) {
	var out []models.Tenant
	for _, tenant := range f.rows {
		if strings.HasPrefix(tenant.Path, pathPrefix) {
			out = append(out, *tenant)
		}
	}
	return out, nil
}

func (f *fakeTenants) ListChildren(ctx context.Context, parentID int64) ([]models.Tenant, error) {
	var out []models.Tenant
	for _, tenant := range f.rows {
		if tenant.ParentID != nil && *tenant.ParentID == parentID {
			out = append(out, *tenant)
		}
	}
	return out, nil
}

func (f *fakeTenants) CountChildren(ctx context.Context, parentID int64) (int, error) {
	children, _ := f.ListChildren(ctx, parentID)
	return len(children), nil
}

func (f *fakeTenants) UpdateSubtreePaths(ctx context.Context, oldPrefix, newPrefix string, depthDelta int) error {
	for _, tenant := range f.rows {
		if tenant.Path != oldPrefix && strings.HasPrefix(tenant.Path, oldPrefix) {
			tenant.Path = newPrefix + tenant.Path[len(oldPrefix):]
			tenant.Depth += depthDelta
		}
	}
	return nil
}

type fakeUsers struct {
	rows map[int64]*models.User
}

func (f *fakeUsers) Create(ctx context.Context, user *models.User) error { return nil }

func (f *fakeUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if user, ok := f.rows[id]; ok {
		return user, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) Update(ctx context.Context, user *models.User) error { return nil }

func (f *fakeUsers) SetTenantSuperAdmin(ctx context.Context, userID int64, granted bool) error {
	user, ok := f.rows[userID]
	if !ok {
		return repository.ErrNotFound
	}
	user.IsTenantSuperAdmin = granted
	return nil
}

// fixture tree:
//
//	1 master /1/       (hub)
//	2 north  /1/2/     (hub, subtree creatable to depth 4)
//	3 south  /1/3/     (hub)
//	4 east   /1/4/
//	5 city   /1/2/5/   (hub, platform ceiling)
//	6 ward   /1/2/5/6/
type harness struct {
	tenants *fakeTenants
	users   *fakeUsers
	access  *access.Service
	svc     *Service
	master  access.Decision
	north   access.Decision
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	tenants := &fakeTenants{seq: 6, rows: map[int64]*models.Tenant{
		1: {ID: 1, Name: "Master", Slug: "master", Path: "/1/", Depth: 0, AllowsSubtenants: true, IsActive: true},
		2: {ID: 2, Name: "North", Slug: "north", ParentID: int64ptr(1), Path: "/1/2/", Depth: 1, AllowsSubtenants: true, MaxDepth: 4, IsActive: true},
		3: {ID: 3, Name: "South", Slug: "south", ParentID: int64ptr(1), Path: "/1/3/", Depth: 1, AllowsSubtenants: true, MaxDepth: 4, IsActive: true},
		4: {ID: 4, Name: "East", Slug: "east", ParentID: int64ptr(1), Path: "/1/4/", Depth: 1, IsActive: true},
		5: {ID: 5, Name: "City", Slug: "city", ParentID: int64ptr(2), Path: "/1/2/5/", Depth: 2, AllowsSubtenants: true, IsActive: true},
		6: {ID: 6, Name: "Ward", Slug: "ward", ParentID: int64ptr(5), Path: "/1/2/5/6/", Depth: 3, IsActive: true},
	}}
	users := &fakeUsers{rows: map[int64]*models.User{
		10: {ID: 10, TenantID: 1, Role: "admin", IsSuperAdmin: true},
		11: {ID: 11, TenantID: 2, Role: "admin", IsTenantSuperAdmin: true},
		20: {ID: 20, TenantID: 3, Role: "user"},
		21: {ID: 21, TenantID: 2, Role: "user"},
	}}

	accessSvc, err := access.NewService(users, tenants, audit.Discard{}, 5, 16)
	require.NoError(t, err)
	svc := NewService(tenants, users, accessSvc, audit.Discard{})

	master, err := accessSvc.Evaluate(context.Background(), 10)
	require.NoError(t, err)
	require.True(t, master.Granted)
	north, err := accessSvc.Evaluate(context.Background(), 11)
	require.NoError(t, err)
	require.True(t, north.Granted)

	return &harness{tenants: tenants, users: users, access: accessSvc, svc: svc, master: master, north: north}
}

func int64ptr(v int64) *int64 { return &v }

func hierErr(t *testing.T, err error) *Error {
	t.Helper()
	var herr *Error
	require.ErrorAs(t, err, &herr)
	return herr
}

func TestCreateTenantStampsPath(t *testing.T) {
	h := newHarness(t)

	tenant, err := h.svc.CreateTenant(context.Background(), h.master, 2, CreateTenantInput{
		Name:             "My New Tenant",
		AllowsSubtenants: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "/1/2/7/", tenant.Path)
	assert.Equal(t, 2, tenant.Depth)
	assert.Equal(t, "my-new-tenant", tenant.Slug)
	assert.Equal(t, 2, tenant.MaxDepth, "hub default creatable depth")
	assert.True(t, tenant.IsActive)
	require.NotNil(t, tenant.ParentID)
	assert.Equal(t, int64(2), *tenant.ParentID)
}

func TestCreateTenantSlugCollision(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.svc.CreateTenant(ctx, h.master, 2, CreateTenantInput{Name: "Harbor"})
	require.NoError(t, err)
	assert.Equal(t, "harbor", first.Slug)

	second, err := h.svc.CreateTenant(ctx, h.master, 2, CreateTenantInput{Name: "Harbor"})
	require.NoError(t, err)
	assert.Equal(t, "harbor-1", second.Slug)

	_, err = h.svc.CreateTenant(ctx, h.master, 2, CreateTenantInput{Name: "Another", Slug: "north"})
	herr := hierErr(t, err)
	assert.Equal(t, apierr.ValidationError, herr.Code)
	assert.Equal(t, "Slug already exists", herr.Message)
}

func TestCreateTenantValidations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.CreateTenant(ctx, h.master, 2, CreateTenantInput{Name: "   "})
	assert.Equal(t, apierr.ValidationError, hierErr(t, err).Code)

	_, err = h.svc.CreateTenant(ctx, h.master, 999, CreateTenantInput{Name: "Orphan"})
	herr := hierErr(t, err)
	assert.Equal(t, apierr.ValidationError, herr.Code)
	assert.Equal(t, "Parent tenant not found", herr.Message)

	// East is not a hub.
	_, err = h.svc.CreateTenant(ctx, h.master, 4, CreateTenantInput{Name: "Blocked"})
	herr = hierErr(t, err)
	assert.Equal(t, apierr.SuperPanelAccessDenied, herr.Code)
	assert.Equal(t, "Tenant does not have sub-tenant capability", herr.Message)
}

func TestCreateTenantOutsideScope(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.CreateTenant(context.Background(), h.north, 3, CreateTenantInput{Name: "Invade South"})
	herr := hierErr(t, err)
	assert.Equal(t, apierr.SuperPanelAccessDenied, herr.Code)
	assert.Equal(t, "Parent tenant is outside your scope", herr.Message)
}

func TestDeleteTenantProtections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	err := h.svc.DeleteTenant(ctx, h.master, 1)
	herr := hierErr(t, err)
	assert.Equal(t, "Cannot delete Master tenant", herr.Message)

	// North still has City under it.
	err = h.svc.DeleteTenant(ctx, h.master, 2)
	herr = hierErr(t, err)
	assert.Equal(t, apierr.ValidationError, herr.Code)
	assert.Contains(t, herr.Message, "sub-tenant")

	// A regional admin cannot delete outside the subtree.
	err = h.svc.DeleteTenant(ctx, h.north, 3)
	assert.Equal(t, apierr.SuperPanelAccessDenied, hierErr(t, err).Code)
}

func TestDeleteTenantDeactivatesLeaf(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.svc.DeleteTenant(context.Background(), h.master, 6))
	assert.False(t, h.tenants.rows[6].IsActive, "delete is a soft deactivation")
}

func TestMoveTenantRewritesSubtree(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.svc.MoveTenant(context.Background(), h.master, 5, 1))

	city := h.tenants.rows[5]
	assert.Equal(t, "/1/5/", city.Path)
	assert.Equal(t, 1, city.Depth)
	require.NotNil(t, city.ParentID)
	assert.Equal(t, int64(1), *city.ParentID)

	ward := h.tenants.rows[6]
	assert.Equal(t, "/1/5/6/", ward.Path)
	assert.Equal(t, 2, ward.Depth)
}

func TestMoveTenantRefusesCycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// City is a descendant of North.
	err := h.svc.MoveTenant(ctx, h.master, 2, 5)
	herr := hierErr(t, err)
	assert.Equal(t, apierr.ValidationError, herr.Code)
	assert.Equal(t, "Cannot move tenant under its own descendant", herr.Message)

	err = h.svc.MoveTenant(ctx, h.master, 1, 2)
	assert.Equal(t, "Cannot move Master tenant", hierErr(t, err).Message)
}

func TestMoveTenantOutsideScope(t *testing.T) {
	h := newHarness(t)

	// A regional admin cannot move a subtree out to a foreign parent.
	err := h.svc.MoveTenant(context.Background(), h.north, 5, 3)
	herr := hierErr(t, err)
	assert.Equal(t, apierr.SuperPanelAccessDenied, herr.Code)
	assert.Equal(t, "Parent tenant is outside your scope", herr.Message)
}

func TestToggleSubtenantCapability(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.svc.ToggleSubtenantCapability(ctx, h.master, 4, true))
	assert.True(t, h.tenants.rows[4].AllowsSubtenants)
	assert.Equal(t, 2, h.tenants.rows[4].MaxDepth)

	require.NoError(t, h.svc.ToggleSubtenantCapability(ctx, h.master, 4, false))
	assert.False(t, h.tenants.rows[4].AllowsSubtenants)
	assert.Equal(t, 0, h.tenants.rows[4].MaxDepth)
}

func TestAssignTenantSuperAdmin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.svc.AssignTenantSuperAdmin(ctx, h.master, 21, 2))
	assert.True(t, h.users.rows[21].IsTenantSuperAdmin)

	// User 20 belongs to South, not North.
	err := h.svc.AssignTenantSuperAdmin(ctx, h.master, 20, 2)
	herr := hierErr(t, err)
	assert.Equal(t, apierr.ValidationError, herr.Code)
	assert.Equal(t, "User does not belong to this tenant", herr.Message)

	// Regional admin granting outside the subtree.
	err = h.svc.AssignTenantSuperAdmin(ctx, h.north, 20, 3)
	assert.Equal(t, apierr.SuperPanelAccessDenied, hierErr(t, err).Code)
}

func TestRevokeTenantSuperAdmin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.users.rows[21].IsTenantSuperAdmin = true
	require.NoError(t, h.svc.RevokeTenantSuperAdmin(ctx, h.master, 21))
	assert.False(t, h.users.rows[21].IsTenantSuperAdmin)

	// User 20 lives in South, outside North's subtree.
	err := h.svc.RevokeTenantSuperAdmin(ctx, h.north, 20)
	assert.Equal(t, apierr.SuperPanelAccessDenied, hierErr(t, err).Code)

	err = h.svc.RevokeTenantSuperAdmin(ctx, h.master, 999)
	assert.Equal(t, "User not found", hierErr(t, err).Message)
}

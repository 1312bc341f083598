package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/db/models"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/repository"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/services/audit"
)

type fakeUserRepo struct {
	users    map[int64]*models.User
	getCalls int
	failWith error
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error { return nil }

func (f *fakeUserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	f.getCalls++
	if f.failWith != nil {
		return nil, f.failWith
	}
	user, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) Update(ctx context.Context, user *models.User) error { return nil }

func (f *fakeUserRepo) SetTenantSuperAdmin(ctx context.Context, userID int64, granted bool) error {
	return nil
}

type fakeTenantRepo struct {
	tenants  map[int64]*models.Tenant
	getCalls int
}

func (f *fakeTenantRepo) Create(ctx context.Context, tenant *models.Tenant) error { return nil }

func (f *fakeTenantRepo) GetByID(ctx context.Context, id int64) (*models.Tenant, error) {
	f.getCalls++
	tenant, ok := f.tenants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return tenant, nil
}

func (f *fakeTenantRepo) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeTenantRepo) Update(ctx context.Context, tenant *models.Tenant) error { return nil }
func (f *fakeTenantRepo) Delete(ctx context.Context, id int64) error              { return nil }
func (f *fakeTenantRepo) List(ctx context.Context) ([]models.Tenant, error)       { return nil, nil }

func (f *fakeTenantRepo) ListWhere(ctx context.Context, cond string, args ...any) ([]models.Tenant, error) {
	return nil, nil
}

func (f *fakeTenantRepo) ListSubtree(ctx context.Context, pathPrefix string) ([]models.Tenant, error) {
	return nil, nil
}

func (f *fakeTenantRepo) ListChildren(ctx context.Context, parentID int64) ([]models.Tenant, error) {
	return nil, nil
}

func (f *fakeTenantRepo) CountChildren(ctx context.Context, parentID int64) (int, error) {
	return 0, nil
}

func (f *fakeTenantRepo) UpdateSubtreePaths(ctx context.Context, oldPrefix, newPrefix string, depthDelta int) error {
	return nil
}

// testFixture builds a small hierarchy:
//
//	1 master  /1/        (hub)
//	2 north   /1/2/      (hub)
//	5 city    /1/2/5/
//	3 south   /1/3/      (hub)
//	7 village /1/3/7/
//	4 east    /1/4/      (not a hub)
func testFixture() (*fakeUserRepo, *fakeTenantRepo) {
	now := time.Now()
	tenants := map[int64]*models.Tenant{
		1: {ID: 1, Name: "Master", Slug: "master", Path: "/1/", Depth: 0, AllowsSubtenants: true, IsActive: true, CreatedAt: now},
		2: {ID: 2, Name: "North", Slug: "north", ParentID: int64ptr(1), Path: "/1/2/", Depth: 1, AllowsSubtenants: true, MaxDepth: 2, IsActive: true, CreatedAt: now},
		5: {ID: 5, Name: "City", Slug: "city", ParentID: int64ptr(2), Path: "/1/2/5/", Depth: 2, IsActive: true, CreatedAt: now},
		3: {ID: 3, Name: "South", Slug: "south", ParentID: int64ptr(1), Path: "/1/3/", Depth: 1, AllowsSubtenants: true, MaxDepth: 2, IsActive: true, CreatedAt: now},
		7: {ID: 7, Name: "Village", Slug: "village", ParentID: int64ptr(3), Path: "/1/3/7/", Depth: 2, IsActive: true, CreatedAt: now},
		4: {ID: 4, Name: "East", Slug: "east", ParentID: int64ptr(1), Path: "/1/4/", Depth: 1, IsActive: true, CreatedAt: now},
	}
	users := map[int64]*models.User{
		10: {ID: 10, TenantID: 1, Email: "root@master.test", Role: "admin", IsSuperAdmin: true},
		11: {ID: 11, TenantID: 2, Email: "north@north.test", Role: "admin", IsTenantSuperAdmin: true},
		12: {ID: 12, TenantID: 3, Email: "south@south.test", Role: "tenant_admin", IsTenantSuperAdmin: true},
		13: {ID: 13, TenantID: 4, Email: "east@east.test", Role: "admin", IsTenantSuperAdmin: true},
		14: {ID: 14, TenantID: 2, Email: "member@north.test", Role: "user"},
		15: {ID: 15, TenantID: 2, Email: "admin@north.test", Role: "admin"},
		16: {ID: 16, TenantID: 2, Email: "tadmin@north.test", Role: "tenant_admin"},
	}
	return &fakeUserRepo{users: users}, &fakeTenantRepo{tenants: tenants}
}

func newTestService(t *testing.T, users *fakeUserRepo, tenants *fakeTenantRepo) *Service {
	t.Helper()
	svc, err := NewService(users, tenants, audit.Discard{}, 5, 16)
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	return svc
}

func int64ptr(v int64) *int64 { return &v }

func TestEvaluateMasterAdmin(t *testing.T) {
	users, tenants := testFixture()
	svc := newTestService(t, users, tenants)

	dec, err := svc.Evaluate(context.Background(), 10)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !dec.Granted || dec.Level != LevelMaster || dec.Scope != ScopeGlobal {
		t.Fatalf("expected master grant, got %+v", dec)
	}
	if dec.Reason != "Access granted" {
		t.Fatalf("unexpected reason %q", dec.Reason)
	}
	if dec.MaxDepth != 5 {
		t.Fatalf("master max depth should be the platform ceiling, got %d", dec.MaxDepth)
	}

	clause := dec.Clause("t")
	if clause.SQL != "1 = 1" || len(clause.Args) != 0 {
		t.Fatalf("master scope should match everything, got %q %v", clause.SQL, clause.Args)
	}
}

func TestEvaluateRegionalAdmin(t *testing.T) {
	users, tenants := testFixture()
	svc := newTestService(t, users, tenants)

	dec, err := svc.Evaluate(context.Background(), 11)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !dec.Granted || dec.Level != LevelRegional || dec.Scope != ScopeSubtree {
		t.Fatalf("expected regional grant, got %+v", dec)
	}
	if dec.TenantPath != "/1/2/" {
		t.Fatalf("unexpected tenant path %q", dec.TenantPath)
	}
	if dec.MaxDepth != 4 {
		t.Fatalf("regional max depth should be ceiling minus depth, got %d", dec.MaxDepth)
	}

	clause := dec.Clause("t")
	if clause.SQL != "t.path LIKE ?" {
		t.Fatalf("unexpected scope SQL %q", clause.SQL)
	}
	if len(clause.Args) != 1 || clause.Args[0] != "/1/2/%" {
		t.Fatalf("unexpected scope args %v", clause.Args)
	}
}

func TestEvaluateDenials(t *testing.T) {
	users, tenants := testFixture()
	svc := newTestService(t, users, tenants)
	ctx := context.Background()

	cases := []struct {
		name   string
		userID int64
		reason string
	}{
		{"unauthenticated", 0, "Not authenticated"},
		{"unknown user", 999, "User not found"},
		{"plain member", 14, "User does not have admin standing"},
		{"tenant role admin", 15, "User does not have admin standing"},
		{"tenant role tenant_admin", 16, "User does not have admin standing"},
		{"super admin of non-hub tenant", 13, "Tenant does not have sub-tenant capability"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dec, err := svc.Evaluate(ctx, tc.userID)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if dec.Granted {
				t.Fatalf("expected denial, got %+v", dec)
			}
			if dec.Reason != tc.reason {
				t.Fatalf("expected reason %q, got %q", tc.reason, dec.Reason)
			}
			if dec.Level != LevelNone || dec.Scope != ScopeNone {
				t.Fatalf("denial should carry safe defaults, got %+v", dec)
			}
			clause := dec.Clause("t")
			if clause.SQL != "1 = 0" || len(clause.Args) != 0 {
				t.Fatalf("denied scope should match nothing, got %q %v", clause.SQL, clause.Args)
			}
		})
	}
}

func TestEvaluateStoreFailure(t *testing.T) {
	users, tenants := testFixture()
	users.failWith = errors.New("connection reset")
	svc := newTestService(t, users, tenants)

	dec, err := svc.Evaluate(context.Background(), 10)
	if err == nil {
		t.Fatal("expected store failure to surface as an error")
	}
	if dec.Granted {
		t.Fatalf("store failure must not grant access, got %+v", dec)
	}
}

func TestCanAccessTenant(t *testing.T) {
	users, tenants := testFixture()
	svc := newTestService(t, users, tenants)
	ctx := context.Background()

	master, _ := svc.Evaluate(ctx, 10)
	for _, id := range []int64{1, 2, 3, 4, 5, 7} {
		if !svc.CanAccessTenant(ctx, master, id) {
			t.Fatalf("master should reach tenant %d", id)
		}
	}

	south, _ := svc.Evaluate(ctx, 12)
	if !svc.CanAccessTenant(ctx, south, 3) {
		t.Fatal("regional admin should reach own tenant")
	}
	if !svc.CanAccessTenant(ctx, south, 7) {
		t.Fatal("regional admin should reach descendant")
	}
	if svc.CanAccessTenant(ctx, south, 4) {
		t.Fatal("regional admin must not reach sibling")
	}
	if svc.CanAccessTenant(ctx, south, 1) {
		t.Fatal("regional admin must not reach master tenant")
	}

	var none Decision
	if svc.CanAccessTenant(ctx, none, 3) {
		t.Fatal("ungranted decision must not reach any tenant")
	}
}

func TestCanManageTenant(t *testing.T) {
	users, tenants := testFixture()
	svc := newTestService(t, users, tenants)
	ctx := context.Background()

	master, _ := svc.Evaluate(ctx, 10)
	north, _ := svc.Evaluate(ctx, 11)

	if !svc.CanManageTenant(ctx, master, 1) {
		t.Fatal("master level should manage the master tenant")
	}
	if svc.CanManageTenant(ctx, north, 1) {
		t.Fatal("regional level must never manage the master tenant")
	}
	if !svc.CanManageTenant(ctx, north, 5) {
		t.Fatal("regional level should manage a descendant")
	}
}

func TestCanCreateSubtenantUnder(t *testing.T) {
	users, tenants := testFixture()
	svc := newTestService(t, users, tenants)
	ctx := context.Background()

	north, _ := svc.Evaluate(ctx, 11)

	ok, reason := svc.CanCreateSubtenantUnder(ctx, north, tenants.tenants[2])
	if !ok {
		t.Fatalf("expected create under own hub, got %q", reason)
	}

	ok, reason = svc.CanCreateSubtenantUnder(ctx, north, tenants.tenants[5])
	if ok {
		t.Fatal("non-hub parent must refuse subtenants")
	}
	if reason != "Tenant does not have sub-tenant capability" {
		t.Fatalf("unexpected refusal reason %q", reason)
	}

	ok, reason = svc.CanCreateSubtenantUnder(ctx, north, tenants.tenants[3])
	if ok {
		t.Fatal("parent outside scope must be refused")
	}
	if reason != "Parent tenant is outside your scope" {
		t.Fatalf("unexpected refusal reason %q", reason)
	}

	deep := &models.Tenant{ID: 8, Path: "/1/2/8/", Depth: 2, AllowsSubtenants: true, MaxDepth: 2}
	tenants.tenants[8] = deep
	ok, reason = svc.CanCreateSubtenantUnder(ctx, north, deep)
	if ok {
		t.Fatal("creation past the depth ceiling must be refused")
	}
	if reason != "Hierarchy depth limit reached" {
		t.Fatalf("unexpected refusal reason %q", reason)
	}
}

func TestTenantCache(t *testing.T) {
	users, tenants := testFixture()
	svc := newTestService(t, users, tenants)
	ctx := context.Background()

	if _, err := svc.TenantByID(ctx, 2); err != nil {
		t.Fatalf("load tenant: %v", err)
	}
	calls := tenants.getCalls
	if _, err := svc.TenantByID(ctx, 2); err != nil {
		t.Fatalf("load tenant: %v", err)
	}
	if tenants.getCalls != calls {
		t.Fatal("second load should come from the cache")
	}

	svc.InvalidateTenant(2)
	if _, err := svc.TenantByID(ctx, 2); err != nil {
		t.Fatalf("load tenant: %v", err)
	}
	if tenants.getCalls != calls+1 {
		t.Fatal("invalidated tenant should be reloaded")
	}
}

func TestResolverMemoization(t *testing.T) {
	users, tenants := testFixture()
	svc := newTestService(t, users, tenants)
	ctx := context.Background()

	resolver := NewResolver(svc, 11)
	first := resolver.GetAccess(ctx)
	calls := users.getCalls
	second := resolver.GetAccess(ctx)
	if users.getCalls != calls {
		t.Fatal("second call should reuse the memoized decision")
	}
	if first != second {
		t.Fatalf("memoized decision changed: %+v vs %+v", first, second)
	}

	resolver.Reset()
	resolver.GetAccess(ctx)
	if users.getCalls != calls+1 {
		t.Fatal("reset should force a recompute")
	}
}

func TestResolverStoreFailureNotMemoized(t *testing.T) {
	users, tenants := testFixture()
	svc := newTestService(t, users, tenants)
	ctx := context.Background()

	users.failWith = errors.New("connection reset")
	resolver := NewResolver(svc, 10)
	if resolver.Check(ctx) {
		t.Fatal("store failure must deny")
	}

	// The store recovers; the same resolver must retry rather than serve a
	// memoized denial.
	users.failWith = nil
	if !resolver.Check(ctx) {
		t.Fatal("recovered store should grant without a reset")
	}
}

func TestResolverUnauthenticated(t *testing.T) {
	users, tenants := testFixture()
	svc := newTestService(t, users, tenants)
	ctx := context.Background()

	resolver := NewResolver(svc, 0)
	if resolver.Check(ctx) {
		t.Fatal("unauthenticated resolver must deny")
	}
	clause := resolver.ScopeClause(ctx, "t")
	if clause.SQL != "1 = 0" || len(clause.Args) != 0 {
		t.Fatalf("unauthenticated scope should match nothing, got %q %v", clause.SQL, clause.Args)
	}
	// Repeated checks stay denied and never panic.
	if resolver.CanAccessTenant(ctx, 1) {
		t.Fatal("unauthenticated resolver must not reach tenants")
	}
}

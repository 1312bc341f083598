// Package access computes hierarchy access decisions for the super panel:
// whether a user may administer a subtree of tenants, and the SQL predicate
// that scopes every tenant-filtered query to that subtree.
package access

// Level is how far a user's administrative reach extends.
type Level string

const (
	// LevelNone grants nothing.
	LevelNone Level = "none"
	// LevelRegional grants the user's home subtree.
	LevelRegional Level = "regional"
	// LevelMaster grants the entire hierarchy.
	LevelMaster Level = "master"
)

// Scope is the query-filter shape backing a level.
type Scope string

const (
	ScopeNone    Scope = "none"
	ScopeSubtree Scope = "subtree"
	ScopeGlobal  Scope = "global"
)

// Decision is the computed access verdict for one user. A denial is still
// a fully formed Decision with safe defaults, never a partial value or an
// error: access checks sit on the hot path of every super-panel request.
type Decision struct {
	Granted          bool   `json:"granted"`
	Level            Level  `json:"level"`
	UserID           int64  `json:"user_id"`
	TenantID         int64  `json:"tenant_id"`
	TenantName       string `json:"tenant_name"`
	TenantPath       string `json:"tenant_path"`
	TenantDepth      int    `json:"tenant_depth"`
	Scope            Scope  `json:"scope"`
	CanCreateTenants bool   `json:"can_create_tenants"`
	MaxDepth         int    `json:"max_depth"`
	Reason           string `json:"reason"`
}

// ScopeClause is a SQL predicate restricting a tenant-scoped query to the
// decision's reach.
type ScopeClause struct {
	SQL  string
	Args []any
}

// Clause renders the decision's scope as a predicate over the given table
// alias. ScopeNone compiles to an impossible predicate so a caller that
// forgets to check Granted still gets zero rows.
func (d Decision) Clause(alias string) ScopeClause {
	if alias == "" {
		alias = "t"
	}
	switch d.Scope {
	case ScopeGlobal:
		return ScopeClause{SQL: "1 = 1"}
	case ScopeSubtree:
		return ScopeClause{SQL: alias + ".path LIKE ?", Args: []any{d.TenantPath + "%"}}
	default:
		return ScopeClause{SQL: "1 = 0"}
	}
}

func denied(userID int64, reason string) Decision {
	return Decision{
		Granted: false,
		Level:   LevelNone,
		UserID:  userID,
		Scope:   ScopeNone,
		Reason:  reason,
	}
}

package rest

// Query is the canonical descriptor a request parses into. It is built once
// per request and treated as immutable; row-security enforcement produces a
// derived copy rather than mutating it.
type Query struct {
	Schema  string
	Table   string
	Select  []SelectNode
	Filters []FilterNode
	Order   []OrderSpec
	Limit   *int
	Offset  *int
	// OnConflict lists the upsert conflict-target columns from the
	// on_conflict parameter. Empty means fall back to the primary key.
	OnConflict []string
	Prefer     Prefer
	// SingleObject is set by Accept: application/vnd.pgrst.object+json and
	// makes the formatter unwrap exactly one row.
	SingleObject bool
	// CSV is set by Accept: text/csv.
	CSV bool
}

// SelectNode is either a plain column reference or an embedded resource.
type SelectNode struct {
	Column string
	Embed  *EmbedNode
}

// EmbedNode is a nested relation requested inline in select. It carries its
// own projection plus filters and ordering scoped to the embedded relation.
type EmbedNode struct {
	Table   string
	Select  []SelectNode
	Filters []FilterNode
	Order   []OrderSpec
}

// FilterNode is a leaf predicate {column, operator, value} or an and/or
// combinator over children. Leaves have an empty Combinator.
type FilterNode struct {
	Column   string
	Operator string
	Value    any
	Negate   bool

	Combinator string // "and" | "or"
	Children   []FilterNode
}

// IsLeaf reports whether f is a column predicate rather than a combinator.
func (f FilterNode) IsLeaf() bool { return f.Combinator == "" }

// OrderSpec mirrors one order entry: column.[asc|desc][.nullsfirst|nullslast].
// Nulls is "first" or "last" only when the client asked for it explicitly;
// empty leaves the engine's default in place.
type OrderSpec struct {
	Column string
	Desc   bool
	Nulls  string
}

// CountMode selects how (and whether) the total row count is computed.
type CountMode string

const (
	CountNone      CountMode = ""
	CountExact     CountMode = "exact"
	CountPlanned   CountMode = "planned"
	CountEstimated CountMode = "estimated"
)

// Prefer holds preferences from the Prefer header (RFC 7240).
type Prefer struct {
	Return     string    // "minimal" or "representation"
	Count      CountMode // exact, planned, estimated
	Resolution string    // "merge-duplicates" or "ignore-duplicates"
}

// WantsRepresentation reports whether the client asked for the affected rows
// in the response body of a mutation.
func (p Prefer) WantsRepresentation() bool { return p.Return == "representation" }

// IsUpsert reports whether a POST should resolve duplicates instead of
// failing on conflict.
func (p Prefer) IsUpsert() bool {
	return p.Resolution == "merge-duplicates" || p.Resolution == "ignore-duplicates"
}

// Statement is a compiled SQL statement. Text contains only positional
// placeholders; user-supplied values travel exclusively in Args.
type Statement struct {
	SQL  string
	Args []any
}

// Operation is the shape of the statement the engine runs.
type Operation int

const (
	OpSelect Operation = iota
	OpInsert
	OpUpsert
	OpUpdate
	OpDelete
	OpCall
)

func (op Operation) String() string {
	switch op {
	case OpSelect:
		return "select"
	case OpInsert:
		return "insert"
	case OpUpsert:
		return "upsert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpCall:
		return "call"
	default:
		return "unknown"
	}
}

// IsRead reports whether op never mutates rows. Count passes run only for
// read operations.
func (op Operation) IsRead() bool { return op == OpSelect || op == OpCall }

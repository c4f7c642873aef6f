package store

// PathType distinguishes files, directories and symlinks.
type PathType int

// Path types.
const (
	PathFile PathType = iota + 1
	PathDirectory
	PathSymlink
)

// String returns the lower-case path type name.
func (t PathType) String() string {
	switch t {
	case PathFile:
		return "file"
	case PathDirectory:
		return "directory"
	case PathSymlink:
		return "symlink"
	default:
		return "invalid"
	}
}

// OpType is the way an action touched a path.
type OpType int

// File access operation kinds.
const (
	OpUnspecified OpType = iota
	OpRead
	OpWrite
	OpModified
	OpDelete
)

// String returns the upper-case operation name.
func (o OpType) String() string {
	switch o {
	case OpRead:
		return "READ"
	case OpWrite:
		return "WRITE"
	case OpModified:
		return "MODIFIED"
	case OpDelete:
		return "DELETE"
	default:
		return "UNSPECIFIED"
	}
}

// ReadOps are the access kinds that consume a path's content.
var ReadOps = []OpType{OpRead, OpModified, OpUnspecified}

// WriteOps are the access kinds that produce a path's content.
var WriteOps = []OpType{OpWrite, OpModified}

// MemberType identifies the kind of package member.
type MemberType int

// Package member kinds. Zero is deliberately invalid.
const (
	MemberFile MemberType = iota + 1
	MemberFileGroup
	MemberAction
	MemberSubPackage
)

// Valid reports whether t names a known member kind.
func (t MemberType) Valid() bool {
	return t >= MemberFile && t <= MemberSubPackage
}

// String returns the member kind name.
func (t MemberType) String() string {
	switch t {
	case MemberFile:
		return "file"
	case MemberFileGroup:
		return "file-group"
	case MemberAction:
		return "action"
	case MemberSubPackage:
		return "sub-package"
	default:
		return "invalid"
	}
}

// Scope is the visibility of a package member.
type Scope int

// Member scopes.
const (
	ScopeNone Scope = iota
	ScopePrivate
	ScopePublic
)

// ParseScope maps a scope name to its value.
func ParseScope(s string) (Scope, bool) {
	switch s {
	case "none":
		return ScopeNone, true
	case "private", "priv":
		return ScopePrivate, true
	case "public", "pub":
		return ScopePublic, true
	default:
		return ScopeNone, false
	}
}

// GroupKind is the membership shape of a file group.
type GroupKind int

// File group kinds.
const (
	GroupSource GroupKind = iota + 1
	GroupMerge
	GroupFilter
)

// SlotType is the value type a slot holds.
type SlotType int

// Slot value types.
const (
	SlotFileGroup SlotType = iota + 1
	SlotText
	SlotInteger
	SlotBoolean
)

// Well-known IDs created with the schema.
const (
	RootPath      = 0
	RootAction    = 0
	RootFolder    = 0
	ImportPackage = 1
	SlotInput     = 1
	SlotOutput    = 2
	NoGroup       = -1
)

// Location is a member's diagram position. (-1, -1) means unplaced.
type Location struct {
	X int
	Y int
}

// PathInfo describes one path row.
type PathInfo struct {
	ID      int
	Parent  int
	Name    string
	Type    PathType
	Trashed bool
}

// ActionInfo describes one action row.
type ActionInfo struct {
	ID      int
	Parent  int
	Dir     int
	Command string
	Trashed bool
}

// FileAccess records how an action touched a path. Seq orders accesses
// globally and identifies the record.
type FileAccess struct {
	Seq    int
	Action int
	Path   int
	Op     OpType
}

// PackageInfo describes one package or folder row.
type PackageInfo struct {
	ID      int
	Parent  int
	Name    string
	Folder  bool
	SrcRoot int
	GenRoot int
	Trashed bool
}

// GroupInfo describes one file group row.
type GroupInfo struct {
	ID          int
	Kind        GroupKind
	Predecessor int
	Trashed     bool
}

// SlotDetails is the full, replaceable description of a slot.
type SlotDetails struct {
	ID          int
	OwnerPkg    int
	Name        string
	Description string
	Type        SlotType
	Pos         int
	Cardinality int
	Default     string
}

// SubPackageInfo describes one sub-package row.
type SubPackageInfo struct {
	ID      int
	Type    int
	Trashed bool
}

// Home is the package a member belongs to and its scope there.
type Home struct {
	Pkg   int
	Scope Scope
}

// Member names one package member.
type Member struct {
	Type MemberType
	ID   int
}

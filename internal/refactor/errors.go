package refactor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/papapumpkin/buildgraph/internal/store"
)

// Cause is the symbolic reason a refactoring was refused.
type Cause string

// Refusal causes.
const (
	CauseInvalidPath              Cause = "INVALID_PATH"
	CauseInvalidAction            Cause = "INVALID_ACTION"
	CauseInvalidPackage           Cause = "INVALID_PACKAGE"
	CauseInvalidMember            Cause = "INVALID_MEMBER"
	CauseInvalidFileGroup         Cause = "INVALID_FILE_GROUP"
	CausePathInUse                Cause = "PATH_IN_USE"
	CausePathIsGenerated          Cause = "PATH_IS_GENERATED"
	CauseDirectoryNotEmpty        Cause = "DIRECTORY_NOT_EMPTY"
	CauseDirectoryContainsActions Cause = "DIRECTORY_CONTAINS_ACTIONS"
	CauseActionNotAtomic          Cause = "ACTION_NOT_ATOMIC"
	CauseActionIsTrashed          Cause = "ACTION_IS_TRASHED"
	CauseActionInUse              Cause = "ACTION_IN_USE"
	CausePathOutOfRange           Cause = "PATH_OUT_OF_RANGE"
	CausePackageNotEmpty          Cause = "PACKAGE_NOT_EMPTY"
	CausePackageNameInUse         Cause = "PACKAGE_NAME_IN_USE"
)

// Sentinels matching every *Error of the corresponding cause under
// errors.Is.
var (
	ErrInvalidPath              = errors.New("invalid path")
	ErrInvalidAction            = errors.New("invalid action")
	ErrInvalidPackage           = errors.New("invalid package")
	ErrInvalidMember            = errors.New("invalid member")
	ErrInvalidFileGroup         = errors.New("invalid file group")
	ErrPathInUse                = errors.New("path in use")
	ErrPathIsGenerated          = errors.New("path is generated")
	ErrDirectoryNotEmpty        = errors.New("directory not empty")
	ErrDirectoryContainsActions = errors.New("directory contains actions")
	ErrActionNotAtomic          = errors.New("action not atomic")
	ErrActionIsTrashed          = errors.New("action is trashed")
	ErrActionInUse              = errors.New("action in use")
	ErrPathOutOfRange           = errors.New("path out of range")
	ErrPackageNotEmpty          = errors.New("package not empty")
	ErrPackageNameInUse         = errors.New("package name in use")
)

func (c Cause) sentinel() error {
	switch c {
	case CauseInvalidPath:
		return ErrInvalidPath
	case CauseInvalidAction:
		return ErrInvalidAction
	case CauseInvalidPackage:
		return ErrInvalidPackage
	case CauseInvalidMember:
		return ErrInvalidMember
	case CauseInvalidFileGroup:
		return ErrInvalidFileGroup
	case CausePathInUse:
		return ErrPathInUse
	case CausePathIsGenerated:
		return ErrPathIsGenerated
	case CauseDirectoryNotEmpty:
		return ErrDirectoryNotEmpty
	case CauseDirectoryContainsActions:
		return ErrDirectoryContainsActions
	case CauseActionNotAtomic:
		return ErrActionNotAtomic
	case CauseActionIsTrashed:
		return ErrActionIsTrashed
	case CauseActionInUse:
		return ErrActionInUse
	case CausePathOutOfRange:
		return ErrPathOutOfRange
	case CausePackageNotEmpty:
		return ErrPackageNotEmpty
	case CausePackageNameInUse:
		return ErrPackageNameInUse
	default:
		return nil
	}
}

// Error is a refused refactoring. The ID lists name the offending items and
// are always slices, even for a single offender.
type Error struct {
	Cause       Cause
	PathIDs     []int
	ActionIDs   []int
	PackageIDs  []int
	GroupIDs    []int
	MemberTypes []store.MemberType
}

// Error renders the cause followed by each non-empty ID list.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("refactor: ")
	b.WriteString(string(e.Cause))
	list := func(label string, ids []int) {
		if len(ids) > 0 {
			fmt.Fprintf(&b, " %s=%v", label, ids)
		}
	}
	list("paths", e.PathIDs)
	list("actions", e.ActionIDs)
	list("packages", e.PackageIDs)
	list("groups", e.GroupIDs)
	if len(e.MemberTypes) > 0 {
		fmt.Fprintf(&b, " member-types=%d", e.MemberTypes)
	}
	return b.String()
}

// Is reports whether target is the sentinel for e's cause.
func (e *Error) Is(target error) bool {
	s := e.Cause.sentinel()
	return s != nil && target == s
}

// CauseOf returns the cause of a refactoring refusal anywhere in err's
// chain.
func CauseOf(err error) (Cause, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re.Cause, true
	}
	return "", false
}

func pathErr(c Cause, paths ...int) *Error {
	return &Error{Cause: c, PathIDs: paths}
}

func actionErr(c Cause, actions ...int) *Error {
	return &Error{Cause: c, ActionIDs: actions}
}

func packageErr(c Cause, pkgs ...int) *Error {
	return &Error{Cause: c, PackageIDs: pkgs}
}

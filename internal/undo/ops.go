package undo

import (
	"slices"

	"github.com/papapumpkin/buildgraph/internal/store"
)

// memberOp records the package-member fields every member kind shares.
type memberOp struct {
	changeList
	typ store.MemberType
}

// RecordPackageChange moves the member from one package to another.
func (o *memberOp) RecordPackageChange(from, to store.Home) {
	if from == to {
		return
	}
	o.add(packageChange{typ: o.typ, id: o.id, from: from, to: to})
}

// RecordLocationChange moves the member on the package diagram.
func (o *memberOp) RecordLocationChange(from, to store.Location) {
	if from == to {
		return
	}
	o.add(locationChange{typ: o.typ, id: o.id, from: from, to: to})
}

// ActionOp edits one action.
type ActionOp struct {
	memberOp
}

// NewActionOp returns an empty operation on action id.
func NewActionOp(s Store, id int) *ActionOp {
	return &ActionOp{memberOp{changeList{store: s, what: "action", id: id}, store.MemberAction}}
}

// RecordCommandChange replaces the action's command string.
func (o *ActionOp) RecordCommandChange(from, to string) {
	if from == to {
		return
	}
	o.add(commandChange{id: o.id, from: from, to: to})
}

// RecordParentChange re-parents the action.
func (o *ActionOp) RecordParentChange(from, to int) {
	if from == to {
		return
	}
	o.add(parentChange{id: o.id, from: from, to: to})
}

// RecordSlotChange sets or clears one slot value.
func (o *ActionOp) RecordSlotChange(slot int, from, to SlotValue) {
	if from == to || (!from.Set && !to.Set) {
		return
	}
	o.add(slotValueChange{owner: o.id, slot: slot, from: from, to: to})
}

// RecordTrash trashes the action.
func (o *ActionOp) RecordTrash() {
	o.add(trashChange{kind: entAction, id: o.id, trash: true})
}

// RecordRevive revives the trashed action.
func (o *ActionOp) RecordRevive() {
	o.add(trashChange{kind: entAction, id: o.id, trash: false})
}

// RecordAddAccess adds a file access. A zero seq takes the next sequence
// number on first redo and keeps it afterwards.
func (o *ActionOp) RecordAddAccess(path int, op store.OpType, seq int) {
	o.add(&accessAdd{fa: store.FileAccess{Seq: seq, Action: o.id, Path: path, Op: op}})
}

// RecordRemoveAccess removes an existing file access record.
func (o *ActionOp) RecordRemoveAccess(fa store.FileAccess) {
	o.add(accessRemove{fa: fa})
}

// PathOp edits one path.
type PathOp struct {
	memberOp
}

// NewPathOp returns an empty operation on path id.
func NewPathOp(s Store, id int) *PathOp {
	return &PathOp{memberOp{changeList{store: s, what: "path", id: id}, store.MemberFile}}
}

// RecordRemove trashes the path.
func (o *PathOp) RecordRemove() {
	o.add(trashChange{kind: entPath, id: o.id, trash: true})
}

// RecordRevive revives the trashed path.
func (o *PathOp) RecordRevive() {
	o.add(trashChange{kind: entPath, id: o.id, trash: false})
}

// FileGroupOp edits one file group.
type FileGroupOp struct {
	memberOp
	kind store.GroupKind
}

// NewFileGroupOp returns an empty operation on file group id of kind.
func NewFileGroupOp(s Store, id int, kind store.GroupKind) *FileGroupOp {
	return &FileGroupOp{memberOp{changeList{store: s, what: "file group", id: id}, store.MemberFileGroup}, kind}
}

// RecordAllocate inserts the group row, trashed and owned by pkg, when the
// operation is redone, and deletes it when undone. The op's id must be one
// the store has not handed out, such as Store.NextFileGroupID. Follow it with
// RecordCreate.
func (o *FileGroupOp) RecordAllocate(pkg int) {
	o.add(groupAlloc{id: o.id, kind: o.kind, pkg: pkg})
}

// RecordCreate makes a freshly allocated group live.
func (o *FileGroupOp) RecordCreate() {
	o.add(trashChange{kind: entFileGroup, id: o.id, trash: false})
}

// RecordRemove trashes the group.
func (o *FileGroupOp) RecordRemove() {
	o.add(trashChange{kind: entFileGroup, id: o.id, trash: true})
}

// RecordMembershipChange replaces the group's membership, interpreted by
// the group's kind.
func (o *FileGroupOp) RecordMembershipChange(from, to GroupMembers) {
	if slices.Equal(from.IDs, to.IDs) && from.Predecessor == to.Predecessor &&
		slices.Equal(from.Patterns, to.Patterns) {
		return
	}
	o.add(membersChange{id: o.id, kind: o.kind, from: from, to: to})
}

// SubPackageOp edits one sub-package.
type SubPackageOp struct {
	memberOp
}

// NewSubPackageOp returns an empty operation on sub-package id.
func NewSubPackageOp(s Store, id int) *SubPackageOp {
	return &SubPackageOp{memberOp{changeList{store: s, what: "sub-package", id: id}, store.MemberSubPackage}}
}

// RecordCreate makes a freshly allocated sub-package live.
func (o *SubPackageOp) RecordCreate() {
	o.add(trashChange{kind: entSubPackage, id: o.id, trash: false})
}

// RecordTrash trashes the sub-package.
func (o *SubPackageOp) RecordTrash() {
	o.add(trashChange{kind: entSubPackage, id: o.id, trash: true})
}

// RecordRevive revives the trashed sub-package.
func (o *SubPackageOp) RecordRevive() {
	o.add(trashChange{kind: entSubPackage, id: o.id, trash: false})
}

// PackageOp edits one package or folder.
type PackageOp struct {
	changeList
}

// NewPackageOp returns an empty operation on package or folder id.
func NewPackageOp(s Store, id int) *PackageOp {
	return &PackageOp{changeList{store: s, what: "package", id: id}}
}

// RecordCreate makes a freshly allocated package live.
func (o *PackageOp) RecordCreate() {
	o.add(trashChange{kind: entPackage, id: o.id, trash: false})
}

// RecordRemove trashes the package. It must be empty when redone.
func (o *PackageOp) RecordRemove() {
	o.add(trashChange{kind: entPackage, id: o.id, trash: true})
}

// RecordNameChange renames the package.
func (o *PackageOp) RecordNameChange(from, to string) {
	if from == to {
		return
	}
	o.add(nameChange{id: o.id, from: from, to: to})
}

// RecordParentChange moves the package to another folder.
func (o *PackageOp) RecordParentChange(from, to int) {
	if from == to {
		return
	}
	o.add(folderChange{id: o.id, from: from, to: to})
}

// RecordRootsChange replaces the package's source and generated roots.
func (o *PackageOp) RecordRootsChange(from, to Roots) {
	if from == to {
		return
	}
	o.add(rootsChange{id: o.id, from: from, to: to})
}

// SlotOp edits one slot definition.
type SlotOp struct {
	changeList
}

// NewSlotOp returns an empty operation on slot id.
func NewSlotOp(s Store, id int) *SlotOp {
	return &SlotOp{changeList{store: s, what: "slot", id: id}}
}

// RecordCreate makes a freshly allocated slot live.
func (o *SlotOp) RecordCreate() {
	o.add(trashChange{kind: entSlot, id: o.id, trash: false})
}

// RecordTrash trashes the slot.
func (o *SlotOp) RecordTrash() {
	o.add(trashChange{kind: entSlot, id: o.id, trash: true})
}

// RecordRevive revives the trashed slot.
func (o *SlotOp) RecordRevive() {
	o.add(trashChange{kind: entSlot, id: o.id, trash: false})
}

// RecordDetailsChange replaces every field of the slot definition.
func (o *SlotOp) RecordDetailsChange(from, to store.SlotDetails) {
	if from == to {
		return
	}
	o.add(slotDetailsChange{from: from, to: to})
}

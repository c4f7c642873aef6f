package store

import "context"

// FilesNeverAccessed returns live files that no live action touches.
func (s *Store) FilesNeverAccessed(ctx context.Context) ([]int, error) {
	return s.queryInts(ctx, "files never accessed",
		`SELECT p.id FROM paths p
		 WHERE p.type = ? AND p.trashed = 0 AND NOT EXISTS (
		     SELECT 1 FROM file_access fa JOIN actions a ON a.id = fa.action_id
		     WHERE fa.path_id = p.id AND a.trashed = 0)
		 ORDER BY p.id`, PathFile)
}

// WriteOnlyFiles returns live files that some live action writes but no live
// action reads.
func (s *Store) WriteOnlyFiles(ctx context.Context) ([]int, error) {
	return s.queryInts(ctx, "write-only files",
		`SELECT p.id FROM paths p
		 WHERE p.type = ? AND p.trashed = 0
		 AND EXISTS (
		     SELECT 1 FROM file_access fa JOIN actions a ON a.id = fa.action_id
		     WHERE fa.path_id = p.id AND a.trashed = 0 AND fa.op = ?)
		 AND NOT EXISTS (
		     SELECT 1 FROM file_access fa JOIN actions a ON a.id = fa.action_id
		     WHERE fa.path_id = p.id AND a.trashed = 0 AND fa.op IN (?, ?, ?))
		 ORDER BY p.id`, PathFile, OpWrite, OpRead, OpModified, OpUnspecified)
}

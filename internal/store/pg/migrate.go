package pg

import (
	"context"
	"fmt"
	"io/fs"
	"sort"

	"github.com/seralabs/tokend/migrations"
)

// Migrate applies the embedded schema files in lexical order. Statements
// are idempotent (IF NOT EXISTS), so re-running is safe.
func (s *Store) Migrate(ctx context.Context) error {
	entries, err := fs.ReadDir(migrations.PostgresFS, migrations.PostgresDir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		sql, err := fs.ReadFile(migrations.PostgresFS, migrations.PostgresDir+"/"+name)
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

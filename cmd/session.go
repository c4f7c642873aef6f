package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papapumpkin/buildgraph/internal/config"
	"github.com/papapumpkin/buildgraph/internal/journal"
	"github.com/papapumpkin/buildgraph/internal/logging"
	"github.com/papapumpkin/buildgraph/internal/refactor"
	"github.com/papapumpkin/buildgraph/internal/store"
	"github.com/papapumpkin/buildgraph/internal/ui"
	"github.com/papapumpkin/buildgraph/internal/undo"
)

// session bundles what one command invocation works with.
type session struct {
	cfg     config.Config
	logger  *zap.Logger
	store   *store.Store
	journal *journal.Emitter
	history *undo.History
	r       *refactor.Refactorer
	printer *ui.Printer
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, OutputPath: cfg.Log.Output})
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Database, store.Options{NameCacheSize: cfg.NameCacheSize, Logger: logger})
	if err != nil {
		return nil, err
	}

	var em *journal.Emitter
	if cfg.Journal != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Journal), 0o755); err != nil {
			st.Close()
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
		if em, err = journal.NewEmitter(cfg.Journal); err != nil {
			st.Close()
			return nil, err
		}
	}
	return newSession(cfg, logger, st, em), nil
}

func newSession(cfg config.Config, logger *zap.Logger, st *store.Store, em *journal.Emitter) *session {
	var sink undo.Sink
	if em != nil {
		sink = em
	}
	h := undo.NewHistory(st, sink, logger)
	return &session{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		journal: em,
		history: h,
		r:       refactor.New(st, h, logger),
		printer: ui.New(),
	}
}

// Close releases the journal and the store. Failures are logged, not
// returned.
func (s *session) Close() {
	if err := s.journal.Close(); err != nil {
		s.logger.Warn("closing journal", zap.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn("closing store", zap.Error(err))
	}
	// Syncing a console stderr fails with EINVAL or ENOTTY.
	if err := s.logger.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) && !errors.Is(err, syscall.ENOTTY) {
		fmt.Fprintf(os.Stderr, "buildgraph: flushing log: %v\n", err)
	}
}

// withSession opens a session for the duration of fn.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

// intent runs one refactoring intent. With dry run the applied step is
// undone again before returning.
func (s *session) intent(ctx context.Context, label string, dryRun bool, fn func(ctx context.Context) (*undo.Multi, error)) error {
	m, err := fn(ctx)
	if err != nil {
		return s.report(ctx, err)
	}
	if m.Len() == 0 {
		s.printer.Info(label + ": nothing to do")
		return nil
	}
	if dryRun {
		if _, err := s.history.Undo(ctx); err != nil {
			return fmt.Errorf("rolling back dry run: %w", err)
		}
		s.printer.DryRun(label, m.Len())
		return nil
	}
	s.printer.Applied(label, m.Len())
	return nil
}

// report prints refusals and passes other errors through.
func (s *session) report(ctx context.Context, err error) error {
	var re *refactor.Error
	if !errors.As(err, &re) {
		return err
	}
	s.printer.Refusal(re, func(id int) string {
		name, err := s.store.PathName(ctx, id)
		if err != nil {
			return "?"
		}
		return name
	})
	return errReported
}

// pathArg resolves a path argument given as an ID or an absolute name.
func (s *session) pathArg(ctx context.Context, arg string) (int, error) {
	if id, err := strconv.Atoi(arg); err == nil {
		return id, nil
	}
	id, err := s.store.LookupPath(ctx, arg)
	if err != nil {
		return 0, fmt.Errorf("path %s: %w", arg, err)
	}
	return id, nil
}

// packageArg resolves a package argument given as an ID or a name.
func (s *session) packageArg(ctx context.Context, arg string) (int, error) {
	if id, err := strconv.Atoi(arg); err == nil {
		return id, nil
	}
	id, err := s.store.LookupPackage(ctx, arg)
	if err != nil {
		return 0, fmt.Errorf("package %s: %w", arg, err)
	}
	return id, nil
}

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, len(args))
	for i, a := range args {
		id, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("bad ID %q", a)
		}
		ids[i] = id
	}
	return ids, nil
}

var memberPrefixes = map[string]store.MemberType{
	"f": store.MemberFile,
	"g": store.MemberFileGroup,
	"a": store.MemberAction,
	"s": store.MemberSubPackage,
}

// parseMember reads "f:12", "a:7", "g:3" or "s:2".
func parseMember(arg string) (store.Member, error) {
	prefix, rest, ok := strings.Cut(arg, ":")
	t, known := memberPrefixes[prefix]
	if !ok || !known {
		return store.Member{}, fmt.Errorf("bad member %q: want f:, a:, g: or s: followed by an ID", arg)
	}
	id, err := strconv.Atoi(rest)
	if err != nil {
		return store.Member{}, fmt.Errorf("bad member %q: %w", arg, err)
	}
	return store.Member{Type: t, ID: id}, nil
}

package main

import (
	"context"
	"errors"
	"fmt"

	"forumsync/internal/client"
	"forumsync/internal/config"
	"forumsync/internal/marker"
	"forumsync/internal/thread"
	"forumsync/internal/util"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// session is what every subcommand works with once flags and config are resolved.
type session struct {
	cfg     *config.Config
	log     *logrus.Logger
	client  *client.Client
	sync    *thread.Synchronizer
	markers marker.Store
	closers []func() error
}

type rootOptions struct {
	apiURL   string
	user     string
	logLevel string
	markers  string

	sess *session
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "forumctl",
		Short:         "Browse and edit threaded forum comments",
		Long:          `forumctl mirrors a post's comment tree locally, loading replies on demand, and applies edits, deletes, likes and reports against the comment backend.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			sess, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			opts.sess = sess
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.sess != nil {
				return opts.sess.close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.apiURL, "api", "", "comment backend base URL (default API_BASE_URL)")
	cmd.PersistentFlags().StringVarP(&opts.user, "user", "u", "", "acting user email (default USER_EMAIL)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (default LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&opts.markers, "markers", "", "report marker store: badger, redis or memory (default MARKER_STORE)")

	cmd.AddCommand(
		newThreadCmd(opts),
		newReplyCmd(opts),
		newEditCmd(opts),
		newDeleteCmd(opts),
		newLikeCmd(opts),
		newReportCmd(opts),
		newWatchCmd(opts),
	)
	return cmd
}

func (o *rootOptions) open(ctx context.Context) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.apiURL != "" {
		cfg.APIBaseURL = o.apiURL
	}
	if o.user != "" {
		cfg.UserEmail = o.user
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.markers != "" {
		cfg.MarkerStore = o.markers
	}
	if cfg.UserEmail == "" {
		return nil, errors.New("no user: pass --user or set USER_EMAIL")
	}

	sess := &session{cfg: cfg, log: util.NewLogger(cfg.LogLevel)}
	if err := sess.openMarkers(ctx); err != nil {
		return nil, err
	}

	sess.client = client.New(cfg.APIBaseURL,
		client.WithUserEmail(cfg.UserEmail),
		client.WithTimeout(cfg.HTTPTimeout),
	)
	base := sess.client.BaseURL()
	sess.sync = thread.New(sess.client, cfg.UserEmail,
		thread.WithLogger(sess.log),
		thread.WithMarkers(sess.markers),
		thread.WithAttachmentResolver(func(ref string) string {
			return client.NormalizeAttachment(base, ref)
		}),
	)
	return sess, nil
}

func (s *session) openMarkers(ctx context.Context) error {
	switch s.cfg.MarkerStore {
	case "badger":
		b, err := marker.OpenBadger(s.cfg.MarkerPath)
		if err != nil {
			return fmt.Errorf("open marker store: %w", err)
		}
		s.markers = b
		s.closers = append(s.closers, b.Close)
	case "redis":
		rc, err := util.NewRedisClient(ctx, s.cfg)
		if err != nil {
			return err
		}
		s.markers = marker.NewRedis(rc)
		s.closers = append(s.closers, rc.Close)
	case "memory":
		s.markers = marker.NewMemory()
	default:
		return fmt.Errorf("unknown marker store %q", s.cfg.MarkerStore)
	}
	return nil
}

func (s *session) close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// loadPost loads a post's roots and walks every reply bucket, so that any
// comment of the post can be addressed by id afterwards.
func (s *session) loadPost(ctx context.Context, postID int64) error {
	if _, err := s.sync.LoadPost(ctx, postID); err != nil {
		return fmt.Errorf("load post %d: %w", postID, err)
	}
	return s.sync.PrefetchPost(ctx, postID)
}

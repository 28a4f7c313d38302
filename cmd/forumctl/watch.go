package main

import (
	"fmt"

	"forumsync/internal/model"

	"github.com/spf13/cobra"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <postId>",
		Short: "Follow live comment changes on a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			postID, err := parseID(args[0], "post id")
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s := opts.sess
			if err := s.loadPost(ctx, postID); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			renderTree(out, s.sync, postID)

			events, errs, err := s.client.Feed(ctx, postID)
			if err != nil {
				return err
			}
			for ev := range events {
				s.sync.ApplyEvent(ev)
				fmt.Fprintln(out, describeEvent(ev))
				fmt.Fprintf(out, "  %d comments loaded\n", s.sync.PostCount(postID))
			}

			select {
			case err := <-errs:
				return fmt.Errorf("feed closed: %w", err)
			default:
				return nil
			}
		},
	}
}

func describeEvent(ev model.CommentEvent) string {
	c := ev.Comment
	if c == nil {
		return ev.Type
	}
	switch ev.Type {
	case model.EventCommentCreated:
		if c.ParentCommentID != nil {
			return fmt.Sprintf("+ #%d %s replied to #%d: %s", c.ID, c.Username, *c.ParentCommentID, c.Content)
		}
		return fmt.Sprintf("+ #%d %s: %s", c.ID, c.Username, c.Content)
	case model.EventCommentUpdated:
		return fmt.Sprintf("~ #%d edited: %s", c.ID, c.Content)
	case model.EventCommentDeleted:
		return fmt.Sprintf("- #%d deleted", c.ID)
	default:
		return fmt.Sprintf("? %s #%d", ev.Type, c.ID)
	}
}

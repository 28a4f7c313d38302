package main

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"forumsync/internal/model"
	"forumsync/internal/thread"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", what, arg)
	}
	return id, nil
}

func newThreadCmd(opts *rootOptions) *cobra.Command {
	var shallow bool
	cmd := &cobra.Command{
		Use:   "thread <postId>",
		Short: "Print a post's comment tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			postID, err := parseID(args[0], "post id")
			if err != nil {
				return err
			}
			s := opts.sess
			if shallow {
				if _, err := s.sync.LoadPost(cmd.Context(), postID); err != nil {
					return err
				}
			} else if err := s.loadPost(cmd.Context(), postID); err != nil {
				return err
			}
			renderTree(cmd.OutOrStdout(), s.sync, postID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&shallow, "shallow", false, "only load root comments")
	return cmd
}

func newReplyCmd(opts *rootOptions) *cobra.Command {
	var imagePath string
	cmd := &cobra.Command{
		Use:   "reply <postId> [parentId] <text>",
		Short: "Add a root comment, or a reply when parentId is given",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			postID, err := parseID(args[0], "post id")
			if err != nil {
				return err
			}
			var parentID *int64
			text := args[len(args)-1]
			if len(args) == 3 {
				id, err := parseID(args[1], "parent id")
				if err != nil {
					return err
				}
				parentID = &id
			}

			var image *model.Attachment
			if imagePath != "" {
				data, err := os.ReadFile(imagePath)
				if err != nil {
					return fmt.Errorf("read image: %w", err)
				}
				image = &model.Attachment{
					Filename:    filepath.Base(imagePath),
					ContentType: mime.TypeByExtension(filepath.Ext(imagePath)),
					Data:        data,
				}
			}

			s := opts.sess
			if err := s.loadPost(cmd.Context(), postID); err != nil {
				return err
			}
			created, err := s.sync.AddComment(cmd.Context(), postID, parentID, text, image)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created comment %d\n", created.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&imagePath, "image", "", "attach an image file")
	return cmd
}

func newEditCmd(opts *rootOptions) *cobra.Command {
	var postID int64
	cmd := &cobra.Command{
		Use:   "edit <id> <text>",
		Short: "Replace a comment's content",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "comment id")
			if err != nil {
				return err
			}
			s := opts.sess
			if err := s.loadPost(cmd.Context(), postID); err != nil {
				return err
			}
			edited, err := s.sync.Edit(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "comment %d: %s\n", edited.ID, edited.Content)
			return nil
		},
	}
	addPostFlag(cmd, &postID)
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	var (
		postID int64
		yes    bool
	)
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a comment and its replies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "comment id")
			if err != nil {
				return err
			}
			s := opts.sess
			if err := s.loadPost(cmd.Context(), postID); err != nil {
				return err
			}

			confirm := thread.Confirmer(thread.AutoConfirm)
			if !yes {
				confirm = huhConfirm
			}
			err = s.sync.Delete(cmd.Context(), id, confirm)
			if errors.Is(err, thread.ErrNotConfirmed) {
				fmt.Fprintln(cmd.OutOrStdout(), "cancelled")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted comment %d\n", id)
			return nil
		},
	}
	addPostFlag(cmd, &postID)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// huhConfirm asks on the terminal. An aborted prompt counts as "no".
var huhConfirm = thread.ConfirmFunc(func(_ context.Context, prompt string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(prompt).
		Affirmative("Delete").
		Negative("Cancel").
		Value(&ok).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	return ok, err
})

func newLikeCmd(opts *rootOptions) *cobra.Command {
	var postID int64
	cmd := &cobra.Command{
		Use:   "like <id>",
		Short: "Toggle your like on a comment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "comment id")
			if err != nil {
				return err
			}
			s := opts.sess
			if err := s.loadPost(cmd.Context(), postID); err != nil {
				return err
			}
			state, err := s.sync.ToggleLike(cmd.Context(), id)
			if err != nil {
				return err
			}
			verb := "unliked"
			if state.Liked {
				verb = "liked"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s comment %d (%d likes)\n", verb, id, state.Count)
			return nil
		},
	}
	addPostFlag(cmd, &postID)
	return cmd
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	var (
		postID      int64
		reasons     []string
		description string
	)
	cmd := &cobra.Command{
		Use:   "report <id>",
		Short: "Report a comment to the moderators",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "comment id")
			if err != nil {
				return err
			}
			s := opts.sess
			if err := s.loadPost(cmd.Context(), postID); err != nil {
				return err
			}
			err = s.sync.Report(cmd.Context(), id, reasons, description)
			if errors.Is(err, thread.ErrAlreadyReported) {
				fmt.Fprintf(cmd.OutOrStdout(), "comment %d already reported\n", id)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reported comment %d: %s\n", id, strings.Join(reasons, ", "))
			return nil
		},
	}
	addPostFlag(cmd, &postID)
	cmd.Flags().StringSliceVarP(&reasons, "reason", "r", nil, "report reason (repeatable)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "optional details")
	return cmd
}

func addPostFlag(cmd *cobra.Command, postID *int64) {
	cmd.Flags().Int64VarP(postID, "post", "p", 0, "post the comment belongs to")
	_ = cmd.MarkFlagRequired("post")
}

package main

import (
	"fmt"
	"io"
	"strings"

	"forumsync/internal/model"
	"forumsync/internal/thread"

	"github.com/charmbracelet/lipgloss"
)

var (
	authorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#20B9B4"))
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#2C4A54"))
	likedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E74C3C"))
	mutedStyle   = lipgloss.NewStyle().Faint(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	pendingStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#F4D03F"))
)

// renderTree prints the loaded part of a post's tree. Reply counts are lower
// bounds: they cover only buckets that have been fetched.
func renderTree(w io.Writer, s *thread.Synchronizer, postID int64) {
	roots, ok := s.Roots(postID)
	if !ok {
		fmt.Fprintln(w, mutedStyle.Render("post not loaded"))
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Post %d: %d comments", postID, s.PostCount(postID))))
	for _, p := range s.Pending(postID, nil) {
		fmt.Fprintln(w, pendingStyle.Render("  sending: "+p.Content))
	}
	for _, c := range roots {
		renderComment(w, s, c, 1)
	}
}

func renderComment(w io.Writer, s *thread.Synchronizer, c model.Comment, depth int) {
	indent := strings.Repeat("  ", depth)

	likes := fmt.Sprintf("%d likes", c.LikeCount)
	if state, ok := s.Reaction(c.ID); ok {
		likes = fmt.Sprintf("%d likes", state.Count)
		if state.Liked {
			likes = likedStyle.Render("♥ " + likes)
		}
	}

	fmt.Fprintf(w, "%s%s %s: %s  %s\n",
		indent,
		idStyle.Render(fmt.Sprintf("#%d", c.ID)),
		authorStyle.Render(c.Username),
		c.Content,
		mutedStyle.Render(likes),
	)
	if c.HasAttachment() {
		fmt.Fprintf(w, "%s  %s\n", indent, mutedStyle.Render("image: "+c.ImgPath))
	}

	children, loaded := s.Children(c.ID)
	if !loaded {
		fmt.Fprintf(w, "%s  %s\n", indent, mutedStyle.Render("replies not loaded"))
		return
	}
	if total := s.TotalCount(c.ID); total > 0 {
		fmt.Fprintf(w, "%s  %s\n", indent, mutedStyle.Render(fmt.Sprintf("%d replies", total)))
	}
	for _, p := range s.Pending(c.ForumPostID, &c.ID) {
		fmt.Fprintf(w, "%s  %s\n", indent, pendingStyle.Render("sending: "+p.Content))
	}
	for _, child := range children {
		renderComment(w, s, child, depth+1)
	}
}

package client

import (
	"net/url"
	"strings"

	"forumsync/internal/model"
)

// NormalizeAttachment turns an attachment reference into an absolute URL.
// The empty string and the "NO_IMAGE" placeholder both mean no attachment and
// normalize to "". Absolute URLs are returned unchanged; anything else is
// resolved against base.
func NormalizeAttachment(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref == model.NoImage {
		return ""
	}
	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		return ref
	}
	b, err := url.Parse(strings.TrimRight(base, "/") + "/")
	if err != nil {
		return ref
	}
	r, err := url.Parse(strings.TrimLeft(ref, "/"))
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

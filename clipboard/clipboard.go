// Package clipboard copies review-screen text (summary, follow-up email) to
// the system clipboard.
package clipboard

import cb "github.com/atotto/clipboard"

func Copy(text string) error {
	return cb.WriteAll(text)
}

// Available reports whether the platform has a usable clipboard backend.
func Available() bool {
	return !cb.Unsupported
}

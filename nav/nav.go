// Package nav holds the two application routes and the redirect rules
// between them.
package nav

const (
	Landing = "/"
	Board   = "/board"
)

// Resolve returns the route to render for path. The board requires a
// logged-in user, the landing page is skipped once logged in, and any
// unknown path falls back to the landing page.
func Resolve(path string, loggedIn bool) string {
	switch path {
	case Board:
		if !loggedIn {
			return Landing
		}
		return Board
	case Landing:
		if loggedIn {
			return Board
		}
		return Landing
	default:
		return Landing
	}
}

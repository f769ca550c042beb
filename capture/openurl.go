package capture

import (
	"os/exec"
	"runtime"
)

// openBrowser hands the meeting URL to the platform's default opener so the
// operator sees the meeting while granting capture permissions.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

package auth

import (
	"errors"
	"os/exec"
	"runtime"
)

// OpenBrowser starts the platform URL handler for url without waiting for it.
func OpenBrowser(url string) error {
	if url == "" {
		return errors.New("no url to open")
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}

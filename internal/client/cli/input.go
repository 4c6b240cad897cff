package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// GetCode prompts on w and reads a one-time code from the terminal without
// echo.
func GetCode(w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, "Enter code: "); err != nil {
		return "", err
	}
	code, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(code)), nil
}

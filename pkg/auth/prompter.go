package auth

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"
)

// Prompter is the operator-facing side of the authentication flow. All
// interactive challenges (two-factor codes, captcha answers, validation
// acknowledgements, restart decisions) go through here so the state machine
// itself never touches a terminal.
type Prompter interface {
	// ReadLine shows a prompt and returns one trimmed line of input
	ReadLine(prompt string) (string, error)

	// ReadSecret reads input without echoing it
	ReadSecret(prompt string) (string, error)

	// Confirm asks a yes/no question; only an explicit "Y"/"y" answer
	// counts as yes
	Confirm(prompt string) (bool, error)

	// AwaitAck blocks until the operator presses Enter
	AwaitAck(prompt string) error
}

// ConsolePrompter reads operator input from stdin
type ConsolePrompter struct {
	reader *bufio.Reader
}

// NewConsolePrompter creates a prompter bound to stdin/stdout
func NewConsolePrompter() *ConsolePrompter {
	return &ConsolePrompter{reader: bufio.NewReader(os.Stdin)}
}

func (p *ConsolePrompter) ReadLine(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := p.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (p *ConsolePrompter) ReadSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	secret, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read secret input: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}

func (p *ConsolePrompter) Confirm(prompt string) (bool, error) {
	answer, err := p.ReadLine(prompt + " (Y/N): ")
	if err != nil {
		return false, err
	}
	return strings.EqualFold(answer, "y"), nil
}

func (p *ConsolePrompter) AwaitAck(prompt string) error {
	fmt.Print(prompt)
	_, err := p.reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read acknowledgement: %w", err)
	}
	return nil
}

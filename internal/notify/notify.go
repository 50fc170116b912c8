// Package notify delivers short human-readable notices (a title and a body)
// about finished operations. Delivery is best effort; callers log failures
// and carry on.
package notify

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/tech-arch1tect/ziphub/internal/logging"

	"go.uber.org/zap"
)

type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

type Func func(ctx context.Context, title, body string) error

func (f Func) Notify(ctx context.Context, title, body string) error {
	return f(ctx, title, body)
}

type LogNotifier struct {
	logger *logging.Logger
}

func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notify")}
}

func (n *LogNotifier) Notify(_ context.Context, title, body string) error {
	n.logger.Info("notification",
		zap.String("title", title),
		zap.String("body", body),
	)
	return nil
}

// CommandNotifier hands the notice to an external program such as
// notify-send or terminal-notifier. The title and body are appended as the
// last two arguments.
type CommandNotifier struct {
	name    string
	args    []string
	timeout time.Duration
}

func NewCommandNotifier(command string) (*CommandNotifier, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("notify command is empty")
	}
	return &CommandNotifier{
		name:    fields[0],
		args:    fields[1:],
		timeout: 5 * time.Second,
	}, nil
}

func (n *CommandNotifier) Notify(ctx context.Context, title, body string) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	args := append(append([]string{}, n.args...), title, body)
	output, err := exec.CommandContext(ctx, n.name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("notify command %s failed: %w: %s", n.name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

type multi []Notifier

func (m multi) Notify(ctx context.Context, title, body string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, title, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Multi notifies every non-nil notifier, even when earlier ones fail.
func Multi(notifiers ...Notifier) Notifier {
	out := make(multi, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

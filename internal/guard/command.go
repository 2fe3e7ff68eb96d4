package guard

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Command is the unit of work the guard wraps. Run must respect ctx: the
// guard enforces its per-attempt timeout through context cancellation.
type Command interface {
	Run(ctx context.Context) error
}

// Func adapts a function to Command for in-process tasks.
type Func func(ctx context.Context) error

func (f Func) Run(ctx context.Context) error { return f(ctx) }

// Exec runs an external binary. The attempt timeout lands at the process
// boundary: when the context expires the subprocess is killed, not asked.
type Exec struct {
	Binary string
	Args   []string
}

func (e *Exec) Run(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, e.Binary, e.Args...)
	cmd.Env = os.Environ()
	out, err := cmd.CombinedOutput()
	if err != nil {
		excerpt := strings.TrimSpace(string(out))
		if len(excerpt) > 500 {
			excerpt = "..." + excerpt[len(excerpt)-500:]
		}
		if excerpt != "" {
			return fmt.Errorf("%s: %w: %s", e.Binary, err, excerpt)
		}
		return fmt.Errorf("%s: %w", e.Binary, err)
	}
	return nil
}

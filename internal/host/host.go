package host

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Notifier shows a transient message to the user. A zero duration uses the
// host's default.
type Notifier interface {
	Notify(msg string, duration time.Duration)
}

// CommandDispatcher runs a host command by its namespaced id, e.g.
// "obsidian-hover-editor:convert-active-pane-to-popover".
type CommandDispatcher interface {
	ExecuteCommandByID(ctx context.Context, id string) error
}

// ViewOptions are the display options of a graph view.
type ViewOptions map[string]any

// Leaf is one pane of the host workspace.
type Leaf interface {
	ViewType() string
	Options() ViewOptions
	SetOptions(ctx context.Context, opts ViewOptions) error
}

// Workspace is the part of the host's workspace model the add-on drives.
type Workspace interface {
	ActiveFile() string
	OpenLocalGraph(ctx context.Context, file string) error
	LeavesOfType(viewType string) []Leaf
}

type LogNotifier struct {
	log *logrus.Logger
}

func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(msg string, _ time.Duration) {
	n.log.Info(msg)
}

// RecordingNotifier keeps every message; used where notifications are
// returned to a caller instead of shown.
type RecordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *RecordingNotifier) Notify(msg string, _ time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
}

func (n *RecordingNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

// AdvancedURIDispatcher writes an obsidian://advanced-uri link per command
// instead of executing it; opening the link runs the command in the host.
type AdvancedURIDispatcher struct {
	Vault string
	Out   io.Writer
}

func (d *AdvancedURIDispatcher) URI(id string) string {
	q := url.Values{}
	q.Set("vault", d.Vault)
	q.Set("commandid", id)
	return "obsidian://advanced-uri?" + q.Encode()
}

func (d *AdvancedURIDispatcher) ExecuteCommandByID(_ context.Context, id string) error {
	_, err := fmt.Fprintln(d.Out, d.URI(id))
	return err
}

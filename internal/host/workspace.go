package host

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sync"

	"github.com/obsidian-tools/plugin-manager/internal/vault"
)

// FileWorkspace edits the workspace layout the host persists in
// <config>/workspace.json. Changes are picked up the next time the vault is
// opened.
type FileWorkspace struct {
	adapter vault.Adapter
	path    string

	mu     sync.Mutex
	layout map[string]any
	active string
}

func NewFileWorkspace(adapter vault.Adapter, configDir string) *FileWorkspace {
	return &FileWorkspace{adapter: adapter, path: path.Join(configDir, "workspace.json")}
}

// Load reads workspace.json. A missing file yields an empty layout.
func (w *FileWorkspace) Load(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	data, err := w.adapter.Read(ctx, w.path)
	if errors.Is(err, fs.ErrNotExist) {
		w.layout = map[string]any{}
		return nil
	}
	if err != nil {
		return err
	}
	layout := map[string]any{}
	if err := json.Unmarshal(data, &layout); err != nil {
		return fmt.Errorf("failed to parse %s: %w", w.path, err)
	}
	w.layout = layout
	return nil
}

func (w *FileWorkspace) save(ctx context.Context) error {
	data, err := json.MarshalIndent(w.layout, "", "  ")
	if err != nil {
		return err
	}
	return w.adapter.Write(ctx, w.path, data)
}

// SetActiveFile overrides the file reported by ActiveFile.
func (w *FileWorkspace) SetActiveFile(file string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.active = file
}

// ActiveFile returns the file set with SetActiveFile, else the most
// recently opened file.
func (w *FileWorkspace) ActiveFile() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active != "" {
		return w.active
	}
	files, _ := w.layout["lastOpenFiles"].([]any)
	if len(files) == 0 {
		return ""
	}
	file, _ := files[0].(string)
	return file
}

func newLeafID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// OpenLocalGraph adds a local graph leaf for file to the main area unless
// one already exists.
func (w *FileWorkspace) OpenLocalGraph(ctx context.Context, file string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.layout == nil {
		w.layout = map[string]any{}
	}
	for _, l := range w.leavesOfType("localgraph") {
		if state, _ := l.viewState["state"].(map[string]any); state != nil && state["file"] == file {
			return nil
		}
	}
	main, _ := w.layout["main"].(map[string]any)
	if main == nil {
		main = map[string]any{"id": newLeafID(), "type": "split", "direction": "vertical"}
		w.layout["main"] = main
	}
	children, _ := main["children"].([]any)
	main["children"] = append(children, map[string]any{
		"id":   newLeafID(),
		"type": "leaf",
		"state": map[string]any{
			"type": "localgraph",
			"state": map[string]any{
				"file":    file,
				"options": map[string]any{},
			},
		},
	})
	return w.save(ctx)
}

func collectLeaves(node any, viewType string, leaves []*fileLeaf) []*fileLeaf {
	switch n := node.(type) {
	case map[string]any:
		if n["type"] == "leaf" {
			if state, _ := n["state"].(map[string]any); state != nil && state["type"] == viewType {
				leaves = append(leaves, &fileLeaf{viewState: state})
			}
			return leaves
		}
		for _, key := range []string{"main", "left", "right", "children"} {
			if child, ok := n[key]; ok {
				leaves = collectLeaves(child, viewType, leaves)
			}
		}
	case []any:
		for _, child := range n {
			leaves = collectLeaves(child, viewType, leaves)
		}
	}
	return leaves
}

func (w *FileWorkspace) leavesOfType(viewType string) []*fileLeaf {
	leaves := collectLeaves(w.layout, viewType, nil)
	for _, l := range leaves {
		l.workspace = w
	}
	return leaves
}

func (w *FileWorkspace) LeavesOfType(viewType string) []Leaf {
	w.mu.Lock()
	defer w.mu.Unlock()
	fileLeaves := w.leavesOfType(viewType)
	leaves := make([]Leaf, len(fileLeaves))
	for i, l := range fileLeaves {
		leaves[i] = l
	}
	return leaves
}

type fileLeaf struct {
	workspace *FileWorkspace
	viewState map[string]any
}

func (l *fileLeaf) ViewType() string {
	t, _ := l.viewState["type"].(string)
	return t
}

func (l *fileLeaf) state() map[string]any {
	state, _ := l.viewState["state"].(map[string]any)
	if state == nil {
		state = map[string]any{}
		l.viewState["state"] = state
	}
	return state
}

func (l *fileLeaf) Options() ViewOptions {
	l.workspace.mu.Lock()
	defer l.workspace.mu.Unlock()
	opts, _ := l.state()["options"].(map[string]any)
	return ViewOptions(opts)
}

func (l *fileLeaf) SetOptions(ctx context.Context, opts ViewOptions) error {
	l.workspace.mu.Lock()
	defer l.workspace.mu.Unlock()
	l.state()["options"] = map[string]any(opts)
	return l.workspace.save(ctx)
}

package progrock

import (
	"cmp"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/vito/progrock"
	"go.trai.ch/pack/internal/ui/style"
)

// Module states shown in the summary.
const (
	StatusRunning  = "running"
	StatusBuilt    = "built"
	StatusCached   = "cached"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
)

var _ progrock.Writer = (*Board)(nil)

// VertexState is the latest known state of one recorded vertex.
type VertexState struct {
	Name     string
	Status   string
	Error    string
	Duration time.Duration
}

// Board is a progrock.Writer that folds status updates into the latest state
// of every vertex. Vertices recorded again under the same digest replace their
// previous state.
type Board struct {
	mu       sync.Mutex
	vertices map[string]*progrock.Vertex
}

// NewBoard creates an empty Board.
func NewBoard() *Board {
	return &Board{vertices: make(map[string]*progrock.Vertex)}
}

// WriteStatus records the vertices carried by an update.
func (b *Board) WriteStatus(update *progrock.StatusUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, v := range update.GetVertexes() {
		b.vertices[v.Id] = v
	}
	return nil
}

// Close implements progrock.Writer.
func (b *Board) Close() error {
	return nil
}

// Vertices returns the state of every vertex, sorted by name.
func (b *Board) Vertices() []VertexState {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]VertexState, 0, len(b.vertices))
	for _, v := range b.vertices {
		out = append(out, stateOf(v))
	}
	slices.SortFunc(out, func(a, b VertexState) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

func stateOf(v *progrock.Vertex) VertexState {
	s := VertexState{Name: v.Name, Status: StatusRunning}
	switch {
	case v.Canceled:
		s.Status = StatusCanceled
	case v.Error != nil:
		s.Status = StatusFailed
		s.Error = *v.Error
	case v.Cached:
		s.Status = StatusCached
	case v.Completed != nil:
		s.Status = StatusBuilt
	}
	if v.Started != nil && v.Completed != nil {
		s.Duration = v.Completed.AsTime().Sub(v.Started.AsTime())
	}
	return s
}

// WriteSummary renders one line per vertex followed by a count per status.
// Names below root are shown relative to it.
func (b *Board) WriteSummary(w io.Writer, root string) error {
	vertices := b.Vertices()
	if len(vertices) == 0 {
		return nil
	}

	ok := lipgloss.NewStyle().Foreground(style.Green)
	cached := lipgloss.NewStyle().Foreground(style.Slate)
	failed := lipgloss.NewStyle().Foreground(style.Red)
	running := lipgloss.NewStyle().Foreground(style.Yellow)

	counts := make(map[string]int)
	if _, err := fmt.Fprintln(w, "Modules"); err != nil {
		return err
	}
	for _, v := range vertices {
		counts[v.Status]++
		var line string
		switch v.Status {
		case StatusBuilt:
			line = fmt.Sprintf("%s %s %s", ok.Render(style.Check), relative(root, v.Name), v.Duration.Round(time.Microsecond))
		case StatusCached:
			line = fmt.Sprintf("%s %s %s", cached.Render("•"), relative(root, v.Name), StatusCached)
		case StatusFailed:
			line = fmt.Sprintf("%s %s %s", failed.Render(style.Cross), relative(root, v.Name), v.Error)
		default:
			line = fmt.Sprintf("%s %s %s", running.Render(style.Warning), relative(root, v.Name), v.Status)
		}
		if _, err := fmt.Fprintln(w, "  "+line); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "%d modules: %d built, %d cached, %d failed\n",
		len(vertices), counts[StatusBuilt], counts[StatusCached], counts[StatusFailed])
	return err
}

func relative(root, name string) string {
	if root == "" || !filepath.IsAbs(name) {
		return name
	}
	rel, err := filepath.Rel(root, name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return name
	}
	return filepath.ToSlash(rel)
}

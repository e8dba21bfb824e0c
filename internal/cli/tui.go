package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/strataviz/strataflow/pkg/tree"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// builderPhase tracks which list the builder is showing.
type builderPhase int

const (
	phaseLeaf builderPhase = iota
	phaseStage
)

// BuilderModel is the bubbletea model for interactively growing a
// classification tree: pick a leaf, pick a stage type for it, repeat.
type BuilderModel struct {
	Tree  *tree.Tree
	Saved bool

	phase       builderPhase
	leaves      []*tree.Node
	leafCursor  int
	stageTypes  []tree.StageType
	stageCursor int
	target      *tree.Node
	status      string
	height      int
	offset      int
}

// NewBuilderModel creates a builder over the given tree.
func NewBuilderModel(t *tree.Tree) BuilderModel {
	return BuilderModel{
		Tree:   t,
		leaves: t.Leaves(),
		height: 15,
	}
}

func (m BuilderModel) Init() tea.Cmd {
	return nil
}

func (m BuilderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.phase == phaseStage {
			return m.updateStage(msg)
		}
		return m.updateLeaf(msg)
	case tea.WindowSizeMsg:
		m.height = msg.Height - 6
		if m.height < 5 {
			m.height = 5
		}
	}
	return m, nil
}

func (m BuilderModel) updateLeaf(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.leafCursor > 0 {
			m.leafCursor--
			if m.leafCursor < m.offset {
				m.offset = m.leafCursor
			}
		}
	case "down", "j":
		if m.leafCursor < len(m.leaves)-1 {
			m.leafCursor++
			if m.leafCursor >= m.offset+m.height {
				m.offset = m.leafCursor - m.height + 1
			}
		}
	case "w":
		m.Saved = true
		return m, tea.Quit
	case "enter":
		leaf := m.leaves[m.leafCursor]
		available, err := m.Tree.AvailableStageTypes(leaf.ID)
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		if len(available) == 0 {
			m.status = "no stage types left for " + leaf.ID
			return m, nil
		}
		m.target = leaf
		m.stageTypes = available
		m.stageCursor = 0
		m.phase = phaseStage
		m.status = ""
	}
	return m, nil
}

func (m BuilderModel) updateStage(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.phase = phaseLeaf
	case "up", "k":
		if m.stageCursor > 0 {
			m.stageCursor--
		}
	case "down", "j":
		if m.stageCursor < len(m.stageTypes)-1 {
			m.stageCursor++
		}
	case "enter":
		st := m.stageTypes[m.stageCursor]
		if st.Kind == tree.KindExpression {
			m.status = "expression stages need a rule definition; add them via the API"
			return m, nil
		}
		if err := m.Tree.AddStage(m.target.ID, st.ID, nil); err != nil {
			m.status = err.Error()
			return m, nil
		}
		n, _ := m.Tree.Node(m.target.ID)
		m.status = fmt.Sprintf("split %s into %d branches", m.target.ID, len(n.ChildIDs))
		m.leaves = m.Tree.Leaves()
		m.leafCursor = 0
		m.offset = 0
		m.phase = phaseLeaf
	}
	return m, nil
}

func (m BuilderModel) View() string {
	if m.phase == phaseStage {
		return m.viewStage()
	}
	return m.viewLeaf()
}

func (m BuilderModel) viewLeaf() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Leaf Node"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ split  w write & quit  q quit"))
	b.WriteString("\n\n")

	end := m.offset + m.height
	if end > len(m.leaves) {
		end = len(m.leaves)
	}

	rows := [][]string{}
	for i := m.offset; i < end; i++ {
		leaf := m.leaves[i]

		cursor := "  "
		if i == m.leafCursor {
			cursor = "▸ "
		}

		path := m.Tree.PathLabel(leaf)
		rows = append(rows, []string{cursor, leaf.ID, fmt.Sprintf("%d", leaf.Stage), path})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Node", "Stage", "Path").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if m.offset+row == m.leafCursor {
				return lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
			}
			return lipgloss.NewStyle().Foreground(colorWhite)
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]  %d nodes total", m.leafCursor+1, len(m.leaves), m.Tree.NodeCount())))
	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(StyleWarning.Render("  " + m.status))
	}

	return b.String()
}

func (m BuilderModel) viewStage() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Stage Type"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("arrows: navigate  enter: apply  esc: back  q: quit"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("target: " + m.target.ID))
	b.WriteString("\n\n")

	for i, st := range m.stageTypes {
		cursor := "  "
		if i == m.stageCursor {
			cursor = "> "
		}

		detail := st.Kind.String()
		if len(st.Metrics) > 0 {
			detail += "  " + strings.Join(st.Metrics, ", ")
		}

		line := fmt.Sprintf("%s%-22s %s", cursor, st.DisplayName, listDimStyle.Render(detail))

		if i == m.stageCursor {
			b.WriteString(listSelectedStyle.Render(line))
		} else {
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(StyleWarning.Render("  " + m.status))
	}

	return b.String()
}

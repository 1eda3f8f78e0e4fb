package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"askpdf/internal/embedding"
	"askpdf/internal/models"
	"askpdf/internal/session"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"
)

type focus int

const (
	focusFile focus = iota
	focusQuery
)

// lines taken by everything except the viewport and the hints
const chromeLines = 14

type panel struct {
	title string
	body  string
}

// Model is the Bubble Tea model driving one session.
type Model struct {
	ctx      context.Context
	session  *session.Session
	topK     int
	file     textinput.Model
	query    textinput.Model
	focus    focus
	viewport viewport.Model
	markdown *glamour.TermRenderer

	panels   []panel
	expanded bool
	status   string
	errText  string
	hints    []string
	width    int
	height   int
	ready    bool
}

// New creates a model over s. Queries return topK chunks.
func New(ctx context.Context, s *session.Session, topK int) Model {
	file := textinput.New()
	file.Prompt = "File: "
	file.Placeholder = "path to a .pdf, .docx, .xlsx, .md or .txt file"
	file.CharLimit = 0
	file.ShowSuggestions = true
	file.KeyMap.AcceptSuggestion = key.NewBinding(key.WithKeys("right"))
	file.Focus()

	query := textinput.New()
	query.Prompt = "> "
	query.Placeholder = "Ask a question about your document"
	query.CharLimit = 0

	md, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dracula"),
		glamour.WithWordWrap(0),
	)
	if err != nil {
		log.Warn().Err(err).Msg("Markdown renderer unavailable, showing raw text")
	}

	return Model{
		ctx:      ctx,
		session:  s,
		topK:     topK,
		file:     file,
		query:    query,
		viewport: viewport.New(0, 0),
		markdown: md,
		status:   "Upload a document to start.",
	}
}

// WithSuggestions offers paths as completions in the file input, accepted
// with the right arrow.
func (m Model) WithSuggestions(paths []string) Model {
	m.file.SetSuggestions(paths)
	return m
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "tab":
			m.toggleProvider()
			m.refresh()
			return m, nil
		case "shift+tab":
			return m, m.switchFocus()
		case "ctrl+e":
			m.expanded = !m.expanded
			m.refresh()
			return m, nil
		case "pgdown":
			m.viewport.PageDown()
			return m, nil
		case "pgup":
			m.viewport.PageUp()
			return m, nil
		case "enter":
			var cmd tea.Cmd
			if m.focus == focusFile {
				if m.upload(m.file.Value()) {
					cmd = m.switchFocus()
				}
			} else {
				m.search(m.query.Value())
			}
			m.refresh()
			return m, cmd
		}
	}

	var cmd tea.Cmd
	if m.focus == focusFile {
		m.file, cmd = m.file.Update(msg)
	} else {
		m.query, cmd = m.query.Update(msg)
	}
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Ask your PDF"))
	b.WriteString("\n")
	b.WriteString(m.providerRadio())
	b.WriteString("\n")
	b.WriteString(m.box(m.file.View(), m.focus == focusFile))
	b.WriteString("\n")
	b.WriteString(resultBoxStyle.Render(m.viewport.View()))
	b.WriteString("\n")
	b.WriteString(m.box(m.query.View(), m.focus == focusQuery))
	b.WriteString("\n")
	if m.errText != "" {
		b.WriteString(errorStyle.Render(m.errText))
		b.WriteString("\n")
	}
	for _, h := range m.hints {
		b.WriteString(hintStyle.Render("  - " + h))
		b.WriteString("\n")
	}
	b.WriteString(statusStyle.Render(m.status))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter: submit  right: complete path  tab: switch embedding  shift+tab: switch input  ctrl+e: expand chunks  pgup/pgdown: scroll  esc: quit"))
	return b.String()
}

// upload reads the file at path into the session and builds the knowledge
// base right away. It reports whether the document has chunks to search.
func (m *Model) upload(path string) bool {
	path = strings.TrimSpace(path)
	if path == "" {
		return false
	}
	m.clearError()
	m.panels = nil

	data, err := os.ReadFile(path)
	if err != nil {
		m.fail(fmt.Errorf("failed to read %s: %w", path, err))
		return false
	}
	if err := m.session.Upload(filepath.Base(path), data); err != nil {
		m.fail(err)
		return false
	}
	if m.session.State() != session.ChunksReady {
		m.status = fmt.Sprintf("%s has no text to search.", filepath.Base(path))
		return false
	}

	m.showPreview()
	m.build()
	return true
}

func (m *Model) showPreview() {
	m.panels = nil
	for _, c := range m.session.Preview(models.PreviewChunks) {
		m.panels = append(m.panels, panel{title: fmt.Sprintf("Chunk %d", c.Index+1), body: c.Content})
	}
}

func (m *Model) build() {
	err := m.session.BuildKnowledgeBase(m.ctx)
	if err != nil {
		m.fail(err)
	}
	m.collectNotices()
	if err != nil {
		return
	}
	m.status = fmt.Sprintf("Knowledge base built with %s.", m.session.KnowledgeBase().Provider().Name())
}

func (m *Model) toggleProvider() {
	next := embedding.KindLocal
	if m.session.Provider() == embedding.KindLocal {
		next = embedding.KindRemote
	}
	m.clearError()
	if err := m.session.SelectProvider(next); err != nil {
		m.fail(err)
		return
	}
	m.status = fmt.Sprintf("Using %s embeddings.", providerLabel(next))
	if m.session.State() >= session.ChunksReady {
		// results of the previous provider no longer apply
		m.showPreview()
		m.build()
	}
}

func (m *Model) search(q string) {
	if strings.TrimSpace(q) == "" {
		return
	}
	m.clearError()
	matches, err := m.session.Query(m.ctx, q, m.topK)
	if err != nil {
		m.fail(err)
	}
	m.collectNotices()
	if err != nil {
		return
	}
	m.panels = nil
	for i, match := range matches {
		m.panels = append(m.panels, panel{
			title: fmt.Sprintf("Result %d: chunk %d (similarity %.3f)", i+1, match.Chunk.Index+1, match.Similarity),
			body:  match.Chunk.Content,
		})
	}
	m.status = fmt.Sprintf("Found %d chunks for %q.", len(matches), q)
}

func (m *Model) switchFocus() tea.Cmd {
	if m.focus == focusFile {
		m.focus = focusQuery
		m.file.Blur()
		return m.query.Focus()
	}
	m.focus = focusFile
	m.query.Blur()
	return m.file.Focus()
}

func (m *Model) fail(err error) {
	m.errText = "Error: " + err.Error()
	m.hints = nil
	var buildErr *session.BuildError
	if errors.As(err, &buildErr) {
		m.errText = fmt.Sprintf("Error building knowledge base with %s: %v", buildErr.Provider, buildErr.Err)
		m.hints = slices.Clone(buildErr.Hints)
	}
	m.status = ""
	m.resize()
}

func (m *Model) clearError() {
	m.errText = ""
	m.hints = nil
	m.resize()
}

// collectNotices shows the warnings a degraded provider reported.
func (m *Model) collectNotices() {
	m.hints = append(m.hints, m.session.Notices()...)
	m.resize()
}

func (m *Model) resize() {
	if !m.ready {
		return
	}
	fw, fh := resultBoxStyle.GetFrameSize()
	m.viewport.Width = max(20, m.width-fw)
	m.viewport.Height = max(3, m.height-chromeLines-len(m.hints)-fh)
	m.file.Width = max(10, m.width-12)
	m.query.Width = max(10, m.width-8)
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.content())
}

func (m Model) content() string {
	doc := m.session.Document()
	if doc == nil {
		return "No document loaded."
	}

	var b strings.Builder
	b.WriteString(sectionStyle.Render(fmt.Sprintf("%s (%d pages)", doc.Name, doc.Pages)))
	b.WriteString("\n")
	b.WriteString(previewText(doc.Text, models.TextPreviewChars))
	b.WriteString("\n\n")

	if kb := m.session.KnowledgeBase(); kb != nil {
		b.WriteString(m.renderMarkdown(detailsMarkdown(kb.Info())))
		b.WriteString("\n")
	}

	for _, p := range m.panels {
		b.WriteString(panelTitleStyle.Render(p.title))
		b.WriteString("\n")
		body := p.body
		if !m.expanded {
			body = previewText(firstLine(body), max(20, m.viewport.Width-4))
		}
		b.WriteString(panelStyle.Render(body))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderMarkdown(md string) string {
	if m.markdown == nil {
		return md
	}
	out, err := m.markdown.Render(md)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to render markdown")
		return md
	}
	return out
}

func (m Model) providerRadio() string {
	items := make([]string, 0, 2)
	for _, kind := range []embedding.Kind{embedding.KindRemote, embedding.KindLocal} {
		mark := "( )"
		style := radioStyle
		if kind == m.session.Provider() {
			mark = "(•)"
			style = radioSelectedStyle
		}
		items = append(items, style.Render(mark+" "+providerLabel(kind)))
	}
	return "Embedding: " + strings.Join(items, "   ")
}

func (m Model) box(content string, focused bool) string {
	if focused {
		return focusedBoxStyle.Render(content)
	}
	return inputBoxStyle.Render(content)
}

func detailsMarkdown(info models.KnowledgeBaseInfo) string {
	return fmt.Sprintf("### Knowledge base details\n\n"+
		"- **Total vectors:** %d\n"+
		"- **Dimension:** %d\n"+
		"- **Chunks:** %d\n"+
		"- **Embedding model:** %s (%s)\n",
		info.Vectors, info.Dimension, info.Chunks, info.Provider, info.Model)
}

func providerLabel(kind embedding.Kind) string {
	if kind == embedding.KindLocal {
		return models.LocalProviderName
	}
	return models.RemoteProviderName
}

func previewText(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

var (
	titleStyle         = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	sectionStyle       = lipgloss.NewStyle().Bold(true)
	radioStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	radioSelectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	focusedBoxStyle    = inputBoxStyle.BorderForeground(lipgloss.Color("12"))
	resultBoxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	panelTitleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	panelStyle         = lipgloss.NewStyle().PaddingLeft(2)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	hintStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	helpStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

package dashboard

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/meme-sniper/pkg/db"
)

const actionTimeout = 15 * time.Second

var (
	green  = lipgloss.Color("#10b981")
	red    = lipgloss.Color("#ef4444")
	purple = lipgloss.Color("#a855f7")
	yellow = lipgloss.Color("#eab308")
	muted  = lipgloss.Color("#5a6278")

	panelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#333a50")).Padding(0, 1)
	titleStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	signalStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#000000")).Background(yellow).Padding(0, 1)
	buyStyle     = lipgloss.NewStyle().Foreground(green).Bold(true)
	sellStyle    = lipgloss.NewStyle().Foreground(red).Bold(true)
	walletStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Background(purple).Padding(0, 1)
	focusStyle   = lipgloss.NewStyle().Foreground(purple).Bold(true)
	noticeStyle  = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(purple).Padding(1, 3)
	errLineStyle = lipgloss.NewStyle().Foreground(red)
)

type notice struct {
	title, message string
}

// Notices queues notifications raised while the view handles a message. The
// TUI shows them one at a time as modal boxes.
type Notices struct {
	pending []notice
}

func (q *Notices) Notify(title, message string) {
	q.pending = append(q.pending, notice{title, message})
}

type mode int

const (
	modeBrowse mode = iota
	modeEditField
	modeTrack
	modeUntrack
)

type updateMsg struct{ v interface{} }

type sessionClosedMsg struct{}

// Model renders a mounted View with bubbletea.
type Model struct {
	view    *View
	session *Session
	notes   *Notices

	notice *notice
	mode   mode
	focus  int
	input  string
	status string

	width, height int
}

// NewModel builds a TUI over view. The notifier passed to NewView must be
// the one returned here so notifications become modal.
func NewModel(view *View, session *Session, notes *Notices) *Model {
	return &Model{view: view, session: session, notes: notes}
}

// NewNotices returns an empty queue.
func NewNotices() *Notices { return &Notices{} }

func listen(ch <-chan interface{}) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return sessionClosedMsg{}
		}
		return updateMsg{u}
	}
}

func (m *Model) Init() tea.Cmd {
	return listen(m.session.Updates())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case updateMsg:
		m.view.Handle(msg.v)
		cmd = listen(m.session.Updates())
	case sessionClosedMsg:
		if err := m.session.Err(); err != nil {
			m.status = "push channel closed: " + err.Error()
		}
	case SaveResult, WalletResult, AccountResult:
		m.view.Handle(msg)
	case tea.KeyMsg:
		cmd = m.handleKey(msg)
	}

	if m.notice == nil && len(m.notes.pending) > 0 {
		n := m.notes.pending[0]
		m.notes.pending = m.notes.pending[1:]
		m.notice = &n
	}
	return m, cmd
}

func (m *Model) handleKey(k tea.KeyMsg) tea.Cmd {
	if k.Type == tea.KeyCtrlC {
		return m.quit()
	}

	// the notice blocks every other interaction until acknowledged
	if m.notice != nil {
		switch k.Type {
		case tea.KeyEnter, tea.KeyEsc, tea.KeySpace:
			m.notice = nil
		}
		return nil
	}

	switch m.mode {
	case modeEditField:
		return m.handleEdit(k)
	case modeTrack, modeUntrack:
		return m.handleAccountInput(k)
	}

	switch k.String() {
	case "q":
		return m.quit()
	case "tab", "down", "j":
		m.focus = (m.focus + 1) % len(Fields)
	case "shift+tab", "up", "k":
		m.focus = (m.focus + len(Fields) - 1) % len(Fields)
	case "enter", "e":
		m.mode = modeEditField
		m.input = formatNumber(Fields[m.focus].Value(m.view.Draft()))
		m.status = ""
	case "s":
		if m.view.Saving() {
			return nil
		}
		return m.saveCmd()
	case "w":
		return m.walletCmd()
	case "a":
		m.mode, m.input = modeTrack, ""
	case "x":
		m.mode, m.input = modeUntrack, ""
	}
	return nil
}

func (m *Model) handleEdit(k tea.KeyMsg) tea.Cmd {
	switch k.Type {
	case tea.KeyEsc:
		m.mode = modeBrowse
	case tea.KeyEnter:
		if err := m.view.SetField(Fields[m.focus], m.input); err != nil {
			m.status = err.Error()
		} else {
			m.status = ""
		}
		m.mode = modeBrowse
	case tea.KeyBackspace:
		if m.input != "" {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeyRunes:
		for _, r := range k.Runes {
			if (r >= '0' && r <= '9') || r == '.' || r == '-' || r == 'e' || r == 'E' {
				m.input += string(r)
			}
		}
	}
	return nil
}

func (m *Model) handleAccountInput(k tea.KeyMsg) tea.Cmd {
	switch k.Type {
	case tea.KeyEsc:
		m.mode = modeBrowse
	case tea.KeyEnter:
		track := m.mode == modeTrack
		username := m.input
		m.mode = modeBrowse
		backend := m.view.backend
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
			defer cancel()
			return ChangeTracking(ctx, backend, username, track)
		}
	case tea.KeyBackspace:
		if m.input != "" {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeyRunes:
		m.input += string(k.Runes)
	}
	return nil
}

func (m *Model) saveCmd() tea.Cmd {
	settings := m.view.BeginSave()
	backend := m.view.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return SaveSettings(ctx, backend, settings)
	}
}

func (m *Model) walletCmd() tea.Cmd {
	detect := m.view.detect
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return ConnectWallet(ctx, detect)
	}
}

func (m *Model) quit() tea.Cmd {
	m.session.Close()
	return tea.Quit
}

// ---- rendering ----

func (m *Model) View() string {
	if m.notice != nil {
		box := noticeStyle.Render(titleStyle.Render(m.notice.title) + "\n\n" + m.notice.message + "\n\n" + mutedStyle.Render("[enter] OK"))
		if m.width > 0 && m.height > 0 {
			return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
		}
		return box
	}

	colWidth := 48
	if m.width > 0 {
		colWidth = max(30, m.width/2-4)
	}
	rows := 10
	if m.height > 0 {
		rows = max(3, (m.height-20)/3)
	}

	feed := panelStyle.Width(colWidth).Render(renderFeed(m.view.Posts(), rows, colWidth-2))
	whales := panelStyle.Width(colWidth).Render(renderWhales(m.view.WhaleActivity(), rows*3))

	var b strings.Builder
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, feed, whales))
	b.WriteString("\n")
	b.WriteString(panelStyle.Width(colWidth*2 + 2).Render(m.renderSettings()))
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m *Model) renderStatusBar() string {
	dot := lipgloss.NewStyle().Foreground(red).Render("●") + " Disconnected"
	if m.view.SocketConnected() {
		dot = lipgloss.NewStyle().Foreground(green).Render("●") + " Connected to Backend"
	}
	w := m.view.Wallet()
	label := "Connect Phantom Wallet [w]"
	if w.Connected {
		label = "Connected: " + w.ShortAddress()
	}
	return dot + "   " + walletStyle.Render(label)
}

func renderFeed(posts []db.Post, limit, width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Live Twitter Feed"))
	if len(posts) == 0 {
		b.WriteString("\n" + mutedStyle.Render("waiting for tweets..."))
		return b.String()
	}
	for i, p := range posts {
		if i >= limit {
			b.WriteString(fmt.Sprintf("\n%s", mutedStyle.Render(fmt.Sprintf("+%d more", len(posts)-limit))))
			break
		}
		ts := "--:--:--"
		if t := p.CreatedTime(); !t.IsZero() {
			ts = t.Local().Format("15:04:05")
		}
		b.WriteString("\n\n" + titleStyle.Render("@"+p.Author) + "  " + mutedStyle.Render(ts))
		b.WriteString("\n" + truncate(p.Text, width))
		if p.HasSignal() {
			b.WriteString("\n" + signalStyle.Render("Trading Signal Detected!"))
		}
	}
	return b.String()
}

func renderWhales(items []db.WhaleActivity, limit int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Whale Activity"))
	b.WriteString("\n" + mutedStyle.Render(fmt.Sprintf("%-19s  %-4s  %12s", "Time", "Type", "Amount (SOL)")))
	if len(items) == 0 {
		b.WriteString("\n" + mutedStyle.Render("no whale activity yet"))
		return b.String()
	}
	for i, w := range items {
		if i >= limit {
			break
		}
		side := strings.ToUpper(string(w.Type))
		switch w.Type {
		case db.SideBuy:
			side = buyStyle.Render(fmt.Sprintf("%-4s", side))
		case db.SideSell:
			side = sellStyle.Render(fmt.Sprintf("%-4s", side))
		default:
			side = fmt.Sprintf("%-4s", side)
		}
		b.WriteString(fmt.Sprintf("\n%-19s  %s  %12s", w.Time, side, formatNumber(w.Amount)))
	}
	return b.String()
}

func (m *Model) renderSettings() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Bot Settings"))
	if m.view.Saving() {
		b.WriteString("  " + mutedStyle.Render("saving..."))
	}
	draft := m.view.Draft()
	for i, f := range Fields {
		value := formatNumber(f.Value(draft))
		if i == m.focus && m.mode == modeEditField {
			value = m.input + "█"
		}
		line := fmt.Sprintf("%-20s %s", f.Label(), value)
		if i == m.focus {
			line = focusStyle.Render("› " + line)
		} else {
			line = "  " + line
		}
		b.WriteString("\n" + line)
	}
	if m.status != "" {
		b.WriteString("\n" + errLineStyle.Render(m.status))
	}

	accounts := m.view.TrackedAccounts()
	tracked := mutedStyle.Render("none")
	if len(accounts) > 0 {
		tracked = "@" + strings.Join(accounts, "  @")
	}
	b.WriteString("\n\n" + titleStyle.Render("Tracked Accounts") + "  " + tracked)
	return b.String()
}

func (m *Model) renderFooter() string {
	switch m.mode {
	case modeTrack:
		return "track @" + m.input + "█  " + mutedStyle.Render("[enter] add  [esc] cancel")
	case modeUntrack:
		return "untrack @" + m.input + "█  " + mutedStyle.Render("[enter] remove  [esc] cancel")
	case modeEditField:
		return mutedStyle.Render("[enter] apply  [esc] cancel")
	}
	return mutedStyle.Render("[tab] field  [enter] edit  [s] save settings  [w] connect wallet  [a] track  [x] untrack  [q] quit")
}

func truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if width <= 3 || len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

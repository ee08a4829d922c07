package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/maxyzli/whisper-flow/internal/daemon"
	"github.com/maxyzli/whisper-flow/internal/db"
	"github.com/maxyzli/whisper-flow/internal/diag"
	"github.com/maxyzli/whisper-flow/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
)

// PanelFocus tracks which panel has keyboard focus.
type PanelFocus int

const (
	FocusHistory PanelFocus = iota
	FocusTranscript
)

// levelCeiling is the normalized level at which the meter is full.
const levelCeiling = 1.5

// TranscriptEntry is a finished dictation for display.
type TranscriptEntry struct {
	SessionID string
	Text      string
	Timestamp time.Time
}

// HistoryDisplay holds a past session for display in the history panel.
type HistoryDisplay struct {
	ID        string
	Text      string
	Timestamp time.Time
	Expanded  bool
}

// Options configures the TUI.
type Options struct {
	SocketPath  string
	JournalPath string // empty disables the run summary
	Model       string
	Language    string
}

// Model is the root bubbletea model for the whisper-flow TUI.
type Model struct {
	opts Options

	// Connection state
	client    *daemon.Client // command connection
	evClient  *daemon.Client // event subscription connection
	connected bool
	connError string

	// Recording state
	recording   bool
	ready       bool
	stopping    bool
	stage       string
	sessionID   string
	deviceName  string
	devices     []diag.Device
	deviceIndex int

	// Transcript
	entries []TranscriptEntry

	// Audio level
	level float64

	// History
	history         []HistoryDisplay
	selectedHistory int

	// Model download
	downloadModel   string
	downloadPercent int

	// UI state
	focusedPanel     PanelFocus
	width            int
	height           int
	transcriptScroll int
	transcriptLive   bool

	// Errors
	errorMessage   string
	errorTransient bool

	// Status
	statusText string

	// Journal
	store   *db.Store
	lastRun *db.Run

	// Reconnect
	reconnecting     bool
	reconnectAttempt int
}

// New creates a new Model with default state.
func New(opts Options) Model {
	if opts.SocketPath == "" {
		opts.SocketPath = daemon.SocketPath()
	}
	return Model{
		opts:           opts,
		statusText:     "Connecting to whisperflow daemon...",
		transcriptLive: true,
		focusedPanel:   FocusTranscript,
	}
}

// Init returns the initial command: connect to the daemon.
func (m Model) Init() tea.Cmd {
	return connectCmd(m.opts.SocketPath)
}

// connectCmd attempts to connect to the daemon with two connections:
// one for commands, one for event subscription.
func connectCmd(sockPath string) tea.Cmd {
	return func() tea.Msg {
		client, err := daemon.Connect(sockPath)
		if err != nil {
			return DaemonConnectErrorMsg{Err: err}
		}
		evClient, err := daemon.Connect(sockPath)
		if err != nil {
			client.Close()
			return DaemonConnectErrorMsg{Err: err}
		}
		return DaemonConnectedMsg{Client: client, EvClient: evClient}
	}
}

// subscribeCmd sends a subscribe command on the event client and starts reading events.
func subscribeCmd(evClient *daemon.Client) tea.Cmd {
	return func() tea.Msg {
		_, err := evClient.SendCommand(daemon.Command{Cmd: daemon.CmdSubscribe})
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return readEventCmd(evClient)()
	}
}

// readEventCmd reads the next event from the event client.
func readEventCmd(evClient *daemon.Client) tea.Cmd {
	return func() tea.Msg {
		ev, err := evClient.ReadEvent()
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return DaemonEventMsg{Event: ev}
	}
}

// statusCmd fetches daemon status.
func statusCmd(client *daemon.Client) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.SendCommand(daemon.Command{Cmd: daemon.CmdStatus})
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return StatusResponseMsg{Response: resp}
	}
}

// devicesCmd fetches available capture devices.
func devicesCmd(client *daemon.Client) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.SendCommand(daemon.Command{Cmd: daemon.CmdDevices})
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return DevicesResponseMsg{Response: resp}
	}
}

// startCmd sends a start recording command.
func startCmd(client *daemon.Client, device string) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.SendCommand(daemon.Command{Cmd: daemon.CmdStart, Device: device})
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return StartResponseMsg{Response: resp}
	}
}

// stopCmd ends the recording. The daemon answers once the transcript is written.
func stopCmd(client *daemon.Client, model, language string) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.SendCommand(daemon.Command{
			Cmd:      daemon.CmdStop,
			Model:    model,
			Language: language,
		})
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return StopResponseMsg{Response: resp}
	}
}

// cancelCmd discards the active recording.
func cancelCmd(client *daemon.Client) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.SendCommand(daemon.Command{Cmd: daemon.CmdCancel})
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return CancelResponseMsg{Response: resp}
	}
}

// historyCmd loads past sessions from the daemon.
func historyCmd(client *daemon.Client) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.SendCommand(daemon.Command{Cmd: daemon.CmdHistory})
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return HistoryLoadedMsg{Items: resp.History}
	}
}

// deleteHistoryCmd removes a past session.
func deleteHistoryCmd(client *daemon.Client, id string) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.SendCommand(daemon.Command{Cmd: daemon.CmdDeleteHistory, ID: id})
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return DeleteResponseMsg{Response: resp}
	}
}

// clearTransientErrorCmd fires after a delay to clear transient errors.
func clearTransientErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{}
	})
}

// reconnectCmd schedules a reconnection attempt with exponential backoff.
func reconnectCmd(attempt int) tea.Cmd {
	delay := time.Duration(1<<min(attempt, 4)) * time.Second // 1s, 2s, 4s, 8s, 16s cap
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return ReconnectTickMsg{}
	})
}

// loadRunsCmd reads the most recent journal rows from SQLite.
func loadRunsCmd(store *db.Store) tea.Cmd {
	return func() tea.Msg {
		runs, err := store.RecentRuns(context.Background(), 1)
		if err != nil {
			return RunsLoadedMsg{} // silently ignore DB errors
		}
		return RunsLoadedMsg{Runs: runs}
	}
}

// openStoreCmd opens the SQLite journal.
func openStoreCmd(path string) tea.Cmd {
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		store, err := db.Open(path)
		if err != nil {
			return nil // silently ignore if the journal is not available yet
		}
		return storeOpenedMsg{store: store}
	}
}

type storeOpenedMsg struct{ store *db.Store }

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case DaemonConnectedMsg:
		m.client = msg.Client
		m.evClient = msg.EvClient
		m.connected = true
		m.connError = ""
		m.reconnecting = false
		m.reconnectAttempt = 0
		m.statusText = "Connected"
		cmds := []tea.Cmd{
			subscribeCmd(m.evClient),
			statusCmd(m.client),
			devicesCmd(m.client),
			historyCmd(m.client),
		}
		if m.store == nil {
			cmds = append(cmds, openStoreCmd(m.opts.JournalPath))
		}
		return m, tea.Batch(cmds...)

	case DaemonConnectErrorMsg:
		m.connected = false
		m.connError = msg.Err.Error()
		m.reconnecting = true
		m.statusText = "Daemon not running. Reconnecting..."
		return m, reconnectCmd(m.reconnectAttempt)

	case StatusResponseMsg:
		r := msg.Response
		if r.Recording != nil {
			m.recording = *r.Recording
			if m.recording {
				m.statusText = "Recording"
			} else {
				m.statusText = "Idle"
			}
		}
		if r.SessionID != "" {
			m.sessionID = r.SessionID
		}
		if r.Device != "" {
			m.deviceName = m.deviceLabel(r.Device)
		}
		return m, nil

	case DevicesResponseMsg:
		if msg.Response.Devices != nil {
			m.devices = msg.Response.Devices
			if m.deviceIndex >= len(m.devices) {
				m.deviceIndex = 0
			}
			if m.deviceName == "" && len(m.devices) > 0 {
				m.deviceName = m.devices[m.deviceIndex].Name
			}
		}
		return m, nil

	case StartResponseMsg:
		r := msg.Response
		if !r.OK {
			return m, m.showError(r.Error, true)
		}
		m.recording = true
		if r.SessionID != "" {
			m.sessionID = r.SessionID
		}
		if r.AlreadyActive != nil && *r.AlreadyActive {
			m.statusText = "Already recording"
			return m, nil
		}
		m.ready = false
		m.statusText = "Starting"
		return m, nil

	case StopResponseMsg:
		r := msg.Response
		m.stopping = false
		m.recording = false
		m.ready = false
		m.level = 0
		if !r.OK {
			m.statusText = "Failed"
			return m, m.showError(r.Error, false)
		}
		m.statusText = "Idle"
		if r.Text != "" && !m.hasEntry(r.SessionID) {
			m.appendEntry(r.SessionID, r.Text)
		}
		return m, m.refreshAfterRun()

	case CancelResponseMsg:
		r := msg.Response
		if !r.OK {
			return m, m.showError(r.Error, true)
		}
		m.recording = false
		m.ready = false
		m.level = 0
		m.statusText = "Cancelled"
		return m, nil

	case HistoryLoadedMsg:
		m.history = m.history[:0]
		for _, it := range msg.Items {
			m.history = append(m.history, HistoryDisplay{
				ID:        it.ID,
				Text:      it.Text,
				Timestamp: it.Timestamp,
			})
		}
		if m.selectedHistory >= len(m.history) {
			m.selectedHistory = max(0, len(m.history)-1)
		}
		return m, nil

	case DeleteResponseMsg:
		if !msg.Response.OK {
			return m, m.showError(msg.Response.Error, true)
		}
		return m, historyCmd(m.client)

	case RunsLoadedMsg:
		if len(msg.Runs) > 0 {
			run := msg.Runs[0]
			m.lastRun = &run
		}
		return m, nil

	case DaemonEventMsg:
		cmd := m.handleEvent(msg.Event)
		// Continue reading events on event client
		return m, tea.Batch(cmd, readEventCmd(m.evClient))

	case DaemonEventErrorMsg:
		m.connected = false
		m.connError = msg.Err.Error()
		m.statusText = "Disconnected. Reconnecting..."
		m.reconnecting = true
		m.stopping = false
		if m.client != nil {
			m.client.Close()
			m.client = nil
		}
		if m.evClient != nil {
			m.evClient.Close()
			m.evClient = nil
		}
		return m, reconnectCmd(m.reconnectAttempt)

	case ReconnectTickMsg:
		m.reconnectAttempt++
		return m, connectCmd(m.opts.SocketPath)

	case storeOpenedMsg:
		m.store = msg.store
		return m, loadRunsCmd(m.store)

	case ClearTransientErrorMsg:
		if m.errorTransient {
			m.errorMessage = ""
			m.errorTransient = false
		}
		return m, nil
	}

	return m, nil
}

// handleEvent processes a daemon event and returns any resulting command.
func (m *Model) handleEvent(ev daemon.Event) tea.Cmd {
	switch ev.Event {
	case daemon.EvReady:
		m.ready = true
		m.statusText = "Listening"

	case daemon.EvLevel:
		if ev.Level != nil {
			m.level = *ev.Level
		}

	case daemon.EvStatus:
		m.stage = ev.State
		if ev.Recording != nil {
			m.recording = *ev.Recording
		}
		if ev.SessionID != "" {
			m.sessionID = ev.SessionID
		}
		switch ev.State {
		case "recording":
			m.statusText = "Recording"
		case "idle":
			m.statusText = "Idle"
			m.ready = false
			m.level = 0
		case "completed", "failed":
			m.ready = false
			m.level = 0
			m.statusText = capitalize(ev.State)
			return m.refreshAfterRun()
		case "":
		default:
			m.ready = false
			m.statusText = capitalize(ev.State) + "..."
		}

	case daemon.EvTranscript:
		if !m.hasEntry(ev.SessionID) {
			m.appendEntry(ev.SessionID, ev.Text)
		}

	case daemon.EvDownloadProgress:
		m.downloadModel = ev.Model
		if ev.Percent != nil {
			m.downloadPercent = *ev.Percent
		}
		if m.downloadPercent >= 100 {
			m.downloadModel = ""
		}

	case daemon.EvError:
		if ev.Model != "" {
			m.downloadModel = ""
		}
		return m.showError(ev.Message, true)
	}

	return nil
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyQuitUpper, KeyCtrlC:
		if m.client != nil {
			m.client.Close()
		}
		if m.evClient != nil {
			m.evClient.Close()
		}
		if m.store != nil {
			m.store.Close()
		}
		return m, tea.Quit

	case KeySpace:
		if !m.connected || m.stopping {
			return m, nil
		}
		if m.recording {
			m.stopping = true
			m.statusText = "Stopping..."
			return m, stopCmd(m.client, m.opts.Model, m.opts.Language)
		}
		return m, startCmd(m.client, m.selectedDeviceID())

	case KeyCancel:
		if !m.connected || !m.recording || m.stopping {
			return m, nil
		}
		return m, cancelCmd(m.client)

	case KeyTab:
		if m.focusedPanel == FocusHistory {
			m.focusedPanel = FocusTranscript
		} else {
			m.focusedPanel = FocusHistory
		}
		return m, nil

	case KeyJ:
		if m.focusedPanel == FocusHistory && m.selectedHistory < len(m.history)-1 {
			m.selectedHistory++
		}
		return m, nil

	case KeyK:
		if m.focusedPanel == FocusHistory && m.selectedHistory > 0 {
			m.selectedHistory--
		}
		return m, nil

	case KeyEnter:
		if m.focusedPanel == FocusHistory && m.selectedHistory < len(m.history) {
			m.history[m.selectedHistory].Expanded = !m.history[m.selectedHistory].Expanded
		}
		return m, nil

	case KeyDelete:
		if !m.connected || m.focusedPanel != FocusHistory || m.selectedHistory >= len(m.history) {
			return m, nil
		}
		return m, deleteHistoryCmd(m.client, m.history[m.selectedHistory].ID)

	case KeyRefresh:
		if !m.connected {
			return m, nil
		}
		return m, m.refreshAfterRun()

	case KeyUp:
		if m.focusedPanel == FocusTranscript {
			m.transcriptLive = false
			if m.transcriptScroll > 0 {
				m.transcriptScroll--
			}
		}
		return m, nil

	case KeyDown:
		if m.focusedPanel == FocusTranscript {
			maxScroll := m.maxTranscriptScroll()
			m.transcriptScroll++
			if m.transcriptScroll >= maxScroll {
				m.transcriptScroll = maxScroll
				m.transcriptLive = true
			}
		}
		return m, nil

	case KeyCycleDevice, KeyCycleDeviceUp:
		if !m.connected || len(m.devices) == 0 {
			return m, nil
		}
		m.deviceIndex = (m.deviceIndex + 1) % len(m.devices)
		m.deviceName = m.devices[m.deviceIndex].Name
		if m.recording && !m.stopping {
			// Restart on the new device, discarding what was captured so far
			return m, tea.Sequence(
				cancelCmd(m.client),
				startCmd(m.client, m.selectedDeviceID()),
			)
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) showError(msg string, transient bool) tea.Cmd {
	m.errorMessage = msg
	m.errorTransient = transient
	if transient {
		return clearTransientErrorCmd()
	}
	return nil
}

func (m *Model) refreshAfterRun() tea.Cmd {
	var cmds []tea.Cmd
	if m.client != nil {
		cmds = append(cmds, historyCmd(m.client))
	}
	if m.store != nil {
		cmds = append(cmds, loadRunsCmd(m.store))
	}
	return tea.Batch(cmds...)
}

func (m *Model) appendEntry(sessionID, text string) {
	m.entries = append(m.entries, TranscriptEntry{
		SessionID: sessionID,
		Text:      text,
		Timestamp: time.Now(),
	})
	if m.transcriptLive {
		m.scrollToBottom()
	}
}

func (m Model) hasEntry(sessionID string) bool {
	if sessionID == "" {
		return false
	}
	for _, e := range m.entries {
		if e.SessionID == sessionID {
			return true
		}
	}
	return false
}

func (m Model) selectedDeviceID() string {
	if m.deviceIndex < len(m.devices) {
		return m.devices[m.deviceIndex].ID
	}
	return ""
}

func (m Model) deviceLabel(id string) string {
	for _, d := range m.devices {
		if d.ID == id {
			return d.Name
		}
	}
	return id
}

func (m *Model) scrollToBottom() {
	m.transcriptScroll = m.maxTranscriptScroll()
}

func (m Model) maxTranscriptScroll() int {
	totalLines := len(m.entries)
	visible := m.transcriptVisibleLines()
	if totalLines <= visible {
		return 0
	}
	return totalLines - visible
}

func (m Model) transcriptVisibleLines() int {
	if m.height == 0 {
		return 20
	}
	// Reserve: header(2) + status(1) + divider(1) + divider(1) + error(1) + footer(1) + padding
	reserved := 8
	return max(5, m.height-reserved)
}

func (m Model) historyPanelWidth() int {
	if m.width == 0 {
		return 30
	}
	return max(20, m.width*30/100)
}

func (m Model) transcriptPanelWidth() int {
	if m.width == 0 {
		return 60
	}
	return max(30, m.width-m.historyPanelWidth()-3)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderStatusBar())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	// Main content: history | transcript
	sections = append(sections, m.renderMainContent())

	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	if m.errorMessage != "" {
		sections = append(sections, m.renderErrorBar())
	}

	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("WHISPER-FLOW")

	var deviceInfo string
	if m.deviceName != "" {
		deviceInfo = ui.DimStyle.Render(" · " + m.deviceName)
	}

	var model string
	if m.opts.Model != "" {
		model = ui.DimStyle.Render(" [" + m.opts.Model + "]")
	}

	return title + deviceInfo + model
}

func (m Model) renderStatusBar() string {
	var dot string
	switch {
	case m.recording && m.ready:
		dot = ui.RecordingDotStyle.Render("● REC")
	case m.recording:
		dot = ui.WaitingDotStyle.Render("◌ STARTING")
	case m.stopping || isProcessing(m.stage):
		dot = ui.SpinnerStyle.Render("⟳ " + strings.ToUpper(m.stage))
	default:
		dot = ui.IdleDotStyle.Render("○ IDLE")
	}

	var level string
	if m.recording {
		level = "  " + renderLevelMeter("MIC", m.level)
	}

	var download string
	if m.downloadModel != "" {
		download = "  " + ui.SpinnerStyle.Render(fmt.Sprintf("↓ %s %d%%", m.downloadModel, m.downloadPercent))
	}

	var last string
	if m.lastRun != nil && !m.recording {
		last = "  " + ui.StatusStyle.Render(renderRunSummary(m.lastRun))
	}

	return dot + level + download + last
}

func isProcessing(stage string) bool {
	switch stage {
	case "stopping", "validating", "converting", "transcribing", "persisting":
		return true
	}
	return false
}

func renderRunSummary(r *db.Run) string {
	if r.Failed() {
		return fmt.Sprintf("last: %s failed", r.SessionID)
	}
	return fmt.Sprintf("last: %s %.1fs audio, %d chars",
		r.SessionID, r.AudioDuration.Seconds(), r.TextLength)
}

func renderLevelMeter(label string, level float64) string {
	const barLen = 8
	filled := int(level / levelCeiling * barLen)
	if filled > barLen {
		filled = barLen
	}
	if filled < 0 {
		filled = 0
	}

	var bar string
	for i := 0; i < barLen; i++ {
		if i < filled {
			pct := float64(i) / float64(barLen)
			if pct > 0.6 {
				bar += ui.LevelYellowStyle.Render("█")
			} else {
				bar += ui.LevelGreenStyle.Render("█")
			}
		} else {
			bar += ui.LevelGrayStyle.Render("░")
		}
	}

	return ui.MicLabelStyle.Render(label) + " " + bar
}

func (m Model) renderMainContent() string {
	historyW := m.historyPanelWidth()
	transcriptW := m.transcriptPanelWidth()
	contentH := m.transcriptVisibleLines()

	historyPanel := m.renderHistoryPanel(historyW, contentH)
	transcriptPanel := m.renderTranscriptPanel(transcriptW, contentH)

	divider := ui.DividerStyle.Render("│")

	historyLines := strings.Split(historyPanel, "\n")
	transcriptLines := strings.Split(transcriptPanel, "\n")

	for len(historyLines) < contentH {
		historyLines = append(historyLines, strings.Repeat(" ", historyW))
	}
	for len(transcriptLines) < contentH {
		transcriptLines = append(transcriptLines, "")
	}

	var rows []string
	for i := 0; i < contentH; i++ {
		rows = append(rows, historyLines[i]+divider+transcriptLines[i])
	}

	return strings.Join(rows, "\n")
}

func (m Model) renderHistoryPanel(width, height int) string {
	title := fmt.Sprintf("HISTORY (%d)", len(m.history))
	var header string
	if m.focusedPanel == FocusHistory {
		header = ui.PanelTitleActiveStyle.Render(title)
	} else {
		header = ui.PanelTitleStyle.Render(title)
	}

	lines := []string{padRight(header, width)}

	if len(m.history) == 0 {
		lines = append(lines, ui.DimStyle.Render("  No sessions yet..."))
		lines = append(lines, ui.DimStyle.Render("  Dictations appear here"))
	} else {
		for i, item := range m.history {
			isSelected := i == m.selectedHistory
			expandMarker := "▸"
			if item.Expanded {
				expandMarker = "▾"
			}

			label := item.Timestamp.Format("Jan 02 15:04")
			var line string
			if isSelected && m.focusedPanel == FocusHistory {
				line = ui.SelectedStyle.Render("> " + expandMarker + " " + label)
			} else {
				line = "  " + expandMarker + " " + label
			}
			lines = append(lines, truncateToWidth(line, width))

			if item.Expanded {
				for _, wl := range wrapText(item.Text, max(10, width-6)) {
					lines = append(lines, ui.DimStyle.Render("    "+wl))
				}
			} else if preview := firstLine(item.Text); preview != "" {
				lines = append(lines, ui.DimStyle.Render(truncateToWidth("    "+preview, width)))
			}
		}
	}

	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	if len(lines) > height {
		lines = lines[:height]
	}

	for i, l := range lines {
		lines[i] = padRight(l, width)
	}

	return strings.Join(lines, "\n")
}

func (m Model) renderTranscriptPanel(width, height int) string {
	var badge string
	if m.transcriptLive {
		badge = ui.LiveBadgeStyle.Render(" LIVE")
	} else {
		badge = ui.ScrollBadgeStyle.Render(" SCROLL")
	}

	var header string
	if m.focusedPanel == FocusTranscript {
		header = ui.PanelTitleActiveStyle.Render("TRANSCRIPT") + badge
	} else {
		header = ui.PanelTitleStyle.Render("TRANSCRIPT") + badge
	}

	lines := []string{header}
	contentHeight := height - 1 // subtract header line

	switch {
	case !m.connected && m.reconnecting:
		lines = append(lines, "")
		lines = append(lines, ui.ErrorTextStyle.Render("  Daemon disconnected. Reconnecting..."))
		lines = append(lines, ui.DimStyle.Render("  Start with: whisperflow daemon"))
	case !m.connected:
		lines = append(lines, ui.DimStyle.Render("  Connecting to whisperflow daemon..."))
	case len(m.entries) == 0:
		lines = append(lines, "")
		if m.recording {
			lines = append(lines, ui.DimStyle.Render("  Speak, then press Space to transcribe"))
		} else {
			lines = append(lines, ui.DimStyle.Render("  Press Space to start dictating"))
		}
	default:
		// Prefix: "[HH:MM:SS] " = 11 chars visible
		prefixWidth := 11
		textWidth := max(10, width-prefixWidth-2) // -2 for leading indent
		indentStr := strings.Repeat(" ", prefixWidth)

		var displayLines []string
		for _, e := range m.entries {
			ts := ui.TimestampStyle.Render(e.Timestamp.Format("[15:04:05]"))
			wrapped := wrapText(e.Text, textWidth)
			displayLines = append(displayLines, ts+" "+wrapped[0])
			for _, wl := range wrapped[1:] {
				displayLines = append(displayLines, indentStr+wl)
			}
		}

		start := 0
		if m.transcriptLive {
			if len(displayLines) > contentHeight {
				start = len(displayLines) - contentHeight
			}
		} else {
			start = m.transcriptScroll
		}
		if start < 0 {
			start = 0
		}

		end := min(start+contentHeight, len(displayLines))
		for i := start; i < end; i++ {
			lines = append(lines, "  "+displayLines[i])
		}
	}

	for len(lines) < height {
		lines = append(lines, "")
	}
	if len(lines) > height {
		lines = lines[:height]
	}

	return strings.Join(lines, "\n")
}

func (m Model) renderErrorBar() string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(m.errorMessage)
}

func (m Model) renderFooter() string {
	var parts []string

	if m.connected {
		if m.recording {
			parts = append(parts, ui.FooterKeyStyle.Render("Space")+ui.FooterDescStyle.Render(" Transcribe"))
			parts = append(parts, ui.FooterKeyStyle.Render("c")+ui.FooterDescStyle.Render(" Cancel"))
		} else {
			parts = append(parts, ui.FooterKeyStyle.Render("Space")+ui.FooterDescStyle.Render(" Record"))
		}
		parts = append(parts, ui.FooterKeyStyle.Render("i")+ui.FooterDescStyle.Render(" Device"))
		parts = append(parts, ui.FooterKeyStyle.Render("Tab")+ui.FooterDescStyle.Render(" Focus"))
		parts = append(parts, ui.FooterKeyStyle.Render("j/k")+ui.FooterDescStyle.Render(" Nav"))
		parts = append(parts, ui.FooterKeyStyle.Render("d")+ui.FooterDescStyle.Render(" Delete"))
		parts = append(parts, ui.FooterKeyStyle.Render("↑↓")+ui.FooterDescStyle.Render(" Scroll"))
	}

	parts = append(parts, ui.FooterKeyStyle.Render("q")+ui.FooterDescStyle.Render(" Quit"))

	return strings.Join(parts, "  ")
}

// Helpers

func padRight(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

func truncateToWidth(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible <= width {
		return s
	}
	runes := []rune(s)
	if len(runes) > width-1 {
		return string(runes[:width-1]) + "…"
	}
	return s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if len(current)+1+len(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		if current != "" {
			lines = append(lines, current)
		} else {
			lines = append(lines, "")
		}
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

// Package ui provides the Bubble Tea dashboard for the DDO node.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ddomesh/ddo-node/pkg/ui/components"
)

// StartupStep represents a step in the startup process.
type StartupStep struct {
	Name   string
	Status string // "pending", "connecting", "done", "failed"
}

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"   // Initial welcome screen
	PhaseStartup   Phase = "startup"   // Loading/connecting
	PhaseDashboard Phase = "dashboard" // Main dashboard
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// Model is the main Bubble Tea model for the dashboard.
type Model struct {
	// Components
	chains      *components.ChainsComponent
	resolutions *components.ResolutionsComponent
	stats       *components.StatsComponent

	keys KeyMap

	// Phase state
	phase        Phase
	welcomeStart time.Time

	// State
	ready      bool
	quitting   bool
	width      int
	height     int
	lastUpdate time.Time
	errors     []ErrorEntry // Persistent error panel (last 3)
	activity   []string     // Recent activity messages

	// Counters feeding the stats panel
	resolutionCount int64
	unknownCount    int64
	networkHits     int64
	errorCount      int64
	stored          int
	cached          int
	connected       int
	networks        int
	snapshots       uint64

	// Startup state
	startupComplete bool
	startupSteps    map[string]*StartupStep
	startupTime     time.Time
}

// New creates a new dashboard model.
func New() Model {
	now := time.Now()
	return Model{
		chains:       components.NewChainsComponent(),
		resolutions:  components.NewResolutionsComponent(50), // Store more for scrolling
		stats:        components.NewStatsComponent(),
		keys:         DefaultKeyMap(),
		phase:        PhaseWelcome,
		welcomeStart: now,
		errors:       make([]ErrorEntry, 0, 3),
		activity:     make([]string, 0, 8),
		startupSteps: map[string]*StartupStep{
			"config":   {Name: "Loading configuration", Status: "pending"},
			"store":    {Name: "Opening descriptor store", Status: "pending"},
			"networks": {Name: "Connecting to networks", Status: "pending"},
			"gateway":  {Name: "Starting HTTP gateway", Status: "pending"},
		},
		startupTime: now,
	}
}

// Init initializes the dashboard model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd returns a command that sends a tick every 100ms for smooth animations.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Always allow quit
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		// During welcome phase, any other key skips to startup
		if m.phase == PhaseWelcome {
			m.phase = PhaseStartup
			m.startupTime = time.Now()
			// Trigger callback directly (don't use Send() from within Update)
			if OnStartModules != nil {
				go OnStartModules()
			}
			return m, tickCmd()
		}
		// Normal key handling
		switch {
		case key.Matches(msg, m.keys.Clear):
			m.resolutions.Clear()
		case key.Matches(msg, m.keys.Errors):
			m.errors = make([]ErrorEntry, 0, 3)
		case key.Matches(msg, m.keys.Up):
			m.resolutions.ScrollUp()
		case key.Matches(msg, m.keys.Down):
			m.resolutions.ScrollDown()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case TickMsg:
		// Check if welcome timeout has elapsed
		if m.phase == PhaseWelcome && time.Since(m.welcomeStart) >= WelcomeDuration {
			m.phase = PhaseStartup
			m.startupTime = time.Now()
			// Trigger callback directly (don't use Send() from within Update)
			if OnStartModules != nil {
				go OnStartModules()
			}
		}
		return m, tickCmd()

	case StatusSnapshotMsg:
		rows := make([]components.ChainRow, 0, len(msg.Chains))
		connected := 0
		for _, ch := range msg.Chains {
			if ch.State == "connected" {
				connected++
			}
			rows = append(rows, components.ChainRow{
				ChainID:   ch.ChainID,
				Name:      ch.Name,
				State:     ch.State,
				Endpoint:  ch.Endpoint,
				Height:    ch.Height,
				Failovers: ch.Failovers,
			})
		}
		m.chains.SetRows(rows)
		m.connected = connected
		m.networks = len(msg.Chains)
		m.stored = msg.StoredDescriptors
		m.cached = msg.CachedRecords
		m.snapshots++
		m.lastUpdate = time.Now()
		m.refreshStats()

	case ResolutionMsg:
		m.resolutionCount++
		if !msg.Known {
			m.unknownCount++
		}
		if msg.Source == "network" {
			m.networkHits++
		}
		m.resolutions.Add(components.ResolutionRow{
			Time:     time.Now().Format("15:04:05"),
			ID:       msg.ID,
			Source:   msg.Source,
			Known:    msg.Known,
			Fresh:    msg.Fresh,
			Duration: msg.Duration,
		})
		m.lastUpdate = time.Now()
		m.refreshStats()

	case ChainStateMsg:
		name := msg.Network
		if name == "" {
			name = fmt.Sprintf("chain %d", msg.ChainID)
		}
		line := fmt.Sprintf("%s: %s → %s", name, msg.From, msg.To)
		if msg.Reason != "" {
			line += " (" + msg.Reason + ")"
		}
		m.activity = addActivity(m.activity, line)
		m.lastUpdate = time.Now()

	case DescriptorMsg:
		m.activity = addActivity(m.activity, fmt.Sprintf("descriptor %s %s", msg.ID, msg.Action))
		m.lastUpdate = time.Now()

	case ErrorMsg:
		m.errorCount++
		// Add to persistent errors (keep last 3)
		m.errors = append(m.errors, ErrorEntry{
			Message:   msg.Error.Error(),
			Timestamp: time.Now(),
		})
		if len(m.errors) > 3 {
			m.errors = m.errors[len(m.errors)-3:]
		}
		m.refreshStats()

	case LogMsg:
		m.activity = addActivity(m.activity, msg.Level+": "+msg.Message)

	case StartupMsg:
		if step, ok := m.startupSteps[msg.Step]; ok {
			step.Status = msg.Status
		}
		// Check if all steps are complete
		allDone := true
		for _, step := range m.startupSteps {
			if step.Status != "done" {
				allDone = false
				break
			}
		}
		if allDone {
			m.startupComplete = true
		}
	}

	return m, nil
}

// refreshStats pushes the current counters into the stats panel.
func (m Model) refreshStats() {
	m.stats.Update(components.Stats{
		StoredDescriptors: m.stored,
		CachedRecords:     m.cached,
		Resolutions:       m.resolutionCount,
		Unknown:           m.unknownCount,
		NetworkHits:       m.networkHits,
		Errors:            m.errorCount,
	})
}

// addActivity adds an activity message and returns the updated slice (keeps last 6).
func addActivity(feed []string, message string) []string {
	timestamp := time.Now().Format("15:04:05")
	line := fmt.Sprintf("[%s] %s", timestamp, message)
	feed = append(feed, line)
	if len(feed) > 6 {
		feed = feed[len(feed)-6:]
	}
	return feed
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	// Phase-based rendering
	switch m.phase {
	case PhaseWelcome:
		return m.renderWelcomeScreen()
	case PhaseStartup:
		// Show startup until the first status snapshot arrives
		if m.snapshots == 0 && !m.startupComplete {
			return m.renderStartupScreen()
		}
		// Transition to dashboard when ready
		m.phase = PhaseDashboard
		fallthrough
	case PhaseDashboard:
		// Continue to main dashboard
	}

	// Box widths need a real terminal size
	if !m.ready {
		return "\n  Starting dashboard..."
	}

	var b strings.Builder

	// Title
	title := TitleStyle.Render(" ⛓ DDO Node ")
	b.WriteString(title)
	b.WriteString("\n\n")

	// Status bar
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	// Main content: networks and counters on the left, activity and
	// resolutions on the right
	var leftContent strings.Builder
	leftContent.WriteString(m.chains.View())
	leftContent.WriteString("\n\n")
	leftContent.WriteString(m.stats.View())
	leftCol := leftContent.String()

	var rightContent strings.Builder
	rightContent.WriteString(m.renderActivityFeed())
	rightContent.WriteString("\n\n")
	rightContent.WriteString(m.resolutions.View())
	rightCol := rightContent.String()

	// Side by side if enough width
	if m.width > 140 {
		left := BoxStyle.Width(m.width/2 - 2).Render(leftCol)
		right := BoxStyle.Width(m.width/2 - 2).Render(rightCol)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	} else {
		b.WriteString(BoxStyle.Width(m.width - 4).Render(leftCol))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Width(m.width - 4).Render(rightCol))
	}

	b.WriteString("\n\n")

	// Persistent error panel (show last 3 errors)
	if len(m.errors) > 0 {
		errorHeader := lipgloss.NewStyle().Bold(true).Foreground(ColorDanger)

		b.WriteString(errorHeader.Render("ERRORS"))
		b.WriteString(MutedValue.Render(" (e: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(NegativeValue.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(MutedValue.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	// Help
	helpParts := make([]string, 0, 5)
	for _, binding := range m.keys.ShortHelp() {
		h := binding.Help()
		helpParts = append(helpParts, h.Key+": "+h.Desc)
	}
	b.WriteString(HelpStyle.Render(strings.Join(helpParts, " • ")))

	return b.String()
}

// renderActivityFeed renders the recent activity feed.
func (m Model) renderActivityFeed() string {
	blockStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA"))

	var sb strings.Builder
	sb.WriteString(HeaderStyle.Render("LIVE ACTIVITY"))
	sb.WriteString("\n\n")

	if len(m.activity) == 0 {
		sb.WriteString(MutedValue.Render("  Waiting for events..."))
	} else {
		for _, line := range m.activity {
			// Color descriptor updates differently
			if strings.Contains(line, "descriptor ") {
				sb.WriteString(blockStyle.Render("  " + line))
			} else {
				sb.WriteString(MutedValue.Render("  " + line))
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// renderWelcomeScreen renders the animated welcome screen.
func (m Model) renderWelcomeScreen() string {
	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED"))

	goldStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#F59E0B"))

	mutedStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280"))

	greenStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981"))

	// Animated dots based on time
	elapsed := time.Since(m.welcomeStart)
	dotCount := int(elapsed.Milliseconds()/300) % 4
	dots := strings.Repeat(".", dotCount)

	var sb strings.Builder

	// Center the content vertically
	sb.WriteString("\n\n\n\n")

	// ASCII art logo
	logo := `
   ██████╗ ██████╗  ██████╗     ███╗   ██╗ ██████╗ ██████╗ ███████╗
   ██╔══██╗██╔══██╗██╔═══██╗    ████╗  ██║██╔═══██╗██╔══██╗██╔════╝
   ██║  ██║██║  ██║██║   ██║    ██╔██╗ ██║██║   ██║██║  ██║█████╗
   ██║  ██║██║  ██║██║   ██║    ██║╚██╗██║██║   ██║██║  ██║██╔══╝
   ██████╔╝██████╔╝╚██████╔╝    ██║ ╚████║╚██████╔╝██████╔╝███████╗
   ╚═════╝ ╚═════╝  ╚═════╝     ╚═╝  ╚═══╝ ╚═════╝ ╚═════╝ ╚══════╝
`
	sb.WriteString(titleStyle.Render(logo))
	sb.WriteString("\n")

	// Subtitle
	subtitle := "        D A T A - A S S E T   D E S C R I P T O R   N O D E"
	sb.WriteString(mutedStyle.Render(subtitle))
	sb.WriteString("\n\n\n")

	// Tagline with gold styling
	tagline := "              📡  Peer-to-peer descriptor resolution"
	sb.WriteString(goldStyle.Render(tagline))
	sb.WriteString("\n\n\n")

	// Loading indicator
	loading := fmt.Sprintf("                  Initializing%s", dots)
	sb.WriteString(greenStyle.Render(loading))
	sb.WriteString("\n\n")

	// Skip hint
	hint := "            Press any key to skip, or wait..."
	sb.WriteString(mutedStyle.Render(hint))
	sb.WriteString("\n")

	return sb.String()
}

// renderStartupScreen renders the loading/startup screen.
func (m Model) renderStartupScreen() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		MarginBottom(1)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF"))

	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	successStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	connectingStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	failedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))

	var sb strings.Builder

	sb.WriteString("\n\n")
	sb.WriteString(titleStyle.Render("  ⛓ DDO Node"))
	sb.WriteString("\n\n")
	sb.WriteString(headerStyle.Render("  Starting up..."))
	sb.WriteString("\n\n")

	// Show startup steps in order
	stepOrder := []string{"config", "store", "networks", "gateway"}
	for _, stepKey := range stepOrder {
		step, ok := m.startupSteps[stepKey]
		if !ok {
			continue
		}

		var icon, statusText string
		var style lipgloss.Style

		switch step.Status {
		case "done":
			icon = "✓"
			statusText = "Ready"
			style = successStyle
		case "connecting":
			// Animated spinner based on time
			spinners := []string{"◐", "◓", "◑", "◒"}
			idx := int(time.Since(m.startupTime).Milliseconds()/200) % len(spinners)
			icon = spinners[idx]
			statusText = "Working..."
			style = connectingStyle
		case "failed":
			icon = "✗"
			statusText = "Failed"
			style = failedStyle
		default:
			icon = "○"
			statusText = "Pending"
			style = mutedStyle
		}

		sb.WriteString(fmt.Sprintf("  %s %s %s\n",
			style.Render(icon),
			mutedStyle.Render(step.Name),
			style.Render(statusText),
		))
	}

	sb.WriteString("\n")
	elapsed := time.Since(m.startupTime).Round(time.Second)
	sb.WriteString(mutedStyle.Render(fmt.Sprintf("  Elapsed: %s", elapsed)))
	sb.WriteString("\n\n")

	sb.WriteString(mutedStyle.Render("  Waiting for first status snapshot..."))
	sb.WriteString("\n")

	return sb.String()
}

func (m Model) renderStatusBar() string {
	var parts []string

	// Network connectivity summary
	switch {
	case m.networks == 0:
		parts = append(parts, MutedValue.Render("○ no networks"))
	case m.connected == m.networks:
		parts = append(parts, StatusConnected.Render(fmt.Sprintf("● %d/%d networks", m.connected, m.networks)))
	case m.connected > 0:
		parts = append(parts, StatusProbing.Render(fmt.Sprintf("◌ %d/%d networks", m.connected, m.networks)))
	default:
		parts = append(parts, StatusDegraded.Render(fmt.Sprintf("○ 0/%d networks", m.networks)))
	}

	// Store and cache counters
	parts = append(parts, fmt.Sprintf("Store: %d", m.stored))
	parts = append(parts, fmt.Sprintf("Cache: %d", m.cached))

	// Resolution count
	if m.resolutionCount > 0 {
		parts = append(parts, PositiveValue.Render(fmt.Sprintf("Resolutions: %d", m.resolutionCount)))
	}

	// Last update with activity indicator
	if !m.lastUpdate.IsZero() {
		ago := time.Since(m.lastUpdate).Round(time.Second)
		indicator := ""
		if ago < 2*time.Second {
			indicator = "▪" // Recent activity indicator
		}
		parts = append(parts, MutedValue.Render(fmt.Sprintf("Updated: %s ago %s", ago, indicator)))
	}

	return strings.Join(parts, "  │  ")
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// OnStartModules is called when the welcome screen completes and modules should start.
// This is set by main.go to signal when to begin loading modules.
var OnStartModules func()

// Run starts the Bubble Tea program.
func Run() error {
	Program = tea.NewProgram(New(), tea.WithAltScreen())
	_, err := Program.Run()
	return err
}

// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
	// Call OnStartModules callback when StartModulesMsg is sent
	if _, ok := msg.(StartModulesMsg); ok && OnStartModules != nil {
		OnStartModules()
	}
}

// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ConnectionStatus represents a connection's status.
type ConnectionStatus struct {
	Name       string
	Connected  bool
	Latency    time.Duration
	LastUpdate time.Time
}

// StatusComponent renders connection status plus execution safety state.
type StatusComponent struct {
	connections   []ConnectionStatus
	breakerOpen   bool
	breakerReason string
	stopActive    bool
	stopReason    string
}

// NewStatusComponent creates a new status component.
func NewStatusComponent() *StatusComponent {
	return &StatusComponent{
		connections: make([]ConnectionStatus, 0),
	}
}

// Update updates a connection's status.
func (s *StatusComponent) Update(status ConnectionStatus) {
	for i, conn := range s.connections {
		if conn.Name == status.Name {
			s.connections[i] = status
			return
		}
	}
	s.connections = append(s.connections, status)
}

// SetBreaker records the circuit breaker state.
func (s *StatusComponent) SetBreaker(open bool, reason string) {
	s.breakerOpen = open
	s.breakerReason = reason
}

// SetEmergencyStop records the emergency stop state.
func (s *StatusComponent) SetEmergencyStop(active bool, reason string) {
	s.stopActive = active
	s.stopReason = reason
}

// View renders the status component.
func (s *StatusComponent) View() string {
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	badStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	var result string

	if len(s.connections) == 0 {
		result = "No connections\n"
	}
	for _, conn := range s.connections {
		status := "● Connected"
		style := okStyle
		if !conn.Connected {
			status = "○ Disconnected"
			style = badStyle
		}

		line := fmt.Sprintf("├─ %s: %s", conn.Name, style.Render(status))
		if conn.Connected && conn.Latency > 0 {
			line += fmt.Sprintf(" (%s)", conn.Latency.Round(time.Millisecond))
		}
		result += line + "\n"
	}

	breaker := okStyle.Render("● closed")
	if s.breakerOpen {
		breaker = badStyle.Render("○ OPEN")
		if s.breakerReason != "" {
			breaker += warnStyle.Render(" " + s.breakerReason)
		}
	}
	result += fmt.Sprintf("├─ breaker: %s\n", breaker)

	stop := okStyle.Render("● inactive")
	if s.stopActive {
		stop = badStyle.Render("○ ACTIVE")
		if s.stopReason != "" {
			stop += warnStyle.Render(" " + s.stopReason)
		}
	}
	result += fmt.Sprintf("└─ emergency stop: %s", stop)

	return result
}

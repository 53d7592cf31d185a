package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rbright/askvoice/internal/session"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)
	recordingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")).Bold(true)
	processingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#CBA6F7"))
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	failureStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
	successStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	sentStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#89B4FA"))
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func (m Model) View() string {
	sections := []string{titleStyle.Render("askvoice")}

	for _, text := range m.sent {
		sections = append(sections, sentStyle.Render("📤 "+text))
	}

	if status := m.statusLine(); status != "" {
		sections = append(sections, status)
	}

	counter := dimStyle.Render(fmt.Sprintf("%d/%d", len([]rune(m.pending)), MaxInputLength))
	sections = append(sections, inputStyle.Render(m.input.View()), counter)

	for _, n := range m.live {
		style := successStyle
		if n.Category.Failure() {
			style = failureStyle
		}
		sections = append(sections, style.Render(n.Text))
	}

	if m.err != nil {
		sections = append(sections, failureStyle.Render("error: "+m.err.Error()))
	}

	sections = append(sections, dimStyle.Render(m.helpLine()))
	return strings.Join(sections, "\n") + "\n"
}

func (m Model) statusLine() string {
	switch m.snap.State {
	case session.HostRecording:
		return recordingStyle.Render("🔴 Đang ghi âm... " + session.FormatElapsed(m.snap.Elapsed))
	case session.HostProcessing:
		return processingStyle.Render("🔄 Đang xử lý giọng nói...")
	}
	if !m.snap.VoiceEnabled {
		return dimStyle.Render(unavailableReason(m.snap))
	}
	return ""
}

func unavailableReason(snap session.Snapshot) string {
	switch {
	case !snap.Capability.DeviceAvailable && !snap.Capability.ServiceAvailable:
		return "🎤 Giọng nói không khả dụng (microphone và dịch vụ)"
	case !snap.Capability.DeviceAvailable:
		return "🎤 Giọng nói không khả dụng (microphone)"
	default:
		return "🎤 Giọng nói không khả dụng (dịch vụ)"
	}
}

func (m Model) helpLine() string {
	parts := []string{"enter gửi"}
	if m.snap.VoiceEnabled {
		switch m.snap.State {
		case session.HostRecording:
			parts = append(parts, "ctrl+r dừng ghi âm", "esc hủy")
		case session.HostIdle:
			parts = append(parts, "ctrl+r bắt đầu ghi âm")
		}
	}
	parts = append(parts, "ctrl+c thoát")
	return strings.Join(parts, " • ")
}

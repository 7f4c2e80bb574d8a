package styles

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type DoctorRenderer struct {
	theme *Theme
}

func NewDoctorRenderer(theme *Theme) *DoctorRenderer {
	return &DoctorRenderer{theme: theme}
}

type DoctorReport struct {
	OverallOK bool
	Checks    []DoctorCheck
}

// DoctorCheck is one probe result. Skipped marks checks that never ran
// because an earlier one failed.
type DoctorCheck struct {
	Name    string
	OK      bool
	Skipped bool
	Detail  string
	Error   string
}

func (r *DoctorRenderer) Render(report DoctorReport) string {
	header := r.renderHeader(report.OverallOK)

	lines := make([]string, 0, len(report.Checks))
	for _, c := range report.Checks {
		lines = append(lines, r.renderCheck(c))
	}

	body := strings.Join(lines, "\n")
	box := r.theme.Box.Render(r.theme.BoxHeader.Render(fmt.Sprintf("%s Session hint", r.theme.Highlight.Render(IconLock))) + "\n" + body)

	return lipgloss.JoinVertical(lipgloss.Left, header, "", box)
}

func (r *DoctorRenderer) renderHeader(ok bool) string {
	iconStyle := lipgloss.NewStyle().Foreground(r.theme.Accent)
	statusStyle := r.theme.SuccessStyle
	statusText := "OK"
	if !ok {
		statusStyle = r.theme.WarningStyle
		statusText = "Needs attention"
	}

	title := fmt.Sprintf("%s %s", iconStyle.Render(IconDoctor), r.theme.Title.Render("Doctor"))
	badge := r.theme.BadgeMuted.Render(statusStyle.Render(statusText))
	return lipgloss.JoinHorizontal(lipgloss.Center, title, " ", badge)
}

func (r *DoctorRenderer) renderCheck(c DoctorCheck) string {
	icon := IconCheck
	statusStyle := r.theme.SuccessStyle
	status := "OK"
	summary := c.Detail

	switch {
	case c.Skipped:
		icon = IconInfo
		statusStyle = r.theme.WarningStyle
		status = "Skipped"
		if summary == "" {
			summary = "previous check failed"
		}
	case !c.OK:
		icon = IconX
		statusStyle = r.theme.ErrorStyle
		status = "Failed"
		summary = c.Error
	}

	name := r.theme.Normal.Render(c.Name)
	badge := r.theme.BadgeMuted.Render(statusStyle.Render(status))
	info := r.theme.Subtle.Render(summary)

	return fmt.Sprintf("%s %s %s\n  %s", statusStyle.Render(icon), name, badge, info)
}

package hal

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/oshokin/smart-alarm/internal/domain/alarm"
)

// Console renders output changes as one styled line per write.
// Colors are dropped automatically when the writer is not a terminal.
type Console struct {
	mu sync.Mutex
	w  io.Writer

	label  lipgloss.Style
	on     lipgloss.Style
	off    lipgloss.Style
	colors map[alarm.Color]lipgloss.Style
}

// NewConsole creates a console backend writing to w.
func NewConsole(w io.Writer) *Console {
	r := lipgloss.NewRenderer(w)

	return &Console{
		w:     w,
		label: r.NewStyle().Width(10).Bold(true),
		on:    r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		off:   r.NewStyle().Faint(true),
		colors: map[alarm.Color]lipgloss.Style{
			alarm.ColorRed:    r.NewStyle().Foreground(lipgloss.Color("9")),
			alarm.ColorYellow: r.NewStyle().Foreground(lipgloss.Color("11")),
			alarm.ColorGreen:  r.NewStyle().Foreground(lipgloss.Color("10")),
			alarm.ColorOff:    r.NewStyle().Faint(true),
		},
	}
}

// AlarmPin returns the Pin that renders the alarm output.
func (c *Console) AlarmPin() Pin {
	return PinFunc(func(on bool) error {
		return c.level("alarm", on)
	})
}

// AuxPin returns the Pin that renders the auxiliary output.
func (c *Console) AuxPin() Pin {
	return PinFunc(func(on bool) error {
		return c.level("aux", on)
	})
}

// Show renders the indicator color.
func (c *Console) Show(color alarm.Color) error {
	style, ok := c.colors[color]
	if !ok {
		style = c.off
	}

	return c.printf("%s%s", c.label.Render("status"), style.Render("● "+color.String()))
}

// SetCompare renders a tone compare register write.
func (c *Console) SetCompare(value uint16) error {
	return c.printf("%s%s", c.label.Render("tone"), fmt.Sprintf("compare=%d", value))
}

// SetDuty renders a tone duty register write.
func (c *Console) SetDuty(duty uint8) error {
	return c.printf("%s%s", c.label.Render("tone"), fmt.Sprintf("duty=%d", duty))
}

func (c *Console) level(name string, on bool) error {
	if on {
		return c.printf("%s%s", c.label.Render(name), c.on.Render("● on"))
	}

	return c.printf("%s%s", c.label.Render(name), c.off.Render("○ off"))
}

func (c *Console) printf(format string, args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := fmt.Fprintf(c.w, format+"\n", args...); err != nil {
		return fmt.Errorf("render output: %w", err)
	}

	return nil
}

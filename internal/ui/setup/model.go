// Package setup is the first-run form asking for the backend URL and a
// session token. It runs as its own program before the main UI starts.
package setup

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/rihigo/notify/internal/credential"
	"github.com/rihigo/notify/internal/theme"
)

// Result is what the user entered.
type Result struct {
	BaseURL string
	Token   string
}

type fields struct {
	baseURL string
	token   string
}

// Model wraps the huh form.
type Model struct {
	form *huh.Form

	// Bound by the form; shared by every copy of the model.
	fields *fields

	now       func() time.Time
	done      bool
	cancelled bool
	width     int
}

// New creates the form prefilled with baseURL.
func New(baseURL string, width int) Model {
	m := Model{
		fields: &fields{baseURL: baseURL},
		now:    time.Now,
		width:  width,
	}
	m.form = m.buildForm()
	return m
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API URL").
				Description("Rihigo backend (e.g., https://api.rihigo.com)").
				Placeholder("https://api.rihigo.com").
				Value(&m.fields.baseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Session token").
				Description("Stored in the system keyring").
				EchoMode(huh.EchoModePassword).
				Value(&m.fields.token).
				Validate(m.validateToken),
		),
	).WithWidth(m.formWidth())
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update forwards messages to the form and quits once it is submitted or
// aborted.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = size.Width
		m.form = m.form.WithWidth(m.formWidth())
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.done = true
		return m, tea.Quit
	case huh.StateAborted:
		m.cancelled = true
		return m, tea.Quit
	}

	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.done || m.cancelled {
		return ""
	}

	title := theme.HeaderStyle.Render("Rihigo notifications setup")
	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, "", m.form.View()))
}

// Result returns the entered values. ok is false unless the form was
// submitted.
func (m Model) Result() (Result, bool) {
	if !m.done {
		return Result{}, false
	}
	return Result{
		BaseURL: strings.TrimRight(strings.TrimSpace(m.fields.baseURL), "/"),
		Token:   strings.TrimSpace(m.fields.token),
	}, true
}

func (m Model) formWidth() int {
	if m.width <= 0 {
		return 60
	}
	return min(m.width-4, 80)
}

func (m *Model) validateToken(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("token is required")
	}
	if credential.NewSession(s).Expired(m.now()) {
		return errors.New("token has expired")
	}
	return nil
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("URL must start with http:// or https://")
	}
	if parsed.Host == "" {
		return errors.New("URL must include a host")
	}
	return nil
}

package tui

import (
	"context"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"netsentry/internal/engine"
)

// promptTimeout is how long a prompt stays open before the default
// answer (yes) is taken.
const promptTimeout = 10 * time.Second

// promptRequest carries one pending confirmation into the program loop.
// answer delivers at most once, so a key press and the countdown cannot
// both reply.
type promptRequest struct {
	action engine.Action
	reply  chan bool
	once   sync.Once
}

func (p *promptRequest) answer(v bool) {
	p.once.Do(func() { p.reply <- v })
}

// Prompter turns engine confirmation callbacks into dialog overlays on
// the running program. While no program is attached every action is
// approved, the same answer an expired prompt gives. Ask satisfies
// engine.ConfirmFunc.
type Prompter struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

func NewPrompter() *Prompter { return &Prompter{} }

func (p *Prompter) attach(send func(tea.Msg)) {
	p.mu.Lock()
	p.send = send
	p.mu.Unlock()
}

func (p *Prompter) detach() {
	p.mu.Lock()
	p.send = nil
	p.mu.Unlock()
}

// Ask blocks until the user answers, the countdown expires, or ctx is
// canceled. Cancellation counts as a denial.
func (p *Prompter) Ask(ctx context.Context, action engine.Action) bool {
	p.mu.Lock()
	send := p.send
	p.mu.Unlock()
	if send == nil {
		return true
	}

	req := &promptRequest{action: action, reply: make(chan bool, 1)}
	send(promptOpenedMsg{prompt: req})

	select {
	case v := <-req.reply:
		return v
	case <-ctx.Done():
		req.answer(false)
		return false
	}
}

// countdownMsg ticks one prompt's timer. The id keeps a stale tick from
// an already answered prompt away from its successor.
type countdownMsg struct{ id int }

var promptSeq int

// confirmModel renders a yes/no dialog for one corrective action. When
// the countdown reaches zero it answers yes, so an unattended pass
// keeps moving.
type confirmModel struct {
	prompt    *promptRequest
	id        int
	remaining int
	yes       bool
}

func newConfirmModel(prompt *promptRequest) *confirmModel {
	promptSeq++
	return &confirmModel{
		prompt:    prompt,
		id:        promptSeq,
		remaining: int(promptTimeout / time.Second),
		yes:       true,
	}
}

func (c *confirmModel) Init() tea.Cmd {
	return c.tickCmd()
}

func (c *confirmModel) tickCmd() tea.Cmd {
	id := c.id
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return countdownMsg{id: id}
	})
}

// Update reports whether the dialog is finished.
func (c *confirmModel) Update(msg tea.Msg) (bool, tea.Cmd) {
	switch msg := msg.(type) {
	case countdownMsg:
		if msg.id != c.id {
			return false, nil
		}
		c.remaining--
		if c.remaining <= 0 {
			c.prompt.answer(true)
			return true, nil
		}
		return false, c.tickCmd()

	case tea.KeyMsg:
		switch msg.String() {
		case "y", "Y":
			c.prompt.answer(true)
			return true, nil
		case "n", "N":
			c.prompt.answer(false)
			return true, nil
		case "enter":
			c.prompt.answer(c.yes)
			return true, nil
		case "esc":
			c.prompt.answer(false)
			return true, nil
		case "left", "right", "tab":
			c.yes = !c.yes
			return false, nil
		case "ctrl+c":
			// Quitting mid-prompt takes the default so the waiting
			// pass is not stranded.
			c.prompt.answer(true)
			return true, tea.Quit
		}
	}
	return false, nil
}

func (c *confirmModel) View() string {
	title, question := promptText(c.prompt.action)

	yesBtn := buttonStyle.Render("Yes")
	noBtn := buttonStyle.Render("No")
	if c.yes {
		yesBtn = activeButtonStyle.Render("Yes")
	} else {
		noBtn = activeButtonStyle.Render("No")
	}
	buttons := lipgloss.JoinHorizontal(lipgloss.Top, yesBtn, "   ", noBtn)

	body := lipgloss.JoinVertical(lipgloss.Center,
		specialStyle.Bold(true).Render(title),
		"",
		question,
		buttons,
		"",
		helpStyle.Render(fmt.Sprintf("Yes in %ds · y/n · enter confirms", c.remaining)),
	)
	return dialogBoxStyle.Render(body)
}

func promptText(action engine.Action) (title, question string) {
	switch action {
	case engine.ActionResetWifi:
		return "No internet connection", "Reset the Wi-Fi connection?"
	case engine.ActionStartVPN:
		return "VPN is not running", "Start the VPN client?"
	default:
		return "Confirm", fmt.Sprintf("Proceed with %s?", action)
	}
}

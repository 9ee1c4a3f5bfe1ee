package app

import (
	tea "github.com/charmbracelet/bubbletea"

	navigationdto "onsetscore/internal/modules/navigation/dto"
)

// Surface receives navigation and click-to-set updates from the engine and
// hands them to the running program. Each channel holds only the latest
// value, so a program that lags behind skips straight to the newest view.
type Surface struct {
	views chan navigationdto.ViewOutput
	click chan bool
}

func NewSurface() *Surface {
	return &Surface{
		views: make(chan navigationdto.ViewOutput, 1),
		click: make(chan bool, 1),
	}
}

// Publish never blocks.
func (s *Surface) Publish(view navigationdto.ViewOutput) { offer(s.views, view) }

func (s *Surface) SetClickToSet(enabled bool) { offer(s.click, enabled) }

type NavigatedMsg struct{ View navigationdto.ViewOutput }

type ClickToSetMsg struct{ Enabled bool }

func (s *Surface) waitView() tea.Cmd {
	return func() tea.Msg { return NavigatedMsg{View: <-s.views} }
}

func (s *Surface) waitClick() tea.Cmd {
	return func() tea.Msg { return ClickToSetMsg{Enabled: <-s.click} }
}

func offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

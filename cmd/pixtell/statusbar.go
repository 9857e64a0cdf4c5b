package main

import (
	"fmt"
	"time"

	"github.com/ronwebb/pixtell/pkg/hub/stats"
)

// statusBarModel shows the active caption model and hub call statistics.
type statusBarModel struct {
	captionModel string
	captionStats *stats.Tracker
	answerStats  *stats.Tracker
	duration     time.Duration
}

func newStatusBar(captionModel string, captionStats, answerStats *stats.Tracker) statusBarModel {
	return statusBarModel{
		captionModel: captionModel,
		captionStats: captionStats,
		answerStats:  answerStats,
	}
}

func (m statusBarModel) View() string {
	line := " " + m.captionModel

	if n := m.callCount(); n > 0 {
		line += fmt.Sprintf(" · calls: %d", n)
	}

	if m.duration > 0 {
		line += fmt.Sprintf(" · %s", fmtDuration(m.duration))
	}

	return statusStyle.Render(line)
}

// callCount sums successful hub calls across both models.
func (m statusBarModel) callCount() int {
	n := 0
	if m.captionStats != nil {
		n += m.captionStats.Count()
	}
	if m.answerStats != nil {
		n += m.answerStats.Count()
	}
	return n
}

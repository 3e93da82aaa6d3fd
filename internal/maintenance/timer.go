package maintenance

import (
	"fmt"
	"time"

	"safemaint-backend/internal/model"
)

// FormatElapsed renders d as HH:MM:SS. Hours are not wrapped at 24.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}

// View is a session together with its elapsed time at a point in time.
type View struct {
	model.ActiveMaintenance
	ElapsedMs int64  `json:"elapsedMs"`
	Elapsed   string `json:"elapsed"`
}

// NewView computes the elapsed time of m at now.
func NewView(m model.ActiveMaintenance, now time.Time) View {
	d := m.Elapsed(now)
	return View{ActiveMaintenance: m, ElapsedMs: d.Milliseconds(), Elapsed: FormatElapsed(d)}
}

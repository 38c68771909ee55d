package dashboard

import "xpdash/internal/progress/models"

// Board is the set of panels shown to one browser session.
type Board struct {
	Profile  Panel[models.Profile]
	XP       Panel[[]models.XPEvent]
	Audits   Panel[[]models.Audit]
	Projects Panel[[]models.Project]
}

// Snapshot is a consistent-enough read of every panel on a board.
type Snapshot struct {
	Profile  State[models.Profile]
	XP       State[[]models.XPEvent]
	Audits   State[[]models.Audit]
	Projects State[[]models.Project]
}

func (b *Board) Snapshot() Snapshot {
	return Snapshot{
		Profile:  b.Profile.State(),
		XP:       b.XP.State(),
		Audits:   b.Audits.State(),
		Projects: b.Projects.State(),
	}
}

func (b *Board) Close() {
	b.Profile.Close()
	b.XP.Close()
	b.Audits.Close()
	b.Projects.Close()
}

package ledger

import "github.com/mantrailing/cardservice/internal/models"

// Step describes what one completed session did to the training progress.
type Step struct {
	Counted   bool         // an hour was added to the current section
	Section   models.Level // section the hour was added to
	Completed bool         // the section reached its required hours
	Promoted  bool         // a following section became current
	NewLevel  models.Level
}

// Advance records one completed session on the customer's current section.
// The customer's progress slice is modified in place, so callers must pass a
// clone when the original snapshot has to survive.
func Advance(c *models.Customer) Step {
	progress := c.TrainingProgress
	idx := progress.CurrentIndex()
	if idx < 0 {
		return Step{}
	}

	section := &progress[idx]
	if section.Uncapped() {
		section.CompletedHours++
		return Step{Counted: true, Section: section.Name}
	}

	if section.CompletedHours >= section.RequiredHours {
		return Step{}
	}
	section.CompletedHours++
	step := Step{Counted: true, Section: section.Name}
	if section.CompletedHours < section.RequiredHours {
		return step
	}

	section.Status = models.SectionCompleted
	step.Completed = true

	// With no next section the customer stays on the last one, completed.
	if idx+1 < len(progress) {
		next := &progress[idx+1]
		next.Status = models.SectionCurrent
		c.Level = next.Name
		step.Promoted = true
		step.NewLevel = next.Name
	}
	return step
}

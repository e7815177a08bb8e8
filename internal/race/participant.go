package race

import (
	"errors"
	"fmt"
)

// MinLanes is the lane count reported for rendering when the roster is smaller.
const MinLanes = 2

var (
	// ErrEmptyRoster is returned when a race is started without active participants.
	ErrEmptyRoster = errors.New("race requires at least one active participant")
	// ErrUnknownParticipant is returned when an active participant is missing from the full roster.
	ErrUnknownParticipant = errors.New("active participant not present in full roster")
	// ErrDuplicateParticipant is returned when two active entries resolve to the same lane.
	ErrDuplicateParticipant = errors.New("participant listed twice in active roster")
)

// Participant is a roster entry. It is owned by the tournament and only
// referenced from racer state.
type Participant struct {
	ID   string
	Name string
}

// Roster is what a race is started from: the participants still in contention
// and the full roster (including eliminated participants) used for lane slots.
type Roster struct {
	Active []*Participant
	Full   []*Participant
}

// LaneCount returns the number of lanes the track reports.
func (r Roster) LaneCount() int {
	n := len(r.full())
	if n < MinLanes {
		return MinLanes
	}
	return n
}

func (r Roster) full() []*Participant {
	if len(r.Full) == 0 {
		return r.Active
	}
	return r.Full
}

// Slot returns the lane slot of the participant with the given id: its index
// in the full roster.
func (r Roster) Slot(id string) (int, bool) {
	for i, p := range r.full() {
		if p.ID == id {
			return i, true
		}
	}
	return -1, false
}

// slots resolves the lane slot of every active participant.
func (r Roster) slots() ([]int, error) {
	if len(r.Active) == 0 {
		return nil, ErrEmptyRoster
	}

	slots := make([]int, len(r.Active))
	seen := make(map[int]bool, len(r.Active))
	for i, p := range r.Active {
		if p == nil {
			return nil, fmt.Errorf("active[%d]: %w", i, ErrUnknownParticipant)
		}
		slot, ok := r.Slot(p.ID)
		if !ok {
			return nil, fmt.Errorf("%q: %w", p.ID, ErrUnknownParticipant)
		}
		if seen[slot] {
			return nil, fmt.Errorf("%q: %w", p.ID, ErrDuplicateParticipant)
		}
		seen[slot] = true
		slots[i] = slot
	}
	return slots, nil
}

package model

import (
	"sort"
	"strings"
	"time"
)

// UserID identifies a chat user across chats.
type UserID int64

// EventStatus governs which mutations an event accepts.
type EventStatus string

const (
	EventOpen   EventStatus = "open"
	EventClosed EventStatus = "closed"
)

// ParticipantStatus is the attendance a participant declared.
type ParticipantStatus string

const (
	StatusUnset    ParticipantStatus = ""
	StatusGoing    ParticipantStatus = "going"
	StatusNotGoing ParticipantStatus = "not_going"
	StatusMaybe    ParticipantStatus = "maybe"
)

// ParseParticipantStatus maps callback values such as "going" to a status.
func ParseParticipantStatus(s string) (ParticipantStatus, bool) {
	switch ParticipantStatus(s) {
	case StatusGoing, StatusNotGoing, StatusMaybe:
		return ParticipantStatus(s), true
	}
	return StatusUnset, false
}

type Participant struct {
	Name     string            `json:"name"`
	Status   ParticipantStatus `json:"status"`
	Username string            `json:"username,omitempty"`
	Seq      int               `json:"seq"`
}

// PlusOne is an anonymous guest slot attributed to the user that added it.
type PlusOne struct {
	AddedByID       UserID `json:"added_by_id"`
	AddedByName     string `json:"added_by_name"`
	AddedByUsername string `json:"added_by_username,omitempty"`
}

// EventState is the single sign-up roster. The zero value is not usable,
// call NewEventState or Reset first.
type EventState struct {
	Status       EventStatus             `json:"status"`
	Title        *string                 `json:"title"`
	Participants map[UserID]*Participant `json:"participants"`
	PlusOnes     []PlusOne               `json:"plus_ones"`
	CreatedAt    time.Time               `json:"created_at"`
	NextSeq      int                     `json:"next_seq"`
}

func NewEventState(now time.Time) *EventState {
	e := &EventState{}
	e.Reset(now)
	return e
}

// Reset replaces the event with an empty open one.
func (e *EventState) Reset(now time.Time) {
	e.Status = EventOpen
	e.Title = nil
	e.Participants = make(map[UserID]*Participant)
	e.PlusOnes = []PlusOne{}
	e.CreatedAt = now
	e.NextSeq = 0
}

// Normalize repairs fields missing from older persisted documents, such as
// those written before join order was tracked.
func (e *EventState) Normalize() {
	if e.Status != EventClosed {
		e.Status = EventOpen
	}
	if e.Participants == nil {
		e.Participants = make(map[UserID]*Participant)
	}
	if e.PlusOnes == nil {
		e.PlusOnes = []PlusOne{}
	}
	for _, p := range e.Participants {
		if p.Seq >= e.NextSeq {
			e.NextSeq = p.Seq + 1
		}
	}
}

func (e *EventState) IsOpen() bool { return e.Status == EventOpen }

func (e *EventState) TitleText() string {
	if e.Title == nil {
		return ""
	}
	return *e.Title
}

func (e *EventState) SetTitle(text string) error {
	title := strings.TrimSpace(text)
	if title == "" {
		return ErrEmptyTitle
	}
	e.Title = &title
	return nil
}

// UpsertParticipant registers the user with an unset status, or refreshes the
// name and username of an existing record without touching its status.
func (e *EventState) UpsertParticipant(id UserID, name, username string) *Participant {
	if p, ok := e.Participants[id]; ok {
		p.Name = name
		p.Username = username
		return p
	}
	p := &Participant{Name: name, Username: username, Seq: e.NextSeq}
	e.NextSeq++
	e.Participants[id] = p
	return p
}

func (e *EventState) SetParticipantStatus(id UserID, status ParticipantStatus) error {
	p, ok := e.Participants[id]
	if !ok {
		return ErrParticipantDoesNotExist
	}
	if !e.IsOpen() {
		return ErrVoteClosed
	}
	p.Status = status
	return nil
}

func (e *EventState) AddPlusOne(id UserID, name, username string) error {
	if !e.IsOpen() {
		return ErrVoteClosed
	}
	e.PlusOnes = append(e.PlusOnes, PlusOne{
		AddedByID:       id,
		AddedByName:     name,
		AddedByUsername: username,
	})
	return nil
}

// RemovePlusOne drops the most recently added guest of the user.
func (e *EventState) RemovePlusOne(id UserID) error {
	if !e.IsOpen() {
		return ErrVoteClosed
	}
	for i := len(e.PlusOnes) - 1; i >= 0; i-- {
		if e.PlusOnes[i].AddedByID == id {
			e.PlusOnes = append(e.PlusOnes[:i], e.PlusOnes[i+1:]...)
			return nil
		}
	}
	return ErrNothingToRemove
}

// ResetParticipant forgets the user and every guest they added. It is allowed
// whatever the event status.
func (e *EventState) ResetParticipant(id UserID) {
	delete(e.Participants, id)
	kept := e.PlusOnes[:0]
	for _, p := range e.PlusOnes {
		if p.AddedByID != id {
			kept = append(kept, p)
		}
	}
	e.PlusOnes = kept
}

func (e *EventState) Close() { e.Status = EventClosed }

func (e *EventState) Open() { e.Status = EventOpen }

// Entry is a roster line: a participant, or a guest when Guest is set.
type Entry struct {
	UserID   UserID
	Name     string
	Username string
	Guest    bool
}

// Label is the plain display string used for shuffling.
func (en Entry) Label() string {
	if en.Guest {
		return "+1 from " + en.Name
	}
	return en.Name
}

// Roster groups the event for display.
type Roster struct {
	Going      []Entry
	Maybe      []Entry
	NotGoing   []Entry
	GoingTotal int
}

type orderedParticipant struct {
	id UserID
	p  *Participant
}

func (e *EventState) ordered() []orderedParticipant {
	out := make([]orderedParticipant, 0, len(e.Participants))
	for id, p := range e.Participants {
		out = append(out, orderedParticipant{id: id, p: p})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].p.Seq != out[j].p.Seq {
			return out[i].p.Seq < out[j].p.Seq
		}
		return out[i].id < out[j].id
	})
	return out
}

// Roster lists going participants followed by guests, then maybe and
// not-going participants, in join order.
func (e *EventState) Roster() Roster {
	var r Roster
	for _, op := range e.ordered() {
		en := Entry{UserID: op.id, Name: op.p.Name, Username: op.p.Username}
		switch op.p.Status {
		case StatusGoing:
			r.Going = append(r.Going, en)
		case StatusMaybe:
			r.Maybe = append(r.Maybe, en)
		case StatusNotGoing:
			r.NotGoing = append(r.NotGoing, en)
		}
	}
	for _, p := range e.PlusOnes {
		r.Going = append(r.Going, Entry{
			UserID:   p.AddedByID,
			Name:     p.AddedByName,
			Username: p.AddedByUsername,
			Guest:    true,
		})
	}
	r.GoingTotal = len(r.Going)
	return r
}

// EligibleForShuffle is the candidate pool for team shuffling: going
// participants in join order, then guests in the order they were added.
func (e *EventState) EligibleForShuffle() []string {
	going := e.Roster().Going
	out := make([]string, 0, len(going))
	for _, en := range going {
		out = append(out, en.Label())
	}
	return out
}

// Controls lists the buttons that are valid for the current status.
type Controls struct {
	Participation bool
	Close         bool
	Open          bool
	Shuffle       bool
	EditTitle     bool
}

func (e *EventState) Controls() Controls {
	open := e.IsOpen()
	return Controls{
		Participation: open,
		Close:         open,
		Open:          !open,
		Shuffle:       !open,
		EditTitle:     open,
	}
}

package model

// MessageRef points at a message the bot sent.
type MessageRef struct {
	MessageID int
	ChatID    int64
}

// ChatSession is the persisted per chat state: the live status message and
// the last shuffle outcome. At most one of ShuffleResult and ShuffleError is
// set.
type ChatSession struct {
	MainMessage   *MessageRef
	ShuffleResult [][]string
	ShuffleError  string
}

func (s *ChatSession) SetShuffleResult(teams [][]string) {
	s.ShuffleResult = teams
	s.ShuffleError = ""
}

func (s *ChatSession) SetShuffleError(text string) {
	s.ShuffleResult = nil
	s.ShuffleError = text
}

func (s *ChatSession) ClearShuffle() {
	s.ShuffleResult = nil
	s.ShuffleError = ""
}

// Chat flow states
const (
	StateIdle = iota
	StateAwaitingTitle
	StateAwaitingTeamCount
)

// ChatFlow holds the in-memory conversation state of a chat. It is never
// persisted.
type ChatFlow struct {
	State       int
	TitleAuthor UserID
	Players     []string
	Prompt      *MessageRef
}

func (f *ChatFlow) PoolSize() int { return len(f.Players) }

// Reset returns the flow to idle and hands back the pending prompt, if any,
// so the caller can remove it.
func (f *ChatFlow) Reset() *MessageRef {
	prompt := f.Prompt
	*f = ChatFlow{State: StateIdle}
	return prompt
}

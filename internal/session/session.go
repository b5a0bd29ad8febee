package session

import "sync"

// Step enumerates the conversation states. The zero value is StepIdle, but
// an idle conversation is normally represented by the absence of a session.
type Step int

const (
	StepIdle Step = iota
	StepAwaitingPassword
	StepAwaitingPasswordForLink
	StepAwaitingTitle
	StepAwaitingTitleForLink
	StepAwaitingURL
	StepChooseTagMode
	StepChoosingTags
	StepAwaitingTags
	StepAwaitingTag
	StepAwaitingCount
	StepPostGetOptions
)

var stepNames = map[Step]string{
	StepIdle:                    "idle",
	StepAwaitingPassword:        "awaiting_password",
	StepAwaitingPasswordForLink: "awaiting_password_for_link",
	StepAwaitingTitle:           "awaiting_title",
	StepAwaitingTitleForLink:    "awaiting_title_for_link",
	StepAwaitingURL:             "awaiting_url",
	StepChooseTagMode:           "choose_tag_mode",
	StepChoosingTags:            "choosing_tags",
	StepAwaitingTags:            "awaiting_tags",
	StepAwaitingTag:             "awaiting_tag",
	StepAwaitingCount:           "awaiting_count",
	StepPostGetOptions:          "post_get_options",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return "unknown"
}

// TagChoiceMode selects how tags are entered during an add flow.
type TagChoiceMode string

const (
	TagModeList   TagChoiceMode = "list"
	TagModeManual TagChoiceMode = "manual"
)

// Draft holds the partial record or query fields accumulated across a flow.
type Draft struct {
	Title         string
	URL           string
	TagsText      string
	SelectedTags  []string
	TagChoiceMode TagChoiceMode
	Tag           string
	Count         int
}

// AddTag appends tag to SelectedTags if not already present, preserving
// selection order. It reports whether the tag was added.
func (d *Draft) AddTag(tag string) bool {
	for _, t := range d.SelectedTags {
		if t == tag {
			return false
		}
	}
	d.SelectedTags = append(d.SelectedTags, tag)
	return true
}

// Session is the per-conversation state of one pending flow.
type Session struct {
	Step  Step
	Draft Draft
}

// Store is an in-memory session map keyed by conversation id. Sessions have
// no expiry: they live until a flow completes or the user resets.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

func NewStore() *Store {
	return &Store{sessions: map[int64]*Session{}}
}

// Get returns the session for chatID, or nil and false when the
// conversation is idle.
func (s *Store) Get(chatID int64) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[chatID]
	return sess, ok
}

func (s *Store) Set(chatID int64, sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[chatID] = sess
}

func (s *Store) Delete(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, chatID)
}

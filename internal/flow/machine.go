package flow

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/fitstash/reelbot/internal/chat"
	"github.com/fitstash/reelbot/internal/db"
	"github.com/fitstash/reelbot/internal/session"
	"github.com/fitstash/reelbot/internal/store"
	"github.com/fitstash/reelbot/internal/tags"
)

// EntryMode selects how an idle conversation is greeted and what the
// post-retrieval options offer. It is consumed only at those two
// transitions; everything else is one shared machine.
type EntryMode string

const (
	EntryMenu      EntryMode = "menu"
	EntryAutoStart EntryMode = "autostart"
)

// Button labels.
const (
	labelGetVideos         = "Get Videos"
	labelAddVideo          = "Add Video"
	labelAddAnother        = "Add Another"
	labelMainMenu          = "Main Menu"
	labelChooseFromList    = "Choose from List"
	labelTypeMyOwn         = "Type My Own"
	labelDone              = "Done"
	labelSwitchType        = "Switch Type"
	labelSelectAnotherType = "Select Another Type"
)

const (
	minCount = 1
	maxCount = 5
)

const hintReset = "\n\n(Type /start to start over at any time.)"

// Config holds the machine's fixed parameters.
type Config struct {
	AdminPassword string
	LinkMarker    string
	EntryMode     EntryMode
	CleanSweep    int
}

// Machine is the per-conversation dispatcher: it interprets one inbound
// event against the conversation's current step, mutates the draft, calls
// the repository, and emits the next prompt.
type Machine struct {
	gateway  chat.Gateway
	repo     store.Repository
	sessions *session.Store
	journal  *db.Journal
	cfg      Config

	mu    sync.Mutex
	locks map[int64]*chatLock
}

// chatLock serializes events from one conversation. refs counts holders and
// waiters so the map entry can be dropped once nobody needs it.
type chatLock struct {
	sync.Mutex
	refs int
}

func New(gateway chat.Gateway, repo store.Repository, sessions *session.Store, journal *db.Journal, cfg Config) *Machine {
	if cfg.EntryMode == "" {
		cfg.EntryMode = EntryMenu
	}
	if cfg.CleanSweep <= 0 {
		cfg.CleanSweep = 200
	}
	return &Machine{
		gateway:  gateway,
		repo:     repo,
		sessions: sessions,
		journal:  journal,
		cfg:      cfg,
		locks:    map[int64]*chatLock{},
	}
}

// HandleEvent dispatches one inbound event. Events from the same
// conversation are serialized in arrival order; different conversations
// proceed independently. The returned error is a repository or transport
// failure — validation problems are handled in-band as reprompts.
func (m *Machine) HandleEvent(ev chat.Event) error {
	l := m.acquireChat(ev.ChatID)
	defer m.releaseChat(ev.ChatID, l)

	ev.Text = strings.TrimSpace(ev.Text)
	if ev.Text == "" {
		return nil
	}

	if strings.HasPrefix(ev.Text, "/") {
		return m.handleCommand(ev)
	}

	_, active := m.sessions.Get(ev.ChatID)

	if m.cfg.EntryMode == EntryMenu {
		switch ev.Text {
		case labelMainMenu:
			m.showMainMenu(ev.ChatID)
			return nil
		case labelGetVideos:
			return m.startRetrieval(ev.ChatID)
		case labelAddVideo:
			m.sessions.Set(ev.ChatID, &session.Session{Step: session.StepAwaitingPassword})
			m.send(ev.ChatID, "Please enter the admin password."+hintReset)
			return nil
		case labelAddAnother:
			// The admin already proved themselves this round; skip the password.
			m.sessions.Set(ev.ChatID, &session.Session{Step: session.StepAwaitingTitle})
			m.send(ev.ChatID, "What is the video title?"+hintReset)
			return nil
		}
	}

	if !active && strings.Contains(ev.Text, m.cfg.LinkMarker) {
		return m.handleDetectedLink(ev)
	}

	sess, ok := m.sessions.Get(ev.ChatID)
	if !ok {
		if m.cfg.EntryMode == EntryAutoStart {
			return m.startRetrieval(ev.ChatID)
		}
		m.showMainMenu(ev.ChatID)
		return nil
	}

	switch sess.Step {
	case session.StepAwaitingPassword:
		return m.handlePassword(sess, ev, false)
	case session.StepAwaitingPasswordForLink:
		return m.handlePassword(sess, ev, true)
	case session.StepAwaitingTitle:
		return m.handleTitle(sess, ev, false)
	case session.StepAwaitingTitleForLink:
		return m.handleTitle(sess, ev, true)
	case session.StepAwaitingURL:
		return m.handleURL(sess, ev)
	case session.StepChooseTagMode:
		return m.handleChooseTagMode(sess, ev)
	case session.StepChoosingTags:
		return m.handleChoosingTags(sess, ev)
	case session.StepAwaitingTags:
		return m.handleManualTags(sess, ev)
	case session.StepAwaitingTag:
		return m.handleTagChoice(sess, ev)
	case session.StepAwaitingCount:
		return m.handleCount(sess, ev)
	case session.StepPostGetOptions:
		return m.handlePostGet(sess, ev)
	default:
		// Defensive default: should not occur in correct operation.
		log.Printf("[flow] unknown step %d chat_id=%d", sess.Step, ev.ChatID)
		m.journal.Log(db.EventUnknownStep, map[string]any{
			"chat_id": ev.ChatID,
			"step":    int(sess.Step),
		})
		return nil
	}
}

func (m *Machine) handleCommand(ev chat.Event) error {
	cmd := ev.Text
	if i := strings.IndexByte(cmd, ' '); i > 0 {
		cmd = cmd[:i]
	}
	switch cmd {
	case "/start":
		if _, ok := m.sessions.Get(ev.ChatID); ok {
			m.journal.Log(db.EventSessionReset, map[string]any{"chat_id": ev.ChatID})
		}
		m.sessions.Delete(ev.ChatID)
		if m.cfg.EntryMode == EntryAutoStart {
			return m.startRetrieval(ev.ChatID)
		}
		m.showMainMenu(ev.ChatID)
		return nil
	case "/clean":
		return m.handleClean(ev)
	}
	// Unknown commands bypass the state machine and are ignored.
	return nil
}

// handleDetectedLink is the global guard: a platform link with no active
// session starts the add flow directly, url first.
func (m *Machine) handleDetectedLink(ev chat.Event) error {
	dup, err := m.repo.IsDuplicateURL(ev.Text)
	if err != nil {
		return m.repoFailure(ev.ChatID, err)
	}
	if dup {
		m.journal.Log(db.EventDuplicateURL, map[string]any{"chat_id": ev.ChatID, "url": ev.Text})
		m.send(ev.ChatID, "This video already exists.")
		return nil
	}
	m.sessions.Set(ev.ChatID, &session.Session{
		Step:  session.StepAwaitingPasswordForLink,
		Draft: session.Draft{URL: ev.Text},
	})
	m.send(ev.ChatID, "Link detected. Please enter the admin password to continue."+hintReset)
	return nil
}

func (m *Machine) handlePassword(sess *session.Session, ev chat.Event, forLink bool) error {
	if ev.Text != m.cfg.AdminPassword {
		m.send(ev.ChatID, "Incorrect password. Please try again."+hintReset)
		return nil
	}
	// Do not leave the secret sitting in the chat.
	m.deleteBestEffort(ev.ChatID, ev.MessageID, "password")
	if forLink {
		sess.Step = session.StepAwaitingTitleForLink
	} else {
		sess.Step = session.StepAwaitingTitle
	}
	m.sessions.Set(ev.ChatID, sess)
	m.send(ev.ChatID, "Password accepted.\n\nWhat is the video title?"+hintReset)
	return nil
}

func (m *Machine) handleTitle(sess *session.Session, ev chat.Event, forLink bool) error {
	sess.Draft.Title = ev.Text
	if forLink {
		sess.Step = session.StepChooseTagMode
		m.sessions.Set(ev.ChatID, sess)
		m.promptTagMode(ev.ChatID, "How would you like to enter tags?")
		return nil
	}
	sess.Step = session.StepAwaitingURL
	m.sessions.Set(ev.ChatID, sess)
	m.send(ev.ChatID, "Send the video link."+hintReset)
	return nil
}

func (m *Machine) handleURL(sess *session.Session, ev chat.Event) error {
	if !strings.Contains(ev.Text, m.cfg.LinkMarker) {
		m.send(ev.ChatID, "Please send a valid video link."+hintReset)
		return nil
	}
	dup, err := m.repo.IsDuplicateURL(ev.Text)
	if err != nil {
		return m.repoFailure(ev.ChatID, err)
	}
	if dup {
		m.journal.Log(db.EventDuplicateURL, map[string]any{"chat_id": ev.ChatID, "url": ev.Text})
		m.sessions.Delete(ev.ChatID)
		m.send(ev.ChatID, "This video already exists.")
		return nil
	}
	sess.Draft.URL = ev.Text
	sess.Step = session.StepChooseTagMode
	m.sessions.Set(ev.ChatID, sess)
	m.promptTagMode(ev.ChatID, "How would you like to enter tags?")
	return nil
}

func (m *Machine) handleChooseTagMode(sess *session.Session, ev chat.Event) error {
	switch ev.Text {
	case labelChooseFromList:
		allTags, err := m.repo.AllTags()
		if err != nil {
			return m.repoFailure(ev.ChatID, err)
		}
		sess.Draft.SelectedTags = nil
		sess.Draft.TagChoiceMode = session.TagModeList
		sess.Step = session.StepChoosingTags
		m.sessions.Set(ev.ChatID, sess)
		m.sendKeyboard(ev.ChatID, "Select tags (tap multiple). Tap Done when finished.", m.tagPickKeyboard(allTags))
		return nil
	case labelTypeMyOwn:
		sess.Draft.TagChoiceMode = session.TagModeManual
		sess.Step = session.StepAwaitingTags
		m.sessions.Set(ev.ChatID, sess)
		m.send(ev.ChatID, "Enter tags separated by commas (e.g. strength, mobility)."+hintReset)
		return nil
	default:
		m.promptTagMode(ev.ChatID, "Please choose a valid option:")
		return nil
	}
}

func (m *Machine) handleChoosingTags(sess *session.Session, ev chat.Event) error {
	if ev.Text == labelDone {
		if len(sess.Draft.SelectedTags) == 0 {
			m.send(ev.ChatID, "No tags selected. Please choose at least one.")
			return nil
		}
		return m.appendRecord(ev.ChatID, store.Video{
			Title: sess.Draft.Title,
			URL:   sess.Draft.URL,
			Tags:  tags.Join(sess.Draft.SelectedTags),
		})
	}

	allTags, err := m.repo.AllTags()
	if err != nil {
		return m.repoFailure(ev.ChatID, err)
	}
	tok := strings.ToLower(ev.Text)
	if !tags.Contains(allTags, tok) {
		m.sendKeyboard(ev.ChatID, "Invalid tag. Choose from the list or tap Done.", m.tagPickKeyboard(allTags))
		return nil
	}
	if sess.Draft.AddTag(tok) {
		m.sessions.Set(ev.ChatID, sess)
	}
	m.send(ev.ChatID, fmt.Sprintf("Tag %q added. Keep going or tap Done when finished.", tok))
	return nil
}

func (m *Machine) handleManualTags(sess *session.Session, ev chat.Event) error {
	// Manual entry keeps duplicate tokens; only list selection dedupes.
	canonical := tags.Canonicalize(ev.Text)
	if canonical == "" {
		m.send(ev.ChatID, "Please enter at least one tag."+hintReset)
		return nil
	}
	sess.Draft.TagsText = canonical
	m.sessions.Set(ev.ChatID, sess)
	return m.appendRecord(ev.ChatID, store.Video{
		Title: sess.Draft.Title,
		URL:   sess.Draft.URL,
		Tags:  canonical,
	})
}

func (m *Machine) handleTagChoice(sess *session.Session, ev chat.Event) error {
	allTags, err := m.repo.AllTags()
	if err != nil {
		return m.repoFailure(ev.ChatID, err)
	}
	tok := strings.ToLower(ev.Text)
	if !tags.Contains(allTags, tok) {
		m.sendKeyboard(ev.ChatID, "Unknown tag. Choose one from the list:", chat.Keyboard{
			Rows:    chat.Column(allTags...),
			OneShot: true,
		})
		return nil
	}
	sess.Draft.Tag = tok
	sess.Step = session.StepAwaitingCount
	m.sessions.Set(ev.ChatID, sess)
	m.sendKeyboard(ev.ChatID, "How many videos would you like?", chat.Keyboard{
		Rows:    chat.Column("1", "2", "3", "4", "5"),
		OneShot: true,
	})
	return nil
}

func (m *Machine) handleCount(sess *session.Session, ev chat.Event) error {
	count, err := strconv.Atoi(ev.Text)
	if err != nil || count < minCount || count > maxCount {
		m.send(ev.ChatID, fmt.Sprintf("Please select a number between %d and %d.", minCount, maxCount))
		return nil
	}
	videos, err := m.repo.VideosByTag(sess.Draft.Tag, count)
	if err != nil {
		return m.repoFailure(ev.ChatID, err)
	}
	if len(videos) == 0 {
		m.sessions.Delete(ev.ChatID)
		m.send(ev.ChatID, fmt.Sprintf("No videos found for tag %q.", sess.Draft.Tag))
		return nil
	}
	for _, v := range videos {
		m.send(ev.ChatID, v.Title+"\n"+v.URL)
	}
	if len(videos) < count {
		m.send(ev.ChatID, fmt.Sprintf("Only %d video(s) available.", len(videos)))
	}
	m.journal.Log(db.EventVideosServed, map[string]any{
		"chat_id":   ev.ChatID,
		"tag":       sess.Draft.Tag,
		"requested": count,
		"served":    len(videos),
	})
	sess.Draft.Count = count
	sess.Step = session.StepPostGetOptions
	m.sessions.Set(ev.ChatID, sess)
	m.sendKeyboard(ev.ChatID, "What next?", m.postGetKeyboard())
	return nil
}

func (m *Machine) handlePostGet(sess *session.Session, ev chat.Event) error {
	if ev.Text == labelSwitchType || ev.Text == labelSelectAnotherType {
		return m.startRetrieval(ev.ChatID)
	}
	// "Main Menu" in menu mode is caught before step dispatch.
	m.sendKeyboard(ev.ChatID, "Please choose a valid option.", m.postGetKeyboard())
	return nil
}

func (m *Machine) handleClean(ev chat.Event) error {
	statusID, err := m.gateway.Send(ev.ChatID, "Cleaning up the chat...")
	if err != nil {
		log.Printf("[flow] send failed chat_id=%d: %v", ev.ChatID, err)
	}
	attempted, failed := 0, 0
	for i := int64(0); i < int64(m.cfg.CleanSweep); i++ {
		id := ev.MessageID - i
		if id <= 0 {
			break
		}
		attempted++
		if err := m.gateway.DeleteMessage(ev.ChatID, id); err != nil {
			failed++
		}
	}
	if statusID > 0 {
		m.deleteBestEffort(ev.ChatID, statusID, "clean_status")
	}
	m.journal.Log(db.EventChatCleaned, map[string]any{
		"chat_id":   ev.ChatID,
		"attempted": attempted,
		"failed":    failed,
	})
	m.send(ev.ChatID, "Chat cleaned. Type /start to begin again.")
	return nil
}

// startRetrieval begins (or restarts) the retrieval flow with a fresh tag
// keyboard. An empty catalog warns and leaves the conversation idle.
func (m *Machine) startRetrieval(chatID int64) error {
	allTags, err := m.repo.AllTags()
	if err != nil {
		return m.repoFailure(chatID, err)
	}
	if len(allTags) == 0 {
		m.sessions.Delete(chatID)
		m.send(chatID, "No tags found.")
		return nil
	}
	m.sessions.Set(chatID, &session.Session{Step: session.StepAwaitingTag})
	m.sendKeyboard(chatID, "Choose a tag:", chat.Keyboard{
		Rows:    chat.Column(allTags...),
		OneShot: true,
	})
	return nil
}

// appendRecord finishes an add flow: append, journal, confirm, and move to
// the mode's post-add state.
func (m *Machine) appendRecord(chatID int64, v store.Video) error {
	if err := m.repo.AddVideo(v); err != nil {
		return m.repoFailure(chatID, err)
	}
	m.journal.Log(db.EventVideoAdded, map[string]any{
		"chat_id": chatID,
		"url":     v.URL,
		"tags":    v.Tags,
	})
	m.sessions.Delete(chatID)
	if m.cfg.EntryMode == EntryAutoStart {
		m.send(chatID, "Video added successfully.")
		return m.startRetrieval(chatID)
	}
	m.sendKeyboard(chatID, "Video added successfully!\nWhat next?", chat.Keyboard{
		Rows:    [][]string{{labelAddAnother, labelMainMenu}},
		OneShot: true,
	})
	return nil
}

func (m *Machine) showMainMenu(chatID int64) {
	m.sessions.Delete(chatID)
	m.sendKeyboard(chatID, "What would you like to do?", chat.Keyboard{
		Rows:    [][]string{{labelGetVideos, labelAddVideo}},
		OneShot: true,
	})
}

func (m *Machine) promptTagMode(chatID int64, text string) {
	m.sendKeyboard(chatID, text, chat.Keyboard{
		Rows:    [][]string{{labelChooseFromList, labelTypeMyOwn}},
		OneShot: true,
	})
}

func (m *Machine) tagPickKeyboard(allTags []string) chat.Keyboard {
	rows := chat.Column(allTags...)
	rows = append(rows, []string{labelDone})
	return chat.Keyboard{Rows: rows}
}

func (m *Machine) postGetKeyboard() chat.Keyboard {
	if m.cfg.EntryMode == EntryAutoStart {
		return chat.Keyboard{Rows: [][]string{{labelSelectAnotherType}}, OneShot: true}
	}
	return chat.Keyboard{Rows: [][]string{{labelSwitchType, labelMainMenu}}, OneShot: true}
}

// repoFailure keeps the session untouched and prompts a retry; the error
// still propagates to the caller for logging.
func (m *Machine) repoFailure(chatID int64, err error) error {
	m.send(chatID, "Something went wrong. Please try again.")
	return err
}

func (m *Machine) deleteBestEffort(chatID, messageID int64, reason string) {
	if err := m.gateway.DeleteMessage(chatID, messageID); err != nil {
		m.journal.Log(db.EventDeleteFailed, map[string]any{
			"chat_id":    chatID,
			"message_id": messageID,
			"reason":     reason,
			"error":      err.Error(),
		})
	}
}

func (m *Machine) send(chatID int64, text string) {
	if _, err := m.gateway.Send(chatID, text); err != nil {
		log.Printf("[flow] send failed chat_id=%d: %v", chatID, err)
	}
}

func (m *Machine) sendKeyboard(chatID int64, text string, kb chat.Keyboard) {
	if err := m.gateway.SendKeyboard(chatID, text, kb); err != nil {
		log.Printf("[flow] send keyboard failed chat_id=%d: %v", chatID, err)
	}
}

func (m *Machine) acquireChat(chatID int64) *chatLock {
	m.mu.Lock()
	l, ok := m.locks[chatID]
	if !ok {
		l = &chatLock{}
		m.locks[chatID] = l
	}
	l.refs++
	m.mu.Unlock()
	l.Lock()
	return l
}

func (m *Machine) releaseChat(chatID int64, l *chatLock) {
	l.Unlock()
	m.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, chatID)
	}
	m.mu.Unlock()
}

// Package inputmodel owns the single-line edit buffer, cursor, command
// history and autocomplete/selection state. The buffer is a rune slice
// with a cursor offset; providers decide when completion triggers and
// what it offers.
package inputmodel

// State is the input model's own state, distinct from the outer chat
// state machine.
type State int

const (
	Normal State = iota
	Autocomplete
	UserSelection
)

// CompletionItem is one row offered by an active provider.
type CompletionItem struct {
	Label       string
	Description string
	// ReplaceFrom/ReplaceTo mark the span of CurrentInput (rune offsets)
	// that accepting this item should replace. Unused by UserSelection
	// providers, which instead call their own OnSelection callback.
	ReplaceFrom int
	ReplaceTo   int
}

// AutocompleteProvider decides a trigger condition and produces
// suggestions for the token under the cursor.
type AutocompleteProvider interface {
	// Triggered reports whether this provider should become active given
	// the current buffer and cursor position, returning the token span
	// it would replace on acceptance.
	Triggered(input string, cursor int) (from, to int, ok bool)
	// Suggest returns completion items for the partial token text.
	Suggest(partial string) []CompletionItem
}

// UserSelectionProvider drives a one-shot list selection (e.g. `/session
// list`), distinct from autocomplete because acceptance invokes a
// callback instead of splicing text into the buffer.
type UserSelectionProvider interface {
	Selections() []CompletionItem
	OnSelection(text string)
}

const maxCommandHistory = 100

// Model is the full input context.
type Model struct {
	buffer []rune
	cursor int

	state                   State
	providers               []AutocompleteProvider
	activeProvider          AutocompleteProvider
	activeSelectionProvider UserSelectionProvider
	completionItems         []CompletionItem
	selectedSuggestionIndex int
	showSuggestions         bool
	replaceFrom, replaceTo  int

	commandHistory []string
	historyCursor  int // -1 means "not navigating"
}

// New constructs an empty Model with providers polled in the given
// order (SlashCommandProvider first, FilePathProvider second).
func New(providers ...AutocompleteProvider) *Model {
	return &Model{providers: providers, historyCursor: -1}
}

// CurrentInput returns the buffer contents.
func (m *Model) CurrentInput() string { return string(m.buffer) }

// CursorPosition returns the 0-based rune offset of the cursor.
// Invariant: 0 <= CursorPosition() <= len([]rune(CurrentInput())).
func (m *Model) CursorPosition() int { return m.cursor }

// State returns the model's current mode.
func (m *Model) State() State { return m.state }

// CompletionItems returns the currently offered suggestions.
func (m *Model) CompletionItems() []CompletionItem { return m.completionItems }

// SelectedSuggestionIndex returns the index highlighted in
// CompletionItems, valid only when ShowSuggestions is true.
func (m *Model) SelectedSuggestionIndex() int { return m.selectedSuggestionIndex }

// ShowSuggestions reports whether a completion/selection list should be
// rendered.
func (m *Model) ShowSuggestions() bool { return m.showSuggestions }

// SetSelectionProvider switches the model into UserSelection state,
// installing provider's selections as the completion list.
func (m *Model) SetSelectionProvider(p UserSelectionProvider) {
	m.activeSelectionProvider = p
	m.state = UserSelection
	m.completionItems = p.Selections()
	m.selectedSuggestionIndex = 0
	m.showSuggestions = len(m.completionItems) > 0
}

// clampCursor enforces the cursor-bounds invariant after any mutation.
func (m *Model) clampCursor() {
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor > len(m.buffer) {
		m.cursor = len(m.buffer)
	}
}

// InsertRune inserts r at the cursor and advances it, then re-polls
// autocomplete providers.
func (m *Model) InsertRune(r rune) {
	if m.state == UserSelection {
		return
	}
	buf := make([]rune, 0, len(m.buffer)+1)
	buf = append(buf, m.buffer[:m.cursor]...)
	buf = append(buf, r)
	buf = append(buf, m.buffer[m.cursor:]...)
	m.buffer = buf
	m.cursor++
	m.refreshAutocomplete()
}

// InsertText inserts a (possibly multi-rune) string at the cursor.
func (m *Model) InsertText(text string) {
	for _, r := range text {
		m.InsertRune(r)
	}
}

// MoveLeft/MoveRight/Home/End move the cursor without mutating the
// buffer.
func (m *Model) MoveLeft() {
	if m.cursor > 0 {
		m.cursor--
	}
}

func (m *Model) MoveRight() {
	if m.cursor < len(m.buffer) {
		m.cursor++
	}
}

func (m *Model) Home() { m.cursor = 0 }
func (m *Model) End()  { m.cursor = len(m.buffer) }

// Backspace deletes the rune before the cursor.
func (m *Model) Backspace() {
	if m.cursor == 0 {
		return
	}
	m.buffer = append(m.buffer[:m.cursor-1], m.buffer[m.cursor:]...)
	m.cursor--
	m.refreshAutocomplete()
}

// Delete removes the rune at the cursor.
func (m *Model) Delete() {
	if m.cursor >= len(m.buffer) {
		return
	}
	m.buffer = append(m.buffer[:m.cursor], m.buffer[m.cursor+1:]...)
	m.refreshAutocomplete()
}

// ClearInput empties the buffer and resets the cursor and autocomplete
// state (Esc in Normal state).
func (m *Model) ClearInput() {
	m.buffer = nil
	m.cursor = 0
	m.CancelCompletion()
}

// CancelCompletion drops back to Normal state and hides suggestions.
func (m *Model) CancelCompletion() {
	m.state = Normal
	m.activeProvider = nil
	m.activeSelectionProvider = nil
	m.completionItems = nil
	m.showSuggestions = false
	m.selectedSuggestionIndex = 0
}

// refreshAutocomplete re-polls providers in order after every
// buffer/cursor change; the first whose trigger matches becomes active.
func (m *Model) refreshAutocomplete() {
	if m.state == UserSelection {
		return
	}
	input := string(m.buffer)
	for _, p := range m.providers {
		from, to, ok := p.Triggered(input, m.cursor)
		if !ok {
			continue
		}
		partial := string(m.buffer[from:to])
		items := p.Suggest(partial)
		m.activeProvider = p
		m.state = Autocomplete
		m.replaceFrom, m.replaceTo = from, to
		m.completionItems = items
		m.selectedSuggestionIndex = 0
		m.showSuggestions = len(items) > 0
		return
	}
	m.CancelCompletion()
}

// CycleSuggestion moves the highlighted suggestion by delta (wrapping),
// used by Up/Down while Autocomplete or UserSelection is active.
func (m *Model) CycleSuggestion(delta int) {
	n := len(m.completionItems)
	if n == 0 {
		return
	}
	m.selectedSuggestionIndex = ((m.selectedSuggestionIndex+delta)%n + n) % n
}

// AcceptSuggestion applies the highlighted suggestion: for Autocomplete,
// splices its label into the buffer in place of the matched token and
// positions the cursor at the end of the insertion; for UserSelection,
// invokes the provider's OnSelection callback with the highlighted
// item's label.
func (m *Model) AcceptSuggestion() {
	if m.selectedSuggestionIndex < 0 || m.selectedSuggestionIndex >= len(m.completionItems) {
		return
	}
	item := m.completionItems[m.selectedSuggestionIndex]

	switch m.state {
	case UserSelection:
		if m.activeSelectionProvider != nil {
			m.activeSelectionProvider.OnSelection(item.Label)
		}
		m.CancelCompletion()
	case Autocomplete:
		buf := make([]rune, 0, len(m.buffer))
		buf = append(buf, m.buffer[:m.replaceFrom]...)
		buf = append(buf, []rune(item.Label)...)
		buf = append(buf, m.buffer[m.replaceTo:]...)
		m.buffer = buf
		m.cursor = m.replaceFrom + len([]rune(item.Label))
		m.CancelCompletion()
	}
}

// Submit returns the buffer contents for submission when
// non-empty/non-whitespace, records it into command history (deduped,
// capped at 100), and clears the buffer. The bool result is false for
// blank input, in which case the buffer is left untouched and nothing
// should be submitted.
func (m *Model) Submit() (string, bool) {
	text := string(m.buffer)
	if isBlank(text) {
		return "", false
	}
	m.pushHistory(text)
	m.ClearInput()
	return text, true
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' {
			return false
		}
	}
	return true
}

func (m *Model) pushHistory(text string) {
	for i, h := range m.commandHistory {
		if h == text {
			m.commandHistory = append(m.commandHistory[:i], m.commandHistory[i+1:]...)
			break
		}
	}
	m.commandHistory = append(m.commandHistory, text)
	if len(m.commandHistory) > maxCommandHistory {
		m.commandHistory = m.commandHistory[len(m.commandHistory)-maxCommandHistory:]
	}
	m.historyCursor = -1
}

// HistoryUp navigates to the previous command, wrapping from the oldest
// entry back to a blank line.
func (m *Model) HistoryUp() {
	if len(m.commandHistory) == 0 {
		return
	}
	if m.historyCursor == -1 {
		m.historyCursor = len(m.commandHistory) - 1
	} else if m.historyCursor > 0 {
		m.historyCursor--
	} else {
		m.setBuffer("")
		return
	}
	m.setBuffer(m.commandHistory[m.historyCursor])
}

// HistoryDown navigates to the next command, wrapping to a blank line
// once the newest entry is passed.
func (m *Model) HistoryDown() {
	if m.historyCursor == -1 {
		return
	}
	if m.historyCursor < len(m.commandHistory)-1 {
		m.historyCursor++
		m.setBuffer(m.commandHistory[m.historyCursor])
		return
	}
	m.historyCursor = -1
	m.setBuffer("")
}

func (m *Model) setBuffer(text string) {
	m.buffer = []rune(text)
	m.cursor = len(m.buffer)
	m.refreshAutocomplete()
}

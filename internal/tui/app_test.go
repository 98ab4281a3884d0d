package tui

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/culler/internal/cache"
	"github.com/mmcdole/culler/internal/domain"
	"github.com/mmcdole/culler/internal/navigation"
	"github.com/mmcdole/culler/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReview struct {
	state   service.State
	lookup  cache.Lookup
	updates chan service.Update
	calls   []string
	filters []string
}

func newFakeReview() *fakeReview {
	item := domain.Item{ID: "a.jpg", Path: "/photos/a.jpg", Rating: 3}
	return &fakeReview{
		state: service.State{
			Position: 0, Len: 2, Total: 2,
			Item: item, HasItem: true, Filter: "all",
		},
		lookup:  cache.Lookup{State: cache.StatePending},
		updates: make(chan service.Update, 1),
	}
}

func (f *fakeReview) State() service.State             { return f.state }
func (f *fakeReview) Subscribe() <-chan service.Update { return f.updates }
func (f *fakeReview) CurrentImage() (domain.Item, cache.Lookup) {
	return f.state.Item, f.lookup
}
func (f *fakeReview) Stats() service.Stats { return service.Stats{} }

func (f *fakeReview) Advance(d int)       { f.calls = append(f.calls, fmt.Sprintf("advance %d", d)) }
func (f *fakeReview) JumpToStart()        { f.calls = append(f.calls, "start") }
func (f *fakeReview) JumpToEnd()          { f.calls = append(f.calls, "end") }
func (f *fakeReview) JumpToName(q string) { f.calls = append(f.calls, "jump "+q) }
func (f *fakeReview) CycleMarked(d navigation.Direction) {
	f.calls = append(f.calls, fmt.Sprintf("cycle %d", d))
}
func (f *fakeReview) SetFilter(flt navigation.Filter) {
	f.calls = append(f.calls, "filter")
	f.filters = append(f.filters, flt.Name)
}
func (f *fakeReview) ShowMarked()               { f.calls = append(f.calls, "marked") }
func (f *fakeReview) SetRating(r domain.Rating) { f.calls = append(f.calls, fmt.Sprintf("rate %d", r)) }
func (f *fakeReview) ToggleMarked()             { f.calls = append(f.calls, "toggle") }
func (f *fakeReview) Rescan()                   { f.calls = append(f.calls, "rescan") }

type fakeOpener struct {
	opened []string
	err    error
}

func (o *fakeOpener) Open(path string) error {
	o.opened = append(o.opened, path)
	return o.err
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func newTestModel() (Model, *fakeReview) {
	rv := newFakeReview()
	m := NewModel(rv, &fakeOpener{}, false)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model), rv
}

func TestKeys_DriveReviewCommands(t *testing.T) {
	m, rv := newTestModel()

	press(t, m,
		runes("l"), tea.KeyMsg{Type: tea.KeyLeft}, runes("g"), runes("G"),
		runes("4"), runes("0"), runes("m"), tea.KeyMsg{Type: tea.KeySpace},
		runes("n"), runes("N"), runes("r"),
	)

	assert.Equal(t, []string{
		"advance 1", "advance -1", "start", "end",
		"rate 4", "rate 0", "toggle", "toggle",
		"cycle 1", "cycle -1", "rescan",
	}, rv.calls)
}

func TestKeys_Filters(t *testing.T) {
	m, rv := newTestModel()

	press(t, m, runes("u"), runes("$"), runes("a"), runes("M"))

	assert.Equal(t, []string{"filter", "filter", "filter", "marked"}, rv.calls)
	assert.Equal(t, []string{"unrated", "rating>=4", "all"}, rv.filters)
}

func TestPrompt_NameFilter(t *testing.T) {
	m, rv := newTestModel()

	m = press(t, m, runes("/"))
	require.Equal(t, StatePrompt, m.State)

	// Keys go to the prompt, not to navigation
	m = press(t, m, runes("dsc"), tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, StateReviewing, m.State)
	assert.Equal(t, []string{`name~"dsc"`}, rv.filters)

	// Reopening prefills the last query; escape clears the filter
	m = press(t, m, runes("/"))
	assert.Equal(t, "dsc", m.Prompt.Value())
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc}, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, StateReviewing, m.State)
	assert.Equal(t, []string{`name~"dsc"`, "all"}, rv.filters)
}

func TestPrompt_JumpToName(t *testing.T) {
	m, rv := newTestModel()

	m = press(t, m, runes("f"), runes("b.jpg"), tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, StateReviewing, m.State)
	assert.Equal(t, []string{"jump b.jpg"}, rv.calls)

	// An empty jump keeps the prompt open and does nothing
	m = press(t, m, runes("f"), tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, StatePrompt, m.State)
	assert.Equal(t, []string{"jump b.jpg"}, rv.calls)
}

func TestUpdateMsg_ReplacesSnapshotAndShowsErrors(t *testing.T) {
	m, _ := newTestModel()

	st := service.State{Position: 1, Len: 2, Total: 2, HasItem: true, Item: domain.Item{ID: "b.jpg"}, Filter: "all"}
	next, cmd := m.Update(UpdateMsg{Update: service.Update{Kind: service.UpdateView, State: st, Err: errors.New("no marked items")}})
	m = next.(Model)

	assert.NotNil(t, cmd)
	assert.Equal(t, domain.ItemID("b.jpg"), m.Snapshot.Item.ID)
	assert.True(t, m.StatusIsErr)
	assert.Equal(t, "no marked items", m.StatusMsg)
}

func TestUpdatesClosedQuits(t *testing.T) {
	m, _ := newTestModel()

	_, cmd := m.Update(UpdatesClosedMsg{})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestOpen_UsesCurrentItemPath(t *testing.T) {
	m, _ := newTestModel()
	opener := m.Opener.(*fakeOpener)

	_, cmd := m.Update(runes("o"))
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, []string{"/photos/a.jpg"}, opener.opened)
	assert.Equal(t, StatusMsg{Text: "Opened a.jpg"}, msg)

	opener.err = errors.New("no viewer")
	_, cmd = m.Update(runes("o"))
	_, isErr := cmd().(ErrMsg)
	assert.True(t, isErr)
}

func TestView_RendersStateAndLoadStatus(t *testing.T) {
	m, rv := newTestModel()

	out := m.View()
	assert.Contains(t, out, "1/2")
	assert.Contains(t, out, "a.jpg")
	assert.Contains(t, out, "loading")

	rv.lookup = cache.Lookup{State: cache.StateFailed, Err: errors.New("corrupt")}
	assert.Contains(t, m.View(), "Could not load image")

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	rv.lookup = cache.Lookup{State: cache.StateReady, Image: &domain.DecodedImage{Image: img, Width: 8, Height: 8, SourceW: 4000, SourceH: 3000}}
	out = m.View()
	assert.Contains(t, out, "4000x3000")
	assert.True(t, strings.Contains(out, "▀"))
}

func TestView_EmptyFilter(t *testing.T) {
	m, rv := newTestModel()
	rv.state = service.State{Position: -1, Filter: "unrated"}
	m.Snapshot = rv.state

	out := m.View()
	assert.Contains(t, out, "empty")
	assert.Contains(t, out, "No images match this filter")
}

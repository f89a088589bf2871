package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/tunemirror/internal/models"
	"github.com/desertthunder/tunemirror/internal/repositories"
	"github.com/desertthunder/tunemirror/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	SyncView
	TrackListView
	ConfirmView
)

// sortCycle is the order the sort key steps through.
var sortCycle = []repositories.TrackSort{
	repositories.SortAdded,
	repositories.SortArtist,
	repositories.SortAlbum,
	repositories.SortName,
	repositories.SortGenre,
}

func nextSort(s repositories.TrackSort) repositories.TrackSort {
	for i, v := range sortCycle {
		if v == s {
			return sortCycle[(i+1)%len(sortCycle)]
		}
	}
	return repositories.SortAdded
}

func sortLabel(s repositories.TrackSort) string {
	if s == repositories.SortAdded {
		return "added"
	}
	return string(s)
}

// Deps are the collaborators a [Model] needs.
type Deps struct {
	Remote tasks.Editor
	Engine *tasks.MirrorEngine
	Store  *repositories.Store
	User   *models.User
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	deps         Deps
	view         ViewState
	width        int
	height       int
	loading      bool
	playlistList list.Model
	trackList    list.Model
	selected     *models.Playlist
	pending      *models.Track
	sort         repositories.TrackSort
	progressChan chan tasks.ProgressUpdate
	doneChan     chan Msg
	progress     tasks.ProgressUpdate
	result       *tasks.TrackSyncResult
	status       string
	err          error
	spinner      spinner.Model
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, deps Deps) *Model {
	playlists := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	playlists.Title = "Mirrored Playlists"
	tracks := list.New(nil, list.NewDefaultDelegate(), 0, 0)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.ok

	return &Model{
		ctx:          ctx,
		deps:         deps,
		view:         PlaylistListView,
		loading:      true,
		playlistList: playlists,
		trackList:    tracks,
		spinner:      sp,
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Init syncs the user's playlists from Spotify.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.syncPlaylists())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playlistList.SetSize(msg.Width-4, msg.Height-8)
		m.trackList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case TrackListView:
			return m.handleTrackListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case SyncView:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsSynced:
		data := msg.data.(playlistsSynced)
		m.loading = false
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		cmd := m.playlistList.SetItems(playlistItems(data.playlists))
		return m, cmd

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForSync()

	case MsgTracksSynced:
		data := msg.data.(tracksSynced)
		m.progressChan, m.doneChan = nil, nil
		if data.err != nil {
			m.status = fmt.Sprintf("Sync failed: %v", data.err)
			if m.trackList.Title == "" {
				m.view = PlaylistListView
			} else {
				m.view = TrackListView
			}
			return m, nil
		}
		m.result = data.result
		m.status = ""
		m.view = TrackListView
		return m, m.showTracks(data.tracks)

	case MsgTracksLoaded:
		data := msg.data.(tracksLoaded)
		if data.err != nil {
			m.status = fmt.Sprintf("Failed to load tracks: %v", data.err)
			return m, nil
		}
		return m, m.showTracks(data.tracks)
	}
	return m, nil
}

func (m *Model) showTracks(tracks []models.Track) tea.Cmd {
	m.trackList.Title = fmt.Sprintf("%s (sorted by %s)", m.selected.Name, sortLabel(m.sort))
	return m.trackList.SetItems(trackItems(tracks))
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case SyncView:
		return m.renderSync()
	case TrackListView:
		return m.renderTrackList()
	case ConfirmView:
		return m.renderConfirm()
	default:
		return ""
	}
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.playlistList.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case m.err != nil || m.loading:
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			selected := pl.playlist
			m.selected = &selected
			m.sort = repositories.SortAdded
			m.trackList.Title = ""
			return m, m.startSync()
		}
		return m, nil
	}
	return m.updateLists(msg)
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.trackList.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = PlaylistListView
		m.status = ""
		m.result = nil
		return m, nil
	case key.Matches(msg, m.keys.sort):
		m.sort = nextSort(m.sort)
		return m, m.loadTracks()
	case key.Matches(msg, m.keys.refresh):
		return m, m.startSync()
	case key.Matches(msg, m.keys.remove):
		if t, ok := m.trackList.SelectedItem().(trackItem); ok {
			track := t.track
			m.pending = &track
			m.view = ConfirmView
		}
		return m, nil
	}
	return m.updateLists(msg)
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.pending = nil
		m.view = TrackListView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		track := m.pending
		m.pending = nil
		return m, m.startRemove(track)
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistListView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case TrackListView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

func (m *Model) syncPlaylists() tea.Cmd {
	ctx, deps := m.ctx, m.deps
	return func() tea.Msg {
		playlists, err := deps.Engine.SyncPlaylists(ctx, deps.Remote, deps.User)
		return playlistsSyncedMsg(playlists, err)
	}
}

func (m *Model) loadTracks() tea.Cmd {
	ctx, store, playlistID, sort := m.ctx, m.deps.Store, m.selected.ID, m.sort
	return func() tea.Msg {
		tracks, err := store.Tracks.ListByPlaylist(ctx, playlistID, sort)
		return tracksLoadedMsg(tracks, err)
	}
}

func (m *Model) startSync() tea.Cmd {
	playlist := *m.selected
	return m.runSync(func(progress chan<- tasks.ProgressUpdate) (*tasks.TrackSyncResult, error) {
		return m.deps.Engine.SyncTracks(m.ctx, m.deps.Remote, &playlist, progress)
	})
}

func (m *Model) startRemove(track *models.Track) tea.Cmd {
	playlist := *m.selected
	m.progress = tasks.ProgressUpdate{Message: fmt.Sprintf("Removing %s...", track.Name)}
	return m.runSync(func(chan<- tasks.ProgressUpdate) (*tasks.TrackSyncResult, error) {
		return m.deps.Engine.RemoveTrack(m.ctx, m.deps.Remote, &playlist, track)
	})
}

// runSync runs op in the background and reports its progress until it finishes.
func (m *Model) runSync(op func(chan<- tasks.ProgressUpdate) (*tasks.TrackSyncResult, error)) tea.Cmd {
	m.view = SyncView
	m.status = ""
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.doneChan = make(chan Msg, 1)

	ctx, store, playlistID, sort := m.ctx, m.deps.Store, m.selected.ID, m.sort
	progress, done := m.progressChan, m.doneChan
	go func() {
		result, err := op(progress)
		if err != nil {
			done <- tracksSyncedMsg(nil, nil, err)
			return
		}
		tracks, err := store.Tracks.ListByPlaylist(ctx, playlistID, sort)
		done <- tracksSyncedMsg(result, tracks, err)
	}()

	return m.waitForSync()
}

func (m *Model) waitForSync() tea.Cmd {
	progress, done := m.progressChan, m.doneChan
	if done == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case update := <-progress:
			return progressUpdateMsg(update)
		case msg := <-done:
			return msg
		}
	}
}

func (m *Model) renderPlaylistList() string {
	if m.loading {
		return fmt.Sprintf("%s Syncing playlists from Spotify...", m.spinner.View())
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n%s", m.playlistList.View(), m.renderStatus(), helpView)
}

func (m *Model) renderSync() string {
	title := styles.title.Render(fmt.Sprintf("Syncing %s", m.selected.Name))

	var phase string
	switch m.progress.Phase {
	case tasks.FetchTracks:
		phase = "Fetching tracks..."
	case tasks.ResolveGenres:
		phase = fmt.Sprintf("Resolving genres (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.Reconcile:
		phase = "Writing changes..."
	case tasks.Done:
		phase = "Done"
	default:
		phase = "Working..."
	}

	return fmt.Sprintf("%s\n\n%s %s\n%s", title, m.spinner.View(), phase, styles.help.Render(m.progress.Message))
}

func (m *Model) renderTrackList() string {
	var summary string
	if r := m.result; r != nil {
		summary = styles.ok.Render(fmt.Sprintf("✓ %d tracks (+%d -%d)", r.Total, r.Added, r.Removed))
		if r.Skipped > 0 {
			summary += " " + styles.warn.Render(fmt.Sprintf("%d unavailable", r.Skipped))
		}
	}

	helpKeys := []key.Binding{m.keys.sort, m.keys.refresh, m.keys.remove, m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n%s\n%s\n%s", m.trackList.View(), summary, m.renderStatus(), helpView)
}

func (m *Model) renderConfirm() string {
	if m.pending == nil {
		return ""
	}
	title := styles.title.Render(fmt.Sprintf("Remove '%s' from '%s'?", m.pending.Name, m.selected.Name))
	info := styles.warn.Render("The track is removed from the playlist on Spotify as well.")

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no})
	return fmt.Sprintf("%s\n%s\n\n%s", title, info, helpView)
}

func (m *Model) renderStatus() string {
	if m.status == "" {
		return ""
	}
	return styles.err.Render(m.status)
}

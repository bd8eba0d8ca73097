package index

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/Zuo-Peng/opencontext/internal/parse"
)

type StoreSuite struct {
	suite.Suite
	db *DB
}

func (s *StoreSuite) SetupTest() {
	db, err := OpenDB(filepath.Join(s.T().TempDir(), "db", "test.db"))
	s.Require().NoError(err)
	s.db = db
}

func (s *StoreSuite) TearDownTest() {
	s.db.Close()
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) addSession(id, workspace, last string) {
	s.Require().NoError(s.db.UpsertSession(&Session{
		ID:             id,
		FilePath:       "/logs/" + id + ".jsonl",
		SessionType:    "claude",
		Workspace:      workspace,
		StartedAt:      last,
		LastActivityAt: last,
	}))
}

func (s *StoreSuite) addTurn(sessionID string, n int, hash string) *Turn {
	t := &Turn{
		ID:          sessionID + "-t" + hash,
		SessionID:   sessionID,
		TurnNumber:  n,
		UserMessage: "please refactor the parser",
		Title:       "Turn",
		ContentHash: hash,
		Timestamp:   "2025-03-01T10:00:0" + hash + "Z",
		ToolUses:    []parse.ToolUse{{Name: "Edit", FilePath: "/src/a.go"}},
	}
	ok, err := s.db.InsertTurn(t, "raw "+hash)
	s.Require().NoError(err)
	s.Require().True(ok)
	return t
}

func (s *StoreSuite) TestSessionLifecycle() {
	s.addSession("abc123", "/work/app", "2025-03-01T10:00:00Z")

	got, err := s.db.GetSession("abc123")
	s.Require().NoError(err)
	s.Equal("/work/app", got.Workspace)
	s.Equal(0, got.TotalTurns)

	byPrefix, err := s.db.GetSessionByPrefix("abc")
	s.Require().NoError(err)
	s.Equal("abc123", byPrefix.ID)

	_, err = s.db.GetSession("missing")
	s.ErrorIs(err, ErrNotFound)
	_, err = s.db.GetSessionByPrefix("zzz")
	s.ErrorIs(err, ErrNotFound)

	s.Require().NoError(s.db.UpdateSessionSummary("abc123", "Parser work", "Refactored the parser."))
	s.ErrorIs(s.db.UpdateSessionSummary("missing", "x", "y"), ErrNotFound)

	// a later upsert keeps the summary
	s.addSession("abc123", "/work/app", "2025-03-02T10:00:00Z")
	got, err = s.db.GetSession("abc123")
	s.Require().NoError(err)
	s.Equal("Parser work", got.Title)
	s.Equal("2025-03-02T10:00:00Z", got.LastActivityAt)
}

func (s *StoreSuite) TestSessionFileInfo() {
	info, err := s.db.GetSessionInfo("nope")
	s.Require().NoError(err)
	s.Nil(info)

	s.addSession("s1", "/w", "2025-01-01T00:00:00Z")
	s.Require().NoError(s.db.TouchSession("s1", 111, 222))

	info, err = s.db.GetSessionInfo("s1")
	s.Require().NoError(err)
	s.Equal(&SessionInfo{Mtime: 111, Size: 222}, info)
}

func (s *StoreSuite) TestListAndProjects() {
	s.addSession("a", "/w/one", "2025-01-01T00:00:00Z")
	s.addSession("b", "/w/one", "2025-01-03T00:00:00Z")
	s.addSession("c", "/w/two", "2025-01-02T00:00:00Z")
	s.addTurn("a", 1, "1")
	s.addTurn("a", 2, "2")
	s.Require().NoError(s.db.RefreshSessionStats("a"))

	all, err := s.db.ListSessions("", 10)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	// a's activity moved to its latest turn
	s.Equal([]string{"a", "b", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})

	one, err := s.db.ListSessions("/w/one", 10)
	s.Require().NoError(err)
	s.Len(one, 2)

	top, err := s.db.TopSessions("/w/one", 1)
	s.Require().NoError(err)
	s.Require().Len(top, 1)
	s.Equal("a", top[0].ID)
	s.Equal(2, top[0].TotalTurns)

	projects, err := s.db.Projects()
	s.Require().NoError(err)
	s.Require().Len(projects, 2)
	s.Equal("/w/one", projects[0].Workspace)
	s.Equal(2, projects[0].Sessions)
	s.Equal(2, projects[0].Turns)
}

func (s *StoreSuite) TestTurns() {
	s.addSession("s1", "/w", "2025-01-01T00:00:00Z")
	t1 := s.addTurn("s1", 1, "1")
	s.addTurn("s1", 2, "2")

	// same number or same hash is ignored
	ok, err := s.db.InsertTurn(&Turn{ID: "dup-num", SessionID: "s1", TurnNumber: 1, ContentHash: "9"}, "")
	s.Require().NoError(err)
	s.False(ok)
	ok, err = s.db.InsertTurn(&Turn{ID: "dup-hash", SessionID: "s1", TurnNumber: 3, ContentHash: "2"}, "")
	s.Require().NoError(err)
	s.False(ok)

	turns, err := s.db.GetTurns("s1")
	s.Require().NoError(err)
	s.Require().Len(turns, 2)
	s.Equal([]parse.ToolUse{{Name: "Edit", FilePath: "/src/a.go"}}, turns[0].ToolUses)
	s.Nil(turns[0].FilesModified)
	s.Equal("fine", turns[0].Satisfaction)

	last, err := s.db.MaxTurnNumber("s1")
	s.Require().NoError(err)
	s.Equal(2, last)
	last, err = s.db.MaxTurnNumber("other")
	s.Require().NoError(err)
	s.Equal(0, last)

	has, err := s.db.HasTurnHash("s1", "1")
	s.Require().NoError(err)
	s.True(has)

	content, err := s.db.TurnContent(t1.ID)
	s.Require().NoError(err)
	s.Equal("raw 1", content)

	byNum, err := s.db.GetTurnByNumber("s1", 2)
	s.Require().NoError(err)
	s.Equal(2, byNum.TurnNumber)
	_, err = s.db.GetTurnByNumber("s1", 7)
	s.ErrorIs(err, ErrNotFound)
}

func (s *StoreSuite) TestTurnSummaryUpdatesFTS() {
	s.addSession("s1", "/w", "2025-01-01T00:00:00Z")
	t1 := s.addTurn("s1", 1, "1")

	s.Require().NoError(s.db.UpdateTurnSummary(t1.ID, TurnSummary{
		Title:        "Tokenizer rewrite",
		Description:  "Replaced the lexer",
		Satisfaction: "good",
		ModelName:    "test-model",
	}))

	got, err := s.db.GetTurn(t1.ID)
	s.Require().NoError(err)
	s.Equal("Tokenizer rewrite", got.Title)
	s.True(got.Summarized)
	s.Equal("good", got.Satisfaction)

	var n int
	s.Require().NoError(s.db.Raw().QueryRow("SELECT COUNT(*) FROM turns_fts WHERE turns_fts MATCH 'tokenizer'").Scan(&n))
	s.Equal(1, n)
	s.Require().NoError(s.db.Raw().QueryRow("SELECT COUNT(*) FROM turns_fts WHERE turns_fts MATCH 'refactor'").Scan(&n))
	s.Equal(1, n)

	s.ErrorIs(s.db.UpdateTurnSummary("missing", TurnSummary{}), ErrNotFound)
}

func (s *StoreSuite) TestDeleteSessionCascades() {
	s.addSession("s1", "/w", "2025-01-01T00:00:00Z")
	t1 := s.addTurn("s1", 1, "1")

	s.Require().NoError(s.db.DeleteSession("s1"))

	_, err := s.db.GetTurn(t1.ID)
	s.ErrorIs(err, ErrNotFound)
	_, err = s.db.TurnContent(t1.ID)
	s.ErrorIs(err, ErrNotFound)
}

func (s *StoreSuite) TestEvents() {
	s.addSession("s1", "/w", "2025-01-01T00:00:00Z")
	s.addSession("s2", "/w", "2025-01-02T00:00:00Z")

	e := &Event{ID: "ev1", Title: "Auth migration", Description: "Moved to OAuth"}
	s.Require().NoError(s.db.UpsertEvent(e, []string{"s1"}))
	e.Title = "Auth migration done"
	s.Require().NoError(s.db.UpsertEvent(e, []string{"s2", "s1"}))

	got, err := s.db.GetEvent("ev1")
	s.Require().NoError(err)
	s.Equal("Auth migration done", got.Title)
	s.Equal("task", got.EventType)
	s.ElementsMatch([]string{"s1", "s2"}, got.SessionIDs)

	sessions, err := s.db.SessionsForEvent("ev1")
	s.Require().NoError(err)
	s.Require().Len(sessions, 2)
	s.Equal("s2", sessions[0].ID)

	list, err := s.db.ListEvents(10)
	s.Require().NoError(err)
	s.Len(list, 1)

	_, err = s.db.GetEvent("nope")
	s.ErrorIs(err, ErrNotFound)
}

func (s *StoreSuite) TestStats() {
	s.addSession("s1", "/w", "2025-01-01T00:00:00Z")
	s.addTurn("s1", 1, "1")
	_, err := s.db.EnqueueJob(JobSessionSummary, "session:s1", SessionJob{SessionID: "s1"}, 1)
	s.Require().NoError(err)

	st, err := s.db.Stats()
	s.Require().NoError(err)
	s.Equal(1, st.Sessions)
	s.Equal(1, st.Turns)
	s.Equal(0, st.Summarized)
	s.Equal(1, st.JobsPending)
	s.Equal(s.db.Path(), st.DBPath)
}

package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "loom.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedChat(t *testing.T, s *Store) {
	t.Helper()
	require.NoError(t, s.PutProject(&Project{ID: "proj-1", RootPath: "/tmp/proj"}))
	require.NoError(t, s.PutChat("chat-1", "proj-1"))
}

func TestProjectRoundtrip(t *testing.T) {
	s := openTestStore(t)
	in := &Project{
		ID:                "proj-1",
		RootPath:          "/home/user/app",
		DatabaseProjectID: "db-9",
		DatabaseBranchID:  "branch-2",
	}
	require.NoError(t, s.PutProject(in))

	out, err := s.GetProject("proj-1")
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = s.GetProject("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestChatProjectID(t *testing.T) {
	s := openTestStore(t)
	seedChat(t, s)

	projectID, err := s.ChatProjectID("chat-1")
	require.NoError(t, err)
	assert.Equal(t, "proj-1", projectID)

	_, err = s.ChatProjectID("missing")
	require.Error(t, err)
}

func TestMessageRoundtrip(t *testing.T) {
	s := openTestStore(t)
	seedChat(t, s)

	in := &Message{ID: "msg-1", ChatID: "chat-1", Role: "assistant", Content: "<write path=\"a.ts\">x</write>"}
	require.NoError(t, s.PutMessage(in))

	out, err := s.GetMessage("msg-1", "assistant", "chat-1")
	require.NoError(t, err)
	assert.Equal(t, in.Content, out.Content)
	assert.Empty(t, out.ApprovalState)
	assert.Empty(t, out.CommitHash)

	// Role and chat are part of the lookup key.
	_, err = s.GetMessage("msg-1", "user", "chat-1")
	require.Error(t, err)
	_, err = s.GetMessage("msg-1", "assistant", "other-chat")
	require.Error(t, err)
}

func TestMessageUpdates(t *testing.T) {
	s := openTestStore(t)
	seedChat(t, s)
	require.NoError(t, s.PutMessage(&Message{ID: "msg-1", ChatID: "chat-1", Role: "assistant", Content: "original"}))

	require.NoError(t, s.UpdateMessageContent("msg-1", "annotated"))
	require.NoError(t, s.ApproveMessage("msg-1"))
	require.NoError(t, s.SetCommitHash("msg-1", "cafe1234"))

	out, err := s.GetMessage("msg-1", "assistant", "chat-1")
	require.NoError(t, err)
	assert.Equal(t, "annotated", out.Content)
	assert.Equal(t, "approved", out.ApprovalState)
	assert.Equal(t, "cafe1234", out.CommitHash)
}

func TestTakeUploadsReturnsAndClears(t *testing.T) {
	s := openTestStore(t)
	seedChat(t, s)

	require.NoError(t, s.RegisterUpload("chat-1", "loom-upload:1", "/tmp/staged/a.bin"))
	require.NoError(t, s.RegisterUpload("chat-1", "loom-upload:2", "/tmp/staged/b.bin"))
	require.NoError(t, s.RegisterUpload("chat-other", "loom-upload:1", "/tmp/staged/c.bin"))

	got, err := s.TakeUploads("chat-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"loom-upload:1": "/tmp/staged/a.bin",
		"loom-upload:2": "/tmp/staged/b.bin",
	}, got)

	// Cleared on take; other chats are untouched.
	again, err := s.TakeUploads("chat-1")
	require.NoError(t, err)
	assert.Empty(t, again)

	other, err := s.TakeUploads("chat-other")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestRegisterUploadReplacesToken(t *testing.T) {
	s := openTestStore(t)
	seedChat(t, s)

	require.NoError(t, s.RegisterUpload("chat-1", "tok", "/tmp/old.bin"))
	require.NoError(t, s.RegisterUpload("chat-1", "tok", "/tmp/new.bin"))

	got, err := s.TakeUploads("chat-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"tok": "/tmp/new.bin"}, got)
}

func TestOpenCreatesParentDir(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "deeper", "loom.db")
	s, err := Open(dbPath)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.PutProject(&Project{ID: "p", RootPath: "/x"}))
}

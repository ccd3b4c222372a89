package handler

import (
	"context"
	"sync"

	"github.com/finsight/insights-bot/pkg/assistant"
)

// callRecorder collects the ordered names of collaborator calls made during
// one dispatched event.
type callRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *callRecorder) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

func (r *callRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// mockMessenger mocks the Messenger interface.
type mockMessenger struct {
	rec *callRecorder

	SendTextFunc             func(ctx context.Context, channelID, text string) error
	SendNoticeFunc           func(ctx context.Context, channelID, title, text string) error
	SendTypingFunc           func(ctx context.Context, channelID string) (string, error)
	DeleteMessageFunc        func(ctx context.Context, channelID, messageTS string) error
	LookupUserByUsernameFunc func(ctx context.Context, username string) (string, error)
	OpenDMFunc               func(ctx context.Context, userID string) (string, error)
	UploadImageFunc          func(ctx context.Context, channelID string, image []byte, filename, title string) (string, error)
	VerifyUploadFunc         func(ctx context.Context, fileID string) error
}

var _ Messenger = (*mockMessenger)(nil)

func (m *mockMessenger) SendText(ctx context.Context, channelID, text string) error {
	m.rec.record("send_text")
	if m.SendTextFunc != nil {
		return m.SendTextFunc(ctx, channelID, text)
	}
	return nil
}

func (m *mockMessenger) SendNotice(ctx context.Context, channelID, title, text string) error {
	m.rec.record("send_notice")
	if m.SendNoticeFunc != nil {
		return m.SendNoticeFunc(ctx, channelID, title, text)
	}
	return nil
}

func (m *mockMessenger) SendTyping(ctx context.Context, channelID string) (string, error) {
	m.rec.record("send_typing")
	if m.SendTypingFunc != nil {
		return m.SendTypingFunc(ctx, channelID)
	}
	return "1700000000.000100", nil
}

func (m *mockMessenger) DeleteMessage(ctx context.Context, channelID, messageTS string) error {
	m.rec.record("delete_message")
	if m.DeleteMessageFunc != nil {
		return m.DeleteMessageFunc(ctx, channelID, messageTS)
	}
	return nil
}

func (m *mockMessenger) LookupUserByUsername(ctx context.Context, username string) (string, error) {
	m.rec.record("lookup_user")
	if m.LookupUserByUsernameFunc != nil {
		return m.LookupUserByUsernameFunc(ctx, username)
	}
	return "U123456", nil
}

func (m *mockMessenger) OpenDM(ctx context.Context, userID string) (string, error) {
	m.rec.record("open_dm")
	if m.OpenDMFunc != nil {
		return m.OpenDMFunc(ctx, userID)
	}
	return "D123456", nil
}

func (m *mockMessenger) UploadImage(ctx context.Context, channelID string, image []byte, filename, title string) (string, error) {
	m.rec.record("upload_image")
	if m.UploadImageFunc != nil {
		return m.UploadImageFunc(ctx, channelID, image, filename, title)
	}
	return "F123456", nil
}

func (m *mockMessenger) VerifyUpload(ctx context.Context, fileID string) error {
	m.rec.record("verify_upload")
	if m.VerifyUploadFunc != nil {
		return m.VerifyUploadFunc(ctx, fileID)
	}
	return nil
}

// mockAssistant mocks the Assistant interface.
type mockAssistant struct {
	rec *callRecorder

	CreateThreadFunc    func(ctx context.Context) (assistant.Thread, error)
	AppendMessageFunc   func(ctx context.Context, threadID, text string) (assistant.Message, error)
	StartRunFunc        func(ctx context.Context, threadID string) (assistant.Run, error)
	AwaitCompletionFunc func(ctx context.Context, threadID, runID string) (assistant.Run, error)
	LatestReplyFunc     func(ctx context.Context, threadID string) (string, error)
}

var _ Assistant = (*mockAssistant)(nil)

func (m *mockAssistant) CreateThread(ctx context.Context) (assistant.Thread, error) {
	m.rec.record("create_thread")
	if m.CreateThreadFunc != nil {
		return m.CreateThreadFunc(ctx)
	}
	return assistant.Thread{ID: "thread_new"}, nil
}

func (m *mockAssistant) AppendMessage(ctx context.Context, threadID, text string) (assistant.Message, error) {
	m.rec.record("append_message")
	if m.AppendMessageFunc != nil {
		return m.AppendMessageFunc(ctx, threadID, text)
	}
	return assistant.Message{ID: "msg_1", Role: "user"}, nil
}

func (m *mockAssistant) StartRun(ctx context.Context, threadID string) (assistant.Run, error) {
	m.rec.record("start_run")
	if m.StartRunFunc != nil {
		return m.StartRunFunc(ctx, threadID)
	}
	return assistant.Run{ID: "run_1", Status: assistant.StatusQueued}, nil
}

func (m *mockAssistant) AwaitCompletion(ctx context.Context, threadID, runID string) (assistant.Run, error) {
	m.rec.record("await_completion")
	if m.AwaitCompletionFunc != nil {
		return m.AwaitCompletionFunc(ctx, threadID, runID)
	}
	return assistant.Run{ID: runID, Status: assistant.StatusCompleted}, nil
}

func (m *mockAssistant) LatestReply(ctx context.Context, threadID string) (string, error) {
	m.rec.record("latest_reply")
	if m.LatestReplyFunc != nil {
		return m.LatestReplyFunc(ctx, threadID)
	}
	return "Hi there!", nil
}

package executors_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"worknest/internal/executors"
	"worknest/internal/jobs"
	"worknest/internal/logger"
)

// MockSender is a mock implementation of executors.Sender
type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendEmail(ctx context.Context, msg executors.EmailPayload) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func TestEmail_Execute(t *testing.T) {
	t.Parallel()

	t.Run("sends decoded payload", func(t *testing.T) {
		t.Parallel()

		sender := new(MockSender)
		defer sender.AssertExpectations(t)
		sender.On("SendEmail", mock.Anything, executors.EmailPayload{
			To:       "a@b.com",
			Subject:  "Welcome",
			BodyHTML: "<p>hi</p>",
		}).Return(nil)

		ex := &executors.Email{Sender: sender}
		assert.Equal(t, jobs.TypeEmailSend, ex.JobType())
		err := ex.Execute(context.Background(), `{"to":" a@b.com ","subject":"Welcome","body_html":"<p>hi</p>"}`)
		require.NoError(t, err)
	})

	t.Run("sender failure becomes execution error", func(t *testing.T) {
		t.Parallel()

		sender := new(MockSender)
		defer sender.AssertExpectations(t)
		sendErr := errors.New("SMTP connection failed")
		sender.On("SendEmail", mock.Anything, mock.Anything).Return(sendErr)

		err := (&executors.Email{Sender: sender}).Execute(context.Background(), `{"to":"a@b.com"}`)

		var execErr *jobs.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, "SMTP connection failed", execErr.Msg)
		assert.ErrorIs(t, err, sendErr)
	})

	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{name: "empty payload", payload: "", want: "invalid payload: empty"},
		{name: "missing recipient", payload: `{"subject":"x"}`, want: "invalid payload: to is required"},
		{name: "malformed json", payload: `{"to":`, want: "invalid payload: "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sender := new(MockSender)
			defer sender.AssertExpectations(t)

			err := (&executors.Email{Sender: sender}).Execute(context.Background(), tt.payload)
			var execErr *jobs.ExecutionError
			require.ErrorAs(t, err, &execErr)
			assert.Contains(t, execErr.Msg, tt.want)
			sender.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything)
		})
	}
}

func TestNewPostmarkSender(t *testing.T) {
	t.Parallel()

	_, err := executors.NewPostmarkSender("", "acct", "from@x.io")
	assert.ErrorIs(t, err, executors.ErrInvalidEmailConfig)

	_, err = executors.NewPostmarkSender("srv", "", "from@x.io")
	assert.ErrorIs(t, err, executors.ErrInvalidEmailConfig)

	_, err = executors.NewPostmarkSender("srv", "acct", "")
	assert.ErrorIs(t, err, executors.ErrInvalidEmailConfig)

	s, err := executors.NewPostmarkSender("srv", "acct", "from@x.io")
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestLogSender(t *testing.T) {
	t.Parallel()

	s := &executors.LogSender{Logger: logger.Discard()}
	assert.NoError(t, s.SendEmail(context.Background(), executors.EmailPayload{To: "a@b.com"}))

	var zero executors.LogSender
	assert.NoError(t, zero.SendEmail(context.Background(), executors.EmailPayload{To: "a@b.com"}))
}

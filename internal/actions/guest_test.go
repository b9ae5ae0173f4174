package actions

import (
	"context"
	"testing"
	"time"

	expect "github.com/google/goexpect"
	"github.com/jobs/taskengine/internal/biz/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	batches [][]expect.Batcher
	outputs []string
	closed  bool
}

func (s *fakeSession) ExpectBatch(batch []expect.Batcher, _ time.Duration) ([]expect.BatchRes, error) {
	s.batches = append(s.batches, batch)
	out := s.outputs[0]
	s.outputs = s.outputs[1:]
	return []expect.BatchRes{{Output: out}}, nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

func newTestGuest(t *testing.T, sess *fakeSession) (*GuestExecutor, *string) {
	e, err := NewGuestExecutor(GuestOptions{SSHPath: "ssh", Port: 22, Username: "root", Prompt: `[#$>] ?$`, Timeout: time.Second})
	require.NoError(t, err)
	var command string
	e.spawn = func(c string, _ time.Duration) (session, error) {
		command = c
		return sess, nil
	}
	return e, &command
}

func TestGuestProcessRun(t *testing.T) {
	sess := &fakeSession{outputs: []string{"$ ", "uptime\r\n 10:00 up 3 days\r\n$ "}}
	e, command := newTestGuest(t, sess)

	out, err := e.Execute(context.Background(), task.ActionGuestProcessRun,
		`{"Host":"10.0.0.5","CommandText":"uptime"}`)
	require.NoError(t, err)
	assert.Equal(t, "10:00 up 3 days", out)
	assert.Equal(t, "ssh -o StrictHostKeyChecking=no -o ConnectTimeout=20 -p 22 root@10.0.0.5", *command)
	assert.True(t, sess.closed)
	require.Len(t, sess.batches, 2)
	assert.Equal(t, "uptime\n", sess.batches[1][0].(*expect.BSnd).S)
}

func TestGuestFileWriteReportsPath(t *testing.T) {
	sess := &fakeSession{outputs: []string{"$ ", "$ "}}
	e, _ := newTestGuest(t, sess)

	out, err := e.Execute(context.Background(), task.ActionGuestFileWrite,
		`{"Host":"h","FilePath":"/tmp/flag","FileContent":"hi"}`)
	require.NoError(t, err)
	assert.Equal(t, "written /tmp/flag", out)
	assert.Equal(t, "echo aGk= | base64 -d > '/tmp/flag'\n", sess.batches[1][0].(*expect.BSnd).S)
}

func TestGuestCommand(t *testing.T) {
	cmd, err := guestCommand(task.ActionGuestFileRead, GuestInput{FilePath: "/etc/it's"})
	require.NoError(t, err)
	assert.Equal(t, `cat '/etc/it'\''s'`, cmd)

	_, err = guestCommand(task.ActionGuestProcessRun, GuestInput{})
	assert.Error(t, err)
	_, err = guestCommand(task.ActionVMReboot, GuestInput{})
	assert.Error(t, err)
}

func TestGuestRequiresHost(t *testing.T) {
	e, _ := newTestGuest(t, &fakeSession{})
	_, err := e.Execute(context.Background(), task.ActionGuestProcessRun, `{"CommandText":"id"}`)
	assert.Error(t, err)
}

func TestCleanOutput(t *testing.T) {
	assert.Equal(t, "a\nb", cleanOutput("ls\r\na\r\nb\r\n# ", "ls"))
	assert.Equal(t, "", cleanOutput("# ", "true"))
}

package actions

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	expect "github.com/google/goexpect"
	"github.com/jobs/taskengine/internal/biz/task"
	"google.golang.org/grpc/codes"
)

var (
	ErrGuestAuth    = errors.New("guest authentication failed")
	ErrGuestRefused = errors.New("guest connection refused")
)

// GuestInput 客户机命令和文件操作的参数
type GuestInput struct {
	Moid        string `json:"Moid"`
	Host        string `json:"Host"`
	Username    string `json:"Username"`
	Password    string `json:"Password"`
	CommandText string `json:"CommandText"`
	FilePath    string `json:"FilePath"`
	FileContent string `json:"FileContent"`
}

type GuestOptions struct {
	SSHPath  string
	Port     int
	Username string
	Password string
	Prompt   string
	Timeout  time.Duration
}

// session goexpect会话中用到的部分
type session interface {
	ExpectBatch(batch []expect.Batcher, timeout time.Duration) ([]expect.BatchRes, error)
	Close() error
}

type spawnFunc func(command string, timeout time.Duration) (session, error)

// GuestExecutor 通过ssh登录客户机执行命令，交互由goexpect驱动
type GuestExecutor struct {
	opts   GuestOptions
	prompt *regexp.Regexp
	spawn  spawnFunc
}

func NewGuestExecutor(opts GuestOptions) (*GuestExecutor, error) {
	prompt, err := regexp.Compile(opts.Prompt)
	if err != nil {
		return nil, fmt.Errorf("invalid guest prompt: %w", err)
	}
	return &GuestExecutor{opts: opts, prompt: prompt, spawn: spawnSSH}, nil
}

func spawnSSH(command string, timeout time.Duration) (session, error) {
	e, _, err := expect.Spawn(command, timeout)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (e *GuestExecutor) Execute(ctx context.Context, action task.Action, input string) (string, error) {
	var in GuestInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", fmt.Errorf("failed to parse guest input: %w", err)
	}
	command, err := guestCommand(action, in)
	if err != nil {
		return "", err
	}
	if in.Host == "" {
		return "", fmt.Errorf("guest input requires Host")
	}
	if in.Username == "" {
		in.Username = e.opts.Username
	}
	if in.Password == "" {
		in.Password = e.opts.Password
	}

	timeout := e.opts.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 {
		return "", context.DeadlineExceeded
	}

	sess, err := e.spawn(e.sshCommand(in), timeout)
	if err != nil {
		return "", fmt.Errorf("failed to spawn ssh: %w", err)
	}
	defer sess.Close()

	if err := e.login(sess, in, timeout); err != nil {
		return "", err
	}
	output, err := e.run(sess, command, timeout)
	if err != nil {
		return output, err
	}
	if action == task.ActionGuestFileWrite {
		return "written " + in.FilePath, nil
	}
	return output, nil
}

func (e *GuestExecutor) sshCommand(in GuestInput) string {
	return fmt.Sprintf("%s -o StrictHostKeyChecking=no -o ConnectTimeout=20 -p %d %s@%s",
		e.opts.SSHPath, e.opts.Port, in.Username, in.Host)
}

func (e *GuestExecutor) login(sess session, in GuestInput, timeout time.Duration) error {
	_, err := sess.ExpectBatch([]expect.Batcher{
		&expect.BCas{C: []expect.Caser{
			&expect.Case{R: regexp.MustCompile(`yes/no`), S: "yes\n",
				T: expect.Continue(expect.NewStatus(codes.Canceled, "host key prompt repeated")), Rt: 1},
			&expect.Case{R: regexp.MustCompile(`[Pp]assword:`), S: in.Password + "\n",
				T: expect.Continue(expect.NewStatus(codes.PermissionDenied, ErrGuestAuth.Error())), Rt: 1},
			&expect.Case{R: regexp.MustCompile(`Permission denied`),
				T: expect.Fail(expect.NewStatus(codes.PermissionDenied, ErrGuestAuth.Error()))},
			&expect.Case{R: regexp.MustCompile(`Connection (refused|closed)`),
				T: expect.Fail(expect.NewStatus(codes.Unavailable, ErrGuestRefused.Error()))},
			&expect.Case{R: e.prompt, T: expect.OK()},
		}},
	}, timeout)
	if err != nil {
		return fmt.Errorf("failed to log in to %s: %w", in.Host, err)
	}
	return nil
}

func (e *GuestExecutor) run(sess session, command string, timeout time.Duration) (string, error) {
	res, err := sess.ExpectBatch([]expect.Batcher{
		&expect.BSnd{S: command + "\n"},
		&expect.BExp{R: e.prompt.String()},
	}, timeout)
	var output string
	if len(res) > 0 {
		output = cleanOutput(res[len(res)-1].Output, command)
	}
	if err != nil {
		return output, fmt.Errorf("guest command failed: %w", err)
	}
	return output, nil
}

// cleanOutput 去掉回显的命令和最后一行提示符
func cleanOutput(raw, command string) string {
	out := strings.ReplaceAll(raw, "\r\n", "\n")
	out = strings.TrimPrefix(strings.TrimLeft(out, "\n"), command)
	if i := strings.LastIndex(out, "\n"); i >= 0 {
		out = out[:i]
	} else {
		out = ""
	}
	return strings.Trim(out, "\n ")
}

func guestCommand(action task.Action, in GuestInput) (string, error) {
	switch action {
	case task.ActionGuestProcessRun:
		if in.CommandText == "" {
			return "", fmt.Errorf("guest_process_run requires CommandText")
		}
		return in.CommandText, nil
	case task.ActionGuestFileRead:
		if in.FilePath == "" {
			return "", fmt.Errorf("guest_file_read requires FilePath")
		}
		return "cat " + shellQuote(in.FilePath), nil
	case task.ActionGuestFileWrite:
		if in.FilePath == "" {
			return "", fmt.Errorf("guest_file_write requires FilePath")
		}
		encoded := base64.StdEncoding.EncodeToString([]byte(in.FileContent))
		return fmt.Sprintf("echo %s | base64 -d > %s", encoded, shellQuote(in.FilePath)), nil
	}
	return "", fmt.Errorf("guest executor does not support action %q", action)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

package recognizer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
)

// flushWait bounds how long FinalResult waits for the runner to emit
// its last hypothesis after stdin is closed.
const flushWait = 2 * time.Second

// ExecModel fronts a recognizer runner process. The runner reads raw
// s16le PCM on stdin and writes one JSON result per line on stdout,
// {"partial": ...} while an utterance is open and {"text": ...} once
// it settles. One process is spawned per session.
type ExecModel struct {
	args       []string
	modelDir   string
	language   string
	sampleRate int
}

func NewExecModel(command, modelDir, language string, sampleRate int) (*ExecModel, error) {
	args, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse recognizer command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("recognizer command is empty")
	}
	entries, err := os.ReadDir(modelDir)
	if err != nil {
		return nil, fmt.Errorf("model directory: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("model directory %s is empty", modelDir)
	}
	return &ExecModel{
		args:       args,
		modelDir:   modelDir,
		language:   language,
		sampleRate: sampleRate,
	}, nil
}

func (m *ExecModel) NewEngine() (Engine, error) {
	args := append([]string{}, m.args[1:]...)
	args = append(args, "--model", m.modelDir, "--sample-rate", strconv.Itoa(m.sampleRate))
	if m.language != "" {
		args = append(args, "--language", m.language)
	}
	cmd := exec.Command(m.args[0], args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("recognizer stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("recognizer stdout: %w", err)
	}
	stderr := &stderrBuffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start recognizer: %w", err)
	}

	e := &execEngine{
		cmd:        cmd,
		stdin:      stdin,
		stderr:     stderr,
		readerDone: make(chan struct{}),
	}
	go e.readResults(stdout)
	return e, nil
}

func (m *ExecModel) Close() error { return nil }

// stderrBuffer collects the runner's stderr. os/exec writes into it
// from its own copier goroutine until Wait returns, while the engine's
// error paths read it mid-run, so both sides lock.
type stderrBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *stderrBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *stderrBuffer) tail() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.TrimSpace(append([]byte(nil), b.buf.Bytes()...))
}

type execEngine struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *stderrBuffer

	sendOnce   sync.Once
	closeOnce  sync.Once
	readerDone chan struct{}

	mu           sync.Mutex
	partial      []byte
	final        []byte
	finalPending bool
	readErr      error
}

// readResults classifies each stdout line by which marker field it
// carries and keeps the latest payload of each kind.
func (e *execEngine) readResults(stdout io.Reader) {
	defer close(e.readerDone)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		var p struct {
			Text *string `json:"text"`
		}
		if err := json.Unmarshal(line, &p); err != nil {
			continue
		}
		e.mu.Lock()
		if p.Text != nil {
			e.final = line
			e.finalPending = true
			// The partial that led into this final is settled now;
			// it must not replay on the next PartialResult poll.
			e.partial = nil
		} else {
			e.partial = line
		}
		e.mu.Unlock()
	}
	if err := scanner.Err(); err != nil {
		e.mu.Lock()
		if e.readErr == nil {
			e.readErr = err
		}
		e.mu.Unlock()
	}
}

func (e *execEngine) AcceptWaveform(pcm []byte) (bool, error) {
	if _, err := e.stdin.Write(pcm); err != nil {
		return false, e.runnerErr(err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.readErr != nil {
		return false, e.readErr
	}
	if e.finalPending {
		e.finalPending = false
		return true, nil
	}
	return false, nil
}

func (e *execEngine) PartialResult() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.partial
}

func (e *execEngine) Result() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.final
}

// FinalResult half-closes the stream so the runner flushes buffered
// audio, then returns the last settled hypothesis.
func (e *execEngine) FinalResult() []byte {
	e.sendOnce.Do(func() { e.stdin.Close() })
	select {
	case <-e.readerDone:
	case <-time.After(flushWait):
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.finalPending {
		e.finalPending = false
		return e.final
	}
	return nil
}

func (e *execEngine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.sendOnce.Do(func() { e.stdin.Close() })
		waited := make(chan error, 1)
		go func() { waited <- e.cmd.Wait() }()
		select {
		case err = <-waited:
		case <-time.After(flushWait):
			e.cmd.Process.Kill()
			err = <-waited
		}
		if err != nil {
			err = e.runnerErr(err)
		}
	})
	return err
}

func (e *execEngine) runnerErr(err error) error {
	if msg := e.stderr.tail(); len(msg) > 0 {
		return fmt.Errorf("recognizer: %w: %s", err, msg)
	}
	return fmt.Errorf("recognizer: %w", err)
}

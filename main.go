package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"scribe/audio"
	"scribe/beep"
	"scribe/clipboard"
	"scribe/config"
	"scribe/encoder"
	"scribe/hotkey"
	"scribe/log"
	"scribe/modelstore"
	"scribe/recognizer"
	"scribe/shutdown"
	"scribe/state"
)

var version = "dev"

var shutdownOnce sync.Once

func gracefulShutdown() {
	shutdownOnce.Do(func() {
		log.Close()
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
		}
		os.Exit(0)
	})
}

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			name += " (BT!)"
		}
	}
	return "mic: " + name
}

// captureMic probes the capture device to learn whether the microphone
// is usable. On platforms with an OS permission prompt the first Start
// triggers it; the outcome always comes back as a mic event so the
// event loop stays the only place that touches the router.
type captureMic struct {
	capture audio.CaptureDevice
	post    func(loopEvent)

	mu      sync.Mutex
	granted bool
	probing bool
}

func (m *captureMic) Granted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.granted
}

func (m *captureMic) Request() {
	m.mu.Lock()
	if m.probing {
		m.mu.Unlock()
		return
	}
	m.probing = true
	m.mu.Unlock()

	go func() {
		err := m.capture.Start()
		if err == nil {
			m.capture.Stop()
		}
		m.mu.Lock()
		m.granted = err == nil
		m.probing = false
		m.mu.Unlock()
		if err != nil {
			log.Warnf("capture probe failed: %v", err)
			m.post(micEvent{granted: false})
			return
		}
		m.post(micEvent{granted: true})
	}()
}

// liveSession couples a recognizer session with the capture device
// feeding it, plus the optional FLAC archive of the raw audio.
type liveSession struct {
	inner      recognizer.Session
	capture    audio.CaptureDevice
	enc        *encoder.FlacEncoder
	archiveDir string
	started    time.Time
	quit       chan struct{}

	frames   atomic.Uint64
	partials atomic.Int64
	finals   atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

func (s *liveSession) Feed(pcm []byte) { s.inner.Feed(pcm) }

func (s *liveSession) Updates() <-chan recognizer.Update { return s.inner.Updates() }

func (s *liveSession) Close() error {
	s.closeOnce.Do(func() {
		s.capture.Stop()
		s.capture.ClearCallback()
		close(s.quit)
		go beep.PlayEnd()
		s.closeErr = s.inner.Close()
		s.writeArchive()
		log.SessionMetrics(log.SessionStats{
			AudioS:   float64(s.frames.Load()) / float64(encoder.SampleRate),
			Partials: int(s.partials.Load()),
			Finals:   int(s.finals.Load()),
			TotalMs:  float64(time.Since(s.started).Milliseconds()),
		})
	})
	return s.closeErr
}

func (s *liveSession) writeArchive() {
	if s.enc == nil {
		return
	}
	if err := s.enc.Close(); err != nil {
		log.Warnf("flac close: %v", err)
		return
	}
	if s.enc.TotalFrames() == 0 {
		return
	}
	if err := os.MkdirAll(s.archiveDir, 0755); err != nil {
		log.Warnf("archive dir: %v", err)
		return
	}
	name := s.started.Format("20060102-150405") + ".flac"
	if err := os.WriteFile(filepath.Join(s.archiveDir, name), s.enc.Bytes(), 0644); err != nil {
		log.Warnf("archive write: %v", err)
		return
	}
	log.Info("archived " + name)
}

func watchSilence(gen uint64, quit <-chan struct{}, vp *vadProcessor, post func(loopEvent)) {
	mon := newSilenceMonitor()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			switch mon.Tick(vp.HasSpeechTick()) {
			case SilenceWarn:
				post(silenceWarnEvent{gen: gen, warn: true})
			case SilenceWarnClear:
				post(silenceWarnEvent{gen: gen, warn: false})
			case SilenceTimeout:
				post(silenceTimeoutEvent{gen: gen})
				return
			}
		}
	}
}

func rmsLevel(data []byte) float64 {
	if len(data) < 2 {
		return 0
	}
	var sumSquares float64
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(data[i:]))
		normalized := float64(sample) / 32768.0
		sumSquares += normalized * normalized
	}
	return math.Sqrt(sumSquares / float64(len(data)/2))
}

func run() {
	configFlag := flag.String("config", "", "Path to config file (YAML)")
	fakeFlag := flag.String("fake", "", "Replay a WAV file through a scripted recognizer (no mic, no model)")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	langFlag := flag.String("lang", "", "Language code for recognition (e.g., en-us, de)")
	stopOnFinalFlag := flag.Bool("stop-on-final", false, "End the session after the first finalized utterance")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("scribe %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *deviceFlag != "" {
		cfg.Capture.Device = *deviceFlag
	}
	if *langFlag != "" {
		cfg.Model.Language = *langFlag
	}
	if *stopOnFinalFlag {
		cfg.Recognition.StopOnFinal = true
	}
	if *logPathFlag != "" {
		cfg.Log.Path = *logPathFlag
	}

	logPath, err := log.ResolveDir(cfg.Log.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	var ctx audio.Context
	if *fakeFlag != "" {
		fc, err := audio.NewFakeContext(*fakeFlag, true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		ctx = fc
	} else {
		ctx, err = audio.NewContext()
		if err != nil {
			log.Errorf("audio context init error: %v", err)
			fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
			os.Exit(1)
		}
	}
	defer ctx.Close()

	var selectedDevice *audio.DeviceInfo
	if cfg.Capture.Device != "" {
		if devices, err := ctx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == cfg.Capture.Device {
					selectedDevice = &devices[i]
					break
				}
			}
		}
		if selectedDevice == nil {
			fmt.Fprintf(os.Stderr, "Warning: device %q not found, using system default\n", cfg.Capture.Device)
		}
	} else if *setupFlag {
		selectedDevice, err = audio.SelectDevice(ctx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
			selectedDevice = nil
		}
	}

	captureConfig := audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	}
	captureDevice, err := ctx.NewCapture(selectedDevice, captureConfig)
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing capture device: %v\n", err)
		os.Exit(1)
	}
	defer captureDevice.Close()

	events := make(chan loopEvent, 256)
	post := func(ev loopEvent) { events <- ev }

	states := state.NewContainer()
	stateCh, cancelStates := states.Subscribe()
	go func() {
		for s := range stateCh {
			log.StateTransition(s.Kind.String())
			sendToTUI(StateMsg{S: s})
		}
	}()

	tuiMu.Lock()
	tuiProgram = NewTUIProgram(func() { post(toggleEvent{}) })
	tuiMu.Unlock()
	go func() {
		if _, err := tuiProgram.Run(); err != nil {
			log.Errorf("TUI error: %v", err)
		}
		post(quitEvent{})
	}()

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		// The TUI space bar still works without the global hotkey.
		log.Warnf("hotkey register error: %v", err)
	} else {
		defer hk.Unregister()
		go func() {
			for range hk.Keydown() {
				post(toggleEvent{})
			}
		}()
		go func() {
			for range hk.Keyup() {
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		post(quitEvent{})
	}()

	if *fakeFlag != "" {
		beep.Disable()
	}
	go beep.Init()

	// One-time model preparation. The loop only touches the model after
	// the model event arrives.
	var model recognizer.Model
	engineName := "vosk-exec"
	go func() {
		if *fakeFlag != "" {
			model = recognizer.NewFakeModel()
			post(modelEvent{})
			return
		}
		start := time.Now()
		dataDir, err := modelstore.Dir(cfg.Model.DataDir)
		if err != nil {
			post(modelEvent{err: err})
			return
		}
		if cfg.Model.SourceDir != "" {
			unpacked, err := modelstore.Unpack(os.DirFS(cfg.Model.SourceDir), dataDir)
			log.ModelPrep(time.Since(start), unpacked, err)
			if err != nil {
				post(modelEvent{err: err})
				return
			}
		}
		m, err := recognizer.NewExecModel(cfg.Model.Command, dataDir, cfg.Model.Language, cfg.Model.SampleRate)
		if err != nil {
			post(modelEvent{err: err})
			return
		}
		model = m
		post(modelEvent{})
	}()
	if *fakeFlag != "" {
		engineName = "fake"
	}

	vp, err := newVADProcessor()
	if err != nil {
		log.Errorf("VAD init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing VAD: %v\n", err)
		os.Exit(1)
	}

	mic := &captureMic{capture: captureDevice, post: post}

	// gen tags session-scoped events so the loop can drop leftovers
	// from sessions it already tore down. Only the loop goroutine
	// touches it: openSession runs inside router calls, which all
	// happen on the loop.
	var gen uint64

	openSession := func() (recognizer.Session, error) {
		eng, err := model.NewEngine()
		if err != nil {
			return nil, err
		}
		inner := recognizer.NewSession(eng)

		var enc *encoder.FlacEncoder
		if cfg.Output.ArchiveDir != "" {
			e, err := encoder.NewFlac()
			if err != nil {
				log.Warnf("flac encoder init: %v", err)
			} else {
				enc = e
			}
		}

		ls := &liveSession{
			inner:      inner,
			capture:    captureDevice,
			enc:        enc,
			archiveDir: cfg.Output.ArchiveDir,
			started:    time.Now(),
			quit:       make(chan struct{}),
		}

		vp.Reset()
		captureDevice.SetCallback(func(data []byte, frameCount uint32) {
			if len(data) == 0 {
				return
			}
			pcm := make([]byte, len(data))
			copy(pcm, data)
			inner.Feed(pcm)
			ls.frames.Add(uint64(frameCount))
			vp.Process(data)
			sendToTUI(AudioLevelMsg{Level: rmsLevel(data)})
			if enc != nil {
				block := make([]int16, len(data)/2)
				for i := range block {
					block[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
				}
				if err := enc.EncodeBlock(block); err != nil {
					log.Warnf("flac encode: %v", err)
				}
			}
		})
		if err := captureDevice.Start(); err != nil {
			captureDevice.ClearCallback()
			inner.Close()
			return nil, err
		}

		gen++
		g := gen
		go func() {
			for u := range inner.Updates() {
				if u.Final {
					ls.finals.Add(1)
				} else {
					ls.partials.Add(1)
				}
				post(sessionUpdateEvent{gen: g, update: u})
			}
			post(sessionEndedEvent{gen: g})
		}()
		go watchSilence(g, ls.quit, vp, post)

		go beep.PlayStart()
		log.SessionStart(engineName, cfg.Model.Language)
		return ls, nil
	}

	router := NewRouter(RouterConfig{
		States:      states,
		Mic:         mic,
		OpenSession: openSession,
		Notify:      func(text string) { sendToTUI(NoticeMsg{Text: text}) },
		Throttle:    time.Duration(cfg.Recognition.PartialEveryMS) * time.Millisecond,
		StopOnFinal: cfg.Recognition.StopOnFinal,
	})

	sendToTUI(ModeLineMsg{Text: fmt.Sprintf("[%s | %s]", engineName, cfg.Model.Language)})
	sendToTUI(DeviceLineMsg{Text: deviceLineText(selectedDevice)})

	for ev := range events {
		switch ev := ev.(type) {
		case toggleEvent:
			router.Toggle()

		case modelEvent:
			if ev.err != nil {
				router.ModelFailed(ev.err)
			} else {
				router.ModelReady()
			}

		case micEvent:
			if ev.granted {
				router.MicGranted()
			} else {
				router.MicDenied()
			}

		case sessionUpdateEvent:
			if ev.gen != gen {
				continue
			}
			if ev.update.Final {
				router.HandleFinal(ev.update.Text)
				if cfg.Output.AutoCopy && router.Transcript() != "" {
					if err := clipboard.Copy(router.Transcript()); err != nil {
						log.Warnf("clipboard copy: %v", err)
					} else {
						sendToTUI(CopiedMsg{})
					}
				}
			} else {
				router.HandlePartial(ev.update.Text)
			}

		case sessionEndedEvent:
			if ev.gen != gen {
				continue
			}
			router.HandleSessionEnd()

		case silenceWarnEvent:
			if ev.gen != gen || !router.Recording() {
				continue
			}
			if ev.warn {
				log.Info("no_voice_warning")
				sendToTUI(NoticeMsg{Text: "no voice detected"})
				go beep.PlayError()
			} else {
				sendToTUI(NoticeMsg{Text: ""})
			}

		case silenceTimeoutEvent:
			if ev.gen != gen {
				continue
			}
			router.HandleTimeout()

		case quitEvent:
			router.Close()
			cancelStates()
			gracefulShutdown()
			return
		}
	}
}

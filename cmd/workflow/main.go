// Command workflow demonstrates a single shared-thread machine driving a
// multi-stage job pipeline: idle -> initializing -> loading -> validating
// -> processing -> saving -> cleanup, with a retry-then-escalate error
// path and a pausable processing stage.
package main

import (
	"fmt"
	"math/rand"
	"time"

	hsm "github.com/hsmlab/hsmgo"
	"github.com/hsmlab/hsmgo/internal/config"
)

// workflowConfig tunes the engine's retry budget and per-stage delays,
// replacing the original C demo's hard-coded constants.
type workflowConfig struct {
	MaxRetries       int           `env:"WORKFLOW_MAX_RETRIES" envDefault:"3"`
	InitDelay        time.Duration `env:"WORKFLOW_INIT_DELAY" envDefault:"1s"`
	LoadTimeout      time.Duration `env:"WORKFLOW_LOAD_TIMEOUT" envDefault:"3s"`
	LoadEarlySuccess time.Duration `env:"WORKFLOW_LOAD_EARLY_SUCCESS" envDefault:"1500ms"`
	ValidateDelay    time.Duration `env:"WORKFLOW_VALIDATE_DELAY" envDefault:"500ms"`
	ProcessingTick   time.Duration `env:"WORKFLOW_PROCESSING_TICK" envDefault:"500ms"`
	SaveDelay        time.Duration `env:"WORKFLOW_SAVE_DELAY" envDefault:"1s"`
	CleanupDelay     time.Duration `env:"WORKFLOW_CLEANUP_DELAY" envDefault:"500ms"`
}

const totalSteps = 6

var (
	maxRetries       = 3
	initDelay        = 1 * time.Second
	loadTimeout      = 3 * time.Second
	loadEarlySuccess = 1500 * time.Millisecond
	validateDelay    = 500 * time.Millisecond
	processingTick   = 500 * time.Millisecond
	saveDelay        = 1 * time.Second
	cleanupDelay     = 500 * time.Millisecond
)

func applyConfig(cfg *workflowConfig) {
	maxRetries = cfg.MaxRetries
	initDelay = cfg.InitDelay
	loadTimeout = cfg.LoadTimeout
	loadEarlySuccess = cfg.LoadEarlySuccess
	validateDelay = cfg.ValidateDelay
	processingTick = cfg.ProcessingTick
	saveDelay = cfg.SaveDelay
	cleanupDelay = cfg.CleanupDelay
}

type workflowContext struct {
	currentStep int
	retryCount  int
	paused      bool
	data        string
	startTime   time.Time

	// loadTimeoutID and loadSuccessID track loading's two simultaneous
	// timers: a hard timeout and an early-success chance. Whichever
	// TIMEOUT arrives first is told apart by its event Name; the ids are
	// kept so the other timer can be cancelled.
	loadTimeoutID int
	loadSuccessID int

	processingTimerID int
	progress          int
}

func idleHandler(ctx *workflowContext) hsm.Handler {
	return func(m *hsm.Machine, state string, ev hsm.Event, _ any) bool {
		switch ev.Kind {
		case hsm.Entry:
			fmt.Println("[workflow] idle")
			return true
		case hsm.Start:
			fmt.Println("[workflow] workflow_start received")
			ctx.startTime = time.Now()
			ctx.currentStep = 0
			ctx.retryCount = 0
			m.ChangeState("initializing")
			return true
		}
		return false
	}
}

func initializingHandler(ctx *workflowContext) hsm.Handler {
	return func(m *hsm.Machine, state string, ev hsm.Event, _ any) bool {
		switch ev.Kind {
		case hsm.Entry:
			ctx.currentStep = 1
			fmt.Printf("[workflow] step %d/%d: initializing\n", ctx.currentStep, totalSteps)
			if _, err := m.ScheduleTimer(initDelay, "init_done"); err != nil {
				fmt.Printf("[workflow] schedule timer failed: %v\n", err)
			}
			return true
		case hsm.Timeout:
			m.ChangeState("loading")
			return true
		}
		return false
	}
}

// loadingHandler arms two timers at once: a 3s hard timeout and, 70% of
// the time, a 1.5s early-success timer. Whichever fires first is
// identified by the TIMEOUT's Name: "load_early_success" cancels the
// hard timeout and moves on to validating; "load_timeout" cancels the
// success timer and either re-arms both timers for another attempt or
// escalates to error.
func loadingHandler(ctx *workflowContext) hsm.Handler {
	return func(m *hsm.Machine, state string, ev hsm.Event, _ any) bool {
		switch ev.Kind {
		case hsm.Entry:
			ctx.currentStep = 2
			fmt.Printf("[workflow] step %d/%d: loading (attempt %d)\n", ctx.currentStep, totalSteps, ctx.retryCount+1)
			id, err := m.ScheduleTimer(loadTimeout, "load_timeout")
			if err != nil {
				fmt.Printf("[workflow] schedule timer failed: %v\n", err)
			}
			ctx.loadTimeoutID = id
			ctx.loadSuccessID = 0
			if simulatedEarlySuccess() {
				sid, err := m.ScheduleTimer(loadEarlySuccess, "load_early_success")
				if err != nil {
					fmt.Printf("[workflow] schedule timer failed: %v\n", err)
				}
				ctx.loadSuccessID = sid
			}
			return true

		case hsm.Timeout:
			switch ev.Name {
			case "load_early_success":
				fmt.Println("[workflow] load completed early")
				if ctx.loadTimeoutID != 0 {
					_ = m.CancelTimer(ctx.loadTimeoutID)
					ctx.loadTimeoutID = 0
				}
				ctx.loadSuccessID = 0
				ctx.data = "loaded-payload"
				m.ChangeState("validating")
				return true
			case "load_timeout":
				if ctx.loadSuccessID != 0 {
					_ = m.CancelTimer(ctx.loadSuccessID)
					ctx.loadSuccessID = 0
				}
				ctx.retryCount++
				if ctx.retryCount < maxRetries {
					fmt.Printf("[workflow] load timed out, retrying (%d/%d)\n", ctx.retryCount, maxRetries)
					// loading -> loading is a no-op transition with no new
					// ENTRY, so the next attempt's timers are armed here.
					fmt.Printf("[workflow] step %d/%d: loading (attempt %d)\n", ctx.currentStep, totalSteps, ctx.retryCount+1)
					ctx.loadTimeoutID, _ = m.ScheduleTimer(loadTimeout, "load_timeout")
					if simulatedEarlySuccess() {
						ctx.loadSuccessID, _ = m.ScheduleTimer(loadEarlySuccess, "load_early_success")
					}
				} else {
					fmt.Println("[workflow] load failed after max retries")
					m.ChangeState("error")
				}
				return true
			}
		}
		return false
	}
}

func validatingHandler(ctx *workflowContext) hsm.Handler {
	return func(m *hsm.Machine, state string, ev hsm.Event, _ any) bool {
		switch ev.Kind {
		case hsm.Entry:
			ctx.currentStep = 3
			fmt.Printf("[workflow] step %d/%d: validating\n", ctx.currentStep, totalSteps)
			if _, err := m.ScheduleTimer(validateDelay, "validate_done"); err != nil {
				fmt.Printf("[workflow] schedule timer failed: %v\n", err)
			}
			return true
		case hsm.Timeout:
			if ctx.data == "" {
				fmt.Println("[workflow] validation failed: no data")
				m.ChangeState("error")
				return true
			}
			ctx.progress = 0
			m.ChangeState("processing")
			return true
		}
		return false
	}
}

// processingHandler advances progress 25% per 500ms tick. STEP events
// carrying the literal string "pause"/"resume" in Data cancel or
// reschedule the progress timer and toggle ctx.paused.
func processingHandler(ctx *workflowContext) hsm.Handler {
	return func(m *hsm.Machine, state string, ev hsm.Event, _ any) bool {
		switch ev.Kind {
		case hsm.Entry:
			ctx.currentStep = 4
			fmt.Printf("[workflow] step %d/%d: processing\n", ctx.currentStep, totalSteps)
			ctx.paused = false
			id, err := m.ScheduleTimer(processingTick, "progress_tick")
			if err != nil {
				fmt.Printf("[workflow] schedule timer failed: %v\n", err)
			}
			ctx.processingTimerID = id
			return true

		case hsm.Step:
			switch ev.Data {
			case "pause":
				if !ctx.paused {
					fmt.Println("[workflow] processing paused")
					ctx.paused = true
					if ctx.processingTimerID != 0 {
						_ = m.CancelTimer(ctx.processingTimerID)
						ctx.processingTimerID = 0
					}
				}
				return true
			case "resume":
				if ctx.paused {
					fmt.Println("[workflow] processing resumed")
					ctx.paused = false
					id, _ := m.ScheduleTimer(processingTick, "progress_tick")
					ctx.processingTimerID = id
				}
				return true
			}
			return false

		case hsm.Timeout:
			if ctx.paused {
				return true
			}
			ctx.progress += 25
			fmt.Printf("[workflow] processing progress: %d%%\n", ctx.progress)
			if ctx.progress >= 100 {
				m.ChangeState("saving")
				return true
			}
			id, _ := m.ScheduleTimer(processingTick, "progress_tick")
			ctx.processingTimerID = id
			return true
		}
		return false
	}
}

func savingHandler(ctx *workflowContext) hsm.Handler {
	return func(m *hsm.Machine, state string, ev hsm.Event, _ any) bool {
		switch ev.Kind {
		case hsm.Entry:
			ctx.currentStep = 5
			fmt.Printf("[workflow] step %d/%d: saving\n", ctx.currentStep, totalSteps)
			if _, err := m.ScheduleTimer(saveDelay, "save_done"); err != nil {
				fmt.Printf("[workflow] schedule timer failed: %v\n", err)
			}
			return true
		case hsm.Timeout:
			m.ChangeState("cleanup")
			return true
		}
		return false
	}
}

func cleanupHandler(ctx *workflowContext) hsm.Handler {
	return func(m *hsm.Machine, state string, ev hsm.Event, _ any) bool {
		switch ev.Kind {
		case hsm.Entry:
			ctx.currentStep = 6
			fmt.Printf("[workflow] step %d/%d: cleanup\n", ctx.currentStep, totalSteps)
			if _, err := m.ScheduleTimer(cleanupDelay, "cleanup_done"); err != nil {
				fmt.Printf("[workflow] schedule timer failed: %v\n", err)
			}
			return true
		case hsm.Timeout:
			fmt.Printf("[workflow] complete, elapsed %s\n", time.Since(ctx.startTime).Round(time.Millisecond))
			m.Stop()
			return true
		}
		return false
	}
}

func errorHandler(ctx *workflowContext) hsm.Handler {
	return func(m *hsm.Machine, state string, ev hsm.Event, _ any) bool {
		switch ev.Kind {
		case hsm.Entry:
			fmt.Printf("[workflow] ERROR at step %d/%d after %d retries\n", ctx.currentStep, totalSteps, ctx.retryCount)
			if _, err := m.ScheduleTimer(initDelay, "error_settle"); err != nil {
				fmt.Printf("[workflow] schedule timer failed: %v\n", err)
			}
			return true
		case hsm.Timeout:
			m.ChangeState("cleanup")
			return true
		}
		return false
	}
}

// simulatedEarlySuccess models the original's 70% early-success chance
// for the loading stage's second timer.
func simulatedEarlySuccess() bool {
	return rand.Intn(10) < 7
}

func main() {
	fmt.Println("HSM job workflow demo")

	applyConfig(config.MustLoad[workflowConfig]())

	ctx := &workflowContext{}
	m := hsm.NewMachine("workflow")
	_ = m.Register("idle", idleHandler(ctx), nil)
	_ = m.Register("initializing", initializingHandler(ctx), nil)
	_ = m.Register("loading", loadingHandler(ctx), nil)
	_ = m.Register("validating", validatingHandler(ctx), nil)
	_ = m.Register("processing", processingHandler(ctx), nil)
	_ = m.Register("saving", savingHandler(ctx), nil)
	_ = m.Register("cleanup", cleanupHandler(ctx), nil)
	_ = m.Register("error", errorHandler(ctx), nil)

	m.ChangeState("idle")
	m.Post(hsm.NewEvent(hsm.Start, "workflow_start", nil, "main", 0))

	m.Run() // blocks until cleanup calls m.Stop()
}

// Command crossflow demonstrates a main scheduler machine driving two
// independent module machines (A and B) through a fixed cross-module
// business flow, each module running on its own owned-thread context
// while the scheduler runs on the calling goroutine.
//
// Flow: A1 -> A2 -> B1 -> B2 -> B3 -> B4 -> A3 -> A4 -> B5 -> A5
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/cloudevents/sdk-go/v2/protocol"

	hsm "github.com/hsmlab/hsmgo"
	"github.com/hsmlab/hsmgo/internal/bridge"
	"github.com/hsmlab/hsmgo/internal/config"
	"github.com/hsmlab/hsmgo/internal/consoleui"
)

// flowConfig tunes the demo's step delay, replacing the original C demo's
// hard-coded 500ms simulated-work constant.
type flowConfig struct {
	StepDelay time.Duration `env:"FLOW_STEP_DELAY" envDefault:"500ms"`
}

// stdoutSender is a bridge.Sender that prints each CloudEvent instead of
// delivering it over a transport, standing in for a real broker client in
// this demo.
type stdoutSender struct{}

func (stdoutSender) Send(_ context.Context, event cloudevents.Event) protocol.Result {
	fmt.Printf("[cloudevents] %s source=%s id=%s\n", event.Type(), event.Source(), event.ID())
	return protocol.ResultACK
}

var (
	aStates = []string{"A1", "A2", "A3", "A4", "A5"}
	bStates = []string{"B1", "B2", "B3", "B4", "B5"}
)

type flowStep int

const (
	flowA1 flowStep = iota
	flowA2
	flowB1
	flowB2
	flowB3
	flowB4
	flowA3
	flowA4
	flowB5
	flowA5
	flowDone
)

type moduleCtx struct {
	name      string
	stepDelay time.Duration
}

// moduleHandler models one step in a module's linear A1..A5/B1..B5 flow:
// on ENTRY it announces readiness to the parent scheduler for the first
// state only, on START it arms a 500ms timer simulating work, and on
// TIMEOUT it reports completion upstream as a RESULT_OK.
func moduleHandler(ctx *moduleCtx) hsm.Handler {
	return func(m *hsm.Machine, state string, ev hsm.Event, _ any) bool {
		switch ev.Kind {
		case hsm.Entry:
			consoleui.StateLine(os.Stdout, ctx.name, "entry", state)
			if state == "A1" || state == "B1" {
				if parent := m.Parent(); parent != nil {
					parent.Post(hsm.NewEvent(hsm.Step, "module_ready", nil, ctx.name, 0))
					fmt.Printf("[%s] ready, notified scheduler\n", ctx.name)
				}
			}
			return true
		case hsm.Start:
			fmt.Printf("[%s] starting: %s\n", ctx.name, state)
			if _, err := m.ScheduleTimer(ctx.stepDelay, state); err != nil {
				fmt.Printf("[%s] schedule timer failed: %v\n", ctx.name, err)
			}
			return true
		case hsm.Timeout:
			fmt.Printf("[%s] done: %s\n", ctx.name, state)
			if parent := m.Parent(); parent != nil {
				parent.Post(hsm.NewEvent(hsm.ResultOK, state, nil, ctx.name, 0))
			}
			return true
		}
		return false
	}
}

type flowCtx struct {
	step   flowStep
	modA   *hsm.Machine
	modB   *hsm.Machine
	aReady bool
	bReady bool
}

// flowHandler is the scheduler's single "flow" state: it waits for both
// modules to report readiness, then drives the fixed A/B step sequence by
// reacting to each module's RESULT_OK.
func flowHandler(flow *flowCtx) hsm.Handler {
	return func(m *hsm.Machine, state string, ev hsm.Event, _ any) bool {
		switch ev.Kind {
		case hsm.Entry:
			fmt.Println("\n[scheduler] entering flow state, waiting for modules to become ready...")
			return true

		case hsm.Step:
			if ev.Name != "module_ready" {
				return false
			}
			switch ev.Source {
			case "A":
				flow.aReady = true
				fmt.Println("[scheduler] module A ready")
			case "B":
				flow.bReady = true
				fmt.Println("[scheduler] module B ready")
			}
			if flow.aReady && flow.bReady {
				fmt.Println("[scheduler] all modules ready, starting flow")
				fmt.Println("[scheduler] starting A1")
				flow.modA.Post(hsm.NewEvent(hsm.Start, "A1", nil, "flow", 0))
			}
			return true

		case hsm.ResultOK:
			done := ev.Name
			fmt.Printf("[scheduler] received completion: %s\n", done)
			flow.step++
			advance(flow, m)
			return true
		}
		return false
	}
}

func advance(flow *flowCtx, scheduler *hsm.Machine) {
	start := func(mod *hsm.Machine, state string) {
		fmt.Printf("[scheduler] starting %s\n", state)
		mod.ChangeState(state)
		mod.Post(hsm.NewEvent(hsm.Start, state, nil, "flow", 0))
	}
	switch flow.step {
	case flowA2:
		start(flow.modA, "A2")
	case flowB1:
		start(flow.modB, "B1")
	case flowB2:
		start(flow.modB, "B2")
	case flowB3:
		start(flow.modB, "B3")
	case flowB4:
		start(flow.modB, "B4")
	case flowA3:
		start(flow.modA, "A3")
	case flowA4:
		start(flow.modA, "A4")
	case flowB5:
		start(flow.modB, "B5")
	case flowA5:
		start(flow.modA, "A5")
	case flowDone:
		fmt.Println("[scheduler] business flow complete")
		scheduler.Stop()
	}
}

func main() {
	fmt.Println("cross-module business flow demo")

	cfg := config.MustLoad[flowConfig]()

	aCtx := &moduleCtx{name: "A", stepDelay: cfg.StepDelay}
	bCtx := &moduleCtx{name: "B", stepDelay: cfg.StepDelay}

	publisher := bridge.NewPublisher(stdoutSender{}, "hsm.crossflow", 32, nil)
	defer publisher.Close()

	modA := hsm.NewMachine("modA")
	modB := hsm.NewMachine("modB")
	for _, s := range aStates {
		_ = modA.Register(s, moduleHandler(aCtx), nil)
	}
	for _, s := range bStates {
		_ = modB.Register(s, moduleHandler(bCtx), nil)
	}

	flow := &flowCtx{step: flowA1, modA: modA, modB: modB}
	scheduler := hsm.NewMachine("scheduler", hsm.WithPublisher(publisher))
	_ = scheduler.Register("flow", flowHandler(flow), nil)

	// Parent must be set before either module starts transitioning, since
	// A1/B1's ENTRY handler posts "module_ready" to Parent() immediately.
	modA.SetParent(scheduler)
	modB.SetParent(scheduler)

	modA.Start()
	modB.Start()
	modA.ChangeState("A1")
	modB.ChangeState("B1")

	scheduler.ChangeState("flow")
	scheduler.Run() // blocks on the calling goroutine until Stop
}

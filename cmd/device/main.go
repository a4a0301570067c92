// Command device demonstrates IoT-style device connection management: one
// machine per device (disconnected/connecting/connected/reconnecting/error),
// each reporting status to a shared controller machine that aggregates a
// live fleet table. Automatic reconnect-with-retry-limit and heartbeat
// detection are driven entirely by each device's own timer service.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	hsm "github.com/hsmlab/hsmgo"
	"github.com/hsmlab/hsmgo/internal/config"
	"github.com/hsmlab/hsmgo/internal/consoleui"
	"github.com/hsmlab/hsmgo/internal/extensibility"
)

// deviceConfig tunes connection/retry/heartbeat timing, replacing the
// original C demo's hard-coded #define constants.
type deviceConfig struct {
	MaxRetries          int           `env:"DEVICE_MAX_RETRIES" envDefault:"5"`
	HeartbeatInterval   time.Duration `env:"DEVICE_HEARTBEAT_INTERVAL" envDefault:"3s"`
	ConnectDelay        time.Duration `env:"DEVICE_CONNECT_DELAY" envDefault:"2s"`
	ReconnectDelay      time.Duration `env:"DEVICE_RECONNECT_DELAY" envDefault:"1s"`
	HeartbeatFailStreak int           `env:"DEVICE_HEARTBEAT_FAIL_STREAK" envDefault:"3"`
}

var (
	maxRetries          = 5
	heartbeatInterval   = 3 * time.Second
	connectDelay        = 2 * time.Second
	reconnectDelay      = 1 * time.Second
	heartbeatFailStreak = 3
)

// applyConfig overrides the package-level tunables from cfg. Kept as
// package vars rather than threading cfg through every handler closure,
// since every device instance in this demo shares one configuration.
func applyConfig(cfg *deviceConfig) {
	maxRetries = cfg.MaxRetries
	heartbeatInterval = cfg.HeartbeatInterval
	connectDelay = cfg.ConnectDelay
	reconnectDelay = cfg.ReconnectDelay
	heartbeatFailStreak = cfg.HeartbeatFailStreak
}

type deviceContext struct {
	id      string
	address string

	status           string
	retryCount       int
	heartbeatTimerID int
	heartbeatMisses  int
	connectedAt      time.Time
	lastHeartbeat    time.Time
}

func newDeviceContext(id, address string) *deviceContext {
	return &deviceContext{id: id, address: address, status: "disconnected"}
}

func disconnectedHandler(ctx *deviceContext) hsm.Handler {
	return func(m *hsm.Machine, state string, ev hsm.Event, _ any) bool {
		switch ev.Kind {
		case hsm.Entry:
			ctx.status = "disconnected"
			consoleui.StateLine(os.Stdout, ctx.id, "entry", ctx.status)
			if ctx.heartbeatTimerID != 0 {
				_ = m.CancelTimer(ctx.heartbeatTimerID)
				ctx.heartbeatTimerID = 0
			}
			reportStatus(m, ctx)
			return true
		case hsm.Start:
			fmt.Printf("[%s] connect request received\n", ctx.id)
			ctx.retryCount = 0
			m.ChangeState("connecting")
			return true
		}
		return false
	}
}

func connectingHandler(ctx *deviceContext) hsm.Handler {
	return func(m *hsm.Machine, state string, ev hsm.Event, _ any) bool {
		switch ev.Kind {
		case hsm.Entry:
			ctx.status = "connecting"
			fmt.Printf("[%s] connecting to %s...\n", ctx.id, ctx.address)
			if _, err := m.ScheduleTimer(connectDelay, "CONNECT_RESULT"); err != nil {
				fmt.Printf("[%s] schedule timer failed: %v\n", ctx.id, err)
			}
			return true
		case hsm.Timeout:
			if rand.Intn(10) < 8 {
				fmt.Printf("[%s] connected\n", ctx.id)
				ctx.connectedAt = time.Now()
				m.ChangeState("connected")
			} else {
				fmt.Printf("[%s] connection failed\n", ctx.id)
				if ctx.retryCount < maxRetries {
					ctx.retryCount++
					fmt.Printf("[%s] retry %d/%d\n", ctx.id, ctx.retryCount, maxRetries)
					m.ChangeState("reconnecting")
				} else {
					fmt.Printf("[%s] max retries reached\n", ctx.id)
					m.ChangeState("error")
				}
			}
			return true
		case hsm.Cancel:
			fmt.Printf("[%s] connection cancelled\n", ctx.id)
			m.ChangeState("disconnected")
			return true
		}
		return false
	}
}

func connectedHandler(ctx *deviceContext) hsm.Handler {
	return func(m *hsm.Machine, state string, ev hsm.Event, _ any) bool {
		switch ev.Kind {
		case hsm.Entry:
			ctx.status = "connected"
			fmt.Printf("[%s] connected, starting heartbeat (interval %s)\n", ctx.id, heartbeatInterval)
			ctx.retryCount = 0
			ctx.heartbeatMisses = 0
			ctx.lastHeartbeat = time.Now()
			id, err := m.ScheduleTimer(heartbeatInterval, "HEARTBEAT")
			if err != nil {
				fmt.Printf("[%s] schedule heartbeat failed: %v\n", ctx.id, err)
			}
			ctx.heartbeatTimerID = id
			reportStatus(m, ctx)
			return true
		case hsm.Timeout:
			if rand.Intn(10) < 9 {
				fmt.Printf("[%s] heartbeat ok (uptime %s)\n", ctx.id, time.Since(ctx.connectedAt).Round(time.Second))
				ctx.lastHeartbeat = time.Now()
				ctx.heartbeatMisses = 0
				id, _ := m.ScheduleTimer(heartbeatInterval, "HEARTBEAT")
				ctx.heartbeatTimerID = id
			} else {
				ctx.heartbeatMisses++
				fmt.Printf("[%s] heartbeat missed (%d)\n", ctx.id, ctx.heartbeatMisses)
				if ctx.heartbeatMisses >= heartbeatFailStreak {
					fmt.Printf("[%s] connection lost, reconnecting...\n", ctx.id)
					m.ChangeState("reconnecting")
				} else {
					id, _ := m.ScheduleTimer(heartbeatInterval, "HEARTBEAT")
					ctx.heartbeatTimerID = id
				}
			}
			return true
		case hsm.Cancel:
			fmt.Printf("[%s] disconnect requested\n", ctx.id)
			m.ChangeState("disconnected")
			return true
		case hsm.Exit:
			if ctx.heartbeatTimerID != 0 {
				_ = m.CancelTimer(ctx.heartbeatTimerID)
				ctx.heartbeatTimerID = 0
			}
			return true
		}
		return false
	}
}

func reconnectingHandler(ctx *deviceContext) hsm.Handler {
	return func(m *hsm.Machine, state string, ev hsm.Event, _ any) bool {
		switch ev.Kind {
		case hsm.Entry:
			ctx.status = "reconnecting"
			fmt.Printf("[%s] reconnecting (attempt %d/%d)\n", ctx.id, ctx.retryCount, maxRetries)
			if _, err := m.ScheduleTimer(reconnectDelay, "RECONNECT"); err != nil {
				fmt.Printf("[%s] schedule timer failed: %v\n", ctx.id, err)
			}
			reportStatus(m, ctx)
			return true
		case hsm.Timeout:
			m.ChangeState("connecting")
			return true
		case hsm.Cancel:
			fmt.Printf("[%s] reconnect cancelled\n", ctx.id)
			m.ChangeState("disconnected")
			return true
		}
		return false
	}
}

func errorHandler(ctx *deviceContext) hsm.Handler {
	return func(m *hsm.Machine, state string, ev hsm.Event, _ any) bool {
		switch ev.Kind {
		case hsm.Entry:
			ctx.status = "error"
			fmt.Printf("[%s] entered error state after repeated failures\n", ctx.id)
			reportStatus(m, ctx)
			return true
		case hsm.Start:
			fmt.Printf("[%s] restarting from error state\n", ctx.id)
			ctx.retryCount = 0
			m.ChangeState("connecting")
			return true
		}
		return false
	}
}

// reportStatus posts a STEP "device_status" event carrying ctx to the
// device's parent. ctx is shared by handle, not copied — the controller
// must treat its fields as a snapshot valid only for the duration of its
// own handler call.
func reportStatus(m *hsm.Machine, ctx *deviceContext) {
	if parent := m.Parent(); parent != nil {
		parent.Post(hsm.NewEvent(hsm.Step, "device_status", ctx, ctx.id, 0))
	}
}

type controllerState struct {
	mu    sync.Mutex
	fleet map[string]consoleui.FleetRow
}

func controllerHandler(state *controllerState) hsm.Handler {
	return func(m *hsm.Machine, s string, ev hsm.Event, _ any) bool {
		switch ev.Kind {
		case hsm.Entry:
			fmt.Println("\ndevice management controller started")
			return true
		case hsm.Step:
			switch ev.Name {
			case "device_status":
				ctx, ok := ev.Data.(*deviceContext)
				if !ok {
					return true
				}
				state.mu.Lock()
				state.fleet[ctx.id] = consoleui.FleetRow{
					Name:    ctx.id,
					State:   ctx.status,
					Healthy: ctx.status == "connected",
					Detail:  ctx.address,
				}
				rows := make([]consoleui.FleetRow, 0, len(state.fleet))
				for _, r := range state.fleet {
					rows = append(rows, r)
				}
				state.mu.Unlock()
				fmt.Printf("\ndevice %s status update: %s\n", ctx.id, ctx.status)
				consoleui.RenderFleet(os.Stdout, rows)
				return true
			case "network_probe":
				fmt.Println("[controller] network probe: link up")
				return true
			}
			return false
		case hsm.ResultError:
			fmt.Printf("\ndevice %s reported an error\n", ev.Source)
			return true
		}
		return false
	}
}

type schedulerState struct {
	controller *hsm.Machine
	devices    []*hsm.Machine
	step       int
}

// schedulerHandler staggers connect requests to each device 500ms apart,
// then stops the controller after a fixed demo window.
func schedulerHandler(sched *schedulerState) hsm.Handler {
	return func(m *hsm.Machine, state string, ev hsm.Event, _ any) bool {
		switch ev.Kind {
		case hsm.Entry:
			sched.step = 0
			fmt.Println("\nscheduler starting, staging device connect requests...")
			_, _ = m.ScheduleTimer(500*time.Millisecond, "NEXT")
			return true
		case hsm.Timeout:
			sched.step++
			if sched.step <= len(sched.devices) {
				dev := sched.devices[sched.step-1]
				fmt.Printf("dispatching connect request to %s\n", dev.Name())
				dev.Post(hsm.NewEvent(hsm.Start, "connect", nil, "main", 0))
				if sched.step < len(sched.devices) {
					_, _ = m.ScheduleTimer(500*time.Millisecond, "NEXT")
				} else {
					_, _ = m.ScheduleTimer(14500*time.Millisecond, "SHUTDOWN")
				}
			} else {
				fmt.Println("demo window elapsed, stopping controller")
				sched.controller.Stop()
			}
			return true
		}
		return false
	}
}

func main() {
	fmt.Println("HSM device connection management demo (runs ~15s)")

	applyConfig(config.MustLoad[deviceConfig]())

	controller := hsm.NewMachine("controller")
	cstate := &controllerState{fleet: make(map[string]consoleui.FleetRow)}
	_ = controller.Register("monitoring", controllerHandler(cstate), nil)
	controller.ChangeState("monitoring")

	deviceSpecs := []struct{ id, addr string }{
		{"Device-001", "192.168.1.101:8080"},
		{"Device-002", "192.168.1.102:8080"},
		{"Device-003", "192.168.1.103:8080"},
	}

	devices := make([]*hsm.Machine, 0, len(deviceSpecs))
	for _, spec := range deviceSpecs {
		ctx := newDeviceContext(spec.id, spec.addr)
		dev := hsm.NewMachine(spec.id)
		dev.SetParent(controller)
		_ = dev.Register("disconnected", disconnectedHandler(ctx), nil)
		_ = dev.Register("connecting", connectingHandler(ctx), nil)
		_ = dev.Register("connected", connectedHandler(ctx), nil)
		_ = dev.Register("reconnecting", reconnectingHandler(ctx), nil)
		_ = dev.Register("error", errorHandler(ctx), nil)
		dev.ChangeState("disconnected")
		dev.Start()
		devices = append(devices, dev)
	}

	controller.Start()

	// Simulated external network monitor, independent of any device's own
	// timer service: a periodic probe fed into the controller via the
	// extensibility package's Pump/TickerSource, exercising a source of
	// events that originates outside any machine's own context.
	probe := extensibility.NewTickerSource(hsm.Step, "network_probe", nil, "network-monitor", 4*time.Second)
	go extensibility.Pump(probe, controller)
	defer probe.Stop()

	sched := &schedulerState{controller: controller, devices: devices}
	scheduler := hsm.NewMachine("scheduler")
	_ = scheduler.Register("running", schedulerHandler(sched), nil)
	scheduler.ChangeState("running")
	scheduler.Start()

	controller.Wait()
	fmt.Println("\ndemo complete")

	for _, dev := range devices {
		dev.Stop()
	}
	scheduler.Stop()
}

package osc

import (
	"context"
	"fmt"
	"strings"
	"sync"

	goosc "github.com/hypebeast/go-osc/osc"

	"github.com/shogun-tools/osc-bridge/internal/infrastructure/config"
	"github.com/shogun-tools/osc-bridge/internal/notify"
	"github.com/shogun-tools/osc-bridge/internal/shogun"
)

// CaptureController is what the dispatcher needs from the session
// supervisor. Satisfied by *shogun.Worker.
type CaptureController interface {
	Connected() bool
	StartCapture(ctx context.Context) (shogun.CaptureOutcome, error)
	StopCapture(ctx context.Context) error
	SetCaptureName(ctx context.Context, name string) error
	SetCaptureFolder(ctx context.Context, folder string) error
	SetCaptureDescription(ctx context.Context, description string) error
}

type handler func(ctx context.Context, args []interface{})

// Dispatcher routes decoded OSC messages to capture operations. Every
// received message is published as a command event. Device calls run on
// their own goroutines so the receive loop stays responsive while the
// supervisor is busy, reconnecting included.
type Dispatcher struct {
	controller CaptureController
	notifier   *notify.Notifier
	logger     Logger
	routes     map[string]handler
	wg         sync.WaitGroup
}

// NewDispatcher builds the address table from the configured address
// map. Empty address strings leave the operation unrouted.
func NewDispatcher(addrs config.AddressesConfig, controller CaptureController, notifier *notify.Notifier) *Dispatcher {
	d := &Dispatcher{
		controller: controller,
		notifier:   notifier,
		logger:     noopLogger{},
		routes:     make(map[string]handler),
	}
	route := func(addr string, h handler) {
		if addr != "" {
			d.routes[addr] = h
		}
	}
	route(addrs.StartRecording, d.handleStart)
	route(addrs.StopRecording, d.handleStop)
	route(addrs.SetCaptureName, d.handleSetName)
	route(addrs.SetCaptureFolder, d.handleSetFolder)
	route(addrs.SetCaptureDescription, d.handleSetDescription)
	return d
}

// SetLogger replaces the dispatcher's logger. Call before use.
func (d *Dispatcher) SetLogger(l Logger) {
	if l != nil {
		d.logger = l
	}
}

// Handle processes one decoded message.
func (d *Dispatcher) Handle(ctx context.Context, msg *goosc.Message) {
	h, ok := d.routes[msg.Address]
	if !ok {
		args := joinArgs(msg.Arguments)
		if args == "" {
			args = "no arguments"
		}
		d.logger.Debug("unhandled osc message", "address", msg.Address, "args", args)
		d.notifier.Publish(notify.KindCommand, msg.Address+" "+args)
		return
	}
	d.notifier.Publish(notify.KindCommand,
		strings.TrimSpace(msg.Address+" "+joinArgs(msg.Arguments)))
	h(ctx, msg.Arguments)
}

// Wait blocks until all in-flight operations have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) handleStart(ctx context.Context, _ []interface{}) {
	d.logger.Info("osc command received", "command", "start recording")
	if !d.ready("cannot start recording") {
		return
	}
	d.spawn(func() {
		if _, err := d.controller.StartCapture(ctx); err != nil {
			d.logger.Error("start recording failed", "error", err)
		}
	})
}

func (d *Dispatcher) handleStop(ctx context.Context, _ []interface{}) {
	d.logger.Info("osc command received", "command", "stop recording")
	if !d.ready("cannot stop recording") {
		return
	}
	d.spawn(func() {
		if err := d.controller.StopCapture(ctx); err != nil {
			d.logger.Error("stop recording failed", "error", err)
		}
	})
}

func (d *Dispatcher) handleSetName(ctx context.Context, args []interface{}) {
	name, ok := firstString(args)
	if !ok {
		d.reject("set capture name requires a name argument")
		return
	}
	d.logger.Info("osc command received", "command", "set capture name", "name", name)
	if !d.ready("cannot set capture name") {
		return
	}
	d.spawn(func() {
		if err := d.controller.SetCaptureName(ctx, name); err != nil {
			d.logger.Error("set capture name failed", "error", err)
		}
	})
}

func (d *Dispatcher) handleSetFolder(ctx context.Context, args []interface{}) {
	folder, ok := firstString(args)
	if !ok {
		d.reject("set capture folder requires a folder argument")
		return
	}
	d.logger.Info("osc command received", "command", "set capture folder", "folder", folder)
	if !d.ready("cannot set capture folder") {
		return
	}
	d.spawn(func() {
		if err := d.controller.SetCaptureFolder(ctx, folder); err != nil {
			d.logger.Error("set capture folder failed", "error", err)
		}
	})
}

func (d *Dispatcher) handleSetDescription(ctx context.Context, args []interface{}) {
	description, ok := firstString(args)
	if !ok {
		d.reject("set capture description requires a description argument")
		return
	}
	d.logger.Info("osc command received", "command", "set capture description")
	if !d.ready("cannot set capture description") {
		return
	}
	d.spawn(func() {
		if err := d.controller.SetCaptureDescription(ctx, description); err != nil {
			d.logger.Error("set capture description failed", "error", err)
		}
	})
}

// ready gates operations on an established session. The supervisor
// keeps reconnecting in the background; commands received meanwhile
// are answered with an error event instead of queueing.
func (d *Dispatcher) ready(prefix string) bool {
	if d.controller.Connected() {
		return true
	}
	d.reject(prefix + ": no connection to Shogun Live")
	return false
}

func (d *Dispatcher) reject(msg string) {
	d.logger.Warn(msg)
	d.notifier.Publish(notify.KindError, msg)
}

func (d *Dispatcher) spawn(op func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		op()
	}()
}

// firstString extracts the first argument as text. Controllers send
// numeric take names, so non-string values are stringified rather
// than rejected; only an absent argument is an error.
func firstString(args []interface{}) (string, bool) {
	if len(args) == 0 || args[0] == nil {
		return "", false
	}
	if s, ok := args[0].(string); ok {
		return s, true
	}
	return fmt.Sprintf("%v", args[0]), true
}

func joinArgs(args []interface{}) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, fmt.Sprintf("%v", a))
	}
	return strings.Join(parts, ", ")
}

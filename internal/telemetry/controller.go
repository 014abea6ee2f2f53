package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/bt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/events"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/ftms"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/gatt"
)

var ErrControlRejected = errors.New("trainer rejected command")

var (
	ftmsControlPoint = gatt.Characteristic{Service: gatt.ServiceUUIDFTMS, UUID: gatt.CharUUIDFTMSControlPoint}
	ftmsPowerRange   = gatt.Characteristic{Service: gatt.ServiceUUIDFTMS, UUID: gatt.CharUUIDSupportedPowerRange}
)

// Controller sends FTMS control point commands to one trainer and tracks whether we
// hold control.
type Controller struct {
	logger *log.Logger
	device bt.Device

	mu         sync.RWMutex
	hasControl bool
	powerRange *ftms.SupportedPowerRange

	responses *events.ChannelEvent[*ftms.ControlPointResponse]
}

func NewController(logger *log.Logger, device bt.Device) *Controller {
	if logger == nil {
		panic("Controller: logger cannot be nil")
	}
	if device == nil {
		panic("Controller: device cannot be nil")
	}
	return &Controller{
		logger:    logger,
		device:    device,
		responses: events.NewChannelEvent[*ftms.ControlPointResponse](false),
	}
}

// Start subscribes to control point responses, reads the supported power range and
// requests control. Start/Resume is sent too since some trainers ignore targets
// until started; its failure is only logged.
func (c *Controller) Start(ctx context.Context) error {
	if !c.device.HasService(gatt.ServiceUUIDFTMS) {
		return fmt.Errorf("%s does not offer FTMS", c.device.Address())
	}
	if err := c.device.EnableNotifications(ftmsControlPoint, c.handleResponse); err != nil {
		return fmt.Errorf("failed to enable control point responses: %w", err)
	}

	if buf, err := c.device.Read(ftmsPowerRange); err != nil {
		c.logger.Printf("Controller: no power range: %v", err)
	} else if rng := ftms.DecodeSupportedPowerRange(buf); rng != nil && rng.HasRange {
		c.mu.Lock()
		c.powerRange = rng
		c.mu.Unlock()
		c.logger.Printf("Controller: power range %d..%d W", rng.MinimumWatts, rng.MaximumWatts)
	}

	if _, err := c.SendAndWait(ctx, ftms.RequestControl()); err != nil {
		return fmt.Errorf("failed to request control: %w", err)
	}
	if err := c.Send(ftms.StartOrResume()); err != nil {
		c.logger.Printf("Controller: start command failed (may not be required): %v", err)
	}
	return nil
}

func (c *Controller) handleResponse(buf []byte) {
	resp := ftms.DecodeControlPointResponse(buf)
	if resp == nil {
		c.logger.Printf("Controller: unexpected control point value % X", buf)
		return
	}
	c.logger.Printf("Controller: %s -> %s", resp.RequestOpCode, resp.Result)

	if resp.RequestOpCode == ftms.OpRequestControl {
		c.mu.Lock()
		c.hasControl = resp.Succeeded()
		c.mu.Unlock()
	}
	c.responses.Notify(resp)
}

// HasControl reports whether the last Request Control was accepted.
func (c *Controller) HasControl() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hasControl
}

// PowerRange returns the range read by Start, if any.
func (c *Controller) PowerRange() (*ftms.SupportedPowerRange, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.powerRange, c.powerRange != nil
}

// Send writes a command without waiting for its response.
func (c *Controller) Send(cmd []byte) error {
	if err := c.device.Write(ftmsControlPoint, cmd); err != nil {
		return fmt.Errorf("failed to send %s: %w", opName(cmd), err)
	}
	return nil
}

// SendAndWait writes cmd and waits for the response to its op code. A response other
// than Success is returned with ErrControlRejected.
func (c *Controller) SendAndWait(ctx context.Context, cmd []byte) (*ftms.ControlPointResponse, error) {
	if len(cmd) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	ch := make(chan *ftms.ControlPointResponse, 4)
	remove := c.responses.Listen(ch)
	defer remove()

	if err := c.Send(cmd); err != nil {
		return nil, err
	}
	op := ftms.ControlOpCodeFromCode(cmd[0])
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s response: %w", op, ctx.Err())
		case resp := <-ch:
			if resp.RequestOpCode != op {
				continue
			}
			if !resp.Succeeded() {
				return resp, fmt.Errorf("%w: %s -> %s", ErrControlRejected, op, resp.Result)
			}
			return resp, nil
		}
	}
}

// SetTargetPower sends an ERG target, limited to the trainer's power range.
func (c *Controller) SetTargetPower(ctx context.Context, watts int16) error {
	if rng, ok := c.PowerRange(); ok {
		watts = rng.Clamp(watts)
	}
	c.logger.Printf("Controller: target power %d W", watts)
	_, err := c.SendAndWait(ctx, ftms.SetTargetPower(watts))
	return err
}

func (c *Controller) SetTargetResistance(ctx context.Context, level float64) error {
	c.logger.Printf("Controller: target resistance %.1f", level)
	_, err := c.SendAndWait(ctx, ftms.SetTargetResistanceLevel(level))
	return err
}

func (c *Controller) SetSimulation(ctx context.Context, p ftms.SimulationParameters) error {
	c.logger.Printf("Controller: simulation grade %.2f%% wind %.2f m/s", p.GradePercent, p.WindSpeedMps)
	_, err := c.SendAndWait(ctx, ftms.SetIndoorBikeSimulation(p))
	return err
}

// ListenToResponses receives every decoded control point response.
func (c *Controller) ListenToResponses(ch chan<- *ftms.ControlPointResponse) func() {
	return c.responses.Listen(ch)
}

func opName(cmd []byte) string {
	if len(cmd) == 0 {
		return "empty command"
	}
	return ftms.ControlOpCodeFromCode(cmd[0]).String()
}

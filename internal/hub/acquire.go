package hub

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/sweeney/smartstall-hub/internal/ble"
	"github.com/sweeney/smartstall-hub/internal/logger"
	"github.com/sweeney/smartstall-hub/internal/logic"
	"github.com/sweeney/smartstall-hub/internal/metrics"
)

// readBufferSize fits any attribute value in a default ATT MTU.
const readBufferSize = 20

type attribute struct {
	name  string
	uuid  string
	width int
}

// attributes are read in order on every cycle.
var attributes = []attribute{
	{name: "status", uuid: ble.StatusCharUUID, width: 2},
	{name: "battery", uuid: ble.BatteryCharUUID, width: 2},
	{name: "counters", uuid: ble.CountersCharUUID, width: 12},
}

// acquire reads every attribute into snap. Values that were read are
// decoded even when others fail; snap is Complete only if all succeeded.
func (h *Hub) acquire(ctx context.Context, chars map[string]ble.Characteristic, snap *logic.Snapshot) error {
	var missing []string
	for _, attr := range attributes {
		value, err := h.readAttribute(ctx, chars, attr)
		if errors.Is(err, ErrLinkDropped) {
			return err
		}
		if err != nil {
			logger.Debug().Err(err).Str("device", h.target).Str("attribute", attr.name).Msg("hub: read failed")
			missing = append(missing, attr.name)
			continue
		}
		decode(snap, attr, value)
	}

	snap.Timestamp = h.clock.Now()
	snap.Complete = len(missing) == 0
	if !snap.Complete {
		return fmt.Errorf("%w: %s", ErrReadIncomplete, strings.Join(missing, ", "))
	}
	return nil
}

// readAttribute reads attr with bounded retries. A read is accepted only when
// it returns at least attr.width bytes.
func (h *Hub) readAttribute(ctx context.Context, chars map[string]ble.Characteristic, attr attribute) ([]byte, error) {
	ch, ok := chars[attr.uuid]
	if !ok {
		return nil, fmt.Errorf("characteristic %s not discovered", attr.uuid)
	}

	buf := make([]byte, readBufferSize)
	var lastErr error
	for attempt := 1; attempt <= h.cfg.ReadAttempts; attempt++ {
		if attempt > 1 {
			metrics.ReadRetriesTotal.WithLabelValues(attr.name).Inc()
			h.clock.Sleep(h.cfg.ReadSpacing)
		}

		n, err := h.transport.Read(ctx, h.link, ch, buf)
		if n > len(buf) {
			n = len(buf)
		}
		if err == nil && n >= attr.width {
			return buf[:n], nil
		}
		if !h.transport.IsConnected(h.link) {
			return nil, fmt.Errorf("%w: reading %s", ErrLinkDropped, attr.name)
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("short read: %d of %d bytes", n, attr.width)
		}
	}
	return nil, fmt.Errorf("%d attempts: %w", h.cfg.ReadAttempts, lastErr)
}

func decode(snap *logic.Snapshot, attr attribute, value []byte) {
	switch attr.uuid {
	case ble.StatusCharUUID:
		snap.Status = logic.StatusCode(binary.LittleEndian.Uint16(value))
	case ble.BatteryCharUUID:
		snap.BatteryMilliVolts = binary.LittleEndian.Uint16(value)
	case ble.CountersCharUUID:
		snap.Counts = logic.SensorCounts{
			LimitSwitch: binary.LittleEndian.Uint32(value[0:4]),
			IRSensor:    binary.LittleEndian.Uint32(value[4:8]),
			HallSensor:  binary.LittleEndian.Uint32(value[8:12]),
		}
	}
}

package device

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"qlprint/internal/logger"
)

// Criteria narrows device selection. At most one field may be set; with both
// empty the first openable catalog device wins.
type Criteria struct {
	Name   string
	Serial string
}

// ErrConflictingCriteria is returned when both a model name and a serial
// number are given. Serial lookup already identifies a unique device, so a
// simultaneous name filter is either redundant or contradictory.
var ErrConflictingCriteria = errors.New("select by either model name or serial, not both")

// Conn is a claimed printer interface ready for bulk transfers. Close
// releases the interface; it does not close the device handle.
type Conn interface {
	Write(p []byte) (int, error)
	Close() error
}

// Handle is an open but not yet claimed printer device.
type Handle interface {
	// Detach releases default kernel ownership of interface 0. Best effort:
	// selection swallows its error.
	Detach() error

	// Claim acquires interface 0 and returns a bulk-write connection. On
	// failure the device handle is closed before the error is reported.
	Claim() (Conn, error)

	Close() error
}

// Bus opens physical devices by vid/pid and, when serial is non-empty, by
// serial number as well.
type Bus interface {
	Open(vendorID, productID uint16, serial string) (Handle, error)
}

// Select resolves a concrete printer from the catalog against the bus.
// Candidates are tried in canonical catalog order (sorted by product id);
// the first successful open wins. A name filter restricts candidates to
// exactly that model.
func Select(bus Bus, vendorID uint16, c Criteria) (Handle, Model, error) {
	if c.Name != "" && c.Serial != "" {
		return nil, Model{}, ErrConflictingCriteria
	}

	for _, m := range Models() {
		if c.Name != "" && c.Name != m.Name {
			continue
		}

		h, err := bus.Open(vendorID, m.ProductID, c.Serial)
		if err != nil || h == nil {
			continue
		}

		if err := h.Detach(); err != nil {
			logger.Warn("kernel driver detach failed",
				zap.String("model", m.Name),
				zap.Error(err))
		}

		logger.Info("printer selected",
			zap.String("model", m.Name),
			zap.Int("dpi", m.DPI),
			zap.Int("raster_width", m.RasterWidthPixels))
		return h, m, nil
	}

	return nil, Model{}, fmt.Errorf("vendor 0x%04X (name=%q serial=%q): %w",
		vendorID, c.Name, c.Serial, ErrNotFound)
}

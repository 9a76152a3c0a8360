package transport

import (
	"fmt"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"qlprint/internal/logger"
)

// SerialConn writes the command stream over an RS-232 port, for models
// fitted with the serial option. It implements device.Conn.
type SerialConn struct {
	port serial.Port
}

// OpenSerial opens portName at baudRate, 8N1. The port must appear in the
// system port list.
func OpenSerial(portName string, baudRate int) (*SerialConn, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	if !contains(ports, portName) {
		return nil, fmt.Errorf("serial port %s not found", portName)
	}

	mode := &serial.Mode{
		BaudRate: baudRate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}

	logger.Info("serial port opened",
		zap.String("port", portName),
		zap.Int("baud", baudRate))
	return &SerialConn{port: port}, nil
}

func (s *SerialConn) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConn) Close() error {
	return s.port.Close()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

package drivers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"sensorboard/config"
	"sensorboard/models"
	"sensorboard/store"
)

// Arduino & clones common VIDs
var preferredVIDs = map[string]bool{
	"2341": true, // Arduino
	"2A03": true, // Arduino (older)
	"1A86": true, // CH340
	"10C4": true, // CP210x
	"0403": true, // FTDI
}

var errBadLine = errors.New("bad line")

// SerialSource reads sensor lines from a serial device into a bounded history. Each line is either
//
//	<channel> <value>      a sample
//	! <channel> <value>    an alarm
//
// and is timestamped on arrival.
type SerialSource struct {
	*config.SerialFlags
	history *store.History
	log     *zap.SugaredLogger
	port    serial.Port
	now     func() time.Time
}

func NewSerialSource(serialFlags *config.SerialFlags, history *store.History, log *zap.SugaredLogger) *SerialSource {
	return &SerialSource{
		SerialFlags: serialFlags,
		history:     history,
		log:         log,
		now:         time.Now,
	}
}

func (s *SerialSource) Init() error {
	name := s.SerialPort
	if name == "auto" {
		var err error
		name, err = autoSelectPort()
		if err != nil {
			return fmt.Errorf("auto-select: %w", err)
		}
	}
	port, err := serial.Open(name, &serial.Mode{BaudRate: s.BaudRate})
	if err != nil {
		return fmt.Errorf("couldn't open serial %s: %w", name, err)
	}
	s.log.Infof("connected to %s @ %d", name, s.BaudRate)
	s.port = port
	return nil
}

func (s *SerialSource) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		if err := s.port.Close(); err != nil {
			s.log.Warnf("close serial: %v", err)
		}
	}()
	err := s.consume(s.port)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *SerialSource) History() ([]byte, error) {
	return json.Marshal(s.history.Snapshot())
}

// consume reads lines until EOF. Bad lines are logged and skipped.
func (s *SerialSource) consume(reader io.Reader) error {
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		id, value, alarm, err := parseLine(line)
		if err != nil {
			s.log.Debugf("skipping line %q: %v", line, err)
			continue
		}
		ts := models.NewTimestamp(s.now().UTC())
		if alarm {
			s.history.AddAlarm(id, models.AlarmEvent{Timestamp: ts, Value: value})
		} else {
			s.history.AddSample(id, models.SamplePoint{Timestamp: ts, Value: value})
		}
	}
	return scanner.Err()
}

func parseLine(line string) (id string, value float64, alarm bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 3 && fields[0] == "!" {
		alarm = true
		fields = fields[1:]
	}
	if len(fields) != 2 {
		return "", 0, false, fmt.Errorf("%w: want 2 fields, got %d", errBadLine, len(fields))
	}
	value, err = strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return "", 0, false, fmt.Errorf("%w: %v", errBadLine, err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "", 0, false, fmt.Errorf("%w: non-finite value", errBadLine)
	}
	return fields[0], value, alarm, nil
}

func autoSelectPort() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("enumerate ports: %w", err)
	}
	// Look for the first matching "arduino port"
	for _, p := range ports {
		if p.IsUSB && preferredVIDs[strings.ToUpper(p.VID)] {
			return p.Name, nil
		}
	}
	return "", fmt.Errorf("no arduino serial ports found")
}

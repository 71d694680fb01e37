package config

import (
	"flag"
	"os"
	"time"
)

type SourceType string

const (
	File   SourceType = "file"
	Serial SourceType = "serial"
)

const (
	DEFAULT_BAUD_RATE     = 115200
	DEFAULT_POLL_INTERVAL = 5000 * time.Millisecond
	DEFAULT_HISTORY_SIZE  = 96
)

type Flags struct {
	Addr  string
	Debug bool
}

type PollFlags struct {
	HistoryURL   string
	Interval     time.Duration
	FetchTimeout time.Duration
}

type DashboardFlags struct {
	RefreshAlarms bool
	PruneStale    bool
}

type HistoryFlags struct {
	Addr        string
	Debug       bool
	Source      SourceType
	DataPath    string
	HistorySize int
}

type SerialFlags struct {
	SerialPort string
	BaudRate   int
}

// GetFlags parses the command line of the dashboard.
func GetFlags() (*Flags, *PollFlags, *DashboardFlags) {
	flags, poll, dashboard, _ := parseFlags(flag.CommandLine, os.Args[1:])
	return flags, poll, dashboard
}

func parseFlags(fs *flag.FlagSet, args []string) (*Flags, *PollFlags, *DashboardFlags, error) {
	flags := &Flags{}
	fs.StringVar(&flags.Addr, "addr", ":8080", "http listen address")
	fs.BoolVar(&flags.Debug, "debug", false, "debug logging")

	poll := &PollFlags{}
	fs.StringVar(&poll.HistoryURL, "history-url", "http://localhost:5000/history", "history endpoint to poll")
	fs.DurationVar(&poll.Interval, "poll-interval", DEFAULT_POLL_INTERVAL, "time between polls")
	fs.DurationVar(&poll.FetchTimeout, "fetch-timeout", 10*time.Second, "give up on a single fetch after this long")

	dashboard := &DashboardFlags{}
	fs.BoolVar(&dashboard.RefreshAlarms, "refresh-alarms", true, "rebuild alarm markers on every poll, not just when a chart is created")
	fs.BoolVar(&dashboard.PruneStale, "prune-stale", false, "remove charts for channels missing from the latest poll")

	err := fs.Parse(args)

	return flags, poll, dashboard, err
}

// GetHistoryFlags parses the command line of the history daemon.
func GetHistoryFlags() (*HistoryFlags, *SerialFlags) {
	history, serial, _ := parseHistoryFlags(flag.CommandLine, os.Args[1:])
	return history, serial
}

func parseHistoryFlags(fs *flag.FlagSet, args []string) (*HistoryFlags, *SerialFlags, error) {
	history := &HistoryFlags{}
	var sourceStr string
	fs.StringVar(&history.Addr, "addr", ":5000", "http listen address")
	fs.BoolVar(&history.Debug, "debug", false, "debug logging")
	fs.StringVar(&sourceStr, "source", string(File), "where history comes from: file or serial")
	fs.StringVar(&history.DataPath, "data", "sensor_data.json", "json file served by the file source")
	fs.IntVar(&history.HistorySize, "history-size", DEFAULT_HISTORY_SIZE, "samples kept per channel by the serial source")

	serial := &SerialFlags{}
	fs.StringVar(&serial.SerialPort, "serial-port", "auto", "serial device path or 'auto'")
	fs.IntVar(&serial.BaudRate, "baud", DEFAULT_BAUD_RATE, "baud rate")

	err := fs.Parse(args)

	history.Source = SourceType(sourceStr)

	return history, serial, err
}

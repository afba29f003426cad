// Copyright 2026 The VEBus Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// mk3watch continuously polls a set of RAM variable IDs and prints each
// value change, reconnecting automatically when the MK3-USB link drops.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	mk3 "github.com/VEBusProject/go-mk3"
	"github.com/VEBusProject/go-mk3/detection"
	"github.com/VEBusProject/go-mk3/pkg/interp"
	"github.com/VEBusProject/go-mk3/polling"
	"github.com/VEBusProject/go-mk3/transport/serial"
)

type config struct {
	devicePath string
	ids        []byte
	interval   time.Duration
	debug      bool
}

// Package-level flag variables
var (
	flagDevicePath string
	flagIDs        string
	flagInterval   time.Duration
	flagDebug      bool
)

func init() {
	flag.StringVar(&flagDevicePath, "device", "", "Serial device path (auto-detect if empty)")
	flag.StringVar(&flagIDs, "ids", "0,4,5", "Comma-separated RAM variable IDs to poll")
	flag.DurationVar(&flagInterval, "interval", time.Second, "Poll interval")
	flag.BoolVar(&flagDebug, "debug", false, "Dump TX/RX hex traffic to stderr")
}

func parseConfig() (*config, error) {
	cfg := &config{
		devicePath: flagDevicePath,
		interval:   flagInterval,
		debug:      flagDebug,
	}
	for _, part := range strings.Split(flagIDs, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid ID %q: %w", part, err)
		}
		cfg.ids = append(cfg.ids, byte(id))
	}
	if len(cfg.ids) == 0 {
		return nil, errors.New("at least one RAM variable ID is required")
	}
	return cfg, nil
}

func resolveDevicePath(cfg *config) (string, error) {
	if cfg.devicePath != "" {
		return cfg.devicePath, nil
	}
	devices, err := detection.Detect(nil)
	if err != nil {
		return "", fmt.Errorf("auto-detection failed: %w", err)
	}
	_, _ = fmt.Printf("Using %s (%s)\n", devices[0].Path, devices[0].Product)
	return devices[0].Path, nil
}

func openDevice(path string, cfg *config) (*mk3.Device, error) {
	port, err := serial.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	opts := []mk3.Option{}
	if cfg.debug {
		opts = append(opts, mk3.WithTrace(os.Stderr))
	}
	device, err := mk3.New(port, opts...)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	if err := device.SetAddress(); err != nil {
		_ = device.Close()
		return nil, fmt.Errorf("failed to address device: %w", err)
	}
	return device, nil
}

func run(ctx context.Context, cfg *config) error {
	path, err := resolveDevicePath(cfg)
	if err != nil {
		return err
	}
	device, err := openDevice(path, cfg)
	if err != nil {
		return err
	}

	pollConfig := polling.DefaultConfig()
	pollConfig.IDs = cfg.ids
	pollConfig.PollInterval = cfg.interval

	session := polling.NewSession(device, pollConfig)
	// Close whichever device the session ends up on; after a reconnect
	// that is the recoverer's replacement, not the one opened above.
	defer func() {
		if current := session.GetDevice(); current != nil {
			if err := current.Close(); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "Failed to close device: %v\n", err)
			}
		}
	}()
	session.SetRecoverer(polling.NewDefaultRecoverer(device, func() (*mk3.Device, error) {
		_, _ = fmt.Fprintln(os.Stderr, "Reconnecting...")
		return openDevice(path, cfg)
	}, 0, 0))

	session.OnSample = func(s polling.Sample) {
		if cfg.debug {
			_, _ = fmt.Fprintf(os.Stderr, "id %d = %d\n", s.ID, s.Value)
		}
	}
	session.OnChange = func(id byte, previous, current uint16) {
		line := fmt.Sprintf("%s  ID %3d: %5d -> %5d",
			time.Now().Format("15:04:05"), id, previous, current)
		if guesses := interp.Guess(current); len(guesses) > 0 {
			labels := make([]string, len(guesses))
			for i, g := range guesses {
				labels[i] = g.Label
			}
			line += "  [" + strings.Join(labels, " ") + "]"
		}
		_, _ = fmt.Println(line)
	}
	session.OnError = func(err error) {
		if cfg.debug {
			_, _ = fmt.Fprintf(os.Stderr, "poll: %v\n", err)
		}
	}

	defer func() { _ = session.Close() }()

	_, _ = fmt.Printf("Watching IDs %v every %v. Press Ctrl+C to stop...\n", cfg.ids, cfg.interval)
	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("polling session failed: %w", err)
	}
	return nil
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		return 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nStopping...\n")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

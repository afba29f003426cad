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

// mk3sweep scans the 0-255 Winmon ID space of a Victron Multi/Quattro
// behind an MK3-USB cable and reports which RAM variables or settings
// the device implements, with their values and plausible physical
// interpretations.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	mk3 "github.com/VEBusProject/go-mk3"
	"github.com/VEBusProject/go-mk3/detection"
	"github.com/VEBusProject/go-mk3/pkg/interp"
	"github.com/VEBusProject/go-mk3/transport/serial"
)

type config struct {
	devicePath string
	csvPath    string
	readsPerID int
	settings   bool
	fetchInfo  bool
	allPorts   bool
	debug      bool
}

// Package-level flag variables
var (
	flagDevicePath string
	flagCSVPath    string
	flagReadsPerID int
	flagSettings   bool
	flagFetchInfo  bool
	flagAllPorts   bool
	flagDebug      bool
)

func init() {
	flag.StringVar(&flagDevicePath, "device", "", "Serial device path (auto-detect if empty)")
	flag.StringVar(&flagCSVPath, "o", "", "Write results to a CSV file")
	flag.IntVar(&flagReadsPerID, "n", 1, "Reads per ID; more than 1 highlights live-changing values")
	flag.BoolVar(&flagSettings, "settings", false, "Sweep settings instead of RAM variables")
	flag.BoolVar(&flagFetchInfo, "info", false, "Fetch raw setting metadata for supported IDs (settings only)")
	flag.BoolVar(&flagAllPorts, "all", false, "Consider every USB serial port during auto-detection")
	flag.BoolVar(&flagDebug, "debug", false, "Dump TX/RX hex traffic to stderr")
}

func parseConfig() *config {
	return &config{
		devicePath: flagDevicePath,
		csvPath:    flagCSVPath,
		readsPerID: flagReadsPerID,
		settings:   flagSettings,
		fetchInfo:  flagFetchInfo,
		allPorts:   flagAllPorts,
		debug:      flagDebug,
	}
}

// resolveDevicePath returns the configured path or auto-detects one
func resolveDevicePath(cfg *config) (string, error) {
	if cfg.devicePath != "" {
		return cfg.devicePath, nil
	}

	devices, err := detection.Detect(&detection.Options{IncludeAll: cfg.allPorts})
	if err != nil {
		return "", fmt.Errorf("auto-detection failed: %w", err)
	}
	if cfg.debug {
		for _, d := range devices {
			marker := " "
			if d.Likely {
				marker = "*"
			}
			_, _ = fmt.Fprintf(os.Stderr, "%s %s [%s:%s] %s\n", marker, d.Path, d.VID, d.PID, d.Product)
		}
	}
	_, _ = fmt.Printf("Using %s (%s)\n", devices[0].Path, devices[0].Product)
	return devices[0].Path, nil
}

func openDevice(cfg *config) (*mk3.Device, error) {
	path, err := resolveDevicePath(cfg)
	if err != nil {
		return nil, err
	}

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
	return device, nil
}

func runSweep(ctx context.Context, device *mk3.Device, cfg *config) (map[byte]mk3.SweepResult, error) {
	kind := "RAM variables"
	if cfg.settings {
		kind = "settings"
	}
	_, _ = fmt.Printf("Sweeping %s, %d read(s) per ID. This takes a while at 2400 baud...\n",
		kind, cfg.readsPerID)

	opts := &mk3.SweepOptions{
		ReadsPerID: cfg.readsPerID,
		FetchInfo:  cfg.settings && cfg.fetchInfo,
		Progress: func(r mk3.SweepResult) {
			if r.ID%32 == 31 {
				_, _ = fmt.Printf("  ...%d/256 IDs scanned\n", int(r.ID)+1)
			}
		},
	}

	if cfg.settings {
		return device.SweepSettings(ctx, opts)
	}
	return device.SweepRAMVars(ctx, opts)
}

// sortedSupported returns the supported results in ascending ID order
func sortedSupported(results map[byte]mk3.SweepResult) []mk3.SweepResult {
	supported := make([]mk3.SweepResult, 0, len(results))
	for _, r := range results {
		if r.Classification == mk3.Supported {
			supported = append(supported, r)
		}
	}
	sort.Slice(supported, func(i, j int) bool { return supported[i].ID < supported[j].ID })
	return supported
}

// idList formats the IDs with the given classification as a compact list
func idList(results map[byte]mk3.SweepResult, c mk3.Classification) string {
	var ids []int
	for _, r := range results {
		if r.Classification == c {
			ids = append(ids, int(r.ID))
		}
	}
	sort.Ints(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, " ")
}

func valueStats(values []uint16) (minVal, maxVal uint16) {
	minVal, maxVal = values[0], values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	return minVal, maxVal
}

func guessString(value uint16) string {
	candidates := interp.Guess(value)
	labels := make([]string, len(candidates))
	for i, c := range candidates {
		labels[i] = c.Label
	}
	return strings.Join(labels, " ")
}

func printReport(results map[byte]mk3.SweepResult, cfg *config) {
	supported, unsupported, noResponse := mk3.CountByClassification(results)
	_, _ = fmt.Printf("\nScanned %d IDs: %d supported, %d unsupported, %d no response\n\n",
		len(results), supported, unsupported, noResponse)

	for _, r := range sortedSupported(results) {
		latest := r.Latest()
		line := fmt.Sprintf("ID %3d: %5d (0x%04X, signed %6d)",
			r.ID, latest, latest, interp.Signed(latest))
		if cfg.readsPerID > 1 {
			minVal, maxVal := valueStats(r.Values)
			line += fmt.Sprintf("  min %5d max %5d delta %d", minVal, maxVal, maxVal-minVal)
			if r.Changed() {
				line += "  ***"
			}
		}
		if r.Name != "" {
			line += "  " + r.Name
		}
		if guesses := guessString(latest); guesses != "" {
			line += "  [" + guesses + "]"
		}
		_, _ = fmt.Println(line)
		if len(r.Info) > 0 {
			_, _ = fmt.Printf("        info: % 02X\n", r.Info)
		}
	}

	if cfg.readsPerID > 1 {
		var changing []string
		for _, r := range sortedSupported(results) {
			if r.Changed() {
				changing = append(changing, strconv.Itoa(int(r.ID)))
			}
		}
		if len(changing) > 0 {
			_, _ = fmt.Printf("\nLive-changing IDs (***): %s\n", strings.Join(changing, " "))
		}
	}

	if s := idList(results, mk3.UnsupportedSentinel); s != "" {
		_, _ = fmt.Printf("\nUnsupported (0xFFFF): %s\n", s)
	}
	if s := idList(results, mk3.NoResponse); s != "" {
		_, _ = fmt.Printf("No response: %s\n", s)
	}
}

func writeCSV(path string, results map[byte]mk3.SweepResult) error {
	f, err := os.Create(path) //nolint:gosec // Path is user-provided by design
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	header := []string{"id", "classification", "name", "values", "latest", "hex", "signed", "guesses"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	ids := make([]int, 0, len(results))
	for id := range results {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	for _, id := range ids {
		r := results[byte(id)]
		values := make([]string, len(r.Values))
		for i, v := range r.Values {
			values[i] = strconv.Itoa(int(v))
		}
		latest := r.Latest()
		record := []string{
			strconv.Itoa(id),
			r.Classification.String(),
			r.Name,
			strings.Join(values, ";"),
			strconv.Itoa(int(latest)),
			fmt.Sprintf("0x%04X", latest),
			strconv.Itoa(int(interp.Signed(latest))),
			guessString(latest),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

func run(ctx context.Context, cfg *config) error {
	device, err := openDevice(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := device.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close device: %v\n", err)
		}
	}()

	if err := device.SetAddress(); err != nil {
		return fmt.Errorf("failed to address device: %w", err)
	}

	start := time.Now()
	results, err := runSweep(ctx, device, cfg)
	if err != nil {
		// A partial sweep is still worth reporting
		_, _ = fmt.Fprintf(os.Stderr, "Sweep ended early: %v\n", err)
	}
	if len(results) == 0 {
		if err != nil {
			return err
		}
		return errors.New("sweep produced no results")
	}
	_, _ = fmt.Printf("Sweep took %v\n", time.Since(start).Round(time.Second))

	printReport(results, cfg)

	if cfg.csvPath != "" {
		if err := writeCSV(cfg.csvPath, results); err != nil {
			return err
		}
		_, _ = fmt.Printf("\nResults written to %s\n", cfg.csvPath)
	}
	return nil
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	cfg := parseConfig()

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

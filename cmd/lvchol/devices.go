// SPDX-License-Identifier: MIT

package main

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/katalvlaran/lvgpu/config"
	"github.com/katalvlaran/lvgpu/device"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var deviceHeader = []string{"Backend", "Version", "Available", "Index", "Device", "Vendor", "Memory (MB)", "Compute"}

// deviceRow is one line of the devices listing.
type deviceRow struct {
	Backend    string `json:"backend"`
	Version    string `json:"version"`
	Available  bool   `json:"available"`
	Index      int    `json:"index"`
	Device     string `json:"device,omitempty"`
	Vendor     string `json:"vendor,omitempty"`
	MemoryMB   int    `json:"memory_mb,omitempty"`
	ComputeCap string `json:"compute,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (r deviceRow) cells() []string {
	dev := r.Device
	if r.Error != "" {
		dev = r.Error
	}
	idx, mem := "-", "-"
	if r.Available {
		idx = strconv.Itoa(r.Index)
		mem = strconv.Itoa(r.MemoryMB)
	}
	return []string{r.Backend, r.Version, strconv.FormatBool(r.Available), idx, dev, r.Vendor, mem, r.ComputeCap}
}

func newDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List registered backends and their devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFrom(cmd.Context())
			return writeDevices(cmd.OutOrStdout(), cfg.Output.Format, listDevices())
		},
	}
}

// listDevices returns one row per device of every registered backend, and a
// single row for a backend that is unavailable or fails to enumerate.
func listDevices() []deviceRow {
	var rows []deviceRow
	for _, info := range device.Backends() {
		row := deviceRow{Backend: info.Name, Version: info.Version}
		b, err := device.Lookup(info.Name)
		if err != nil {
			row.Error = err.Error()
			rows = append(rows, row)
			continue
		}
		row.Available = b.Available()
		if !row.Available {
			if info.Name == device.CUDABackendName && !device.DriverPresent() {
				row.Error = "no NVIDIA driver"
			} else {
				row.Error = "unavailable"
			}
			rows = append(rows, row)
			continue
		}
		devs, err := b.Devices()
		if err != nil {
			row.Available = false
			row.Error = err.Error()
			rows = append(rows, row)
			continue
		}
		for _, d := range devs {
			r := row
			r.Index, r.Device, r.Vendor = d.Index, d.Name, d.Vendor
			r.MemoryMB, r.ComputeCap = d.MemoryMB, d.ComputeCap
			rows = append(rows, r)
		}
	}
	return rows
}

func writeDevices(w io.Writer, format string, rows []deviceRow) error {
	switch format {
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case config.FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(deviceHeader); err != nil {
			return err
		}
		for _, r := range rows {
			if err := cw.Write(r.cells()); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = r.cells()
	}
	return renderTable(w, deviceHeader, cells)
}

// renderTable writes rows as a text table, with a header line when header
// is not nil.
func renderTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	if header != nil {
		cols := make([]any, len(header))
		for i, h := range header {
			cols[i] = h
		}
		table.Header(cols...)
	}
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package plot renders the telemetry sample series as a terminal line chart
package plot

import (
	"fmt"
	"sync"

	"github.com/guptarohit/asciigraph"
)

// Chart is a plot sink. Redraw re-renders the full series; View returns the
// latest rendering and may be called from any goroutine.
type Chart struct {
	mu      sync.RWMutex
	width   int
	height  int
	caption string

	rendered string
	points   int
	redraws  uint64
}

// NewChart creates a chart of the given plot size in characters. A width of
// 0 plots every point.
func NewChart(width, height int, caption string) *Chart {
	if height <= 0 {
		height = 10
	}
	return &Chart{
		width:    width,
		height:   height,
		caption:  caption,
		rendered: "(no samples yet)",
	}
}

// Redraw re-renders the chart from values
func (c *Chart) Redraw(values []float64) {
	out := c.render(values)

	c.mu.Lock()
	c.rendered = out
	c.points = len(values)
	c.redraws++
	c.mu.Unlock()
}

// Resize changes the plot size and re-renders nothing until the next Redraw
func (c *Chart) Resize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if width >= 0 {
		c.width = width
	}
	if height > 0 {
		c.height = height
	}
}

// View returns the last rendering
func (c *Chart) View() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rendered
}

// Redraws returns how many times the chart was redrawn
func (c *Chart) Redraws() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.redraws
}

// Points returns the number of values in the last rendering
func (c *Chart) Points() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.points
}

func (c *Chart) render(values []float64) string {
	if len(values) == 0 {
		return "(no samples yet)"
	}

	c.mu.RLock()
	width, height, caption := c.width, c.height, c.caption
	c.mu.RUnlock()

	opts := []asciigraph.Option{
		asciigraph.Height(height),
		asciigraph.Precision(0),
	}
	if width > 0 {
		opts = append(opts, asciigraph.Width(width))
	}
	if caption != "" {
		opts = append(opts, asciigraph.Caption(fmt.Sprintf("%s (%d samples)", caption, len(values))))
	}

	// a single point draws nothing useful; repeat it to get a flat line
	if len(values) == 1 {
		values = []float64{values[0], values[0]}
	}
	return asciigraph.Plot(values, opts...)
}

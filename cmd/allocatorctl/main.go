// Copyright 2023 LiveKit, Inc.
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

// Command allocatorctl drives a bandwidth allocator through a scenario
// described in a YAML file and prints the resulting allocation, useful
// for exercising the allocation algorithm without a live SFU.
package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/SangwooRyu/jitsi-videobridge/pkg/allocator"
	"github.com/SangwooRyu/jitsi-videobridge/pkg/logger"
)

var baseFlags = []cli.Flag{
	&cli.StringFlag{
		Name:     "scenario",
		Usage:    "path to a YAML file describing sources, endpoints, and a bandwidth estimate",
		Required: true,
	},
	&cli.BoolFlag{
		Name:  "debug-state",
		Usage: "also print the allocator's debug state as YAML",
	},
}

func main() {
	app := &cli.App{
		Name:   "allocatorctl",
		Usage:  "run a bandwidth allocation cycle against a scenario file and print the result",
		Flags:  baseFlags,
		Action: runScenario,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// scenarioFile is the on-disk shape of a --scenario YAML file.
type scenarioFile struct {
	BandwidthBps int64               `yaml:"bandwidth_bps"`
	OnStage      []string            `yaml:"on_stage"`
	Selected     []string            `yaml:"selected"`
	LastN        *int                `yaml:"last_n"`
	Endpoints    []scenarioEndpoint  `yaml:"endpoints"`
	Constraints  scenarioConstraints `yaml:"constraints"`
}

type scenarioEndpoint struct {
	ID      string           `yaml:"id"`
	Sources []scenarioSource `yaml:"sources"`
}

type scenarioSource struct {
	Name   string          `yaml:"name"`
	Layers []scenarioLayer `yaml:"layers"`
}

type scenarioLayer struct {
	Height     int     `yaml:"height"`
	FrameRate  float64 `yaml:"frame_rate"`
	BitrateBps int64   `yaml:"bitrate_bps"`
}

type scenarioConstraints struct {
	DefaultMaxHeight    int                          `yaml:"default_max_height"`
	DefaultMaxFramerate float64                      `yaml:"default_max_framerate"`
	OnStageMaxHeightPx  int                          `yaml:"on_stage_max_height_px"`
	PerSource           map[string]scenarioPerSource `yaml:"per_source"`
}

type scenarioPerSource struct {
	MaxHeight    int     `yaml:"max_height"`
	MaxFramerate float64 `yaml:"max_framerate"`
}

// cliMediaSource adapts a scenarioSource into allocator.MediaSource.
type cliMediaSource struct {
	name   string
	owner  string
	layers []allocator.Layer
}

func (s cliMediaSource) SourceName() string        { return s.name }
func (s cliMediaSource) OwnerEndpointID() string   { return s.owner }
func (s cliMediaSource) Layers() []allocator.Layer { return s.layers }

func runScenario(c *cli.Context) error {
	raw, err := os.ReadFile(c.String("scenario"))
	if err != nil {
		return errors.Wrap(err, "reading scenario file")
	}

	var scenario scenarioFile
	if err := yaml.Unmarshal(raw, &scenario); err != nil {
		return errors.Wrap(err, "parsing scenario file")
	}

	endpoints := buildEndpoints(scenario)
	settings := buildSettings(scenario)

	log := logger.NewDevelopment()

	cfg := allocator.DefaultConfig()
	cfg.OnStageMaxHeightPx = scenario.Constraints.OnStageMaxHeightPx

	alloc := allocator.NewAllocator(allocator.AllocatorOptions{
		Logger:             log,
		Config:             cfg,
		Endpoints:          func() []allocator.Endpoint { return endpoints },
		ReceiverEndpointID: "allocatorctl",
		InitialSettings:    settings,
	})
	defer alloc.Expire()

	alloc.BandwidthChanged(scenario.BandwidthBps)

	printAllocation(alloc.GetAllocation(), scenario.BandwidthBps)

	if c.Bool("debug-state") {
		out, err := yaml.Marshal(alloc.GetDebugState())
		if err != nil {
			return errors.Wrap(err, "marshaling debug state")
		}
		fmt.Println("\ndebug state:")
		fmt.Println(string(out))
	}

	return nil
}

func buildEndpoints(scenario scenarioFile) []allocator.Endpoint {
	endpoints := make([]allocator.Endpoint, 0, len(scenario.Endpoints))
	for _, e := range scenario.Endpoints {
		sources := make([]allocator.MediaSource, 0, len(e.Sources))
		for _, s := range e.Sources {
			layers := make([]allocator.Layer, 0, len(s.Layers))
			for i, l := range s.Layers {
				layers = append(layers, allocator.Layer{
					Index:      i,
					Height:     l.Height,
					FrameRate:  l.FrameRate,
					BitrateBps: l.BitrateBps,
				})
			}
			sources = append(sources, cliMediaSource{name: s.Name, owner: e.ID, layers: layers})
		}
		endpoints = append(endpoints, allocator.Endpoint{ID: e.ID, Sources: sources})
	}
	return endpoints
}

func buildSettings(scenario scenarioFile) allocator.AllocationSettings {
	perSource := make(map[string]allocator.VideoConstraints, len(scenario.Constraints.PerSource))
	for name, c := range scenario.Constraints.PerSource {
		perSource[name] = allocator.VideoConstraints{MaxHeight: c.MaxHeight, MaxFramerate: c.MaxFramerate}
	}

	return allocator.AllocationSettings{
		OnStageSources:  allocator.NewOrderedSourceSet(scenario.OnStage...),
		SelectedSources: allocator.NewOrderedSourceSet(scenario.Selected...),
		DefaultConstraints: allocator.VideoConstraints{
			MaxHeight:    scenario.Constraints.DefaultMaxHeight,
			MaxFramerate: scenario.Constraints.DefaultMaxFramerate,
		},
		PerSourceConstraints: perSource,
		LastN:                scenario.LastN,
	}
}

func printAllocation(a allocator.BandwidthAllocation, bweBps int64) {
	fmt.Printf("bandwidth estimate: %s/s\n", humanize.Bytes(uint64(bweBps/8)))
	fmt.Printf("oversending: %v    target: %s/s    ideal: %s/s\n\n",
		a.Oversending, humanize.Bytes(uint64(a.TargetBps/8)), humanize.Bytes(uint64(a.IdealBps/8)))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Endpoint", "Source", "Target Layer", "Target Bitrate", "Ideal Layer", "Ideal Bitrate"})
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_RIGHT,
	})

	for _, sa := range a.Allocations {
		table.Append([]string{
			sa.EndpointID,
			sa.SourceName,
			layerLabel(sa.TargetLayer),
			bitrateLabel(sa.TargetLayer),
			layerLabel(sa.IdealLayer),
			bitrateLabel(sa.IdealLayer),
		})
	}
	table.Render()

	if len(a.SuspendedSourceNames) > 0 {
		fmt.Printf("\nsuspended sources: %v\n", a.SuspendedSourceNames)
	}
}

func layerLabel(l *allocator.Layer) string {
	if l == nil {
		return "-"
	}
	return fmt.Sprintf("%dp@%.0ffps", l.Height, l.FrameRate)
}

func bitrateLabel(l *allocator.Layer) string {
	if l == nil {
		return "-"
	}
	return humanize.Bytes(uint64(l.BitrateBps/8)) + "/s"
}

package main

import (
	"io"
	"text/template"
	"time"

	"github.com/plus3/simcore/ecs"
)

type Report struct {
	// Configuration
	Duration time.Duration
	Workers  int
	Entities int

	// Results
	Elapsed     time.Duration
	Creates     int64
	Destroys    int64
	Adds        int64
	Removes     int64
	Reads       int64
	Writes      int64
	Published   int64
	Drained     int64
	OpsPerSec   float64
	EntityStats ecs.EntityStatistics
	Contention  []string
	Integrity   ecs.ValidationResult
}

func buildReport(cfg Config, elapsed time.Duration, c *opCounters, em *ecs.EntityManager, am *ecs.ComponentAccessManager, integrity ecs.ValidationResult) *Report {
	totalOps := c.creates.Load() + c.destroys.Load() + c.adds.Load() +
		c.removes.Load() + c.reads.Load() + c.writes.Load()

	return &Report{
		Duration:    cfg.Duration,
		Workers:     cfg.Workers,
		Entities:    cfg.Entities,
		Elapsed:     elapsed,
		Creates:     c.creates.Load(),
		Destroys:    c.destroys.Load(),
		Adds:        c.adds.Load(),
		Removes:     c.removes.Load(),
		Reads:       c.reads.Load(),
		Writes:      c.writes.Load(),
		Published:   c.published.Load(),
		Drained:     c.drained.Load(),
		OpsPerSec:   float64(totalOps) / elapsed.Seconds(),
		EntityStats: em.Statistics(),
		Contention:  am.GetPerformanceReport(),
		Integrity:   integrity,
	}
}

func (r *Report) Render(w io.Writer) error {
	const reportTemplate = `
# Substrate Stress Test Report

## Configuration
- **Run Duration:** {{.Duration}}
- **Workers:** {{.Workers}}
- **Initial Entities:** {{.Entities}}

## Results
- **Elapsed:** {{.Elapsed}}
- **Component Ops/sec:** {{printf "%.0f" .OpsPerSec}}
- **Creates / Destroys:** {{.Creates}} / {{.Destroys}}
- **Adds / Removes:** {{.Adds}} / {{.Removes}}
- **Reads / Writes:** {{.Reads}} / {{.Writes}}
- **Messages Published / Drained:** {{.Published}} / {{.Drained}}

## Entity Registry
- **Active Entities:** {{.EntityStats.ActiveEntities}}
- **Total Components:** {{.EntityStats.TotalComponents}}
- **Avg Components/Entity:** {{printf "%.2f" .EntityStats.AvgComponentsPerEntity}}
{{range $name, $count := .EntityStats.ComponentCounts}}  - {{$name}}: {{$count}}
{{end}}
## Lock Contention (worst first)
{{if .Contention}}{{range .Contention}}- {{.}}
{{end}}{{else}}- none recorded
{{end}}
## Integrity
- **Valid:** {{.Integrity.Valid}}
- **Errors:** {{len .Integrity.Errors}}
- **Warnings:** {{len .Integrity.Warnings}}
`

	tmpl, err := template.New("report").Parse(reportTemplate)
	if err != nil {
		return err
	}
	return tmpl.Execute(w, r)
}

package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/adit-codes/vyuhathon-final-health-monitoring/form"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/workflow"
)

// Summary renders a session snapshot as plain text.
func Summary(snap workflow.Snapshot, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Session %s (%s) at %s, version %d", snap.SessionID, snap.Role, snap.Step, snap.Version)
	if !snap.UpdatedAt.IsZero() {
		fmt.Fprintf(&sb, ", updated %s", humanize.RelTime(snap.UpdatedAt, now, "ago", "from now"))
	}
	sb.WriteString("\n")
	if snap.State.Notice != "" {
		fmt.Fprintf(&sb, "%s\n", snap.State.Notice)
	}

	d := snap.State.Doctor
	if d.Identity != nil {
		fmt.Fprintf(&sb, "Patient %s: %s, %s surgery, doctor %s\n",
			d.Identity.PatientID, d.Identity.PatientName, d.Identity.SurgeryType, d.Identity.DoctorName)
	}
	if len(d.Completed) > 0 {
		fmt.Fprintf(&sb, "Set up: %s\n", strings.Join(d.Completed, ", "))
	}

	p := snap.State.Patient
	for _, w := range p.Warnings {
		fmt.Fprintf(&sb, "Warning: parameter %d: %s\n", w.Index+1, w.Reason)
	}
	for _, spec := range p.Widgets {
		fmt.Fprintf(&sb, "  %-24s %-8s %s\n", spec.Label, spec.DataType, describe(p.Captured[spec.FieldID]))
	}
	if p.Submissions > 0 {
		fmt.Fprintf(&sb, "%s submitted\n", plural(p.Submissions, "reading batch", "reading batches"))
	}

	var events []string
	for _, info := range snap.Available {
		if info.Allowed {
			events = append(events, info.Event)
		}
	}
	sort.Strings(events)
	if len(events) > 0 {
		fmt.Fprintf(&sb, "Next: %s\n", strings.Join(events, ", "))
	}
	return sb.String()
}

func describe(v form.CapturedValue) string {
	switch v.Kind {
	case "":
		return "-"
	case form.KindBinary:
		if v.Binary == nil {
			return "-"
		}
		return fmt.Sprintf("%s (%s)", v.Binary.Filename, humanize.Bytes(uint64(len(v.Binary.Data))))
	}
	return v.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return humanize.Comma(int64(n)) + " " + many
}

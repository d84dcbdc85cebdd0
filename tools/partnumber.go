// Package tools contains the two tool adapters exposed to the decision
// function. Adapters are pure translation layers: they validate arguments,
// call the retrieval gateway, and render results as plain text. They never
// return an error to the decision loop; every failure becomes a descriptive
// string result.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/konecto/actuator-agent/core"
)

// RecordLookup is the slice of the retrieval gateway the part-number tool
// needs.
type RecordLookup interface {
	Lookup(ctx context.Context, query string) []core.ActuatorRecord
}

// priorityFields is the fixed display ordering for the most relevant
// specifications, everything else follows in stored order.
var priorityFields = []struct {
	key  string
	name string
}{
	{"output_torque_nm", "Output Torque (Nm)"},
	{"on_off_output_torque_nm", "On/Off Output Torque (Nm)"},
	{"modulating_output_torque_nm", "Modulating Output Torque (Nm)"},
	{"duty_cycle_54pct", "Duty Cycle 54%"},
	{"on_off_duty_cycle_54pct", "On/Off Duty Cycle 54%"},
	{"modulating_duty_cycle_54pct", "Modulating Duty Cycle 54%"},
	{"motor_power_watts", "Motor Power (Watts)"},
	{"operating_speed_sec_60_hz", "Operating Speed 60Hz (sec)"},
	{"operating_speed_sec_50_hz", "Operating Speed 50Hz (sec)"},
	{"cycles_per_hour_cycles", "Cycles per Hour"},
	{"starts_per_hour_starts", "Starts per Hour"},
}

// metadataFields are attribute keys rendered specially or suppressed, never
// listed under Specifications.
var metadataFields = map[string]bool{
	"context_type": true,
	"source_table": true,
}

// PartNumberTool resolves exact or partial part numbers against the record
// store.
type PartNumberTool struct {
	records RecordLookup
}

func NewPartNumberTool(records RecordLookup) *PartNumberTool {
	return &PartNumberTool{records: records}
}

func (t *PartNumberTool) Spec() core.ToolSpec {
	return core.ToolSpec{
		Name: "search_by_part_number",
		Description: "Search for an actuator by its exact Base Part Number. " +
			"Performs exact and partial matching and returns complete specifications " +
			"including voltage/power configuration, torque, speed, and duty cycle. " +
			"Use when the user provides a specific part number such as '763A00-11330C00/A'.",
		InputSchema: ObjectSchema(map[string]any{
			"part_number": StringProperty("The Base Part Number to search for (exact or partial match)"),
		}, "part_number"),
	}
}

type partNumberArgs struct {
	PartNumber string `json:"part_number"`
}

// Invoke runs the lookup and renders every matched record as a text block.
func (t *PartNumberTool) Invoke(ctx context.Context, args json.RawMessage) string {
	var in partNumberArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return fmt.Sprintf("Error: invalid arguments for search_by_part_number: %v", err)
	}
	partNumber := strings.TrimSpace(in.PartNumber)
	if partNumber == "" {
		return "Error: part_number must be a non-empty string"
	}

	records := t.records.Lookup(ctx, partNumber)
	if len(records) == 0 {
		return fmt.Sprintf("No actuator found with Base Part Number: %s", partNumber)
	}

	blocks := make([]string, 0, len(records))
	for _, record := range records {
		blocks = append(blocks, formatRecord(record))
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

func formatRecord(record core.ActuatorRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Base Part Number: %s\n", record.Identifier)
	if context, ok := record.Attributes.Get("context_type"); ok && !context.Omit() {
		fmt.Fprintf(&b, "Voltage/Power: %s\n", context.Render())
	}
	b.WriteString("\nSpecifications:\n")

	shown := make(map[string]bool)
	for _, field := range priorityFields {
		v, ok := record.Attributes.Get(field.key)
		if !ok || v.Omit() {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", field.name, v.Render())
		shown[field.key] = true
	}

	for _, key := range record.Attributes.Keys() {
		if shown[key] || metadataFields[key] {
			continue
		}
		v, _ := record.Attributes.Get(key)
		if v.Omit() {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", displayName(key), v.Render())
	}

	return strings.TrimSpace(b.String())
}

// displayName turns a stored attribute key like "max_current_amps" into
// "Max Current Amps".
func displayName(key string) string {
	words := strings.Split(strings.ReplaceAll(key, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

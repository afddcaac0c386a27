package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phaserhq/phaser/internal/event"
	"github.com/phaserhq/phaser/internal/store"
	"github.com/phaserhq/phaser/internal/ui"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the audit event log",
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List events, oldest first",
	RunE:  runEventsList,
}

var eventsReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay an audit's events in order and record the run",
	RunE:  runEventsReplay,
}

var eventsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop events older than a cutoff timestamp",
	RunE:  runEventsClear,
}

func init() {
	eventsListCmd.Flags().String("audit", "", "filter by audit id")
	eventsListCmd.Flags().String("type", "", "filter by event type")
	eventsListCmd.Flags().String("since", "", "filter by inclusive timestamp lower bound")

	eventsReplayCmd.Flags().String("audit", "", "audit id to replay (required)")
	_ = eventsReplayCmd.MarkFlagRequired("audit")

	eventsClearCmd.Flags().String("before", "", "keep only events at or after this timestamp; empty clears all")

	eventsCmd.AddCommand(eventsListCmd)
	eventsCmd.AddCommand(eventsReplayCmd)
	eventsCmd.AddCommand(eventsClearCmd)
	rootCmd.AddCommand(eventsCmd)
}

func runEventsList(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	auditID, _ := cmd.Flags().GetString("audit")
	eventType, _ := cmd.Flags().GetString("type")
	since, _ := cmd.Flags().GetString("since")

	events, err := s.QueryEvents(store.EventFilter{AuditID: auditID, Type: eventType, Since: since})
	if err != nil {
		return err
	}
	p := ui.New()
	if len(events) == 0 {
		p.Info("No matching events")
		return nil
	}
	for _, e := range events {
		line := fmt.Sprintf("%s  %-18s  %s", e.Timestamp, e.Type, e.AuditID)
		if e.Phase > 0 {
			line += fmt.Sprintf("  phase %d", e.Phase)
		}
		p.Info("%s", line)
	}
	return nil
}

func runEventsReplay(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	auditID, _ := cmd.Flags().GetString("audit")

	log := event.NewLog(s)
	p := ui.New()
	count, err := log.Replay(auditID, func(e store.Event) {
		payload := ""
		if len(e.Payload) > 0 {
			if data, err := json.Marshal(e.Payload); err == nil {
				payload = "  " + string(data)
			}
		}
		p.Info("%s  %-18s%s", e.Timestamp, e.Type, payload)
	})
	if err != nil {
		return err
	}
	if err := log.RecordReplay(auditID, count); err != nil {
		return err
	}
	p.Dim("replayed %d event(s)", count)
	return nil
}

func runEventsClear(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	cutoff, _ := cmd.Flags().GetString("before")
	if err := s.ClearEvents(cutoff); err != nil {
		return err
	}
	ui.New().Success("cleared events")
	return nil
}

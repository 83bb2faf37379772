package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/havenloop/haven/internal/domain/incident"
)

// NewIncidentsCmd returns the havenctl incidents subcommand tree for the
// operator oversight surface.
func NewIncidentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "incidents",
		Short: "Operator incident oversight",
		Long: `Inspect and intervene in live incidents through the oversight API.

Requires an operator token (--token or $HAVEN_OPERATOR_TOKEN) and a
reachable API server (--server).`,
	}

	cmd.AddCommand(newIncidentsListCmd())
	cmd.AddCommand(newIncidentsGetCmd())
	cmd.AddCommand(newIncidentsTransitionCmd())
	cmd.AddCommand(newIncidentsAnnotateCmd())
	cmd.AddCommand(newBroadcastCmd())

	return cmd
}

// incidentList carries the list response and renders it as a table.
type incidentList struct {
	Incidents []*incident.Event `json:"incidents"`
}

func (l incidentList) TableHeaders() []string {
	return []string{"ID", "SUBJECT", "STATUS", "TRIGGERED", "ADDRESS"}
}

func (l incidentList) TableRows() [][]string {
	rows := make([][]string, 0, len(l.Incidents))
	for _, ev := range l.Incidents {
		rows = append(rows, []string{
			ev.ID,
			ev.SubjectID,
			string(ev.Status),
			ev.CreatedAt.Format(time.RFC3339),
			ev.Address,
		})
	}
	return rows
}

func newIncidentsListCmd() *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List incidents by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !incident.Status(status).IsValid() {
				return fmt.Errorf("invalid status: %s (must be active/in_progress/resolved/canceled)", status)
			}
			if limit < 1 || limit > 1000 {
				return fmt.Errorf("limit must be between 1 and 1000, got %d", limit)
			}

			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			var list incidentList
			path := fmt.Sprintf("/api/v1/oversight/incidents?status=%s&limit=%d", status, limit)
			if err := cliCtx.APIGet(cmd.Context(), path, &list); err != nil {
				return err
			}
			return PrintResult(cmd, list)
		},
	}

	cmd.Flags().StringVar(&status, "status", "active", "Filter by status (active/in_progress/resolved/canceled)")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum incidents to return (1-1000)")

	return cmd
}

func newIncidentsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <incident-id>",
		Short: "Show one incident with its trail and acknowledgements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			var detail map[string]interface{}
			if err := cliCtx.APIGet(cmd.Context(), "/api/v1/oversight/incidents/"+args[0], &detail); err != nil {
				return err
			}
			return printJSON(cmd, detail)
		},
	}
}

func newIncidentsTransitionCmd() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "transition <incident-id>",
		Short: "Force an incident into a new state",
		Long:  "Force a state transition on behalf of an operator.  The transition\ntable still applies; terminal incidents cannot move.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch incident.Status(target) {
			case incident.StatusInProgress, incident.StatusResolved, incident.StatusCanceled:
			default:
				return fmt.Errorf("invalid target: %s (must be in_progress/resolved/canceled)", target)
			}

			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			var ev incident.Event
			body := map[string]string{"target": target}
			if err := cliCtx.APIPost(cmd.Context(), "/api/v1/oversight/incidents/"+args[0]+"/transition", body, &ev); err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("incident %s is now %s", ev.ID, ev.Status))
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "Target status (in_progress/resolved/canceled) [REQUIRED]")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func newIncidentsAnnotateCmd() *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "annotate <incident-id>",
		Short: "Append an audit note to an incident",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if note == "" {
				return fmt.Errorf("--note cannot be empty")
			}

			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			var ev incident.Event
			body := map[string]string{"note": note}
			if err := cliCtx.APIPost(cmd.Context(), "/api/v1/oversight/incidents/"+args[0]+"/notes", body, &ev); err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("note appended to incident %s (%d notes)", ev.ID, len(ev.Notes)))
			return nil
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "Note text [REQUIRED]")
	_ = cmd.MarkFlagRequired("note")

	return cmd
}

func newBroadcastCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "broadcast <group-id>",
		Short: "Send an operator message to every member of a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				return fmt.Errorf("--message cannot be empty")
			}

			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			if err := cliCtx.APIPost(cmd.Context(), "/api/v1/oversight/groups/"+args[0]+"/broadcast",
				map[string]string{"message": message}, nil); err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("broadcast queued for group %s", args[0]))
			return nil
		},
	}

	cmd.Flags().StringVar(&message, "message", "", "Message text [REQUIRED]")
	_ = cmd.MarkFlagRequired("message")

	return cmd
}

package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newSessionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect session tool state",
	}
	cmd.AddCommand(newSessionShowCommand())
	return cmd
}

type sessionView struct {
	AgentControlledTools []string `json:"agent_controlled_tools"`
	RecentErrors         []string `json:"recent_errors"`
	ActiveSessionCount   int      `json:"active_session_count"`
}

func newSessionShowCommand() *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show agent-controlled tools and recent errors for a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp("")
			if err != nil {
				return err
			}
			if sessionID == "" {
				sessionID = "cli"
			}

			errs := a.sessions.GetRecentErrors(sessionID)
			errStrs := make([]string, len(errs))
			for i, e := range errs {
				errStrs[i] = e.ToolName + ": " + e.Error
			}

			view := sessionView{
				AgentControlledTools: a.sessions.GetAgentControlledTools(sessionID),
				RecentErrors:         errStrs,
				ActiveSessionCount:   a.sessions.ActiveSessionCount(),
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session identifier (default: cli)")
	return cmd
}

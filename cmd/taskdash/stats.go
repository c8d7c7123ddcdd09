package main

import (
	"encoding/json"
	"time"

	"github.com/matt-steen/task-dashboard/pkg/model"
	"github.com/matt-steen/task-dashboard/pkg/stats"
	"github.com/spf13/cobra"
)

const upcomingLimit = 5

type statsReport struct {
	Stats      stats.Dashboard           `json:"stats"`
	ByCategory []stats.CategoryProgress  `json:"byCategory"`
	ByPriority []stats.PriorityBreakdown `json:"byPriority"`
	ByStatus   map[model.Status]int      `json:"byStatus"`
	Upcoming   []model.Task              `json:"upcoming"`
	DueToday   []model.Task              `json:"dueToday"`
}

func (a *app) statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Sign in, load the task collection and print dashboard statistics as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			creds, err := a.credentials(cmd)
			if err != nil {
				return err
			}

			sess, err := a.newClientSession(ctx)
			if err != nil {
				return err
			}
			defer sess.close(ctx)

			snapshot, err := sess.signInAndLoad(ctx, creds)
			if err != nil {
				return err
			}

			loc, err := a.cfg.Client.Location()
			if err != nil {
				return err
			}

			now := time.Now().In(loc)

			report := statsReport{
				Stats:      snapshot.Stats,
				ByCategory: stats.ByCategory(snapshot.Tasks),
				ByPriority: stats.ByPriority(snapshot.Tasks),
				ByStatus:   stats.CountByStatus(snapshot.Tasks),
				Upcoming:   stats.Upcoming(snapshot.Tasks, now, upcomingLimit),
				DueToday:   stats.OnDate(snapshot.Tasks, now),
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			return enc.Encode(report)
		},
	}

	addCredentialFlags(cmd)

	return cmd
}

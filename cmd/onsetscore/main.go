package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"onsetscore/internal/bootstrap"
	navigationdto "onsetscore/internal/modules/navigation/dto"
	onsetdto "onsetscore/internal/modules/onset/dto"
	sessiondto "onsetscore/internal/modules/session/dto"
	"onsetscore/internal/platform/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var workspace string

	root := &cobra.Command{
		Use:           "onsetscore",
		Short:         "Score speech onsets in recorded naming trials",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&workspace, "workspace", ".", "workspace directory holding onsetscore.yaml and session state")

	root.AddCommand(newTUICmd(&workspace))
	root.AddCommand(newDatasetsCmd(&workspace))
	root.AddCommand(newParticipantCmd(&workspace))
	root.AddCommand(newTranslateCmd(&workspace))
	root.AddCommand(newSessionCmd(&workspace))
	root.AddCommand(newScoreCmd(&workspace))
	root.AddCommand(newOnsetCmd(&workspace))
	root.AddCommand(newNavCmd(&workspace))
	root.AddCommand(newExhibitCmd(&workspace))
	root.AddCommand(newPluginCmd(&workspace))
	return root
}

// withApp builds the application, runs fn and always closes it so pending
// session writes and exporter deliveries finish before the process exits.
func withApp(ctx context.Context, workspace string, fn func(context.Context, *bootstrap.App) error) (err error) {
	cfg, err := config.New(workspace)
	if err != nil {
		return err
	}
	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		err = errors.Join(err, app.Close(closeCtx))
	}()
	return fn(ctx, app)
}

func newTUICmd(workspace *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the interactive scoring surface",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), *workspace, func(_ context.Context, app *bootstrap.App) error {
				return bootstrap.RunTUI(app)
			})
		},
	}
}

func newDatasetsCmd(workspace *string) *cobra.Command {
	return &cobra.Command{
		Use:   "datasets",
		Short: "List datasets in the index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), *workspace, func(ctx context.Context, app *bootstrap.App) error {
				datasets, err := app.DatasetCLI.ListDatasets(ctx)
				if err != nil {
					return err
				}
				if len(datasets) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no datasets")
					return nil
				}
				for _, ds := range datasets {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\tparticipants=%d\n", ds.ID, ds.TestType, ds.Timing, ds.Label, len(ds.Participants))
				}
				return nil
			})
		},
	}
}

func newParticipantCmd(workspace *string) *cobra.Command {
	participant := &cobra.Command{Use: "participant", Short: "Participant record sets"}
	participant.AddCommand(&cobra.Command{
		Use:   "show <dataset> <participant>",
		Short: "Show the trials of a participant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *workspace, func(ctx context.Context, app *bootstrap.App) error {
				p, err := app.DatasetCLI.GetParticipant(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "participant: %s dataset=%s trials=%d\n", p.ID, p.DatasetID, len(p.Trials))
				for _, t := range p.Trials {
					_, _ = fmt.Fprintf(out, "%d\t%s\t%s\tauto=%s\tlatency=%s %s\n", t.Number, t.Word, t.ExhibitName, formatMs(t.AutoOnsetMs), formatMs(t.LatencyMs), t.LatencyStatus)
				}
				return nil
			})
		},
	})
	return participant
}

func newTranslateCmd(workspace *string) *cobra.Command {
	return &cobra.Command{
		Use:   "translate <word>",
		Short: "Look up a word in the index translation table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *workspace, func(ctx context.Context, app *bootstrap.App) error {
				tr, err := app.DatasetCLI.Translate(ctx, args[0])
				if err != nil {
					return err
				}
				if !tr.Found {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: no translation\n", tr.Word)
					return nil
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", tr.Word, tr.Translation)
				return nil
			})
		},
	}
}

func newSessionCmd(workspace *string) *cobra.Command {
	session := &cobra.Command{Use: "session", Short: "Scoring session lifecycle"}

	var raterID, datasetID string
	var participants []string
	start := &cobra.Command{
		Use:   "start --rater <id> --dataset <id>",
		Short: "Start a new session for a rater and dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlags(map[string]string{"--rater": raterID, "--dataset": datasetID}); err != nil {
				return err
			}
			return withApp(cmd.Context(), *workspace, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.SessionCLI.Start(ctx, raterID, datasetID, participants)
				if err != nil {
					return err
				}
				printSession(cmd.OutOrStdout(), "session started", out)
				return nil
			})
		},
	}
	start.Flags().StringVar(&raterID, "rater", "", "rater id")
	start.Flags().StringVar(&datasetID, "dataset", "", "dataset id")
	start.Flags().StringSliceVar(&participants, "participant", nil, "participant ids to assign (defaults to the whole dataset)")

	var resumeRater, resumeDataset string
	resume := &cobra.Command{
		Use:   "resume --rater <id> --dataset <id>",
		Short: "Resume a saved session, or start one when none is readable",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlags(map[string]string{"--rater": resumeRater, "--dataset": resumeDataset}); err != nil {
				return err
			}
			return withApp(cmd.Context(), *workspace, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.SessionCLI.Resume(ctx, resumeRater, resumeDataset)
				if err != nil {
					return err
				}
				label := "session resumed"
				if !out.Resumed {
					label = "no saved session, started"
				}
				printSession(cmd.OutOrStdout(), label, out.Session)
				return nil
			})
		},
	}
	resume.Flags().StringVar(&resumeRater, "rater", "", "rater id")
	resume.Flags().StringVar(&resumeDataset, "dataset", "", "dataset id")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show progress of the active session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), *workspace, func(ctx context.Context, app *bootstrap.App) error {
				st, err := app.SessionCLI.Status(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				printSession(out, "session", st.Session)
				for _, p := range st.Participants {
					marker := " "
					if p.IsCurrent {
						marker = "*"
					}
					_, _ = fmt.Fprintf(out, "%s %s\t%d/%d\tcomplete=%t signaled=%t\n", marker, p.ID, p.Scored, p.Trials, p.Complete, p.Signaled)
				}
				return nil
			})
		},
	}

	session.AddCommand(start, resume, status)
	return session
}

func newScoreCmd(workspace *string) *cobra.Command {
	score := &cobra.Command{Use: "score", Short: "Trial scores in the active session"}

	var accuracy, note string
	set := &cobra.Command{
		Use:   "set <participant> <trial> [--accuracy <value>] [--note <text>]",
		Short: "Record accuracy or a note for a trial",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			trial, err := parseTrial(args[1])
			if err != nil {
				return err
			}
			var accuracyPtr, notePtr *string
			if cmd.Flags().Changed("accuracy") {
				accuracyPtr = &accuracy
			}
			if cmd.Flags().Changed("note") {
				notePtr = &note
			}
			if accuracyPtr == nil && notePtr == nil {
				return fmt.Errorf("--accuracy or --note is required")
			}
			return withApp(cmd.Context(), *workspace, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.SessionCLI.SetScore(ctx, args[0], trial, accuracyPtr, notePtr)
				if err != nil {
					return err
				}
				printScore(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	set.Flags().StringVar(&accuracy, "accuracy", "", "correct | incorrect | self_corrected | no_response; empty clears")
	set.Flags().StringVar(&note, "note", "", "free-text note")

	show := &cobra.Command{
		Use:   "show <participant> <trial>",
		Short: "Show the stored score of a trial",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			trial, err := parseTrial(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), *workspace, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.SessionCLI.GetScore(ctx, args[0], trial)
				if err != nil {
					return err
				}
				printScore(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}

	score.AddCommand(set, show)
	return score
}

func newOnsetCmd(workspace *string) *cobra.Command {
	onset := &cobra.Command{Use: "onset", Short: "Speech onset annotation"}

	add := func(use, action, short string, valueRequired bool) {
		var ms float64
		c := &cobra.Command{
			Use:   use + " <participant> <trial>",
			Short: short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				trial, err := parseTrial(args[1])
				if err != nil {
					return err
				}
				var value *float64
				if cmd.Flags().Changed("ms") {
					value = &ms
				} else if valueRequired {
					return fmt.Errorf("--ms is required")
				}
				return withApp(cmd.Context(), *workspace, func(ctx context.Context, app *bootstrap.App) error {
					out, err := app.OnsetCLI.Apply(ctx, args[0], trial, action, value)
					if err != nil {
						return err
					}
					printOnset(cmd.OutOrStdout(), out)
					return nil
				})
			},
		}
		if action == "correct" || action == "manual" {
			c.Flags().Float64Var(&ms, "ms", 0, "onset in milliseconds")
		}
		onset.AddCommand(c)
	}
	add("confirm", "confirm", "Accept the automatically detected onset", false)
	add("correct", "correct", "Replace the detected onset with a corrected value", true)
	add("manual", "manual", "Mark the onset as manually placed", false)
	add("no-speech", "no_speech", "Mark the trial as having no speech", false)
	add("clear", "clear", "Remove the onset annotation", false)
	return onset
}

func newNavCmd(workspace *string) *cobra.Command {
	nav := &cobra.Command{Use: "nav", Short: "Move the scoring cursor"}

	type move func(context.Context, *bootstrap.App) (navigationdto.ViewOutput, error)
	add := func(use, short string, fn move) {
		nav.AddCommand(&cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd.Context(), *workspace, func(ctx context.Context, app *bootstrap.App) error {
					out, err := fn(ctx, app)
					if err != nil {
						return err
					}
					printView(cmd.OutOrStdout(), out)
					return nil
				})
			},
		})
	}
	add("next", "Next trial", func(ctx context.Context, app *bootstrap.App) (navigationdto.ViewOutput, error) {
		return app.NavigationCLI.Next(ctx)
	})
	add("prev", "Previous trial", func(ctx context.Context, app *bootstrap.App) (navigationdto.ViewOutput, error) {
		return app.NavigationCLI.Prev(ctx)
	})
	add("next-participant", "First trial of the next participant", func(ctx context.Context, app *bootstrap.App) (navigationdto.ViewOutput, error) {
		return app.NavigationCLI.NextParticipant(ctx)
	})
	add("prev-participant", "First trial of the previous participant", func(ctx context.Context, app *bootstrap.App) (navigationdto.ViewOutput, error) {
		return app.NavigationCLI.PrevParticipant(ctx)
	})
	add("jump", "Next unscored trial", func(ctx context.Context, app *bootstrap.App) (navigationdto.ViewOutput, error) {
		return app.NavigationCLI.JumpToUnscored(ctx)
	})
	add("current", "Show the trial at the saved position", func(ctx context.Context, app *bootstrap.App) (navigationdto.ViewOutput, error) {
		return app.NavigationCLI.Resume(ctx)
	})

	nav.AddCommand(&cobra.Command{
		Use:   "goto <participant-position> <trial-position>",
		Short: "Go to a 1-based participant and trial position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("participant position: %w", err)
			}
			t, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("trial position: %w", err)
			}
			return withApp(cmd.Context(), *workspace, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.NavigationCLI.Goto(ctx, p-1, t-1)
				if err != nil {
					return err
				}
				printView(cmd.OutOrStdout(), out)
				return nil
			})
		},
	})
	return nav
}

func newExhibitCmd(workspace *string) *cobra.Command {
	exhibit := &cobra.Command{Use: "exhibit", Short: "Trial audio exhibits"}
	exhibit.AddCommand(&cobra.Command{
		Use:   "locate <participant> <trial>",
		Short: "Print where a trial's exhibit can be played from",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			trial, err := parseTrial(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), *workspace, func(ctx context.Context, app *bootstrap.App) error {
				session, err := app.SessionCLI.Open(ctx)
				if err != nil {
					return err
				}
				out, err := app.ExhibitCLI.Locate(ctx, session.DatasetID, args[0], trial)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tcached=%t\n", out.ExhibitName, out.Location, out.Cached)
				return nil
			})
		},
	})
	return exhibit
}

func newPluginCmd(workspace *string) *cobra.Command {
	plugin := &cobra.Command{Use: "plugin", Short: "Export plugin operations"}
	plugin.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List exporter manifests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), *workspace, func(ctx context.Context, app *bootstrap.App) error {
				exporters, err := app.ExportCLI.List(ctx)
				if err != nil {
					return err
				}
				if len(exporters) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no exporters configured")
					return nil
				}
				for _, e := range exporters {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s@%s enabled=%t binary=%s capabilities=%s\n", e.Name, e.Version, e.Enabled, e.Binary, strings.Join(e.Capabilities, ","))
				}
				return nil
			})
		},
	})

	plugin.AddCommand(&cobra.Command{
		Use:   "doctor",
		Short: "Validate exporter checksums and lifecycle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), *workspace, func(ctx context.Context, app *bootstrap.App) error {
				results, err := app.ExportCLI.Doctor(ctx)
				if err != nil {
					return err
				}
				if len(results) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no exporters configured")
					return nil
				}
				failed := false
				for _, r := range results {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s checksum=%t binary=%t lifecycle=%t", r.Name, r.ChecksumValid, r.BinaryReachable, r.LifecycleOK)
					if r.Error != "" {
						failed = true
						_, _ = fmt.Fprintf(cmd.OutOrStdout(), " error=%s", r.Error)
					}
					_, _ = fmt.Fprintln(cmd.OutOrStdout())
				}
				if failed {
					return fmt.Errorf("one or more exporters failed checks")
				}
				return nil
			})
		},
	})
	return plugin
}

func requireFlags(flags map[string]string) error {
	for name, v := range flags {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	return nil
}

func parseTrial(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("trial number must be a positive integer, got %q", raw)
	}
	return n, nil
}

func formatMs(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}

func printSession(w io.Writer, label string, s sessiondto.SessionOutput) {
	_, _ = fmt.Fprintf(w, "%s: %s rater=%s dataset=%s participants=%d position=%d/%d scored=%d\n",
		label, s.SessionID, s.RaterID, s.DatasetID, len(s.Participants), s.ParticipantIndex+1, s.TrialIndex+1, s.TotalScored)
}

func printScore(w io.Writer, s sessiondto.ScoreOutput) {
	_, _ = fmt.Fprintf(w, "%s trial %d: accuracy=%s onset=%s status=%s note=%q\n",
		s.ParticipantID, s.TrialNumber, orDash(s.Accuracy), formatMs(s.OnsetMs), s.OnsetStatus, s.Note)
}

func printOnset(w io.Writer, o onsetdto.OnsetOutput) {
	_, _ = fmt.Fprintf(w, "%s trial %d: onset=%s status=%s auto=%s accuracy=%s\n",
		o.ParticipantID, o.TrialNumber, formatMs(o.OnsetMs), o.OnsetStatus, formatMs(o.AutoOnsetMs), orDash(o.Accuracy))
}

func printView(w io.Writer, v navigationdto.ViewOutput) {
	if !v.Moved {
		_, _ = fmt.Fprint(w, "(no move) ")
	}
	_, _ = fmt.Fprintf(w, "participant %d/%d %s  trial %d/%d #%d %s  exhibit=%s auto=%s\n",
		v.ParticipantIndex+1, v.ParticipantCount, v.ParticipantID,
		v.TrialIndex+1, v.TrialCount, v.TrialNumber, v.Word, v.ExhibitName, formatMs(v.AutoOnsetMs))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kovalyov-valentin/crypto-intel/internal/config"
	"github.com/kovalyov-valentin/crypto-intel/internal/enricher"
	"github.com/kovalyov-valentin/crypto-intel/internal/model"
	"github.com/kovalyov-valentin/crypto-intel/internal/retention"
	"github.com/kovalyov-valentin/crypto-intel/internal/source"
	"github.com/kovalyov-valentin/crypto-intel/internal/storage"
)

// withApp собирает зависимости для разовой команды и закрывает их после
func withApp(cmd *cobra.Command, cfg *config.Config, fn func(ctx context.Context, a *app) error) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, *cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fetchCmd(cfg *config.Config) *cobra.Command {
	var cutoffFlag string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch all enabled sources once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(ctx context.Context, a *app) error {
				if err := a.seed(ctx); err != nil {
					return err
				}

				cutoff := a.cutoff
				if cutoffFlag != "" {
					parsed, err := model.ParseCutoff(cutoffFlag)
					if err != nil {
						return err
					}
					cutoff = parsed
				}

				report, err := a.fetcher.Fetch(ctx, cutoff)
				if err != nil {
					return err
				}
				return printJSON(report)
			})
		},
	}
	cmd.Flags().StringVar(&cutoffFlag, "cutoff", "", "Freshness window: none, 24h or 3d (default from config)")
	return cmd
}

func analyzeCmd(cfg *config.Config) *cobra.Command {
	var recoverOrphans bool

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Drain the pending queue through the analyzer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(ctx context.Context, a *app) error {
				return runAnalyze(ctx, a.engine, recoverOrphans)
			})
		},
	}
	cmd.Flags().BoolVar(&recoverOrphans, "recover", false, "Release PROCESSING items left by a crashed run first. Do not use while serve is running")
	return cmd
}

type analyzeEngine interface {
	Recover(ctx context.Context) (int64, error)
	Run(ctx context.Context, session *enricher.Session) error
}

// runAnalyze без флага recover не трогает статьи в обработке: их может держать работающий serve
func runAnalyze(ctx context.Context, engine analyzeEngine, recoverOrphans bool) error {
	if recoverOrphans {
		if _, err := engine.Recover(ctx); err != nil {
			return err
		}
	}

	session := enricher.NewSession()
	err := engine.Run(ctx, session)
	if perr := printJSON(session.Progress()); perr != nil {
		return perr
	}
	return err
}

func rewriteCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "rewrite <item id> [hot_event|sector_depth|product_update|media_report]",
		Short: "Rewrite a stored item with a publication template",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}

			var name string
			if len(args) > 1 {
				name = args[1]
			}
			template, err := model.ParseRewriteTemplate(name)
			if err != nil {
				return err
			}

			return withApp(cmd, cfg, func(ctx context.Context, a *app) error {
				item, err := a.rewriter.Rewrite(ctx, id, template)
				if err != nil {
					return err
				}
				return printJSON(item.Rewrite)
			})
		},
	}
}

func requeueCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <COMPLETED|SKIPPED|FAILED|id...>",
		Short: "Return analyzed items to the pending queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := storage.RequeueFilter{}
			if status, err := model.ParseStatus(args[0]); err == nil {
				filter.Status = status
			} else {
				for _, arg := range args {
					id, err := strconv.ParseInt(arg, 10, 64)
					if err != nil {
						return fmt.Errorf("invalid item id %q", arg)
					}
					filter.IDs = append(filter.IDs, id)
				}
			}

			return withApp(cmd, cfg, func(ctx context.Context, a *app) error {
				n, err := a.items.Requeue(ctx, filter)
				if err != nil {
					return err
				}
				fmt.Printf("requeued %d items\n", n)
				return nil
			})
		},
	}
}

func pruneCmd(cfg *config.Config) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete items older than the retention horizon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days == 0 {
				days = cfg.RetentionDays
			}
			return withApp(cmd, cfg, func(ctx context.Context, a *app) error {
				deleted, err := a.pruner.Prune(ctx, days)
				if err != nil {
					return err
				}
				fmt.Printf("deleted %d items older than %d days\n", deleted, days)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Retention horizon in days (default from config)")
	return cmd
}

func clearCmd(cfg *config.Config) *cobra.Command {
	var confirm string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored item",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(ctx context.Context, a *app) error {
				deleted, err := a.pruner.ClearAll(ctx, confirm)
				if err != nil {
					return fmt.Errorf("%w, pass --confirm %q", err, retention.ConfirmClearAll)
				}
				fmt.Printf("deleted %d items\n", deleted)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&confirm, "confirm", "", "Confirmation phrase")
	return cmd
}

func testSourceCmd(cfg *config.Config) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "test-source [source id|feed url]",
		Short: "Check that a feed is reachable and parses",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				return withApp(cmd, cfg, func(ctx context.Context, a *app) error {
					results, err := a.fetcher.TestAll(ctx)
					if err != nil {
						return err
					}
					return printJSON(results)
				})
			}
			if len(args) == 0 {
				return fmt.Errorf("pass a source id, a feed url or --all")
			}

			target := args[0]

			// Произвольный url проверяем без базы
			if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
				retriever, err := newRetriever(*cfg)
				if err != nil {
					return err
				}
				n, err := source.Test(cmd.Context(), retriever, target)
				if err != nil {
					return err
				}
				fmt.Printf("ok, %d items\n", n)
				return nil
			}

			return withApp(cmd, cfg, func(ctx context.Context, a *app) error {
				result, err := a.fetcher.TestSource(ctx, target)
				if err != nil {
					return err
				}
				return printJSON(result)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Test every stored source, disabled ones included")
	return cmd
}
